package reddit

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// PostRef is one hit on a post search page
type PostRef struct {
	ID    string
	URL   string
	Title string
}

// CommentGroup collects the comment ids a search page referenced for one post
type CommentGroup struct {
	Community  string
	PostID     string
	CommentIDs []string
}

type trackingContext struct {
	Post struct {
		ID string `json:"id"`
	} `json:"post"`
	Comment struct {
		ID string `json:"id"`
	} `json:"comment"`
	Subreddit struct {
		Name string `json:"name"`
	} `json:"subreddit"`
}

func (e Endpoints) document(body []byte) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse search page: %w", err)
	}
	return doc, nil
}

// nextPage finds the lazily loaded partial carrying the pagination cursor
func (e Endpoints) nextPage(doc *goquery.Document) string {
	var next string
	doc.Find("faceplate-partial").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		src, ok := s.Attr("src")
		if !ok || !strings.Contains(src, "cursor=") {
			return true
		}
		resolved, err := e.Resolve(src)
		if err != nil {
			return true
		}
		next = resolved
		return false
	})
	return next
}

// ParsePostSearch extracts post hits and the next page URL from a post search page
func (e Endpoints) ParsePostSearch(body []byte) ([]PostRef, string, error) {
	doc, err := e.document(body)
	if err != nil {
		return nil, "", err
	}

	var refs []PostRef
	doc.Find(`a[data-testid="post-title"]`).Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		full, err := e.Resolve(href)
		if err != nil {
			return
		}
		_, rest, ok := strings.Cut(full, "/comments/")
		if !ok {
			return
		}
		id, _, _ := strings.Cut(rest, "/")
		if id == "" {
			return
		}
		refs = append(refs, PostRef{ID: id, URL: full, Title: strings.TrimSpace(a.Text())})
	})

	return refs, e.nextPage(doc), nil
}

// ParseCommentSearch extracts comment references grouped by post, in first-seen
// order, and the next page URL from a comment search page
func (e Endpoints) ParseCommentSearch(body []byte) ([]CommentGroup, string, error) {
	doc, err := e.document(body)
	if err != nil {
		return nil, "", err
	}

	var groups []CommentGroup
	index := make(map[[2]string]int)
	seen := make(map[[3]string]bool)

	doc.Find(`div[data-testid="search-sdui-comment-unit"]`).Each(func(_ int, card *goquery.Selection) {
		raw, ok := card.Find("search-telemetry-tracker").First().Attr("data-faceplate-tracking-context")
		if !ok {
			return
		}

		var ctx trackingContext
		if err := json.Unmarshal([]byte(html.UnescapeString(raw)), &ctx); err != nil {
			return
		}

		postID := strings.TrimPrefix(ctx.Post.ID, "t3_")
		commentID := strings.TrimPrefix(ctx.Comment.ID, "t1_")
		community := ctx.Subreddit.Name
		if postID == "" || commentID == "" || community == "" {
			return
		}

		key := [2]string{community, postID}
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, CommentGroup{Community: community, PostID: postID})
		}
		if seen[[3]string{community, postID, commentID}] {
			return
		}
		seen[[3]string{community, postID, commentID}] = true
		groups[i].CommentIDs = append(groups[i].CommentIDs, commentID)
	})

	return groups, e.nextPage(doc), nil
}
