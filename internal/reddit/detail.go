package reddit

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/harvestlab/reddit-harvester/internal/models"
)

var ErrMalformedDetail = errors.New("malformed post detail")

type thing struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

type listing struct {
	Children []thing `json:"children"`
	After    *string `json:"after"`
}

type postData struct {
	ID          string  `json:"id"`
	Subreddit   string  `json:"subreddit"`
	Author      string  `json:"author"`
	AuthorFlair *string `json:"author_flair_text"`
	Title       string  `json:"title"`
	Selftext    string  `json:"selftext"`
	Ups         float64 `json:"ups"`
	Downs       float64 `json:"downs"`
	Score       float64 `json:"score"`
	CreatedUTC  float64 `json:"created_utc"`
	Permalink   string  `json:"permalink"`
}

type commentData struct {
	ID          string          `json:"id"`
	ParentID    string          `json:"parent_id"`
	Author      string          `json:"author"`
	AuthorFlair *string         `json:"author_flair_text"`
	Body        string          `json:"body"`
	Ups         float64         `json:"ups"`
	Downs       float64         `json:"downs"`
	Score       float64         `json:"score"`
	CreatedUTC  float64         `json:"created_utc"`
	Permalink   string          `json:"permalink"`
	Replies     json.RawMessage `json:"replies"`
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// Detail is a decoded post together with its comment tree
type Detail struct {
	Post     models.Post
	Comments *ListingNode
}

// ParseDetail decodes a post detail response. The post keeps the requested id;
// its community falls back to the requested one and its URL to the permalink
// when postURL is empty.
func (e Endpoints) ParseDetail(body []byte, community, postID, postURL string) (*Detail, error) {
	var parts []thing
	if err := json.Unmarshal(body, &parts); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDetail, err)
	}
	if len(parts) < 2 {
		return nil, fmt.Errorf("%w: expected 2 listings, got %d", ErrMalformedDetail, len(parts))
	}

	var postListing listing
	if err := json.Unmarshal(parts[0].Data, &postListing); err != nil || len(postListing.Children) == 0 {
		return nil, fmt.Errorf("%w: no post in first listing", ErrMalformedDetail)
	}

	var p postData
	if err := json.Unmarshal(postListing.Children[0].Data, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDetail, err)
	}

	if p.Subreddit != "" {
		community = p.Subreddit
	}
	if postURL == "" {
		postURL = e.Permalink(p.Permalink)
	}

	detail := &Detail{
		Post: models.Post{
			ID:          postID,
			Community:   CleanText(community),
			Author:      CleanText(p.Author),
			AuthorFlair: CleanText(deref(p.AuthorFlair)),
			Title:       CleanText(p.Title),
			Body:        CleanText(p.Selftext),
			Ups:         int(p.Ups),
			Downs:       int(p.Downs),
			Score:       int(p.Score),
			CreatedAt:   Timestamp(p.CreatedUTC),
			URL:         CleanText(postURL),
		},
	}

	comments, err := e.decodeListing(parts[1].Data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDetail, err)
	}
	detail.Comments = comments

	return detail, nil
}

func (e Endpoints) decodeListing(raw json.RawMessage) (*ListingNode, error) {
	var l listing
	if err := json.Unmarshal(raw, &l); err != nil {
		return nil, err
	}

	node := &ListingNode{}
	for _, child := range l.Children {
		if n := e.decodeThing(child); n != nil {
			node.Children = append(node.Children, n)
		}
	}
	return node, nil
}

// decodeThing returns nil for kinds that carry no comments, such as "more"
func (e Endpoints) decodeThing(t thing) Node {
	switch t.Kind {
	case "t1":
		var c commentData
		if err := json.Unmarshal(t.Data, &c); err != nil {
			return nil
		}
		node := &CommentNode{Comment: models.Comment{
			ID:          c.ID,
			ParentID:    CleanText(c.ParentID),
			Author:      CleanText(c.Author),
			AuthorFlair: CleanText(deref(c.AuthorFlair)),
			Body:        CleanText(c.Body),
			Ups:         int(c.Ups),
			Downs:       int(c.Downs),
			Score:       int(c.Score),
			CreatedAt:   Timestamp(c.CreatedUTC),
			URL:         e.Permalink(c.Permalink),
		}}
		node.Replies = e.decodeReplies(c.Replies)
		return node

	case "Listing":
		l, err := e.decodeListing(t.Data)
		if err != nil {
			return nil
		}
		return l
	}
	return nil
}

// replies is either an empty string or a Listing thing
func (e Endpoints) decodeReplies(raw json.RawMessage) *ListingNode {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return nil
	}
	var t thing
	if err := json.Unmarshal(raw, &t); err != nil || t.Kind != "Listing" {
		return nil
	}
	l, err := e.decodeListing(t.Data)
	if err != nil {
		return nil
	}
	return l
}

// ListingEntry is one post of a community listing page
type ListingEntry struct {
	ID        string
	Permalink string
	CreatedAt time.Time
}

// ParseListing decodes a community listing page and its "after" cursor
func ParseListing(body []byte) ([]ListingEntry, string, error) {
	var page thing
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, "", fmt.Errorf("failed to decode listing: %w", err)
	}

	var l listing
	if err := json.Unmarshal(page.Data, &l); err != nil {
		return nil, "", fmt.Errorf("failed to decode listing data: %w", err)
	}

	var entries []ListingEntry
	for _, child := range l.Children {
		var p postData
		if err := json.Unmarshal(child.Data, &p); err != nil || p.ID == "" {
			continue
		}
		entries = append(entries, ListingEntry{
			ID:        p.ID,
			Permalink: p.Permalink,
			CreatedAt: Timestamp(p.CreatedUTC),
		})
	}

	return entries, deref(l.After), nil
}
