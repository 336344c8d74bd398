package reddit

import (
	"fmt"
	"net/url"
	"strings"
)

// Search result kinds
const (
	KindPosts    = "posts"
	KindComments = "comments"
)

// Endpoints builds platform URLs relative to one base
type Endpoints struct {
	Base string
}

func NewEndpoints(base string) Endpoints {
	return Endpoints{Base: strings.TrimRight(base, "/")}
}

// Search returns the first results page of a keyword search. An empty community
// searches the whole site.
func (e Endpoints) Search(keyword, community, kind, sort, timeRange string) string {
	params := url.Values{}
	params.Set("q", keyword)
	params.Set("type", kind)
	params.Set("sort", sort)
	params.Set("t", timeRange)

	if community != "" {
		return fmt.Sprintf("%s/r/%s/search/?%s", e.Base, url.PathEscape(community), params.Encode())
	}
	return fmt.Sprintf("%s/search/?%s", e.Base, params.Encode())
}

// PostDetail returns the JSON URL of a post with its comment tree
func (e Endpoints) PostDetail(community, postID string) string {
	if community != "" {
		return fmt.Sprintf("%s/r/%s/comments/%s.json?limit=500", e.Base, url.PathEscape(community), url.PathEscape(postID))
	}
	return fmt.Sprintf("%s/comments/%s.json?limit=500", e.Base, url.PathEscape(postID))
}

// Listing returns one page of a community's newest posts
func (e Endpoints) Listing(community, after string) string {
	params := url.Values{}
	params.Set("limit", "100")
	if after != "" {
		params.Set("after", after)
	}
	return fmt.Sprintf("%s/r/%s/new/.json?%s", e.Base, url.PathEscape(community), params.Encode())
}

// Permalink turns a platform-relative permalink into an absolute URL
func (e Endpoints) Permalink(permalink string) string {
	if permalink == "" {
		return ""
	}
	return e.Base + permalink
}

// Resolve resolves ref against the base URL
func (e Endpoints) Resolve(ref string) (string, error) {
	base, err := url.Parse(e.Base + "/")
	if err != nil {
		return "", err
	}
	r, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return "", err
	}
	return base.ResolveReference(r).String(), nil
}
