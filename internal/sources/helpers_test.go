package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"strings"
	"sync"
	"time"

	"github.com/harvestlab/reddit-harvester/internal/config"
	"github.com/harvestlab/reddit-harvester/internal/fetch"
	"github.com/harvestlab/reddit-harvester/internal/models"
	"github.com/harvestlab/reddit-harvester/internal/reddit"
	"github.com/harvestlab/reddit-harvester/internal/state"
	"github.com/sirupsen/logrus"
)

const base = "https://www.reddit.com"

var endpoints = reddit.NewEndpoints(base)

// fakeGetter serves canned bodies by exact URL and records every request
type fakeGetter struct {
	mu    sync.Mutex
	pages map[string]string
	calls []string
}

func newFakeGetter() *fakeGetter {
	return &fakeGetter{pages: make(map[string]string)}
}

func (f *fakeGetter) serve(url, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pages[url] = body
}

func (f *fakeGetter) Get(ctx context.Context, url string, retries int) (*fetch.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, url)

	body, ok := f.pages[url]
	if !ok {
		return nil, fmt.Errorf("%w: %s", fetch.ErrGone, url)
	}
	return &fetch.Page{URL: url, Status: 200, Body: []byte(body)}, nil
}

// searchCalls counts requests that were not post detail or listing JSON
func (f *fakeGetter) searchCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if !strings.Contains(c, ".json") {
			n++
		}
	}
	return n
}

func (f *fakeGetter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type memSink struct {
	mu   sync.Mutex
	rows []models.RawRow
}

func (m *memSink) Append(rows []models.RawRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = append(m.rows, rows...)
	return nil
}

func (m *memSink) posts() []models.RawRow {
	var out []models.RawRow
	for _, r := range m.rows {
		if r.IsPost() {
			out = append(out, r)
		}
	}
	return out
}

func (m *memSink) comments() []models.RawRow {
	var out []models.RawRow
	for _, r := range m.rows {
		if !r.IsPost() {
			out = append(out, r)
		}
	}
	return out
}

func newEnv(f *fakeGetter) *Env {
	return &Env{
		Fetch:         f,
		Endpoints:     endpoints,
		Seen:          state.NewSeenIDs(),
		Tracker:       state.NewTracker("test", "ALL", state.Bounds{}, 1, nil),
		Signals:       state.NewSignals(time.Second),
		Blocked:       NewBlocklist([]string{"AutoModerator", "timee_bot"}),
		Log:           logrus.NewEntry(logrus.New()),
		SearchRetries: 1,
		DetailRetries: 1,
	}
}

func january() config.Window {
	return config.Window{
		Start: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 1, 31, 23, 59, 59, 0, time.UTC),
	}
}

func day(d int) time.Time {
	return time.Date(2024, 1, d, 12, 0, 0, 0, time.UTC)
}

var longAgo = time.Date(2019, 6, 1, 0, 0, 0, 0, time.UTC)

type fakeComment struct {
	id      string
	author  string
	body    string
	created time.Time
	replies []fakeComment
}

func commentThing(c fakeComment) map[string]any {
	var replies any = ""
	if len(c.replies) > 0 {
		children := make([]any, 0, len(c.replies))
		for _, r := range c.replies {
			children = append(children, commentThing(r))
		}
		replies = map[string]any{"kind": "Listing", "data": map[string]any{"children": children}}
	}
	return map[string]any{"kind": "t1", "data": map[string]any{
		"id":          c.id,
		"parent_id":   "t3_parent",
		"author":      c.author,
		"body":        c.body,
		"score":       1,
		"created_utc": float64(c.created.Unix()),
		"permalink":   "/c/" + c.id + "/",
		"replies":     replies,
	}}
}

func detailJSON(community, id string, created time.Time, comments ...fakeComment) string {
	children := make([]any, 0, len(comments))
	for _, c := range comments {
		children = append(children, commentThing(c))
	}
	doc := []any{
		map[string]any{"kind": "Listing", "data": map[string]any{"children": []any{
			map[string]any{"kind": "t3", "data": map[string]any{
				"id":          id,
				"subreddit":   community,
				"author":      "op",
				"title":       "Post " + id,
				"selftext":    "body of " + id,
				"score":       10,
				"created_utc": float64(created.Unix()),
				"permalink":   fmt.Sprintf("/r/%s/comments/%s/slug/", community, id),
			}},
		}}},
		map[string]any{"kind": "Listing", "data": map[string]any{"children": children}},
	}
	data, _ := json.Marshal(doc)
	return string(data)
}

func postSearchPage(next string, ids ...string) string {
	var b strings.Builder
	b.WriteString("<html><body>")
	for _, id := range ids {
		fmt.Fprintf(&b, `<a data-testid="post-title" href="/r/test/comments/%s/slug/">Post %s</a>`, id, id)
	}
	if next != "" {
		fmt.Fprintf(&b, `<faceplate-partial src="%s"></faceplate-partial>`, html.EscapeString(next))
	}
	b.WriteString("</body></html>")
	return b.String()
}

type commentRef struct {
	community, postID, commentID string
}

func commentSearchPage(next string, refs ...commentRef) string {
	var b strings.Builder
	b.WriteString("<html><body>")
	for _, r := range refs {
		ctx := fmt.Sprintf(`{"post":{"id":"t3_%s"},"comment":{"id":"t1_%s"},"subreddit":{"name":"%s"}}`, r.postID, r.commentID, r.community)
		fmt.Fprintf(&b, `<div data-testid="search-sdui-comment-unit"><search-telemetry-tracker data-faceplate-tracking-context="%s"></search-telemetry-tracker></div>`, html.EscapeString(ctx))
	}
	if next != "" {
		fmt.Fprintf(&b, `<faceplate-partial src="%s"></faceplate-partial>`, html.EscapeString(next))
	}
	b.WriteString("</body></html>")
	return b.String()
}

type listingPost struct {
	id      string
	created time.Time
}

func listingJSON(after string, posts ...listingPost) string {
	children := make([]any, 0, len(posts))
	for _, p := range posts {
		children = append(children, map[string]any{"kind": "t3", "data": map[string]any{
			"id":          p.id,
			"permalink":   fmt.Sprintf("/r/test/comments/%s/slug/", p.id),
			"created_utc": float64(p.created.Unix()),
		}})
	}
	var afterValue any
	if after != "" {
		afterValue = after
	}
	data, _ := json.Marshal(map[string]any{"kind": "Listing", "data": map[string]any{"after": afterValue, "children": children}})
	return string(data)
}
