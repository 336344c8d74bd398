package models

import (
	"strconv"
	"time"
)

// Post is a top-level submission
type Post struct {
	ID          string    `json:"id"`
	Community   string    `json:"subreddit"`
	Author      string    `json:"author"`
	AuthorFlair string    `json:"author_flair"`
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	Ups         int       `json:"ups"`
	Downs       int       `json:"downs"`
	Score       int       `json:"score"`
	CreatedAt   time.Time `json:"created_at"`
	URL         string    `json:"url"`
}

// Comment is a reply attached to a post or another comment
type Comment struct {
	ID          string    `json:"id"`
	ParentID    string    `json:"parent_id"`
	Author      string    `json:"author"`
	AuthorFlair string    `json:"author_flair"`
	Body        string    `json:"body"`
	Ups         int       `json:"ups"`
	Downs       int       `json:"downs"`
	Score       int       `json:"score"`
	CreatedAt   time.Time `json:"created_at"`
	URL         string    `json:"url"`
}

// RawColumns is the column order of the intermediate CSV sinks
var RawColumns = []string{
	"post_subreddit", "post_id", "post_author", "post_author_flair", "post_title",
	"post_body", "post_ups", "post_downs", "post_score", "post_created_utc", "post_url",
	"comment_id", "comment_parent_id", "comment_author", "comment_author_flair",
	"comment_body", "comment_ups", "comment_downs", "comment_score",
	"comment_created_utc", "comment_url", "source",
}

// RawRow is one intermediate sink record. A row with an empty CommentID describes a post.
type RawRow struct {
	PostSubreddit   string
	PostID          string
	PostAuthor      string
	PostAuthorFlair string
	PostTitle       string
	PostBody        string
	PostUps         string
	PostDowns       string
	PostScore       string
	PostCreatedUTC  string
	PostURL         string

	CommentID          string
	CommentParentID    string
	CommentAuthor      string
	CommentAuthorFlair string
	CommentBody        string
	CommentUps         string
	CommentDowns       string
	CommentScore       string
	CommentCreatedUTC  string
	CommentURL         string

	Source string
}

// IsPost reports whether the row carries a post rather than a comment
func (r RawRow) IsPost() bool {
	return r.CommentID == ""
}

// Record returns the row's values in RawColumns order
func (r RawRow) Record() []string {
	return []string{
		r.PostSubreddit, r.PostID, r.PostAuthor, r.PostAuthorFlair, r.PostTitle,
		r.PostBody, r.PostUps, r.PostDowns, r.PostScore, r.PostCreatedUTC, r.PostURL,
		r.CommentID, r.CommentParentID, r.CommentAuthor, r.CommentAuthorFlair,
		r.CommentBody, r.CommentUps, r.CommentDowns, r.CommentScore,
		r.CommentCreatedUTC, r.CommentURL, r.Source,
	}
}

// RawRowFromMap builds a row from a header-keyed record. Missing columns stay empty.
func RawRowFromMap(m map[string]string) RawRow {
	return RawRow{
		PostSubreddit:      m["post_subreddit"],
		PostID:             m["post_id"],
		PostAuthor:         m["post_author"],
		PostAuthorFlair:    m["post_author_flair"],
		PostTitle:          m["post_title"],
		PostBody:           m["post_body"],
		PostUps:            m["post_ups"],
		PostDowns:          m["post_downs"],
		PostScore:          m["post_score"],
		PostCreatedUTC:     m["post_created_utc"],
		PostURL:            m["post_url"],
		CommentID:          m["comment_id"],
		CommentParentID:    m["comment_parent_id"],
		CommentAuthor:      m["comment_author"],
		CommentAuthorFlair: m["comment_author_flair"],
		CommentBody:        m["comment_body"],
		CommentUps:         m["comment_ups"],
		CommentDowns:       m["comment_downs"],
		CommentScore:       m["comment_score"],
		CommentCreatedUTC:  m["comment_created_utc"],
		CommentURL:         m["comment_url"],
		Source:             m["source"],
	}
}

// PostRow renders a post as a sink row
func PostRow(p Post, source string, dateOf func(time.Time) string) RawRow {
	return RawRow{
		PostSubreddit:   p.Community,
		PostID:          p.ID,
		PostAuthor:      p.Author,
		PostAuthorFlair: p.AuthorFlair,
		PostTitle:       p.Title,
		PostBody:        p.Body,
		PostUps:         strconv.Itoa(p.Ups),
		PostDowns:       strconv.Itoa(p.Downs),
		PostScore:       strconv.Itoa(p.Score),
		PostCreatedUTC:  dateOf(p.CreatedAt),
		PostURL:         p.URL,
		Source:          source,
	}
}

// CommentRow renders a comment together with its post context. The post columns
// are filled exactly as on the post's own row.
func CommentRow(p Post, c Comment, source string, dateOf func(time.Time) string) RawRow {
	row := PostRow(p, source, dateOf)
	row.CommentID = c.ID
	row.CommentParentID = c.ParentID
	row.CommentAuthor = c.Author
	row.CommentAuthorFlair = c.AuthorFlair
	row.CommentBody = c.Body
	row.CommentUps = strconv.Itoa(c.Ups)
	row.CommentDowns = strconv.Itoa(c.Downs)
	row.CommentScore = strconv.Itoa(c.Score)
	row.CommentCreatedUTC = dateOf(c.CreatedAt)
	row.CommentURL = c.URL
	return row
}

// OutputColumns is the column order of the merged sheet
var OutputColumns = []string{
	"post_subreddit", "username", "author_flair", "id", "parent_id", "post_title",
	"text_score", "text_created_utc", "text_url", "text", "type", "post_comment_count",
}

// Row types in the merged sheet
const (
	TypePost    = "post"
	TypeComment = "comment"
)

// OutputRow is one record of the merged sheet
type OutputRow struct {
	Subreddit    string
	Username     string
	AuthorFlair  string
	ID           string
	ParentID     string
	PostTitle    string
	Score        string
	CreatedUTC   string
	URL          string
	Text         string
	Type         string
	CommentCount int
}

// Record returns the row's values in OutputColumns order. The comment count is
// rendered only for posts.
func (o OutputRow) Record() []string {
	count := ""
	if o.Type == TypePost {
		count = strconv.Itoa(o.CommentCount)
	}
	return []string{
		o.Subreddit, o.Username, o.AuthorFlair, o.ID, o.ParentID, o.PostTitle,
		o.Score, o.CreatedUTC, o.URL, o.Text, o.Type, count,
	}
}

// Run statuses
const (
	StatusIdle     = "idle"
	StatusRunning  = "running"
	StatusPaused   = "paused"
	StatusStopped  = "stopped"
	StatusFinished = "finished"
)

// ProgressState is a snapshot of a run's counters
type ProgressState struct {
	RunID           string    `json:"run_id"`
	Mode            string    `json:"mode"`
	Window          string    `json:"window"`
	WindowStart     time.Time `json:"window_start,omitempty"`
	WindowEnd       time.Time `json:"window_end,omitempty"`
	PostCap         int       `json:"post_cap,omitempty"`
	TotalGroups     int       `json:"total_groups"`
	ProcessedGroups int       `json:"processed_groups"`
	HitGroups       int       `json:"hit_groups"`
	PostsFetched    int       `json:"posts_fetched"`
	PostsSaved      int       `json:"posts_saved"`
	CommentsFetched int       `json:"comments_fetched"`
	CommentsSaved   int       `json:"comments_saved"`
	ActiveKeywords  []string  `json:"active_keywords"`
	CurrentKeyword  string    `json:"current_keyword"`
	StartedAt       time.Time `json:"started_at"`
	FinishedAt      time.Time `json:"finished_at,omitempty"`
	Status          string    `json:"status"`
	OutputFiles     []string  `json:"output_files"`
}

// ProgressEvent is what observers receive on every state change
type ProgressEvent struct {
	Type  string        `json:"type"`
	State ProgressState `json:"state"`
}

// RunSummary describes a completed run for notification channels
type RunSummary struct {
	RunID      string        `json:"run_id"`
	Mode       string        `json:"mode"`
	Status     string        `json:"status"`
	Artifact   string        `json:"artifact"`
	Posts      int           `json:"posts"`
	Comments   int           `json:"comments"`
	HitGroups  int           `json:"hit_groups"`
	Duration   time.Duration `json:"duration"`
	FinishedAt time.Time     `json:"finished_at"`
}
