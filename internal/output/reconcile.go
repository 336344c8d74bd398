package output

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/harvestlab/reddit-harvester/internal/models"
	"github.com/harvestlab/reddit-harvester/internal/sink"
	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
)

// Sheet names of the artifact
const (
	SheetPosts    = "posts"
	SheetComments = "comments"
	SheetMerged   = "merged"
)

// Summary reports what one reconciliation wrote
type Summary struct {
	Artifact       string
	RawPostRows    int
	Posts          int
	Comments       int
	Merged         int
	MergedComments int
}

// Reconciler merges a group's raw sinks into one spreadsheet artifact
type Reconciler struct {
	log *logrus.Entry
}

func NewReconciler(log *logrus.Entry) *Reconciler {
	return &Reconciler{log: log.WithField("component", "reconciler")}
}

// Result is the in-memory outcome of a reconciliation before it is written
type Result struct {
	RawPosts       []models.RawRow
	SearchComments []models.RawRow
	Merged         []models.OutputRow
	Posts          int
}

type mergedRow struct {
	row     models.OutputRow
	postURL string
}

// Merge applies deduplication and projection to the two stages' rows
func (r *Reconciler) Merge(postStage, commentStage []models.RawRow) *Result {
	var posts, incidental []models.RawRow
	for _, row := range postStage {
		if strings.TrimSpace(row.CommentID) == "" {
			posts = append(posts, row)
		} else {
			incidental = append(incidental, row)
		}
	}

	before := len(posts)
	posts = dedup(posts, func(row models.RawRow) string { return row.PostID })
	r.log.Infof("posts: %d -> %d (by post_id)", before, len(posts))

	before = len(commentStage)
	searchComments := dedup(dropBlankBodies(commentStage), bodyKey)
	r.log.Infof("comments: %d -> %d (by comment_body)", before, len(searchComments))

	before = len(incidental) + len(searchComments)
	allComments := dedup(append(dropBlankBodies(incidental), searchComments...), bodyKey)
	r.log.Infof("post-stage and search comments: %d -> %d (by comment_body)", before, len(allComments))

	merged := make([]mergedRow, 0, len(posts)+len(allComments))
	for _, p := range posts {
		merged = append(merged, mergedRow{
			row: models.OutputRow{
				Subreddit:   p.PostSubreddit,
				Username:    p.PostAuthor,
				AuthorFlair: p.PostAuthorFlair,
				ID:          p.PostID,
				PostTitle:   p.PostTitle,
				Score:       p.PostScore,
				CreatedUTC:  p.PostCreatedUTC,
				URL:         p.PostURL,
				Text:        p.PostBody,
				Type:        models.TypePost,
			},
			postURL: p.PostURL,
		})
	}
	for _, c := range allComments {
		merged = append(merged, mergedRow{
			row: models.OutputRow{
				Subreddit:   c.PostSubreddit,
				Username:    c.CommentAuthor,
				AuthorFlair: c.CommentAuthorFlair,
				ID:          c.CommentID,
				ParentID:    c.CommentParentID,
				PostTitle:   c.PostTitle,
				Score:       c.CommentScore,
				CreatedUTC:  c.CommentCreatedUTC,
				URL:         c.CommentURL,
				Text:        c.CommentBody,
				Type:        models.TypeComment,
			},
			postURL: c.PostURL,
		})
	}

	before = len(merged)
	seen := make(map[string]bool, len(merged))
	kept := merged[:0]
	for _, m := range merged {
		id := strings.TrimSpace(m.row.ID)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		kept = append(kept, m)
	}

	counts := make(map[string]int)
	for _, m := range kept {
		if m.row.Type == models.TypeComment {
			counts[m.postURL]++
		}
	}

	result := &Result{
		RawPosts:       postStage,
		SearchComments: searchComments,
		Merged:         make([]models.OutputRow, 0, len(kept)),
		Posts:          len(posts),
	}
	for _, m := range kept {
		if m.row.Type == models.TypePost {
			m.row.CommentCount = counts[m.postURL]
		}
		result.Merged = append(result.Merged, m.row)
	}
	r.log.Infof("merged: %d -> %d (by id)", before, len(result.Merged))

	return result
}

// Reconcile reads the raw sinks at p, writes the artifact and deletes the sinks
func (r *Reconciler) Reconcile(p Paths) (*Summary, error) {
	postStage, err := sink.ReadRows(p.Posts)
	if err != nil {
		return nil, err
	}
	commentStage, err := sink.ReadRows(p.Comments)
	if err != nil {
		return nil, err
	}

	result := r.Merge(postStage, commentStage)
	if err := WriteWorkbook(p.Artifact, result); err != nil {
		return nil, err
	}

	for _, path := range []string{p.Posts, p.Comments} {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			r.log.Warnf("Failed to remove raw sink %s: %v", path, err)
		}
	}

	summary := &Summary{
		Artifact:    p.Artifact,
		RawPostRows: len(result.RawPosts),
		Posts:       result.Posts,
		Comments:    len(result.SearchComments),
		Merged:      len(result.Merged),
	}
	for _, row := range result.Merged {
		if row.Type == models.TypeComment {
			summary.MergedComments++
		}
	}

	r.log.Infof("Wrote %s: posts=%d comments=%d merged=%d", p.Artifact, summary.Posts, summary.Comments, summary.Merged)
	return summary, nil
}

func dedup(rows []models.RawRow, key func(models.RawRow) string) []models.RawRow {
	seen := make(map[string]bool, len(rows))
	var out []models.RawRow
	for _, row := range rows {
		k := key(row)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, row)
	}
	return out
}

func bodyKey(row models.RawRow) string {
	return row.CommentBody
}

func dropBlankBodies(rows []models.RawRow) []models.RawRow {
	var out []models.RawRow
	for _, row := range rows {
		if strings.TrimSpace(row.CommentBody) != "" {
			out = append(out, row)
		}
	}
	return out
}

var numericColumns = map[string]bool{
	"post_ups": true, "post_downs": true, "post_score": true,
	"comment_ups": true, "comment_downs": true, "comment_score": true,
	"text_score": true, "post_comment_count": true,
}

// WriteWorkbook writes the three sheets of result to path
func WriteWorkbook(path string, result *Result) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetPosts); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}
	for _, name := range []string{SheetComments, SheetMerged} {
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("failed to add sheet %s: %w", name, err)
		}
	}

	rawRecords := func(rows []models.RawRow) [][]string {
		out := make([][]string, 0, len(rows))
		for _, row := range rows {
			out = append(out, row.Record())
		}
		return out
	}
	mergedRecords := make([][]string, 0, len(result.Merged))
	for _, row := range result.Merged {
		mergedRecords = append(mergedRecords, row.Record())
	}

	sheets := []struct {
		name    string
		header  []string
		records [][]string
	}{
		{SheetPosts, models.RawColumns, rawRecords(result.RawPosts)},
		{SheetComments, models.RawColumns, rawRecords(result.SearchComments)},
		{SheetMerged, models.OutputColumns, mergedRecords},
	}

	for _, s := range sheets {
		if err := writeSheet(f, s.name, s.header, s.records); err != nil {
			return err
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook %s: %w", path, err)
	}
	return nil
}

func writeSheet(f *excelize.File, name string, header []string, records [][]string) error {
	sw, err := f.NewStreamWriter(name)
	if err != nil {
		return fmt.Errorf("failed to open sheet %s: %w", name, err)
	}

	headerCells := make([]interface{}, len(header))
	for i, h := range header {
		headerCells[i] = h
	}
	if err := sw.SetRow("A1", headerCells); err != nil {
		return fmt.Errorf("failed to write %s header: %w", name, err)
	}

	for i, record := range records {
		cells := make([]interface{}, len(record))
		for j, v := range record {
			cells[j] = v
			if j < len(header) && numericColumns[header[j]] {
				if n, err := strconv.Atoi(v); err == nil {
					cells[j] = n
				}
			}
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, cells); err != nil {
			return fmt.Errorf("failed to write %s row %d: %w", name, i+1, err)
		}
	}

	return sw.Flush()
}
