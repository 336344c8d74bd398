package sources

import (
	"context"
	"errors"
	"fmt"

	"github.com/harvestlab/reddit-harvester/internal/fetch"
	"github.com/harvestlab/reddit-harvester/internal/models"
	"github.com/harvestlab/reddit-harvester/internal/reddit"
	"github.com/harvestlab/reddit-harvester/internal/state"
	"github.com/sirupsen/logrus"
)

// consecutiveOldLimit consecutive items older than the window stop a newest-first traversal
const consecutiveOldLimit = 5

// Blocklist holds authors whose comments are never emitted
type Blocklist map[string]struct{}

func NewBlocklist(authors []string) Blocklist {
	b := make(Blocklist, len(authors))
	for _, a := range authors {
		if a != "" {
			b[a] = struct{}{}
		}
	}
	return b
}

func (b Blocklist) Blocked(author string) bool {
	if author == "" {
		return false
	}
	_, ok := b[author]
	return ok
}

// Env is the run-wide state every strategy shares
type Env struct {
	Fetch     fetch.Getter
	Endpoints reddit.Endpoints
	Seen      *state.SeenIDs
	Tracker   *state.Tracker
	Signals   *state.Signals
	Blocked   Blocklist
	Log       *logrus.Entry

	SearchRetries int
	DetailRetries int
}

func (e *Env) logger(strategy string, task Task) *logrus.Entry {
	fields := logrus.Fields{"strategy": strategy, "group": task.Group}
	if task.Keyword != "" {
		fields["keyword"] = task.Keyword
	}
	if task.Community != "" {
		fields["community"] = task.Community
	}
	return e.Log.WithFields(fields)
}

// stopped reports whether the run was stopped or ctx is done
func (e *Env) stopped(ctx context.Context) bool {
	return e.Signals.Stopped() || ctx.Err() != nil
}

// detail fetches and decodes one post with its comment tree
func (e *Env) detail(ctx context.Context, community, postID, postURL string) (*reddit.Detail, error) {
	page, err := e.Fetch.Get(ctx, e.Endpoints.PostDetail(community, postID), e.DetailRetries)
	if err != nil {
		return nil, err
	}
	d, err := e.Endpoints.ParseDetail(page.Body, community, postID, postURL)
	if err != nil {
		return nil, fmt.Errorf("post %s: %w", postID, err)
	}
	return d, nil
}

// commentRows emits the claimable comments of a post that pass the blocklist and keep.
// keep may be nil.
func (e *Env) commentRows(task Task, d *reddit.Detail, source string, keep func(models.Comment) bool) []models.RawRow {
	var rows []models.RawRow
	for _, c := range reddit.Flatten(d.Comments) {
		if e.Blocked.Blocked(c.Author) {
			continue
		}
		if keep != nil && !keep(c) {
			continue
		}
		if !e.Seen.ClaimComment(d.Post.Community, d.Post.ID, c.ID) {
			continue
		}
		rows = append(rows, models.CommentRow(d.Post, c, source, reddit.FormatDate))
	}
	e.Tracker.CommentsFetched(task.Group, len(rows))
	return rows
}

func (e *Env) postRow(task Task, d *reddit.Detail, source string) models.RawRow {
	e.Tracker.PostFetched(task.Group)
	return models.PostRow(d.Post, source, reddit.FormatDate)
}

// flush appends rows to the task sink
func flush(task Task, rows []models.RawRow) error {
	if len(rows) == 0 {
		return nil
	}
	if err := task.Sink.Append(rows); err != nil {
		return fmt.Errorf("failed to append %d rows: %w", len(rows), err)
	}
	return nil
}

// fetchFailed logs a failed page fetch unless it was caused by a stop
func fetchFailed(log *logrus.Entry, err error, page int) {
	if errors.Is(err, fetch.ErrStopped) {
		log.Infof("Stop requested, ending traversal at page %d", page)
		return
	}
	log.Warnf("Page %d failed, ending traversal: %v", page, err)
}
