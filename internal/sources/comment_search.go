package sources

import (
	"context"

	"github.com/harvestlab/reddit-harvester/internal/models"
	"github.com/harvestlab/reddit-harvester/internal/reddit"
)

// CommentSearch follows the keyword comment search and emits only the comments
// each page newly referenced
type CommentSearch struct {
	env *Env
}

var _ Strategy = (*CommentSearch)(nil)

func NewCommentSearch(env *Env) *CommentSearch {
	return &CommentSearch{env: env}
}

func (s *CommentSearch) Name() string {
	return "comment-search"
}

func (s *CommentSearch) Run(ctx context.Context, task Task) error {
	e := s.env
	log := e.logger(s.Name(), task)
	source := "comments_" + task.Keyword

	url := e.Endpoints.Search(task.Keyword, task.Community, reddit.KindComments, task.Sort, task.TimeRange)
	consecutiveOld := 0
	saved := 0

	for page := 1; url != ""; page++ {
		if !e.Signals.Checkpoint(ctx) {
			log.Info("Stop requested, ending comment search")
			return nil
		}

		resp, err := e.Fetch.Get(ctx, url, e.SearchRetries)
		if err != nil {
			fetchFailed(log, err, page)
			return nil
		}

		groups, next, err := e.Endpoints.ParseCommentSearch(resp.Body)
		if err != nil {
			log.Warnf("Page %d could not be parsed, ending traversal: %v", page, err)
			return nil
		}

		var rows []models.RawRow
		refs, halt := 0, false

		for _, g := range groups {
			if e.stopped(ctx) {
				log.Info("Stop requested, leaving page loop")
				return flush(task, rows)
			}

			fresh := e.Seen.ClaimComments(g.Community, g.PostID, g.CommentIDs)
			if len(fresh) == 0 {
				continue
			}
			refs += len(fresh)

			d, err := e.detail(ctx, g.Community, g.PostID, "")
			if err != nil {
				log.Warnf("Skipping post %s in r/%s: %v", g.PostID, g.Community, err)
				continue
			}

			wanted := make(map[string]bool, len(fresh))
			for _, id := range fresh {
				wanted[id] = true
			}

			emitted := 0
			for _, c := range reddit.Flatten(d.Comments) {
				if !wanted[c.ID] || e.Blocked.Blocked(c.Author) {
					continue
				}

				if !task.Window.Capped() {
					if task.Window.BeforeStart(c.CreatedAt) {
						consecutiveOld++
						if consecutiveOld >= consecutiveOldLimit {
							log.Infof("%d consecutive comments older than the window, stopping", consecutiveOld)
							halt = true
							break
						}
						continue
					}
					if !task.Window.Contains(c.CreatedAt) {
						continue
					}
					consecutiveOld = 0
				}

				rows = append(rows, models.CommentRow(d.Post, c, source, reddit.FormatDate))
				emitted++
				saved++

				if task.Window.Capped() && saved >= task.Window.Cap {
					log.Infof("Reached %d comments, stopping", task.Window.Cap)
					halt = true
					break
				}
			}
			e.Tracker.CommentsFetched(task.Group, emitted)

			if halt {
				break
			}
		}

		log.Infof("Page %d: new_comment_refs=%d rows=%d next=%t", page, refs, len(rows), next != "")

		if err := flush(task, rows); err != nil {
			return err
		}

		if halt {
			return nil
		}
		url = next
	}

	return nil
}
