package sources

import (
	"context"

	"github.com/harvestlab/reddit-harvester/internal/models"
	"github.com/harvestlab/reddit-harvester/internal/reddit"
)

// PostSearch follows the keyword post search and emits each new post, plus its
// comments when the task asks for them
type PostSearch struct {
	env *Env
}

var _ Strategy = (*PostSearch)(nil)

func NewPostSearch(env *Env) *PostSearch {
	return &PostSearch{env: env}
}

func (s *PostSearch) Name() string {
	return "post-search"
}

func (s *PostSearch) Run(ctx context.Context, task Task) error {
	e := s.env
	log := e.logger(s.Name(), task)

	postSource := "posts_" + task.Keyword
	commentSource := "post_all_comments_" + task.Keyword

	url := e.Endpoints.Search(task.Keyword, task.Community, reddit.KindPosts, task.Sort, task.TimeRange)
	consecutiveOld := 0
	fetched := 0

	if task.Window.Capped() {
		log.Infof("Stopping after %d posts", task.Window.Cap)
	} else {
		log.Infof("Stopping after %d consecutive posts older than the window", consecutiveOldLimit)
	}

	for page := 1; url != ""; page++ {
		if !e.Signals.Checkpoint(ctx) {
			log.Info("Stop requested, ending post search")
			return nil
		}

		log.Infof("Fetching page %d: %s", page, url)
		resp, err := e.Fetch.Get(ctx, url, e.SearchRetries)
		if err != nil {
			fetchFailed(log, err, page)
			return nil
		}

		refs, next, err := e.Endpoints.ParsePostSearch(resp.Body)
		if err != nil {
			log.Warnf("Page %d could not be parsed, ending traversal: %v", page, err)
			return nil
		}

		var rows []models.RawRow
		fresh, halt := 0, false

		for _, ref := range refs {
			if e.stopped(ctx) {
				log.Info("Stop requested, leaving page loop")
				return flush(task, rows)
			}

			if task.Window.Capped() && fetched >= task.Window.Cap {
				log.Infof("Reached %d posts, stopping", task.Window.Cap)
				halt = true
				break
			}

			if !e.Seen.ClaimPost(ref.ID) {
				continue
			}
			fresh++

			d, err := e.detail(ctx, task.Community, ref.ID, ref.URL)
			if err != nil {
				log.Warnf("Skipping post %s: %v", ref.ID, err)
				continue
			}

			created := d.Post.CreatedAt
			if task.Window.BeforeStart(created) {
				consecutiveOld++
				if consecutiveOld >= consecutiveOldLimit {
					log.Infof("%d consecutive posts older than the window, stopping", consecutiveOld)
					halt = true
					break
				}
				continue
			}
			if !task.Window.Contains(created) {
				continue
			}
			consecutiveOld = 0

			rows = append(rows, e.postRow(task, d, postSource))
			fetched++

			if task.FetchComments {
				rows = append(rows, e.commentRows(task, d, commentSource, func(c models.Comment) bool {
					return task.Window.Contains(c.CreatedAt)
				})...)
			}
		}

		log.Infof("Page %d: new_posts=%d rows=%d next=%t", page, fresh, len(rows), next != "")

		if err := flush(task, rows); err != nil {
			return err
		}

		if halt {
			return nil
		}
		if task.Window.Capped() && fetched >= task.Window.Cap {
			log.Infof("Reached %d posts, stopping", task.Window.Cap)
			return nil
		}
		url = next
	}

	return nil
}
