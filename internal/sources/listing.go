package sources

import (
	"context"

	"github.com/harvestlab/reddit-harvester/internal/models"
	"github.com/harvestlab/reddit-harvester/internal/reddit"
)

// Listing walks a community's newest posts without a keyword and always emits
// each post's comments
type Listing struct {
	env *Env
}

var _ Strategy = (*Listing)(nil)

func NewListing(env *Env) *Listing {
	return &Listing{env: env}
}

func (s *Listing) Name() string {
	return "listing-new"
}

func (s *Listing) Run(ctx context.Context, task Task) error {
	e := s.env
	log := e.logger(s.Name(), task)

	if task.Community == "" {
		log.Warn("Listing needs a community, skipping")
		return nil
	}

	postSource := "listing_new_" + task.Community
	commentSource := "listing_new_comments_" + task.Community

	after := ""
	consecutiveOld := 0
	fetched := 0

	for page := 1; ; page++ {
		if !e.Signals.Checkpoint(ctx) {
			log.Info("Stop requested, ending listing")
			return nil
		}

		log.Infof("r/%s page=%d after=%q", task.Community, page, after)
		resp, err := e.Fetch.Get(ctx, e.Endpoints.Listing(task.Community, after), e.DetailRetries)
		if err != nil {
			fetchFailed(log, err, page)
			return nil
		}

		entries, next, err := reddit.ParseListing(resp.Body)
		if err != nil {
			log.Warnf("Page %d could not be parsed, ending traversal: %v", page, err)
			return nil
		}
		if len(entries) == 0 {
			log.Infof("r/%s page=%d is empty, stopping", task.Community, page)
			return nil
		}

		var rows []models.RawRow
		halt := false

		for _, entry := range entries {
			if e.stopped(ctx) {
				log.Info("Stop requested, leaving page loop")
				return flush(task, rows)
			}

			if task.Window.Capped() && fetched >= task.Window.Cap {
				log.Infof("Reached %d posts, stopping", task.Window.Cap)
				halt = true
				break
			}

			if !e.Seen.ClaimPost(entry.ID) {
				continue
			}

			if task.Window.BeforeStart(entry.CreatedAt) {
				consecutiveOld++
				if consecutiveOld >= consecutiveOldLimit {
					log.Infof("%d consecutive posts older than the window, stopping", consecutiveOld)
					halt = true
					break
				}
				continue
			}
			if !task.Window.Contains(entry.CreatedAt) {
				continue
			}
			consecutiveOld = 0

			d, err := e.detail(ctx, task.Community, entry.ID, e.Endpoints.Permalink(entry.Permalink))
			if err != nil {
				log.Warnf("Skipping post %s: %v", entry.ID, err)
				continue
			}

			rows = append(rows, e.postRow(task, d, postSource))
			fetched++

			rows = append(rows, e.commentRows(task, d, commentSource, func(c models.Comment) bool {
				return task.Window.Contains(c.CreatedAt)
			})...)
		}

		log.Infof("r/%s page=%d rows=%d next=%t", task.Community, page, len(rows), next != "")

		if err := flush(task, rows); err != nil {
			return err
		}

		if halt || next == "" {
			return nil
		}
		if task.Window.Capped() && fetched >= task.Window.Cap {
			log.Infof("Reached %d posts, stopping", task.Window.Cap)
			return nil
		}
		after = next
	}
}
