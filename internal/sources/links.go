package sources

import (
	"context"
	"fmt"

	"github.com/harvestlab/reddit-harvester/internal/models"
	"github.com/harvestlab/reddit-harvester/internal/reddit"
)

// Links resolves explicit post URLs and emits each post with all its comments.
// Time window and count cap do not apply.
type Links struct {
	env *Env
}

var _ Strategy = (*Links)(nil)

func NewLinks(env *Env) *Links {
	return &Links{env: env}
}

func (s *Links) Name() string {
	return "links"
}

func (s *Links) Run(ctx context.Context, task Task) error {
	e := s.env
	log := e.logger(s.Name(), task)

	for i, link := range task.Links {
		n := i + 1
		if !e.Signals.Checkpoint(ctx) {
			log.Info("Stop requested, ending link resolution")
			return nil
		}

		community, postID, err := reddit.ParsePostURL(link)
		if err != nil {
			log.Warnf("Skipping link %d %s: %v", n, link, err)
			continue
		}

		if !e.Seen.ClaimPost(postID) {
			log.Infof("Link %d %s already captured", n, link)
			continue
		}

		d, err := e.detail(ctx, community, postID, link)
		if err != nil {
			log.Warnf("Link %d r/%s id=%s failed: %v", n, community, postID, err)
			continue
		}

		rows := append(
			[]models.RawRow{e.postRow(task, d, fmt.Sprintf("link_%d", n))},
			e.commentRows(task, d, fmt.Sprintf("link_comments_%d", n), nil)...,
		)
		if err := flush(task, rows); err != nil {
			return err
		}

		log.Infof("Link %d/%d done: post_id=%s rows=%d", n, len(task.Links), postID, len(rows))
	}

	return nil
}
