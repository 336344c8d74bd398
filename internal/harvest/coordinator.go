package harvest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/harvestlab/reddit-harvester/internal/config"
	"github.com/harvestlab/reddit-harvester/internal/fetch"
	"github.com/harvestlab/reddit-harvester/internal/models"
	"github.com/harvestlab/reddit-harvester/internal/notifications"
	"github.com/harvestlab/reddit-harvester/internal/output"
	"github.com/harvestlab/reddit-harvester/internal/reddit"
	"github.com/harvestlab/reddit-harvester/internal/sink"
	"github.com/harvestlab/reddit-harvester/internal/sources"
	"github.com/harvestlab/reddit-harvester/internal/state"
	"github.com/harvestlab/reddit-harvester/internal/storage"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const linksGroup = "LINKS"

// Coordinator runs harvest jobs
type Coordinator struct {
	config   *config.Config
	store    storage.ArtifactStore
	notifier notifications.Notifier
	backoff  *fetch.Backoff
	now      func() time.Time
}

// Option configures a Coordinator
type Option func(*Coordinator)

// WithStore sets where artifacts are copied when a job asks for a secondary copy
func WithStore(store storage.ArtifactStore) Option {
	return func(c *Coordinator) {
		c.store = store
	}
}

// WithNotifier sets the channel that receives run summaries
func WithNotifier(n notifications.Notifier) Option {
	return func(c *Coordinator) {
		c.notifier = n
	}
}

// WithBackoff overrides the fetch layer's delays
func WithBackoff(b fetch.Backoff) Option {
	return func(c *Coordinator) {
		c.backoff = &b
	}
}

func NewCoordinator(cfg *config.Config, opts ...Option) *Coordinator {
	c := &Coordinator{
		config: cfg,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Hooks are the observers of one run. Both are optional.
type Hooks struct {
	Progress state.ProgressSink
	Message  MessageSink
}

// Handle controls a started run
type Handle struct {
	RunID string

	signals *state.Signals
	tracker *state.Tracker
	done    chan struct{}

	mu      sync.Mutex
	summary *models.RunSummary
}

func (h *Handle) Pause() {
	h.signals.Pause()
	h.tracker.SetStatus(models.StatusPaused)
}

// Paused reports whether a pause is in effect
func (h *Handle) Paused() bool {
	return h.signals.Paused()
}

func (h *Handle) Resume() {
	h.signals.Resume()
	if !h.signals.Stopped() {
		h.tracker.SetStatus(models.StatusRunning)
	}
}

// Stop asks every worker to finish at its next checkpoint
func (h *Handle) Stop() {
	h.signals.Stop()
}

func (h *Handle) State() models.ProgressState {
	return h.tracker.Snapshot()
}

// Done is closed when the run has reached a terminal status
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Wait blocks until the run ends and returns its summary
func (h *Handle) Wait() *models.RunSummary {
	<-h.done
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.summary
}

// run is the state of one job execution
type run struct {
	job     *config.Job
	window  config.Window
	outDir  string
	started time.Time

	log        *logrus.Entry
	signals    *state.Signals
	tracker    *state.Tracker
	seen       *state.SeenIDs
	reconciler *output.Reconciler

	postSearch    sources.Strategy
	commentSearch sources.Strategy
	listing       sources.Strategy
	links         sources.Strategy

	artifacts []string
}

// Run executes job to completion. Only configuration errors are returned.
func (c *Coordinator) Run(ctx context.Context, job *config.Job, hooks Hooks) (*models.RunSummary, error) {
	h, err := c.Start(ctx, job, hooks)
	if err != nil {
		return nil, err
	}
	return h.Wait(), nil
}

// Start validates job and runs it in the background
func (c *Coordinator) Start(ctx context.Context, job *config.Job, hooks Hooks) (*Handle, error) {
	r, err := c.prepare(job, hooks)
	if err != nil {
		return nil, err
	}

	h := &Handle{
		RunID:   r.tracker.Snapshot().RunID,
		signals: r.signals,
		tracker: r.tracker,
		done:    make(chan struct{}),
	}

	go func() {
		defer close(h.done)
		summary := c.execute(ctx, r)
		h.mu.Lock()
		h.summary = summary
		h.mu.Unlock()
	}()

	return h, nil
}

func (c *Coordinator) prepare(job *config.Job, hooks Hooks) (*run, error) {
	if err := job.Validate(); err != nil {
		return nil, fmt.Errorf("invalid job: %w", err)
	}

	var window config.Window
	if job.Mode != config.ModeLinks {
		w, err := job.Window()
		if err != nil {
			return nil, fmt.Errorf("invalid job: %w", err)
		}
		window = w
	}

	outDir := job.OutputDir
	if outDir == "" {
		outDir = c.config.OutputDir
	}
	if outDir == "" {
		outDir = "."
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory %s: %w", outDir, err)
	}

	runID := state.NewRunID()
	log := newRunLogger(hooks.Message).WithField("run", runID)

	signals := state.NewSignals(c.config.PausePollInterval)
	signals.OnWait(func() {
		log.Info("Paused, waiting for resume")
	})

	totalGroups := 1
	if job.Mode != config.ModeLinks {
		totalGroups = len(job.Groups())
	}
	tracker := state.NewTracker(runID, job.Mode.String(), windowBounds(job, window), totalGroups, hooks.Progress)

	client, err := fetch.NewClient(fetch.Options{
		Proxies:    c.config.Proxies,
		UserAgents: c.config.UserAgents,
		Timeout:    c.config.FetchTimeout,
		MaxRetries: c.config.FetchMaxRetries,
		RateLimit:  c.config.FetchRateLimit,
		Backoff:    c.backoff,
		Logger:     log,
	}, signals)
	if err != nil {
		return nil, fmt.Errorf("failed to build fetch client: %w", err)
	}

	env := &sources.Env{
		Fetch:         client,
		Endpoints:     reddit.NewEndpoints(c.config.BaseURL),
		Seen:          state.NewSeenIDs(),
		Tracker:       tracker,
		Signals:       signals,
		Blocked:       sources.NewBlocklist(c.config.BlockedAuthors),
		Log:           log,
		SearchRetries: c.config.FetchMaxRetries,
		DetailRetries: c.config.DetailMaxRetries,
	}

	return &run{
		job:           job,
		window:        window,
		outDir:        outDir,
		started:       c.now(),
		log:           log,
		signals:       signals,
		tracker:       tracker,
		seen:          env.Seen,
		reconciler:    output.NewReconciler(log),
		postSearch:    sources.NewPostSearch(env),
		commentSearch: sources.NewCommentSearch(env),
		listing:       sources.NewListing(env),
		links:         sources.NewLinks(env),
	}, nil
}

func windowBounds(job *config.Job, w config.Window) state.Bounds {
	switch {
	case job.Mode == config.ModeLinks:
		return state.Bounds{Label: "links"}
	case w.Capped():
		return state.Bounds{Label: fmt.Sprintf("latest %d", w.Cap), Cap: w.Cap}
	default:
		return state.Bounds{
			Label: w.Start.Format("2006-01-02") + " ~ " + w.End.Format("2006-01-02"),
			Start: w.Start,
			End:   w.End,
		}
	}
}

func (r *run) stopped(ctx context.Context) bool {
	return r.signals.Stopped() || ctx.Err() != nil
}

func (c *Coordinator) execute(ctx context.Context, r *run) *models.RunSummary {
	r.log.Infof("Run started: mode=%s window=%q concurrency=%d", r.job.Mode, r.tracker.Snapshot().Window, r.job.Concurrency)

	if r.job.Mode == config.ModeLinks {
		c.runLinks(ctx, r)
	} else {
		for _, group := range r.job.Groups() {
			if r.stopped(ctx) {
				break
			}
			c.runGroup(ctx, r, group)
		}
	}

	outputs := append([]string(nil), r.artifacts...)
	final := ""
	switch len(r.artifacts) {
	case 0:
	case 1:
		final = r.artifacts[0]
	default:
		bundle := filepath.Join(r.outDir, output.BundleName(c.now()))
		if err := output.Bundle(bundle, r.artifacts); err != nil {
			r.log.Errorf("Failed to bundle %d artifacts: %v", len(r.artifacts), err)
		} else {
			r.log.Infof("Bundled %d artifacts into %s", len(r.artifacts), bundle)
			final = bundle
			outputs = append(outputs, bundle)
		}
	}
	r.tracker.SetOutputFiles(outputs)

	status := models.StatusFinished
	if r.stopped(ctx) {
		status = models.StatusStopped
	}
	r.tracker.Finish(status)

	snap := r.tracker.Snapshot()
	summary := &models.RunSummary{
		RunID:      snap.RunID,
		Mode:       snap.Mode,
		Status:     status,
		Artifact:   final,
		Posts:      snap.PostsSaved,
		Comments:   snap.CommentsSaved,
		HitGroups:  snap.HitGroups,
		Duration:   snap.FinishedAt.Sub(r.started),
		FinishedAt: snap.FinishedAt,
	}
	seenPosts, seenComments := r.seen.Counts()
	r.log.Infof("Run %s: posts=%d comments=%d artifact=%q in %v (claimed %d posts, %d comments)",
		status, summary.Posts, summary.Comments, final, summary.Duration, seenPosts, seenComments)

	if c.notifier != nil {
		nctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := c.notifier.SendRunSummary(nctx, summary); err != nil {
			r.log.Errorf("Failed to send run summary: %v", err)
		}
	}

	return summary
}

// runGroup crawls every keyword of group over every target, then reconciles the group
func (c *Coordinator) runGroup(ctx context.Context, r *run, group config.KeywordGroup) {
	log := r.log.WithField("group", group.Name)
	paths := output.PathsFor(r.outDir, output.GroupPrefix(group.Name, r.job.TargetLabel()))

	posts, err := sink.Create(paths.Posts)
	if err != nil {
		log.Errorf("Skipping group: %v", err)
		r.tracker.GroupProcessed()
		return
	}
	comments, err := sink.Create(paths.Comments)
	if err != nil {
		log.Errorf("Skipping group: %v", err)
		if rmErr := posts.Remove(); rmErr != nil {
			log.Warnf("Failed to remove %s: %v", posts.Path(), rmErr)
		}
		r.tracker.GroupProcessed()
		return
	}

	log.Infof("Group started: keywords=%d targets=%d", len(group.Keywords), len(r.job.Targets()))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.job.Concurrency)

dispatch:
	for _, kw := range group.Keywords {
		for _, target := range r.job.Targets() {
			if r.stopped(ctx) {
				break dispatch
			}
			task := sources.Task{
				Group:         group.Name,
				Keyword:       kw,
				Community:     target,
				Window:        r.window,
				Sort:          r.job.Sort,
				TimeRange:     r.job.TimeRange,
				FetchComments: r.job.FetchComments,
			}
			g.Go(func() error {
				r.work(gctx, task, posts, comments)
				return nil
			})
		}
	}
	_ = g.Wait()

	if r.stopped(ctx) {
		log.Warnf("Run stopped, raw sinks left unreconciled at %s", paths.Prefix)
		return
	}

	r.tracker.GroupProcessed()

	if !r.tracker.GroupHit(group.Name) {
		log.Info("Group produced no rows, no artifact written")
		for _, s := range []*sink.CSVSink{posts, comments} {
			if err := s.Remove(); err != nil {
				log.Warnf("Failed to remove %s: %v", s.Path(), err)
			}
		}
		return
	}

	c.finalize(ctx, r, log, paths)
}

// work runs the strategies of one keyword over one target
func (r *run) work(ctx context.Context, task sources.Task, posts, comments sources.Appender) {
	label := task.Keyword
	if label == "" {
		label = "r/" + task.Community + " (new)"
	} else if task.Community != "" {
		label += " @ r/" + task.Community
	}

	r.tracker.KeywordStarted(label)
	defer r.tracker.KeywordFinished(label)

	if task.Keyword == "" {
		task.Sink = posts
		if err := r.listing.Run(ctx, task); err != nil {
			r.log.Errorf("%s failed for %s: %v", r.listing.Name(), label, err)
		}
		return
	}

	task.Sink = posts
	if err := r.postSearch.Run(ctx, task); err != nil {
		r.log.Errorf("%s failed for %s: %v", r.postSearch.Name(), label, err)
	}

	if !task.FetchComments || r.stopped(ctx) {
		return
	}

	task.Sink = comments
	if err := r.commentSearch.Run(ctx, task); err != nil {
		r.log.Errorf("%s failed for %s: %v", r.commentSearch.Name(), label, err)
	}
}

// runLinks resolves the job's explicit post URLs into a single artifact
func (c *Coordinator) runLinks(ctx context.Context, r *run) {
	log := r.log.WithField("group", linksGroup)
	paths := output.PathsFor(r.outDir, output.LinksPrefix(r.started))

	posts, err := sink.Create(paths.Posts)
	if err != nil {
		log.Errorf("Cannot resolve links: %v", err)
		return
	}

	links := config.ParseLinks(r.job.Links)
	r.tracker.KeywordStarted(linksGroup)
	err = r.links.Run(ctx, sources.Task{Group: linksGroup, Links: links, Sink: posts})
	r.tracker.KeywordFinished(linksGroup)
	if err != nil {
		log.Errorf("%s failed: %v", r.links.Name(), err)
	}

	if r.stopped(ctx) {
		log.Warnf("Run stopped, raw sink left unreconciled at %s", paths.Prefix)
		return
	}

	r.tracker.GroupProcessed()

	if !r.tracker.GroupHit(linksGroup) {
		log.Info("No link could be resolved, no artifact written")
		if err := posts.Remove(); err != nil {
			log.Warnf("Failed to remove %s: %v", posts.Path(), err)
		}
		return
	}

	c.finalize(ctx, r, log, paths)
}

// finalize reconciles a group's sinks and records the artifact
func (c *Coordinator) finalize(ctx context.Context, r *run, log *logrus.Entry, paths output.Paths) {
	summary, err := r.reconciler.Reconcile(paths)
	if err != nil {
		log.Errorf("Reconciliation failed, raw sinks kept at %s: %v", paths.Prefix, err)
		return
	}

	r.tracker.CommentsSaved(summary.MergedComments)
	r.artifacts = append(r.artifacts, summary.Artifact)

	if !r.job.CopyToSecondary {
		return
	}
	if c.store == nil {
		log.Warn("Secondary copy requested but no store is configured")
		return
	}
	dest, err := c.store.Save(ctx, summary.Artifact)
	if err != nil {
		log.Errorf("Failed to copy %s: %v", summary.Artifact, err)
		return
	}

	base := filepath.Base(summary.Artifact)
	copies, err := c.store.List(ctx, strings.TrimSuffix(base, filepath.Ext(base))+"_")
	if err != nil {
		log.Infof("Copied artifact to %s", dest)
		log.Warnf("Failed to list earlier copies: %v", err)
		return
	}
	log.Infof("Copied artifact to %s (%d copies kept)", dest, len(copies))
}
