package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults shared by the process configuration and jobs
const (
	DefaultBaseURL           = "https://www.reddit.com"
	DefaultFetchTimeout      = 8 * time.Second
	DefaultFetchMaxRetries   = 4
	DefaultDetailMaxRetries  = 3
	DefaultPausePollInterval = 30 * time.Second
	DefaultConcurrency       = 4
	DefaultSort              = "new"
	DefaultTimeRange         = "all"
)

const dateLayout = "2006-01-02"

// Mode selects which traversal strategies a job may use
type Mode int

const (
	ModeUnknown Mode = iota
	ModeAllSite
	ModeCommunities
	ModeLinks
)

// ParseMode accepts the textual names as well as the legacy numeric codes
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "all", "all_site", "1":
		return ModeAllSite, nil
	case "subreddits", "subreddit", "communities", "2":
		return ModeCommunities, nil
	case "links", "link", "3":
		return ModeLinks, nil
	}
	return ModeUnknown, fmt.Errorf("%w: %q", ErrInvalidMode, s)
}

// String returns the label reported in progress snapshots
func (m Mode) String() string {
	switch m {
	case ModeAllSite:
		return "ALL"
	case ModeCommunities:
		return "SUBREDDIT"
	case ModeLinks:
		return "LINK"
	}
	return "UNKNOWN"
}

func (m Mode) MarshalText() ([]byte, error) {
	switch m {
	case ModeAllSite:
		return []byte("all"), nil
	case ModeCommunities:
		return []byte("subreddits"), nil
	case ModeLinks:
		return []byte("links"), nil
	}
	return nil, ErrInvalidMode
}

func (m *Mode) UnmarshalText(text []byte) error {
	parsed, err := ParseMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

func (m *Mode) UnmarshalYAML(value *yaml.Node) error {
	return m.UnmarshalText([]byte(value.Value))
}

// KeywordGroup is one named set of independent keywords. Each group produces one artifact.
type KeywordGroup struct {
	Name     string   `json:"name" yaml:"name"`
	Keywords []string `json:"keywords" yaml:"keywords"`
}

// Job is the immutable configuration of one harvest run
type Job struct {
	Mode          Mode           `json:"mode" yaml:"mode"`
	Communities   []string       `json:"communities" yaml:"communities"`
	KeywordGroups []KeywordGroup `json:"keyword_groups" yaml:"keyword_groups"`

	// StartDate and EndDate are inclusive UTC calendar days (YYYY-MM-DD)
	StartDate string `json:"start_date" yaml:"start_date"`
	EndDate   string `json:"end_date" yaml:"end_date"`

	// PostCount is an absolute item cap. When set the date range has no filtering effect.
	PostCount int    `json:"post_count" yaml:"post_count"`
	Sort      string `json:"sort" yaml:"sort"`
	TimeRange string `json:"time_range" yaml:"time_range"`

	Concurrency int    `json:"concurrency" yaml:"concurrency"`
	OutputDir   string `json:"output_dir" yaml:"output_dir"`

	FetchComments     bool `json:"fetch_comments" yaml:"fetch_comments"`
	AllowBlankKeyword bool `json:"allow_blank_keyword" yaml:"allow_blank_keyword"`
	CopyToSecondary   bool `json:"copy_to_secondary" yaml:"copy_to_secondary"`

	// Links is the raw newline- or comma-delimited list used in links mode
	Links string `json:"links" yaml:"links"`
}

// LoadJob reads a job definition from a YAML file
func LoadJob(path string) (*Job, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read job file %s: %w", path, err)
	}

	var job Job
	if err := yaml.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("failed to parse job file %s: %w", path, err)
	}

	return &job, nil
}

// Validate fills defaults and rejects configurations that cannot start
func (j *Job) Validate() error {
	if j.Mode == ModeUnknown {
		return ErrInvalidMode
	}

	if j.Concurrency < 0 {
		return ErrInvalidConcurrency
	}
	if j.Concurrency == 0 {
		j.Concurrency = DefaultConcurrency
	}

	if j.Mode == ModeLinks {
		if len(ParseLinks(j.Links)) == 0 {
			return ErrNoLinks
		}
		return nil
	}

	j.Sort = strings.ToLower(strings.TrimSpace(j.Sort))
	if j.Sort == "" {
		j.Sort = DefaultSort
	}
	switch j.Sort {
	case "new", "relevance", "top":
	default:
		return ErrInvalidSort
	}

	j.TimeRange = strings.ToLower(strings.TrimSpace(j.TimeRange))
	if j.TimeRange == "" {
		j.TimeRange = DefaultTimeRange
	}
	switch j.TimeRange {
	case "all", "year", "month", "week", "day", "hour":
	default:
		return ErrInvalidTimeRange
	}

	if len(j.Groups()) == 0 {
		return ErrNoKeywordGroups
	}

	if _, err := j.Window(); err != nil {
		return err
	}

	return nil
}

// Groups returns the keyword groups with blank keywords removed, or kept as the
// listing trigger when the job targets communities and allows it. Groups left
// without keywords are dropped.
func (j *Job) Groups() []KeywordGroup {
	allowBlank := j.Mode == ModeCommunities && j.AllowBlankKeyword

	var groups []KeywordGroup
	for _, g := range j.KeywordGroups {
		var keywords []string
		for _, kw := range g.Keywords {
			kw = strings.TrimSpace(kw)
			if kw == "" && !allowBlank {
				continue
			}
			keywords = append(keywords, kw)
		}
		if len(keywords) == 0 {
			continue
		}
		groups = append(groups, KeywordGroup{Name: strings.TrimSpace(g.Name), Keywords: keywords})
	}
	return groups
}

// Targets returns the communities to crawl. An empty string means the whole site.
func (j *Job) Targets() []string {
	if j.Mode != ModeCommunities {
		return []string{""}
	}

	var targets []string
	for _, c := range j.Communities {
		for _, part := range splitList(c) {
			targets = append(targets, strings.TrimPrefix(part, "r/"))
		}
	}
	if len(targets) == 0 {
		return []string{""}
	}
	return targets
}

// TargetLabel names the crawled scope in output file names
func (j *Job) TargetLabel() string {
	targets := j.Targets()
	switch {
	case len(targets) > 1:
		return "MULTI"
	case targets[0] == "":
		return "ALL"
	default:
		return targets[0]
	}
}

// Window is the time window or item cap that decides which items a strategy keeps
type Window struct {
	Start time.Time
	End   time.Time
	Cap   int
}

// Capped reports whether the absolute count cap replaces time filtering
func (w Window) Capped() bool {
	return w.Cap > 0
}

// Contains reports whether t lies within [Start, End]. Always true in count-cap mode.
func (w Window) Contains(t time.Time) bool {
	if w.Capped() {
		return true
	}
	return !t.Before(w.Start) && !t.After(w.End)
}

// BeforeStart reports whether t is older than the window. Always false in count-cap mode.
func (w Window) BeforeStart(t time.Time) bool {
	return !w.Capped() && t.Before(w.Start)
}

// Window computes the job's filtering window
func (j *Job) Window() (Window, error) {
	if j.PostCount > 0 {
		return Window{Cap: j.PostCount}, nil
	}

	if j.Sort != "" && j.Sort != "new" {
		return Window{}, ErrCountCapRequired
	}

	start, err := time.ParseInLocation(dateLayout, strings.TrimSpace(j.StartDate), time.UTC)
	if err != nil {
		return Window{}, fmt.Errorf("%w: start %q", ErrInvalidDateRange, j.StartDate)
	}
	endDay, err := time.ParseInLocation(dateLayout, strings.TrimSpace(j.EndDate), time.UTC)
	if err != nil {
		return Window{}, fmt.Errorf("%w: end %q", ErrInvalidDateRange, j.EndDate)
	}
	end := endDay.AddDate(0, 0, 1).Add(-time.Second)

	if start.After(end) {
		return Window{}, ErrInvalidDateRange
	}

	return Window{Start: start, End: end}, nil
}

// ParseLinks splits a newline- or comma-delimited URL list, dropping blanks and
// duplicates while keeping first-seen order
func ParseLinks(text string) []string {
	seen := make(map[string]bool)
	var links []string
	for _, line := range strings.Split(text, "\n") {
		for _, u := range splitList(line) {
			if seen[u] {
				continue
			}
			seen[u] = true
			links = append(links, u)
		}
	}
	return links
}

func splitList(s string) []string {
	s = strings.ReplaceAll(s, "，", ",")
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
