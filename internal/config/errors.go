package config

import "errors"

// Job validation errors. They are reported before any worker starts.
var (
	ErrInvalidMode        = errors.New("mode must be one of all, subreddits, links")
	ErrNoKeywordGroups    = errors.New("no keyword group contains a usable keyword")
	ErrInvalidDateRange   = errors.New("start date must be a valid YYYY-MM-DD on or before end date")
	ErrNoLinks            = errors.New("links mode requires at least one post URL")
	ErrCountCapRequired   = errors.New("sort orders other than new require an item count cap")
	ErrInvalidSort        = errors.New("sort must be one of new, relevance, top")
	ErrInvalidTimeRange   = errors.New("time range must be one of all, year, month, week, day, hour")
	ErrInvalidConcurrency = errors.New("concurrency must not be negative")
)
