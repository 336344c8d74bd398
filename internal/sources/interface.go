package sources

import (
	"context"

	"github.com/harvestlab/reddit-harvester/internal/config"
	"github.com/harvestlab/reddit-harvester/internal/models"
)

// Strategy is one traversal algorithm over the platform
type Strategy interface {
	Name() string
	Run(ctx context.Context, task Task) error
}

// Appender receives each page's batch of rows
type Appender interface {
	Append(rows []models.RawRow) error
}

// Task is one unit of work handed to a strategy
type Task struct {
	Group     string
	Keyword   string
	Community string // empty means the whole site
	Links     []string

	Window        config.Window
	Sort          string
	TimeRange     string
	FetchComments bool

	Sink Appender
}
