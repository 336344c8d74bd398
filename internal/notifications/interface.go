package notifications

import (
	"context"

	"github.com/harvestlab/reddit-harvester/internal/models"
)

// Notifier announces finished runs
type Notifier interface {
	SendRunSummary(ctx context.Context, summary *models.RunSummary) error
}
