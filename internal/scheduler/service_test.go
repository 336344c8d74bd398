package scheduler

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/harvestlab/reddit-harvester/internal/config"
	"github.com/harvestlab/reddit-harvester/internal/harvest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockStarter struct {
	mock.Mock
}

func (m *mockStarter) StartRun(job *config.Job) (*harvest.Handle, error) {
	args := m.Called(job)
	h, _ := args.Get(0).(*harvest.Handle)
	return h, args.Error(1)
}

const jobYAML = `mode: subreddits
communities: ["r/golang"]
keyword_groups:
  - name: Go
    keywords: ["generics"]
start_date: "2024-01-01"
end_date: "2024-01-31"
`

func TestStart(t *testing.T) {
	tests := []struct {
		name      string
		schedule  string
		jobFile   string
		expectErr bool
	}{
		{"disabled", "", "", false},
		{"missing job file", "@daily", "", true},
		{"invalid expression", "not a cron", "job.yaml", true},
		{"five fields", "0 9 * * MON", "job.yaml", false},
		{"six fields", "0 0 9 * * MON", "job.yaml", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.JobSchedule = tt.schedule
			cfg.JobFile = tt.jobFile

			svc := NewService(cfg, &mockStarter{})
			err := svc.Start()
			defer svc.Stop()

			if tt.expectErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestTriggerStartsJobFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "job.yaml")
	require.NoError(t, os.WriteFile(path, []byte(jobYAML), 0o644))

	cfg := config.Default()
	cfg.JobFile = path

	starter := &mockStarter{}
	starter.On("StartRun", mock.MatchedBy(func(job *config.Job) bool {
		return job.Mode == config.ModeCommunities && job.Communities[0] == "r/golang" &&
			job.KeywordGroups[0].Keywords[0] == "generics"
	})).Return(&harvest.Handle{RunID: "run-1"}, nil)

	NewService(cfg, starter).trigger()
	starter.AssertExpectations(t)
}

func TestTriggerSkipsOnErrors(t *testing.T) {
	t.Run("missing job file", func(t *testing.T) {
		cfg := config.Default()
		cfg.JobFile = filepath.Join(t.TempDir(), "missing.yaml")

		starter := &mockStarter{}
		NewService(cfg, starter).trigger()
		starter.AssertNotCalled(t, "StartRun", mock.Anything)
	})

	t.Run("busy", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "job.yaml")
		require.NoError(t, os.WriteFile(path, []byte(jobYAML), 0o644))

		cfg := config.Default()
		cfg.JobFile = path

		starter := &mockStarter{}
		starter.On("StartRun", mock.Anything).Return(nil, errors.New("a run is already active"))

		NewService(cfg, starter).trigger()
		starter.AssertNumberOfCalls(t, "StartRun", 1)
	})
}
