package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMode(t *testing.T) {
	tests := []struct {
		input    string
		expected Mode
		wantErr  bool
	}{
		{"all", ModeAllSite, false},
		{"1", ModeAllSite, false},
		{"Subreddits", ModeCommunities, false},
		{"2", ModeCommunities, false},
		{" links ", ModeLinks, false},
		{"3", ModeLinks, false},
		{"twitter", ModeUnknown, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			mode, err := ParseMode(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidMode)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, mode)
		})
	}
}

func TestModeString(t *testing.T) {
	assert.Equal(t, "ALL", ModeAllSite.String())
	assert.Equal(t, "SUBREDDIT", ModeCommunities.String())
	assert.Equal(t, "LINK", ModeLinks.String())
}

func TestParseLinks(t *testing.T) {
	text := "https://a.example/1\n\nhttps://a.example/2，https://a.example/1 , https://a.example/3\n"
	links := ParseLinks(text)
	assert.Equal(t, []string{
		"https://a.example/1",
		"https://a.example/2",
		"https://a.example/3",
	}, links)

	assert.Empty(t, ParseLinks(" \n , "))
}

func TestJobWindow(t *testing.T) {
	t.Run("date range covers whole end day", func(t *testing.T) {
		job := &Job{StartDate: "2024-01-01", EndDate: "2024-01-31"}
		w, err := job.Window()
		require.NoError(t, err)

		assert.False(t, w.Capped())
		assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), w.Start)
		assert.True(t, w.Contains(time.Date(2024, 1, 31, 23, 59, 59, 0, time.UTC)))
		assert.False(t, w.Contains(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)))
		assert.True(t, w.BeforeStart(time.Date(2023, 12, 31, 23, 0, 0, 0, time.UTC)))
	})

	t.Run("count cap bypasses dates", func(t *testing.T) {
		job := &Job{PostCount: 3, Sort: "top", StartDate: "garbage"}
		w, err := job.Window()
		require.NoError(t, err)

		assert.True(t, w.Capped())
		assert.True(t, w.Contains(time.Unix(0, 0)))
		assert.False(t, w.BeforeStart(time.Unix(0, 0)))
	})

	t.Run("non-new sort requires cap", func(t *testing.T) {
		job := &Job{Sort: "relevance", StartDate: "2024-01-01", EndDate: "2024-01-31"}
		_, err := job.Window()
		assert.ErrorIs(t, err, ErrCountCapRequired)
	})

	t.Run("start after end", func(t *testing.T) {
		job := &Job{StartDate: "2024-02-01", EndDate: "2024-01-31"}
		_, err := job.Window()
		assert.ErrorIs(t, err, ErrInvalidDateRange)
	})
}

func TestJobGroups(t *testing.T) {
	groups := []KeywordGroup{
		{Name: "g1", Keywords: []string{"foo", " ", "bar"}},
		{Name: "g2", Keywords: []string{""}},
	}

	t.Run("blank keywords dropped outside communities mode", func(t *testing.T) {
		job := &Job{Mode: ModeAllSite, KeywordGroups: groups, AllowBlankKeyword: true}
		got := job.Groups()
		require.Len(t, got, 1)
		assert.Equal(t, []string{"foo", "bar"}, got[0].Keywords)
	})

	t.Run("blank keyword kept for community listing", func(t *testing.T) {
		job := &Job{Mode: ModeCommunities, KeywordGroups: groups, AllowBlankKeyword: true}
		got := job.Groups()
		require.Len(t, got, 2)
		assert.Equal(t, []string{"foo", "", "bar"}, got[0].Keywords)
		assert.Equal(t, []string{""}, got[1].Keywords)
	})
}

func TestJobTargets(t *testing.T) {
	job := &Job{Mode: ModeAllSite, Communities: []string{"golang"}}
	assert.Equal(t, []string{""}, job.Targets())
	assert.Equal(t, "ALL", job.TargetLabel())

	job = &Job{Mode: ModeCommunities, Communities: []string{"r/golang"}}
	assert.Equal(t, []string{"golang"}, job.Targets())
	assert.Equal(t, "golang", job.TargetLabel())

	job = &Job{Mode: ModeCommunities, Communities: []string{"golang，rust", "python"}}
	assert.Equal(t, []string{"golang", "rust", "python"}, job.Targets())
	assert.Equal(t, "MULTI", job.TargetLabel())
}

func TestJobValidate(t *testing.T) {
	t.Run("defaults applied", func(t *testing.T) {
		job := &Job{
			Mode:          ModeAllSite,
			KeywordGroups: []KeywordGroup{{Name: "g", Keywords: []string{"kw"}}},
			StartDate:     "2024-01-01",
			EndDate:       "2024-01-02",
		}
		require.NoError(t, job.Validate())
		assert.Equal(t, DefaultConcurrency, job.Concurrency)
		assert.Equal(t, "new", job.Sort)
		assert.Equal(t, "all", job.TimeRange)
	})

	t.Run("links mode needs links", func(t *testing.T) {
		job := &Job{Mode: ModeLinks, Links: "  "}
		assert.ErrorIs(t, job.Validate(), ErrNoLinks)
	})

	t.Run("no keywords", func(t *testing.T) {
		job := &Job{Mode: ModeAllSite, StartDate: "2024-01-01", EndDate: "2024-01-02"}
		assert.ErrorIs(t, job.Validate(), ErrNoKeywordGroups)
	})

	t.Run("bad sort", func(t *testing.T) {
		job := &Job{Mode: ModeAllSite, Sort: "hot", KeywordGroups: []KeywordGroup{{Keywords: []string{"kw"}}}}
		assert.ErrorIs(t, job.Validate(), ErrInvalidSort)
	})

	t.Run("unknown mode", func(t *testing.T) {
		assert.ErrorIs(t, (&Job{}).Validate(), ErrInvalidMode)
	})
}

func TestLoadJob(t *testing.T) {
	path := filepath.Join(t.TempDir(), "job.yaml")
	content := `mode: subreddits
communities: [golang, rust]
keyword_groups:
  - name: lang
    keywords: [generics, ""]
start_date: "2024-03-01"
end_date: "2024-03-31"
fetch_comments: true
allow_blank_keyword: true
concurrency: 2
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	job, err := LoadJob(path)
	require.NoError(t, err)
	require.NoError(t, job.Validate())

	assert.Equal(t, ModeCommunities, job.Mode)
	assert.Equal(t, []string{"golang", "rust"}, job.Targets())
	assert.True(t, job.FetchComments)
	assert.Equal(t, 2, job.Concurrency)
	assert.Equal(t, []string{"generics", ""}, job.Groups()[0].Keywords)

	_, err = LoadJob(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
