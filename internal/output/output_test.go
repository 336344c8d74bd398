package output

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/harvestlab/reddit-harvester/internal/models"
	"github.com/harvestlab/reddit-harvester/internal/sink"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func testLog() *logrus.Entry {
	return logrus.NewEntry(logrus.New())
}

func postRow(id, url string) models.RawRow {
	return models.RawRow{
		PostSubreddit: "test", PostID: id, PostAuthor: "op", PostTitle: "Title " + id,
		PostBody: "body " + id, PostScore: "10", PostCreatedUTC: "2024-01-05", PostURL: url,
		Source: "posts_go",
	}
}

func commentRow(postID, url, id, body, source string) models.RawRow {
	return models.RawRow{
		PostSubreddit: "test", PostID: postID, PostTitle: "Title " + postID, PostURL: url,
		CommentID: id, CommentParentID: "t3_" + postID, CommentAuthor: "user_" + id,
		CommentBody: body, CommentScore: "1", CommentCreatedUTC: "2024-01-06",
		CommentURL: url + id + "/", Source: source,
	}
}

const (
	url1 = "https://www.reddit.com/r/test/comments/p1/"
	url2 = "https://www.reddit.com/r/test/comments/p2/"
)

func writeSinks(t *testing.T, p Paths, postStage, commentStage []models.RawRow) {
	t.Helper()
	ps, err := sink.Create(p.Posts)
	require.NoError(t, err)
	require.NoError(t, ps.Append(postStage))

	cs, err := sink.Create(p.Comments)
	require.NoError(t, err)
	require.NoError(t, cs.Append(commentStage))
}

func TestReconcile_MergeScenario(t *testing.T) {
	dir := t.TempDir()
	p := PathsFor(dir, GroupPrefix("g1", "ALL"))

	postStage := []models.RawRow{
		postRow("p1", url1),
		commentRow("p1", url1, "i1", "alpha", "post_all_comments_go"),
		commentRow("p1", url1, "i2", "beta", "post_all_comments_go"),
		postRow("p2", url2),
		commentRow("p2", url2, "i3", "gamma", "post_all_comments_go"),
	}
	commentStage := []models.RawRow{
		commentRow("p1", url1, "s1", "beta", "comments_go"),
		commentRow("p2", url2, "s2", "delta", "comments_go"),
	}
	writeSinks(t, p, postStage, commentStage)

	summary, err := NewReconciler(testLog()).Reconcile(p)
	require.NoError(t, err)

	assert.Equal(t, p.Artifact, summary.Artifact)
	assert.Equal(t, 5, summary.RawPostRows)
	assert.Equal(t, 2, summary.Posts)
	assert.Equal(t, 2, summary.Comments)
	assert.Equal(t, 6, summary.Merged)
	assert.Equal(t, 4, summary.MergedComments)

	_, err = os.Stat(p.Posts)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(p.Comments)
	assert.True(t, os.IsNotExist(err))

	f, err := excelize.OpenFile(p.Artifact)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetPosts, SheetComments, SheetMerged}, f.GetSheetList())

	posts, err := f.GetRows(SheetPosts)
	require.NoError(t, err)
	assert.Equal(t, models.RawColumns, posts[0])
	assert.Len(t, posts, 6)

	comments, err := f.GetRows(SheetComments)
	require.NoError(t, err)
	assert.Len(t, comments, 3)

	merged, err := f.GetRows(SheetMerged)
	require.NoError(t, err)
	require.Len(t, merged, 7)
	assert.Equal(t, models.OutputColumns, merged[0])

	var gotIDs, types []string
	counts := map[string]string{}
	for _, row := range merged[1:] {
		gotIDs = append(gotIDs, row[3])
		types = append(types, row[10])
		if row[10] == models.TypePost {
			counts[row[3]] = row[11]
		}
	}
	assert.Equal(t, []string{"p1", "p2", "i1", "i2", "i3", "s2"}, gotIDs)
	assert.Equal(t, []string{"post", "post", "comment", "comment", "comment", "comment"}, types)
	assert.Equal(t, map[string]string{"p1": "2", "p2": "2"}, counts)

	// comment rows carry the comment url and no count
	assert.Equal(t, url1+"i1/", merged[3][8])
	assert.Len(t, merged[3], 11)
}

func TestMerge_DropsBlankAndDuplicateIDs(t *testing.T) {
	postStage := []models.RawRow{
		postRow("p1", url1),
		postRow("p1", url1),
		postRow("", url2),
		commentRow("p1", url1, "c1", "  ", "post_all_comments_go"),
		commentRow("p1", url1, "c2", "kept", "post_all_comments_go"),
	}
	commentStage := []models.RawRow{
		commentRow("p1", url1, "c2", "same id other text", "comments_go"),
		commentRow("p1", url1, "", "no id", "comments_go"),
		commentRow("p1", url1, "p1", "collides with post id", "comments_go"),
	}

	result := NewReconciler(testLog()).Merge(postStage, commentStage)

	seen := map[string]bool{}
	for _, row := range result.Merged {
		assert.NotEmpty(t, row.ID)
		assert.False(t, seen[row.ID], "duplicate id %s", row.ID)
		seen[row.ID] = true
	}
	assert.Len(t, result.Merged, 2)
	assert.Equal(t, 1, result.Merged[0].CommentCount)
	assert.Len(t, result.SearchComments, 3)
	assert.Len(t, result.RawPosts, 5)
}

func TestReconcile_MissingSinksProduceEmptyWorkbook(t *testing.T) {
	p := PathsFor(t.TempDir(), "Reddit_empty_in_ALL")

	summary, err := NewReconciler(testLog()).Reconcile(p)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Merged)

	f, err := excelize.OpenFile(p.Artifact)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(SheetMerged)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestBundle(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "Reddit_a_in_ALL.xlsx")
	b := filepath.Join(dir, "Reddit_b_in_ALL.xlsx")
	require.NoError(t, os.WriteFile(a, []byte("first artifact"), 0o644))
	require.NoError(t, os.WriteFile(b, []byte("second artifact"), 0o644))

	dest := filepath.Join(dir, BundleName(time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)))
	require.NoError(t, Bundle(dest, []string{a, b}))
	assert.Equal(t, "Reddit_outputs_20240506_070809.zip", filepath.Base(dest))

	zr, err := zip.OpenReader(dest)
	require.NoError(t, err)
	defer zr.Close()

	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
		assert.Equal(t, zip.Deflate, f.Method)
	}
	assert.Equal(t, []string{"Reddit_a_in_ALL.xlsx", "Reddit_b_in_ALL.xlsx"}, names)
}

func TestStranded(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"Reddit_b_in_ALL_raw_posts.csv", "Reddit_a_in_MULTI_raw_posts.csv", "Reddit_a_in_MULTI_raw_comments.csv", "other.csv"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
	}

	prefixes, err := Stranded(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"Reddit_a_in_MULTI", "Reddit_b_in_ALL"}, prefixes)

	assert.Equal(t, "Reddit_LINKS_20240102_030405", LinksPrefix(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)))
}
