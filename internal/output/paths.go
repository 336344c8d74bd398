package output

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const (
	rawPostsSuffix    = "_raw_posts.csv"
	rawCommentsSuffix = "_raw_comments.csv"
	stampLayout       = "20060102_150405"
)

// Paths are the files belonging to one group
type Paths struct {
	Prefix   string
	Posts    string
	Comments string
	Artifact string
}

func PathsFor(dir, prefix string) Paths {
	return Paths{
		Prefix:   prefix,
		Posts:    filepath.Join(dir, prefix+rawPostsSuffix),
		Comments: filepath.Join(dir, prefix+rawCommentsSuffix),
		Artifact: filepath.Join(dir, prefix+".xlsx"),
	}
}

// GroupPrefix names the files of a keyword group crawled over label
func GroupPrefix(group, label string) string {
	return fmt.Sprintf("Reddit_%s_in_%s", group, label)
}

func LinksPrefix(now time.Time) string {
	return "Reddit_LINKS_" + now.Format(stampLayout)
}

func BundleName(now time.Time) string {
	return "Reddit_outputs_" + now.Format(stampLayout) + ".zip"
}

// Stranded lists the prefixes in dir whose raw sinks were never reconciled
func Stranded(dir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*"+rawPostsSuffix))
	if err != nil {
		return nil, err
	}

	prefixes := make([]string, 0, len(matches))
	for _, m := range matches {
		prefixes = append(prefixes, strings.TrimSuffix(filepath.Base(m), rawPostsSuffix))
	}
	sort.Strings(prefixes)
	return prefixes, nil
}
