package reddit

import (
	"errors"
	"math"
	"strings"
	"time"
)

var displayZone = time.FixedZone("UTC+8", 8*60*60)

// CleanText flattens line breaks and trims surrounding space
func CleanText(s string) string {
	s = strings.ReplaceAll(s, "\r", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.TrimSpace(s)
}

// Timestamp converts an epoch value in seconds or milliseconds to a UTC time.
// Zero yields the zero time.
func Timestamp(epoch float64) time.Time {
	if epoch == 0 {
		return time.Time{}
	}
	if epoch > 1e12 {
		epoch /= 1000
	}
	sec, frac := math.Modf(epoch)
	return time.Unix(int64(sec), int64(frac*1e9)).UTC()
}

// FormatDate renders t as a calendar day in UTC+8
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.In(displayZone).Format("2006-01-02")
}

var (
	ErrNoPostID    = errors.New("url has no /comments/{id} segment")
	ErrNoCommunity = errors.New("url has no /r/{community} segment")
)

// ParsePostURL extracts the community and post id from a post URL
func ParsePostURL(raw string) (community, postID string, err error) {
	u := strings.TrimSpace(raw)
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		u = u[:i]
	}

	_, rest, ok := strings.Cut(u, "/comments/")
	if !ok {
		return "", "", ErrNoPostID
	}
	postID, _, _ = strings.Cut(rest, "/")
	if postID == "" {
		return "", "", ErrNoPostID
	}

	_, rest, ok = strings.Cut(u, "/r/")
	if !ok {
		return "", postID, ErrNoCommunity
	}
	community, _, _ = strings.Cut(rest, "/")
	if community == "" || community == "comments" {
		return "", postID, ErrNoCommunity
	}
	return community, postID, nil
}
