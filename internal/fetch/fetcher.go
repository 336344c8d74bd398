package fetch

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/harvestlab/reddit-harvester/internal/state"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

var (
	// ErrStopped is returned when the run was stopped before or during the request
	ErrStopped = errors.New("fetch stopped")
	// ErrGone is returned for 404 and 410 responses, which are never retried
	ErrGone = errors.New("resource not found")
	// ErrExhausted is returned when every attempt failed
	ErrExhausted = errors.New("retry budget exhausted")
)

// Getter fetches one URL with at most retries attempts
type Getter interface {
	Get(ctx context.Context, url string, retries int) (*Page, error)
}

// Page is a successful response
type Page struct {
	URL    string
	Status int
	Body   []byte
}

// Range is a closed interval a random delay is drawn from
type Range struct {
	Min time.Duration
	Max time.Duration
}

func (r Range) pick() time.Duration {
	if r.Max <= r.Min {
		return r.Min
	}
	return r.Min + time.Duration(rand.Int63n(int64(r.Max-r.Min+1)))
}

// Backoff groups the randomized delays applied around each attempt
type Backoff struct {
	Jitter    Range // before every attempt
	Cooldown  Range // after a 429
	Transport Range // after a network-level error
}

// DefaultBackoff returns the production delays
func DefaultBackoff() Backoff {
	return Backoff{
		Jitter:    Range{Min: 50 * time.Millisecond, Max: 150 * time.Millisecond},
		Cooldown:  Range{Min: 8 * time.Second, Max: 15 * time.Second},
		Transport: Range{Min: 200 * time.Millisecond, Max: time.Second},
	}
}

// Options configures a Client
type Options struct {
	Proxies    []string
	UserAgents []string
	Timeout    time.Duration
	MaxRetries int
	RateLimit  float64 // requests per second across the client, 0 disables
	Backoff    *Backoff
	Logger     *logrus.Entry
}

type identity struct {
	client  *resty.Client
	proxied bool
}

// Client is the rotating-identity HTTP fetcher shared by every worker of a run
type Client struct {
	direct     *resty.Client
	proxied    []*resty.Client
	agents     []string
	maxRetries int
	backoff    Backoff
	limiter    *rate.Limiter
	signals    *state.Signals
	log        *logrus.Entry

	consecutiveErrors atomic.Int64
}

var _ Getter = (*Client)(nil)

// NewClient builds one resty client per proxy plus a direct client
func NewClient(opts Options, signals *state.Signals) (*Client, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = 8 * time.Second
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 4
	}
	if len(opts.UserAgents) == 0 {
		opts.UserAgents = DefaultUserAgents
	}
	if opts.Logger == nil {
		opts.Logger = logrus.NewEntry(logrus.StandardLogger())
	}
	backoff := DefaultBackoff()
	if opts.Backoff != nil {
		backoff = *opts.Backoff
	}

	c := &Client{
		direct:     newRestyClient(opts.Timeout),
		agents:     opts.UserAgents,
		maxRetries: opts.MaxRetries,
		backoff:    backoff,
		signals:    signals,
		log:        opts.Logger.WithField("component", "fetch"),
	}

	for _, raw := range opts.Proxies {
		proxyURL, err := ParseProxy(raw)
		if err != nil {
			return nil, err
		}
		c.proxied = append(c.proxied, newRestyClient(opts.Timeout).SetProxy(proxyURL))
	}

	if opts.RateLimit > 0 {
		burst := int(opts.RateLimit)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}

	return c, nil
}

func newRestyClient(timeout time.Duration) *resty.Client {
	return resty.New().
		SetTimeout(timeout).
		SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true}). // #nosec G402 -- platform certificates are not verified
		SetHeader("Connection", "close")
}

// ParseProxy accepts either a proxy URL or the host:port[:user:pass] form
func ParseProxy(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("empty proxy entry")
	}

	if strings.Contains(raw, "://") {
		u, err := url.Parse(raw)
		if err != nil || u.Host == "" {
			return "", fmt.Errorf("invalid proxy url %q", raw)
		}
		return u.String(), nil
	}

	parts := strings.SplitN(raw, ":", 4)
	switch len(parts) {
	case 2:
		return (&url.URL{Scheme: "http", Host: net.JoinHostPort(parts[0], parts[1])}).String(), nil
	case 4:
		return (&url.URL{
			Scheme: "http",
			User:   url.UserPassword(parts[2], parts[3]),
			Host:   net.JoinHostPort(parts[0], parts[1]),
		}).String(), nil
	}
	return "", fmt.Errorf("invalid proxy entry %q: want host:port or host:port:user:pass", raw)
}

// ConsecutiveErrors returns the number of failed responses since the last 200
func (c *Client) ConsecutiveErrors() int64 {
	return c.consecutiveErrors.Load()
}

func (c *Client) pick() identity {
	if len(c.proxied) == 0 {
		return identity{client: c.direct}
	}
	return identity{client: c.proxied[rand.Intn(len(c.proxied))], proxied: true}
}

func (c *Client) agent() string {
	return c.agents[rand.Intn(len(c.agents))]
}

func displayURL(u string) string {
	if len(u) < 160 {
		return u
	}
	return u[:150] + "..."
}

// Get fetches rawURL. retries <= 0 uses the client default.
func (c *Client) Get(ctx context.Context, rawURL string, retries int) (*Page, error) {
	if retries <= 0 {
		retries = c.maxRetries
	}
	shown := displayURL(rawURL)
	log := c.log.WithField("url", shown)

	for attempt := 1; attempt <= retries; attempt++ {
		if !c.signals.Checkpoint(ctx) {
			return nil, ErrStopped
		}
		if !c.signals.Sleep(ctx, c.backoff.Jitter.pick()) {
			return nil, ErrStopped
		}
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, ErrStopped
			}
		}

		id := c.pick()
		route := "direct"
		if id.proxied {
			route = "proxy"
		}
		log.Infof("GET via %s attempt=%d/%d", route, attempt, retries)

		resp, err := id.client.R().
			SetContext(ctx).
			SetHeader("User-Agent", c.agent()).
			Get(rawURL)

		if c.signals.Stopped() {
			return nil, ErrStopped
		}

		if err != nil {
			log.Warnf("Network error on attempt %d/%d: %v", attempt, retries, err)
			if !c.signals.Sleep(ctx, c.backoff.Transport.pick()) {
				return nil, ErrStopped
			}
			continue
		}

		status := resp.StatusCode()
		switch {
		case status == http.StatusOK:
			c.consecutiveErrors.Store(0)
			log.Debug("status=200")
			return &Page{URL: rawURL, Status: status, Body: resp.Body()}, nil

		case status == http.StatusNotFound || status == http.StatusGone:
			log.Warnf("status=%d, not retrying", status)
			return nil, fmt.Errorf("%w: status %d for %s", ErrGone, status, shown)

		case status == http.StatusTooManyRequests:
			n := c.consecutiveErrors.Add(1)
			wait := c.backoff.Cooldown.pick()
			log.Warnf("Rate limited (429), consecutive errors=%d, cooling down %.1fs", n, wait.Seconds())
			if !c.signals.Sleep(ctx, wait) {
				return nil, ErrStopped
			}

		default:
			n := c.consecutiveErrors.Add(1)
			log.Warnf("status=%d on attempt %d/%d, consecutive errors=%d", status, attempt, retries, n)
		}
	}

	log.Errorf("Giving up after %d attempts", retries)
	return nil, fmt.Errorf("%w: %s after %d attempts", ErrExhausted, shown, retries)
}
