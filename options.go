package trackerscrape

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/driftwood-labs/trackerscrape/udpclient"
)

// config holds the tunables threaded through the scheduler and both
// protocol clients. It is built from functional Options and never exported
// directly; callers only ever see With* constructors.
type config struct {
	logger            logrus.FieldLogger
	httpTimeout       time.Duration
	perScrapeTimeout  time.Duration
	maxConcurrency    int
	udpRetryPolicy    udpclient.RetryPolicy
	udpConnectTimeout time.Duration
}

func defaultConfig() *config {
	return &config{
		logger:            logrus.StandardLogger(),
		httpTimeout:       10 * time.Second,
		perScrapeTimeout:  30 * time.Second,
		maxConcurrency:    0, // unbounded, caller chunks if desired
		udpRetryPolicy:    udpclient.DefaultRetryPolicy(),
		udpConnectTimeout: 15 * time.Second,
	}
}

// Option configures a scrape call.
type Option func(*config)

// WithLogger injects a logrus.FieldLogger used for per-tracker failure and
// retry diagnostics. Defaults to logrus.StandardLogger().
func WithLogger(l logrus.FieldLogger) Option {
	return func(c *config) { c.logger = l }
}

// WithHTTPTimeout bounds the total time allowed for a single HTTP scrape
// request, including connection setup. Default 10s.
func WithHTTPTimeout(d time.Duration) Option {
	return func(c *config) { c.httpTimeout = d }
}

// WithPerScrapeTimeout bounds the time allowed for one tracker's full scrape
// task (connect + all scrape batches for UDP; the GET for HTTP). A task that
// exceeds this is a per-tracker failure. Default 30s.
func WithPerScrapeTimeout(d time.Duration) Option {
	return func(c *config) { c.perScrapeTimeout = d }
}

// WithMaxConcurrency bounds the number of tracker tasks in flight at once.
// 0 (the default) means unbounded: concurrency capping is left to the
// caller, who may chunk their tracker list; this is an additive convenience.
func WithMaxConcurrency(n int) Option {
	return func(c *config) { c.maxConcurrency = n }
}

// WithUDPRetryPolicy overrides the UDP retransmission schedule used for
// both the connect and scrape phases. Default is a tightened schedule; see
// udpclient.DefaultRetryPolicy and udpclient.DefaultBEP15RetryPolicy.
func WithUDPRetryPolicy(p udpclient.RetryPolicy) Option {
	return func(c *config) { c.udpRetryPolicy = p }
}

func applyOptions(opts []Option) *config {
	c := defaultConfig()
	for _, o := range opts {
		o(c)
	}
	return c
}
