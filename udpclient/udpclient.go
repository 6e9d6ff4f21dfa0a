// Package udpclient implements the UDP half of the BitTorrent tracker
// scrape protocol (BEP 15): the connect/scrape handshake, transaction
// correlation, connection-id TTL management, batching of up to 74 info
// hashes per datagram, and exponential retransmission on timeout.
package udpclient

import (
	"context"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/driftwood-labs/trackerscrape/errs"
)

// Client scrapes one UDP tracker. A Client is not safe for concurrent reuse
// across goroutines; the scheduler creates one per tracker task, opening a
// fresh socket for each scrape call.
type Client struct {
	trackerURL  string
	retryPolicy RetryPolicy
	dialTimeout time.Duration
	log         logrus.FieldLogger

	sess *session
}

// New creates a UDP scrape client for the given udp:// tracker URL.
func New(trackerURL string, retryPolicy RetryPolicy, dialTimeout time.Duration, log logrus.FieldLogger) (*Client, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	u, err := url.Parse(trackerURL)
	if err != nil {
		return nil, errs.Wrapf(errs.UrlError, "udpclient: parsing %q: %v", trackerURL, err)
	}
	if u.Scheme != "udp" {
		return nil, errs.Wrapf(errs.UrlError, "udpclient: unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, errs.Wrapf(errs.UrlError, "udpclient: missing host in %q", trackerURL)
	}
	return &Client{
		trackerURL:  trackerURL,
		retryPolicy: retryPolicy,
		dialTimeout: dialTimeout,
		log:         log.WithField("tracker", trackerURL),
	}, nil
}

// Stat mirrors a decoded scrape triple paired with its requested hash.
type Stat struct {
	InfoHash   [20]byte
	Complete   uint32
	Downloaded uint32
	Incomplete uint32
}

// Scrape resolves the tracker host, establishes (or reuses, within its TTL)
// a connect-phase session, and scrapes every hash in batches of at most 74,
// reconnecting automatically if the connection id has expired mid-call.
//
// The returned Stat slice is positionally aligned batch-by-batch with
// hashes; a per-tracker failure (resolution, transport, protocol, timeout,
// or an explicit tracker error frame) is returned as an error and the
// caller (scheduler) treats it as an absent contribution for every
// requested hash.
func (c *Client) Scrape(ctx context.Context, hashes [][20]byte) ([]Stat, error) {
	if err := c.ensureResolvable(); err != nil {
		return nil, err
	}

	conn, err := dial(c.hostPort(), c.dialTimeout)
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	// Closing the socket once ctx is done ends any pending read or write, so
	// the call fails rather than running past its deadline.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	c.sess = &session{
		conn:        conn,
		retryPolicy: c.retryPolicy,
		log:         c.log,
	}

	var results []Stat
	for _, batch := range batchHashes(hashes) {
		select {
		case <-ctx.Done():
			return nil, errs.Wrap(errs.Timeout, "udpclient: context cancelled")
		default:
		}

		if !c.sess.connected() {
			if err := c.sess.connect(); err != nil {
				return nil, err
			}
		}

		stats, err := c.scrapeBatch(batch)
		if err != nil {
			return nil, err
		}
		results = append(results, stats...)
	}
	return results, nil
}

// ensureResolvable resolves the tracker host up front so a DNS failure is
// reported as errs.ResolutionError rather than surfacing as a generic dial
// error.
func (c *Client) ensureResolvable() error {
	host, _, err := net.SplitHostPort(c.hostPort())
	if err != nil {
		return errs.Wrapf(errs.UrlError, "udpclient: malformed host:port %q: %v", c.hostPort(), err)
	}
	if _, err := net.LookupHost(host); err != nil {
		return errs.Wrapf(errs.ResolutionError, "udpclient: resolving %q: %v", host, err)
	}
	return nil
}

func (c *Client) hostPort() string {
	u, _ := url.Parse(c.trackerURL)
	host := u.Host
	if !strings.Contains(host, ":") {
		host += ":6969" // conventional default BitTorrent tracker port
	}
	return host
}

func (c *Client) scrapeBatch(batch [][20]byte) ([]Stat, error) {
	tid := newTransactionID()
	req := encodeScrapeRequest(c.sess.connectionID, tid, batch)

	var lastErr error
	for attempt := 0; attempt < c.retryPolicy.MaxAttempts; attempt++ {
		timeout := c.retryPolicy.Timeout(attempt)

		if err := c.sess.conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
			return nil, errs.Wrapf(errs.TransportError, "udpclient: set write deadline: %v", err)
		}
		if _, err := c.sess.conn.Write(req); err != nil {
			return nil, errs.Wrapf(errs.TransportError, "udpclient: scrape write: %v", err)
		}

		if err := c.sess.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
			return nil, errs.Wrapf(errs.TransportError, "udpclient: set read deadline: %v", err)
		}

		want := scrapeResponseHeader + scrapeTripleSize*len(batch)
		buf := make([]byte, want+64)
		n, err := c.sess.conn.Read(buf)
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				lastErr = errs.Wrap(errs.Timeout, "udpclient: scrape timed out")
				continue
			}
			return nil, errs.Wrapf(errs.TransportError, "udpclient: scrape read: %v", err)
		}

		if n < scrapeResponseHeader {
			lastErr = errs.Wrap(errs.ProtocolError, "udpclient: scrape response too short")
			continue
		}
		action, gotTID := decodeScrapeResponseHeader(buf[:n])
		if gotTID != tid {
			lastErr = errs.Wrap(errs.ProtocolError, "udpclient: transaction id mismatch in scrape response")
			continue
		}

		if action == actionError {
			msg := string(buf[8:n])
			c.log.WithField("message", msg).Warn("udpclient: tracker returned an error frame")
			return nil, errs.Wrapf(errs.TrackerError, "udpclient: tracker error: %s", msg)
		}
		if action != actionScrape {
			lastErr = errs.Wrap(errs.ProtocolError, "udpclient: unexpected action in scrape response")
			continue
		}
		if n < want {
			lastErr = errs.Wrap(errs.ProtocolError, "udpclient: scrape response too short")
			continue
		}

		triples := decodeScrapeTriples(buf[:n], len(batch))
		stats := make([]Stat, len(batch))
		for i, h := range batch {
			stats[i] = Stat{
				InfoHash:   h,
				Complete:   triples[i].complete,
				Downloaded: triples[i].downloaded,
				Incomplete: triples[i].incomplete,
			}
		}
		return stats, nil
	}
	if lastErr == nil {
		lastErr = errs.Wrap(errs.Timeout, "udpclient: scrape retry budget exhausted")
	}
	return nil, lastErr
}
