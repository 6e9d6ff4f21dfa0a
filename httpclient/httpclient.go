// Package httpclient implements the HTTP(S) half of the BitTorrent tracker
// scrape protocol: URL rewriting, the scrape GET request, and decoding the
// bencoded response into per-hash stats.
package httpclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/driftwood-labs/trackerscrape/bencode"
	"github.com/driftwood-labs/trackerscrape/errs"
)

// Client scrapes one HTTP/HTTPS tracker.
type Client struct {
	httpClient *http.Client
	log        logrus.FieldLogger
}

// New creates an HTTP scrape client bounded by the given total request
// timeout.
func New(timeout time.Duration, log logrus.FieldLogger) *Client {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		log:        log,
	}
}

// Scrape issues a single GET to trackerURL (rewritten from /announce to
// /scrape per the HTTP tracker scrape convention) carrying one info_hash
// parameter per hash, and decodes the bencoded files dict in the response.
//
// Hashes absent from the response's files dict yield no Stat. The returned
// Stat records do not carry the tracker URL.
func (c *Client) Scrape(ctx context.Context, trackerURL string, hashes [][20]byte) ([]Stat, error) {
	scrapeURL, err := buildScrapeURL(trackerURL, hashes)
	if err != nil {
		return nil, errs.Wrapf(errs.UrlError, "httpclient: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, scrapeURL, nil)
	if err != nil {
		return nil, errs.Wrapf(errs.UrlError, "httpclient: building request: %v", err)
	}

	c.log.WithField("url", scrapeURL).Debug("httpclient: issuing scrape request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errs.Wrapf(errs.TransportError, "httpclient: request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errs.Wrapf(errs.TrackerError, "httpclient: non-2xx status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, errs.Wrapf(errs.TransportError, "httpclient: reading body: %v", err)
	}

	return parseScrapeResponse(body)
}

// Stat is one hash's worth of scrape data, keyed by raw info hash.
type Stat struct {
	InfoHash   [20]byte
	Complete   uint32
	Incomplete uint32
	Downloaded uint32
}

// buildScrapeURL rewrites a tracker URL per the /announce -> /scrape
// convention and appends one percent-encoded info_hash parameter per hash.
//
// net/url's query encoder escapes space as '+' rather than %20 and is not
// used here: a raw 20-byte hash needs strict RFC 3986 unreserved-byte
// encoding, so the query string is assembled by hand.
func buildScrapeURL(trackerURL string, hashes [][20]byte) (string, error) {
	u, err := url.Parse(trackerURL)
	if err != nil {
		return "", fmt.Errorf("parsing tracker url: %w", err)
	}

	if strings.HasSuffix(u.Path, "/announce") {
		u.Path = strings.TrimSuffix(u.Path, "/announce") + "/scrape"
	}

	var qs strings.Builder
	if u.RawQuery != "" {
		qs.WriteString(u.RawQuery)
	}
	for _, h := range hashes {
		if qs.Len() > 0 {
			qs.WriteByte('&')
		}
		qs.WriteString("info_hash=")
		qs.WriteString(percentEncodeUnreserved(h[:]))
	}
	u.RawQuery = qs.String()
	return u.String(), nil
}

const upperHex = "0123456789ABCDEF"

// percentEncodeUnreserved implements RFC 3986's unreserved set
// (ALPHA / DIGIT / "-" / "." / "_" / "~"); every other byte is escaped as
// %XX.
func percentEncodeUnreserved(b []byte) string {
	var sb strings.Builder
	for _, c := range b {
		if isUnreserved(c) {
			sb.WriteByte(c)
			continue
		}
		sb.WriteByte('%')
		sb.WriteByte(upperHex[c>>4])
		sb.WriteByte(upperHex[c&0x0f])
	}
	return sb.String()
}

func isUnreserved(c byte) bool {
	switch {
	case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9':
		return true
	case c == '-' || c == '.' || c == '_' || c == '~':
		return true
	default:
		return false
	}
}

func parseScrapeResponse(body []byte) ([]Stat, error) {
	v, _, err := bencode.Decode(body)
	if err != nil {
		return nil, errs.Wrapf(errs.ProtocolError, "httpclient: decoding bencode: %v", err)
	}
	if v.Kind != bencode.KindDict {
		return nil, errs.Wrap(errs.ProtocolError, "httpclient: top-level response is not a dict")
	}
	filesVal, ok := v.Dict["files"]
	if !ok || filesVal.Kind != bencode.KindDict {
		return nil, errs.Wrap(errs.ProtocolError, "httpclient: response missing files dict")
	}

	stats := make([]Stat, 0, len(filesVal.Dict))
	for key, entry := range filesVal.Dict {
		if len(key) != 20 {
			continue
		}
		var ih [20]byte
		copy(ih[:], key)
		stats = append(stats, Stat{
			InfoHash:   ih,
			Complete:   entry.GetInt("complete"),
			Incomplete: entry.GetInt("incomplete"),
			Downloaded: entry.GetInt("downloaded"),
		})
	}
	return stats, nil
}
