package scheduler

import (
	"context"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftwood-labs/trackerscrape/udpclient"
)

func hashFromHex(t *testing.T, s string) InfoHash {
	t.Helper()
	b, err := hex.DecodeString(s)
	require.NoError(t, err)
	var h InfoHash
	copy(h[:], b)
	return h
}

func toHexFn(h InfoHash) string { return hex.EncodeToString(h[:]) }

func fastRetryPolicy() udpclient.RetryPolicy {
	return udpclient.RetryPolicy{BaseTimeout: 150 * time.Millisecond, Multiplier: 1, MaxAttempts: 2}
}

func testConfig() Config {
	return Config{
		HTTPTimeout:       2 * time.Second,
		PerScrapeTimeout:  3 * time.Second,
		UDPRetryPolicy:    fastRetryPolicy(),
		UDPConnectTimeout: time.Second,
	}
}

func bencodeFileEntry(h InfoHash, complete, incomplete, downloaded uint32) string {
	return "20:" + string(h[:]) + "d8:completei" + strconv.Itoa(int(complete)) +
		"e10:incompletei" + strconv.Itoa(int(incomplete)) +
		"e10:downloadedi" + strconv.Itoa(int(downloaded)) + "ee"
}

func TestScrapeAll_TwoHashesTwoHTTPTrackers(t *testing.T) {
	h1 := hashFromHex(t, "1111111111111111111111111111111111111111")
	h2 := hashFromHex(t, "2222222222222222222222222222222222222222")

	makeServer := func(complete, incomplete, downloaded uint32) *httptest.Server {
		return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body := "d5:filesd" +
				bencodeFileEntry(h1, complete, incomplete, downloaded) +
				bencodeFileEntry(h2, complete, incomplete, downloaded) +
				"ee"
			w.Write([]byte(body))
		}))
	}

	srv1 := makeServer(5, 1, 10)
	defer srv1.Close()
	srv2 := makeServer(6, 2, 11)
	defer srv2.Close()

	s := New(testConfig())
	res := s.ScrapeAll(context.Background(), []InfoHash{h1, h2}, []string{srv1.URL, srv2.URL}, toHexFn)

	require.Len(t, res, 2)
	assert.Len(t, res[toHexFn(h1)], 2)
	assert.Len(t, res[toHexFn(h2)], 2)
}

func TestScrapeAll_KeyTotalityDespiteFailure(t *testing.T) {
	h1 := hashFromHex(t, "3333333333333333333333333333333333333333")

	// Nothing listens here; the connect handshake fails (the ICMP
	// port-unreachable reply surfaces as a read error, or, if no such reply
	// arrives, the retry budget runs out) and surfaces as a per-tracker
	// failure.
	badURL := "udp://127.0.0.1:1"

	s := New(Config{
		HTTPTimeout:       500 * time.Millisecond,
		PerScrapeTimeout:  1200 * time.Millisecond,
		UDPRetryPolicy:    fastRetryPolicy(),
		UDPConnectTimeout: 300 * time.Millisecond,
	})
	res := s.ScrapeAll(context.Background(), []InfoHash{h1}, []string{badURL}, toHexFn)

	require.Contains(t, res, toHexFn(h1))
	assert.Empty(t, res[toHexFn(h1)])
}

func TestScrapeAll_URLFidelity(t *testing.T) {
	h1 := hashFromHex(t, "4444444444444444444444444444444444444444")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body := "d5:filesd" + bencodeFileEntry(h1, 1, 0, 0) + "ee"
		w.Write([]byte(body))
	}))
	defer srv.Close()

	s := New(testConfig())
	res := s.ScrapeAll(context.Background(), []InfoHash{h1}, []string{srv.URL}, toHexFn)

	require.Len(t, res[toHexFn(h1)], 1)
	assert.Equal(t, srv.URL, res[toHexFn(h1)][0].TrackerURL)
}

func TestScrapeBatch_OneRequestPerTracker(t *testing.T) {
	h1 := hashFromHex(t, "5555555555555555555555555555555555555555")
	h2 := hashFromHex(t, "6666666666666666666666666666666666666666")

	var srv1Hashes, srv2Hashes []string
	srv1 := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		srv1Hashes = r.URL.Query()["info_hash"]
		body := "d5:filesd" + bencodeFileEntry(h1, 1, 0, 0) + "ee"
		w.Write([]byte(body))
	}))
	defer srv1.Close()
	srv2 := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		srv2Hashes = r.URL.Query()["info_hash"]
		body := "d5:filesd" + bencodeFileEntry(h2, 1, 0, 0) + "ee"
		w.Write([]byte(body))
	}))
	defer srv2.Close()

	s := New(testConfig())
	items := []BatchItem{
		{Hash: h1, Trackers: []string{srv1.URL}},
		{Hash: h2, Trackers: []string{srv2.URL}},
	}
	res := s.ScrapeBatch(context.Background(), items, toHexFn)

	require.Len(t, res[toHexFn(h1)], 1)
	require.Len(t, res[toHexFn(h2)], 1)
	assert.Len(t, srv1Hashes, 1)
	assert.Len(t, srv2Hashes, 1)
}
