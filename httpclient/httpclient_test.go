package httpclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hashesFromStrings(t *testing.T, ss ...string) [][20]byte {
	t.Helper()
	out := make([][20]byte, len(ss))
	for i, s := range ss {
		require.Len(t, s, 20)
		copy(out[i][:], s)
	}
	return out
}

func TestBuildScrapeURL_AnnounceRewrite(t *testing.T) {
	url, err := buildScrapeURL("http://host/announce", hashesFromStrings(t, "AAAAAAAAAAAAAAAAAAAA"))
	require.NoError(t, err)
	assert.Contains(t, url, "http://host/scrape?info_hash=")
}

func TestBuildScrapeURL_NonAnnouncePath(t *testing.T) {
	url, err := buildScrapeURL("http://host/x", hashesFromStrings(t, "AAAAAAAAAAAAAAAAAAAA"))
	require.NoError(t, err)
	assert.Contains(t, url, "http://host/x?info_hash=")
}

func TestBuildScrapeURL_PreservesExistingQuery(t *testing.T) {
	url, err := buildScrapeURL("http://host/announce?passkey=abc", hashesFromStrings(t, "AAAAAAAAAAAAAAAAAAAA"))
	require.NoError(t, err)
	assert.Contains(t, url, "passkey=abc&info_hash=")
}

func TestScrape_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hashes := r.URL.Query()["info_hash"]
		require.Len(t, hashes, 2)
		body := "d5:filesd20:AAAAAAAAAAAAAAAAAAAAd8:completei10e10:incompletei3e10:downloadedi99ee20:BBBBBBBBBBBBBBBBBBBBd8:completei1e10:incompletei2e10:downloadedi3eeee"
		w.Write([]byte(body))
	}))
	defer srv.Close()

	c := New(5*time.Second, nil)
	stats, err := c.Scrape(context.Background(), srv.URL+"/scrape", hashesFromStrings(t, "AAAAAAAAAAAAAAAAAAAA", "BBBBBBBBBBBBBBBBBBBB"))
	require.NoError(t, err)
	require.Len(t, stats, 2)

	byHash := map[[20]byte]Stat{}
	for _, s := range stats {
		byHash[s.InfoHash] = s
	}
	var a, b [20]byte
	copy(a[:], "AAAAAAAAAAAAAAAAAAAA")
	copy(b[:], "BBBBBBBBBBBBBBBBBBBB")
	assert.Equal(t, uint32(10), byHash[a].Complete)
	assert.Equal(t, uint32(3), byHash[a].Incomplete)
	assert.Equal(t, uint32(99), byHash[a].Downloaded)
	assert.Equal(t, uint32(1), byHash[b].Complete)
}

func TestScrape_NonOKStatusIsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := New(5*time.Second, nil)
	_, err := c.Scrape(context.Background(), srv.URL+"/scrape", hashesFromStrings(t, "AAAAAAAAAAAAAAAAAAAA"))
	assert.Error(t, err)
}

func TestScrape_MalformedBodyIsProtocolError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not bencode"))
	}))
	defer srv.Close()

	c := New(5*time.Second, nil)
	_, err := c.Scrape(context.Background(), srv.URL+"/scrape", hashesFromStrings(t, "AAAAAAAAAAAAAAAAAAAA"))
	assert.Error(t, err)
}

func TestScrape_AbsentHashYieldsNoRecord(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("d5:filesdee"))
	}))
	defer srv.Close()

	c := New(5*time.Second, nil)
	stats, err := c.Scrape(context.Background(), srv.URL+"/scrape", hashesFromStrings(t, "AAAAAAAAAAAAAAAAAAAA"))
	require.NoError(t, err)
	assert.Empty(t, stats)
}
