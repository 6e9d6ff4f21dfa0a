package udpclient

import (
	"encoding/binary"
	"math/rand"
	"time"
)

const (
	// protocolMagic is the fixed connection-id value used in a connect
	// request, per BEP 15.
	protocolMagic uint64 = 0x41727101980

	actionConnect uint32 = 0
	actionScrape  uint32 = 2
	actionError   uint32 = 3

	connectRequestSize  = 16
	connectResponseSize = 16
	scrapeRequestHeader = 16
	scrapeResponseHeader = 8
	scrapeTripleSize    = 12
	infoHashSize        = 20

	// maxHashesPerDatagram keeps a scrape request under typical MTU:
	// 16 + 20*74 = 1496 bytes.
	maxHashesPerDatagram = 74

	// connectionIDTTL is the conventional server-side validity window for
	// a connection id (BEP 15).
	connectionIDTTL = 60 * time.Second
)

// newTransactionID returns a fresh random transaction id. It uses the
// top-level math/rand functions rather than a package-local *rand.Rand:
// the global source is mutex-guarded, which matters here since the
// scheduler scrapes multiple UDP trackers concurrently, each calling this
// from its own goroutine.
func newTransactionID() uint32 {
	return uint32(rand.Int31())
}

// encodeConnectRequest builds the 16-byte BEP-15 connect request.
func encodeConnectRequest(tid uint32) []byte {
	buf := make([]byte, connectRequestSize)
	binary.BigEndian.PutUint64(buf[0:8], protocolMagic)
	binary.BigEndian.PutUint32(buf[8:12], actionConnect)
	binary.BigEndian.PutUint32(buf[12:16], tid)
	return buf
}

// connectResponse is the decoded 16-byte connect reply.
type connectResponse struct {
	action        uint32
	transactionID uint32
	connectionID  uint64
}

func decodeConnectResponse(b []byte) connectResponse {
	return connectResponse{
		action:        binary.BigEndian.Uint32(b[0:4]),
		transactionID: binary.BigEndian.Uint32(b[4:8]),
		connectionID:  binary.BigEndian.Uint64(b[8:16]),
	}
}

// encodeScrapeRequest builds a scrape request for at most
// maxHashesPerDatagram hashes.
func encodeScrapeRequest(connectionID uint64, tid uint32, hashes [][infoHashSize]byte) []byte {
	buf := make([]byte, scrapeRequestHeader+infoHashSize*len(hashes))
	binary.BigEndian.PutUint64(buf[0:8], connectionID)
	binary.BigEndian.PutUint32(buf[8:12], actionScrape)
	binary.BigEndian.PutUint32(buf[12:16], tid)
	for i, h := range hashes {
		copy(buf[scrapeRequestHeader+i*infoHashSize:], h[:])
	}
	return buf
}

// scrapeTriple is one (complete, downloaded, incomplete) triple from a
// scrape response, in the order BEP 15 puts them on the wire.
type scrapeTriple struct {
	complete   uint32
	downloaded uint32
	incomplete uint32
}

// decodeScrapeResponseHeader reads the action and transaction id prefixing
// a scrape (or error) response.
func decodeScrapeResponseHeader(b []byte) (action uint32, tid uint32) {
	return binary.BigEndian.Uint32(b[0:4]), binary.BigEndian.Uint32(b[4:8])
}

// decodeScrapeTriples parses n consecutive 12-byte triples starting right
// after the 8-byte scrape response header.
func decodeScrapeTriples(b []byte, n int) []scrapeTriple {
	triples := make([]scrapeTriple, n)
	for i := 0; i < n; i++ {
		off := scrapeResponseHeader + i*scrapeTripleSize
		triples[i] = scrapeTriple{
			complete:   binary.BigEndian.Uint32(b[off : off+4]),
			downloaded: binary.BigEndian.Uint32(b[off+4 : off+8]),
			incomplete: binary.BigEndian.Uint32(b[off+8 : off+12]),
		}
	}
	return triples
}

// batchHashes splits hashes into groups of at most maxHashesPerDatagram.
func batchHashes(hashes [][infoHashSize]byte) [][][infoHashSize]byte {
	var batches [][][infoHashSize]byte
	for len(hashes) > 0 {
		n := len(hashes)
		if n > maxHashesPerDatagram {
			n = maxHashesPerDatagram
		}
		batches = append(batches, hashes[:n])
		hashes = hashes[n:]
	}
	return batches
}
