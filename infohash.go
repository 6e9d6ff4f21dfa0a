package trackerscrape

import (
	"encoding/hex"

	"github.com/driftwood-labs/trackerscrape/errs"
)

// InfoHashSize is the length in bytes of a BitTorrent info hash (SHA-1).
const InfoHashSize = 20

// InfoHash is the raw 20-byte fingerprint of a torrent's info dictionary.
// At the API boundary it is accepted and returned as a 40-character
// lowercase hex string; internally it is carried as raw bytes.
type InfoHash [InfoHashSize]byte

// ParseInfoHash decodes a 40-character lowercase hex string into an
// InfoHash. It rejects any string whose length is not 40, that contains
// non-hex characters, or that contains uppercase hex digits.
func ParseInfoHash(hexHash string) (InfoHash, error) {
	var ih InfoHash
	if len(hexHash) != InfoHashSize*2 {
		return ih, errs.Wrapf(errs.InvalidInfoHash, "info hash %q: want %d hex characters, got %d", hexHash, InfoHashSize*2, len(hexHash))
	}
	for _, c := range hexHash {
		if c >= 'A' && c <= 'F' {
			return ih, errs.Wrapf(errs.InvalidInfoHash, "info hash %q: must be lowercase hex", hexHash)
		}
	}
	n, err := hex.Decode(ih[:], []byte(hexHash))
	if err != nil {
		return InfoHash{}, errs.Wrapf(errs.InvalidInfoHash, "info hash %q: %v", hexHash, err)
	}
	if n != InfoHashSize {
		return InfoHash{}, errs.Wrapf(errs.InvalidInfoHash, "info hash %q: short decode", hexHash)
	}
	return ih, nil
}

// String returns the lowercase hex encoding of the info hash.
func (ih InfoHash) String() string {
	return hex.EncodeToString(ih[:])
}

// Bytes returns the raw 20-byte representation.
func (ih InfoHash) Bytes() []byte {
	return ih[:]
}
