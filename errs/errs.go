// Package errs defines the error taxonomy shared by the scrape clients and
// the fan-out scheduler.
//
// Every sentinel here except InvalidInfoHash is a per-tracker failure:
// scheduler.Scheduler never
// lets one propagate out of a scrape call. The only error that reaches a
// caller synchronously is InvalidInfoHash, raised at API entry before any
// network I/O happens.
package errs

import "github.com/pkg/errors"

var (
	// InvalidInfoHash is returned when a hex-encoded info hash is not
	// exactly 40 hex characters.
	InvalidInfoHash = errors.New("invalid info hash")

	// UrlError wraps an unparseable tracker URL or an unsupported scheme.
	UrlError = errors.New("invalid tracker url")

	// ResolutionError wraps a DNS resolution failure for a UDP tracker host.
	ResolutionError = errors.New("could not resolve tracker host")

	// TransportError wraps a socket-level failure (dial, write, ICMP
	// unreachable) that is not a timeout.
	TransportError = errors.New("transport error")

	// Timeout is returned once a client exhausts its retransmission or
	// request policy without a valid reply.
	Timeout = errors.New("tracker request timed out")

	// ProtocolError wraps a malformed reply: bad action, bad transaction
	// id, truncated packet, wrong length, or a bencode decode failure.
	ProtocolError = errors.New("protocol error")

	// TrackerError wraps an explicit failure reported by the tracker
	// itself (UDP action=3, or an HTTP non-2xx status).
	TrackerError = errors.New("tracker reported an error")
)

// Wrap attaches msg as context to a sentinel, preserving errors.Is/As.
func Wrap(sentinel error, msg string) error {
	return errors.Wrap(sentinel, msg)
}

// Wrapf is Wrap with formatting.
func Wrapf(sentinel error, format string, args ...interface{}) error {
	return errors.Wrapf(sentinel, format, args...)
}
