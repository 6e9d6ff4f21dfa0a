package udpclient

import (
	"net"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/driftwood-labs/trackerscrape/errs"
)

// session holds the ephemeral per-scrape-call UDP handshake state: the
// connected socket, the acquired connection id, and when it was acquired so
// its TTL can be checked before reuse.
type session struct {
	conn         net.Conn
	connectionID uint64
	connectedAt  time.Time
	retryPolicy  RetryPolicy
	log          logrus.FieldLogger
}

func dial(remoteAddr string, dialTimeout time.Duration) (net.Conn, error) {
	conn, err := net.DialTimeout("udp", remoteAddr, dialTimeout)
	if err != nil {
		return nil, errs.Wrapf(errs.TransportError, "udpclient: dial %s: %v", remoteAddr, err)
	}
	return conn, nil
}

// connected reports whether the connection id is still within its TTL
// window.
func (s *session) connected() bool {
	return !s.connectedAt.IsZero() && time.Since(s.connectedAt) < connectionIDTTL
}

// connect performs the BEP-15 connect handshake, retransmitting per
// s.retryPolicy until a valid reply arrives or the attempt budget is
// exhausted. On success it stores the connection id and stamps connectedAt.
func (s *session) connect() error {
	var lastErr error
	for attempt := 0; attempt < s.retryPolicy.MaxAttempts; attempt++ {
		tid := newTransactionID()
		req := encodeConnectRequest(tid)
		timeout := s.retryPolicy.Timeout(attempt)

		s.log.WithFields(logrus.Fields{"attempt": attempt, "timeout": timeout}).Debug("udpclient: sending connect request")

		if err := s.conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
			return errs.Wrapf(errs.TransportError, "udpclient: set write deadline: %v", err)
		}
		if _, err := s.conn.Write(req); err != nil {
			return errs.Wrapf(errs.TransportError, "udpclient: connect write: %v", err)
		}

		if err := s.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
			return errs.Wrapf(errs.TransportError, "udpclient: set read deadline: %v", err)
		}

		buf := make([]byte, 512)
		n, err := s.conn.Read(buf)
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				lastErr = errs.Wrap(errs.Timeout, "udpclient: connect timed out")
				continue
			}
			return errs.Wrapf(errs.TransportError, "udpclient: connect read: %v", err)
		}
		if n < connectResponseSize {
			lastErr = errs.Wrap(errs.ProtocolError, "udpclient: connect response too short")
			continue
		}

		resp := decodeConnectResponse(buf[:n])
		if resp.action != actionConnect {
			lastErr = errs.Wrap(errs.ProtocolError, "udpclient: unexpected action in connect response")
			continue
		}
		if resp.transactionID != tid {
			// Stale or spoofed reply: drop it and move on to the next
			// attempt, which sends a fresh request. Any time left in this
			// attempt's read window is not spent waiting for a matching
			// reply.
			lastErr = errs.Wrap(errs.ProtocolError, "udpclient: transaction id mismatch in connect response")
			continue
		}

		s.connectionID = resp.connectionID
		s.connectedAt = time.Now()
		return nil
	}
	if lastErr == nil {
		lastErr = errs.Wrap(errs.Timeout, "udpclient: connect retry budget exhausted")
	}
	return lastErr
}
