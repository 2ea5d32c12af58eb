package network

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/ZentaChain/zerocom/pkg/protocol"
)

// Connection wraps a byte stream with a fixed per-operation timeout.
//
// ReadExactly returns exactly the requested number of bytes or fails; it never returns a short read.
// Timeouts are enforced through SetReadDeadline/SetWriteDeadline, so they only apply to streams
// that support deadlines (every net.Conn does). A timeout of zero means no timeout.
//
// A Connection is owned by one goroutine at a time; Close may be called from any goroutine and
// unblocks a pending read.
type Connection struct {
	rw      io.ReadWriteCloser
	timeout time.Duration

	closeOnce sync.Once
	closeErr  error
	closed    atomic.Bool
}

type readDeadliner interface {
	SetReadDeadline(t time.Time) error
}

type writeDeadliner interface {
	SetWriteDeadline(t time.Time) error
}

type remoteAddresser interface {
	RemoteAddr() net.Addr
}

// NewConnection wraps rw. The Connection takes ownership of rw and closes it on Close.
func NewConnection(rw io.ReadWriteCloser, timeout time.Duration) *Connection {
	if timeout < 0 {
		timeout = 0
	}
	return &Connection{rw: rw, timeout: timeout}
}

// Timeout returns the per-operation timeout; zero means infinite.
func (c *Connection) Timeout() time.Duration {
	return c.timeout
}

// RemoteAddr returns the peer address of the underlying stream, or "" if it has none.
func (c *Connection) RemoteAddr() string {
	if ra, ok := c.rw.(remoteAddresser); ok && ra.RemoteAddr() != nil {
		return ra.RemoteAddr().String()
	}
	return ""
}

// Closed reports whether Close has been called.
func (c *Connection) Closed() bool {
	return c.closed.Load()
}

// ReadExactly reads n bytes, accumulating as many underlying reads as needed.
//
// Each underlying read is bounded by the timeout and fails with protocol.ErrTimeout when it
// expires. A read that reports closure (EOF, a zero-byte read, a closed or reset stream) fails
// with protocol.ErrNoData if nothing was accumulated yet, and with a *protocol.PartialDataError
// carrying the accumulated bytes otherwise.
func (c *Connection) ReadExactly(n int) ([]byte, error) {
	if n < 0 {
		return nil, fmt.Errorf("negative read length %d", n)
	}
	buf := make([]byte, n)
	got := 0
	for got < n {
		if c.timeout > 0 {
			if d, ok := c.rw.(readDeadliner); ok {
				// Failure here means the stream is already closed; the read below reports it.
				_ = d.SetReadDeadline(time.Now().Add(c.timeout))
			}
		}

		k, err := c.rw.Read(buf[got:])
		got += k
		if got == n {
			break
		}
		if err == nil && k > 0 {
			continue
		}
		if err == nil {
			err = io.ErrNoProgress
		}

		switch {
		case isTimeout(err):
			return nil, fmt.Errorf("%w after %s (got %d of %d bytes)", protocol.ErrTimeout, c.timeout, got, n)
		case isClosure(err) || c.closed.Load():
			if got == 0 {
				return nil, fmt.Errorf("%w: %w", protocol.ErrNoData, err)
			}
			return nil, &protocol.PartialDataError{Partial: buf[:got], Want: n, Err: err}
		default:
			return nil, fmt.Errorf("read failed: %w", err)
		}
	}
	return buf, nil
}

// WriteRaw writes p in full, bounded by the timeout.
func (c *Connection) WriteRaw(p []byte) error {
	if c.timeout > 0 {
		if d, ok := c.rw.(writeDeadliner); ok {
			_ = d.SetWriteDeadline(time.Now().Add(c.timeout))
		}
	}
	if _, err := c.rw.Write(p); err != nil {
		if isTimeout(err) {
			return fmt.Errorf("write: %w after %s", protocol.ErrTimeout, c.timeout)
		}
		return fmt.Errorf("write failed: %w", err)
	}
	return nil
}

// Close releases the underlying stream. Only the first call has an effect; later calls return nil.
func (c *Connection) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		c.closeErr = c.rw.Close()
	})
	return c.closeErr
}

// ReadVarint decodes a varint of at most maxBits bits from the stream.
func (c *Connection) ReadVarint(maxBits uint) (uint64, error) {
	return protocol.ReadVarint(c, maxBits)
}

// WriteVarint encodes v as a varint of at most maxBits bits.
func (c *Connection) WriteVarint(v uint64, maxBits uint) error {
	return protocol.WriteVarint(c, v, maxBits)
}

// ReadUTF decodes a length-prefixed UTF-8 string from the stream.
func (c *Connection) ReadUTF() (string, error) {
	return protocol.ReadUTF(c)
}

// WriteUTF encodes s as a length-prefixed UTF-8 string.
func (c *Connection) WriteUTF(s string) error {
	return protocol.WriteUTF(c, s)
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func isClosure(err error) bool {
	return errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, io.ErrNoProgress) ||
		errors.Is(err, io.ErrClosedPipe) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE)
}
