package main

import (
	"bufio"
	"net"
	"time"

	"github.com/horgh/irc"
	"github.com/pkg/errors"
)

// Conn wraps a TCP connection with the wire codec (§2.1, §6). It reads and
// writes whole protocol lines; the grammar/encoding itself belongs to the
// vendored irc package, not to the core.
type Conn struct {
	conn net.Conn
	rw   *bufio.ReadWriter

	// ioTimeout bounds how long a single read or write may take. It exists so
	// a half-open TCP connection eventually surfaces as an error rather than
	// wedging a goroutine forever; it is not a protocol-level idle timeout
	// (that is Server.sweepIdleClients, §4.7).
	ioTimeout time.Duration

	IP net.IP
}

// NewConn wraps conn, recording its remote IP for use in logs and replies.
func NewConn(conn net.Conn, ioTimeout time.Duration) (*Conn, error) {
	tcpAddr, err := net.ResolveTCPAddr("tcp", conn.RemoteAddr().String())
	if err != nil {
		return nil, errors.Wrap(err, "unable to resolve remote address")
	}

	return &Conn{
		conn:      conn,
		rw:        bufio.NewReadWriter(bufio.NewReader(conn), bufio.NewWriter(conn)),
		ioTimeout: ioTimeout,
		IP:        tcpAddr.IP,
	}, nil
}

// RemoteAddr returns the remote network address, for logs.
func (c *Conn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// Close closes the underlying connection.
func (c *Conn) Close() error {
	return c.conn.Close()
}

// ReadMessage blocks for one line from the connection and parses it as an
// IRC protocol message. A malformed line (§7 GrammarError) is returned as
// an error distinct from a connection error so the caller can tell whether
// to continue reading or give up on the connection.
func (c *Conn) ReadMessage() (irc.Message, error) {
	if err := c.conn.SetReadDeadline(time.Now().Add(c.ioTimeout)); err != nil {
		return irc.Message{}, errors.Wrap(err, "unable to set read deadline")
	}

	line, err := c.rw.ReadString('\n')
	if err != nil {
		return irc.Message{}, err
	}

	message, err := irc.ParseMessage(line)
	if err != nil && err != irc.ErrTruncated {
		return irc.Message{}, &grammarError{raw: line, cause: err}
	}

	return message, nil
}

// writeRaw writes an already-encoded protocol line (CRLF included) to the
// connection. Replies are rendered to text once, by the replies type, and
// queued as plain strings (§2.5 OutboundEvent); this is the only place that
// text ever touches the wire.
func (c *Conn) writeRaw(text string) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.ioTimeout)); err != nil {
		return errors.Wrap(err, "unable to set write deadline")
	}

	n, err := c.rw.WriteString(text)
	if err != nil {
		return err
	}
	if n != len(text) {
		return errors.New("short write")
	}

	return c.rw.Flush()
}
