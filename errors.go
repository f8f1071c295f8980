package main

import (
	"fmt"
	"io"
	"net"
	"strings"
)

// grammarError wraps a line the codec could split out but the grammar
// rejected (§7 GrammarError). Its text is what we echo back to the sender;
// it never disconnects the session on its own.
type grammarError struct {
	raw   string
	cause error
}

func (e *grammarError) Error() string {
	return fmt.Sprintf("malformed message %q: %s", strings.TrimRight(e.raw, "\r\n"), e.cause)
}

// quitReasonForReadError turns a connection-level read failure into the
// human-readable reason recorded against the QUIT fan-out (§4.1 Closing:
// "Connection loss or closed stream causes transition to Closing", using
// the same teardown path as an explicit QUIT).
func quitReasonForReadError(err error) string {
	if err == nil {
		return "Connection lost"
	}
	if err == io.EOF {
		return "Connection closed"
	}
	if ne, ok := err.(net.Error); ok && ne.Timeout() {
		return "Ping timeout"
	}
	msg := err.Error()
	if strings.Contains(msg, "connection reset by peer") {
		return "Connection reset by peer"
	}
	if strings.Contains(msg, "use of closed network connection") {
		return "Connection closed"
	}
	return "Connection lost"
}
