package main

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/horgh/irc"
	"github.com/stretchr/testify/require"
)

// testClient is a minimal raw-TCP IRC client for driving Server end to end,
// in the same spirit as the teacher's reader/writer-goroutine harness, but
// synchronous: each test reads exactly the replies it expects, in order.
type testClient struct {
	t    *testing.T
	conn net.Conn
	rw   *bufio.ReadWriter
}

func dialTestClient(t *testing.T, addr string) *testClient {
	t.Helper()
	conn, err := net.DialTimeout("tcp", addr, 2*time.Second)
	require.NoError(t, err, "dial test server")
	return &testClient{
		t:    t,
		conn: conn,
		rw:   bufio.NewReadWriter(bufio.NewReader(conn), bufio.NewWriter(conn)),
	}
}

func (c *testClient) send(command string, params ...string) {
	c.t.Helper()
	text, err := irc.Message{Command: command, Params: params}.Encode()
	require.NoError(c.t, err, "encode message")
	_, err = c.rw.WriteString(text)
	require.NoError(c.t, err, "write message")
	require.NoError(c.t, c.rw.Flush(), "flush message")
}

func (c *testClient) register(nick string) {
	c.send("NICK", nick)
	c.send("USER", nick, "0", "*", nick)
}

// recv reads one line and requires it to carry the given command (a numeric
// or a bare command like JOIN/PART/QUIT/PRIVMSG).
func (c *testClient) recv(wantCommand string) irc.Message {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(2*time.Second)), "set read deadline")
	line, err := c.rw.ReadString('\n')
	require.NoError(c.t, err, "read line")
	m, err := irc.ParseMessage(line)
	if err != nil && err != irc.ErrTruncated {
		c.t.Fatalf("unable to parse line %q: %s", strings.TrimRight(line, "\r\n"), err)
	}
	require.Equal(c.t, wantCommand, m.Command, "unexpected command, line was %q", strings.TrimRight(line, "\r\n"))
	return m
}

func (c *testClient) drainRegistrationBurst() {
	for _, want := range []string{"001", "002", "003", "004", "251", "254", "255", "375", "372", "376"} {
		c.recv(want)
	}
}

func (c *testClient) close() {
	_ = c.conn.Close()
}

func startTestServer(t *testing.T) (addr string, shutdown func()) {
	t.Helper()
	config := defaultConfig()
	config.ListenHost = "127.0.0.1"
	config.ListenPort = "0"

	ln, err := net.Listen("tcp", net.JoinHostPort(config.ListenHost, config.ListenPort))
	require.NoError(t, err, "listen")
	addr = ln.Addr().String()

	server := NewServer(config)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		defer close(done)
		go func() {
			<-ctx.Done()
			_ = ln.Close()
		}()
		go server.sweepIdleClients(ctx)
		server.acceptLoop(ctx, ln)
		server.wg.Wait()
	}()

	return addr, func() {
		cancel()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("server did not shut down in time")
		}
	}
}

func TestLoginHappyPath(t *testing.T) {
	addr, shutdown := startTestServer(t)
	defer shutdown()

	c1 := dialTestClient(t, addr)
	defer c1.close()

	c1.register("alice")
	welcome := c1.recv("001")
	require.Equal(t, []string{"alice", fmt.Sprintf("Welcome to the Internet Relay Network alice")}, welcome.Params)
	for _, want := range []string{"002", "003", "004", "251", "254", "255", "375", "372", "376"} {
		c1.recv(want)
	}
}

func TestNickCollision(t *testing.T) {
	addr, shutdown := startTestServer(t)
	defer shutdown()

	c1 := dialTestClient(t, addr)
	defer c1.close()
	c1.register("alice")
	c1.drainRegistrationBurst()

	c2 := dialTestClient(t, addr)
	defer c2.close()
	c2.send("NICK", "alice")
	c2.send("USER", "alice", "0", "*", "alice")
	collision := c2.recv("436")
	require.Equal(t, []string{"*", "alice", "Nickname is already in use"}, collision.Params)
}

func TestChannelBroadcastNonEcho(t *testing.T) {
	addr, shutdown := startTestServer(t)
	defer shutdown()

	c1 := dialTestClient(t, addr)
	defer c1.close()
	c1.register("alice")
	c1.drainRegistrationBurst()

	c2 := dialTestClient(t, addr)
	defer c2.close()
	c2.register("bob")
	c2.drainRegistrationBurst()

	c1.send("JOIN", "#rust")
	join1 := c1.recv("JOIN")
	require.Equal(t, "alice", join1.SourceNick())
	c1.recv("353")
	c1.recv("366")

	c2.send("JOIN", "#rust")
	// Both existing members, including the joiner, see bob's join.
	joinC1 := c1.recv("JOIN")
	require.Equal(t, "bob", joinC1.SourceNick())
	joinC2 := c2.recv("JOIN")
	require.Equal(t, "bob", joinC2.SourceNick())
	c2.recv("353")
	c2.recv("366")

	c1.send("PRIVMSG", "#rust", "hi")
	priv := c2.recv("PRIVMSG")
	require.Equal(t, "alice", priv.SourceNick())
	require.Equal(t, []string{"#rust", "hi"}, priv.Params)

	// alice must not see her own PRIVMSG echoed back.
	require.NoError(t, c1.conn.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	_, err := c1.rw.ReadString('\n')
	require.Error(t, err, "alice should not receive her own channel message")
}

func TestPartRemovesAndDeletesEmptyChannel(t *testing.T) {
	addr, shutdown := startTestServer(t)
	defer shutdown()

	c1 := dialTestClient(t, addr)
	defer c1.close()
	c1.register("alice")
	c1.drainRegistrationBurst()

	c2 := dialTestClient(t, addr)
	defer c2.close()
	c2.register("bob")
	c2.drainRegistrationBurst()

	c1.send("JOIN", "#rust")
	c1.recv("JOIN")
	c1.recv("353")
	c1.recv("366")
	c2.send("JOIN", "#rust")
	c1.recv("JOIN")
	c2.recv("JOIN")
	c2.recv("353")
	c2.recv("366")

	c1.send("PART", "#rust")
	part := c2.recv("PART")
	require.Equal(t, "alice", part.SourceNick())

	// alice herself never receives a reply to her own PART.
	require.NoError(t, c1.conn.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	_, err := c1.rw.ReadString('\n')
	require.Error(t, err, "alice should not receive a reply to her own PART")

	// bob parts too; nobody is left, so no PART is delivered to anyone.
	c2.send("PART", "#rust")
	require.NoError(t, c2.conn.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	_, err = c2.rw.ReadString('\n')
	require.Error(t, err, "bob should not receive a reply to his own PART, and nobody else is left")

	// #rust is now empty, so it no longer exists.
	c1.send("PRIVMSG", "#rust", "anyone?")
	gone := c1.recv("403")
	require.Equal(t, []string{"alice", "#rust", "No such channel"}, gone.Params)
}

func TestPrivmsgToUnknownTarget(t *testing.T) {
	addr, shutdown := startTestServer(t)
	defer shutdown()

	c1 := dialTestClient(t, addr)
	defer c1.close()
	c1.register("alice")
	c1.drainRegistrationBurst()

	c1.send("PRIVMSG", "nobody", "hey")
	reply := c1.recv("401")
	require.Equal(t, []string{"alice", "nobody", "No such nick/channel"}, reply.Params)
}

func TestQuitFanOutExcludesSender(t *testing.T) {
	addr, shutdown := startTestServer(t)
	defer shutdown()

	c1 := dialTestClient(t, addr)
	defer c1.close()
	c1.register("alice")
	c1.drainRegistrationBurst()

	c2 := dialTestClient(t, addr)
	defer c2.close()
	c2.register("bob")
	c2.drainRegistrationBurst()

	c3 := dialTestClient(t, addr)
	defer c3.close()
	c3.register("carol")
	c3.drainRegistrationBurst()

	c1.send("JOIN", "#x")
	c1.recv("JOIN")
	c1.recv("353")
	c1.recv("366")
	c2.send("JOIN", "#x")
	c1.recv("JOIN")
	c2.recv("JOIN")
	c2.recv("353")
	c2.recv("366")
	c3.send("JOIN", "#x")
	c1.recv("JOIN")
	c2.recv("JOIN")
	c3.recv("JOIN")
	c3.recv("353")
	c3.recv("366")

	c1.send("QUIT", "bye")

	quit2 := c2.recv("QUIT")
	require.Equal(t, "alice", quit2.SourceNick())
	require.Equal(t, []string{"bye"}, quit2.Params)

	quit3 := c3.recv("QUIT")
	require.Equal(t, "alice", quit3.SourceNick())

	// alice gets no QUIT of her own; her connection just closes.
	require.NoError(t, c1.conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, err := c1.rw.ReadString('\n')
	require.Error(t, err, "alice should not receive her own QUIT")

	// bob and carol can still talk to each other in #x: alice is gone.
	c2.send("PRIVMSG", "#x", "hi carol")
	priv := c3.recv("PRIVMSG")
	require.Equal(t, "bob", priv.SourceNick())
}
