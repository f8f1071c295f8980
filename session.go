package main

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/horgh/irc"
)

// sessionState is the explicit per-connection state machine from §4.1,
// replacing the "Option<nick> + Option<user>" checks §9 flags as worth
// tightening: Connected is implicit (a new session starts directly in
// stateLogin, the zero value), so only three states are ever observed.
type sessionState int

const (
	stateLogin sessionState = iota
	stateSteady
	stateClosing
)

// Session is the per-connection actor: one reader goroutine running the
// state machine, one writer goroutine draining the outbound queue (§2.4,
// §4.1). It owns nothing the registries don't also know about once
// registered -- beyond its own two goroutines, the session struct is reached
// only via the OutboundSink handed out through the registries and via the
// server's idle-sweep roster, which touches just the mu-guarded fields.
type Session struct {
	id     uint64
	conn   *Conn
	server *Server

	outbound *OutboundQueue
	sink     OutboundSink

	state sessionState
	nick  string
	user  string

	// hostmask is the nick!user@host form other clients see as the message
	// source (§6), set once at registration and reused for every fan-out this
	// session originates (PRIVMSG, JOIN, PART, QUIT).
	hostmask string

	// Channels this session currently believes itself a member of, updated on
	// JOIN and PART alongside the authoritative channels registry. Nothing
	// reads it: PRIVMSG and QUIT fan-out both consult the registry. It is
	// only ever touched from the reader goroutine.
	channels map[string]struct{}

	// mu guards the fields below, which the idle-sweep goroutine (§4.7) reads
	// and writes concurrently with the reader goroutine.
	mu            sync.Mutex
	lastActivity  time.Time
	pingSent      bool
	forcedQuitMsg string
}

// newSession wires up a freshly accepted connection. It does not touch any
// registry -- that only happens at Login->SteadyState (§3 clients registry
// invariant) and at JOIN/PART/QUIT.
func newSession(id uint64, conn *Conn, server *Server) *Session {
	s := &Session{
		id:           id,
		conn:         conn,
		server:       server,
		outbound:     NewOutboundQueue(),
		state:        stateLogin,
		channels:     make(map[string]struct{}),
		lastActivity: time.Now(),
	}
	s.sink = s.outbound.Sink()
	return s
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastActivity = time.Now()
	s.pingSent = false
	s.mu.Unlock()
}

// run starts the session's two goroutines and returns immediately; the
// server's WaitGroup tracks both so graceful shutdown can wait on them.
func (s *Session) run() {
	s.server.wg.Add(2)
	go s.writeLoop()
	go s.readLoop()
}

// writeLoop is the Outbound Queue's sole consumer (§4.4). It never touches
// a registry and never blocks on anything but the queue and the socket.
func (s *Session) writeLoop() {
	defer s.server.wg.Done()
	defer func() {
		if err := s.conn.Close(); err != nil {
			log.Printf("session %d: error closing connection: %s", s.id, err)
		}
	}()

	for {
		event := s.outbound.next()
		switch event.kind {
		case eventSend:
			if err := s.conn.writeRaw(event.text); err != nil {
				log.Printf("session %d: write error, abandoning queue: %s", s.id, err)
				return
			}
		case eventTerminate:
			return
		}
	}
}

// readLoop owns the state machine (§4.1). It is the only goroutine that
// ever calls teardown, so teardown needs no synchronization of its own.
func (s *Session) readLoop() {
	defer s.server.wg.Done()

	for {
		msg, err := s.conn.ReadMessage()
		if err != nil {
			if _, ok := err.(*grammarError); ok {
				log.Printf("session %d: %s", s.id, err)
				s.sink.Send(s.server.replies.errorLine(err.Error()))
				continue
			}
			s.teardown(s.readErrorQuitReason(err))
			return
		}

		s.touch()

		switch s.state {
		case stateLogin:
			s.dispatchLogin(msg)
		case stateSteady:
			s.dispatchSteady(msg)
		}

		if s.state == stateClosing {
			s.teardown(s.quitReasonFromParams(msg.Params))
			return
		}
	}
}

// readErrorQuitReason prefers a reason the idle-sweep goroutine asked us to
// disconnect with (§4.7) over a generic reason derived from the read error.
func (s *Session) readErrorQuitReason(err error) string {
	s.mu.Lock()
	forced := s.forcedQuitMsg
	s.mu.Unlock()
	if forced != "" {
		return forced
	}
	return quitReasonForReadError(err)
}

func (s *Session) quitReasonFromParams(params []string) string {
	if len(params) > 0 && params[0] != "" {
		return params[0]
	}
	return "Client Quit"
}

// dispatchLogin implements §4.1 Login: only NICK, USER, and QUIT are
// recognised; anything else is logged and ignored without disconnecting.
func (s *Session) dispatchLogin(m irc.Message) {
	switch m.Command {
	case "NICK":
		s.handleNickLogin(m)
	case "USER":
		s.handleUserLogin(m)
	case "QUIT":
		s.state = stateClosing
		return
	default:
		log.Printf("session %d: expected NICK or USER, got %s", s.id, m.Command)
		return
	}

	if s.nick != "" && s.user != "" {
		s.completeLogin()
	}
}

func (s *Session) handleNickLogin(m irc.Message) {
	if len(m.Params) == 0 {
		return
	}
	// A client cannot re-register (§3 Session state): once nick is set, a
	// second NICK during Login is simply ignored, same as in SteadyState.
	if s.nick != "" {
		return
	}

	nick := m.Params[0]
	if !isValidNick(int(s.server.config.MaxNickLength), nick) {
		return
	}

	// We don't reserve the nick here, only check: the real claim happens
	// atomically at completeLogin, which is what actually enforces I1. This
	// mirrors the teacher's registerUser, which the same way defers the
	// uniqueness check to registration time rather than reserving eagerly.
	if s.server.clients.Contains(nick) {
		s.sink.Send(s.server.replies.nickCollision(nick))
		return
	}

	s.nick = nick
}

func (s *Session) handleUserLogin(m irc.Message) {
	if s.user != "" {
		return
	}
	if len(m.Params) != 4 {
		return
	}
	if !isValidUser(m.Params[0]) {
		return
	}
	s.user = m.Params[3]
}

// completeLogin performs the Login->SteadyState transition (§4.1): claim
// the nick atomically, send the registration burst, and only then start
// accepting the rest of the command set.
func (s *Session) completeLogin() {
	if !s.server.clients.TryClaim(s.nick, s.sink) {
		// Lost a race against another session that claimed this nick between
		// our availability check and now. Ask for a new one rather than
		// wedging the session; this case isn't named explicitly in the core
		// spec, see DESIGN.md.
		s.sink.Send(s.server.replies.nickCollision(s.nick))
		s.nick = ""
		return
	}

	s.state = stateSteady
	s.hostmask = fmt.Sprintf("%s!~%s@%s", s.nick, s.user, s.conn.IP)

	r := s.server.replies
	s.sink.Send(r.welcome(s.nick))
	s.sink.Send(r.yourHost(s.nick))
	s.sink.Send(r.created(s.nick))
	s.sink.Send(r.myInfo(s.nick))
	for _, line := range r.lusers(s.nick, s.server.clients.Count(), s.server.channels.Count()) {
		s.sink.Send(line)
	}
	for _, line := range r.motdLines(s.nick) {
		s.sink.Send(line)
	}

	log.Printf("session %d: registered as %s", s.id, s.nick)
}

// dispatchSteady implements §4.2's command semantics.
func (s *Session) dispatchSteady(m irc.Message) {
	switch m.Command {
	case "NICK", "USER":
		// §4.2.1/§4.2.2: post-login, both are silent no-ops.
	case "PING":
		s.handlePing(m)
	case "PRIVMSG":
		s.handlePrivmsg(m)
	case "JOIN":
		s.handleJoin(m)
	case "PART":
		s.handlePart(m)
	case "QUIT":
		s.state = stateClosing
	default:
		log.Printf("session %d: unhandled command %s", s.id, m.Command)
	}
}

func (s *Session) handlePing(m irc.Message) {
	token := ""
	if len(m.Params) > 0 {
		token = m.Params[0]
	}
	s.sink.Send(s.server.replies.pong(token))
}

// handlePrivmsg implements §4.2.4. The sender is never echoed to itself,
// whether the target is a user (L1 only names the channel case explicitly,
// but the same non-echo holds for direct messages: a PRIVMSG to your own
// nick would just be a self-message, not a broadcast).
func (s *Session) handlePrivmsg(m irc.Message) {
	if len(m.Params) < 2 {
		return
	}
	target := m.Params[0]
	text := m.Params[1]
	r := s.server.replies

	if isChannelTarget(target) {
		members, exists := s.server.channels.Lookup(target)
		if !exists {
			s.sink.Send(r.noSuchChannel(s.nick, target))
			return
		}
		for _, mem := range members {
			if mem.nick == s.nick {
				continue
			}
			mem.sink.Send(r.privmsg(s.hostmask, target, text))
		}
		return
	}

	sink, exists := s.server.clients.Lookup(target)
	if !exists {
		s.sink.Send(r.noSuchNick(s.nick, target))
		return
	}
	sink.Send(r.privmsg(s.hostmask, target, text))
}

// handleJoin implements §4.2.5.
func (s *Session) handleJoin(m irc.Message) {
	if len(m.Params) == 0 {
		return
	}
	channel := m.Params[0]
	if !isValidChannel(channel) {
		s.sink.Send(s.server.replies.noSuchChannel(s.nick, channel))
		return
	}

	members := s.server.channels.Join(channel, s.nick, s.sink)
	s.channels[channel] = struct{}{}

	r := s.server.replies
	names := make([]string, 0, len(members))
	for _, mem := range members {
		names = append(names, mem.nick)
	}

	for _, mem := range members {
		mem.sink.Send(r.join(s.hostmask, channel))
	}
	s.sink.Send(r.namReply(s.nick, channel, names))
	s.sink.Send(r.endOfNames(s.nick, channel))
}

// handlePart implements §4.2.6: silently ignored if the channel doesn't
// exist or the sender isn't a member; the sender itself never receives the
// Part reply, only the members left behind.
func (s *Session) handlePart(m irc.Message) {
	if len(m.Params) == 0 {
		return
	}
	channel := m.Params[0]
	reason := ""
	if len(m.Params) >= 2 {
		reason = m.Params[1]
	}

	remaining, wasMember := s.server.channels.Part(channel, s.nick)
	if !wasMember {
		return
	}
	delete(s.channels, channel)

	r := s.server.replies
	for _, mem := range remaining {
		mem.sink.Send(r.part(s.hostmask, channel, reason))
	}
}

// teardown implements §4.1 Closing and §4.2.7's QUIT fan-out, run
// identically whether we got here via an explicit QUIT or via connection
// loss (§9's note on abnormal disconnect: the same fan-out must run either
// way or I5 breaks).
func (s *Session) teardown(reason string) {
	if s.nick != "" {
		r := s.server.replies
		for _, result := range s.server.channels.RemoveEverywhere(s.nick) {
			for _, mem := range result.Remaining {
				mem.sink.Send(r.quit(s.hostmask, reason))
			}
		}
		s.server.clients.Release(s.nick)
	}

	s.outbound.Terminate()
	s.server.forget(s.id)
	log.Printf("session %d: closing: %s", s.id, reason)
}

// forceDisconnect is called from the idle-sweep goroutine (§4.7), never
// from the reader. It only closes the socket; the reader goroutine, woken
// by the resulting read error, performs the one true teardown call itself
// so registry mutation always happens on a single goroutine per session.
func (s *Session) forceDisconnect(reason string) {
	s.mu.Lock()
	s.forcedQuitMsg = reason
	s.mu.Unlock()
	_ = s.conn.Close()
}
