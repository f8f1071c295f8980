package main

import (
	"context"
	"log"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
)

// Server owns the two shared registries and the acceptor loop (§2 Acceptor,
// §4.5). It holds no per-connection protocol state itself -- that all lives
// on the Session -- only the process-wide bits every session needs a
// handle to.
type Server struct {
	config   Config
	replies  replies
	clients  *Clients
	channels *Channels

	nextID uint64

	// mu guards sessions, the roster the idle-sweep goroutine (§4.7) walks.
	// It is unrelated to the clients/channels registries and is never held
	// across a registry operation or a send.
	mu       sync.Mutex
	sessions map[uint64]*Session

	wg sync.WaitGroup
}

// NewServer builds a Server from config. It does not start listening; call
// Serve for that.
func NewServer(config Config) *Server {
	return &Server{
		config:   config,
		clients:  NewClients(),
		channels: NewChannels(),
		sessions: make(map[uint64]*Session),
		replies: replies{
			serverName:  config.ServerName,
			version:     config.Version,
			createdDate: config.CreatedDate,
			motd:        config.MOTD,
		},
	}
}

// Serve binds the configured address and runs the acceptor loop until ctx
// is cancelled. It never blocks accept on a single session's work (§4.5):
// every accepted connection gets its own Session with its own goroutines.
func (s *Server) Serve(ctx context.Context) error {
	addr := net.JoinHostPort(s.config.ListenHost, s.config.ListenPort)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrapf(err, "unable to listen on %s", addr)
	}
	log.Printf("listening on %s", addr)

	go func() {
		<-ctx.Done()
		if err := ln.Close(); err != nil {
			log.Printf("error closing listener: %s", err)
		}
	}()

	go s.sweepIdleClients(ctx)

	s.acceptLoop(ctx, ln)

	s.wg.Wait()
	return nil
}

func (s *Server) acceptLoop(ctx context.Context, ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
				log.Printf("accept error: %s", err)
				continue
			}
		}

		id := atomic.AddUint64(&s.nextID, 1)

		c, err := NewConn(conn, s.config.IOTimeout)
		if err != nil {
			log.Printf("unable to wrap connection: %s", err)
			_ = conn.Close()
			continue
		}

		sess := newSession(id, c, s)

		s.mu.Lock()
		s.sessions[id] = sess
		s.mu.Unlock()

		log.Printf("session %d: accepted from %s", id, c.RemoteAddr())
		sess.run()
	}
}

// sweepIdleClients implements §4.7: a periodic liveness check over every
// live session, grounded in the teacher's alarm/checkAndPingClients pair.
func (s *Server) sweepIdleClients(ctx context.Context) {
	ticker := time.NewTicker(s.config.PingTime)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.mu.Lock()
			sessions := make([]*Session, 0, len(s.sessions))
			for _, sess := range s.sessions {
				sessions = append(sessions, sess)
			}
			s.mu.Unlock()

			now := time.Now()
			for _, sess := range sessions {
				sess.mu.Lock()
				idle := now.Sub(sess.lastActivity)
				alreadyPinged := sess.pingSent
				sess.mu.Unlock()

				if idle > s.config.DeadTime {
					sess.forceDisconnect("Ping timeout")
					continue
				}
				if idle > s.config.PingTime && !alreadyPinged {
					sess.mu.Lock()
					sess.pingSent = true
					sess.mu.Unlock()
					sess.sink.Send(s.replies.ping(s.config.ServerName))
				}
			}
		}
	}
}

// forget removes a session from the liveness-sweep roster once it has torn
// down. Called from the reader goroutine at the end of teardown.
func (s *Server) forget(id uint64) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}
