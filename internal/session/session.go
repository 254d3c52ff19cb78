// Package session owns the trading connection's lifecycle: connect,
// authenticate, route inbound frames, detect closure and reconnect. The
// session is a supervisor and keeps retrying for the life of the
// process; context cancellation is its only exit.
package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"gateprobe/config"
	"gateprobe/internal/auth"
	"gateprobe/internal/track"
	"gateprobe/logger"
	"gateprobe/models"
)

// Session maintains one logical connection to the trading endpoint.
type Session struct {
	cfg     *config.Config
	creds   auth.Credentials
	tracker *track.Tracker
	dial    DialFunc
	log     *logger.Log
	router  *Router

	mu    sync.Mutex
	state State

	authenticated atomic.Bool
}

// New creates a trading session. The dial function is injected so tests
// can substitute an in-memory transport.
func New(cfg *config.Config, creds auth.Credentials, tracker *track.Tracker, dial DialFunc) *Session {
	s := &Session{
		cfg:     cfg,
		creds:   creds,
		tracker: tracker,
		dial:    dial,
		log:     logger.GetLogger(),
		state:   Disconnected,
	}
	s.router = &Router{
		Label:   cfg.Probe.AccountLabel,
		Tracker: tracker,
		Log:     s.log,
		OnAuthSuccess: func(uid string) {
			// The auth handler is the only writer of this flag.
			s.authenticated.Store(true)
			s.setState(Authenticated)
		},
		OnAuthFailure: func(status, message string) {
			// No in-place handshake retry; the reconnect loop is the
			// only recovery path.
			s.authenticated.Store(false)
		},
	}
	return s
}

// Authenticated reports whether the most recent login handshake
// succeeded. Read by the order trigger and by order validation.
func (s *Session) Authenticated() bool {
	return s.authenticated.Load()
}

// State returns the session's current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Router exposes the session's dispatch rules so the order connection
// can route its acknowledgments identically.
func (s *Session) Router() *Router {
	return s.router
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// Run connects and serves the trading session until ctx is cancelled.
// Transport failures never terminate it; each attempt is separated by
// the configured fixed delay.
func (s *Session) Run(ctx context.Context) error {
	log := s.log.WithAccount(s.cfg.Probe.AccountLabel).WithComponent("session")

	for {
		if ctx.Err() != nil {
			s.setState(Closed)
			return ctx.Err()
		}

		s.serveOnce(ctx, log)

		if ctx.Err() != nil {
			s.setState(Closed)
			return ctx.Err()
		}

		logger.IncrementReconnect()
		log.WithFields(logger.Fields{"delay": s.cfg.Timing.ReconnectDelay().String()}).Warn("trading connection lost, reconnecting")
		if waitReconnect(ctx, s.cfg.Timing.ReconnectDelay()) {
			s.setState(Closed)
			return ctx.Err()
		}
	}
}

// serveOnce performs a single connect-authenticate-read cycle and
// returns once the transport fails or ctx is cancelled.
func (s *Session) serveOnce(ctx context.Context, log *logger.Entry) {
	s.setState(Connecting)
	conn, err := s.dial(ctx, s.cfg.Exchange.WSURL)
	if err != nil {
		log.WithError(err).Warn("failed to connect to trading websocket")
		s.setState(Disconnected)
		return
	}
	defer conn.Close()
	s.setState(Connected)
	log.Info("trading websocket connected")

	if err := conn.WriteJSON(auth.LoginRequest(s.creds, time.Now())); err != nil {
		log.WithError(err).Warn("failed to send authentication request")
		s.setState(Disconnected)
		return
	}
	s.setState(Authenticating)
	log.Info("authentication request sent")

	pingCtx, pingCancel := context.WithCancel(ctx)
	defer pingCancel()
	go s.pingLoop(pingCtx, conn, log)

	for {
		raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				log.WithError(err).Warn("trading websocket read loop ended")
			}
			s.setState(Disconnected)
			return
		}
		s.router.Handle(raw, time.Now())
	}
}

// pingLoop transmits a spot.ping frame at the configured interval so the
// exchange does not idle-disconnect the session.
func (s *Session) pingLoop(ctx context.Context, conn Conn, log *logger.Entry) {
	ticker := time.NewTicker(s.cfg.Timing.PingInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ping := models.PingRequest{Time: time.Now().Unix(), Channel: models.ChannelPing}
			if err := conn.WriteJSON(ping); err != nil {
				log.WithError(err).Warn("failed to send keep-alive ping")
				return
			}
			log.Debug("keep-alive ping sent")
		}
	}
}

// waitReconnect sleeps for the fixed reconnect delay. It returns true
// when ctx was cancelled while waiting.
func waitReconnect(ctx context.Context, delay time.Duration) bool {
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return true
	case <-timer.C:
		return false
	}
}
