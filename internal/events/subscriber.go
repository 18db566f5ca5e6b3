// Package events subscribes to the backend's live event channel and hands
// pushed notifications to the replica.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/nhle/teamboard/internal/clock"
	"github.com/nhle/teamboard/internal/logging"
	"github.com/nhle/teamboard/internal/model"
	"github.com/nhle/teamboard/internal/normalize"
	"github.com/nhle/teamboard/internal/remote"
)

const (
	defaultMinBackoff = time.Second
	defaultMaxBackoff = 30 * time.Second
	handshakeTimeout  = 10 * time.Second
)

// HeaderSource supplies the credentials the socket authenticates with.
// *remote.Client satisfies it.
type HeaderSource interface {
	AuthHeader() http.Header
}

// Handler receives each pushed notification.
type Handler func(model.Notification)

// frame is the envelope of every message on the channel.
type frame struct {
	Type    string          `json:"type"`
	Channel string          `json:"channel,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Subscriber keeps one WebSocket subscription alive.
type Subscriber struct {
	url        string
	auth       HeaderSource
	dialer     *websocket.Dialer
	clock      clock.Clock
	logger     *log.Logger
	minBackoff time.Duration
	maxBackoff time.Duration
}

// Option configures a Subscriber.
type Option func(*Subscriber)

// WithLogger sets the diagnostic logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Subscriber) { s.logger = logging.OrDiscard(l) }
}

// WithClock replaces the clock used between reconnects.
func WithClock(c clock.Clock) Option {
	return func(s *Subscriber) { s.clock = c }
}

// WithBackoff bounds the delay between reconnect attempts.
func WithBackoff(minDelay, maxDelay time.Duration) Option {
	return func(s *Subscriber) {
		s.minBackoff, s.maxBackoff = minDelay, max(minDelay, maxDelay)
	}
}

// New returns a Subscriber for the WebSocket endpoint at url. An empty url
// means the backend is not configured.
func New(url string, auth HeaderSource, opts ...Option) *Subscriber {
	s := &Subscriber{
		url:        url,
		auth:       auth,
		dialer:     &websocket.Dialer{HandshakeTimeout: handshakeTimeout, Proxy: http.ProxyFromEnvironment},
		clock:      clock.Real(),
		logger:     logging.Discard(),
		minBackoff: defaultMinBackoff,
		maxBackoff: defaultMaxBackoff,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Channel returns the channel name carrying a user's events.
func Channel(userID string) string {
	return "user:" + userID
}

// Run subscribes to userID's channel and calls handle for every pushed
// notification until ctx is cancelled. Dropped connections are retried with
// capped exponential backoff. It returns remote.ErrNotConfigured at once
// when no endpoint is configured, a *remote.AuthError when the endpoint
// rejects the credentials, and ctx.Err() otherwise.
func (s *Subscriber) Run(ctx context.Context, userID string, handle Handler) error {
	if s.url == "" {
		return remote.ErrNotConfigured
	}
	if userID == "" {
		return errors.New("subscribing to events: no signed-in user")
	}

	delay := s.minBackoff
	for {
		connected, err := s.session(ctx, userID, handle)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if remote.IsAuthError(err) {
			return err
		}
		if connected {
			delay = s.minBackoff
		}
		s.logger.Warn("event channel dropped, reconnecting", "in", delay, "err", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.clock.After(delay):
		}
		delay = min(delay*2, s.maxBackoff)
	}
}

// session runs one connection. connected reports whether the subscription
// was established before it ended.
func (s *Subscriber) session(ctx context.Context, userID string, handle Handler) (connected bool, err error) {
	var header http.Header
	if s.auth != nil {
		header = s.auth.AuthHeader()
	}
	conn, resp, err := s.dialer.DialContext(ctx, s.url, header)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return false, &remote.AuthError{Message: "event channel rejected the credentials"}
		}
		return false, fmt.Errorf("dialing %s: %w", s.url, err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	sub := frame{Type: "subscribe", Channel: Channel(userID)}
	if err := conn.WriteJSON(sub); err != nil {
		return false, fmt.Errorf("subscribing to %s: %w", sub.Channel, err)
	}
	s.logger.Debug("subscribed to event channel", "channel", sub.Channel)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return true, fmt.Errorf("reading event: %w", err)
		}
		var f frame
		if err := json.Unmarshal(data, &f); err != nil {
			s.logger.Debug("skipping malformed event frame", "err", err)
			continue
		}
		s.dispatch(f, handle)
	}
}

func (s *Subscriber) dispatch(f frame, handle Handler) {
	if f.Type != "notification" {
		return
	}
	var raw any
	if err := json.Unmarshal(f.Payload, &raw); err != nil {
		s.logger.Debug("skipping notification with unreadable payload", "err", err)
		return
	}
	n := normalize.Notification(raw)
	if n.ID == "" {
		s.logger.Debug("skipping notification without id")
		return
	}
	handle(n)
}
