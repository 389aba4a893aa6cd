package client

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"slices"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/nightowl-radio/livechat/internal/server"
	"github.com/nightowl-radio/livechat/internal/types"
)

// State is the session lifecycle. There is no implicit exit: leaving and
// losing the channel are modeled explicitly.
type State int

const (
	StateAnonymous State = iota
	StateJoining
	StateJoined
	StateReconnecting
	StateLeft
)

func (s State) String() string {
	switch s {
	case StateAnonymous:
		return "anonymous"
	case StateJoining:
		return "joining"
	case StateJoined:
		return "joined"
	case StateReconnecting:
		return "reconnecting"
	case StateLeft:
		return "left"
	default:
		return "unknown"
	}
}

// EchoMode controls local visibility of the participant's own sends.
type EchoMode int

const (
	// EchoNone is the historical behavior: a sent message reappears only
	// via the realtime channel, never from the send call itself.
	EchoNone EchoMode = iota
	// EchoOptimistic appends a provisional local copy immediately and
	// replaces it by ref when the server copy arrives.
	EchoOptimistic
)

var (
	ErrNotJoined      = errors.New("not joined")
	ErrAlreadyJoined  = errors.New("already joined")
	ErrSessionClosed  = errors.New("session closed")
	ErrSendInFlight   = errors.New("send already in flight")
	ErrChannelDropped = errors.New("realtime channel dropped")
)

// ValidationError is local and pre-network, it never reaches the store.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

type Config struct {
	// BaseURL of the chat service, e.g. "http://localhost:8000".
	BaseURL string
	// SessionId correlates this browsing session's messages for
	// moderation. Optional.
	SessionId string
	CountMode CountMode
	Echo      EchoMode
	Handler   Handler
	Logger    *log.Logger
	HTTP      *http.Client
	Dialer    *websocket.Dialer

	// now overrides the time source in tests.
	now func() time.Time
}

// Session is the orchestrating chat controller: join/identity state,
// message history, live inserts, presence tracking, the ban filter
// stage and the rendering side effects.
type Session struct {
	mu      sync.Mutex
	cfg     Config
	log     *log.Logger
	store   *StoreClient
	view    *view
	handler Handler

	state    State
	nickname string
	conn     *websocket.Conn
	// gen invalidates callbacks from stale read loops after a leave or
	// rejoin
	gen          int
	sendInFlight bool
	soundEnabled bool
}

func NewSession(cfg Config) *Session {
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "[livechat] ", log.LstdFlags)
	}

	handler := cfg.Handler
	if handler == nil {
		handler = NoopHandler{}
	}

	return &Session{
		cfg:     cfg,
		log:     logger,
		store:   NewStoreClient(cfg.BaseURL, cfg.HTTP),
		view:    newView(cfg.CountMode, cfg.now),
		handler: handler,
		state:   StateAnonymous,
	}
}

// Join validates the nickname, connects the realtime channel and loads
// history. Joining announces presence exactly once, via the connection
// itself. A validation failure leaves the state untouched.
func (s *Session) Join(ctx context.Context, nickname string) error {
	s.mu.Lock()
	switch s.state {
	case StateJoined, StateJoining:
		s.mu.Unlock()
		return ErrAlreadyJoined
	case StateLeft:
		s.mu.Unlock()
		return ErrSessionClosed
	}

	trimmed := strings.TrimSpace(nickname)
	if n := utf8.RuneCountInString(trimmed); n < 2 || n > 20 {
		s.mu.Unlock()
		return &ValidationError{Field: "nickname", Reason: "must be 2-20 characters"}
	}

	s.state = StateJoining
	s.mu.Unlock()

	conn, err := s.dial(ctx, trimmed)
	if err != nil {
		s.mu.Lock()
		s.state = StateAnonymous
		s.mu.Unlock()
		return fmt.Errorf("join channel: %w", err)
	}

	history, err := s.store.FetchRecent(ctx, fetchLimit)
	if err != nil {
		// non-fatal: fall back to an empty list, live inserts still flow
		s.log.Println("fetch history:", err)
		s.handler.OnStoreError(fmt.Errorf("fetch history: %w", err))
		history = nil
	}

	s.mu.Lock()
	if s.state != StateJoining {
		// a concurrent Leave won while the lock was released, the
		// terminal state sticks
		s.mu.Unlock()
		conn.Close()
		return ErrSessionClosed
	}
	s.nickname = trimmed
	s.conn = conn
	s.view.setHistory(history)
	s.state = StateJoined
	s.gen++
	gen := s.gen
	s.mu.Unlock()

	go s.readLoop(conn, gen)

	return nil
}

func (s *Session) dial(ctx context.Context, nickname string) (*websocket.Conn, error) {
	u, err := url.Parse(s.cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}

	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = "/ws"

	q := u.Query()
	q.Set("nickname", nickname)
	if s.cfg.SessionId != "" {
		q.Set("session_id", s.cfg.SessionId)
	}
	u.RawQuery = q.Encode()

	dialer := s.cfg.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}

	conn, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}

	return conn, nil
}

// Send validates and writes one message to the store. Empty or
// over-limit input is rejected locally without a network round-trip.
// While a send is outstanding further sends are rejected, mirroring a
// disabled submit control. A successful return does not append locally
// under EchoNone: the message becomes visible when the realtime channel
// delivers it.
func (s *Session) Send(ctx context.Context, body string) error {
	s.mu.Lock()
	if s.state != StateJoined {
		s.mu.Unlock()
		return ErrNotJoined
	}

	trimmed := strings.TrimSpace(body)
	if n := utf8.RuneCountInString(trimmed); n < 1 || n > 500 {
		s.mu.Unlock()
		return &ValidationError{Field: "message", Reason: "must be 1-500 characters"}
	}

	if s.sendInFlight {
		s.mu.Unlock()
		return ErrSendInFlight
	}
	s.sendInFlight = true

	nickname := s.nickname
	var ref string
	if s.cfg.Echo == EchoOptimistic {
		ref = uuid.NewString()
		vm := s.view.appendProvisional(types.Message{
			Ref:       ref,
			Nickname:  nickname,
			Body:      trimmed,
			SessionId: s.cfg.SessionId,
			CreatedAt: s.view.now(),
		})
		handler := s.handler
		s.mu.Unlock()
		handler.OnMessage(vm)
	} else {
		s.mu.Unlock()
	}

	err := s.store.Send(ctx, SendRequest{
		Nickname:  nickname,
		Body:      trimmed,
		SessionId: s.cfg.SessionId,
		Ref:       ref,
	})

	s.mu.Lock()
	s.sendInFlight = false
	if err != nil && ref != "" {
		s.view.dropProvisional(ref)
	}
	s.mu.Unlock()

	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}

	return nil
}

// Leave closes the realtime channel and moves the session to its
// terminal state. Any in-flight callbacks are discarded.
func (s *Session) Leave() {
	s.mu.Lock()
	if s.state == StateLeft {
		s.mu.Unlock()
		return
	}

	conn := s.conn
	s.conn = nil
	s.state = StateLeft
	s.gen++
	s.mu.Unlock()

	if conn != nil {
		leave := server.ClientMessage{
			BaseMessage: server.BaseMessage{Timestamp: server.Now()},
			Leave:       &server.Leave{},
		}
		if err := conn.WriteJSON(&leave); err != nil {
			s.log.Println("write leave:", err)
		}
		conn.Close()
	}
}

func (s *Session) readLoop(conn *websocket.Conn, gen int) {
	for {
		var msg server.ServerMessage
		if err := conn.ReadJSON(&msg); err != nil {
			s.handleDisconnect(gen, err)
			return
		}

		s.dispatch(gen, &msg)
	}
}

func (s *Session) handleDisconnect(gen int, err error) {
	s.mu.Lock()
	if gen != s.gen || s.state != StateJoined {
		// stale loop or deliberate leave
		s.mu.Unlock()
		return
	}

	s.state = StateReconnecting
	s.conn = nil
	handler := s.handler
	s.mu.Unlock()

	handler.OnDisconnected(fmt.Errorf("%w: %v", ErrChannelDropped, err))
}

func (s *Session) dispatch(gen int, msg *server.ServerMessage) {
	s.mu.Lock()
	if gen != s.gen || s.state != StateJoined {
		s.mu.Unlock()
		return
	}
	handler := s.handler

	switch {
	case msg.Message != nil:
		m := *msg.Message

		if s.cfg.Echo == EchoOptimistic {
			if vm, ok := s.view.resolveProvisional(m); ok {
				s.mu.Unlock()
				handler.OnMessage(vm)
				return
			}
		}

		vm, ok := s.view.append(m)
		local := s.nickname
		sound := s.soundEnabled
		s.mu.Unlock()
		if !ok {
			// shadow-banned sender, suppressed before rendering
			return
		}

		handler.OnMessage(vm)
		if vm.Highlight {
			handler.OnHighlight(m.Id)
		}
		if sound && m.Nickname != local {
			handler.OnSound(vm)
		}
	case msg.Presence != nil:
		s.view.applyRoster(msg.Presence.Roster)
		count := s.view.listenerCount()
		roster := slices.Clone(msg.Presence.Roster)
		s.mu.Unlock()

		handler.OnRosterChange(count, roster)
	case msg.Bans != nil:
		removed := s.view.applyBans(msg.Bans.SessionIds)
		s.mu.Unlock()
		for _, id := range removed {
			handler.OnMessageDeleted(id)
		}
	case msg.Deleted != nil:
		removed := s.view.remove(msg.Deleted.MessageId)
		s.mu.Unlock()
		if removed {
			handler.OnMessageDeleted(msg.Deleted.MessageId)
		}
	default:
		// write-path acks, nothing to render
		s.mu.Unlock()
	}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Nickname() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nickname
}

// Messages returns a copy of the visible message list in display order.
func (s *Session) Messages() []ViewMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.view.messages)
}

// Empty reports whether the view should show the "no messages yet"
// placeholder.
func (s *Session) Empty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view.empty()
}

func (s *Session) Roster() []types.PresenceEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.view.roster)
}

func (s *Session) ListenerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view.listenerCount()
}

func (s *Session) HighlightActive(id int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view.highlightActive(id)
}

// SetSoundEnabled toggles the notification sound cue. The toggle is not
// persisted anywhere.
func (s *Session) SetSoundEnabled(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.soundEnabled = enabled
}
