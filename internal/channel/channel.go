// Package channel owns the single push-channel connection: dial and auth,
// reconnect with backoff, the read/write pumps, and outbound emits. Inbound
// frames are decoded and handed to one Handler; the manager itself never
// touches application state.
package channel

import (
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/pulse/syncd/internal/event"
	"github.com/pulse/syncd/internal/logger"
	"github.com/pulse/syncd/internal/session"
)

// State of the channel connection.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	// StateReauthenticating means the session dropped and a reconnect with
	// the current token is pending.
	StateReauthenticating
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReauthenticating:
		return "reauthenticating"
	default:
		return "disconnected"
	}
}

// ReasonServerForced is the disconnect reason that requests an automatic
// reconnect after a delay.
const ReasonServerForced = "server-forced"

const reasonClient = "client"

var (
	// ErrNoToken is reported when Connect is called while logged out.
	ErrNoToken = errors.New("no auth token")
	// ErrInvalidToken is reported when the server rejects the token.
	ErrInvalidToken = errors.New("invalid token")
)

// Handler consumes decoded inbound events and lifecycle transitions.
// Connected fires after every successful (re)connect; subsystems are expected
// to re-fetch their own page-1 snapshots there — the manager does not resync
// application state. Disconnected fires once per dropped session.
type Handler interface {
	HandleEvent(ev event.Event)
	Connected()
	Disconnected(reason string)
}

// Config tunes the connection. Zero values fall back to defaults.
type Config struct {
	URL            string
	ReconnectDelay time.Duration
	MaxReconnects  int // 0 — unlimited
	EmitBufferSize int
	WriteTimeout   time.Duration
	PongTimeout    time.Duration
	MaxMessageSize int64
}

func (c Config) withDefaults() Config {
	if c.ReconnectDelay <= 0 {
		c.ReconnectDelay = 3 * time.Second
	}
	if c.EmitBufferSize <= 0 {
		c.EmitBufferSize = 256
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 10 * time.Second
	}
	if c.PongTimeout <= 0 {
		c.PongTimeout = 60 * time.Second
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = 64 << 10
	}
	return c
}

const maxReconnectDelay = 30 * time.Second

// link is one live connection: pumps share it, the manager swaps it out on
// reconnect.
type link struct {
	ws   *websocket.Conn
	send chan []byte
	done chan struct{}
}

type Manager struct {
	cfg     Config
	sess    session.Boundary
	handler Handler

	mu       sync.Mutex
	state    State
	connErr  error
	link     *link
	gen      int
	manual   bool
	attempts int
	retry    *time.Timer

	// OnReconnect is an optional hook for metrics. Called outside the lock.
	OnReconnect func()
}

func NewManager(cfg Config, sess session.Boundary, handler Handler) *Manager {
	return &Manager{cfg: cfg.withDefaults(), sess: sess, handler: handler}
}

// State returns the current connection state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// ConnectionError returns the last connection failure, nil when healthy.
// Errors are reported here, never thrown; callers observe and may retry.
func (m *Manager) ConnectionError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connErr
}

// Connect opens the push-channel session with the current token. A missing
// token fails silently into ConnectionError. Dial failures schedule a
// delayed retry; an auth rejection invokes the logout callback instead.
func (m *Manager) Connect() {
	m.mu.Lock()
	if m.state == StateConnecting || m.state == StateConnected {
		m.mu.Unlock()
		return
	}
	token := m.sess.Token()
	if token == "" {
		m.state = StateDisconnected
		m.connErr = ErrNoToken
		m.mu.Unlock()
		return
	}
	m.state = StateConnecting
	m.manual = false
	m.mu.Unlock()

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	ws, resp, err := dialer.Dial(m.cfg.URL, header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		rejected := resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden)
		m.mu.Lock()
		m.state = StateDisconnected
		if rejected {
			m.connErr = ErrInvalidToken
			m.mu.Unlock()
			logger.Errorf("channel: token rejected on dial")
			if m.sess.Logout != nil {
				m.sess.Logout()
			}
			return
		}
		m.connErr = fmt.Errorf("dial %s: %w", m.cfg.URL, err)
		m.mu.Unlock()
		logger.Errorf("channel: dial failed: %v", err)
		m.scheduleReconnect()
		return
	}

	l := &link{
		ws:   ws,
		send: make(chan []byte, m.cfg.EmitBufferSize),
		done: make(chan struct{}),
	}

	m.mu.Lock()
	if m.manual {
		// Disconnect() won the race against the dial.
		m.state = StateDisconnected
		m.mu.Unlock()
		ws.Close()
		return
	}
	m.link = l
	m.gen++
	gen := m.gen
	m.state = StateConnected
	m.connErr = nil
	m.attempts = 0
	m.mu.Unlock()

	go m.writePump(l)
	go m.readPump(l, gen)

	logger.Info("channel: connected")
	m.handler.Connected()
}

// Disconnect tears the session down. Client-initiated: no reconnect follows.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	m.manual = true
	if m.retry != nil {
		m.retry.Stop()
		m.retry = nil
	}
	if m.link == nil {
		m.state = StateDisconnected
		m.mu.Unlock()
		return
	}
	gen := m.gen
	m.mu.Unlock()
	m.teardown(gen, reasonClient, false)
}

// Emit sends an outbound command. Returns false when not connected or when
// the send buffer is full — the action was not delivered and the caller must
// surface that; there is no queuing or retry.
func (m *Manager) Emit(cmd event.Type, payload any) bool {
	m.mu.Lock()
	l := m.link
	connected := m.state == StateConnected && l != nil
	m.mu.Unlock()
	if !connected {
		return false
	}

	data, err := event.Encode(cmd, uuid.New().String(), payload)
	if err != nil {
		logger.Errorf("channel: encode %s: %v", cmd, err)
		return false
	}

	select {
	case l.send <- data:
		return true
	case <-l.done:
		return false
	default:
		logger.Errorf("channel: send buffer full, dropping %s", cmd)
		return false
	}
}

// readPump reads and dispatches inbound frames. Exits on read error or on an
// in-band close event, then drives the teardown for this connection.
func (m *Manager) readPump(l *link, gen int) {
	l.ws.SetReadLimit(m.cfg.MaxMessageSize)
	if err := l.ws.SetReadDeadline(time.Now().Add(m.cfg.PongTimeout)); err != nil {
		logger.Errorf("channel: set read deadline: %v", err)
		m.teardown(gen, "read-deadline", true)
		return
	}
	l.ws.SetPongHandler(func(string) error {
		return l.ws.SetReadDeadline(time.Now().Add(m.cfg.PongTimeout))
	})

	for {
		_, raw, err := l.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Errorf("channel: read error: %v", err)
			}
			m.teardown(gen, "connection lost", true)
			return
		}

		ev, err := event.Decode(raw)
		if err != nil {
			logger.Errorf("channel: decode: %v", err)
			continue
		}
		logger.Debugf("channel: event %T", ev)

		switch e := ev.(type) {
		case event.ServerError:
			if e.Message == "invalid token" {
				m.fatalAuth(gen)
				return
			}
			m.handler.HandleEvent(ev)
		case event.Disconnected:
			if e.Reason == ReasonServerForced {
				logger.Info("channel: server-forced disconnect, will reconnect")
				m.teardown(gen, e.Reason, true)
			} else {
				m.teardown(gen, e.Reason, false)
			}
			return
		default:
			m.handler.HandleEvent(ev)
		}
	}
}

// writePump writes outbound frames and keeps the connection alive with pings.
func (m *Manager) writePump(l *link) {
	pingPeriod := m.cfg.PongTimeout * 9 / 10
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		l.ws.Close()
	}()

	for {
		select {
		case <-l.done:
			if err := l.ws.WriteControl(websocket.CloseMessage, nil, time.Now().Add(time.Second)); err != nil && !errors.Is(err, websocket.ErrCloseSent) {
				logger.Debugf("channel: close message: %v", err)
			}
			return
		case data := <-l.send:
			if err := l.ws.SetWriteDeadline(time.Now().Add(m.cfg.WriteTimeout)); err != nil {
				return
			}
			if err := l.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			if err := l.ws.SetWriteDeadline(time.Now().Add(m.cfg.WriteTimeout)); err != nil {
				return
			}
			if err := l.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// fatalAuth handles an in-band "invalid token": logout, no reconnect.
func (m *Manager) fatalAuth(gen int) {
	m.mu.Lock()
	m.manual = true
	m.connErr = ErrInvalidToken
	m.mu.Unlock()
	logger.Errorf("channel: invalid token, forcing logout")
	m.teardown(gen, "invalid token", false)
	if m.sess.Logout != nil {
		m.sess.Logout()
	}
}

// teardown finishes one connection exactly once (gen guards against the
// pumps racing each other) and optionally schedules a reconnect.
func (m *Manager) teardown(gen int, reason string, reconnect bool) {
	m.mu.Lock()
	if gen != m.gen || m.link == nil {
		m.mu.Unlock()
		return
	}
	l := m.link
	m.link = nil
	m.gen++
	manual := m.manual
	if reconnect && !manual {
		m.state = StateReauthenticating
	} else {
		m.state = StateDisconnected
	}
	m.mu.Unlock()

	close(l.done)
	l.ws.Close()

	logger.Infof("channel: disconnected (%s)", reason)
	m.handler.Disconnected(reason)

	if reconnect && !manual {
		m.scheduleReconnect()
	}
}

// scheduleReconnect arms the retry timer. Delay doubles per attempt up to a
// cap and resets after a successful connect. Re-auth uses the token current
// at fire time, not the one from the dropped session.
func (m *Manager) scheduleReconnect() {
	m.mu.Lock()
	if m.manual {
		m.mu.Unlock()
		return
	}
	m.attempts++
	if m.cfg.MaxReconnects > 0 && m.attempts > m.cfg.MaxReconnects {
		m.state = StateDisconnected
		m.connErr = fmt.Errorf("gave up after %d reconnect attempts", m.cfg.MaxReconnects)
		m.mu.Unlock()
		logger.Errorf("channel: gave up reconnecting")
		return
	}
	m.state = StateReauthenticating
	delay := m.cfg.ReconnectDelay
	for i := 1; i < m.attempts; i++ {
		delay *= 2
		if delay >= maxReconnectDelay {
			delay = maxReconnectDelay
			break
		}
	}
	if m.retry != nil {
		m.retry.Stop()
	}
	m.retry = time.AfterFunc(delay, func() {
		if m.OnReconnect != nil {
			m.OnReconnect()
		}
		m.Connect()
	})
	m.mu.Unlock()
	logger.Infof("channel: reconnect in %s (attempt %d)", delay, m.attempts)
}
