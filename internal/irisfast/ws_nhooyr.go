package irisfast

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

var ErrNotConnected = errors.New("iris websocket not connected")

type MessageCallback func(message *Message)

type StateCallback func(state WebSocketState)

type callbackEntry struct {
	id       int
	callback MessageCallback
}

type stateCallbackEntry struct {
	id       int
	callback StateCallback
}

// WebSocket receives Iris chat events and reconnects on read or ping failure.
type WebSocket struct {
	wsURL  string
	logger *zap.Logger

	conn   *websocket.Conn
	state  WebSocketState
	stateM sync.RWMutex

	msgCbs   []callbackEntry
	stateCbs []stateCallbackEntry
	nextCbID int
	cbM      sync.RWMutex

	maxReconnectAttempts int
	reconnectDelay       time.Duration
	pingInterval         time.Duration

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	rootCtx    context.Context
	rootCancel context.CancelFunc

	// optional: inject headers at handshake (e.g., X-User-*)
	headerProvider HeaderProvider
}

type WSOption func(*WebSocket)

func WithWSLogger(l *zap.Logger) WSOption {
	return func(ws *WebSocket) {
		if l != nil {
			ws.logger = l
		}
	}
}

func WithPingInterval(d time.Duration) WSOption {
	return func(ws *WebSocket) {
		if d > 0 {
			ws.pingInterval = d
		}
	}
}

// WithWSHeaders injects headers into every handshake.
func WithWSHeaders(h HeaderProvider) WSOption {
	return func(ws *WebSocket) { ws.headerProvider = h }
}

// NewWebSocket builds a listener; reconnectDelay is the base of a linear backoff between redials.
func NewWebSocket(wsURL string, maxReconnectAttempts int, reconnectDelay time.Duration, opts ...WSOption) *WebSocket {
	ctx, cancel := context.WithCancel(context.Background())
	ws := &WebSocket{
		wsURL:                wsURL,
		logger:               zap.NewNop(),
		state:                WSStateDisconnected,
		maxReconnectAttempts: maxReconnectAttempts,
		reconnectDelay:       reconnectDelay,
		pingInterval:         30 * time.Second,
		stopCh:               make(chan struct{}),
		rootCtx:              ctx,
		rootCancel:           cancel,
	}
	for _, opt := range opts {
		opt(ws)
	}
	return ws
}

func (ws *WebSocket) Connect(ctx context.Context) error {
	switch ws.State() {
	case WSStateConnected, WSStateConnecting:
		return nil
	}
	ws.setState(WSStateConnecting)

	conn, err := ws.dial(ctx)
	if err != nil {
		ws.setState(WSStateFailed)
		ws.scheduleReconnect()
		return err
	}
	ws.attach(conn)
	return nil
}

func (ws *WebSocket) dial(ctx context.Context) (*websocket.Conn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(dialCtx, ws.wsURL, &websocket.DialOptions{
		CompressionMode: websocket.CompressionNoContextTakeover,
		HTTPHeader:      ws.buildHeaders(),
	})
	return conn, err
}

func (ws *WebSocket) attach(conn *websocket.Conn) {
	ws.stateM.Lock()
	ws.conn = conn
	ws.stateM.Unlock()
	ws.setState(WSStateConnected)
	ws.logger.Info("iris_ws_connected", zap.String("url", ws.wsURL))

	ws.wg.Add(2)
	go ws.listen(conn)
	go ws.pingLoop(conn)
}

func (ws *WebSocket) listen(conn *websocket.Conn) {
	defer ws.wg.Done()
	for {
		var msg Message
		if err := wsjson.Read(ws.rootCtx, conn, &msg); err != nil {
			if ws.isStopping() {
				return
			}
			ws.logger.Warn("iris_ws_read_failed", zap.Error(err))
			ws.drop(conn, "reconnect")
			return
		}

		ws.cbM.RLock()
		callbacks := make([]callbackEntry, len(ws.msgCbs))
		copy(callbacks, ws.msgCbs)
		ws.cbM.RUnlock()
		for _, entry := range callbacks {
			if entry.callback != nil {
				entry.callback(&msg)
			}
		}
	}
}

func (ws *WebSocket) pingLoop(conn *websocket.Conn) {
	defer ws.wg.Done()
	t := time.NewTicker(ws.pingInterval)
	defer t.Stop()
	failures := 0
	for {
		select {
		case <-ws.stopCh:
			return
		case <-t.C:
			if ws.current() != conn {
				return
			}
			ctx, cancel := context.WithTimeout(ws.rootCtx, 3*time.Second)
			err := conn.Ping(ctx)
			cancel()
			if err == nil {
				failures = 0
				continue
			}
			failures++
			if failures >= 2 {
				ws.logger.Warn("iris_ws_ping_failed", zap.Error(err))
				ws.drop(conn, "ping failure")
				return
			}
		}
	}
}

// drop closes conn if it is still current and starts reconnecting.
func (ws *WebSocket) drop(conn *websocket.Conn, reason string) {
	ws.stateM.Lock()
	if ws.conn != conn {
		ws.stateM.Unlock()
		return
	}
	ws.conn = nil
	ws.stateM.Unlock()

	_ = conn.Close(websocket.StatusGoingAway, reason)
	if ws.isStopping() {
		return
	}
	ws.setState(WSStateDisconnected)
	ws.scheduleReconnect()
}

func (ws *WebSocket) scheduleReconnect() {
	if ws.maxReconnectAttempts <= 0 || ws.isStopping() {
		return
	}
	ws.setState(WSStateReconnecting)

	ws.wg.Add(1)
	go func() {
		defer ws.wg.Done()
		for attempt := 1; attempt <= ws.maxReconnectAttempts; attempt++ {
			select {
			case <-ws.stopCh:
				return
			case <-time.After(ws.reconnectDelay * time.Duration(attempt)):
			}

			conn, err := ws.dial(ws.rootCtx)
			if err != nil {
				ws.logger.Warn("iris_ws_redial_failed", zap.Int("attempt", attempt), zap.Error(err))
				continue
			}
			if ws.isStopping() {
				_ = conn.Close(websocket.StatusNormalClosure, "close")
				return
			}
			ws.attach(conn)
			return
		}
		ws.setState(WSStateFailed)
		ws.logger.Error("iris_ws_gave_up", zap.Int("attempts", ws.maxReconnectAttempts))
	}()
}

func (ws *WebSocket) OnMessage(cb MessageCallback) int {
	ws.cbM.Lock()
	defer ws.cbM.Unlock()
	ws.nextCbID++
	ws.msgCbs = append(ws.msgCbs, callbackEntry{id: ws.nextCbID, callback: cb})
	return ws.nextCbID
}

func (ws *WebSocket) RemoveMessageCallback(id int) {
	ws.cbM.Lock()
	defer ws.cbM.Unlock()
	for i, cb := range ws.msgCbs {
		if cb.id == id {
			ws.msgCbs = append(ws.msgCbs[:i], ws.msgCbs[i+1:]...)
			break
		}
	}
}

func (ws *WebSocket) OnStateChange(cb StateCallback) int {
	ws.cbM.Lock()
	defer ws.cbM.Unlock()
	ws.nextCbID++
	ws.stateCbs = append(ws.stateCbs, stateCallbackEntry{id: ws.nextCbID, callback: cb})
	return ws.nextCbID
}

func (ws *WebSocket) State() WebSocketState {
	ws.stateM.RLock()
	defer ws.stateM.RUnlock()
	return ws.state
}

func (ws *WebSocket) current() *websocket.Conn {
	ws.stateM.RLock()
	defer ws.stateM.RUnlock()
	return ws.conn
}

func (ws *WebSocket) setState(state WebSocketState) {
	ws.stateM.Lock()
	ws.state = state
	ws.stateM.Unlock()

	ws.cbM.RLock()
	callbacks := make([]stateCallbackEntry, len(ws.stateCbs))
	copy(callbacks, ws.stateCbs)
	ws.cbM.RUnlock()
	for _, entry := range callbacks {
		if entry.callback != nil {
			entry.callback(state)
		}
	}
}

// WriteJSON sends one frame on the live connection.
func (ws *WebSocket) WriteJSON(ctx context.Context, v any) error {
	conn := ws.current()
	if conn == nil || ws.State() != WSStateConnected {
		return ErrNotConnected
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
	}
	return wsjson.Write(ctx, conn, v)
}

func (ws *WebSocket) Close(ctx context.Context) error {
	ws.stopOnce.Do(func() { close(ws.stopCh) })

	ws.stateM.Lock()
	conn := ws.conn
	ws.conn = nil
	ws.stateM.Unlock()
	if conn != nil {
		_ = conn.Close(websocket.StatusNormalClosure, "close")
	}
	ws.rootCancel()

	done := make(chan struct{})
	go func() {
		ws.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		ws.setState(WSStateDisconnected)
		return nil
	}
}

func (ws *WebSocket) isStopping() bool {
	select {
	case <-ws.stopCh:
		return true
	default:
		return false
	}
}

func (ws *WebSocket) buildHeaders() http.Header {
	hdr := http.Header{}
	if ws.headerProvider == nil {
		return hdr
	}
	for k, v := range ws.headerProvider() {
		if strings.TrimSpace(k) == "" || strings.TrimSpace(v) == "" {
			continue
		}
		hdr.Set(k, v)
	}
	return hdr
}
