package progress

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	feedInterval    = 500 * time.Millisecond
	feedIdleTimeout = 60 * time.Second
	feedWriteWait   = 10 * time.Second
)

// Feed streams board snapshots as JSON to websocket clients on /progress.
type Feed struct {
	board    *Board
	logger   *slog.Logger
	interval time.Duration
	upgrader websocket.Upgrader

	closing   chan struct{}
	closeOnce sync.Once
	conns     sync.WaitGroup

	mu  sync.Mutex
	srv *http.Server
}

// NewFeed creates a feed for board. A nil logger discards logs.
func NewFeed(board *Board, logger *slog.Logger) *Feed {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Feed{
		board:    board,
		logger:   logger,
		interval: feedInterval,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		closing: make(chan struct{}),
	}
}

// Handler returns the feed's HTTP routes.
func (f *Feed) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/progress", f.serveProgress)
	return mux
}

// Start listens on addr and serves the feed in the background. It returns
// the bound address, which differs from addr when addr uses port 0.
func (f *Feed) Start(addr string) (net.Addr, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	srv := &http.Server{
		Handler:           f.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	f.mu.Lock()
	f.srv = srv
	f.mu.Unlock()
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			f.logger.Error("progress feed stopped", "error", err)
		}
	}()
	f.logger.Info("progress feed listening", "addr", ln.Addr().String())
	return ln.Addr(), nil
}

// Close sends every client a last snapshot and a normal close frame, then
// stops the server if Start was called.
func (f *Feed) Close(ctx context.Context) error {
	f.mu.Lock()
	f.closeOnce.Do(func() { close(f.closing) })
	f.mu.Unlock()

	waited := make(chan struct{})
	go func() {
		f.conns.Wait()
		close(waited)
	}()
	select {
	case <-waited:
	case <-ctx.Done():
	}

	f.mu.Lock()
	srv := f.srv
	f.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

func (f *Feed) serveProgress(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	f.mu.Lock()
	select {
	case <-f.closing:
		f.mu.Unlock()
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	default:
	}
	f.conns.Add(1)
	f.mu.Unlock()
	defer f.conns.Done()

	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		f.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	logger := f.logger.With("remote", r.RemoteAddr)
	logger.Debug("progress client connected")

	var writeMu sync.Mutex
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(feedIdleTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(feedIdleTimeout))
	})
	conn.SetPingHandler(func(appData string) error {
		_ = conn.SetReadDeadline(time.Now().Add(feedIdleTimeout))
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(feedWriteWait))
	})

	// Clients only send control frames; the read loop keeps them flowing.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
					logger.Debug("progress client read error", "error", err)
				}
				return
			}
		}
	}()

	send := func() error {
		writeMu.Lock()
		defer writeMu.Unlock()
		_ = conn.SetWriteDeadline(time.Now().Add(feedWriteWait))
		return conn.WriteJSON(f.board.Snapshot())
	}

	if err := send(); err != nil {
		return
	}
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()
	ping := time.NewTicker(feedIdleTimeout / 2)
	defer ping.Stop()

	for {
		select {
		case <-gone:
			logger.Debug("progress client disconnected")
			return
		case <-r.Context().Done():
			return
		case <-f.closing:
			if err := send(); err != nil {
				return
			}
			writeMu.Lock()
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "backup finished"),
				time.Now().Add(feedWriteWait))
			writeMu.Unlock()
			select {
			case <-gone:
			case <-time.After(time.Second):
			}
			return
		case <-ticker.C:
			if err := send(); err != nil {
				logger.Debug("progress client write failed", "error", err)
				return
			}
		case <-ping.C:
			writeMu.Lock()
			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(feedWriteWait))
			writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}
