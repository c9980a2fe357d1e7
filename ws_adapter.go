package spotmicro

import (
	"context"
	"net/http"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
)

// WSAdapter serves the event bus over WebSocket using JSON framing,
// grounded on comm_base.hpp's transport-specific accept loop pattern and
// wired to nhooyr.io/websocket (already an indirect dependency of the
// teacher's module server stack, promoted here to a direct, actively
// used import).
type WSAdapter struct {
	*CommAdapter
	logger *zap.SugaredLogger
}

// NewWSAdapter builds a WebSocket adapter using the JSON codec.
func NewWSAdapter(bus *EventBus, logger *zap.SugaredLogger) *WSAdapter {
	return &WSAdapter{
		CommAdapter: NewCommAdapter(bus, NewJSONCodec(), logger),
		logger:      logger,
	}
}

// ServeHTTP upgrades the request to a WebSocket connection and runs its
// read loop until the client disconnects or ctx is cancelled.
func (a *WSAdapter) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		a.logger.Warnw("websocket accept failed", "error", err)
		return
	}

	sink := &wsSink{conn: conn, ctx: r.Context()}
	id := a.connect(sink)
	if id == noClient {
		a.logger.Warnw("websocket client rejected, adapter at capacity")
		conn.Close(websocket.StatusTryAgainLater, "too many clients")
		return
	}
	defer a.disconnect(id)

	a.readLoop(r.Context(), id, conn)
}

func (a *WSAdapter) readLoop(ctx context.Context, id ClientID, conn *websocket.Conn) {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		frame, err := a.codec.Decode(data)
		if err != nil {
			a.logger.Debugw("websocket decode failed", "client", id, "error", err)
			continue
		}
		a.handleFrame(id, frame)
	}
}

type wsSink struct {
	conn *websocket.Conn
	ctx  context.Context
}

func (s *wsSink) send(b []byte) error {
	return s.conn.Write(s.ctx, websocket.MessageText, b)
}

func (s *wsSink) close() error {
	return s.conn.Close(websocket.StatusNormalClosure, "closing")
}
