package ws

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/dmitrymomot/ridekit/pkg/logger"
	"github.com/dmitrymomot/ridekit/pkg/presence"
	"github.com/dmitrymomot/ridekit/pkg/rooms"
)

// command is the client-to-server wire message.
type command struct {
	Action string `json:"action"`
	RoomID string `json:"room_id,omitempty"`
	Text   string `json:"text,omitempty"`
}

// Client command actions.
const (
	actionJoin        = "join"
	actionLeave       = "leave"
	actionMessage     = "message"
	actionTypingStart = "typing_start"
	actionTypingStop  = "typing_stop"
)

// Handler upgrades HTTP requests to websocket connections, authenticates
// them against the presence manager and bridges client commands to the room
// service. Browsers cannot set an Authorization header on a native
// WebSocket, so the credential token travels in the "token" query param.
type Handler struct {
	manager *presence.Manager
	rooms   *rooms.Service

	sendBuffer     int
	writeTimeout   time.Duration
	originPatterns []string
	logger         *slog.Logger
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithSendBuffer sets the per-connection outbound buffer size.
func WithSendBuffer(n int) HandlerOption {
	return func(h *Handler) {
		if n > 0 {
			h.sendBuffer = n
		}
	}
}

// WithWriteTimeout bounds a single outbound frame write.
func WithWriteTimeout(d time.Duration) HandlerOption {
	return func(h *Handler) {
		if d > 0 {
			h.writeTimeout = d
		}
	}
}

// WithOriginPatterns allows cross-origin browser clients matching the given
// patterns.
func WithOriginPatterns(patterns ...string) HandlerOption {
	return func(h *Handler) {
		h.originPatterns = patterns
	}
}

// WithHandlerLogger sets the handler's logger.
func WithHandlerLogger(log *slog.Logger) HandlerOption {
	return func(h *Handler) {
		if log != nil {
			h.logger = log
		}
	}
}

// NewHandler creates a websocket handler on top of the presence manager and
// room service.
func NewHandler(manager *presence.Manager, roomSvc *rooms.Service, opts ...HandlerOption) (*Handler, error) {
	if manager == nil {
		return nil, ErrManagerNil
	}
	if roomSvc == nil {
		return nil, ErrRoomsNil
	}

	h := &Handler{
		manager:      manager,
		rooms:        roomSvc,
		sendBuffer:   64,
		writeTimeout: 10 * time.Second,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Router returns a chi router exposing the websocket endpoint at /ws.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()
	r.Get("/ws", h.ServeHTTP)
	return r
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}

	identity, err := h.manager.Authenticate(r.Context(), token)
	if err != nil {
		h.logger.Debug("websocket auth rejected", logger.Error(err))
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	sock, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.originPatterns,
	})
	if err != nil {
		// Accept already wrote the error response.
		return
	}

	c := newConn(sock, h.sendBuffer, h.writeTimeout)

	if err := h.manager.Register(c, identity); err != nil {
		h.logger.Warn("failed to register connection",
			logger.UserID(identity.UserID),
			logger.Error(err))
		_ = c.Close("registration failed")
		return
	}

	h.logger.Info("websocket connected",
		logger.ConnID(c.ID()),
		logger.UserID(identity.UserID))

	h.readLoop(r.Context(), c, identity.UserID)

	h.manager.Unregister(c)
	_ = c.Close("bye")

	h.logger.Info("websocket disconnected",
		logger.ConnID(c.ID()),
		logger.UserID(identity.UserID))
}

// readLoop processes client commands until the connection drops. Malformed
// or unauthorized commands are logged and skipped; only transport errors
// terminate the loop.
func (h *Handler) readLoop(ctx context.Context, c *conn, userID string) {
	for {
		var cmd command
		if err := wsjson.Read(ctx, c.sock, &cmd); err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure ||
				websocket.CloseStatus(err) == websocket.StatusGoingAway ||
				errors.Is(err, context.Canceled) {
				return
			}
			h.logger.Debug("websocket read failed",
				logger.ConnID(c.ID()),
				logger.Error(err))
			return
		}

		if err := h.handleCommand(ctx, c, cmd); err != nil {
			h.logger.Debug("command rejected",
				logger.ConnID(c.ID()),
				logger.UserID(userID),
				slog.String("action", cmd.Action),
				logger.RoomID(cmd.RoomID),
				logger.Error(err))
		}
	}
}

func (h *Handler) handleCommand(ctx context.Context, c *conn, cmd command) error {
	switch cmd.Action {
	case actionJoin:
		return h.rooms.Join(ctx, c, cmd.RoomID)
	case actionLeave:
		h.rooms.Leave(c, cmd.RoomID)
		return nil
	case actionMessage:
		return h.rooms.Message(c, cmd.RoomID, cmd.Text)
	case actionTypingStart:
		return h.rooms.Typing(c, cmd.RoomID, true)
	case actionTypingStop:
		return h.rooms.Typing(c, cmd.RoomID, false)
	default:
		return errors.New("unknown action: " + cmd.Action)
	}
}
