package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/tallyhq/tally/internal/auth"
	"github.com/tallyhq/tally/internal/config"
	"github.com/tallyhq/tally/internal/errs"
	"github.com/tallyhq/tally/internal/limiter"
	"github.com/tallyhq/tally/internal/service"
)

// Handler upgrades HTTP requests to websocket connections and dispatches
// their messages to the coordinator. The first frame on every connection
// must be an authenticate; everything before that is rejected without
// touching any state.
type Handler struct {
	hub         *Hub
	coordinator *service.TimerCoordinator
	lim         limiter.Limiter
	signKey     []byte
	log         *zap.Logger
	upgrader    websocket.Upgrader
}

// NewHandler wires the websocket endpoint.
func NewHandler(hub *Hub, coordinator *service.TimerCoordinator, lim limiter.Limiter, signKey []byte, log *zap.Logger) *Handler {
	return &Handler{
		hub:         hub,
		coordinator: coordinator,
		lim:         lim,
		signKey:     signKey,
		log:         log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Origin checks belong to the fronting proxy.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// ServeHTTP upgrades the connection and runs its read loop.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("upgrade failed", zap.Error(err))
		return
	}

	c := newClient(conn)
	go c.writePump()
	h.readLoop(r.Context(), c, remoteHost(r))
}

func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (h *Handler) readLoop(ctx context.Context, c *Client, remote string) {
	defer func() {
		h.hub.Leave(c)
		close(c.send)
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Info("connection closed", zap.Error(err))
			}
			return
		}

		var f Frame
		if err := json.Unmarshal(raw, &f); err != nil {
			h.sendError(c, "", "malformed message")
			continue
		}

		start := time.Now()
		err = h.dispatch(ctx, c, &f, remote)
		h.log.Info("ws",
			zap.String("type", f.Type),
			zap.Bool("ok", err == nil),
			zap.Duration("dur", time.Since(start)),
		)
		if err != nil {
			if errors.Is(err, errs.ErrRateLimited) {
				h.sendError(c, f.Type, "too many failed attempts, try again later")
				return
			}
			h.sendError(c, f.Type, h.renderError(c, err))
		}
	}
}

// dispatch routes one frame. Errors are reported only to the originating
// connection; successful operations broadcast through the coordinator.
func (h *Handler) dispatch(ctx context.Context, c *Client, f *Frame, remote string) error {
	if f.Type == MsgAuthenticate {
		return h.authenticate(ctx, c, f, remote)
	}
	if c.userID.IsNil() {
		return errs.ErrUnauthorized
	}

	switch f.Type {
	case MsgTimerStart:
		var p StartPayload
		if err := f.DecodeData(&p); err != nil {
			return err
		}
		return h.coordinator.Start(ctx, c.userID, p.TaskID)

	case MsgTimerStop:
		var p StopPayload
		if err := f.DecodeData(&p); err != nil {
			return err
		}
		// p.TaskID and p.DurationSeconds are advisory; the server's own
		// start instant is the authority.
		_, err := h.coordinator.Stop(ctx, c.userID)
		return err

	case MsgUpdateStart:
		var p UpdateStartPayload
		if err := f.DecodeData(&p); err != nil {
			return err
		}
		return h.coordinator.AdjustStart(ctx, c.userID, p.TaskID, p.NewStartTime)

	case MsgRequestState:
		// Snapshot goes only to the asking connection.
		msg, err := Encode(service.EvtState, h.coordinator.State(c.userID))
		if err != nil {
			return err
		}
		c.enqueue(msg)
		return nil

	default:
		return fmt.Errorf("unknown message type %q", f.Type)
	}
}

// authenticate performs the handshake: rate-limit check, token validation,
// timezone resolution, then hub join. Until it succeeds the connection can
// trigger nothing and receives nothing.
func (h *Handler) authenticate(ctx context.Context, c *Client, f *Frame, remote string) error {
	var p AuthenticatePayload
	if err := f.DecodeData(&p); err != nil {
		return err
	}

	ipHash := limiter.HashIP(remote)
	userID, authErr := auth.UserIDFromToken(p.Token, h.signKey)

	ref := "anonymous"
	if authErr == nil {
		ref = userID.String()
	}
	allowed, _, err := h.lim.Allow(ctx, ref, ipHash)
	if err != nil {
		return err
	}
	if !allowed {
		return errs.ErrRateLimited
	}
	if authErr != nil {
		if blocked, _, ferr := h.lim.Failure(ctx, ref, ipHash); ferr == nil && blocked {
			return errs.ErrRateLimited
		}
		return errs.ErrUnauthorized
	}
	_ = h.lim.Success(ctx, ref, ipHash)

	loc, ok := config.SafeLocation(p.Timezone)
	if !ok && p.Timezone != "" {
		h.log.Warn("unknown client timezone, using UTC", zap.String("timezone", p.Timezone))
	}

	c.userID = userID
	c.loc = loc
	h.hub.Join(c, userID)
	return nil
}

// renderError turns a service error into the user-facing message. Overlap
// conflicts carry the conflicting entry's identity, rendered in the
// client's timezone; everything else gets a retry-safe generic text.
func (h *Handler) renderError(c *Client, err error) string {
	var oe *errs.OverlapError
	if errors.As(err, &oe) {
		oe.Loc = c.loc
		return oe.Error()
	}
	switch {
	case errors.Is(err, errs.ErrNotFound):
		return "no running timer"
	case errors.Is(err, errs.ErrTaskMismatch):
		return "another device switched tasks, refresh and retry"
	case errors.Is(err, errs.ErrFutureStart):
		return "start time is in the future"
	case errors.Is(err, errs.ErrFutureEnd):
		return "end time is in the future"
	case errors.Is(err, errs.ErrInvalidInterval):
		return "end must be after start"
	case errors.Is(err, errs.ErrUnauthorized):
		return "not authenticated"
	default:
		return "operation failed, please retry"
	}
}

func (h *Handler) sendError(c *Client, action, message string) {
	msg, err := Encode(MsgError, ErrorPayload{Action: action, Message: message})
	if err != nil {
		return
	}
	c.enqueue(msg)
}
