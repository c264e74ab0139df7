package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/smarttest/smarttest-backend/internal/model"
	"github.com/smarttest/smarttest-backend/internal/response"
	"github.com/smarttest/smarttest-backend/internal/service"
	ws "github.com/smarttest/smarttest-backend/internal/websocket"
)

// errStreamDone ends the stream once the attempt is submitted.
var errStreamDone = errors.New("stream done")

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler streams a test attempt over a WebSocket: answers go up, timer
// ticks and the graded result come down.
type WSHandler struct {
	sessions TestSession
	tick     time.Duration
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(sessions TestSession, tick time.Duration, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		sessions: sessions,
		tick:     tick,
		log:      log.With().Str("component", "ws_handler").Logger(),
		upgrader: buildUpgrader(allowedOrigins),
	}
}

// TestStream godoc
// WS /ws/v1/student/tests/:subject_id/:test_type/stream?token=
// Requires an in-progress attempt; start it over HTTP first.
func (h *WSHandler) TestStream(c *gin.Context) {
	_, key, ok := testKey(c)
	if !ok {
		return
	}

	// Refuse before upgrading so the client gets a normal HTTP error.
	if _, err := h.sessions.Resume(c.Request.Context(), key); err != nil {
		failSession(c, h.log, err)
		return
	}

	raw, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	conn := ws.NewConn(raw)
	defer conn.Close()

	wsLog := h.log.With().
		Int64("student_id", key.StudentID).
		Int64("subject_id", key.SubjectID).
		Str("test_type", string(key.TestType)).
		Logger()
	wsLog.Info().Msg("Student connected")

	g, ctx := errgroup.WithContext(context.WithoutCancel(c.Request.Context()))
	g.Go(func() error { return h.tickLoop(ctx, conn, key) })
	g.Go(func() error {
		defer conn.Close()
		return h.readLoop(ctx, conn, key, wsLog)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errStreamDone) {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
			wsLog.Warn().Err(err).Msg("Unexpected close")
		} else {
			wsLog.Debug().Err(err).Msg("Connection closed")
		}
	}
	wsLog.Info().Msg("Student disconnected")
}

// tickLoop pushes the countdown and submits the attempt when time runs out.
func (h *WSHandler) tickLoop(ctx context.Context, conn *ws.Conn, key model.ProgressKey) error {
	ticker := time.NewTicker(h.tick)
	defer ticker.Stop()

	for {
		if err := h.pushState(ctx, conn, key); err != nil {
			// Unblock the reader.
			_ = conn.Close()
			return err
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (h *WSHandler) pushState(ctx context.Context, conn *ws.Conn, key model.ProgressKey) error {
	st, err := h.sessions.State(ctx, key)
	if err != nil {
		_, code := classify(err)
		_ = conn.WriteError(string(code), response.GetMessage(code))
		return err
	}

	if st.Submitted {
		if err := conn.WriteTyped(ws.GradedResponse{Event: ws.EventGraded, TimeUp: true, Result: st.Result}); err != nil {
			return err
		}
		return errStreamDone
	}

	return conn.WriteTyped(ws.TickResponse{Event: ws.EventTick, RemainingSeconds: st.RemainingSeconds, Warning: st.Warning})
}

func (h *WSHandler) readLoop(ctx context.Context, conn *ws.Conn, key model.ProgressKey, wsLog zerolog.Logger) error {
	for {
		var msg ws.Request
		if err := conn.ReadJSON(&msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		done, err := h.dispatch(ctx, conn, key, &msg)
		if err != nil {
			return err
		}
		if done {
			return errStreamDone
		}
		wsLog.Debug().Str("action", string(msg.Action)).Msg("Action handled")
	}
}

// dispatch runs one client action. It reports done once the attempt is
// submitted; the returned error is a write failure.
func (h *WSHandler) dispatch(ctx context.Context, conn *ws.Conn, key model.ProgressKey, msg *ws.Request) (bool, error) {
	var (
		reply interface{}
		err   error
	)

	switch msg.Action {
	case ws.ActionPing:
		return false, conn.WriteTyped(ws.PongResponse{Event: ws.EventPong})

	case ws.ActionAnswer, ws.ActionSelect:
		if msg.Index == nil {
			return false, conn.WriteError(string(response.ErrValidation), "index is required")
		}
		var stored string
		if msg.Action == ws.ActionSelect {
			if msg.OptionIndex == nil {
				return false, conn.WriteError(string(response.ErrValidation), "option_index is required")
			}
			stored, err = h.sessions.SelectOption(ctx, key, *msg.Index, *msg.OptionIndex)
		} else {
			stored, err = h.sessions.RecordAnswer(ctx, key, *msg.Index, msg.Answer)
		}
		reply = ws.SuccessResponse{Event: ws.EventSuccess, Action: msg.Action, Index: msg.Index, Answer: stored}

	case ws.ActionNavigate:
		if msg.Index == nil {
			return false, conn.WriteError(string(response.ErrValidation), "index is required")
		}
		err = h.sessions.Navigate(ctx, key, *msg.Index)
		reply = ws.SuccessResponse{Event: ws.EventSuccess, Action: msg.Action, Index: msg.Index}

	case ws.ActionMark:
		if msg.Index == nil {
			return false, conn.WriteError(string(response.ErrValidation), "index is required")
		}
		var marked bool
		marked, err = h.sessions.ToggleMark(ctx, key, *msg.Index)
		reply = ws.SuccessResponse{Event: ws.EventSuccess, Action: msg.Action, Index: msg.Index, Marked: &marked}

	case ws.ActionAutosave:
		if msg.AttemptID == uuid.Nil {
			return false, conn.WriteError(string(response.ErrValidation), "attempt_id is required")
		}
		var status model.AutosaveStatus
		status, err = h.sessions.Autosave(ctx, key, msg.Snapshot())
		reply = ws.SuccessResponse{Event: ws.EventSuccess, Action: msg.Action, Status: string(status)}

	case ws.ActionSubmit:
		res, err := h.sessions.Submit(ctx, key)
		if err != nil {
			return h.writeFailure(conn, err)
		}
		return true, conn.WriteTyped(ws.GradedResponse{Event: ws.EventGraded, Result: res})

	default:
		return false, conn.WriteError(string(response.ErrInvalidPayload), "unknown action: "+string(msg.Action))
	}

	if err != nil {
		return h.writeFailure(conn, err)
	}
	return false, conn.WriteTyped(reply)
}

// writeFailure reports a session error to the client. A time-up ends the
// stream with the auto-submitted result.
func (h *WSHandler) writeFailure(conn *ws.Conn, err error) (bool, error) {
	var timeUp *service.TimeUpError
	if errors.As(err, &timeUp) {
		return true, conn.WriteTyped(ws.GradedResponse{Event: ws.EventGraded, TimeUp: true, Result: timeUp.Result})
	}

	status, code := classify(err)
	if status == http.StatusInternalServerError {
		h.log.Error().Err(err).Msg("Stream action failed")
	}
	return errors.Is(err, service.ErrAlreadySubmitted), conn.WriteError(string(code), response.GetMessage(code))
}
