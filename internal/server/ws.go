package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"loan-scorer/internal/ml"
)

const (
	wsReadTimeout  = 60 * time.Second
	wsWriteTimeout = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// handleWS scores every text message on the connection as a field map and
// replies in order with a response or an error body.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response
		zerolog.Ctx(r.Context()).Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	if s.metrics != nil {
		sessions := s.metrics.WSSessions()
		sessions.Inc()
		defer sessions.Dec()
	}

	logger := zerolog.Ctx(r.Context())
	logger.Info().Msg("websocket session opened")

	conn.SetReadLimit(maxBodyBytes)
	for {
		conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		msgType, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Warn().Err(err).Msg("websocket read failed")
			}
			logger.Info().Msg("websocket session closed")
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}

		reply := s.scoreMessage(r.Context(), msg)

		conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err := conn.WriteJSON(reply); err != nil {
			logger.Warn().Err(err).Msg("websocket write failed")
			return
		}
	}
}

// scoreMessage never panics; a failure becomes an error reply.
func (s *Server) scoreMessage(ctx context.Context, msg []byte) (reply interface{}) {
	defer func() {
		if p := recover(); p != nil {
			s.panicked(ctx, p)
			reply = ErrorResponse{
				Error:     fmt.Sprintf("internal error: %v", p),
				Kind:      ml.KindInternal,
				RequestID: RequestID(ctx),
			}
		}
	}()

	app, err := parseFields(msg)
	if err != nil {
		return ErrorResponse{Error: err.Error(), Kind: kindBadRequest, RequestID: RequestID(ctx)}
	}

	d, err := s.scorer.Predict(ctx, app)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("kind", ml.Kind(err)).Msg("prediction failed")
		return ErrorResponse{Error: err.Error(), Kind: ml.Kind(err), RequestID: RequestID(ctx)}
	}
	return d.Response()
}
