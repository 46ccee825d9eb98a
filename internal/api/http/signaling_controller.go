package http

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/immxrtalbeast/axenix_signal/internal/domain"
	"github.com/immxrtalbeast/axenix_signal/internal/metrics"
	"github.com/immxrtalbeast/axenix_signal/internal/service"
	"github.com/immxrtalbeast/axenix_signal/internal/transport"
	"github.com/immxrtalbeast/axenix_signal/lib/logger/sl"
)

type SignalingController struct {
	signaling service.SignalingInteractor
	peerCfg   transport.PeerConfig
	metrics   *metrics.Metrics
	log       *slog.Logger
	upgrader  websocket.Upgrader
}

func NewSignalingController(
	signaling service.SignalingInteractor,
	peerCfg transport.PeerConfig,
	m *metrics.Metrics,
	log *slog.Logger,
) *SignalingController {
	if log == nil {
		log = slog.Default()
	}
	if m == nil {
		m = metrics.New(nil)
	}
	return &SignalingController{
		signaling: signaling,
		peerCfg:   peerCfg.WithDefaults(),
		metrics:   m,
		log:       log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// Connect upgrades /ws/{roomId}/{userId} and serves the connection until it
// closes.
func (c *SignalingController) Connect(ctx *gin.Context) {
	const op = "api.http.signaling.connect"

	roomID, userID, ok := parseSignalingPath(ctx.Param("path"))
	if !ok {
		writeError(ctx, domain.Errorf(domain.CodeMalformedMessage, "expected /ws/{roomId}/{userId}"))
		return
	}
	log := c.log.With(
		slog.String("op", op),
		slog.String("room_id", roomID),
		slog.String("user_id", userID),
	)

	conn, err := c.upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		// the upgrader has already replied
		log.Info("upgrade failed", sl.Err(err))
		return
	}

	peer := transport.NewPeer(conn, c.peerCfg, log, c.metrics.FrameDropped)
	accepted, err := c.signaling.Accept(roomID, userID, peer)
	if err != nil {
		peer.Reject(err)
		return
	}

	peer.Run(ctx.Request.Context(), accepted.ID, c.signaling)
}

// parseSignalingPath accepts exactly two non-empty segments.
func parseSignalingPath(path string) (roomID, userID string, ok bool) {
	parts := strings.Split(strings.TrimPrefix(path, "/"), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}
