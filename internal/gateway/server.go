package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"groupwire/internal/repository"
)

// Server atiende el endpoint WebSocket de distribución.
type Server struct {
	logger   *zap.Logger
	gate     *AuthGate
	router   *ChannelRouter
	messages repository.MessageRepository
	pageSize int
	upgrader websocket.Upgrader
}

func NewServer(logger *zap.Logger, gate *AuthGate, router *ChannelRouter, messages repository.MessageRepository, pageSize int) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if pageSize <= 0 {
		pageSize = 50
	}
	return &Server{
		logger:   logger,
		gate:     gate,
		router:   router,
		messages: messages,
		pageSize: pageSize,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// Handle hace el upgrade y corre el loop de lectura de la conexión.
func (s *Server) Handle(c *gin.Context) {
	wsConn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	identity, authErr := s.gate.Authenticate(c.Request.Context(), c.Request)
	if authErr != nil {
		// Rechazo antes de crear estado de sesión: el cliente recibe la
		// razón y la conexión se cierra.
		_ = wsConn.WriteJSON(envelope{Event: EventError, Data: authErr.Reason})
		_ = wsConn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, authErr.Reason))
		_ = wsConn.Close()
		return
	}

	sess := newSession(identity, wsConn)
	s.router.Register(sess)
	s.logger.Info("session connected",
		zap.String("session", sess.ID),
		zap.String("user", identity.ID),
	)

	defer func() {
		s.router.Unregister(sess)
		sess.close()
		s.logger.Info("session disconnected", zap.String("session", sess.ID))
	}()

	for {
		_, raw, err := wsConn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("session read error", zap.String("session", sess.ID), zap.Error(err))
			}
			return
		}

		var cmd clientCommand
		if err := json.Unmarshal(raw, &cmd); err != nil {
			_ = sess.Send(EventError, "malformed command")
			continue
		}
		s.dispatch(c, sess, cmd)
	}
}

func (s *Server) dispatch(c *gin.Context, sess *Session, cmd clientCommand) {
	switch cmd.Action {
	case ActionSubscribe:
		if cmd.GroupID == "" {
			_ = sess.Send(EventError, "missing groupId")
			return
		}
		if err := s.router.Subscribe(sess, cmd.GroupID); err != nil {
			_ = sess.Send(EventError, err.Error())
			return
		}
		s.sendInitialMessages(c, sess, cmd.GroupID)
	case ActionUnsubscribe:
		if cmd.GroupID == "" {
			_ = sess.Send(EventError, "missing groupId")
			return
		}
		s.router.Unsubscribe(sess, cmd.GroupID)
	default:
		_ = sess.Send(EventError, "unknown action")
	}
}

func (s *Server) sendInitialMessages(c *gin.Context, sess *Session, groupID string) {
	if s.messages == nil {
		return
	}
	page, err := s.messages.Paginate(c.Request.Context(), groupID, 1, s.pageSize)
	if err != nil {
		s.logger.Warn("loading initial messages",
			zap.String("group", groupID),
			zap.Error(err),
		)
		return
	}
	_ = sess.Send(EventInitialMessages, InitialMessagesPayload{
		GroupID:  groupID,
		Messages: page.Messages,
	})
}
