package gateway

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"groupwire/internal/domain"
)

var errSessionClosed = errors.New("gateway: session closed")

// conn abstrae la conexión WebSocket; *websocket.Conn la satisface.
type conn interface {
	WriteJSON(v interface{}) error
	ReadMessage() (int, []byte, error)
	Close() error
}

// Session es una conexión viva con a lo sumo una identidad autenticada.
// Se crea al conectar y se destruye al desconectar.
type Session struct {
	ID       string
	Identity domain.User

	conn    conn
	writeMu sync.Mutex
	closed  atomic.Bool
}

func newSession(identity domain.User, c conn) *Session {
	return &Session{
		ID:       uuid.NewString(),
		Identity: identity,
		conn:     c,
	}
}

// Send serializa y escribe un evento. Una escritura fallida marca la sesión
// como cerrada; los broadcasts posteriores la saltan.
func (s *Session) Send(event string, payload interface{}) error {
	if s.closed.Load() {
		return errSessionClosed
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.conn.WriteJSON(envelope{Event: event, Data: payload}); err != nil {
		s.closed.Store(true)
		return err
	}
	return nil
}

func (s *Session) close() {
	s.closed.Store(true)
	_ = s.conn.Close()
}
