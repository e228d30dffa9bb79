package gateway

import (
	"errors"
	"sync"

	"go.uber.org/zap"

	"groupwire/internal/telemetry"
)

var ErrUnauthenticatedSession = errors.New("gateway: session not authenticated")

// ChannelRouter mantiene el mapeo grupo → sesiones suscritas y ejecuta el
// fan-out. La entrega es best-effort, a lo sumo una vez: una sesión que se
// desconecta a mitad de un broadcast se salta en silencio.
type ChannelRouter struct {
	logger *zap.Logger

	mu       sync.RWMutex
	sessions map[string]*Session            // todas las conectadas
	rooms    map[string]map[string]*Session // groupID → sessionID → sesión
}

func NewChannelRouter(logger *zap.Logger) *ChannelRouter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChannelRouter{
		logger:   logger,
		sessions: make(map[string]*Session),
		rooms:    make(map[string]map[string]*Session),
	}
}

// Register incorpora una sesión recién autenticada al conjunto global.
func (r *ChannelRouter) Register(s *Session) {
	r.mu.Lock()
	r.sessions[s.ID] = s
	r.mu.Unlock()
	telemetry.AddSessions(1)
}

// Unregister retira la sesión de todos los grupos y del conjunto global.
func (r *ChannelRouter) Unregister(s *Session) {
	r.mu.Lock()
	if _, ok := r.sessions[s.ID]; !ok {
		r.mu.Unlock()
		return
	}
	delete(r.sessions, s.ID)
	for groupID, members := range r.rooms {
		delete(members, s.ID)
		if len(members) == 0 {
			delete(r.rooms, groupID)
		}
	}
	r.mu.Unlock()
	telemetry.AddSessions(-1)
}

// Subscribe une la sesión al canal del grupo. Idempotente; rechaza sesiones
// sin identidad autenticada.
func (r *ChannelRouter) Subscribe(s *Session, groupID string) error {
	if s.Identity.ID == "" {
		return ErrUnauthenticatedSession
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	members, ok := r.rooms[groupID]
	if !ok {
		members = make(map[string]*Session)
		r.rooms[groupID] = members
	}
	members[s.ID] = s
	return nil
}

// Unsubscribe saca la sesión del canal del grupo; no es error no estar
// suscrito.
func (r *ChannelRouter) Unsubscribe(s *Session, groupID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	members, ok := r.rooms[groupID]
	if !ok {
		return
	}
	delete(members, s.ID)
	if len(members) == 0 {
		delete(r.rooms, groupID)
	}
}

// Subscribers devuelve los ids de sesión suscritos a un grupo.
func (r *ChannelRouter) Subscribers(groupID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	members := r.rooms[groupID]
	ids := make([]string, 0, len(members))
	for id := range members {
		ids = append(ids, id)
	}
	return ids
}

// BroadcastToGroup entrega el evento exactamente a las sesiones suscritas
// al grupo en el momento de la llamada.
func (r *ChannelRouter) BroadcastToGroup(groupID, event string, payload interface{}) {
	r.mu.RLock()
	members := make([]*Session, 0, len(r.rooms[groupID]))
	for _, s := range r.rooms[groupID] {
		members = append(members, s)
	}
	r.mu.RUnlock()

	for _, s := range members {
		if err := s.Send(event, payload); err != nil {
			r.logger.Debug("skipping session on broadcast",
				zap.String("session", s.ID),
				zap.String("group", groupID),
				zap.Error(err),
			)
		}
	}
	telemetry.IncBroadcast()
}

// BroadcastGlobal entrega el evento a toda sesión conectada, esté o no
// suscrita a algún grupo.
func (r *ChannelRouter) BroadcastGlobal(event string, payload interface{}) {
	r.mu.RLock()
	members := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		members = append(members, s)
	}
	r.mu.RUnlock()

	for _, s := range members {
		if err := s.Send(event, payload); err != nil {
			r.logger.Debug("skipping session on global broadcast",
				zap.String("session", s.ID),
				zap.Error(err),
			)
		}
	}
}
