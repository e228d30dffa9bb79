// Package pipeline convierte eventos del adaptador de fuente en mensajes
// durables y dispara su distribución.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"groupwire/internal/domain"
	"groupwire/internal/gateway"
	"groupwire/internal/repository"
	"groupwire/internal/source"
	"groupwire/internal/telemetry"
)

var (
	ErrUnknownGroup = errors.New("pipeline: unknown group")
	ErrPersistence  = errors.New("pipeline: persistence failed")
)

// Broadcaster es lo que el pipeline necesita del router de distribución.
type Broadcaster interface {
	BroadcastToGroup(groupID, event string, payload interface{})
	BroadcastGlobal(event string, payload interface{})
}

// Sync persiste cada mensaje observado y lo difunde al grupo suscrito.
// El grupo se resuelve por nombre contra un índice nombre→id mantenido
// incrementalmente; en un miss se refresca una vez desde el repositorio
// antes de descartar.
type Sync struct {
	logger   *zap.Logger
	groups   repository.GroupRepository
	messages repository.MessageRepository
	router   Broadcaster
	seen     SeenStore

	mu    sync.RWMutex
	index map[string]string // nombre de grupo → id

	notifyMu  sync.RWMutex
	listeners []func(domain.Message)
}

func NewSync(logger *zap.Logger, groups repository.GroupRepository, messages repository.MessageRepository, router Broadcaster, seen SeenStore) *Sync {
	if logger == nil {
		logger = zap.NewNop()
	}
	if seen == nil {
		seen = NewMemorySeenStore()
	}
	return &Sync{
		logger:   logger,
		groups:   groups,
		messages: messages,
		router:   router,
		seen:     seen,
		index:    make(map[string]string),
	}
}

// Attach suscribe el pipeline a los eventos del adaptador. Los errores de
// ingesta se loguean y el evento se pierde: entrega a lo sumo una vez.
func (s *Sync) Attach(adapter source.Adapter) {
	adapter.OnMessage(func(ev source.MessageEvent) {
		if err := s.HandleMessage(context.Background(), ev); err != nil {
			s.logger.Warn("dropping source message",
				zap.String("group", ev.GroupName),
				zap.Error(err),
			)
		}
	})
	adapter.OnHandshake(func(ev source.HandshakeEvent) {
		s.router.BroadcastGlobal(gateway.EventQR, gateway.QRPayload{QR: ev.Code})
	})
	adapter.OnAuthenticated(func() {
		s.router.BroadcastGlobal(gateway.EventAuthenticated, struct{}{})
	})
}

// OnPersisted registra un listener que recibe cada mensaje recién
// persistido; es el contrato que consume, por ejemplo, la capa REST.
func (s *Sync) OnPersisted(fn func(domain.Message)) {
	if fn == nil {
		return
	}
	s.notifyMu.Lock()
	s.listeners = append(s.listeners, fn)
	s.notifyMu.Unlock()
}

// RefreshIndex reconstruye el índice nombre→id desde el repositorio.
func (s *Sync) RefreshIndex(ctx context.Context) error {
	groups, err := s.groups.GetAll(ctx)
	if err != nil {
		return err
	}
	index := make(map[string]string, len(groups))
	for _, g := range groups {
		index[g.Name] = g.ID
	}
	s.mu.Lock()
	s.index = index
	s.mu.Unlock()
	return nil
}

// HandleMessage procesa un evento (groupName, rawMessage): resuelve el
// grupo, deduplica, persiste y difunde.
func (s *Sync) HandleMessage(ctx context.Context, ev source.MessageEvent) error {
	groupID, ok := s.resolveGroup(ctx, ev.GroupName)
	if !ok {
		telemetry.IncDropped("unknown_group")
		return fmt.Errorf("%w: %q", ErrUnknownGroup, ev.GroupName)
	}

	fresh, err := s.seen.MarkIfNew(ctx, ev.Message.SourceID)
	if err != nil {
		// Con el dedup caído preferimos un posible duplicado a perder
		// el mensaje.
		s.logger.Warn("seen store unavailable", zap.Error(err))
	} else if !fresh {
		return nil
	}

	msg := domain.Message{
		ID:        uuid.NewString(),
		GroupID:   groupID,
		Content:   ev.Message.Content,
		Sender:    ev.Message.Sender,
		IsMedia:   ev.Message.IsMedia,
		MediaURL:  ev.Message.MediaURL,
		CreatedAt: ev.Message.Timestamp,
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	if err := s.messages.Create(ctx, msg); err != nil {
		telemetry.IncDropped("persistence")
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	telemetry.IncIngested()

	s.notifyMu.RLock()
	listeners := make([]func(domain.Message), len(s.listeners))
	copy(listeners, s.listeners)
	s.notifyMu.RUnlock()
	for _, fn := range listeners {
		fn(msg)
	}

	s.router.BroadcastToGroup(groupID, gateway.EventNewMessage, gateway.NewMessagePayload{
		GroupID: groupID,
		Message: msg,
	})
	return nil
}

func (s *Sync) resolveGroup(ctx context.Context, name string) (string, bool) {
	s.mu.RLock()
	id, ok := s.index[name]
	s.mu.RUnlock()
	if ok {
		return id, true
	}

	// Un grupo registrado después del último refresh merece un reintento
	// antes del descarte.
	if err := s.RefreshIndex(ctx); err != nil {
		s.logger.Warn("refreshing group index", zap.Error(err))
		return "", false
	}

	s.mu.RLock()
	id, ok = s.index[name]
	s.mu.RUnlock()
	return id, ok
}
