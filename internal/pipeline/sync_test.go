package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"groupwire/internal/domain"
	"groupwire/internal/gateway"
	"groupwire/internal/repository"
	"groupwire/internal/source"
)

type fakeGroupRepo struct {
	groups   []domain.Group
	getAlled int
}

func (r *fakeGroupRepo) Create(_ context.Context, g domain.Group) error {
	r.groups = append(r.groups, g)
	return nil
}

func (r *fakeGroupRepo) GetAll(_ context.Context) ([]domain.Group, error) {
	r.getAlled++
	return r.groups, nil
}

func (r *fakeGroupRepo) GetByID(_ context.Context, id string) (domain.Group, error) {
	for _, g := range r.groups {
		if g.ID == id {
			return g, nil
		}
	}
	return domain.Group{}, repository.ErrGroupNotFound
}

func (r *fakeGroupRepo) GetByName(_ context.Context, name string) (domain.Group, error) {
	for _, g := range r.groups {
		if g.Name == name {
			return g, nil
		}
	}
	return domain.Group{}, repository.ErrGroupNotFound
}

type fakeMessageRepo struct {
	mu        sync.Mutex
	created   []domain.Message
	createErr error
}

func (r *fakeMessageRepo) Create(_ context.Context, m domain.Message) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.mu.Lock()
	r.created = append(r.created, m)
	r.mu.Unlock()
	return nil
}

func (r *fakeMessageRepo) Paginate(_ context.Context, groupID string, page, limit int) (domain.MessagePage, error) {
	return domain.MessagePage{}, nil
}

type broadcastCall struct {
	groupID string
	event   string
	payload interface{}
}

type fakeBroadcaster struct {
	group  []broadcastCall
	global []broadcastCall
}

func (b *fakeBroadcaster) BroadcastToGroup(groupID, event string, payload interface{}) {
	b.group = append(b.group, broadcastCall{groupID: groupID, event: event, payload: payload})
}

func (b *fakeBroadcaster) BroadcastGlobal(event string, payload interface{}) {
	b.global = append(b.global, broadcastCall{event: event, payload: payload})
}

func newTestSync(groups *fakeGroupRepo, messages *fakeMessageRepo, router *fakeBroadcaster) *Sync {
	return NewSync(nil, groups, messages, router, NewMemorySeenStore())
}

func TestSync_PersistsAndBroadcastsMatchedGroup(t *testing.T) {
	groups := &fakeGroupRepo{groups: []domain.Group{{ID: "G1", Name: "Family"}}}
	messages := &fakeMessageRepo{}
	router := &fakeBroadcaster{}
	s := newTestSync(groups, messages, router)

	err := s.HandleMessage(context.Background(), source.MessageEvent{
		GroupName: "Family",
		Message:   source.RawMessage{SourceID: "m1", Content: "hi", Sender: "Alice"},
	})
	if err != nil {
		t.Fatalf("handle message: %v", err)
	}

	if len(messages.created) != 1 {
		t.Fatalf("expected 1 persisted message, got %d", len(messages.created))
	}
	persisted := messages.created[0]
	if persisted.GroupID != "G1" || persisted.Content != "hi" || persisted.Sender != "Alice" {
		t.Fatalf("unexpected message: %+v", persisted)
	}
	if persisted.ID == "" || persisted.CreatedAt.IsZero() {
		t.Fatalf("expected generated id and timestamp: %+v", persisted)
	}

	if len(router.group) != 1 {
		t.Fatalf("expected exactly one broadcast, got %d", len(router.group))
	}
	call := router.group[0]
	if call.groupID != "G1" || call.event != gateway.EventNewMessage {
		t.Fatalf("unexpected broadcast: %+v", call)
	}
	payload := call.payload.(gateway.NewMessagePayload)
	if payload.GroupID != "G1" || payload.Message.ID != persisted.ID {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestSync_UnknownGroupDropsWithoutWriteOrBroadcast(t *testing.T) {
	groups := &fakeGroupRepo{groups: []domain.Group{{ID: "G1", Name: "Family"}}}
	messages := &fakeMessageRepo{}
	router := &fakeBroadcaster{}
	s := newTestSync(groups, messages, router)

	err := s.HandleMessage(context.Background(), source.MessageEvent{
		GroupName: "Unknown Group",
		Message:   source.RawMessage{SourceID: "m1", Content: "hola"},
	})
	if !errors.Is(err, ErrUnknownGroup) {
		t.Fatalf("expected ErrUnknownGroup, got %v", err)
	}
	if len(messages.created) != 0 {
		t.Fatalf("expected no store writes, got %d", len(messages.created))
	}
	if len(router.group) != 0 {
		t.Fatalf("expected no broadcasts, got %d", len(router.group))
	}
}

func TestSync_IndexRefreshPicksUpLateGroupRegistration(t *testing.T) {
	groups := &fakeGroupRepo{}
	messages := &fakeMessageRepo{}
	router := &fakeBroadcaster{}
	s := newTestSync(groups, messages, router)

	if err := s.RefreshIndex(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	// El grupo se registra después de construido el índice.
	groups.groups = append(groups.groups, domain.Group{ID: "G2", Name: "Work"})

	err := s.HandleMessage(context.Background(), source.MessageEvent{
		GroupName: "Work",
		Message:   source.RawMessage{SourceID: "m1", Content: "hi"},
	})
	if err != nil {
		t.Fatalf("handle message: %v", err)
	}
	if len(messages.created) != 1 || messages.created[0].GroupID != "G2" {
		t.Fatalf("expected message persisted under G2, got %+v", messages.created)
	}
}

func TestSync_DuplicateSourceIDPersistsOnce(t *testing.T) {
	groups := &fakeGroupRepo{groups: []domain.Group{{ID: "G1", Name: "Family"}}}
	messages := &fakeMessageRepo{}
	router := &fakeBroadcaster{}
	s := newTestSync(groups, messages, router)

	ev := source.MessageEvent{
		GroupName: "Family",
		Message:   source.RawMessage{SourceID: "m1", Content: "hi", Sender: "Alice"},
	}
	if err := s.HandleMessage(context.Background(), ev); err != nil {
		t.Fatalf("first handle: %v", err)
	}
	if err := s.HandleMessage(context.Background(), ev); err != nil {
		t.Fatalf("second handle: %v", err)
	}

	if len(messages.created) != 1 {
		t.Fatalf("expected single persisted message, got %d", len(messages.created))
	}
	if len(router.group) != 1 {
		t.Fatalf("expected single broadcast, got %d", len(router.group))
	}
}

func TestSync_PersistenceFailureDropsWithoutBroadcast(t *testing.T) {
	groups := &fakeGroupRepo{groups: []domain.Group{{ID: "G1", Name: "Family"}}}
	messages := &fakeMessageRepo{createErr: errors.New("db down")}
	router := &fakeBroadcaster{}
	s := newTestSync(groups, messages, router)

	err := s.HandleMessage(context.Background(), source.MessageEvent{
		GroupName: "Family",
		Message:   source.RawMessage{SourceID: "m1", Content: "hi"},
	})
	if !errors.Is(err, ErrPersistence) {
		t.Fatalf("expected ErrPersistence, got %v", err)
	}
	if len(router.group) != 0 {
		t.Fatalf("expected no broadcast on failed persistence, got %d", len(router.group))
	}
}

func TestSync_NotifiesPersistedListeners(t *testing.T) {
	groups := &fakeGroupRepo{groups: []domain.Group{{ID: "G1", Name: "Family"}}}
	messages := &fakeMessageRepo{}
	router := &fakeBroadcaster{}
	s := newTestSync(groups, messages, router)

	var notified []domain.Message
	s.OnPersisted(func(m domain.Message) { notified = append(notified, m) })

	err := s.HandleMessage(context.Background(), source.MessageEvent{
		GroupName: "Family",
		Message:   source.RawMessage{SourceID: "m1", Content: "hi", Timestamp: time.Now().UTC()},
	})
	if err != nil {
		t.Fatalf("handle message: %v", err)
	}
	if len(notified) != 1 || notified[0].GroupID != "G1" {
		t.Fatalf("expected listener notification, got %+v", notified)
	}
}

type fakeAdapter struct {
	bus *source.Bus
}

func (a *fakeAdapter) Initialize(context.Context) error           { return nil }
func (a *fakeAdapter) Monitor(context.Context, string) error      { return nil }
func (a *fakeAdapter) OnMessage(fn func(source.MessageEvent))     { a.bus.OnMessage(fn) }
func (a *fakeAdapter) OnHandshake(fn func(source.HandshakeEvent)) { a.bus.OnHandshake(fn) }
func (a *fakeAdapter) OnAuthenticated(fn func())                  { a.bus.OnAuthenticated(fn) }
func (a *fakeAdapter) Cleanup() error                             { return nil }

func TestSync_AttachRelaysHandshakeAndAuthGlobally(t *testing.T) {
	groups := &fakeGroupRepo{groups: []domain.Group{{ID: "G1", Name: "Family"}}}
	messages := &fakeMessageRepo{}
	router := &fakeBroadcaster{}
	s := newTestSync(groups, messages, router)

	adapter := &fakeAdapter{bus: source.NewBus()}
	s.Attach(adapter)

	adapter.bus.PublishHandshake(source.HandshakeEvent{Code: "qr-1"})
	adapter.bus.PublishAuthenticated()
	adapter.bus.PublishMessage(source.MessageEvent{
		GroupName: "Family",
		Message:   source.RawMessage{SourceID: "m1", Content: "hi"},
	})

	if len(router.global) != 2 {
		t.Fatalf("expected 2 global broadcasts, got %d", len(router.global))
	}
	if router.global[0].event != gateway.EventQR {
		t.Fatalf("expected qr event first, got %s", router.global[0].event)
	}
	qr := router.global[0].payload.(gateway.QRPayload)
	if qr.QR != "qr-1" {
		t.Fatalf("unexpected qr payload: %+v", qr)
	}
	if router.global[1].event != gateway.EventAuthenticated {
		t.Fatalf("expected authenticated event, got %s", router.global[1].event)
	}
	if len(messages.created) != 1 {
		t.Fatalf("expected message persisted through attach, got %d", len(messages.created))
	}
}
