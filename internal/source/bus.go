package source

import "sync"

// Bus es un pub-sub tipado por instancia de adaptador. Cada tipo de evento
// tiene su propio canal de suscripción; no hay estado a nivel de módulo.
type Bus struct {
	mu            sync.RWMutex
	message       []func(MessageEvent)
	handshake     []func(HandshakeEvent)
	authenticated []func()
}

func NewBus() *Bus {
	return &Bus{}
}

func (b *Bus) OnMessage(fn func(MessageEvent)) {
	if fn == nil {
		return
	}
	b.mu.Lock()
	b.message = append(b.message, fn)
	b.mu.Unlock()
}

func (b *Bus) OnHandshake(fn func(HandshakeEvent)) {
	if fn == nil {
		return
	}
	b.mu.Lock()
	b.handshake = append(b.handshake, fn)
	b.mu.Unlock()
}

func (b *Bus) OnAuthenticated(fn func()) {
	if fn == nil {
		return
	}
	b.mu.Lock()
	b.authenticated = append(b.authenticated, fn)
	b.mu.Unlock()
}

func (b *Bus) PublishMessage(ev MessageEvent) {
	b.mu.RLock()
	subs := make([]func(MessageEvent), len(b.message))
	copy(subs, b.message)
	b.mu.RUnlock()
	for _, fn := range subs {
		fn(ev)
	}
}

func (b *Bus) PublishHandshake(ev HandshakeEvent) {
	b.mu.RLock()
	subs := make([]func(HandshakeEvent), len(b.handshake))
	copy(subs, b.handshake)
	b.mu.RUnlock()
	for _, fn := range subs {
		fn(ev)
	}
}

func (b *Bus) PublishAuthenticated() {
	b.mu.RLock()
	subs := make([]func(), len(b.authenticated))
	copy(subs, b.authenticated)
	b.mu.RUnlock()
	for _, fn := range subs {
		fn()
	}
}
