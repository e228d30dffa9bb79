// Package source observa un cliente de chat externo a través de una sesión
// de navegador automatizada y emite mensajes normalizados por grupo.
package source

import (
	"context"
	"errors"
	"time"
)

var (
	ErrInitialization   = errors.New("source: initialization failed")
	ErrHandshake        = errors.New("source: handshake failed")
	ErrNotAuthenticated = errors.New("source: not authenticated")
)

// State es el estado del ciclo de vida del adaptador.
type State int

const (
	StateUninitialized State = iota
	StateAwaitingHandshake
	StateAuthenticated
	StateObserving
)

func (s State) String() string {
	switch s {
	case StateAwaitingHandshake:
		return "awaiting_handshake"
	case StateAuthenticated:
		return "authenticated"
	case StateObserving:
		return "observing"
	default:
		return "uninitialized"
	}
}

// RawMessage es un mensaje normalizado tal como lo observa la fuente,
// antes de persistirse.
type RawMessage struct {
	SourceID  string    `json:"source_id"`
	Content   string    `json:"content"`
	Sender    string    `json:"sender"`
	Timestamp time.Time `json:"timestamp"`
	IsMedia   bool      `json:"is_media"`
	MediaURL  string    `json:"media_url,omitempty"`
}

// MessageEvent es un mensaje observado, etiquetado con el grupo de origen.
type MessageEvent struct {
	GroupName string
	Message   RawMessage
}

// HandshakeEvent transporta el artefacto de autenticación (código QR)
// destinado al operador.
type HandshakeEvent struct {
	Code string
}

// Adapter es la capacidad mínima que el pipeline necesita de una fuente.
// La implementación real usa un navegador; los tests usan un fake.
type Adapter interface {
	Initialize(ctx context.Context) error
	Monitor(ctx context.Context, groupName string) error
	OnMessage(fn func(MessageEvent))
	OnHandshake(fn func(HandshakeEvent))
	OnAuthenticated(fn func())
	Cleanup() error
}
