// Package gateway implementa la distribución en vivo: autenticación de
// conexiones entrantes y fan-out de eventos por grupo sobre WebSocket.
package gateway

import "groupwire/internal/domain"

// Eventos emitidos por el servidor.
const (
	EventNewMessage      = "new_message"
	EventQR              = "qr"
	EventAuthenticated   = "authenticated"
	EventInitialMessages = "initial_messages"
	EventError           = "error"
)

// Acciones del protocolo post-handshake del cliente.
const (
	ActionSubscribe   = "subscribe"
	ActionUnsubscribe = "unsubscribe"
)

type envelope struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

type clientCommand struct {
	Action  string `json:"action"`
	GroupID string `json:"groupId"`
}

// NewMessagePayload acompaña al evento new_message.
type NewMessagePayload struct {
	GroupID string         `json:"groupId"`
	Message domain.Message `json:"message"`
}

// InitialMessagesPayload acompaña al evento initial_messages tras subscribe.
type InitialMessagesPayload struct {
	GroupID  string           `json:"groupId"`
	Messages []domain.Message `json:"messages"`
}

// QRPayload acompaña al evento qr con el artefacto de autenticación.
type QRPayload struct {
	QR string `json:"qr"`
}
