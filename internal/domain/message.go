package domain

import "time"

// Message es un mensaje persistido; pertenece exactamente a un grupo.
type Message struct {
	ID        string    `json:"id"`
	GroupID   string    `json:"group_id"`
	Content   string    `json:"content"`
	Sender    string    `json:"sender"`
	IsMedia   bool      `json:"is_media"`
	MediaURL  string    `json:"media_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// MessagePage es el resultado de una consulta paginada de mensajes.
type MessagePage struct {
	Messages []Message `json:"messages"`
	Total    int       `json:"total"`
}
