package domain

import (
	"time"

	"github.com/google/uuid"
)

// Message is a single chat message as stored in a room's chat log.
// Messages are immutable once appended; the sender's username is
// denormalized at write time and never re-resolved on read.
type Message struct {
	MessageID   string    `bson:"messageId" json:"messageId"`
	SenderID    string    `bson:"senderId" json:"senderId"`
	Username    string    `bson:"username" json:"username"`
	Content     string    `bson:"messageContent" json:"messageContent"`
	DateCreated time.Time `bson:"dateCreated" json:"dateCreated"`
}

// RawMessage is an inbound message record. Two field-name conventions
// exist for the same data; both are accepted and normalized before
// anything touches storage:
//
//	senderId / messageContent / dateCreated
//	messageSender / message / messageCreated
type RawMessage struct {
	MessageID     string     `json:"messageId"`
	SenderID      string     `json:"senderId"`
	MessageSender string     `json:"messageSender"`
	Username      string     `json:"username"`
	Content       string     `json:"messageContent"`
	Message       string     `json:"message"`
	DateCreated   *time.Time `json:"dateCreated"`
	Created       *time.Time `json:"messageCreated"`
}

// Normalize collapses a RawMessage into the canonical Message shape.
// The timestamp defaults to now when neither convention supplies one,
// and a missing message id gets a fresh uuid.
func (r RawMessage) Normalize(now time.Time) Message {
	m := Message{
		MessageID:   r.MessageID,
		SenderID:    r.SenderID,
		Username:    r.Username,
		Content:     r.Content,
		DateCreated: now,
	}
	if m.SenderID == "" {
		m.SenderID = r.MessageSender
	}
	if m.Content == "" {
		m.Content = r.Message
	}
	if r.DateCreated != nil {
		m.DateCreated = *r.DateCreated
	} else if r.Created != nil {
		m.DateCreated = *r.Created
	}
	if m.MessageID == "" {
		m.MessageID = uuid.New().String()
	}
	return m
}

// ChatLog is the durable, append-ordered message sequence of one room.
// At most one chat log exists per room.
type ChatLog struct {
	ID       string    `bson:"_id,omitempty" json:"id"`
	RoomID   string    `bson:"roomId" json:"roomId"`
	Messages []Message `bson:"messages" json:"messages"`
}
