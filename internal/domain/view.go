package domain

import "time"

// MemberSummary is the member projection embedded in a history view.
type MemberSummary struct {
	UserID   string `json:"userId"`
	Email    string `json:"email"`
	Username string `json:"username"`
}

// RoomHistoryView is the client-visible history of one room: the
// durable message sequence followed by whatever the cache overlay
// held at read time.
type RoomHistoryView struct {
	RoomID           string          `json:"roomId"`
	RoomName         string          `json:"roomName"`
	DateCreated      time.Time       `json:"dateCreated"`
	RoomUsers        []MemberSummary `json:"roomUsers"`
	RoomDeletedUsers []MemberSummary `json:"roomDeletedUsers"`
	MessagesArray    []Message       `json:"messagesArray"`
}

// APIResponse is the uniform HTTP response envelope.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}
