package domain

import "time"

// Room is a chat room with its member list resolved. Rooms are owned by
// the rooms collaborator; this service only reads membership to decide
// which users see which logs.
type Room struct {
	ID          string    `bson:"_id,omitempty" json:"id"`
	RoomName    string    `bson:"roomName" json:"roomName"`
	UserIDs     []string  `bson:"users" json:"-"`
	IconURL     string    `bson:"iconUrl,omitempty" json:"iconUrl,omitempty"`
	DateCreated time.Time `bson:"dateCreated" json:"dateCreated"`

	// Users carries the resolved member records when the room was
	// looked up with members; nil otherwise.
	Users []User `bson:"-" json:"users,omitempty"`
}

// User is a chat user. ExternalID is the identity-provider key used by
// clients; it is distinct from the store's primary key.
type User struct {
	ID         string   `bson:"_id,omitempty" json:"id"`
	ExternalID string   `bson:"externalUserId" json:"externalUserId"`
	Email      string   `bson:"email" json:"email"`
	Username   string   `bson:"username" json:"username"`
	AvatarURL  string   `bson:"profilePictureUrl,omitempty" json:"profilePictureUrl,omitempty"`
	Active     bool     `bson:"activeUser" json:"activeUser"`
	RoomIDs    []string `bson:"rooms" json:"rooms"`
}
