package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/hearthchat/chat-history-service/internal/domain"
)

type roomDoc struct {
	ID          primitive.ObjectID   `bson:"_id,omitempty"`
	RoomName    string               `bson:"roomName"`
	Users       []primitive.ObjectID `bson:"users"`
	IconURL     string               `bson:"iconUrl,omitempty"`
	DateCreated time.Time            `bson:"dateCreated,omitempty"`
}

type userDoc struct {
	ID         primitive.ObjectID   `bson:"_id,omitempty"`
	ExternalID string               `bson:"externalUserId"`
	Email      string               `bson:"email"`
	Username   string               `bson:"username"`
	AvatarURL  string               `bson:"profilePictureUrl,omitempty"`
	Active     bool                 `bson:"activeUser"`
	Rooms      []primitive.ObjectID `bson:"rooms"`
}

func (d userDoc) toDomain() domain.User {
	roomIDs := make([]string, len(d.Rooms))
	for i, id := range d.Rooms {
		roomIDs[i] = id.Hex()
	}
	return domain.User{
		ID:         d.ID.Hex(),
		ExternalID: d.ExternalID,
		Email:      d.Email,
		Username:   d.Username,
		AvatarURL:  d.AvatarURL,
		Active:     d.Active,
		RoomIDs:    roomIDs,
	}
}

// MongoRoomRepository implements RoomRepository on the rooms and users
// collections.
type MongoRoomRepository struct {
	rooms *mongo.Collection
	users *mongo.Collection
}

func NewMongoRoomRepository(client *Client) *MongoRoomRepository {
	return &MongoRoomRepository{
		rooms: client.Database().Collection(collRooms),
		users: client.Database().Collection(collUsers),
	}
}

// FindWithMembers resolves the room and populates its member records
// in one extra query.
func (r *MongoRoomRepository) FindWithMembers(ctx context.Context, roomID string) (*domain.Room, error) {
	oid, err := primitive.ObjectIDFromHex(roomID)
	if err != nil {
		return nil, ErrRoomNotFound
	}

	var doc roomDoc
	if err := r.rooms.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrRoomNotFound
		}
		return nil, fmt.Errorf("failed to find room: %w", err)
	}

	room := &domain.Room{
		ID:          doc.ID.Hex(),
		RoomName:    doc.RoomName,
		IconURL:     doc.IconURL,
		DateCreated: doc.DateCreated,
	}
	for _, id := range doc.Users {
		room.UserIDs = append(room.UserIDs, id.Hex())
	}

	if len(doc.Users) == 0 {
		return room, nil
	}

	cur, err := r.users.Find(ctx, bson.M{"_id": bson.M{"$in": doc.Users}})
	if err != nil {
		return nil, fmt.Errorf("failed to find room members: %w", err)
	}
	defer cur.Close(ctx)

	for cur.Next(ctx) {
		var u userDoc
		if err := cur.Decode(&u); err != nil {
			return nil, fmt.Errorf("failed to decode room member: %w", err)
		}
		room.Users = append(room.Users, u.toDomain())
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate room members: %w", err)
	}

	return room, nil
}
