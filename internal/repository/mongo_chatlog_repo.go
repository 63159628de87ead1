package repository

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/hearthchat/chat-history-service/internal/domain"
)

type chatLogDoc struct {
	ID       primitive.ObjectID `bson:"_id,omitempty"`
	RoomID   primitive.ObjectID `bson:"roomId"`
	Messages []domain.Message   `bson:"messages"`
}

func (d chatLogDoc) toDomain() *domain.ChatLog {
	return &domain.ChatLog{
		ID:       d.ID.Hex(),
		RoomID:   d.RoomID.Hex(),
		Messages: d.Messages,
	}
}

// MongoChatLogRepository implements ChatLogRepository on the chatlogs
// collection. One document per room; the messages array is the log.
type MongoChatLogRepository struct {
	coll *mongo.Collection
}

func NewMongoChatLogRepository(client *Client) *MongoChatLogRepository {
	return &MongoChatLogRepository{
		coll: client.Database().Collection(collChatLogs),
	}
}

func (r *MongoChatLogRepository) CreateLog(ctx context.Context, roomID string) (*domain.ChatLog, error) {
	oid, err := primitive.ObjectIDFromHex(roomID)
	if err != nil {
		return nil, ErrRoomNotFound
	}

	doc := chatLogDoc{RoomID: oid, Messages: []domain.Message{}}
	res, err := r.coll.InsertOne(ctx, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrLogExists
		}
		return nil, fmt.Errorf("failed to create chat log: %w", err)
	}

	doc.ID = res.InsertedID.(primitive.ObjectID)
	return doc.toDomain(), nil
}

func (r *MongoChatLogRepository) FindLog(ctx context.Context, roomID string) (*domain.ChatLog, error) {
	oid, err := primitive.ObjectIDFromHex(roomID)
	if err != nil {
		return nil, ErrLogNotFound
	}

	var doc chatLogDoc
	if err := r.coll.FindOne(ctx, bson.M{"roomId": oid}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrLogNotFound
		}
		return nil, fmt.Errorf("failed to find chat log: %w", err)
	}

	return doc.toDomain(), nil
}

// AppendMessages pushes each message with its own write. This is not a
// batch: a failure at message i leaves messages [0,i) committed and
// reports the failing index via *PartialWriteError.
func (r *MongoChatLogRepository) AppendMessages(ctx context.Context, roomID string, messages []domain.Message) (*domain.ChatLog, error) {
	oid, err := primitive.ObjectIDFromHex(roomID)
	if err != nil {
		return nil, ErrLogNotFound
	}

	filter := bson.M{"roomId": oid}

	// The log must exist before anything is appended.
	if err := r.coll.FindOne(ctx, filter).Err(); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrLogNotFound
		}
		return nil, fmt.Errorf("failed to find chat log: %w", err)
	}

	for i, msg := range messages {
		_, err := r.coll.UpdateOne(ctx, filter, bson.M{"$push": bson.M{"messages": msg}})
		if err != nil {
			return nil, &PartialWriteError{RoomID: roomID, Index: i, Err: err}
		}
	}

	var doc chatLogDoc
	if err := r.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to reload chat log: %w", err)
	}

	return doc.toDomain(), nil
}
