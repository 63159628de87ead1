package repository

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/hearthchat/chat-history-service/internal/domain"
)

// MongoUserRepository implements UserRepository on the users collection.
type MongoUserRepository struct {
	users *mongo.Collection
}

func NewMongoUserRepository(client *Client) *MongoUserRepository {
	return &MongoUserRepository{
		users: client.Database().Collection(collUsers),
	}
}

func (r *MongoUserRepository) FindByExternalID(ctx context.Context, externalID string) (*domain.User, error) {
	var doc userDoc
	if err := r.users.FindOne(ctx, bson.M{"externalUserId": externalID}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user by external id: %w", err)
	}

	u := doc.toDomain()
	return &u, nil
}
