package repositories

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"doc-chat/models"
)

var ErrSessionNotFound = errors.New("session not found")

// SessionRepository stores chat sessions. Implementations must be safe for concurrent use.
type SessionRepository interface {
	Insert(ctx context.Context, s *models.ChatSession) error
	FindByID(ctx context.Context, id string) (*models.ChatSession, error)
	// AppendMessages appends msgs to the session history in order.
	AppendMessages(ctx context.Context, id string, msgs ...models.ChatMessage) error
	Delete(ctx context.Context, id string) error
}

type MongoSessionRepository struct {
	col *mongo.Collection
}

func NewMongoSessionRepository(db *mongo.Database) *MongoSessionRepository {
	return &MongoSessionRepository{col: db.Collection("chat_sessions")}
}

// Insert inserts a new session document.
func (r *MongoSessionRepository) Insert(ctx context.Context, s *models.ChatSession) error {
	now := time.Now().UTC()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.UpdatedAt = now
	if s.Messages == nil {
		s.Messages = []models.ChatMessage{}
	}
	_, err := r.col.InsertOne(ctx, s)
	return err
}

// FindByID returns ErrSessionNotFound if no session has the id.
func (r *MongoSessionRepository) FindByID(ctx context.Context, id string) (*models.ChatSession, error) {
	var s models.ChatSession
	if err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&s); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return &s, nil
}

// AppendMessages pushes msgs onto messages and bumps updated_at.
func (r *MongoSessionRepository) AppendMessages(ctx context.Context, id string, msgs ...models.ChatMessage) error {
	if len(msgs) == 0 {
		return nil
	}
	res, err := r.col.UpdateByID(ctx, id, bson.M{
		"$push": bson.M{"messages": bson.M{"$each": msgs}},
		"$set":  bson.M{"updated_at": time.Now().UTC()},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func (r *MongoSessionRepository) Delete(ctx context.Context, id string) error {
	res, err := r.col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrSessionNotFound
	}
	return nil
}
