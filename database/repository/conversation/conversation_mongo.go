package conversationRepo

import (
	"context"
	"fmt"
	"time"

	"salona/database"
	"salona/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ConversationRepository is the append-only turn log per customer. Turns are
// immutable once written; the only read path is the bounded recent window
// used for model context.
type ConversationRepository interface {
	// Append stores one turn.
	Append(ctx context.Context, turn *models.ConversationTurn) error
	// Recent returns the most recent limit turns for a customer in
	// chronological order.
	Recent(ctx context.Context, customerID string, limit int) ([]models.ConversationTurn, error)
}

// MongoConversationRepo implements ConversationRepository using MongoDB.
type MongoConversationRepo struct {
	coll *mongo.Collection
}

// NewMongoConversationRepo creates a ConversationRepository backed by MongoDB.
func NewMongoConversationRepo() ConversationRepository {
	coll := database.MongoClient.Database("salona").Collection("conversation_turns")
	repo := &MongoConversationRepo{coll: coll}

	if err := repo.ensureIndexes(); err != nil {
		fmt.Printf("failed to create conversation indexes: %v\n", err)
	}
	return repo
}

func (r *MongoConversationRepo) ensureIndexes() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	indexModels := []mongo.IndexModel{
		{Keys: bson.D{{Key: "customer_id", Value: 1}, {Key: "created_at", Value: -1}}},
	}

	_, err := r.coll.Indexes().CreateMany(ctx, indexModels)
	if err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}

// Append stores one conversation turn.
func (r *MongoConversationRepo) Append(ctx context.Context, turn *models.ConversationTurn) error {
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now()
	}
	if _, err := r.coll.InsertOne(ctx, turn); err != nil {
		return fmt.Errorf("failed to append conversation turn: %w", err)
	}
	return nil
}

// Recent fetches the newest limit turns and reverses them so callers get
// chronological order.
func (r *MongoConversationRepo) Recent(ctx context.Context, customerID string, limit int) ([]models.ConversationTurn, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := r.coll.Find(ctx, bson.M{"customer_id": customerID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch conversation for customer %s: %w", customerID, err)
	}
	defer cursor.Close(ctx)

	var turns []models.ConversationTurn
	if err := cursor.All(ctx, &turns); err != nil {
		return nil, fmt.Errorf("failed to decode conversation turns: %w", err)
	}

	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}
