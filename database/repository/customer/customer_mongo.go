package customerRepo

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

// CustomerRepository defines customer data access.
type CustomerRepository interface {
	// GetByTelegramID retrieves a customer by chat-platform id, returning
	// (nil, nil) when absent.
	GetByTelegramID(ctx context.Context, telegramID string) (*models.Customer, error)
	// GetByID retrieves a customer by internal id, returning (nil, nil)
	// when absent.
	GetByID(ctx context.Context, id string) (*models.Customer, error)
	// Create inserts a new customer record.
	Create(ctx context.Context, customer *models.Customer) error
	// Update modifies an existing customer's profile fields.
	Update(ctx context.Context, customer *models.Customer) error
}

// MongoCustomerRepo implements CustomerRepository using MongoDB.
type MongoCustomerRepo struct {
	coll *mongo.Collection
}

// NewMongoCustomerRepo creates a CustomerRepository backed by MongoDB.
func NewMongoCustomerRepo() CustomerRepository {
	coll := database.MongoClient.Database("salona").Collection("customers")
	repo := &MongoCustomerRepo{coll: coll}

	if err := repo.ensureIndexes(); err != nil {
		fmt.Printf("failed to create customer indexes: %v\n", err)
	}
	return repo
}

func (r *MongoCustomerRepo) ensureIndexes() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	indexModels := []mongo.IndexModel{
		{Keys: bson.D{{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "telegram_id", Value: 1}}, Options: options.Index().SetUnique(true)},
	}

	_, err := r.coll.Indexes().CreateMany(ctx, indexModels)
	if err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}

// GetByTelegramID retrieves a customer by chat-platform id.
func (r *MongoCustomerRepo) GetByTelegramID(ctx context.Context, telegramID string) (*models.Customer, error) {
	var customer models.Customer
	if err := r.coll.FindOne(ctx, bson.M{"telegram_id": telegramID}).Decode(&customer); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch customer with telegram_id %s: %w", telegramID, err)
	}
	return &customer, nil
}

// GetByID retrieves a customer by internal id.
func (r *MongoCustomerRepo) GetByID(ctx context.Context, id string) (*models.Customer, error) {
	var customer models.Customer
	if err := r.coll.FindOne(ctx, bson.M{"id": id}).Decode(&customer); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch customer with id %s: %w", id, err)
	}
	return &customer, nil
}

// Create inserts a new customer document.
func (r *MongoCustomerRepo) Create(ctx context.Context, customer *models.Customer) error {
	now := time.Now()
	customer.CreatedAt = now
	customer.UpdatedAt = now

	if _, err := r.coll.InsertOne(ctx, customer); err != nil {
		return fmt.Errorf("failed to create customer: %w", err)
	}
	return nil
}

// Update modifies an existing customer document.
func (r *MongoCustomerRepo) Update(ctx context.Context, customer *models.Customer) error {
	customer.UpdatedAt = time.Now()
	filter := bson.M{"id": customer.ID}
	update := bson.M{"$set": customer}

	result, err := r.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to update customer with id %s: %w", customer.ID, err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("customer with id %s not found", customer.ID)
	}
	return nil
}
