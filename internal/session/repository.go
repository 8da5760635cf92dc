package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_pos/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// AbandonedAfter is how long an untouched terminal session is kept.
const AbandonedAfter = 24 * time.Hour

// Repository persists terminal sessions. Missing sessions are reported as domain.ErrSessionNotFound.
type Repository interface {
	GetSession(ctx context.Context, terminalID string) (*domain.TerminalSession, error)
	UpsertSession(ctx context.Context, session *domain.TerminalSession) error
}

type MongoRepository struct {
	collection *mongo.Collection
}

func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{
		collection: db.Collection("terminal_sessions"),
	}
}

func (m *MongoRepository) GetSession(ctx context.Context, terminalID string) (*domain.TerminalSession, error) {
	var doc sessionDocument

	err := m.collection.FindOne(ctx, bson.M{"terminal_id": terminalID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	return fromDocument(doc)
}

// UpsertSession stores the session as revision session.Version. Only the revision before it
// is replaced; any other stored revision makes it fail with domain.ErrSessionConflict.
func (m *MongoRepository) UpsertSession(ctx context.Context, session *domain.TerminalSession) error {
	now := time.Now().UTC()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	if session.UpdatedAt.IsZero() {
		session.UpdatedAt = now
	}

	filter := bson.M{"terminal_id": session.TerminalID, "version": previousVersion(session.Version)}
	update := bson.M{"$set": toDocument(session)}
	opts := options.Update().SetUpsert(true)

	// a stored revision other than the previous one turns the upsert into an insert
	// that hits the unique terminal_id index
	if _, err := m.collection.UpdateOne(ctx, filter, update, opts); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrSessionConflict
		}
		return fmt.Errorf("failed to upsert session: %w", err)
	}
	return nil
}

// previousVersion matches the revision a save of version replaces. Documents without a
// version count as revision 0.
func previousVersion(version int64) any {
	if version <= 1 {
		return bson.M{"$in": bson.A{int64(0), nil}}
	}
	return version - 1
}

func (m *MongoRepository) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "terminal_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "updated_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(int32(AbandonedAfter.Seconds())),
		},
	}

	if _, err := m.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}
