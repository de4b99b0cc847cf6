package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// MongoCollectionName is the collection checkpoints are written to.
const MongoCollectionName = "conversation_checkpoints"

// mongoCollection is the part of *mongo.Collection the store calls.
type mongoCollection interface {
	FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) *mongo.SingleResult
	UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error)
}

type mongoCheckpoint struct {
	ConversationID string    `bson:"_id"`
	State          []byte    `bson:"state"`
	UpdatedAt      time.Time `bson:"updated_at"`
}

// MongoStore keeps one document per conversation.
type MongoStore struct {
	coll   mongoCollection
	tracer trace.Tracer
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	if db == nil {
		panic("checkpoint: mongo database cannot be nil")
	}
	return newMongoStoreWithCollection(db.Collection(MongoCollectionName))
}

func newMongoStoreWithCollection(coll mongoCollection) *MongoStore {
	if coll == nil {
		panic("checkpoint: mongo collection cannot be nil")
	}
	return &MongoStore{coll: coll, tracer: otel.Tracer("scheduling.internal.checkpoint.mongo")}
}

func (s *MongoStore) Load(ctx context.Context, conversationID string) ([]byte, error) {
	if err := validID(conversationID); err != nil {
		return nil, err
	}
	ctx, span := s.tracer.Start(ctx, "checkpoint.mongo.load")
	defer span.End()

	var doc mongoCheckpoint
	err := s.coll.FindOne(ctx, bson.M{"_id": conversationID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("checkpoint: mongo load: %w", err)
	}
	return doc.State, nil
}

func (s *MongoStore) Save(ctx context.Context, conversationID string, data []byte) error {
	if err := validID(conversationID); err != nil {
		return err
	}
	ctx, span := s.tracer.Start(ctx, "checkpoint.mongo.save")
	defer span.End()

	update := bson.M{"$set": bson.M{"state": data, "updated_at": time.Now().UTC()}}
	_, err := s.coll.UpdateOne(ctx, bson.M{"_id": conversationID}, update, options.Update().SetUpsert(true))
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("checkpoint: mongo save: %w", err)
	}
	return nil
}
