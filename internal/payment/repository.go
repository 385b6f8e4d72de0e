package payment

import (
	"context"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// MemoryRepo is the in-memory fact store used by tests and the dev
// entrypoint.
type MemoryRepo struct {
	mu    sync.RWMutex
	facts []*Fact
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{} }

func (m *MemoryRepo) Record(ctx context.Context, f *Fact) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *f
	m.facts = append(m.facts, &cp)
	return nil
}

func (m *MemoryRepo) ListForDocument(ctx context.Context, documentID string) ([]*Fact, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []*Fact{}
	for _, f := range m.facts {
		if f.DocumentID == documentID {
			cp := *f
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MemoryRepo) HasSucceeded(ctx context.Context, documentID, recipientID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, f := range m.facts {
		if f.DocumentID == documentID && f.RecipientID == recipientID && f.Status == StatusSucceeded {
			return true, nil
		}
	}
	return false, nil
}

// MongoRepo stores facts in a dedicated collection.
type MongoRepo struct {
	col *mongo.Collection
}

func NewMongoRepo(col *mongo.Collection) *MongoRepo {
	col.Indexes().CreateOne(context.Background(), mongo.IndexModel{
		Keys: bson.D{{Key: "documentId", Value: 1}, {Key: "recipientId", Value: 1}},
	})
	return &MongoRepo{col: col}
}

func (m *MongoRepo) Record(ctx context.Context, f *Fact) error {
	_, err := m.col.InsertOne(ctx, f)
	return err
}

func (m *MongoRepo) ListForDocument(ctx context.Context, documentID string) ([]*Fact, error) {
	cur, err := m.col.Find(ctx, bson.M{"documentId": documentID})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := []*Fact{}
	for cur.Next(ctx) {
		var f Fact
		if err := cur.Decode(&f); err != nil {
			return nil, err
		}
		out = append(out, &f)
	}
	return out, cur.Err()
}

func (m *MongoRepo) HasSucceeded(ctx context.Context, documentID, recipientID string) (bool, error) {
	err := m.col.FindOne(ctx, bson.M{
		"documentId":  documentID,
		"recipientId": recipientID,
		"status":      StatusSucceeded,
	}).Err()
	if err == mongo.ErrNoDocuments {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
