package repository

import (
	"context"
	"time"

	"github.com/draftdeck/draftdeck/internal/document"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoRepo is the MongoDB-backed document repository. Recipients live as an
// embedded array so recipient transitions are single conditional UpdateOne
// calls; a zero MatchedCount means the expected state was gone and the
// caller lost the race.
type MongoRepo struct {
	col *mongo.Collection
}

func NewMongoRepo(col *mongo.Collection) *MongoRepo {
	// id is unique; recipients.accessToken backs the signing-surface lookup
	col.Indexes().CreateMany(context.Background(), []mongo.IndexModel{
		{Keys: bson.D{{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "recipients.accessToken", Value: 1}}, Options: options.Index().SetSparse(true)},
		{Keys: bson.D{{Key: "ownerId", Value: 1}}},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "expiresAt", Value: 1}}},
	})
	return &MongoRepo{col: col}
}

func (m *MongoRepo) Create(ctx context.Context, d *document.Document) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	d.CreatedAt = now
	d.UpdatedAt = now
	if d.Status == "" {
		d.Status = document.StatusDraft
	}
	_, err := m.col.InsertOne(ctx, d)
	return err
}

func (m *MongoRepo) Get(ctx context.Context, id string) (*document.Document, error) {
	var d document.Document
	if err := m.col.FindOne(ctx, bson.M{"id": id}).Decode(&d); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &d, nil
}

func (m *MongoRepo) GetByToken(ctx context.Context, token string) (*document.Document, error) {
	var d document.Document
	if err := m.col.FindOne(ctx, bson.M{"recipients.accessToken": token}).Decode(&d); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &d, nil
}

func (m *MongoRepo) ListByOwner(ctx context.Context, ownerID string) ([]*document.Document, error) {
	cur, err := m.col.Find(ctx, bson.M{"ownerId": ownerID})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := []*document.Document{}
	for cur.Next(ctx) {
		var d document.Document
		if err := cur.Decode(&d); err != nil {
			return nil, err
		}
		out = append(out, &d)
	}
	return out, cur.Err()
}

func (m *MongoRepo) UpdateDraft(ctx context.Context, d *document.Document) error {
	res, err := m.col.UpdateOne(ctx,
		bson.M{"id": d.ID, "status": document.StatusDraft},
		bson.M{"$set": bson.M{
			"title":     d.Title,
			"content":   d.Content,
			"variables": d.Variables,
			"settings":  d.Settings,
			"updatedAt": time.Now().UTC(),
		}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return m.missingOrConflict(ctx, d.ID)
	}
	return nil
}

func (m *MongoRepo) Delete(ctx context.Context, id string) error {
	res, err := m.col.DeleteOne(ctx, bson.M{"id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (m *MongoRepo) MarkSent(ctx context.Context, id string, from []document.Status, recipients []document.Recipient, sentAt time.Time, expiresAt *time.Time) error {
	set := bson.M{
		"status":     document.StatusSent,
		"recipients": recipients,
		"sentAt":     sentAt,
		"updatedAt":  time.Now().UTC(),
	}
	upd := bson.M{"$set": set}
	if expiresAt != nil {
		set["expiresAt"] = *expiresAt
	} else {
		upd["$unset"] = bson.M{"expiresAt": ""}
	}
	res, err := m.col.UpdateOne(ctx, bson.M{"id": id, "status": bson.M{"$in": from}}, upd)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return m.missingOrConflict(ctx, id)
	}
	return nil
}

func (m *MongoRepo) MarkViewed(ctx context.Context, docID, recipientID string, at time.Time) error {
	filter := bson.M{
		"id": docID,
		"recipients": bson.M{"$elemMatch": bson.M{
			"id":     recipientID,
			"status": document.RecipientPending,
		}},
	}
	_, err := m.col.UpdateOne(ctx, filter, bson.M{"$set": bson.M{
		"recipients.$.status":   document.RecipientViewed,
		"recipients.$.viewedAt": at,
		"updatedAt":             time.Now().UTC(),
	}})
	// zero matches means the recipient already moved on; views are idempotent
	return err
}

func (m *MongoRepo) TransitionRecipient(ctx context.Context, docID, recipientID string, from []document.RecipientStatus, to document.RecipientStatus, at time.Time) error {
	filter := bson.M{
		"id": docID,
		"recipients": bson.M{"$elemMatch": bson.M{
			"id":     recipientID,
			"status": bson.M{"$in": from},
		}},
	}
	set := bson.M{
		"recipients.$.status": to,
		"updatedAt":           time.Now().UTC(),
	}
	if to == document.RecipientSigned {
		set["recipients.$.signedAt"] = at
	}
	res, err := m.col.UpdateOne(ctx, filter, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return m.missingOrConflict(ctx, docID)
	}
	return nil
}

func (m *MongoRepo) SetStatus(ctx context.Context, docID string, status document.Status) error {
	res, err := m.col.UpdateOne(ctx, bson.M{"id": docID},
		bson.M{"$set": bson.M{"status": status, "updatedAt": time.Now().UTC()}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (m *MongoRepo) ListOverdue(ctx context.Context, now time.Time) ([]*document.Document, error) {
	cur, err := m.col.Find(ctx, bson.M{
		"status":    bson.M{"$in": []document.Status{document.StatusSent, document.StatusViewed}},
		"expiresAt": bson.M{"$lt": now},
	})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := []*document.Document{}
	for cur.Next(ctx) {
		var d document.Document
		if err := cur.Decode(&d); err != nil {
			return nil, err
		}
		out = append(out, &d)
	}
	return out, cur.Err()
}

// missingOrConflict disambiguates a zero-match conditional update.
func (m *MongoRepo) missingOrConflict(ctx context.Context, id string) error {
	if err := m.col.FindOne(ctx, bson.M{"id": id}).Err(); err == mongo.ErrNoDocuments {
		return ErrNotFound
	}
	return ErrConflict
}
