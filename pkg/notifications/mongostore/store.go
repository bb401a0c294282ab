// Package mongostore keeps notifications in a MongoDB collection using the
// official v2 driver. Documents use the notification id as _id.
package mongostore

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	driver "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/dmitrymomot/notifykit/pkg/mongo"
	"github.com/dmitrymomot/notifykit/pkg/notifications"
)

const DefaultCollection = "notifications"

type document struct {
	ID        string     `bson:"_id"`
	UserID    string     `bson:"user_id"`
	Type      string     `bson:"type"`
	Message   string     `bson:"message"`
	CreatedAt time.Time  `bson:"created_at"`
	IsRead    bool       `bson:"is_read"`
	ReadAt    *time.Time `bson:"read_at,omitempty"`
}

func fromNotification(n notifications.Notification) document {
	return document{
		ID:        n.ID,
		UserID:    n.UserID,
		Type:      string(n.Type),
		Message:   n.Message,
		CreatedAt: n.CreatedAt,
		IsRead:    n.IsRead,
		ReadAt:    n.ReadAt,
	}
}

func (d document) notification() notifications.Notification {
	n := notifications.Notification{
		ID:        d.ID,
		UserID:    d.UserID,
		Type:      notifications.Type(d.Type),
		Message:   d.Message,
		CreatedAt: d.CreatedAt.UTC(),
		IsRead:    d.IsRead,
	}
	if d.ReadAt != nil {
		t := d.ReadAt.UTC()
		n.ReadAt = &t
	}
	return n
}

// Store implements notifications.Storage on a Mongo collection.
type Store struct {
	coll *driver.Collection
}

var _ notifications.Storage = (*Store)(nil)

// New returns a store over db.Collection(name) and ensures its indexes.
func New(ctx context.Context, db *driver.Database, name string) (*Store, error) {
	if name == "" {
		name = DefaultCollection
	}
	coll := db.Collection(name)

	_, err := coll.Indexes().CreateOne(ctx, driver.IndexModel{
		Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "is_read", Value: 1}},
	})
	if err != nil {
		return nil, fmt.Errorf("creating notifications index: %w", err)
	}
	return &Store{coll: coll}, nil
}

func (s *Store) Put(ctx context.Context, n notifications.Notification) error {
	if n.UserID == "" {
		return notifications.ErrInvalidUserID
	}
	_, err := s.coll.InsertOne(ctx, fromNotification(n))
	if mongo.IsDuplicateKeyError(err) {
		return notifications.ErrDuplicateID
	}
	if err != nil {
		return fmt.Errorf("inserting notification %s: %w", n.ID, err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (notifications.Notification, error) {
	var doc document
	err := s.coll.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&doc)
	if mongo.IsNotFoundError(err) {
		return notifications.Notification{}, notifications.ErrNotFound
	}
	if err != nil {
		return notifications.Notification{}, fmt.Errorf("getting notification %s: %w", id, err)
	}
	return doc.notification(), nil
}

func (s *Store) ListByUser(ctx context.Context, userID string) ([]notifications.Notification, error) {
	cur, err := s.coll.Find(ctx, bson.D{{Key: "user_id", Value: userID}})
	if err != nil {
		return nil, fmt.Errorf("listing notifications for %s: %w", userID, err)
	}
	var docs []document
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decoding notifications for %s: %w", userID, err)
	}

	list := make([]notifications.Notification, 0, len(docs))
	for _, d := range docs {
		list = append(list, d.notification())
	}
	return list, nil
}

// UpdateReadState matches only unread documents, so a concurrent or repeated
// mark falls through to a plain read and read_at keeps its first value.
func (s *Store) UpdateReadState(ctx context.Context, id string, readAt time.Time) (notifications.Notification, bool, error) {
	var doc document
	err := s.coll.FindOneAndUpdate(ctx,
		bson.D{{Key: "_id", Value: id}, {Key: "is_read", Value: false}},
		bson.D{{Key: "$set", Value: bson.D{{Key: "is_read", Value: true}, {Key: "read_at", Value: readAt}}}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err == nil {
		return doc.notification(), true, nil
	}
	if !mongo.IsNotFoundError(err) {
		return notifications.Notification{}, false, fmt.Errorf("marking notification %s read: %w", id, err)
	}
	n, err := s.Get(ctx, id)
	return n, false, err
}

func (s *Store) UpdateAllReadForUser(ctx context.Context, userID string, readAt time.Time) (int, error) {
	res, err := s.coll.UpdateMany(ctx,
		bson.D{{Key: "user_id", Value: userID}, {Key: "is_read", Value: false}},
		bson.D{{Key: "$set", Value: bson.D{{Key: "is_read", Value: true}, {Key: "read_at", Value: readAt}}}},
	)
	if err != nil {
		return 0, fmt.Errorf("marking notifications of %s read: %w", userID, err)
	}
	return int(res.ModifiedCount), nil
}

// Ping backs the readiness check.
func (s *Store) Ping(ctx context.Context) error {
	return mongo.Ping(ctx, s.coll.Database().Client())
}
