package sessionstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"order-agent/internal/models"
	"order-agent/internal/util"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// sessionDocument keeps the state by name so the collection stays readable.
type sessionDocument struct {
	Phone        string               `bson:"phone"`
	State        string               `bson:"state"`
	SelectedItem *models.SelectedItem `bson:"selected_item,omitempty"`
	Quantity     int                  `bson:"quantity,omitempty"`
	Address      string               `bson:"address,omitempty"`
	UpdatedAt    time.Time            `bson:"updated_at"`
}

// Mongo stores sessions in a collection with a unique index on phone. A positive ttl
// adds a TTL index on updated_at.
type Mongo struct {
	coll *mongo.Collection
	ttl  time.Duration
}

// NewMongo creates the store and ensures its indexes.
func NewMongo(ctx context.Context, db *mongo.Database, ttl time.Duration) (*Mongo, error) {
	m := &Mongo{coll: db.Collection("sessions"), ttl: ttl}
	if err := m.ensureIndexes(ctx); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Mongo) ensureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	indexModels := []mongo.IndexModel{
		{Keys: bson.D{{Key: "phone", Value: 1}}, Options: options.Index().SetUnique(true)},
	}
	if m.ttl > 0 {
		indexModels = append(indexModels, mongo.IndexModel{
			Keys:    bson.D{{Key: "updated_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(int32(m.ttl.Seconds())),
		})
	}

	if _, err := m.coll.Indexes().CreateMany(ctx, indexModels); err != nil {
		return fmt.Errorf("failed to create session indexes: %w", err)
	}
	return nil
}

func (m *Mongo) GetOrCreate(ctx context.Context, phone string) (*models.Session, error) {
	var doc sessionDocument
	err := m.coll.FindOne(ctx, bson.M{"phone": phone}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.NewSession(phone), nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	s, err := doc.toSession()
	if err != nil {
		// An undecodable document cannot be resumed; start over.
		util.GetLogger().Warn("Discarding unreadable session", util.Phone(phone), zap.Error(err))
		return models.NewSession(phone), nil
	}
	if expired(s, m.ttl, time.Now()) {
		return models.NewSession(phone), nil
	}
	return s, nil
}

func (m *Mongo) Save(ctx context.Context, s *models.Session) error {
	if err := s.Validate(); err != nil {
		return err
	}
	s.UpdatedAt = time.Now()

	doc := sessionDocument{
		Phone:        s.Phone,
		State:        s.State.String(),
		SelectedItem: s.SelectedItem,
		Quantity:     s.Quantity,
		Address:      s.Address,
		UpdatedAt:    s.UpdatedAt,
	}
	_, err := m.coll.ReplaceOne(ctx, bson.M{"phone": s.Phone}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return nil
}

func (m *Mongo) Clear(ctx context.Context, phone string) error {
	if _, err := m.coll.DeleteOne(ctx, bson.M{"phone": phone}); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return nil
}

func (d sessionDocument) toSession() (*models.Session, error) {
	state, err := models.ParseConversationState(d.State)
	if err != nil {
		return nil, err
	}
	s := &models.Session{
		Phone:        d.Phone,
		State:        state,
		SelectedItem: d.SelectedItem,
		Quantity:     d.Quantity,
		Address:      d.Address,
		UpdatedAt:    d.UpdatedAt,
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}
