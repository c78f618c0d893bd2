package sessionstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"order-agent/internal/models"
	"order-agent/internal/redisclient"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func TestMemoryUnknownPhoneIsFreshSession(t *testing.T) {
	store := NewMemory(0)

	s, err := store.GetOrCreate(context.Background(), "254700000001")
	require.NoError(t, err)
	assert.Equal(t, models.StateInitial, s.State)
	assert.Equal(t, "254700000001", s.Phone)
	assert.Zero(t, store.Len())
}

func TestMemorySaveAndClear(t *testing.T) {
	ctx := context.Background()
	store := NewMemory(0)

	s := models.NewSession("254700000002")
	s.State = models.StateEnteringQuantity
	s.SelectedItem = &models.SelectedItem{ID: "pizza", Name: "Pizza", UnitPrice: 1000}
	require.NoError(t, store.Save(ctx, s))

	s.SelectedItem.Name = "mutated after save"

	loaded, err := store.GetOrCreate(ctx, "254700000002")
	require.NoError(t, err)
	assert.Equal(t, models.StateEnteringQuantity, loaded.State)
	assert.Equal(t, "Pizza", loaded.SelectedItem.Name)

	require.NoError(t, store.Clear(ctx, "254700000002"))
	require.NoError(t, store.Clear(ctx, "254700000002"))

	loaded, err = store.GetOrCreate(ctx, "254700000002")
	require.NoError(t, err)
	assert.Equal(t, models.StateInitial, loaded.State)
	assert.Nil(t, loaded.SelectedItem)
}

func TestMemoryRejectsInvalidSession(t *testing.T) {
	store := NewMemory(0)

	s := models.NewSession("254700000003")
	s.Quantity = 2

	err := store.Save(context.Background(), s)
	assert.True(t, errors.Is(err, models.ErrInvalidSession))
	assert.Zero(t, store.Len())
}

func TestMemoryExpiresIdleSessions(t *testing.T) {
	ctx := context.Background()
	store := NewMemory(time.Minute)
	now := time.Now()
	store.now = func() time.Time { return now }

	s := models.NewSession("254700000004")
	s.State = models.StateSelectingItem
	require.NoError(t, store.Save(ctx, s))

	now = now.Add(30 * time.Second)
	loaded, err := store.GetOrCreate(ctx, "254700000004")
	require.NoError(t, err)
	assert.Equal(t, models.StateSelectingItem, loaded.State)

	now = now.Add(2 * time.Minute)
	loaded, err = store.GetOrCreate(ctx, "254700000004")
	require.NoError(t, err)
	assert.Equal(t, models.StateInitial, loaded.State)
}

func TestMemoryCancelledContext(t *testing.T) {
	store := NewMemory(0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.GetOrCreate(ctx, "254700000005")
	assert.True(t, errors.Is(err, ErrPersistence))
}

// fakeJSONCache keeps raw JSON like Redis does.
type fakeJSONCache struct {
	values map[string][]byte
	ttls   map[string]time.Duration
	err    error
}

func newFakeJSONCache() *fakeJSONCache {
	return &fakeJSONCache{values: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (f *fakeJSONCache) GetJSON(ctx context.Context, key string, dst interface{}) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	data, ok := f.values[key]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, fmt.Errorf("%w at %s: %v", redisclient.ErrDecode, key, err)
	}
	return true, nil
}

func (f *fakeJSONCache) SetJSON(ctx context.Context, key string, v interface{}, ttl time.Duration) error {
	if f.err != nil {
		return f.err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	f.values[key] = data
	f.ttls[key] = ttl
	return nil
}

func (f *fakeJSONCache) Delete(ctx context.Context, key string) error {
	if f.err != nil {
		return f.err
	}
	delete(f.values, key)
	return nil
}

func TestRedisStoreDiscardsUnreadableSession(t *testing.T) {
	ctx := context.Background()
	cache := newFakeJSONCache()
	store := NewRedis(cache, 0)

	raws := []string{
		`{"phone":"254700000008","state":"awaiting_item"}`,
		`{"phone":"254700000008","state":"confirming"}`,
		`not json`,
	}
	for _, raw := range raws {
		cache.values["session:254700000008"] = []byte(raw)

		for i := 0; i < 2; i++ {
			s, err := store.GetOrCreate(ctx, "254700000008")
			require.NoError(t, err, raw)
			assert.Equal(t, models.StateInitial, s.State, raw)
			assert.Equal(t, "254700000008", s.Phone, raw)
		}
	}

	s, err := store.GetOrCreate(ctx, "254700000008")
	require.NoError(t, err)
	s.State = models.StateSelectingItem
	require.NoError(t, store.Save(ctx, s))

	loaded, err := store.GetOrCreate(ctx, "254700000008")
	require.NoError(t, err)
	assert.Equal(t, models.StateSelectingItem, loaded.State)
}

func TestRedisStoreKeysAndTTL(t *testing.T) {
	ctx := context.Background()
	cache := newFakeJSONCache()
	store := NewRedis(cache, 30*time.Minute)

	s := models.NewSession("254700000006")
	s.State = models.StateSelectingItem
	require.NoError(t, store.Save(ctx, s))
	assert.Contains(t, cache.values, "session:254700000006")
	assert.Equal(t, 30*time.Minute, cache.ttls["session:254700000006"])

	loaded, err := store.GetOrCreate(ctx, "254700000006")
	require.NoError(t, err)
	assert.Equal(t, models.StateSelectingItem, loaded.State)

	require.NoError(t, store.Clear(ctx, "254700000006"))
	assert.Empty(t, cache.values)
}

func TestRedisStoreWrapsFailures(t *testing.T) {
	cache := newFakeJSONCache()
	cache.err = errors.New("connection refused")
	store := NewRedis(cache, 0)

	_, err := store.GetOrCreate(context.Background(), "254700000007")
	assert.True(t, errors.Is(err, ErrPersistence))

	err = store.Save(context.Background(), models.NewSession("254700000007"))
	assert.True(t, errors.Is(err, ErrPersistence))
}

func TestMongoStore(t *testing.T) {
	t.Skip("Integration test - requires MongoDB")

	ctx := context.Background()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI("mongodb://localhost:27017"))
	require.NoError(t, err)
	defer client.Disconnect(ctx)

	store, err := NewMongo(ctx, client.Database("order_agent_test"), time.Hour)
	require.NoError(t, err)

	s := models.NewSession("254700000009")
	s.State = models.StateSelectingItem
	require.NoError(t, store.Save(ctx, s))

	loaded, err := store.GetOrCreate(ctx, "254700000009")
	require.NoError(t, err)
	assert.Equal(t, models.StateSelectingItem, loaded.State)

	require.NoError(t, store.Clear(ctx, "254700000009"))
	loaded, err = store.GetOrCreate(ctx, "254700000009")
	require.NoError(t, err)
	assert.Equal(t, models.StateInitial, loaded.State)
}

func TestSessionDocumentRoundTrip(t *testing.T) {
	doc := sessionDocument{
		Phone:        "254700000008",
		State:        "entering_address",
		SelectedItem: &models.SelectedItem{ID: "pizza", Name: "Pizza", UnitPrice: 1000},
		Quantity:     3,
	}
	s, err := doc.toSession()
	require.NoError(t, err)
	assert.Equal(t, models.StateEnteringAddress, s.State)
	assert.Equal(t, int64(3000), s.Total())

	doc.State = "bogus"
	_, err = doc.toSession()
	assert.Error(t, err)
}
