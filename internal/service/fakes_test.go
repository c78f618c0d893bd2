package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"order-agent/internal/models"
	"order-agent/internal/sessionstore"
	"order-agent/internal/store"
)

type fakeCommitter struct {
	mu        sync.Mutex
	committed []models.Session
	err       error
}

func (f *fakeCommitter) Commit(ctx context.Context, s models.Session) (models.OrderReference, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return models.OrderReference{}, f.err
	}
	if err := s.Complete(); err != nil {
		return models.OrderReference{}, err
	}
	f.committed = append(f.committed, s)
	return models.OrderReference{
		OrderNumber: models.FormatOrderNumber(2025, int64(len(f.committed))),
		Total:       s.Total(),
	}, nil
}

func (f *fakeCommitter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.committed)
}

type sentMessage struct {
	phone string
	text  string
}

type fakeSender struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (f *fakeSender) Send(ctx context.Context, phone, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentMessage{phone: phone, text: text})
	return nil
}

type failingMenu struct{}

func (failingMenu) List(ctx context.Context) ([]models.MenuEntry, error) {
	return nil, errors.New("database unavailable")
}

func (failingMenu) FindBySelection(ctx context.Context, token string) (models.MenuEntry, bool, error) {
	return models.MenuEntry{}, false, errors.New("database unavailable")
}

// trackingStore records how many load-save cycles are in flight per phone.
type trackingStore struct {
	*sessionstore.Memory

	mu          sync.Mutex
	inFlight    map[string]int
	maxInFlight int
}

func newTrackingStore() *trackingStore {
	return &trackingStore{Memory: sessionstore.NewMemory(0), inFlight: map[string]int{}}
}

func (t *trackingStore) GetOrCreate(ctx context.Context, phone string) (*models.Session, error) {
	t.mu.Lock()
	t.inFlight[phone]++
	if t.inFlight[phone] > t.maxInFlight {
		t.maxInFlight = t.inFlight[phone]
	}
	t.mu.Unlock()
	return t.Memory.GetOrCreate(ctx, phone)
}

func (t *trackingStore) Save(ctx context.Context, s *models.Session) error {
	t.done(s.Phone)
	return t.Memory.Save(ctx, s)
}

func (t *trackingStore) Clear(ctx context.Context, phone string) error {
	t.done(phone)
	return t.Memory.Clear(ctx, phone)
}

func (t *trackingStore) done(phone string) {
	t.mu.Lock()
	t.inFlight[phone]--
	t.mu.Unlock()
}

type fakeOrderRepo struct {
	mu        sync.Mutex
	orders    map[string]*models.Order
	history   map[int64][]models.OrderStatusChange
	seq       int64
	createErr error
	searched  []models.OrderFilter
}

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{orders: map[string]*models.Order{}, history: map[int64][]models.OrderStatusChange{}}
}

func (f *fakeOrderRepo) CreateOrderTx(ctx context.Context, order *models.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	f.seq++
	order.ID = f.seq
	order.OrderNumber = models.FormatOrderNumber(order.CreatedAt.Year(), f.seq)
	order.UpdatedAt = order.CreatedAt
	stored := *order
	f.orders[order.OrderNumber] = &stored
	return nil
}

func (f *fakeOrderRepo) GetOrderByNumber(ctx context.Context, number string) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[number]
	if !ok {
		return nil, fmt.Errorf("%w: %s", store.ErrOrderNotFound, number)
	}
	copied := *o
	return &copied, nil
}

func (f *fakeOrderRepo) GetOrdersByPhone(ctx context.Context, phone string, limit int) ([]models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Order
	for i := f.seq; i >= 1 && len(out) < limit; i-- {
		for _, o := range f.orders {
			if o.ID == i && o.Phone == phone {
				out = append(out, *o)
			}
		}
	}
	return out, nil
}

func (f *fakeOrderRepo) UpdateOrderStatusTx(ctx context.Context, number, notes string,
	transition func(current models.OrderStatus) (models.OrderStatus, error)) (*models.Order, models.OrderStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[number]
	if !ok {
		return nil, 0, fmt.Errorf("%w: %s", store.ErrOrderNotFound, number)
	}
	next, err := transition(o.Status)
	if err != nil {
		return nil, 0, err
	}
	before := *o
	o.Status = next
	f.history[o.ID] = append(f.history[o.ID], models.OrderStatusChange{
		OrderID: o.ID, OldStatus: before.Status, NewStatus: next, Notes: notes,
	})
	return &before, next, nil
}

func (f *fakeOrderRepo) GetStatusHistory(ctx context.Context, orderID int64) ([]models.OrderStatusChange, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.OrderStatusChange(nil), f.history[orderID]...), nil
}

func (f *fakeOrderRepo) SearchOrders(ctx context.Context, filter models.OrderFilter) ([]models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searched = append(f.searched, filter)
	query := strings.ToLower(filter.Query)
	var out []models.Order
	for i := f.seq; i >= 1; i-- {
		for _, o := range f.orders {
			if o.ID != i {
				continue
			}
			switch {
			case query != "" && !strings.Contains(strings.ToLower(o.OrderNumber+" "+o.ItemName+" "+o.Phone), query):
			case filter.Status != nil && o.Status != *filter.Status:
			case !filter.From.IsZero() && o.CreatedAt.Before(filter.From):
			case !filter.To.IsZero() && !o.CreatedAt.Before(filter.To):
			default:
				out = append(out, *o)
			}
		}
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

type fakePublisher struct {
	mu      sync.Mutex
	created []*models.OrderCreatedEvent
	changed []*models.OrderStatusChangedEvent
}

func (f *fakePublisher) PublishOrderCreated(ctx context.Context, e *models.OrderCreatedEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, e)
	return nil
}

func (f *fakePublisher) PublishOrderStatusChanged(ctx context.Context, e *models.OrderStatusChangedEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.changed = append(f.changed, e)
	return nil
}
