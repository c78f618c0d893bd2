package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"order-agent/internal/models"
	"order-agent/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultHistoryLimit = 10
	maxHistoryLimit     = 50
)

// OrderRepository is the order persistence the service needs; *store.Store implements it.
type OrderRepository interface {
	CreateOrderTx(ctx context.Context, order *models.Order) error
	GetOrderByNumber(ctx context.Context, number string) (*models.Order, error)
	GetOrdersByPhone(ctx context.Context, phone string, limit int) ([]models.Order, error)
	UpdateOrderStatusTx(ctx context.Context, number, notes string,
		transition func(current models.OrderStatus) (models.OrderStatus, error)) (*models.Order, models.OrderStatus, error)
	GetStatusHistory(ctx context.Context, orderID int64) ([]models.OrderStatusChange, error)
	SearchOrders(ctx context.Context, filter models.OrderFilter) ([]models.Order, error)
}

// OrderEventPublisher is implemented by *broker.EventPublisher.
type OrderEventPublisher interface {
	PublishOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error
	PublishOrderStatusChanged(ctx context.Context, event *models.OrderStatusChangedEvent) error
}

// OrderService commits confirmed conversations as orders and moves orders through
// their lifecycle on behalf of staff.
type OrderService struct {
	repo           OrderRepository
	eventPublisher OrderEventPublisher
	logger         *zap.Logger
	now            func() time.Time
}

// NewOrderService creates a new order service; eventPublisher may be nil.
func NewOrderService(repo OrderRepository, eventPublisher OrderEventPublisher) *OrderService {
	return &OrderService{
		repo:           repo,
		eventPublisher: eventPublisher,
		logger:         util.GetLogger(),
		now:            time.Now,
	}
}

// Commit persists a Pending order from a completed session and returns what the
// customer should be told. An incomplete session yields models.ErrIncompleteSession.
func (s *OrderService) Commit(ctx context.Context, session models.Session) (models.OrderReference, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.Commit")
	defer span.End()

	start := time.Now()
	defer func() {
		util.OrderCommitLatency.Observe(time.Since(start).Seconds())
	}()

	if err := session.Complete(); err != nil {
		util.OrdersFailedTotal.WithLabelValues("incomplete_session").Inc()
		return models.OrderReference{}, err
	}

	order := &models.Order{
		Phone:     session.Phone,
		ItemID:    session.SelectedItem.ID,
		ItemName:  session.SelectedItem.Name,
		Quantity:  session.Quantity,
		UnitPrice: session.SelectedItem.UnitPrice,
		Total:     session.Total(),
		Address:   session.Address,
		Status:    models.OrderStatusPending,
		CreatedAt: s.now(),
	}

	if err := s.repo.CreateOrderTx(ctx, order); err != nil {
		util.OrdersFailedTotal.WithLabelValues("db_error").Inc()
		util.RecordError(span, err)
		return models.OrderReference{}, fmt.Errorf("failed to create order: %w", err)
	}

	util.OrdersCreatedTotal.Inc()
	s.logger.Info("Order created",
		zap.String("order_number", order.OrderNumber),
		util.Phone(order.Phone),
		zap.Int64("total", order.Total))

	event := &models.OrderCreatedEvent{
		BaseEvent:   newBaseEvent(models.EventTypeOrderCreated, order.CreatedAt),
		OrderNumber: order.OrderNumber,
		Phone:       order.Phone,
		ItemName:    order.ItemName,
		Quantity:    order.Quantity,
		UnitPrice:   order.UnitPrice,
		Total:       order.Total,
		Address:     order.Address,
	}
	if s.eventPublisher != nil {
		if err := s.eventPublisher.PublishOrderCreated(ctx, event); err != nil {
			s.logger.Error("Failed to publish OrderCreated event", zap.Error(err))
		}
	}

	return models.OrderReference{OrderNumber: order.OrderNumber, Total: order.Total}, nil
}

// GetOrder retrieves an order and its status history
func (s *OrderService) GetOrder(ctx context.Context, number string) (*models.Order, []models.OrderStatusChange, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.GetOrder")
	defer span.End()

	order, err := s.repo.GetOrderByNumber(ctx, number)
	if err != nil {
		return nil, nil, err
	}

	history, err := s.repo.GetStatusHistory(ctx, order.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load status history: %w", err)
	}

	return order, history, nil
}

// ListOrders returns a customer's most recent orders, newest first
func (s *OrderService) ListOrders(ctx context.Context, phone string, limit int) ([]models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.ListOrders")
	defer span.End()

	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	return s.repo.GetOrdersByPhone(ctx, phone, limit)
}

// AdvanceStatus moves an order to the single status that follows its current one
func (s *OrderService) AdvanceStatus(ctx context.Context, number, notes string) (*models.Order, error) {
	return s.transition(ctx, "OrderService.AdvanceStatus", number, notes, func(current models.OrderStatus) (models.OrderStatus, error) {
		return current.Next()
	})
}

// SetStatus moves an order to status, which must be its successor or Cancelled
func (s *OrderService) SetStatus(ctx context.Context, number string, status models.OrderStatus, notes string) (*models.Order, error) {
	return s.transition(ctx, "OrderService.SetStatus", number, notes, func(current models.OrderStatus) (models.OrderStatus, error) {
		if !current.CanTransitionTo(status) {
			return current, fmt.Errorf("%w: %s to %s", models.ErrInvalidTransition, current, status)
		}
		return status, nil
	})
}

// CancelOrder cancels an order that is not yet Delivered or Cancelled
func (s *OrderService) CancelOrder(ctx context.Context, number, reason string) (*models.Order, error) {
	order, err := s.SetStatus(ctx, number, models.OrderStatusCancelled, reason)
	if err == nil {
		util.OrdersCancelledTotal.WithLabelValues("order").Inc()
	}
	return order, err
}

func (s *OrderService) transition(ctx context.Context, spanName, number, notes string,
	next func(models.OrderStatus) (models.OrderStatus, error)) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, spanName)
	defer span.End()

	before, status, err := s.repo.UpdateOrderStatusTx(ctx, number, notes, next)
	if err != nil {
		if !errors.Is(err, models.ErrInvalidTransition) {
			util.RecordError(span, err)
		}
		return nil, err
	}

	after := *before
	after.Status = status
	after.UpdatedAt = s.now()

	util.OrderStatusChangesTotal.WithLabelValues(status.String()).Inc()
	s.logger.Info("Order status changed",
		zap.String("order_number", number),
		zap.Stringer("old_status", before.Status),
		zap.Stringer("new_status", status))

	event := &models.OrderStatusChangedEvent{
		BaseEvent:   newBaseEvent(models.EventTypeOrderStatusChanged, after.UpdatedAt),
		OrderNumber: after.OrderNumber,
		Phone:       after.Phone,
		OldStatus:   before.Status,
		NewStatus:   status,
		Notes:       notes,
	}
	if s.eventPublisher != nil {
		if err := s.eventPublisher.PublishOrderStatusChanged(ctx, event); err != nil {
			s.logger.Error("Failed to publish OrderStatusChanged event", zap.Error(err))
		}
	}

	return &after, nil
}

func newBaseEvent(eventType string, at time.Time) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: at,
	}
}
