package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"order-agent/internal/models"
	"order-agent/internal/util"

	"go.opentelemetry.io/otel/attribute"
)

const (
	defaultSearchLimit = 50
	maxSearchLimit     = 500
)

// SearchOrders finds orders for staff, newest first
func (s *OrderService) SearchOrders(ctx context.Context, filter models.OrderFilter) ([]models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.SearchOrders")
	defer span.End()

	if !filter.From.IsZero() && !filter.To.IsZero() && !filter.To.After(filter.From) {
		return nil, fmt.Errorf("%w: empty date range", models.ErrInvalidFilter)
	}
	if filter.Limit <= 0 {
		filter.Limit = defaultSearchLimit
	}
	if filter.Limit > maxSearchLimit {
		filter.Limit = maxSearchLimit
	}

	orders, err := s.repo.SearchOrders(ctx, filter)
	if err != nil {
		util.RecordError(span, err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("orders.found", len(orders)))
	return orders, nil
}

// DailySummary reports every order placed on the calendar day of day, in day's location
func (s *OrderService) DailySummary(ctx context.Context, day time.Time) (*models.DailySummary, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.DailySummary")
	defer span.End()

	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	orders, err := s.repo.SearchOrders(ctx, models.OrderFilter{From: start, To: start.AddDate(0, 0, 1)})
	if err != nil {
		util.RecordError(span, err)
		return nil, err
	}

	summary := summarizeOrders(start.Format("2006-01-02"), orders)
	return &summary, nil
}

func summarizeOrders(date string, orders []models.Order) models.DailySummary {
	summary := models.DailySummary{
		Date:            date,
		TotalOrders:     len(orders),
		StatusBreakdown: map[string]int{},
		Products:        []models.ProductSummary{},
		Orders:          orders,
	}
	if summary.Orders == nil {
		summary.Orders = []models.Order{}
	}

	byItem := map[string]*models.ProductSummary{}
	for _, o := range orders {
		summary.TotalQuantity += o.Quantity
		summary.StatusBreakdown[o.Status.String()]++

		p, ok := byItem[o.ItemName]
		if !ok {
			p = &models.ProductSummary{ItemName: o.ItemName}
			byItem[o.ItemName] = p
		}
		p.TotalQuantity += o.Quantity
		p.OrderCount++

		if o.Status != models.OrderStatusCancelled {
			summary.Revenue += o.Total
			p.Revenue += o.Total
		}
	}

	for _, p := range byItem {
		summary.Products = append(summary.Products, *p)
	}
	sort.Slice(summary.Products, func(i, j int) bool {
		a, b := summary.Products[i], summary.Products[j]
		if a.TotalQuantity != b.TotalQuantity {
			return a.TotalQuantity > b.TotalQuantity
		}
		return a.ItemName < b.ItemName
	})
	return summary
}
