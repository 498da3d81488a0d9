package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/repository"
	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/pagination"
)

// OrderService reads orders and moves their fulfilment status.
type OrderService struct {
	repo   repository.OrderRepository
	events OrderEvents
	logger *slog.Logger
}

// NewOrderService creates a new order service.
func NewOrderService(repo repository.OrderRepository, events OrderEvents, logger *slog.Logger) *OrderService {
	return &OrderService{
		repo:   repo,
		events: events,
		logger: logger,
	}
}

// Get returns an order to its owner or an admin. Anyone else gets NotFound.
func (s *OrderService) Get(ctx context.Context, id domain.RequestIdentity, orderID string) (*domain.Order, error) {
	order, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if !order.IsVisibleTo(id) {
		return nil, apperrors.NotFound("order", orderID)
	}
	return order, nil
}

// ListMine returns the caller's orders, newest first.
func (s *OrderService) ListMine(ctx context.Context, id domain.RequestIdentity, page pagination.Params) ([]domain.Order, int, error) {
	if !id.IsAuthenticated() {
		return nil, 0, apperrors.Unauthorized("authentication required")
	}
	orders, total, err := s.repo.List(ctx, domain.OrderFilter{UserID: id.UserID}, page)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	return orders, total, nil
}

// List returns all orders, optionally narrowed to one status. Admin only.
func (s *OrderService) List(ctx context.Context, id domain.RequestIdentity, status string, page pagination.Params) ([]domain.Order, int, error) {
	if !id.IsAdmin() {
		return nil, 0, apperrors.Forbidden("admin role required")
	}
	if status != "" && !domain.IsValidStatus(status) {
		return nil, 0, apperrors.InvalidInput(fmt.Sprintf("invalid order status %q", status))
	}
	orders, total, err := s.repo.List(ctx, domain.OrderFilter{Status: status}, page)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	return orders, total, nil
}

// UpdateStatus moves an order to status along an allowed transition. Admin
// only. The write is conditional on the status read, so a concurrent change
// makes it fail with Conflict.
func (s *OrderService) UpdateStatus(ctx context.Context, id domain.RequestIdentity, orderID, status string) (*domain.Order, error) {
	if !id.IsAdmin() {
		return nil, apperrors.Forbidden("admin role required")
	}
	if !domain.IsValidStatus(status) {
		return nil, apperrors.InvalidInput(fmt.Sprintf("invalid order status %q", status))
	}

	order, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if !order.CanTransitionTo(status) {
		return nil, apperrors.InvalidInput(fmt.Sprintf("cannot transition order from %s to %s", order.Status, status))
	}

	oldStatus := order.Status
	updated, err := s.repo.UpdateStatus(ctx, orderID, oldStatus, status)
	if err != nil {
		return nil, fmt.Errorf("update order status: %w", err)
	}
	if updated == nil {
		return nil, apperrors.Conflict("order status changed concurrently, please retry")
	}

	if err := s.events.PublishOrderStatusChanged(ctx, updated, oldStatus); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish order.status_changed event",
			slog.String("order_id", orderID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "order status updated",
		slog.String("order_id", orderID),
		slog.String("old_status", oldStatus),
		slog.String("new_status", status),
	)
	return updated, nil
}
