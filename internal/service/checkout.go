package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/repository"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

// CreateCheckoutInput holds the parameters for starting a checkout.
type CreateCheckoutInput struct {
	Items           []domain.CartLine
	ShippingAddress domain.Address
	PaymentMethod   string
	TotalPrice      int64
}

// MarkPaidInput is a payment confirmation.
type MarkPaidInput struct {
	PaymentStatus  string
	PaymentDetails json.RawMessage
}

const cartCleanupAttempts = 3

// CheckoutService moves checkout sessions through pending, paid and
// finalized, and turns each finalized session into exactly one order.
type CheckoutService struct {
	repo   repository.CheckoutRepository
	carts  repository.CartRepository
	events CheckoutEvents
	logger *slog.Logger
	now    func() time.Time
}

// NewCheckoutService creates a new checkout service. carts is used to take
// ordered lines out of the buyer's cart once an order exists.
func NewCheckoutService(repo repository.CheckoutRepository, carts repository.CartRepository, events CheckoutEvents, logger *slog.Logger) *CheckoutService {
	return &CheckoutService{
		repo:   repo,
		carts:  carts,
		events: events,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Create starts a pending checkout session for the authenticated user.
func (s *CheckoutService) Create(ctx context.Context, id domain.RequestIdentity, input CreateCheckoutInput) (*domain.CheckoutSession, error) {
	if !id.IsAuthenticated() {
		return nil, apperrors.Unauthorized("authentication required")
	}
	if len(input.Items) == 0 {
		return nil, apperrors.InvalidInput("checkout must contain at least one item")
	}
	for _, item := range input.Items {
		if item.ProductID == "" {
			return nil, apperrors.InvalidInput("every checkout item needs a product id")
		}
		if item.Quantity <= 0 {
			return nil, apperrors.InvalidInput(fmt.Sprintf("quantity for product %s must be greater than 0", item.ProductID))
		}
		if item.Price < 0 {
			return nil, apperrors.InvalidInput(fmt.Sprintf("price for product %s must not be negative", item.ProductID))
		}
	}
	if sum := domain.LinesTotal(input.Items); sum != input.TotalPrice {
		return nil, apperrors.InvalidInput(fmt.Sprintf("total price %d does not match item total %d", input.TotalPrice, sum))
	}

	session := domain.NewCheckoutSession(id.UserID, input.Items, input.ShippingAddress, input.PaymentMethod, input.TotalPrice, s.now())
	if err := s.repo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}
	checkoutTransitions.WithLabelValues("create", outcomeOK).Inc()

	if err := s.events.PublishCheckoutCreated(ctx, session); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish checkout.created event",
			slog.String("checkout_id", session.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "checkout session created",
		slog.String("checkout_id", session.ID),
		slog.String("user_id", session.UserID),
		slog.Int64("total_price", session.TotalPrice),
	)
	return session, nil
}

// Get returns a session to its owner. Other callers get NotFound.
func (s *CheckoutService) Get(ctx context.Context, id domain.RequestIdentity, sessionID string) (*domain.CheckoutSession, error) {
	session, err := s.repo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("get checkout session: %w", err)
	}
	if !id.IsAuthenticated() || session.UserID != id.UserID {
		return nil, apperrors.NotFound("checkout session", sessionID)
	}
	return session, nil
}

// MarkPaid records a successful payment. Only the literal status "paid" is
// accepted; anything else leaves the session untouched. Confirming a session
// that is already paid returns it unchanged.
func (s *CheckoutService) MarkPaid(ctx context.Context, id domain.RequestIdentity, sessionID string, input MarkPaidInput) (*domain.CheckoutSession, error) {
	if _, err := s.Get(ctx, id, sessionID); err != nil {
		return nil, err
	}
	if input.PaymentStatus != domain.PaymentStatusPaid {
		checkoutTransitions.WithLabelValues("pay", outcomeRejected).Inc()
		return nil, apperrors.PaymentRejected(input.PaymentStatus)
	}

	session, err := s.repo.MarkPaid(ctx, sessionID, input.PaymentDetails)
	if err != nil {
		checkoutTransitions.WithLabelValues("pay", outcomeError).Inc()
		return nil, fmt.Errorf("mark checkout paid: %w", err)
	}
	if session == nil {
		current, err := s.repo.GetByID(ctx, sessionID)
		if err != nil {
			return nil, fmt.Errorf("get checkout session: %w", err)
		}
		switch {
		case current.IsFinalized:
			return nil, apperrors.AlreadyFinalized(sessionID)
		case current.IsPaid:
			return current, nil
		default:
			checkoutTransitions.WithLabelValues("pay", outcomeConflict).Inc()
			return nil, apperrors.Conflict("checkout session was modified concurrently, please retry")
		}
	}
	checkoutTransitions.WithLabelValues("pay", outcomeOK).Inc()

	if err := s.events.PublishCheckoutPaid(ctx, session); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish checkout.paid event",
			slog.String("checkout_id", session.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "checkout session paid",
		slog.String("checkout_id", session.ID),
		slog.String("user_id", session.UserID),
	)
	return session, nil
}

// Finalize converts a paid session into its order. Of any number of
// concurrent calls exactly one succeeds; the rest fail with AlreadyFinalized.
func (s *CheckoutService) Finalize(ctx context.Context, id domain.RequestIdentity, sessionID string) (*domain.Order, error) {
	if _, err := s.Get(ctx, id, sessionID); err != nil {
		return nil, err
	}

	order, err := s.repo.Finalize(ctx, sessionID, func(session *domain.CheckoutSession) *domain.Order {
		return domain.NewOrderFromCheckout(session, s.now())
	})
	if err != nil {
		if errors.Is(err, apperrors.ErrAlreadyFinalized) {
			checkoutTransitions.WithLabelValues("finalize", outcomeConflict).Inc()
			return nil, err
		}
		checkoutTransitions.WithLabelValues("finalize", outcomeError).Inc()
		return nil, fmt.Errorf("finalize checkout: %w", err)
	}
	if order == nil {
		return nil, s.finalizeRejection(ctx, sessionID)
	}
	checkoutTransitions.WithLabelValues("finalize", outcomeOK).Inc()
	ordersCreated.Inc()
	orderRevenue.Add(float64(order.TotalPrice))

	if err := s.removeOrderedLines(ctx, order); err != nil {
		s.logger.ErrorContext(ctx, "failed to remove ordered lines from cart",
			slog.String("checkout_id", sessionID),
			slog.String("user_id", order.UserID),
			slog.String("error", err.Error()),
		)
	}

	if err := s.events.PublishOrderCreated(ctx, order); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish order.created event",
			slog.String("order_id", order.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "checkout finalized",
		slog.String("checkout_id", sessionID),
		slog.String("order_id", order.ID),
		slog.String("user_id", order.UserID),
	)
	return order, nil
}

// removeOrderedLines takes the ordered quantities out of the buyer's cart.
// Lines added after the checkout snapshot stay; an emptied cart is deleted.
func (s *CheckoutService) removeOrderedLines(ctx context.Context, order *domain.Order) error {
	owner := domain.UserOwner(order.UserID)
	for range cartCleanupAttempts {
		cart, err := s.carts.Get(ctx, owner)
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("get cart: %w", err)
		}

		expected := cart.Version
		if !subtractLines(cart, order.Items) {
			return nil
		}

		var done bool
		if cart.IsEmpty() {
			done, err = s.carts.DeleteIfVersion(ctx, owner, expected)
		} else {
			done, err = s.carts.SaveIfVersion(ctx, cart, expected)
		}
		if err != nil {
			return fmt.Errorf("update cart: %w", err)
		}
		if done {
			return nil
		}
	}
	return apperrors.Conflict("cart " + owner.Key() + " kept changing while removing ordered lines")
}

// subtractLines lowers each matching cart line by the ordered quantity and
// reports whether anything changed.
func subtractLines(cart *domain.Cart, ordered []domain.CartLine) bool {
	changed := false
	for _, line := range ordered {
		idx := cart.FindLine(line.Key())
		if idx < 0 {
			continue
		}
		cart.SetQuantity(line.Key(), cart.Lines[idx].Quantity-line.Quantity)
		changed = true
	}
	return changed
}

// finalizeRejection explains why the conditional finalize matched no row.
func (s *CheckoutService) finalizeRejection(ctx context.Context, sessionID string) error {
	current, err := s.repo.GetByID(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("get checkout session: %w", err)
	}
	switch {
	case current.IsFinalized:
		checkoutTransitions.WithLabelValues("finalize", outcomeConflict).Inc()
		return apperrors.AlreadyFinalized(sessionID)
	case !current.IsPaid:
		checkoutTransitions.WithLabelValues("finalize", outcomeRejected).Inc()
		return apperrors.NotPaid(sessionID)
	default:
		return apperrors.Conflict("checkout session was modified concurrently, please retry")
	}
}
