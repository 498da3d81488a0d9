package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/repository"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

// AddItemInput holds the parameters for adding a product to a cart.
type AddItemInput struct {
	ProductID string
	Quantity  int
	Size      string
	Color     string
}

// UpdateItemInput identifies a cart line and its new quantity. A quantity of
// zero or less removes the line.
type UpdateItemInput struct {
	ProductID string
	Quantity  int
	Size      string
	Color     string
}

// RemoveItemInput identifies a cart line.
type RemoveItemInput struct {
	ProductID string
	Size      string
	Color     string
}

// CartService implements the business logic for cart operations. Every write
// is a compare-and-swap on the cart version; a lost race is a Conflict and is
// not retried.
type CartService struct {
	repo    repository.CartRepository
	catalog ProductCatalog
	events  CartEvents
	logger  *slog.Logger
	now     func() time.Time
}

// NewCartService creates a new cart service.
func NewCartService(repo repository.CartRepository, catalog ProductCatalog, events CartEvents, logger *slog.Logger) *CartService {
	return &CartService{
		repo:    repo,
		catalog: catalog,
		events:  events,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Get returns the cart the identity resolves to: the user's cart when present,
// else the guest's.
func (s *CartService) Get(ctx context.Context, id domain.RequestIdentity) (*domain.Cart, error) {
	if !id.HasOwner() {
		return nil, apperrors.InvalidInput("a user id or guest id is required")
	}
	cart, err := s.lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	if cart == nil {
		return nil, apperrors.NotFound("cart", describe(id))
	}
	return cart, nil
}

// AddItem adds quantity of a catalog product to the identity's cart, creating
// the cart if needed. It reports whether the cart was created.
func (s *CartService) AddItem(ctx context.Context, id domain.RequestIdentity, input AddItemInput) (*domain.Cart, bool, error) {
	if input.ProductID == "" {
		return nil, false, apperrors.InvalidInput("product id is required")
	}
	if input.Quantity <= 0 {
		return nil, false, apperrors.InvalidInput("quantity must be greater than 0")
	}

	product, err := s.catalog.FindByID(ctx, input.ProductID)
	if err != nil {
		return nil, false, fmt.Errorf("find product: %w", err)
	}

	cart, err := s.lookup(ctx, id)
	if err != nil {
		return nil, false, err
	}
	created := cart == nil
	if created {
		cart = domain.NewCart(id.NewCartOwner(), s.now())
	}

	expected := cart.Version
	cart.AddLine(product.Line(input.Size, input.Color, input.Quantity))

	if err := s.save(ctx, "add_item", cart, expected); err != nil {
		return nil, false, err
	}

	s.logger.InfoContext(ctx, "item added to cart",
		slog.String("cart_id", cart.ID),
		slog.String("owner", cart.Owner.Key()),
		slog.String("product_id", input.ProductID),
		slog.Int("quantity", input.Quantity),
		slog.Bool("created", created),
	)
	return cart, created, nil
}

// UpdateItemQuantity sets the quantity of an existing line.
func (s *CartService) UpdateItemQuantity(ctx context.Context, id domain.RequestIdentity, input UpdateItemInput) (*domain.Cart, error) {
	if input.ProductID == "" {
		return nil, apperrors.InvalidInput("product id is required")
	}

	cart, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	expected := cart.Version
	key := domain.LineKey{ProductID: input.ProductID, Size: input.Size, Color: input.Color}
	if !cart.SetQuantity(key, input.Quantity) {
		return nil, apperrors.NotFound("cart item", input.ProductID)
	}

	if err := s.save(ctx, "update_item", cart, expected); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "cart item quantity updated",
		slog.String("cart_id", cart.ID),
		slog.String("product_id", input.ProductID),
		slog.Int("quantity", input.Quantity),
	)
	return cart, nil
}

// RemoveItem removes a line from the identity's cart.
func (s *CartService) RemoveItem(ctx context.Context, id domain.RequestIdentity, input RemoveItemInput) (*domain.Cart, error) {
	if input.ProductID == "" {
		return nil, apperrors.InvalidInput("product id is required")
	}

	cart, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	expected := cart.Version
	if !cart.RemoveLine(domain.LineKey{ProductID: input.ProductID, Size: input.Size, Color: input.Color}) {
		return nil, apperrors.NotFound("cart item", input.ProductID)
	}

	if err := s.save(ctx, "remove_item", cart, expected); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "item removed from cart",
		slog.String("cart_id", cart.ID),
		slog.String("product_id", input.ProductID),
	)
	return cart, nil
}

// Clear deletes the identity's cart.
func (s *CartService) Clear(ctx context.Context, id domain.RequestIdentity) error {
	cart, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	deleted, err := s.repo.Delete(ctx, cart.Owner)
	if err != nil {
		cartOperations.WithLabelValues("clear", outcomeError).Inc()
		return fmt.Errorf("delete cart: %w", err)
	}
	if !deleted {
		return apperrors.NotFound("cart", cart.Owner.Key())
	}
	cartOperations.WithLabelValues("clear", outcomeOK).Inc()

	if err := s.events.PublishCartCleared(ctx, cart); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish cart.cleared event",
			slog.String("cart_id", cart.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "cart cleared",
		slog.String("cart_id", cart.ID),
		slog.String("owner", cart.Owner.Key()),
	)
	return nil
}

// Merge folds the guest's cart into the user's. When the user has no cart the
// guest cart is re-owned as is. The guest cart is deleted in the same
// transaction, so a repeated merge finds nothing and fails with NotFound.
func (s *CartService) Merge(ctx context.Context, guestID, userID string) (*domain.Cart, error) {
	if userID == "" {
		return nil, apperrors.Unauthorized("authentication required")
	}
	if guestID == "" {
		return nil, apperrors.InvalidInput("guest id is required")
	}

	guest, err := s.repo.Get(ctx, domain.GuestOwner(guestID))
	if err != nil {
		return nil, fmt.Errorf("get guest cart: %w", err)
	}
	if guest.IsEmpty() {
		return nil, apperrors.NotFound("guest cart", guestID)
	}

	target, err := s.find(ctx, domain.UserOwner(userID))
	if err != nil {
		return nil, err
	}

	expected := 0
	if target != nil {
		expected = target.Version
		target.MergeFrom(guest)
	} else {
		reowned := *guest
		reowned.Owner = domain.UserOwner(userID)
		target = &reowned
	}

	ok, err := s.repo.Transfer(ctx, target, expected, guest.Owner, guest.Version)
	if err != nil {
		cartOperations.WithLabelValues("merge", outcomeError).Inc()
		return nil, fmt.Errorf("transfer cart: %w", err)
	}
	if !ok {
		cartOperations.WithLabelValues("merge", outcomeConflict).Inc()
		return nil, apperrors.Conflict("cart was modified concurrently, please retry")
	}
	cartOperations.WithLabelValues("merge", outcomeOK).Inc()

	if err := s.events.PublishCartMerged(ctx, target, guestID); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish cart.merged event",
			slog.String("cart_id", target.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "guest cart merged",
		slog.String("cart_id", target.ID),
		slog.String("guest_id", guestID),
		slog.String("user_id", userID),
		slog.Int("lines", len(target.Lines)),
	)
	return target, nil
}

// lookup returns the first existing cart among the identity's owners, or nil.
func (s *CartService) lookup(ctx context.Context, id domain.RequestIdentity) (*domain.Cart, error) {
	for _, owner := range id.Owners() {
		cart, err := s.find(ctx, owner)
		if err != nil || cart != nil {
			return cart, err
		}
	}
	return nil, nil
}

// find returns the owner's cart, or nil if there is none.
func (s *CartService) find(ctx context.Context, owner domain.CartOwner) (*domain.Cart, error) {
	cart, err := s.repo.Get(ctx, owner)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get cart: %w", err)
	}
	return cart, nil
}

func (s *CartService) save(ctx context.Context, op string, cart *domain.Cart, expected int) error {
	ok, err := s.repo.SaveIfVersion(ctx, cart, expected)
	if err != nil {
		cartOperations.WithLabelValues(op, outcomeError).Inc()
		return fmt.Errorf("save cart: %w", err)
	}
	if !ok {
		cartOperations.WithLabelValues(op, outcomeConflict).Inc()
		return apperrors.Conflict("cart was modified concurrently, please retry")
	}
	cartOperations.WithLabelValues(op, outcomeOK).Inc()

	if err := s.events.PublishCartUpdated(ctx, cart); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish cart.updated event",
			slog.String("cart_id", cart.ID),
			slog.String("error", err.Error()),
		)
	}
	return nil
}

func describe(id domain.RequestIdentity) string {
	owners := id.Owners()
	keys := make([]string, len(owners))
	for i, o := range owners {
		keys[i] = o.Key()
	}
	return strings.Join(keys, ", ")
}
