package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/pkg/database"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

const sessionColumns = `id, user_id, items, shipping_address, payment_method, total_price,
	payment_status, is_paid, payment_details, paid_at, is_finalized, finalized_at,
	created_at, updated_at`

const (
	insertSessionSQL = `
		INSERT INTO checkout_sessions (id, user_id, items, shipping_address, payment_method, total_price, payment_status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	getSessionSQL = `SELECT ` + sessionColumns + ` FROM checkout_sessions WHERE id = $1`

	markPaidSQL = `
		UPDATE checkout_sessions
		SET is_paid = true, payment_status = 'paid', payment_details = $2, paid_at = $3, updated_at = $3
		WHERE id = $1 AND NOT is_paid AND NOT is_finalized
		RETURNING ` + sessionColumns

	finalizeSQL = `
		UPDATE checkout_sessions
		SET is_finalized = true, finalized_at = $2, updated_at = $2
		WHERE id = $1 AND is_paid AND NOT is_finalized
		RETURNING ` + sessionColumns
)

// CheckoutRepository implements repository.CheckoutRepository using PostgreSQL.
type CheckoutRepository struct {
	pool database.DBTX
}

// NewCheckoutRepository creates a new PostgreSQL-backed checkout repository.
func NewCheckoutRepository(pool database.DBTX) *CheckoutRepository {
	return &CheckoutRepository{pool: pool}
}

// Create inserts a new pending session.
func (r *CheckoutRepository) Create(ctx context.Context, s *domain.CheckoutSession) (err error) {
	ctx, end := database.TraceQuery(ctx, "CreateCheckoutSession", insertSessionSQL)
	defer func() { end(err) }()

	itemsJSON, addrJSON, err := encodeItemsAndAddress(s.Items, s.ShippingAddress)
	if err != nil {
		return err
	}

	_, err = r.pool.Exec(ctx, insertSessionSQL,
		s.ID,
		s.UserID,
		itemsJSON,
		addrJSON,
		s.PaymentMethod,
		s.TotalPrice,
		s.PaymentStatus,
		s.CreatedAt,
		s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert checkout session: %w", err)
	}
	return nil
}

// GetByID retrieves a session by its ID.
func (r *CheckoutRepository) GetByID(ctx context.Context, id string) (s *domain.CheckoutSession, err error) {
	ctx, end := database.TraceQuery(ctx, "GetCheckoutSession", getSessionSQL)
	defer func() { end(err) }()

	s, err = scanSession(r.pool.QueryRow(ctx, getSessionSQL, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NotFound("checkout", id)
	}
	return s, err
}

// MarkPaid flips an unpaid, unfinalized session to paid in one statement.
func (r *CheckoutRepository) MarkPaid(ctx context.Context, id string, details []byte) (s *domain.CheckoutSession, err error) {
	ctx, end := database.TraceQuery(ctx, "MarkCheckoutPaid", markPaidSQL)
	defer func() { end(err) }()

	s, err = scanSession(r.pool.QueryRow(ctx, markPaidSQL, id, nullableJSON(details), utcNow()))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return s, err
}

// Finalize latches the session finalized and inserts its order in one
// transaction. The conditional UPDATE takes the row lock, so of two
// concurrent callers only one sees a returned row.
func (r *CheckoutRepository) Finalize(ctx context.Context, id string, build func(*domain.CheckoutSession) *domain.Order) (o *domain.Order, err error) {
	ctx, end := database.TraceQuery(ctx, "FinalizeCheckout", finalizeSQL)
	defer func() { end(err) }()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	s, err := scanSession(tx.QueryRow(ctx, finalizeSQL, id, utcNow()))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	o = build(s)
	if err := insertOrder(ctx, tx, o); err != nil {
		if isUniqueViolation(err) {
			return nil, apperrors.AlreadyFinalized(id)
		}
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return o, nil
}

func scanSession(row scanner) (*domain.CheckoutSession, error) {
	var (
		s         domain.CheckoutSession
		itemsJSON []byte
		addrJSON  []byte
		details   []byte
	)
	err := row.Scan(
		&s.ID,
		&s.UserID,
		&itemsJSON,
		&addrJSON,
		&s.PaymentMethod,
		&s.TotalPrice,
		&s.PaymentStatus,
		&s.IsPaid,
		&details,
		&s.PaidAt,
		&s.IsFinalized,
		&s.FinalizedAt,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan checkout session: %w", err)
	}

	if s.Items, err = decodeItems(itemsJSON); err != nil {
		return nil, err
	}
	if s.ShippingAddress, err = decodeAddress(addrJSON); err != nil {
		return nil, err
	}
	if len(details) > 0 {
		s.PaymentDetails = details
	}
	return &s, nil
}
