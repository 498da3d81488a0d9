package postgres

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/utafrali/storefront/internal/domain"
)

const uniqueViolation = "23505"

type scanner interface {
	Scan(dest ...any) error
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// nullableJSON turns an empty document into SQL NULL.
func nullableJSON(raw json.RawMessage) []byte {
	if len(raw) == 0 {
		return nil
	}
	return raw
}

func decodeItems(data []byte) ([]domain.CartLine, error) {
	items := []domain.CartLine{}
	if len(data) == 0 || string(data) == "null" {
		return items, nil
	}
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("unmarshal items: %w", err)
	}
	return items, nil
}

func decodeAddress(data []byte) (domain.Address, error) {
	var addr domain.Address
	if len(data) == 0 || string(data) == "null" {
		return addr, nil
	}
	if err := json.Unmarshal(data, &addr); err != nil {
		return addr, fmt.Errorf("unmarshal shipping address: %w", err)
	}
	return addr, nil
}

func encodeItemsAndAddress(items []domain.CartLine, addr domain.Address) ([]byte, []byte, error) {
	if items == nil {
		items = []domain.CartLine{}
	}
	itemsJSON, err := json.Marshal(items)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal items: %w", err)
	}
	addrJSON, err := json.Marshal(addr)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal shipping address: %w", err)
	}
	return itemsJSON, addrJSON, nil
}

func utcNow() time.Time {
	return time.Now().UTC()
}
