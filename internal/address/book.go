// Package address resolves a customer's saved shipping addresses.
package address

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
)

// ErrNotFound is returned when the address does not exist or belongs to
// another user. The two cases are indistinguishable to callers.
var ErrNotFound = errors.New("address not found")

type Address struct {
	ID       string `json:"id"`
	UserID   string `json:"user_id"`
	FullName string `json:"full_name"`
	Phone    string `json:"phone"`
	Street   string `json:"street"`
	City     string `json:"city"`
	Country  string `json:"country"`
}

// Book looks up addresses scoped to their owner
type Book interface {
	Get(ctx context.Context, userID, addressID string) (*Address, error)
}

// MemoryBook keeps addresses in memory
type MemoryBook struct {
	mu        sync.RWMutex
	addresses map[string]Address
}

func NewMemoryBook(addresses ...Address) *MemoryBook {
	b := &MemoryBook{addresses: make(map[string]Address)}
	for _, a := range addresses {
		b.addresses[a.ID] = a
	}
	return b
}

func (b *MemoryBook) Get(ctx context.Context, userID, addressID string) (*Address, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	a, ok := b.addresses[addressID]
	if !ok || a.UserID != userID {
		return nil, ErrNotFound
	}
	return &a, nil
}

func (b *MemoryBook) Put(a Address) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.addresses[a.ID] = a
}

// PostgresBook reads the addresses table
type PostgresBook struct {
	db *sql.DB
}

func NewPostgresBook(db *sql.DB) *PostgresBook {
	return &PostgresBook{db: db}
}

func (b *PostgresBook) Get(ctx context.Context, userID, addressID string) (*Address, error) {
	var a Address
	err := b.db.QueryRowContext(ctx, `
		SELECT id, user_id, full_name, phone, street, city, country
		FROM addresses WHERE id = $1 AND user_id = $2
	`, addressID, userID).Scan(&a.ID, &a.UserID, &a.FullName, &a.Phone, &a.Street, &a.City, &a.Country)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get address %s: %w", addressID, err)
	}
	return &a, nil
}

func (b *PostgresBook) Put(ctx context.Context, a Address) error {
	_, err := b.db.ExecContext(ctx, `
		INSERT INTO addresses (id, user_id, full_name, phone, street, city, country)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			full_name = EXCLUDED.full_name,
			phone = EXCLUDED.phone,
			street = EXCLUDED.street,
			city = EXCLUDED.city,
			country = EXCLUDED.country
	`, a.ID, a.UserID, a.FullName, a.Phone, a.Street, a.City, a.Country)
	if err != nil {
		return fmt.Errorf("failed to save address %s: %w", a.ID, err)
	}
	return nil
}
