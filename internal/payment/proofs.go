// Package payment keeps the payment screenshots customers upload at checkout.
// Screenshots are content addressed: the order records only the digest.
package payment

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"
)

var ErrNotFound = errors.New("payment proof not found")

type Proof struct {
	Digest      string
	ContentType string
	Data        []byte
	CreatedAt   time.Time
}

// Digest returns the hex SHA-256 of data, the key a proof is stored under
func Digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// NewProof builds a proof for data, keyed by its digest
func NewProof(contentType string, data []byte, now time.Time) *Proof {
	return &Proof{Digest: Digest(data), ContentType: contentType, Data: data, CreatedAt: now}
}

// ProofStore persists screenshots. Put is idempotent: storing the same bytes
// twice keeps the first copy.
type ProofStore interface {
	Put(ctx context.Context, p *Proof) error
	Get(ctx context.Context, digest string) (*Proof, error)
}

// MemoryProofStore keeps proofs in memory
type MemoryProofStore struct {
	mu     sync.RWMutex
	proofs map[string]Proof
}

func NewMemoryProofStore() *MemoryProofStore {
	return &MemoryProofStore{proofs: make(map[string]Proof)}
}

func (s *MemoryProofStore) Put(ctx context.Context, p *Proof) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.proofs[p.Digest]; ok {
		return nil
	}
	stored := *p
	stored.Data = append([]byte(nil), p.Data...)
	s.proofs[p.Digest] = stored
	return nil
}

func (s *MemoryProofStore) Get(ctx context.Context, digest string) (*Proof, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.proofs[digest]
	if !ok {
		return nil, ErrNotFound
	}
	p.Data = append([]byte(nil), p.Data...)
	return &p, nil
}

func (s *MemoryProofStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.proofs)
}

// PostgresProofStore stores proofs in the payment_proofs table
type PostgresProofStore struct {
	db *sql.DB
}

func NewPostgresProofStore(db *sql.DB) *PostgresProofStore {
	return &PostgresProofStore{db: db}
}

func (s *PostgresProofStore) Put(ctx context.Context, p *Proof) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO payment_proofs (digest, content_type, data, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (digest) DO NOTHING
	`, p.Digest, p.ContentType, p.Data, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save payment proof %s: %w", p.Digest, err)
	}
	return nil
}

func (s *PostgresProofStore) Get(ctx context.Context, digest string) (*Proof, error) {
	var p Proof
	err := s.db.QueryRowContext(ctx, `
		SELECT digest, content_type, data, created_at
		FROM payment_proofs WHERE digest = $1
	`, digest).Scan(&p.Digest, &p.ContentType, &p.Data, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get payment proof %s: %w", digest, err)
	}
	return &p, nil
}
