package repository

import (
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Clark-Hu/cinepuma/internal/store"
)

// ErrNotFound indicates the requested entity does not exist.
var ErrNotFound = errors.New("repository: not found")

// ErrInvalidPath is returned for document paths with empty segments or no collection.
var ErrInvalidPath = errors.New("repository: invalid document path")

// Repository aggregates all Postgres-backed repositories.
type Repository struct {
	Documents *DocumentsRepository
}

// New constructs a Repository backed by the provided store.
func New(st *store.Store) *Repository {
	return NewWithPool(st.Pool())
}

// NewWithPool allows constructing repositories directly from a pgx pool.
func NewWithPool(pool *pgxpool.Pool) *Repository {
	return &Repository{
		Documents: &DocumentsRepository{pool: pool},
	}
}
