package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ChangeChannel is the NOTIFY channel raised by the documents trigger. The
// payload is the collection path of the changed row.
const ChangeChannel = "documents_changed"

// DocumentsRepository stores JSON documents addressed by hierarchical paths
// ("apps/{appId}/users/{uid}/user_data/profile"). The last segment is the
// document id, everything before it is the collection.
type DocumentsRepository struct {
	pool *pgxpool.Pool
}

// Document is one stored row.
type Document struct {
	Path       string
	Collection string
	ID         string
	Data       []byte
	Seq        int64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

const documentColumns = `path, collection, doc_id, data, seq, created_at, updated_at`

// SplitPath separates a document path into its collection and id.
func SplitPath(path string) (collection, id string, err error) {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	if len(segments) < 2 {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}
	for _, s := range segments {
		if s == "" {
			return "", "", fmt.Errorf("%w: %q", ErrInvalidPath, path)
		}
	}
	last := len(segments) - 1
	return strings.Join(segments[:last], "/"), segments[last], nil
}

// Upsert writes a document. With merge the top-level keys of data are merged
// into the stored object; without it the stored object is replaced.
func (r *DocumentsRepository) Upsert(ctx context.Context, path string, data []byte, merge bool) (Document, error) {
	collection, id, err := SplitPath(path)
	if err != nil {
		return Document{}, err
	}

	query := fmt.Sprintf(`
        INSERT INTO documents (path, collection, doc_id, data)
        VALUES ($1,$2,$3,$4)
        ON CONFLICT (path)
        DO UPDATE SET data = CASE WHEN $5::boolean THEN documents.data || EXCLUDED.data ELSE EXCLUDED.data END,
                      updated_at = now()
        RETURNING %s
    `, documentColumns)

	row := r.pool.QueryRow(ctx, query, collection+"/"+id, collection, id, data, merge)
	return scanDocument(row)
}

// Insert appends a new document to collection under id.
func (r *DocumentsRepository) Insert(ctx context.Context, collection, id string, data []byte) (Document, error) {
	path := strings.Trim(collection, "/") + "/" + id
	col, docID, err := SplitPath(path)
	if err != nil {
		return Document{}, err
	}

	query := fmt.Sprintf(`
        INSERT INTO documents (path, collection, doc_id, data)
        VALUES ($1,$2,$3,$4)
        RETURNING %s
    `, documentColumns)

	row := r.pool.QueryRow(ctx, query, path, col, docID, data)
	return scanDocument(row)
}

// Get fetches a document by path.
func (r *DocumentsRepository) Get(ctx context.Context, path string) (Document, error) {
	query := fmt.Sprintf(`SELECT %s FROM documents WHERE path = $1`, documentColumns)
	doc, err := scanDocument(r.pool.QueryRow(ctx, query, strings.Trim(path, "/")))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Document{}, ErrNotFound
		}
		return Document{}, err
	}
	return doc, nil
}

// ListCollection returns every document of a collection in insertion order.
func (r *DocumentsRepository) ListCollection(ctx context.Context, collection string) ([]Document, error) {
	query := fmt.Sprintf(`SELECT %s FROM documents WHERE collection = $1 ORDER BY seq`, documentColumns)
	rows, err := r.pool.Query(ctx, query, strings.Trim(collection, "/"))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	docs := make([]Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return docs, nil
}

// Listen holds a dedicated connection subscribed to ChangeChannel. onChange runs
// once immediately and then after every notification for collection. Listen
// returns when ctx is done or onChange fails.
func (r *DocumentsRepository) Listen(ctx context.Context, collection string, onChange func(context.Context) error) error {
	collection = strings.Trim(collection, "/")

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire listen connection: %w", err)
	}
	defer func() {
		// A cancelled wait closes the connection; the pool drops closed conns on release.
		unlistenCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		_, _ = conn.Exec(unlistenCtx, "UNLISTEN "+ChangeChannel)
		cancel()
		conn.Release()
	}()

	if _, err := conn.Exec(ctx, "LISTEN "+ChangeChannel); err != nil {
		return fmt.Errorf("listen %s: %w", ChangeChannel, err)
	}
	if err := onChange(ctx); err != nil {
		return err
	}

	for {
		notification, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("wait for notification: %w", err)
		}
		if notification.Payload != collection {
			continue
		}
		if err := onChange(ctx); err != nil {
			return err
		}
	}
}

func scanDocument(row pgx.Row) (Document, error) {
	var doc Document
	err := row.Scan(
		&doc.Path,
		&doc.Collection,
		&doc.ID,
		&doc.Data,
		&doc.Seq,
		&doc.CreatedAt,
		&doc.UpdatedAt,
	)
	if err != nil {
		return Document{}, err
	}
	return doc, nil
}
