package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Clark-Hu/cinepuma/internal/repository"
)

// Postgres stores documents as JSONB rows and turns NOTIFY events into snapshots.
type Postgres struct {
	docs *repository.DocumentsRepository
}

// NewPostgres wraps the documents repository.
func NewPostgres(docs *repository.DocumentsRepository) *Postgres {
	return &Postgres{docs: docs}
}

// Write upserts the document at path.
func (p *Postgres) Write(ctx context.Context, path string, data map[string]any, opts WriteOptions) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("docstore: encode %s: %w", path, err)
	}
	if _, err := p.docs.Upsert(ctx, path, payload, opts.Merge); err != nil {
		return fmt.Errorf("docstore: write %s: %w", path, err)
	}
	return nil
}

// Append inserts data under a fresh id.
func (p *Postgres) Append(ctx context.Context, collection string, data any) (string, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("docstore: encode document: %w", err)
	}
	id := uuid.NewString()
	if _, err := p.docs.Insert(ctx, strings.Trim(collection, "/"), id, payload); err != nil {
		return "", fmt.Errorf("docstore: append to %s: %w", collection, err)
	}
	return id, nil
}

// Subscribe reads the whole collection on start and after every change notification.
func (p *Postgres) Subscribe(ctx context.Context, collection string) (*Subscription, error) {
	collection = strings.Trim(collection, "/")
	if _, _, err := repository.SplitPath(collection + "/x"); err != nil {
		return nil, err
	}
	return startSubscription(ctx, func(ctx context.Context, emit emitFunc) error {
		return p.docs.Listen(ctx, collection, func(ctx context.Context) error {
			rows, err := p.docs.ListCollection(ctx, collection)
			if err != nil {
				return err
			}
			snap := Snapshot{Collection: collection, ReadAt: time.Now().UTC()}
			for _, row := range rows {
				data := row.Data
				snap.Documents = append(snap.Documents, NewDocument(row.ID, row.Path, func(v any) error {
					return json.Unmarshal(data, v)
				}))
			}
			if !emit(snap) {
				return ctx.Err()
			}
			return nil
		})
	}), nil
}
