package docstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// FirestoreOptions configures NewFirestore.
type FirestoreOptions struct {
	ProjectID       string
	CredentialsFile string
}

// Firestore is the hosted backend. Document fields use the firestore struct
// tags of the values passed to Append.
type Firestore struct {
	client *firestore.Client
}

// NewFirestore opens a client for the configured project.
func NewFirestore(ctx context.Context, opts FirestoreOptions) (*Firestore, error) {
	projectID := strings.TrimSpace(opts.ProjectID)
	if projectID == "" {
		return nil, errors.New("docstore: firestore project id is required")
	}
	var clientOpts []option.ClientOption
	if opts.CredentialsFile != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(opts.CredentialsFile))
	}
	client, err := firestore.NewClient(ctx, projectID, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("docstore: firestore client: %w", err)
	}
	return &Firestore{client: client}, nil
}

// Write sets the document at path, merging all given fields when opts.Merge is set.
func (f *Firestore) Write(ctx context.Context, path string, data map[string]any, opts WriteOptions) error {
	doc := f.client.Doc(strings.Trim(path, "/"))
	if doc == nil {
		return fmt.Errorf("docstore: invalid document path %q", path)
	}
	var setOpts []firestore.SetOption
	if opts.Merge {
		setOpts = append(setOpts, firestore.MergeAll)
	}
	if _, err := doc.Set(ctx, data, setOpts...); err != nil {
		return fmt.Errorf("docstore: write %s: %w", path, err)
	}
	return nil
}

// Append adds data with a generated id.
func (f *Firestore) Append(ctx context.Context, collection string, data any) (string, error) {
	coll := f.client.Collection(strings.Trim(collection, "/"))
	if coll == nil {
		return "", fmt.Errorf("docstore: invalid collection path %q", collection)
	}
	ref, _, err := coll.Add(ctx, data)
	if err != nil {
		return "", fmt.Errorf("docstore: append to %s: %w", collection, err)
	}
	return ref.ID, nil
}

// Subscribe follows the collection's query snapshots.
func (f *Firestore) Subscribe(ctx context.Context, collection string) (*Subscription, error) {
	collection = strings.Trim(collection, "/")
	coll := f.client.Collection(collection)
	if coll == nil {
		return nil, fmt.Errorf("docstore: invalid collection path %q", collection)
	}
	return startSubscription(ctx, func(ctx context.Context, emit emitFunc) error {
		it := coll.Snapshots(ctx)
		defer it.Stop()
		for {
			qs, err := it.Next()
			if errors.Is(err, iterator.Done) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("docstore: snapshot %s: %w", collection, err)
			}
			docs, err := qs.Documents.GetAll()
			if err != nil {
				return fmt.Errorf("docstore: read snapshot %s: %w", collection, err)
			}
			snap := Snapshot{Collection: collection, ReadAt: qs.ReadTime}
			for _, d := range docs {
				d := d
				snap.Documents = append(snap.Documents, NewDocument(d.Ref.ID, d.Ref.Path, d.DataTo))
			}
			if !emit(snap) {
				return ctx.Err()
			}
		}
	}), nil
}

// Close releases the client.
func (f *Firestore) Close() error {
	return f.client.Close()
}
