package couchbase

import (
	"context"
	"fmt"
	"time"

	"github.com/couchbase/gocb/v2"
)

// documentStore is the key-value surface the snapshot store needs
type documentStore interface {
	UpsertDocument(ctx context.Context, docID string, data interface{}, expiry time.Duration) error
	GetDocument(ctx context.Context, docID string, result interface{}) error
}

// DocumentManager handles document reads and writes on one collection
type DocumentManager struct {
	collection *gocb.Collection
}

// NewDocumentManager creates a new document manager
func NewDocumentManager(collection *gocb.Collection) *DocumentManager {
	return &DocumentManager{collection: collection}
}

// UpsertDocument stores or replaces a document; a zero expiry keeps it forever
func (dm *DocumentManager) UpsertDocument(ctx context.Context, docID string, data interface{}, expiry time.Duration) error {
	_, err := dm.collection.Upsert(docID, data, &gocb.UpsertOptions{
		Expiry:  expiry,
		Context: ctx,
	})
	if err != nil {
		return fmt.Errorf("failed to upsert document %s: %w", docID, err)
	}

	return nil
}

// GetDocument retrieves a document; a missing one wraps gocb.ErrDocumentNotFound
func (dm *DocumentManager) GetDocument(ctx context.Context, docID string, result interface{}) error {
	resultDoc, err := dm.collection.Get(docID, &gocb.GetOptions{Context: ctx})
	if err != nil {
		return fmt.Errorf("failed to get document %s: %w", docID, err)
	}

	if err := resultDoc.Content(result); err != nil {
		return fmt.Errorf("failed to parse document content: %w", err)
	}

	return nil
}
