package couchbase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/couchbase/gocb/v2"
	"github.com/rs/zerolog/log"
	"stealthcompany.com/erdashboard/internal/refresher"
)

// LatestKey is the single document holding the most recent snapshot
const LatestKey = "erdashboard::latest"

// SnapshotStore keeps the latest dashboard snapshot in Couchbase so that a
// restarted service, or another replica, can serve data before its first cycle
type SnapshotStore struct {
	docs documentStore
	ttl  time.Duration
}

// NewSnapshotStore creates a store writing through docs with the given expiry
func NewSnapshotStore(docs documentStore, ttl time.Duration) *SnapshotStore {
	return &SnapshotStore{docs: docs, ttl: ttl}
}

// Publish overwrites the stored snapshot
func (s *SnapshotStore) Publish(ctx context.Context, snapshot refresher.Snapshot) error {
	if err := s.docs.UpsertDocument(ctx, LatestKey, snapshot, s.ttl); err != nil {
		return fmt.Errorf("failed to store snapshot %s: %w", snapshot.CycleID, err)
	}

	log.Debug().
		Str("cycle_id", snapshot.CycleID).
		Dur("ttl", s.ttl).
		Msg("Snapshot stored")

	return nil
}

// Load returns the stored snapshot; ok is false when none exists or it expired
func (s *SnapshotStore) Load(ctx context.Context) (snapshot refresher.Snapshot, ok bool, err error) {
	err = s.docs.GetDocument(ctx, LatestKey, &snapshot)
	if errors.Is(err, gocb.ErrDocumentNotFound) {
		return refresher.Snapshot{}, false, nil
	}
	if err != nil {
		return refresher.Snapshot{}, false, fmt.Errorf("failed to load snapshot: %w", err)
	}
	return snapshot, true, nil
}
