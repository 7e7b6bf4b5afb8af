package magstand

import (
	"context"
	"fmt"
)

// DefaultSyncLimit is the batch size used when a caller passes limit <= 0.
const DefaultSyncLimit = 10

// Source is the port to the remote content API. Implementations return raw
// post records for up to limit posts; an unreachable or misbehaving remote
// should surface as an empty slice plus an error, never a panic.
type Source interface {
	FetchPosts(ctx context.Context, limit int) ([]RawPost, error)
}

// SyncResult reports one synchronization cycle. Fetched is the number of
// records received from the remote; the embedded UpsertStats say what the
// store actually did with them.
type SyncResult struct {
	Fetched int
	UpsertStats
}

// Syncer drives the fetch -> assign tiers -> merge pipeline that keeps the
// local cache in step with the remote content API.
type Syncer struct {
	store  *Store
	source Source
	tiers  *TierAssigner
}

// NewSyncer wires a sync orchestrator over the given store and remote source.
func NewSyncer(store *Store, source Source) *Syncer {
	return &Syncer{
		store:  store,
		source: source,
		tiers:  NewTierAssigner(),
	}
}

// Sync runs one synchronization cycle: fetch up to limit posts from the
// remote, normalize them, assign tiers to previously-undeclared records, and
// merge the batch into the store.
//
// An empty remote result leaves the store untouched and reports zero fetched.
// Per-record store failures are folded into the result's Failed count and the
// returned error; the rest of the batch still lands. Out-of-order completion
// of concurrent cycles is safe because admission is decided per record by the
// modified timestamp, not by call order.
func (s *Syncer) Sync(ctx context.Context, limit int) (SyncResult, error) {
	if limit <= 0 {
		limit = DefaultSyncLimit
	}
	raw, err := s.source.FetchPosts(ctx, limit)
	if err != nil {
		return SyncResult{}, fmt.Errorf("fetch posts: %w", err)
	}
	if len(raw) == 0 {
		return SyncResult{}, nil
	}

	posts := make([]Post, 0, len(raw))
	for _, r := range raw {
		posts = append(posts, r.Normalize())
	}
	s.tiers.Assign(posts)

	stats, err := s.store.UpsertBatch(posts)
	result := SyncResult{Fetched: len(raw), UpsertStats: stats}
	if err != nil {
		return result, fmt.Errorf("upsert batch: %w", err)
	}
	return result, nil
}

// RefreshInBackground is the best-effort variant of Sync used by UI lifecycle
// triggers: any failure collapses to a zero-progress result instead of an
// error, and the caller is expected to re-read the store afterwards to pick
// up whatever landed. The next lifecycle trigger is the retry policy.
func (s *Syncer) RefreshInBackground(ctx context.Context, limit int) SyncResult {
	result, _ := s.Sync(ctx, limit)
	return result
}
