package repository

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/udupa-navya/cf-feedback-agent/internal/apperrors"
	"github.com/udupa-navya/cf-feedback-agent/internal/models"
)

type membershipKey struct {
	clusterID  uuid.UUID
	feedbackID uuid.UUID
}

type storedItem struct {
	item        models.FeedbackItem
	processedAt *time.Time
}

// MemoryStore implements the feedback, cluster and digest stores in process memory.
// It backs dry runs and tests. Values are copied on the way in and out.
type MemoryStore struct {
	mu          sync.Mutex
	items       map[uuid.UUID]*storedItem
	clusters    map[uuid.UUID]*models.Cluster
	memberships map[membershipKey]time.Time
	digests     []*models.Digest
	now         func() time.Time
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		items:       make(map[uuid.UUID]*storedItem),
		clusters:    make(map[uuid.UUID]*models.Cluster),
		memberships: make(map[membershipKey]time.Time),
		now:         time.Now,
	}
}

func (s *MemoryStore) InsertFeedback(_ context.Context, item models.FeedbackItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[item.ID]; !ok {
		s.items[item.ID] = &storedItem{item: item}
	}

	return nil
}

func (s *MemoryStore) ListUnprocessed(_ context.Context, limit int) ([]models.FeedbackItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.FeedbackItem

	for _, st := range s.items {
		if st.processedAt == nil {
			out = append(out, st.item)
		}
	}

	slices.SortFunc(out, func(a, b models.FeedbackItem) int {
		if c := a.ReceivedAt.Compare(b.ReceivedAt); c != 0 {
			return c
		}

		return slices.Compare(a.ID[:], b.ID[:])
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}

	return out, nil
}

func (s *MemoryStore) MarkProcessed(_ context.Context, ids []uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range ids {
		if st, ok := s.items[id]; ok && st.processedAt == nil {
			t := at
			st.processedAt = &t
		}
	}

	return nil
}

func (s *MemoryStore) LoadActiveClusters(_ context.Context, since time.Time) ([]*models.Cluster, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*models.Cluster

	for _, c := range s.clusters {
		if !c.LastSeen.Before(since) || c.EffectiveFixStatus() == models.FixStatusFixDeployed {
			out = append(out, c.Clone())
		}
	}

	slices.SortFunc(out, func(a, b *models.Cluster) int {
		if c := a.FirstSeen.Compare(b.FirstSeen); c != 0 {
			return c
		}

		return slices.Compare(a.ID[:], b.ID[:])
	})

	return out, nil
}

func (s *MemoryStore) GetCluster(_ context.Context, id uuid.UUID) (*models.Cluster, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.clusters[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("cluster", "cluster not found")
	}

	return c.Clone(), nil
}

func (s *MemoryStore) UpsertCluster(_ context.Context, c *models.Cluster) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.clusters[c.ID] = c.Clone()

	return nil
}

func (s *MemoryStore) AddMembership(_ context.Context, clusterID, feedbackID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := membershipKey{clusterID: clusterID, feedbackID: feedbackID}
	if _, ok := s.memberships[key]; !ok {
		s.memberships[key] = s.now()
	}

	return nil
}

func (s *MemoryStore) MembershipExists(_ context.Context, clusterID, feedbackID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.memberships[membershipKey{clusterID: clusterID, feedbackID: feedbackID}]

	return ok, nil
}

func (s *MemoryStore) ClusterForItem(_ context.Context, feedbackID uuid.UUID) (uuid.UUID, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		found    uuid.UUID
		earliest time.Time
		ok       bool
	)

	for key, at := range s.memberships {
		if key.feedbackID != feedbackID {
			continue
		}

		if !ok || at.Before(earliest) {
			found, earliest, ok = key.clusterID, at, true
		}
	}

	return found, ok, nil
}

func (s *MemoryStore) SaveDigest(_ context.Context, d *models.Digest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.digests {
		if existing.ID == d.ID {
			return nil
		}
	}

	saved := *d
	s.digests = append(s.digests, &saved)

	return nil
}

// Digests returns the saved digests in save order.
func (s *MemoryStore) Digests() []*models.Digest {
	s.mu.Lock()
	defer s.mu.Unlock()

	return slices.Clone(s.digests)
}

// MembershipCount returns the number of distinct (cluster, item) pairs.
func (s *MemoryStore) MembershipCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.memberships)
}
