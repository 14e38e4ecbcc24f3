package csvimport

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"ledger/internal/cache"
)

// Artifact is a parsed upload waiting for the user to confirm a mapping.
type Artifact struct {
	Token     string
	UserID    string
	Preview   Preview
	CreatedAt time.Time
}

// PreviewStore keeps at most one artifact per user, each for a limited
// time. Tokens are single use.
type PreviewStore struct {
	mu     sync.Mutex
	items  *cache.LRUCache[Artifact]
	byUser map[string]string
	now    func() time.Time
}

func NewPreviewStore(capacity int, ttl time.Duration) *PreviewStore {
	return &PreviewStore{
		items:  cache.NewLRUCache[Artifact](capacity, ttl),
		byUser: make(map[string]string),
		now:    time.Now,
	}
}

// WithClock swaps the time source for tests.
func (s *PreviewStore) WithClock(now func() time.Time) *PreviewStore {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
	s.items.WithClock(now)
	return s
}

// Put stores p for userID, replacing any earlier upload of that user.
func (s *PreviewStore) Put(userID string, p Preview) Artifact {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.byUser[userID]; ok {
		s.items.Delete(old)
	}
	a := Artifact{
		Token:     uuid.NewString(),
		UserID:    userID,
		Preview:   p,
		CreatedAt: s.now(),
	}
	s.items.Set(a.Token, a)
	s.byUser[userID] = a.Token
	return a
}

// Get returns the artifact without consuming it.
func (s *PreviewStore) Get(userID, token string) (Artifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.items.Get(token)
	if !ok || a.UserID != userID {
		return Artifact{}, ErrPreviewNotFound
	}
	return a, nil
}

// Take returns the artifact and invalidates its token.
func (s *PreviewStore) Take(userID, token string) (Artifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.items.Get(token)
	if !ok || a.UserID != userID {
		return Artifact{}, ErrPreviewNotFound
	}
	s.items.Delete(token)
	if s.byUser[userID] == token {
		delete(s.byUser, userID)
	}
	return a, nil
}

// Discard drops the artifact; abandoning is Take without using the rows.
func (s *PreviewStore) Discard(userID, token string) error {
	_, err := s.Take(userID, token)
	return err
}

// CleanExpired purges expired artifacts and forgets their owners.
func (s *PreviewStore) CleanExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := s.items.CleanExpired()
	for user, token := range s.byUser {
		if _, ok := s.items.Get(token); !ok {
			delete(s.byUser, user)
		}
	}
	return removed
}

// Size is the number of held artifacts.
func (s *PreviewStore) Size() int {
	return s.items.Size()
}
