package store

import (
	"bytes"
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"kycgate/internal/verification/models"
)

// InMemoryStore keeps verification requests in a map. Uniqueness is enforced
// under the same lock as the insert.
type InMemoryStore struct {
	mu         sync.RWMutex
	requests   map[uuid.UUID]*models.VerificationRequest
	byUsername map[string]uuid.UUID
	byEmail    map[string]uuid.UUID
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{
		requests:   make(map[uuid.UUID]*models.VerificationRequest),
		byUsername: make(map[string]uuid.UUID),
		byEmail:    make(map[string]uuid.UUID),
	}
}

func (s *InMemoryStore) ExistsByUsername(_ context.Context, username string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byUsername[username]
	return ok, nil
}

func (s *InMemoryStore) ExistsByEmail(_ context.Context, email string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byEmail[email]
	return ok, nil
}

func (s *InMemoryStore) Create(_ context.Context, r *models.VerificationRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byUsername[r.Username]; ok {
		return models.ErrUsernameTaken
	}
	if _, ok := s.byEmail[r.Email]; ok {
		return models.ErrEmailTaken
	}
	s.requests[r.ID] = clone(r)
	s.byUsername[r.Username] = r.ID
	s.byEmail[r.Email] = r.ID
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, id uuid.UUID) (*models.VerificationRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.requests[id]
	if !ok {
		return nil, models.ErrRequestNotFound
	}
	return clone(r), nil
}

func (s *InMemoryStore) UpdateStatus(_ context.Context, id uuid.UUID, status models.Status, reviewedBy *string, now time.Time) (*models.VerificationRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requests[id]
	if !ok {
		return nil, models.ErrRequestNotFound
	}
	if r.Status.IsTerminal() {
		return nil, models.ErrAlreadyReviewed
	}
	r.Status = status
	r.UpdatedAt = now
	r.ReviewedAt = &now
	if reviewedBy != nil {
		by := *reviewedBy
		r.ReviewedBy = &by
	}
	return clone(r), nil
}

func (s *InMemoryStore) List(_ context.Context, filter models.ListFilter, page, perPage int) (*models.Page, error) {
	s.mu.RLock()
	matched := make([]*models.VerificationRequest, 0, len(s.requests))
	search := strings.ToLower(strings.TrimSpace(filter.Search))
	for _, r := range s.requests {
		if filter.Status != nil && r.Status != *filter.Status {
			continue
		}
		if search != "" && !matches(r, search) {
			continue
		}
		matched = append(matched, r)
	}
	s.mu.RUnlock()

	slices.SortFunc(matched, func(a, b *models.VerificationRequest) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return bytes.Compare(b.ID[:], a.ID[:])
	})

	total := len(matched)
	start := total
	if offset, ok := models.Offset(page, perPage); ok {
		start = min(offset, total)
	}
	end := min(start+perPage, total)
	items := make([]*models.VerificationRequest, 0, end-start)
	for _, r := range matched[start:end] {
		items = append(items, clone(r))
	}
	return models.NewPage(items, total, page, perPage), nil
}

func (s *InMemoryStore) Ping(context.Context) error { return nil }

func matches(r *models.VerificationRequest, search string) bool {
	for _, field := range []string{r.Username, r.Email, r.FirstName, r.LastName} {
		if strings.Contains(strings.ToLower(field), search) {
			return true
		}
	}
	return false
}

func clone(r *models.VerificationRequest) *models.VerificationRequest {
	c := *r
	if r.ReviewedBy != nil {
		by := *r.ReviewedBy
		c.ReviewedBy = &by
	}
	if r.ReviewedAt != nil {
		at := *r.ReviewedAt
		c.ReviewedAt = &at
	}
	return &c
}
