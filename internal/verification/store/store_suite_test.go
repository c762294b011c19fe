package store

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"kycgate/internal/verification/models"
	"kycgate/pkg/platform/sentinel"
)

// recordStore is the behaviour both store implementations share.
type recordStore interface {
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	Create(ctx context.Context, r *models.VerificationRequest) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.VerificationRequest, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status models.Status, reviewedBy *string, now time.Time) (*models.VerificationRequest, error)
	List(ctx context.Context, filter models.ListFilter, page, perPage int) (*models.Page, error)
	Ping(ctx context.Context) error
}

var (
	_ recordStore = (*InMemoryStore)(nil)
	_ recordStore = (*PostgresStore)(nil)
)

var baseTime = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

// storeContract runs against any recordStore. Embedding suites set store in
// SetupTest with an empty backend.
type storeContract struct {
	suite.Suite
	ctx   context.Context
	store recordStore
}

func newRequest(i int) *models.VerificationRequest {
	created := baseTime.Add(time.Duration(i) * time.Minute)
	return &models.VerificationRequest{
		ID:             uuid.New(),
		Username:       fmt.Sprintf("user_%02d", i),
		FirstName:      "Ayşe",
		LastName:       fmt.Sprintf("Yilmaz%c", 'a'+rune(i%26)),
		Email:          fmt.Sprintf("user%02d@example.com", i),
		Phone:          "+905551234567",
		IDImageURL:     fmt.Sprintf("memory://kyc-documents/documents/user_%02d/id.jpg", i),
		SelfieImageURL: fmt.Sprintf("memory://kyc-selfies/selfies/user_%02d/s.jpg", i),
		Status:         models.StatusPending,
		CreatedAt:      created,
		UpdatedAt:      created,
	}
}

func (s *storeContract) seed(n int) []*models.VerificationRequest {
	out := make([]*models.VerificationRequest, 0, n)
	for i := range n {
		r := newRequest(i)
		s.Require().NoError(s.store.Create(s.ctx, r))
		out = append(out, r)
	}
	return out
}

func (s *storeContract) TestCreateAndFind() {
	r := newRequest(1)
	s.Require().NoError(s.store.Create(s.ctx, r))

	got, err := s.store.FindByID(s.ctx, r.ID)
	s.Require().NoError(err)
	s.Equal(r.Username, got.Username)
	s.Equal(r.Email, got.Email)
	s.Equal(r.IDImageURL, got.IDImageURL)
	s.Equal(models.StatusPending, got.Status)
	s.WithinDuration(r.CreatedAt, got.CreatedAt, time.Millisecond)
	s.Nil(got.ReviewedBy)
	s.Nil(got.ReviewedAt)
}

func (s *storeContract) TestFindUnknown() {
	_, err := s.store.FindByID(s.ctx, uuid.New())
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *storeContract) TestExistsProbes() {
	r := newRequest(2)
	s.Require().NoError(s.store.Create(s.ctx, r))

	ok, err := s.store.ExistsByUsername(s.ctx, r.Username)
	s.Require().NoError(err)
	s.True(ok)

	ok, err = s.store.ExistsByEmail(s.ctx, "nobody@example.com")
	s.Require().NoError(err)
	s.False(ok)
}

func (s *storeContract) TestDuplicateUsernameAndEmail() {
	r := newRequest(3)
	s.Require().NoError(s.store.Create(s.ctx, r))

	dupUser := newRequest(4)
	dupUser.Username = r.Username
	s.ErrorIs(s.store.Create(s.ctx, dupUser), models.ErrUsernameTaken)

	dupEmail := newRequest(5)
	dupEmail.Email = r.Email
	s.ErrorIs(s.store.Create(s.ctx, dupEmail), models.ErrEmailTaken)
	s.ErrorIs(s.store.Create(s.ctx, dupEmail), sentinel.ErrConflict)
}

func (s *storeContract) TestUpdateStatus() {
	r := newRequest(6)
	s.Require().NoError(s.store.Create(s.ctx, r))
	reviewedAt := baseTime.Add(time.Hour)
	admin := "admin1"

	got, err := s.store.UpdateStatus(s.ctx, r.ID, models.StatusApproved, &admin, reviewedAt)
	s.Require().NoError(err)
	s.Equal(models.StatusApproved, got.Status)
	s.Require().NotNil(got.ReviewedBy)
	s.Equal("admin1", *got.ReviewedBy)
	s.Require().NotNil(got.ReviewedAt)
	s.WithinDuration(reviewedAt, *got.ReviewedAt, time.Millisecond)
	s.WithinDuration(reviewedAt, got.UpdatedAt, time.Millisecond)

	stored, err := s.store.FindByID(s.ctx, r.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusApproved, stored.Status)
}

func (s *storeContract) TestUpdateStatusWithoutReviewer() {
	r := newRequest(7)
	s.Require().NoError(s.store.Create(s.ctx, r))

	got, err := s.store.UpdateStatus(s.ctx, r.ID, models.StatusRejected, nil, baseTime.Add(time.Hour))
	s.Require().NoError(err)
	s.Equal(models.StatusRejected, got.Status)
	s.Nil(got.ReviewedBy)
	s.NotNil(got.ReviewedAt)
}

func (s *storeContract) TestUpdateStatusUnknownLeavesStoreUnchanged() {
	seeded := s.seed(3)

	_, err := s.store.UpdateStatus(s.ctx, uuid.New(), models.StatusApproved, nil, baseTime)
	s.ErrorIs(err, sentinel.ErrNotFound)

	page, err := s.store.List(s.ctx, models.ListFilter{}, 1, 10)
	s.Require().NoError(err)
	s.Equal(3, page.Total)
	for _, r := range seeded {
		got, err := s.store.FindByID(s.ctx, r.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusPending, got.Status)
		s.Nil(got.ReviewedAt)
	}
}

func (s *storeContract) TestUpdateStatusRejectsSecondReview() {
	r := newRequest(8)
	s.Require().NoError(s.store.Create(s.ctx, r))
	first := "admin1"
	_, err := s.store.UpdateStatus(s.ctx, r.ID, models.StatusApproved, &first, baseTime.Add(time.Hour))
	s.Require().NoError(err)

	second := "admin2"
	_, err = s.store.UpdateStatus(s.ctx, r.ID, models.StatusRejected, &second, baseTime.Add(2*time.Hour))
	s.ErrorIs(err, sentinel.ErrInvalidState)

	got, err := s.store.FindByID(s.ctx, r.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusApproved, got.Status)
	s.Equal("admin1", *got.ReviewedBy)
}

func (s *storeContract) TestListPagination() {
	seeded := s.seed(25)

	page, err := s.store.List(s.ctx, models.ListFilter{}, 2, 10)
	s.Require().NoError(err)
	s.Equal(25, page.Total)
	s.Equal(2, page.Page)
	s.Equal(10, page.PerPage)
	s.True(page.HasNext)
	s.True(page.HasPrev)
	s.Require().Len(page.Items, 10)

	// Newest first: positions 11..20 are seeds 14 down to 5.
	for i, item := range page.Items {
		s.Equal(seeded[14-i].ID, item.ID, "position %d", 11+i)
	}

	last, err := s.store.List(s.ctx, models.ListFilter{}, 3, 10)
	s.Require().NoError(err)
	s.Len(last.Items, 5)
	s.False(last.HasNext)

	beyond, err := s.store.List(s.ctx, models.ListFilter{}, 9, 10)
	s.Require().NoError(err)
	s.Empty(beyond.Items)
	s.Equal(25, beyond.Total)

	huge, err := s.store.List(s.ctx, models.ListFilter{}, math.MaxInt/3+1, 3)
	s.Require().NoError(err)
	s.Empty(huge.Items)
	s.Equal(25, huge.Total)
	s.False(huge.HasNext)
}

func (s *storeContract) TestListFilters() {
	seeded := s.seed(6)
	admin := "admin1"
	_, err := s.store.UpdateStatus(s.ctx, seeded[0].ID, models.StatusApproved, &admin, baseTime.Add(time.Hour))
	s.Require().NoError(err)
	_, err = s.store.UpdateStatus(s.ctx, seeded[1].ID, models.StatusRejected, &admin, baseTime.Add(time.Hour))
	s.Require().NoError(err)

	approved := models.StatusApproved
	page, err := s.store.List(s.ctx, models.ListFilter{Status: &approved}, 1, 10)
	s.Require().NoError(err)
	s.Equal(1, page.Total)
	s.Equal(seeded[0].ID, page.Items[0].ID)

	page, err = s.store.List(s.ctx, models.ListFilter{Search: "USER03@EXAMPLE"}, 1, 10)
	s.Require().NoError(err)
	s.Equal(1, page.Total)
	s.Equal(seeded[3].ID, page.Items[0].ID)

	page, err = s.store.List(s.ctx, models.ListFilter{Search: "yilmaze"}, 1, 10)
	s.Require().NoError(err)
	s.Equal(1, page.Total, "matches last_name")

	pending := models.StatusPending
	page, err = s.store.List(s.ctx, models.ListFilter{Status: &pending, Search: "user_0"}, 1, 10)
	s.Require().NoError(err)
	s.Equal(4, page.Total)

	page, err = s.store.List(s.ctx, models.ListFilter{Search: "%"}, 1, 10)
	s.Require().NoError(err)
	s.Equal(0, page.Total, "wildcards are matched literally")
}

func (s *storeContract) TestPing() {
	s.NoError(s.store.Ping(s.ctx))
}
