package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"kycgate/internal/upload"
	"kycgate/internal/verification/metrics"
	"kycgate/internal/verification/models"
	"kycgate/internal/verification/validation"
	dErrors "kycgate/pkg/domain-errors"
	"kycgate/pkg/platform/sentinel"
	"kycgate/pkg/requestcontext"
)

// Store persists verification requests. Implementations return sentinel
// errors; this package turns them into client-facing codes.
type Store interface {
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	Create(ctx context.Context, r *models.VerificationRequest) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.VerificationRequest, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status models.Status, reviewedBy *string, now time.Time) (*models.VerificationRequest, error)
	List(ctx context.Context, filter models.ListFilter, page, perPage int) (*models.Page, error)
}

// Uploader stores applicant images.
type Uploader interface {
	Validate(f upload.File) error
	UploadIDDocument(ctx context.Context, f upload.File, username string) (*upload.Result, error)
	UploadSelfie(ctx context.Context, f upload.File, username string) (*upload.Result, error)
}

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// Service runs submissions and reviews. Safe for concurrent use.
type Service struct {
	store    Store
	uploader Uploader
	logger   *slog.Logger
	metrics  *metrics.Metrics

	defaultPageSize int
	maxPageSize     int
}

type Option func(*Service)

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithPagination overrides the default and maximum page sizes.
func WithPagination(defaultSize, maxSize int) Option {
	return func(s *Service) {
		if maxSize > 0 {
			s.maxPageSize = maxSize
		}
		if defaultSize > 0 && defaultSize <= s.maxPageSize {
			s.defaultPageSize = defaultSize
		}
	}
}

func New(store Store, uploader Uploader, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		store:           store,
		uploader:        uploader,
		logger:          logger,
		defaultPageSize: defaultPageSize,
		maxPageSize:     maxPageSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit validates the applicant and both files, checks uniqueness, uploads
// the two images concurrently and only then writes the record. Blobs stored
// before a later failure are left in place.
func (s *Service) Submit(ctx context.Context, in models.Applicant, idDocument, selfie upload.File) (*models.VerificationRequest, error) {
	requestID := requestcontext.RequestID(ctx)

	applicant, err := validation.Validate(in)
	if err != nil {
		s.metrics.IncSubmission(metrics.OutcomeInvalid)
		return nil, toValidationError(err)
	}
	for _, f := range []upload.File{idDocument, selfie} {
		if err := s.uploader.Validate(f); err != nil {
			s.metrics.IncSubmission(metrics.OutcomeInvalid)
			return nil, err
		}
	}

	if err := s.ensureUnique(ctx, applicant); err != nil {
		return nil, err
	}

	var idResult, selfieResult *upload.Result
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		start := time.Now()
		defer func() { s.metrics.ObserveUpload("id_document", time.Since(start)) }()
		res, err := s.uploader.UploadIDDocument(gctx, idDocument, applicant.Username)
		idResult = res
		return err
	})
	g.Go(func() error {
		start := time.Now()
		defer func() { s.metrics.ObserveUpload("selfie", time.Since(start)) }()
		res, err := s.uploader.UploadSelfie(gctx, selfie, applicant.Username)
		selfieResult = res
		return err
	})
	if err := g.Wait(); err != nil {
		s.metrics.IncSubmission(metrics.OutcomeFailed)
		s.logger.ErrorContext(ctx, "image upload failed, no record written",
			"username", applicant.Username,
			"error", err,
			"request_id", requestID,
		)
		if dErrors.CodeOf(err) == dErrors.CodeInternal {
			return nil, dErrors.Wrap(err, dErrors.CodeStorage, "file upload failed")
		}
		return nil, err
	}

	now := requestcontext.Now(ctx)
	record := &models.VerificationRequest{
		ID:             uuid.New(),
		Username:       applicant.Username,
		FirstName:      applicant.FirstName,
		LastName:       applicant.LastName,
		Email:          applicant.Email,
		Phone:          applicant.Phone,
		IDImageURL:     idResult.URL,
		SelfieImageURL: selfieResult.URL,
		Status:         models.StatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.store.Create(ctx, record); err != nil {
		if conflict := conflictError(err); conflict != nil {
			s.metrics.IncSubmission(metrics.OutcomeConflict)
			return nil, conflict
		}
		s.metrics.IncSubmission(metrics.OutcomeFailed)
		s.logger.ErrorContext(ctx, "failed to save verification request",
			"username", applicant.Username,
			"error", err,
			"request_id", requestID,
		)
		return nil, dErrors.Wrap(err, dErrors.CodePersistence, "failed to save verification request")
	}

	s.metrics.IncSubmission(metrics.OutcomeCreated)
	s.logger.InfoContext(ctx, "verification request submitted",
		"verification_id", record.ID.String(),
		"username", record.Username,
		"request_id", requestID,
	)
	return record, nil
}

func (s *Service) ensureUnique(ctx context.Context, a models.Applicant) error {
	taken, err := s.store.ExistsByUsername(ctx, a.Username)
	if err != nil {
		return s.persistenceError(ctx, "username probe failed", err)
	}
	if taken {
		s.metrics.IncSubmission(metrics.OutcomeConflict)
		return dErrors.Wrap(models.ErrUsernameTaken, dErrors.CodeConflict, "username already registered")
	}

	taken, err = s.store.ExistsByEmail(ctx, a.Email)
	if err != nil {
		return s.persistenceError(ctx, "email probe failed", err)
	}
	if taken {
		s.metrics.IncSubmission(metrics.OutcomeConflict)
		return dErrors.Wrap(models.ErrEmailTaken, dErrors.CodeConflict, "email already registered")
	}
	return nil
}

// Get returns one verification request.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.VerificationRequest, error) {
	r, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(err, dErrors.CodeNotFound, "verification request not found")
		}
		return nil, s.persistenceError(ctx, "failed to load verification request", err)
	}
	return r, nil
}

// UpdateStatus approves or rejects a pending request.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, upd models.StatusUpdate) (*models.VerificationRequest, error) {
	if upd.Status != models.StatusApproved && upd.Status != models.StatusRejected {
		return nil, dErrors.New(dErrors.CodeValidation, "status must be approved or rejected")
	}
	var reviewedBy *string
	if upd.ReviewedBy != nil {
		if by := strings.TrimSpace(*upd.ReviewedBy); by != "" {
			reviewedBy = &by
		}
	}

	r, err := s.store.UpdateStatus(ctx, id, upd.Status, reviewedBy, requestcontext.Now(ctx))
	if err != nil {
		switch {
		case errors.Is(err, sentinel.ErrNotFound):
			return nil, dErrors.Wrap(err, dErrors.CodeNotFound, "verification request not found")
		case errors.Is(err, sentinel.ErrInvalidState):
			return nil, dErrors.Wrap(err, dErrors.CodeInvalidState, "verification request has already been reviewed")
		}
		return nil, s.persistenceError(ctx, "failed to update verification status", err)
	}

	s.metrics.IncReview(string(r.Status))
	s.logger.InfoContext(ctx, "verification request reviewed",
		"verification_id", id.String(),
		"status", string(r.Status),
		"admin_id", requestcontext.AdminID(ctx),
		"request_id", requestcontext.RequestID(ctx),
	)
	return r, nil
}

// List resolves pagination defaults and returns one page.
func (s *Service) List(ctx context.Context, q models.ListQuery) (*models.Page, error) {
	page := q.Page
	if page == 0 {
		page = 1
	}
	if page < 1 {
		return nil, dErrors.New(dErrors.CodeValidation, "page must be at least 1")
	}
	perPage := q.PerPage
	if perPage == 0 {
		perPage = s.defaultPageSize
	}
	if perPage < 1 || perPage > s.maxPageSize {
		return nil, dErrors.New(dErrors.CodeValidation,
			fmt.Sprintf("per_page must be between 1 and %d", s.maxPageSize))
	}
	if _, ok := models.Offset(page, perPage); !ok {
		return nil, dErrors.New(dErrors.CodeValidation, "page is out of range")
	}

	filter := q.Filter
	filter.Search = strings.TrimSpace(filter.Search)
	result, err := s.store.List(ctx, filter, page, perPage)
	if err != nil {
		return nil, s.persistenceError(ctx, "failed to list verification requests", err)
	}
	return result, nil
}

func (s *Service) persistenceError(ctx context.Context, msg string, err error) error {
	s.logger.ErrorContext(ctx, msg,
		"error", err,
		"request_id", requestcontext.RequestID(ctx),
	)
	return dErrors.Wrap(err, dErrors.CodePersistence, "database operation failed")
}

func toValidationError(err error) error {
	var verr *validation.Error
	if errors.As(err, &verr) {
		return dErrors.Wrap(err, dErrors.CodeValidation, verr.Error())
	}
	return dErrors.Wrap(err, dErrors.CodeValidation, "invalid submission")
}

func conflictError(err error) error {
	switch {
	case errors.Is(err, models.ErrUsernameTaken):
		return dErrors.Wrap(err, dErrors.CodeConflict, "username already registered")
	case errors.Is(err, models.ErrEmailTaken):
		return dErrors.Wrap(err, dErrors.CodeConflict, "email already registered")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConflict, "verification request already exists")
	}
	return nil
}
