package models

import (
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	dErrors "kycgate/pkg/domain-errors"
)

// Status is the review state of a verification request.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// ParseStatus accepts the three known statuses, case-insensitively.
func ParseStatus(s string) (Status, error) {
	switch st := Status(strings.ToLower(strings.TrimSpace(s))); st {
	case StatusPending, StatusApproved, StatusRejected:
		return st, nil
	}
	return "", dErrors.New(dErrors.CodeValidation, "status must be one of pending, approved, rejected")
}

func (s Status) String() string { return string(s) }

// IsTerminal reports whether no further transition is allowed.
func (s Status) IsTerminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// VerificationRequest is one applicant submission and its review outcome.
type VerificationRequest struct {
	ID             uuid.UUID
	Username       string
	FirstName      string
	LastName       string
	Email          string
	Phone          string
	IDImageURL     string
	SelfieImageURL string
	Status         Status
	CreatedAt      time.Time
	UpdatedAt      time.Time
	ReviewedBy     *string
	ReviewedAt     *time.Time
}

// Applicant is the raw personal data of a submission, before validation.
type Applicant struct {
	Username  string
	FirstName string
	LastName  string
	Email     string
	Phone     string
}

// StatusUpdate is an admin review decision.
type StatusUpdate struct {
	Status     Status
	ReviewedBy *string
}

// ListFilter narrows the admin listing. Zero values mean no restriction.
type ListFilter struct {
	Status *Status
	Search string
}

// ListQuery is a listing request as received from the API. Zero page values
// fall back to the configured defaults.
type ListQuery struct {
	Filter  ListFilter
	Page    int
	PerPage int
}

// Page is one window of a filtered, ordered listing.
type Page struct {
	Items   []*VerificationRequest
	Total   int
	Page    int
	PerPage int
	HasNext bool
	HasPrev bool
}

// NewPage derives the navigation flags from the window and the total count.
func NewPage(items []*VerificationRequest, total, page, perPage int) *Page {
	if items == nil {
		items = []*VerificationRequest{}
	}
	hasNext := false
	if offset, ok := Offset(page, perPage); ok {
		hasNext = offset < total-perPage
	}
	return &Page{
		Items:   items,
		Total:   total,
		Page:    page,
		PerPage: perPage,
		HasNext: hasNext,
		HasPrev: page > 1,
	}
}

// Offset returns (page-1)*perPage. ok is false when page or perPage is below
// 1 or when page*perPage does not fit in an int.
func Offset(page, perPage int) (offset int, ok bool) {
	if page < 1 || perPage < 1 || page > math.MaxInt/perPage {
		return 0, false
	}
	return (page - 1) * perPage, true
}
