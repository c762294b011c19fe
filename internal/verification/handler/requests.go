package handler

import (
	"strings"

	"kycgate/internal/verification/models"
	dErrors "kycgate/pkg/domain-errors"
)

// UpdateStatusRequest is the PATCH body for a review decision.
type UpdateStatusRequest struct {
	Status     string  `json:"status"`
	ReviewedBy *string `json:"reviewed_by,omitempty"`

	status models.Status
}

// Validate parses the status and trims the reviewer.
func (r *UpdateStatusRequest) Validate() error {
	if strings.TrimSpace(r.Status) == "" {
		return dErrors.New(dErrors.CodeValidation, "status is required")
	}
	status, err := models.ParseStatus(r.Status)
	if err != nil {
		return err
	}
	if status == models.StatusPending {
		return dErrors.New(dErrors.CodeValidation, "status must be approved or rejected")
	}
	r.status = status

	if r.ReviewedBy != nil {
		by := strings.TrimSpace(*r.ReviewedBy)
		if len(by) > 100 {
			return dErrors.New(dErrors.CodeValidation, "reviewed_by must be at most 100 characters")
		}
		if by == "" {
			r.ReviewedBy = nil
		} else {
			r.ReviewedBy = &by
		}
	}
	return nil
}
