package handler

import (
	"time"

	"kycgate/internal/verification/models"
)

// VerificationResponse is the public shape of a verification request.
type VerificationResponse struct {
	ID             string     `json:"id"`
	Username       string     `json:"username"`
	FirstName      string     `json:"first_name"`
	LastName       string     `json:"last_name"`
	Email          string     `json:"email"`
	Phone          string     `json:"phone"`
	IDImageURL     string     `json:"id_image_url"`
	SelfieImageURL string     `json:"selfie_image_url"`
	Status         string     `json:"status"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	ReviewedBy     *string    `json:"reviewed_by"`
	ReviewedAt     *time.Time `json:"reviewed_at"`
}

type SubmissionData struct {
	ID       string `json:"id"`
	Status   string `json:"status"`
	Username string `json:"username"`
}

type SubmissionResponse struct {
	Success bool           `json:"success"`
	Message string         `json:"message"`
	Data    SubmissionData `json:"data"`
}

type ReviewResponse struct {
	Success bool                 `json:"success"`
	Message string               `json:"message"`
	Data    VerificationResponse `json:"data"`
}

type ListResponse struct {
	Items   []VerificationResponse `json:"items"`
	Total   int                    `json:"total"`
	Page    int                    `json:"page"`
	PerPage int                    `json:"per_page"`
	HasNext bool                   `json:"has_next"`
	HasPrev bool                   `json:"has_prev"`
}

func toVerificationResponse(r *models.VerificationRequest) VerificationResponse {
	return VerificationResponse{
		ID:             r.ID.String(),
		Username:       r.Username,
		FirstName:      r.FirstName,
		LastName:       r.LastName,
		Email:          r.Email,
		Phone:          r.Phone,
		IDImageURL:     r.IDImageURL,
		SelfieImageURL: r.SelfieImageURL,
		Status:         r.Status.String(),
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
		ReviewedBy:     r.ReviewedBy,
		ReviewedAt:     r.ReviewedAt,
	}
}

func toListResponse(p *models.Page) ListResponse {
	items := make([]VerificationResponse, 0, len(p.Items))
	for _, r := range p.Items {
		items = append(items, toVerificationResponse(r))
	}
	return ListResponse{
		Items:   items,
		Total:   p.Total,
		Page:    p.Page,
		PerPage: p.PerPage,
		HasNext: p.HasNext,
		HasPrev: p.HasPrev,
	}
}
