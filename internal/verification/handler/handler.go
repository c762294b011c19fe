package handler

import (
	"context"
	"errors"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"kycgate/internal/upload"
	"kycgate/internal/verification/models"
	dErrors "kycgate/pkg/domain-errors"
	"kycgate/pkg/platform/httputil"
	"kycgate/pkg/platform/middleware/auth"
	request "kycgate/pkg/platform/middleware/request"
	"kycgate/pkg/requestcontext"
)

// Service defines the verification operations the handler needs.
type Service interface {
	Submit(ctx context.Context, applicant models.Applicant, idDocument, selfie upload.File) (*models.VerificationRequest, error)
	Get(ctx context.Context, id uuid.UUID) (*models.VerificationRequest, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, upd models.StatusUpdate) (*models.VerificationRequest, error)
	List(ctx context.Context, q models.ListQuery) (*models.Page, error)
}

const (
	fieldIDDocument = "id_document"
	fieldSelfie     = "selfie"

	// multipartMemory is how much of a form is held in memory before parts
	// spill to temporary files.
	multipartMemory = 32 << 20
	formOverhead    = 1 << 20
)

// Handler serves the public submission endpoint and the admin review API.
type Handler struct {
	service      Service
	logger       *slog.Logger
	jwtValidator auth.JWTValidator

	maxFileSize int64
	debugErrors bool
	submitMW    []func(http.Handler) http.Handler
}

type Option func(*Handler)

// WithMaxFileSize bounds each uploaded file. The request body may carry two
// files plus the text fields.
func WithMaxFileSize(n int64) Option {
	return func(h *Handler) {
		h.maxFileSize = n
	}
}

// WithDebugErrors exposes internal error causes in responses.
func WithDebugErrors(enabled bool) Option {
	return func(h *Handler) {
		h.debugErrors = enabled
	}
}

// WithSubmitMiddleware wraps only the public submission route, e.g. with a
// rate limiter.
func WithSubmitMiddleware(mw ...func(http.Handler) http.Handler) Option {
	return func(h *Handler) {
		h.submitMW = append(h.submitMW, mw...)
	}
}

func New(service Service, logger *slog.Logger, jwtValidator auth.JWTValidator, opts ...Option) *Handler {
	h := &Handler{
		service:      service,
		logger:       logger,
		jwtValidator: jwtValidator,
		maxFileSize:  20 << 20,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register registers the verification routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.With(h.submitMW...).Post("/api/verification", h.handleSubmit)

	r.Group(func(admin chi.Router) {
		admin.Use(auth.RequireAuth(h.jwtValidator, h.logger))
		admin.Get("/api/verifications", h.handleList)
		admin.Get("/api/verifications/{id}", h.handleGet)
		admin.Patch("/api/verifications/{id}", h.handleUpdateStatus)
	})
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	r.Body = http.MaxBytesReader(w, r.Body, 2*h.maxFileSize+formOverhead)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			h.writeError(ctx, w, dErrors.Wrap(err, dErrors.CodePayloadTooLarge, "request body too large"))
			return
		}
		h.writeError(ctx, w, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid multipart form"))
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	applicant := models.Applicant{
		Username:  r.FormValue("username"),
		FirstName: r.FormValue("first_name"),
		LastName:  r.FormValue("last_name"),
		Email:     r.FormValue("email"),
		Phone:     r.FormValue("phone"),
	}
	idDocument, err := formFile(r.MultipartForm, fieldIDDocument)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	selfie, err := formFile(r.MultipartForm, fieldSelfie)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}

	record, err := h.service.Submit(ctx, applicant, idDocument, selfie)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}

	h.logger.InfoContext(ctx, "verification submission accepted",
		"verification_id", record.ID.String(),
		"request_id", requestID,
	)
	httputil.WriteJSON(w, http.StatusCreated, SubmissionResponse{
		Success: true,
		Message: "verification request submitted successfully",
		Data: SubmissionData{
			ID:       record.ID.String(),
			Status:   record.Status.String(),
			Username: record.Username,
		},
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query()

	page, err := positiveInt(query.Get("page"), "page")
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	perPage, err := positiveInt(query.Get("per_page"), "per_page")
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}

	filter := models.ListFilter{Search: query.Get("search")}
	if raw := strings.TrimSpace(query.Get("status")); raw != "" {
		status, err := models.ParseStatus(raw)
		if err != nil {
			h.writeError(ctx, w, err)
			return
		}
		filter.Status = &status
	}

	result, err := h.service.List(ctx, models.ListQuery{Filter: filter, Page: page, PerPage: perPage})
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toListResponse(result))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := parseID(r)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}

	record, err := h.service.Get(ctx, id)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toVerificationResponse(record))
}

func (h *Handler) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	id, err := parseID(r)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[UpdateStatusRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	reviewedBy := req.ReviewedBy
	if reviewedBy == nil {
		if admin := requestcontext.AdminID(ctx); admin != "" {
			reviewedBy = &admin
		}
	}

	record, err := h.service.UpdateStatus(ctx, id, models.StatusUpdate{Status: req.status, ReviewedBy: reviewedBy})
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ReviewResponse{
		Success: true,
		Message: "verification request " + record.Status.String(),
		Data:    toVerificationResponse(record),
	})
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, err error) {
	status := httputil.StatusFor(dErrors.CodeOf(err))
	attrs := []any{
		"error", err,
		"status", status,
		"request_id", request.GetRequestID(ctx),
	}
	if status >= http.StatusInternalServerError {
		h.logger.ErrorContext(ctx, "verification request failed", attrs...)
	} else {
		h.logger.WarnContext(ctx, "verification request rejected", attrs...)
	}
	httputil.WriteError(w, err, httputil.WithDetails(h.debugErrors))
}

func formFile(form *multipart.Form, field string) (upload.File, error) {
	headers := form.File[field]
	if len(headers) == 0 {
		return upload.File{}, dErrors.New(dErrors.CodeValidation, field+": field required")
	}
	return upload.FromMultipart(headers[0]), nil
}

// parseID treats a malformed id like an unknown one.
func parseID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, dErrors.Wrap(err, dErrors.CodeNotFound, "verification request not found")
	}
	return id, nil
}

// positiveInt parses an optional query parameter. Absent means 0, which the
// service replaces with its default.
func positiveInt(raw, name string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, dErrors.New(dErrors.CodeValidation, name+" must be a positive integer")
	}
	return n, nil
}
