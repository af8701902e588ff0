package invoices

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/thea-app/thea/internal/auth"
	"github.com/thea-app/thea/internal/platform/httpx"
	"github.com/thea-app/thea/internal/shared"
)

const uploadFieldName = "invoiceFile"

// HandlerConfig carries the upload policy for the ingestion endpoint.
type HandlerConfig struct {
	TempDir      string
	MaxFileSize  int64
	AllowedTypes []string
}

// Handler exposes the invoice HTTP API.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
	cfg       HandlerConfig
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, cfg HandlerConfig) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New(), cfg: cfg}
}

// MountRoutes registers invoice routes. The caller wraps the router with the
// session middleware.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{id}", h.get)
	r.Put("/{id}", h.update)
	r.With(auth.RequireRole(shared.RoleAdmin)).Delete("/{id}", h.delete)
	r.With(auth.RequireRole(shared.RoleVerifier, shared.RoleAdmin)).Post("/{id}/verify", h.verify)
	r.Get("/{id}/status", h.verificationStatus)
	r.Get("/{id}/download", h.download)
}

type createForm struct {
	InvoiceDate string  `validate:"required"`
	DueDate     string  `validate:"required"`
	TotalAmount float64 `validate:"gte=0"`
	Currency    string  `validate:"required,len=3,alpha"`
	Type        string  `validate:"required,oneof=SALE PURCHASE"`
	ClientID    string  `validate:"omitempty,uuid4"`
	SupplierID  string  `validate:"omitempty,uuid4"`
	ProjectID   string  `validate:"omitempty,uuid4"`
}

type updateRequest struct {
	InvoiceDate *string  `json:"invoiceDate" validate:"omitempty"`
	DueDate     *string  `json:"dueDate" validate:"omitempty"`
	TotalAmount *float64 `json:"totalAmount" validate:"omitempty,gte=0"`
	Currency    *string  `json:"currency" validate:"omitempty,len=3,alpha"`
	Status      *string  `json:"status" validate:"omitempty,oneof=PENDING PAID OVERDUE"`
}

type verifyRequest struct {
	Status string `json:"status" validate:"required,oneof=VERIFIED REJECTED"`
	Notes  string `json:"notes" validate:"omitempty,max=2000"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxFileSize+1<<20)
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Error", "invoice file is required and must not exceed the size limit")
		return
	}

	file, header, err := r.FormFile(uploadFieldName)
	if err != nil {
		h.respondServiceError(w, ErrFileRequired)
		return
	}
	defer file.Close()

	if header.Size > h.cfg.MaxFileSize {
		h.respondServiceError(w, ErrFileTooLarge)
		return
	}
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(header.Filename), "."))
	if !h.extAllowed(ext) {
		h.respondServiceError(w, ErrFileTypeNotAllowed)
		return
	}

	form := createForm{
		InvoiceDate: r.FormValue("invoiceDate"),
		DueDate:     r.FormValue("dueDate"),
		Currency:    strings.ToUpper(r.FormValue("currency")),
		Type:        r.FormValue("type"),
		ClientID:    r.FormValue("clientId"),
		SupplierID:  r.FormValue("supplierId"),
		ProjectID:   r.FormValue("projectId"),
	}
	if form.TotalAmount, err = strconv.ParseFloat(r.FormValue("totalAmount"), 64); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Error", "totalAmount must be a number")
		return
	}
	if err := h.validator.Struct(form); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	invoiceDate, err := parseDate(form.InvoiceDate)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Error", "invoiceDate must be an ISO 8601 date")
		return
	}
	dueDate, err := parseDate(form.DueDate)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Error", "dueDate must be an ISO 8601 date")
		return
	}

	tempPath, err := h.spoolUpload(file, header.Filename)
	if err != nil {
		h.logger.Error("spool upload", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	defer func() {
		if err := os.Remove(tempPath); err != nil && !os.IsNotExist(err) {
			h.logger.Warn("temp file cleanup failed", slog.String("path", tempPath), slog.Any("error", err))
		}
	}()

	input := CreateInvoiceInput{
		InvoiceDate: invoiceDate,
		DueDate:     dueDate,
		TotalAmount: form.TotalAmount,
		Currency:    form.Currency,
		Type:        InvoiceType(form.Type),
		ClientID:    optional(form.ClientID),
		SupplierID:  optional(form.SupplierID),
		ProjectID:   optional(form.ProjectID),
		File: UploadedFile{
			TempPath:     tempPath,
			OriginalName: header.Filename,
			ContentType:  header.Header.Get("Content-Type"),
			Size:         header.Size,
		},
	}

	inv, err := h.service.Ingest(r.Context(), *actor, input)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	httpx.JSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"message": "Invoice uploaded and queued for recognition",
		"data": map[string]any{
			"invoice":   inv,
			"ocrStatus": StatusProcessing,
		},
	})
}

// spoolUpload writes the multipart part to the upload temp directory so the
// object store client can stream it from disk.
func (h *Handler) spoolUpload(src io.Reader, originalName string) (string, error) {
	if err := os.MkdirAll(h.cfg.TempDir, 0o755); err != nil {
		return "", fmt.Errorf("create temp dir: %w", err)
	}
	ext := strings.ToLower(filepath.Ext(originalName))
	path := filepath.Join(h.cfg.TempDir, fmt.Sprintf("%s-%d%s", uuid.NewString(), time.Now().UnixMilli(), ext))
	dst, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer dst.Close()
	if _, err := io.Copy(dst, src); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("write temp file: %w", err)
	}
	return path, nil
}

func (h *Handler) extAllowed(ext string) bool {
	for _, allowed := range h.cfg.AllowedTypes {
		if ext == strings.ToLower(strings.TrimSpace(allowed)) {
			return true
		}
	}
	return false
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	q := r.URL.Query()

	req := ListInvoicesRequest{
		Status:             InvoiceStatus(q.Get("status")),
		Type:               InvoiceType(q.Get("type")),
		VerificationStatus: VerificationStatus(q.Get("verificationStatus")),
	}
	if v := q.Get("page"); v != "" {
		req.Page, _ = strconv.Atoi(v)
	}
	if v := q.Get("limit"); v != "" {
		req.Limit, _ = strconv.Atoi(v)
	}
	if v := q.Get("fromDate"); v != "" {
		if t, err := parseDate(v); err == nil {
			req.FromDate = t
		}
	}
	if v := q.Get("toDate"); v != "" {
		if t, err := parseDate(v); err == nil {
			req.ToDate = t
		}
	}

	invoices, pagination, err := h.service.List(r.Context(), *actor, req)
	if err != nil {
		h.logger.Error("list invoices", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if invoices == nil {
		invoices = []Invoice{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data": map[string]any{
			"invoices":   invoices,
			"pagination": pagination,
		},
	})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	inv, err := h.service.Get(r.Context(), *actor, chi.URLParam(r, "id"))
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"success": true, "data": inv})
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())

	var req updateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}

	var input UpdateInvoiceInput
	if req.InvoiceDate != nil {
		t, err := parseDate(*req.InvoiceDate)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Error", "invoiceDate must be an ISO 8601 date")
			return
		}
		input.InvoiceDate = &t
	}
	if req.DueDate != nil {
		t, err := parseDate(*req.DueDate)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Error", "dueDate must be an ISO 8601 date")
			return
		}
		input.DueDate = &t
	}
	input.TotalAmount = req.TotalAmount
	input.Currency = req.Currency
	if req.Status != nil {
		status := InvoiceStatus(*req.Status)
		input.Status = &status
	}
	if input.Empty() {
		httpx.Problem(w, http.StatusBadRequest, "Validation Error", "at least one field must be provided")
		return
	}

	inv, err := h.service.Update(r.Context(), *actor, chi.URLParam(r, "id"), input)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"success": true, "data": inv})
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	if err := h.service.Delete(r.Context(), *actor, chi.URLParam(r, "id")); err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"success": true, "message": "Invoice deleted"})
}

func (h *Handler) verify(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())

	var req verifyRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}

	inv, err := h.service.Verify(r.Context(), *actor, chi.URLParam(r, "id"), VerifyInvoiceInput{
		Status: VerificationStatus(req.Status),
		Notes:  req.Notes,
	})
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"success": true, "data": inv})
}

func (h *Handler) verificationStatus(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	entry, err := h.service.VerificationState(r.Context(), *actor, chi.URLParam(r, "id"))
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"success": true, "data": entry})
}

func (h *Handler) download(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	url, expiresIn, err := h.service.DownloadURL(r.Context(), *actor, chi.URLParam(r, "id"))
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data": map[string]any{
			"downloadUrl": url,
			"expiresIn":   expiresIn,
		},
	})
}

func (h *Handler) respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvoiceNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "Invoice not found")
	case errors.Is(err, ErrFileNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "Invoice file not found")
	case errors.Is(err, ErrAlreadyFinalized):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, ErrFileRequired),
		errors.Is(err, ErrFileTooLarge),
		errors.Is(err, ErrFileTypeNotAllowed),
		errors.Is(err, ErrInvalidType),
		errors.Is(err, ErrInvalidCurrency),
		errors.Is(err, ErrInvalidAmount),
		errors.Is(err, ErrClientRequired),
		errors.Is(err, ErrSupplierRequired),
		errors.Is(err, ErrClientNotFound),
		errors.Is(err, ErrSupplierNotFound),
		errors.Is(err, ErrProjectNotFound),
		errors.Is(err, ErrInvalidVerification):
		httpx.Problem(w, http.StatusBadRequest, "Validation Error", err.Error())
	default:
		h.logger.Error("invoice request failed", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}

func parseDate(value string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", value)
}

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
