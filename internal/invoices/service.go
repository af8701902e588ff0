package invoices

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/currency"

	"github.com/thea-app/thea/internal/observability"
	"github.com/thea-app/thea/internal/platform/queue"
	"github.com/thea-app/thea/internal/shared"
)

// ObjectStore is the slice of blob storage the invoice pipeline needs.
type ObjectStore interface {
	UploadFile(ctx context.Context, bucket, object, filePath, contentType string, metadata map[string]string) error
	Remove(ctx context.Context, bucket, object string) error
	PresignGet(ctx context.Context, bucket, object string, expiry time.Duration) (string, error)
}

// Publisher posts messages onto a named queue.
type Publisher interface {
	Publish(ctx context.Context, queueName string, message any, opts queue.PublishOptions) error
}

const (
	scanURLTTL     = 15 * time.Minute
	downloadURLTTL = time.Hour

	recognitionPriority = 5
)

// ServiceConfig carries deployment-specific knobs for the pipeline.
type ServiceConfig struct {
	Bucket string
}

// Service coordinates invoice ingestion, verification and retrieval across
// the relational store, the object store, the task queue and the status
// cache.
type Service struct {
	repo    Repository
	store   ObjectStore
	queue   Publisher
	status  *StatusStore
	audit   *shared.AuditLogger
	metrics *observability.Metrics
	logger  *slog.Logger
	cfg     ServiceConfig
	now     func() time.Time
}

// NewService constructs the invoice service. Audit and metrics may be nil.
func NewService(repo Repository, store ObjectStore, publisher Publisher, status *StatusStore, audit *shared.AuditLogger, metrics *observability.Metrics, logger *slog.Logger, cfg ServiceConfig) *Service {
	return &Service{
		repo:    repo,
		store:   store,
		queue:   publisher,
		status:  status,
		audit:   audit,
		metrics: metrics,
		logger:  logger,
		cfg:     cfg,
		now:     time.Now,
	}
}

// Ingest validates the invoice, uploads its document, persists the row,
// enqueues recognition and seeds the status cache, in that order. A failure
// after the upload removes the uploaded object and the local temp file; a
// failure after the row exists keeps the row so operators can reconcile.
func (s *Service) Ingest(ctx context.Context, actor shared.Actor, input CreateInvoiceInput) (Invoice, error) {
	if err := s.validateCreate(ctx, actor, input); err != nil {
		s.metrics.RecordIngestion("rejected")
		return Invoice{}, err
	}

	ext := strings.ToLower(filepath.Ext(input.File.OriginalName))
	tempObject := fmt.Sprintf("temp/%s-%d%s", uuid.NewString(), s.now().UnixMilli(), ext)

	if err := s.store.UploadFile(ctx, s.cfg.Bucket, tempObject, input.File.TempPath, input.File.ContentType, map[string]string{
		"original-name": input.File.OriginalName,
	}); err != nil {
		s.metrics.RecordIngestion("failure")
		return Invoice{}, fmt.Errorf("upload invoice document: %w", err)
	}

	fileURL, err := s.store.PresignGet(ctx, s.cfg.Bucket, tempObject, scanURLTTL)
	if err != nil {
		s.compensate(ctx, tempObject, input.File.TempPath)
		s.metrics.RecordIngestion("failure")
		return Invoice{}, fmt.Errorf("presign invoice document: %w", err)
	}

	inv, err := s.repo.Create(ctx, CreateRecord{
		Type:          input.Type,
		InvoiceDate:   input.InvoiceDate,
		DueDate:       input.DueDate,
		TotalAmount:   input.TotalAmount,
		Currency:      strings.ToUpper(input.Currency),
		ScanObjectKey: tempObject,
		EnterpriseID:  actor.EnterpriseID,
		ClientID:      input.ClientID,
		SupplierID:    input.SupplierID,
		ProjectID:     input.ProjectID,
		CreatedByID:   actor.ID,
	})
	if err != nil {
		s.compensate(ctx, tempObject, input.File.TempPath)
		s.metrics.RecordIngestion("failure")
		return Invoice{}, err
	}

	task := RecognitionTask{
		InvoiceID:        inv.ID,
		FileURL:          fileURL,
		EnterpriseID:     actor.EnterpriseID,
		TempObjectName:   tempObject,
		BucketName:       s.cfg.Bucket,
		OriginalFileName: input.File.OriginalName,
	}
	if err := s.queue.Publish(ctx, queue.QueueOCR, task, queue.PublishOptions{Priority: recognitionPriority}); err != nil {
		// The row stays behind for manual reconciliation.
		s.logger.Error("recognition enqueue failed",
			slog.String("invoice_id", inv.ID),
			slog.Any("error", err))
		s.compensate(ctx, tempObject, input.File.TempPath)
		s.metrics.RecordIngestion("failure")
		return Invoice{}, fmt.Errorf("enqueue recognition task: %w", err)
	}

	if err := s.status.Set(ctx, VerificationEntry{
		Status:    StatusProcessing,
		InvoiceID: inv.ID,
		Timestamp: s.now().UTC(),
	}); err != nil {
		s.logger.Warn("status cache seed failed",
			slog.String("invoice_id", inv.ID),
			slog.Any("error", err))
	}

	if err := os.Remove(input.File.TempPath); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("temp file cleanup failed",
			slog.String("path", input.File.TempPath),
			slog.Any("error", err))
	}

	s.recordAudit(ctx, actor, "invoice.create", inv.ID, map[string]any{"type": string(inv.Type)})
	s.metrics.RecordIngestion("success")
	return inv, nil
}

func (s *Service) validateCreate(ctx context.Context, actor shared.Actor, input CreateInvoiceInput) error {
	if input.File.TempPath == "" || input.File.OriginalName == "" {
		return ErrFileRequired
	}
	if input.Type != TypeSale && input.Type != TypePurchase {
		return ErrInvalidType
	}
	if input.TotalAmount < 0 {
		return ErrInvalidAmount
	}
	if _, err := currency.ParseISO(input.Currency); err != nil {
		return ErrInvalidCurrency
	}

	switch input.Type {
	case TypeSale:
		if input.ClientID == nil || *input.ClientID == "" {
			return ErrClientRequired
		}
		ok, err := s.repo.ClientExists(ctx, actor.EnterpriseID, *input.ClientID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrClientNotFound
		}
	case TypePurchase:
		if input.SupplierID == nil || *input.SupplierID == "" {
			return ErrSupplierRequired
		}
		ok, err := s.repo.SupplierExists(ctx, actor.EnterpriseID, *input.SupplierID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrSupplierNotFound
		}
	}

	if input.ProjectID != nil && *input.ProjectID != "" {
		ok, err := s.repo.ProjectExists(ctx, actor.EnterpriseID, *input.ProjectID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrProjectNotFound
		}
	}
	return nil
}

// compensate undoes ingestion side effects after a mid-pipeline failure.
// Both removals are best-effort.
func (s *Service) compensate(ctx context.Context, tempObject, tempPath string) {
	if err := s.store.Remove(ctx, s.cfg.Bucket, tempObject); err != nil {
		s.logger.Warn("compensating object removal failed",
			slog.String("object", tempObject),
			slog.Any("error", err))
	}
	if err := os.Remove(tempPath); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("compensating temp file removal failed",
			slog.String("path", tempPath),
			slog.Any("error", err))
	}
}

// Get returns one invoice scoped to the actor's enterprise.
func (s *Service) Get(ctx context.Context, actor shared.Actor, id string) (Invoice, error) {
	return s.repo.GetByID(ctx, actor.EnterpriseID, id)
}

// List returns a page of invoices plus pagination metadata.
func (s *Service) List(ctx context.Context, actor shared.Actor, req ListInvoicesRequest) ([]Invoice, shared.Pagination, error) {
	if req.Page < 1 {
		req.Page = 1
	}
	if req.Limit < 1 || req.Limit > 100 {
		req.Limit = 10
	}
	invoices, total, err := s.repo.List(ctx, actor.EnterpriseID, req)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return invoices, shared.NewPagination(req.Page, req.Limit, total), nil
}

// Update applies partial field changes to an invoice.
func (s *Service) Update(ctx context.Context, actor shared.Actor, id string, input UpdateInvoiceInput) (Invoice, error) {
	if input.Currency != nil {
		if _, err := currency.ParseISO(*input.Currency); err != nil {
			return Invoice{}, ErrInvalidCurrency
		}
		upper := strings.ToUpper(*input.Currency)
		input.Currency = &upper
	}
	if input.TotalAmount != nil && *input.TotalAmount < 0 {
		return Invoice{}, ErrInvalidAmount
	}
	inv, err := s.repo.Update(ctx, actor.EnterpriseID, id, input)
	if err != nil {
		return Invoice{}, err
	}
	s.recordAudit(ctx, actor, "invoice.update", inv.ID, nil)
	return inv, nil
}

// Verify applies a terminal verification decision. The relational store is
// written first; the cache refresh afterwards is best-effort.
func (s *Service) Verify(ctx context.Context, actor shared.Actor, id string, input VerifyInvoiceInput) (Invoice, error) {
	if input.Status != VerificationVerified && input.Status != VerificationRejected {
		return Invoice{}, ErrInvalidVerification
	}

	current, err := s.repo.GetByID(ctx, actor.EnterpriseID, id)
	if err != nil {
		return Invoice{}, err
	}
	if current.VerificationStatus.Terminal() {
		return Invoice{}, ErrAlreadyFinalized
	}

	inv, err := s.repo.UpdateVerification(ctx, actor.EnterpriseID, id, input.Status, actor.ID)
	if err != nil {
		return Invoice{}, err
	}

	now := s.now().UTC()
	if err := s.status.Set(ctx, VerificationEntry{
		Status:     string(input.Status),
		InvoiceID:  inv.ID,
		Timestamp:  now,
		VerifiedBy: actor.Username,
		VerifiedAt: &now,
		Notes:      input.Notes,
	}); err != nil {
		s.logger.Warn("verification cache refresh failed",
			slog.String("invoice_id", inv.ID),
			slog.Any("error", err))
	}

	notice := VerificationNotice{
		InvoiceID:   inv.ID,
		Status:      string(input.Status),
		VerifiedBy:  actor.Username,
		Notes:       input.Notes,
		RecipientID: inv.CreatedByID,
	}
	if err := s.queue.Publish(ctx, queue.QueueEmail, notice, queue.PublishOptions{}); err != nil {
		s.logger.Warn("verification notice enqueue failed",
			slog.String("invoice_id", inv.ID),
			slog.Any("error", err))
	}

	s.recordAudit(ctx, actor, "invoice.verify", inv.ID, map[string]any{"status": string(input.Status)})
	s.metrics.RecordVerification(string(input.Status))
	return inv, nil
}

// VerificationState reports the current verification status, preferring the
// cache and falling back to the relational store when the entry is absent.
func (s *Service) VerificationState(ctx context.Context, actor shared.Actor, id string) (VerificationEntry, error) {
	entry, err := s.status.Get(ctx, id)
	if err != nil {
		s.logger.Warn("status cache read failed",
			slog.String("invoice_id", id),
			slog.Any("error", err))
	}
	if entry != nil {
		// Never leak cross-enterprise state through the cache.
		if _, err := s.repo.GetByID(ctx, actor.EnterpriseID, id); err != nil {
			return VerificationEntry{}, err
		}
		return *entry, nil
	}

	inv, err := s.repo.GetByID(ctx, actor.EnterpriseID, id)
	if err != nil {
		return VerificationEntry{}, err
	}
	return VerificationEntry{
		Status:     string(inv.VerificationStatus),
		InvoiceID:  inv.ID,
		Timestamp:  inv.UpdatedAt,
		VerifiedBy: derefOrEmpty(inv.VerifiedByID),
	}, nil
}

// DownloadURL mints a presigned link to the stored document.
func (s *Service) DownloadURL(ctx context.Context, actor shared.Actor, id string) (string, int, error) {
	inv, err := s.repo.GetByID(ctx, actor.EnterpriseID, id)
	if err != nil {
		return "", 0, err
	}
	if inv.ScanObjectKey == nil || *inv.ScanObjectKey == "" {
		return "", 0, ErrFileNotFound
	}
	url, err := s.store.PresignGet(ctx, s.cfg.Bucket, *inv.ScanObjectKey, downloadURLTTL)
	if err != nil {
		return "", 0, fmt.Errorf("presign invoice document: %w", err)
	}
	return url, int(downloadURLTTL.Seconds()), nil
}

// Delete removes the invoice and its stored document. The blob removal is
// best-effort; sweepers pick up any orphaned objects.
func (s *Service) Delete(ctx context.Context, actor shared.Actor, id string) error {
	inv, err := s.repo.GetByID(ctx, actor.EnterpriseID, id)
	if err != nil {
		return err
	}
	if inv.ScanObjectKey != nil && *inv.ScanObjectKey != "" {
		if err := s.store.Remove(ctx, s.cfg.Bucket, *inv.ScanObjectKey); err != nil {
			s.logger.Warn("invoice document removal failed",
				slog.String("invoice_id", inv.ID),
				slog.String("object", *inv.ScanObjectKey),
				slog.Any("error", err))
		}
	}
	if err := s.repo.Delete(ctx, actor.EnterpriseID, id); err != nil {
		return err
	}
	if err := s.status.Delete(ctx, id); err != nil {
		s.logger.Warn("status cache cleanup failed",
			slog.String("invoice_id", id),
			slog.Any("error", err))
	}
	s.recordAudit(ctx, actor, "invoice.delete", id, nil)
	return nil
}

func (s *Service) recordAudit(ctx context.Context, actor shared.Actor, action, entityID string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditEvent{
		ActorID:  actor.ID,
		Action:   action,
		Entity:   "invoice",
		EntityID: entityID,
		Meta:     meta,
		At:       s.now().UTC(),
	})
}

func derefOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
