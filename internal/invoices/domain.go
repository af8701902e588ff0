package invoices

import (
	"errors"
	"time"
)

// InvoiceType determines which counterparty reference is mandatory.
type InvoiceType string

const (
	TypeSale     InvoiceType = "SALE"
	TypePurchase InvoiceType = "PURCHASE"
)

// InvoiceStatus enumerates the billing lifecycle, independent of verification.
type InvoiceStatus string

const (
	StatusPending InvoiceStatus = "PENDING"
	StatusPaid    InvoiceStatus = "PAID"
	StatusOverdue InvoiceStatus = "OVERDUE"
)

// VerificationStatus enumerates recognition/verification states.
type VerificationStatus string

const (
	VerificationAutoApproved VerificationStatus = "AUTO_APPROVED"
	VerificationManualNeeded VerificationStatus = "MANUAL_VERIFICATION_NEEDED"
	VerificationVerified     VerificationStatus = "VERIFIED"
	VerificationRejected     VerificationStatus = "REJECTED"
)

// Terminal reports whether no further verification transition is defined.
func (s VerificationStatus) Terminal() bool {
	return s == VerificationVerified || s == VerificationRejected
}

// StatusProcessing is the cache-only state seeded at ingestion, before the
// recognition worker or a verifier has touched the invoice.
const StatusProcessing = "PROCESSING"

// Invoice model. The relational store is authoritative for every field.
type Invoice struct {
	ID                 string             `json:"id"`
	Type               InvoiceType        `json:"type"`
	InvoiceDate        time.Time          `json:"invoiceDate"`
	DueDate            time.Time          `json:"dueDate"`
	TotalAmount        float64            `json:"totalAmount"`
	Currency           string             `json:"currency"`
	Status             InvoiceStatus      `json:"status"`
	VerificationStatus VerificationStatus `json:"verificationStatus"`
	ScanObjectKey      *string            `json:"scanObjectKey,omitempty"`
	EnterpriseID       string             `json:"enterpriseId"`
	ClientID           *string            `json:"clientId,omitempty"`
	SupplierID         *string            `json:"supplierId,omitempty"`
	ProjectID          *string            `json:"projectId,omitempty"`
	CreatedByID        string             `json:"createdById"`
	VerifiedByID       *string            `json:"verifiedById,omitempty"`
	CreatedAt          time.Time          `json:"createdAt"`
	UpdatedAt          time.Time          `json:"updatedAt"`
}

// RecognitionTask is the queue payload requesting OCR extraction for one
// uploaded document. It is never persisted; durability comes from the queue.
type RecognitionTask struct {
	InvoiceID        string `json:"invoiceId"`
	FileURL          string `json:"fileUrl"`
	EnterpriseID     string `json:"enterpriseId"`
	TempObjectName   string `json:"tempObjectName"`
	BucketName       string `json:"bucketName"`
	OriginalFileName string `json:"originalFileName"`
}

// VerificationEntry is the cached projection of verification state. It may
// lag or be evicted; readers treat absence as "consult the relational store".
type VerificationEntry struct {
	Status     string     `json:"status"`
	InvoiceID  string     `json:"invoiceId"`
	Timestamp  time.Time  `json:"timestamp"`
	VerifiedBy string     `json:"verifiedBy,omitempty"`
	VerifiedAt *time.Time `json:"verifiedAt,omitempty"`
	Notes      string     `json:"notes,omitempty"`
}

// VerificationNotice is the email queue payload emitted after a decision.
type VerificationNotice struct {
	InvoiceID   string `json:"invoiceId"`
	Status      string `json:"status"`
	VerifiedBy  string `json:"verifiedBy"`
	Notes       string `json:"notes,omitempty"`
	RecipientID string `json:"recipientId"`
}

// UploadedFile describes the document handed to ingestion, already spooled
// to a local temp path by the HTTP layer.
type UploadedFile struct {
	TempPath     string
	OriginalName string
	ContentType  string
	Size         int64
}

// CreateInvoiceInput for ingesting a new invoice.
type CreateInvoiceInput struct {
	InvoiceDate time.Time
	DueDate     time.Time
	TotalAmount float64
	Currency    string
	Type        InvoiceType
	ClientID    *string
	SupplierID  *string
	ProjectID   *string
	File        UploadedFile
}

// UpdateInvoiceInput holds named optional fields; nil means unchanged.
type UpdateInvoiceInput struct {
	InvoiceDate *time.Time
	DueDate     *time.Time
	TotalAmount *float64
	Currency    *string
	Status      *InvoiceStatus
}

// Empty reports whether no field is set.
func (u UpdateInvoiceInput) Empty() bool {
	return u.InvoiceDate == nil && u.DueDate == nil && u.TotalAmount == nil && u.Currency == nil && u.Status == nil
}

// VerifyInvoiceInput carries a terminal verification decision.
type VerifyInvoiceInput struct {
	Status VerificationStatus
	Notes  string
}

// ListInvoicesRequest filters invoice listings.
type ListInvoicesRequest struct {
	Status             InvoiceStatus
	Type               InvoiceType
	VerificationStatus VerificationStatus
	FromDate           time.Time
	ToDate             time.Time
	Page               int
	Limit              int
}

var (
	ErrInvoiceNotFound     = errors.New("invoice not found")
	ErrFileNotFound        = errors.New("invoice file not found")
	ErrFileRequired        = errors.New("invoice file is required")
	ErrFileTypeNotAllowed  = errors.New("file type not allowed")
	ErrFileTooLarge        = errors.New("file exceeds the maximum allowed size")
	ErrInvalidType         = errors.New("invoice type must be SALE or PURCHASE")
	ErrInvalidCurrency     = errors.New("currency must be a valid ISO 4217 code")
	ErrInvalidAmount       = errors.New("total amount must not be negative")
	ErrClientRequired      = errors.New("client id is required for sale invoices")
	ErrSupplierRequired    = errors.New("supplier id is required for purchase invoices")
	ErrClientNotFound      = errors.New("invalid client id provided")
	ErrSupplierNotFound    = errors.New("invalid supplier id provided")
	ErrProjectNotFound     = errors.New("invalid project id provided")
	ErrInvalidVerification = errors.New("verification status must be VERIFIED or REJECTED")
	ErrAlreadyFinalized    = errors.New("invoice verification already finalized")
)
