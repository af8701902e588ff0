package invoices

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CreateRecord is the fully-resolved row handed to the store after the
// service has validated references and uploaded the document.
type CreateRecord struct {
	Type          InvoiceType
	InvoiceDate   time.Time
	DueDate       time.Time
	TotalAmount   float64
	Currency      string
	ScanObjectKey string
	EnterpriseID  string
	ClientID      *string
	SupplierID    *string
	ProjectID     *string
	CreatedByID   string
}

// Repository provides persistence for invoices. Every read and write is
// scoped to an enterprise; rows belonging to another enterprise behave as
// if they do not exist.
type Repository interface {
	Create(ctx context.Context, rec CreateRecord) (Invoice, error)
	GetByID(ctx context.Context, enterpriseID, id string) (Invoice, error)
	List(ctx context.Context, enterpriseID string, req ListInvoicesRequest) ([]Invoice, int, error)
	Update(ctx context.Context, enterpriseID, id string, input UpdateInvoiceInput) (Invoice, error)
	UpdateVerification(ctx context.Context, enterpriseID, id string, status VerificationStatus, verifiedByID string) (Invoice, error)
	Delete(ctx context.Context, enterpriseID, id string) error

	// ListUnverified returns invoices still awaiting a verification
	// decision, newest first, across all enterprises. Used by the
	// background reconciler to re-seed evicted cache entries.
	ListUnverified(ctx context.Context, limit int) ([]Invoice, error)

	ClientExists(ctx context.Context, enterpriseID, id string) (bool, error)
	SupplierExists(ctx context.Context, enterpriseID, id string) (bool, error)
	ProjectExists(ctx context.Context, enterpriseID, id string) (bool, error)
}

type pgRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &pgRepository{pool: pool}
}

const invoiceColumns = `id, type, invoice_date, due_date, total_amount, currency,
	status, verification_status, scan_object_key,
	enterprise_id, client_id, supplier_id, project_id,
	created_by_id, verified_by_id, created_at, updated_at`

func scanInvoice(row pgx.Row) (Invoice, error) {
	var inv Invoice
	err := row.Scan(
		&inv.ID, &inv.Type, &inv.InvoiceDate, &inv.DueDate, &inv.TotalAmount, &inv.Currency,
		&inv.Status, &inv.VerificationStatus, &inv.ScanObjectKey,
		&inv.EnterpriseID, &inv.ClientID, &inv.SupplierID, &inv.ProjectID,
		&inv.CreatedByID, &inv.VerifiedByID, &inv.CreatedAt, &inv.UpdatedAt,
	)
	return inv, err
}

func (r *pgRepository) Create(ctx context.Context, rec CreateRecord) (Invoice, error) {
	query := `
		INSERT INTO invoices (
			id, type, invoice_date, due_date, total_amount, currency,
			status, verification_status, scan_object_key,
			enterprise_id, client_id, supplier_id, project_id,
			created_by_id, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, NOW(), NOW())
		RETURNING ` + invoiceColumns

	id := uuid.NewString()
	inv, err := scanInvoice(r.pool.QueryRow(ctx, query,
		id, rec.Type, rec.InvoiceDate, rec.DueDate, rec.TotalAmount, rec.Currency,
		StatusPending, VerificationManualNeeded, rec.ScanObjectKey,
		rec.EnterpriseID, rec.ClientID, rec.SupplierID, rec.ProjectID,
		rec.CreatedByID,
	))
	if err != nil {
		return Invoice{}, fmt.Errorf("create invoice: %w", err)
	}
	return inv, nil
}

func (r *pgRepository) GetByID(ctx context.Context, enterpriseID, id string) (Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE id = $1 AND enterprise_id = $2`

	inv, err := scanInvoice(r.pool.QueryRow(ctx, query, id, enterpriseID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Invoice{}, ErrInvoiceNotFound
	}
	if err != nil {
		return Invoice{}, fmt.Errorf("get invoice: %w", err)
	}
	return inv, nil
}

func (r *pgRepository) List(ctx context.Context, enterpriseID string, req ListInvoicesRequest) ([]Invoice, int, error) {
	where := ` FROM invoices WHERE enterprise_id = $1`
	args := []any{enterpriseID}
	argNum := 2

	if req.Status != "" {
		where += fmt.Sprintf(" AND status = $%d", argNum)
		args = append(args, string(req.Status))
		argNum++
	}
	if req.Type != "" {
		where += fmt.Sprintf(" AND type = $%d", argNum)
		args = append(args, string(req.Type))
		argNum++
	}
	if req.VerificationStatus != "" {
		where += fmt.Sprintf(" AND verification_status = $%d", argNum)
		args = append(args, string(req.VerificationStatus))
		argNum++
	}
	if !req.FromDate.IsZero() {
		where += fmt.Sprintf(" AND invoice_date >= $%d", argNum)
		args = append(args, req.FromDate)
		argNum++
	}
	if !req.ToDate.IsZero() {
		where += fmt.Sprintf(" AND invoice_date <= $%d", argNum)
		args = append(args, req.ToDate)
		argNum++
	}

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*)"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count invoices: %w", err)
	}

	query := "SELECT " + invoiceColumns + where + " ORDER BY created_at DESC"
	if req.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argNum)
		args = append(args, req.Limit)
		argNum++
	}
	if req.Page > 1 && req.Limit > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argNum)
		args = append(args, (req.Page-1)*req.Limit)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list invoices: %w", err)
	}
	defer rows.Close()

	var invoices []Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan invoice: %w", err)
		}
		invoices = append(invoices, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return invoices, total, nil
}

func (r *pgRepository) Update(ctx context.Context, enterpriseID, id string, input UpdateInvoiceInput) (Invoice, error) {
	set := "updated_at = NOW()"
	args := []any{id, enterpriseID}
	argNum := 3

	if input.InvoiceDate != nil {
		set += fmt.Sprintf(", invoice_date = $%d", argNum)
		args = append(args, *input.InvoiceDate)
		argNum++
	}
	if input.DueDate != nil {
		set += fmt.Sprintf(", due_date = $%d", argNum)
		args = append(args, *input.DueDate)
		argNum++
	}
	if input.TotalAmount != nil {
		set += fmt.Sprintf(", total_amount = $%d", argNum)
		args = append(args, *input.TotalAmount)
		argNum++
	}
	if input.Currency != nil {
		set += fmt.Sprintf(", currency = $%d", argNum)
		args = append(args, *input.Currency)
		argNum++
	}
	if input.Status != nil {
		set += fmt.Sprintf(", status = $%d", argNum)
		args = append(args, string(*input.Status))
	}

	query := "UPDATE invoices SET " + set + " WHERE id = $1 AND enterprise_id = $2 RETURNING " + invoiceColumns

	inv, err := scanInvoice(r.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return Invoice{}, ErrInvoiceNotFound
	}
	if err != nil {
		return Invoice{}, fmt.Errorf("update invoice: %w", err)
	}
	return inv, nil
}

// UpdateVerification applies a terminal decision only while the current
// verification status is still non-terminal, so concurrent verifiers cannot
// overwrite each other.
func (r *pgRepository) UpdateVerification(ctx context.Context, enterpriseID, id string, status VerificationStatus, verifiedByID string) (Invoice, error) {
	query := `
		UPDATE invoices
		SET verification_status = $3, verified_by_id = $4, updated_at = NOW()
		WHERE id = $1 AND enterprise_id = $2
			AND verification_status NOT IN ($5, $6)
		RETURNING ` + invoiceColumns

	inv, err := scanInvoice(r.pool.QueryRow(ctx, query,
		id, enterpriseID, status, verifiedByID,
		VerificationVerified, VerificationRejected,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		// Either the row does not exist or another decision landed first.
		if _, getErr := r.GetByID(ctx, enterpriseID, id); getErr != nil {
			return Invoice{}, getErr
		}
		return Invoice{}, ErrAlreadyFinalized
	}
	if err != nil {
		return Invoice{}, fmt.Errorf("update verification: %w", err)
	}
	return inv, nil
}

func (r *pgRepository) ListUnverified(ctx context.Context, limit int) ([]Invoice, error) {
	query := `SELECT ` + invoiceColumns + `
		FROM invoices
		WHERE verification_status NOT IN ($1, $2)
		ORDER BY updated_at DESC
		LIMIT $3`

	rows, err := r.pool.Query(ctx, query, VerificationVerified, VerificationRejected, limit)
	if err != nil {
		return nil, fmt.Errorf("list unverified invoices: %w", err)
	}
	defer rows.Close()

	var invoices []Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("scan invoice: %w", err)
		}
		invoices = append(invoices, inv)
	}
	return invoices, rows.Err()
}

func (r *pgRepository) Delete(ctx context.Context, enterpriseID, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM invoices WHERE id = $1 AND enterprise_id = $2`, id, enterpriseID)
	if err != nil {
		return fmt.Errorf("delete invoice: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrInvoiceNotFound
	}
	return nil
}

func (r *pgRepository) ClientExists(ctx context.Context, enterpriseID, id string) (bool, error) {
	return r.exists(ctx, "clients", enterpriseID, id)
}

func (r *pgRepository) SupplierExists(ctx context.Context, enterpriseID, id string) (bool, error) {
	return r.exists(ctx, "suppliers", enterpriseID, id)
}

func (r *pgRepository) ProjectExists(ctx context.Context, enterpriseID, id string) (bool, error) {
	return r.exists(ctx, "projects", enterpriseID, id)
}

func (r *pgRepository) exists(ctx context.Context, table, enterpriseID, id string) (bool, error) {
	query := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE id = $1 AND enterprise_id = $2)`, table)
	var ok bool
	if err := r.pool.QueryRow(ctx, query, id, enterpriseID).Scan(&ok); err != nil {
		return false, fmt.Errorf("check %s reference: %w", table, err)
	}
	return ok, nil
}
