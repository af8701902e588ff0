package masterdata

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/thea-app/thea/internal/shared"
)

// Repository defines master data access. All lookups are scoped to an
// enterprise; rows belonging to another enterprise behave as absent.
type Repository interface {
	CreateClient(ctx context.Context, input CreateClientInput) (Client, error)
	GetClient(ctx context.Context, enterpriseID, id string) (Client, error)
	ListClients(ctx context.Context, enterpriseID string) ([]Client, error)

	CreateSupplier(ctx context.Context, input CreateSupplierInput) (Supplier, error)
	GetSupplier(ctx context.Context, enterpriseID, id string) (Supplier, error)
	ListSuppliers(ctx context.Context, enterpriseID string) ([]Supplier, error)

	CreateProject(ctx context.Context, input CreateProjectInput) (Project, error)
	GetProject(ctx context.Context, enterpriseID, id string) (Project, error)
	ListProjects(ctx context.Context, enterpriseID string) ([]Project, error)
}

var _ Repository = (*pgRepository)(nil)

type pgRepository struct {
	pool *pgxpool.Pool
}

// NewRepository builds a postgres backed Repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &pgRepository{pool: pool}
}

func (r *pgRepository) CreateClient(ctx context.Context, input CreateClientInput) (Client, error) {
	const query = `
		INSERT INTO clients (id, enterprise_id, name, email, phone)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, enterprise_id, name, email, phone, created_at`
	var c Client
	err := r.pool.QueryRow(ctx, query, uuid.NewString(), input.EnterpriseID, input.Name, input.Email, input.Phone).
		Scan(&c.ID, &c.EnterpriseID, &c.Name, &c.Email, &c.Phone, &c.CreatedAt)
	return c, err
}

func (r *pgRepository) GetClient(ctx context.Context, enterpriseID, id string) (Client, error) {
	const query = `
		SELECT id, enterprise_id, name, email, phone, created_at
		FROM clients
		WHERE id = $1 AND enterprise_id = $2`
	var c Client
	err := r.pool.QueryRow(ctx, query, id, enterpriseID).
		Scan(&c.ID, &c.EnterpriseID, &c.Name, &c.Email, &c.Phone, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Client{}, shared.ErrNotFound
	}
	return c, err
}

func (r *pgRepository) ListClients(ctx context.Context, enterpriseID string) ([]Client, error) {
	const query = `
		SELECT id, enterprise_id, name, email, phone, created_at
		FROM clients
		WHERE enterprise_id = $1
		ORDER BY name`
	rows, err := r.pool.Query(ctx, query, enterpriseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var clients []Client
	for rows.Next() {
		var c Client
		if err := rows.Scan(&c.ID, &c.EnterpriseID, &c.Name, &c.Email, &c.Phone, &c.CreatedAt); err != nil {
			return nil, err
		}
		clients = append(clients, c)
	}
	return clients, rows.Err()
}

func (r *pgRepository) CreateSupplier(ctx context.Context, input CreateSupplierInput) (Supplier, error) {
	const query = `
		INSERT INTO suppliers (id, enterprise_id, name, email, phone)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, enterprise_id, name, email, phone, created_at`
	var s Supplier
	err := r.pool.QueryRow(ctx, query, uuid.NewString(), input.EnterpriseID, input.Name, input.Email, input.Phone).
		Scan(&s.ID, &s.EnterpriseID, &s.Name, &s.Email, &s.Phone, &s.CreatedAt)
	return s, err
}

func (r *pgRepository) GetSupplier(ctx context.Context, enterpriseID, id string) (Supplier, error) {
	const query = `
		SELECT id, enterprise_id, name, email, phone, created_at
		FROM suppliers
		WHERE id = $1 AND enterprise_id = $2`
	var s Supplier
	err := r.pool.QueryRow(ctx, query, id, enterpriseID).
		Scan(&s.ID, &s.EnterpriseID, &s.Name, &s.Email, &s.Phone, &s.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Supplier{}, shared.ErrNotFound
	}
	return s, err
}

func (r *pgRepository) ListSuppliers(ctx context.Context, enterpriseID string) ([]Supplier, error) {
	const query = `
		SELECT id, enterprise_id, name, email, phone, created_at
		FROM suppliers
		WHERE enterprise_id = $1
		ORDER BY name`
	rows, err := r.pool.Query(ctx, query, enterpriseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var suppliers []Supplier
	for rows.Next() {
		var s Supplier
		if err := rows.Scan(&s.ID, &s.EnterpriseID, &s.Name, &s.Email, &s.Phone, &s.CreatedAt); err != nil {
			return nil, err
		}
		suppliers = append(suppliers, s)
	}
	return suppliers, rows.Err()
}

func (r *pgRepository) CreateProject(ctx context.Context, input CreateProjectInput) (Project, error) {
	const query = `
		INSERT INTO projects (id, enterprise_id, name, description)
		VALUES ($1, $2, $3, $4)
		RETURNING id, enterprise_id, name, description, created_at`
	var p Project
	err := r.pool.QueryRow(ctx, query, uuid.NewString(), input.EnterpriseID, input.Name, input.Description).
		Scan(&p.ID, &p.EnterpriseID, &p.Name, &p.Description, &p.CreatedAt)
	return p, err
}

func (r *pgRepository) GetProject(ctx context.Context, enterpriseID, id string) (Project, error) {
	const query = `
		SELECT id, enterprise_id, name, description, created_at
		FROM projects
		WHERE id = $1 AND enterprise_id = $2`
	var p Project
	err := r.pool.QueryRow(ctx, query, id, enterpriseID).
		Scan(&p.ID, &p.EnterpriseID, &p.Name, &p.Description, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Project{}, shared.ErrNotFound
	}
	return p, err
}

func (r *pgRepository) ListProjects(ctx context.Context, enterpriseID string) ([]Project, error) {
	const query = `
		SELECT id, enterprise_id, name, description, created_at
		FROM projects
		WHERE enterprise_id = $1
		ORDER BY name`
	rows, err := r.pool.Query(ctx, query, enterpriseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var projects []Project
	for rows.Next() {
		var p Project
		if err := rows.Scan(&p.ID, &p.EnterpriseID, &p.Name, &p.Description, &p.CreatedAt); err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}
