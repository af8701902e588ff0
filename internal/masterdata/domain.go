package masterdata

import "time"

// Client is a customer a sale invoice is billed to.
type Client struct {
	ID           string    `json:"id"`
	EnterpriseID string    `json:"enterpriseId"`
	Name         string    `json:"name"`
	Email        string    `json:"email,omitempty"`
	Phone        string    `json:"phone,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Supplier is a vendor a purchase invoice is received from.
type Supplier struct {
	ID           string    `json:"id"`
	EnterpriseID string    `json:"enterpriseId"`
	Name         string    `json:"name"`
	Email        string    `json:"email,omitempty"`
	Phone        string    `json:"phone,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Project groups invoices under a shared initiative.
type Project struct {
	ID           string    `json:"id"`
	EnterpriseID string    `json:"enterpriseId"`
	Name         string    `json:"name"`
	Description  string    `json:"description,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// CreateClientInput for creating clients.
type CreateClientInput struct {
	EnterpriseID string
	Name         string
	Email        string
	Phone        string
}

// CreateSupplierInput for creating suppliers.
type CreateSupplierInput struct {
	EnterpriseID string
	Name         string
	Email        string
	Phone        string
}

// CreateProjectInput for creating projects.
type CreateProjectInput struct {
	EnterpriseID string
	Name         string
	Description  string
}
