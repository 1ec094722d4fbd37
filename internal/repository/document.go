package repository

import (
	"context"

	"patientdocs/internal/model"
)

// DocumentFilter narrows a document listing. OwnerID is mandatory: every
// listing is scoped to a single owner. Category and NameQuery are optional.
type DocumentFilter struct {
	OwnerID   string
	Category  model.Category
	NameQuery string
}

// DocumentRepository defines data access for documents using SQL queries only.
// No business logic here, strictly persistence operations.
type DocumentRepository interface {
	// Create inserts a new document record and returns the stored row.
	Create(ctx context.Context, doc *model.Document) (*model.Document, error)

	// FindByID returns a document by its ID regardless of owner.
	// Ownership checks belong to the service layer.
	FindByID(ctx context.Context, id string) (*model.Document, error)

	// List returns a page of documents matching the filter plus the total
	// count for the same filter.
	List(ctx context.Context, f DocumentFilter, pq PageQuery) (*PageResult[model.Document], error)

	// Delete removes a document by ID. It returns nil if the row was deleted or did not exist.
	Delete(ctx context.Context, id string) error
}
