package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"patientdocs/internal/model"
	"patientdocs/internal/repository"
)

// DocumentPostgres is a PostgreSQL implementation of repository.DocumentRepository.
// It uses database/sql with parameterized queries and contains no business logic.
type DocumentPostgres struct {
	db *sql.DB
}

// NewDocumentPostgres creates a new DocumentPostgres repository.
func NewDocumentPostgres(db *sql.DB) *DocumentPostgres {
	return &DocumentPostgres{db: db}
}

var _ repository.DocumentRepository = (*DocumentPostgres)(nil)

const documentColumns = `id, filename, original_filename, storage_path, size, content_type, category, user_id, created_at`

func scanDocument(s interface{ Scan(dest ...any) error }) (*model.Document, error) {
	var d model.Document
	if err := s.Scan(
		&d.ID,
		&d.Filename,
		&d.OriginalFilename,
		&d.StoragePath,
		&d.Size,
		&d.ContentType,
		&d.Category,
		&d.UserID,
		&d.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &d, nil
}

// Create inserts a new document row and returns the stored record.
func (r *DocumentPostgres) Create(ctx context.Context, doc *model.Document) (*model.Document, error) {
	const q = `
		INSERT INTO documents (id, filename, original_filename, storage_path, size, content_type, category, user_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING ` + documentColumns
	row := r.db.QueryRowContext(ctx, q,
		doc.ID,
		doc.Filename,
		doc.OriginalFilename,
		doc.StoragePath,
		doc.Size,
		doc.ContentType,
		doc.Category,
		doc.UserID,
		doc.CreatedAt,
	)
	return scanDocument(row)
}

// FindByID fetches a single document by its ID.
func (r *DocumentPostgres) FindByID(ctx context.Context, id string) (*model.Document, error) {
	const q = `
		SELECT ` + documentColumns + `
		FROM documents
		WHERE id = $1
	`
	return scanDocument(r.db.QueryRowContext(ctx, q, id))
}

// List returns documents matching the filter using LIMIT/OFFSET pagination
// and a total count for the same filter. The WHERE clause is built from
// numbered placeholders only; no user input is interpolated.
func (r *DocumentPostgres) List(ctx context.Context, f repository.DocumentFilter, pq repository.PageQuery) (*repository.PageResult[model.Document], error) {
	where := `WHERE user_id = $1`
	args := []any{f.OwnerID}

	if f.Category != "" {
		args = append(args, f.Category)
		where += fmt.Sprintf(` AND category = $%d`, len(args))
	}
	if f.NameQuery != "" {
		args = append(args, "%"+f.NameQuery+"%")
		where += fmt.Sprintf(` AND original_filename ILIKE $%d`, len(args))
	}

	qCount := `SELECT COUNT(*) FROM documents ` + where
	var total int
	if err := r.db.QueryRowContext(ctx, qCount, args...).Scan(&total); err != nil {
		return nil, err
	}

	args = append(args, pq.Limit, pq.Offset)
	qList := `SELECT ` + documentColumns + `
		FROM documents ` + where + fmt.Sprintf(`
		ORDER BY created_at DESC, id DESC
		LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, qList, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.Document, 0)
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &repository.PageResult[model.Document]{
		Items: items,
		Total: total,
	}, nil
}

// Delete removes a document by ID. It does not return an error if the row does not exist.
func (r *DocumentPostgres) Delete(ctx context.Context, id string) error {
	const q = `DELETE FROM documents WHERE id = $1`
	res, err := r.db.ExecContext(ctx, q, id)
	if err != nil {
		return err
	}
	_, _ = res.RowsAffected()
	return nil
}
