package service

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"patientdocs/internal/config"
	"patientdocs/internal/model"
	"patientdocs/internal/repository"
	"patientdocs/internal/storage"
)

var (
	ErrIDRequired      = errors.New("id is required")
	ErrOwnerRequired   = errors.New("owner is required")
	ErrNotFound        = errors.New("document not found")
	ErrForbidden       = errors.New("document belongs to another user")
	ErrReaderNil       = errors.New("reader is nil")
	ErrNotPDF          = errors.New("file is not a PDF")
	ErrTooLarge        = errors.New("file exceeds the maximum upload size")
	ErrInvalidCategory = errors.New("invalid category")
)

// pdfMagic is the mandatory prefix of every PDF file.
var pdfMagic = []byte("%PDF-")

// UploadInput carries everything needed to store a new document for a user.
type UploadInput struct {
	Reader           io.Reader
	OriginalFilename string
	ContentType      string
	Size             int64
	Category         model.Category
	OwnerID          string
}

// ListOptions narrows and pages an owner's document listing.
type ListOptions struct {
	Category  model.Category
	NameQuery string
	Limit     int
	Offset    int
}

// DocumentListResult is the service-level DTO for paginated documents.
type DocumentListResult struct {
	Items []model.Document `json:"data"`
	Total int              `json:"total"`
}

// DocumentService defines the use cases for handling patient documents.
// Every by-id operation takes the calling owner's ID and enforces that the
// document belongs to them before touching the object store.
type DocumentService interface {
	// Upload validates the file is a PDF, stores it in object storage, saves
	// metadata to the DB, and rolls back storage if the DB save fails.
	// The original filename is kept for display; the stored name is UUID+ext.
	Upload(ctx context.Context, in UploadInput) (*model.Document, error)

	// List returns the owner's documents matching the options, with a total count.
	List(ctx context.Context, ownerID string, opts ListOptions) (*DocumentListResult, error)

	// Get returns a single document owned by ownerID.
	Get(ctx context.Context, ownerID, id string) (*model.Document, error)

	// Open returns the document metadata plus a streaming reader over its
	// content, for download and inline preview responses.
	Open(ctx context.Context, ownerID, id string) (io.ReadCloser, *model.Document, error)

	// Thumbnail renders the first page of the PDF as a PNG of the given width.
	Thumbnail(ctx context.Context, ownerID, id string, width int) ([]byte, error)

	// PresignDownload returns a time-limited URL for the backing object.
	PresignDownload(ctx context.Context, ownerID, id string) (string, error)

	// Delete removes a document from both storage and the repository.
	Delete(ctx context.Context, ownerID, id string) error
}

// documentService is a concrete implementation of DocumentService.
type documentService struct {
	store  storage.Storage
	repo   repository.DocumentRepository
	upload config.UploadConfig
}

// NewDocumentService constructs a new DocumentService.
func NewDocumentService(store storage.Storage, repo repository.DocumentRepository, upload config.UploadConfig) DocumentService {
	return &documentService{store: store, repo: repo, upload: upload}
}

func (s *documentService) Upload(ctx context.Context, in UploadInput) (*model.Document, error) {
	if in.Reader == nil {
		return nil, ErrReaderNil
	}
	if in.OwnerID == "" {
		return nil, ErrOwnerRequired
	}
	if _, ok := model.ParseCategory(string(in.Category)); !ok {
		return nil, ErrInvalidCategory
	}
	if in.ContentType != "application/pdf" {
		return nil, ErrNotPDF
	}
	if s.upload.MaxSizeBytes > 0 && in.Size > s.upload.MaxSizeBytes {
		return nil, ErrTooLarge
	}

	// Sniff the magic prefix; declared content types from browsers are not
	// trustworthy. The consumed bytes are stitched back onto the stream.
	head := make([]byte, len(pdfMagic))
	n, err := io.ReadFull(in.Reader, head)
	// A short read (including an empty file) falls through to the prefix
	// check below and is rejected as a non-PDF.
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read file header: %w", err)
	}
	if n < len(pdfMagic) || !bytes.Equal(head[:n], pdfMagic) {
		return nil, ErrNotPDF
	}
	content := io.MultiReader(bytes.NewReader(head), in.Reader)

	// Stored filename is UUID + original extension; keys are namespaced per owner.
	ext := filepath.Ext(in.OriginalFilename)
	genName := uuid.New().String() + ext
	key := filepath.ToSlash(filepath.Join("documents", in.OwnerID, genName))

	objInfo, err := s.store.Put(ctx, key, content, storage.PutObjectOptions{
		Size:        in.Size,
		ContentType: in.ContentType,
		Metadata: map[string]string{
			"original-filename": in.OriginalFilename,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("upload to storage: %w", err)
	}

	doc := &model.Document{
		ID:               uuid.New().String(),
		Filename:         genName,
		OriginalFilename: in.OriginalFilename,
		StoragePath:      objInfo.Key,
		Size:             objInfo.Size,
		ContentType:      objInfo.ContentType,
		Category:         in.Category,
		UserID:           in.OwnerID,
		CreatedAt:        time.Now().UTC(),
	}
	stored, err := s.repo.Create(ctx, doc)
	if err != nil {
		// Rollback: delete the object from storage
		if delErr := s.store.Delete(ctx, key); delErr != nil {
			return nil, fmt.Errorf("db save failed: %v; rollback delete failed: %v", err, delErr)
		}
		return nil, fmt.Errorf("db save failed: %w", err)
	}
	return stored, nil
}

// List returns the owner's paginated documents without exposing repository types.
func (s *documentService) List(ctx context.Context, ownerID string, opts ListOptions) (*DocumentListResult, error) {
	if ownerID == "" {
		return nil, ErrOwnerRequired
	}
	if opts.Limit <= 0 {
		opts.Limit = 10
	}
	if opts.Limit > 100 {
		opts.Limit = 100
	}
	if opts.Offset < 0 {
		opts.Offset = 0
	}
	if opts.Category != "" {
		if _, ok := model.ParseCategory(string(opts.Category)); !ok {
			return nil, ErrInvalidCategory
		}
	}

	res, err := s.repo.List(ctx,
		repository.DocumentFilter{
			OwnerID:   ownerID,
			Category:  opts.Category,
			NameQuery: opts.NameQuery,
		},
		repository.PageQuery{Limit: opts.Limit, Offset: opts.Offset},
	)
	if err != nil {
		return nil, err
	}
	return &DocumentListResult{Items: res.Items, Total: res.Total}, nil
}

// findOwned fetches a document and enforces ownership. Missing rows map to
// ErrNotFound; rows owned by someone else map to ErrForbidden.
func (s *documentService) findOwned(ctx context.Context, ownerID, id string) (*model.Document, error) {
	if id == "" {
		return nil, ErrIDRequired
	}
	if ownerID == "" {
		return nil, ErrOwnerRequired
	}
	doc, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if doc.UserID != ownerID {
		return nil, ErrForbidden
	}
	return doc, nil
}

// Get returns a document by ID after the ownership check.
func (s *documentService) Get(ctx context.Context, ownerID, id string) (*model.Document, error) {
	return s.findOwned(ctx, ownerID, id)
}

// Open returns the document and a streaming reader over its object content.
// The caller must close the reader.
func (s *documentService) Open(ctx context.Context, ownerID, id string) (io.ReadCloser, *model.Document, error) {
	doc, err := s.findOwned(ctx, ownerID, id)
	if err != nil {
		return nil, nil, err
	}
	rc, _, err := s.store.Get(ctx, doc.StoragePath)
	if err != nil {
		return nil, nil, fmt.Errorf("get from storage: %w", err)
	}
	return rc, doc, nil
}

// Thumbnail renders page one of the document as a PNG.
func (s *documentService) Thumbnail(ctx context.Context, ownerID, id string, width int) ([]byte, error) {
	rc, _, err := s.Open(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	// Rasterization needs the whole file; uploads are already bounded by the
	// configured max size.
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read document content: %w", err)
	}

	png, err := renderFirstPagePNG(data, width)
	if err != nil {
		return nil, fmt.Errorf("render thumbnail: %w", err)
	}
	return png, nil
}

// PresignDownload returns a presigned GET URL for the owner's document.
func (s *documentService) PresignDownload(ctx context.Context, ownerID, id string) (string, error) {
	doc, err := s.findOwned(ctx, ownerID, id)
	if err != nil {
		return "", err
	}
	u, err := s.store.PresignGet(ctx, doc.StoragePath, s.upload.PresignTTL)
	if err != nil {
		return "", fmt.Errorf("presign download: %w", err)
	}
	return u, nil
}

// Delete removes a document from storage, then deletes its record.
func (s *documentService) Delete(ctx context.Context, ownerID, id string) error {
	doc, err := s.findOwned(ctx, ownerID, id)
	if err != nil {
		return err
	}
	// Delete from storage first; if this fails, keep DB row to avoid losing the reference
	if err := s.store.Delete(ctx, doc.StoragePath); err != nil {
		return fmt.Errorf("delete storage: %w", err)
	}
	return s.repo.Delete(ctx, id)
}
