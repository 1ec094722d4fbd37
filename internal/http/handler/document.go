package handler

import (
	"fmt"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"patientdocs/internal/http/middleware"
	"patientdocs/internal/model"
	"patientdocs/internal/service"
)

// parseDocumentID validates the :id path parameter.
func parseDocumentID(c *fiber.Ctx) (string, bool) {
	id := c.Params("id")
	if _, err := uuid.Parse(id); err != nil {
		return "", false
	}
	return id, true
}

// UploadDocument accepts a multipart PDF (field "file") tagged with a
// category (form field "category") and stores it for the caller.
func UploadDocument(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		fh, err := c.FormFile("file")
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_REQUIRED", "file is required")
		}

		category, ok := model.ParseCategory(c.FormValue("category"))
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_CATEGORY", "unknown document category")
		}

		f, err := fh.Open()
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_OPEN_ERROR", "cannot open uploaded file")
		}
		defer f.Close()

		ct := fh.Header.Get("Content-Type")
		if ct == "" {
			ct = "application/octet-stream"
		}

		doc, err := svc.Upload(c.UserContext(), service.UploadInput{
			Reader:           f,
			OriginalFilename: fh.Filename,
			ContentType:      ct,
			Size:             fh.Size,
			Category:         category,
			OwnerID:          middleware.UserIDFromCtx(c),
		})
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(doc)
	}
}

// ListDocuments returns the caller's documents with limit/offset pagination,
// an optional category filter, and an optional filename search (q).
func ListDocuments(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		limit, err := strconv.Atoi(c.Query("limit", "10"))
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_LIMIT", "invalid limit")
		}
		offset, err := strconv.Atoi(c.Query("offset", "0"))
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_OFFSET", "invalid offset")
		}

		opts := service.ListOptions{
			NameQuery: c.Query("q"),
			Limit:     limit,
			Offset:    offset,
		}
		if raw := c.Query("category"); raw != "" {
			category, ok := model.ParseCategory(raw)
			if !ok {
				return writeError(c, fiber.StatusBadRequest, "INVALID_CATEGORY", "unknown document category")
			}
			opts.Category = category
		}

		res, err := svc.List(c.UserContext(), middleware.UserIDFromCtx(c), opts)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(res)
	}
}

// GetDocument returns a single document's metadata.
func GetDocument(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := parseDocumentID(c)
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		doc, err := svc.Get(c.UserContext(), middleware.UserIDFromCtx(c), id)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(doc)
	}
}

// sendDocumentStream streams a document's bytes with the given disposition.
func sendDocumentStream(c *fiber.Ctx, svc service.DocumentService, disposition string) error {
	id, ok := parseDocumentID(c)
	if !ok {
		return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
	}
	rc, doc, err := svc.Open(c.UserContext(), middleware.UserIDFromCtx(c), id)
	if err != nil {
		return writeServiceError(c, err)
	}
	// Fiber drains and closes the stream after the response is written.
	c.Set(fiber.HeaderContentType, doc.ContentType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("%s; filename=%q", disposition, doc.OriginalFilename))
	return c.SendStream(rc, int(doc.Size))
}

// DownloadDocument streams the file as an attachment under its original name.
func DownloadDocument(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return sendDocumentStream(c, svc, "attachment")
	}
}

// PreviewDocument streams the file inline so browsers render the PDF in-page.
func PreviewDocument(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return sendDocumentStream(c, svc, "inline")
	}
}

// ThumbnailDocument renders page one of the PDF as a PNG.
func ThumbnailDocument(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := parseDocumentID(c)
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		width, err := strconv.Atoi(c.Query("width", "0"))
		if err != nil || width < 0 {
			return writeError(c, fiber.StatusBadRequest, "INVALID_WIDTH", "invalid width")
		}

		png, err := svc.Thumbnail(c.UserContext(), middleware.UserIDFromCtx(c), id, width)
		if err != nil {
			return writeServiceError(c, err)
		}
		c.Set(fiber.HeaderContentType, "image/png")
		return c.Send(png)
	}
}

// PresignDocumentURL returns a time-limited direct download URL.
func PresignDocumentURL(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := parseDocumentID(c)
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		u, err := svc.PresignDownload(c.UserContext(), middleware.UserIDFromCtx(c), id)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(fiber.Map{"url": u})
	}
}

// DeleteDocument removes a document and its backing object.
func DeleteDocument(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := parseDocumentID(c)
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		if err := svc.Delete(c.UserContext(), middleware.UserIDFromCtx(c), id); err != nil {
			return writeServiceError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}
