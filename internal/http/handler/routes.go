package handler

import (
	"database/sql"

	"github.com/gofiber/fiber/v2"

	"patientdocs/internal/http/middleware"
	"patientdocs/internal/service"
)

// RegisterRoutes attaches HTTP routes to the provided Fiber app.
// Handlers stay free of business logic; they validate input, call the
// injected services, and translate errors.
func RegisterRoutes(app *fiber.App, db *sql.DB, authSvc service.AuthService, docSvc service.DocumentService, jwtSecret []byte) {
	// Health endpoints: readiness checks DB connectivity, liveness is plain 200
	app.Get("/health", HealthCheck(db))
	app.Get("/healthz", LivenessProbe())

	// Public auth endpoints
	app.Post("/auth/register", Register(authSvc))
	app.Post("/auth/login", Login(authSvc))

	// Everything below requires a valid Bearer token
	authed := app.Group("", middleware.Auth(jwtSecret))

	authed.Get("/me", Me(authSvc))

	authed.Post("/documents", UploadDocument(docSvc))
	authed.Get("/documents", ListDocuments(docSvc))
	authed.Get("/documents/:id", GetDocument(docSvc))
	authed.Get("/documents/:id/download", DownloadDocument(docSvc))
	authed.Get("/documents/:id/preview", PreviewDocument(docSvc))
	authed.Get("/documents/:id/thumbnail", ThumbnailDocument(docSvc))
	authed.Get("/documents/:id/url", PresignDocumentURL(docSvc))
	authed.Delete("/documents/:id", DeleteDocument(docSvc))
}
