package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"patientdocs/internal/http/middleware"
	"patientdocs/internal/model"
	"patientdocs/internal/service"
	serviceMocks "patientdocs/internal/service/mocks"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// fakeAuth injects a fixed user ID, standing in for middleware.Auth.
func fakeAuth(userID string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Locals(middleware.UserIDLocalKey, userID)
		return c.Next()
	}
}

func TestHealthCheck(t *testing.T) {
	db, dbMock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	app := fiber.New()
	app.Get("/health", HealthCheck(db))

	t.Run("healthy", func(t *testing.T) {
		dbMock.ExpectPing().WillReturnError(nil)

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var body map[string]string
		json.NewDecoder(resp.Body).Decode(&body)
		assert.Equal(t, "healthy", body["status"])
	})

	t.Run("unhealthy", func(t *testing.T) {
		dbMock.ExpectPing().WillReturnError(errors.New("db error"))

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

		var body errorPayload
		json.NewDecoder(resp.Body).Decode(&body)
		assert.Equal(t, "SERVICE_UNAVAILABLE", body.Error.Code)
	})
}

func TestLivenessProbe(t *testing.T) {
	app := fiber.New()
	app.Get("/healthz", LivenessProbe())

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	resp, _ := app.Test(req)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRegister(t *testing.T) {
	newApp := func(svc service.AuthService) *fiber.App {
		app := fiber.New()
		app.Post("/auth/register", Register(svc))
		return app
	}

	t.Run("created", func(t *testing.T) {
		mSvc := new(serviceMocks.MockAuthService)
		mSvc.On("Register", mock.Anything, service.RegisterInput{
			Email:     "jane@example.com",
			Password:  "long enough",
			FirstName: "Jane",
			LastName:  "Doe",
		}).Return(&model.User{ID: "u1", Email: "jane@example.com"}, nil)

		body := `{"email":"jane@example.com","password":"long enough","first_name":"Jane","last_name":"Doe"}`
		req := httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader(body))
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)

		resp, _ := newApp(mSvc).Test(req)

		assert.Equal(t, http.StatusCreated, resp.StatusCode)

		var user model.User
		json.NewDecoder(resp.Body).Decode(&user)
		assert.Equal(t, "u1", user.ID)
		mSvc.AssertExpectations(t)
	})

	t.Run("duplicate email", func(t *testing.T) {
		mSvc := new(serviceMocks.MockAuthService)
		mSvc.On("Register", mock.Anything, mock.Anything).Return(nil, service.ErrEmailTaken)

		body := `{"email":"jane@example.com","password":"long enough","first_name":"Jane","last_name":"Doe"}`
		req := httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader(body))
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)

		resp, _ := newApp(mSvc).Test(req)

		assert.Equal(t, http.StatusConflict, resp.StatusCode)

		var payload errorPayload
		json.NewDecoder(resp.Body).Decode(&payload)
		assert.Equal(t, "EMAIL_TAKEN", payload.Error.Code)
	})

	t.Run("weak password", func(t *testing.T) {
		mSvc := new(serviceMocks.MockAuthService)
		mSvc.On("Register", mock.Anything, mock.Anything).Return(nil, service.ErrWeakPassword)

		body := `{"email":"jane@example.com","password":"short","first_name":"Jane","last_name":"Doe"}`
		req := httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader(body))
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)

		resp, _ := newApp(mSvc).Test(req)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("invalid body", func(t *testing.T) {
		mSvc := new(serviceMocks.MockAuthService)

		req := httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader("{not json"))
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)

		resp, _ := newApp(mSvc).Test(req)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		mSvc.AssertNotCalled(t, "Register", mock.Anything, mock.Anything)
	})
}

func TestLogin(t *testing.T) {
	newApp := func(svc service.AuthService) *fiber.App {
		app := fiber.New()
		app.Post("/auth/login", Login(svc))
		return app
	}

	t.Run("success returns token", func(t *testing.T) {
		mSvc := new(serviceMocks.MockAuthService)
		mSvc.On("Login", mock.Anything, "jane@example.com", "long enough").
			Return(&service.LoginResult{
				AccessToken: "token-123",
				ExpiresIn:   3600,
				User:        &model.User{ID: "u1"},
			}, nil)

		body := `{"email":"jane@example.com","password":"long enough"}`
		req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body))
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)

		resp, _ := newApp(mSvc).Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var res service.LoginResult
		json.NewDecoder(resp.Body).Decode(&res)
		assert.Equal(t, "token-123", res.AccessToken)
		assert.Equal(t, int64(3600), res.ExpiresIn)
	})

	t.Run("bad credentials", func(t *testing.T) {
		mSvc := new(serviceMocks.MockAuthService)
		mSvc.On("Login", mock.Anything, mock.Anything, mock.Anything).
			Return(nil, service.ErrInvalidCredentials)

		body := `{"email":"jane@example.com","password":"wrong"}`
		req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body))
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)

		resp, _ := newApp(mSvc).Test(req)

		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

		var payload errorPayload
		json.NewDecoder(resp.Body).Decode(&payload)
		assert.Equal(t, "INVALID_CREDENTIALS", payload.Error.Code)
	})
}

func TestMe(t *testing.T) {
	mSvc := new(serviceMocks.MockAuthService)
	mSvc.On("CurrentUser", mock.Anything, "owner-1").
		Return(&model.User{ID: "owner-1", Email: "jane@example.com"}, nil)

	app := fiber.New()
	app.Use(fakeAuth("owner-1"))
	app.Get("/me", Me(mSvc))

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	resp, _ := app.Test(req)

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var user model.User
	json.NewDecoder(resp.Body).Decode(&user)
	assert.Equal(t, "owner-1", user.ID)
}

// newMultipartUpload builds a multipart body with a file part and category field.
func newMultipartUpload(t *testing.T, filename, contentType, category, content string) (*bytes.Buffer, string) {
	t.Helper()
	buf := new(bytes.Buffer)
	w := multipart.NewWriter(buf)

	hdr := make(map[string][]string)
	hdr["Content-Disposition"] = []string{`form-data; name="file"; filename="` + filename + `"`}
	hdr["Content-Type"] = []string{contentType}
	part, err := w.CreatePart(hdr)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)

	require.NoError(t, w.WriteField("category", category))
	require.NoError(t, w.Close())
	return buf, w.FormDataContentType()
}

func TestUploadDocument(t *testing.T) {
	newApp := func(svc service.DocumentService) *fiber.App {
		app := fiber.New()
		app.Use(fakeAuth("owner-1"))
		app.Post("/documents", UploadDocument(svc))
		return app
	}

	t.Run("created", func(t *testing.T) {
		mSvc := new(serviceMocks.MockDocumentService)
		mSvc.On("Upload", mock.Anything, mock.MatchedBy(func(in service.UploadInput) bool {
			return in.OriginalFilename == "report.pdf" &&
				in.ContentType == "application/pdf" &&
				in.Category == model.CategoryLabResults &&
				in.OwnerID == "owner-1"
		})).Return(&model.Document{ID: "d1"}, nil)

		body, ct := newMultipartUpload(t, "report.pdf", "application/pdf", "lab_results", "%PDF-1.4 data")
		req := httptest.NewRequest(http.MethodPost, "/documents", body)
		req.Header.Set(fiber.HeaderContentType, ct)

		resp, _ := newApp(mSvc).Test(req)

		assert.Equal(t, http.StatusCreated, resp.StatusCode)
		mSvc.AssertExpectations(t)
	})

	t.Run("file missing", func(t *testing.T) {
		mSvc := new(serviceMocks.MockDocumentService)

		buf := new(bytes.Buffer)
		w := multipart.NewWriter(buf)
		require.NoError(t, w.WriteField("category", "other"))
		require.NoError(t, w.Close())

		req := httptest.NewRequest(http.MethodPost, "/documents", buf)
		req.Header.Set(fiber.HeaderContentType, w.FormDataContentType())

		resp, _ := newApp(mSvc).Test(req)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

		var payload errorPayload
		json.NewDecoder(resp.Body).Decode(&payload)
		assert.Equal(t, "FILE_REQUIRED", payload.Error.Code)
	})

	t.Run("bad category", func(t *testing.T) {
		mSvc := new(serviceMocks.MockDocumentService)

		body, ct := newMultipartUpload(t, "report.pdf", "application/pdf", "homework", "%PDF-1.4 data")
		req := httptest.NewRequest(http.MethodPost, "/documents", body)
		req.Header.Set(fiber.HeaderContentType, ct)

		resp, _ := newApp(mSvc).Test(req)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		mSvc.AssertNotCalled(t, "Upload", mock.Anything, mock.Anything)
	})

	t.Run("service rejects non-pdf", func(t *testing.T) {
		mSvc := new(serviceMocks.MockDocumentService)
		mSvc.On("Upload", mock.Anything, mock.Anything).Return(nil, service.ErrNotPDF)

		body, ct := newMultipartUpload(t, "cat.gif", "image/gif", "other", "GIF89a")
		req := httptest.NewRequest(http.MethodPost, "/documents", body)
		req.Header.Set(fiber.HeaderContentType, ct)

		resp, _ := newApp(mSvc).Test(req)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

		var payload errorPayload
		json.NewDecoder(resp.Body).Decode(&payload)
		assert.Equal(t, "UNSUPPORTED_MEDIA", payload.Error.Code)
	})

	t.Run("service rejects oversize", func(t *testing.T) {
		mSvc := new(serviceMocks.MockDocumentService)
		mSvc.On("Upload", mock.Anything, mock.Anything).Return(nil, service.ErrTooLarge)

		body, ct := newMultipartUpload(t, "big.pdf", "application/pdf", "other", "%PDF-1.4 data")
		req := httptest.NewRequest(http.MethodPost, "/documents", body)
		req.Header.Set(fiber.HeaderContentType, ct)

		resp, _ := newApp(mSvc).Test(req)

		assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
	})
}

func TestListDocuments(t *testing.T) {
	newApp := func(svc service.DocumentService) *fiber.App {
		app := fiber.New()
		app.Use(fakeAuth("owner-1"))
		app.Get("/documents", ListDocuments(svc))
		return app
	}

	t.Run("with filters", func(t *testing.T) {
		mSvc := new(serviceMocks.MockDocumentService)
		mSvc.On("List", mock.Anything, "owner-1", service.ListOptions{
			Category:  model.CategoryImaging,
			NameQuery: "mri",
			Limit:     5,
			Offset:    10,
		}).Return(&service.DocumentListResult{
			Items: []model.Document{{ID: "d1"}},
			Total: 1,
		}, nil)

		req := httptest.NewRequest(http.MethodGet, "/documents?limit=5&offset=10&category=imaging&q=mri", nil)
		resp, _ := newApp(mSvc).Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var res service.DocumentListResult
		json.NewDecoder(resp.Body).Decode(&res)
		assert.Equal(t, 1, res.Total)
		assert.Len(t, res.Items, 1)
		mSvc.AssertExpectations(t)
	})

	t.Run("invalid limit", func(t *testing.T) {
		mSvc := new(serviceMocks.MockDocumentService)

		req := httptest.NewRequest(http.MethodGet, "/documents?limit=abc", nil)
		resp, _ := newApp(mSvc).Test(req)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("invalid category", func(t *testing.T) {
		mSvc := new(serviceMocks.MockDocumentService)

		req := httptest.NewRequest(http.MethodGet, "/documents?category=homework", nil)
		resp, _ := newApp(mSvc).Test(req)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		mSvc.AssertNotCalled(t, "List", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestGetDocument(t *testing.T) {
	newApp := func(svc service.DocumentService) *fiber.App {
		app := fiber.New()
		app.Use(fakeAuth("owner-1"))
		app.Get("/documents/:id", GetDocument(svc))
		return app
	}

	validID := uuid.NewString()

	t.Run("found", func(t *testing.T) {
		mSvc := new(serviceMocks.MockDocumentService)
		mSvc.On("Get", mock.Anything, "owner-1", validID).
			Return(&model.Document{ID: validID, UserID: "owner-1"}, nil)

		req := httptest.NewRequest(http.MethodGet, "/documents/"+validID, nil)
		resp, _ := newApp(mSvc).Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("invalid id", func(t *testing.T) {
		mSvc := new(serviceMocks.MockDocumentService)

		req := httptest.NewRequest(http.MethodGet, "/documents/not-a-uuid", nil)
		resp, _ := newApp(mSvc).Test(req)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		mSvc.AssertNotCalled(t, "Get", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("not found", func(t *testing.T) {
		mSvc := new(serviceMocks.MockDocumentService)
		mSvc.On("Get", mock.Anything, "owner-1", validID).Return(nil, service.ErrNotFound)

		req := httptest.NewRequest(http.MethodGet, "/documents/"+validID, nil)
		resp, _ := newApp(mSvc).Test(req)

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("other owner gets 403", func(t *testing.T) {
		mSvc := new(serviceMocks.MockDocumentService)
		mSvc.On("Get", mock.Anything, "owner-1", validID).Return(nil, service.ErrForbidden)

		req := httptest.NewRequest(http.MethodGet, "/documents/"+validID, nil)
		resp, _ := newApp(mSvc).Test(req)

		assert.Equal(t, http.StatusForbidden, resp.StatusCode)

		var payload errorPayload
		json.NewDecoder(resp.Body).Decode(&payload)
		assert.Equal(t, "FORBIDDEN", payload.Error.Code)
	})
}

func TestDownloadAndPreviewDocument(t *testing.T) {
	validID := uuid.NewString()
	content := "%PDF-1.4 file body"

	doc := &model.Document{
		ID:               validID,
		OriginalFilename: "lab report.pdf",
		ContentType:      "application/pdf",
		Size:             int64(len(content)),
		UserID:           "owner-1",
	}

	tests := []struct {
		name            string
		route           string
		handler         func(service.DocumentService) fiber.Handler
		wantDisposition string
	}{
		{"download is attachment", "/documents/:id/download", DownloadDocument, `attachment; filename="lab report.pdf"`},
		{"preview is inline", "/documents/:id/preview", PreviewDocument, `inline; filename="lab report.pdf"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mSvc := new(serviceMocks.MockDocumentService)
			mSvc.On("Open", mock.Anything, "owner-1", validID).
				Return(io.NopCloser(strings.NewReader(content)), doc, nil)

			app := fiber.New()
			app.Use(fakeAuth("owner-1"))
			app.Get(tt.route, tt.handler(mSvc))

			req := httptest.NewRequest(http.MethodGet, strings.Replace(tt.route, ":id", validID, 1), nil)
			resp, _ := app.Test(req)

			assert.Equal(t, http.StatusOK, resp.StatusCode)
			assert.Equal(t, "application/pdf", resp.Header.Get(fiber.HeaderContentType))
			assert.Equal(t, tt.wantDisposition, resp.Header.Get(fiber.HeaderContentDisposition))

			body, _ := io.ReadAll(resp.Body)
			assert.Equal(t, content, string(body))
		})
	}
}

func TestThumbnailDocument(t *testing.T) {
	validID := uuid.NewString()

	t.Run("renders png", func(t *testing.T) {
		mSvc := new(serviceMocks.MockDocumentService)
		mSvc.On("Thumbnail", mock.Anything, "owner-1", validID, 320).
			Return([]byte{0x89, 'P', 'N', 'G'}, nil)

		app := fiber.New()
		app.Use(fakeAuth("owner-1"))
		app.Get("/documents/:id/thumbnail", ThumbnailDocument(mSvc))

		req := httptest.NewRequest(http.MethodGet, "/documents/"+validID+"/thumbnail?width=320", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "image/png", resp.Header.Get(fiber.HeaderContentType))
	})

	t.Run("invalid width", func(t *testing.T) {
		mSvc := new(serviceMocks.MockDocumentService)

		app := fiber.New()
		app.Use(fakeAuth("owner-1"))
		app.Get("/documents/:id/thumbnail", ThumbnailDocument(mSvc))

		req := httptest.NewRequest(http.MethodGet, "/documents/"+validID+"/thumbnail?width=wide", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestPresignDocumentURL(t *testing.T) {
	validID := uuid.NewString()

	mSvc := new(serviceMocks.MockDocumentService)
	mSvc.On("PresignDownload", mock.Anything, "owner-1", validID).
		Return("https://minio.local/signed", nil)

	app := fiber.New()
	app.Use(fakeAuth("owner-1"))
	app.Get("/documents/:id/url", PresignDocumentURL(mSvc))

	req := httptest.NewRequest(http.MethodGet, "/documents/"+validID+"/url", nil)
	resp, _ := app.Test(req)

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	json.NewDecoder(resp.Body).Decode(&body)
	assert.Equal(t, "https://minio.local/signed", body["url"])
}

func TestDeleteDocument(t *testing.T) {
	newApp := func(svc service.DocumentService) *fiber.App {
		app := fiber.New()
		app.Use(fakeAuth("owner-1"))
		app.Delete("/documents/:id", DeleteDocument(svc))
		return app
	}

	validID := uuid.NewString()

	t.Run("deleted", func(t *testing.T) {
		mSvc := new(serviceMocks.MockDocumentService)
		mSvc.On("Delete", mock.Anything, "owner-1", validID).Return(nil)

		req := httptest.NewRequest(http.MethodDelete, "/documents/"+validID, nil)
		resp, _ := newApp(mSvc).Test(req)

		assert.Equal(t, http.StatusNoContent, resp.StatusCode)
		mSvc.AssertExpectations(t)
	})

	t.Run("not found", func(t *testing.T) {
		mSvc := new(serviceMocks.MockDocumentService)
		mSvc.On("Delete", mock.Anything, "owner-1", validID).Return(service.ErrNotFound)

		req := httptest.NewRequest(http.MethodDelete, "/documents/"+validID, nil)
		resp, _ := newApp(mSvc).Test(req)

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("other owner", func(t *testing.T) {
		mSvc := new(serviceMocks.MockDocumentService)
		mSvc.On("Delete", mock.Anything, "owner-1", validID).Return(service.ErrForbidden)

		req := httptest.NewRequest(http.MethodDelete, "/documents/"+validID, nil)
		resp, _ := newApp(mSvc).Test(req)

		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})
}
