package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"medicine_verification_api/internal/service"
	"medicine_verification_api/types"

	"go.uber.org/zap/zaptest"
)

// Mock для VerificationService
type mockVerificationService struct {
	submitFunc   func(ctx context.Context, imageData []byte, contentType string, filename string) (*types.UploadResult, error)
	listFunc     func(ctx context.Context) ([]*types.MedicineSummary, error)
	getImageFunc func(ctx context.Context, id string) ([]byte, string, error)
	deleteFunc   func(ctx context.Context, id string) (*types.Medicine, error)
	submitCalls  int
}

func (m *mockVerificationService) SubmitMedicine(ctx context.Context, imageData []byte, contentType string, filename string) (*types.UploadResult, error) {
	m.submitCalls++
	if m.submitFunc != nil {
		return m.submitFunc(ctx, imageData, contentType, filename)
	}
	return &types.UploadResult{ID: "test-id", Filename: filename, UploadedAt: time.Now()}, nil
}

func (m *mockVerificationService) ListMedicines(ctx context.Context) ([]*types.MedicineSummary, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx)
	}
	return []*types.MedicineSummary{}, nil
}

func (m *mockVerificationService) GetMedicineImage(ctx context.Context, id string) ([]byte, string, error) {
	if m.getImageFunc != nil {
		return m.getImageFunc(ctx, id)
	}
	return nil, "", service.ErrNotFound
}

func (m *mockVerificationService) DeleteMedicine(ctx context.Context, id string) (*types.Medicine, error) {
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, id)
	}
	return nil, service.ErrNotFound
}

// Mock для database.LivenessChecker
type mockLiveness struct {
	live bool
}

func (m *mockLiveness) IsLive() bool {
	return m.live
}

func newTestHandler(t *testing.T, svc service.VerificationService, live bool) http.Handler {
	t.Helper()
	return NewHandler(svc, &mockLiveness{live: live}, zaptest.NewLogger(t)).Routes()
}

// multipartBody собирает multipart-запрос с полем medicineImage
func multipartBody(t *testing.T, fieldName, filename, contentType string, data []byte) (*bytes.Buffer, string) {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	header := make(map[string][]string)
	header["Content-Disposition"] = []string{`form-data; name="` + fieldName + `"; filename="` + filename + `"`}
	header["Content-Type"] = []string{contentType}

	part, err := writer.CreatePart(header)
	if err != nil {
		t.Fatalf("failed to create multipart part: %v", err)
	}
	if _, err := part.Write(data); err != nil {
		t.Fatalf("failed to write multipart data: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("failed to close multipart writer: %v", err)
	}

	return body, writer.FormDataContentType()
}

func TestUploadHandler(t *testing.T) {
	tests := []struct {
		name            string
		fieldName       string
		filename        string
		submitError     error
		expectedStatus  int
		expectedService bool
	}{
		{
			name:            "successful_upload",
			fieldName:       "medicineImage",
			filename:        "pill.jpg",
			expectedStatus:  http.StatusOK,
			expectedService: true,
		},
		{
			name:           "wrong_field_name",
			fieldName:      "file",
			filename:       "pill.jpg",
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "non_image_file",
			fieldName:      "medicineImage",
			filename:       "report.pdf",
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:            "store_unavailable",
			fieldName:       "medicineImage",
			filename:        "pill.jpg",
			submitError:     service.ErrStoreUnavailable,
			expectedStatus:  http.StatusServiceUnavailable,
			expectedService: true,
		},
		{
			name:            "classification_failed",
			fieldName:       "medicineImage",
			filename:        "pill.jpg",
			submitError:     service.ErrClassificationFailed,
			expectedStatus:  http.StatusBadGateway,
			expectedService: true,
		},
		{
			name:            "persistence_failed",
			fieldName:       "medicineImage",
			filename:        "pill.jpg",
			submitError:     service.ErrPersistenceFailed,
			expectedStatus:  http.StatusInternalServerError,
			expectedService: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var receivedData []byte
			var receivedContentType string

			svc := &mockVerificationService{
				submitFunc: func(ctx context.Context, imageData []byte, contentType string, filename string) (*types.UploadResult, error) {
					receivedData = imageData
					receivedContentType = contentType
					if tt.submitError != nil {
						return nil, tt.submitError
					}
					return &types.UploadResult{
						ID:          "test-id",
						Filename:    filename,
						UploadedAt:  time.Now(),
						IsAuthentic: true,
						Confidence:  87,
					}, nil
				},
			}

			handler := newTestHandler(t, svc, true)

			imageData := []byte{0xFF, 0xD8, 0xFF, 0xE0}
			body, formContentType := multipartBody(t, tt.fieldName, tt.filename, "image/jpeg", imageData)

			req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
			req.Header.Set("Content-Type", formContentType)
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			if rec.Code != tt.expectedStatus {
				t.Errorf("expected status %d, but got %d: %s", tt.expectedStatus, rec.Code, rec.Body.String())
			}

			if tt.expectedService != (svc.submitCalls > 0) {
				t.Errorf("expected service called=%t, but got %d calls", tt.expectedService, svc.submitCalls)
			}

			if tt.expectedStatus == http.StatusOK {
				if string(receivedData) != string(imageData) {
					t.Error("uploaded bytes did not reach the service intact")
				}
				if receivedContentType != "image/jpeg" {
					t.Errorf("expected content type 'image/jpeg', but got '%s'", receivedContentType)
				}

				var resp struct {
					Message string              `json:"message"`
					Result  *types.UploadResult `json:"result"`
				}
				if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
					t.Fatalf("failed to decode response: %v", err)
				}
				if resp.Result == nil || resp.Result.ID != "test-id" {
					t.Errorf("unexpected upload result: %+v", resp.Result)
				}
			}
		})
	}
}

func TestListMedicinesHandler(t *testing.T) {
	tests := []struct {
		name           string
		listResult     []*types.MedicineSummary
		listError      error
		expectedStatus int
		expectedBody   string
	}{
		{
			name:           "empty_store_returns_empty_array",
			listResult:     []*types.MedicineSummary{},
			expectedStatus: http.StatusOK,
			expectedBody:   "[]",
		},
		{
			name: "records_present",
			listResult: []*types.MedicineSummary{
				{ID: "id-1", Filename: "pill.jpg", AnalysisResult: types.VerdictAuthentic, Confidence: 87},
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"analysis_result":"authentic"`,
		},
		{
			name:           "store_unavailable",
			listError:      service.ErrStoreUnavailable,
			expectedStatus: http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockVerificationService{
				listFunc: func(ctx context.Context) ([]*types.MedicineSummary, error) {
					return tt.listResult, tt.listError
				},
			}

			handler := newTestHandler(t, svc, true)

			req := httptest.NewRequest(http.MethodGet, "/api/medicines", nil)
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			if rec.Code != tt.expectedStatus {
				t.Errorf("expected status %d, but got %d", tt.expectedStatus, rec.Code)
			}

			if tt.expectedBody != "" && !strings.Contains(rec.Body.String(), tt.expectedBody) {
				t.Errorf("expected body to contain '%s', but got '%s'", tt.expectedBody, rec.Body.String())
			}

			// Ответ никогда не должен быть null
			if tt.expectedStatus == http.StatusOK && strings.TrimSpace(rec.Body.String()) == "null" {
				t.Error("list response must never be null")
			}
		})
	}
}

func TestGetMedicineImageHandler(t *testing.T) {
	imageData := []byte{0xFF, 0xD8, 0x01, 0x02}

	tests := []struct {
		name           string
		id             string
		getImageError  error
		expectedStatus int
	}{
		{
			name:           "found",
			id:             "id-1",
			expectedStatus: http.StatusOK,
		},
		{
			name:           "not_found",
			id:             "missing",
			getImageError:  service.ErrNotFound,
			expectedStatus: http.StatusNotFound,
		},
		{
			name:           "store_unavailable",
			id:             "id-1",
			getImageError:  service.ErrStoreUnavailable,
			expectedStatus: http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockVerificationService{
				getImageFunc: func(ctx context.Context, id string) ([]byte, string, error) {
					if tt.getImageError != nil {
						return nil, "", tt.getImageError
					}
					return imageData, "image/jpeg", nil
				},
			}

			handler := newTestHandler(t, svc, true)

			req := httptest.NewRequest(http.MethodGet, "/api/medicines/"+tt.id, nil)
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			if rec.Code != tt.expectedStatus {
				t.Errorf("expected status %d, but got %d", tt.expectedStatus, rec.Code)
			}

			if tt.expectedStatus == http.StatusOK {
				if rec.Header().Get("Content-Type") != "image/jpeg" {
					t.Errorf("expected content type 'image/jpeg', but got '%s'", rec.Header().Get("Content-Type"))
				}
				if !bytes.Equal(rec.Body.Bytes(), imageData) {
					t.Error("response bytes do not match stored image")
				}
			}
		})
	}
}

func TestDeleteMedicineHandler(t *testing.T) {
	tests := []struct {
		name           string
		deleteError    error
		expectedStatus int
	}{
		{
			name:           "deleted",
			expectedStatus: http.StatusOK,
		},
		{
			name:           "not_found",
			deleteError:    service.ErrNotFound,
			expectedStatus: http.StatusNotFound,
		},
		{
			name:           "store_unavailable",
			deleteError:    service.ErrStoreUnavailable,
			expectedStatus: http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockVerificationService{
				deleteFunc: func(ctx context.Context, id string) (*types.Medicine, error) {
					if tt.deleteError != nil {
						return nil, tt.deleteError
					}
					return &types.Medicine{ID: id}, nil
				},
			}

			handler := newTestHandler(t, svc, true)

			req := httptest.NewRequest(http.MethodDelete, "/api/medicines/id-1", nil)
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			if rec.Code != tt.expectedStatus {
				t.Errorf("expected status %d, but got %d", tt.expectedStatus, rec.Code)
			}
		})
	}
}

func TestHealthHandlers(t *testing.T) {
	tests := []struct {
		name           string
		path           string
		live           bool
		expectedStatus int
	}{
		{
			name:           "live_always_ok",
			path:           "/health/live",
			live:           false,
			expectedStatus: http.StatusOK,
		},
		{
			name:           "ready_when_connected",
			path:           "/health/ready",
			live:           true,
			expectedStatus: http.StatusOK,
		},
		{
			name:           "not_ready_when_disconnected",
			path:           "/health/ready",
			live:           false,
			expectedStatus: http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := newTestHandler(t, &mockVerificationService{}, tt.live)

			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			if rec.Code != tt.expectedStatus {
				t.Errorf("expected status %d, but got %d", tt.expectedStatus, rec.Code)
			}
		})
	}
}

func TestCORSPreflight(t *testing.T) {
	handler := newTestHandler(t, &mockVerificationService{}, true)

	req := httptest.NewRequest(http.MethodOptions, "/api/medicines", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("expected status %d, but got %d", http.StatusNoContent, rec.Code)
	}

	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("expected CORS headers on preflight response")
	}
}
