package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"regexp"

	"medicine_verification_api/internal/api/middleware"
	"medicine_verification_api/internal/database"
	"medicine_verification_api/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Лимит на размер загружаемого изображения
const maxUploadSize = 20 << 20

// Принимаются только изображения, фильтр по расширению файла
var imageFilenamePattern = regexp.MustCompile(`(?i)\.(jpg|jpeg|png|gif)$`)

type Handler struct {
	service  service.VerificationService
	liveness database.LivenessChecker
	logger   *zap.Logger
}

func NewHandler(svc service.VerificationService, liveness database.LivenessChecker, logger *zap.Logger) *Handler {
	return &Handler{
		service:  svc,
		liveness: liveness,
		logger:   logger,
	}
}

// Routes собирает маршруты сервиса.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestLogger(h.logger))
	r.Use(middleware.Metrics())
	r.Use(cors)

	r.Get("/health/live", h.healthLive)
	r.Get("/health/ready", h.healthReady)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/test", h.test)
		r.Post("/upload", h.upload)
		r.Get("/medicines", h.listMedicines)
		r.Get("/medicines/{id}", h.getMedicineImage)
		r.Delete("/medicines/{id}", h.deleteMedicine)
	})

	return r
}

func (h *Handler) test(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "Backend is connected!"})
}

func (h *Handler) healthLive(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// healthReady отражает liveness подключения к базе.
func (h *Handler) healthReady(w http.ResponseWriter, r *http.Request) {
	if !h.liveness.IsLive() {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("database not ready"))
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (h *Handler) upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)

	file, header, err := r.FormFile("medicineImage")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "No file uploaded"})
		return
	}
	defer file.Close()

	if !imageFilenamePattern.MatchString(header.Filename) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Only image files are allowed"})
		return
	}

	imageData, err := io.ReadAll(file)
	if err != nil {
		h.logger.Error("failed to read uploaded file", zap.Error(err))
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Failed to read uploaded file"})
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(imageData)
	}

	result, err := h.service.SubmitMedicine(r.Context(), imageData, contentType, header.Filename)
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "File uploaded and analyzed successfully",
		"result":  result,
	})
}

func (h *Handler) listMedicines(w http.ResponseWriter, r *http.Request) {
	medicines, err := h.service.ListMedicines(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, medicines)
}

// getMedicineImage отдаёт исходные байты изображения с сохранённым content type.
func (h *Handler) getMedicineImage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	data, contentType, err := h.service.GetMedicineImage(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (h *Handler) deleteMedicine(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if _, err := h.service.DeleteMedicine(r.Context(), id); err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Medicine deleted successfully"})
}

// writeError сопоставляет таксономию ошибок пайплайна со статус-кодами.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrStoreUnavailable):
		status = http.StatusServiceUnavailable
	case errors.Is(err, service.ErrClassificationFailed):
		status = http.StatusBadGateway
	case errors.Is(err, service.ErrPersistenceFailed):
		status = http.StatusInternalServerError
	}

	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

// cors разрешает запросы с любого origin, как и исходный фронтенд-прокси
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
