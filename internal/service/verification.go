package service

import (
	"context"
	"errors"
	"fmt"

	"medicine_verification_api/internal/classifier"
	"medicine_verification_api/internal/database"
	"medicine_verification_api/internal/messaging"
	"medicine_verification_api/internal/repository"
	"medicine_verification_api/types"

	"go.uber.org/zap"
)

// Таксономия ошибок пайплайна. Граница HTTP сопоставляет их со статус-кодами.
var (
	// ErrStoreUnavailable — подключение к базе не live; операция повторяема.
	ErrStoreUnavailable = errors.New("database connection not ready")
	// ErrClassificationFailed — внешний классификатор упал; ничего не сохранено.
	ErrClassificationFailed = errors.New("classification failed")
	// ErrPersistenceFailed — классификация прошла, но запись не сохранилась.
	ErrPersistenceFailed = errors.New("persistence failed")
	// ErrNotFound — записи с запрошенным id не существует.
	ErrNotFound = errors.New("medicine not found")
)

type VerificationService interface {
	SubmitMedicine(ctx context.Context, imageData []byte, contentType string, filename string) (*types.UploadResult, error)
	ListMedicines(ctx context.Context) ([]*types.MedicineSummary, error)
	GetMedicineImage(ctx context.Context, id string) ([]byte, string, error)
	DeleteMedicine(ctx context.Context, id string) (*types.Medicine, error)
}

type verificationService struct {
	repo       repository.MedicineRepository
	classifier classifier.Client
	liveness   database.LivenessChecker
	events     messaging.NATSClient
	cache      *repository.ImageCache
	logger     *zap.Logger
}

func NewVerificationService(
	repo repository.MedicineRepository,
	cls classifier.Client,
	liveness database.LivenessChecker,
	events messaging.NATSClient,
	cache *repository.ImageCache,
	logger *zap.Logger,
) VerificationService {
	return &verificationService{
		repo:       repo,
		classifier: cls,
		liveness:   liveness,
		events:     events,
		cache:      cache,
		logger:     logger,
	}
}

// SubmitMedicine прогоняет изображение через пайплайн: проверка liveness,
// классификация, сборка записи, сохранение. Классификатор не вызывается,
// если база недоступна — результат всё равно негде было бы сохранить.
func (s *verificationService) SubmitMedicine(ctx context.Context, imageData []byte, contentType string, filename string) (*types.UploadResult, error) {
	if len(imageData) == 0 {
		return nil, fmt.Errorf("image data cannot be empty")
	}

	if contentType == "" {
		return nil, fmt.Errorf("image content type cannot be empty")
	}

	if !s.liveness.IsLive() {
		return nil, ErrStoreUnavailable
	}

	result, err := s.classifier.Verify(ctx, imageData, filename)
	if err != nil {
		s.logger.Error("classification failed", zap.Error(err), zap.String("filename", filename))
		return nil, fmt.Errorf("%w: %s", ErrClassificationFailed, filename)
	}

	verdict := types.VerdictCounterfeit
	if result.IsAuthentic {
		verdict = types.VerdictAuthentic
	}

	medicine := &types.Medicine{
		ImageData:        imageData,
		ImageContentType: contentType,
		Filename:         filename,
		AnalysisResult:   verdict,
		Confidence:       result.Confidence,
		SubChecks:        result.Details,
	}

	created, err := s.repo.Create(ctx, medicine)
	if err != nil {
		s.logger.Error("failed to persist medicine", zap.Error(err), zap.String("filename", filename))
		return nil, fmt.Errorf("%w: %s", ErrPersistenceFailed, filename)
	}

	// Событие — best effort: неудавшаяся публикация не отменяет загрузку
	if s.events != nil {
		if err := s.events.PublishVerificationCompleted(ctx, created); err != nil {
			s.logger.Warn("failed to publish verification completed event",
				zap.Error(err), zap.String("medicine_id", created.ID))
		}
	}

	s.logger.Info("medicine verified and stored",
		zap.String("medicine_id", created.ID),
		zap.String("verdict", string(created.AnalysisResult)),
		zap.Float64("confidence", created.Confidence))

	return &types.UploadResult{
		ID:          created.ID,
		Filename:    created.Filename,
		UploadedAt:  created.UploadedAt,
		IsAuthentic: result.IsAuthentic,
		Confidence:  created.Confidence,
		Details:     created.SubChecks,
	}, nil
}

// ListMedicines возвращает сводки всех записей. Результат никогда не nil —
// пустое хранилище даёт пустой срез, а не отсутствующее значение.
func (s *verificationService) ListMedicines(ctx context.Context) ([]*types.MedicineSummary, error) {
	if !s.liveness.IsLive() {
		return nil, ErrStoreUnavailable
	}

	medicines, err := s.repo.GetAll(ctx)
	if err != nil {
		s.logger.Error("failed to list medicines", zap.Error(err))
		return nil, fmt.Errorf("failed to list medicines: %w", err)
	}

	if medicines == nil {
		medicines = []*types.MedicineSummary{}
	}

	return medicines, nil
}

// GetMedicineImage возвращает бинарные данные изображения и его content type.
func (s *verificationService) GetMedicineImage(ctx context.Context, id string) ([]byte, string, error) {
	if !s.liveness.IsLive() {
		return nil, "", ErrStoreUnavailable
	}

	if s.cache != nil {
		if img, ok := s.cache.Get(id); ok {
			return img.Data, img.ContentType, nil
		}
	}

	medicine, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, "", fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		s.logger.Error("failed to get medicine image", zap.Error(err), zap.String("id", id))
		return nil, "", fmt.Errorf("failed to get medicine image: %w", err)
	}

	if s.cache != nil {
		s.cache.Add(medicine.ID, medicine.ImageData, medicine.ImageContentType)
	}

	return medicine.ImageData, medicine.ImageContentType, nil
}

// DeleteMedicine безвозвратно удаляет запись.
func (s *verificationService) DeleteMedicine(ctx context.Context, id string) (*types.Medicine, error) {
	if !s.liveness.IsLive() {
		return nil, ErrStoreUnavailable
	}

	deleted, err := s.repo.DeleteByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		s.logger.Error("failed to delete medicine", zap.Error(err), zap.String("id", id))
		return nil, fmt.Errorf("failed to delete medicine: %w", err)
	}

	if s.cache != nil {
		s.cache.Remove(id)
	}

	return deleted, nil
}
