package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"medicine_verification_api/types"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// ErrNotFound возвращается, когда записи с запрошенным id не существует.
var ErrNotFound = errors.New("medicine not found")

// dbConn — подмножество pgxpool.Pool, используемое репозиторием.
type dbConn interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type MedicineRepository interface {
	Create(ctx context.Context, medicine *types.Medicine) (*types.Medicine, error)
	GetAll(ctx context.Context) ([]*types.MedicineSummary, error)
	GetByID(ctx context.Context, id string) (*types.Medicine, error)
	DeleteByID(ctx context.Context, id string) (*types.Medicine, error)
}

type medicineRepository struct {
	db     dbConn
	logger *zap.Logger
}

func NewMedicineRepository(db *pgxpool.Pool, logger *zap.Logger) MedicineRepository {
	return &medicineRepository{
		db:     db,
		logger: logger,
	}
}

// Create сохраняет запись, назначая id и uploaded_at, если они ещё не заданы.
// Проверку liveness выполняет вызывающий — репозиторий её не дублирует.
func (r *medicineRepository) Create(ctx context.Context, medicine *types.Medicine) (*types.Medicine, error) {
	if medicine.ID == "" {
		medicine.ID = uuid.New().String()
	}
	if medicine.UploadedAt.IsZero() {
		medicine.UploadedAt = time.Now().UTC()
	}
	if medicine.AnalysisResult == "" {
		medicine.AnalysisResult = types.VerdictPending
	}

	query := `
		INSERT INTO medicines (id, image_data, image_content_type, filename, uploaded_at, analysis_result, confidence, sub_checks)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.db.Exec(ctx, query,
		medicine.ID, medicine.ImageData, medicine.ImageContentType, medicine.Filename,
		medicine.UploadedAt, medicine.AnalysisResult, medicine.Confidence, medicine.SubChecks)
	if err != nil {
		r.logger.Error("failed to insert medicine", zap.Error(err), zap.String("id", medicine.ID))
		return nil, fmt.Errorf("failed to insert medicine: %w", err)
	}

	r.logger.Info("medicine record created",
		zap.String("id", medicine.ID),
		zap.String("verdict", string(medicine.AnalysisResult)))
	return medicine, nil
}

// GetAll возвращает все записи без бинарных данных изображений.
func (r *medicineRepository) GetAll(ctx context.Context) ([]*types.MedicineSummary, error) {
	query := `
		SELECT id, filename, uploaded_at, analysis_result, confidence, sub_checks
		FROM medicines
		ORDER BY uploaded_at DESC
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		r.logger.Error("failed to get all medicines", zap.Error(err))
		return nil, fmt.Errorf("failed to get all medicines: %w", err)
	}
	defer rows.Close()

	var medicines []*types.MedicineSummary
	for rows.Next() {
		var m types.MedicineSummary
		err := rows.Scan(&m.ID, &m.Filename, &m.UploadedAt, &m.AnalysisResult, &m.Confidence, &m.SubChecks)
		if err != nil {
			r.logger.Error("failed to scan medicine summary", zap.Error(err))
			continue
		}
		medicines = append(medicines, &m)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error("failed to read medicine rows", zap.Error(err))
		return nil, fmt.Errorf("failed to read medicine rows: %w", err)
	}

	return medicines, nil
}

// GetByID возвращает полную запись, включая бинарные данные изображения.
func (r *medicineRepository) GetByID(ctx context.Context, id string) (*types.Medicine, error) {
	// Невалидный uuid не может соответствовать ни одной записи
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}

	query := `
		SELECT id, image_data, image_content_type, filename, uploaded_at, analysis_result, confidence, sub_checks
		FROM medicines
		WHERE id = $1
	`

	var m types.Medicine
	err := r.db.QueryRow(ctx, query, id).
		Scan(&m.ID, &m.ImageData, &m.ImageContentType, &m.Filename, &m.UploadedAt, &m.AnalysisResult, &m.Confidence, &m.SubChecks)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		r.logger.Error("failed to get medicine", zap.Error(err), zap.String("id", id))
		return nil, fmt.Errorf("failed to get medicine: %w", err)
	}

	return &m, nil
}

// DeleteByID безвозвратно удаляет запись и возвращает её идентифицирующие поля.
func (r *medicineRepository) DeleteByID(ctx context.Context, id string) (*types.Medicine, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}

	query := `
		DELETE FROM medicines
		WHERE id = $1
		RETURNING id, filename, uploaded_at, analysis_result, confidence
	`

	var m types.Medicine
	err := r.db.QueryRow(ctx, query, id).
		Scan(&m.ID, &m.Filename, &m.UploadedAt, &m.AnalysisResult, &m.Confidence)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		r.logger.Error("failed to delete medicine", zap.Error(err), zap.String("id", id))
		return nil, fmt.Errorf("failed to delete medicine: %w", err)
	}

	r.logger.Info("medicine record deleted", zap.String("id", id))
	return &m, nil
}
