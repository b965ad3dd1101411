package types

import "time"

// Verdict — результат анализа загруженного изображения.
type Verdict string

const (
	VerdictPending     Verdict = "pending"
	VerdictAuthentic   Verdict = "authentic"
	VerdictCounterfeit Verdict = "counterfeit"
)

// Medicine представляет запись в таблице medicines
type Medicine struct {
	ID               string          `json:"id" db:"id"`
	ImageData        []byte          `json:"-" db:"image_data"`
	ImageContentType string          `json:"image_content_type" db:"image_content_type"`
	Filename         string          `json:"filename" db:"filename"`
	UploadedAt       time.Time       `json:"uploaded_at" db:"uploaded_at"`
	AnalysisResult   Verdict         `json:"analysis_result" db:"analysis_result"`
	Confidence       float64         `json:"confidence" db:"confidence"`
	SubChecks        map[string]bool `json:"sub_checks,omitempty" db:"sub_checks"`
}

// MedicineSummary — проекция записи без бинарных данных изображения
type MedicineSummary struct {
	ID             string          `json:"id" db:"id"`
	Filename       string          `json:"filename" db:"filename"`
	UploadedAt     time.Time       `json:"uploaded_at" db:"uploaded_at"`
	AnalysisResult Verdict         `json:"analysis_result" db:"analysis_result"`
	Confidence     float64         `json:"confidence" db:"confidence"`
	SubChecks      map[string]bool `json:"sub_checks,omitempty" db:"sub_checks"`
}

// VerificationResult — нормализованный ответ классификатора.
// IsAuthentic инвертирован относительно is_fake, Confidence в процентах [0, 100].
type VerificationResult struct {
	IsAuthentic bool            `json:"is_authentic"`
	Confidence  float64         `json:"confidence"`
	Details     map[string]bool `json:"details,omitempty"`
}

// UploadResult — ответ на успешную загрузку и верификацию.
// Бинарные данные изображения никогда не возвращаются здесь.
type UploadResult struct {
	ID          string          `json:"id"`
	Filename    string          `json:"filename"`
	UploadedAt  time.Time       `json:"uploaded_at"`
	IsAuthentic bool            `json:"is_authentic"`
	Confidence  float64         `json:"confidence"`
	Details     map[string]bool `json:"details,omitempty"`
}
