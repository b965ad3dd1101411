package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"medicine_verification_api/types"

	"go.uber.org/zap"
)

// ErrClassificationFailed возвращается при любой ошибке вызова классификатора.
// Исходная причина логируется, но наружу не отдаётся.
var ErrClassificationFailed = errors.New("failed to verify medicine")

type Client interface {
	Verify(ctx context.Context, imageData []byte, filename string) (*types.VerificationResult, error)
}

type httpClient struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

// NewHTTPClient создаёт клиент внешнего сервиса классификации.
// Таймаут ограничивает весь вызов, чтобы зависший сервис не держал запрос.
func NewHTTPClient(baseURL string, timeout time.Duration, logger *zap.Logger) Client {
	return &httpClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// Сырой ответ модели: is_fake и confidence как доля [0, 1].
type predictResponse struct {
	IsFake       bool            `json:"is_fake"`
	Confidence   float64         `json:"confidence"`
	ModelDetails map[string]bool `json:"model_details"`
}

// Verify отправляет изображение на /predict одним multipart-запросом и
// нормализует ответ: IsAuthentic = !is_fake, Confidence в процентах.
// Повторов нет — неудачная классификация прерывает текущую загрузку.
func (c *httpClient) Verify(ctx context.Context, imageData []byte, filename string) (*types.VerificationResult, error) {
	if filename == "" {
		filename = "medicine.jpg"
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		c.logger.Error("failed to build multipart request", zap.Error(err))
		return nil, ErrClassificationFailed
	}
	if _, err := part.Write(imageData); err != nil {
		c.logger.Error("failed to build multipart request", zap.Error(err))
		return nil, ErrClassificationFailed
	}
	if err := writer.Close(); err != nil {
		c.logger.Error("failed to build multipart request", zap.Error(err))
		return nil, ErrClassificationFailed
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/predict", body)
	if err != nil {
		c.logger.Error("failed to build classifier request", zap.Error(err))
		return nil, ErrClassificationFailed
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Error("classifier call failed", zap.Error(err), zap.String("url", c.baseURL))
		return nil, ErrClassificationFailed
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("classifier returned unexpected status",
			zap.Int("status", resp.StatusCode), zap.String("url", c.baseURL))
		return nil, ErrClassificationFailed
	}

	var pr predictResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		c.logger.Error("failed to decode classifier response", zap.Error(err))
		return nil, ErrClassificationFailed
	}

	if pr.Confidence < 0 || pr.Confidence > 1 {
		c.logger.Error("classifier returned confidence out of range",
			zap.Float64("confidence", pr.Confidence))
		return nil, ErrClassificationFailed
	}

	result := &types.VerificationResult{
		IsAuthentic: !pr.IsFake,
		Confidence:  pr.Confidence * 100,
		Details:     pr.ModelDetails,
	}

	c.logger.Info("medicine image classified",
		zap.Bool("is_authentic", result.IsAuthentic),
		zap.Float64("confidence", result.Confidence))
	return result, nil
}
