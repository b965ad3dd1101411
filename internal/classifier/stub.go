package classifier

import (
	"context"
	"math/rand"

	"medicine_verification_api/types"

	"go.uber.org/zap"
)

// StubClient возвращает случайные вердикты без обращения к модели.
// Только для локальной разработки (CLASSIFIER_STUB=true), не для продакшена.
type StubClient struct {
	logger *zap.Logger
}

func NewStubClient(logger *zap.Logger) *StubClient {
	return &StubClient{logger: logger}
}

func (c *StubClient) Verify(ctx context.Context, imageData []byte, filename string) (*types.VerificationResult, error) {
	result := &types.VerificationResult{
		IsAuthentic: rand.Intn(2) == 0,
		Confidence:  50 + rand.Float64()*50,
		Details: map[string]bool{
			"colorMatch":   rand.Intn(2) == 0,
			"textureMatch": rand.Intn(2) == 0,
			"shapeMatch":   rand.Intn(2) == 0,
			"printQuality": rand.Intn(2) == 0,
		},
	}

	c.logger.Warn("stub classifier used, verdict is random",
		zap.String("filename", filename),
		zap.Bool("is_authentic", result.IsAuthentic))
	return result, nil
}
