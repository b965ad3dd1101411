package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"medicine_verification_api/types"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

const verificationCompletedSubject = "medicine.verification.completed"

type NATSClient interface {
	PublishVerificationCompleted(ctx context.Context, medicine *types.Medicine) error
	SubscribeToVerificationCompleted(ctx context.Context, handler func(*VerificationCompletedMessage)) error
	Close()
}

// natsConnection — подмножество nats.Conn, используемое клиентом.
type natsConnection interface {
	Publish(subj string, data []byte) error
	Subscribe(subj string, cb nats.MsgHandler) (*nats.Subscription, error)
	Close()
}

type natsClient struct {
	conn   natsConnection
	logger *zap.Logger
}

func NewNATSClient(url string, logger *zap.Logger) (NATSClient, error) {
	conn, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	logger.Info("connected to NATS", zap.String("url", url))
	return &natsClient{
		conn:   conn,
		logger: logger,
	}, nil
}

// VerificationCompletedMessage — событие о завершённой верификации.
// Бинарные данные изображения в событие не попадают.
type VerificationCompletedMessage struct {
	MedicineID     string    `json:"medicine_id"`
	Filename       string    `json:"filename"`
	UploadedAt     time.Time `json:"uploaded_at"`
	AnalysisResult string    `json:"analysis_result"`
	Confidence     float64   `json:"confidence"`
}

func (c *natsClient) PublishVerificationCompleted(ctx context.Context, medicine *types.Medicine) error {
	msg := VerificationCompletedMessage{
		MedicineID:     medicine.ID,
		Filename:       medicine.Filename,
		UploadedAt:     medicine.UploadedAt,
		AnalysisResult: string(medicine.AnalysisResult),
		Confidence:     medicine.Confidence,
	}

	data, err := json.Marshal(msg)
	if err != nil {
		c.logger.Error("failed to marshal verification completed message", zap.Error(err))
		return fmt.Errorf("failed to marshal verification completed message: %w", err)
	}

	err = c.conn.Publish(verificationCompletedSubject, data)
	if err != nil {
		c.logger.Error("failed to publish verification completed", zap.Error(err), zap.String("medicine_id", medicine.ID))
		return fmt.Errorf("failed to publish verification completed: %w", err)
	}

	c.logger.Info("verification completed published",
		zap.String("medicine_id", medicine.ID),
		zap.String("analysis_result", string(medicine.AnalysisResult)))
	return nil
}

func (c *natsClient) SubscribeToVerificationCompleted(ctx context.Context, handler func(*VerificationCompletedMessage)) error {
	_, err := c.conn.Subscribe(verificationCompletedSubject, func(msg *nats.Msg) {
		var completedMsg VerificationCompletedMessage
		if err := json.Unmarshal(msg.Data, &completedMsg); err != nil {
			c.logger.Error("failed to unmarshal verification completed message", zap.Error(err))
			return
		}

		handler(&completedMsg)
		c.logger.Debug("verification completed message processed",
			zap.String("medicine_id", completedMsg.MedicineID),
			zap.String("analysis_result", completedMsg.AnalysisResult))
	})

	if err != nil {
		c.logger.Error("failed to subscribe to verification completed", zap.Error(err))
		return fmt.Errorf("failed to subscribe to verification completed: %w", err)
	}

	c.logger.Info("subscribed to verification completed messages")
	return nil
}

func (c *natsClient) Close() {
	if c.conn != nil {
		c.conn.Close()
		c.logger.Info("NATS connection closed")
	}
}
