package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"
)

// Purge withdraws a job's pending work units by broadcasting a
// job-scoped cancellation notice. It is strictly best-effort: units a
// worker already fetched still complete, and any failure here is
// reported but must not block cancellation.
type Purge struct {
	producer sarama.SyncProducer
	logger   *zap.Logger
}

func NewPurge(brokers []string, logger *zap.Logger) (*Purge, error) {
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5
	config.Producer.Return.Successes = true

	p, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, err
	}
	return &Purge{producer: p, logger: logger}, nil
}

// PurgeJob publishes the job's cancellation notice. Workers drop the
// job's not-yet-processed units and answer each with a CANCELLED
// response, so the job's outstanding work drains while other jobs' units
// stay on the request topics.
func (p *Purge) PurgeJob(ctx context.Context, jobID int64) error {
	data, err := json.Marshal(CancelNotice{
		JobID:       jobID,
		CancelledAt: time.Now().UnixMilli(),
	})
	if err != nil {
		return err
	}

	_, _, err = p.producer.SendMessage(&sarama.ProducerMessage{
		Topic: CancelTopic,
		Key:   sarama.StringEncoder(strconv.FormatInt(jobID, 10)),
		Value: sarama.ByteEncoder(data),
	})
	if err != nil {
		return fmt.Errorf("publish cancellation notice: %w", err)
	}

	p.logger.Debug("Published cancellation notice", zap.Int64("job_id", jobID))
	return nil
}

func (p *Purge) Close() error {
	return p.producer.Close()
}
