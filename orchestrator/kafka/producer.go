package kafka

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/IBM/sarama"
)

// Producer sends work units to detection workers.
type Producer interface {
	SendWorkUnit(ctx context.Context, topic string, unit *WorkUnit) error
	Close() error
}

type producer struct {
	producer sarama.SyncProducer
}

func NewProducer(brokers []string) (Producer, error) {
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5
	config.Producer.Return.Successes = true

	p, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, err
	}

	return &producer{producer: p}, nil
}

// SendWorkUnit publishes one unit keyed by job id so a job's units stay
// ordered per partition; the priority rides in a header for workers.
func (p *producer) SendWorkUnit(ctx context.Context, topic string, unit *WorkUnit) error {
	data, err := json.Marshal(unit)
	if err != nil {
		return err
	}

	msg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(strconv.FormatInt(unit.JobID, 10)),
		Value: sarama.ByteEncoder(data),
		Headers: []sarama.RecordHeader{
			{Key: []byte("priority"), Value: []byte(strconv.Itoa(unit.Priority))},
		},
	}

	_, _, err = p.producer.SendMessage(msg)
	return err
}

func (p *producer) Close() error {
	return p.producer.Close()
}
