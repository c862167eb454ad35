package kafka

import (
	"context"
	"encoding/json"

	"github.com/IBM/sarama"
)

// ResponseHandler absorbs one decoded worker response.
type ResponseHandler func(ctx context.Context, resp *DetectionResponse) error

// Consumer reads worker responses from the response topic.
type Consumer struct {
	consumer sarama.ConsumerGroup
}

func NewConsumer(brokers []string, groupID string) (*Consumer, error) {
	config := sarama.NewConfig()
	config.Consumer.Group.Rebalance.Strategy = sarama.NewBalanceStrategyRoundRobin()
	config.Consumer.Offsets.Initial = sarama.OffsetOldest

	c, err := sarama.NewConsumerGroup(brokers, groupID, config)
	if err != nil {
		return nil, err
	}

	return &Consumer{consumer: c}, nil
}

type consumerHandler struct {
	fn  ResponseHandler
	ctx context.Context
}

func (h *consumerHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *consumerHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *consumerHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for msg := range claim.Messages() {
		var resp DetectionResponse
		if err := json.Unmarshal(msg.Value, &resp); err != nil {
			session.MarkMessage(msg, "")
			continue
		}
		h.fn(h.ctx, &resp)
		session.MarkMessage(msg, "")
	}
	return nil
}

func (c *Consumer) Consume(ctx context.Context, topic string, handler ResponseHandler) error {
	h := &consumerHandler{fn: handler, ctx: ctx}
	return c.consumer.Consume(ctx, []string{topic}, h)
}

func (c *Consumer) Close() error {
	return c.consumer.Close()
}
