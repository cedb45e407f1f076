package events

import (
	"encoding/json"

	"github.com/IBM/sarama"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var _ Publisher = (*Producer)(nil)

// Producer publishes events to a single Kafka topic via a sync producer.
// Messages are keyed by the owning entity id so per-entity ordering holds.
type Producer struct {
	producer sarama.SyncProducer
	topic    string
	lg       *zap.Logger
}

// NewProducer connects a sync producer to the given brokers.
func NewProducer(brokers []string, topic string, lg *zap.Logger) (*Producer, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 3
	cfg.Producer.Return.Successes = true

	p, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "create kafka producer")
	}
	return &Producer{producer: p, topic: topic, lg: lg}, nil
}

func (p *Producer) publish(key string, env Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return errors.Wrap(err, "marshal event")
	}

	partition, offset, err := p.producer.SendMessage(&sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(data),
	})
	if err != nil {
		return errors.Wrapf(err, "publish %s", env.Type)
	}

	p.lg.Debug("event published",
		zap.String("type", env.Type),
		zap.Int32("partition", partition),
		zap.Int64("offset", offset),
	)
	return nil
}

// PublishPurchaseCompleted announces a confirmed credit purchase.
func (p *Producer) PublishPurchaseCompleted(purchaseID, authorID string, amount decimal.Decimal, credits int64) error {
	return p.publish(purchaseID, newEnvelope(TypePurchaseCompleted, PurchaseCompleted{
		PurchaseID: purchaseID,
		AuthorID:   authorID,
		Amount:     amount.StringFixed(2),
		Credits:    credits,
	}))
}

// PublishCommissionStatus announces a commission state transition.
func (p *Producer) PublishCommissionStatus(commissionID, affiliateID string, status string) error {
	return p.publish(commissionID, newEnvelope(TypeCommissionStatus, CommissionStatus{
		CommissionID: commissionID,
		AffiliateID:  affiliateID,
		Status:       status,
	}))
}

// PublishPayoutCompleted announces a completed payout.
func (p *Producer) PublishPayoutCompleted(payoutID, affiliateID string, amount decimal.Decimal, transactionID string) error {
	return p.publish(payoutID, newEnvelope(TypePayoutCompleted, PayoutCompleted{
		PayoutID:      payoutID,
		AffiliateID:   affiliateID,
		Amount:        amount.StringFixed(2),
		TransactionID: transactionID,
	}))
}

// Close shuts the underlying producer down.
func (p *Producer) Close() error {
	return p.producer.Close()
}
