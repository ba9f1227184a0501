//go:build integration

package consumer_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"onboarding/internal/platform/kafka/consumer"
	"onboarding/internal/platform/kafka/producer"
	"onboarding/pkg/testutil/containers"
)

type KafkaSuite struct {
	suite.Suite
	redpanda *containers.RedpandaContainer
	producer *producer.Producer
}

func TestKafkaSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(KafkaSuite))
}

func (s *KafkaSuite) SetupSuite() {
	s.redpanda = containers.GetManager().GetRedpanda(s.T())
	p, err := producer.New(s.redpanda.Brokers)
	s.Require().NoError(err)
	s.producer = p
}

func (s *KafkaSuite) TearDownSuite() {
	s.producer.Close()
}

func (s *KafkaSuite) TestEnsureTopicsIsIdempotent() {
	ctx := context.Background()
	topic := "ensure-" + uuid.NewString()
	s.Require().NoError(s.producer.EnsureTopics(ctx, 1, 1, topic))
	s.Require().NoError(s.producer.EnsureTopics(ctx, 1, 1, topic))
}

func (s *KafkaSuite) TestProduceAndConsume() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	topic := "roundtrip-" + uuid.NewString()
	s.Require().NoError(s.producer.EnsureTopics(ctx, 1, 1, topic))

	received := make(chan *consumer.Message, 1)
	var once sync.Once
	c, err := consumer.New(s.redpanda.Brokers, "test-"+uuid.NewString(), []string{topic},
		consumer.HandlerFunc(func(_ context.Context, msg *consumer.Message) error {
			once.Do(func() { received <- msg })
			return nil
		}),
	)
	s.Require().NoError(err)
	defer c.Close()
	go func() { _ = c.Run(ctx) }()

	s.Require().NoError(s.producer.Produce(ctx, topic, []byte("key-1"), []byte(`{"ok":true}`),
		map[string]string{"event_type": "sample"}))

	select {
	case msg := <-received:
		s.Equal(topic, msg.Topic)
		s.Equal("key-1", string(msg.Key))
		s.JSONEq(`{"ok":true}`, string(msg.Value))
		s.Equal("sample", msg.Headers["event_type"])
	case <-ctx.Done():
		s.Fail("message not consumed")
	}
}
