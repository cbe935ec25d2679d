package messaging_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/serroba/guild-stats/internal/messaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockPublisher struct {
	messages   []*message.Message
	topic      string
	publishErr error
	closeErr   error
}

func (m *mockPublisher) Publish(topic string, msgs ...*message.Message) error {
	if m.publishErr != nil {
		return m.publishErr
	}

	m.topic = topic
	m.messages = append(m.messages, msgs...)

	return nil
}

func (m *mockPublisher) Close() error {
	return m.closeErr
}

type rejectedEvent struct {
	Identifier string `json:"identifier"`
	Limit      int64  `json:"limit"`
}

type ctxKey struct{}

func TestNewPublishFunc(t *testing.T) {
	t.Run("publishes json payload to the topic", func(t *testing.T) {
		mock := &mockPublisher{}
		publish := messaging.NewPublishFunc[rejectedEvent](mock, "ratelimit.rejected")

		err := publish(context.Background(), &rejectedEvent{Identifier: "1.2.3.4", Limit: 10})

		require.NoError(t, err)
		assert.Equal(t, "ratelimit.rejected", mock.topic)
		require.Len(t, mock.messages, 1)
		assert.JSONEq(t, `{"identifier":"1.2.3.4","limit":10}`, string(mock.messages[0].Payload))
		assert.NotEmpty(t, mock.messages[0].UUID)
	})

	t.Run("attaches the caller context to the message", func(t *testing.T) {
		mock := &mockPublisher{}
		publish := messaging.NewPublishFunc[rejectedEvent](mock, "ratelimit.rejected")
		ctx := context.WithValue(context.Background(), ctxKey{}, "req-1")

		require.NoError(t, publish(ctx, &rejectedEvent{}))

		assert.Equal(t, "req-1", mock.messages[0].Context().Value(ctxKey{}))
	})

	t.Run("returns error when publish fails", func(t *testing.T) {
		mock := &mockPublisher{publishErr: errors.New("publish error")}
		publish := messaging.NewPublishFunc[rejectedEvent](mock, "ratelimit.rejected")

		err := publish(context.Background(), &rejectedEvent{})

		assert.Error(t, err)
	})
}

func TestWithTimeout(t *testing.T) {
	t.Run("returns the publish result when it is fast", func(t *testing.T) {
		errPublish := errors.New("publish error")
		publish := messaging.WithTimeout(func(context.Context, *rejectedEvent) error {
			return errPublish
		}, time.Second)

		assert.ErrorIs(t, publish(context.Background(), &rejectedEvent{}), errPublish)
	})

	t.Run("gives up on a publisher that ignores its context", func(t *testing.T) {
		release := make(chan struct{})
		defer close(release)

		publish := messaging.WithTimeout(func(context.Context, *rejectedEvent) error {
			<-release

			return nil
		}, 20*time.Millisecond)

		start := time.Now()
		err := publish(context.Background(), &rejectedEvent{})

		require.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Less(t, time.Since(start), time.Second)
	})

	t.Run("passes a deadline to the publisher", func(t *testing.T) {
		var hasDeadline bool

		publish := messaging.WithTimeout(func(ctx context.Context, _ *rejectedEvent) error {
			_, hasDeadline = ctx.Deadline()

			return nil
		}, time.Second)

		require.NoError(t, publish(context.Background(), &rejectedEvent{}))
		assert.True(t, hasDeadline)
	})
}

func TestDiscard(t *testing.T) {
	publish := messaging.Discard[rejectedEvent]()

	assert.NoError(t, publish(context.Background(), &rejectedEvent{Identifier: "x"}))
}

func TestPublisherGroup(t *testing.T) {
	t.Run("returns underlying publisher", func(t *testing.T) {
		mock := &mockPublisher{}
		group := messaging.NewPublisherGroup(mock)

		assert.Equal(t, mock, group.Publisher())
	})

	t.Run("shutdown closes the publisher", func(t *testing.T) {
		group := messaging.NewPublisherGroup(&mockPublisher{})

		require.NoError(t, group.Shutdown())
	})

	t.Run("returns error when close fails", func(t *testing.T) {
		group := messaging.NewPublisherGroup(&mockPublisher{closeErr: errors.New("close error")})

		assert.Error(t, group.Shutdown())
	})
}
