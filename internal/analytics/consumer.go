package analytics

import (
	"github.com/serroba/guild-stats/internal/messaging"
	"go.uber.org/zap"
)

// RegisterConsumers adds one consumer per analytics topic to group, each
// handing its events to store.
func RegisterConsumers(group *messaging.ConsumerGroup, store Store, logger *zap.Logger) {
	sub := group.Subscriber()

	group.Add(messaging.NewConsumer(sub, TopicRequestRejected, store.SaveRequestRejected, logger))
	group.Add(messaging.NewConsumer(sub, TopicMembersServed, store.SaveMembersServed, logger))
}
