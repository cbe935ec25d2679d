package analytics

import (
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/serroba/guild-stats/internal/messaging"
)

// PublishTimeout bounds each publish so a slow or unreachable broker cannot
// hold up the request that emitted the event.
const PublishTimeout = 500 * time.Millisecond

// Publishers bundles the typed publish functions used by the HTTP layer.
type Publishers struct {
	RequestRejected messaging.Publish[RequestRejectedEvent]
	MembersServed   messaging.Publish[MembersServedEvent]
}

// NewPublishers binds each event type to its topic on publisher.
func NewPublishers(publisher message.Publisher) Publishers {
	rejected := messaging.NewPublishFunc[RequestRejectedEvent](publisher, TopicRequestRejected)
	served := messaging.NewPublishFunc[MembersServedEvent](publisher, TopicMembersServed)

	return Publishers{
		RequestRejected: messaging.WithTimeout(rejected, PublishTimeout),
		MembersServed:   messaging.WithTimeout(served, PublishTimeout),
	}
}

// DiscardPublishers drops every event. Used when events are disabled.
func DiscardPublishers() Publishers {
	return Publishers{
		RequestRejected: messaging.Discard[RequestRejectedEvent](),
		MembersServed:   messaging.Discard[MembersServedEvent](),
	}
}
