package analytics

import "context"

// Store defines the interface for persisting analytics events.
type Store interface {
	SaveRequestRejected(ctx context.Context, event *RequestRejectedEvent) error
	SaveMembersServed(ctx context.Context, event *MembersServedEvent) error
}
