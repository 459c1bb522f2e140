package messaging

import (
	"context"
)

// Channels published by the portal. The worker subscribes to the request
// channels to send notification emails.
const (
	ChannelRequestCreated  = "knowwell.request.created"
	ChannelRequestApproved = "knowwell.request.approved"
	ChannelRequestDenied   = "knowwell.request.denied"
	ChannelPatientCreated  = "knowwell.patient.created"
	ChannelPatientDeleted  = "knowwell.patient.deleted"
)

// Broker defines the interface for message brokers
type Broker interface {
	Publish(ctx context.Context, channel string, message interface{}) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	Close() error
}
