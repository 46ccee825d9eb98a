// Package media is the boundary to the media-routing engine. The signaling
// layer only sees the Engine contract; PionEngine is the in-process
// implementation built on pion's ORTC API.
package media

//go:generate mockgen -destination=mocks/mock_engine.go -package=mocks . Engine

import (
	"context"

	"github.com/immxrtalbeast/axenix_signal/internal/domain"
)

// Engine creates and tears down media routers and transports. Every method
// fails with domain.ErrEngineUnavailable when the worker is not alive.
type Engine interface {
	CreateRouterForRoom(ctx context.Context, roomID string) (domain.RouterHandle, error)
	CreateTransport(ctx context.Context, router domain.RouterHandle, participantID string, dir domain.TransportDirection) (domain.TransportParams, error)
	ConnectTransport(ctx context.Context, router domain.RouterHandle, transportID string, remote domain.RemoteTransportParams) error
	Produce(ctx context.Context, router domain.RouterHandle, transportID string, kind domain.MediaKind) (string, error)
	Consume(ctx context.Context, router domain.RouterHandle, transportID string, producerID string) (domain.ConsumerParams, error)
	CloseTransport(ctx context.Context, router domain.RouterHandle, transportID string) error
	CloseRouter(ctx context.Context, router domain.RouterHandle) error

	// Done is closed when the worker dies. Err then reports why.
	Done() <-chan struct{}
	Err() error
}

var (
	ErrUnknownRouter    = domain.Errorf(domain.CodeInvalidState, "unknown media router")
	ErrUnknownTransport = domain.Errorf(domain.CodeInvalidState, "unknown transport")
	ErrWrongDirection   = domain.Errorf(domain.CodeInvalidState, "transport direction does not allow this operation")
	ErrUnknownProducer  = domain.Errorf(domain.CodeUnknownTarget, "unknown producer")
)
