// Package component defines the component model for logstitch: discoverable
// metadata, lifecycle management, port descriptions, and the dependency
// bundle handed to component factories.
//
// Components follow the unified lifecycle pattern:
//
//	Initialize() error                   // setup only, no context
//	Start(ctx context.Context) error     // start with context passed through
//	Stop(timeout time.Duration) error    // graceful shutdown with timeout
//
// Components never store the context they receive; the owner holds the
// cancellation function and coordinates orderly shutdown.
package component
