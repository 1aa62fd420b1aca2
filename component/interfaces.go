package component

import (
	"context"

	"github.com/kbukum/pipekit/observability"
)

// Component is a lifecycle-managed part of the service.
type Component interface {
	// Name returns the unique name of the component for registration.
	Name() string

	// Start starts the component. It must return once the component is
	// ready; long-running work continues in the background.
	Start(ctx context.Context) error

	// Stop shuts the component down and releases its resources.
	Stop(ctx context.Context) error

	// Health returns the current health of the component.
	Health(ctx context.Context) observability.Health
}

// Description is a one-line summary shown in the startup log.
type Description struct {
	Name    string
	Type    string
	Details string
}

// Describable is optionally implemented by components to describe
// themselves in the startup log.
type Describable interface {
	Describe() Description
}
