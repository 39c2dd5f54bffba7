// Package watch defines the typed event vocabulary that every Kubernetes
// object stream (Ingress, Secret, Service, EndpointSlice) is modeled as, and
// the narrow Source interface the config assembler consumes. It carries no
// business logic of its own — only the event shape and a single
// client-go-backed implementation of Source.
package watch

import "context"

// Kind distinguishes the five event shapes a Source can emit for a given
// object kind's stream.
type Kind int

const (
	// Init signals the stream is about to (re)send its full initial list;
	// consumers clear whatever state they built from the previous list.
	Init Kind = iota
	// InitApply seeds one object during the initial list.
	InitApply
	// InitDone marks the initial list complete; the stream is now caught up
	// and will only emit Apply/Delete from here until the next Init.
	InitDone
	// Apply is an upsert of one object (create or update).
	Apply
	// Delete removes one object.
	Delete
)

func (k Kind) String() string {
	switch k {
	case Init:
		return "Init"
	case InitApply:
		return "InitApply"
	case InitDone:
		return "InitDone"
	case Apply:
		return "Apply"
	case Delete:
		return "Delete"
	default:
		return "Unknown"
	}
}

// Event[T] is one typed delta from a Source's stream. Value is nil for Init
// and InitDone, and set for InitApply, Apply, and Delete.
type Event[T any] struct {
	Kind  Kind
	Value T
}

// Source is a typed stream of Events for one Kubernetes object kind. A
// production Source never closes its channel except on ctx cancellation or
// an unrecoverable transport failure (reported via the error return of Run).
type Source[T any] interface {
	// Run delivers events to out until ctx is canceled or the underlying
	// watch transport fails. Callers are expected to retry Run with a
	// backoff on a non-nil, non-context error.
	Run(ctx context.Context, out chan<- Event[T]) error
}
