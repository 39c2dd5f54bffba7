package watch

import (
	"context"
	"fmt"
	"time"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	apiwatch "k8s.io/apimachinery/pkg/watch"
	"k8s.io/client-go/tools/cache"

	kingresslog "github.com/mcluseau/kingress/internal/logging"
)

// ListWatch is the subset of a typed client's List/Watch pair that
// InformerSource needs; callers build one per object kind (e.g. from
// clientset.NetworkingV1().Ingresses(ns)).
type ListWatch struct {
	List  func(ctx context.Context, opts metav1.ListOptions) (runtime.Object, error)
	Watch func(ctx context.Context, opts metav1.ListOptions) (apiwatch.Interface, error)
}

// InformerSource is the one production Source: it drives a client-go
// reflector/informer pair over a ListWatch and translates the informer's
// add/update/delete callbacks plus its initial-sync signal into the Init /
// InitApply / InitDone / Apply / Delete vocabulary.
//
// Resync is disabled (period 0): the assembler only cares about genuine
// changes, and a periodic resync would replay Apply events for objects that
// didn't change, which is both wasted work and, for this assembler, opaque
// (it can't tell a resync-replay from a real update).
type InformerSource[T runtime.Object] struct {
	lw  ListWatch
	log *kingresslog.Logger
}

// NewInformerSource builds an InformerSource over lw, tagging its log lines
// with name (e.g. "ingress", "secret", "service", "endpointslice").
func NewInformerSource[T runtime.Object](name string, lw ListWatch) *InformerSource[T] {
	return &InformerSource[T]{lw: lw, log: kingresslog.New("watch." + name)}
}

// Run implements Source. It blocks until ctx is canceled, emitting Init once
// at startup, InitApply for each object returned by the initial List,
// InitDone once that list is exhausted, and Apply/Delete thereafter. Init is
// sent only once per Run call; a later relist by the informer surfaces as
// Apply/Delete events.
func (s *InformerSource[T]) Run(ctx context.Context, out chan<- Event[T]) error {
	out <- Event[T]{Kind: Init}

	lw := &cache.ListWatch{
		ListFunc: func(opts metav1.ListOptions) (runtime.Object, error) {
			return s.lw.List(ctx, opts)
		},
		WatchFunc: func(opts metav1.ListOptions) (apiwatch.Interface, error) {
			return s.lw.Watch(ctx, opts)
		},
	}

	initDone := make(chan struct{})
	var once bool

	var zero T
	informer := cache.NewSharedInformer(lw, zero, 0)
	_, err := informer.AddEventHandler(cache.ResourceEventHandlerFuncs{
		AddFunc: func(obj any) {
			t, ok := obj.(T)
			if !ok {
				return
			}
			if informer.HasSynced() {
				out <- Event[T]{Kind: Apply, Value: t}
			} else {
				out <- Event[T]{Kind: InitApply, Value: t}
			}
		},
		UpdateFunc: func(_, newObj any) {
			t, ok := newObj.(T)
			if !ok {
				return
			}
			out <- Event[T]{Kind: Apply, Value: t}
		},
		DeleteFunc: func(obj any) {
			if tombstone, ok := obj.(cache.DeletedFinalStateUnknown); ok {
				obj = tombstone.Obj
			}
			t, ok := obj.(T)
			if !ok {
				return
			}
			out <- Event[T]{Kind: Delete, Value: t}
		},
	})
	if err != nil {
		return fmt.Errorf("watch: registering event handler: %w", err)
	}

	go func() {
		for {
			if informer.HasSynced() {
				if !once {
					once = true
					close(initDone)
				}
				return
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(20 * time.Millisecond):
			}
		}
	}()

	go informer.Run(ctx.Done())

	select {
	case <-initDone:
		out <- Event[T]{Kind: InitDone}
	case <-ctx.Done():
		return ctx.Err()
	}

	<-ctx.Done()
	return ctx.Err()
}

// RunWithBackoff calls src.Run repeatedly, sleeping retryDelay between
// attempts that fail with a non-context error, until ctx is canceled.
func RunWithBackoff[T any](ctx context.Context, name string, src Source[T], out chan<- Event[T], retryDelay time.Duration) {
	log := kingresslog.New("watch." + name)
	for ctx.Err() == nil {
		err := src.Run(ctx, out)
		if err == nil || err == ctx.Err() {
			return
		}
		log.Warn("watch source failed, retrying", map[string]any{"error": err.Error(), "retry_in": retryDelay.String()})
		select {
		case <-ctx.Done():
			return
		case <-time.After(retryDelay):
		}
	}
}
