package runner

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Group runs named workers under a shared context. The first worker to fail cancels the rest.
// The zero value is usable and has no shared context.
type Group struct {
	once sync.Once
	eg   *errgroup.Group
}

// WithContext returns a Group and a context cancelled when a worker fails or Wait returns.
func WithContext(ctx context.Context) (*Group, context.Context) {
	eg, ctx := errgroup.WithContext(ctx)
	return &Group{eg: eg}, ctx
}

func (g *Group) group() *errgroup.Group {
	g.once.Do(func() {
		if g.eg == nil {
			g.eg = new(errgroup.Group)
		}
	})
	return g.eg
}

// Go starts fn. The returned channel receives fn's result once and is then closed.
func (g *Group) Go(ctx context.Context, name string, fn func(ctx context.Context) error) <-chan error {
	done := make(chan error, 1)
	g.group().Go(func() error {
		err := fn(ctx)
		if err != nil {
			err = fmt.Errorf("%s: %w", name, err)
		}
		done <- err
		close(done)
		return err
	})
	return done
}

// Wait blocks until every worker returns and reports the first failure.
func (g *Group) Wait() error {
	return g.group().Wait()
}
