package workers

import (
	"context"
	"log/slog"
	"sync"

	"github.com/hashicorp/go-multierror"
)

// Worker is a long-running component that exits when its context is canceled.
type Worker interface {
	Name() string
	Start(ctx context.Context) error
}

type Group struct {
	workers []Worker
}

func NewGroup(workers ...Worker) *Group {
	return &Group{workers: workers}
}

// Run starts every worker and blocks until all of them have exited. Errors
// from individual workers are collected and returned together.
func (g *Group) Run(ctx context.Context) error {
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs *multierror.Error
	)

	for _, w := range g.workers {
		wg.Add(1)
		go func(w Worker) {
			defer wg.Done()

			slog.Info("starting worker", "name", w.Name())
			if err := w.Start(ctx); err != nil {
				mu.Lock()
				errs = multierror.Append(errs, err)
				mu.Unlock()
			}
			slog.Info("worker stopped", "name", w.Name())
		}(w)
	}

	wg.Wait()
	return errs.ErrorOrNil()
}
