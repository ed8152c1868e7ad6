package internal

import (
	"errors"
	"io"
	"sync"

	"github.com/deevus/clinic-tui/source"
)

// Services holds the data source for one clinic. Data is usable from the
// start and reports not ready until a connected source is attached.
type Services struct {
	Data *source.Deferred

	mu      sync.Mutex
	closers []io.Closer
}

// NewServices creates a Services container with nothing attached.
func NewServices() *Services {
	return &Services{Data: source.NewDeferred()}
}

// Attach makes src the clinic's data source. closers are closed by Close,
// last first. Only the first call takes effect; later sources are closed
// straight away and Attach reports false.
func (s *Services) Attach(src source.Source, closers ...io.Closer) bool {
	if !s.Data.Resolve(src) {
		for _, c := range closers {
			c.Close()
		}
		return false
	}
	s.mu.Lock()
	s.closers = append(s.closers, closers...)
	s.mu.Unlock()
	return true
}

// Close releases everything attached.
func (s *Services) Close() error {
	s.mu.Lock()
	closers := s.closers
	s.closers = nil
	s.mu.Unlock()

	var errs []error
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
