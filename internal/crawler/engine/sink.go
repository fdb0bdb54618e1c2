package engine

import (
	"errors"
	"sync"
)

// Collector keeps every saved item in memory.
type Collector[T any] struct {
	mu    sync.Mutex
	items []T
}

func NewCollector[T any]() *Collector[T] {
	return &Collector[T]{}
}

func (c *Collector[T]) Save(batch []T) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = append(c.items, batch...)
	return nil
}

func (c *Collector[T]) Items() []T {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]T, len(c.items))
	copy(out, c.items)
	return out
}

// Tee fans a batch out to several sinks. Every sink sees every batch even
// when an earlier one fails.
func Tee[T any](sinks ...Sink[T]) Sink[T] {
	return teeSink[T](sinks)
}

type teeSink[T any] []Sink[T]

func (t teeSink[T]) Save(batch []T) error {
	var errs []error
	for _, s := range t {
		if err := s.Save(batch); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
