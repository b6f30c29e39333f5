// Package guarded shares one value between a single writer and any number
// of readers behind one mutex.
package guarded

import (
	"errors"
	"sync"
)

// ErrReadOnly is returned by SetData on a read-only controller.
var ErrReadOnly = errors.New("guarded: controller is read-only")

// Container holds the shared value. Access it only through a Controller.
type Container[T any] struct {
	mu   sync.Mutex
	data T
}

// New creates a container holding initial and returns it together with
// its only writer-capable controller.
func New[T any](initial T) (*Container[T], *Controller[T]) {
	c := &Container[T]{data: initial}
	return c, &Controller[T]{c: c}
}

// ReadOnly returns a new controller that may read but never write.
func (c *Container[T]) ReadOnly() *Controller[T] {
	return &Controller[T]{c: c, readOnly: true}
}

// Controller is a handle on a Container.
type Controller[T any] struct {
	c        *Container[T]
	readOnly bool
}

// GetData returns a copy of the current value.
func (ctrl *Controller[T]) GetData() T {
	ctrl.c.mu.Lock()
	defer ctrl.c.mu.Unlock()
	return ctrl.c.data
}

// SetData replaces the value. It fails immediately on a read-only controller.
func (ctrl *Controller[T]) SetData(v T) error {
	if ctrl.readOnly {
		return ErrReadOnly
	}
	ctrl.c.mu.Lock()
	defer ctrl.c.mu.Unlock()
	ctrl.c.data = v
	return nil
}

// Update applies fn to the value while holding the lock.
func (ctrl *Controller[T]) Update(fn func(T) T) error {
	if ctrl.readOnly {
		return ErrReadOnly
	}
	ctrl.c.mu.Lock()
	defer ctrl.c.mu.Unlock()
	ctrl.c.data = fn(ctrl.c.data)
	return nil
}

// ReadOnly reports whether SetData is refused.
func (ctrl *Controller[T]) ReadOnly() bool {
	return ctrl.readOnly
}

// ReadOnlyCopy returns a read-only controller on the same container.
func (ctrl *Controller[T]) ReadOnlyCopy() *Controller[T] {
	return ctrl.c.ReadOnly()
}
