// Package history manages lists of past tasks: wholesale refresh, a
// selection mode, and confirmed deletion.
package history

import (
	"context"
	"fmt"
	"sync"

	apperrors "rita/internal/errors"
	"rita/internal/service"
)

var (
	// ErrNothingSelected rejects a delete with an empty selection.
	ErrNothingSelected = apperrors.Validation("no items selected")

	// ErrDeclined reports that the user did not confirm a deletion.
	ErrDeclined = apperrors.Validation("deletion cancelled")

	// ErrNotSelecting rejects a toggle outside selection mode.
	ErrNotSelecting = apperrors.Validation("selection mode is off")
)

// Source lists past tasks.
type Source[T any] interface {
	List(ctx context.Context) ([]T, error)
}

// Deleter is a Source whose items can be deleted by id.
type Deleter interface {
	Delete(ctx context.Context, ids []service.TaskID) (service.Ack, error)
}

// Clearer is a Source that can only be deleted as a whole.
type Clearer interface {
	Clear(ctx context.Context) (service.Ack, error)
}

// ConfirmFunc asks the user to confirm deleting n items.
type ConfirmFunc func(n int) bool

// Manager holds the rendered history of one surface.
type Manager[T any] struct {
	src  Source[T]
	idOf func(T) service.TaskID

	mu        sync.Mutex
	items     []T
	selecting bool
	selected  map[service.TaskID]bool
}

// NewManager creates a manager over src. idOf extracts an item's id.
func NewManager[T any](src Source[T], idOf func(T) service.TaskID) *Manager[T] {
	return &Manager[T]{src: src, idOf: idOf, selected: make(map[service.TaskID]bool)}
}

// Refresh refetches the list and replaces the held items wholesale.
// The selection is pruned to ids still present.
func (m *Manager[T]) Refresh(ctx context.Context) ([]T, error) {
	items, err := m.src.List(ctx)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = items
	present := make(map[service.TaskID]bool, len(items))
	for _, it := range items {
		present[m.idOf(it)] = true
	}
	for id := range m.selected {
		if !present[id] {
			delete(m.selected, id)
		}
	}
	return m.copyItems(), nil
}

// Items returns the held list.
func (m *Manager[T]) Items() []T {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.copyItems()
}

func (m *Manager[T]) copyItems() []T {
	out := make([]T, len(m.items))
	copy(out, m.items)
	return out
}

// EnterSelection turns selection mode on.
func (m *Manager[T]) EnterSelection() {
	m.mu.Lock()
	m.selecting = true
	m.mu.Unlock()
}

// ExitSelection turns selection mode off and clears the selection.
func (m *Manager[T]) ExitSelection() {
	m.mu.Lock()
	m.exitSelection()
	m.mu.Unlock()
}

func (m *Manager[T]) exitSelection() {
	m.selecting = false
	m.selected = make(map[service.TaskID]bool)
}

// Selecting reports whether selection mode is on.
func (m *Manager[T]) Selecting() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.selecting
}

// Toggle flips id's membership in the selection and reports whether it is
// now selected.
func (m *Manager[T]) Toggle(id service.TaskID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.selecting {
		return false, ErrNotSelecting
	}
	if !m.has(id) {
		return false, apperrors.New(apperrors.ErrCodeNotFound, fmt.Sprintf("no history item %s", id), nil)
	}
	if m.selected[id] {
		delete(m.selected, id)
		return false, nil
	}
	m.selected[id] = true
	return true, nil
}

func (m *Manager[T]) has(id service.TaskID) bool {
	for _, it := range m.items {
		if m.idOf(it) == id {
			return true
		}
	}
	return false
}

// Selected returns the selected ids in list order.
func (m *Manager[T]) Selected() []service.TaskID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.selectedIDs()
}

func (m *Manager[T]) selectedIDs() []service.TaskID {
	var ids []service.TaskID
	for _, it := range m.items {
		if id := m.idOf(it); m.selected[id] {
			ids = append(ids, id)
		}
	}
	return ids
}

// Delete removes the selected items after confirmation.
//
// An empty selection or a declined confirmation sends no request. On
// success exactly the deleted items leave the held list, without a
// refetch, and selection mode ends.
func (m *Manager[T]) Delete(ctx context.Context, confirm ConfirmFunc) ([]service.TaskID, error) {
	deleter, ok := m.src.(Deleter)
	if !ok {
		return nil, apperrors.Validation("this history can only be cleared as a whole")
	}

	m.mu.Lock()
	ids := m.selectedIDs()
	m.mu.Unlock()

	if len(ids) == 0 {
		return nil, ErrNothingSelected
	}
	if confirm != nil && !confirm(len(ids)) {
		return nil, ErrDeclined
	}

	ack, err := deleter.Delete(ctx, ids)
	if err != nil {
		return nil, err
	}
	if !ack.OK() {
		return nil, ackFailure(ack)
	}

	gone := make(map[service.TaskID]bool, len(ids))
	for _, id := range ids {
		gone[id] = true
	}

	m.mu.Lock()
	kept := m.items[:0:0]
	for _, it := range m.items {
		if !gone[m.idOf(it)] {
			kept = append(kept, it)
		}
	}
	m.items = kept
	m.exitSelection()
	m.mu.Unlock()

	return ids, nil
}

// Clear deletes the whole history after confirmation and refetches it.
func (m *Manager[T]) Clear(ctx context.Context, confirm ConfirmFunc) ([]T, error) {
	clearer, ok := m.src.(Clearer)
	if !ok {
		return nil, apperrors.Validation("this history is deleted by selection")
	}

	m.mu.Lock()
	n := len(m.items)
	m.mu.Unlock()

	if confirm != nil && !confirm(n) {
		return nil, ErrDeclined
	}

	ack, err := clearer.Clear(ctx)
	if err != nil {
		return nil, err
	}
	if !ack.OK() {
		return nil, ackFailure(ack)
	}

	m.ExitSelection()
	return m.Refresh(ctx)
}

func ackFailure(ack service.Ack) error {
	msg := ack.Message
	if msg == "" {
		msg = "delete failed"
	}
	return apperrors.Application(msg)
}
