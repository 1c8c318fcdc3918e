package memory

import (
	"time"

	"github.com/yndnr/pairmesh-go/internal/core/domain"
	"github.com/yndnr/pairmesh-go/pkg/cmap"
)

// WindowStore keeps rate windows keyed by identifier.
type WindowStore struct {
	windows *cmap.Map[string, domain.RateWindow]
}

// NewWindowStore creates an empty window store.
func NewWindowStore() *WindowStore {
	return &WindowStore{
		windows: cmap.New[string, domain.RateWindow](),
	}
}

// Update applies fn to the window of identifier as one critical section
// and stores the result. exists is false when no window was stored.
func (s *WindowStore) Update(identifier string, fn func(w domain.RateWindow, exists bool) domain.RateWindow) domain.RateWindow {
	return s.windows.Update(identifier, fn)
}

// Get returns the stored window for identifier.
func (s *WindowStore) Get(identifier string) (domain.RateWindow, bool) {
	return s.windows.Get(identifier)
}

// Delete removes the window of identifier.
func (s *WindowStore) Delete(identifier string) bool {
	_, ok := s.windows.Pop(identifier)
	return ok
}

// DeleteElapsed removes every window whose reset time has passed at now.
func (s *WindowStore) DeleteElapsed(now time.Time) int {
	return s.windows.RemoveIf(func(_ string, w domain.RateWindow) bool {
		return w.Elapsed(now)
	})
}

// Clear removes every window.
func (s *WindowStore) Clear() int {
	return s.windows.Clear()
}

// Count returns the number of tracked identifiers.
func (s *WindowStore) Count() int {
	return s.windows.Count()
}
