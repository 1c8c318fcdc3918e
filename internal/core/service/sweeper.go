package service

import (
	"sync"
	"time"
)

// Clock returns the current time. Tests substitute a controllable clock.
type Clock func() time.Time

// sweeper runs fn on a fixed interval until stopped.
type sweeper struct {
	mu      sync.Mutex
	stopCh  chan struct{}
	wg      sync.WaitGroup
	running bool
}

// start launches the loop. It is a no-op if already running or interval <= 0.
func (s *sweeper) start(interval time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running || interval <= 0 {
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})

	ticker := time.NewTicker(interval)
	stopCh := s.stopCh
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				fn()
			case <-stopCh:
				return
			}
		}
	}()
}

// stop ends the loop and waits for an in-flight run to finish.
func (s *sweeper) stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()
}

func (s *sweeper) isRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}
