package market

import (
	"context"
	"sync"
	"time"

	"github.com/yanun0323/logs"

	"main/internal/exchange"
)

const (
	_defaultSuperviseInterval = 3 * time.Second
	_reconnectBaseDelay       = time.Second
	_reconnectMaxDelay        = time.Minute
)

// Supervisor keeps the set of wanted subscriptions open. Every tick it
// diffs the wanted set against the manager's active streams and reopens
// whatever is missing, with exponential backoff per stream so a flapping
// venue cannot hot-loop the dial path.
type Supervisor struct {
	mu       sync.Mutex
	manager  exchange.StreamManager
	interval time.Duration
	wanted   map[string]exchange.StreamMeta
	retries  map[string]int
	nextTry  map[string]time.Time
}

// NewSupervisor creates a supervisor over the given stream manager.
func NewSupervisor(manager exchange.StreamManager, interval time.Duration) *Supervisor {
	if interval <= 0 {
		interval = _defaultSuperviseInterval
	}
	return &Supervisor{
		manager:  manager,
		interval: interval,
		wanted:   make(map[string]exchange.StreamMeta),
		retries:  make(map[string]int),
		nextTry:  make(map[string]time.Time),
	}
}

// Need marks a stream as wanted. The next tick opens it if it is not
// already active.
func (s *Supervisor) Need(meta exchange.StreamMeta) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.wanted[meta.ID] = meta
}

// Forget drops a stream from the wanted set and closes it if active.
func (s *Supervisor) Forget(streamID string) {
	s.mu.Lock()
	delete(s.wanted, streamID)
	delete(s.retries, streamID)
	delete(s.nextTry, streamID)
	s.mu.Unlock()

	s.manager.CloseStream(streamID)
}

// Wanted lists the streams the supervisor keeps alive.
func (s *Supervisor) Wanted() []exchange.StreamMeta {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]exchange.StreamMeta, 0, len(s.wanted))
	for _, meta := range s.wanted {
		out = append(out, meta)
	}
	return out
}

// Run reconciles until the context is done.
func (s *Supervisor) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Reconcile()
		}
	}
}

// Reconcile opens every wanted stream that is not active and whose
// backoff window has passed.
func (s *Supervisor) Reconcile() {
	active := make(map[string]struct{})
	for _, meta := range s.manager.ActiveStreams() {
		active[meta.ID] = struct{}{}
	}

	s.mu.Lock()
	missing := make([]exchange.StreamMeta, 0)
	now := time.Now()
	for id, meta := range s.wanted {
		if _, ok := active[id]; ok {
			s.retries[id] = 0
			continue
		}
		if now.Before(s.nextTry[id]) {
			continue
		}
		missing = append(missing, meta)
	}
	s.mu.Unlock()

	for _, meta := range missing {
		if _, err := s.manager.OpenStream(meta); err != nil {
			s.mu.Lock()
			s.retries[meta.ID]++
			delay := reconnectDelay(s.retries[meta.ID])
			s.nextTry[meta.ID] = time.Now().Add(delay)
			s.mu.Unlock()
			logs.Warnf("reopen stream %s failed, retry in %s, err: %+v", meta.ID, delay, err)
			continue
		}
		s.mu.Lock()
		s.retries[meta.ID] = 0
		delete(s.nextTry, meta.ID)
		s.mu.Unlock()
		logs.Infof("stream %s reopened", meta.ID)
	}
}

func reconnectDelay(retry int) time.Duration {
	if retry < 1 {
		return _reconnectBaseDelay
	}
	if retry > 6 {
		return _reconnectMaxDelay
	}
	delay := _reconnectBaseDelay << uint(retry-1)
	if delay > _reconnectMaxDelay {
		return _reconnectMaxDelay
	}
	return delay
}
