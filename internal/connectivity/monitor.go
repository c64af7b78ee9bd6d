// Package connectivity observes network reachability. The monitor is a pure
// event source: it reports state and fires transition callbacks, and never
// performs sync logic itself.
package connectivity

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Unsubscribe removes a previously registered subscription.
type Unsubscribe func()

// Monitor reports reachability and notifies on transitions.
type Monitor interface {
	IsOnline() bool
	// Subscribe registers callbacks fired on offline-to-online and
	// online-to-offline transitions.
	Subscribe(onOnline, onOffline func()) Unsubscribe
}

type subscriber struct {
	onOnline  func()
	onOffline func()
}

// ProbeMonitor determines reachability by periodically probing a URL
// (typically the remote store's health endpoint) and fires callbacks when
// the answer flips.
type ProbeMonitor struct {
	url      string
	interval time.Duration
	client   *http.Client
	log      *zap.Logger

	online atomic.Bool

	mu     sync.Mutex
	nextID int
	subs   map[int]subscriber

	stop chan struct{}
	done chan struct{}
}

// NewProbeMonitor creates a monitor probing url every interval.
func NewProbeMonitor(url string, interval time.Duration, log *zap.Logger) *ProbeMonitor {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &ProbeMonitor{
		url:      url,
		interval: interval,
		client:   &http.Client{Timeout: 5 * time.Second},
		log:      log,
		subs:     map[int]subscriber{},
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (m *ProbeMonitor) IsOnline() bool {
	return m.online.Load()
}

func (m *ProbeMonitor) Subscribe(onOnline, onOffline func()) Unsubscribe {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	m.subs[id] = subscriber{onOnline: onOnline, onOffline: onOffline}
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subs, id)
	}
}

// Start probes immediately, then on every interval tick until Stop.
func (m *ProbeMonitor) Start(ctx context.Context) {
	go func() {
		defer close(m.done)
		m.probe(ctx)
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-m.stop:
				return
			case <-ticker.C:
				m.probe(ctx)
			}
		}
	}()
}

// Stop halts probing and waits for the probe loop to exit.
func (m *ProbeMonitor) Stop() {
	close(m.stop)
	<-m.done
}

func (m *ProbeMonitor) probe(ctx context.Context) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, m.url, nil)
	if err != nil {
		m.set(false)
		return
	}
	resp, err := m.client.Do(req)
	if err != nil {
		m.set(false)
		return
	}
	resp.Body.Close()
	m.set(resp.StatusCode < http.StatusInternalServerError)
}

// set records the new state and fires subscriber callbacks on a transition.
func (m *ProbeMonitor) set(online bool) {
	was := m.online.Swap(online)
	if was == online {
		return
	}
	m.log.Info("connectivity changed", zap.Bool("online", online))

	m.mu.Lock()
	subs := make([]subscriber, 0, len(m.subs))
	for _, s := range m.subs {
		subs = append(subs, s)
	}
	m.mu.Unlock()

	for _, s := range subs {
		if online && s.onOnline != nil {
			s.onOnline()
		}
		if !online && s.onOffline != nil {
			s.onOffline()
		}
	}
}

// CheckOnce performs a single synchronous reachability probe against url.
// One-shot commands use it to seed a StaticMonitor instead of running a
// probe loop for a process that exits right away.
func CheckOnce(ctx context.Context, url string) bool {
	if url == "" {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return false
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode < http.StatusInternalServerError
}

// StaticMonitor holds a fixed reachability state, flippable by hand. Tests
// and forced-offline deployments use it.
type StaticMonitor struct {
	mu     sync.Mutex
	online bool
	nextID int
	subs   map[int]subscriber
}

// NewStaticMonitor returns a monitor pinned to the given state.
func NewStaticMonitor(online bool) *StaticMonitor {
	return &StaticMonitor{online: online, subs: map[int]subscriber{}}
}

func (m *StaticMonitor) IsOnline() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

func (m *StaticMonitor) Subscribe(onOnline, onOffline func()) Unsubscribe {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	m.subs[id] = subscriber{onOnline: onOnline, onOffline: onOffline}
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subs, id)
	}
}

// SetOnline flips the state, firing callbacks on an actual transition.
func (m *StaticMonitor) SetOnline(online bool) {
	m.mu.Lock()
	if m.online == online {
		m.mu.Unlock()
		return
	}
	m.online = online
	subs := make([]subscriber, 0, len(m.subs))
	for _, s := range m.subs {
		subs = append(subs, s)
	}
	m.mu.Unlock()

	for _, s := range subs {
		if online && s.onOnline != nil {
			s.onOnline()
		}
		if !online && s.onOffline != nil {
			s.onOffline()
		}
	}
}
