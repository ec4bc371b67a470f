package ntrip

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	defaultMaxConsecutiveFailures = 3
	defaultRetryDelay             = 30 * time.Second
	defaultHealthCheckInterval    = 60 * time.Second
	defaultDataTimeout            = 120 * time.Second
)

type mountEntry struct {
	descriptor MountDescriptor
	state      MountRuntimeState
}

// ManagerConfig carries the manager's tunable timing knobs; a zero
// value is filled in with the documented defaults by NewManager.
type ManagerConfig struct {
	MaxConsecutiveFailures int
	RetryDelay             time.Duration
	HealthCheckInterval    time.Duration
	DataTimeout            time.Duration
}

// Manager holds an ordered pool of NTRIP mountpoints, keeps at most one
// of them actively streaming, and fails over between them according to
// priority, consecutive-failure count, and data-staleness.
type Manager struct {
	cfg            ManagerConfig
	correctionFunc func(frame []byte)
	log            logrus.FieldLogger

	mu      sync.Mutex
	mounts  []*mountEntry
	active  *mountEntry
	conn    *Connection
	running bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewManager builds a mount manager. correctionFunc is invoked for
// every CRC-valid RTCM3 frame received on the active mount.
func NewManager(cfg ManagerConfig, correctionFunc func(frame []byte), log logrus.FieldLogger) *Manager {
	if cfg.MaxConsecutiveFailures == 0 {
		cfg.MaxConsecutiveFailures = defaultMaxConsecutiveFailures
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = defaultRetryDelay
	}
	if cfg.HealthCheckInterval == 0 {
		cfg.HealthCheckInterval = defaultHealthCheckInterval
	}
	if cfg.DataTimeout == 0 {
		cfg.DataTimeout = defaultDataTimeout
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Manager{cfg: cfg, correctionFunc: correctionFunc, log: log}
}

// AddMount registers a descriptor, keeping the pool sorted by priority.
func (m *Manager) AddMount(d MountDescriptor) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.mounts = append(m.mounts, &mountEntry{descriptor: d})
	sort.SliceStable(m.mounts, func(i, j int) bool {
		return m.mounts[i].descriptor.Priority < m.mounts[j].descriptor.Priority
	})
}

// Start launches the health monitor and attempts a connection to the
// best available mount. It returns true iff a mount connected.
func (m *Manager) Start(ctx context.Context) bool {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return m.active != nil
	}
	if len(m.mounts) == 0 {
		m.mu.Unlock()
		m.log.Error("ntrip manager has no mounts configured")
		return false
	}
	monitorCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.mu.Unlock()

	m.wg.Add(1)
	go m.monitorLoop(monitorCtx)

	return m.connectBest(ctx)
}

// Stop cancels the health monitor and disconnects the active mount.
func (m *Manager) Stop() {
	m.mu.Lock()
	cancel := m.cancel
	m.cancel = nil
	m.running = false
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	m.wg.Wait()

	m.disconnectActive()
}

// connectBest selects the best candidate mount and attempts to connect,
// trying the next-best on failure until one succeeds or the pool is
// exhausted.
func (m *Manager) connectBest(ctx context.Context) bool {
	for {
		entry, ok := m.selectCandidate()
		if !ok {
			m.log.Error("ntrip manager found no available mount")
			return false
		}
		if m.attemptConnection(ctx, entry) {
			return true
		}
	}
}

// selectCandidate returns the best enabled, non-exhausted mount, sorted
// by (consecutive failures, priority).
func (m *Manager) selectCandidate() (*mountEntry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var candidates []*mountEntry
	for _, e := range m.mounts {
		if !e.descriptor.Enabled {
			continue
		}
		if e.state.ConsecutiveFailures >= m.cfg.MaxConsecutiveFailures {
			continue
		}
		if e == m.active {
			continue
		}
		candidates = append(candidates, e)
	}
	if len(candidates) == 0 {
		return nil, false
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].state.ConsecutiveFailures != candidates[j].state.ConsecutiveFailures {
			return candidates[i].state.ConsecutiveFailures < candidates[j].state.ConsecutiveFailures
		}
		return candidates[i].descriptor.Priority < candidates[j].descriptor.Priority
	})
	return candidates[0], true
}

func (m *Manager) attemptConnection(ctx context.Context, entry *mountEntry) bool {
	attemptID := uuid.NewString()
	m.log.WithFields(logrus.Fields{"mount": entry.descriptor.Mountpoint, "attempt": attemptID}).Info("ntrip manager attempting connection")

	m.disconnectActive()

	conn := NewConnection(entry.descriptor, func(frame []byte) { m.onFrame(entry, frame) }, m.log)

	m.mu.Lock()
	entry.state.LastAttempt = time.Now()
	m.mu.Unlock()

	err := conn.Start(ctx)
	if err != nil {
		m.mu.Lock()
		entry.state.ConsecutiveFailures++
		if errors.Is(err, ErrAuth) && entry.state.ConsecutiveFailures < m.cfg.MaxConsecutiveFailures {
			// Rejected credentials are not retried until the cooldown
			// in retryFailedMounts re-enables this mount.
			entry.state.ConsecutiveFailures = m.cfg.MaxConsecutiveFailures
		}
		failures := entry.state.ConsecutiveFailures
		m.mu.Unlock()
		m.log.WithError(err).WithFields(logrus.Fields{"mount": entry.descriptor.Mountpoint, "failures": failures}).Warn("ntrip manager connection attempt failed")
		return false
	}

	m.mu.Lock()
	m.active = entry
	m.conn = conn
	entry.state.Connected = true
	entry.state.ConsecutiveFailures = 0
	m.mu.Unlock()

	m.log.WithField("mount", entry.descriptor.Mountpoint).Info("ntrip manager connected")
	return true
}

func (m *Manager) disconnectActive() {
	m.mu.Lock()
	conn := m.conn
	active := m.active
	m.conn = nil
	m.active = nil
	m.mu.Unlock()

	if conn != nil {
		conn.Stop()
	}
	if active != nil {
		m.mu.Lock()
		active.state.Connected = false
		m.mu.Unlock()
	}
}

func (m *Manager) onFrame(entry *mountEntry, f []byte) {
	m.mu.Lock()
	entry.state.BytesReceived += uint64(len(f))
	entry.state.FramesForwarded++
	entry.state.LastData = time.Now()
	m.mu.Unlock()

	if m.correctionFunc != nil {
		func() {
			defer func() {
				if r := recover(); r != nil {
					m.log.WithField("recover", r).Error("ntrip manager correction callback panicked")
				}
			}()
			m.correctionFunc(f)
		}()
	}
}

func (m *Manager) monitorLoop(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.cfg.HealthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.checkHealth(ctx)
			m.retryFailedMounts()
		}
	}
}

func (m *Manager) checkHealth(ctx context.Context) {
	m.mu.Lock()
	active := m.active
	conn := m.conn
	m.mu.Unlock()

	if active == nil || conn == nil {
		m.connectBest(ctx)
		return
	}

	if !conn.IsConnected() {
		m.log.Warn("ntrip manager detected active connection loss, failing over")
		m.handleFailover(ctx, active)
		return
	}

	_, _, lastData := conn.Stats()
	if !lastData.IsZero() && time.Since(lastData) > m.cfg.DataTimeout {
		m.log.Warn("ntrip manager detected data timeout, failing over")
		m.handleFailover(ctx, active)
	}
}

func (m *Manager) handleFailover(ctx context.Context, entry *mountEntry) {
	m.mu.Lock()
	entry.state.ConsecutiveFailures++
	failures := entry.state.ConsecutiveFailures
	m.mu.Unlock()

	m.log.WithFields(logrus.Fields{"mount": entry.descriptor.Mountpoint, "failures": failures}).Info("ntrip manager failover")

	m.disconnectActive()
	m.connectBest(ctx)
}

func (m *Manager) retryFailedMounts() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	for _, e := range m.mounts {
		if e.state.ConsecutiveFailures >= m.cfg.MaxConsecutiveFailures &&
			!e.state.LastAttempt.IsZero() &&
			now.Sub(e.state.LastAttempt) > m.cfg.RetryDelay {
			m.log.WithField("mount", e.descriptor.Mountpoint).Info("ntrip manager resetting failure count after cooldown")
			e.state.ConsecutiveFailures = 0
		}
	}
}

// ActiveMount returns the descriptor and runtime state of the currently
// active mount, if any.
func (m *Manager) ActiveMount() (MountDescriptor, MountRuntimeState, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil {
		return MountDescriptor{}, MountRuntimeState{}, false
	}
	return m.active.descriptor, m.active.state, true
}

// Mounts returns a snapshot of every registered mount's descriptor and
// runtime state, in priority order.
func (m *Manager) Mounts() []struct {
	Descriptor MountDescriptor
	State      MountRuntimeState
} {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]struct {
		Descriptor MountDescriptor
		State      MountRuntimeState
	}, len(m.mounts))
	for i, e := range m.mounts {
		out[i].Descriptor = e.descriptor
		out[i].State = e.state
	}
	return out
}

