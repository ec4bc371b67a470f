// Package aggregator wires a bounded set of GNSS receivers to a single
// NTRIP mount manager: corrections received from the active mount are
// fanned out to every live receiver, and each receiver's decoded fixes
// are polled and dispatched to registered subscribers.
package aggregator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/CNGdrive/CNG-RTK-HUB/internal/fix"
	"github.com/CNGdrive/CNG-RTK-HUB/internal/ntrip"
	"github.com/CNGdrive/CNG-RTK-HUB/internal/port"
	"github.com/CNGdrive/CNG-RTK-HUB/internal/receiver"
)

const (
	maxReceivers = 2
	pollInterval = 100 * time.Millisecond // ~10 Hz, per spec
)

var (
	// ErrUnknownReceiver is returned when an operation names an id that
	// is not currently registered.
	ErrUnknownReceiver = errors.New("aggregator: unknown receiver id")
)

// Aggregator is the process's single point of coordination between
// receiver drivers and the NTRIP mount manager. Construct one per
// process with NewAggregator and pass it by reference to whatever wires
// the command source and the publisher sink.
type Aggregator struct {
	log logrus.FieldLogger

	mountCfg ntrip.ManagerConfig

	mu        sync.Mutex
	receivers map[string]*registration
	order     []string
	mountMgr  *ntrip.Manager

	subMu sync.RWMutex
	subs  []FixSink

	statsMu          sync.Mutex
	correctionFrames uint64
	correctionBytes  uint64
	lastCorrection   time.Time
}

// NewAggregator builds an empty aggregator. mountCfg supplies the
// failover timing knobs handed to the mount manager once a mount is
// first added; a zero value uses the manager's documented defaults.
func NewAggregator(mountCfg ntrip.ManagerConfig, log logrus.FieldLogger) *Aggregator {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Aggregator{
		log:       log,
		mountCfg:  mountCfg,
		receivers: make(map[string]*registration),
	}
}

// AddReceiver registers a new receiver driver for the given variant. It
// returns false without effect if id is already registered or capacity
// (2 receivers) is already reached.
func (a *Aggregator) AddReceiver(id string, variant receiver.Variant, path string, baud int) bool {
	var d receiver.Driver
	switch variant {
	case receiver.VariantUBX:
		d = receiver.NewUBXDriver(port.NewGNSSSerialPort(), a.log.WithField("receiver", id))
	case receiver.VariantUnicore:
		d = receiver.NewUnicoreDriver(port.NewGNSSSerialPort(), a.log.WithField("receiver", id))
	default:
		a.log.WithField("variant", variant).Error("aggregator rejected unknown receiver variant")
		return false
	}
	return a.addReceiverWithDriver(id, variant, path, baud, d)
}

// addReceiverWithDriver is the seam AddReceiver builds on; it is also
// used directly by tests to register a fake driver without touching a
// real serial port.
func (a *Aggregator) addReceiverWithDriver(id string, variant receiver.Variant, path string, baud int, d receiver.Driver) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, exists := a.receivers[id]; exists {
		return false
	}
	if len(a.receivers) >= maxReceivers {
		return false
	}

	reg := &registration{id: id, variant: variant, path: path, baud: baud, driver: d}
	reg.setState(receiver.StateDisconnected)
	a.receivers[id] = reg
	a.order = append(a.order, id)
	return true
}

// RemoveReceiver disconnects the receiver if still connected and removes
// its registration. It returns false if id was not registered.
func (a *Aggregator) RemoveReceiver(id string) bool {
	a.mu.Lock()
	reg, ok := a.receivers[id]
	if ok {
		delete(a.receivers, id)
		for i, existing := range a.order {
			if existing == id {
				a.order = append(a.order[:i], a.order[i+1:]...)
				break
			}
		}
	}
	a.mu.Unlock()
	if !ok {
		return false
	}

	if cancel := reg.getCancel(); cancel != nil {
		cancel()
	}
	reg.wg.Wait()
	reg.driver.Disconnect()
	return true
}

func (a *Aggregator) lookup(id string) (*registration, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	reg, ok := a.receivers[id]
	return reg, ok
}

func (a *Aggregator) snapshotReceivers() []*registration {
	a.mu.Lock()
	defer a.mu.Unlock()
	regs := make([]*registration, 0, len(a.order))
	for _, id := range a.order {
		regs = append(regs, a.receivers[id])
	}
	return regs
}

// ConnectReceiver opens the named receiver's serial link, transitioning
// DISCONNECTED -> CONNECTING -> CONNECTED, or -> ERROR on failure.
func (a *Aggregator) ConnectReceiver(ctx context.Context, id string) error {
	reg, ok := a.lookup(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownReceiver, id)
	}

	reg.setState(receiver.StateConnecting)
	if err := reg.driver.Connect(ctx, reg.path, reg.baud); err != nil {
		reg.setState(receiver.StateError)
		return err
	}
	reg.setState(receiver.StateConnected)
	return nil
}

// StartAllStreams starts the reader goroutine and a fix-polling monitor
// for every CONNECTED receiver, transitioning it to STREAMING.
func (a *Aggregator) StartAllStreams(ctx context.Context) {
	for _, reg := range a.snapshotReceivers() {
		if reg.getState() != receiver.StateConnected {
			continue
		}

		streamCtx, cancel := context.WithCancel(ctx)
		if err := reg.driver.StartStream(streamCtx); err != nil {
			cancel()
			a.log.WithError(err).WithField("receiver", reg.id).Error("aggregator failed to start receiver stream")
			reg.setState(receiver.StateError)
			continue
		}

		reg.setCancel(cancel)
		reg.setState(receiver.StateStreaming)

		reg.wg.Add(1)
		go a.monitorReceiver(streamCtx, reg)
	}
}

// StopAllStreams stops the NTRIP mount manager first, then disconnects
// every receiver and awaits its goroutines.
func (a *Aggregator) StopAllStreams() {
	a.StopNTRIP()

	for _, reg := range a.snapshotReceivers() {
		if cancel := reg.getCancel(); cancel != nil {
			cancel()
		}
		reg.wg.Wait()
		reg.driver.Disconnect()
		reg.setState(receiver.StateDisconnected)
	}
}

// monitorReceiver polls a streaming receiver's cached fix at ~10 Hz and
// dispatches it to every subscriber whenever it differs from the last
// snapshot seen for this receiver.
func (a *Aggregator) monitorReceiver(ctx context.Context, reg *registration) {
	defer reg.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			a.log.WithField("recover", r).WithField("receiver", reg.id).Error("aggregator receiver monitor panicked")
			reg.setState(receiver.StateError)
		}
	}()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			f, ok := reg.driver.CurrentFix()
			if !ok {
				continue
			}
			if !reg.checkAndUpdateFix(f) {
				continue
			}
			a.dispatchFix(reg.id, f)
		}
	}
}

// InjectTo forwards opaque bytes to the named receiver's driver. It
// returns false if id is unknown or the driver is not writable.
func (a *Aggregator) InjectTo(id string, data []byte) bool {
	reg, ok := a.lookup(id)
	if !ok {
		return false
	}
	return reg.driver.Inject(data)
}

// AddMount registers a mountpoint descriptor with the mount manager,
// lazily constructing it on the first call.
func (a *Aggregator) AddMount(d ntrip.MountDescriptor) {
	mgr := a.mountManager()
	mgr.AddMount(d)
}

func (a *Aggregator) mountManager() *ntrip.Manager {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.mountMgr == nil {
		a.mountMgr = ntrip.NewManager(a.mountCfg, a.onCorrection, a.log.WithField("component", "ntrip"))
	}
	return a.mountMgr
}

// StartNTRIP starts the mount manager's health monitor and an initial
// connection attempt. It returns false if no mount has been added yet
// or no mount could be connected.
func (a *Aggregator) StartNTRIP(ctx context.Context) bool {
	a.mu.Lock()
	mgr := a.mountMgr
	a.mu.Unlock()
	if mgr == nil {
		a.log.Warn("aggregator StartNTRIP called with no mounts configured")
		return false
	}
	return mgr.Start(ctx)
}

// StopNTRIP stops the mount manager, if one was ever started.
func (a *Aggregator) StopNTRIP() {
	a.mu.Lock()
	mgr := a.mountMgr
	a.mu.Unlock()
	if mgr != nil {
		mgr.Stop()
	}
}

// onCorrection is the mount manager's correction callback: it forwards a
// validated RTCM frame to every CONNECTED or STREAMING receiver and
// updates the fan-out statistics.
func (a *Aggregator) onCorrection(frame []byte) {
	accepted := 0
	for _, reg := range a.snapshotReceivers() {
		switch reg.getState() {
		case receiver.StateConnected, receiver.StateStreaming:
		default:
			continue
		}
		if reg.driver.Inject(frame) {
			accepted++
		}
	}

	a.statsMu.Lock()
	a.correctionFrames++
	a.correctionBytes += uint64(len(frame))
	a.lastCorrection = time.Now()
	a.statsMu.Unlock()

	if accepted == 0 {
		a.log.Warn("aggregator correction frame accepted by zero receivers")
	} else {
		a.log.WithField("accepted", accepted).Debug("aggregator forwarded correction frame")
	}
}

// Subscribe registers a fix-update sink.
func (a *Aggregator) Subscribe(sink FixSink) {
	a.subMu.Lock()
	a.subs = append(a.subs, sink)
	a.subMu.Unlock()
}

// Unsubscribe removes a previously registered sink. It is a no-op if the
// sink was never subscribed.
func (a *Aggregator) Unsubscribe(sink FixSink) {
	a.subMu.Lock()
	defer a.subMu.Unlock()
	for i, s := range a.subs {
		if s == sink {
			a.subs = append(a.subs[:i], a.subs[i+1:]...)
			return
		}
	}
}

// dispatchFix delivers a fix update to every subscriber sequentially, in
// subscription order, so a single receiver's updates are never reordered
// relative to each other within one sink.
func (a *Aggregator) dispatchFix(receiverID string, f fix.Fix) {
	a.subMu.RLock()
	sinks := append([]FixSink(nil), a.subs...)
	a.subMu.RUnlock()

	for _, sink := range sinks {
		a.safeDispatch(sink, receiverID, f)
	}
}

func (a *Aggregator) safeDispatch(sink FixSink, receiverID string, f fix.Fix) {
	defer func() {
		if r := recover(); r != nil {
			a.log.WithField("recover", r).Error("aggregator fix sink panicked")
		}
	}()
	if err := sink.OnFix(receiverID, f); err != nil {
		a.log.WithError(err).Warn("aggregator fix sink returned an error")
	}
}

// Status returns a point-in-time snapshot of every receiver's lifecycle
// and configuration, plus the NTRIP mount manager's status.
func (a *Aggregator) Status() Status {
	a.mu.Lock()
	receiverStatuses := make([]ReceiverStatus, 0, len(a.order))
	for _, id := range a.order {
		reg := a.receivers[id]
		receiverStatuses = append(receiverStatuses, ReceiverStatus{
			ID:      reg.id,
			Variant: reg.variant,
			Path:    reg.path,
			Baud:    reg.baud,
			State:   reg.getState(),
		})
	}
	mgr := a.mountMgr
	a.mu.Unlock()

	ntripStatus := NTRIPStatus{Enabled: mgr != nil}
	if mgr != nil {
		if descriptor, state, ok := mgr.ActiveMount(); ok {
			ntripStatus.ActiveMount = descriptor.Mountpoint
			ntripStatus.BytesReceived = state.BytesReceived
			ntripStatus.FramesForwarded = state.FramesForwarded
			ntripStatus.LastData = state.LastData
		}
	}

	a.statsMu.Lock()
	ntripStatus.CorrectionFrames = a.correctionFrames
	ntripStatus.CorrectionBytes = a.correctionBytes
	ntripStatus.LastCorrection = a.lastCorrection
	a.statsMu.Unlock()

	return Status{Receivers: receiverStatuses, NTRIP: ntripStatus}
}
