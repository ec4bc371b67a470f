// Package receiver implements the two concrete GNSS receiver drivers
// (UBX-like and Unicore-like) behind a common Driver contract, owning
// the serial link, the background reader task, and the cached fix.
package receiver

import (
	"context"
	"errors"
	"sync"

	"github.com/CNGdrive/CNG-RTK-HUB/internal/fix"
)

// Variant identifies which wire protocol a receiver speaks.
type Variant string

const (
	VariantUBX     Variant = "ubx"
	VariantUnicore Variant = "unicore"
)

// State is a receiver's lifecycle stage.
type State string

const (
	StateDisconnected State = "DISCONNECTED"
	StateConnecting   State = "CONNECTING"
	StateConnected    State = "CONNECTED"
	StateStreaming    State = "STREAMING"
	StateError        State = "ERROR"
)

var (
	// ErrConnection covers serial-open and link-level failures.
	ErrConnection = errors.New("receiver: connection error")
	// ErrProtocol covers misuse of the driver's operation order.
	ErrProtocol = errors.New("receiver: protocol error")
)

// Driver is the capability contract every receiver variant implements.
type Driver interface {
	Connect(ctx context.Context, path string, baud int) error
	StartStream(ctx context.Context) error
	CurrentFix() (fix.Fix, bool)
	Inject(data []byte) bool
	Disconnect()
}

// cachedFix is the single-writer/single-reader last-value slot shared
// between a driver's reader goroutine and whoever polls CurrentFix.
type cachedFix struct {
	mu    sync.Mutex
	value fix.Fix
	has   bool
}

func (c *cachedFix) set(f fix.Fix) {
	c.mu.Lock()
	c.value = f
	c.has = true
	c.mu.Unlock()
}

func (c *cachedFix) get() (fix.Fix, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value, c.has
}

func (c *cachedFix) clear() {
	c.mu.Lock()
	c.value = fix.Fix{}
	c.has = false
	c.mu.Unlock()
}
