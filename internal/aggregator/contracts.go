package aggregator

import (
	"context"

	"github.com/CNGdrive/CNG-RTK-HUB/internal/fix"
	"github.com/CNGdrive/CNG-RTK-HUB/internal/ntrip"
	"github.com/CNGdrive/CNG-RTK-HUB/internal/receiver"
)

// FixSink receives normalized fix updates for one receiver, in the order
// each update was observed. A sink that returns an error is logged and
// skipped; it is never removed automatically.
type FixSink interface {
	OnFix(receiverID string, f fix.Fix) error
}

// CommandSource is the capability surface the aggregator exposes to an
// external control plane (a REST handler, a local REPL). Every method is
// safe to call concurrently from arbitrary goroutines.
type CommandSource interface {
	AddReceiver(id string, variant receiver.Variant, path string, baud int) bool
	RemoveReceiver(id string) bool
	ConnectReceiver(ctx context.Context, id string) error
	StartAllStreams(ctx context.Context)
	StopAllStreams()
	InjectTo(id string, data []byte) bool
	AddMount(descriptor ntrip.MountDescriptor)
	StartNTRIP(ctx context.Context) bool
	StopNTRIP()
	Subscribe(sink FixSink)
	Unsubscribe(sink FixSink)
	Status() Status
}
