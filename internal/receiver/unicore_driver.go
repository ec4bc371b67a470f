package receiver

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/CNGdrive/CNG-RTK-HUB/internal/fix"
	"github.com/CNGdrive/CNG-RTK-HUB/internal/frame"
	"github.com/CNGdrive/CNG-RTK-HUB/internal/port"
)

// UnicoreDriver owns one serial link speaking the variant-B fixed-header
// protocol.
type UnicoreDriver struct {
	log logrus.FieldLogger

	mu        sync.Mutex
	serial    port.SerialPort
	connected bool

	cancel context.CancelFunc
	wg     sync.WaitGroup

	cache   cachedFix
	nmeaTap frame.NMEATap
}

// NewUnicoreDriver builds a driver around the given serial port abstraction.
func NewUnicoreDriver(serial port.SerialPort, log logrus.FieldLogger) *UnicoreDriver {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &UnicoreDriver{serial: serial, log: log}
}

func (d *UnicoreDriver) Connect(ctx context.Context, path string, baud int) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.connected {
		return fmt.Errorf("%w: already connected", ErrProtocol)
	}
	if err := d.serial.Open(path, baud); err != nil {
		return fmt.Errorf("%w: %v", ErrConnection, err)
	}
	d.connected = true
	return nil
}

func (d *UnicoreDriver) StartStream(ctx context.Context) error {
	d.mu.Lock()
	if !d.connected {
		d.mu.Unlock()
		return fmt.Errorf("%w: start_stream before connect", ErrProtocol)
	}
	streamCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.mu.Unlock()

	d.wg.Add(1)
	go d.readLoop(streamCtx)
	return nil
}

func (d *UnicoreDriver) readLoop(ctx context.Context) {
	defer d.wg.Done()

	var extractor frame.UnicoreExtractor
	buf := make([]byte, readBufSize)
	consecutiveErrors := 0

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		n, err := d.serial.Read(buf)
		if err != nil {
			consecutiveErrors++
			d.log.WithError(err).Debug("unicore driver read error")
			if consecutiveErrors >= 10 {
				d.log.Error("unicore driver giving up after repeated read errors")
				return
			}
			time.Sleep(100 * time.Millisecond)
			continue
		}
		consecutiveErrors = 0
		if n == 0 {
			continue
		}

		for _, s := range d.nmeaTap.Feed(buf[:n]) {
			d.log.WithField("sentence", s).Debug("unicore driver nmea tap")
		}

		for _, msg := range extractor.Feed(buf[:n]) {
			if msg.MessageID != frame.UnicoreMessageIDBestPos {
				continue
			}
			f, ok := frame.DecodeBestPos(msg.Payload)
			if !ok {
				continue
			}
			if err := f.Validate(); err != nil {
				d.log.WithError(err).Warn("unicore driver decoded invalid fix")
				continue
			}
			d.cache.set(f)
		}
	}
}

func (d *UnicoreDriver) CurrentFix() (fix.Fix, bool) {
	return d.cache.get()
}

func (d *UnicoreDriver) Inject(data []byte) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.connected {
		return false
	}
	_, err := d.serial.Write(data)
	return err == nil
}

func (d *UnicoreDriver) Disconnect() {
	d.mu.Lock()
	cancel := d.cancel
	connected := d.connected
	d.cancel = nil
	d.connected = false
	d.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	d.wg.Wait()

	if connected {
		if err := d.serial.Close(); err != nil {
			d.log.WithError(err).Warn("unicore driver close error")
		}
	}
	d.cache.clear()
}
