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

const readBufSize = 1024

// UBXDriver owns one serial link speaking the variant-A TLV protocol.
type UBXDriver struct {
	log logrus.FieldLogger

	mu        sync.Mutex
	serial    port.SerialPort
	connected bool

	cancel context.CancelFunc
	wg     sync.WaitGroup

	cache   cachedFix
	nmeaTap frame.NMEATap
}

// NewUBXDriver builds a driver around the given serial port abstraction.
func NewUBXDriver(serial port.SerialPort, log logrus.FieldLogger) *UBXDriver {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &UBXDriver{serial: serial, log: log}
}

func (d *UBXDriver) Connect(ctx context.Context, path string, baud int) error {
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

func (d *UBXDriver) StartStream(ctx context.Context) error {
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

func (d *UBXDriver) readLoop(ctx context.Context) {
	defer d.wg.Done()

	var extractor frame.UBXExtractor
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
			d.log.WithError(err).Debug("ubx driver read error")
			if consecutiveErrors >= 10 {
				d.log.Error("ubx driver giving up after repeated read errors")
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
			d.log.WithField("sentence", s).Debug("ubx driver nmea tap")
		}

		for _, msg := range extractor.Feed(buf[:n]) {
			if msg.Class != frame.UBXClassNAV || msg.ID != frame.UBXIDNavPVT {
				continue
			}
			f, ok := frame.DecodeNavPVT(msg.Payload)
			if !ok {
				continue
			}
			if err := f.Validate(); err != nil {
				d.log.WithError(err).Warn("ubx driver decoded invalid fix")
				continue
			}
			d.cache.set(f)
		}
		if extractor.Dropped > 0 {
			d.log.WithField("dropped", extractor.Dropped).Debug("ubx driver checksum drops")
		}
	}
}

func (d *UBXDriver) CurrentFix() (fix.Fix, bool) {
	return d.cache.get()
}

func (d *UBXDriver) Inject(data []byte) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.connected {
		return false
	}
	_, err := d.serial.Write(data)
	return err == nil
}

func (d *UBXDriver) Disconnect() {
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
			d.log.WithError(err).Warn("ubx driver close error")
		}
	}
	d.cache.clear()
}
