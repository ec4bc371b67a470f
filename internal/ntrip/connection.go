package ntrip

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/go-gnss/rtcm/rtcm3"
	"github.com/sirupsen/logrus"

	"github.com/CNGdrive/CNG-RTK-HUB/internal/frame"
)

const (
	userAgent          = "CNG-RTK-HUB/1.0"
	ntripVersionHeader = "Ntrip/2.0"

	connectHeaderTimeout = 30 * time.Second
	initialBackoff       = 1 * time.Second
	maxBackoff           = 60 * time.Second
)

// Connection streams RTCM3 corrections from a single NTRIP mountpoint.
type Connection struct {
	descriptor MountDescriptor
	onFrame    func(frame []byte)
	log        logrus.FieldLogger

	httpClient *http.Client

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool

	backoff time.Duration

	statsMu         sync.Mutex
	bytesReceived   uint64
	framesForwarded uint64
	lastData        time.Time
}

// NewConnection builds a streaming connection for one descriptor.
// onFrame is invoked once per CRC-valid RTCM3 frame, in arrival order.
func NewConnection(descriptor MountDescriptor, onFrame func(frame []byte), log logrus.FieldLogger) *Connection {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Connection{
		descriptor: descriptor,
		onFrame:    onFrame,
		log:        log,
		httpClient: &http.Client{
			Transport: &http.Transport{ResponseHeaderTimeout: connectHeaderTimeout},
		},
		backoff: initialBackoff,
	}
}

// Start performs the NTRIP GET handshake and, on success, launches a
// background goroutine that streams and extracts RTCM3 frames from the
// response body until ctx is cancelled or Stop is called.
func (c *Connection) Start(ctx context.Context) error {
	url := fmt.Sprintf("http://%s:%d/%s", c.descriptor.Host, c.descriptor.Port, c.descriptor.Mountpoint)

	streamCtx, cancel := context.WithCancel(ctx)

	req, err := http.NewRequestWithContext(streamCtx, http.MethodGet, url, nil)
	if err != nil {
		cancel()
		return fmt.Errorf("%w: building request: %v", ErrConnection, err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Ntrip-Version", ntripVersionHeader)
	req.Header.Set("Connection", "close")
	if c.descriptor.Username != "" || c.descriptor.Password != "" {
		creds := base64.StdEncoding.EncodeToString([]byte(c.descriptor.Username + ":" + c.descriptor.Password))
		req.Header.Set("Authorization", "Basic "+creds)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		cancel()
		return fmt.Errorf("%w: %v", ErrConnection, err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		resp.Body.Close()
		cancel()
		return fmt.Errorf("%w: mount %s rejected credentials", ErrAuth, c.descriptor.Mountpoint)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		cancel()
		return fmt.Errorf("%w: mount %s returned status %d", ErrConnection, c.descriptor.Mountpoint, resp.StatusCode)
	}

	c.mu.Lock()
	c.cancel = cancel
	c.running = true
	c.mu.Unlock()

	c.resetBackoff()

	c.wg.Add(1)
	go c.streamLoop(streamCtx, resp.Body)
	return nil
}

func (c *Connection) streamLoop(ctx context.Context, body io.ReadCloser) {
	defer c.wg.Done()
	defer body.Close()
	defer func() {
		c.mu.Lock()
		c.running = false
		c.mu.Unlock()
	}()

	var extractor frame.RTCMExtractor
	buf := make([]byte, 4096)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		n, err := body.Read(buf)
		if n > 0 {
			c.statsMu.Lock()
			c.bytesReceived += uint64(n)
			c.lastData = time.Now()
			c.statsMu.Unlock()

			for _, f := range extractor.Feed(buf[:n]) {
				c.statsMu.Lock()
				c.framesForwarded++
				c.statsMu.Unlock()

				c.logFrameType(f)
				if c.onFrame != nil {
					c.onFrame(f)
				}
			}
			if extractor.Dropped > 0 {
				c.log.WithField("dropped", extractor.Dropped).Debug("ntrip connection crc drops")
			}
		}
		if err != nil {
			if err != io.EOF {
				c.log.WithError(err).Warn("ntrip connection stream read error")
			}
			return
		}
	}
}

// Stop cancels the streaming goroutine and waits for it to exit.
func (c *Connection) Stop() {
	c.mu.Lock()
	cancel := c.cancel
	c.cancel = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	c.wg.Wait()
}

// IsConnected reports whether the stream goroutine is still running.
func (c *Connection) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Stats returns the connection's cumulative counters.
func (c *Connection) Stats() (bytesReceived, framesForwarded uint64, lastData time.Time) {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()
	return c.bytesReceived, c.framesForwarded, c.lastData
}

// NextBackoff returns the currently suggested reconnect delay and
// doubles it (capped at maxBackoff) for the following call.
func (c *Connection) NextBackoff() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	d := c.backoff
	c.backoff *= 2
	if c.backoff > maxBackoff {
		c.backoff = maxBackoff
	}
	return d
}

// resetBackoff restores the reconnect delay to its initial value,
// called on every successful connect.
func (c *Connection) resetBackoff() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.backoff = initialBackoff
}

// logFrameType opportunistically decodes a CRC-valid frame far enough
// to classify its RTCM3 message type for a debug log line. A decode
// failure here is swallowed; it never turns a forwarded frame into a
// dropped one.
func (c *Connection) logFrameType(f []byte) {
	defer func() {
		if r := recover(); r != nil {
			c.log.WithField("recover", r).Debug("ntrip connection message classification panic")
		}
	}()

	msg, err := rtcm3.DeserializeMessage(frame.Payload(f))
	if err != nil || msg == nil {
		return
	}
	c.log.WithFields(logrus.Fields{
		"mount":     c.descriptor.Mountpoint,
		"rtcm_type": msg.Number(),
		"bytes":     len(f),
	}).Debug("ntrip connection forwarded frame")
}
