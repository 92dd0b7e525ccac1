package capture

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/go-vgo/robotgo"
	"github.com/kbinani/screenshot"
)

// DefaultInterval is the default capture cadence.
const DefaultInterval = 250 * time.Millisecond

// retryDelay is how long the loop waits after a tick with no capturable
// window before trying again.
const retryDelay = 500 * time.Millisecond

// Subscriber receives each captured frame. Subscribers are invoked
// synchronously from the capture goroutine and must not block; analyzers
// hand off to their own goroutine and shed frames while busy.
type Subscriber func(*Frame)

// Source captures the target window's client area on a fixed timer and
// fans frames out to subscribers. The capture loop runs independently of
// how long any consumer's analysis takes.
type Source struct {
	interval    time.Duration
	processName string // empty = capture the primary display
	log         *slog.Logger

	mu   sync.Mutex
	subs []Subscriber

	cancel context.CancelFunc
	done   chan struct{}

	// Window handle cache, revalidated every tick.
	cachedPID int32
}

// NewSource creates a frame source. processName selects the game process to
// locate; when empty the whole primary display is captured instead.
func NewSource(processName string, interval time.Duration, log *slog.Logger) *Source {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if log == nil {
		log = slog.Default()
	}
	return &Source{
		interval:    interval,
		processName: processName,
		log:         log.With("component", "capture"),
	}
}

// Subscribe registers a subscriber for future frames.
func (s *Source) Subscribe(sub Subscriber) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = append(s.subs, sub)
}

// Start begins the dedicated capture loop. Calling Start on a running
// source is a no-op.
func (s *Source) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.loop(ctx, s.done)
	s.log.Info("capture started", "interval", s.interval, "process", s.processName)
}

// Stop cancels the capture loop and blocks until it has exited.
func (s *Source) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	s.log.Info("capture stopped")
}

func (s *Source) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		frame, err := s.captureOnce()
		if err != nil {
			// Transient: window gone, minimized, or the OS capture call
			// failed. Skip the tick, keep the loop alive.
			s.log.Debug("capture tick skipped", "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(retryDelay):
			}
			continue
		}

		s.publish(frame)
	}
}

// captureOnce grabs one frame of the target rectangle.
func (s *Source) captureOnce() (*Frame, error) {
	rect, err := s.targetRect()
	if err != nil {
		return nil, err
	}
	if rect.Dx() <= 0 || rect.Dy() <= 0 {
		return nil, fmt.Errorf("window has no visible area (minimized?)")
	}

	img, err := screenshot.CaptureRect(rect)
	if err != nil {
		return nil, fmt.Errorf("capture rect %v: %w", rect, err)
	}

	return NewFrame(img, rect.Min, time.Now()), nil
}

// targetRect returns the screen rectangle to capture. The window handle is
// cached but revalidated every tick: pid reuse and window moves are both
// common during play sessions.
func (s *Source) targetRect() (image.Rectangle, error) {
	if s.processName == "" {
		return screenshot.GetDisplayBounds(0), nil
	}

	pid := s.cachedPID
	if pid == 0 || !pidAlive(pid) {
		ids, err := robotgo.FindIds(s.processName)
		if err != nil || len(ids) == 0 {
			s.cachedPID = 0
			return image.Rectangle{}, fmt.Errorf("process %q not found", s.processName)
		}
		pid = ids[0]
		s.cachedPID = pid
	}

	x, y, w, h := robotgo.GetBounds(pid)
	if w <= 0 || h <= 0 {
		return image.Rectangle{}, fmt.Errorf("process %q window not visible", s.processName)
	}
	return image.Rect(x, y, x+w, y+h), nil
}

func pidAlive(pid int32) bool {
	ok, err := robotgo.PidExists(pid)
	return err == nil && ok
}

// publish delivers a frame to all subscribers synchronously.
func (s *Source) publish(frame *Frame) {
	s.mu.Lock()
	subs := make([]Subscriber, len(s.subs))
	copy(subs, s.subs)
	s.mu.Unlock()

	for _, sub := range subs {
		sub(frame)
	}
}
