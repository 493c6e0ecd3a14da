package session

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/cjeanneret/camtether/internal/debug"
	"github.com/cjeanneret/camtether/internal/hw/camera"
	"github.com/cjeanneret/camtether/internal/logic/command"
	"github.com/cjeanneret/camtether/internal/metrics"
)

// DefaultKeepaliveInterval is the period between two keep-alive commands.
const DefaultKeepaliveInterval = 60 * time.Second

// Synthetic storage declared to the body when saving to host, large enough
// that it never refuses to shoot for lack of space.
var hostCapacity = camera.Capacity{
	NumberOfFreeClusters: 36864 * 9999,
	BytesPerSector:       512 * 8,
	Reset:                true,
}

// Config holds the session settings. They are set once at startup.
type Config struct {
	DeviceIndex         int           `json:"device_index"`
	MaxDuration         time.Duration `json:"max_duration"` // <= 0 disables the limit
	DeleteAfterDownload bool          `json:"delete_after_download"`
	SaveToHost          bool          `json:"save_to_host"`
	Overwrite           bool          `json:"overwrite"`
	DefaultDir          string        `json:"default_dir"`
	KeepaliveInterval   time.Duration `json:"keepalive_interval"`
}

// State is the coarse session state reported by the "state" command.
type State string

const (
	StateClosed    State = "closed"
	StateOpen      State = "open"
	StateRecording State = "recording"
)

// Option customizes a Session.
type Option func(*Session)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// WithRecordingHook registers fn to be called after every recording
// transition issued by the session (start, stop, cancel, shutdown, close).
func WithRecordingHook(fn func(recording bool)) Option {
	return func(s *Session) { s.onRecording = fn }
}

// Session owns the single live device connection. All methods except
// Downloading and Config must be called from the goroutine running Tick.
type Session struct {
	cfg       Config
	transport camera.Transport
	queue     *command.Queue
	base      *debug.Logger
	log       *debug.Logger
	now       func() time.Time

	initialized   bool
	device        camera.Ref
	sessionOpen   bool
	shutdown      bool
	id            string
	downloading   atomic.Bool
	canceled      bool
	outfile       string
	nextKeepalive time.Time
	recordStarted time.Time
	onRecording   func(bool)
}

// New initializes the transport and returns a closed session. Call Close
// when done, on every exit path.
func New(t camera.Transport, q *command.Queue, cfg Config, log *debug.Logger, opts ...Option) (*Session, error) {
	if cfg.KeepaliveInterval <= 0 {
		cfg.KeepaliveInterval = DefaultKeepaliveInterval
	}
	if cfg.DefaultDir == "" {
		cfg.DefaultDir = "."
	}

	s := &Session{
		cfg:       cfg,
		transport: t,
		queue:     q,
		base:      log,
		log:       log,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.log.Status("initializing SDK")
	if err := t.Initialize(); err != nil {
		return nil, fmt.Errorf("initialize SDK: %w", err)
	}
	s.initialized = true
	s.nextKeepalive = s.now().Add(cfg.KeepaliveInterval)
	return s, nil
}

// Config returns the session settings.
func (s *Session) Config() Config {
	return s.cfg
}

// ID returns the identifier of the current device session, or "" when closed.
func (s *Session) ID() string {
	return s.id
}

// IsOpen reports whether a device session is open.
func (s *Session) IsOpen() bool {
	return s.sessionOpen
}

// Downloading reports whether a file transfer is in progress.
// Safe to call from any goroutine.
func (s *Session) Downloading() bool {
	return s.downloading.Load()
}

// Submit enqueues a non-empty command. It never blocks on device I/O.
func (s *Session) Submit(cmd command.Command) bool {
	return s.queue.Push(cmd)
}

// Open connects to the configured body. It is a no-op with a warning when
// the session is already open.
func (s *Session) Open() error {
	if s.sessionOpen {
		s.log.Warning("session already open")
		return nil
	}

	infos, err := s.transport.ListDevices()
	if err != nil {
		return fmt.Errorf("list devices: %w", err)
	}
	if len(infos) == 0 {
		return ErrNoDevices
	}
	if s.cfg.DeviceIndex < 0 || s.cfg.DeviceIndex >= len(infos) {
		return fmt.Errorf("%w: %d (%d connected)", ErrInvalidDeviceIndex, s.cfg.DeviceIndex, len(infos))
	}

	s.log.Status("fetching camera %d", s.cfg.DeviceIndex)
	dev, err := s.transport.Device(s.cfg.DeviceIndex)
	if err != nil {
		return fmt.Errorf("get camera %d: %w", s.cfg.DeviceIndex, err)
	}

	if err := s.registerHandlers(dev); err != nil {
		if rerr := s.transport.Release(dev); rerr != nil {
			s.log.Errorf("release camera: %v", rerr)
		}
		return err
	}

	s.log.Status("opening session")
	if err := s.transport.OpenSession(dev); err != nil {
		if rerr := s.transport.Release(dev); rerr != nil {
			s.log.Errorf("release camera: %v", rerr)
		}
		return fmt.Errorf("open camera session: %w", err)
	}
	s.device = dev
	s.sessionOpen = true
	s.shutdown = false
	s.id = uuid.NewString()
	s.log = s.base.With("session_id", s.id)
	metrics.SetSessionOpen(true)

	serial, err := s.Serial()
	if err != nil {
		return err
	}
	s.log.Status("opened session with %s", serial)

	return s.configureSaveTo()
}

func (s *Session) configureSaveTo() error {
	if !s.cfg.SaveToHost {
		s.log.Status("save to camera")
		if err := s.transport.SetPropertyUint32(s.device, camera.PropSaveTo, camera.SaveToCamera); err != nil {
			return fmt.Errorf("set save to camera: %w", err)
		}
		return nil
	}

	s.log.Status("save to host")
	if err := s.transport.SetPropertyUint32(s.device, camera.PropSaveTo, camera.SaveToHost); err != nil {
		return fmt.Errorf("set save to host: %w", err)
	}
	if err := s.transport.SetCapacity(s.device, hostCapacity); err != nil {
		return fmt.Errorf("set host capacity: %w", err)
	}
	return nil
}

// Close ends the device session and terminates the transport. It never
// fails: errors are logged because it runs on the exit path.
func (s *Session) Close() {
	s.log.Status("ending session")
	if s.sessionOpen {
		if err := s.transport.CloseSession(s.device); err != nil {
			s.log.Errorf("close session: %v", err)
		}
		s.releaseDevice()
		s.sessionOpen = false
		s.setRecording(false)
		metrics.SetSessionOpen(false)
	}

	if s.initialized {
		s.log.Status("terminating SDK")
		if err := s.transport.Terminate(); err != nil {
			s.log.Errorf("terminate SDK: %v", err)
		}
		s.initialized = false
	}
}

func (s *Session) releaseDevice() {
	if s.device == 0 {
		return
	}
	if err := s.transport.Release(s.device); err != nil {
		s.log.Errorf("release camera: %v", err)
	}
	s.device = 0
}

// Tick runs one cycle of the process loop: open if needed, pump device
// events, interpret at most one queued command, enforce the recording
// limit and send the keep-alive when due.
func (s *Session) Tick() error {
	if !s.sessionOpen {
		if err := s.Open(); err != nil {
			return &OpenError{Err: err}
		}
	}

	if err := s.transport.PumpEvents(); err != nil {
		return fmt.Errorf("pump events: %w", err)
	}
	if s.shutdown {
		return ErrDeviceShutdown
	}

	if !s.downloading.Load() {
		if cmd, ok := s.queue.Pop(); ok {
			if err := s.execute(cmd); err != nil {
				return err
			}
		}
	}

	if err := s.enforceMaxDuration(); err != nil {
		return err
	}
	return s.keepalive()
}

// IsRecording reads the recording state from the body. It is never cached.
func (s *Session) IsRecording() (bool, error) {
	if !s.sessionOpen {
		return false, nil
	}
	v, err := s.transport.PropertyUint32(s.device, camera.PropRecord)
	if err != nil {
		return false, fmt.Errorf("read record state: %w", err)
	}
	return v == camera.RecordStart, nil
}

// State reports recording, open or closed, in that priority.
func (s *Session) State() (State, error) {
	if !s.sessionOpen {
		return StateClosed, nil
	}
	rec, err := s.IsRecording()
	if err != nil {
		return "", err
	}
	if rec {
		return StateRecording, nil
	}
	return StateOpen, nil
}

// Serial reads the body identity string of the open session.
func (s *Session) Serial() (string, error) {
	serial, err := s.transport.PropertyString(s.device, camera.PropBodyIDEx)
	if err != nil {
		return "", fmt.Errorf("read body id: %w", err)
	}
	return serial, nil
}

func (s *Session) keepalive() error {
	now := s.now()
	if now.Before(s.nextKeepalive) {
		return nil
	}
	s.nextKeepalive = now.Add(s.cfg.KeepaliveInterval)
	return s.sendKeepalive("timer")
}

func (s *Session) sendKeepalive(trigger string) error {
	s.log.Status("sending keep alive")
	metrics.IncKeepalive(trigger)
	if err := s.transport.SendCommand(s.device, camera.CommandExtendShutDownTimer, 0); err != nil {
		return fmt.Errorf("send keep alive: %w", err)
	}
	return nil
}

func (s *Session) enforceMaxDuration() error {
	if s.cfg.MaxDuration <= 0 || s.recordStarted.IsZero() {
		return nil
	}
	if s.now().Sub(s.recordStarted) < s.cfg.MaxDuration {
		return nil
	}
	rec, err := s.IsRecording()
	if err != nil {
		return err
	}
	if !rec {
		s.recordStarted = time.Time{}
		return nil
	}
	s.log.Warning("max duration %s reached", s.cfg.MaxDuration)
	return s.stop("")
}

func (s *Session) setRecording(on bool) {
	if !on {
		s.recordStarted = time.Time{}
	}
	if s.onRecording != nil {
		s.onRecording(on)
	}
}

// markShutdown tears down session state after the body went away.
func (s *Session) markShutdown() {
	if s.sessionOpen {
		if err := s.transport.CloseSession(s.device); err != nil {
			s.log.Errorf("close session: %v", err)
		}
		s.releaseDevice()
	}
	s.sessionOpen = false
	s.downloading.Store(false)
	s.canceled = false
	s.outfile = ""
	s.shutdown = true
	s.setRecording(false)
	metrics.SetSessionOpen(false)
}
