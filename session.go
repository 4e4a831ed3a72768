package srtcast

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/srtcast/srtcast/encoder"
	"github.com/srtcast/srtcast/metrics"
	"github.com/srtcast/srtcast/regulator"
	"github.com/srtcast/srtcast/scheduler"
	"github.com/srtcast/srtcast/transport"
)

// State represents the lifecycle state of a Session.
type State uint32

const (
	// StateIdle indicates the session has no transport connection.
	StateIdle State = iota
	// StateConnecting indicates a transport connection attempt is in flight.
	StateConnecting
	// StateConnected indicates the transport is connected but no media flows.
	StateConnected
	// StateStreaming indicates media is flowing and regulation is active.
	StateStreaming
	// StateStopped indicates the session was closed via Close.
	StateStopped
	// StateFailed indicates the last connection attempt or the connection
	// itself failed. Connect may be retried from this state.
	StateFailed
)

// String returns a human-readable state description.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateStreaming:
		return "streaming"
	case StateStopped:
		return "stopped"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Session coordinates a live streaming session: it sequences transport
// connection, media pipeline start/stop, and the adaptive bitrate regulation
// loop, and forwards transport connection events to a single observer.
//
// All exported methods are safe for concurrent use. Connect and the
// StartStreamTo composites block on network I/O and must not be called from
// latency-sensitive goroutines.
type Session struct {
	id       string
	producer transport.Producer
	pipeline Pipeline
	encoders encoder.BitrateController
	metrics  *metrics.Collector

	// sched is nil when no regulator is configured, so a regulation tick
	// without a regulator cannot exist. Both are fixed for the session's
	// lifetime.
	sched *scheduler.Scheduler
	reg   regulator.Regulator

	// mu guards state and orders lifecycle transitions.
	mu    sync.Mutex
	state State

	// cbMu guards the single-slot event observer, separately from mu so
	// the observer can be replaced while a lifecycle operation blocks.
	cbMu    sync.RWMutex
	eventCb func(transport.Event)
}

// NewSession creates a fully configured session in the idle state.
//
// The regulator, when configured, is constructed here and bound to the
// session's bitrate cell; it cannot be swapped afterwards. The regulation
// scheduler exists only when a regulator does.
//
// Parameters:
//   - cfg: Session configuration (see Config)
//
// Returns:
//   - *Session: The new idle session
//   - error: Configuration validation failure
func NewSession(cfg Config) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "NewSession",
			"error":    err.Error(),
		}).Error("Session configuration validation failed")
		return nil, fmt.Errorf("session config: %w", err)
	}
	cfg = cfg.withDefaults()

	encoders := cfg.Encoders
	if encoders == nil {
		encoders = encoder.NewState(cfg.VideoBitrate, cfg.AudioBitrate)
	}

	s := &Session{
		id:       uuid.New().String(),
		producer: cfg.Producer,
		pipeline: cfg.Pipeline,
		encoders: encoders,
		metrics:  cfg.Metrics,
		state:    StateIdle,
	}

	if cfg.StreamID != "" {
		s.producer.SetStreamID(cfg.StreamID)
	}

	if cfg.regulationEnabled() {
		s.reg = cfg.RegulatorFactory(*cfg.RegulatorConfig,
			encoders.SetVideoBitrate, encoders.SetAudioBitrate)

		sched, err := scheduler.New(cfg.RegulationInterval, s.regulationTick)
		if err != nil {
			return nil, fmt.Errorf("regulation scheduler: %w", err)
		}
		s.sched = sched
	}

	s.producer.SetEventCallback(s.handleEvent)

	logrus.WithFields(logrus.Fields{
		"function":            "NewSession",
		"session_id":          s.id,
		"regulation_enabled":  s.sched != nil,
		"regulation_interval": cfg.RegulationInterval,
		"video_bitrate":       encoders.VideoBitrate(),
		"audio_bitrate":       encoders.AudioBitrate(),
	}).Info("Session created")

	s.metrics.SessionState(s.state.String())

	return s, nil
}

// ID returns the session's unique identifier, used for log correlation.
func (s *Session) ID() string {
	return s.id
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Encoders returns the bitrate cell shared with the media pipeline.
func (s *Session) Encoders() encoder.BitrateController {
	return s.encoders
}

// StreamID returns the stream identifier, forwarded from the producer.
func (s *Session) StreamID() string {
	return s.producer.StreamID()
}

// SetStreamID updates the stream identifier on the producer. The value is
// session-level state: it survives disconnects and applies to the next
// connection handshake.
func (s *Session) SetStreamID(id string) {
	s.producer.SetStreamID(id)
}

// Passphrase returns the encryption passphrase, forwarded from the producer.
func (s *Session) Passphrase() string {
	return s.producer.Passphrase()
}

// SetPassphrase updates the passphrase on the producer. Like the stream ID
// it survives disconnects.
func (s *Session) SetPassphrase(passphrase string) {
	s.producer.SetPassphrase(passphrase)
}

// SetConnectionEventCallback sets the single connection event observer,
// replacing any previous one. It may be called at any time, including while
// streaming; the replacement applies to the next event. Missed events are
// not buffered. A nil callback disables delivery.
func (s *Session) SetConnectionEventCallback(callback func(transport.Event)) {
	s.cbMu.Lock()
	s.eventCb = callback
	s.cbMu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function":   "SetConnectionEventCallback",
		"session_id": s.id,
		"enabled":    callback != nil,
	}).Debug("Connection event observer replaced")
}

// Connect establishes the transport connection. See ConnectContext.
func (s *Session) Connect(host string, port int) error {
	return s.ConnectContext(context.Background(), host, port)
}

// ConnectContext establishes the transport connection to the remote ingest
// endpoint. It blocks until connected, the context is done, or the attempt
// fails.
//
// Permitted from the idle, stopped, and failed states; a failed attempt
// leaves the session failed and may be retried with a fresh call.
//
// Parameters:
//   - ctx: Cancels or bounds the connection attempt
//   - host: Remote host name or address
//   - port: Remote port
//
// Returns:
//   - error: ErrInvalidState on a precondition violation, or a
//     *ConnectionError describing the failed attempt
func (s *Session) ConnectContext(ctx context.Context, host string, port int) error {
	addr := fmt.Sprintf("%s:%d", host, port)

	s.mu.Lock()
	switch s.state {
	case StateIdle, StateStopped, StateFailed:
	default:
		state := s.state
		s.mu.Unlock()
		logrus.WithFields(logrus.Fields{
			"function":   "ConnectContext",
			"session_id": s.id,
			"state":      state.String(),
			"address":    addr,
		}).Error("Connect not permitted in current state")
		return fmt.Errorf("connect from %s: %w", state, ErrInvalidState)
	}
	s.setStateLocked(StateConnecting)
	s.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function":   "ConnectContext",
		"session_id": s.id,
		"address":    addr,
		"stream_id":  s.producer.StreamID(),
	}).Info("Connecting transport")

	err := s.producer.Connect(ctx, host, port)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		s.setStateLocked(StateFailed)
		logrus.WithFields(logrus.Fields{
			"function":   "ConnectContext",
			"session_id": s.id,
			"address":    addr,
			"error":      err.Error(),
		}).Error("Transport connection failed")
		return newConnectionError("connect", addr, err)
	}

	s.setStateLocked(StateConnected)
	logrus.WithFields(logrus.Fields{
		"function":   "ConnectContext",
		"session_id": s.id,
		"address":    addr,
	}).Info("Transport connected")

	return nil
}

// Disconnect closes the transport connection and returns the session to the
// idle state. If the session is streaming, the stream is torn down first:
// the regulation scheduler is cancelled, then the pipeline stops, then the
// transport closes.
//
// Returns:
//   - error: ErrNotConnected when the session is idle, otherwise any
//     pipeline-stop or transport-disconnect failure
func (s *Session) Disconnect() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateIdle {
		logrus.WithFields(logrus.Fields{
			"function":   "Disconnect",
			"session_id": s.id,
		}).Error("Disconnect called on idle session")
		return ErrNotConnected
	}

	var stopErr error
	if s.state == StateStreaming {
		stopErr = s.stopStreamLocked()
	}

	err := s.producer.Disconnect()
	s.setStateLocked(StateIdle)

	logrus.WithFields(logrus.Fields{
		"function":   "Disconnect",
		"session_id": s.id,
	}).Info("Transport disconnected")

	if stopErr != nil {
		return fmt.Errorf("stopping stream before disconnect: %w", stopErr)
	}
	if err != nil {
		return fmt.Errorf("disconnecting transport: %w", err)
	}
	return nil
}

// StartStream starts the media pipeline and, when a regulator is
// configured, the regulation loop. Requires a connected session.
//
// The scheduler starts before the pipeline so the first regulation window
// covers the stream from its beginning. If the pipeline fails to start, the
// scheduler is cancelled again and the session stays connected with no
// active timeline.
//
// Returns:
//   - error: ErrInvalidState on a precondition violation, or the wrapped
//     pipeline failure
func (s *Session) StartStream() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startStreamLocked()
}

// startStreamLocked implements StartStream. Must be called with mu locked.
func (s *Session) startStreamLocked() error {
	if s.state != StateConnected {
		logrus.WithFields(logrus.Fields{
			"function":   "StartStream",
			"session_id": s.id,
			"state":      s.state.String(),
		}).Error("StartStream requires a connected session")
		return fmt.Errorf("start stream from %s: %w", s.state, ErrInvalidState)
	}

	if s.sched != nil {
		if err := s.sched.Start(); err != nil {
			return fmt.Errorf("starting regulation scheduler: %w", err)
		}
	}

	if err := s.pipeline.Start(); err != nil {
		// Roll the scheduler back so no timeline outlives the failed start.
		if s.sched != nil {
			s.sched.Cancel()
		}
		logrus.WithFields(logrus.Fields{
			"function":   "StartStream",
			"session_id": s.id,
			"error":      err.Error(),
		}).Error("Media pipeline failed to start")
		return fmt.Errorf("starting media pipeline: %w", err)
	}

	s.setStateLocked(StateStreaming)
	logrus.WithFields(logrus.Fields{
		"function":           "StartStream",
		"session_id":         s.id,
		"regulation_enabled": s.sched != nil,
	}).Info("Stream started")

	return nil
}

// StopStream stops the media stream and returns the session to the
// connected state. The regulation scheduler is cancelled strictly before
// the pipeline stops, so no tick can touch bitrate state the pipeline is
// resetting. The scheduler ends up inactive even when the pipeline stop
// fails.
//
// Returns:
//   - error: ErrInvalidState when the session is not streaming, or the
//     wrapped pipeline failure
func (s *Session) StopStream() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateStreaming {
		logrus.WithFields(logrus.Fields{
			"function":   "StopStream",
			"session_id": s.id,
			"state":      s.state.String(),
		}).Error("StopStream requires a streaming session")
		return fmt.Errorf("stop stream from %s: %w", s.state, ErrInvalidState)
	}

	err := s.stopStreamLocked()
	s.setStateLocked(StateConnected)

	logrus.WithFields(logrus.Fields{
		"function":   "StopStream",
		"session_id": s.id,
	}).Info("Stream stopped")

	return err
}

// stopStreamLocked cancels regulation and stops the pipeline, in that
// order. Must be called with mu locked. The caller sets the follow-up
// state.
func (s *Session) stopStreamLocked() error {
	if s.sched != nil {
		s.sched.Cancel()
	}

	if err := s.pipeline.Stop(); err != nil {
		logrus.WithFields(logrus.Fields{
			"function":   "stopStreamLocked",
			"session_id": s.id,
			"error":      err.Error(),
		}).Error("Media pipeline failed to stop")
		return fmt.Errorf("stopping media pipeline: %w", err)
	}
	return nil
}

// StartStreamTo connects and starts streaming in one call. See
// StartStreamToContext.
func (s *Session) StartStreamTo(host string, port int) error {
	return s.StartStreamToContext(context.Background(), host, port)
}

// StartStreamToContext is the connect-then-start composition: it
// establishes the transport connection and immediately starts the stream.
//
// The composite fails as a unit. If the stream fails to start after a
// successful connect, the regulation scheduler is already rolled back by
// the start path, the transport is disconnected best-effort, and the
// session ends failed.
//
// Parameters:
//   - ctx: Cancels or bounds the connection attempt
//   - host: Remote host name or address
//   - port: Remote port
//
// Returns:
//   - error: The connect or stream-start failure
func (s *Session) StartStreamToContext(ctx context.Context, host string, port int) error {
	if err := s.ConnectContext(ctx, host, port); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.startStreamLocked(); err != nil {
		if derr := s.producer.Disconnect(); derr != nil {
			logrus.WithFields(logrus.Fields{
				"function":   "StartStreamToContext",
				"session_id": s.id,
				"error":      derr.Error(),
			}).Warn("Rollback disconnect failed")
		}
		s.setStateLocked(StateFailed)
		return err
	}
	return nil
}

// Close shuts the session down: it cancels regulation, stops the pipeline,
// and disconnects the transport as needed, leaving the session stopped.
// Close is idempotent. A stopped session may be revived with Connect.
//
// Returns:
//   - error: The first teardown failure, if any; the session is stopped
//     regardless
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateStopped {
		logrus.WithFields(logrus.Fields{
			"function":   "Close",
			"session_id": s.id,
		}).Debug("Session already closed")
		return nil
	}

	var firstErr error
	if s.state == StateStreaming {
		firstErr = s.stopStreamLocked()
	}

	if s.state == StateStreaming || s.state == StateConnected {
		if err := s.producer.Disconnect(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("disconnecting transport: %w", err)
		}
	}

	s.setStateLocked(StateStopped)
	logrus.WithFields(logrus.Fields{
		"function":   "Close",
		"session_id": s.id,
	}).Info("Session closed")

	return firstErr
}

// setStateLocked records a state transition. Must be called with mu locked.
func (s *Session) setStateLocked(next State) {
	prev := s.state
	s.state = next
	s.metrics.SessionState(next.String())

	logrus.WithFields(logrus.Fields{
		"function":   "setStateLocked",
		"session_id": s.id,
		"from":       prev.String(),
		"to":         next.String(),
	}).Debug("Session state transition")
}

// regulationTick is the scheduler task. It exists only when a regulator is
// configured. Each tick reads one fresh statistics snapshot and feeds it to
// the regulator with the current targets; failures are logged and the tick
// skipped so a transient fault never kills the regulation timeline.
func (s *Session) regulationTick() {
	started := time.Now()

	stats, err := s.producer.Stats()
	if err != nil {
		s.metrics.RegulationError()
		logrus.WithFields(logrus.Fields{
			"function":   "regulationTick",
			"session_id": s.id,
			"error":      err.Error(),
		}).Warn("Skipping regulation tick, statistics unavailable")
		return
	}

	video := s.encoders.VideoBitrate()
	audio := s.encoders.AudioBitrate()

	if err := s.reg.Update(stats, video, audio); err != nil {
		s.metrics.RegulationError()
		logrus.WithFields(logrus.Fields{
			"function":   "regulationTick",
			"session_id": s.id,
			"error":      err.Error(),
		}).Warn("Regulator rejected tick")
		return
	}

	s.metrics.RegulationTick(time.Since(started))
	s.metrics.Bitrates(s.encoders.VideoBitrate(), s.encoders.AudioBitrate())
}

// handleEvent is the callback registered on the producer. It reacts to a
// lost connection by tearing the stream down in the invariant order, then
// forwards the event untouched to the observer.
func (s *Session) handleEvent(ev transport.Event) {
	s.metrics.ConnectionEvent(ev.Type.String())

	if ev.Type == transport.EventConnectionLost {
		s.reactToConnectionLost(ev)
	}

	s.cbMu.RLock()
	cb := s.eventCb
	s.cbMu.RUnlock()

	if cb != nil {
		cb(ev)
	}
}

// reactToConnectionLost moves the session to the failed state after a
// transport failure, cancelling regulation and stopping the pipeline first
// when the session was streaming.
func (s *Session) reactToConnectionLost(ev transport.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateStreaming:
		if err := s.stopStreamLocked(); err != nil {
			logrus.WithFields(logrus.Fields{
				"function":   "reactToConnectionLost",
				"session_id": s.id,
				"error":      err.Error(),
			}).Warn("Pipeline stop failed during connection-loss teardown")
		}
	case StateConnected:
	default:
		// The loss raced with a deliberate teardown. Nothing to unwind.
		return
	}

	s.setStateLocked(StateFailed)
	logrus.WithFields(logrus.Fields{
		"function":   "reactToConnectionLost",
		"session_id": s.id,
		"reason":     ev.Reason,
	}).Error("Transport connection lost")
}
