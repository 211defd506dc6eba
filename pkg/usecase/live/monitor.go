package live

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/vetscan/vetscan/pkg/adapter"
	"github.com/vetscan/vetscan/pkg/model"
	"github.com/vetscan/vetscan/pkg/utils/logging"
	"google.golang.org/genai"
)

// SentinelToken is the substring the monitoring prompt instructs the
// model to emit when it detects an emergency. Detection is a
// case-insensitive substring match on transcription text, so incidental
// wording can produce false positives; the contract is intentionally no
// stronger than that.
const SentinelToken = "CRITICAL_ALERT"

const defaultSampleInterval = time.Second

const monitorPrompt = `You are an Elite AI Veterinary Monitor. You are performing real-time video stream analysis of an animal.
Your task is to continuously identify:
1. Species
2. Immediate health threats (bleeding, fractures, malnutrition)
3. Mental state (Fear, Stress, Pain)

ARCHITECTURE: You are a hybrid ensemble of YOLOv8, EfficientNet, and PPO-RL Agents.

RULES:
- Provide brief, urgent updates via audio/transcription.
- If you detect a CRITICAL condition, say "CRITICAL_ALERT" followed by details.
- Monitor for anomalies (unsupervised learning).
- Act as a life-saving tool.`

type State string

const (
	StateIdle       State = "idle"
	StateConnecting State = "connecting"
	StateStreaming  State = "streaming"
	StateClosing    State = "closing"
)

type EventKind string

const (
	// EventStatus is a lifecycle status message from the monitor itself
	EventStatus EventKind = "status"
	// EventTranscription is an incremental text fragment from the model
	EventTranscription EventKind = "transcription"
	// EventCritical is emitted when a fragment contains the sentinel
	EventCritical EventKind = "critical"
	// EventError is a terminal transport failure; the session is over
	EventError EventKind = "error"
)

// Event is one entry of the monitor's event stream. Consumers receive
// every transcription fragment verbatim; a fragment carrying the
// sentinel additionally produces a Critical event with the same text.
type Event struct {
	Kind EventKind
	Text string
}

// Monitor owns one live monitoring session at a time: it opens a
// bidirectional stream to the inference service, pushes sampled camera
// frames at a fixed cadence and fans incoming transcription fragments
// out on its event channel. There is no auto-reconnect; after a failure
// the caller must Start again.
type Monitor struct {
	gemini adapter.Gemini
	camera adapter.Camera

	interval time.Duration
	events   chan Event

	mu      sync.Mutex
	state   State
	session adapter.LiveSession
	cancel  context.CancelFunc

	samplerWg sync.WaitGroup
}

type Option func(*Monitor)

// WithSampleInterval overrides the 1 Hz default sampling cadence.
func WithSampleInterval(d time.Duration) Option {
	return func(m *Monitor) {
		m.interval = d
	}
}

func New(gemini adapter.Gemini, camera adapter.Camera, opts ...Option) *Monitor {
	m := &Monitor{
		gemini:   gemini,
		camera:   camera,
		interval: defaultSampleInterval,
		events:   make(chan Event, 32),
		state:    StateIdle,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Events returns the monitor's event stream. The channel is buffered;
// events are dropped (and logged) if the consumer falls behind.
func (m *Monitor) Events() <-chan Event {
	return m.events
}

// State reports the current lifecycle state.
func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Start opens the live session and begins the sampling loop. Only one
// session may be active per monitor.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.state != StateIdle {
		state := m.state
		m.mu.Unlock()
		return goerr.New("monitor is already active", goerr.V("state", state))
	}
	m.state = StateConnecting
	m.mu.Unlock()

	m.emit(ctx, Event{Kind: EventStatus, Text: "Initializing Real-time CV..."})

	config := &genai.LiveConnectConfig{
		ResponseModalities:       []genai.Modality{genai.ModalityAudio},
		OutputAudioTranscription: &genai.AudioTranscriptionConfig{},
		SystemInstruction:        genai.NewContentFromText(monitorPrompt, ""),
	}

	session, err := m.gemini.ConnectLive(ctx, config)
	if err != nil {
		m.mu.Lock()
		m.state = StateIdle
		m.mu.Unlock()
		return goerr.Wrap(model.ErrStreamTransport, "failed to open live session", goerr.V("cause", err))
	}

	sampleCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	sampleCtx = logging.With(sampleCtx, logging.From(ctx))

	m.mu.Lock()
	m.session = session
	m.cancel = cancel
	m.state = StateStreaming
	m.mu.Unlock()

	m.emit(ctx, Event{Kind: EventStatus, Text: "Live session opened"})

	m.samplerWg.Add(1)
	go m.sampleLoop(sampleCtx, session)
	go m.receiveLoop(sampleCtx, session)

	return nil
}

// Stop cancels the sampling loop, waits for any in-flight tick to
// finish, then requests a best-effort asynchronous close of the session.
// No frame is captured after Stop returns.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if m.state != StateStreaming && m.state != StateConnecting {
		m.mu.Unlock()
		return
	}
	m.state = StateClosing
	cancel := m.cancel
	session := m.session
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	m.samplerWg.Wait()

	if session != nil {
		go func() {
			if err := session.Close(); err != nil {
				logging.Default().Warn("live session close failed", "error", err)
			}
		}()
	}

	m.mu.Lock()
	m.session = nil
	m.cancel = nil
	m.state = StateIdle
	m.mu.Unlock()
}

// sampleLoop captures one frame per tick and pushes it into the session.
// Ticks are serialized, so frame send order always equals capture order.
func (m *Monitor) sampleLoop(ctx context.Context, session adapter.LiveSession) {
	defer m.samplerWg.Done()

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			frame, err := m.camera.CaptureFrame()
			if err != nil {
				// NotReady just means the device has not rendered yet
				logging.From(ctx).Debug("skipping sample", "error", err)
				continue
			}

			if err := session.SendFrame(frame); err != nil {
				logging.From(ctx).Error("frame send failed", "error", err)
				m.fail(ctx, err)
				return
			}
		}
	}
}

// receiveLoop forwards incoming transcription fragments to the event
// stream and raises a Critical event when a fragment carries the
// sentinel token.
func (m *Monitor) receiveLoop(ctx context.Context, session adapter.LiveSession) {
	for {
		msg, err := session.Receive()
		if err != nil {
			if m.State() == StateClosing || m.State() == StateIdle {
				return
			}
			logging.From(ctx).Error("live stream receive failed", "error", err)
			m.fail(ctx, err)
			return
		}

		if msg == nil || msg.ServerContent == nil || msg.ServerContent.OutputTranscription == nil {
			continue
		}

		text := msg.ServerContent.OutputTranscription.Text
		if text == "" {
			continue
		}

		m.emit(ctx, Event{Kind: EventTranscription, Text: text})

		if strings.Contains(strings.ToUpper(text), SentinelToken) {
			m.emit(ctx, Event{Kind: EventCritical, Text: text})
		}
	}
}

// fail degrades the session to a terminal error event. Already-stopped
// sessions ignore late transport failures.
func (m *Monitor) fail(ctx context.Context, cause error) {
	m.mu.Lock()
	if m.state != StateStreaming && m.state != StateConnecting {
		m.mu.Unlock()
		return
	}
	m.state = StateIdle
	session := m.session
	cancel := m.cancel
	m.session = nil
	m.cancel = nil
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if session != nil {
		go func() {
			_ = session.Close()
		}()
	}

	m.emit(ctx, Event{Kind: EventError, Text: "Live monitor stopped: " + cause.Error()})
}

func (m *Monitor) emit(ctx context.Context, ev Event) {
	select {
	case m.events <- ev:
	default:
		logging.From(ctx).Warn("event dropped, consumer too slow", "kind", ev.Kind)
	}
}
