package live_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/vetscan/vetscan/pkg/adapter"
	"github.com/vetscan/vetscan/pkg/usecase/live"
	"google.golang.org/genai"
)

// mockSession is a scripted live session: received messages are fed in
// through the msgs channel, sent frames are recorded.
type mockSession struct {
	msgs chan *genai.LiveServerMessage

	mu       sync.Mutex
	sent     [][]byte
	sendErr  error
	closed   bool
	closedCh chan struct{}
}

func newMockSession() *mockSession {
	return &mockSession{
		msgs:     make(chan *genai.LiveServerMessage, 16),
		closedCh: make(chan struct{}),
	}
}

func (s *mockSession) SendFrame(jpeg []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sendErr != nil {
		return s.sendErr
	}
	frame := make([]byte, len(jpeg))
	copy(frame, jpeg)
	s.sent = append(s.sent, frame)
	return nil
}

func (s *mockSession) Receive() (*genai.LiveServerMessage, error) {
	select {
	case msg, ok := <-s.msgs:
		if !ok {
			return nil, errors.New("stream closed")
		}
		return msg, nil
	case <-s.closedCh:
		return nil, errors.New("stream closed")
	}
}

func (s *mockSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.closedCh)
	}
	return nil
}

func (s *mockSession) sentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

func (s *mockSession) transcribe(text string) {
	s.msgs <- &genai.LiveServerMessage{
		ServerContent: &genai.LiveServerContent{
			OutputTranscription: &genai.Transcription{Text: text},
		},
	}
}

// mockGemini hands out the scripted session
type mockGemini struct {
	session    *mockSession
	connectErr error
}

func (m *mockGemini) GenerateContent(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	return nil, errors.New("not implemented")
}

func (m *mockGemini) CreateChat(ctx context.Context, config *genai.GenerateContentConfig, history []*genai.Content) (*genai.Chat, error) {
	return nil, errors.New("not implemented")
}

func (m *mockGemini) ConnectLive(ctx context.Context, config *genai.LiveConnectConfig) (adapter.LiveSession, error) {
	if m.connectErr != nil {
		return nil, m.connectErr
	}
	return m.session, nil
}

// mockCamera serves a fixed frame
type mockCamera struct {
	mu       sync.Mutex
	captures int
}

func (c *mockCamera) Open(ctx context.Context) error { return nil }
func (c *mockCamera) Close() error                   { return nil }

func (c *mockCamera) CaptureFrame() ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.captures++
	return []byte{0xff, 0xd8, byte(c.captures)}, nil
}

func (c *mockCamera) captureCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.captures
}

// collect drains events matching kind until timeout
func waitEvent(t *testing.T, events <-chan live.Event, kind live.EventKind) live.Event {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-events:
			if ev.Kind == kind {
				return ev
			}
		case <-deadline:
			t.Fatalf("no %s event within deadline", kind)
			return live.Event{}
		}
	}
}

func TestMonitorSentinelDetection(t *testing.T) {
	ctx := context.Background()
	session := newMockSession()
	gemini := &mockGemini{session: session}
	camera := &mockCamera{}

	monitor := live.New(gemini, camera, live.WithSampleInterval(time.Hour))
	gt.NoError(t, monitor.Start(ctx))
	defer monitor.Stop()

	fragment := "Observing subject. CRITICAL_ALERT: bleeding detected on left flank."
	session.transcribe(fragment)

	transcription := waitEvent(t, monitor.Events(), live.EventTranscription)
	gt.Value(t, transcription.Text).Equal(fragment)

	critical := waitEvent(t, monitor.Events(), live.EventCritical)
	gt.Value(t, critical.Text).Equal(fragment)

	// A calm fragment must not raise another critical event
	session.transcribe("Subject is resting, vitals appear stable.")
	next := waitEvent(t, monitor.Events(), live.EventTranscription)
	gt.Value(t, next.Text).Equal("Subject is resting, vitals appear stable.")

	select {
	case ev := <-monitor.Events():
		if ev.Kind == live.EventCritical {
			t.Fatalf("unexpected critical event: %s", ev.Text)
		}
	case <-time.After(100 * time.Millisecond):
	}
}

func TestMonitorSentinelCaseInsensitive(t *testing.T) {
	ctx := context.Background()
	session := newMockSession()
	gemini := &mockGemini{session: session}

	monitor := live.New(gemini, &mockCamera{}, live.WithSampleInterval(time.Hour))
	gt.NoError(t, monitor.Start(ctx))
	defer monitor.Stop()

	session.transcribe("critical_alert: severe dehydration")
	critical := waitEvent(t, monitor.Events(), live.EventCritical)
	gt.Value(t, critical.Text).Equal("critical_alert: severe dehydration")
}

func TestMonitorSamplesFramesInOrder(t *testing.T) {
	ctx := context.Background()
	session := newMockSession()
	gemini := &mockGemini{session: session}
	camera := &mockCamera{}

	monitor := live.New(gemini, camera, live.WithSampleInterval(5*time.Millisecond))
	gt.NoError(t, monitor.Start(ctx))

	deadline := time.After(2 * time.Second)
	for session.sentCount() < 3 {
		select {
		case <-deadline:
			t.Fatal("no frames sent within deadline")
		case <-time.After(5 * time.Millisecond):
		}
	}
	monitor.Stop()

	session.mu.Lock()
	defer session.mu.Unlock()
	for i := 1; i < len(session.sent); i++ {
		gt.Value(t, session.sent[i][2] > session.sent[i-1][2]).Equal(true)
	}
}

func TestMonitorStopHaltsSampling(t *testing.T) {
	ctx := context.Background()
	session := newMockSession()
	gemini := &mockGemini{session: session}
	camera := &mockCamera{}

	monitor := live.New(gemini, camera, live.WithSampleInterval(2*time.Millisecond))
	gt.NoError(t, monitor.Start(ctx))

	time.Sleep(20 * time.Millisecond)
	monitor.Stop()

	captured := camera.captureCount()
	time.Sleep(30 * time.Millisecond)
	gt.Number(t, camera.captureCount()).Equal(captured)
	gt.Value(t, monitor.State()).Equal(live.StateIdle)
}

func TestMonitorSingleActiveSession(t *testing.T) {
	ctx := context.Background()
	session := newMockSession()
	gemini := &mockGemini{session: session}

	monitor := live.New(gemini, &mockCamera{}, live.WithSampleInterval(time.Hour))
	gt.NoError(t, monitor.Start(ctx))
	defer monitor.Stop()

	gt.Error(t, monitor.Start(ctx))
}

func TestMonitorConnectFailure(t *testing.T) {
	ctx := context.Background()
	gemini := &mockGemini{connectErr: errors.New("dial failed")}

	monitor := live.New(gemini, &mockCamera{})
	gt.Error(t, monitor.Start(ctx))
	gt.Value(t, monitor.State()).Equal(live.StateIdle)

	// A failed open leaves the monitor restartable
	gemini.connectErr = nil
	gemini.session = newMockSession()
	gt.NoError(t, monitor.Start(ctx))
	monitor.Stop()
}

func TestMonitorSendFailureIsTerminal(t *testing.T) {
	ctx := context.Background()
	session := newMockSession()
	session.sendErr = errors.New("broken pipe")
	gemini := &mockGemini{session: session}

	monitor := live.New(gemini, &mockCamera{}, live.WithSampleInterval(2*time.Millisecond))
	gt.NoError(t, monitor.Start(ctx))

	ev := waitEvent(t, monitor.Events(), live.EventError)
	gt.Value(t, ev.Text != "").Equal(true)

	deadline := time.After(time.Second)
	for monitor.State() != live.StateIdle {
		select {
		case <-deadline:
			t.Fatal("monitor did not return to idle")
		case <-time.After(5 * time.Millisecond):
		}
	}
}
