package audio

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// Mock implementations for testing

type mockBackend struct {
	device *mockDevice
	err    error
}

func (m *mockBackend) InputDevice(id string) (InputDevice, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.device, nil
}

func (m *mockBackend) ListDevices() ([]AudioDevice, error) {
	return []AudioDevice{{ID: "mock", Name: "mock", Default: true}}, nil
}

type mockDevice struct {
	cfg      StreamConfig
	openErr  error
	startErr error

	mu     sync.Mutex
	calls  []string
	sink   *Sink
	opened *mockStream
}

func (m *mockDevice) record(call string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call)
}

func (m *mockDevice) Name() string { return "mock" }

func (m *mockDevice) Config() (StreamConfig, error) { return m.cfg, nil }

func (m *mockDevice) Open(cfg StreamConfig, sink *Sink) (Stream, error) {
	m.record("open")
	if m.openErr != nil {
		return nil, m.openErr
	}
	m.sink = sink
	m.opened = &mockStream{dev: m}
	return m.opened, nil
}

type mockStream struct {
	dev *mockDevice
}

func (s *mockStream) Start() error {
	s.dev.record("start")
	return s.dev.startErr
}

func (s *mockStream) Stop() error {
	// A block already in flight when Stop is requested still lands.
	s.dev.sink.WriteInt16(make([]int16, 10))
	s.dev.record("stop")
	return nil
}

func (s *mockStream) Close() error {
	s.dev.record("close")
	return nil
}

func newTestRecorder(b Backend, stop StopSignal, overrides StreamConfig) *Recorder {
	return NewRecorder(RecorderConfig{
		Backend:   b,
		Stop:      stop,
		Overrides: overrides,
		Logger:    zerolog.Nop(),
	})
}

func TestRecordNoInputDevice(t *testing.T) {
	path := filepath.Join(t.TempDir(), "user_input.wav")
	rec := newTestRecorder(&mockBackend{err: ErrNoInputDevice}, StopFunc(func(context.Context) error {
		t.Fatal("stop signal should not be awaited")
		return nil
	}), StreamConfig{})

	_, err := rec.Record(context.Background(), path)
	if !errors.Is(err, ErrNoInputDevice) {
		t.Fatalf("expected ErrNoInputDevice, got %v", err)
	}
	if _, statErr := os.Stat(path); !os.IsNotExist(statErr) {
		t.Fatal("no file should be created when there is no input device")
	}
}

func TestRecordUnsupportedFormat(t *testing.T) {
	dev := &mockDevice{cfg: StreamConfig{SampleRate: 48000, Channels: 1, Format: FormatOther}}
	path := filepath.Join(t.TempDir(), "user_input.wav")
	rec := newTestRecorder(&mockBackend{device: dev}, StopFunc(func(context.Context) error { return nil }), StreamConfig{})

	_, err := rec.Record(context.Background(), path)
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
	if len(dev.calls) != 0 {
		t.Fatalf("stream should never be opened, got calls %v", dev.calls)
	}
	if _, statErr := os.Stat(path); !os.IsNotExist(statErr) {
		t.Fatal("no file should be created for an unsupported format")
	}
}

func TestRecordOpenFailureRemovesFile(t *testing.T) {
	dev := &mockDevice{
		cfg:     StreamConfig{SampleRate: 16000, Channels: 1, Format: FormatInt16},
		openErr: errors.New("device busy"),
	}
	path := filepath.Join(t.TempDir(), "user_input.wav")
	rec := newTestRecorder(&mockBackend{device: dev}, StopFunc(func(context.Context) error { return nil }), StreamConfig{})

	_, err := rec.Record(context.Background(), path)
	if err == nil || !strings.Contains(err.Error(), "device busy") {
		t.Fatalf("expected open error, got %v", err)
	}
	if _, statErr := os.Stat(path); !os.IsNotExist(statErr) {
		t.Fatal("partial file should be removed after a failed open")
	}
}

func TestRecordStartFailureRemovesFile(t *testing.T) {
	dev := &mockDevice{
		cfg:      StreamConfig{SampleRate: 16000, Channels: 1, Format: FormatInt16},
		startErr: errors.New("stream already running"),
	}
	path := filepath.Join(t.TempDir(), "user_input.wav")
	rec := newTestRecorder(&mockBackend{device: dev}, StopFunc(func(context.Context) error {
		t.Fatal("stop signal should not be awaited")
		return nil
	}), StreamConfig{})

	got, err := rec.Record(context.Background(), path)
	if err == nil || !strings.Contains(err.Error(), "stream already running") {
		t.Fatalf("expected start error, got %v", err)
	}
	if strings.Join(dev.calls, ",") != "open,start,stop,close" {
		t.Fatalf("stream not released after failed start: %v", dev.calls)
	}
	if !dev.sink.Finalized() {
		t.Fatal("sink should be finalized after a failed start")
	}
	if _, statErr := os.Stat(path); !os.IsNotExist(statErr) {
		t.Fatal("file should be removed after a failed start")
	}
	if got.Path != "" {
		t.Fatalf("no recording should be reported, got %+v", got)
	}
}

func TestRecordLifecycle(t *testing.T) {
	dev := &mockDevice{cfg: StreamConfig{SampleRate: 16000, Channels: 1, Format: FormatInt16}}
	path := filepath.Join(t.TempDir(), "user_input.wav")

	stop := StopFunc(func(context.Context) error {
		// Driver deliveries while the operator is talking.
		dev.sink.WriteInt16(make([]int16, 1600))
		dev.sink.WriteInt16(make([]int16, 1590))
		return nil
	})
	rec := newTestRecorder(&mockBackend{device: dev}, stop, StreamConfig{})

	got, err := rec.Record(context.Background(), path)
	if err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	want := []string{"open", "start", "stop", "close"}
	if strings.Join(dev.calls, ",") != strings.Join(want, ",") {
		t.Fatalf("expected calls %v, got %v", want, dev.calls)
	}
	if !dev.sink.Finalized() {
		t.Fatal("sink should be finalized after Record")
	}
	if got.Frames != 3200 {
		t.Fatalf("expected 3200 frames, got %d", got.Frames)
	}
	if got.Duration != 200*time.Millisecond {
		t.Fatalf("expected 200ms, got %v", got.Duration)
	}

	// A callback firing after Record returned must not reopen the writer.
	dev.sink.WriteInt16(make([]int16, 100))
	dur, err := WAVDuration(path)
	if err != nil {
		t.Fatalf("WAVDuration failed: %v", err)
	}
	if dur != 200*time.Millisecond {
		t.Fatalf("expected file duration 200ms, got %v", dur)
	}
}

func TestRecordCancelledStillFinalizes(t *testing.T) {
	dev := &mockDevice{cfg: StreamConfig{SampleRate: 8000, Channels: 1, Format: FormatFloat32}}
	path := filepath.Join(t.TempDir(), "user_input.wav")

	ctx, cancel := context.WithCancel(context.Background())
	stop := StopFunc(func(ctx context.Context) error {
		dev.sink.WriteFloat32(make([]float32, 800))
		cancel()
		<-ctx.Done()
		return ctx.Err()
	})
	rec := newTestRecorder(&mockBackend{device: dev}, stop, StreamConfig{})

	_, err := rec.Record(ctx, path)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if strings.Join(dev.calls, ",") != "open,start,stop,close" {
		t.Fatalf("stream not released on cancel: %v", dev.calls)
	}
	if _, err := WAVDuration(path); err != nil {
		t.Fatalf("cancelled recording should still be a finalized WAV: %v", err)
	}
}

func TestRecordAppliesOverrides(t *testing.T) {
	dev := &mockDevice{cfg: StreamConfig{SampleRate: 48000, Channels: 2, Format: FormatFloat32}}
	path := filepath.Join(t.TempDir(), "user_input.wav")
	rec := newTestRecorder(&mockBackend{device: dev}, StopFunc(func(context.Context) error { return nil }),
		StreamConfig{SampleRate: 16000, Channels: 1, Format: FormatInt16})

	got, err := rec.Record(context.Background(), path)
	if err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	want := StreamConfig{SampleRate: 16000, Channels: 1, Format: FormatInt16}
	if got.Config != want {
		t.Fatalf("expected config %+v, got %+v", want, got.Config)
	}
}

func TestLineStop(t *testing.T) {
	stop := NewLineStop(strings.NewReader("\nstop\n"))
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := stop.Wait(ctx); err != nil {
			t.Fatalf("Wait %d failed: %v", i, err)
		}
	}
	if err := stop.Wait(ctx); !errors.Is(err, io.EOF) {
		t.Fatalf("expected io.EOF after input ends, got %v", err)
	}
	if err := stop.Wait(ctx); !errors.Is(err, io.EOF) {
		t.Fatalf("expected io.EOF on repeated Wait, got %v", err)
	}
}

func TestLineStopCancelKeepsInput(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()
	stop := NewLineStop(pr)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := stop.Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	go pw.Write([]byte("\n"))

	ctx, cancel = context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := stop.Wait(ctx); err != nil {
		t.Fatalf("line entered after a cancelled wait should stop the next one: %v", err)
	}
}

func TestTimerStop(t *testing.T) {
	start := time.Now()
	if err := TimerStop(20 * time.Millisecond).Wait(context.Background()); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if time.Since(start) < 20*time.Millisecond {
		t.Fatal("TimerStop returned early")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := TimerStop(time.Hour).Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
