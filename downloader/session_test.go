package downloader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func exampleEvents() []StreamItem {
	return []StreamItem{
		event(EventStarted, StatusStarted, ProgressSnapshot{TotalBytes: 1_000_000}),
		event(EventProgress, StatusInProgress, ProgressSnapshot{
			Percentage:      50,
			DownloadedBytes: 500_000,
			TotalBytes:      1_000_000,
			SpeedBps:        100_000,
		}),
		event(EventCompleted, StatusCompleted, ProgressSnapshot{
			Percentage:      100,
			DownloadedBytes: 1_000_000,
			TotalBytes:      1_000_000,
		}),
	}
}

func TestSession_CompletedEndToEnd(t *testing.T) {
	size := uint64(1_000_000)
	stream := newFakeStream(0, exampleEvents()...)
	service := NewMockService(DownloadHandle{ID: "dl-1", EstimatedSizeBytes: &size}, stream)
	var out bytes.Buffer
	renderer := NewTerminalRenderer(TerminalOptions{Output: &out, NoColor: true})

	var started DownloadHandle
	session := NewSession(SessionConfig{
		Service:    service,
		Renderer:   renderer,
		Logger:     zaptest.NewLogger(t),
		Interrupts: make(chan os.Signal, 1),
		OnStarted:  func(h DownloadHandle) { started = h },
	})

	outcome, err := session.Run(context.Background(), DownloadRequest{ModelName: "microsoft/DialoGPT-small"})

	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, outcome.Kind)
	assert.Equal(t, "dl-1", started.ID)
	assert.Equal(t, 1, stream.GetCloseCalls())

	output := out.String()
	assert.Contains(t, output, "Download started")
	assert.Contains(t, output, "488.3 KB/976.6 KB | 97.7 KB/s")
	assert.Contains(t, output, "Download completed!")

	startCalls, openCalls, cancelCalls := service.GetCallCounts()
	assert.Equal(t, 1, startCalls)
	assert.Equal(t, 1, openCalls)
	assert.Equal(t, 0, cancelCalls)
}

func TestSession_StartFailure(t *testing.T) {
	service := NewMockService(DownloadHandle{}, nil)
	service.startErr = errors.New("dial tcp 127.0.0.1:8080: connection refused")
	renderer := NewMockRenderer()

	_, err := NewSession(SessionConfig{Service: service, Renderer: renderer}).
		Run(context.Background(), DownloadRequest{ModelName: "org/model"})

	require.Error(t, err)
	assert.True(t, IsDownloadError(err, ErrorStart))
	_, openCalls, _ := service.GetCallCounts()
	assert.Equal(t, 0, openCalls, "no stream is opened after a start failure")
	assert.Empty(t, renderer.GetOutcomeCalls())
}

func TestSession_OpenStreamFailure(t *testing.T) {
	service := NewMockService(DownloadHandle{ID: "dl-2"}, nil)
	service.openErr = errors.New("404 not found")

	_, err := NewSession(SessionConfig{Service: service, Renderer: NewMockRenderer()}).
		Run(context.Background(), DownloadRequest{ModelName: "org/model"})

	require.Error(t, err)
	assert.True(t, IsDownloadError(err, ErrorStream))
}

func TestSession_CancelMidStream(t *testing.T) {
	stream := newFakeStream(4, event(EventStarted, StatusStarted, pct(0)))
	service := NewMockService(DownloadHandle{ID: "dl-3"}, stream)
	service.onCancel = func(string) {
		stream.ch <- event(EventCancelled, StatusCancelled, pct(10))
	}
	interrupts := make(chan os.Signal, 1)
	renderer := NewMockRenderer()
	renderer.onProgress = func(ProgressSnapshot) {
		select {
		case interrupts <- os.Interrupt:
		default:
		}
	}

	outcome, err := NewSession(SessionConfig{
		Service:    service,
		Renderer:   renderer,
		Logger:     zaptest.NewLogger(t),
		Interrupts: interrupts,
		Consumer:   []ConsumerOption{WithWaitTimeout(time.Second)},
	}).Run(context.Background(), DownloadRequest{ModelName: "org/model"})

	require.NoError(t, err)
	assert.Equal(t, OutcomeCancelled, outcome.Kind)
	assert.Equal(t, []string{"dl-3"}, service.GetCancelIDs())
	assert.Equal(t, 1, renderer.GetCancelRequested())
	require.Len(t, renderer.GetOutcomeCalls(), 1)
}

func TestSession_InterruptAfterCompletionIsNoop(t *testing.T) {
	stream := newFakeStream(0, exampleEvents()...)
	service := NewMockService(DownloadHandle{ID: "dl-4"}, stream)
	interrupts := make(chan os.Signal, 1)
	renderer := NewMockRenderer()

	outcome, err := NewSession(SessionConfig{
		Service:    service,
		Renderer:   renderer,
		Interrupts: interrupts,
	}).Run(context.Background(), DownloadRequest{ModelName: "org/model"})
	require.NoError(t, err)

	interrupts <- os.Interrupt
	time.Sleep(20 * time.Millisecond)

	assert.Equal(t, OutcomeCompleted, outcome.Kind)
	assert.Empty(t, service.GetCancelIDs())
	assert.Equal(t, 0, renderer.GetCancelRequested())
}

func TestSession_TimedOutMakesNoFurtherCalls(t *testing.T) {
	stream := newFakeStream(1)
	service := NewMockService(DownloadHandle{ID: "dl-5"}, stream)
	renderer := NewMockRenderer()

	outcome, err := NewSession(SessionConfig{
		Service:    service,
		Renderer:   renderer,
		Interrupts: make(chan os.Signal, 1),
		Consumer:   []ConsumerOption{WithWaitTimeout(5 * time.Millisecond)},
	}).Run(context.Background(), DownloadRequest{ModelName: "org/model"})

	require.NoError(t, err)
	assert.Equal(t, OutcomeTimedOut, outcome.Kind)
	startCalls, openCalls, cancelCalls := service.GetCallCounts()
	assert.Equal(t, []int{1, 1, 0}, []int{startCalls, openCalls, cancelCalls})
	assert.Equal(t, 1, stream.GetCloseCalls())
	outcomes := renderer.GetOutcomeCalls()
	require.Len(t, outcomes, 1)
	assert.Equal(t, OutcomeTimedOut, outcomes[0].Kind)
}

func TestSession_WithoutInterrupts(t *testing.T) {
	stream := newFakeStream(0, exampleEvents()...)
	service := NewMockService(DownloadHandle{ID: "dl-6"}, stream)

	outcome, err := NewSession(SessionConfig{Service: service, Renderer: NewMockRenderer()}).
		Run(context.Background(), DownloadRequest{ModelName: "org/model"})

	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, outcome.Kind)
}

func TestSession_StartFailureClassified(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected ErrorType
	}{
		{"deadline", fmt.Errorf("start: %w", context.DeadlineExceeded), ErrorTimeout},
		{"rejected", fmt.Errorf("server said no: %w", ErrInvalidRequest), ErrorInvalidRequest},
		{"connection refused", &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}, ErrorNetworkFailure},
		{"anything else", errors.New("boom"), ErrorStart},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := NewMockService(DownloadHandle{}, nil)
			service.startErr = tt.err

			_, err := NewSession(SessionConfig{Service: service, Renderer: NewMockRenderer()}).
				Run(context.Background(), DownloadRequest{ModelName: "org/model"})

			require.Error(t, err)
			assert.True(t, IsDownloadError(err, tt.expected), "got %v", err)
			var de *DownloadError
			require.True(t, errors.As(err, &de))
			assert.Equal(t, "start", de.Context["phase"])
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestSession_OpenStreamFailureClassified(t *testing.T) {
	service := NewMockService(DownloadHandle{ID: "dl-7"}, nil)
	service.openErr = fmt.Errorf("open progress stream: %w", context.DeadlineExceeded)

	_, err := NewSession(SessionConfig{Service: service, Renderer: NewMockRenderer()}).
		Run(context.Background(), DownloadRequest{ModelName: "org/model"})

	require.Error(t, err)
	assert.True(t, IsDownloadError(err, ErrorTimeout))
}

func TestSession_EmptyDownloadID(t *testing.T) {
	service := NewMockService(DownloadHandle{}, newFakeStream(0))

	_, err := NewSession(SessionConfig{Service: service, Renderer: NewMockRenderer()}).
		Run(context.Background(), DownloadRequest{ModelName: "org/model"})

	require.Error(t, err)
	assert.True(t, IsDownloadError(err, ErrorStart))
	_, openCalls, _ := service.GetCallCounts()
	assert.Equal(t, 0, openCalls)
}

func TestSession_CancelRequestFailureDoesNotChangeOutcome(t *testing.T) {
	stream := newFakeStream(4, event(EventStarted, StatusStarted, pct(0)))
	service := NewMockService(DownloadHandle{ID: "dl-8"}, stream)
	service.cancelErr = errors.New("server unreachable")
	service.onCancel = func(string) {
		stream.ch <- event(EventCompleted, StatusCompleted, pct(100))
	}
	interrupts := make(chan os.Signal, 1)
	renderer := NewMockRenderer()
	renderer.onProgress = func(ProgressSnapshot) {
		select {
		case interrupts <- os.Interrupt:
		default:
		}
	}

	outcome, err := NewSession(SessionConfig{
		Service:    service,
		Renderer:   renderer,
		Logger:     zaptest.NewLogger(t),
		Interrupts: interrupts,
		Consumer:   []ConsumerOption{WithWaitTimeout(time.Second)},
	}).Run(context.Background(), DownloadRequest{ModelName: "org/model"})

	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, outcome.Kind)
	assert.Equal(t, []string{"dl-8"}, service.GetCancelIDs())
}
