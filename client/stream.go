package client

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	"go.uber.org/zap"

	"lmo-cli/downloader"
)

// maxFrameSize bounds a single server-sent event line.
const maxFrameSize = 1 << 20

// eventStream reads server-sent events in a goroutine and delivers them,
// decoded, on a channel.
type eventStream struct {
	events    chan downloader.StreamItem
	body      io.ReadCloser
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
	logger    *zap.Logger
}

func newEventStream(ctx context.Context, cancel context.CancelFunc, body io.ReadCloser, logger *zap.Logger) *eventStream {
	s := &eventStream{
		events: make(chan downloader.StreamItem),
		body:   body,
		cancel: cancel,
		done:   make(chan struct{}),
		logger: logger,
	}
	go s.run(ctx)
	return s
}

// Events implements downloader.EventStream.
func (s *eventStream) Events() <-chan downloader.StreamItem {
	return s.events
}

// Close stops the reader and releases the connection. Safe to call more
// than once.
func (s *eventStream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.cancel()
		err = s.body.Close()
		<-s.done
	})
	return err
}

func (s *eventStream) run(ctx context.Context) {
	defer close(s.done)
	defer close(s.events)

	scanner := bufio.NewScanner(s.body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxFrameSize)

	var data []string
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if len(data) == 0 {
				continue
			}
			frame := strings.Join(data, "\n")
			data = data[:0]
			if !s.dispatch(ctx, frame) {
				return
			}
		case strings.HasPrefix(line, ":"):
			// keep-alive comment
		case strings.HasPrefix(line, "data:"):
			data = append(data, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		default:
			// event:, id: and retry: fields carry nothing the consumer needs
		}
	}

	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		s.send(ctx, downloader.StreamItem{Err: fmt.Errorf("read progress stream: %w", err)})
		return
	}
	if len(data) > 0 {
		s.logger.Debug("discarding incomplete event at end of stream", zap.Int("lines", len(data)))
	}
}

// dispatch decodes one frame and hands it to the consumer. It returns
// false when the stream must stop.
func (s *eventStream) dispatch(ctx context.Context, frame string) bool {
	var ev downloader.DownloadEvent
	if err := json.Unmarshal([]byte(frame), &ev); err != nil {
		s.send(ctx, downloader.StreamItem{Err: fmt.Errorf("decode progress event: %w", err)})
		return false
	}
	return s.send(ctx, downloader.StreamItem{Event: ev})
}

func (s *eventStream) send(ctx context.Context, item downloader.StreamItem) bool {
	select {
	case s.events <- item:
		return true
	case <-ctx.Done():
		return false
	}
}
