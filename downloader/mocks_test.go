package downloader

import (
	"context"
	"sync"
)

// MockRenderer is a mock implementation of Renderer for testing
type MockRenderer struct {
	mu              sync.RWMutex
	progressCalls   []ProgressSnapshot
	announceCalls   []DownloadEvent
	fileCalls       []ProgressSnapshot
	waitingCalls    []WaitingCall
	cancelRequested int
	outcomeCalls    []Outcome

	// onWaiting runs after a Waiting call is recorded
	onWaiting func(timeouts, budget int)
	// onProgress runs after a Progress call is recorded
	onProgress func(snapshot ProgressSnapshot)
}

type WaitingCall struct {
	Timeouts int
	Budget   int
}

func NewMockRenderer() *MockRenderer {
	return &MockRenderer{}
}

func (m *MockRenderer) Progress(snapshot ProgressSnapshot) {
	m.mu.Lock()
	m.progressCalls = append(m.progressCalls, snapshot)
	hook := m.onProgress
	m.mu.Unlock()
	if hook != nil {
		hook(snapshot)
	}
}

func (m *MockRenderer) Announce(event DownloadEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.announceCalls = append(m.announceCalls, event)
}

func (m *MockRenderer) FileCompleted(snapshot ProgressSnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fileCalls = append(m.fileCalls, snapshot)
}

func (m *MockRenderer) Waiting(timeouts, budget int) {
	m.mu.Lock()
	m.waitingCalls = append(m.waitingCalls, WaitingCall{Timeouts: timeouts, Budget: budget})
	hook := m.onWaiting
	m.mu.Unlock()
	if hook != nil {
		hook(timeouts, budget)
	}
}

func (m *MockRenderer) CancelRequested() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancelRequested++
}

func (m *MockRenderer) Outcome(outcome Outcome) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomeCalls = append(m.outcomeCalls, outcome)
}

func (m *MockRenderer) GetProgressCalls() []ProgressSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	calls := make([]ProgressSnapshot, len(m.progressCalls))
	copy(calls, m.progressCalls)
	return calls
}

func (m *MockRenderer) GetAnnouncedStatuses() []DownloadStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	statuses := make([]DownloadStatus, 0, len(m.announceCalls))
	for _, ev := range m.announceCalls {
		statuses = append(statuses, ev.State.Status)
	}
	return statuses
}

func (m *MockRenderer) GetFileCalls() []ProgressSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	calls := make([]ProgressSnapshot, len(m.fileCalls))
	copy(calls, m.fileCalls)
	return calls
}

func (m *MockRenderer) GetWaitingCalls() []WaitingCall {
	m.mu.RLock()
	defer m.mu.RUnlock()
	calls := make([]WaitingCall, len(m.waitingCalls))
	copy(calls, m.waitingCalls)
	return calls
}

func (m *MockRenderer) GetCancelRequested() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cancelRequested
}

func (m *MockRenderer) GetOutcomeCalls() []Outcome {
	m.mu.RLock()
	defer m.mu.RUnlock()
	calls := make([]Outcome, len(m.outcomeCalls))
	copy(calls, m.outcomeCalls)
	return calls
}

// fakeStream is an EventStream backed by a buffered channel
type fakeStream struct {
	ch         chan StreamItem
	mu         sync.Mutex
	closeCalls int
}

func newFakeStream(capacity int, items ...StreamItem) *fakeStream {
	if capacity < len(items) {
		capacity = len(items)
	}
	s := &fakeStream{ch: make(chan StreamItem, capacity)}
	for _, it := range items {
		s.ch <- it
	}
	return s
}

func (s *fakeStream) Events() <-chan StreamItem { return s.ch }

func (s *fakeStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeCalls++
	return nil
}

func (s *fakeStream) GetCloseCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeCalls
}

// MockService is a mock implementation of DownloadService for testing
type MockService struct {
	mu         sync.RWMutex
	handle     DownloadHandle
	stream     *fakeStream
	startErr   error
	openErr    error
	cancelErr  error
	startCalls []DownloadRequest
	openCalls  []string
	cancelIDs  []string

	// onCancel runs after a Cancel call is recorded
	onCancel func(downloadID string)
}

func NewMockService(handle DownloadHandle, stream *fakeStream) *MockService {
	return &MockService{handle: handle, stream: stream}
}

func (m *MockService) Start(ctx context.Context, req DownloadRequest) (DownloadHandle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.startCalls = append(m.startCalls, req)
	if m.startErr != nil {
		return DownloadHandle{}, m.startErr
	}
	return m.handle, nil
}

func (m *MockService) OpenProgressStream(ctx context.Context, downloadID string) (EventStream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.openCalls = append(m.openCalls, downloadID)
	if m.openErr != nil {
		return nil, m.openErr
	}
	return m.stream, nil
}

func (m *MockService) Cancel(ctx context.Context, downloadID string) error {
	m.mu.Lock()
	m.cancelIDs = append(m.cancelIDs, downloadID)
	hook := m.onCancel
	err := m.cancelErr
	m.mu.Unlock()
	if hook != nil {
		hook(downloadID)
	}
	return err
}

func (m *MockService) GetCallCounts() (start, open, cancel int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.startCalls), len(m.openCalls), len(m.cancelIDs)
}

func (m *MockService) GetCancelIDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, len(m.cancelIDs))
	copy(ids, m.cancelIDs)
	return ids
}

func event(eventType EventType, status DownloadStatus, progress ProgressSnapshot) StreamItem {
	return StreamItem{Event: DownloadEvent{
		EventType: eventType,
		State:     DownloadState{Status: status, Progress: progress},
	}}
}

func pct(p float64) ProgressSnapshot {
	return ProgressSnapshot{Percentage: p}
}

func strPtr(s string) *string { return &s }

func floatPtr(f float64) *float64 { return &f }
