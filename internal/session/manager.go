// Package session tracks the live stream processors by stream id and owns
// their lifecycle.
package session

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/secret-sahil/vehicle-plate-detection-ai/internal/pipeline"
)

var (
	ErrSessionExists   = errors.New("session already running for stream")
	ErrSessionNotFound = errors.New("session not found")
)

// ProcessorFactory builds a processor for a new session. The manager stays
// ignorant of model services, sinks and capture wiring.
type ProcessorFactory func(sourceURL, streamID string) *pipeline.StreamProcessor

type Manager struct {
	logger       *slog.Logger
	newProcessor ProcessorFactory

	mu         sync.Mutex
	processors map[string]*pipeline.StreamProcessor
}

func NewManager(factory ProcessorFactory, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		logger:       logger,
		newProcessor: factory,
		processors:   make(map[string]*pipeline.StreamProcessor),
	}
}

// Start creates and launches a session for the source. An empty streamID gets
// a generated one; a streamID whose session is still running is rejected. A
// stopped session under the same id is replaced.
func (m *Manager) Start(sourceURL, streamID string) (string, error) {
	if streamID == "" {
		streamID = uuid.New().String()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.processors[streamID]; ok && existing.IsRunning() {
		return "", ErrSessionExists
	}

	proc := m.newProcessor(sourceURL, streamID)
	m.processors[streamID] = proc
	proc.Start()

	m.logger.Info("session started", "stream_id", streamID, "source", sourceURL)
	return streamID, nil
}

// Stop shuts down the session and removes it from the registry.
func (m *Manager) Stop(streamID string) error {
	m.mu.Lock()
	proc, ok := m.processors[streamID]
	if ok {
		delete(m.processors, streamID)
	}
	m.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}

	proc.Stop()
	m.logger.Info("session stopped", "stream_id", streamID)
	return nil
}

func (m *Manager) Get(streamID string) (*pipeline.StreamProcessor, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	proc, ok := m.processors[streamID]
	return proc, ok
}

func (m *Manager) IsRunning(streamID string) bool {
	proc, ok := m.Get(streamID)
	return ok && proc.IsRunning()
}

// StopAll stops every session. Used on server shutdown so in-flight vehicles
// are finalized before the process exits.
func (m *Manager) StopAll() {
	m.mu.Lock()
	procs := make([]*pipeline.StreamProcessor, 0, len(m.processors))
	for id, proc := range m.processors {
		procs = append(procs, proc)
		delete(m.processors, id)
	}
	m.mu.Unlock()

	for _, proc := range procs {
		proc.Stop()
	}
}
