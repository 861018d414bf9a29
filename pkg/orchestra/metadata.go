package orchestra

import (
	"sync"

	"github.com/timehop/maestro/pkg/flow"
)

// metadataStore maps raw commands to their metadata: a mapping from command
// identity to its bookkeeping, mutated only by the Flow Driver goroutine
// but guarded anyway since callbacks may read it concurrently with a
// network proxy or script-engine timer touching unrelated state.
type metadataStore struct {
	mu   sync.Mutex
	data map[flow.Command]*flow.CommandMetadata
}

func newMetadataStore() *metadataStore {
	return &metadataStore{data: map[flow.Command]*flow.CommandMetadata{}}
}

func (s *metadataStore) get(cmd flow.Command) *flow.CommandMetadata {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.data[cmd]; ok {
		return m
	}
	m := &flow.CommandMetadata{}
	s.data[cmd] = m
	return m
}

// reset zeroes a command's run counter and clears its log messages. execRepeat
// calls it, through resetComposite, on the Repeat and its nested
// sub-commands once before the first iteration.
func (s *metadataStore) reset(cmd flow.Command) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.data[cmd]; ok {
		m.NumberOfRuns = 0
		m.LogMessages = nil
	}
}

func (s *metadataStore) appendLog(cmd flow.Command, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.data[cmd]
	if m == nil {
		m = &flow.CommandMetadata{}
		s.data[cmd] = m
	}
	m.LogMessages = append(m.LogMessages, message)
}

func (s *metadataStore) incrementRuns(cmd flow.Command) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.data[cmd]
	if m == nil {
		m = &flow.CommandMetadata{}
		s.data[cmd] = m
	}
	m.NumberOfRuns++
}

func (s *metadataStore) setEvaluated(cmd flow.Command, evaluated flow.Command) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.data[cmd]
	if m == nil {
		m = &flow.CommandMetadata{}
		s.data[cmd] = m
	}
	m.EvaluatedCommand = evaluated
	// A composite's evaluated clone shares the raw command's record, so the
	// run counts execRepeat keeps on the clone land on the raw command.
	if _, ok := evaluated.(flow.CompositeCommand); ok {
		s.data[evaluated] = m
	}
}

// resetComposite walks cmd's nested sub-commands (Repeat, RunFlow) and
// resets each, matching OnCommandReset's recursive walk.
func (s *metadataStore) resetComposite(cmd flow.Command) {
	s.reset(cmd)
	if composite, ok := cmd.(flow.CompositeCommand); ok {
		for _, sub := range composite.SubCommands() {
			s.resetComposite(sub)
		}
	}
}
