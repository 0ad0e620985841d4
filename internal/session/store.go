package session

import (
	"strings"
	"sync"

	"github.com/tablegate/tablegate/internal/executor"
	"github.com/tablegate/tablegate/internal/gate"
)

// State is the single most recent query and result for one conversation.
// It is overwritten on every fresh query and never merged.
type State struct {
	Query  gate.ValidatedQuery
	Result executor.ResultSet
}

// Store keeps one State per conversation, last-write-wins. Keying per
// session keeps concurrent users from reading each other's results.
type Store struct {
	mu     sync.RWMutex
	states map[string]State
}

func NewStore() *Store {
	return &Store{states: make(map[string]State)}
}

func (s *Store) Get(sessionID string) (State, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.states[sessionID]
	return state, ok
}

func (s *Store) Put(sessionID string, q gate.ValidatedQuery, rs executor.ResultSet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[sessionID] = State{Query: q, Result: rs}
}

var followUpPhrases = []string{
	"explain",
	"summarize",
	"that result",
	"those rows",
	"the rows",
	"previous result",
}

// IsFollowUp reports whether the utterance refers to a previously returned
// result set rather than asking for new data.
func IsFollowUp(utterance string) bool {
	lowered := strings.ToLower(utterance)
	for _, phrase := range followUpPhrases {
		if strings.Contains(lowered, phrase) {
			return true
		}
	}
	return false
}
