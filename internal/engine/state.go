package engine

import (
	"context"
	"encoding/json"
	"sync"

	"clipbot/internal/storage"
	logx "clipbot/pkg/logx"
)

// Mode is a subscriber's selected query strategy.
type Mode string

const (
	ModeNone     Mode = ""
	ModeTrending Mode = "trending"
	ModeFollows  Mode = "follows"
	ModeCreator  Mode = "creator"
)

// State is one subscriber's distribution state. The router is the sole
// writer; the distribution loop only reads.
type State struct {
	Mode    Mode   `json:"mode,omitempty"`
	Active  bool   `json:"active,omitempty"`
	Creator string `json:"creator,omitempty"`
}

// StateStore maps chat ids to subscriber state, mirrored to storage so
// active modes survive a restart.
type StateStore struct {
	store storage.Store // may be nil
	log   logx.Logger

	mu     sync.RWMutex
	states map[int64]State
}

func NewStateStore(store storage.Store, log logx.Logger) *StateStore {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &StateStore{
		store:  store,
		log:    log,
		states: map[int64]State{},
	}
}

func (s *StateStore) Hydrate(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	blobs, err := s.store.LoadStates(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, blob := range blobs {
		var st State
		if err := json.Unmarshal(blob, &st); err != nil {
			s.log.Warn("subscriber state unreadable; skipping", logx.Int64("chat_id", id), logx.Err(err))
			continue
		}
		s.states[id] = st
	}
	return nil
}

// Set overwrites the subscriber's state.
func (s *StateStore) Set(ctx context.Context, chatID int64, st State) {
	s.mu.Lock()
	s.states[chatID] = st
	s.mu.Unlock()
	s.persist(ctx, chatID, st)
}

// Clear resets the subscriber to the empty default (stop, first contact).
func (s *StateStore) Clear(ctx context.Context, chatID int64) {
	s.mu.Lock()
	delete(s.states, chatID)
	s.mu.Unlock()
	if s.store != nil {
		if err := s.store.DeleteState(ctx, chatID); err != nil {
			s.log.Warn("subscriber state delete failed", logx.Int64("chat_id", chatID), logx.Err(err))
		}
	}
}

func (s *StateStore) Get(chatID int64) State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.states[chatID]
}

// Active is a fresh read used for mid-batch cancellation checks.
func (s *StateStore) Active(chatID int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.states[chatID].Active
}

// Snapshot copies the current states for one loop cycle.
func (s *StateStore) Snapshot() map[int64]State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[int64]State, len(s.states))
	for id, st := range s.states {
		out[id] = st
	}
	return out
}

func (s *StateStore) persist(ctx context.Context, chatID int64, st State) {
	if s.store == nil {
		return
	}
	blob, err := json.Marshal(st)
	if err != nil {
		return
	}
	if err := s.store.PutState(ctx, chatID, blob); err != nil {
		s.log.Warn("subscriber state persist failed", logx.Int64("chat_id", chatID), logx.Err(err))
	}
}
