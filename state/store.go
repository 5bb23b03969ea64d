package state

import (
	"context"
	"sort"
	"sync"

	"fairplay/fairness"
	"fairplay/replay"
	"fairplay/verdict"
)

// ==============================================================================
// IN-MEMORY STORE (Single Source of Truth for one process)
// ==============================================================================
//
// NOTE:
// Store hands out deep copies. Callers may mutate what they load without
// touching stored state; only Save* publishes changes.
//
// ==============================================================================

type Store struct {
	mu sync.RWMutex

	sessions map[string]*fairness.Session
	records  map[string]*replay.GameRecord
}

func NewStore() *Store {
	return &Store{
		sessions: make(map[string]*fairness.Session),
		records:  make(map[string]*replay.GameRecord),
	}
}

// ==============================================================================
// SESSIONS
// ==============================================================================

func copySession(s *fairness.Session) *fairness.Session {
	out := *s
	out.PurposeLog = append([]fairness.Entry(nil), s.PurposeLog...)
	if s.EndedAt != nil {
		ended := *s.EndedAt
		out.EndedAt = &ended
	}
	return &out
}

func (st *Store) CreateSession(_ context.Context, s *fairness.Session) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	if _, exists := st.sessions[s.ID]; exists {
		return verdict.New(verdict.KindStructuralError, "session %s already exists", s.ID)
	}
	st.sessions[s.ID] = copySession(s)
	return nil
}

func (st *Store) LoadSession(_ context.Context, id string) (*fairness.Session, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()

	s, ok := st.sessions[id]
	if !ok {
		return nil, verdict.New(verdict.KindSessionNotFound, "session %s", id)
	}
	return copySession(s), nil
}

// UpdateSession runs fn on a copy of the session under the store lock and
// publishes the copy only when fn succeeds.
func (st *Store) UpdateSession(_ context.Context, id string, fn func(*fairness.Session) error) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	cur, ok := st.sessions[id]
	if !ok {
		return verdict.New(verdict.KindSessionNotFound, "session %s", id)
	}
	next := copySession(cur)
	if err := fn(next); err != nil {
		return err
	}
	next.ID = id
	st.sessions[id] = copySession(next)
	return nil
}

// ==============================================================================
// GAME RECORDS
// ==============================================================================

func copyRecord(r *replay.GameRecord) *replay.GameRecord {
	out := *r
	out.Submission = append([]byte(nil), r.Submission...)
	if r.Session != nil {
		session := *r.Session
		session.PurposeLog = append([]fairness.Entry(nil), r.Session.PurposeLog...)
		out.Session = &session
	}
	if r.Verdict.Step != nil {
		step := *r.Verdict.Step
		out.Verdict.Step = &step
	}
	if r.Verdict.CalculatedScore != nil {
		score := *r.Verdict.CalculatedScore
		out.Verdict.CalculatedScore = &score
	}
	return &out
}

func (st *Store) SaveRecord(_ context.Context, r *replay.GameRecord) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	st.records[r.ID] = copyRecord(r)
	return nil
}

func (st *Store) LoadRecord(_ context.Context, id string) (*replay.GameRecord, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()

	r, ok := st.records[id]
	if !ok {
		return nil, replay.ErrRecordNotFound
	}
	return copyRecord(r), nil
}

func (st *Store) ListRecords(_ context.Context, game string, limit int) ([]*replay.GameRecord, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()

	out := make([]*replay.GameRecord, 0, len(st.records))
	for _, r := range st.records {
		if game == "" || r.Game == game {
			out = append(out, copyRecord(r))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
