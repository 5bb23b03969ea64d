// Package replay recomputes a claimed score from a recorded action and
// random history.
//
// Replay is generic over a game's Rules. It rejects malformed submissions
// before doing any work, checks every random draw bit-exact against its seed,
// checks every action against the legal set at its ply, and only then
// compares the recomputed score with the claim. Actions and draws are consumed
// strictly in recorded order.
package replay

import (
	"encoding/json"
	"errors"
	"math"
	"reflect"

	"fairplay/fairness"
	"fairplay/verdict"
)

// Submission is the unit a validator checks. I is the game's initial-state
// shape and A its action shape.
type Submission[I, A any] struct {
	// SessionID names the server session the random history was drawn in.
	SessionID string `json:"sessionId,omitempty"`
	// Session is the revealed session loaded by the caller. It is never
	// decoded from the submission itself.
	Session *fairness.Reveal `json:"-"`

	Initial      *I              `json:"initialState,omitempty"`
	Actions      []A             `json:"actionHistory"`
	Draws        []Draw          `json:"randomHistory"`
	ClaimedScore *int64          `json:"claimedScore"`
	ClaimedFinal json.RawMessage `json:"claimedFinalState,omitempty"`
}

// Rules specialises Replay for one game.
type Rules[I, S, A any] interface {
	// Shape rejects malformed submissions before replay begins.
	Shape(sub *Submission[I, A]) error
	// Start builds the initial state, consuming any opening draws.
	Start(initial *I, draws *DrawLog) (S, error)
	// Step checks action against the legal set for state, consumes the draws
	// it needs and returns the next state.
	Step(state S, action A, draws *DrawLog) (S, error)
	// Finish rejects states a submission may not end in.
	Finish(state S) error
	Score(state S) int64
	// Snapshot is compared against the claimed final state.
	Snapshot(state S) any
	// Tolerance is the allowed relative score deviation; zero means exact.
	Tolerance() float64
}

// Replay validates sub under rules and returns the recomputed score.
func Replay[I, S, A any](rules Rules[I, S, A], sub Submission[I, A]) (int64, error) {
	if sub.ClaimedScore == nil {
		return 0, verdict.New(verdict.KindStructuralError, "claimedScore is required")
	}
	if err := checkDraws(sub.Draws); err != nil {
		return 0, err
	}
	if err := rules.Shape(&sub); err != nil {
		return 0, structural(err)
	}
	secret, err := bindSession(sub.SessionID, sub.Draws, sub.Session)
	if err != nil {
		return 0, err
	}

	draws := newDrawLog(sub.Draws, secret)
	state, err := rules.Start(sub.Initial, draws)
	if err != nil {
		return 0, classify(err, -1)
	}

	for i, action := range sub.Actions {
		state, err = rules.Step(state, action, draws)
		if err != nil {
			return 0, classify(err, i)
		}
	}

	if n := draws.Remaining(); n > 0 {
		return 0, verdict.New(verdict.KindSeedMismatch, "random history has %d draws the replay never used", n)
	}
	if err := rules.Finish(state); err != nil {
		return 0, classify(err, len(sub.Actions))
	}

	score := rules.Score(state)

	if len(sub.ClaimedFinal) > 0 {
		if err := compareFinal(rules.Snapshot(state), sub.ClaimedFinal); err != nil {
			return 0, err
		}
	}

	claimed := *sub.ClaimedScore
	if !withinTolerance(claimed, score, rules.Tolerance()) {
		return 0, verdict.New(verdict.KindScoreMismatch, "claimed %d, replay computed %d", claimed, score)
	}
	return score, nil
}

// bindSession ties a random history to the session that issued it. The
// history must be the session's purpose log, entry for entry: same labels in
// the same order, same blocks and seeds. A history with draws but no session
// is rejected. The returned secret is the session's, never the submitter's.
func bindSession(sessionID string, draws []Draw, session *fairness.Reveal) (string, error) {
	if session == nil {
		if len(draws) > 0 {
			return "", verdict.New(verdict.KindStructuralError, "random history is not bound to a revealed session")
		}
		return "", nil
	}
	if sessionID != "" && sessionID != session.SessionID {
		return "", verdict.New(verdict.KindStructuralError, "submission names session %s, checked against %s", sessionID, session.SessionID)
	}
	if err := fairness.VerifyReveal(session.Secret, session.SecretHash); err != nil {
		return "", err
	}

	issued := session.PurposeLog
	if len(issued) != len(draws) {
		return "", verdict.New(verdict.KindSeedMismatch, "session %s issued %d draws, random history has %d", session.SessionID, len(issued), len(draws))
	}
	for i, d := range draws {
		e := issued[i]
		if d.Label != e.Label || d.Block != e.Block || d.Seed != e.Seed {
			return "", verdict.New(verdict.KindSeedMismatch, "draw %d (%s) is not the draw session %s issued as %q", i, d.Label, session.SessionID, e.Label)
		}
	}
	return session.Secret, nil
}

func withinTolerance(claimed, calculated int64, tol float64) bool {
	if tol == 0 {
		return claimed == calculated
	}
	diff := math.Abs(float64(claimed - calculated))
	return diff <= tol*math.Abs(float64(calculated))
}

func compareFinal(snapshot any, claimed json.RawMessage) error {
	raw, err := json.Marshal(snapshot)
	if err != nil {
		return verdict.Wrap(verdict.KindStateMismatch, err, "encode final state")
	}
	var want, got any
	if err := json.Unmarshal(raw, &want); err != nil {
		return verdict.Wrap(verdict.KindStateMismatch, err, "decode final state")
	}
	if err := json.Unmarshal(claimed, &got); err != nil {
		return verdict.Wrap(verdict.KindStructuralError, err, "claimedFinalState")
	}
	if !reflect.DeepEqual(want, got) {
		return verdict.New(verdict.KindStateMismatch, "claimed final state %s, replay reached %s", string(claimed), string(raw))
	}
	return nil
}

// classify attaches the step to a rules error; unclassified errors are
// illegal actions.
func classify(err error, step int) error {
	var e *verdict.Error
	if errors.As(err, &e) {
		out := *e
		if out.Step < 0 {
			out.Step = step
		}
		return &out
	}
	return &verdict.Error{Kind: verdict.KindIllegalAction, Detail: err.Error(), Step: step}
}

func structural(err error) error {
	var e *verdict.Error
	if errors.As(err, &e) {
		return err
	}
	return verdict.Wrap(verdict.KindStructuralError, err, "")
}

func illegal(format string, args ...any) error {
	return verdict.New(verdict.KindIllegalAction, format, args...)
}
