// Package fairness runs the commit-reveal seed protocol.
//
// A session commits to sha256(secret) up front, derives one seed per logical
// draw from the secret, an external block record and a purpose label, and
// reveals the secret at the end so anyone can recompute every seed.
package fairness

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"fairplay/config"
	"fairplay/crypto"
	"fairplay/entropy"
	"fairplay/verdict"
)

// Protocol manages sessions. Derive calls for one session are serialized so
// label reuse is always detected: within a process by a per-session lock,
// across processes by the store's atomic UpdateSession. Separate sessions
// run in parallel.
type Protocol struct {
	source   entropy.Source
	store    SessionStore
	notifier Notifier
	now      func() time.Time

	mu    sync.Mutex
	locks map[string]*sessionLock
}

type sessionLock struct {
	mu   sync.Mutex
	refs int
}

// Option configures a Protocol.
type Option func(*Protocol)

// WithNotifier registers n for derive and reveal events.
func WithNotifier(n Notifier) Option {
	return func(p *Protocol) { p.notifier = n }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(p *Protocol) { p.now = now }
}

// NewProtocol builds a protocol over the given entropy source and store.
func NewProtocol(source entropy.Source, store SessionStore, opts ...Option) *Protocol {
	p := &Protocol{
		source: source,
		store:  store,
		now:    time.Now,
		locks:  make(map[string]*sessionLock),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Protocol) lock(id string) func() {
	p.mu.Lock()
	l, ok := p.locks[id]
	if !ok {
		l = &sessionLock{}
		p.locks[id] = l
	}
	l.refs++
	p.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		p.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(p.locks, id)
		}
		p.mu.Unlock()
	}
}

// StartSession generates and commits a new secret and fetches the block
// record the session starts from.
func (p *Protocol) StartSession(ctx context.Context) (Commitment, entropy.BlockRecord, error) {
	block, err := p.source.Fetch(ctx, nil)
	if err != nil {
		return Commitment{}, entropy.BlockRecord{}, classifyEntropy(err)
	}

	secret, hash, err := crypto.GenerateServerSeed()
	if err != nil {
		return Commitment{}, entropy.BlockRecord{}, err
	}

	s := &Session{
		ID:         uuid.NewString(),
		Secret:     secret,
		SecretHash: hash,
		Block:      block,
		PurposeLog: []Entry{},
		CreatedAt:  p.now().UTC(),
	}
	if err := p.store.CreateSession(ctx, s); err != nil {
		return Commitment{}, entropy.BlockRecord{}, err
	}

	log.WithFields(log.Fields{
		"session":    s.ID,
		"secretHash": hash,
		"block":      block.Height,
	}).Info("Session started")

	return s.Commitment(), block, nil
}

// Derive returns the seed for label within the session. When block is nil
// the latest block is fetched from the entropy source; a fetch failure is
// returned as KindEntropySourceUnavailable and never retried here.
func (p *Protocol) Derive(ctx context.Context, sessionID, label string, block *entropy.BlockRecord) (Entry, error) {
	if label == "" || len(label) > config.MaxLabelLength {
		return Entry{}, verdict.New(verdict.KindStructuralError, "purpose label must be 1-%d bytes", config.MaxLabelLength)
	}

	unlock := p.lock(sessionID)
	defer unlock()

	// Cheap early rejection; the authoritative checks run again inside the
	// atomic update below.
	s, err := p.store.LoadSession(ctx, sessionID)
	if err != nil {
		return Entry{}, err
	}
	if err := canDerive(s, label); err != nil {
		return Entry{}, err
	}

	var rec entropy.BlockRecord
	if block != nil {
		if err := block.Validate(); err != nil {
			return Entry{}, verdict.Wrap(verdict.KindStructuralError, err, "block record")
		}
		rec = *block
	} else {
		rec, err = p.source.Fetch(ctx, nil)
		if err != nil {
			return Entry{}, classifyEntropy(err)
		}
	}

	var e Entry
	err = p.store.UpdateSession(ctx, sessionID, func(s *Session) error {
		if err := canDerive(s, label); err != nil {
			return err
		}
		e = Entry{
			Label:     label,
			Block:     rec,
			Seed:      crypto.DeriveSeed(s.Secret, rec, label),
			DerivedAt: p.now().UTC(),
		}
		s.PurposeLog = append(s.PurposeLog, e)
		return nil
	})
	if err != nil {
		return Entry{}, err
	}

	log.WithFields(log.Fields{
		"session": sessionID,
		"label":   label,
		"block":   rec.Hash,
		"height":  rec.Height,
		"ts":      rec.TimestampMillis,
		"seed":    e.Seed,
	}).Info("Seed derived")

	if p.notifier != nil {
		p.notifier.Derived(sessionID, e)
	}
	return e, nil
}

// EndSession reveals the secret. Ending an ended session returns the same
// reveal again.
func (p *Protocol) EndSession(ctx context.Context, sessionID string) (Reveal, error) {
	unlock := p.lock(sessionID)
	defer unlock()

	var (
		s        *Session
		revealed bool
	)
	err := p.store.UpdateSession(ctx, sessionID, func(cur *Session) error {
		revealed = false
		if !cur.Ended() {
			ended := p.now().UTC()
			cur.EndedAt = &ended
			revealed = true
		}
		s = cur
		return nil
	})
	if err != nil {
		return Reveal{}, err
	}
	if revealed {
		log.WithFields(log.Fields{
			"session": sessionID,
			"draws":   len(s.PurposeLog),
		}).Info("Session revealed")
	}

	r := Reveal{
		SessionID:  s.ID,
		Secret:     s.Secret,
		SecretHash: s.SecretHash,
		PurposeLog: append([]Entry(nil), s.PurposeLog...),
	}

	// A stored secret that no longer matches its commitment is data
	// corruption or tampering; refuse to publish it as valid.
	if err := VerifyReveal(r.Secret, r.SecretHash); err != nil {
		log.WithField("session", sessionID).Error("Stored secret does not match commitment")
		return Reveal{}, err
	}

	if p.notifier != nil {
		p.notifier.Revealed(r)
	}
	return r, nil
}

// Commitment returns the public commitment of a session.
func (p *Protocol) Commitment(ctx context.Context, sessionID string) (Commitment, error) {
	s, err := p.store.LoadSession(ctx, sessionID)
	if err != nil {
		return Commitment{}, err
	}
	return s.Commitment(), nil
}

// VerifyReveal checks sha256(secret) == secretHash.
func VerifyReveal(secret, secretHash string) error {
	if !crypto.VerifySeed(secret, secretHash) {
		return verdict.New(verdict.KindCommitmentMismatch, "secret does not hash to commitment %s", secretHash)
	}
	return nil
}

// VerifyLog recomputes every seed in a revealed purpose log.
func VerifyLog(r Reveal) error {
	if err := VerifyReveal(r.Secret, r.SecretHash); err != nil {
		return err
	}
	seen := make(map[string]bool, len(r.PurposeLog))
	for i, e := range r.PurposeLog {
		if seen[e.Label] {
			return verdict.AtStep(verdict.KindDuplicateLabel, i, "label %q reused", e.Label)
		}
		seen[e.Label] = true
		if got := crypto.DeriveSeed(r.Secret, e.Block, e.Label); got != e.Seed {
			return verdict.AtStep(verdict.KindSeedMismatch, i, "label %q: recomputed seed %s, published %s", e.Label, got, e.Seed)
		}
	}
	return nil
}

func canDerive(s *Session, label string) error {
	if s.Ended() {
		return verdict.New(verdict.KindSessionClosed, "session %s already revealed", s.ID)
	}
	if s.HasLabel(label) {
		return verdict.New(verdict.KindDuplicateLabel, "label %q already used in session %s", label, s.ID)
	}
	return nil
}

func classifyEntropy(err error) error {
	if verdict.KindOf(err) == verdict.KindEntropySourceUnavailable {
		return err
	}
	return verdict.Wrap(verdict.KindEntropySourceUnavailable, err, "fetch block")
}
