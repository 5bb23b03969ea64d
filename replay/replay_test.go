package replay

import (
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"fairplay/crypto"
	"fairplay/expand"
	"fairplay/fairness"
	"fairplay/verdict"
)

// play2048 slides in a fixed preference order and records every spawn.
func play2048(t *testing.T, moves int) ([]string, []Draw, *Grid) {
	t.Helper()
	rec := &recorder{}
	g := &Grid{}
	spawn := func() {
		v := rec.take(t, expand.KindSpawn, expand.Params{EmptyCells: g.Empty()})
		g.Cells[v[0]] = g.newTile(v[1])
	}
	spawn()
	spawn()

	var actions []string
	for i := 0; i < moves; i++ {
		played := false
		for _, dir := range []string{Left, Up, Right, Down} {
			next := *g
			changed, gained := next.Slide(dir)
			if !changed {
				continue
			}
			*g = next
			g.Score += gained
			g.Moves++
			actions = append(actions, dir)
			spawn()
			played = true
			break
		}
		if !played {
			break
		}
	}
	return actions, rec.draws, g
}

func TestReplayAcceptsHonestGame(t *testing.T) {
	actions, draws, g := play2048(t, 60)
	sub := submission[struct{}](nil, actions, draws, g.Score)

	score, err := Replay[struct{}, *Grid, string](Game2048Rules{}, sub)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if score != g.Score {
		t.Fatalf("score = %d, want %d", score, g.Score)
	}

	wantValid(t, Validate(Game2048, encode(t, sub), sub.Session), g.Score)
}

func TestReplayRequiresSessionForDraws(t *testing.T) {
	actions, draws, g := play2048(t, 10)
	sub := submission[struct{}](nil, actions, draws, g.Score)

	unbound := sub
	unbound.Session = nil
	_, err := Replay[struct{}, *Grid, string](Game2048Rules{}, unbound)
	wantKind(t, err, verdict.KindStructuralError)
	if v := Validate(Game2048, encode(t, sub), nil); v.Valid || v.Kind != verdict.KindStructuralError {
		t.Fatalf("unbound verdict = %+v", v)
	}

	other := sub
	other.SessionID = "another-session"
	_, err = Replay[struct{}, *Grid, string](Game2048Rules{}, other)
	wantKind(t, err, verdict.KindStructuralError)
}

func TestReplayRejectsSeedsTheSessionNeverIssued(t *testing.T) {
	actions, draws, g := play2048(t, 10)
	session := revealOf(draws)

	// Self-consistent draws from seeds the player chose: every value is what
	// its seed expands to, but the seeds are not the session's.
	forged := make([]Draw, len(draws))
	copy(forged, draws)
	grid := &Grid{}
	for i := 0; i < 2; i++ {
		seed := crypto.HashHex(fmt.Sprintf("chosen-%d", i))
		v, err := expand.Run(expand.KindSpawn, seed, expand.Params{EmptyCells: grid.Empty()})
		if err != nil {
			t.Fatal(err)
		}
		grid.Cells[v[0]] = grid.newTile(v[1])
		forged[i].Seed = seed
		forged[i].Values = v
	}

	sub := submission[struct{}](nil, actions, forged, g.Score)
	sub.Session = session
	_, err := Replay[struct{}, *Grid, string](Game2048Rules{}, sub)
	wantKind(t, err, verdict.KindSeedMismatch)

	// A purpose log built from the forged seeds still fails: the seeds do
	// not derive from the session secret.
	sub.Session = revealOf(forged)
	_, err = Replay[struct{}, *Grid, string](Game2048Rules{}, sub)
	wantKind(t, err, verdict.KindSeedMismatch)
}

func TestReplayRejectsCherryPickedDraws(t *testing.T) {
	actions, draws, g := play2048(t, 10)
	session := revealOf(draws)
	extra := crypto.DeriveSeed(testSecret, testBlock, "spare")
	session.PurposeLog = append(session.PurposeLog, fairness.Entry{Label: "spare", Block: testBlock, Seed: extra})

	sub := submission[struct{}](nil, actions, draws, g.Score)
	sub.Session = session
	_, err := Replay[struct{}, *Grid, string](Game2048Rules{}, sub)
	wantKind(t, err, verdict.KindSeedMismatch)

	swapped := revealOf(draws)
	swapped.PurposeLog[2], swapped.PurposeLog[3] = swapped.PurposeLog[3], swapped.PurposeLog[2]
	sub.Session = swapped
	_, err = Replay[struct{}, *Grid, string](Game2048Rules{}, sub)
	wantKind(t, err, verdict.KindSeedMismatch)
}

func TestReplayRequiresClaimedScore(t *testing.T) {
	actions, draws, _ := play2048(t, 3)
	sub := submission[struct{}](nil, actions, draws, 0)
	sub.ClaimedScore = nil
	_, err := Replay[struct{}, *Grid, string](Game2048Rules{}, sub)
	wantKind(t, err, verdict.KindStructuralError)
}

func TestReplayRejectsWrongCommitment(t *testing.T) {
	actions, draws, g := play2048(t, 3)
	sub := submission[struct{}](nil, actions, draws, g.Score)
	sub.Session.SecretHash = strings.Repeat("0", 64)
	_, err := Replay[struct{}, *Grid, string](Game2048Rules{}, sub)
	wantKind(t, err, verdict.KindCommitmentMismatch)
}

func TestReplayDetectsTamperedSeed(t *testing.T) {
	actions, draws, g := play2048(t, 5)

	// A forged seed whose recorded output is self-consistent is only caught
	// by recomputing the seed from the revealed secret.
	forged := strings.Repeat("ab", 32)
	v, err := expand.Run(expand.KindSpawn, forged, expand.Params{EmptyCells: []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15}})
	if err != nil {
		t.Fatal(err)
	}
	draws[0].Seed = forged
	draws[0].Values = v

	sub := submission[struct{}](nil, actions, draws, g.Score)
	_, err = Replay[struct{}, *Grid, string](Game2048Rules{}, sub)
	e := wantKind(t, err, verdict.KindSeedMismatch)
	if e.Step != -1 {
		t.Fatalf("opening spawn failure step = %d, want -1", e.Step)
	}
}

func TestReplayDetectsTamperedValues(t *testing.T) {
	actions, draws, g := play2048(t, 5)
	d := &draws[3]
	if d.Values[1] == 2 {
		d.Values[1] = 4
	} else {
		d.Values[1] = 2
	}
	sub := submission[struct{}](nil, actions, draws, g.Score)
	_, err := Replay[struct{}, *Grid, string](Game2048Rules{}, sub)
	e := wantKind(t, err, verdict.KindSeedMismatch)
	if e.Step != 1 {
		t.Fatalf("step = %d, want 1", e.Step)
	}
}

func TestReplayRejectsDuplicateLabels(t *testing.T) {
	actions, draws, g := play2048(t, 3)
	draws[2].Label = draws[1].Label
	sub := submission[struct{}](nil, actions, draws, g.Score)
	_, err := Replay[struct{}, *Grid, string](Game2048Rules{}, sub)
	wantKind(t, err, verdict.KindDuplicateLabel)
}

func TestReplayRejectsMalformedDraws(t *testing.T) {
	cases := map[string]func(d *Draw){
		"short seed":   func(d *Draw) { d.Seed = "abc" },
		"upper hex":    func(d *Draw) { d.Seed = strings.ToUpper(d.Seed) },
		"no block":     func(d *Draw) { d.Block.Hash = "" },
		"bad kind":     func(d *Draw) { d.Kind = "coin" },
		"bad value":    func(d *Draw) { d.Values[1] = 8 },
		"cell too far": func(d *Draw) { d.Values[0] = 16 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			actions, draws, g := play2048(t, 2)
			mutate(&draws[0])
			sub := submission[struct{}](nil, actions, draws, g.Score)
			_, err := Replay[struct{}, *Grid, string](Game2048Rules{}, sub)
			wantKind(t, err, verdict.KindStructuralError)
		})
	}
}

func TestReplayRejectsScoreMismatch(t *testing.T) {
	actions, draws, g := play2048(t, 30)
	sub := submission[struct{}](nil, actions, draws, g.Score+4)
	v := Validate(Game2048, encode(t, sub), sub.Session)
	if v.Valid || v.Kind != verdict.KindScoreMismatch {
		t.Fatalf("verdict = %+v, want score mismatch", v)
	}
	if v.CalculatedScore != nil {
		t.Fatal("failed verdict carries a score")
	}
}

func TestReplayChecksClaimedFinalState(t *testing.T) {
	actions, draws, g := play2048(t, 20)
	sub := submission[struct{}](nil, actions, draws, g.Score)
	sub.ClaimedFinal = encode(t, g.Values())
	if _, err := Replay[struct{}, *Grid, string](Game2048Rules{}, sub); err != nil {
		t.Fatalf("Replay with matching final state: %v", err)
	}

	wrong := g.Values()
	wrong[0][0] += 2
	sub.ClaimedFinal = encode(t, wrong)
	_, err := Replay[struct{}, *Grid, string](Game2048Rules{}, sub)
	wantKind(t, err, verdict.KindStateMismatch)
}

func TestWithinTolerance(t *testing.T) {
	cases := []struct {
		claimed, calc int64
		tol           float64
		want          bool
	}{
		{100, 100, 0, true},
		{101, 100, 0, false},
		{110, 100, 0.10, true},
		{111, 100, 0.10, false},
		{90, 100, 0.10, true},
		{0, 0, 0.10, true},
		{1, 0, 0.10, false},
	}
	for _, c := range cases {
		if got := withinTolerance(c.claimed, c.calc, c.tol); got != c.want {
			t.Errorf("withinTolerance(%d, %d, %v) = %v, want %v", c.claimed, c.calc, c.tol, got, c.want)
		}
	}
}

func TestValidateRejectsGarbageInput(t *testing.T) {
	if v := Validate("poker", []byte(`{}`), nil); v.Valid || v.Kind != verdict.KindStructuralError {
		t.Fatalf("unknown game verdict = %+v", v)
	}

	inputs := []string{
		``,
		`null`,
		`[]`,
		`{"claimedScore": "lots"}`,
		`{"claimedScore": 1, "actionHistory": [], "randomHistory": [], "cheat": true}`,
		`{"claimedScore": 1, "actionHistory": [{"player": "green"}], "randomHistory": []}`,
	}
	r := rand.New(rand.NewSource(7))
	for i := 0; i < 50; i++ {
		b := make([]byte, r.Intn(64))
		r.Read(b)
		inputs = append(inputs, string(b))
	}

	for _, game := range Games() {
		for _, in := range inputs {
			v := Validate(game, []byte(in), nil)
			if v.Valid {
				t.Fatalf("%s accepted %q", game, in)
			}
		}
	}
}

func TestGamesListsEveryAdapter(t *testing.T) {
	want := []string{Game2048, GameBackgammon, GameBlackjack, GameChess, GameGarbage, GameSolitaire, GameYahtzee}
	got := Games()
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("Games() = %v, want %v", got, want)
	}
}

func TestVerifyDraw(t *testing.T) {
	var r recorder
	r.take(t, expand.KindDice, expand.Params{Count: 5})
	r.take(t, expand.KindSpawn, expand.Params{EmptyCells: []int{0, 3, 7, 12}})
	dice, spawn := r.draws[0], r.draws[1]

	if err := VerifyDraw(testSecret, dice, nil); err != nil {
		t.Fatalf("honest dice draw: %v", err)
	}
	if err := VerifyDraw("", dice, nil); err != nil {
		t.Fatalf("dice draw without secret: %v", err)
	}
	if err := VerifyDraw(testSecret, spawn, []int{0, 3, 7, 12}); err != nil {
		t.Fatalf("honest spawn draw: %v", err)
	}

	wantKind(t, VerifyDraw(testSecret, spawn, nil), verdict.KindStructuralError)
	wantKind(t, VerifyDraw(strings.Repeat("0", 64), dice, nil), verdict.KindSeedMismatch)

	bad := dice
	bad.Values = append([]int(nil), dice.Values...)
	bad.Values[0] = bad.Values[0]%6 + 1
	wantKind(t, VerifyDraw(testSecret, bad, nil), verdict.KindSeedMismatch)
}
