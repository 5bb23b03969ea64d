package replay

import (
	"fmt"
	"strconv"

	"fairplay/expand"
)

// Solitaire action kinds.
const (
	DrawStock = "draw"
	MoveCards = "move"
)

const (
	tableauPiles    = 7
	foundationPiles = 4

	pointsWasteToTableau    = 5
	pointsToFoundation      = 10
	pointsFlip              = 5
	pointsFoundationTableau = -15
)

// SolitaireAction is either a stock draw or a move of Count cards between
// piles. Piles are named "waste", "t0" to "t6" and "f0" to "f3".
type SolitaireAction struct {
	Kind  string `json:"kind"`
	From  string `json:"from,omitempty"`
	To    string `json:"to,omitempty"`
	Count int    `json:"count,omitempty"`
}

type tabCard struct {
	card expand.Card
	up   bool
}

type klondike struct {
	stock       []expand.Card
	waste       []expand.Card
	tableau     [tableauPiles][]tabCard
	foundations [foundationPiles][]expand.Card
	score       int64
}

type pile struct {
	kind  byte
	index int
}

func parsePile(name string) (pile, error) {
	if name == "waste" {
		return pile{kind: 'w'}, nil
	}
	if len(name) == 2 && (name[0] == 't' || name[0] == 'f') {
		n, err := strconv.Atoi(name[1:])
		limit := tableauPiles
		if name[0] == 'f' {
			limit = foundationPiles
		}
		if err == nil && n >= 0 && n < limit {
			return pile{kind: name[0], index: n}, nil
		}
	}
	return pile{}, fmt.Errorf("unknown pile %q", name)
}

func (k *klondike) addScore(delta int64) {
	k.score += delta
	if k.score < 0 {
		k.score = 0
	}
}

func (k *klondike) draw() error {
	if len(k.stock) > 0 {
		k.waste = append(k.waste, k.stock[0])
		k.stock = k.stock[1:]
		return nil
	}
	if len(k.waste) == 0 {
		return fmt.Errorf("stock and waste are both empty")
	}
	k.stock, k.waste = k.waste, nil
	return nil
}

// accepts reports whether c may be placed on the tableau pile t.
func (k *klondike) tableauAccepts(t int, c expand.Card) bool {
	p := k.tableau[t]
	if len(p) == 0 {
		return c.Rank() == 13
	}
	top := p[len(p)-1]
	return top.up && top.card.Red() != c.Red() && top.card.Rank() == c.Rank()+1
}

func (k *klondike) foundationAccepts(f int, c expand.Card) bool {
	p := k.foundations[f]
	if len(p) == 0 {
		return c.Rank() == 1
	}
	top := p[len(p)-1]
	return top.Suit() == c.Suit() && c.Rank() == top.Rank()+1
}

func (k *klondike) flip(t int) {
	p := k.tableau[t]
	if n := len(p); n > 0 && !p[n-1].up {
		p[n-1].up = true
		k.addScore(pointsFlip)
	}
}

func (k *klondike) move(a SolitaireAction) error {
	from, err := parsePile(a.From)
	if err != nil {
		return err
	}
	to, err := parsePile(a.To)
	if err != nil {
		return err
	}
	count := a.Count
	if count == 0 {
		count = 1
	}
	if to.kind == 'w' {
		return fmt.Errorf("cannot move onto the waste")
	}
	if count > 1 && (from.kind != 't' || to.kind != 't') {
		return fmt.Errorf("only tableau runs move more than one card")
	}

	var moving []expand.Card
	switch from.kind {
	case 'w':
		if len(k.waste) == 0 {
			return fmt.Errorf("waste is empty")
		}
		moving = []expand.Card{k.waste[len(k.waste)-1]}
	case 'f':
		p := k.foundations[from.index]
		if len(p) == 0 {
			return fmt.Errorf("foundation %d is empty", from.index)
		}
		moving = []expand.Card{p[len(p)-1]}
	case 't':
		p := k.tableau[from.index]
		if count > len(p) {
			return fmt.Errorf("tableau %d has %d cards, moving %d", from.index, len(p), count)
		}
		for _, tc := range p[len(p)-count:] {
			if !tc.up {
				return fmt.Errorf("tableau %d run includes a face-down card", from.index)
			}
			moving = append(moving, tc.card)
		}
	}

	switch to.kind {
	case 't':
		if from.kind == 't' && from.index == to.index {
			return fmt.Errorf("move onto the same pile")
		}
		if !k.tableauAccepts(to.index, moving[0]) {
			return fmt.Errorf("%s cannot go on tableau %d", moving[0], to.index)
		}
	case 'f':
		if from.kind == 'f' {
			return fmt.Errorf("foundation to foundation")
		}
		if !k.foundationAccepts(to.index, moving[0]) {
			return fmt.Errorf("%s cannot go on foundation %d", moving[0], to.index)
		}
	}

	switch from.kind {
	case 'w':
		k.waste = k.waste[:len(k.waste)-1]
	case 'f':
		k.foundations[from.index] = k.foundations[from.index][:len(k.foundations[from.index])-1]
	case 't':
		p := k.tableau[from.index]
		k.tableau[from.index] = p[:len(p)-count]
	}
	switch to.kind {
	case 't':
		for _, c := range moving {
			k.tableau[to.index] = append(k.tableau[to.index], tabCard{card: c, up: true})
		}
	case 'f':
		k.foundations[to.index] = append(k.foundations[to.index], moving[0])
	}

	switch {
	case from.kind == 'w' && to.kind == 't':
		k.addScore(pointsWasteToTableau)
	case to.kind == 'f':
		k.addScore(pointsToFoundation)
	case from.kind == 'f':
		k.addScore(pointsFoundationTableau)
	}
	if from.kind == 't' {
		k.flip(from.index)
	}
	return nil
}

// Solitaire replays Klondike, draw one, with standard scoring: 5 for waste to
// tableau, 10 for any card to a foundation, 5 per card turned up and -15 for
// a foundation card moved back. The score never drops below zero.
type Solitaire struct{}

func (Solitaire) Shape(sub *Submission[struct{}, SolitaireAction]) error {
	if len(sub.Draws) != 1 {
		return fmt.Errorf("solitaire uses one shuffle, got %d draws", len(sub.Draws))
	}
	for i, a := range sub.Actions {
		switch a.Kind {
		case DrawStock:
		case MoveCards:
			if a.Count < 0 || a.Count > 13 {
				return fmt.Errorf("action %d: count %d", i, a.Count)
			}
		default:
			return fmt.Errorf("action %d: unknown kind %q", i, a.Kind)
		}
	}
	return nil
}

func (Solitaire) Start(_ *struct{}, draws *DrawLog) (*klondike, error) {
	deck, err := draws.Deck()
	if err != nil {
		return nil, err
	}
	k := &klondike{}
	pos := 0
	for t := 0; t < tableauPiles; t++ {
		for j := 0; j <= t; j++ {
			k.tableau[t] = append(k.tableau[t], tabCard{card: deck[pos], up: j == t})
			pos++
		}
	}
	k.stock = append([]expand.Card(nil), deck[pos:]...)
	return k, nil
}

func (Solitaire) Step(k *klondike, a SolitaireAction, _ *DrawLog) (*klondike, error) {
	var err error
	if a.Kind == DrawStock {
		err = k.draw()
	} else {
		err = k.move(a)
	}
	if err != nil {
		return k, illegal("%s: %v", a.Kind, err)
	}
	return k, nil
}

func (Solitaire) Finish(*klondike) error { return nil }

func (Solitaire) Score(k *klondike) int64 { return k.score }

func (Solitaire) Snapshot(k *klondike) any {
	var found [foundationPiles]int
	for i, f := range k.foundations {
		found[i] = len(f)
	}
	return map[string]any{"score": k.score, "foundations": found}
}

func (Solitaire) Tolerance() float64 { return 0 }
