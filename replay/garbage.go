package replay

import (
	"fmt"

	"fairplay/config"
	"fairplay/expand"
)

const (
	garbageSlotPoints = 10
	garbageFullBonus  = 50
	jack              = 11
)

// GarbageAction places the card in hand into Slot (1 to 10). Slot 0
// discards it, which is only legal when no slot accepts the card.
type GarbageAction struct {
	Slot int `json:"slot"`
}

type garbageSlot struct {
	card expand.Card
	up   bool
}

type garbageState struct {
	slots  [config.GarbageSlots]garbageSlot
	pile   []expand.Card
	hand   expand.Card
	filled int
	over   bool
}

func (g *garbageState) fits(c expand.Card, slot int) bool {
	if slot < 1 || slot > config.GarbageSlots || g.slots[slot-1].up {
		return false
	}
	return c.Rank() == slot || c.Rank() == jack
}

func (g *garbageState) playable(c expand.Card) bool {
	for s := 1; s <= config.GarbageSlots; s++ {
		if g.fits(c, s) {
			return true
		}
	}
	return false
}

func (g *garbageState) drawFromPile() {
	if len(g.pile) == 0 {
		g.over = true
		return
	}
	g.hand = g.pile[0]
	g.pile = g.pile[1:]
}

// Garbage replays a single-player game of Garbage (Trash). Ten slots, ace to
// ten, are dealt face down. A card whose rank matches a face-down slot goes
// there and the uncovered card is played next; jacks are wild, queens and
// kings are dead. The game ends when every slot is face up or the pile runs
// out.
type Garbage struct{}

func (Garbage) Shape(sub *Submission[struct{}, GarbageAction]) error {
	if len(sub.Draws) != 1 {
		return fmt.Errorf("garbage uses one shuffle, got %d draws", len(sub.Draws))
	}
	for i, a := range sub.Actions {
		if a.Slot < 0 || a.Slot > config.GarbageSlots {
			return fmt.Errorf("action %d: slot %d out of range", i, a.Slot)
		}
	}
	return nil
}

func (Garbage) Start(_ *struct{}, draws *DrawLog) (*garbageState, error) {
	deck, err := draws.Deck()
	if err != nil {
		return nil, err
	}
	g := &garbageState{}
	for i := range g.slots {
		g.slots[i].card = deck[i]
	}
	g.pile = append([]expand.Card(nil), deck[config.GarbageSlots:]...)
	g.drawFromPile()
	return g, nil
}

func (Garbage) Step(g *garbageState, a GarbageAction, _ *DrawLog) (*garbageState, error) {
	if g.over {
		return g, illegal("action after the game ended")
	}
	if a.Slot == 0 {
		if g.playable(g.hand) {
			return g, illegal("discarded %s with a slot open for it", g.hand)
		}
		g.drawFromPile()
		return g, nil
	}
	if !g.fits(g.hand, a.Slot) {
		return g, illegal("%s does not fit slot %d", g.hand, a.Slot)
	}
	s := &g.slots[a.Slot-1]
	s.up = true
	g.hand = s.card
	g.filled++
	if g.filled == config.GarbageSlots {
		g.over = true
	}
	return g, nil
}

func (Garbage) Finish(g *garbageState) error {
	if !g.over {
		return illegal("game stopped with %s in hand", g.hand)
	}
	return nil
}

func (Garbage) Score(g *garbageState) int64 {
	score := int64(g.filled * garbageSlotPoints)
	if g.filled == config.GarbageSlots {
		score += garbageFullBonus
	}
	return score
}

func (Garbage) Snapshot(g *garbageState) any {
	up := make([]bool, len(g.slots))
	for i, s := range g.slots {
		up[i] = s.up
	}
	return map[string]any{"filled": g.filled, "faceUp": up}
}

func (Garbage) Tolerance() float64 { return 0 }
