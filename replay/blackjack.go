package replay

import (
	"fmt"

	"fairplay/config"
	"fairplay/expand"
)

// Blackjack decisions.
const (
	Hit    = "hit"
	Stand  = "stand"
	Double = "double"
	Split  = "split"
)

// BlackjackStart is the opening bankroll.
type BlackjackStart struct {
	Balance int64 `json:"balance"`
}

// BlackjackRound is one round: the bet placed and the decisions taken, in
// order, across the player's hands. Each round is dealt from a fresh shuffle.
type BlackjackRound struct {
	Bet       int64    `json:"bet"`
	Decisions []string `json:"decisions"`
}

type blackjackState struct {
	Balance int64 `json:"balance"`
	Rounds  int   `json:"rounds"`
}

type bjHand struct {
	cards []expand.Card
	bet   int64
	done  bool
}

// HandValue is the best blackjack total of cards and whether an ace is
// counted as eleven.
func HandValue(cards []expand.Card) (total int, soft bool) {
	aces := 0
	for _, c := range cards {
		r := c.Rank()
		switch {
		case r == 1:
			aces++
			total++
		case r > 10:
			total += 10
		default:
			total += r
		}
	}
	if aces > 0 && total+10 <= 21 {
		return total + 10, true
	}
	return total, false
}

func natural(cards []expand.Card) bool {
	v, _ := HandValue(cards)
	return len(cards) == 2 && v == 21
}

// Settle returns what a finished hand pays back, stake included: twice the
// bet on a win, the bet on a push, nothing on a loss. Naturals are settled
// before play and never reach here.
func Settle(bet int64, player, dealer []expand.Card) int64 {
	pv, _ := HandValue(player)
	if pv > 21 {
		return 0
	}
	dv, _ := HandValue(dealer)
	switch {
	case dv > 21 || pv > dv:
		return 2 * bet
	case pv == dv:
		return bet
	}
	return 0
}

// Blackjack replays rounds dealt from one 52-card shuffle each. The dealer
// stands on all 17s, naturals pay 3:2, doubles take one card, and equal ranks
// split up to four hands. Bets must be even so a 3:2 payout is exact. The
// score is the final balance.
type Blackjack struct{}

func (Blackjack) Shape(sub *Submission[BlackjackStart, BlackjackRound]) error {
	if sub.Initial == nil || sub.Initial.Balance <= 0 {
		return fmt.Errorf("initialState.balance must be positive")
	}
	if len(sub.Draws) != len(sub.Actions) {
		return fmt.Errorf("%d rounds but %d shuffles", len(sub.Actions), len(sub.Draws))
	}
	for i, r := range sub.Actions {
		if r.Bet <= 0 {
			return fmt.Errorf("round %d: bet must be positive", i)
		}
		if r.Bet%2 != 0 {
			return fmt.Errorf("round %d: bet %d is odd, naturals pay 3:2", i, r.Bet)
		}
		for _, d := range r.Decisions {
			switch d {
			case Hit, Stand, Double, Split:
			default:
				return fmt.Errorf("round %d: unknown decision %q", i, d)
			}
		}
	}
	return nil
}

func (Blackjack) Start(initial *BlackjackStart, _ *DrawLog) (blackjackState, error) {
	return blackjackState{Balance: initial.Balance}, nil
}

func (Blackjack) Step(st blackjackState, round BlackjackRound, draws *DrawLog) (blackjackState, error) {
	if round.Bet > st.Balance {
		return st, illegal("bet %d exceeds balance %d", round.Bet, st.Balance)
	}
	deck, err := draws.Deck()
	if err != nil {
		return st, err
	}

	t := &table{deck: deck, balance: st.Balance - round.Bet}
	if err := t.play(round); err != nil {
		return st, err
	}
	st.Balance = t.balance
	st.Rounds++
	return st, nil
}

type table struct {
	deck    []expand.Card
	pos     int
	balance int64
	hands   []*bjHand
	dealer  []expand.Card
}

func (t *table) deal() expand.Card {
	c := t.deck[t.pos]
	t.pos++
	return c
}

func (t *table) play(round BlackjackRound) error {
	first := &bjHand{bet: round.Bet}
	first.cards = append(first.cards, t.deal())
	t.dealer = append(t.dealer, t.deal())
	first.cards = append(first.cards, t.deal())
	t.dealer = append(t.dealer, t.deal())
	t.hands = []*bjHand{first}

	pn, dn := natural(first.cards), natural(t.dealer)
	if pn || dn {
		if len(round.Decisions) > 0 {
			return illegal("decision %q after a natural", round.Decisions[0])
		}
		switch {
		case pn && dn:
			t.balance += round.Bet
		case pn:
			t.balance += round.Bet + round.Bet*3/2
		}
		return nil
	}

	cur := 0
	for i, d := range round.Decisions {
		if cur >= len(t.hands) {
			return illegal("decision %d (%s) after every hand finished", i, d)
		}
		h := t.hands[cur]
		if err := t.decide(h, d); err != nil {
			return illegal("decision %d: %v", i, err)
		}
		for cur < len(t.hands) && t.hands[cur].done {
			cur++
		}
	}
	if cur < len(t.hands) {
		return illegal("round ended with hand %d still in play", cur)
	}

	live := false
	for _, h := range t.hands {
		if v, _ := HandValue(h.cards); v <= 21 {
			live = true
		}
	}
	if live {
		for {
			v, _ := HandValue(t.dealer)
			if v >= 17 {
				break
			}
			t.dealer = append(t.dealer, t.deal())
		}
	}
	for _, h := range t.hands {
		t.balance += Settle(h.bet, h.cards, t.dealer)
	}
	return nil
}

func (t *table) decide(h *bjHand, d string) error {
	switch d {
	case Hit:
		h.cards = append(h.cards, t.deal())
	case Stand:
		h.done = true
		return nil
	case Double:
		if len(h.cards) != 2 {
			return fmt.Errorf("double on %d cards", len(h.cards))
		}
		if t.balance < h.bet {
			return fmt.Errorf("double needs %d, balance is %d", h.bet, t.balance)
		}
		t.balance -= h.bet
		h.bet *= 2
		h.cards = append(h.cards, t.deal())
		h.done = true
		return nil
	case Split:
		if len(h.cards) != 2 || h.cards[0].Rank() != h.cards[1].Rank() {
			return fmt.Errorf("split needs a pair, have %v", h.cards)
		}
		if len(t.hands) >= config.BlackjackMaxHands {
			return fmt.Errorf("split beyond %d hands", config.BlackjackMaxHands)
		}
		if t.balance < h.bet {
			return fmt.Errorf("split needs %d, balance is %d", h.bet, t.balance)
		}
		t.balance -= h.bet
		aces := h.cards[0].Rank() == 1
		other := &bjHand{cards: []expand.Card{h.cards[1]}, bet: h.bet}
		h.cards = []expand.Card{h.cards[0], t.deal()}
		other.cards = append(other.cards, t.deal())
		if v, _ := HandValue(other.cards); aces || v >= 21 {
			other.done = true
		}
		if aces {
			h.done = true
		}
		t.insertAfter(h, other)
	}
	if v, _ := HandValue(h.cards); v >= 21 {
		h.done = true
	}
	return nil
}

func (t *table) insertAfter(h, other *bjHand) {
	for i, x := range t.hands {
		if x == h {
			t.hands = append(t.hands[:i+1], append([]*bjHand{other}, t.hands[i+1:]...)...)
			return
		}
	}
}

func (Blackjack) Finish(blackjackState) error { return nil }

func (Blackjack) Score(st blackjackState) int64 { return st.Balance }

func (Blackjack) Snapshot(st blackjackState) any { return st }

func (Blackjack) Tolerance() float64 { return 0 }
