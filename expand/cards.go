package expand

import (
	"fmt"

	"fairplay/config"
)

// Card is a position in a standard 52-card deck: rank 1 (ace) to 13 (king),
// suit 0 to 3 (clubs, diamonds, hearts, spades).
type Card int

func (c Card) Rank() int { return int(c)%13 + 1 }
func (c Card) Suit() int { return int(c) / 13 }

// Red reports whether the card is a diamond or heart.
func (c Card) Red() bool { return c.Suit() == 1 || c.Suit() == 2 }

func (c Card) String() string {
	return fmt.Sprintf("%s%c", rankNames[c.Rank()-1], "CDHS"[c.Suit()])
}

var rankNames = [...]string{"A", "2", "3", "4", "5", "6", "7", "8", "9", "10", "J", "Q", "K"}

// Deck maps a permutation of [0, 52) to cards.
func Deck(perm []int) ([]Card, error) {
	deck := make([]Card, len(perm))
	for i, p := range perm {
		if p < 0 || p >= config.DeckSize {
			return nil, fmt.Errorf("card index %d out of range", p)
		}
		deck[i] = Card(p)
	}
	return deck, nil
}

// ShuffledDeck shuffles a 52-card deck from seed.
func ShuffledDeck(seed string) ([]Card, error) {
	perm, err := Permutation(seed, config.DeckSize)
	if err != nil {
		return nil, err
	}
	return Deck(perm)
}
