package card

import (
	"errors"
	"fmt"
	rand "math/rand/v2"
	"sort"

	"github.com/sjavsgame/sjavs-server/internal/randutil"
)

// ErrDealingImpossible is returned when repeated shuffles fail to produce a
// deal where anyone can open the bidding.
var ErrDealingImpossible = errors.New("card: could not produce a biddable deal")

// maxDealAttempts bounds the redeal loop; a fair shuffle hits a biddable deal
// within a handful of tries, so the cap only guards against a broken rng.
const maxDealAttempts = 1000

// Deck is the 32-card Sjavs deck.
type Deck struct {
	cards []Card
	rng   *rand.Rand
}

// NewDeck creates a full deck in canonical order. Pass nil to use a
// time-seeded rng.
func NewDeck(rng *rand.Rand) *Deck {
	if rng == nil {
		rng = randutil.NewFromTime()
	}

	d := &Deck{
		cards: make([]Card, 0, 32),
		rng:   rng,
	}
	for _, suit := range Suits {
		for _, rank := range Ranks {
			d.cards = append(d.cards, New(suit, rank))
		}
	}
	return d
}

// Shuffle randomizes the order of cards in the deck
func (d *Deck) Shuffle() {
	for i := len(d.cards) - 1; i > 0; i-- {
		j := d.rng.IntN(i + 1)
		d.cards[i], d.cards[j] = d.cards[j], d.cards[i]
	}
}

// CardsRemaining returns the number of cards left in the deck
func (d *Deck) CardsRemaining() int {
	return len(d.cards)
}

// Deal distributes the full deck round-robin into four sorted 8-card hands.
// The deck must be complete.
func (d *Deck) Deal() ([4][]Card, error) {
	var hands [4][]Card
	if len(d.cards) != 32 {
		return hands, fmt.Errorf("card: deal requires a full deck, have %d cards", len(d.cards))
	}

	for i := range hands {
		hands[i] = make([]Card, 0, 8)
	}
	for i, c := range d.cards {
		hands[i%4] = append(hands[i%4], c)
	}
	d.cards = d.cards[:0]

	for i := range hands {
		SortHand(hands[i])
	}
	return hands, nil
}

// SortHand orders a hand by suit then ascending rank, the display order used
// in stored hands and snapshots.
func SortHand(hand []Card) {
	sort.Slice(hand, func(i, j int) bool {
		if hand[i].Suit != hand[j].Suit {
			return hand[i].Suit.String() < hand[j].Suit.String()
		}
		return hand[i].Rank < hand[j].Rank
	})
}

// TrumpCounts returns, for each candidate trump suit, how many cards of the
// hand would be trump if that suit were declared.
func TrumpCounts(hand []Card) map[Suit]int {
	counts := make(map[Suit]int, 4)
	for _, suit := range Suits {
		n := 0
		for _, c := range hand {
			if c.IsTrump(suit) {
				n++
			}
		}
		counts[suit] = n
	}
	return counts
}

// HasBiddableHand reports whether at least one hand holds 5+ trumps in some
// suit, the minimum to open the bidding.
func HasBiddableHand(hands [4][]Card) bool {
	for _, hand := range hands {
		for _, n := range TrumpCounts(hand) {
			if n >= 5 {
				return true
			}
		}
	}
	return false
}

// DealUntilBiddable shuffles and deals until HasBiddableHand holds, returning
// the hands and the number of attempts taken. Pass nil to use a time-seeded
// rng.
func DealUntilBiddable(rng *rand.Rand) ([4][]Card, int, error) {
	if rng == nil {
		rng = randutil.NewFromTime()
	}

	for attempt := 1; attempt <= maxDealAttempts; attempt++ {
		deck := NewDeck(rng)
		deck.Shuffle()
		hands, err := deck.Deal()
		if err != nil {
			return [4][]Card{}, attempt, err
		}
		if HasBiddableHand(hands) {
			return hands, attempt, nil
		}
	}
	return [4][]Card{}, maxDealAttempts, ErrDealingImpossible
}
