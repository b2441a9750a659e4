// Package card implements the Sjavs card model: the 32-card deck, the
// permanent-trump hierarchy, point values and the total ordering used to
// decide tricks.
package card

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedCard indicates a card code that cannot be parsed.
var ErrMalformedCard = errors.New("card: malformed card code")

// Suit represents a card suit
type Suit int

const (
	Hearts Suit = iota
	Diamonds
	Clubs
	Spades
)

// Suits lists all four suits in canonical order.
var Suits = [4]Suit{Hearts, Diamonds, Clubs, Spades}

// String returns the single-letter suit code used in card codes
func (s Suit) String() string {
	switch s {
	case Hearts:
		return "H"
	case Diamonds:
		return "D"
	case Clubs:
		return "C"
	case Spades:
		return "S"
	default:
		return "?"
	}
}

// Name returns the lowercase suit name used in stored state and events
func (s Suit) Name() string {
	switch s {
	case Hearts:
		return "hearts"
	case Diamonds:
		return "diamonds"
	case Clubs:
		return "clubs"
	case Spades:
		return "spades"
	default:
		return "unknown"
	}
}

// ParseSuit accepts both the one-letter code and the full name, in any case.
func ParseSuit(s string) (Suit, error) {
	switch strings.ToLower(s) {
	case "h", "hearts":
		return Hearts, nil
	case "d", "diamonds":
		return Diamonds, nil
	case "c", "clubs":
		return Clubs, nil
	case "s", "spades":
		return Spades, nil
	default:
		return 0, fmt.Errorf("%w: unknown suit %q", ErrMalformedCard, s)
	}
}

// MarshalJSON encodes the suit as its lowercase name.
func (s Suit) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Name())
}

// UnmarshalJSON accepts a suit name or one-letter code.
func (s *Suit) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseSuit(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Rank represents a card rank. Sjavs uses the short deck: 7 through Ace.
type Rank int

const (
	Seven Rank = iota + 7
	Eight
	Nine
	Ten
	Jack
	Queen
	King
	Ace
)

// Ranks lists all eight ranks in ascending order.
var Ranks = [8]Rank{Seven, Eight, Nine, Ten, Jack, Queen, King, Ace}

// String returns the rank as used in card codes ("7".."10", "J", "Q", "K", "A")
func (r Rank) String() string {
	switch r {
	case Seven, Eight, Nine, Ten:
		return fmt.Sprintf("%d", int(r))
	case Jack:
		return "J"
	case Queen:
		return "Q"
	case King:
		return "K"
	case Ace:
		return "A"
	default:
		return "?"
	}
}

// ParseRank parses the rank portion of a card code.
func ParseRank(s string) (Rank, error) {
	switch s {
	case "7":
		return Seven, nil
	case "8":
		return Eight, nil
	case "9":
		return Nine, nil
	case "10":
		return Ten, nil
	case "J":
		return Jack, nil
	case "Q":
		return Queen, nil
	case "K":
		return King, nil
	case "A":
		return Ace, nil
	default:
		return 0, fmt.Errorf("%w: unknown rank %q", ErrMalformedCard, s)
	}
}

// Card is a playing card identified by suit and rank.
type Card struct {
	Suit Suit
	Rank Rank
}

// New creates a new card
func New(suit Suit, rank Rank) Card {
	return Card{Suit: suit, Rank: rank}
}

// Code returns the compact textual representation used for storage and
// transmission, e.g. "AS", "QC", "10H".
func (c Card) Code() string {
	return c.Rank.String() + c.Suit.String()
}

// String returns the card code
func (c Card) String() string {
	return c.Code()
}

// FromCode parses a card code produced by Code.
func FromCode(code string) (Card, error) {
	if len(code) < 2 {
		return Card{}, fmt.Errorf("%w: %q too short", ErrMalformedCard, code)
	}

	rankStr, suitStr := code[:1], code[1:]
	if strings.HasPrefix(code, "10") {
		rankStr, suitStr = "10", code[2:]
	}

	rank, err := ParseRank(rankStr)
	if err != nil {
		return Card{}, err
	}
	suit, err := ParseSuit(suitStr)
	if err != nil {
		return Card{}, err
	}
	return New(suit, rank), nil
}

// MarshalJSON encodes the card as its code.
func (c Card) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.Code())
}

// UnmarshalJSON decodes a card code.
func (c *Card) UnmarshalJSON(data []byte) error {
	var code string
	if err := json.Unmarshal(data, &code); err != nil {
		return err
	}
	parsed, err := FromCode(code)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// PointValue returns the card's point value. The whole deck totals 120.
func (c Card) PointValue() int {
	switch c.Rank {
	case Ace:
		return 11
	case King:
		return 4
	case Queen:
		return 3
	case Jack:
		return 2
	case Ten:
		return 10
	default:
		return 0
	}
}

// IsPermanentTrump reports whether the card is one of the six cards that are
// trump regardless of the declared suit: both black Queens and all four Jacks.
func (c Card) IsPermanentTrump() bool {
	if c.Rank == Jack {
		return true
	}
	return c.Rank == Queen && (c.Suit == Clubs || c.Suit == Spades)
}

// IsTrump reports whether the card is trump when trumpSuit is declared.
func (c Card) IsTrump(trumpSuit Suit) bool {
	return c.IsPermanentTrump() || c.Suit == trumpSuit
}

// TrumpOrder returns the card's position in the trump hierarchy for the given
// trump suit, higher winning, and false if the card is not trump. Permanent
// trumps rank above every suit trump: ♣Q=20 ♠Q=19 ♣J=18 ♠J=17 ♥J=16 ♦J=15,
// then A=14 K=13 Q=12 10=11 9=10 8=9 7=8 within the trump suit.
func (c Card) TrumpOrder(trumpSuit Suit) (int, bool) {
	if c.Rank == Queen {
		switch c.Suit {
		case Clubs:
			return 20, true
		case Spades:
			return 19, true
		}
	}
	if c.Rank == Jack {
		switch c.Suit {
		case Clubs:
			return 18, true
		case Spades:
			return 17, true
		case Hearts:
			return 16, true
		case Diamonds:
			return 15, true
		}
	}
	if c.Suit != trumpSuit {
		return 0, false
	}
	switch c.Rank {
	case Ace:
		return 14, true
	case King:
		return 13, true
	case Queen:
		return 12, true // only reachable for hearts/diamonds
	case Ten:
		return 11, true
	case Nine:
		return 10, true
	case Eight:
		return 9, true
	case Seven:
		return 8, true
	}
	return 0, false
}

// NonTrumpOrder returns the rank order used between side-suit cards.
func (c Card) NonTrumpOrder() int {
	return int(c.Rank)
}

// Beats reports whether c wins over other in a trick with the given trump and
// lead suits. A trump always beats a non-trump; between non-trumps only a card
// following the lead suit can win.
func (c Card) Beats(other Card, trumpSuit, leadSuit Suit) bool {
	co, cTrump := c.TrumpOrder(trumpSuit)
	oo, oTrump := other.TrumpOrder(trumpSuit)

	switch {
	case cTrump && oTrump:
		return co > oo
	case cTrump:
		return true
	case oTrump:
		return false
	}

	if c.Suit == leadSuit && other.Suit != leadSuit {
		return true
	}
	if c.Suit == leadSuit && other.Suit == leadSuit {
		return c.NonTrumpOrder() > other.NonTrumpOrder()
	}
	// A side card off the lead suit never unseats the standing winner.
	return false
}
