package card

import (
	"fmt"
	"sort"
)

// Hand is a player's cards plus the bid analysis derived from them.
type Hand struct {
	Cards []Card
	Seat  int
}

// NewHand creates a sorted hand for the given seat.
func NewHand(cards []Card, seat int) *Hand {
	h := &Hand{Cards: append([]Card(nil), cards...), Seat: seat}
	SortHand(h.Cards)
	return h
}

// HandFromCodes rebuilds a hand from stored card codes.
func HandFromCodes(codes []string, seat int) (*Hand, error) {
	cards := make([]Card, 0, len(codes))
	for _, code := range codes {
		c, err := FromCode(code)
		if err != nil {
			return nil, err
		}
		cards = append(cards, c)
	}
	return NewHand(cards, seat), nil
}

// Codes returns the hand as card codes for storage and transmission.
func (h *Hand) Codes() []string {
	codes := make([]string, len(h.Cards))
	for i, c := range h.Cards {
		codes[i] = c.Code()
	}
	return codes
}

// Contains reports whether the hand holds the card.
func (h *Hand) Contains(c Card) bool {
	for _, held := range h.Cards {
		if held == c {
			return true
		}
	}
	return false
}

// Remove takes the card out of the hand, reporting whether it was held.
func (h *Hand) Remove(c Card) bool {
	for i, held := range h.Cards {
		if held == c {
			h.Cards = append(h.Cards[:i], h.Cards[i+1:]...)
			return true
		}
	}
	return false
}

// PointValue returns the total card points held.
func (h *Hand) PointValue() int {
	total := 0
	for _, c := range h.Cards {
		total += c.PointValue()
	}
	return total
}

// TrumpCounts returns the trump count per candidate trump suit.
func (h *Hand) TrumpCounts() map[Suit]int {
	return TrumpCounts(h.Cards)
}

// BidOption is a declaration a player could make.
type BidOption struct {
	Length          int    `json:"length"`
	Suit            Suit   `json:"-"`
	SuitName        string `json:"suit"`
	DisplayText     string `json:"display_text"`
	ClubDeclaration bool   `json:"is_club_declaration"`
}

// AvailableBids returns the declarations this hand can legally make given the
// standing highest bid (length 0 if nobody has bid). A bid normally has to
// exceed the standing length; clubs may also match a non-club standing bid,
// since an equal-length club declaration outranks it.
func (h *Hand) AvailableBids(highestLength int, highestIsClubs bool) []BidOption {
	counts := h.TrumpCounts()
	minBid := 5
	if highestLength >= 5 {
		minBid = highestLength + 1
	}

	var bids []BidOption
	for _, suit := range Suits {
		count := counts[suit]
		switch {
		case count >= minBid:
			for length := minBid; length <= count; length++ {
				bids = append(bids, newBidOption(length, suit))
			}
		case suit == Clubs && highestLength >= 5 && !highestIsClubs && count == highestLength:
			bids = append(bids, newBidOption(count, suit))
		}
	}

	// Length ascending, clubs after other suits of the same length.
	sort.SliceStable(bids, func(i, j int) bool {
		if bids[i].Length != bids[j].Length {
			return bids[i].Length < bids[j].Length
		}
		return !bids[i].ClubDeclaration && bids[j].ClubDeclaration
	})
	return bids
}

func newBidOption(length int, suit Suit) BidOption {
	text := fmt.Sprintf("%d trumps (%s)", length, suit.Name())
	if suit == Clubs {
		text += " - club declaration"
	}
	return BidOption{
		Length:          length,
		Suit:            suit,
		SuitName:        suit.Name(),
		DisplayText:     text,
		ClubDeclaration: suit == Clubs,
	}
}

// BestBid returns the strongest declaration available, preferring clubs on
// ties, or false if the hand cannot open.
func (h *Hand) BestBid() (BidOption, bool) {
	counts := h.TrumpCounts()
	best := 0
	for _, n := range counts {
		if n > best {
			best = n
		}
	}
	if best < 5 {
		return BidOption{}, false
	}
	if counts[Clubs] == best {
		return newBidOption(best, Clubs), true
	}
	for _, suit := range Suits {
		if counts[suit] == best {
			return newBidOption(best, suit), true
		}
	}
	return BidOption{}, false
}

// CanBid reports whether the hand holds 5+ trumps in any suit.
func (h *Hand) CanBid() bool {
	_, ok := h.BestBid()
	return ok
}

// Playable returns the cards that may legally be played. With no lead suit
// any card may be led. Otherwise the player must follow the lead suit if
// able; for this purpose permanent trumps belong to the trump suit, not the
// suit printed on them.
func (h *Hand) Playable(trumpSuit Suit, leadSuit *Suit) []Card {
	if leadSuit == nil {
		return append([]Card(nil), h.Cards...)
	}

	var following []Card
	for _, c := range h.Cards {
		if followsSuit(c, trumpSuit, *leadSuit) {
			following = append(following, c)
		}
	}
	if len(following) > 0 {
		return following
	}
	return append([]Card(nil), h.Cards...)
}

func followsSuit(c Card, trumpSuit, leadSuit Suit) bool {
	if leadSuit == trumpSuit {
		return c.IsTrump(trumpSuit)
	}
	return c.Suit == leadSuit && !c.IsPermanentTrump()
}
