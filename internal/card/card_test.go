package card

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCardCodes(t *testing.T) {
	tests := []struct {
		card Card
		code string
	}{
		{New(Spades, Ace), "AS"},
		{New(Clubs, Queen), "QC"},
		{New(Hearts, Ten), "10H"},
		{New(Diamonds, Seven), "7D"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.code, tt.card.Code())

		parsed, err := FromCode(tt.code)
		require.NoError(t, err)
		assert.Equal(t, tt.card, parsed)
	}
}

func TestFromCodeMalformed(t *testing.T) {
	for _, code := range []string{"", "A", "1H", "11S", "AX", "10", "JJH"} {
		_, err := FromCode(code)
		assert.ErrorIs(t, err, ErrMalformedCard, "code %q", code)
	}
}

func TestDeckPointsTotal120(t *testing.T) {
	total := 0
	for _, suit := range Suits {
		for _, rank := range Ranks {
			total += New(suit, rank).PointValue()
		}
	}
	assert.Equal(t, 120, total)
}

func TestPermanentTrumps(t *testing.T) {
	permanents := []Card{
		New(Clubs, Queen),
		New(Spades, Queen),
		New(Clubs, Jack),
		New(Spades, Jack),
		New(Hearts, Jack),
		New(Diamonds, Jack),
	}
	for _, c := range permanents {
		assert.True(t, c.IsPermanentTrump(), "%s", c)
		// Permanent trumps are trump regardless of the declared suit.
		for _, suit := range Suits {
			assert.True(t, c.IsTrump(suit), "%s with %s trump", c, suit.Name())
		}
	}

	assert.False(t, New(Hearts, Queen).IsPermanentTrump())
	assert.False(t, New(Diamonds, Queen).IsPermanentTrump())
	assert.False(t, New(Clubs, King).IsPermanentTrump())
}

func TestTrumpOrderHierarchy(t *testing.T) {
	// With hearts trump, descending order of the full trump ladder.
	ladder := []Card{
		New(Clubs, Queen),
		New(Spades, Queen),
		New(Clubs, Jack),
		New(Spades, Jack),
		New(Hearts, Jack),
		New(Diamonds, Jack),
		New(Hearts, Ace),
		New(Hearts, King),
		New(Hearts, Queen),
		New(Hearts, Ten),
		New(Hearts, Nine),
		New(Hearts, Eight),
		New(Hearts, Seven),
	}

	want := 20
	for _, c := range ladder {
		order, ok := c.TrumpOrder(Hearts)
		require.True(t, ok, "%s should be trump", c)
		assert.Equal(t, want, order, "%s", c)
		want--
	}

	_, ok := New(Spades, Ace).TrumpOrder(Hearts)
	assert.False(t, ok)
}

func TestBeats(t *testing.T) {
	trump := Hearts

	tests := []struct {
		name     string
		card     Card
		other    Card
		leadSuit Suit
		beats    bool
	}{
		{"club queen beats spade queen", New(Clubs, Queen), New(Spades, Queen), Spades, true},
		{"any trump beats non-trump", New(Hearts, Seven), New(Spades, Ace), Spades, true},
		{"non-trump loses to trump", New(Spades, Ace), New(Hearts, Seven), Spades, false},
		{"higher lead suit wins", New(Spades, Ace), New(Spades, King), Spades, true},
		{"off-suit never wins", New(Diamonds, Ace), New(Spades, Seven), Spades, false},
		{"diamond jack beats trump ace", New(Diamonds, Jack), New(Hearts, Ace), Hearts, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.beats, tt.card.Beats(tt.other, trump, tt.leadSuit))
		})
	}
}

func TestParseSuitNames(t *testing.T) {
	for _, suit := range Suits {
		fromName, err := ParseSuit(suit.Name())
		require.NoError(t, err)
		assert.Equal(t, suit, fromName)

		fromCode, err := ParseSuit(suit.String())
		require.NoError(t, err)
		assert.Equal(t, suit, fromCode)
	}
}
