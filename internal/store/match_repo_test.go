package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sjavsgame/sjavs-server/internal/card"
	"github.com/sjavsgame/sjavs-server/internal/game"
)

func TestMatchHashRoundTripMinimal(t *testing.T) {
	m := game.NewMatch("m1", "1234", "host", 2, 987654)

	restored, err := matchFromHash("m1", stringify(matchToHash(m)))
	require.NoError(t, err)

	assert.Equal(t, m.ID, restored.ID)
	assert.Equal(t, m.Pin, restored.Pin)
	assert.Equal(t, game.StatusWaiting, restored.Status)
	assert.Equal(t, 2, restored.NumberOfCrosses)
	assert.Equal(t, int64(987654), restored.CreatedTimestamp)
	assert.Nil(t, restored.DealerPosition)
	assert.Nil(t, restored.TrumpSuit)
	assert.Empty(t, restored.BiddingPasses)
}

func TestMatchHashRoundTripFull(t *testing.T) {
	dealer, bidder, leader, declarer, highest := 2, 3, 3, 1, 1
	clubs := card.Clubs

	m := game.NewMatch("m2", "4321", "host", 1, 5)
	m.Status = game.StatusBidding
	m.DealerPosition = &dealer
	m.CurrentBidder = &bidder
	m.CurrentLeader = &leader
	m.TrumpSuit = &clubs
	m.TrumpDeclarer = &declarer
	m.HighestBidLength = 6
	m.HighestBidder = &highest
	m.HighestBidSuit = &clubs
	m.BiddingPasses = []int{0, 2}
	m.CurrentCross = 1

	restored, err := matchFromHash("m2", stringify(matchToHash(m)))
	require.NoError(t, err)

	assert.Equal(t, game.StatusBidding, restored.Status)
	assert.Equal(t, 2, *restored.DealerPosition)
	assert.Equal(t, 3, *restored.CurrentBidder)
	assert.Equal(t, 3, *restored.CurrentLeader)
	assert.Equal(t, card.Clubs, *restored.TrumpSuit)
	assert.Equal(t, 1, *restored.TrumpDeclarer)
	assert.Equal(t, 6, restored.HighestBidLength)
	assert.Equal(t, 1, *restored.HighestBidder)
	assert.Equal(t, card.Clubs, *restored.HighestBidSuit)
	assert.Equal(t, []int{0, 2}, restored.BiddingPasses)
	assert.Equal(t, 1, restored.CurrentCross)
}

func TestMatchFromHashMissing(t *testing.T) {
	_, err := matchFromHash("gone", map[string]string{})
	assert.ErrorIs(t, err, game.NewError(game.CodeGameNotFound, ""))
}

func TestMatchFromHashCorrupt(t *testing.T) {
	h := stringify(matchToHash(game.NewMatch("m3", "1111", "host", 1, 1)))

	h["number_of_crosses"] = "many"
	_, err := matchFromHash("m3", h)
	assert.Error(t, err)

	h["number_of_crosses"] = "1"
	h["trump_suit"] = "stars"
	_, err = matchFromHash("m3", h)
	assert.Error(t, err)
}

func TestUnknownStatusDefaultsToWaiting(t *testing.T) {
	assert.Equal(t, game.StatusWaiting, game.ParseStatus("exploded"))
	assert.Equal(t, game.StatusPlaying, game.ParseStatus("playing"))
}

func TestKeyLayout(t *testing.T) {
	assert.Equal(t, "normal_match:abc", matchKey("abc"))
	assert.Equal(t, "normal_match:abc:players", matchPlayersKey("abc"))
	assert.Equal(t, "game_hands:abc:2", handKey("abc", 2))
	assert.Equal(t, "game_hand_analysis:abc:0", handAnalysisKey("abc", 0))
	assert.Equal(t, "game_trick_state:abc", trickStateKey("abc"))
	assert.Equal(t, "game_trick_history:abc:5", trickHistoryKey("abc", 5))
	assert.Equal(t, "cross_state:abc", crossStateKey("abc"))
	assert.Equal(t, "pubsub:game:abc", GameChannel("abc"))
}

func TestTrumpCountsByName(t *testing.T) {
	hand := card.NewHand([]card.Card{
		card.New(card.Clubs, card.Queen),
		card.New(card.Hearts, card.Ace),
	}, 0)

	counts := trumpCountsByName(hand)
	assert.Equal(t, 2, counts["hearts"])
	assert.Equal(t, 1, counts["spades"])
	assert.Equal(t, 1, counts["clubs"])
	assert.Equal(t, 1, counts["diamonds"])
}

// stringify mirrors what Redis hands back from HGETALL.
func stringify(h map[string]any) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		out[k] = v.(string)
	}
	return out
}
