package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sjavsgame/sjavs-server/internal/card"
)

func TestTrickTurnOrder(t *testing.T) {
	trick := NewTrickState(1, 2, card.Hearts)

	err := trick.Play(0, card.New(card.Spades, card.Ace))
	assert.ErrorIs(t, err, NewError(CodeNotYourTurn, ""))

	require.NoError(t, trick.Play(2, card.New(card.Spades, card.Ace)))
	assert.Equal(t, 3, trick.CurrentPlayer)
	require.NotNil(t, trick.LeadSuit)
	assert.Equal(t, card.Spades, *trick.LeadSuit)
}

func TestTrickWinnerHighestLeadCard(t *testing.T) {
	trick := NewTrickState(1, 0, card.Hearts)

	require.NoError(t, trick.Play(0, card.New(card.Spades, card.Seven)))
	require.NoError(t, trick.Play(1, card.New(card.Spades, card.Eight)))
	require.NoError(t, trick.Play(2, card.New(card.Spades, card.Nine)))
	require.NoError(t, trick.Play(3, card.New(card.Spades, card.Ace)))

	require.True(t, trick.IsComplete)
	require.NotNil(t, trick.TrickWinner)
	assert.Equal(t, 3, *trick.TrickWinner)
	assert.Equal(t, 11, trick.Points())

	err := trick.Play(0, card.New(card.Hearts, card.Seven))
	assert.ErrorIs(t, err, NewError(CodeTrickAlreadyComplete, ""))
}

func TestTrickTrumpTakesLead(t *testing.T) {
	trick := NewTrickState(1, 0, card.Hearts)

	require.NoError(t, trick.Play(0, card.New(card.Spades, card.Ace)))
	require.NoError(t, trick.Play(1, card.New(card.Hearts, card.Seven)))
	require.NoError(t, trick.Play(2, card.New(card.Spades, card.King)))
	require.NoError(t, trick.Play(3, card.New(card.Diamonds, card.Jack)))

	// The diamond jack is a permanent trump and outranks the heart seven.
	assert.Equal(t, 3, *trick.TrickWinner)
}

func TestTrickPermanentTrumpLedSetsTrumpLead(t *testing.T) {
	trick := NewTrickState(1, 0, card.Hearts)

	require.NoError(t, trick.Play(0, card.New(card.Clubs, card.Jack)))
	require.NotNil(t, trick.LeadSuit)
	assert.Equal(t, card.Hearts, *trick.LeadSuit, "permanent trump leads as trump")

	// A seat holding trump must follow it.
	hand := card.NewHand([]card.Card{
		card.New(card.Hearts, card.Nine),
		card.New(card.Clubs, card.Ace),
	}, 1)
	legal := trick.LegalCards(hand)
	require.Len(t, legal, 1)
	assert.Equal(t, card.New(card.Hearts, card.Nine), legal[0])
}

func TestTrickFollowSuitEnforced(t *testing.T) {
	trick := NewTrickState(1, 0, card.Hearts)
	require.NoError(t, trick.Play(0, card.New(card.Spades, card.King)))

	// Holding a spade: the club queen (permanent trump) is not a legal
	// discard, the spade must be followed.
	hand := card.NewHand([]card.Card{
		card.New(card.Spades, card.Ace),
		card.New(card.Clubs, card.Queen),
	}, 1)
	assert.False(t, trick.IsLegal(hand, card.New(card.Clubs, card.Queen)))
	assert.True(t, trick.IsLegal(hand, card.New(card.Spades, card.Ace)))

	// Void in spades: trumping in is allowed.
	void := card.NewHand([]card.Card{
		card.New(card.Clubs, card.Ace),
		card.New(card.Hearts, card.Nine),
	}, 2)
	assert.True(t, trick.IsLegal(void, card.New(card.Hearts, card.Nine)))
	assert.True(t, trick.IsLegal(void, card.New(card.Clubs, card.Ace)))
}

func playTrick(t *testing.T, g *GameTrickState, plays [4]card.Card) *TrickCompletion {
	t.Helper()
	seat := g.CurrentTrick.CurrentPlayer
	for i := 0; i < 4; i++ {
		require.NoError(t, g.CurrentTrick.Play(seat, plays[i]))
		seat = (seat + 1) % 4
	}
	result, err := g.CompleteTrick()
	require.NoError(t, err)
	return result
}

func TestGameTrickStateAccumulates(t *testing.T) {
	// Declarer seat 1, hearts trump, seat 0 leads.
	g := NewGameTrickState(0, card.Hearts, 1)
	require.Equal(t, 3, g.PartnerSeat)

	result := playTrick(t, g, [4]card.Card{
		card.New(card.Spades, card.Seven),  // seat 0
		card.New(card.Hearts, card.Seven),  // seat 1 trumps in
		card.New(card.Spades, card.Nine),   // seat 2
		card.New(card.Spades, card.Ten),    // seat 3
	})

	assert.Equal(t, 1, result.Winner)
	assert.True(t, result.TrumpTeamWon)
	assert.Equal(t, 10, result.Points)
	assert.False(t, result.GameComplete)
	require.NotNil(t, result.NextLeader)
	assert.Equal(t, 1, *result.NextLeader)

	assert.Equal(t, 1, g.TrumpTricks)
	assert.Equal(t, 0, g.OpponentTricks)
	assert.Equal(t, 10, g.TrumpPoints)
	assert.Equal(t, 2, g.CurrentTrick.TrickNumber)
	assert.Equal(t, 1, g.CurrentTrick.CurrentPlayer)
}

func TestCompleteTrickRequiresFullTrick(t *testing.T) {
	g := NewGameTrickState(0, card.Hearts, 0)
	require.NoError(t, g.CurrentTrick.Play(0, card.New(card.Spades, card.Seven)))

	_, err := g.CompleteTrick()
	assert.Error(t, err)
}

func TestIndividualVolDetection(t *testing.T) {
	winner := 2
	g := &GameTrickState{DeclarerSeat: 2, PartnerSeat: 0, TrumpTricks: 8, GameComplete: true}
	for i := 1; i <= 8; i++ {
		g.CompletedTricks = append(g.CompletedTricks, TrickState{
			TrickNumber: i, TrickWinner: &winner, IsComplete: true, TrumpSuit: card.Clubs,
		})
	}
	assert.True(t, g.IndividualVol())

	// Split between declarer and partner: vol but not individual.
	partner := 0
	g.CompletedTricks[3].TrickWinner = &partner
	assert.False(t, g.IndividualVol())
}

func TestIndividualVolNeverForOpponents(t *testing.T) {
	winner := 1
	g := &GameTrickState{DeclarerSeat: 2, PartnerSeat: 0, OpponentTricks: 8, GameComplete: true}
	for i := 1; i <= 8; i++ {
		g.CompletedTricks = append(g.CompletedTricks, TrickState{
			TrickNumber: i, TrickWinner: &winner, IsComplete: true, TrumpSuit: card.Clubs,
		})
	}
	assert.False(t, g.IndividualVol())
}

func TestFinalScoringGate(t *testing.T) {
	g := NewGameTrickState(0, card.Hearts, 1)
	_, err := g.FinalScoring()
	assert.Error(t, err)

	g.GameComplete = true
	g.TrumpPoints, g.OpponentPoints = 70, 50
	g.TrumpTricks, g.OpponentTricks = 5, 3

	scoring, err := g.FinalScoring()
	require.NoError(t, err)
	assert.True(t, scoring.ValidTotals())
	assert.Equal(t, card.Hearts, scoring.TrumpSuit)
}
