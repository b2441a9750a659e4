package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sjavsgame/sjavs-server/internal/card"
)

func scoringFor(points int, suit card.Suit) Scoring {
	// Trick split is irrelevant for non-vol rows; keep it plausible.
	return Scoring{
		TrumpTeamPoints:    points,
		OpponentTeamPoints: 120 - points,
		TrumpTeamTricks:    4,
		OpponentTeamTricks: 4,
		TrumpSuit:          suit,
	}
}

func TestScoringTable(t *testing.T) {
	tests := []struct {
		name     string
		scoring  Scoring
		trump    int
		opponent int
		kind     ResultKind
	}{
		{"vol hearts", Scoring{TrumpTeamPoints: 120, TrumpTeamTricks: 8, TrumpSuit: card.Hearts}, 12, 0, ResultVol},
		{"vol clubs", Scoring{TrumpTeamPoints: 120, TrumpTeamTricks: 8, TrumpSuit: card.Clubs}, 16, 0, ResultVol},
		{"individual vol hearts", Scoring{TrumpTeamPoints: 120, TrumpTeamTricks: 8, TrumpSuit: card.Hearts, IndividualVol: true}, 16, 0, ResultIndividualVol},
		{"individual vol clubs", Scoring{TrumpTeamPoints: 120, TrumpTeamTricks: 8, TrumpSuit: card.Clubs, IndividualVol: true}, 24, 0, ResultIndividualVol},
		{"opponent vol flat 16", Scoring{OpponentTeamPoints: 120, OpponentTeamTricks: 8, TrumpSuit: card.Clubs}, 0, 16, ResultOpponentVol},
		{"high win", scoringFor(95, card.Hearts), 4, 0, ResultTrumpTeamWin},
		{"high win clubs", scoringFor(95, card.Clubs), 8, 0, ResultTrumpTeamWin},
		{"normal win", scoringFor(75, card.Hearts), 2, 0, ResultTrumpTeamWin},
		{"normal win clubs", scoringFor(78, card.Clubs), 4, 0, ResultTrumpTeamWin},
		{"avoided double", scoringFor(35, card.Hearts), 0, 4, ResultOpponentWin},
		{"avoided double clubs", scoringFor(35, card.Clubs), 0, 8, ResultOpponentWin},
		{"double loss", scoringFor(25, card.Hearts), 0, 8, ResultOpponentDouble},
		{"double loss clubs", scoringFor(25, card.Clubs), 0, 16, ResultOpponentDouble},
		{"zero points", scoringFor(0, card.Hearts), 0, 8, ResultOpponentDouble},
		{"tie", scoringFor(60, card.Clubs), 0, 0, ResultTie},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.scoring.GameResult()
			assert.Equal(t, tt.trump, result.TrumpTeamDelta)
			assert.Equal(t, tt.opponent, result.OpponentTeamDelta)
			assert.Equal(t, tt.kind, result.Kind)
			assert.NotEmpty(t, result.Description)
		})
	}
}

// Sweeps the full point range for both trump-suit classes: exactly one side
// scores in every non-tie game, and the deltas follow the banded table.
func TestScoringTableExhaustive(t *testing.T) {
	for _, suit := range []card.Suit{card.Clubs, card.Hearts} {
		clubs := suit == card.Clubs
		for points := 0; points <= 120; points++ {
			result := scoringFor(points, suit).GameResult()

			if points == 60 {
				assert.True(t, result.IsTie())
				assert.Zero(t, result.TrumpTeamDelta)
				assert.Zero(t, result.OpponentTeamDelta)
				continue
			}

			var wantTrump, wantOpponent int
			switch {
			case points >= 90:
				wantTrump = pickDelta(clubs, 8, 4)
			case points >= 61:
				wantTrump = pickDelta(clubs, 4, 2)
			case points >= 31:
				wantOpponent = pickDelta(clubs, 8, 4)
			default:
				wantOpponent = pickDelta(clubs, 16, 8)
			}

			assert.Equal(t, wantTrump, result.TrumpTeamDelta, "points=%d clubs=%v", points, clubs)
			assert.Equal(t, wantOpponent, result.OpponentTeamDelta, "points=%d clubs=%v", points, clubs)
			assert.False(t, result.TrumpTeamDelta > 0 && result.OpponentTeamDelta > 0)
		}
	}
}

func pickDelta(clubs bool, clubsDelta, otherDelta int) int {
	if clubs {
		return clubsDelta
	}
	return otherDelta
}

func TestAvoidedDoubleLoss(t *testing.T) {
	assert.False(t, scoringFor(30, card.Hearts).AvoidedDoubleLoss())
	assert.True(t, scoringFor(31, card.Hearts).AvoidedDoubleLoss())
	assert.True(t, scoringFor(59, card.Hearts).AvoidedDoubleLoss())
	assert.False(t, scoringFor(60, card.Hearts).AvoidedDoubleLoss())
}

func TestValidTotals(t *testing.T) {
	s := scoringFor(75, card.Hearts)
	require.True(t, s.ValidTotals())

	s.OpponentTeamPoints = 50
	assert.False(t, s.ValidTotals())
}
