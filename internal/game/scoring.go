package game

import (
	"fmt"

	"github.com/sjavsgame/sjavs-server/internal/card"
)

// ResultKind classifies a completed game.
type ResultKind string

const (
	ResultTrumpTeamWin   ResultKind = "trump_team_win"
	ResultOpponentWin    ResultKind = "opponent_win"
	ResultOpponentDouble ResultKind = "opponent_double_win"
	ResultVol            ResultKind = "vol"
	ResultIndividualVol  ResultKind = "individual_vol"
	ResultOpponentVol    ResultKind = "opponent_vol"
	ResultTie            ResultKind = "tie"
)

// Scoring is the completed-game input to the scoring table.
type Scoring struct {
	TrumpTeamPoints    int       `json:"trump_team_points"`
	OpponentTeamPoints int       `json:"opponent_team_points"`
	TrumpTeamTricks    int       `json:"trump_team_tricks"`
	OpponentTeamTricks int       `json:"opponent_team_tricks"`
	TrumpSuit          card.Suit `json:"trump_suit"`
	IndividualVol      bool      `json:"individual_vol"`
}

// GameResult is a scored game: the cross deltas for each side and the kind of
// result achieved.
type GameResult struct {
	TrumpTeamDelta    int        `json:"trump_team_score"`
	OpponentTeamDelta int        `json:"opponent_team_score"`
	Kind              ResultKind `json:"result_type"`
	Description       string     `json:"description"`
	IndividualVol     bool       `json:"individual_vol"`
}

// IsTie reports whether the game ended 60-60.
func (r GameResult) IsTie() bool { return r.Kind == ResultTie }

// ValidTotals reports whether the inputs account for the full deck and all 8
// tricks.
func (s Scoring) ValidTotals() bool {
	return s.TrumpTeamPoints+s.OpponentTeamPoints == 120 &&
		s.TrumpTeamTricks+s.OpponentTeamTricks == 8
}

// AvoidedDoubleLoss reports whether the trump team stayed out of the double
// band despite losing ("at vera javnfrujur").
func (s Scoring) AvoidedDoubleLoss() bool {
	return s.TrumpTeamPoints >= 31 && s.TrumpTeamPoints <= 59
}

// GameResult applies the Sjavs scoring table. Clubs trump pays a premium on
// every row except an opponent Vol, which is a flat 16.
func (s Scoring) GameResult() GameResult {
	clubs := s.TrumpSuit == card.Clubs

	pick := func(clubsDelta, otherDelta int) int {
		if clubs {
			return clubsDelta
		}
		return otherDelta
	}

	switch {
	case s.TrumpTeamTricks == 8 && s.IndividualVol:
		delta := pick(24, 16)
		return GameResult{
			TrumpTeamDelta: delta,
			Kind:           ResultIndividualVol,
			Description:    fmt.Sprintf("Individual vol - %d points for trump team", delta),
			IndividualVol:  true,
		}
	case s.TrumpTeamTricks == 8:
		delta := pick(16, 12)
		return GameResult{
			TrumpTeamDelta: delta,
			Kind:           ResultVol,
			Description:    fmt.Sprintf("Vol - %d points for trump team", delta),
		}
	case s.OpponentTeamTricks == 8:
		return GameResult{
			OpponentTeamDelta: 16,
			Kind:              ResultOpponentVol,
			Description:       "Opponents won all tricks - 16 points",
		}
	case s.TrumpTeamPoints == 60 && s.OpponentTeamPoints == 60:
		return GameResult{
			Kind:        ResultTie,
			Description: "Tie at 60-60 - no score, next game worth 2 extra points",
		}
	case s.TrumpTeamPoints >= 90:
		delta := pick(8, 4)
		return GameResult{
			TrumpTeamDelta: delta,
			Kind:           ResultTrumpTeamWin,
			Description:    fmt.Sprintf("Trump team 90-120 points - %d points", delta),
		}
	case s.TrumpTeamPoints >= 61:
		delta := pick(4, 2)
		return GameResult{
			TrumpTeamDelta: delta,
			Kind:           ResultTrumpTeamWin,
			Description:    fmt.Sprintf("Trump team 61-89 points - %d points", delta),
		}
	case s.TrumpTeamPoints >= 31:
		delta := pick(8, 4)
		return GameResult{
			OpponentTeamDelta: delta,
			Kind:              ResultOpponentWin,
			Description:       fmt.Sprintf("Trump team 31-59 points (avoided double) - opponents get %d points", delta),
		}
	default:
		delta := pick(16, 8)
		return GameResult{
			OpponentTeamDelta: delta,
			Kind:              ResultOpponentDouble,
			Description:       fmt.Sprintf("Trump team 0-30 points (double loss) - opponents get %d points", delta),
		}
	}
}
