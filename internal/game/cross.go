package game

// Cross scoring: each fixed partnership starts at 24 and counts down; the
// first side to reach 0 or below wins the cross. The declarer's side changes
// from game to game, so the state is kept per fixed team and each game's
// deltas are mapped through the declaring team.

// CrossState is the countdown state for a rubber.
type CrossState struct {
	TeamRemaining  [2]int `json:"team_remaining"`
	TeamCrosses    [2]int `json:"team_crosses"`
	NextGameBonus  int    `json:"next_game_bonus"`
	TargetCrosses  int    `json:"target_crosses"`
	RubberComplete bool   `json:"rubber_complete"`
}

// NewCrossState starts a rubber of targetCrosses crosses with both teams at
// 24.
func NewCrossState(targetCrosses int) *CrossState {
	if targetCrosses < 1 {
		targetCrosses = 1
	}
	return &CrossState{
		TeamRemaining: [2]int{24, 24},
		TargetCrosses: targetCrosses,
	}
}

// CrossWinner describes a won cross.
type CrossWinner struct {
	Team          Team `json:"team"`
	DoubleVictory bool `json:"double_victory"`
	FinalScore    int  `json:"final_score"`
	CrossesWon    int  `json:"crosses_won"`
}

// CrossResult reports one game's effect on the countdown, with the trump-team
// side resolved to the declaring partnership.
type CrossResult struct {
	TrumpTeamOld    int          `json:"trump_team_old_score"`
	OpponentTeamOld int          `json:"opponent_team_old_score"`
	TrumpTeamNew    int          `json:"trump_team_new_score"`
	OpponentTeamNew int          `json:"opponent_team_new_score"`
	Winner          *CrossWinner `json:"cross_won,omitempty"`
	BonusApplied    int          `json:"bonus_applied"`
	NextGameBonus   int          `json:"next_game_bonus"`
	RubberComplete  bool         `json:"rubber_complete"`
}

// ApplyGameResult folds a scored game into the countdown. declarerTeam is the
// partnership that declared trump this game. A tie leaves both totals alone
// and banks +2 for the next decided game; otherwise the banked bonus goes to
// whichever side actually scored.
func (s *CrossState) ApplyGameResult(result GameResult, declarerTeam Team) CrossResult {
	opponentTeam := 1 - declarerTeam

	out := CrossResult{
		TrumpTeamOld:    s.TeamRemaining[declarerTeam],
		OpponentTeamOld: s.TeamRemaining[opponentTeam],
	}

	if result.IsTie() {
		s.NextGameBonus += 2
		out.TrumpTeamNew = out.TrumpTeamOld
		out.OpponentTeamNew = out.OpponentTeamOld
		out.NextGameBonus = s.NextGameBonus
		return out
	}

	trumpDelta := result.TrumpTeamDelta
	opponentDelta := result.OpponentTeamDelta
	out.BonusApplied = s.NextGameBonus
	if trumpDelta > 0 {
		trumpDelta += s.NextGameBonus
	} else {
		opponentDelta += s.NextGameBonus
	}
	s.NextGameBonus = 0

	s.TeamRemaining[declarerTeam] -= trumpDelta
	s.TeamRemaining[opponentTeam] -= opponentDelta

	out.TrumpTeamNew = s.TeamRemaining[declarerTeam]
	out.OpponentTeamNew = s.TeamRemaining[opponentTeam]
	out.Winner = s.checkCross()
	out.RubberComplete = s.RubberComplete
	return out
}

// checkCross awards a cross when a total drops to 0 or below and resets the
// countdown for the next cross of the rubber.
func (s *CrossState) checkCross() *CrossWinner {
	for team := Team(0); team <= 1; team++ {
		if s.TeamRemaining[team] > 0 {
			continue
		}

		loser := 1 - team
		s.TeamCrosses[team]++
		winner := &CrossWinner{
			Team:          team,
			DoubleVictory: s.TeamRemaining[loser] == 24,
			FinalScore:    s.TeamRemaining[team],
			CrossesWon:    s.TeamCrosses[team],
		}

		if s.TeamCrosses[team] >= s.TargetCrosses {
			s.RubberComplete = true
		} else {
			s.TeamRemaining = [2]int{24, 24}
			s.NextGameBonus = 0
		}
		return winner
	}
	return nil
}

// OnTheHook reports whether the team sits at exactly 6.
func (s *CrossState) OnTheHook(team Team) bool {
	return s.TeamRemaining[team] == 6
}

// CrossSummary is the display snapshot of a rubber.
type CrossSummary struct {
	TeamRemaining  [2]int  `json:"team_remaining"`
	TeamCrosses    [2]int  `json:"team_crosses"`
	TeamOnHook     [2]bool `json:"team_on_hook"`
	NextGameBonus  int     `json:"next_game_bonus"`
	TargetCrosses  int     `json:"target_crosses"`
	RubberComplete bool    `json:"rubber_complete"`
}

// Summary returns the current state for snapshots and events.
func (s *CrossState) Summary() CrossSummary {
	return CrossSummary{
		TeamRemaining:  s.TeamRemaining,
		TeamCrosses:    s.TeamCrosses,
		TeamOnHook:     [2]bool{s.OnTheHook(0), s.OnTheHook(1)},
		NextGameBonus:  s.NextGameBonus,
		TargetCrosses:  s.TargetCrosses,
		RubberComplete: s.RubberComplete,
	}
}
