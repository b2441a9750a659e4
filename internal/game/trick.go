// Package game implements the Sjavs rules engines: trick resolution, game
// scoring, the cross countdown, and the per-match state machine. Everything
// here is pure; persistence and fan-out live elsewhere.
package game

import (
	"github.com/sjavsgame/sjavs-server/internal/card"
)

// Team indexes one of the two fixed partnerships: seats 0/2 are team 0, seats
// 1/3 are team 1.
type Team int

// TeamOfSeat returns the fixed partnership a seat belongs to.
func TeamOfSeat(seat int) Team {
	return Team(seat % 2)
}

// PartnerSeat returns the seat sitting across.
func PartnerSeat(seat int) int {
	return (seat + 2) % 4
}

// PlayedCard is one card laid into a trick.
type PlayedCard struct {
	Seat int       `json:"seat"`
	Card card.Card `json:"card"`
}

// TrickState is the trick currently on the table.
type TrickState struct {
	TrickNumber   int          `json:"trick_number"`
	LeadSuit      *card.Suit   `json:"lead_suit,omitempty"`
	CardsPlayed   []PlayedCard `json:"cards_played"`
	CurrentPlayer int          `json:"current_player"`
	TrickWinner   *int         `json:"trick_winner,omitempty"`
	IsComplete    bool         `json:"is_complete"`
	TrumpSuit     card.Suit    `json:"trump_suit"`
}

// NewTrickState starts a trick with the given leader.
func NewTrickState(trickNumber, leader int, trumpSuit card.Suit) *TrickState {
	return &TrickState{
		TrickNumber:   trickNumber,
		CardsPlayed:   make([]PlayedCard, 0, 4),
		CurrentPlayer: leader,
		TrumpSuit:     trumpSuit,
	}
}

// Play accepts a card from the seat whose turn it is. Legality against the
// player's hand is the caller's job (LegalCards); this enforces turn order and
// trick bounds only.
func (t *TrickState) Play(seat int, c card.Card) error {
	if t.IsComplete {
		return NewError(CodeTrickAlreadyComplete, "trick %d is already complete", t.TrickNumber)
	}
	if seat != t.CurrentPlayer {
		return NewError(CodeNotYourTurn, "seat %d to play", t.CurrentPlayer)
	}

	if len(t.CardsPlayed) == 0 {
		// A led trump sets the trump suit as the suit to follow, so the
		// permanent trumps are led as trump, not as their printed suit.
		lead := c.Suit
		if c.IsTrump(t.TrumpSuit) {
			lead = t.TrumpSuit
		}
		t.LeadSuit = &lead
	}

	t.CardsPlayed = append(t.CardsPlayed, PlayedCard{Seat: seat, Card: c})

	if len(t.CardsPlayed) == 4 {
		t.IsComplete = true
		winner := t.winner()
		t.TrickWinner = &winner
		return nil
	}
	t.CurrentPlayer = (seat + 1) % 4
	return nil
}

// winner reduces the four played cards with Beats. Only call on a complete
// trick.
func (t *TrickState) winner() int {
	best := t.CardsPlayed[0]
	for _, pc := range t.CardsPlayed[1:] {
		if pc.Card.Beats(best.Card, t.TrumpSuit, *t.LeadSuit) {
			best = pc
		}
	}
	return best.Seat
}

// LegalCards returns the subset of the hand that may be played into this
// trick: everything when leading, otherwise follow suit if able.
func (t *TrickState) LegalCards(hand *card.Hand) []card.Card {
	return hand.Playable(t.TrumpSuit, t.LeadSuit)
}

// IsLegal reports whether playing c from hand satisfies follow-suit.
func (t *TrickState) IsLegal(hand *card.Hand, c card.Card) bool {
	for _, legal := range t.LegalCards(hand) {
		if legal == c {
			return true
		}
	}
	return false
}

// Points returns the card points laid into this trick so far.
func (t *TrickState) Points() int {
	total := 0
	for _, pc := range t.CardsPlayed {
		total += pc.Card.PointValue()
	}
	return total
}

// GameTrickState tracks a full 8-trick game: the live trick plus cumulative
// team totals and the completed-trick audit trail.
type GameTrickState struct {
	CurrentTrick    *TrickState  `json:"current_trick"`
	TrumpTricks     int          `json:"trump_team_tricks"`
	OpponentTricks  int          `json:"opponent_team_tricks"`
	TrumpPoints     int          `json:"trump_team_points"`
	OpponentPoints  int          `json:"opponent_team_points"`
	CompletedTricks []TrickState `json:"completed_tricks"`
	DeclarerSeat    int          `json:"trump_declarer"`
	PartnerSeat     int          `json:"trump_partner"`
	GameComplete    bool         `json:"game_complete"`
}

// NewGameTrickState starts trick 1 with the given leader and declarer.
func NewGameTrickState(leader int, trumpSuit card.Suit, declarer int) *GameTrickState {
	return &GameTrickState{
		CurrentTrick: NewTrickState(1, leader, trumpSuit),
		DeclarerSeat: declarer,
		PartnerSeat:  PartnerSeat(declarer),
	}
}

// OnTrumpTeam reports whether the seat declared trump or partners the
// declarer.
func (g *GameTrickState) OnTrumpTeam(seat int) bool {
	return seat == g.DeclarerSeat || seat == g.PartnerSeat
}

// TrickCompletion summarizes one resolved trick.
type TrickCompletion struct {
	Winner       int
	Points       int
	TrumpTeamWon bool
	GameComplete bool
	NextLeader   *int
	Trick        TrickState
}

// CompleteTrick folds the finished current trick into the cumulative totals
// and, unless it was the 8th, starts the next one with the winner leading.
func (g *GameTrickState) CompleteTrick() (*TrickCompletion, error) {
	trick := g.CurrentTrick
	if trick == nil || !trick.IsComplete {
		return nil, NewError(CodeWrongPhase, "current trick is not complete")
	}

	winner := *trick.TrickWinner
	points := trick.Points()
	trumpTeamWon := g.OnTrumpTeam(winner)

	if trumpTeamWon {
		g.TrumpTricks++
		g.TrumpPoints += points
	} else {
		g.OpponentTricks++
		g.OpponentPoints += points
	}
	g.CompletedTricks = append(g.CompletedTricks, *trick)

	result := &TrickCompletion{
		Winner:       winner,
		Points:       points,
		TrumpTeamWon: trumpTeamWon,
		Trick:        *trick,
	}

	if trick.TrickNumber == 8 {
		g.GameComplete = true
		result.GameComplete = true
		return result, nil
	}

	g.CurrentTrick = NewTrickState(trick.TrickNumber+1, winner, trick.TrumpSuit)
	result.NextLeader = &winner
	return result, nil
}

// IndividualVol reports whether a single trump-team seat won all 8 tricks.
// Opponent sweeps never qualify.
func (g *GameTrickState) IndividualVol() bool {
	if g.TrumpTricks != 8 || len(g.CompletedTricks) != 8 {
		return false
	}
	first := *g.CompletedTricks[0].TrickWinner
	for _, trick := range g.CompletedTricks[1:] {
		if *trick.TrickWinner != first {
			return false
		}
	}
	return g.OnTrumpTeam(first)
}

// FinalScoring snapshots the completed game for the scoring engine.
func (g *GameTrickState) FinalScoring() (*Scoring, error) {
	if !g.GameComplete {
		return nil, NewError(CodeWrongPhase, "game has %d of 8 tricks", len(g.CompletedTricks))
	}
	return &Scoring{
		TrumpTeamPoints:    g.TrumpPoints,
		OpponentTeamPoints: g.OpponentPoints,
		TrumpTeamTricks:    g.TrumpTricks,
		OpponentTeamTricks: g.OpponentTricks,
		TrumpSuit:          g.CurrentTrick.TrumpSuit,
		IndividualVol:      g.IndividualVol(),
	}, nil
}
