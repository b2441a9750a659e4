package server

import (
	"context"

	"github.com/sjavsgame/sjavs-server/internal/game"
)

// Dealing progress values derived from how many seats hold a stored hand.
const (
	dealingStarting = "starting"
	dealingDealing  = "dealing"
	dealingComplete = "complete"
)

// SendSnapshot builds the phase-specific initial state for the caller's match
// and delivers it to them alone. The snapshot timestamp dominates every event
// stamped before the build, so the client can drop stale live events.
func (s *GameService) SendSnapshot(ctx context.Context, userID string) error {
	msg, err := s.BuildSnapshot(ctx, userID)
	if err != nil {
		return err
	}
	return s.registry.SendTo(userID, msg)
}

// BuildSnapshot assembles the snapshot message without sending it.
func (s *GameService) BuildSnapshot(ctx context.Context, userID string) (*Message, error) {
	snapshotTs := s.clock.SnapshotMs()

	m, err := s.loadMatchForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	var payload any
	switch m.Status {
	case game.StatusWaiting:
		payload, err = s.waitingSnapshot(ctx, m, userID)
	case game.StatusDealing:
		payload, err = s.dealingSnapshot(ctx, m)
	case game.StatusBidding:
		payload, err = s.biddingSnapshot(ctx, m, userID)
	case game.StatusPlaying:
		payload, err = s.playingSnapshot(ctx, m, userID)
	default:
		payload, err = s.completedSnapshot(ctx, m, userID)
	}
	if err != nil {
		return nil, err
	}

	msg, err := NewEvent(initialStateType(m.Status), m.ID, m.Status, snapshotTs, payload)
	if err != nil {
		return nil, game.Infrastructure(err)
	}
	return msg, nil
}

func (s *GameService) waitingSnapshot(ctx context.Context, m *game.Match, userID string) (*WaitingSnapshot, error) {
	isHost := m.IsHost(userID)
	return &WaitingSnapshot{
		Players:       s.playerInfos(ctx, m),
		IsHost:        isHost,
		PlayersNeeded: game.MaxPlayers - len(m.Players),
		CanStart:      isHost && len(m.Players) == game.MaxPlayers,
	}, nil
}

func (s *GameService) dealingSnapshot(ctx context.Context, m *game.Match) (*DealingSnapshot, error) {
	stored, err := s.store.StoredHandCount(ctx, m.ID)
	if err != nil {
		return nil, err
	}
	progress := dealingDealing
	switch {
	case stored == 0:
		progress = dealingStarting
	case stored == game.MaxPlayers:
		progress = dealingComplete
	}
	return &DealingSnapshot{
		DealerPosition:  m.DealerPosition,
		DealingProgress: progress,
	}, nil
}

func (s *GameService) biddingSnapshot(ctx context.Context, m *game.Match, userID string) (*BiddingSnapshot, error) {
	players := s.playerInfos(ctx, m)
	snap := &BiddingSnapshot{
		Players:        players,
		DealerPosition: m.DealerPosition,
		CurrentBidder:  m.CurrentBidder,
		PassedSeats:    append([]int{}, m.BiddingPasses...),
		BidHistory:     make([]BidActionInfo, 0, len(m.BiddingPasses)+1),
	}
	name := func(seat int) string {
		if seat < len(players) {
			return players[seat].Username
		}
		return ""
	}
	if m.HighestBidder != nil {
		snap.HighestBid = &BidInfo{Length: m.HighestBidLength, Bidder: *m.HighestBidder}
		snap.BidHistory = append(snap.BidHistory, BidActionInfo{
			Seat:     *m.HighestBidder,
			Username: name(*m.HighestBidder),
			Action:   "bid",
			Length:   m.HighestBidLength,
		})
	}
	for _, seat := range m.BiddingPasses {
		snap.BidHistory = append(snap.BidHistory, BidActionInfo{Seat: seat, Username: name(seat), Action: "pass"})
	}

	// The caller's hand only; everyone else sees the public auction state.
	if seat, seated := m.SeatOf(userID); seated {
		hand, err := s.store.LoadHand(ctx, m.ID, seat)
		if err != nil {
			return nil, err
		}
		if hand != nil {
			state := s.handState(hand, m)
			state.CanBid = state.CanBid && m.CurrentBidder != nil && *m.CurrentBidder == seat
			state.CanPass = m.CurrentBidder != nil && *m.CurrentBidder == seat
			snap.Hand = &state
		}
	}
	return snap, nil
}

func (s *GameService) playingSnapshot(ctx context.Context, m *game.Match, userID string) (*PlayingSnapshot, error) {
	state, err := s.store.LoadTrickState(ctx, m.ID)
	if err != nil {
		return nil, err
	}
	if state == nil {
		return nil, game.NewError(game.CodeWrongPhase, "no trick in progress")
	}

	names := s.store.Usernames(ctx, m.Players)
	trick := state.CurrentTrick
	played := make([]PlayedCardInfo, 0, len(trick.CardsPlayed))
	for _, pc := range trick.CardsPlayed {
		info := PlayedCardInfo{Seat: pc.Seat, CardCode: pc.Card.Code()}
		if pc.Seat < len(names) {
			info.Username = names[pc.Seat]
		}
		played = append(played, info)
	}

	declarer := state.DeclarerSeat
	snap := &PlayingSnapshot{
		Players:       s.playerInfos(ctx, m),
		TrumpSuit:     trick.TrumpSuit.Name(),
		Declarer:      declarer,
		TrumpTeam:     [2]int{declarer, state.PartnerSeat},
		OpponentTeam:  [2]int{(declarer + 1) % 4, (declarer + 3) % 4},
		TrickNumber:   trick.TrickNumber,
		CardsPlayed:   played,
		CurrentPlayer: trick.CurrentPlayer,
		CurrentLeader: m.CurrentLeader,
		Score:         scoreData(state),
	}

	if seat, seated := m.SeatOf(userID); seated {
		hand, err := s.store.LoadHand(ctx, m.ID, seat)
		if err != nil {
			return nil, err
		}
		if hand != nil {
			snap.Hand = hand.Codes()
			// Legal cards are meaningful only on the caller's turn.
			if !state.GameComplete && seat == trick.CurrentPlayer {
				for _, c := range trick.LegalCards(hand) {
					snap.LegalCards = append(snap.LegalCards, c.Code())
				}
			}
		}
	}
	return snap, nil
}

func (s *GameService) completedSnapshot(ctx context.Context, m *game.Match, userID string) (*CompletedSnapshot, error) {
	snap := &CompletedSnapshot{
		Players: s.playerInfos(ctx, m),
	}

	result, err := s.loadStoredResult(ctx, m.ID)
	if err != nil {
		return nil, err
	}
	if result != nil {
		snap.LastResult = result
		summary := result.CrossStateAfter
		snap.CrossState = &summary
	}
	if cross, err := s.store.LoadCrossState(ctx, m.ID); err == nil && cross != nil {
		summary := cross.Summary()
		snap.CrossState = &summary
	}

	if m.Status != game.StatusCancelled && snap.CrossState != nil {
		snap.CanStartNewGame = m.IsHost(userID) && !snap.CrossState.RubberComplete
	}
	return snap, nil
}
