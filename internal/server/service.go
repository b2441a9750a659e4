package server

import (
	"context"
	"encoding/json"
	"fmt"
	rand "math/rand/v2"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/sjavsgame/sjavs-server/internal/card"
	"github.com/sjavsgame/sjavs-server/internal/game"
	"github.com/sjavsgame/sjavs-server/internal/randutil"
)

// Transient infrastructure failures get one retry after a short backoff.
const retryBackoff = 50 * time.Millisecond

const maxPinAttempts = 100

// Storage is the persistence surface the service needs. *store.Store
// implements it; tests substitute an in-memory fake.
type Storage interface {
	SaveMatch(ctx context.Context, m *game.Match) error
	LoadMatch(ctx context.Context, matchID string) (*game.Match, error)
	SavePlayers(ctx context.Context, matchID string, players []string) error

	RegisterPin(ctx context.Context, pin, matchID string) error
	PinInUse(ctx context.Context, pin string) (bool, error)
	MatchIDByPin(ctx context.Context, pin string) (string, error)
	ReleasePin(ctx context.Context, pin string) error

	SetPlayerMatch(ctx context.Context, userID, matchID string) error
	PlayerMatch(ctx context.Context, userID string) (string, error)
	ClearPlayerMatch(ctx context.Context, userIDs ...string) error
	Username(ctx context.Context, userID string) string
	Usernames(ctx context.Context, userIDs []string) []string

	SaveHands(ctx context.Context, matchID string, hands [4][]card.Card) error
	SaveHand(ctx context.Context, matchID string, hand *card.Hand) error
	LoadHand(ctx context.Context, matchID string, seat int) (*card.Hand, error)
	StoredHandCount(ctx context.Context, matchID string) (int, error)

	SaveTrickState(ctx context.Context, matchID string, state *game.GameTrickState) error
	LoadTrickState(ctx context.Context, matchID string) (*game.GameTrickState, error)
	SaveTrickHistory(ctx context.Context, matchID string, trick game.TrickState) error

	SaveCrossState(ctx context.Context, matchID string, state *game.CrossState) error
	LoadCrossState(ctx context.Context, matchID string) (*game.CrossState, error)
	DeleteCrossState(ctx context.Context, matchID string) error

	SaveGameResult(ctx context.Context, matchID string, blob []byte) error
	LoadGameResult(ctx context.Context, matchID string) ([]byte, error)

	DeleteGameKeys(ctx context.Context, matchID string) error
	DeleteMatchKeys(ctx context.Context, matchID string) error

	PublishEvent(ctx context.Context, matchID string, payload []byte) error
}

// Subscriptions manages the per-match event channel subscriptions.
// *store.Subscriber implements it.
type Subscriptions interface {
	Subscribe(ctx context.Context, matchID string) error
	Unsubscribe(ctx context.Context, matchID string) error
}

// GameService is the command surface: one method per operation. Every method
// authenticates the actor, loads state, validates, persists, and emits events;
// nothing is mutated when validation fails.
type GameService struct {
	store    Storage
	subs     Subscriptions
	registry *Registry
	clock    *Clock
	logger   *log.Logger

	randMu sync.Mutex
	rng    *rand.Rand
}

// NewGameService wires the command handlers. A nil rng uses a time-seeded one.
func NewGameService(storage Storage, subs Subscriptions, registry *Registry, clock *Clock, rng *rand.Rand, logger *log.Logger) *GameService {
	if rng == nil {
		rng = randutil.NewFromTime()
	}
	return &GameService{
		store:    storage,
		subs:     subs,
		registry: registry,
		clock:    clock,
		logger:   logger.WithPrefix("service"),
		rng:      rng,
	}
}

// retry runs a command, repeating it once after a short backoff if it failed
// on transient infrastructure. Commands reload state on entry, so the second
// attempt revalidates from scratch.
func retry[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	out, err := fn()
	if err == nil || !game.IsTransient(err) {
		return out, err
	}

	timer := time.NewTimer(retryBackoff)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
		return out, err
	}
	return fn()
}

// CreateMatch creates a waiting match with the caller as host and returns its
// join pin.
func (s *GameService) CreateMatch(ctx context.Context, userID string, req CreateMatchData) (*MatchCreatedData, error) {
	return retry(ctx, func() (*MatchCreatedData, error) {
		existing, err := s.store.PlayerMatch(ctx, userID)
		if err != nil {
			return nil, err
		}
		if existing != "" {
			return nil, game.NewError(game.CodeWrongPhase, "already in an active match")
		}

		pin, err := s.allocatePin(ctx)
		if err != nil {
			return nil, err
		}

		m := game.NewMatch(uuid.NewString(), pin, userID, req.NumberOfCrosses, s.clock.NowMs())
		if err := s.store.SaveMatch(ctx, m); err != nil {
			return nil, err
		}
		if err := s.store.SavePlayers(ctx, m.ID, m.Players); err != nil {
			return nil, err
		}
		if err := s.store.RegisterPin(ctx, pin, m.ID); err != nil {
			return nil, err
		}
		if err := s.store.SetPlayerMatch(ctx, userID, m.ID); err != nil {
			return nil, err
		}
		if err := s.store.SaveCrossState(ctx, m.ID, game.NewCrossState(m.NumberOfCrosses)); err != nil {
			return nil, err
		}

		s.watchMatch(ctx, userID, m.ID)
		s.logger.Info("match created", "match_id", m.ID, "pin", pin, "host", userID)
		return &MatchCreatedData{MatchID: m.ID, Pin: pin}, nil
	})
}

func (s *GameService) allocatePin(ctx context.Context) (string, error) {
	for i := 0; i < maxPinAttempts; i++ {
		s.randMu.Lock()
		pin := fmt.Sprintf("%04d", s.rng.IntN(10000))
		s.randMu.Unlock()

		used, err := s.store.PinInUse(ctx, pin)
		if err != nil {
			return "", err
		}
		if !used {
			return pin, nil
		}
	}
	return "", game.Infrastructure(fmt.Errorf("no free pin after %d attempts", maxPinAttempts))
}

// JoinMatch seats the caller in the match behind the pin.
func (s *GameService) JoinMatch(ctx context.Context, userID string, req JoinMatchData) (*MatchJoinedData, error) {
	return retry(ctx, func() (*MatchJoinedData, error) {
		existing, err := s.store.PlayerMatch(ctx, userID)
		if err != nil {
			return nil, err
		}
		if existing != "" {
			return nil, game.NewError(game.CodeWrongPhase, "already in an active match")
		}

		matchID, err := s.store.MatchIDByPin(ctx, req.Pin)
		if err != nil {
			return nil, err
		}
		m, err := s.store.LoadMatch(ctx, matchID)
		if err != nil {
			return nil, err
		}

		seat, err := m.AddPlayer(userID)
		if err != nil {
			return nil, err
		}
		if err := s.store.SavePlayers(ctx, m.ID, m.Players); err != nil {
			return nil, err
		}
		if err := s.store.SetPlayerMatch(ctx, userID, m.ID); err != nil {
			return nil, err
		}

		s.watchMatch(ctx, userID, m.ID)
		username := s.store.Username(ctx, userID)
		s.publish(ctx, m, MessageTypePlayerJoined, PlayerJoinedData{
			Seat:     seat,
			UserID:   userID,
			Username: username,
		})

		s.logger.Info("player joined", "match_id", m.ID, "seat", seat, "user_id", userID)
		return &MatchJoinedData{
			MatchID: m.ID,
			Seat:    seat,
			Players: s.playerInfos(ctx, m),
		}, nil
	})
}

// LeaveMatch frees the caller's seat. A host leaving a waiting match, or any
// player leaving mid-game, terminates the whole match.
func (s *GameService) LeaveMatch(ctx context.Context, userID string) (*MatchLeftData, error) {
	return retry(ctx, func() (*MatchLeftData, error) {
		m, err := s.loadMatchForUser(ctx, userID)
		if err != nil {
			return nil, err
		}

		out, err := m.RemovePlayer(userID)
		if err != nil {
			return nil, err
		}

		if out.Cancelled {
			if err := s.terminateMatch(ctx, m, out); err != nil {
				return nil, err
			}
			return &MatchLeftData{OK: true, Cancelled: true}, nil
		}

		if err := s.store.SavePlayers(ctx, m.ID, m.Players); err != nil {
			return nil, err
		}
		if err := s.store.ClearPlayerMatch(ctx, userID); err != nil {
			return nil, err
		}
		s.publish(ctx, m, MessageTypePlayerLeft, PlayerLeftData{Seat: out.Seat, UserID: userID})
		s.unwatchMatch(ctx, userID)

		s.logger.Info("player left", "match_id", m.ID, "seat", out.Seat, "user_id", userID)
		return &MatchLeftData{OK: true}, nil
	})
}

// terminateMatch tears down a cancelled match: seats, pin, and every transient
// key go away, and everyone still watching is told why.
func (s *GameService) terminateMatch(ctx context.Context, m *game.Match, out game.LeaveOutcome) error {
	players := append([]string(nil), m.Players...)

	if err := s.store.SaveMatch(ctx, m); err != nil {
		return err
	}
	if err := s.store.ReleasePin(ctx, m.Pin); err != nil {
		return err
	}
	if err := s.store.DeleteMatchKeys(ctx, m.ID); err != nil {
		return err
	}
	if err := s.store.ClearPlayerMatch(ctx, players...); err != nil {
		return err
	}

	reason := "a player left the game"
	if out.WasHost {
		reason = "the host left the game"
	}
	s.publish(ctx, m, MessageTypeGameTerminated, GameTerminatedData{
		Reason: reason,
		Seat:   out.Seat,
		UserID: players[out.Seat],
	})

	for _, watcher := range s.registry.ConnectedUsers(m.ID) {
		s.unwatchMatch(ctx, watcher)
	}
	s.logger.Info("match terminated", "match_id", m.ID, "reason", reason)
	return nil
}

// StartGame deals a new game. Host only, four seats required.
func (s *GameService) StartGame(ctx context.Context, userID string, req StartGameData) (*GameStartedData, error) {
	return retry(ctx, func() (*GameStartedData, error) {
		m, err := s.loadMatchForUser(ctx, userID)
		if err != nil {
			return nil, err
		}
		if req.MatchID != "" && req.MatchID != m.ID {
			return nil, game.NewError(game.CodeNotInGame, "not seated in that match")
		}

		s.randMu.Lock()
		err = m.Start(userID, s.rng)
		s.randMu.Unlock()
		if err != nil {
			return nil, err
		}
		if err := s.store.SaveMatch(ctx, m); err != nil {
			return nil, err
		}

		if err := s.dealAndOpenBidding(ctx, m); err != nil {
			return nil, err
		}

		s.publish(ctx, m, MessageTypeGameStarted, GameStartedData{
			DealerPosition: *m.DealerPosition,
			CurrentBidder:  *m.CurrentBidder,
		})
		s.logger.Info("game started", "match_id", m.ID, "dealer", *m.DealerPosition)
		return &GameStartedData{
			Status:         string(m.Status),
			DealerPosition: *m.DealerPosition,
			CurrentBidder:  *m.CurrentBidder,
		}, nil
	})
}

// dealAndOpenBidding deals until some seat can open, stores the hands, and
// moves the match into bidding. Each seat privately receives its new hand.
func (s *GameService) dealAndOpenBidding(ctx context.Context, m *game.Match) error {
	s.randMu.Lock()
	hands, attempts, err := card.DealUntilBiddable(s.rng)
	s.randMu.Unlock()
	if err != nil {
		return err
	}
	if attempts > 1 {
		s.logger.Debug("redealt for a biddable hand", "match_id", m.ID, "attempts", attempts)
	}

	if err := s.store.SaveHands(ctx, m.ID, hands); err != nil {
		return err
	}
	if err := m.BeginBidding(); err != nil {
		return err
	}
	if err := s.store.SaveMatch(ctx, m); err != nil {
		return err
	}

	for seat, owner := range m.Players {
		hand := card.NewHand(hands[seat], seat)
		s.sendPrivate(owner, m, MessageTypeHandUpdated, s.handState(hand, m))
	}
	return nil
}

// GetHand returns the caller's hand with its bid analysis.
func (s *GameService) GetHand(ctx context.Context, userID string) (*HandStateData, error) {
	return retry(ctx, func() (*HandStateData, error) {
		m, seat, err := s.loadSeat(ctx, userID)
		if err != nil {
			return nil, err
		}
		hand, err := s.store.LoadHand(ctx, m.ID, seat)
		if err != nil {
			return nil, err
		}
		if hand == nil {
			return nil, game.NewError(game.CodeWrongPhase, "no hand dealt")
		}
		state := s.handState(hand, m)
		return &state, nil
	})
}

// Bid records a trump declaration from the current bidder.
func (s *GameService) Bid(ctx context.Context, userID string, req BidData) (*BidResultData, error) {
	return retry(ctx, func() (*BidResultData, error) {
		m, seat, err := s.loadSeat(ctx, userID)
		if err != nil {
			return nil, err
		}
		suit, err := card.ParseSuit(req.Suit)
		if err != nil {
			return nil, game.NewError(game.CodeMalformedRequest, "unknown suit %q", req.Suit)
		}
		hand, err := s.store.LoadHand(ctx, m.ID, seat)
		if err != nil {
			return nil, err
		}
		if hand == nil {
			return nil, game.NewError(game.CodeWrongPhase, "no hand dealt")
		}

		out, err := m.Bid(seat, req.Length, suit, hand)
		if err != nil {
			return nil, err
		}

		resp := &BidResultData{NextBidder: out.NextBidder, BiddingComplete: out.BiddingComplete}
		if out.BiddingComplete {
			if err := s.beginPlay(ctx, m); err != nil {
				return nil, err
			}
			trump := m.TrumpSuit.Name()
			resp.TrumpRevealed = &trump
		} else if err := s.store.SaveMatch(ctx, m); err != nil {
			return nil, err
		}

		s.publish(ctx, m, MessageTypeBidMade, BidMadeData{
			Seat:       seat,
			Username:   s.store.Username(ctx, userID),
			Length:     req.Length,
			NextBidder: out.NextBidder,
		})
		if out.BiddingComplete {
			s.publishBiddingComplete(ctx, m)
		}
		return resp, nil
	})
}

// Pass records a pass. Four passes with no bid redeal; three passes against a
// standing bid decide the auction.
func (s *GameService) Pass(ctx context.Context, userID string, req PassData) (*PassResultData, error) {
	return retry(ctx, func() (*PassResultData, error) {
		m, seat, err := s.loadSeat(ctx, userID)
		if err != nil {
			return nil, err
		}

		out, err := m.Pass(seat)
		if err != nil {
			return nil, err
		}

		resp := &PassResultData{NextBidder: out.NextBidder, BiddingComplete: out.BiddingComplete}
		switch {
		case out.AllPassed:
			if err := m.Redeal(); err != nil {
				return nil, err
			}
			if err := s.store.SaveMatch(ctx, m); err != nil {
				return nil, err
			}
			if err := s.dealAndOpenBidding(ctx, m); err != nil {
				return nil, err
			}
			resp.Redealt = true
		case out.BiddingComplete:
			if err := s.beginPlay(ctx, m); err != nil {
				return nil, err
			}
			trump := m.TrumpSuit.Name()
			resp.TrumpRevealed = &trump
		default:
			if err := s.store.SaveMatch(ctx, m); err != nil {
				return nil, err
			}
		}

		s.publish(ctx, m, MessageTypePassMade, PassMadeData{
			Seat:       seat,
			Username:   s.store.Username(ctx, userID),
			NextBidder: out.NextBidder,
			AllPassed:  out.AllPassed,
		})
		switch {
		case out.AllPassed:
			s.publish(ctx, m, MessageTypeCardsRedealt, GameStartedData{
				DealerPosition: *m.DealerPosition,
				CurrentBidder:  *m.CurrentBidder,
			})
		case out.BiddingComplete:
			s.publishBiddingComplete(ctx, m)
		}
		return resp, nil
	})
}

// beginPlay moves a decided auction into the playing phase and opens trick 1.
func (s *GameService) beginPlay(ctx context.Context, m *game.Match) error {
	winningBid := m.HighestBidLength
	if err := m.FinishBidding(); err != nil {
		return err
	}
	state := game.NewGameTrickState(*m.CurrentLeader, *m.TrumpSuit, *m.TrumpDeclarer)
	if err := s.store.SaveTrickState(ctx, m.ID, state); err != nil {
		return err
	}
	if err := s.store.SaveMatch(ctx, m); err != nil {
		return err
	}
	s.logger.Info("bidding complete", "match_id", m.ID,
		"declarer", *m.TrumpDeclarer, "trump", m.TrumpSuit.Name(), "bid", winningBid)
	return nil
}

func (s *GameService) publishBiddingComplete(ctx context.Context, m *game.Match) {
	declarer := *m.TrumpDeclarer
	partner := game.PartnerSeat(declarer)
	s.publish(ctx, m, MessageTypeBiddingComplete, BiddingCompleteData{
		Declarer:     declarer,
		TrumpSuit:    m.TrumpSuit.Name(),
		TrumpTeam:    [2]int{declarer, partner},
		OpponentTeam: [2]int{(declarer + 1) % 4, (declarer + 3) % 4},
		WinningBid:   m.HighestBidLength,
		FirstLeader:  *m.CurrentLeader,
	})
}

// PlayCard plays one card into the current trick.
func (s *GameService) PlayCard(ctx context.Context, userID string, req PlayCardData) (*PlayResultData, error) {
	return retry(ctx, func() (*PlayResultData, error) {
		m, seat, err := s.loadSeat(ctx, userID)
		if err != nil {
			return nil, err
		}
		if m.Status != game.StatusPlaying {
			return nil, game.NewError(game.CodeWrongPhase, "match is %s", m.Status)
		}

		c, err := card.FromCode(req.CardCode)
		if err != nil {
			return nil, game.NewError(game.CodeMalformedCard, "bad card code %q", req.CardCode)
		}
		state, err := s.store.LoadTrickState(ctx, m.ID)
		if err != nil {
			return nil, err
		}
		if state == nil {
			return nil, game.NewError(game.CodeWrongPhase, "no trick in progress")
		}
		if state.GameComplete {
			return nil, game.NewError(game.CodeGameAlreadyComplete, "all 8 tricks are played")
		}
		hand, err := s.store.LoadHand(ctx, m.ID, seat)
		if err != nil {
			return nil, err
		}

		trick := state.CurrentTrick
		if trick.IsComplete {
			return nil, game.NewError(game.CodeTrickAlreadyComplete, "trick %d is already complete", trick.TrickNumber)
		}
		if seat != trick.CurrentPlayer {
			return nil, game.NewError(game.CodeNotYourTurn, "seat %d to play", trick.CurrentPlayer)
		}
		if hand == nil || !hand.Contains(c) {
			return nil, game.NewError(game.CodeCardNotInHand, "%s is not in your hand", req.CardCode)
		}
		if !trick.IsLegal(hand, c) {
			return nil, game.NewError(game.CodeIllegalFollowSuit, "must follow suit with %s", trick.LeadSuit.Name())
		}

		trickNumber := trick.TrickNumber
		if err := trick.Play(seat, c); err != nil {
			return nil, err
		}
		hand.Remove(c)

		resp := &PlayResultData{TrickComplete: trick.IsComplete}
		var completion *game.TrickCompletion
		if trick.IsComplete {
			completion, err = state.CompleteTrick()
			if err != nil {
				return nil, err
			}
			resp.TrickWinner = &completion.Winner
			resp.TrickPoints = &completion.Points
			resp.GameComplete = completion.GameComplete
			m.CurrentLeader = completion.NextLeader
			if err := s.store.SaveTrickHistory(ctx, m.ID, completion.Trick); err != nil {
				return nil, err
			}
			if err := s.store.SaveMatch(ctx, m); err != nil {
				return nil, err
			}
		}
		if err := s.store.SaveHand(ctx, m.ID, hand); err != nil {
			return nil, err
		}
		if err := s.store.SaveTrickState(ctx, m.ID, state); err != nil {
			return nil, err
		}
		resp.Trick = state.CurrentTrick

		s.publish(ctx, m, MessageTypeCardPlayed, CardPlayedData{
			Seat:          seat,
			Username:      s.store.Username(ctx, userID),
			CardCode:      c.Code(),
			TrickNumber:   trickNumber,
			TrickComplete: completion != nil,
			TrickWinner:   resp.TrickWinner,
			TrickPoints:   resp.TrickPoints,
		})
		if completion != nil {
			s.publish(ctx, m, MessageTypeTrickCompleted, TrickCompletedData{
				TrickNumber: trickNumber,
				Winner:      completion.Winner,
				Points:      completion.Points,
				NextLeader:  completion.NextLeader,
			})
		}
		s.sendPrivate(userID, m, MessageTypeHandUpdated, s.handState(hand, m))
		return resp, nil
	})
}

// GetTrickState returns the live trick plus the caller's private view of it.
func (s *GameService) GetTrickState(ctx context.Context, userID string) (*TrickStateData, error) {
	return retry(ctx, func() (*TrickStateData, error) {
		m, seat, err := s.loadSeat(ctx, userID)
		if err != nil {
			return nil, err
		}
		state, err := s.store.LoadTrickState(ctx, m.ID)
		if err != nil {
			return nil, err
		}
		if state == nil {
			return nil, game.NewError(game.CodeWrongPhase, "no trick in progress")
		}
		hand, err := s.store.LoadHand(ctx, m.ID, seat)
		if err != nil {
			return nil, err
		}

		resp := &TrickStateData{
			Trick:      state.CurrentTrick,
			LegalCards: []string{},
			Score:      scoreData(state),
		}
		if hand != nil {
			resp.YourHand = hand.Codes()
			if !state.GameComplete && seat == state.CurrentTrick.CurrentPlayer {
				resp.YourTurn = true
				for _, c := range state.CurrentTrick.LegalCards(hand) {
					resp.LegalCards = append(resp.LegalCards, c.Code())
				}
			}
		}
		return resp, nil
	})
}

// CompleteGame scores a finished game and folds it into the cross countdown.
// Idempotent: repeated calls after the first return the stored result.
func (s *GameService) CompleteGame(ctx context.Context, userID string, req CompleteGameData) (*GameCompleteData, error) {
	return retry(ctx, func() (*GameCompleteData, error) {
		m, _, err := s.loadSeat(ctx, userID)
		if err != nil {
			return nil, err
		}
		if req.MatchID != "" && req.MatchID != m.ID {
			return nil, game.NewError(game.CodeNotInGame, "not seated in that match")
		}

		state, err := s.store.LoadTrickState(ctx, m.ID)
		if err != nil {
			return nil, err
		}
		if state == nil || !state.GameComplete {
			if stored, err := s.loadStoredResult(ctx, m.ID); err != nil || stored != nil {
				return stored, err
			}
			return nil, game.NewError(game.CodeWrongPhase, "game is not complete")
		}

		scoring, err := state.FinalScoring()
		if err != nil {
			return nil, err
		}
		result := scoring.GameResult()

		cross, err := s.store.LoadCrossState(ctx, m.ID)
		if err != nil {
			return nil, err
		}
		if cross == nil {
			cross = game.NewCrossState(m.NumberOfCrosses)
		}
		crossResult := cross.ApplyGameResult(result, game.TeamOfSeat(state.DeclarerSeat))

		data := &GameCompleteData{
			TrumpTeamPoints:    scoring.TrumpTeamPoints,
			OpponentTeamPoints: scoring.OpponentTeamPoints,
			TrumpTeamTricks:    scoring.TrumpTeamTricks,
			OpponentTeamTricks: scoring.OpponentTeamTricks,
			ResultKind:         result.Kind,
			Description:        result.Description,
			IndividualVol:      result.IndividualVol,
			TrumpTeamDelta:     result.TrumpTeamDelta,
			OpponentTeamDelta:  result.OpponentTeamDelta,
			CrossScores:        crossResult,
			CrossStateAfter:    cross.Summary(),
			CrossWinner:        crossResult.Winner,
			NewGameReady:       !cross.RubberComplete,
		}

		if err := m.CompleteGame(); err != nil {
			return nil, err
		}
		if cross.RubberComplete {
			if err := s.finishRubber(ctx, m, cross); err != nil {
				return nil, err
			}
		} else {
			m.CurrentCross = crossCount(cross)
			if err := m.PrepareNextGame(); err != nil {
				return nil, err
			}
			if err := s.store.SaveCrossState(ctx, m.ID, cross); err != nil {
				return nil, err
			}
			if err := s.store.SaveMatch(ctx, m); err != nil {
				return nil, err
			}
			if err := s.store.DeleteGameKeys(ctx, m.ID); err != nil {
				return nil, err
			}
		}

		blob, err := json.Marshal(data)
		if err != nil {
			return nil, game.Infrastructure(err)
		}
		if err := s.store.SaveGameResult(ctx, m.ID, blob); err != nil {
			return nil, err
		}

		s.publish(ctx, m, MessageTypeGameComplete, data)
		s.logger.Info("game scored", "match_id", m.ID, "result", result.Kind,
			"trump_delta", result.TrumpTeamDelta, "opponent_delta", result.OpponentTeamDelta)
		return data, nil
	})
}

func crossCount(cross *game.CrossState) int {
	return cross.TeamCrosses[0] + cross.TeamCrosses[1]
}

// finishRubber ends the match once the target number of crosses is reached.
func (s *GameService) finishRubber(ctx context.Context, m *game.Match, cross *game.CrossState) error {
	m.CurrentCross = crossCount(cross)
	if err := s.store.SaveMatch(ctx, m); err != nil {
		return err
	}
	if err := s.store.ReleasePin(ctx, m.Pin); err != nil {
		return err
	}
	if err := s.store.DeleteGameKeys(ctx, m.ID); err != nil {
		return err
	}
	if err := s.store.DeleteCrossState(ctx, m.ID); err != nil {
		return err
	}
	if err := s.store.ClearPlayerMatch(ctx, m.Players...); err != nil {
		return err
	}
	s.logger.Info("rubber complete", "match_id", m.ID,
		"crosses", cross.TeamCrosses, "target", cross.TargetCrosses)
	return nil
}

// TeamUp relays a partnership negotiation message to the rest of the table.
func (s *GameService) TeamUp(ctx context.Context, userID string, messageType MessageType, req TeamUpData) error {
	m, seat, err := s.loadSeat(ctx, userID)
	if err != nil {
		return err
	}
	s.publish(ctx, m, messageType, struct {
		Seat     int    `json:"seat"`
		UserID   string `json:"user_id"`
		Username string `json:"username"`
		TeamUpData
	}{seat, userID, s.store.Username(ctx, userID), req})
	return nil
}

// Rejoin re-attaches a connection to the caller's match and replays a fresh
// snapshot.
func (s *GameService) Rejoin(ctx context.Context, userID, matchID string) error {
	m, err := s.loadMatchForUser(ctx, userID)
	if err != nil {
		return err
	}
	if matchID != "" && matchID != m.ID {
		return game.NewError(game.CodeNotInGame, "not seated in that match")
	}
	s.watchMatch(ctx, userID, m.ID)
	return s.SendSnapshot(ctx, userID)
}

// RegisterConnection installs a freshly authenticated connection as the
// user's outbound sink.
func (s *GameService) RegisterConnection(userID string, sink Sink) {
	s.registry.Register(userID, sink)
}

// HandleDisconnect drops the connection's registry entries and releases the
// match channel if nobody is left watching it.
func (s *GameService) HandleDisconnect(ctx context.Context, userID string, sink Sink) {
	matchID, last := s.registry.Unregister(userID, sink)
	if last {
		if err := s.subs.Unsubscribe(ctx, matchID); err != nil {
			s.logger.Error("channel unsubscribe failed", "match_id", matchID, "error", err)
		}
	}
}

// Fanout delivers a published event to every connected member of its match.
// Wired as the Subscriber handler.
func (s *GameService) Fanout(matchID string, payload []byte) {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		s.logger.Error("dropping undecodable event", "match_id", matchID, "error", err)
		return
	}
	s.registry.Broadcast(matchID, &msg)
}

// watchMatch registers interest in a match's channel for a connected user.
func (s *GameService) watchMatch(ctx context.Context, userID, matchID string) {
	if first := s.registry.JoinMatch(userID, matchID); first {
		if err := s.subs.Subscribe(ctx, matchID); err != nil {
			s.logger.Error("channel subscribe failed", "match_id", matchID, "error", err)
		}
	}
}

func (s *GameService) unwatchMatch(ctx context.Context, userID string) {
	if matchID, last := s.registry.LeaveMatch(userID); last {
		if err := s.subs.Unsubscribe(ctx, matchID); err != nil {
			s.logger.Error("channel unsubscribe failed", "match_id", matchID, "error", err)
		}
	}
}

// publish emits a match event. Failures are logged, never rolled back: the
// persisted state is authoritative and clients reconcile via snapshots.
func (s *GameService) publish(ctx context.Context, m *game.Match, messageType MessageType, data any) {
	msg, err := NewEvent(messageType, m.ID, m.Status, s.clock.NowMs(), data)
	if err != nil {
		s.logger.Error("event encode failed", "type", messageType, "error", err)
		return
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		s.logger.Error("event encode failed", "type", messageType, "error", err)
		return
	}
	if err := s.store.PublishEvent(ctx, m.ID, payload); err != nil {
		s.logger.Error("event publish failed", "match_id", m.ID, "type", messageType, "error", err)
	}
}

// sendPrivate delivers a per-seat message directly, bypassing the match
// channel so other players never see it.
func (s *GameService) sendPrivate(userID string, m *game.Match, messageType MessageType, data any) {
	msg, err := NewEvent(messageType, m.ID, m.Status, s.clock.NowMs(), data)
	if err != nil {
		s.logger.Error("private message encode failed", "type", messageType, "error", err)
		return
	}
	if err := s.registry.SendTo(userID, msg); err != nil {
		s.logger.Debug("private message dropped", "user_id", userID, "type", messageType)
	}
}

func (s *GameService) loadMatchForUser(ctx context.Context, userID string) (*game.Match, error) {
	matchID, err := s.store.PlayerMatch(ctx, userID)
	if err != nil {
		return nil, err
	}
	if matchID == "" {
		return nil, game.NewError(game.CodeNotInGame, "not in an active match")
	}
	return s.store.LoadMatch(ctx, matchID)
}

func (s *GameService) loadSeat(ctx context.Context, userID string) (*game.Match, int, error) {
	m, err := s.loadMatchForUser(ctx, userID)
	if err != nil {
		return nil, 0, err
	}
	seat, seated := m.SeatOf(userID)
	if !seated {
		return nil, 0, game.NewError(game.CodeNotInGame, "not seated in this match")
	}
	return m, seat, nil
}

func (s *GameService) loadStoredResult(ctx context.Context, matchID string) (*GameCompleteData, error) {
	blob, err := s.store.LoadGameResult(ctx, matchID)
	if err != nil || blob == nil {
		return nil, err
	}
	var data GameCompleteData
	if err := json.Unmarshal(blob, &data); err != nil {
		return nil, game.Infrastructure(err)
	}
	return &data, nil
}

// handState builds the private hand view with the bid analysis against the
// standing highest bid.
func (s *GameService) handState(hand *card.Hand, m *game.Match) HandStateData {
	highestIsClubs := m.HighestBidSuit != nil && *m.HighestBidSuit == card.Clubs
	bids := hand.AvailableBids(m.HighestBidLength, highestIsClubs)
	if bids == nil {
		bids = []card.BidOption{}
	}
	return HandStateData{
		Cards:         hand.Codes(),
		TrumpCounts:   suitCounts(hand),
		AvailableBids: bids,
		CanBid:        len(bids) > 0,
		CanPass:       m.Status == game.StatusBidding,
	}
}

func suitCounts(hand *card.Hand) map[string]int {
	counts := make(map[string]int, 4)
	for suit, n := range hand.TrumpCounts() {
		counts[suit.Name()] = n
	}
	return counts
}

func (s *GameService) playerInfos(ctx context.Context, m *game.Match) []PlayerInfo {
	names := s.store.Usernames(ctx, m.Players)
	infos := make([]PlayerInfo, len(m.Players))
	for seat, userID := range m.Players {
		infos[seat] = PlayerInfo{Seat: seat, UserID: userID, Username: names[seat]}
	}
	return infos
}

func scoreData(state *game.GameTrickState) ScoreData {
	return ScoreData{
		TrumpTeamTricks:    state.TrumpTricks,
		OpponentTeamTricks: state.OpponentTricks,
		TrumpTeamPoints:    state.TrumpPoints,
		OpponentTeamPoints: state.OpponentPoints,
	}
}
