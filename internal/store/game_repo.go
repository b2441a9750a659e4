package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sjavsgame/sjavs-server/internal/card"
	"github.com/sjavsgame/sjavs-server/internal/game"
)

// Completed tricks are kept for post-game audit, then aged out.
const trickHistoryTTL = time.Hour

// SaveHands stores all four hands and their trump-count analysis in one
// round trip, as the dealer leaves them.
func (s *Store) SaveHands(ctx context.Context, matchID string, hands [4][]card.Card) error {
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for seat, cards := range hands {
			hand := card.NewHand(cards, seat)
			codes, err := json.Marshal(hand.Codes())
			if err != nil {
				return err
			}
			analysis, err := json.Marshal(trumpCountsByName(hand))
			if err != nil {
				return err
			}
			pipe.Set(ctx, handKey(matchID, seat), codes, 0)
			pipe.Set(ctx, handAnalysisKey(matchID, seat), analysis, 0)
		}
		return nil
	})
	if err != nil {
		return game.Infrastructure(fmt.Errorf("save hands %s: %w", matchID, err))
	}
	return nil
}

func trumpCountsByName(hand *card.Hand) map[string]int {
	counts := make(map[string]int, 4)
	for suit, n := range hand.TrumpCounts() {
		counts[suit.Name()] = n
	}
	return counts
}

// SaveHand rewrites one seat's hand after a play.
func (s *Store) SaveHand(ctx context.Context, matchID string, hand *card.Hand) error {
	codes, err := json.Marshal(hand.Codes())
	if err != nil {
		return game.Infrastructure(fmt.Errorf("encode hand: %w", err))
	}
	if err := s.rdb.Set(ctx, handKey(matchID, hand.Seat), codes, 0).Err(); err != nil {
		return game.Infrastructure(fmt.Errorf("save hand %s/%d: %w", matchID, hand.Seat, err))
	}
	return nil
}

// LoadHand reads one seat's hand; nil if the seat has no stored hand.
func (s *Store) LoadHand(ctx context.Context, matchID string, seat int) (*card.Hand, error) {
	raw, err := s.rdb.Get(ctx, handKey(matchID, seat)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, game.Infrastructure(fmt.Errorf("load hand %s/%d: %w", matchID, seat, err))
	}

	var codes []string
	if err := json.Unmarshal(raw, &codes); err != nil {
		return nil, game.Infrastructure(fmt.Errorf("decode hand %s/%d: %w", matchID, seat, err))
	}
	return card.HandFromCodes(codes, seat)
}

// StoredHandCount reports how many seats have a stored hand, which drives the
// dealing-progress display.
func (s *Store) StoredHandCount(ctx context.Context, matchID string) (int, error) {
	cmds := make([]*redis.IntCmd, game.MaxPlayers)
	_, err := s.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for seat := 0; seat < game.MaxPlayers; seat++ {
			cmds[seat] = pipe.Exists(ctx, handKey(matchID, seat))
		}
		return nil
	})
	if err != nil {
		return 0, game.Infrastructure(fmt.Errorf("count hands %s: %w", matchID, err))
	}

	count := 0
	for _, cmd := range cmds {
		count += int(cmd.Val())
	}
	return count, nil
}

// SaveTrickState writes the full game trick state blob.
func (s *Store) SaveTrickState(ctx context.Context, matchID string, state *game.GameTrickState) error {
	blob, err := json.Marshal(state)
	if err != nil {
		return game.Infrastructure(fmt.Errorf("encode trick state: %w", err))
	}
	if err := s.rdb.Set(ctx, trickStateKey(matchID), blob, 0).Err(); err != nil {
		return game.Infrastructure(fmt.Errorf("save trick state %s: %w", matchID, err))
	}
	return nil
}

// LoadTrickState reads the game trick state; nil when no game is in play.
func (s *Store) LoadTrickState(ctx context.Context, matchID string) (*game.GameTrickState, error) {
	raw, err := s.rdb.Get(ctx, trickStateKey(matchID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, game.Infrastructure(fmt.Errorf("load trick state %s: %w", matchID, err))
	}

	var state game.GameTrickState
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, game.Infrastructure(fmt.Errorf("decode trick state %s: %w", matchID, err))
	}
	return &state, nil
}

// SaveTrickHistory archives a completed trick with a TTL.
func (s *Store) SaveTrickHistory(ctx context.Context, matchID string, trick game.TrickState) error {
	blob, err := json.Marshal(trick)
	if err != nil {
		return game.Infrastructure(fmt.Errorf("encode trick history: %w", err))
	}
	key := trickHistoryKey(matchID, trick.TrickNumber)
	if err := s.rdb.Set(ctx, key, blob, trickHistoryTTL).Err(); err != nil {
		return game.Infrastructure(fmt.Errorf("save trick history %s: %w", matchID, err))
	}
	return nil
}

// SaveCrossState writes the rubber countdown blob.
func (s *Store) SaveCrossState(ctx context.Context, matchID string, state *game.CrossState) error {
	blob, err := json.Marshal(state)
	if err != nil {
		return game.Infrastructure(fmt.Errorf("encode cross state: %w", err))
	}
	if err := s.rdb.Set(ctx, crossStateKey(matchID), blob, 0).Err(); err != nil {
		return game.Infrastructure(fmt.Errorf("save cross state %s: %w", matchID, err))
	}
	return nil
}

// LoadCrossState reads the rubber countdown; nil when never created.
func (s *Store) LoadCrossState(ctx context.Context, matchID string) (*game.CrossState, error) {
	raw, err := s.rdb.Get(ctx, crossStateKey(matchID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, game.Infrastructure(fmt.Errorf("load cross state %s: %w", matchID, err))
	}

	var state game.CrossState
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, game.Infrastructure(fmt.Errorf("decode cross state %s: %w", matchID, err))
	}
	return &state, nil
}

// DeleteCrossState removes the rubber countdown once the rubber is decided.
func (s *Store) DeleteCrossState(ctx context.Context, matchID string) error {
	if err := s.rdb.Del(ctx, crossStateKey(matchID)).Err(); err != nil {
		return game.Infrastructure(fmt.Errorf("delete cross state %s: %w", matchID, err))
	}
	return nil
}

// SaveGameResult keeps the scored outcome of the last completed game so that
// repeated complete_game calls return the same answer.
func (s *Store) SaveGameResult(ctx context.Context, matchID string, blob []byte) error {
	if err := s.rdb.Set(ctx, gameResultKey(matchID), blob, trickHistoryTTL).Err(); err != nil {
		return game.Infrastructure(fmt.Errorf("save game result %s: %w", matchID, err))
	}
	return nil
}

// LoadGameResult reads the last scored outcome; nil when no game has been
// scored recently.
func (s *Store) LoadGameResult(ctx context.Context, matchID string) ([]byte, error) {
	raw, err := s.rdb.Get(ctx, gameResultKey(matchID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, game.Infrastructure(fmt.Errorf("load game result %s: %w", matchID, err))
	}
	return raw, nil
}

// DeleteGameKeys removes per-game transient state (hands, analysis, trick
// state and history). Called between games and at match teardown.
func (s *Store) DeleteGameKeys(ctx context.Context, matchID string) error {
	keys := []string{trickStateKey(matchID)}
	for seat := 0; seat < game.MaxPlayers; seat++ {
		keys = append(keys, handKey(matchID, seat), handAnalysisKey(matchID, seat))
	}
	for n := 1; n <= 8; n++ {
		keys = append(keys, trickHistoryKey(matchID, n))
	}
	if err := s.rdb.Del(ctx, keys...).Err(); err != nil {
		return game.Infrastructure(fmt.Errorf("delete game keys %s: %w", matchID, err))
	}
	return nil
}

// DeleteMatchKeys removes everything belonging to a finished match except the
// header, which the operator may expire by policy.
func (s *Store) DeleteMatchKeys(ctx context.Context, matchID string) error {
	if err := s.DeleteGameKeys(ctx, matchID); err != nil {
		return err
	}
	if err := s.rdb.Del(ctx, crossStateKey(matchID), gameResultKey(matchID), matchPlayersKey(matchID)).Err(); err != nil {
		return game.Infrastructure(fmt.Errorf("delete match keys %s: %w", matchID, err))
	}
	return nil
}
