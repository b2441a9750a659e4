package store

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/sjavsgame/sjavs-server/internal/card"
	"github.com/sjavsgame/sjavs-server/internal/game"
)

// matchToHash flattens the match header for HSET. Optional seat and bid
// fields are simply absent when unset.
func matchToHash(m *game.Match) map[string]any {
	h := map[string]any{
		"id":                m.ID,
		"pin":               m.Pin,
		"status":            string(m.Status),
		"number_of_crosses": strconv.Itoa(m.NumberOfCrosses),
		"current_cross":     strconv.Itoa(m.CurrentCross),
		"created_timestamp": strconv.FormatInt(m.CreatedTimestamp, 10),
	}
	setSeat := func(field string, seat *int) {
		if seat != nil {
			h[field] = strconv.Itoa(*seat)
		}
	}
	setSeat("dealer_position", m.DealerPosition)
	setSeat("current_bidder", m.CurrentBidder)
	setSeat("current_leader", m.CurrentLeader)
	setSeat("trump_declarer", m.TrumpDeclarer)
	setSeat("highest_bidder", m.HighestBidder)
	if m.TrumpSuit != nil {
		h["trump_suit"] = m.TrumpSuit.Name()
	}
	if m.HighestBidSuit != nil {
		h["highest_bid_suit"] = m.HighestBidSuit.Name()
	}
	if m.HighestBidLength > 0 {
		h["highest_bid_length"] = strconv.Itoa(m.HighestBidLength)
	}
	if len(m.BiddingPasses) > 0 {
		passes := make([]string, len(m.BiddingPasses))
		for i, seat := range m.BiddingPasses {
			passes[i] = strconv.Itoa(seat)
		}
		h["bidding_passes"] = strings.Join(passes, ",")
	}
	return h
}

// matchFromHash rebuilds a match header from its stored hash.
func matchFromHash(id string, h map[string]string) (*game.Match, error) {
	if len(h) == 0 {
		return nil, game.NewError(game.CodeGameNotFound, "match %s not found", id)
	}

	m := &game.Match{
		ID:     id,
		Pin:    h["pin"],
		Status: game.ParseStatus(h["status"]),
	}

	var err error
	intField := func(field string, dst *int, required bool) {
		if err != nil {
			return
		}
		raw, ok := h[field]
		if !ok {
			if required {
				err = fmt.Errorf("match %s: missing field %s", id, field)
			}
			return
		}
		*dst, err = strconv.Atoi(raw)
		if err != nil {
			err = fmt.Errorf("match %s: field %s: %w", id, field, err)
		}
	}
	seatField := func(field string, dst **int) {
		if err != nil {
			return
		}
		if _, ok := h[field]; !ok {
			return
		}
		var seat int
		intField(field, &seat, true)
		*dst = &seat
	}
	suitField := func(field string, dst **card.Suit) {
		if err != nil {
			return
		}
		raw, ok := h[field]
		if !ok {
			return
		}
		var suit card.Suit
		suit, err = card.ParseSuit(raw)
		if err != nil {
			err = fmt.Errorf("match %s: field %s: %w", id, field, err)
			return
		}
		*dst = &suit
	}

	intField("number_of_crosses", &m.NumberOfCrosses, true)
	intField("current_cross", &m.CurrentCross, true)
	intField("highest_bid_length", &m.HighestBidLength, false)
	seatField("dealer_position", &m.DealerPosition)
	seatField("current_bidder", &m.CurrentBidder)
	seatField("current_leader", &m.CurrentLeader)
	seatField("trump_declarer", &m.TrumpDeclarer)
	seatField("highest_bidder", &m.HighestBidder)
	suitField("trump_suit", &m.TrumpSuit)
	suitField("highest_bid_suit", &m.HighestBidSuit)
	if err != nil {
		return nil, err
	}

	if raw, ok := h["created_timestamp"]; ok {
		m.CreatedTimestamp, err = strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("match %s: created_timestamp: %w", id, err)
		}
	}
	if raw, ok := h["bidding_passes"]; ok && raw != "" {
		for _, part := range strings.Split(raw, ",") {
			seat, perr := strconv.Atoi(part)
			if perr != nil {
				return nil, fmt.Errorf("match %s: bidding_passes: %w", id, perr)
			}
			m.BiddingPasses = append(m.BiddingPasses, seat)
		}
	}
	return m, nil
}

// SaveMatch writes the full match header, dropping fields cleared since the
// last save.
func (s *Store) SaveMatch(ctx context.Context, m *game.Match) error {
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, matchKey(m.ID))
		pipe.HSet(ctx, matchKey(m.ID), matchToHash(m))
		return nil
	})
	if err != nil {
		return game.Infrastructure(fmt.Errorf("save match %s: %w", m.ID, err))
	}
	return nil
}

// LoadMatch reads the match header and its seat list.
func (s *Store) LoadMatch(ctx context.Context, matchID string) (*game.Match, error) {
	var (
		hashCmd    *redis.MapStringStringCmd
		playersCmd *redis.StringSliceCmd
	)
	_, err := s.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		hashCmd = pipe.HGetAll(ctx, matchKey(matchID))
		playersCmd = pipe.LRange(ctx, matchPlayersKey(matchID), 0, -1)
		return nil
	})
	if err != nil {
		return nil, game.Infrastructure(fmt.Errorf("load match %s: %w", matchID, err))
	}

	m, err := matchFromHash(matchID, hashCmd.Val())
	if err != nil {
		return nil, err
	}
	m.Players = playersCmd.Val()
	return m, nil
}

// SavePlayers rewrites the seat list.
func (s *Store) SavePlayers(ctx context.Context, matchID string, players []string) error {
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, matchPlayersKey(matchID))
		if len(players) > 0 {
			args := make([]any, len(players))
			for i, p := range players {
				args[i] = p
			}
			pipe.RPush(ctx, matchPlayersKey(matchID), args...)
		}
		return nil
	})
	if err != nil {
		return game.Infrastructure(fmt.Errorf("save players %s: %w", matchID, err))
	}
	return nil
}

// RegisterPin points an active pin at a match.
func (s *Store) RegisterPin(ctx context.Context, pin, matchID string) error {
	if err := s.rdb.HSet(ctx, keyPins, pin, matchID).Err(); err != nil {
		return game.Infrastructure(fmt.Errorf("register pin: %w", err))
	}
	return nil
}

// PinInUse reports whether a pin already maps to an active match.
func (s *Store) PinInUse(ctx context.Context, pin string) (bool, error) {
	n, err := s.rdb.HExists(ctx, keyPins, pin).Result()
	if err != nil {
		return false, game.Infrastructure(fmt.Errorf("check pin: %w", err))
	}
	return n, nil
}

// MatchIDByPin resolves a join pin.
func (s *Store) MatchIDByPin(ctx context.Context, pin string) (string, error) {
	id, err := s.rdb.HGet(ctx, keyPins, pin).Result()
	if err == redis.Nil {
		return "", game.NewError(game.CodeInvalidPin, "no active match with that pin")
	}
	if err != nil {
		return "", game.Infrastructure(fmt.Errorf("lookup pin: %w", err))
	}
	return id, nil
}

// ReleasePin frees a pin when its match completes or cancels.
func (s *Store) ReleasePin(ctx context.Context, pin string) error {
	if err := s.rdb.HDel(ctx, keyPins, pin).Err(); err != nil {
		return game.Infrastructure(fmt.Errorf("release pin: %w", err))
	}
	return nil
}

// SetPlayerMatch records which match a user is in.
func (s *Store) SetPlayerMatch(ctx context.Context, userID, matchID string) error {
	if err := s.rdb.HSet(ctx, keyPlayerGames, userID, matchID).Err(); err != nil {
		return game.Infrastructure(fmt.Errorf("set player match: %w", err))
	}
	return nil
}

// PlayerMatch returns the match a user is in, or "" if none.
func (s *Store) PlayerMatch(ctx context.Context, userID string) (string, error) {
	id, err := s.rdb.HGet(ctx, keyPlayerGames, userID).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", game.Infrastructure(fmt.Errorf("get player match: %w", err))
	}
	return id, nil
}

// ClearPlayerMatch removes a user's match association.
func (s *Store) ClearPlayerMatch(ctx context.Context, userIDs ...string) error {
	if len(userIDs) == 0 {
		return nil
	}
	if err := s.rdb.HDel(ctx, keyPlayerGames, userIDs...).Err(); err != nil {
		return game.Infrastructure(fmt.Errorf("clear player match: %w", err))
	}
	return nil
}

// Username looks up a display name, falling back to the user id.
func (s *Store) Username(ctx context.Context, userID string) string {
	name, err := s.rdb.HGet(ctx, keyUsernames, userID).Result()
	if err != nil || name == "" {
		return userID
	}
	return name
}

// Usernames resolves display names for a seat list.
func (s *Store) Usernames(ctx context.Context, userIDs []string) []string {
	names := make([]string, len(userIDs))
	if len(userIDs) == 0 {
		return names
	}
	vals, err := s.rdb.HMGet(ctx, keyUsernames, userIDs...).Result()
	for i, id := range userIDs {
		names[i] = id
		if err == nil && i < len(vals) {
			if name, ok := vals[i].(string); ok && name != "" {
				names[i] = name
			}
		}
	}
	return names
}
