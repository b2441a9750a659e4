package store

import "fmt"

// Key layout. Matches are hashes, hands and engine states are JSON blobs,
// and the pin/user indexes are single shared hashes.
const (
	keyPlayerGames = "player_games" // user_id -> match_id
	keyPins        = "pins"         // 4-digit pin -> match_id
	keyUsernames   = "usernames"    // user_id -> display name, written out of core
)

func matchKey(matchID string) string {
	return "normal_match:" + matchID
}

func matchPlayersKey(matchID string) string {
	return matchKey(matchID) + ":players"
}

func handKey(matchID string, seat int) string {
	return fmt.Sprintf("game_hands:%s:%d", matchID, seat)
}

func handAnalysisKey(matchID string, seat int) string {
	return fmt.Sprintf("game_hand_analysis:%s:%d", matchID, seat)
}

func trickStateKey(matchID string) string {
	return "game_trick_state:" + matchID
}

func trickHistoryKey(matchID string, trickNumber int) string {
	return fmt.Sprintf("game_trick_history:%s:%d", matchID, trickNumber)
}

func crossStateKey(matchID string) string {
	return "cross_state:" + matchID
}

func gameResultKey(matchID string) string {
	return "game_result:" + matchID
}

// GameChannel is the pub/sub channel carrying a match's events.
func GameChannel(matchID string) string {
	return "pubsub:game:" + matchID
}
