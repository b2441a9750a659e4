package server

import (
	"encoding/json"

	"github.com/sjavsgame/sjavs-server/internal/card"
	"github.com/sjavsgame/sjavs-server/internal/game"
)

// MessageType identifies a WebSocket message.
type MessageType string

func (t MessageType) String() string { return string(t) }

// Client → server messages.
const (
	MessageTypeAuth             MessageType = "auth"
	MessageTypeCreateMatch      MessageType = "create_match"
	MessageTypeJoinMatch        MessageType = "join_match"
	MessageTypeLeaveMatch       MessageType = "leave_match"
	MessageTypeStartGame        MessageType = "start_game"
	MessageTypeGetHand          MessageType = "get_hand"
	MessageTypeBid              MessageType = "bid"
	MessageTypePass             MessageType = "pass"
	MessageTypePlayCard         MessageType = "play_card"
	MessageTypeGetTrickState    MessageType = "get_trick_state"
	MessageTypeCompleteGame     MessageType = "complete_game"
	MessageTypeJoin             MessageType = "join"
	MessageTypeRequestGameState MessageType = "request_game_state"
	MessageTypeTeamUpRequest    MessageType = "team_up_request"
	MessageTypeTeamUpResponse   MessageType = "team_up_response"
)

// Server → client responses.
const (
	MessageTypeAuthResponse MessageType = "auth_response"
	MessageTypeError        MessageType = "error"
	MessageTypeMatchCreated MessageType = "match_created"
	MessageTypeMatchJoined  MessageType = "match_joined"
	MessageTypeMatchLeft    MessageType = "match_left"
	MessageTypeHandState    MessageType = "hand_state"
	MessageTypeBidResult    MessageType = "bid_result"
	MessageTypePassResult   MessageType = "pass_result"
	MessageTypePlayResult   MessageType = "play_result"
	MessageTypeTrickState   MessageType = "trick_state"
	MessageTypeGameResult   MessageType = "game_result"
)

// Server → client broadcast events.
const (
	MessageTypePlayerJoined    MessageType = "player_joined"
	MessageTypePlayerLeft      MessageType = "player_left"
	MessageTypeGameStarted     MessageType = "game_started"
	MessageTypeHandUpdated     MessageType = "hand_updated"
	MessageTypeBidMade         MessageType = "bid_made"
	MessageTypePassMade        MessageType = "pass_made"
	MessageTypeCardsRedealt    MessageType = "cards_redealt"
	MessageTypeBiddingComplete MessageType = "bidding_complete"
	MessageTypeCardPlayed      MessageType = "card_played"
	MessageTypeTrickCompleted  MessageType = "trick_completed"
	MessageTypeGameComplete    MessageType = "game_complete"
	MessageTypeGameTerminated  MessageType = "game_terminated"
)

// Snapshot message type for a match phase.
func initialStateType(status game.Status) MessageType {
	return MessageType("initial_state_" + string(status))
}

// Message is the wire envelope. Events and snapshots carry the match id and
// phase; responses echo the request id they answer.
type Message struct {
	Type      MessageType     `json:"type"`
	MatchID   string          `json:"match_id,omitempty"`
	Phase     string          `json:"phase,omitempty"`
	Timestamp int64           `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
	RequestID string          `json:"request_id,omitempty"`
}

// NewMessage builds a stamped message.
func NewMessage(messageType MessageType, timestamp int64, data any) (*Message, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return &Message{
		Type:      messageType,
		Timestamp: timestamp,
		Data:      dataBytes,
	}, nil
}

// NewEvent builds a stamped broadcast event bound to a match.
func NewEvent(messageType MessageType, matchID string, phase game.Status, timestamp int64, data any) (*Message, error) {
	msg, err := NewMessage(messageType, timestamp, data)
	if err != nil {
		return nil, err
	}
	msg.MatchID = matchID
	msg.Phase = string(phase)
	return msg, nil
}

// Client → server payloads.

type AuthData struct {
	UserID string `json:"user_id"`
	Token  string `json:"token,omitempty"`
}

type CreateMatchData struct {
	NumberOfCrosses int `json:"number_of_crosses,omitempty"`
}

type JoinMatchData struct {
	Pin string `json:"pin"`
}

type StartGameData struct {
	MatchID string `json:"match_id"`
}

type BidData struct {
	MatchID string `json:"match_id"`
	Length  int    `json:"length"`
	Suit    string `json:"suit"`
}

type PassData struct {
	MatchID string `json:"match_id"`
}

type PlayCardData struct {
	CardCode string `json:"card_code"`
}

type CompleteGameData struct {
	MatchID string `json:"match_id"`
}

type JoinData struct {
	MatchID string `json:"match_id"`
}

type TeamUpData struct {
	Accepted bool   `json:"accepted,omitempty"`
	Note     string `json:"note,omitempty"`
}

// Server → client payloads.

type AuthResponseData struct {
	Success bool   `json:"success"`
	UserID  string `json:"user_id,omitempty"`
	Error   string `json:"error,omitempty"`
}

type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
}

// PlayerInfo is one seated player in client-facing lists.
type PlayerInfo struct {
	Seat     int    `json:"seat"`
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}

type MatchCreatedData struct {
	MatchID string `json:"match_id"`
	Pin     string `json:"pin"`
}

type MatchJoinedData struct {
	MatchID string       `json:"match_id"`
	Seat    int          `json:"seat"`
	Players []PlayerInfo `json:"players"`
}

type MatchLeftData struct {
	OK        bool `json:"ok"`
	Cancelled bool `json:"cancelled,omitempty"`
}

type PlayerJoinedData struct {
	Seat     int    `json:"seat"`
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}

type PlayerLeftData struct {
	Seat   int    `json:"seat"`
	UserID string `json:"user_id"`
}

type GameStartedData struct {
	Status         string `json:"status,omitempty"`
	DealerPosition int    `json:"dealer_position"`
	CurrentBidder  int    `json:"current_bidder"`
}

// HandStateData is private to the seat that owns the hand.
type HandStateData struct {
	Cards         []string         `json:"cards"`
	TrumpCounts   map[string]int   `json:"trump_counts"`
	AvailableBids []card.BidOption `json:"available_bids"`
	CanBid        bool             `json:"can_bid"`
	CanPass       bool             `json:"can_pass"`
}

// BidMadeData hides the suit until bidding completes.
type BidMadeData struct {
	Seat       int    `json:"seat"`
	Username   string `json:"username"`
	Length     int    `json:"length"`
	NextBidder *int   `json:"next_bidder,omitempty"`
}

type PassMadeData struct {
	Seat       int    `json:"seat"`
	Username   string `json:"username"`
	NextBidder *int   `json:"next_bidder,omitempty"`
	AllPassed  bool   `json:"all_passed"`
}

type BidResultData struct {
	NextBidder      *int    `json:"next_bidder,omitempty"`
	BiddingComplete bool    `json:"bidding_complete"`
	TrumpRevealed   *string `json:"trump_revealed,omitempty"`
}

type PassResultData struct {
	NextBidder      *int    `json:"next_bidder,omitempty"`
	BiddingComplete bool    `json:"bidding_complete"`
	Redealt         bool    `json:"redealt"`
	TrumpRevealed   *string `json:"trump_revealed,omitempty"`
}

type BiddingCompleteData struct {
	Declarer     int    `json:"declarer"`
	TrumpSuit    string `json:"trump_suit"`
	TrumpTeam    [2]int `json:"trump_team"`
	OpponentTeam [2]int `json:"opponent_team"`
	WinningBid   int    `json:"winning_bid"`
	FirstLeader  int    `json:"first_leader"`
}

type CardPlayedData struct {
	Seat          int    `json:"seat"`
	Username      string `json:"username"`
	CardCode      string `json:"card_code"`
	TrickNumber   int    `json:"trick_number"`
	TrickComplete bool   `json:"trick_complete"`
	TrickWinner   *int   `json:"trick_winner,omitempty"`
	TrickPoints   *int   `json:"trick_points,omitempty"`
}

type TrickCompletedData struct {
	TrickNumber int  `json:"trick_number"`
	Winner      int  `json:"winner"`
	Points      int  `json:"points"`
	NextLeader  *int `json:"next_leader,omitempty"`
}

// ScoreData is the cumulative team standing mid-game.
type ScoreData struct {
	TrumpTeamTricks    int `json:"trump_team_tricks"`
	OpponentTeamTricks int `json:"opponent_team_tricks"`
	TrumpTeamPoints    int `json:"trump_team_points"`
	OpponentTeamPoints int `json:"opponent_team_points"`
}

type PlayResultData struct {
	Trick         *game.TrickState `json:"trick_state"`
	TrickComplete bool             `json:"trick_complete"`
	TrickWinner   *int             `json:"trick_winner,omitempty"`
	TrickPoints   *int             `json:"trick_points,omitempty"`
	GameComplete  bool             `json:"game_complete"`
}

type TrickStateData struct {
	Trick      *game.TrickState `json:"trick"`
	LegalCards []string         `json:"legal_cards"`
	YourTurn   bool             `json:"your_turn"`
	YourHand   []string         `json:"your_hand,omitempty"`
	Score      ScoreData        `json:"score"`
}

type GameCompleteData struct {
	TrumpTeamPoints    int               `json:"trump_team_points"`
	OpponentTeamPoints int               `json:"opponent_team_points"`
	TrumpTeamTricks    int               `json:"trump_team_tricks"`
	OpponentTeamTricks int               `json:"opponent_team_tricks"`
	ResultKind         game.ResultKind   `json:"result_kind"`
	Description        string            `json:"description"`
	IndividualVol      bool              `json:"individual_vol"`
	TrumpTeamDelta     int               `json:"trump_team_delta"`
	OpponentTeamDelta  int               `json:"opponent_team_delta"`
	CrossScores        game.CrossResult  `json:"cross_scores"`
	CrossStateAfter    game.CrossSummary `json:"cross_state_after"`
	CrossWinner        *game.CrossWinner `json:"cross_winner,omitempty"`
	NewGameReady       bool              `json:"new_game_ready"`
}

type GameTerminatedData struct {
	Reason string `json:"reason"`
	Seat   int    `json:"seat"`
	UserID string `json:"user_id"`
}

// Snapshot payloads. Private fields are pointers so they are omitted, not
// sent empty, for users who do not hold the seat.

type WaitingSnapshot struct {
	Players       []PlayerInfo `json:"players"`
	IsHost        bool         `json:"is_host"`
	PlayersNeeded int          `json:"players_needed"`
	CanStart      bool         `json:"can_start"`
}

type DealingSnapshot struct {
	DealerPosition  *int   `json:"dealer_position,omitempty"`
	DealingProgress string `json:"dealing_progress"`
}

// BidInfo is the standing highest bid with the suit withheld until bidding
// completes.
type BidInfo struct {
	Length int `json:"length"`
	Bidder int `json:"bidder"`
}

// BidActionInfo is one auction action in the snapshot's bid history. Bids
// carry their length only; the suit stays hidden until the auction closes.
type BidActionInfo struct {
	Seat     int    `json:"seat"`
	Username string `json:"username"`
	Action   string `json:"action"`
	Length   int    `json:"length,omitempty"`
}

type BiddingSnapshot struct {
	Players        []PlayerInfo    `json:"players"`
	DealerPosition *int            `json:"dealer_position,omitempty"`
	CurrentBidder  *int            `json:"current_bidder,omitempty"`
	HighestBid     *BidInfo        `json:"highest_bid,omitempty"`
	PassedSeats    []int           `json:"passed_seats"`
	BidHistory     []BidActionInfo `json:"bid_history"`
	Hand           *HandStateData  `json:"hand,omitempty"`
}

// PlayedCardInfo mirrors a trick entry with the owner's display name.
type PlayedCardInfo struct {
	Seat     int    `json:"seat"`
	Username string `json:"username"`
	CardCode string `json:"card_code"`
}

type PlayingSnapshot struct {
	Players       []PlayerInfo     `json:"players"`
	TrumpSuit     string           `json:"trump_suit"`
	Declarer      int              `json:"declarer"`
	TrumpTeam     [2]int           `json:"trump_team"`
	OpponentTeam  [2]int           `json:"opponent_team"`
	TrickNumber   int              `json:"trick_number"`
	CardsPlayed   []PlayedCardInfo `json:"cards_played"`
	CurrentPlayer int              `json:"current_player"`
	CurrentLeader *int             `json:"current_leader,omitempty"`
	Score         ScoreData        `json:"score"`
	Hand          []string         `json:"hand,omitempty"`
	LegalCards    []string         `json:"legal_cards,omitempty"`
}

type CompletedSnapshot struct {
	Players         []PlayerInfo       `json:"players"`
	LastResult      *GameCompleteData  `json:"last_result,omitempty"`
	CrossState      *game.CrossSummary `json:"cross_state,omitempty"`
	CanStartNewGame bool               `json:"can_start_new_game"`
}
