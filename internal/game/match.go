package game

import (
	rand "math/rand/v2"

	"github.com/sjavsgame/sjavs-server/internal/card"
)

// Status is the lifecycle phase of a match.
type Status string

const (
	StatusWaiting   Status = "waiting"
	StatusDealing   Status = "dealing"
	StatusBidding   Status = "bidding"
	StatusPlaying   Status = "playing"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// ParseStatus maps a stored status string, defaulting to waiting for unknown
// values.
func ParseStatus(s string) Status {
	switch Status(s) {
	case StatusDealing, StatusBidding, StatusPlaying, StatusCompleted, StatusCancelled:
		return Status(s)
	default:
		return StatusWaiting
	}
}

// MaxPlayers is the fixed table size.
const MaxPlayers = 4

// Match is the authoritative per-match state. All mutations are gated on the
// current phase; a failed precondition returns a typed error and leaves the
// match untouched.
type Match struct {
	ID               string
	Pin              string
	Status           Status
	Players          []string // index is the seat
	DealerPosition   *int
	CurrentBidder    *int
	CurrentLeader    *int
	TrumpSuit        *card.Suit
	TrumpDeclarer    *int
	HighestBidLength int
	HighestBidder    *int
	HighestBidSuit   *card.Suit
	BiddingPasses    []int
	NumberOfCrosses  int
	CurrentCross     int
	CreatedTimestamp int64
}

// NewMatch creates a waiting match with the creator seated as host.
func NewMatch(id, pin, hostUserID string, numberOfCrosses int, nowMs int64) *Match {
	if numberOfCrosses < 1 {
		numberOfCrosses = 1
	}
	return &Match{
		ID:               id,
		Pin:              pin,
		Status:           StatusWaiting,
		Players:          []string{hostUserID},
		NumberOfCrosses:  numberOfCrosses,
		CreatedTimestamp: nowMs,
	}
}

// Host returns the user id in seat 0.
func (m *Match) Host() string {
	if len(m.Players) == 0 {
		return ""
	}
	return m.Players[0]
}

// IsHost reports whether the user occupies seat 0.
func (m *Match) IsHost(userID string) bool {
	return m.Host() == userID
}

// SeatOf returns the seat a user occupies.
func (m *Match) SeatOf(userID string) (int, bool) {
	for seat, id := range m.Players {
		if id == userID {
			return seat, true
		}
	}
	return 0, false
}

// AddPlayer seats a joining user.
func (m *Match) AddPlayer(userID string) (int, error) {
	if m.Status != StatusWaiting {
		return 0, NewError(CodeWrongPhase, "match is %s, not accepting players", m.Status)
	}
	if len(m.Players) >= MaxPlayers {
		return 0, NewError(CodeMatchFull, "match already has %d players", MaxPlayers)
	}
	if _, seated := m.SeatOf(userID); seated {
		return 0, NewError(CodeWrongPhase, "already seated in this match")
	}
	m.Players = append(m.Players, userID)
	return len(m.Players) - 1, nil
}

// LeaveOutcome reports what a Leave did to the match.
type LeaveOutcome struct {
	Seat      int
	WasHost   bool
	Cancelled bool
}

// RemovePlayer handles a leave. While waiting, a non-host leave frees the
// seat and a host leave cancels the match; once a game is underway any leave
// cancels.
func (m *Match) RemovePlayer(userID string) (LeaveOutcome, error) {
	seat, seated := m.SeatOf(userID)
	if !seated {
		return LeaveOutcome{}, NewError(CodeNotInGame, "not seated in this match")
	}

	out := LeaveOutcome{Seat: seat, WasHost: seat == 0}
	switch m.Status {
	case StatusWaiting:
		if out.WasHost {
			m.Status = StatusCancelled
			out.Cancelled = true
			return out, nil
		}
		m.Players = append(m.Players[:seat], m.Players[seat+1:]...)
		return out, nil
	case StatusCompleted, StatusCancelled:
		return out, nil
	default:
		m.Status = StatusCancelled
		out.Cancelled = true
		return out, nil
	}
}

// Start moves a full table into dealing. Host only. The first game picks a
// random dealer; later games keep the rotation applied by PrepareNextGame.
func (m *Match) Start(userID string, rng *rand.Rand) error {
	if !m.IsHost(userID) {
		return NewError(CodeNotHost, "only the host can start the game")
	}
	if m.Status != StatusWaiting {
		return NewError(CodeWrongPhase, "match is %s", m.Status)
	}
	if len(m.Players) != MaxPlayers {
		return NewError(CodeWrongPhase, "need %d players, have %d", MaxPlayers, len(m.Players))
	}

	if m.DealerPosition == nil {
		dealer := rng.IntN(MaxPlayers)
		m.DealerPosition = &dealer
	}
	m.clearBiddingState()
	m.clearGameState()
	m.Status = StatusDealing
	return nil
}

// BeginBidding transitions dealing to bidding once hands are stored. The seat
// left of the dealer opens.
func (m *Match) BeginBidding() error {
	if m.Status != StatusDealing {
		return NewError(CodeWrongPhase, "match is %s", m.Status)
	}
	if m.DealerPosition == nil {
		return NewError(CodeWrongPhase, "no dealer selected")
	}
	bidder := (*m.DealerPosition + 1) % MaxPlayers
	m.CurrentBidder = &bidder
	m.Status = StatusBidding
	return nil
}

// StrictlyBeats reports whether a new bid outranks the standing one: longer
// always wins, and clubs wins at equal length against a non-club bid.
func StrictlyBeats(newLength int, newSuit card.Suit, curLength int, curSuit *card.Suit) bool {
	if newLength > curLength {
		return true
	}
	if newLength == curLength && curSuit != nil {
		return newSuit == card.Clubs && *curSuit != card.Clubs
	}
	return false
}

// BidOutcome reports the bidding round state after an accepted bid.
type BidOutcome struct {
	NextBidder      *int
	BiddingComplete bool
}

// Bid records a declaration from the current bidder. The hand must actually
// hold the declared trump length.
func (m *Match) Bid(seat, length int, suit card.Suit, hand *card.Hand) (BidOutcome, error) {
	if m.Status != StatusBidding {
		return BidOutcome{}, NewError(CodeWrongPhase, "match is %s", m.Status)
	}
	if m.CurrentBidder == nil || seat != *m.CurrentBidder {
		return BidOutcome{}, NewError(CodeNotYourTurn, "seat %d to bid", derefSeat(m.CurrentBidder))
	}
	if length < 5 || length > 8 {
		return BidOutcome{}, NewError(CodeMalformedRequest, "bid length must be 5-8, got %d", length)
	}
	if !StrictlyBeats(length, suit, m.HighestBidLength, m.HighestBidSuit) {
		return BidOutcome{}, NewError(CodeBidNotBetter,
			"bid of %d %s does not beat %d", length, suit.Name(), m.HighestBidLength)
	}
	if hand.TrumpCounts()[suit] < length {
		return BidOutcome{}, NewError(CodeBidExceedsActualTrumps,
			"hand has %d %s trumps, bid %d", hand.TrumpCounts()[suit], suit.Name(), length)
	}

	s := suit
	m.HighestBidLength = length
	m.HighestBidder = &seat
	m.HighestBidSuit = &s

	if m.biddingDecided() {
		m.CurrentBidder = nil
		return BidOutcome{BiddingComplete: true}, nil
	}
	next := m.nextActiveBidder(seat)
	m.CurrentBidder = &next
	return BidOutcome{NextBidder: &next}, nil
}

// PassOutcome reports the bidding round state after a pass.
type PassOutcome struct {
	NextBidder      *int
	AllPassed       bool
	BiddingComplete bool
}

// Pass records a pass from the current bidder. Four passes with no bid force
// a redeal; three passes against a standing bid decide the auction.
func (m *Match) Pass(seat int) (PassOutcome, error) {
	if m.Status != StatusBidding {
		return PassOutcome{}, NewError(CodeWrongPhase, "match is %s", m.Status)
	}
	if m.CurrentBidder == nil || seat != *m.CurrentBidder {
		return PassOutcome{}, NewError(CodeNotYourTurn, "seat %d to bid", derefSeat(m.CurrentBidder))
	}
	if m.hasPassed(seat) {
		return PassOutcome{}, NewError(CodeWrongPhase, "seat %d already passed", seat)
	}

	m.BiddingPasses = append(m.BiddingPasses, seat)

	if len(m.BiddingPasses) == MaxPlayers {
		// Nobody bid; the same dealer redeals.
		return PassOutcome{AllPassed: true}, nil
	}
	if m.biddingDecided() {
		m.CurrentBidder = nil
		return PassOutcome{BiddingComplete: true}, nil
	}
	next := m.nextActiveBidder(seat)
	m.CurrentBidder = &next
	return PassOutcome{NextBidder: &next}, nil
}

// biddingDecided reports whether the auction is over: three seats have passed
// against a standing bid, leaving only the highest bidder active.
func (m *Match) biddingDecided() bool {
	if m.HighestBidder == nil {
		return false
	}
	if len(m.BiddingPasses) < MaxPlayers-1 {
		return false
	}
	// Safety net: the one remaining seat must be the highest bidder.
	return !m.hasPassed(*m.HighestBidder)
}

func (m *Match) hasPassed(seat int) bool {
	for _, s := range m.BiddingPasses {
		if s == seat {
			return true
		}
	}
	return false
}

// nextActiveBidder walks clockwise from seat to the next seat that has not
// passed.
func (m *Match) nextActiveBidder(seat int) int {
	next := (seat + 1) % MaxPlayers
	for m.hasPassed(next) {
		next = (next + 1) % MaxPlayers
	}
	return next
}

// FinishBidding moves a decided auction into play: trump and declarer are
// fixed and the seat left of the dealer leads trick 1.
func (m *Match) FinishBidding() error {
	if m.Status != StatusBidding {
		return NewError(CodeWrongPhase, "match is %s", m.Status)
	}
	if m.HighestBidder == nil || m.HighestBidSuit == nil {
		return NewError(CodeWrongPhase, "no winning bid")
	}

	m.TrumpSuit = m.HighestBidSuit
	m.TrumpDeclarer = m.HighestBidder
	leader := (*m.DealerPosition + 1) % MaxPlayers
	m.CurrentLeader = &leader
	m.CurrentBidder = nil
	m.Status = StatusPlaying
	return nil
}

// Redeal re-enters dealing after an all-pass auction, keeping the dealer.
func (m *Match) Redeal() error {
	if m.Status != StatusBidding {
		return NewError(CodeWrongPhase, "match is %s", m.Status)
	}
	if len(m.BiddingPasses) != MaxPlayers {
		return NewError(CodeWrongPhase, "redeal requires all %d seats to pass", MaxPlayers)
	}
	m.clearBiddingState()
	m.Status = StatusDealing
	return nil
}

// CompleteGame marks the 8-trick game finished.
func (m *Match) CompleteGame() error {
	if m.Status != StatusPlaying {
		return NewError(CodeWrongPhase, "match is %s", m.Status)
	}
	m.Status = StatusCompleted
	return nil
}

// PrepareNextGame readies the table for the next game of the rubber: the deal
// rotates and per-game state clears, but seats and cross totals stay.
func (m *Match) PrepareNextGame() error {
	if m.Status != StatusCompleted {
		return NewError(CodeWrongPhase, "match is %s", m.Status)
	}
	if m.DealerPosition != nil {
		dealer := (*m.DealerPosition + 1) % MaxPlayers
		m.DealerPosition = &dealer
	}
	m.clearBiddingState()
	m.clearGameState()
	m.Status = StatusWaiting
	return nil
}

func (m *Match) clearBiddingState() {
	m.CurrentBidder = nil
	m.HighestBidLength = 0
	m.HighestBidder = nil
	m.HighestBidSuit = nil
	m.BiddingPasses = nil
}

func (m *Match) clearGameState() {
	m.CurrentLeader = nil
	m.TrumpSuit = nil
	m.TrumpDeclarer = nil
}

func derefSeat(seat *int) int {
	if seat == nil {
		return -1
	}
	return *seat
}
