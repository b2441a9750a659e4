package game

import (
	"errors"
	"fmt"
	"net/http"
)

// Code identifies an error kind with a stable wire representation.
type Code string

const (
	CodeMalformedCard    Code = "malformed_card"
	CodeMalformedRequest Code = "malformed_request"
	CodeInvalidPin       Code = "invalid_pin"

	CodeNotAuthenticated Code = "not_authenticated"
	CodeNotInGame        Code = "not_in_game"
	CodeNotHost          Code = "not_host"
	CodeNotYourTurn      Code = "not_your_turn"

	CodeGameNotFound           Code = "game_not_found"
	CodeWrongPhase             Code = "wrong_phase"
	CodeBiddingAlreadyComplete Code = "bidding_already_complete"
	CodeTrickAlreadyComplete   Code = "trick_already_complete"
	CodeGameAlreadyComplete    Code = "game_already_complete"

	CodeBidNotBetter           Code = "bid_not_better"
	CodeBidExceedsActualTrumps Code = "bid_exceeds_actual_trumps"
	CodeCardNotInHand          Code = "card_not_in_hand"
	CodeIllegalFollowSuit      Code = "illegal_follow_suit"

	CodeMatchFull         Code = "match_full"
	CodeDealingImpossible Code = "dealing_impossible"

	CodeInfrastructureUnavailable Code = "infrastructure_unavailable"
)

// Status returns the HTTP-analogous status for the code.
func (c Code) Status() int {
	switch c {
	case CodeMalformedCard, CodeMalformedRequest, CodeInvalidPin:
		return http.StatusBadRequest
	case CodeNotAuthenticated:
		return http.StatusUnauthorized
	case CodeNotInGame, CodeNotHost, CodeNotYourTurn:
		return http.StatusForbidden
	case CodeGameNotFound:
		return http.StatusNotFound
	case CodeWrongPhase, CodeBiddingAlreadyComplete, CodeTrickAlreadyComplete,
		CodeGameAlreadyComplete, CodeBidNotBetter, CodeBidExceedsActualTrumps,
		CodeCardNotInHand, CodeIllegalFollowSuit, CodeMatchFull:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Error is a rule or state violation with a stable code and a message that is
// safe to send to the client.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// Is matches on code so sentinel comparison with errors.Is works.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return e.Code == other.Code
	}
	return false
}

// Status returns the HTTP-analogous status.
func (e *Error) Status() int { return e.Code.Status() }

// NewError creates a typed error.
func NewError(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WrapError attaches a cause that is logged but not sent to clients.
func WrapError(code Code, cause error, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), cause: cause}
}

// Infrastructure wraps a transient store or bus failure. Callers may retry the
// whole command once.
func Infrastructure(cause error) *Error {
	return WrapError(CodeInfrastructureUnavailable, cause, "temporary server issue, please retry")
}

// AsError extracts a typed error, wrapping unknown errors as infrastructure
// failures so every surfaced error carries a code.
func AsError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Infrastructure(err)
}

// IsTransient reports whether the command may be retried.
func IsTransient(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == CodeInfrastructureUnavailable
}
