package server

import (
	"sync"

	"github.com/charmbracelet/log"

	"github.com/sjavsgame/sjavs-server/internal/game"
)

// Sink is an outbound message destination, normally a live WebSocket
// connection.
type Sink interface {
	SendMessage(msg *Message) error
	Close() error
}

// Registry is the process-wide map of connected users and the match each is
// watching. One sink per user; a new connection for the same user replaces and
// closes the old one.
type Registry struct {
	logger *log.Logger

	mu        sync.RWMutex
	sinks     map[string]Sink
	userMatch map[string]string
	matches   map[string]map[string]struct{}
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *log.Logger) *Registry {
	return &Registry{
		logger:    logger.WithPrefix("registry"),
		sinks:     make(map[string]Sink),
		userMatch: make(map[string]string),
		matches:   make(map[string]map[string]struct{}),
	}
}

// Register installs the user's outbound sink, closing any previous connection
// for the same user.
func (r *Registry) Register(userID string, sink Sink) {
	r.mu.Lock()
	prior := r.sinks[userID]
	r.sinks[userID] = sink
	r.mu.Unlock()

	if prior != nil && prior != sink {
		r.logger.Info("replacing existing connection", "user_id", userID)
		_ = prior.Close()
	}
}

// Unregister removes the user's sink if it is still the given one, and drops
// the user from their match's connected set. It returns the match the user was
// watching and whether they were its last connected member, so the caller can
// release the match's channel subscription.
func (r *Registry) Unregister(userID string, sink Sink) (matchID string, last bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if current, ok := r.sinks[userID]; !ok || current != sink {
		return "", false
	}
	delete(r.sinks, userID)
	return r.leaveLocked(userID)
}

// JoinMatch marks the user as watching a match. It reports whether they are
// the first connected member, in which case the caller subscribes the match's
// channel.
func (r *Registry) JoinMatch(userID, matchID string) (first bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prior, ok := r.userMatch[userID]; ok && prior != matchID {
		r.removeFromMatchLocked(userID, prior)
	}
	r.userMatch[userID] = matchID

	members, ok := r.matches[matchID]
	if !ok {
		members = make(map[string]struct{})
		r.matches[matchID] = members
	}
	members[userID] = struct{}{}
	return len(members) == 1
}

// LeaveMatch drops the user from their match's connected set, reporting the
// match and whether they were the last connected member.
func (r *Registry) LeaveMatch(userID string) (matchID string, last bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.leaveLocked(userID)
}

func (r *Registry) leaveLocked(userID string) (string, bool) {
	matchID, ok := r.userMatch[userID]
	if !ok {
		return "", false
	}
	delete(r.userMatch, userID)
	return matchID, r.removeFromMatchLocked(userID, matchID)
}

func (r *Registry) removeFromMatchLocked(userID, matchID string) bool {
	members, ok := r.matches[matchID]
	if !ok {
		return false
	}
	delete(members, userID)
	if len(members) == 0 {
		delete(r.matches, matchID)
		return true
	}
	return false
}

// ConnectedUsers returns the users currently watching a match.
func (r *Registry) ConnectedUsers(matchID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make([]string, 0, len(r.matches[matchID]))
	for userID := range r.matches[matchID] {
		users = append(users, userID)
	}
	return users
}

// SendTo delivers a message to a single user. Delivery is best-effort; a
// missing or saturated sink drops the message.
func (r *Registry) SendTo(userID string, msg *Message) error {
	r.mu.RLock()
	sink, ok := r.sinks[userID]
	r.mu.RUnlock()

	if !ok {
		return game.NewError(game.CodeNotInGame, "user %s is not connected", userID)
	}
	return sink.SendMessage(msg)
}

// Broadcast fans a message out to every connected member of a match,
// returning the number of successful sends.
func (r *Registry) Broadcast(matchID string, msg *Message) int {
	r.mu.RLock()
	sinks := make([]Sink, 0, len(r.matches[matchID]))
	for userID := range r.matches[matchID] {
		if sink, ok := r.sinks[userID]; ok {
			sinks = append(sinks, sink)
		}
	}
	r.mu.RUnlock()

	sent := 0
	for _, sink := range sinks {
		if err := sink.SendMessage(msg); err == nil {
			sent++
		}
	}
	return sent
}
