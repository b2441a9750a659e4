package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/require"

	"github.com/sjavsgame/sjavs-server/internal/card"
	"github.com/sjavsgame/sjavs-server/internal/game"
	"github.com/sjavsgame/sjavs-server/internal/randutil"
)

// fakeStore is an in-memory Storage. State round-trips through JSON on every
// save and load, mirroring what Redis serialization does to the real one.
type fakeStore struct {
	mu           sync.Mutex
	matches      map[string][]byte
	players      map[string][]string
	pins         map[string]string
	playerMatch  map[string]string
	usernames    map[string]string
	hands        map[string][]string
	trickStates  map[string][]byte
	trickHistory map[string][]game.TrickState
	crossStates  map[string][]byte
	gameResults  map[string][]byte
	events       []publishedEvent
	failures     map[string]int
}

type publishedEvent struct {
	MatchID string
	Msg     Message
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		matches:      make(map[string][]byte),
		players:      make(map[string][]string),
		pins:         make(map[string]string),
		playerMatch:  make(map[string]string),
		usernames:    make(map[string]string),
		hands:        make(map[string][]string),
		trickStates:  make(map[string][]byte),
		trickHistory: make(map[string][]game.TrickState),
		crossStates:  make(map[string][]byte),
		gameResults:  make(map[string][]byte),
		failures:     make(map[string]int),
	}
}

// failNext makes the next call to the named method fail as transient
// infrastructure.
func (f *fakeStore) failNext(method string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[method]++
}

func (f *fakeStore) fail(method string) error {
	if f.failures[method] > 0 {
		f.failures[method]--
		return game.Infrastructure(errors.New(method + " unavailable"))
	}
	return nil
}

func handMapKey(matchID string, seat int) string {
	return fmt.Sprintf("%s/%d", matchID, seat)
}

func (f *fakeStore) SaveMatch(_ context.Context, m *game.Match) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("SaveMatch"); err != nil {
		return err
	}
	blob, err := json.Marshal(m)
	if err != nil {
		return err
	}
	f.matches[m.ID] = blob
	return nil
}

func (f *fakeStore) LoadMatch(_ context.Context, matchID string) (*game.Match, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("LoadMatch"); err != nil {
		return nil, err
	}
	blob, ok := f.matches[matchID]
	if !ok {
		return nil, game.NewError(game.CodeGameNotFound, "match %s not found", matchID)
	}
	var m game.Match
	if err := json.Unmarshal(blob, &m); err != nil {
		return nil, err
	}
	m.Players = append([]string(nil), f.players[matchID]...)
	return &m, nil
}

func (f *fakeStore) SavePlayers(_ context.Context, matchID string, players []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.players[matchID] = append([]string(nil), players...)
	return nil
}

func (f *fakeStore) RegisterPin(_ context.Context, pin, matchID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pins[pin] = matchID
	return nil
}

func (f *fakeStore) PinInUse(_ context.Context, pin string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.pins[pin]
	return ok, nil
}

func (f *fakeStore) MatchIDByPin(_ context.Context, pin string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	matchID, ok := f.pins[pin]
	if !ok {
		return "", game.NewError(game.CodeInvalidPin, "no active match with that pin")
	}
	return matchID, nil
}

func (f *fakeStore) ReleasePin(_ context.Context, pin string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.pins, pin)
	return nil
}

func (f *fakeStore) SetPlayerMatch(_ context.Context, userID, matchID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.playerMatch[userID] = matchID
	return nil
}

func (f *fakeStore) PlayerMatch(_ context.Context, userID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("PlayerMatch"); err != nil {
		return "", err
	}
	return f.playerMatch[userID], nil
}

func (f *fakeStore) ClearPlayerMatch(_ context.Context, userIDs ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range userIDs {
		delete(f.playerMatch, id)
	}
	return nil
}

func (f *fakeStore) Username(_ context.Context, userID string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if name, ok := f.usernames[userID]; ok {
		return name
	}
	return userID
}

func (f *fakeStore) Usernames(_ context.Context, userIDs []string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make([]string, len(userIDs))
	for i, id := range userIDs {
		names[i] = id
		if name, ok := f.usernames[id]; ok {
			names[i] = name
		}
	}
	return names
}

func (f *fakeStore) SaveHands(_ context.Context, matchID string, hands [4][]card.Card) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for seat, cards := range hands {
		f.hands[handMapKey(matchID, seat)] = card.NewHand(cards, seat).Codes()
	}
	return nil
}

func (f *fakeStore) SaveHand(_ context.Context, matchID string, hand *card.Hand) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("SaveHand"); err != nil {
		return err
	}
	f.hands[handMapKey(matchID, hand.Seat)] = hand.Codes()
	return nil
}

func (f *fakeStore) LoadHand(_ context.Context, matchID string, seat int) (*card.Hand, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	codes, ok := f.hands[handMapKey(matchID, seat)]
	if !ok {
		return nil, nil
	}
	return card.HandFromCodes(codes, seat)
}

func (f *fakeStore) StoredHandCount(_ context.Context, matchID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for seat := 0; seat < game.MaxPlayers; seat++ {
		if _, ok := f.hands[handMapKey(matchID, seat)]; ok {
			count++
		}
	}
	return count, nil
}

func (f *fakeStore) SaveTrickState(_ context.Context, matchID string, state *game.GameTrickState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	blob, err := json.Marshal(state)
	if err != nil {
		return err
	}
	f.trickStates[matchID] = blob
	return nil
}

func (f *fakeStore) LoadTrickState(_ context.Context, matchID string) (*game.GameTrickState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	blob, ok := f.trickStates[matchID]
	if !ok {
		return nil, nil
	}
	var state game.GameTrickState
	if err := json.Unmarshal(blob, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

func (f *fakeStore) SaveTrickHistory(_ context.Context, matchID string, trick game.TrickState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.trickHistory[matchID] = append(f.trickHistory[matchID], trick)
	return nil
}

func (f *fakeStore) SaveCrossState(_ context.Context, matchID string, state *game.CrossState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	blob, err := json.Marshal(state)
	if err != nil {
		return err
	}
	f.crossStates[matchID] = blob
	return nil
}

func (f *fakeStore) LoadCrossState(_ context.Context, matchID string) (*game.CrossState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	blob, ok := f.crossStates[matchID]
	if !ok {
		return nil, nil
	}
	var state game.CrossState
	if err := json.Unmarshal(blob, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

func (f *fakeStore) DeleteCrossState(_ context.Context, matchID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.crossStates, matchID)
	return nil
}

func (f *fakeStore) SaveGameResult(_ context.Context, matchID string, blob []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gameResults[matchID] = append([]byte(nil), blob...)
	return nil
}

func (f *fakeStore) LoadGameResult(_ context.Context, matchID string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	blob, ok := f.gameResults[matchID]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), blob...), nil
}

func (f *fakeStore) DeleteGameKeys(_ context.Context, matchID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.trickStates, matchID)
	delete(f.trickHistory, matchID)
	for seat := 0; seat < game.MaxPlayers; seat++ {
		delete(f.hands, handMapKey(matchID, seat))
	}
	return nil
}

func (f *fakeStore) DeleteMatchKeys(_ context.Context, matchID string) error {
	_ = f.DeleteGameKeys(context.Background(), matchID)
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.crossStates, matchID)
	delete(f.gameResults, matchID)
	delete(f.players, matchID)
	return nil
}

func (f *fakeStore) PublishEvent(_ context.Context, matchID string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return err
	}
	f.events = append(f.events, publishedEvent{MatchID: matchID, Msg: msg})
	return nil
}

func (f *fakeStore) eventsOfType(messageType MessageType) []Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Message
	for _, ev := range f.events {
		if ev.Msg.Type == messageType {
			out = append(out, ev.Msg)
		}
	}
	return out
}

func (f *fakeStore) setHand(matchID string, seat int, codes ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hands[handMapKey(matchID, seat)] = codes
}

func (f *fakeStore) handCodes(matchID string, seat int) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.hands[handMapKey(matchID, seat)]...)
}

func decode(raw json.RawMessage, v any) error {
	return json.Unmarshal(raw, v)
}

func encode(msg *Message) ([]byte, error) {
	return json.Marshal(msg)
}

func encodeAny(v any) ([]byte, error) {
	return json.Marshal(v)
}

// fakeSubs records channel subscription churn.
type fakeSubs struct {
	mu           sync.Mutex
	subscribed   map[string]int
	unsubscribed map[string]int
}

func newFakeSubs() *fakeSubs {
	return &fakeSubs{subscribed: make(map[string]int), unsubscribed: make(map[string]int)}
}

func (f *fakeSubs) Subscribe(_ context.Context, matchID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscribed[matchID]++
	return nil
}

func (f *fakeSubs) Unsubscribe(_ context.Context, matchID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unsubscribed[matchID]++
	return nil
}

// testEnv wires a service against the fakes with a deterministic rng.
type testEnv struct {
	service  *GameService
	store    *fakeStore
	subs     *fakeSubs
	registry *Registry
	sinks    map[string]*fakeSink
	ctx      context.Context
}

func newTestEnv(t *testing.T, seed int64) *testEnv {
	t.Helper()
	st := newFakeStore()
	subs := newFakeSubs()
	registry := newTestRegistry()
	service := NewGameService(st, subs, registry, NewClock(nil), randutil.New(seed), log.New(io.Discard))
	return &testEnv{
		service:  service,
		store:    st,
		subs:     subs,
		registry: registry,
		sinks:    make(map[string]*fakeSink),
		ctx:      context.Background(),
	}
}

func (e *testEnv) connect(userID string) *fakeSink {
	sink := &fakeSink{}
	e.sinks[userID] = sink
	e.service.RegisterConnection(userID, sink)
	return sink
}

var testUsers = []string{"u0", "u1", "u2", "u3"}

// createFullMatch seats four connected users, u0 hosting.
func (e *testEnv) createFullMatch(t *testing.T) (matchID, pin string) {
	t.Helper()
	for _, u := range testUsers {
		e.connect(u)
	}
	created, err := e.service.CreateMatch(e.ctx, "u0", CreateMatchData{})
	require.NoError(t, err)
	for _, u := range testUsers[1:] {
		_, err := e.service.JoinMatch(e.ctx, u, JoinMatchData{Pin: created.Pin})
		require.NoError(t, err)
	}
	return created.MatchID, created.Pin
}
