package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jaminalder/codex-reversi/internal/domain"
)

// Errors exposed by the service layer.
var (
	ErrNotFound = errors.New("board not found")
)

// BoardState is the in-memory state tracked per board.
type BoardState struct {
	ID      string
	Board   domain.Board
	Created time.Time
	Updated time.Time
}

// subscriber guards ch with mu so a send never races a close.
type subscriber struct {
	mu     sync.Mutex
	closed bool
	ch     chan []byte
	done   chan struct{}
}

func newSubscriber() *subscriber {
	return &subscriber{ch: make(chan []byte, 1), done: make(chan struct{})}
}

func (s *subscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
	close(s.done)
}

// send delivers without blocking and reports false when the buffer is full.
// A closed subscriber swallows the payload.
func (s *subscriber) send(payload []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return true
	}
	select {
	case s.ch <- payload:
		return true
	default:
		return false
	}
}

// Service manages board snapshots and subscribers.
type Service struct {
	mu     sync.Mutex
	boards map[string]*BoardState
	subs   map[string]map[*subscriber]struct{}
	render func(BoardState) []byte
	now    func() time.Time
}

// NewService creates a service with a default renderer (encodes nothing useful).
func NewService() *Service { return NewServiceWithRenderer(nil) }

// NewServiceWithRenderer allows injecting a renderer for broadcast payloads.
func NewServiceWithRenderer(renderer func(BoardState) []byte) *Service {
	if renderer == nil {
		renderer = func(BoardState) []byte { return nil }
	}
	return &Service{
		boards: make(map[string]*BoardState),
		subs:   make(map[string]map[*subscriber]struct{}),
		render: renderer,
		now:    time.Now,
	}
}

// SetRenderer replaces the broadcast renderer function.
func (s *Service) SetRenderer(renderer func(BoardState) []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if renderer == nil {
		s.render = func(BoardState) []byte { return nil }
		return
	}
	s.render = renderer
}

// CreateStandard registers a board in the opening position.
func (s *Service) CreateStandard() (*BoardState, error) {
	return s.register(domain.Standard()), nil
}

// CreateFromGrid registers a board built from grid.
func (s *Service) CreateFromGrid(grid [][]domain.Cell) (*BoardState, error) {
	b, err := domain.Of(grid)
	if err != nil {
		return nil, err
	}
	return s.register(b), nil
}

func (s *Service) register(b domain.Board) *BoardState {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	bs := &BoardState{ID: uuid.NewString(), Board: b, Created: now, Updated: now}
	s.boards[bs.ID] = bs
	cp := *bs
	return &cp
}

// Get returns a copy of the board state if present.
func (s *Service) Get(id string) (*BoardState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	bs, ok := s.boards[id]
	if !ok {
		return nil, false
	}
	cp := *bs
	return &cp, true
}

// Replace swaps in a new snapshot built from grid and broadcasts it.
func (s *Service) Replace(id string, grid [][]domain.Cell) (*BoardState, error) {
	b, err := domain.Of(grid)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	bs, ok := s.boards[id]
	if !ok {
		s.mu.Unlock()
		return nil, ErrNotFound
	}
	bs.Board = b
	bs.Updated = s.now()

	// Snapshot state and subscribers
	cp := *bs
	subs := s.copySubsLocked(id)
	payload := s.render(cp)
	s.mu.Unlock()

	s.broadcast(id, subs, payload)
	return &cp, nil
}

// Delete removes a board and closes its subscribers.
func (s *Service) Delete(id string) error {
	s.mu.Lock()
	if _, ok := s.boards[id]; !ok {
		s.mu.Unlock()
		return ErrNotFound
	}
	delete(s.boards, id)
	subs := s.subs[id]
	delete(s.subs, id)
	s.mu.Unlock()

	for sub := range subs {
		sub.close()
	}
	return nil
}

// CheckMove reports whether player may move at (r, c) on the board.
func (s *Service) CheckMove(id string, player domain.Player, r, c int) (bool, error) {
	bs, ok := s.Get(id)
	if !ok {
		return false, ErrNotFound
	}
	return bs.Board.IsValidMove(player, r, c)
}

// ValidMoves lists the legal targets for player on the board.
func (s *Service) ValidMoves(id string, player domain.Player) ([]domain.Coord, error) {
	bs, ok := s.Get(id)
	if !ok {
		return nil, ErrNotFound
	}
	return bs.Board.ValidMoves(player)
}

// Fields lists the coordinates holding state on the board.
func (s *Service) Fields(id string, state domain.Cell) ([]domain.Coord, error) {
	bs, ok := s.Get(id)
	if !ok {
		return nil, ErrNotFound
	}
	return bs.Board.FieldsWithState(state)
}

// Result computes the result of the board.
func (s *Service) Result(id string) (domain.Result, error) {
	bs, ok := s.Get(id)
	if !ok {
		return domain.Result{}, ErrNotFound
	}
	return bs.Board.Result(), nil
}

// Subscribe registers a subscriber for a board. Returns a channel and an
// unsubscribe func. The channel is closed right away for unknown boards.
func (s *Service) Subscribe(ctx context.Context, id string) (<-chan []byte, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub := newSubscriber()
	if _, ok := s.boards[id]; !ok {
		sub.close()
		return sub.ch, func() {}
	}
	set := s.subs[id]
	if set == nil {
		set = make(map[*subscriber]struct{})
		s.subs[id] = set
	}
	set[sub] = struct{}{}

	unsubOnce := &sync.Once{}
	unsub := func() {
		unsubOnce.Do(func() {
			s.mu.Lock()
			if set, ok := s.subs[id]; ok {
				delete(set, sub)
			}
			s.mu.Unlock()
			sub.close()
		})
	}
	go func() {
		select {
		case <-ctx.Done():
			unsub()
		case <-sub.done:
		}
	}()
	return sub.ch, unsub
}

// broadcast fans payload out; slow subscribers are closed and dropped.
func (s *Service) broadcast(id string, subs map[*subscriber]struct{}, payload []byte) {
	var toDrop []*subscriber
	for sub := range subs {
		if !sub.send(payload) {
			sub.close()
			toDrop = append(toDrop, sub)
		}
	}
	if len(toDrop) > 0 {
		s.mu.Lock()
		for _, sub := range toDrop {
			if set, ok := s.subs[id]; ok {
				delete(set, sub)
			}
		}
		s.mu.Unlock()
	}
}

func (s *Service) copySubsLocked(id string) map[*subscriber]struct{} {
	out := make(map[*subscriber]struct{})
	if set, ok := s.subs[id]; ok {
		for k := range set {
			out[k] = struct{}{}
		}
	}
	return out
}
