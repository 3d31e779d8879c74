// internal/fanout/hub.go
package fanout

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
)

// DefaultBuffer is the per-subscriber queue length.
const DefaultBuffer = 64

// Subscriber is one connection joined to a room. Events arrive on Events in publish order; Done is
// closed when the subscriber leaves or is dropped for falling behind.
type Subscriber struct {
	PlayerID uuid.UUID
	Room     string

	events chan Event
	done   chan struct{}
	once   sync.Once
}

func (s *Subscriber) Events() <-chan Event  { return s.events }
func (s *Subscriber) Done() <-chan struct{} { return s.done }

func (s *Subscriber) close() {
	s.once.Do(func() { close(s.done) })
}

type room struct {
	subs       map[*Subscriber]struct{}
	emptySince time.Time
}

// Hub fans events out to the subscribers of each room on this instance. Delivery is ordered per
// room and never skips: a subscriber whose queue is full is disconnected instead.
type Hub struct {
	clock  clockwork.Clock
	logger *logrus.Logger
	buffer int

	mu    sync.Mutex
	rooms map[string]*room
}

func NewHub(clock clockwork.Clock, logger *logrus.Logger) *Hub {
	return &Hub{
		clock:  clock,
		logger: logger,
		buffer: DefaultBuffer,
		rooms:  make(map[string]*room),
	}
}

// SetBuffer changes the queue length for subscribers joining afterwards.
func (h *Hub) SetBuffer(n int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if n > 0 {
		h.buffer = n
	}
}

// Join subscribes playerID to code and announces the new member list to the room.
func (h *Hub) Join(code string, playerID uuid.UUID) *Subscriber {
	s := &Subscriber{
		PlayerID: playerID,
		Room:     code,
		done:     make(chan struct{}),
	}

	h.mu.Lock()
	s.events = make(chan Event, h.buffer)
	r, ok := h.rooms[code]
	if !ok {
		r = &room{subs: make(map[*Subscriber]struct{})}
		h.rooms[code] = r
	}
	r.subs[s] = struct{}{}
	r.emptySince = time.Time{}
	h.announceLocked(code, r, &playerID, nil)
	h.mu.Unlock()

	h.logger.WithFields(logrus.Fields{"match": code, "player": playerID}).Debug("joined room")
	return s
}

// Leave unsubscribes s. Calling it more than once is harmless.
func (h *Hub) Leave(s *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(s)
}

func (h *Hub) removeLocked(s *Subscriber) {
	r, ok := h.rooms[s.Room]
	if !ok {
		s.close()
		return
	}
	if _, member := r.subs[s]; !member {
		s.close()
		return
	}
	delete(r.subs, s)
	s.close()
	if len(r.subs) == 0 {
		r.emptySince = h.clock.Now()
		return
	}
	left := s.PlayerID
	h.announceLocked(s.Room, r, nil, &left)
}

// Publish delivers ev to every local subscriber of ev.MatchCode.
func (h *Hub) Publish(_ context.Context, ev Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if r, ok := h.rooms[ev.MatchCode]; ok {
		h.deliverLocked(r, ev)
	}
	return nil
}

func (h *Hub) deliverLocked(r *room, ev Event) {
	var slow []*Subscriber
	for s := range r.subs {
		select {
		case s.events <- ev:
		default:
			slow = append(slow, s)
		}
	}
	for _, s := range slow {
		h.logger.WithFields(logrus.Fields{
			"match":  ev.MatchCode,
			"player": s.PlayerID,
		}).Warn("subscriber fell behind, disconnecting")
		h.removeLocked(s)
	}
}

func (h *Hub) announceLocked(code string, r *room, joined, left *uuid.UUID) {
	ev, err := NewEvent(EventRoomUpdate, code, h.clock.Now(), RoomUpdate{
		Members: membersLocked(r),
		Joined:  joined,
		Left:    left,
	})
	if err != nil {
		h.logger.WithError(err).Error("failed to build room update")
		return
	}
	h.deliverLocked(r, ev)
}

// Members returns the distinct players currently joined to code.
func (h *Hub) Members(code string) []uuid.UUID {
	h.mu.Lock()
	defer h.mu.Unlock()
	r, ok := h.rooms[code]
	if !ok {
		return nil
	}
	return membersLocked(r)
}

func membersLocked(r *room) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(r.subs))
	out := make([]uuid.UUID, 0, len(r.subs))
	for s := range r.subs {
		if _, dup := seen[s.PlayerID]; dup {
			continue
		}
		seen[s.PlayerID] = struct{}{}
		out = append(out, s.PlayerID)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

// AbandonedRooms returns the rooms that have had no subscriber for at least grace.
func (h *Hub) AbandonedRooms(grace time.Duration) []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	now := h.clock.Now()
	var out []string
	for code, r := range h.rooms {
		if len(r.subs) == 0 && !r.emptySince.IsZero() && now.Sub(r.emptySince) >= grace {
			out = append(out, code)
		}
	}
	return out
}

// Forget drops an empty room so it is no longer reported as abandoned.
func (h *Hub) Forget(code string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if r, ok := h.rooms[code]; ok && len(r.subs) == 0 {
		delete(h.rooms, code)
	}
}
