package ws

import (
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/samber/lo"

	"room-chat/internal/models"
)

var (
	ErrUnknownConnection = errors.New("unknown connection")
	ErrNotJoined         = errors.New("connection has not joined room")
)

// Tracker records which live connections are joined to which rooms. Membership
// lives in memory only and is dropped when a connection disconnects.
type Tracker struct {
	mu     sync.RWMutex
	conns  map[string]*Conn
	rooms  map[string]map[string]*Conn
	joined map[string]map[string]struct{}
	now    func() time.Time
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		conns:  make(map[string]*Conn),
		rooms:  make(map[string]map[string]*Conn),
		joined: make(map[string]map[string]struct{}),
		now:    time.Now,
	}
}

// Register makes a connection known so it can join rooms.
func (t *Tracker) Register(conn *Conn) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.conns[conn.ID()] = conn
	if _, ok := t.joined[conn.ID()]; !ok {
		t.joined[conn.ID()] = make(map[string]struct{})
	}
}

// Conn looks up a registered connection.
func (t *Tracker) Conn(connID string) (*Conn, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	conn, ok := t.conns[connID]
	return conn, ok
}

// Join adds the connection to roomID. Joining twice is a no-op that reports
// added=false. The returned UserJoined event is meant for broadcast.
func (t *Tracker) Join(connID, roomID string) (models.Event, bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	conn, ok := t.conns[connID]
	if !ok {
		return models.Event{}, false, ErrUnknownConnection
	}

	members, ok := t.rooms[roomID]
	if !ok {
		members = make(map[string]*Conn)
		t.rooms[roomID] = members
	}
	_, already := members[connID]
	members[connID] = conn
	t.joined[connID][roomID] = struct{}{}

	info := conn.Info()
	evt := models.PresenceEvent(models.EventUserJoined, roomID, info.UserID, info.DisplayName, t.now().UTC())
	return evt, !already, nil
}

// Leave removes the connection from roomID if present.
func (t *Tracker) Leave(connID, roomID string) (models.Event, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	conn, ok := t.conns[connID]
	if !ok {
		return models.Event{}, false
	}
	removed := t.removeLocked(connID, roomID)

	info := conn.Info()
	return models.PresenceEvent(models.EventUserLeft, roomID, info.UserID, info.DisplayName, t.now().UTC()), removed
}

// OnDisconnect forgets the connection and removes it from every room it had
// joined. It returns one UserLeft event per room, ordered by room id.
func (t *Tracker) OnDisconnect(connID string) []models.Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	conn, ok := t.conns[connID]
	if !ok {
		return nil
	}

	roomIDs := lo.Keys(t.joined[connID])
	slices.Sort(roomIDs)
	info := conn.Info()
	at := t.now().UTC()
	events := make([]models.Event, 0, len(roomIDs))
	for _, roomID := range roomIDs {
		t.removeLocked(connID, roomID)
		events = append(events, models.PresenceEvent(models.EventUserLeft, roomID, info.UserID, info.DisplayName, at))
	}
	delete(t.joined, connID)
	delete(t.conns, connID)
	return events
}

// MembersOf returns a snapshot of the connections joined to roomID.
func (t *Tracker) MembersOf(roomID string) []*Conn {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return lo.Values(t.rooms[roomID])
}

// RoomsOf lists the rooms a connection has joined, sorted.
func (t *Tracker) RoomsOf(connID string) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	rooms := lo.Keys(t.joined[connID])
	slices.Sort(rooms)
	return rooms
}

func (t *Tracker) IsMember(connID, roomID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.rooms[roomID][connID]
	return ok
}

// Len reports the number of registered connections.
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.conns)
}

// Close drops all membership and closes every registered connection.
func (t *Tracker) Close() {
	t.mu.Lock()
	conns := lo.Values(t.conns)
	t.conns = make(map[string]*Conn)
	t.rooms = make(map[string]map[string]*Conn)
	t.joined = make(map[string]map[string]struct{})
	t.mu.Unlock()

	for _, conn := range conns {
		conn.Close()
	}
}

func (t *Tracker) removeLocked(connID, roomID string) bool {
	members, ok := t.rooms[roomID]
	if !ok {
		return false
	}
	if _, ok := members[connID]; !ok {
		return false
	}
	delete(members, connID)
	if len(members) == 0 {
		delete(t.rooms, roomID)
	}
	if rooms, ok := t.joined[connID]; ok {
		delete(rooms, roomID)
	}
	return true
}
