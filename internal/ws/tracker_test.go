package ws

import (
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"room-chat/internal/models"
)

func newTestConn(connID, userID, name string, buffer int) *Conn {
	return NewConn(ConnInfo{ConnID: connID, UserID: userID, DisplayName: name}, buffer)
}

func TestTrackerJoinIsIdempotent(t *testing.T) {
	tracker := NewTracker()
	conn := newTestConn("c1", "U1", "Ana", 4)
	tracker.Register(conn)

	evt, added, err := tracker.Join("c1", "R")
	require.NoError(t, err)
	assert.True(t, added)
	assert.Equal(t, models.EventUserJoined, evt.Type)
	assert.Equal(t, "R", evt.RoomID)
	assert.Equal(t, "U1", evt.UserID)
	assert.Equal(t, "Ana", evt.DisplayName)

	_, added, err = tracker.Join("c1", "R")
	require.NoError(t, err)
	assert.False(t, added)
	assert.Len(t, tracker.MembersOf("R"), 1)
}

func TestTrackerJoinUnknownConnection(t *testing.T) {
	tracker := NewTracker()

	_, _, err := tracker.Join("missing", "R")
	require.ErrorIs(t, err, ErrUnknownConnection)
}

func TestTrackerLeave(t *testing.T) {
	tracker := NewTracker()
	tracker.Register(newTestConn("c1", "U1", "Ana", 4))

	_, removed := tracker.Leave("c1", "R")
	assert.False(t, removed, "leaving a room never joined is a no-op")

	_, _, err := tracker.Join("c1", "R")
	require.NoError(t, err)

	evt, removed := tracker.Leave("c1", "R")
	assert.True(t, removed)
	assert.Equal(t, models.EventUserLeft, evt.Type)
	assert.Empty(t, tracker.MembersOf("R"))
	assert.False(t, tracker.IsMember("c1", "R"))
	assert.Empty(t, tracker.RoomsOf("c1"))
}

func TestTrackerOnDisconnect(t *testing.T) {
	tracker := NewTracker()
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	tracker.now = func() time.Time { return at }

	tracker.Register(newTestConn("c1", "U1", "Ana", 4))
	tracker.Register(newTestConn("c2", "U2", "Bo", 4))
	for _, room := range []string{"R2", "R1"} {
		_, _, err := tracker.Join("c1", room)
		require.NoError(t, err)
	}
	_, _, err := tracker.Join("c2", "R1")
	require.NoError(t, err)

	events := tracker.OnDisconnect("c1")
	require.Len(t, events, 2)
	assert.Equal(t, "R1", events[0].RoomID)
	assert.Equal(t, "R2", events[1].RoomID)
	for _, evt := range events {
		assert.Equal(t, models.EventUserLeft, evt.Type)
		assert.Equal(t, "U1", evt.UserID)
		assert.Equal(t, at, evt.Timestamp)
	}

	assert.Equal(t, 1, tracker.Len())
	assert.Len(t, tracker.MembersOf("R1"), 1)
	assert.Empty(t, tracker.MembersOf("R2"))
	_, ok := tracker.Conn("c1")
	assert.False(t, ok)

	assert.Nil(t, tracker.OnDisconnect("c1"))
}

func TestTrackerCloseClosesConnections(t *testing.T) {
	tracker := NewTracker()
	conn := newTestConn("c1", "U1", "Ana", 4)
	tracker.Register(conn)
	_, _, err := tracker.Join("c1", "R")
	require.NoError(t, err)

	tracker.Close()

	assert.True(t, conn.Closed())
	assert.Zero(t, tracker.Len())
	assert.Empty(t, tracker.MembersOf("R"))
}

func TestTrackerConcurrentJoinLeave(t *testing.T) {
	tracker := NewTracker()
	const n = 100
	for i := 0; i < n; i++ {
		tracker.Register(newTestConn(fmt.Sprintf("c%03d", i), fmt.Sprintf("U%d", i), "", 4))
	}

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, err := tracker.Join(fmt.Sprintf("c%03d", i), "R")
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()
	require.Len(t, tracker.MembersOf("R"), n)

	for i := 0; i < n; i += 2 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, removed := tracker.Leave(fmt.Sprintf("c%03d", i), "R")
			assert.True(t, removed)
		}(i)
	}
	wg.Wait()

	var got []string
	for _, conn := range tracker.MembersOf("R") {
		got = append(got, conn.ID())
	}
	sort.Strings(got)
	var want []string
	for i := 1; i < n; i += 2 {
		want = append(want, fmt.Sprintf("c%03d", i))
	}
	assert.Equal(t, want, got)
}
