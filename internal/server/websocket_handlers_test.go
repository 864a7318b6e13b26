package server

import (
	"context"
	"testing"

	"parlor/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seatUserDirect(t *testing.T, s *Server, roomID, hostID, userID uint, index int) {
	t.Helper()
	ctx := context.Background()
	req, err := s.seatSvc.RequestSeat(ctx, roomID, userID, &index)
	require.NoError(t, err)
	_, err = s.seatSvc.ResolveRequest(ctx, req.ID, hostID, true)
	require.NoError(t, err)
}

func TestDisconnectCleanupIsRoomScoped(t *testing.T) {
	s, db := setupTestServer(t)
	ctx := context.Background()
	roomA := createTestRoom(t, s, 1)
	roomB := createTestRoom(t, s, 2)

	// User 5 is present in both rooms and holds a seat in room A
	_, err := s.presenceSvc.Join(ctx, roomA.ID, 5, false)
	require.NoError(t, err)
	_, err = s.presenceSvc.Join(ctx, roomB.ID, 5, false)
	require.NoError(t, err)
	seatUserDirect(t, s, roomA.ID, 1, 5, 0)

	clientA, err := s.hub.Register(roomA.ID, 5, nil)
	require.NoError(t, err)
	_, err = s.hub.Register(roomB.ID, 5, nil)
	require.NoError(t, err)

	// The room-A socket drops; the surviving room-B socket must not keep
	// room A's presence or seat alive
	s.hub.UnregisterClient(clientA)
	s.handleRoomDisconnect(ctx, clientA)

	pA, err := s.presenceSvc.Get(ctx, roomA.ID, 5)
	require.NoError(t, err)
	assert.False(t, pA.Connected())

	var seat models.Seat
	require.NoError(t, db.Where("room_id = ? AND seat_index = 0", roomA.ID).First(&seat).Error)
	assert.Nil(t, seat.OccupantID)

	// Room B is untouched
	pB, err := s.presenceSvc.Get(ctx, roomB.ID, 5)
	require.NoError(t, err)
	assert.True(t, pB.Connected())
}

func TestDisconnectWaitsForLastSocketInRoom(t *testing.T) {
	s, db := setupTestServer(t)
	ctx := context.Background()
	room := createTestRoom(t, s, 1)

	_, err := s.presenceSvc.Join(ctx, room.ID, 5, false)
	require.NoError(t, err)
	seatUserDirect(t, s, room.ID, 1, 5, 0)

	// Two tabs in the same room
	first, err := s.hub.Register(room.ID, 5, nil)
	require.NoError(t, err)
	second, err := s.hub.Register(room.ID, 5, nil)
	require.NoError(t, err)

	s.hub.UnregisterClient(first)
	s.handleRoomDisconnect(ctx, first)

	p, err := s.presenceSvc.Get(ctx, room.ID, 5)
	require.NoError(t, err)
	assert.True(t, p.Connected(), "presence must survive while another socket remains in the room")

	s.hub.UnregisterClient(second)
	s.handleRoomDisconnect(ctx, second)

	p, err = s.presenceSvc.Get(ctx, room.ID, 5)
	require.NoError(t, err)
	assert.False(t, p.Connected())

	var seat models.Seat
	require.NoError(t, db.Where("room_id = ? AND seat_index = 0", room.ID).First(&seat).Error)
	assert.Nil(t, seat.OccupantID)
}

func TestRegisterFailureRollsBackPresence(t *testing.T) {
	s, _ := setupTestServer(t)
	ctx := context.Background()
	room := createTestRoom(t, s, 1)
	other := createTestRoom(t, s, 2)

	// Exhaust the per-user connection allowance elsewhere
	for i := 0; i < 100; i++ {
		if _, err := s.hub.Register(other.ID, 5, nil); err != nil {
			break
		}
	}

	_, _, err := s.joinAndRegister(ctx, room, 5, nil)
	require.Error(t, err)

	// The presence write was rolled back, not left connected without a socket
	p, err := s.presenceSvc.Get(ctx, room.ID, 5)
	require.NoError(t, err)
	assert.False(t, p.Connected())
}
