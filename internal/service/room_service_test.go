package service

import (
	"context"
	"testing"

	"parlor/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateRoomDefaults(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	ctx := context.Background()

	room, err := env.roomSvc.CreateRoom(ctx, CreateRoomInput{
		HostID:   1,
		Name:     "  jazz lounge  ",
		Provider: models.RoomProviderAgora,
	})
	require.NoError(t, err)

	assert.Equal(t, "jazz lounge", room.Name)
	assert.True(t, room.Live)
	assert.Equal(t, models.DefaultSeatCount, room.SeatCount)
	assert.Nil(t, room.EndedAt)

	// All seats exist up front, empty and unlocked
	seats, err := env.seatSvc.ListSeats(ctx, room.ID)
	require.NoError(t, err)
	require.Len(t, seats, models.DefaultSeatCount)
	for i, seat := range seats {
		assert.Equal(t, i, seat.SeatIndex)
		assert.Nil(t, seat.OccupantID)
		assert.False(t, seat.Locked)
	}

	// The host is a participant from the start
	p, err := env.presenceSvc.Get(ctx, room.ID, 1)
	require.NoError(t, err)
	assert.True(t, p.IsHost)
	assert.NotEmpty(t, p.RTCID)
}

func TestCreateRoomValidation(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.roomSvc.CreateRoom(ctx, CreateRoomInput{HostID: 1, Name: "   ", Provider: models.RoomProviderAgora})
	assertAppErrorCode(t, err, models.CodeValidation)

	_, err = env.roomSvc.CreateRoom(ctx, CreateRoomInput{HostID: 1, Name: "room", Provider: "webrtc"})
	assertAppErrorCode(t, err, models.CodeValidation)

	// A nonsensical seat count falls back to the default layout
	room, err := env.roomSvc.CreateRoom(ctx, CreateRoomInput{HostID: 1, Name: "room", Provider: models.RoomProviderAgora, SeatCount: -1})
	require.NoError(t, err)
	assert.Equal(t, models.DefaultSeatCount, room.SeatCount)
}

func TestEndRoom(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	ctx := context.Background()
	room := env.createRoom(t, 1, 4)

	t.Run("non-host cannot end", func(t *testing.T) {
		_, err := env.roomSvc.EndRoom(ctx, room.ID, 2)
		assertAppErrorCode(t, err, models.CodeForbidden)
	})

	t.Run("host ends room", func(t *testing.T) {
		ended, err := env.roomSvc.EndRoom(ctx, room.ID, 1)
		require.NoError(t, err)
		assert.False(t, ended.Live)
		require.NotNil(t, ended.EndedAt)
	})

	t.Run("ending twice reports not found", func(t *testing.T) {
		_, err := env.roomSvc.EndRoom(ctx, room.ID, 1)
		assertAppErrorCode(t, err, models.CodeNotFound)
	})

	t.Run("ended room is gone from live lookups", func(t *testing.T) {
		_, err := env.roomSvc.GetLiveRoom(ctx, room.ID)
		assertAppErrorCode(t, err, models.CodeNotFound)

		// but still visible by direct fetch for history
		got, err := env.roomSvc.GetRoom(ctx, room.ID)
		require.NoError(t, err)
		assert.False(t, got.Live)
	})
}

func TestListLiveRooms(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	ctx := context.Background()

	r1 := env.createRoom(t, 1, 4)
	r2 := env.createRoom(t, 2, 4)
	r3 := env.createRoom(t, 3, 4)

	_, err := env.roomSvc.EndRoom(ctx, r2.ID, 2)
	require.NoError(t, err)

	rooms, err := env.roomSvc.ListLiveRooms(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, rooms, 2)

	ids := []uint{rooms[0].ID, rooms[1].ID}
	assert.Contains(t, ids, r1.ID)
	assert.Contains(t, ids, r3.ID)
	assert.NotContains(t, ids, r2.ID)
}

func TestGetRoomNotFound(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	_, err := env.roomSvc.GetRoom(context.Background(), 999)
	assertAppErrorCode(t, err, models.CodeNotFound)
}
