package service

import (
	"context"
	"testing"
	"time"

	"parlor/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBanEvictsSeatAndPresence(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	ctx := context.Background()
	room := env.createRoom(t, 1, 4)

	_, err := env.presenceSvc.Join(ctx, room.ID, 5, false)
	require.NoError(t, err)
	env.seatUser(t, room.ID, 1, 5, 2)

	result, err := env.modSvc.Ban(ctx, room.ID, 1, 5, "spamming")
	require.NoError(t, err)
	assert.Equal(t, uint(5), result.UserID)
	assert.True(t, result.WasConnected)
	require.NotNil(t, result.SeatIndex)
	assert.Equal(t, 2, *result.SeatIndex)

	// Seat is free again and the participant is disconnected
	assert.Nil(t, env.seatAt(t, room.ID, 2).OccupantID)
	p, err := env.presenceSvc.Get(ctx, room.ID, 5)
	require.NoError(t, err)
	assert.False(t, p.Connected())

	// And the user is refused at the door from now on
	err = env.modSvc.CheckAdmission(ctx, room.ID, 5)
	assertAppErrorCode(t, err, models.CodeForbidden)
}

func TestBanUserWithoutPresence(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	ctx := context.Background()
	room := env.createRoom(t, 1, 4)

	// Banning someone who never entered still records the ban
	result, err := env.modSvc.Ban(ctx, room.ID, 1, 9, "")
	require.NoError(t, err)
	assert.False(t, result.WasConnected)
	assert.Nil(t, result.SeatIndex)

	banned, err := env.modSvc.IsBanned(ctx, room.ID, 9)
	require.NoError(t, err)
	assert.True(t, banned)
}

func TestBanPermissions(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	ctx := context.Background()
	room := env.createRoom(t, 1, 4)

	_, err := env.modSvc.Ban(ctx, room.ID, 5, 6, "")
	assertAppErrorCode(t, err, models.CodeForbidden)

	_, err = env.modSvc.Ban(ctx, room.ID, 1, 1, "")
	assertAppErrorCode(t, err, models.CodeValidation)
}

func TestBanIdempotent(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	ctx := context.Background()
	room := env.createRoom(t, 1, 4)

	_, err := env.modSvc.Ban(ctx, room.ID, 1, 5, "first")
	require.NoError(t, err)
	_, err = env.modSvc.Ban(ctx, room.ID, 1, 5, "second")
	require.NoError(t, err)

	bans, err := env.modSvc.ListBans(ctx, room.ID, 1)
	require.NoError(t, err)
	require.Len(t, bans, 1)
	assert.Equal(t, "second", bans[0].Reason)
}

func TestUnban(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	ctx := context.Background()
	room := env.createRoom(t, 1, 4)

	_, err := env.modSvc.Ban(ctx, room.ID, 1, 5, "")
	require.NoError(t, err)

	require.NoError(t, env.modSvc.Unban(ctx, room.ID, 1, 5))
	require.NoError(t, env.modSvc.CheckAdmission(ctx, room.ID, 5))

	// Unbanning a user who is not banned is a no-op
	require.NoError(t, env.modSvc.Unban(ctx, room.ID, 1, 5))
}

func TestKickBlocksUntilExpiry(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	ctx := context.Background()
	room := env.createRoom(t, 1, 4)

	_, err := env.presenceSvc.Join(ctx, room.ID, 5, false)
	require.NoError(t, err)
	env.seatUser(t, room.ID, 1, 5, 0)

	result, err := env.modSvc.KickUser(ctx, room.ID, 1, 5)
	require.NoError(t, err)
	assert.True(t, result.WasConnected)
	require.NotNil(t, result.SeatIndex)

	err = env.modSvc.CheckAdmission(ctx, room.ID, 5)
	assertAppErrorCode(t, err, models.CodeForbidden)

	// Once the restriction lapses the user may come back with no host action
	err = env.db.Model(&models.RoomKick{}).
		Where("room_id = ? AND user_id = ?", room.ID, 5).
		Update("expires_at", time.Now().Add(-time.Minute)).Error
	require.NoError(t, err)

	require.NoError(t, env.modSvc.CheckAdmission(ctx, room.ID, 5))
}

func TestKickPermissions(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	ctx := context.Background()
	room := env.createRoom(t, 1, 4)

	_, err := env.modSvc.KickUser(ctx, room.ID, 5, 6)
	assertAppErrorCode(t, err, models.CodeForbidden)

	_, err = env.modSvc.KickUser(ctx, room.ID, 1, 1)
	assertAppErrorCode(t, err, models.CodeValidation)
}

func TestListBansRequiresHost(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	ctx := context.Background()
	room := env.createRoom(t, 1, 4)

	_, err := env.modSvc.ListBans(ctx, room.ID, 5)
	assertAppErrorCode(t, err, models.CodeForbidden)
}
