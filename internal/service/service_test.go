package service

import (
	"context"
	"testing"

	"parlor/internal/models"
	"parlor/internal/repository"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// testEnv bundles the services under test on a fresh in-memory database.
type testEnv struct {
	db          *gorm.DB
	roomSvc     *RoomService
	seatSvc     *SeatService
	presenceSvc *PresenceService
	modSvc      *ModerationService
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	if err := db.AutoMigrate(
		&models.Room{},
		&models.Seat{},
		&models.SeatRequest{},
		&models.Participant{},
		&models.RoomBan{},
		&models.RoomKick{},
	); err != nil {
		t.Fatalf("migrate sqlite: %v", err)
	}

	return db
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := setupTestDB(t)

	roomRepo := repository.NewRoomRepository(db)
	seatRepo := repository.NewSeatRepository(db)
	reqRepo := repository.NewSeatRequestRepository(db)
	participantRepo := repository.NewParticipantRepository(db)
	modRepo := repository.NewModerationRepository(db)

	return &testEnv{
		db:          db,
		roomSvc:     NewRoomService(roomRepo, nil),
		seatSvc:     NewSeatService(roomRepo, seatRepo, reqRepo, db),
		presenceSvc: NewPresenceService(roomRepo, participantRepo),
		modSvc:      NewModerationService(roomRepo, modRepo, seatRepo, participantRepo, db, nil),
	}
}

func (e *testEnv) createRoom(t *testing.T, hostID uint, seatCount int) *models.Room {
	t.Helper()
	room, err := e.roomSvc.CreateRoom(context.Background(), CreateRoomInput{
		HostID:    hostID,
		Name:      "test room",
		Provider:  models.RoomProviderAgora,
		SeatCount: seatCount,
	})
	require.NoError(t, err)
	return room
}

func (e *testEnv) seatUser(t *testing.T, roomID, hostID, userID uint, index int) {
	t.Helper()
	ctx := context.Background()
	req, err := e.seatSvc.RequestSeat(ctx, roomID, userID, &index)
	require.NoError(t, err)
	result, err := e.seatSvc.ResolveRequest(ctx, req.ID, hostID, true)
	require.NoError(t, err)
	require.NotNil(t, result.SeatIndex)
	require.Equal(t, index, *result.SeatIndex)
}

func (e *testEnv) seatAt(t *testing.T, roomID uint, index int) *models.Seat {
	t.Helper()
	var seat models.Seat
	err := e.db.Where("room_id = ? AND seat_index = ?", roomID, index).First(&seat).Error
	require.NoError(t, err)
	return &seat
}

func assertAppErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var appErr *models.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, code, appErr.Code)
}
