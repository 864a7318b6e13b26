package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"testing"

	"parlor/internal/config"
	"parlor/internal/models"
	"parlor/internal/notifications"
	"parlor/internal/repository"
	"parlor/internal/rtctoken"
	"parlor/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestServer(t *testing.T) (*Server, *gorm.DB) {
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

	roomRepo := repository.NewRoomRepository(db)
	seatRepo := repository.NewSeatRepository(db)
	reqRepo := repository.NewSeatRequestRepository(db)
	participantRepo := repository.NewParticipantRepository(db)
	modRepo := repository.NewModerationRepository(db)

	issuer := rtctoken.NewIssuer(&config.Config{
		AgoraAppID:   "test-app",
		AgoraAppCert: "test-cert",
		RTCTokenTTL:  3600,
	})

	s := &Server{
		db:          db,
		issuer:      issuer,
		roomSvc:     service.NewRoomService(roomRepo, nil),
		seatSvc:     service.NewSeatService(roomRepo, seatRepo, reqRepo, db),
		presenceSvc: service.NewPresenceService(roomRepo, participantRepo),
		modSvc:      service.NewModerationService(roomRepo, modRepo, seatRepo, participantRepo, db, nil),
		hub:         notifications.NewRoomHub(),
	}
	return s, db
}

// testApp registers the seat and moderation routes with a stubbed identity.
func testApp(s *Server, userID uint) *fiber.App {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("userID", userID)
		return c.Next()
	})

	api := app.Group("/api")
	rooms := api.Group("/rooms")
	rooms.Post("/:id/seat-requests", s.RequestSeat)
	rooms.Get("/:id/seat-requests", s.ListSeatRequests)
	rooms.Post("/seat-requests/:requestId/resolve", s.ResolveSeatRequest)
	rooms.Post("/:id/seats/leave", s.LeaveSeat)
	rooms.Post("/:id/seats/mic", s.ToggleMic)
	rooms.Post("/:id/seats/:index/lock", s.LockSeat)
	rooms.Post("/:id/bans", s.BanUser)
	return app
}

func createTestRoom(t *testing.T, s *Server, hostID uint) *models.Room {
	t.Helper()
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("userID", hostID)
		return c.Next()
	})
	app.Post("/api/rooms", s.CreateRoom)

	body := jsonBody(t, fiber.Map{"name": "test room", "provider": "agora", "seat_count": 4})
	req := httptest.NewRequest("POST", "/api/rooms", body)
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var out struct {
		Room models.Room `json:"room"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return &out.Room
}

func jsonBody(t *testing.T, v interface{}) io.Reader {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewReader(data)
}

func TestSeatRequestFlowHTTP(t *testing.T) {
	s, db := setupTestServer(t)
	room := createTestRoom(t, s, 1)

	requesterApp := testApp(s, 5)
	hostApp := testApp(s, 1)

	// User 5 asks for seat 2
	req := httptest.NewRequest("POST",
		fmt.Sprintf("/api/rooms/%d/seat-requests", room.ID),
		jsonBody(t, fiber.Map{"desired_index": 2}))
	req.Header.Set("Content-Type", "application/json")
	resp, err := requesterApp.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var seatReq models.SeatRequest
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&seatReq))
	assert.Equal(t, models.SeatRequestStatusPending, seatReq.Status)

	// The host sees it in the queue
	req = httptest.NewRequest("GET", fmt.Sprintf("/api/rooms/%d/seat-requests", room.ID), nil)
	resp, err = hostApp.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	// A non-host asking for the queue is refused
	req = httptest.NewRequest("GET", fmt.Sprintf("/api/rooms/%d/seat-requests", room.ID), nil)
	resp, err = requesterApp.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	// The host accepts
	req = httptest.NewRequest("POST",
		fmt.Sprintf("/api/rooms/seat-requests/%d/resolve", seatReq.ID),
		jsonBody(t, fiber.Map{"accept": true}))
	req.Header.Set("Content-Type", "application/json")
	resp, err = hostApp.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var seat models.Seat
	require.NoError(t, db.Where("room_id = ? AND seat_index = 2", room.ID).First(&seat).Error)
	require.NotNil(t, seat.OccupantID)
	assert.Equal(t, uint(5), *seat.OccupantID)

	// Resolving again maps to 409
	req = httptest.NewRequest("POST",
		fmt.Sprintf("/api/rooms/seat-requests/%d/resolve", seatReq.ID),
		jsonBody(t, fiber.Map{"accept": false}))
	req.Header.Set("Content-Type", "application/json")
	resp, err = hostApp.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
}

func TestLeaveSeatHTTP(t *testing.T) {
	s, _ := setupTestServer(t)
	room := createTestRoom(t, s, 1)

	app := testApp(s, 5)

	// Leaving with no seat is still a success
	req := httptest.NewRequest("POST", fmt.Sprintf("/api/rooms/%d/seats/leave", room.ID), nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
}

func TestToggleMicHTTPErrors(t *testing.T) {
	s, _ := setupTestServer(t)
	room := createTestRoom(t, s, 1)

	app := testApp(s, 5)

	// Not seated
	req := httptest.NewRequest("POST",
		fmt.Sprintf("/api/rooms/%d/seats/mic", room.ID),
		jsonBody(t, fiber.Map{"on": false}))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	// Bad room id
	req = httptest.NewRequest("POST", "/api/rooms/abc/seats/mic",
		jsonBody(t, fiber.Map{"on": false}))
	req.Header.Set("Content-Type", "application/json")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestLockSeatHTTP(t *testing.T) {
	s, db := setupTestServer(t)
	room := createTestRoom(t, s, 1)

	hostApp := testApp(s, 1)

	req := httptest.NewRequest("POST",
		fmt.Sprintf("/api/rooms/%d/seats/3/lock", room.ID),
		jsonBody(t, fiber.Map{"locked": true}))
	req.Header.Set("Content-Type", "application/json")
	resp, err := hostApp.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)

	var seat models.Seat
	require.NoError(t, db.Where("room_id = ? AND seat_index = 3", room.ID).First(&seat).Error)
	assert.True(t, seat.Locked)

	// Out-of-range index
	req = httptest.NewRequest("POST",
		fmt.Sprintf("/api/rooms/%d/seats/9/lock", room.ID),
		jsonBody(t, fiber.Map{"locked": true}))
	req.Header.Set("Content-Type", "application/json")
	resp, err = hostApp.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestBanUserHTTP(t *testing.T) {
	s, db := setupTestServer(t)
	room := createTestRoom(t, s, 1)

	hostApp := testApp(s, 1)

	req := httptest.NewRequest("POST",
		fmt.Sprintf("/api/rooms/%d/bans", room.ID),
		jsonBody(t, fiber.Map{"user_id": 5, "reason": "spam"}))
	req.Header.Set("Content-Type", "application/json")
	resp, err := hostApp.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var ban models.RoomBan
	require.NoError(t, db.Where("room_id = ? AND user_id = 5", room.ID).First(&ban).Error)
	assert.Equal(t, "spam", ban.Reason)

	// A non-host cannot ban
	otherApp := testApp(s, 5)
	req = httptest.NewRequest("POST",
		fmt.Sprintf("/api/rooms/%d/bans", room.ID),
		jsonBody(t, fiber.Map{"user_id": 1}))
	req.Header.Set("Content-Type", "application/json")
	resp, err = otherApp.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}
