package http

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/codecollab-server/internal/core"
	"github.com/vovakirdan/codecollab-server/internal/store"
	"github.com/vovakirdan/codecollab-server/internal/utils"
)

const (
	defaultPage     = 1
	defaultPageSize = 10
	maxPageSize     = 100
	createAttempts  = 3
)

// RoomHandlers provides HTTP handlers for room management endpoints.
type RoomHandlers struct {
	store    store.RoomStore
	registry *core.Registry
	log      *zerolog.Logger
}

// NewRoomHandlers creates a new room handlers instance.
func NewRoomHandlers(st store.RoomStore, registry *core.Registry, logger *zerolog.Logger) *RoomHandlers {
	return &RoomHandlers{
		store:    st,
		registry: registry,
		log:      logger,
	}
}

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// CreateRoomRequest represents the create room request body. Every field is optional.
type CreateRoomRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Language    string `json:"language"`
	CreatedBy   string `json:"createdBy"`
}

// UpdateRoomRequest carries the fields to change. Absent fields are left untouched.
type UpdateRoomRequest struct {
	Code        *string `json:"code"`
	Language    *string `json:"language"`
	Title       *string `json:"title"`
	Description *string `json:"description"`
}

// ParticipantRequest adds a participant through the REST API.
type ParticipantRequest struct {
	UserID   string `json:"userId" binding:"required"`
	Username string `json:"username"`
}

// ParticipantResponse represents a durable participant.
type ParticipantResponse struct {
	UserID   string    `json:"userId"`
	Username string    `json:"username"`
	JoinedAt time.Time `json:"joinedAt"`
}

// RoomResponse represents a room in API responses.
type RoomResponse struct {
	RoomID       string                `json:"roomId"`
	Code         string                `json:"code"`
	Language     string                `json:"language"`
	Title        string                `json:"title"`
	Description  string                `json:"description"`
	CreatedBy    string                `json:"createdBy"`
	IsPublic     bool                  `json:"isPublic"`
	Participants []ParticipantResponse `json:"participants"`
	CreatedAt    time.Time             `json:"createdAt"`
	UpdatedAt    time.Time             `json:"updatedAt"`
}

// CreateRoom handles room creation.
// POST /api/code/room
func (h *RoomHandlers) CreateRoom(c *gin.Context) {
	var req CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		h.log.Debug().Err(err).Msg("invalid create room request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "Invalid request body"})
		return
	}

	params := store.CreateRoomParams{
		Title:       req.Title,
		Description: req.Description,
		Language:    req.Language,
		CreatedBy:   req.CreatedBy,
	}

	var (
		room *store.Room
		err  error
	)
	for i := 0; i < createAttempts; i++ {
		params.RoomID = utils.NewRoomID()
		room, err = h.store.CreateRoom(c.Request.Context(), params)
		if !errors.Is(err, store.ErrDuplicateRoom) {
			break
		}
		h.log.Warn().Str("room_id", params.RoomID).Msg("room id collision, retrying")
	}
	if err != nil {
		h.writeStoreError(c, err, "failed to create room")
		return
	}

	h.log.Info().Str("room_id", room.RoomID).Str("created_by", room.CreatedBy).Msg("room created")
	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"roomId":  room.RoomID,
		"room":    roomResponse(room),
	})
}

// GetRoom returns one room.
// GET /api/code/room/:roomId
func (h *RoomHandlers) GetRoom(c *gin.Context) {
	room, err := h.store.GetRoom(c.Request.Context(), c.Param("roomId"))
	if err != nil {
		h.writeStoreError(c, err, "failed to get room")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "room": roomResponse(room)})
}

// UpdateRoom applies a partial update.
// PUT /api/code/room/:roomId
func (h *RoomHandlers) UpdateRoom(c *gin.Context) {
	var req UpdateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		h.log.Debug().Err(err).Msg("invalid update room request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "Invalid request body"})
		return
	}

	room, err := h.store.UpdateRoom(c.Request.Context(), c.Param("roomId"), store.RoomUpdate{
		Code:        req.Code,
		Language:    req.Language,
		Title:       req.Title,
		Description: req.Description,
	})
	if err != nil {
		h.writeStoreError(c, err, "failed to update room")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "room": roomResponse(room)})
}

// ListRooms lists public rooms, newest activity first.
// GET /api/code/rooms?page=&limit=&search=
func (h *RoomHandlers) ListRooms(c *gin.Context) {
	page := queryInt(c, "page", defaultPage)
	limit := queryInt(c, "limit", defaultPageSize)
	if limit > maxPageSize {
		limit = maxPageSize
	}

	rooms, total, err := h.store.ListPublicRooms(c.Request.Context(), store.ListParams{
		Page:   page,
		Limit:  limit,
		Search: c.Query("search"),
	})
	if err != nil {
		h.writeStoreError(c, err, "failed to list rooms")
		return
	}

	response := make([]RoomResponse, 0, len(rooms))
	for _, room := range rooms {
		response = append(response, roomResponse(room))
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"rooms":       response,
		"totalPages":  (total + limit - 1) / limit,
		"currentPage": page,
		"total":       total,
	})
}

// DeleteRoom removes a room.
// DELETE /api/code/room/:roomId
func (h *RoomHandlers) DeleteRoom(c *gin.Context) {
	roomID := c.Param("roomId")
	removed, err := h.store.DeleteRoom(c.Request.Context(), roomID)
	if err != nil {
		h.writeStoreError(c, err, "failed to delete room")
		return
	}
	if !removed {
		c.JSON(http.StatusNotFound, ErrorResponse{Message: "Room not found"})
		return
	}

	h.log.Info().Str("room_id", roomID).Msg("room deleted")
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Room deleted successfully"})
}

// AddParticipant records a durable participant.
// POST /api/code/room/:roomId/participant
func (h *RoomHandlers) AddParticipant(c *gin.Context) {
	var req ParticipantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "userId is required"})
		return
	}
	if req.Username == "" {
		req.Username = core.DefaultUsername
	}

	participants, err := h.store.AddParticipant(c.Request.Context(), c.Param("roomId"), req.UserID, req.Username)
	if err != nil {
		h.writeStoreError(c, err, "failed to add participant")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "participants": participantsResponse(participants)})
}

// RemoveParticipant drops a durable participant.
// DELETE /api/code/room/:roomId/participant/:userId
func (h *RoomHandlers) RemoveParticipant(c *gin.Context) {
	participants, err := h.store.RemoveParticipant(c.Request.Context(), c.Param("roomId"), c.Param("userId"))
	if err != nil {
		h.writeStoreError(c, err, "failed to remove participant")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "participants": participantsResponse(participants)})
}

// Stats reports live room counters.
// GET /api/stats
func (h *RoomHandlers) Stats(c *gin.Context) {
	rooms, participants := h.registry.Stats()
	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"liveRooms":    rooms,
		"participants": participants,
	})
}

func (h *RoomHandlers) writeStoreError(c *gin.Context, err error, msg string) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Message: "Room not found"})
	case errors.Is(err, store.ErrDuplicateRoom):
		c.JSON(http.StatusConflict, ErrorResponse{Message: "Room already exists"})
	default:
		h.log.Error().Err(err).Str("room_id", c.Param("roomId")).Msg(msg)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Message: "Internal server error"})
	}
}

func queryInt(c *gin.Context, key string, fallback int) int {
	n, err := strconv.Atoi(c.Query(key))
	if err != nil || n < 1 {
		return fallback
	}
	return n
}

func roomResponse(room *store.Room) RoomResponse {
	return RoomResponse{
		RoomID:       room.RoomID,
		Code:         room.Code,
		Language:     room.Language,
		Title:        room.Title,
		Description:  room.Description,
		CreatedBy:    room.CreatedBy,
		IsPublic:     room.IsPublic,
		Participants: participantsResponse(room.Participants),
		CreatedAt:    room.CreatedAt,
		UpdatedAt:    room.UpdatedAt,
	}
}

func participantsResponse(ps []store.Participant) []ParticipantResponse {
	out := make([]ParticipantResponse, 0, len(ps))
	for _, p := range ps {
		out = append(out, ParticipantResponse{UserID: p.UserID, Username: p.Username, JoinedAt: p.JoinedAt})
	}
	return out
}
