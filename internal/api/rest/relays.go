package rest

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jebisys/switchboard/internal/api/websocket"
	"github.com/jebisys/switchboard/internal/device"
	"github.com/jebisys/switchboard/internal/types"
)

type ToggleRequest struct {
	Action string `json:"action" binding:"required"`
}

type RelayStatusResponse struct {
	DeviceID string `json:"device_id"`
	device.StateReading
}

// currentUser pulls the authenticated identity out of the gin context for
// activation attribution.
func currentUser(c *gin.Context) (*uuid.UUID, *string) {
	var userID *uuid.UUID
	var username *string
	if v, ok := c.Get("user_id"); ok {
		if id, ok := v.(uuid.UUID); ok {
			userID = &id
		}
	}
	if v, ok := c.Get("username"); ok {
		if name, ok := v.(string); ok && name != "" {
			username = &name
		}
	}
	return userID, username
}

func (s *Server) listRelays(c *gin.Context) {
	ctx := c.Request.Context()
	statuses := make([]RelayStatusResponse, 0, len(s.driver.Devices()))
	for _, id := range s.driver.Devices() {
		reading, _ := s.driver.ReadStatus(ctx, id)
		statuses = append(statuses, RelayStatusResponse{DeviceID: id, StateReading: reading})
	}
	c.JSON(http.StatusOK, gin.H{"relays": statuses})
}

func (s *Server) getRelayStatus(c *gin.Context) {
	deviceID := c.Param("id")

	reading, err := s.driver.ReadStatus(c.Request.Context(), deviceID)
	if err != nil && !types.IsValidation(err) {
		// Device errors still carry a reading with status ERROR.
		c.JSON(http.StatusInternalServerError, gin.H{
			"device_id": deviceID,
			"status":    reading.Status,
			"message":   reading.Message,
		})
		return
	}
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, RelayStatusResponse{DeviceID: deviceID, StateReading: reading})
}

func (s *Server) toggleRelay(c *gin.Context) {
	deviceID := c.Param("id")

	var req ToggleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, types.NewErrorResponse("RELAY_400", "Invalid request body", err.Error()))
		return
	}

	action, err := device.ParseAction(req.Action)
	if err != nil {
		s.respondError(c, err)
		return
	}

	ctx := c.Request.Context()
	userID, username := currentUser(c)

	result, err := s.driver.SetState(ctx, deviceID, action)
	if types.IsValidation(err) {
		s.respondError(c, err)
		return
	}

	// Record the attempt either way; logging is best-effort and never
	// changes the response.
	s.store.LogActivation(ctx, deviceID, string(action), userID, username, false, result.Success)

	if err != nil {
		s.wsHub.Broadcast(websocket.NewRelayErrorMessage(deviceID, string(action), result.Message))
		s.respondError(c, err)
		return
	}

	status := device.StatusOff
	if action == device.ActionOn {
		status = device.StatusOn
	}
	name := ""
	if username != nil {
		name = *username
	}
	s.wsHub.Broadcast(websocket.NewRelayStateMessage(deviceID, string(action), string(status), false, name))

	c.JSON(http.StatusOK, result)
}

// getDeviceTime reports the controller's clock so the panel can show
// schedule times in the box's own timezone.
func (s *Server) getDeviceTime(c *gin.Context) {
	now := time.Now()
	zone, offset := now.Zone()
	c.JSON(http.StatusOK, gin.H{
		"time":               now.Format(time.RFC3339),
		"unix":               now.Unix(),
		"timezone":           zone,
		"utc_offset_seconds": offset,
	})
}

func (s *Server) checkRelay(c *gin.Context) {
	result, err := s.reconciler.CheckDevice(c.Request.Context(), c.Param("id"))
	if err != nil && types.IsValidation(err) {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) checkAllRelays(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"results": s.reconciler.CheckAll(c.Request.Context())})
}
