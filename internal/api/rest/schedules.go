package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jebisys/switchboard/internal/api/websocket"
	"github.com/jebisys/switchboard/internal/schedule"
	"github.com/jebisys/switchboard/internal/storage"
	"github.com/jebisys/switchboard/internal/types"
)

type SaveScheduleRequest struct {
	StartTime string   `json:"start_time" binding:"required"`
	EndTime   string   `json:"end_time" binding:"required"`
	Days      []string `json:"days" binding:"required"`
	Enabled   bool     `json:"enabled"`
}

type SetEnabledRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

type ScheduleResponse struct {
	DeviceID  string   `json:"device_id"`
	StartTime string   `json:"start_time"`
	EndTime   string   `json:"end_time"`
	Days      []string `json:"days"`
	Enabled   bool     `json:"enabled"`
}

func scheduleResponse(s *storage.DeviceSchedule) ScheduleResponse {
	return ScheduleResponse{
		DeviceID:  s.DeviceID,
		StartTime: s.StartTime,
		EndTime:   s.EndTime,
		Days:      s.DayNames(),
		Enabled:   s.Enabled,
	}
}

func (s *Server) listSchedules(c *gin.Context) {
	schedules, err := s.store.GetAllSchedules(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}

	out := make(map[string]ScheduleResponse, len(schedules))
	for deviceID, sched := range schedules {
		out[deviceID] = scheduleResponse(sched)
	}
	c.JSON(http.StatusOK, gin.H{"schedules": out})
}

func (s *Server) getSchedule(c *gin.Context) {
	sched, err := s.store.GetSchedule(c.Request.Context(), c.Param("device"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, scheduleResponse(sched))
}

func (s *Server) saveSchedule(c *gin.Context) {
	deviceID := c.Param("device")

	var req SaveScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, types.NewErrorResponse("SCHEDULE_400", "Invalid request body", err.Error()))
		return
	}

	if err := schedule.ValidateSave(deviceID, req.StartTime, req.EndTime, req.Days); err != nil {
		s.respondError(c, err)
		return
	}

	userID, _ := currentUser(c)
	saved, err := s.store.SaveSchedule(c.Request.Context(), deviceID, req.StartTime, req.EndTime, req.Days, req.Enabled, userID)
	if err != nil {
		s.respondError(c, err)
		return
	}

	s.wsHub.Broadcast(websocket.NewScheduleMessage(
		websocket.MessageTypeScheduleUpdated,
		deviceID, saved.StartTime, saved.EndTime, saved.DayNames(), saved.Enabled))

	c.JSON(http.StatusOK, scheduleResponse(saved))
}

func (s *Server) setScheduleEnabled(c *gin.Context) {
	deviceID := c.Param("device")

	var req SetEnabledRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, types.NewErrorResponse("SCHEDULE_400", "Invalid request body", err.Error()))
		return
	}

	if err := s.store.SetScheduleEnabled(c.Request.Context(), deviceID, *req.Enabled); err != nil {
		s.respondError(c, err)
		return
	}

	s.wsHub.Broadcast(websocket.NewScheduleMessage(
		websocket.MessageTypeScheduleUpdated, deviceID, "", "", nil, *req.Enabled))

	c.JSON(http.StatusOK, gin.H{"device_id": deviceID, "enabled": *req.Enabled})
}

func (s *Server) deleteSchedule(c *gin.Context) {
	deviceID := c.Param("device")

	if err := s.store.DeleteSchedule(c.Request.Context(), deviceID); err != nil {
		s.respondError(c, err)
		return
	}

	s.wsHub.Broadcast(websocket.NewScheduleMessage(
		websocket.MessageTypeScheduleDeleted, deviceID, "", "", nil, false))

	c.JSON(http.StatusOK, gin.H{"message": "schedule deleted", "device_id": deviceID})
}
