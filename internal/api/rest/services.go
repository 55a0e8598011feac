package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jebisys/switchboard/internal/api/websocket"
	"github.com/jebisys/switchboard/internal/types"
)

type ServiceControlRequest struct {
	Action string `json:"action" binding:"required"`
}

func (s *Server) listServices(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"services": s.services.StatusAll(c.Request.Context())})
}

func (s *Server) getServiceStatus(c *gin.Context) {
	status, err := s.services.Status(c.Request.Context(), c.Param("name"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

func (s *Server) controlService(c *gin.Context) {
	name := c.Param("name")

	var req ServiceControlRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, types.NewErrorResponse("SERVICE_400", "Invalid request body", err.Error()))
		return
	}

	output, err := s.services.Control(c.Request.Context(), name, req.Action)
	if err != nil {
		s.respondError(c, err)
		return
	}

	// Fresh status for the response and the live feed.
	status, statusErr := s.services.Status(c.Request.Context(), name)
	active := "unknown"
	if statusErr == nil {
		active = status.Active
	}
	s.wsHub.Broadcast(websocket.NewServiceStateMessage(name, req.Action, active))

	c.JSON(http.StatusOK, gin.H{
		"service": name,
		"action":  req.Action,
		"active":  active,
		"output":  output,
	})
}
