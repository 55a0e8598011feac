package rest

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jebisys/switchboard/internal/types"
	"go.uber.org/zap"
)

type ZipRequest struct {
	Files []string `json:"files" binding:"required"`
}

func (s *Server) getDeviceMap(c *gin.Context) {
	doc, err := s.editor.Read()
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

func (s *Server) putDeviceMap(c *gin.Context) {
	var doc map[string]any
	if err := c.ShouldBindJSON(&doc); err != nil {
		c.JSON(http.StatusBadRequest, types.NewErrorResponse("CONFIG_400", "Invalid request body", err.Error()))
		return
	}

	if err := s.editor.Write(doc); err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "config saved"})
}

func (s *Server) listLogFiles(c *gin.Context) {
	files, err := s.logBrowser.List()
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"files": files})
}

func (s *Server) downloadLogFile(c *gin.Context) {
	name := c.Param("name")

	path, err := s.logBrowser.FilePath(name)
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.FileAttachment(path, name)
}

func (s *Server) downloadLogZip(c *gin.Context) {
	var req ZipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, types.NewErrorResponse("LOGS_400", "Invalid request body", err.Error()))
		return
	}

	filename := fmt.Sprintf("logs-%s.zip", time.Now().Format("20060102-150405"))
	c.Header("Content-Type", "application/zip")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

	if err := s.logBrowser.Zip(c.Writer, req.Files); err != nil {
		// Headers may already be out; validation failures are reported
		// before any zip bytes are written.
		if types.IsValidation(err) || types.IsNotFound(err) {
			c.Header("Content-Type", "application/json")
			c.Header("Content-Disposition", "")
			s.respondError(c, err)
			return
		}
		s.logger.Error("zip stream failed", zap.Error(err))
		c.Status(http.StatusInternalServerError)
	}
}
