package api

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/thereceipt/printbridge/internal/registry"
	"go.uber.org/zap"
)

// Profile change actions carried by profile_changed events
const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionDeleted = "deleted"
	ActionDefault = "default"
)

// handleListPrinters returns all stored printer profiles, default first
func (s *Server) handleListPrinters(c *gin.Context) {
	profiles, err := s.profiles.List(c.Request.Context())
	if err != nil {
		s.profileError(c, err)
		return
	}

	c.JSON(200, gin.H{
		"printers": profiles,
	})
}

// handleCreatePrinter stores a new profile
func (s *Server) handleCreatePrinter(c *gin.Context) {
	var req registry.Profile
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	req.ID = 0

	profile, err := s.profiles.Create(c.Request.Context(), req)
	if err != nil {
		s.profileError(c, err)
		return
	}

	s.profileChanged(ActionCreated, profile)
	c.JSON(201, profile)
}

// handleGetDefaultPrinter returns the default profile
func (s *Server) handleGetDefaultPrinter(c *gin.Context) {
	profile, err := s.profiles.GetDefault(c.Request.Context())
	if err != nil {
		s.profileError(c, err)
		return
	}

	c.JSON(200, profile)
}

// handleGetPrinter returns one profile
func (s *Server) handleGetPrinter(c *gin.Context) {
	id, ok := profileID(c)
	if !ok {
		return
	}

	profile, err := s.profiles.Get(c.Request.Context(), id)
	if err != nil {
		s.profileError(c, err)
		return
	}

	c.JSON(200, profile)
}

// handleUpdatePrinter applies a partial update
func (s *Server) handleUpdatePrinter(c *gin.Context) {
	id, ok := profileID(c)
	if !ok {
		return
	}

	var patch registry.Patch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(400, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	profile, err := s.profiles.Update(c.Request.Context(), id, patch)
	if err != nil {
		s.profileError(c, err)
		return
	}

	s.profileChanged(ActionUpdated, profile)
	c.JSON(200, profile)
}

// handleDeletePrinter removes a profile
func (s *Server) handleDeletePrinter(c *gin.Context) {
	id, ok := profileID(c)
	if !ok {
		return
	}

	if err := s.profiles.Delete(c.Request.Context(), id); err != nil {
		s.profileError(c, err)
		return
	}

	s.hub.Broadcast(EventProfileChanged, map[string]interface{}{
		"action": ActionDeleted,
		"id":     id,
	})
	c.JSON(200, gin.H{"success": true})
}

// handleSetDefaultPrinter makes a profile the only default
func (s *Server) handleSetDefaultPrinter(c *gin.Context) {
	id, ok := profileID(c)
	if !ok {
		return
	}

	profile, err := s.profiles.SetDefault(c.Request.Context(), id)
	if err != nil {
		s.profileError(c, err)
		return
	}

	s.profileChanged(ActionDefault, profile)
	c.JSON(200, profile)
}

func (s *Server) profileChanged(action string, profile registry.Profile) {
	s.hub.Broadcast(EventProfileChanged, map[string]interface{}{
		"action":  action,
		"id":      profile.ID,
		"profile": profile,
	})
}

// profileError writes the status that matches a store error
func (s *Server) profileError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, registry.ErrNotFound):
		c.JSON(404, gin.H{"error": err.Error()})
	case errors.Is(err, registry.ErrInvalidProfile):
		c.JSON(400, gin.H{"error": err.Error()})
	case errors.Is(err, registry.ErrDefaultConflict):
		c.JSON(409, gin.H{"error": err.Error()})
	default:
		s.log.Error("profile store failed", zap.Error(err))
		c.JSON(500, gin.H{"error": "internal error"})
	}
}

// profileID parses the :id path parameter, answering 400 when it is not a positive integer
func profileID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(400, gin.H{"error": "invalid printer id"})
		return 0, false
	}
	return uint(id), true
}
