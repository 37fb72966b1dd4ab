package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"shortbox/internal/changeset"
	"shortbox/internal/workflow"
)

// FieldsRequest edits or approves fields on one file.
type FieldsRequest struct {
	Updates []changeset.FieldUpdate `json:"updates"`
}

// MoveRequest reassigns a file to another matched group.
type MoveRequest struct {
	GroupIndex *int `json:"group_index"`
}

// FileListResponse wraps a filtered change set list.
type FileListResponse struct {
	Files []changeset.ChangeSet `json:"files"`
}

// filterFromQuery reads group, status, and q query parameters.
func (s *Server) filterFromQuery(c *gin.Context) (changeset.Filter, bool) {
	var filter changeset.Filter
	if raw := strings.TrimSpace(c.Query("group")); raw != "" {
		index, err := strconv.Atoi(raw)
		if err != nil {
			s.badRequest(c, "invalid group filter")
			return filter, false
		}
		filter.GroupIndex = &index
	}
	switch status := changeset.FileStatus(strings.TrimSpace(c.Query("status"))); status {
	case "", changeset.StatusMatched, changeset.StatusUnmatched, changeset.StatusManual, changeset.StatusRejected:
		filter.Status = status
	default:
		s.badRequest(c, "invalid status filter "+string(status))
		return filter, false
	}
	filter.Query = c.Query("q")
	return filter, true
}

func (s *Server) listFiles(c *gin.Context) {
	filter, ok := s.filterFromQuery(c)
	if !ok {
		return
	}
	files, err := s.manager.Files(c.Request.Context(), c.Param("id"), filter)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, FileListResponse{Files: files})
}

func (s *Server) updateFields(c *gin.Context) {
	var req FieldsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, "invalid request body: "+err.Error())
		return
	}
	cs, err := s.manager.UpdateFields(c.Request.Context(), c.Param("id"), c.Param("fileId"), req.Updates)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, cs)
}

func (s *Server) acceptFile(c *gin.Context) {
	s.fileAction(c, s.manager.Accept)
}

func (s *Server) rejectFile(c *gin.Context) {
	s.fileAction(c, s.manager.Reject)
}

func (s *Server) restoreFile(c *gin.Context) {
	s.fileAction(c, s.manager.Restore)
}

func (s *Server) fileAction(c *gin.Context, action func(ctx context.Context, id, fileID string) (*changeset.ChangeSet, error)) {
	cs, err := action(c.Request.Context(), c.Param("id"), c.Param("fileId"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, cs)
}

func (s *Server) moveFile(c *gin.Context) {
	var req MoveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, "invalid request body: "+err.Error())
		return
	}
	if req.GroupIndex == nil {
		s.badRequest(c, "group_index is required")
		return
	}
	cs, err := s.manager.Move(c.Request.Context(), c.Param("id"), c.Param("fileId"), *req.GroupIndex)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, cs)
}

func (s *Server) batch(c *gin.Context) {
	kind := workflow.BatchKind(c.Param("kind"))
	switch kind {
	case workflow.BatchAcceptHigh, workflow.BatchAcceptAll, workflow.BatchRejectAll:
	default:
		c.AbortWithStatusJSON(http.StatusNotFound, ErrorResponse{
			Error:     "not_found",
			Message:   "unknown batch action " + string(kind),
			RequestID: requestIDOf(c),
		})
		return
	}
	filter, ok := s.filterFromQuery(c)
	if !ok {
		return
	}
	res, err := s.manager.Batch(c.Request.Context(), c.Param("id"), kind, filter)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
