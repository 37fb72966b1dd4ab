package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"shortbox/internal/workflow"
)

// SecondariesRequest approves cross-source matches for one group.
type SecondariesRequest struct {
	Sources []string `json:"sources"`
}

func (s *Server) search(c *gin.Context) {
	job, err := s.manager.Search(c.Request.Context(), c.Param("id"), c.Query("q"), c.Query("source"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

func (s *Server) loadMore(c *gin.Context) {
	job, err := s.manager.LoadMore(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

func (s *Server) approve(c *gin.Context) {
	var req workflow.ApproveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, "invalid request body: "+err.Error())
		return
	}
	job, err := s.manager.Approve(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusAccepted, job)
}

func (s *Server) skip(c *gin.Context) {
	job, err := s.manager.Skip(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

func (s *Server) resetGroup(c *gin.Context) {
	index, ok := s.groupIndex(c)
	if !ok {
		return
	}
	job, err := s.manager.ResetGroup(c.Request.Context(), c.Param("id"), index)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

func (s *Server) approveSecondaries(c *gin.Context) {
	index, ok := s.groupIndex(c)
	if !ok {
		return
	}
	var req SecondariesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, "invalid request body: "+err.Error())
		return
	}
	job, err := s.manager.ApproveSecondaries(c.Request.Context(), c.Param("id"), index, req.Sources)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

func (s *Server) groupIndex(c *gin.Context) (int, bool) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil || index < 0 {
		s.badRequest(c, "invalid group index")
		return 0, false
	}
	return index, true
}
