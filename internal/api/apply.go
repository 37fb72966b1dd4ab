package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) apply(c *gin.Context) {
	job, err := s.manager.Apply(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusAccepted, job)
}

func (s *Server) applyStatus(c *gin.Context) {
	status, err := s.manager.Progress(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}
