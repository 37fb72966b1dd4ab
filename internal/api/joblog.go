package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"shortbox/internal/logs"
)

const (
	defaultLogLimit = 200
	maxLogWait      = 30 * time.Second
)

// jobLog serves entries from the job's log file. offset=-1 (the default)
// returns the last limit entries; wait=N follows for up to N seconds.
func (s *Server) jobLog(c *gin.Context) {
	path, err := s.manager.LogPath(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	q := logs.Query{Offset: -1, Limit: defaultLogLimit, MinLevel: c.Query("level")}
	if raw := c.Query("offset"); raw != "" {
		if q.Offset, err = strconv.ParseInt(raw, 10, 64); err != nil {
			s.badRequest(c, "invalid offset")
			return
		}
	}
	if raw := c.Query("limit"); raw != "" {
		if q.Limit, err = strconv.Atoi(raw); err != nil || q.Limit < 0 {
			s.badRequest(c, "invalid limit")
			return
		}
	}
	if raw := c.Query("wait"); raw != "" {
		seconds, err := strconv.Atoi(raw)
		if err != nil || seconds < 0 {
			s.badRequest(c, "invalid wait")
			return
		}
		q.Wait = min(time.Duration(seconds)*time.Second, maxLogWait)
	}

	page, err := logs.Read(c.Request.Context(), path, q)
	if err != nil && c.Request.Context().Err() == nil {
		s.fail(c, err)
		return
	}
	if page.Entries == nil {
		page.Entries = []logs.Entry{}
	}
	c.JSON(http.StatusOK, page)
}
