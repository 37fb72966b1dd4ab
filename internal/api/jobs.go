package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"shortbox/internal/fileutil"
	"shortbox/internal/grouping"
	"shortbox/internal/jobstore"
	"shortbox/internal/services"
)

// CreateJobRequest submits files for a new job. Paths are scanned for
// archives and appended after Files.
type CreateJobRequest struct {
	Files   []grouping.File   `json:"files,omitempty"`
	Paths   []string          `json:"paths,omitempty"`
	Options *jobstore.Options `json:"options,omitempty"`
}

// StartJobRequest optionally replaces the job's options before it starts.
type StartJobRequest struct {
	Options *jobstore.Options `json:"options,omitempty"`
}

// JobListResponse wraps the job list.
type JobListResponse struct {
	Jobs []jobstore.Summary `json:"jobs"`
}

// bindOptional decodes the JSON body into dst when one was sent.
func (s *Server) bindOptional(c *gin.Context, dst any) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(dst); err != nil {
		s.badRequest(c, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func (s *Server) createJob(c *gin.Context) {
	var req CreateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, "invalid request body: "+err.Error())
		return
	}
	files := req.Files
	if len(req.Paths) > 0 {
		paths, err := fileutil.ScanArchives(req.Paths)
		if err != nil {
			s.fail(c, services.Wrap(services.ErrValidation, "api", "create job", "scan paths", err))
			return
		}
		for _, path := range paths {
			files = append(files, grouping.File{Path: path})
		}
	}
	job, err := s.manager.Create(c.Request.Context(), files, req.Options)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, job)
}

func (s *Server) listJobs(c *gin.Context) {
	archived, _ := strconv.ParseBool(c.Query("archived"))
	jobs, err := s.manager.List(c.Request.Context(), archived)
	if err != nil {
		s.fail(c, err)
		return
	}
	if jobs == nil {
		jobs = []jobstore.Summary{}
	}
	c.JSON(http.StatusOK, JobListResponse{Jobs: jobs})
}

func (s *Server) getJob(c *gin.Context) {
	job, err := s.manager.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

func (s *Server) startJob(c *gin.Context) {
	var req StartJobRequest
	if !s.bindOptional(c, &req) {
		return
	}
	job, err := s.manager.Start(c.Request.Context(), c.Param("id"), req.Options)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusAccepted, job)
}

func (s *Server) cancelJob(c *gin.Context) {
	job, err := s.manager.Cancel(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusAccepted, job)
}

func (s *Server) completeJob(c *gin.Context) {
	job, err := s.manager.Complete(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

func (s *Server) abandonJob(c *gin.Context) {
	if err := s.manager.Abandon(c.Request.Context(), c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
