package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aglago/g-clients-sub000/internal/core"
	"github.com/aglago/g-clients-sub000/internal/middleware"
	"github.com/aglago/g-clients-sub000/internal/models"
)

// CatalogHandler serves tracks and courses, publicly and to administrators.
type CatalogHandler struct {
	tracks  core.TrackService
	courses core.CourseService
	logger  *zap.Logger
}

// NewCatalogHandler creates a new CatalogHandler.
func NewCatalogHandler(ts core.TrackService, cs core.CourseService, logger *zap.Logger) *CatalogHandler {
	return &CatalogHandler{tracks: ts, courses: cs, logger: logger}
}

func (h *CatalogHandler) ListTracks(c *gin.Context) {
	tracks, err := h.tracks.ListTracks(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, success("", tracks))
}

// GetTrackBySlug handles GET /api/tracks/:slug.
func (h *CatalogHandler) GetTrackBySlug(c *gin.Context) {
	track, err := h.tracks.GetTrackBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, success("", track))
}

func (h *CatalogHandler) GetTrack(c *gin.Context) {
	track, err := h.tracks.GetTrack(c.Request.Context(), c.Param("trackId"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, success("", track))
}

func (h *CatalogHandler) CreateTrack(c *gin.Context) {
	var req models.CreateTrackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	actorID, _ := middleware.UserID(c)
	track, err := h.tracks.CreateTrack(c.Request.Context(), actorID, req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, success("Track created", track))
}

func (h *CatalogHandler) UpdateTrack(c *gin.Context) {
	var req models.UpdateTrackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	actorID, _ := middleware.UserID(c)
	track, err := h.tracks.UpdateTrack(c.Request.Context(), actorID, c.Param("trackId"), req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, success("Track updated", track))
}

func (h *CatalogHandler) DeleteTrack(c *gin.Context) {
	actorID, _ := middleware.UserID(c)
	if err := h.tracks.DeleteTrack(c.Request.Context(), actorID, c.Param("trackId")); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, success("Track deleted", nil))
}

// ListCourses handles GET /api/courses with an optional trackId query filter.
func (h *CatalogHandler) ListCourses(c *gin.Context) {
	courses, err := h.courses.ListCourses(c.Request.Context(), c.Query("trackId"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, success("", courses))
}

func (h *CatalogHandler) GetCourse(c *gin.Context) {
	course, err := h.courses.GetCourse(c.Request.Context(), c.Param("courseId"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, success("", course))
}

func (h *CatalogHandler) CreateCourse(c *gin.Context) {
	var req models.CreateCourseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	course, err := h.courses.CreateCourse(c.Request.Context(), req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, success("Course created", course))
}

func (h *CatalogHandler) UpdateCourse(c *gin.Context) {
	var req models.UpdateCourseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	course, err := h.courses.UpdateCourse(c.Request.Context(), c.Param("courseId"), req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, success("Course updated", course))
}

func (h *CatalogHandler) DeleteCourse(c *gin.Context) {
	actorID, _ := middleware.UserID(c)
	if err := h.courses.DeleteCourse(c.Request.Context(), actorID, c.Param("courseId")); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, success("Course deleted", nil))
}
