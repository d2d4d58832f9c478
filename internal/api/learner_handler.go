package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aglago/g-clients-sub000/internal/core"
	"github.com/aglago/g-clients-sub000/internal/middleware"
	"github.com/aglago/g-clients-sub000/internal/models"
)

// LearnerHandler serves learner records, enrollments and the admin dashboard.
type LearnerHandler struct {
	users       core.UserService
	enrollments core.EnrollmentService
	dashboard   core.DashboardService
	logger      *zap.Logger
}

// NewLearnerHandler creates a new LearnerHandler.
func NewLearnerHandler(us core.UserService, es core.EnrollmentService, ds core.DashboardService, logger *zap.Logger) *LearnerHandler {
	return &LearnerHandler{users: us, enrollments: es, dashboard: ds, logger: logger}
}

// MyEnrollments handles GET /api/portal/enrollments.
func (h *LearnerHandler) MyEnrollments(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		respondError(c, h.logger, core.ErrUnauthorized)
		return
	}
	enrollments, err := h.enrollments.ListForLearner(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, success("", enrollments))
}

func (h *LearnerHandler) ListLearners(c *gin.Context) {
	learners, err := h.users.ListLearners(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, success("", learners))
}

func (h *LearnerHandler) GetLearner(c *gin.Context) {
	user, err := h.users.GetByID(c.Request.Context(), c.Param("learnerId"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if user.Role != models.RoleLearner {
		respondError(c, h.logger, core.ErrUserNotFound)
		return
	}
	c.JSON(http.StatusOK, success("", user))
}

func (h *LearnerHandler) DeleteLearner(c *gin.Context) {
	actorID, _ := middleware.UserID(c)
	if err := h.users.DeleteLearner(c.Request.Context(), actorID, c.Param("learnerId")); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, success("Learner deleted", nil))
}

// ListEnrollments handles GET /api/admin/enrollments, optionally filtered by learnerId.
func (h *LearnerHandler) ListEnrollments(c *gin.Context) {
	var (
		enrollments []*models.TrackEnrollment
		err         error
	)
	if learnerID := c.Query("learnerId"); learnerID != "" {
		enrollments, err = h.enrollments.ListForLearner(c.Request.Context(), learnerID)
	} else {
		enrollments, err = h.enrollments.ListEnrollments(c.Request.Context())
	}
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, success("", enrollments))
}

func (h *LearnerHandler) UpdateEnrollment(c *gin.Context) {
	var req models.UpdateEnrollmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	e, err := h.enrollments.UpdateEnrollment(c.Request.Context(), c.Param("enrollmentId"), req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, success("Enrollment updated", e))
}

func (h *LearnerHandler) Dashboard(c *gin.Context) {
	summary, err := h.dashboard.Summary(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, success("", summary))
}
