package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/smarttest/smarttest-backend/internal/middleware"
	"github.com/smarttest/smarttest-backend/internal/model"
	"github.com/smarttest/smarttest-backend/internal/repository"
	"github.com/smarttest/smarttest-backend/internal/response"
	"github.com/smarttest/smarttest-backend/internal/service"
	"github.com/smarttest/smarttest-backend/internal/validator"
)

const (
	defaultPerPage          = 20
	defaultLeaderboardLimit = 50
)

// AdminHandler handles the admin surface: retakes, durations, results.
type AdminHandler struct {
	authService   *service.AuthService
	retakeService *service.RetakeService
	adminService  *service.AdminService
	log           zerolog.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(authService *service.AuthService, retakeService *service.RetakeService, adminService *service.AdminService, log zerolog.Logger) *AdminHandler {
	return &AdminHandler{
		authService:   authService,
		retakeService: retakeService,
		adminService:  adminService,
		log:           log.With().Str("component", "admin_handler").Logger(),
	}
}

func adminSchool(c *gin.Context) (int64, bool) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return 0, false
	}
	return claims.SchoolID, true
}

// ListRetakes godoc
// GET /api/v1/admin/retakes?subject_id=
func (h *AdminHandler) ListRetakes(c *gin.Context) {
	schoolID, ok := adminSchool(c)
	if !ok {
		return
	}

	var q model.RetakeListQuery
	if fields := validator.BindQuery(c, &q); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	list, err := h.retakeService.List(c.Request.Context(), schoolID, q.SubjectID)
	if err != nil {
		h.log.Error().Err(err).Msg("List retakes failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusOK, list)
}

// SetRetake godoc
// PUT /api/v1/admin/retakes
// Grants or revokes a retake for a student on a subject.
func (h *AdminHandler) SetRetake(c *gin.Context) {
	schoolID, ok := adminSchool(c)
	if !ok {
		return
	}

	var req model.SetRetakeRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.retakeService.Set(c.Request.Context(), schoolID, req); err != nil {
		h.log.Error().Err(err).Msg("Set retake failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusOK, gin.H{
		"student_id": req.StudentID,
		"subject_id": req.SubjectID,
		"can_retake": *req.CanRetake,
	})
}

// ClearProgress godoc
// DELETE /api/v1/admin/progress
// Discards a student's attempt so the next start is fresh.
func (h *AdminHandler) ClearProgress(c *gin.Context) {
	schoolID, ok := adminSchool(c)
	if !ok {
		return
	}

	var req model.ClearProgressRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	key := model.ProgressKey{StudentID: req.StudentID, SubjectID: req.SubjectID, SchoolID: schoolID, TestType: req.TestType}
	if err := h.retakeService.ClearProgress(c.Request.Context(), key); err != nil {
		failSession(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{})
}

// ResetStudentSession godoc
// POST /api/v1/admin/students/:id/reset-session
// Signs a student out of every device.
func (h *AdminHandler) ResetStudentSession(c *gin.Context) {
	if _, ok := adminSchool(c); !ok {
		return
	}

	studentID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || studentID <= 0 {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	if err := h.authService.ResetStudentSession(c.Request.Context(), studentID); err != nil {
		h.log.Error().Err(err).Int64("student_id", studentID).Msg("Reset session failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusOK, gin.H{})
}

// ListDurations godoc
// GET /api/v1/admin/durations
func (h *AdminHandler) ListDurations(c *gin.Context) {
	schoolID, ok := adminSchool(c)
	if !ok {
		return
	}

	list, err := h.adminService.ListDurations(c.Request.Context(), schoolID)
	if err != nil {
		h.log.Error().Err(err).Msg("List durations failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusOK, list)
}

// SetDuration godoc
// PUT /api/v1/admin/durations
func (h *AdminHandler) SetDuration(c *gin.Context) {
	schoolID, ok := adminSchool(c)
	if !ok {
		return
	}

	var req model.SetDurationRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	d, err := h.adminService.SetDuration(c.Request.Context(), schoolID, req)
	if err != nil {
		h.log.Error().Err(err).Msg("Set duration failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusOK, d)
}

// ListResults godoc
// GET /api/v1/admin/results?subject_id=&student_id=&class_name=&test_type=&page=&per_page=
func (h *AdminHandler) ListResults(c *gin.Context) {
	schoolID, ok := adminSchool(c)
	if !ok {
		return
	}

	var q model.ResultListQuery
	if fields := validator.BindQuery(c, &q); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	if q.Page == 0 {
		q.Page = 1
	}
	if q.PerPage == 0 {
		q.PerPage = defaultPerPage
	}

	filter := repository.ResultFilter{
		SchoolID:  schoolID,
		SubjectID: q.SubjectID,
		StudentID: q.StudentID,
		ClassName: q.ClassName,
		TestType:  q.TestType,
	}
	list, total, err := h.adminService.ListResults(c.Request.Context(), filter, q.Page, q.PerPage)
	if err != nil {
		h.log.Error().Err(err).Msg("List results failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.SuccessWithPagination(c, http.StatusOK, list, response.NewPagination(q.Page, q.PerPage, total))
}

// Leaderboard godoc
// GET /api/v1/admin/leaderboard?subject_id=&class_name=&limit=
func (h *AdminHandler) Leaderboard(c *gin.Context) {
	schoolID, ok := adminSchool(c)
	if !ok {
		return
	}

	var q model.LeaderboardQuery
	if fields := validator.BindQuery(c, &q); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	if q.Limit == 0 {
		q.Limit = defaultLeaderboardLimit
	}

	list, err := h.adminService.Leaderboard(c.Request.Context(), schoolID, q.SubjectID, q.ClassName, q.Limit)
	if err != nil {
		if errors.Is(err, service.ErrInvalidLimit) {
			response.Fail(c, http.StatusBadRequest, response.ErrValidation)
			return
		}
		h.log.Error().Err(err).Msg("Leaderboard failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusOK, list)
}
