package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/smarttest/smarttest-backend/internal/middleware"
	"github.com/smarttest/smarttest-backend/internal/model"
	"github.com/smarttest/smarttest-backend/internal/response"
	"github.com/smarttest/smarttest-backend/internal/service"
	"github.com/smarttest/smarttest-backend/internal/validator"
)

// TestSession is the engine behind the student test routes.
type TestSession interface {
	CanStart(ctx context.Context, key model.ProgressKey) (model.StartMode, error)
	Start(ctx context.Context, student model.StudentRef, subjectID int64, testType model.TestType) (*model.Progress, model.StartMode, error)
	Resume(ctx context.Context, key model.ProgressKey) (*model.Progress, error)
	State(ctx context.Context, key model.ProgressKey) (*model.SessionState, error)
	RecordAnswer(ctx context.Context, key model.ProgressKey, index int, value string) (string, error)
	SelectOption(ctx context.Context, key model.ProgressKey, index, optionIndex int) (string, error)
	Navigate(ctx context.Context, key model.ProgressKey, index int) error
	ToggleMark(ctx context.Context, key model.ProgressKey, index int) (bool, error)
	Autosave(ctx context.Context, key model.ProgressKey, snap model.AutosaveSnapshot) (model.AutosaveStatus, error)
	Submit(ctx context.Context, key model.ProgressKey) (*model.TestResult, error)
}

// Lobby lists a student's tests.
type Lobby interface {
	GetLobby(ctx context.Context, student model.StudentRef) ([]model.LobbyEntry, error)
}

// TestHandler serves the student test routes.
type TestHandler struct {
	sessions TestSession
	lobby    Lobby
	log      zerolog.Logger
	now      func() time.Time
}

// NewTestHandler creates a new TestHandler.
func NewTestHandler(sessions TestSession, lobby Lobby, log zerolog.Logger) *TestHandler {
	return &TestHandler{
		sessions: sessions,
		lobby:    lobby,
		log:      log.With().Str("component", "test_handler").Logger(),
		now:      time.Now,
	}
}

// testKey resolves the caller and the :subject_id/:test_type path. It writes
// the error response and returns false on failure.
func testKey(c *gin.Context) (model.StudentRef, model.ProgressKey, bool) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return model.StudentRef{}, model.ProgressKey{}, false
	}

	var path model.TestPath
	if fields := validator.BindURI(c, &path); fields != nil {
		code := response.ErrValidation
		if _, bad := fields["test_type"]; bad {
			code = response.ErrInvalidTestType
		}
		response.FailWithFields(c, http.StatusBadRequest, code, fields)
		return model.StudentRef{}, model.ProgressKey{}, false
	}

	student := claims.StudentRef()
	return student, service.KeyFor(student, path.SubjectID, model.TestType(path.TestType)), true
}

func questionIndex(c *gin.Context) (int, bool) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return 0, false
	}
	return index, true
}

// GetLobby godoc
// GET /api/v1/student/lobby
// Lists the student's subjects with the status of each test type.
func (h *TestHandler) GetLobby(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	entries, err := h.lobby.GetLobby(c.Request.Context(), claims.StudentRef())
	if err != nil {
		h.log.Error().Err(err).Int64("student_id", claims.UserID).Msg("Failed to build lobby")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, entries)
}

// Eligibility godoc
// GET /api/v1/student/tests/:subject_id/:test_type/eligibility
// Reports whether a start would be fresh, a resume, a retake, or refused.
func (h *TestHandler) Eligibility(c *gin.Context) {
	_, key, ok := testKey(c)
	if !ok {
		return
	}

	mode, err := h.sessions.CanStart(c.Request.Context(), key)
	if errors.Is(err, service.ErrAlreadySubmitted) {
		response.Success(c, http.StatusOK, model.EligibilityResponse{CanStart: false, Reason: string(response.ErrAlreadySubmitted)})
		return
	}
	if err != nil {
		failSession(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, model.EligibilityResponse{CanStart: true, Mode: mode})
}

// Start godoc
// POST /api/v1/student/tests/:subject_id/:test_type/start
// Starts a fresh attempt, resumes the open one, or consumes a retake grant.
func (h *TestHandler) Start(c *gin.Context) {
	student, key, ok := testKey(c)
	if !ok {
		return
	}

	p, mode, err := h.sessions.Start(c.Request.Context(), student, key.SubjectID, key.TestType)
	if err != nil {
		failSession(c, h.log, err)
		return
	}

	status := http.StatusCreated
	if mode == model.StartResume {
		status = http.StatusOK
	}
	response.Success(c, status, model.StartResponse{Mode: mode, Progress: p.View(h.now())})
}

// Resume godoc
// GET /api/v1/student/tests/:subject_id/:test_type/resume
// Returns the in-progress attempt exactly as stored.
func (h *TestHandler) Resume(c *gin.Context) {
	_, key, ok := testKey(c)
	if !ok {
		return
	}

	p, err := h.sessions.Resume(c.Request.Context(), key)
	if err != nil {
		failSession(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, p.View(h.now()))
}

// State godoc
// GET /api/v1/student/tests/:subject_id/:test_type/state
// Returns the countdown; an expired attempt is submitted and its result included.
func (h *TestHandler) State(c *gin.Context) {
	_, key, ok := testKey(c)
	if !ok {
		return
	}

	st, err := h.sessions.State(c.Request.Context(), key)
	if err != nil {
		failSession(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, st)
}

// Answer godoc
// PUT /api/v1/student/tests/:subject_id/:test_type/answers/:index
// Records an answer by value, or by option position when option_index is set.
func (h *TestHandler) Answer(c *gin.Context) {
	_, key, ok := testKey(c)
	if !ok {
		return
	}
	index, ok := questionIndex(c)
	if !ok {
		return
	}

	var req model.AnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	var (
		stored string
		err    error
	)
	if req.OptionIndex != nil {
		stored, err = h.sessions.SelectOption(c.Request.Context(), key, index, *req.OptionIndex)
	} else {
		stored, err = h.sessions.RecordAnswer(c.Request.Context(), key, index, req.Answer)
	}
	if err != nil {
		failSession(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"index": index, "answer": stored})
}

// Navigate godoc
// PUT /api/v1/student/tests/:subject_id/:test_type/position
// Moves the attempt's current question.
func (h *TestHandler) Navigate(c *gin.Context) {
	_, key, ok := testKey(c)
	if !ok {
		return
	}

	var req model.NavigateRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.sessions.Navigate(c.Request.Context(), key, *req.Index); err != nil {
		failSession(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"current_index": *req.Index})
}

// ToggleMark godoc
// PUT /api/v1/student/tests/:subject_id/:test_type/marks/:index
// Flips the review mark of a question.
func (h *TestHandler) ToggleMark(c *gin.Context) {
	_, key, ok := testKey(c)
	if !ok {
		return
	}
	index, ok := questionIndex(c)
	if !ok {
		return
	}

	marked, err := h.sessions.ToggleMark(c.Request.Context(), key, index)
	if err != nil {
		failSession(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"index": index, "marked": marked})
}

// Autosave godoc
// PUT /api/v1/student/tests/:subject_id/:test_type/autosave
// Writes the client's working copy; queued for retry when the store is down.
func (h *TestHandler) Autosave(c *gin.Context) {
	_, key, ok := testKey(c)
	if !ok {
		return
	}

	var req model.AutosaveRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	status, err := h.sessions.Autosave(c.Request.Context(), key, req.Snapshot())
	if err != nil {
		failSession(c, h.log, err)
		return
	}

	code := http.StatusOK
	if status == model.AutosaveQueued {
		code = http.StatusAccepted
	}
	response.Success(c, code, gin.H{"status": status})
}

// Submit godoc
// POST /api/v1/student/tests/:subject_id/:test_type/submit
// Finalises the attempt. Repeating the call returns the same result.
func (h *TestHandler) Submit(c *gin.Context) {
	_, key, ok := testKey(c)
	if !ok {
		return
	}

	res, err := h.sessions.Submit(c.Request.Context(), key)
	if err != nil {
		failSession(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, res)
}
