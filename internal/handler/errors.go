package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/smarttest/smarttest-backend/internal/model"
	"github.com/smarttest/smarttest-backend/internal/response"
	"github.com/smarttest/smarttest-backend/internal/service"
)

// sessionErrors maps service sentinels to their HTTP status and error code.
// Order matters: the first match wins.
var sessionErrors = []struct {
	err    error
	status int
	code   response.ErrCode
}{
	{service.ErrTimeUp, http.StatusConflict, response.ErrTimeUp},
	{service.ErrAlreadySubmitted, http.StatusConflict, response.ErrAlreadySubmitted},
	{service.ErrNoSavedProgress, http.StatusNotFound, response.ErrNoSavedProgress},
	{service.ErrNoDurationConfigured, http.StatusUnprocessableEntity, response.ErrNoDurationConfigured},
	{service.ErrNoQuestions, http.StatusUnprocessableEntity, response.ErrNoQuestions},
	{service.ErrQuestionIndexOutOfRange, http.StatusBadRequest, response.ErrQuestionIndexOutOfRange},
	{service.ErrInvalidTestType, http.StatusBadRequest, response.ErrInvalidTestType},
	{service.ErrStaleAttempt, http.StatusConflict, response.ErrStaleAttempt},
	{model.ErrAnswerCountMismatch, http.StatusBadRequest, response.ErrAnswerCountMismatch},
}

// classify returns the status and code for err, falling back to 500.
func classify(err error) (int, response.ErrCode) {
	for _, m := range sessionErrors {
		if errors.Is(err, m.err) {
			return m.status, m.code
		}
	}
	return http.StatusInternalServerError, response.ErrInternal
}

// failSession writes the error response for a test session failure. A
// TimeUpError carries the auto-submitted result back to the client.
func failSession(c *gin.Context, log zerolog.Logger, err error) {
	var timeUp *service.TimeUpError
	if errors.As(err, &timeUp) {
		response.FailWithData(c, http.StatusConflict, response.ErrTimeUp, gin.H{"result": timeUp.Result})
		return
	}

	status, code := classify(err)
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.FullPath()).Msg("Test session request failed")
	}
	response.Fail(c, status, code)
}
