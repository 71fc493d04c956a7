package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/planloom/planloom-backend/internal/platform/apierr"
	"github.com/planloom/planloom-backend/internal/platform/neo4jdb"
	"github.com/planloom/planloom-backend/internal/reconcile"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

// RespondMapped translates engine and store errors into the API error
// taxonomy. Anything unrecognized is a 500 with QUERY_FAILED.
func RespondMapped(c *gin.Context, err error) {
	var ae *apierr.Error
	if errors.As(err, &ae) {
		RespondError(c, ae.Status, ae.Code, ae.Err)
		return
	}
	switch {
	case errors.Is(err, neo4jdb.ErrInvalidConfiguration):
		RespondError(c, http.StatusBadRequest, apierr.CodeInvalidConfiguration, err)
	case errors.Is(err, reconcile.ErrUnknownAction):
		RespondError(c, http.StatusBadRequest, apierr.CodeUnknownAction, err)
	case errors.Is(err, reconcile.ErrAccessDenied):
		RespondError(c, http.StatusForbidden, apierr.CodeAccessDenied, err)
	case errors.Is(err, reconcile.ErrConfirmationRequired):
		RespondError(c, http.StatusPreconditionFailed, apierr.CodeConfirmationRequired, err)
	case errors.Is(err, neo4jdb.ErrStorePaused):
		RespondError(c, http.StatusServiceUnavailable, apierr.CodeStorePaused, err)
	case errors.Is(err, neo4jdb.ErrStoreResuming):
		RespondError(c, http.StatusServiceUnavailable, apierr.CodeStoreResuming, err)
	case errors.Is(err, neo4jdb.ErrConnectionFailed):
		RespondError(c, http.StatusServiceUnavailable, apierr.CodeConnectionFailed, err)
	default:
		RespondError(c, http.StatusInternalServerError, apierr.CodeQueryFailed, err)
	}
}
