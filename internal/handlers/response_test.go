package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/planloom/planloom-backend/internal/platform/apierr"
	"github.com/planloom/planloom-backend/internal/platform/neo4jdb"
	"github.com/planloom/planloom-backend/internal/reconcile"
)

func TestRespondMapped(t *testing.T) {
	gin.SetMode(gin.TestMode)

	for _, tc := range []struct {
		err    error
		status int
		code   string
	}{
		{fmt.Errorf("wrap: %w", neo4jdb.ErrInvalidConfiguration), http.StatusBadRequest, apierr.CodeInvalidConfiguration},
		{fmt.Errorf("wrap: %w", reconcile.ErrUnknownAction), http.StatusBadRequest, apierr.CodeUnknownAction},
		{fmt.Errorf("wrap: %w", reconcile.ErrAccessDenied), http.StatusForbidden, apierr.CodeAccessDenied},
		{fmt.Errorf("wrap: %w", reconcile.ErrConfirmationRequired), http.StatusPreconditionFailed, apierr.CodeConfirmationRequired},
		{fmt.Errorf("wrap: %w", neo4jdb.ErrStorePaused), http.StatusServiceUnavailable, apierr.CodeStorePaused},
		{fmt.Errorf("wrap: %w", neo4jdb.ErrStoreResuming), http.StatusServiceUnavailable, apierr.CodeStoreResuming},
		{&neo4jdb.ConnectError{Attempts: 3, Last: errors.New("refused")}, http.StatusServiceUnavailable, apierr.CodeConnectionFailed},
		// A query that fails because the store went paused mid-session must
		// surface as retryable, not as a rejected query.
		{&neo4jdb.QueryError{Query: "RETURN 1", Err: fmt.Errorf("%w: database is paused", neo4jdb.ErrStorePaused)}, http.StatusServiceUnavailable, apierr.CodeStorePaused},
		{&neo4jdb.QueryError{Query: "RETURN 1", Err: fmt.Errorf("%w: database is resuming", neo4jdb.ErrStoreResuming)}, http.StatusServiceUnavailable, apierr.CodeStoreResuming},
		{&neo4jdb.QueryError{Query: "RETURN 1", Err: errors.New("syntax error")}, http.StatusInternalServerError, apierr.CodeQueryFailed},
		{errors.New("anything else"), http.StatusInternalServerError, apierr.CodeQueryFailed},
		{apierr.New(http.StatusTeapot, "CUSTOM", errors.New("x")), http.StatusTeapot, "CUSTOM"},
	} {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		RespondMapped(c, tc.err)

		if w.Code != tc.status {
			t.Fatalf("err %v: status = %d, want %d", tc.err, w.Code, tc.status)
		}
		var env ErrorEnvelope
		if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
			t.Fatalf("err %v: body %q: %v", tc.err, w.Body.String(), err)
		}
		if env.Error.Code != tc.code {
			t.Fatalf("err %v: code = %q, want %q", tc.err, env.Error.Code, tc.code)
		}
	}
}
