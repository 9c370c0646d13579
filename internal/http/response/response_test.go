package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/studyforge-backend/internal/platform/apierr"
)

func TestRespondErrMapsSentinels(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := []struct {
		name     string
		err      error
		wantCode int
		wantKey  string
		wantMsg  string
	}{
		{"not found", fmt.Errorf("session %w", apierr.ErrNotFound), http.StatusNotFound, "fallback", "session not found"},
		{"invalid", fmt.Errorf("%w: bad mode", apierr.ErrInvalidArgument), http.StatusBadRequest, "fallback", "invalid argument: bad mode"},
		{"coded", apierr.New(http.StatusUnauthorized, "unauthenticated", errors.New("no user")), http.StatusUnauthorized, "unauthenticated", "no user"},
		{"internal", errors.New("pq: connection reset"), http.StatusInternalServerError, "fallback", "internal error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(rec)
			RespondErr(c, "fallback", tc.err)

			if rec.Code != tc.wantCode {
				t.Fatalf("status: got=%d want=%d", rec.Code, tc.wantCode)
			}
			var body ErrorEnvelope
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Error.Code != tc.wantKey || body.Error.Message != tc.wantMsg {
				t.Fatalf("body: got=%+v", body.Error)
			}
		})
	}
}
