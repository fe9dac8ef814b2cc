package response

import (
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestBuildPagination(t *testing.T) {
	p := BuildPagination(2, 20, 41)
	if p.TotalPage != 3 || p.Page != 2 || p.PageSize != 20 {
		t.Fatalf("unexpected pagination: %+v", p)
	}
	p = BuildPagination(0, 0, 0)
	if p.Page != 1 || p.PageSize != 20 || p.TotalPage != 0 {
		t.Fatalf("unexpected defaults: %+v", p)
	}
}

func TestFailAttachesRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Set("request_id", "req-1")

	Fail(c, WrapError(CodeConflict, "error.bulk_conflict", "conflict", nil))

	var body struct {
		StatusCode int               `json:"status_code"`
		Msg        string            `json:"msg"`
		Data       map[string]string `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body failed: %v", err)
	}
	if w.Code != 200 || body.StatusCode != CodeConflict || body.Data["request_id"] != "req-1" {
		t.Fatalf("unexpected response: %d %+v", w.Code, body)
	}
}

func TestFailCarriesErrorKey(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	Fail(c, WrapError(CodeBadRequest, "error.bank_details_not_verified", "Bank details are not verified", nil))

	var body struct {
		StatusCode int       `json:"status_code"`
		Msg        string    `json:"msg"`
		Data       ErrorData `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body failed: %v", err)
	}
	if body.StatusCode != CodeBadRequest || body.Data.Error != "error.bank_details_not_verified" {
		t.Fatalf("unexpected response: %+v", body)
	}
	if body.Data.RequestID != "" {
		t.Fatalf("request id should be omitted without middleware, got %q", body.Data.RequestID)
	}
}

func TestAppErrorMessage(t *testing.T) {
	cause := errors.New("deadlock")
	appErr := WrapError(CodeInternal, "error.internal", "Internal server error", cause)
	if appErr.Error() != "error.internal: deadlock" || !errors.Is(appErr, cause) {
		t.Fatalf("unexpected app error: %v", appErr)
	}
}
