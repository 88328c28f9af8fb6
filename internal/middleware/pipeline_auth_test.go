package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func setupPipelineRouter(apiKey string) *gin.Engine {
	r := gin.New()
	r.Use(PipelineAuthMiddleware(apiKey))
	r.POST("/pipeline/prices", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	return r
}

func doRequest(r *gin.Engine, apiKey string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/pipeline/prices", http.NoBody)
	if apiKey != "" {
		req.Header.Set(PipelineKeyHeader, apiKey)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func parseBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var result map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse response body: %v", err)
	}
	return result
}

func TestPipelineAuthMiddleware(t *testing.T) {
	tests := []struct {
		name          string
		configuredKey string
		requestKey    string
		wantStatus    int
		wantErrorCode string
	}{
		{
			name:          "valid_api_key",
			configuredKey: "pipeline-key",
			requestKey:    "pipeline-key",
			wantStatus:    http.StatusOK,
		},
		{
			name:          "wrong_api_key",
			configuredKey: "pipeline-key",
			requestKey:    "other-key",
			wantStatus:    http.StatusUnauthorized,
			wantErrorCode: "INVALID_API_KEY",
		},
		{
			name:          "missing_api_key",
			configuredKey: "pipeline-key",
			wantStatus:    http.StatusUnauthorized,
			wantErrorCode: "INVALID_API_KEY",
		},
		{
			name:          "prefix_of_key_rejected",
			configuredKey: "pipeline-key",
			requestKey:    "pipeline",
			wantStatus:    http.StatusUnauthorized,
			wantErrorCode: "INVALID_API_KEY",
		},
		{
			name:          "rotated_old_key_accepted",
			configuredKey: "new-key, old-key",
			requestKey:    "old-key",
			wantStatus:    http.StatusOK,
		},
		{
			name:          "rotated_new_key_accepted",
			configuredKey: "new-key, old-key",
			requestKey:    "new-key",
			wantStatus:    http.StatusOK,
		},
		{
			name:          "key_list_not_matched_whole",
			configuredKey: "new-key,old-key",
			requestKey:    "new-key,old-key",
			wantStatus:    http.StatusUnauthorized,
			wantErrorCode: "INVALID_API_KEY",
		},
		{
			name:          "disabled_without_configured_key",
			configuredKey: "",
			requestKey:    "any-key",
			wantStatus:    http.StatusServiceUnavailable,
			wantErrorCode: "PIPELINE_DISABLED",
		},
		{
			name:          "disabled_without_any_key",
			configuredKey: "",
			wantStatus:    http.StatusServiceUnavailable,
			wantErrorCode: "PIPELINE_DISABLED",
		},
		{
			name:          "disabled_when_only_separators",
			configuredKey: " , ",
			requestKey:    "",
			wantStatus:    http.StatusServiceUnavailable,
			wantErrorCode: "PIPELINE_DISABLED",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := setupPipelineRouter(tt.configuredKey)
			rec := doRequest(router, tt.requestKey)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}

			body := parseBody(t, rec)
			if tt.wantErrorCode != "" {
				errObj, ok := body["error"].(map[string]interface{})
				if !ok {
					t.Fatal("expected error object in response")
				}
				if code, _ := errObj["code"].(string); code != tt.wantErrorCode {
					t.Errorf("error code = %q, want %q", code, tt.wantErrorCode)
				}
				if msg, _ := errObj["message"].(string); msg == "" {
					t.Error("expected an error message")
				}
				return
			}
			if status, _ := body["status"].(string); status != "ok" {
				t.Errorf("expected handler to be reached, got status = %q", status)
			}
		})
	}
}
