package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"brokerfolio/internal/logger"
	"brokerfolio/internal/models"
	"brokerfolio/internal/quote"
	"brokerfolio/internal/reports"
	"brokerfolio/internal/services"
	"brokerfolio/internal/testutil"
	"brokerfolio/internal/validator"
)

const testAPIKey = "pipeline-test-key"

// testApp holds the full application stack for flow tests.
type testApp struct {
	DB       *gorm.DB
	Router   *gin.Engine
	Provider *fakeProvider
}

func init() {
	gin.SetMode(gin.TestMode)
	logger.Init("test", "error")
	validator.Register()
}

// fakeProvider serves the token and quote endpoints of the quote API.
type fakeProvider struct {
	mu      sync.Mutex
	fail    map[string]int
	price   string
	logins  int
	lookups int
}

func (f *fakeProvider) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if r.URL.Path == "/token" {
		f.logins++
		_ = json.NewEncoder(w).Encode(map[string]string{"access_token": "a", "refresh_token": "r"})
		return
	}
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) < 6 || parts[3] != "Titulos" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	f.lookups++
	if code, ok := f.fail[parts[4]]; ok {
		w.WriteHeader(code)
		return
	}
	fmt.Fprintf(w, `{"ultimoPrecio": %s, "variacion": 0.5, "volumen": 1200, "fechaHora": ""}`, f.price)
}

// setupApp creates the full stack on an isolated in-memory SQLite. A nil
// provider leaves the quote client unconfigured.
func setupApp(t *testing.T, provider *fakeProvider) *testApp {
	t.Helper()

	db := testutil.SetupTestDB(t)

	var fetcher services.QuoteFetcher
	if provider != nil {
		srv := httptest.NewServer(provider)
		t.Cleanup(srv.Close)
		fetcher = quote.NewClient(
			quote.Credentials{Username: "trader", Password: "secret"},
			quote.WithBaseURL(srv.URL),
			quote.WithHTTPClient(srv.Client()),
		)
	}

	renderer, err := reports.NewRenderer("")
	if err != nil {
		t.Fatalf("renderer: %v", err)
	}

	router := NewRouter(Deps{
		DB:             db,
		Pricing:        services.NewPricingService(db, fetcher, nil),
		Renderer:       renderer,
		PipelineAPIKey: testAPIKey,
	})
	return &testApp{DB: db, Router: router, Provider: provider}
}

// request makes an HTTP request to the test router and returns the recorder.
func (app *testApp) request(method, path, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)
	return rec
}

// pipeline makes an API-key request to a pipeline endpoint.
func (app *testApp) pipeline(path, contentType, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", path, strings.NewReader(body))
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-API-Key", testAPIKey)
	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)
	return rec
}

// parseJSON parses the response body into a map.
func parseJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var result map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse JSON: %v\nbody: %s", err, rec.Body.String())
	}
	return result
}

// registerUser registers a new user and returns the access token, refresh token, and user ID.
func (app *testApp) registerUser(t *testing.T, email, password string) (accessToken, refreshToken, userID string) {
	t.Helper()
	body := fmt.Sprintf(`{"email":%q,"password":%q,"full_name":"Test User"}`, email, password)
	rec := app.request("POST", "/api/v1/auth/register", body, "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("register failed: %d %s", rec.Code, rec.Body.String())
	}
	result := parseJSON(t, rec)
	user := result["user"].(map[string]interface{})
	return result["access_token"].(string), result["refresh_token"].(string), user["id"].(string)
}

// loginUser logs in and returns the access and refresh tokens.
func (app *testApp) loginUser(t *testing.T, email, password string) (accessToken, refreshToken string) {
	t.Helper()
	body := fmt.Sprintf(`{"email":%q,"password":%q}`, email, password)
	rec := app.request("POST", "/api/v1/auth/login", body, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("login failed: %d %s", rec.Code, rec.Body.String())
	}
	result := parseJSON(t, rec)
	return result["access_token"].(string), result["refresh_token"].(string)
}

// promote marks a user as administrator; a new login picks it up.
func (app *testApp) promote(t *testing.T, userID string) {
	t.Helper()
	if err := app.DB.Model(&models.User{}).Where("id = ?", userID).Update("is_admin", true).Error; err != nil {
		t.Fatalf("promote: %v", err)
	}
}

// createBroker creates a broker and returns its ID.
func (app *testApp) createBroker(t *testing.T, token, name string) string {
	t.Helper()
	rec := app.request("POST", "/api/v1/brokers", fmt.Sprintf(`{"name":%q}`, name), token)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create broker failed: %d %s", rec.Code, rec.Body.String())
	}
	return parseJSON(t, rec)["broker"].(map[string]interface{})["id"].(string)
}
