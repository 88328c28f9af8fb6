package handlers

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"

	apperrors "brokerfolio/internal/errors"
	"brokerfolio/internal/models"
	"brokerfolio/internal/pagination"
	"brokerfolio/internal/services"
	"brokerfolio/internal/valuation"
)

const testBrokerID = "0190c8a4-6a1e-7cc0-8e5b-2f7f4a0d9c01"

// --- mock broker service ---

type mockBrokerService struct {
	createBrokerFn func(userID string, in services.BrokerInput) (*models.Broker, error)
	listBrokersFn  func(search string, page pagination.PageRequest) (*pagination.PageResponse[models.Broker], error)
	getBrokerFn    func(id string) (*models.Broker, error)
	updateBrokerFn func(id string, in services.BrokerInput) (*models.Broker, error)
	deleteBrokerFn func(id string) error
	rateBrokerFn   func(brokerID, userID string, category models.RatingCategory, score int, comment string) (*models.BrokerRating, error)
	getRatingsFn   func(brokerID string) ([]models.BrokerRating, error)
}

func (m *mockBrokerService) CreateBroker(userID string, in services.BrokerInput) (*models.Broker, error) {
	if m.createBrokerFn != nil {
		return m.createBrokerFn(userID, in)
	}
	return &models.Broker{Base: models.Base{ID: testBrokerID}, Name: in.Name}, nil
}

func (m *mockBrokerService) ListBrokers(search string, page pagination.PageRequest) (*pagination.PageResponse[models.Broker], error) {
	if m.listBrokersFn != nil {
		return m.listBrokersFn(search, page)
	}
	resp := pagination.NewPageResponse([]models.Broker{}, 1, 20, 0)
	return &resp, nil
}

func (m *mockBrokerService) GetBrokerByID(id string) (*models.Broker, error) {
	if m.getBrokerFn != nil {
		return m.getBrokerFn(id)
	}
	return &models.Broker{Base: models.Base{ID: id}, Name: "Balanz"}, nil
}

func (m *mockBrokerService) UpdateBroker(id string, in services.BrokerInput) (*models.Broker, error) {
	if m.updateBrokerFn != nil {
		return m.updateBrokerFn(id, in)
	}
	return &models.Broker{Base: models.Base{ID: id}, Name: in.Name}, nil
}

func (m *mockBrokerService) DeleteBroker(id string) error {
	if m.deleteBrokerFn != nil {
		return m.deleteBrokerFn(id)
	}
	return nil
}

func (m *mockBrokerService) RateBroker(brokerID, userID string, category models.RatingCategory, score int, comment string) (*models.BrokerRating, error) {
	if m.rateBrokerFn != nil {
		return m.rateBrokerFn(brokerID, userID, category, score, comment)
	}
	return &models.BrokerRating{BrokerID: brokerID, UserID: userID, Category: category, Score: score}, nil
}

func (m *mockBrokerService) GetRatings(brokerID string) ([]models.BrokerRating, error) {
	if m.getRatingsFn != nil {
		return m.getRatingsFn(brokerID)
	}
	return []models.BrokerRating{}, nil
}

func (m *mockBrokerService) GetRatingSummary(brokerID string) (*valuation.RatingSummary, error) {
	ratings, err := m.GetRatings(brokerID)
	if err != nil {
		return nil, err
	}
	summary := valuation.SummarizeRatings(ratings)
	return &summary, nil
}

var _ services.BrokerServicer = (*mockBrokerService)(nil)

func setupBrokerRouter(handler *BrokerHandler) *gin.Engine {
	r := gin.New()
	auth := r.Group("", injectUserID(testUserID))
	auth.POST("/brokers", handler.CreateBroker)
	auth.GET("/brokers", handler.ListBrokers)
	auth.GET("/brokers/:id", handler.GetBroker)
	auth.PUT("/brokers/:id", handler.UpdateBroker)
	auth.DELETE("/brokers/:id", handler.DeleteBroker)
	auth.POST("/brokers/:id/ratings", handler.RateBroker)
	auth.GET("/brokers/:id/ratings", handler.GetRatings)
	return r
}

func TestBrokerHandler_CreateBroker(t *testing.T) {
	t.Run("returns 201 on success", func(t *testing.T) {
		var got services.BrokerInput
		activity := &mockActivityService{}
		svc := &mockBrokerService{
			createBrokerFn: func(_ string, in services.BrokerInput) (*models.Broker, error) {
				got = in
				return &models.Broker{Base: models.Base{ID: testBrokerID}, Name: in.Name, CommissionRate: in.CommissionRate}, nil
			},
		}
		r := setupBrokerRouter(NewBrokerHandler(svc, activity))

		rec := doRequest(r, "POST", "/brokers", `{"name":"Balanz","commission_rate":"0.5","website":"https://balanz.com"}`)

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		if got.Name != "Balanz" || got.CommissionRate.String() != "0.5" {
			t.Errorf("unexpected input %+v", got)
		}
		if len(activity.logged) != 1 || activity.logged[0] != "create broker" {
			t.Errorf("expected create logged, got %v", activity.logged)
		}
	})

	t.Run("returns 400 on missing name", func(t *testing.T) {
		r := setupBrokerRouter(NewBrokerHandler(&mockBrokerService{}, &mockActivityService{}))

		rec := doRequest(r, "POST", "/brokers", `{"website":"https://balanz.com"}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "INVALID_INPUT")
	})

	t.Run("returns 409 on duplicate", func(t *testing.T) {
		svc := &mockBrokerService{
			createBrokerFn: func(_ string, _ services.BrokerInput) (*models.Broker, error) {
				return nil, apperrors.ErrDuplicateBroker
			},
		}
		r := setupBrokerRouter(NewBrokerHandler(svc, &mockActivityService{}))

		rec := doRequest(r, "POST", "/brokers", `{"name":"Balanz"}`)

		if rec.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "DUPLICATE_BROKER")
	})

	t.Run("returns 401 without auth", func(t *testing.T) {
		handler := NewBrokerHandler(&mockBrokerService{}, &mockActivityService{})
		r := gin.New()
		r.POST("/brokers", handler.CreateBroker)

		rec := doRequest(r, "POST", "/brokers", `{"name":"Balanz"}`)

		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
	})
}

func TestBrokerHandler_GetBroker(t *testing.T) {
	t.Run("returns broker with rating summary", func(t *testing.T) {
		svc := &mockBrokerService{
			getRatingsFn: func(brokerID string) ([]models.BrokerRating, error) {
				return []models.BrokerRating{
					{BrokerID: brokerID, Category: models.RatingCategoryFees, Score: 4},
					{BrokerID: brokerID, Category: models.RatingCategoryFees, Score: 2},
				}, nil
			},
		}
		r := setupBrokerRouter(NewBrokerHandler(svc, &mockActivityService{}))

		rec := doRequest(r, "GET", "/brokers/"+testBrokerID, "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		ratings := parseJSON(t, rec)["ratings"].(map[string]interface{})
		if ratings["average"].(float64) != 3 || ratings["count"].(float64) != 2 {
			t.Errorf("unexpected summary %v", ratings)
		}
	})

	t.Run("returns 400 on invalid id", func(t *testing.T) {
		r := setupBrokerRouter(NewBrokerHandler(&mockBrokerService{}, &mockActivityService{}))

		rec := doRequest(r, "GET", "/brokers/42", "")

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("returns 404 when missing", func(t *testing.T) {
		svc := &mockBrokerService{
			getBrokerFn: func(_ string) (*models.Broker, error) { return nil, apperrors.ErrBrokerNotFound },
		}
		r := setupBrokerRouter(NewBrokerHandler(svc, &mockActivityService{}))

		rec := doRequest(r, "GET", "/brokers/"+testBrokerID, "")

		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "BROKER_NOT_FOUND")
	})
}

func TestBrokerHandler_DeleteBroker(t *testing.T) {
	t.Run("returns 409 when in use", func(t *testing.T) {
		svc := &mockBrokerService{
			deleteBrokerFn: func(_ string) error { return apperrors.ErrBrokerInUse },
		}
		activity := &mockActivityService{}
		r := setupBrokerRouter(NewBrokerHandler(svc, activity))

		rec := doRequest(r, "DELETE", "/brokers/"+testBrokerID, "")

		if rec.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", rec.Code)
		}
		if len(activity.logged) != 0 {
			t.Errorf("expected nothing logged, got %v", activity.logged)
		}
	})

	t.Run("returns 200 on success", func(t *testing.T) {
		activity := &mockActivityService{}
		r := setupBrokerRouter(NewBrokerHandler(&mockBrokerService{}, activity))

		rec := doRequest(r, "DELETE", "/brokers/"+testBrokerID, "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if len(activity.logged) != 1 || activity.logged[0] != "delete broker" {
			t.Errorf("expected delete logged, got %v", activity.logged)
		}
	})
}

func TestBrokerHandler_RateBroker(t *testing.T) {
	t.Run("returns 200 and passes the caller", func(t *testing.T) {
		var gotUser string
		var gotScore int
		svc := &mockBrokerService{
			rateBrokerFn: func(brokerID, userID string, category models.RatingCategory, score int, _ string) (*models.BrokerRating, error) {
				gotUser, gotScore = userID, score
				return &models.BrokerRating{BrokerID: brokerID, UserID: userID, Category: category, Score: score}, nil
			},
		}
		r := setupBrokerRouter(NewBrokerHandler(svc, &mockActivityService{}))

		rec := doRequest(r, "POST", "/brokers/"+testBrokerID+"/ratings", `{"category":"fees","score":4}`)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if gotUser != testUserID || gotScore != 4 {
			t.Errorf("unexpected call user=%s score=%d", gotUser, gotScore)
		}
	})

	tests := []struct {
		name string
		body string
	}{
		{"score too high", `{"category":"fees","score":6}`},
		{"score zero", `{"category":"fees","score":0}`},
		{"unknown category", `{"category":"vibes","score":3}`},
	}
	for _, tt := range tests {
		t.Run("returns 400 on "+tt.name, func(t *testing.T) {
			r := setupBrokerRouter(NewBrokerHandler(&mockBrokerService{}, &mockActivityService{}))

			rec := doRequest(r, "POST", "/brokers/"+testBrokerID+"/ratings", tt.body)

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", rec.Code)
			}
		})
	}
}
