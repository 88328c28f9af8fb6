package handlers

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	apperrors "brokerfolio/internal/errors"
	"brokerfolio/internal/quote"
	"brokerfolio/internal/services"
	"brokerfolio/internal/valuation"
)

// --- mock analytics service ---

type mockAnalyticsService struct {
	dashboardFn func(now time.Time) (*services.Dashboard, error)
	snapshotFn  func(brokerID string) (*valuation.BrokerSnapshot, error)
	executiveFn func(now time.Time) (*services.ExecutiveSummary, error)
}

func (m *mockAnalyticsService) GetDashboard(now time.Time) (*services.Dashboard, error) {
	if m.dashboardFn != nil {
		return m.dashboardFn(now)
	}
	return &services.Dashboard{}, nil
}

func (m *mockAnalyticsService) GetBrokerSnapshot(brokerID string) (*valuation.BrokerSnapshot, error) {
	if m.snapshotFn != nil {
		return m.snapshotFn(brokerID)
	}
	return &valuation.BrokerSnapshot{ID: brokerID, Name: "Balanz"}, nil
}

func (m *mockAnalyticsService) GetExecutiveSummary(now time.Time) (*services.ExecutiveSummary, error) {
	if m.executiveFn != nil {
		return m.executiveFn(now)
	}
	return &services.ExecutiveSummary{GeneratedAt: now, Brokers: []valuation.BrokerSnapshot{}}, nil
}

var _ services.AnalyticsServicer = (*mockAnalyticsService)(nil)

func setupDashboardRouter(handler *DashboardHandler) *gin.Engine {
	r := gin.New()
	auth := r.Group("", injectUserID(testUserID))
	auth.GET("/dashboard", handler.GetDashboard)
	auth.GET("/dashboard/executive", handler.GetExecutiveSummary)
	auth.GET("/brokers/:id/snapshot", handler.GetBrokerSnapshot)
	return r
}

func TestDashboardHandler_GetDashboard(t *testing.T) {
	t.Run("returns the summary", func(t *testing.T) {
		svc := &mockAnalyticsService{
			dashboardFn: func(_ time.Time) (*services.Dashboard, error) {
				return &services.Dashboard{ActiveInvestments: 3, Brokers: 2, TotalARS: decimal.NewFromInt(1500)}, nil
			},
		}
		r := setupDashboardRouter(NewDashboardHandler(svc))

		rec := doRequest(r, "GET", "/dashboard", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		result := parseJSON(t, rec)
		if result["active_investments"].(float64) != 3 || result["total_ars"] != "1500" {
			t.Errorf("unexpected dashboard %v", result)
		}
	})

	t.Run("returns 500 on unexpected error", func(t *testing.T) {
		svc := &mockAnalyticsService{
			dashboardFn: func(_ time.Time) (*services.Dashboard, error) { return nil, errors.New("boom") },
		}
		r := setupDashboardRouter(NewDashboardHandler(svc))

		rec := doRequest(r, "GET", "/dashboard", "")

		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("expected 500, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "INTERNAL_ERROR")
	})
}

func TestDashboardHandler_GetBrokerSnapshot(t *testing.T) {
	t.Run("returns the snapshot", func(t *testing.T) {
		r := setupDashboardRouter(NewDashboardHandler(&mockAnalyticsService{}))

		rec := doRequest(r, "GET", "/brokers/"+testBrokerID+"/snapshot", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if parseJSON(t, rec)["id"] != testBrokerID {
			t.Error("expected broker id in snapshot")
		}
	})

	t.Run("returns 404 when missing", func(t *testing.T) {
		svc := &mockAnalyticsService{
			snapshotFn: func(_ string) (*valuation.BrokerSnapshot, error) { return nil, apperrors.ErrBrokerNotFound },
		}
		r := setupDashboardRouter(NewDashboardHandler(svc))

		rec := doRequest(r, "GET", "/brokers/"+testBrokerID+"/snapshot", "")

		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
	})
}

func TestDashboardHandler_GetExecutiveSummary(t *testing.T) {
	r := setupDashboardRouter(NewDashboardHandler(&mockAnalyticsService{}))

	rec := doRequest(r, "GET", "/dashboard/executive", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if _, ok := parseJSON(t, rec)["brokers"].([]interface{}); !ok {
		t.Error("expected brokers array")
	}
}

func setupQuoteRouter(handler *QuoteHandler) *gin.Engine {
	r := gin.New()
	auth := r.Group("", injectUserID(testUserID))
	auth.GET("/quotes/test-connection", handler.TestConnection)
	auth.GET("/quotes/:symbol", handler.GetQuote)
	return r
}

func TestQuoteHandler_TestConnection(t *testing.T) {
	t.Run("returns 200 when connected", func(t *testing.T) {
		pricing := &mockPricingService{
			testConnectionFn: func(_ context.Context) (*quote.Result, error) {
				p := decimal.RequireFromString("71.5")
				return &quote.Result{Symbol: "AL30", Price: &p}, nil
			},
		}
		r := setupQuoteRouter(NewQuoteHandler(pricing))

		rec := doRequest(r, "GET", "/quotes/test-connection", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if parseJSON(t, rec)["connected"] != true {
			t.Error("expected connected true")
		}
	})

	t.Run("returns 401 on auth failure", func(t *testing.T) {
		pricing := &mockPricingService{
			testConnectionFn: func(_ context.Context) (*quote.Result, error) {
				return nil, apperrors.Wrap(apperrors.ErrQuoteAuthFailed, quote.ErrAuthFailed)
			},
		}
		r := setupQuoteRouter(NewQuoteHandler(pricing))

		rec := doRequest(r, "GET", "/quotes/test-connection", "")

		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "QUOTE_AUTH_FAILED")
	})
}

func TestQuoteHandler_GetQuote(t *testing.T) {
	t.Run("returns the quote", func(t *testing.T) {
		var gotSymbol string
		pricing := &mockPricingService{
			quoteFn: func(_ context.Context, symbol string) (*quote.Result, error) {
				gotSymbol = symbol
				p := decimal.RequireFromString("1620")
				return &quote.Result{Symbol: symbol, Price: &p}, nil
			},
		}
		r := setupQuoteRouter(NewQuoteHandler(pricing))

		rec := doRequest(r, "GET", "/quotes/GGAL", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if gotSymbol != "GGAL" {
			t.Errorf("expected GGAL, got %s", gotSymbol)
		}
	})

	t.Run("returns 404 when unavailable", func(t *testing.T) {
		pricing := &mockPricingService{
			quoteFn: func(_ context.Context, _ string) (*quote.Result, error) {
				return nil, apperrors.Wrap(apperrors.ErrQuoteUnavailable, errors.New("HTTP 404"))
			},
		}
		r := setupQuoteRouter(NewQuoteHandler(pricing))

		rec := doRequest(r, "GET", "/quotes/NOPE", "")

		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "QUOTE_UNAVAILABLE")
	})
}
