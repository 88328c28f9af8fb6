package server

import (
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func decimalField(t *testing.T, m map[string]interface{}, key string) decimal.Decimal {
	t.Helper()
	s, ok := m[key].(string)
	if !ok {
		t.Fatalf("expected %s to be a decimal string, got %v", key, m[key])
	}
	return decimal.RequireFromString(s)
}

func TestPortfolioFlow_HoldingsValuationAndExport(t *testing.T) {
	app := setupApp(t, nil)
	token, _, _ := app.registerUser(t, "folio@test.com", "password123")
	brokerID := app.createBroker(t, token, "Balanz")

	rec := app.request("POST", "/api/v1/portfolios",
		fmt.Sprintf(`{"broker_id":%q,"name":"Long term"}`, brokerID), token)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create portfolio: %d %s", rec.Code, rec.Body.String())
	}
	portfolioID := parseJSON(t, rec)["portfolio"].(map[string]interface{})["id"].(string)

	// an unknown symbol creates the instrument
	rec = app.request("POST", "/api/v1/portfolios/"+portfolioID+"/holdings",
		`{"symbol":"ggal","name":"Grupo Galicia","category":"equity","quantity":"10","purchase_price":"1000","purchase_date":"2024-01-02"}`, token)
	if rec.Code != http.StatusCreated {
		t.Fatalf("add holding: %d %s", rec.Code, rec.Body.String())
	}
	rec = app.request("POST", "/api/v1/portfolios/"+portfolioID+"/holdings",
		`{"symbol":"AL30","category":"bond","quantity":"100","purchase_price":"80"}`, token)
	if rec.Code != http.StatusCreated {
		t.Fatalf("add second holding: %d %s", rec.Code, rec.Body.String())
	}

	// no price yet: current value is zero
	rec = app.request("GET", "/api/v1/portfolios/"+portfolioID+"/valuation", "", token)
	if rec.Code != http.StatusOK {
		t.Fatalf("valuation: %d %s", rec.Code, rec.Body.String())
	}
	totals := parseJSON(t, rec)["totals"].(map[string]interface{})
	if !decimalField(t, totals, "invested").Equal(decimal.NewFromInt(18000)) {
		t.Errorf("expected invested 18000, got %v", totals["invested"])
	}
	if !decimalField(t, totals, "current").IsZero() {
		t.Errorf("expected current 0 before any price, got %v", totals["current"])
	}

	rec = app.pipeline("/api/v1/pipeline/prices", "text/csv", "symbol,date,price,volume\nGGAL,,1500,2000\nAL30,,70,\n")
	if rec.Code != http.StatusOK {
		t.Fatalf("push prices: %d %s", rec.Code, rec.Body.String())
	}

	rec = app.request("GET", "/api/v1/portfolios/"+portfolioID+"/valuation", "", token)
	snap := parseJSON(t, rec)
	totals = snap["totals"].(map[string]interface{})
	if !decimalField(t, totals, "current").Equal(decimal.NewFromInt(22000)) {
		t.Errorf("expected current 22000, got %v", totals["current"])
	}
	if !decimalField(t, totals, "gain_loss").Equal(decimal.NewFromInt(4000)) {
		t.Errorf("expected gain 4000, got %v", totals["gain_loss"])
	}
	if len(snap["holdings"].([]interface{})) != 2 {
		t.Errorf("expected 2 holdings, got %v", snap["holdings"])
	}

	rec = app.request("GET", "/api/v1/portfolios/"+portfolioID+"/performance", "", token)
	if rec.Code != http.StatusOK {
		t.Fatalf("performance: %d %s", rec.Code, rec.Body.String())
	}
	perf := parseJSON(t, rec)
	if perf["best"].(map[string]interface{})["symbol"] != "GGAL" {
		t.Errorf("expected GGAL best, got %v", perf["best"])
	}
	if perf["worst"].(map[string]interface{})["symbol"] != "AL30" {
		t.Errorf("expected AL30 worst, got %v", perf["worst"])
	}

	rec = app.request("GET", "/api/v1/portfolios/"+portfolioID+"/holdings/export", "", token)
	if rec.Code != http.StatusOK {
		t.Fatalf("export: %d %s", rec.Code, rec.Body.String())
	}
	if !strings.HasPrefix(rec.Header().Get("Content-Type"), "text/csv") {
		t.Errorf("expected text/csv, got %q", rec.Header().Get("Content-Type"))
	}
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	if len(lines) != 3 || !strings.HasPrefix(lines[0], "symbol,") {
		t.Errorf("unexpected CSV:\n%s", rec.Body.String())
	}

	rec = app.request("GET", "/api/v1/portfolios/"+portfolioID+"/value-history", "", token)
	if rec.Code != http.StatusOK {
		t.Fatalf("value history: %d %s", rec.Code, rec.Body.String())
	}
	if _, ok := parseJSON(t, rec)["series"].(map[string]interface{}); !ok {
		t.Error("expected a series object")
	}

	rec = app.request("GET", "/api/v1/brokers/"+brokerID+"/snapshot", "", token)
	if rec.Code != http.StatusOK {
		t.Fatalf("broker snapshot: %d %s", rec.Code, rec.Body.String())
	}
	if len(parseJSON(t, rec)["portfolios"].([]interface{})) != 1 {
		t.Error("expected the portfolio in the broker snapshot")
	}
}

func TestPortfolioFlow_BrokerInUse(t *testing.T) {
	app := setupApp(t, nil)
	token, _, _ := app.registerUser(t, "inuse@test.com", "password123")
	brokerID := app.createBroker(t, token, "IOL")

	rec := app.request("POST", "/api/v1/portfolios",
		fmt.Sprintf(`{"broker_id":%q,"name":"Trading"}`, brokerID), token)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create portfolio: %d %s", rec.Code, rec.Body.String())
	}

	rec = app.request("DELETE", "/api/v1/brokers/"+brokerID, "", token)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 deleting a broker with portfolios, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestInstrumentFlow_AdminDeleteAndPriceHistory(t *testing.T) {
	app := setupApp(t, nil)
	token, _, userID := app.registerUser(t, "admin@test.com", "password123")

	// without a quote provider the instrument is created unpriced
	rec := app.request("POST", "/api/v1/instruments", `{"symbol":"YPFD","name":"YPF","category":"equity"}`, token)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create instrument: %d %s", rec.Code, rec.Body.String())
	}
	inst := parseJSON(t, rec)["instrument"].(map[string]interface{})
	instrumentID := inst["id"].(string)
	if inst["current_price"] != nil {
		t.Errorf("expected no price, got %v", inst["current_price"])
	}

	// same day twice: one sample holding the latest price
	for _, price := range []string{"30000", "30500"} {
		rec = app.request("PUT", "/api/v1/instruments/"+instrumentID+"/price", fmt.Sprintf(`{"price":%q}`, price), token)
		if rec.Code != http.StatusOK {
			t.Fatalf("set price: %d %s", rec.Code, rec.Body.String())
		}
	}
	rec = app.pipeline("/api/v1/pipeline/prices", "application/json",
		`{"prices":[{"symbol":"YPFD","price":"29000","date":"2024-05-02"}]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("push old price: %d %s", rec.Code, rec.Body.String())
	}

	rec = app.request("GET", "/api/v1/instruments/"+instrumentID+"/prices?from=2024-01-01", "", token)
	if rec.Code != http.StatusOK {
		t.Fatalf("price history: %d %s", rec.Code, rec.Body.String())
	}
	if total := parseJSON(t, rec)["total_items"].(float64); total != 2 {
		t.Errorf("expected 2 samples, got %v", total)
	}

	rec = app.request("GET", "/api/v1/instruments/"+instrumentID, "", token)
	current := decimalField(t, parseJSON(t, rec)["instrument"].(map[string]interface{}), "current_price")
	if !current.Equal(decimal.NewFromInt(30500)) {
		t.Errorf("a past-dated push must not move the current price, got %s", current)
	}

	rec = app.request("DELETE", "/api/v1/instruments/"+instrumentID, "", token)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-admin delete, got %d", rec.Code)
	}

	app.promote(t, userID)
	adminToken, _ := app.loginUser(t, "admin@test.com", "password123")
	rec = app.request("DELETE", "/api/v1/instruments/"+instrumentID, "", adminToken)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin delete, got %d: %s", rec.Code, rec.Body.String())
	}
	rec = app.request("GET", "/api/v1/instruments/"+instrumentID, "", adminToken)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", rec.Code)
	}
}
