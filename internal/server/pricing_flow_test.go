package server

import (
	"net/http"
	"testing"

	"github.com/shopspring/decimal"
)

func TestPricingFlow_RefreshSeedsAndIsolatesFailures(t *testing.T) {
	provider := &fakeProvider{price: "71.5", fail: map[string]int{"GD35": http.StatusInternalServerError}}
	app := setupApp(t, provider)
	token, _, _ := app.registerUser(t, "prices@test.com", "password123")

	rec := app.request("POST", "/api/v1/instruments/refresh", "", token)
	if rec.Code != http.StatusOK {
		t.Fatalf("refresh: %d %s", rec.Code, rec.Body.String())
	}
	result := parseJSON(t, rec)
	if result["requested"].(float64) != 10 || result["updated"].(float64) != 9 {
		t.Errorf("expected 10 requested and 9 updated, got %v", result)
	}
	failed := result["failed"].(map[string]interface{})
	if len(failed) != 1 || failed["GD35"] == nil {
		t.Errorf("expected only GD35 to fail, got %v", failed)
	}
	if provider.logins != 1 {
		t.Errorf("expected one login for the whole cycle, got %d", provider.logins)
	}

	rec = app.request("GET", "/api/v1/instruments?category=bond", "", token)
	if rec.Code != http.StatusOK {
		t.Fatalf("list: %d %s", rec.Code, rec.Body.String())
	}
	page := parseJSON(t, rec)
	if page["total_items"].(float64) != 10 {
		t.Fatalf("expected the 10 seeded bonds, got %v", page["total_items"])
	}
	priced := 0
	for _, item := range page["data"].([]interface{}) {
		inst := item.(map[string]interface{})
		if inst["current_price"] == nil {
			if inst["symbol"] != "GD35" {
				t.Errorf("%v should be priced", inst["symbol"])
			}
			continue
		}
		if !decimalField(t, inst, "current_price").Equal(decimal.RequireFromString("71.5")) {
			t.Errorf("unexpected price for %v: %v", inst["symbol"], inst["current_price"])
		}
		priced++
	}
	if priced != 9 {
		t.Errorf("expected 9 priced instruments, got %d", priced)
	}

	// a second cycle keeps one sample per instrument per day
	provider.mu.Lock()
	provider.price = "72"
	provider.mu.Unlock()
	rec = app.pipeline("/api/v1/pipeline/refresh", "application/json", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("pipeline refresh: %d %s", rec.Code, rec.Body.String())
	}

	rec = app.request("GET", "/api/v1/instruments/history", "", token)
	if rec.Code != http.StatusOK {
		t.Fatalf("history: %d %s", rec.Code, rec.Body.String())
	}
	for _, item := range parseJSON(t, rec)["instruments"].([]interface{}) {
		h := item.(map[string]interface{})
		samples, _ := h["samples"].([]interface{})
		if h["symbol"] == "GD35" {
			if len(samples) != 0 {
				t.Errorf("GD35 should have no samples, got %d", len(samples))
			}
			continue
		}
		if len(samples) != 1 {
			t.Errorf("%v: expected 1 sample for today, got %d", h["symbol"], len(samples))
			continue
		}
		if !decimalField(t, samples[0].(map[string]interface{}), "price").Equal(decimal.NewFromInt(72)) {
			t.Errorf("%v: expected today's sample overwritten to 72", h["symbol"])
		}
	}
}

func TestPricingFlow_QuotesAndConnection(t *testing.T) {
	provider := &fakeProvider{price: "1620", fail: map[string]int{"NOPE": http.StatusNotFound}}
	app := setupApp(t, provider)
	token, _, _ := app.registerUser(t, "quotes@test.com", "password123")

	rec := app.request("GET", "/api/v1/quotes/test-connection", "", token)
	if rec.Code != http.StatusOK {
		t.Fatalf("test connection: %d %s", rec.Code, rec.Body.String())
	}
	if parseJSON(t, rec)["connected"] != true {
		t.Error("expected connected true")
	}

	rec = app.request("GET", "/api/v1/quotes/GGAL", "", token)
	if rec.Code != http.StatusOK {
		t.Fatalf("quote: %d %s", rec.Code, rec.Body.String())
	}

	rec = app.request("GET", "/api/v1/quotes/NOPE", "", token)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unavailable symbol, got %d", rec.Code)
	}
}

func TestPricingFlow_NotConfigured(t *testing.T) {
	app := setupApp(t, nil)
	token, _, _ := app.registerUser(t, "noquotes@test.com", "password123")

	for _, tc := range []struct{ method, path string }{
		{"POST", "/api/v1/instruments/refresh"},
		{"GET", "/api/v1/quotes/test-connection"},
	} {
		rec := app.request(tc.method, tc.path, "", token)
		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("%s %s: expected 503, got %d", tc.method, tc.path, rec.Code)
		}
	}
}
