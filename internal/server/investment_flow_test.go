package server

import (
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func TestInvestmentFlow_FixedTermReturns(t *testing.T) {
	app := setupApp(t, nil)
	token, _, _ := app.registerUser(t, "plazo@test.com", "password123")
	brokerID := app.createBroker(t, token, "Banco Galicia")

	rec := app.request("POST", "/api/v1/investments", fmt.Sprintf(`{
		"name":"Plazo fijo enero","type":"fixed_term","amount":"100000","currency":"ARS",
		"interest_rate":"40","start_date":"2024-01-01","end_date":"2024-07-01","broker_id":%q}`, brokerID), token)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create investment: %d %s", rec.Code, rec.Body.String())
	}
	detail := parseJSON(t, rec)
	investmentID := detail["investment"].(map[string]interface{})["id"].(string)
	returns := detail["returns"].(map[string]interface{})
	if returns["days"].(float64) != 182 {
		t.Errorf("expected 182 days, got %v", returns["days"])
	}
	if !decimalField(t, returns, "calculated_return").Equal(decimal.RequireFromString("19945.21")) {
		t.Errorf("expected return 19945.21, got %v", returns["calculated_return"])
	}
	if !decimalField(t, returns, "total_at_maturity").Equal(decimal.RequireFromString("119945.21")) {
		t.Errorf("expected total 119945.21, got %v", returns["total_at_maturity"])
	}

	// no rate: no return
	rec = app.request("PUT", "/api/v1/investments/"+investmentID, `{
		"name":"Plazo fijo enero","type":"fixed_term","amount":"100000","currency":"ARS",
		"start_date":"2024-01-01","end_date":"2024-07-01"}`, token)
	if rec.Code != http.StatusOK {
		t.Fatalf("update investment: %d %s", rec.Code, rec.Body.String())
	}
	returns = parseJSON(t, rec)["returns"].(map[string]interface{})
	if !decimalField(t, returns, "calculated_return").IsZero() {
		t.Errorf("expected zero return without a rate, got %v", returns["calculated_return"])
	}

	rec = app.request("POST", "/api/v1/investments",
		`{"name":"Backwards","type":"fixed_term","amount":"1000","start_date":"2024-07-01","end_date":"2024-01-01"}`, token)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for end before start, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = app.request("GET", "/api/v1/investments?broker_id="+brokerID, "", token)
	if rec.Code != http.StatusOK {
		t.Fatalf("list investments: %d %s", rec.Code, rec.Body.String())
	}
	if parseJSON(t, rec)["total_items"].(float64) != 1 {
		t.Error("expected one investment for the broker")
	}
}

func TestTeamFlow_MessagesNotificationsAndReports(t *testing.T) {
	app := setupApp(t, nil)
	aliceToken, _, _ := app.registerUser(t, "alice@test.com", "password123")
	bobToken, _, _ := app.registerUser(t, "bob@test.com", "password123")
	brokerID := app.createBroker(t, aliceToken, "Cocos")

	rec := app.request("POST", "/api/v1/messages",
		fmt.Sprintf(`{"content":"Comisiones bajaron","broker_id":%q}`, brokerID), aliceToken)
	if rec.Code != http.StatusCreated {
		t.Fatalf("post message: %d %s", rec.Code, rec.Body.String())
	}
	parentID := parseJSON(t, rec)["message"].(map[string]interface{})["id"].(string)

	rec = app.request("POST", "/api/v1/messages",
		fmt.Sprintf(`{"content":"Confirmado","parent_id":%q}`, parentID), bobToken)
	if rec.Code != http.StatusCreated {
		t.Fatalf("reply: %d %s", rec.Code, rec.Body.String())
	}

	// only the author or an admin may delete
	rec = app.request("DELETE", "/api/v1/messages/"+parentID, "", bobToken)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 deleting another user's message, got %d", rec.Code)
	}

	rec = app.request("GET", "/api/v1/notifications", "", aliceToken)
	if rec.Code != http.StatusOK {
		t.Fatalf("notifications: %d %s", rec.Code, rec.Body.String())
	}
	if parseJSON(t, rec)["unread"].(float64) < 1 {
		t.Error("expected bob's activity to be unread for alice")
	}

	rec = app.request("POST", "/api/v1/notifications/read", "", aliceToken)
	if rec.Code != http.StatusOK {
		t.Fatalf("mark read: %d %s", rec.Code, rec.Body.String())
	}
	rec = app.request("GET", "/api/v1/notifications", "", aliceToken)
	if parseJSON(t, rec)["unread"].(float64) != 0 {
		t.Error("expected no unread notifications after marking read")
	}

	rec = app.request("GET", "/api/v1/activity?entity_type=message", "", aliceToken)
	if rec.Code != http.StatusOK {
		t.Fatalf("activity: %d %s", rec.Code, rec.Body.String())
	}
	if parseJSON(t, rec)["total_items"].(float64) != 2 {
		t.Error("expected two message activities")
	}

	rec = app.request("GET", "/api/v1/dashboard", "", aliceToken)
	if rec.Code != http.StatusOK {
		t.Fatalf("dashboard: %d %s", rec.Code, rec.Body.String())
	}
	if parseJSON(t, rec)["brokers"].(float64) != 1 {
		t.Error("expected one broker on the dashboard")
	}

	for _, path := range []string{"/api/v1/reports/activities", "/api/v1/reports/messages", "/api/v1/reports/executive"} {
		rec = app.request("GET", path, "", aliceToken)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: %d %s", path, rec.Code, rec.Body.String())
		}
		if !strings.HasPrefix(rec.Body.String(), "%PDF") {
			t.Errorf("%s: expected a PDF body", path)
		}
	}

	rec = app.request("GET", "/api/v1/reports/messages?format=xlsx", "", aliceToken)
	if rec.Code != http.StatusOK || !strings.HasPrefix(rec.Body.String(), "PK") {
		t.Fatalf("expected an xlsx workbook, got %d", rec.Code)
	}
}
