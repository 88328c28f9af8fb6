package handlers

import (
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"brokerfolio/internal/models"
	"brokerfolio/internal/pagination"
	"brokerfolio/internal/services"
)

func setupActivityRouter(handler *ActivityHandler) *gin.Engine {
	r := gin.New()
	auth := r.Group("", injectUserID(testUserID))
	auth.GET("/activity", handler.ListActivity)
	auth.GET("/notifications", handler.Notifications)
	auth.POST("/notifications/read", handler.MarkNotificationsRead)
	return r
}

func TestActivityHandler_ListActivity(t *testing.T) {
	t.Run("passes filters", func(t *testing.T) {
		var got services.ActivityFilter
		svc := &mockActivityService{
			listActivityFn: func(filter services.ActivityFilter, _ pagination.PageRequest) (*pagination.PageResponse[models.ActivityLog], error) {
				got = filter
				resp := pagination.NewPageResponse([]models.ActivityLog{}, 1, 20, 0)
				return &resp, nil
			},
		}
		r := setupActivityRouter(NewActivityHandler(svc))

		rec := doRequest(r, "GET", "/activity?entity_type=broker&action=create&from=2024-05-01", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if got.EntityType != "broker" || got.Action != "create" || got.From == nil || got.To != nil {
			t.Errorf("unexpected filter %+v", got)
		}
	})

	t.Run("returns 400 on bad date", func(t *testing.T) {
		r := setupActivityRouter(NewActivityHandler(&mockActivityService{}))

		rec := doRequest(r, "GET", "/activity?to=soon", "")

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})
}

func TestActivityHandler_Notifications(t *testing.T) {
	t.Run("returns the caller's feed", func(t *testing.T) {
		var gotUser string
		var gotLimit int
		svc := &mockActivityService{
			notificationsFn: func(userID string, limit int) (*services.Notifications, error) {
				gotUser, gotLimit = userID, limit
				return &services.Notifications{Unread: 2, Items: []models.ActivityLog{{Action: "create"}, {Action: "delete"}}}, nil
			},
		}
		r := setupActivityRouter(NewActivityHandler(svc))

		rec := doRequest(r, "GET", "/notifications?limit=5", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if gotUser != testUserID || gotLimit != 5 {
			t.Errorf("unexpected call user=%s limit=%d", gotUser, gotLimit)
		}
		if parseJSON(t, rec)["unread"].(float64) != 2 {
			t.Error("expected unread 2")
		}
	})

	t.Run("returns 400 on invalid limit", func(t *testing.T) {
		r := setupActivityRouter(NewActivityHandler(&mockActivityService{}))

		rec := doRequest(r, "GET", "/notifications?limit=0", "")

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})
}

func TestActivityHandler_MarkNotificationsRead(t *testing.T) {
	var gotAt time.Time
	svc := &mockActivityService{
		markReadFn: func(_ string, at time.Time) error {
			gotAt = at
			return nil
		},
	}
	r := setupActivityRouter(NewActivityHandler(svc))

	rec := doRequest(r, "POST", "/notifications/read", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if time.Since(gotAt) > time.Minute {
		t.Errorf("expected a current timestamp, got %v", gotAt)
	}
}
