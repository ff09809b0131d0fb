package websocket

import (
	"net/http"
	"testing"

	"go.uber.org/zap"
)

func TestOriginAllowed(t *testing.T) {
	newRequest := func(origin string) *http.Request {
		r, _ := http.NewRequest(http.MethodGet, "/ws", nil)
		if origin != "" {
			r.Header.Set("Origin", origin)
		}
		return r
	}

	t.Run("WildcardAllowsAny", func(t *testing.T) {
		h := NewHub(&HubConfig{AllowedOrigins: []string{"*"}}, zap.NewNop())
		if !h.originAllowed(newRequest("https://evil.example")) {
			t.Error("wildcard should allow any origin")
		}
	})

	t.Run("ExactMatch", func(t *testing.T) {
		h := NewHub(&HubConfig{AllowedOrigins: []string{"https://app.example.com"}}, zap.NewNop())
		if !h.originAllowed(newRequest("https://app.example.com")) {
			t.Error("listed origin should be allowed")
		}
		if h.originAllowed(newRequest("https://other.example.com")) {
			t.Error("unlisted origin should be denied")
		}
	})

	t.Run("EmptyListDeniesAll", func(t *testing.T) {
		h := NewHub(&HubConfig{}, zap.NewNop())
		if h.originAllowed(newRequest("https://app.example.com")) {
			t.Error("empty allow list should deny")
		}
	})
}

func TestCategoryEnabled(t *testing.T) {
	h := NewHub(&HubConfig{BroadcastAnonymizations: true}, zap.NewNop())

	if !h.categoryEnabled(EventTypeAnonymization) {
		t.Error("anonymization events should be enabled")
	}
	if h.categoryEnabled(EventTypeSystemStatus) {
		t.Error("system events should be disabled")
	}
	if h.categoryEnabled(EventType("unknown")) {
		t.Error("unknown event types should be disabled")
	}
}

func TestClientWants(t *testing.T) {
	t.Run("NoSubscriptionReceivesAll", func(t *testing.T) {
		c := &Client{}
		if !c.wants(EventTypeAnonymization) || !c.wants(EventTypeConnection) {
			t.Error("unsubscribed client should receive everything")
		}
	})

	t.Run("SubscriptionFilters", func(t *testing.T) {
		c := &Client{subscription: &SubscriptionRequest{Events: []EventType{EventTypeAnonymization}}}
		if !c.wants(EventTypeAnonymization) {
			t.Error("subscribed type should pass")
		}
		if c.wants(EventTypeConnection) {
			t.Error("unsubscribed type should be filtered")
		}
	})
}

func TestDroppedCategoryNotQueued(t *testing.T) {
	h := NewHub(&HubConfig{BroadcastAnonymizations: false}, zap.NewNop())
	h.BroadcastEvent(Event{Type: EventTypeAnonymization})
	select {
	case <-h.events:
		t.Error("disabled category should not be queued")
	default:
	}
}
