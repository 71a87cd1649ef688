package notifier

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/campuseats/canteen/internal/domain"
)

type pushCapture struct {
	mu       sync.Mutex
	requests []map[string]any
	status   int
}

func (p *pushCapture) handler(w http.ResponseWriter, r *http.Request) {
	var req map[string]any
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	p.mu.Lock()
	p.requests = append(p.requests, req)
	p.mu.Unlock()

	status := p.status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, _ = io.WriteString(w, `{"status":"delivered"}`)
}

func (p *pushCapture) get() []map[string]any {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]map[string]any, len(p.requests))
	copy(out, p.requests)
	return out
}

func newTestHandler(t *testing.T, capture *pushCapture) *DeliveryHandler {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(capture.handler))
	t.Cleanup(server.Close)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewDeliveryHandler(server.URL, server.Client(), logger)
}

func TestDeliveryHandler(t *testing.T) {
	ctx := context.Background()
	pickup := time.Date(2026, 3, 2, 12, 18, 0, 0, time.UTC)

	t.Run("delivers new order to the vendor channel", func(t *testing.T) {
		capture := &pushCapture{}
		handler := newTestHandler(t, capture)

		event := domain.NewOrderEvent{
			Order: domain.Order{
				ID:                  "order-1",
				VendorID:            "42",
				Token:               "#1234",
				PredictedPickupTime: pickup,
				Lines: []domain.OrderLine{
					{MenuItemID: "dosa", Name: "Masala Dosa", Quantity: 2, PriceAtOrder: 6000},
				},
			},
			Timestamp: pickup,
		}
		payload, err := json.Marshal(event)
		if err != nil {
			t.Fatalf("failed to marshal event: %v", err)
		}

		if err := handler.Handle(ctx, "vendor.42", payload); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		pushes := capture.get()
		if len(pushes) != 1 {
			t.Fatalf("expected 1 push, got %d", len(pushes))
		}

		push := pushes[0]
		if push["channel"] != "vendor.42" {
			t.Errorf("expected channel vendor.42, got %v", push["channel"])
		}
		if title, _ := push["title"].(string); !strings.Contains(title, "#1234") {
			t.Errorf("expected token in title, got %v", push["title"])
		}
		if body, _ := push["body"].(string); !strings.Contains(body, "2x Masala Dosa") || !strings.Contains(body, "12:18") {
			t.Errorf("expected line summary and pickup time in body, got %v", push["body"])
		}
	})

	t.Run("delivers status update to the student channel", func(t *testing.T) {
		capture := &pushCapture{}
		handler := newTestHandler(t, capture)

		event := domain.StatusUpdateEvent{
			OrderID:             "order-1",
			Status:              domain.OrderStatusReady,
			Token:               "#1234",
			PredictedPickupTime: pickup,
			Timestamp:           pickup,
		}
		payload, err := json.Marshal(event)
		if err != nil {
			t.Fatalf("failed to marshal event: %v", err)
		}

		if err := handler.Handle(ctx, "student.7", payload); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		pushes := capture.get()
		if len(pushes) != 1 {
			t.Fatalf("expected 1 push, got %d", len(pushes))
		}

		push := pushes[0]
		if push["channel"] != "student.7" {
			t.Errorf("expected channel student.7, got %v", push["channel"])
		}
		if title, _ := push["title"].(string); !strings.Contains(title, "ready") {
			t.Errorf("expected status in title, got %v", push["title"])
		}
	})

	t.Run("rejects malformed topics", func(t *testing.T) {
		capture := &pushCapture{}
		handler := newTestHandler(t, capture)

		if err := handler.Handle(ctx, "noseparator", []byte("{}")); err == nil {
			t.Error("expected error for topic without separator")
		}
		if err := handler.Handle(ctx, "kitchen.42", []byte("{}")); err == nil {
			t.Error("expected error for unknown topic kind")
		}
		if len(capture.get()) != 0 {
			t.Error("expected no pushes for rejected topics")
		}
	})

	t.Run("surfaces push service failures", func(t *testing.T) {
		capture := &pushCapture{status: http.StatusInternalServerError}
		handler := newTestHandler(t, capture)

		event := domain.StatusUpdateEvent{OrderID: "order-1", Status: domain.OrderStatusReady, Token: "#1234"}
		payload, _ := json.Marshal(event)

		if err := handler.Handle(ctx, "student.7", payload); err == nil {
			t.Error("expected error when push service fails")
		}
	})
}
