//go:build integration

package test

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

	"github.com/segmentio/kafka-go"

	"github.com/campuseats/canteen/internal/catalog"
	"github.com/campuseats/canteen/internal/domain"
	"github.com/campuseats/canteen/internal/fulfillment"
	"github.com/campuseats/canteen/internal/messaging"
	"github.com/campuseats/canteen/internal/notifier"
	"github.com/campuseats/canteen/internal/notify"
	"github.com/campuseats/canteen/internal/orders"
)

const (
	seededVendor  = "VEND-001"
	seededDosa    = "5f0c3a1e-9b3f-4a56-8a9f-0d2f1c6b7a01" // Masala Dosa, 8 min prep, 6000
	seededIdli    = "5f0c3a1e-9b3f-4a56-8a9f-0d2f1c6b7a02" // Idli Sambar, 5 min prep, 4000
	seededVendor2 = "VEND-002"
)

type publishCapture struct {
	mu     sync.Mutex
	topics []string
	events []any
}

func (p *publishCapture) Publish(_ context.Context, topic, _ string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	p.events = append(p.events, event)
	return nil
}

func (p *publishCapture) publishedTopics() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.topics))
	copy(out, p.topics)
	return out
}

// ordersStack wires a real orders service against the containerized
// database and a catalog service backed by the seeded catalog schema.
type ordersStack struct {
	mux     *http.ServeMux
	repo    *orders.OrderRepository
	publish *publishCapture
}

func setupOrdersStack(t *testing.T, connStr string) *ordersStack {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	catalogDB, err := DBWithSchema(connStr, "catalog")
	if err != nil {
		t.Fatalf("failed to create catalog DB: %v", err)
	}
	t.Cleanup(func() { _ = catalogDB.Close() })

	catalogRepo := catalog.NewCatalogRepository(catalogDB)
	catalogHandler := catalog.NewHandler(catalogRepo, logger)
	catalogMux := http.NewServeMux()
	catalogMux.HandleFunc("GET /menu/{itemId}", catalogHandler.HandleGetMenuItem)
	catalogServer := httptest.NewServer(catalogMux)
	t.Cleanup(catalogServer.Close)

	ordersDB, err := DBWithSchema(connStr, "orders")
	if err != nil {
		t.Fatalf("failed to create orders DB: %v", err)
	}
	t.Cleanup(func() { _ = ordersDB.Close() })

	repo := orders.NewOrderRepository(ordersDB)
	publish := &publishCapture{}
	fanout := notify.NewFanout(publish, logger)
	catalogClient := catalog.NewClient(catalogServer.URL, catalogServer.Client())

	engine, err := fulfillment.NewEngine(repo, catalogClient, fanout, logger)
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}
	if err := engine.RestoreQueues(context.Background()); err != nil {
		t.Fatalf("failed to restore queues: %v", err)
	}

	handler := orders.NewHandler(engine, logger)
	mux := http.NewServeMux()
	mux.HandleFunc("POST /orders", handler.HandlePlace)
	mux.HandleFunc("GET /orders/{id}", handler.HandleGet)
	mux.HandleFunc("PATCH /orders/{id}/status", handler.HandleUpdateStatus)
	mux.HandleFunc("GET /orders/token/{token}", handler.HandleLookupToken)
	mux.HandleFunc("GET /vendors/{vendorId}/orders", handler.HandleVendorOrders)

	return &ordersStack{mux: mux, repo: repo, publish: publish}
}

func (s *ordersStack) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)
	return rec
}

func decodeOrder(t *testing.T, rec *httptest.ResponseRecorder) domain.Order {
	t.Helper()
	var order domain.Order
	if err := json.NewDecoder(rec.Body).Decode(&order); err != nil {
		t.Fatalf("failed to decode order: %v", err)
	}
	return order
}

func TestPlaceOrderFlow(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pg := SetupPostgres(ctx, t)
	defer pg.Cleanup()

	stack := setupOrdersStack(t, pg.ConnStr)

	rec := stack.do(t, http.MethodPost, "/orders", `{
		"vendor_id": "`+seededVendor+`",
		"student_id": "student-7",
		"items": [{"menu_item_id": "`+seededDosa+`", "quantity": 2}]
	}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rec.Code, rec.Body.String())
	}

	order := decodeOrder(t, rec)
	if order.Status != domain.OrderStatusPending {
		t.Errorf("expected status pending, got %s", order.Status)
	}
	if order.TotalPrice != 12000 {
		t.Errorf("expected total 12000, got %d", order.TotalPrice)
	}
	if got := order.PredictedPickupTime.Sub(order.CreatedAt); got != 16*time.Minute {
		t.Errorf("expected 16 minutes of prep (2x8), got %v", got)
	}

	stored, err := stack.repo.GetByID(ctx, order.ID)
	if err != nil {
		t.Fatalf("failed to load order from DB: %v", err)
	}
	if stored == nil {
		t.Fatal("order not found in database")
	}
	if len(stored.Lines) != 1 || stored.Lines[0].Name != "Masala Dosa" {
		t.Errorf("expected snapshotted line with catalog name, got %+v", stored.Lines)
	}

	topics := stack.publish.publishedTopics()
	if len(topics) != 1 || topics[0] != "vendor."+seededVendor {
		t.Errorf("expected one publish to vendor.%s, got %v", seededVendor, topics)
	}
}

func TestOrderLifecycleFlow(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pg := SetupPostgres(ctx, t)
	defer pg.Cleanup()

	stack := setupOrdersStack(t, pg.ConnStr)

	rec := stack.do(t, http.MethodPost, "/orders", `{
		"vendor_id": "`+seededVendor+`",
		"student_id": "student-7",
		"items": [{"menu_item_id": "`+seededIdli+`", "quantity": 1}]
	}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rec.Code, rec.Body.String())
	}
	order := decodeOrder(t, rec)

	// Skipping a step must be rejected against the stored status.
	rec = stack.do(t, http.MethodPatch, "/orders/"+order.ID+"/status", `{"status": "completed"}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d: %s", rec.Code, rec.Body.String())
	}

	for _, status := range []string{"preparing", "ready", "completed"} {
		rec = stack.do(t, http.MethodPatch, "/orders/"+order.ID+"/status", `{"status": "`+status+`"}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("transition to %s: expected status 200, got %d: %s", status, rec.Code, rec.Body.String())
		}
	}

	final, err := stack.repo.GetByID(ctx, order.ID)
	if err != nil {
		t.Fatalf("failed to load order: %v", err)
	}
	if final.Status != domain.OrderStatusCompleted {
		t.Errorf("expected status completed, got %s", final.Status)
	}
	if final.ActualPickupTime == nil {
		t.Error("expected actual pickup time stamped on completion")
	}

	// vendor.new-order plus preparing and ready to the student; completion
	// is not notified.
	topics := stack.publish.publishedTopics()
	want := []string{"vendor." + seededVendor, "student.student-7", "student.student-7"}
	if len(topics) != len(want) {
		t.Fatalf("expected topics %v, got %v", want, topics)
	}
	for i := range want {
		if topics[i] != want[i] {
			t.Errorf("publish %d: expected %s, got %s", i, want[i], topics[i])
		}
	}

	rec = stack.do(t, http.MethodGet, "/vendors/"+seededVendor+"/orders", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	var active []domain.Order
	if err := json.NewDecoder(rec.Body).Decode(&active); err != nil {
		t.Fatalf("failed to decode active orders: %v", err)
	}
	if len(active) != 0 {
		t.Errorf("expected empty queue after completion, got %d orders", len(active))
	}
}

func TestTokenLookupFlow(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pg := SetupPostgres(ctx, t)
	defer pg.Cleanup()

	stack := setupOrdersStack(t, pg.ConnStr)

	rec := stack.do(t, http.MethodPost, "/orders", `{
		"vendor_id": "`+seededVendor+`",
		"items": [{"menu_item_id": "`+seededDosa+`", "quantity": 1}]
	}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rec.Code, rec.Body.String())
	}
	order := decodeOrder(t, rec)

	rec = stack.do(t, http.MethodGet, "/orders/token/"+order.Token[1:], "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	found := decodeOrder(t, rec)
	if found.ID != order.ID {
		t.Errorf("expected order %s, got %s", order.ID, found.ID)
	}
}

func TestCatalogService(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pg := SetupPostgres(ctx, t)
	defer pg.Cleanup()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	catalogDB, err := DBWithSchema(pg.ConnStr, "catalog")
	if err != nil {
		t.Fatalf("failed to create catalog DB: %v", err)
	}
	defer func() { _ = catalogDB.Close() }()

	repo := catalog.NewCatalogRepository(catalogDB)
	handler := catalog.NewHandler(repo, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /vendors", handler.HandleListVendors)
	mux.HandleFunc("PATCH /vendors/{vendorId}/status", handler.HandleUpdateVendorStatus)
	mux.HandleFunc("GET /vendors/{vendorId}/menu", handler.HandleVendorMenu)
	mux.HandleFunc("POST /vendors/{vendorId}/menu", handler.HandleCreateMenuItem)
	mux.HandleFunc("PATCH /menu/{itemId}", handler.HandleUpdateMenuItem)

	req := httptest.NewRequest(http.MethodGet, "/vendors", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	var vendors []domain.Vendor
	if err := json.NewDecoder(rec.Body).Decode(&vendors); err != nil {
		t.Fatalf("failed to decode vendors: %v", err)
	}
	if len(vendors) != 2 {
		t.Fatalf("expected 2 seeded vendors, got %d", len(vendors))
	}

	req = httptest.NewRequest(http.MethodPatch, "/vendors/"+seededVendor2+"/status", strings.NewReader(`{"status": "busy"}`))
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var vendor domain.Vendor
	if err := json.NewDecoder(rec.Body).Decode(&vendor); err != nil {
		t.Fatalf("failed to decode vendor: %v", err)
	}
	if vendor.Status != domain.VendorStatusBusy {
		t.Errorf("expected status busy, got %s", vendor.Status)
	}

	// Defaults apply when a new item omits prep time and category.
	req = httptest.NewRequest(http.MethodPost, "/vendors/"+seededVendor+"/menu",
		strings.NewReader(`{"name": "Filter Coffee", "price": 2500}`))
	req.Header.Set("Content-Type", "application/json")
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var item domain.MenuItem
	if err := json.NewDecoder(rec.Body).Decode(&item); err != nil {
		t.Fatalf("failed to decode item: %v", err)
	}
	if item.PrepTimeMinutes != 5 || item.Category != "General" || !item.Available {
		t.Errorf("expected defaulted item, got %+v", item)
	}

	req = httptest.NewRequest(http.MethodPatch, "/menu/"+item.ID, strings.NewReader(`{"available": false}`))
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var updated domain.MenuItem
	if err := json.NewDecoder(rec.Body).Decode(&updated); err != nil {
		t.Fatalf("failed to decode item: %v", err)
	}
	if updated.Available {
		t.Error("expected item to be unavailable after update")
	}
}

type pushSink struct {
	mu       sync.Mutex
	received []map[string]any
}

func (p *pushSink) handler(w http.ResponseWriter, r *http.Request) {
	var req map[string]any
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	p.mu.Lock()
	p.received = append(p.received, req)
	p.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_, _ = io.WriteString(w, `{"status":"delivered"}`)
}

func (p *pushSink) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.received)
}

func TestNotificationRoundtrip(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	brokers, cleanup := SetupKafka(ctx, t)
	defer cleanup()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	sink := &pushSink{}
	pushMux := http.NewServeMux()
	pushMux.HandleFunc("POST /send", sink.handler)
	pushServer := httptest.NewServer(pushMux)
	defer pushServer.Close()

	producer := messaging.NewProducer(brokers)
	defer func() { _ = producer.Close() }()

	fanout := notify.NewFanout(producer, logger)

	student := "student-7"
	order := domain.Order{
		ID:                  "order-rt-1",
		VendorID:            seededVendor,
		StudentID:           &student,
		Status:              domain.OrderStatusReady,
		Token:               "#4217",
		PredictedPickupTime: time.Now().Add(10 * time.Minute).UTC(),
	}

	if err := fanout.StatusUpdate(ctx, order); err != nil {
		t.Fatalf("failed to publish status update: %v", err)
	}

	consumer := messaging.NewConsumer(brokers, "notifier-test", []string{"student." + student},
		messaging.WithStartOffset(kafka.FirstOffset))
	defer func() { _ = consumer.Close() }()

	deliveryHandler := notifier.NewDeliveryHandler(pushServer.URL, pushServer.Client(), logger)

	consumeCtx, stop := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() {
		done <- consumer.Consume(consumeCtx, func(ctx context.Context, topic string, payload []byte) error {
			err := deliveryHandler.Handle(ctx, topic, payload)
			stop()
			return err
		})
	}()

	select {
	case <-consumeCtx.Done():
	case <-time.After(90 * time.Second):
		stop()
		t.Fatal("timed out waiting for the notification to arrive")
	}
	<-done

	if sink.count() != 1 {
		t.Fatalf("expected 1 push delivery, got %d", sink.count())
	}
}
