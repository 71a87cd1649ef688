package fulfillment

import (
	"context"
	"hash/fnv"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/campuseats/canteen/internal/domain"
)

var meter = otel.Meter("fulfillment")

// OrderStore is the persistent record of orders. The engine reads and
// writes through it but does not care what backs it; the Postgres
// implementation lives in internal/orders.
type OrderStore interface {
	Create(ctx context.Context, o *domain.Order) error
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	UpdateStatus(ctx context.Context, id string, status domain.OrderStatus, actualPickup *time.Time) error
	ActiveByVendor(ctx context.Context, vendorID string) ([]domain.Order, error)
	ByStudent(ctx context.Context, studentID string) ([]domain.Order, error)
	ActiveAll(ctx context.Context) ([]domain.Order, error)
}

// Publisher delivers lifecycle events to the interested parties. Delivery
// failures are the publisher's problem: the engine logs them and never
// rolls back a committed transition.
type Publisher interface {
	NewOrder(ctx context.Context, o domain.Order) error
	StatusUpdate(ctx context.Context, o domain.Order) error
}

// Engine is the order fulfillment core: it owns order placement, the status
// state machine and the decision of who gets notified. It is safe for
// concurrent use; placements are serialized per vendor by the queue index
// and status updates per order by striped locks.
type Engine struct {
	store   OrderStore
	catalog Catalog
	queues  *VendorQueues
	pub     Publisher
	logger  *slog.Logger

	locks orderLocks
	now   func() time.Time

	ordersPlaced  metric.Int64Counter
	predictedWait metric.Float64Histogram
}

func NewEngine(store OrderStore, catalog Catalog, pub Publisher, logger *slog.Logger) (*Engine, error) {
	ordersPlaced, err := meter.Int64Counter("canteen.orders.placed",
		metric.WithDescription("Orders accepted by the fulfillment engine."),
	)
	if err != nil {
		return nil, err
	}

	predictedWait, err := meter.Float64Histogram("canteen.orders.predicted_wait_minutes",
		metric.WithDescription("Minutes between placement and the predicted pickup time."),
	)
	if err != nil {
		return nil, err
	}

	return &Engine{
		store:         store,
		catalog:       catalog,
		queues:        NewVendorQueues(),
		pub:           pub,
		logger:        logger,
		now:           time.Now,
		ordersPlaced:  ordersPlaced,
		predictedWait: predictedWait,
	}, nil
}

// RestoreQueues rebuilds the in-memory vendor queue index from the orders
// that were still active when the service last stopped. Call once at
// startup, before serving requests.
func (e *Engine) RestoreQueues(ctx context.Context) error {
	active, err := e.store.ActiveAll(ctx)
	if err != nil {
		return upstream("load active orders", err)
	}
	e.queues.Rebuild(active)
	e.logger.Info("vendor queues restored", "active_orders", len(active))
	return nil
}

type PlaceOrderItem struct {
	MenuItemID string
	Quantity   int
}

type PlaceOrderRequest struct {
	VendorID  string
	StudentID *string
	Items     []PlaceOrderItem
}

// PlaceOrder validates the request against the catalog, predicts the pickup
// time while atomically reserving the vendor's queue slot, persists the
// order and notifies the vendor. No partial state survives a failure: a
// rejected item aborts before any mutation, and a failed persistence write
// rolls the queue reservation back.
func (e *Engine) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*domain.Order, error) {
	if req.VendorID == "" {
		return nil, invalidOrderf("vendor id is required")
	}
	if len(req.Items) == 0 {
		return nil, invalidOrderf("at least one item is required")
	}

	resolver := newItemResolver(e.catalog)
	items := make([]*domain.MenuItem, 0, len(req.Items))
	quantities := make([]int, 0, len(req.Items))
	lines := make([]domain.OrderLine, 0, len(req.Items))
	var total int64

	for _, reqItem := range req.Items {
		if reqItem.Quantity <= 0 {
			return nil, invalidOrderf("invalid quantity for item %s", reqItem.MenuItemID)
		}
		item, err := resolver.resolve(ctx, reqItem.MenuItemID)
		if err != nil {
			return nil, upstream("catalog lookup", err)
		}
		if item == nil {
			return nil, invalidOrderf("unknown menu item %s", reqItem.MenuItemID)
		}
		if item.VendorID != req.VendorID {
			return nil, invalidOrderf("menu item %s does not belong to vendor %s", reqItem.MenuItemID, req.VendorID)
		}
		if !item.Available {
			return nil, invalidOrderf("menu item %s is not available", item.Name)
		}

		items = append(items, item)
		quantities = append(quantities, reqItem.Quantity)
		lines = append(lines, domain.OrderLine{
			MenuItemID:   item.ID,
			Name:         item.Name,
			Quantity:     reqItem.Quantity,
			PriceAtOrder: item.Price,
		})
		total += item.Price * int64(reqItem.Quantity)
	}

	now := e.now()
	orderID := uuid.New().String()

	predicted, token, err := e.queues.Commit(orderID, req.VendorID, now, prepTime(items, quantities))
	if err != nil {
		return nil, upstream("reserve queue slot", err)
	}

	order := &domain.Order{
		ID:                  orderID,
		VendorID:            req.VendorID,
		StudentID:           req.StudentID,
		Lines:               lines,
		Status:              domain.OrderStatusPending,
		TotalPrice:          total,
		Token:               token,
		PredictedPickupTime: predicted,
		CreatedAt:           now,
	}

	if err := e.store.Create(ctx, order); err != nil {
		e.queues.Remove(req.VendorID, orderID)
		return nil, upstream("persist order", err)
	}

	e.ordersPlaced.Add(ctx, 1, metric.WithAttributes(attribute.String("vendor_id", req.VendorID)))
	e.predictedWait.Record(ctx, predicted.Sub(now).Minutes())

	if err := e.pub.NewOrder(ctx, *order); err != nil {
		e.logger.Error("failed to publish new order event", "error", err, "order_id", order.ID)
	}

	e.logger.Info("order placed",
		"order_id", order.ID,
		"vendor_id", order.VendorID,
		"token", order.Token,
		"predicted_pickup_time", order.PredictedPickupTime,
	)
	return order, nil
}

// UpdateStatus applies one transition of the order state machine. Requests
// whose "from" no longer matches the stored status are rejected so callers
// detect double submissions. Completion stamps the actual pickup time;
// completion and cancellation release the vendor's queue slot.
func (e *Engine) UpdateStatus(ctx context.Context, orderID string, next domain.OrderStatus) (*domain.Order, error) {
	lock := e.locks.lock(orderID)
	lock.Lock()
	defer lock.Unlock()

	order, err := e.store.GetByID(ctx, orderID)
	if err != nil {
		return nil, upstream("load order", err)
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}

	if !next.Valid() || !order.Status.CanTransitionTo(next) {
		return nil, invalidTransition(order.Status, next)
	}

	var actual *time.Time
	if next == domain.OrderStatusCompleted {
		t := e.now()
		actual = &t
	}

	if err := e.store.UpdateStatus(ctx, orderID, next, actual); err != nil {
		return nil, upstream("persist status", err)
	}

	order.Status = next
	order.ActualPickupTime = actual

	if next.Terminal() {
		e.queues.Remove(order.VendorID, order.ID)
	}

	// The transition table notifies the student on preparing, ready and
	// cancelled. Completion is observed in person at the counter.
	if next != domain.OrderStatusCompleted {
		if err := e.pub.StatusUpdate(ctx, *order); err != nil {
			e.logger.Error("failed to publish status update", "error", err, "order_id", order.ID)
		}
	}

	e.logger.Info("order status updated", "order_id", order.ID, "status", order.Status)
	return order, nil
}

// ActiveOrders lists a vendor's queue, soonest predicted pickup first.
func (e *Engine) ActiveOrders(ctx context.Context, vendorID string) ([]domain.Order, error) {
	orders, err := e.store.ActiveByVendor(ctx, vendorID)
	if err != nil {
		return nil, upstream("list active orders", err)
	}
	return orders, nil
}

// StudentOrders lists a student's order history, most recent first.
func (e *Engine) StudentOrders(ctx context.Context, studentID string) ([]domain.Order, error) {
	orders, err := e.store.ByStudent(ctx, studentID)
	if err != nil {
		return nil, upstream("list student orders", err)
	}
	return orders, nil
}

// LookupByID loads a single order, active or historical.
func (e *Engine) LookupByID(ctx context.Context, id string) (*domain.Order, error) {
	order, err := e.store.GetByID(ctx, id)
	if err != nil {
		return nil, upstream("load order", err)
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

// LookupByToken resolves a pickup token against currently active orders.
// Tokens are recycled once an order leaves the queue, so history never
// answers here.
func (e *Engine) LookupByToken(ctx context.Context, token string) (*domain.Order, error) {
	normalized, ok := NormalizeToken(token)
	if !ok {
		return nil, ErrOrderNotFound
	}
	orderID, ok := e.queues.OrderIDByToken(normalized)
	if !ok {
		return nil, ErrOrderNotFound
	}
	order, err := e.store.GetByID(ctx, orderID)
	if err != nil {
		return nil, upstream("load order", err)
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

// QueueFreeTime exposes the vendor's current queue-free instant for
// non-binding wait estimates.
func (e *Engine) QueueFreeTime(vendorID string) time.Time {
	return e.queues.FreeTime(vendorID, e.now())
}

// orderLocks serializes status updates per order without blocking
// unrelated orders. Striping bounds memory; two updates for the same order
// always land on the same stripe.
type orderLocks struct {
	stripes [64]sync.Mutex
}

func (l *orderLocks) lock(orderID string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(orderID))
	return &l.stripes[h.Sum32()%uint32(len(l.stripes))]
}
