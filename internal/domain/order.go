package domain

import "time"

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusPreparing OrderStatus = "preparing"
	OrderStatusReady     OrderStatus = "ready"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// transitions holds the allowed next statuses for each status. Completed and
// cancelled are terminal. An update whose "from" does not match the stored
// status is rejected, including re-submission of an already applied
// transition.
var transitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:   {OrderStatusPreparing, OrderStatusCancelled},
	OrderStatusPreparing: {OrderStatusReady, OrderStatusCancelled},
	OrderStatusReady:     {OrderStatusCompleted},
}

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusPreparing, OrderStatusReady, OrderStatusCompleted, OrderStatusCancelled:
		return true
	}
	return false
}

func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range transitions[s] {
		if next == allowed {
			return true
		}
	}
	return false
}

// Active reports whether an order with this status still occupies its
// vendor's queue. Ready orders stay in the queue on purpose: the kitchen's
// commitment is only released once the order is picked up or cancelled.
func (s OrderStatus) Active() bool {
	return s == OrderStatusPending || s == OrderStatusPreparing || s == OrderStatusReady
}

func (s OrderStatus) Terminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusCancelled
}

// OrderLine is a snapshot of one ordered menu item. Name and PriceAtOrder
// are captured at placement and never recomputed from the catalog, so later
// menu edits don't change what the student was charged.
type OrderLine struct {
	MenuItemID   string `json:"menu_item_id"`
	Name         string `json:"name"`
	Quantity     int    `json:"quantity"`
	PriceAtOrder int64  `json:"price_at_order"`
}

type Order struct {
	ID                  string      `json:"id"`
	VendorID            string      `json:"vendor_id"`
	StudentID           *string     `json:"student_id,omitempty"`
	Lines               []OrderLine `json:"lines"`
	Status              OrderStatus `json:"status"`
	TotalPrice          int64       `json:"total_price"`
	Token               string      `json:"token"`
	PredictedPickupTime time.Time   `json:"predicted_pickup_time"`
	ActualPickupTime    *time.Time  `json:"actual_pickup_time,omitempty"`
	CreatedAt           time.Time   `json:"created_at"`
}
