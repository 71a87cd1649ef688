package domain

import "time"

// Topic addresses one notification channel: a single vendor's dashboard or a
// single student's device. The fanout layer turns it into a transport topic
// name, e.g. "vendor.42".
type Topic struct {
	Kind string
	ID   string
}

func VendorTopic(vendorID string) Topic   { return Topic{Kind: "vendor", ID: vendorID} }
func StudentTopic(studentID string) Topic { return Topic{Kind: "student", ID: studentID} }

func (t Topic) Name() string { return t.Kind + "." + t.ID }

const (
	EventNewOrder     = "order.new"
	EventStatusUpdate = "order.status"
)

// NewOrderEvent goes to the order's vendor with the full order attached,
// line items already resolved to catalog names.
type NewOrderEvent struct {
	Order     Order     `json:"order"`
	Timestamp time.Time `json:"timestamp"`
}

// StatusUpdateEvent goes to the order's student, if the order has one.
type StatusUpdateEvent struct {
	OrderID             string      `json:"order_id"`
	Status              OrderStatus `json:"status"`
	Token               string      `json:"token"`
	PredictedPickupTime time.Time   `json:"predicted_pickup_time"`
	Timestamp           time.Time   `json:"timestamp"`
}
