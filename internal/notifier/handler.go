package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/campuseats/canteen/internal/domain"
)

// DeliveryHandler bridges notification topics to the push service. The
// topic name carries the addressee ("vendor.42", "student.7"); the payload
// shape follows from the topic kind, since vendors only receive new-order
// events and students only receive status updates.
type DeliveryHandler struct {
	pushServiceURL string
	httpClient     *http.Client
	logger         *slog.Logger
}

func NewDeliveryHandler(pushServiceURL string, client *http.Client, logger *slog.Logger) *DeliveryHandler {
	return &DeliveryHandler{
		pushServiceURL: pushServiceURL,
		httpClient:     client,
		logger:         logger,
	}
}

func (h *DeliveryHandler) Handle(ctx context.Context, topic string, payload []byte) error {
	kind, _, ok := strings.Cut(topic, ".")
	if !ok {
		return fmt.Errorf("malformed notification topic %q", topic)
	}

	switch kind {
	case "vendor":
		var event domain.NewOrderEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			return fmt.Errorf("unmarshal new order event: %w", err)
		}
		return h.deliverNewOrder(ctx, topic, event)
	case "student":
		var event domain.StatusUpdateEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			return fmt.Errorf("unmarshal status update event: %w", err)
		}
		return h.deliverStatusUpdate(ctx, topic, event)
	default:
		return fmt.Errorf("unknown notification topic kind %q", kind)
	}
}

func (h *DeliveryHandler) deliverNewOrder(ctx context.Context, topic string, event domain.NewOrderEvent) error {
	order := event.Order

	var lines []string
	for _, line := range order.Lines {
		lines = append(lines, fmt.Sprintf("%dx %s", line.Quantity, line.Name))
	}

	h.logger.Info("delivering new order notification", "order_id", order.ID, "topic", topic)

	return h.push(ctx, pushRequest{
		Channel: topic,
		Title:   "New order " + order.Token,
		Body:    fmt.Sprintf("%s — pickup by %s", strings.Join(lines, ", "), order.PredictedPickupTime.Format("15:04")),
		Data:    event,
	})
}

func (h *DeliveryHandler) deliverStatusUpdate(ctx context.Context, topic string, event domain.StatusUpdateEvent) error {
	h.logger.Info("delivering status notification", "order_id", event.OrderID, "status", event.Status, "topic", topic)

	return h.push(ctx, pushRequest{
		Channel: topic,
		Title:   fmt.Sprintf("Order %s is %s", event.Token, event.Status),
		Body:    "Predicted pickup " + event.PredictedPickupTime.Format("15:04"),
		Data:    event,
	})
}

type pushRequest struct {
	Channel string `json:"channel"`
	Title   string `json:"title"`
	Body    string `json:"body"`
	Data    any    `json:"data,omitempty"`
}

func (h *DeliveryHandler) push(ctx context.Context, payload pushRequest) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.pushServiceURL+"/send", bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("push service returned status %d", resp.StatusCode)
	}

	return nil
}
