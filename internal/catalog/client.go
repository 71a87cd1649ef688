package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/campuseats/canteen/internal/domain"
)

// Client is the catalog gateway used by the orders service. It satisfies
// fulfillment.Catalog: unknown items come back as (nil, nil), transport and
// server failures as errors.
type Client struct {
	baseURL string
	client  *http.Client
}

func NewClient(baseURL string, client *http.Client) *Client {
	return &Client{
		baseURL: baseURL,
		client:  client,
	}
}

func (c *Client) MenuItem(ctx context.Context, id string) (*domain.MenuItem, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/menu/"+id, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("catalog request for item %s: %w", id, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("catalog service returned status %d for item %s", resp.StatusCode, id)
	}

	var item domain.MenuItem
	if err := json.NewDecoder(resp.Body).Decode(&item); err != nil {
		return nil, fmt.Errorf("decode catalog response for item %s: %w", id, err)
	}

	return &item, nil
}
