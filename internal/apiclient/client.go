// Package apiclient is a thin HTTP client for the DCA engine server, used by
// worker processes that do not hold the order book themselves.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/helioswap/dca-engine/internal/asset"
	"github.com/helioswap/dca-engine/internal/engine"
	"github.com/helioswap/dca-engine/internal/types"
)

type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     logrus.FieldLogger
}

func NewClient(baseURL string, logger logrus.FieldLogger) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
}

func (c *Client) GetOrder(ctx context.Context, owner string, initial asset.Ref) (engine.Order, error) {
	endpoint := fmt.Sprintf("%s/orders/%s", c.baseURL, url.PathEscape(owner))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return engine.Order{}, fmt.Errorf("fail to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return engine.Order{}, fmt.Errorf("fail to get orders for %s: %w", owner, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return engine.Order{}, fmt.Errorf("unexpected status %d getting orders for %s", resp.StatusCode, owner)
	}

	var orders []types.OrderResponse
	if err := json.NewDecoder(resp.Body).Decode(&orders); err != nil {
		return engine.Order{}, fmt.Errorf("fail to decode orders response: %w", err)
	}

	for _, o := range orders {
		if o.InitialAsset == initial {
			return engine.Order{
				Owner:        o.Owner,
				InitialAsset: o.InitialAsset,
				Remaining:    o.Remaining,
				TargetAsset:  o.TargetAsset,
				DCAAmount:    o.DCAAmount,
				Interval:     time.Duration(o.Interval) * time.Second,
				LastPurchase: o.LastPurchase,
			}, nil
		}
	}
	return engine.Order{}, engine.ErrOrderNotFound
}

func (c *Client) PerformPurchase(ctx context.Context, executor string, purchase types.PerformPurchaseRequest) (*engine.PurchaseReceipt, error) {
	buf, err := json.Marshal(purchase)
	if err != nil {
		return nil, fmt.Errorf("fail to marshal purchase request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/purchase", bytes.NewReader(buf))
	if err != nil {
		return nil, fmt.Errorf("fail to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-caller", executor)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fail to perform purchase: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var body struct {
			Error string `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&body); err == nil {
			if sentinel := engine.FromKind(body.Error); sentinel != nil {
				return nil, sentinel
			}
		}
		return nil, fmt.Errorf("unexpected status %d performing purchase", resp.StatusCode)
	}

	var receipt engine.PurchaseReceipt
	if err := json.NewDecoder(resp.Body).Decode(&receipt); err != nil {
		return nil, fmt.Errorf("fail to decode purchase receipt: %w", err)
	}
	return &receipt, nil
}
