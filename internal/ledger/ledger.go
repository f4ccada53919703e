package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/helioswap/dca-engine/internal/asset"
	"github.com/helioswap/dca-engine/internal/engine"
)

// Client talks to the bank service that holds the contract's balance sheet.
// It implements engine.Ledger; the engine decides what to move, the bank
// decides whether the counterparty can cover it.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     logrus.FieldLogger
}

var _ engine.Ledger = (*Client)(nil)

func NewClient(baseURL string, logger logrus.FieldLogger) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
}

type transferRequest struct {
	Direction string          `json:"direction"`
	Party     string          `json:"party"`
	Asset     string          `json:"asset"`
	Amount    decimal.Decimal `json:"amount"`
}

func (c *Client) Pull(ctx context.Context, from string, ref asset.Ref, amount decimal.Decimal) error {
	return c.transfer(ctx, transferRequest{
		Direction: "pull",
		Party:     from,
		Asset:     ref.String(),
		Amount:    amount,
	})
}

func (c *Client) Send(ctx context.Context, to string, ref asset.Ref, amount decimal.Decimal) error {
	return c.transfer(ctx, transferRequest{
		Direction: "send",
		Party:     to,
		Asset:     ref.String(),
		Amount:    amount,
	})
}

func (c *Client) transfer(ctx context.Context, req transferRequest) error {
	buf, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("fail to marshal transfer request, err: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/transfers", bytes.NewReader(buf))
	if err != nil {
		return fmt.Errorf("fail to build transfer request, err: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("fail to reach ledger, err: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.logger.WithError(err).Error("fail to close ledger response body")
		}
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("ledger rejected %s of %s %s for %s: status %d: %s",
			req.Direction, req.Amount, req.Asset, req.Party, resp.StatusCode, string(body))
	}
	return nil
}
