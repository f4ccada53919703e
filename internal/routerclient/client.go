package routerclient

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

	"github.com/helioswap/dca-engine/internal/engine"
)

// Client submits validated swap plans to the external routing service. The
// core never inspects the router's pricing; it only hands over the hop
// descriptors, the input amount and the spread bound the route must respect.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     logrus.FieldLogger
}

var _ engine.Router = (*Client)(nil)

func NewClient(baseURL string, logger logrus.FieldLogger) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		logger: logger,
	}
}

type swapOperation struct {
	OfferAsset string          `json:"offer_asset"`
	AskAsset   string          `json:"ask_asset"`
	Pool       string          `json:"pool,omitempty"`
	MaxSpread  decimal.Decimal `json:"max_spread"`
}

type executeSwapRequest struct {
	Recipient  string          `json:"recipient"`
	OfferAsset string          `json:"offer_asset"`
	Amount     decimal.Decimal `json:"amount"`
	MaxSpread  decimal.Decimal `json:"max_spread"`
	Operations []swapOperation `json:"operations"`
}

type executeSwapResponse struct {
	AmountOut decimal.Decimal `json:"amount_out"`
	Reference string          `json:"reference"`
}

func (c *Client) ExecuteSwap(ctx context.Context, plan engine.SwapPlan) (engine.SwapResult, error) {
	req := executeSwapRequest{
		Recipient:  plan.Recipient,
		OfferAsset: plan.Asset.String(),
		Amount:     plan.Amount,
		MaxSpread:  plan.MaxSpread,
	}
	for _, hop := range plan.Hops {
		spread := hop.Spread
		if spread.IsZero() {
			spread = plan.MaxSpread
		}
		req.Operations = append(req.Operations, swapOperation{
			OfferAsset: hop.Offer.String(),
			AskAsset:   hop.Ask.String(),
			Pool:       hop.Pool,
			MaxSpread:  spread,
		})
	}

	buf, err := json.Marshal(req)
	if err != nil {
		return engine.SwapResult{}, fmt.Errorf("fail to marshal swap request, err: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/swaps", bytes.NewReader(buf))
	if err != nil {
		return engine.SwapResult{}, fmt.Errorf("fail to build swap request, err: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return engine.SwapResult{}, fmt.Errorf("fail to reach router, err: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.logger.WithError(err).Error("fail to close router response body")
		}
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return engine.SwapResult{}, fmt.Errorf("router refused swap: status %d: %s", resp.StatusCode, string(body))
	}

	var out executeSwapResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return engine.SwapResult{}, fmt.Errorf("fail to decode router response, err: %w", err)
	}
	return engine.SwapResult{AmountOut: out.AmountOut, Reference: out.Reference}, nil
}
