package points

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client talks to a remote loyalty ledger API. It satisfies the same
// reporter contract as the in-process Store, for deployments where the
// ledger runs separately from the swap engine.
type Client struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		APIKey:  strings.TrimSpace(apiKey),
		HTTP: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type awardRequest struct {
	Wallet      string  `json:"wallet"`
	TxSignature string  `json:"tx_signature"`
	VolumeUsd   float64 `json:"volume_usd"`
}

// Award posts one swap to the remote ledger and returns its verdict.
func (c *Client) Award(ctx context.Context, wallet, txSignature string, volumeUsd float64) (*AwardResult, error) {
	body, err := json.Marshal(awardRequest{
		Wallet:      wallet,
		TxSignature: txSignature,
		VolumeUsd:   volumeUsd,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/api/v1/points/award", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		req.Header.Set("X-API-Key", c.APIKey)
	}

	res, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	data, _ := io.ReadAll(res.Body)
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil, fmt.Errorf("points api http %d: %s", res.StatusCode, strings.TrimSpace(string(data)))
	}

	var out AwardResult
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to decode award response: %w", err)
	}
	return &out, nil
}

func (c *Client) ReportSwap(ctx context.Context, wallet, txSignature string, volumeUsd float64) error {
	_, err := c.Award(ctx, wallet, txSignature, volumeUsd)
	return err
}
