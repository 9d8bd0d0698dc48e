package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rifkiandrian/topupin_be/internal/apperr"
)

// Client adalah implementasi Gateway di atas HTTP.
type Client struct {
	HTTP     *http.Client
	BaseURL  string
	Username string
	APIKey   string
}

func NewClient(baseURL, username, apiKey string) *Client {
	return &Client{
		HTTP:     &http.Client{Timeout: 15 * time.Second},
		BaseURL:  baseURL,
		Username: username,
		APIKey:   apiKey,
	}
}

type priceListRequest struct {
	Username string `json:"username"`
	Sign     string `json:"sign"`
}

type priceListResponse struct {
	ResponseCode string         `json:"response_code"`
	Message      string         `json:"message"`
	Data         []ServiceEntry `json:"data"`
}

type orderRequestBody struct {
	Username   string `json:"username"`
	RefID      string `json:"ref_id"`
	SKU        string `json:"sku"`
	CustomerNo string `json:"customer_no"`
	Amount     int64  `json:"amount,omitempty"`
	Sign       string `json:"sign"`
}

type statusRequestBody struct {
	Username string `json:"username"`
	RefID    string `json:"ref_id"`
	Sign     string `json:"sign"`
}

type orderResponseBody struct {
	ResponseCode string `json:"response_code"`
	Message      string `json:"message"`
	Data         struct {
		RefID        string `json:"ref_id"`
		ProviderRef  string `json:"provider_ref"`
		Status       string `json:"status"`
		SerialNumber string `json:"sn"`
		Message      string `json:"message"`
	} `json:"data"`
}

func (c *Client) PriceList(ctx context.Context) ([]ServiceEntry, error) {
	body := priceListRequest{
		Username: c.Username,
		Sign:     Signature(c.Username, c.APIKey, "pricelist"),
	}

	raw, err := c.post(ctx, "/price-list", body)
	if err != nil {
		return nil, err
	}

	var resp priceListResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, apperr.Wrap(apperr.KindUpstream, "Respon provider tidak valid", err)
	}
	if resp.ResponseCode != ResponseCodeOK {
		return nil, apperr.New(apperr.KindUpstream, fmt.Sprintf("Provider menolak price-list: %s", resp.Message))
	}
	return resp.Data, nil
}

func (c *Client) CreateOrder(ctx context.Context, req OrderRequest) (*OrderResult, error) {
	body := orderRequestBody{
		Username:   c.Username,
		RefID:      req.RefID,
		SKU:        req.SKU,
		CustomerNo: req.CustomerNo,
		Amount:     req.Amount,
		Sign:       Signature(c.Username, c.APIKey, req.RefID),
	}
	return c.orderCall(ctx, "/transaction", body)
}

func (c *Client) CheckStatus(ctx context.Context, refID string) (*OrderResult, error) {
	body := statusRequestBody{
		Username: c.Username,
		RefID:    refID,
		Sign:     Signature(c.Username, c.APIKey, refID),
	}
	return c.orderCall(ctx, "/status", body)
}

func (c *Client) orderCall(ctx context.Context, path string, body interface{}) (*OrderResult, error) {
	raw, err := c.post(ctx, path, body)
	if err != nil {
		return nil, err
	}

	var resp orderResponseBody
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, apperr.Wrap(apperr.KindUpstream, "Respon provider tidak valid", err)
	}

	return &OrderResult{
		RefID:        resp.Data.RefID,
		ProviderRef:  resp.Data.ProviderRef,
		Status:       resp.Data.Status,
		SerialNumber: resp.Data.SerialNumber,
		Message:      resp.Data.Message,
		ResponseCode: resp.ResponseCode,
		Raw:          raw,
	}, nil
}

func (c *Client) post(ctx context.Context, path string, body interface{}) ([]byte, error) {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUpstream, "Provider tidak dapat dihubungi", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUpstream, "Gagal membaca respon provider", err)
	}

	if resp.StatusCode >= 500 {
		return nil, apperr.New(apperr.KindUpstream, fmt.Sprintf("Provider error (HTTP %d)", resp.StatusCode))
	}
	return raw, nil
}
