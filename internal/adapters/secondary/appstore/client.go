package appstore

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fibli/story-service/internal/domain"
	"github.com/fibli/story-service/internal/ports/purchase"
)

const (
	epAvailablePurchases = "purchases/available"
	epPendingPurchases   = "purchases/pending"
	epSubscription       = "purchases/subscription"
	epOneTime            = "purchases/one-time"
	epFinalize           = "transactions/finalize"
	epConnect            = "connection"
)

// truncateString обрезает строку до указанной длины
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

// Client клиент store-server API платёжной платформы.
// Реализует purchase.IPlatform. Nil-конфиг или пустой BaseURL означают
// деплой без платёжного слоя: Supported() возвращает false.
type Client struct {
	cfg        *Config
	HTTPClient *http.Client
	Log        *slog.Logger
}

// NewClient создаёт клиент платёжной платформы
func NewClient(cfg *Config, log *slog.Logger) purchase.IPlatform {
	transport := &http.Transport{}

	if cfg != nil && cfg.ShouldSkipSSL() {
		transport.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: true,
		}
	}

	return &Client{
		cfg: cfg,
		HTTPClient: &http.Client{
			Transport: transport,
			Timeout:   30 * time.Second,
		},
		Log: log,
	}
}

// Supported false на деплоях без платёжного слоя
func (c *Client) Supported() bool {
	return c.cfg != nil && c.cfg.BaseURL != ""
}

// InitConnection проверяет доступность store-server
func (c *Client) InitConnection(ctx context.Context) error {
	if !c.Supported() {
		return domain.ErrPlatformUnsupported
	}
	var ignored json.RawMessage
	return c.do(ctx, http.MethodGet, epConnect, nil, &ignored)
}

// EndConnection разрывает соединение; store-server stateless, поэтому no-op
func (c *Client) EndConnection(ctx context.Context) error {
	return nil
}

// GetAvailablePurchases возвращает все известные платформе покупки пользователя
func (c *Client) GetAvailablePurchases(ctx context.Context, userID uuid.UUID) ([]domain.PurchaseRecord, error) {
	if !c.Supported() {
		return nil, domain.ErrPlatformUnsupported
	}

	var resp availablePurchasesResponse
	if err := c.do(ctx, http.MethodPost, epAvailablePurchases, availablePurchasesRequest{UserID: userID}, &resp); err != nil {
		return nil, err
	}

	records := make([]domain.PurchaseRecord, 0, len(resp.Purchases))
	for _, row := range resp.Purchases {
		records = append(records, rowToRecord(row))
	}
	return records, nil
}

// GetPendingPurchases возвращает нефинализированные покупки по всем пользователям
func (c *Client) GetPendingPurchases(ctx context.Context) ([]domain.PurchaseEvent, error) {
	if !c.Supported() {
		return nil, domain.ErrPlatformUnsupported
	}

	var resp availablePurchasesResponse
	if err := c.do(ctx, http.MethodGet, epPendingPurchases, nil, &resp); err != nil {
		return nil, err
	}

	events := make([]domain.PurchaseEvent, 0, len(resp.Purchases))
	for _, row := range resp.Purchases {
		events = append(events, domain.PurchaseEvent{
			UserID: row.UserID,
			Record: rowToRecord(row),
		})
	}
	return events, nil
}

// RequestSubscriptionPurchase инициирует покупку подписки
func (c *Client) RequestSubscriptionPurchase(ctx context.Context, userID uuid.UUID, productID domain.ProductID) error {
	if !c.Supported() {
		return domain.ErrPlatformUnsupported
	}
	var ignored json.RawMessage
	return c.do(ctx, http.MethodPost, epSubscription, purchaseRequest{UserID: userID, ProductID: string(productID)}, &ignored)
}

// RequestOneTimePurchase инициирует разовую покупку
func (c *Client) RequestOneTimePurchase(ctx context.Context, userID uuid.UUID, productID domain.ProductID) error {
	if !c.Supported() {
		return domain.ErrPlatformUnsupported
	}
	var ignored json.RawMessage
	return c.do(ctx, http.MethodPost, epOneTime, purchaseRequest{UserID: userID, ProductID: string(productID)}, &ignored)
}

// FinalizeTransaction подтверждает обработку покупки
func (c *Client) FinalizeTransaction(ctx context.Context, record domain.PurchaseRecord) error {
	if !c.Supported() {
		return domain.ErrPlatformUnsupported
	}
	var ignored json.RawMessage
	return c.do(ctx, http.MethodPost, epFinalize, finalizeRequest{
		TransactionID: record.TransactionID,
		RawReceipt:    record.RawReceipt,
	}, &ignored)
}

// buildURL собирает полный URL из BaseURL, ApiVersion и endpoint
func (c *Client) buildURL(endpoint string) string {
	baseURL := strings.TrimSuffix(c.cfg.BaseURL, "/")
	return baseURL + "/" + path.Join(c.cfg.ApiVersion, endpoint)
}

// setHeaders устанавливает стандартные заголовки для запросов к API
func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.ApiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.ApiKey)
	}
}

// do выполняет запрос и раскладывает ошибки платформы по кодам
func (c *Client) do(ctx context.Context, method, endpoint string, body interface{}, dest interface{}) error {
	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	}

	url := c.buildURL(endpoint)
	httpReq, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	c.setHeaders(httpReq)

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrPurchaseRequestFailed, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		rawJSON := string(respBody)
		c.Log.Debug("store API returned non-200 status",
			"endpoint", endpoint,
			"status_code", resp.StatusCode,
			"body_preview", truncateString(rawJSON, 200),
		)

		var apiErr apiError
		if unmarshalErr := json.Unmarshal(respBody, &apiErr); unmarshalErr == nil {
			switch apiErr.Code {
			case errCodeAlreadyOwned:
				return fmt.Errorf("%w: %s", domain.ErrAlreadyOwned, apiErr.Message)
			case errCodeUserCancelled:
				return fmt.Errorf("%w: user cancelled", domain.ErrPurchaseRequestFailed)
			}
		}

		return fmt.Errorf("%w: store API error [status=%d]: %s",
			domain.ErrPurchaseRequestFailed, resp.StatusCode, truncateString(rawJSON, 500))
	}

	if dest == nil || len(respBody) == 0 {
		return nil
	}

	if err := json.Unmarshal(respBody, dest); err != nil {
		c.Log.Debug("failed to unmarshal store API response",
			"error", err,
			"endpoint", endpoint,
			"body_preview", truncateString(string(respBody), 200),
		)
		return fmt.Errorf("store API unmarshal failed: %w", err)
	}

	return nil
}

func rowToRecord(row purchaseRow) domain.PurchaseRecord {
	return domain.PurchaseRecord{
		ProductID:     domain.ProductID(row.ProductID),
		TransactionID: row.TransactionID,
		TransactedAt:  row.TransactedAt,
		RawReceipt:    row.RawReceipt,
	}
}
