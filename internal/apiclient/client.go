// Package apiclient is a typed client for the glowdesk HTTP API.
package apiclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"glowdesk/backend/internal/domain"
)

const apiPrefix = "/api/v1"

var (
	ErrUnauthorized = errors.New("glowdesk unauthorized")
	ErrNotFound     = errors.New("glowdesk resource not found")
	ErrConflict     = errors.New("glowdesk conflict")
	ErrBadRequest   = errors.New("glowdesk bad request")
)

type APIError struct {
	StatusCode int
	Status     string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("glowdesk api error: %s", e.Status)
	}
	return fmt.Sprintf("glowdesk api error: %s: %s", e.Status, e.Message)
}

type errorBody struct {
	Error string `json:"error"`
}

type Client struct {
	http   *resty.Client
	logger *zap.Logger
}

func New(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetHeader("Accept", "application/json").
		SetHeader("Content-Type", "application/json").
		SetTimeout(timeout).
		SetRetryCount(1).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(time.Second).
		AddRetryCondition(retryIdempotent)

	return &Client{
		http:   httpClient,
		logger: logger.Named("apiclient"),
	}
}

// retryIdempotent retries transport errors and 5xx responses for read-only
// methods only. A POST that timed out may already have recorded a sale.
func retryIdempotent(resp *resty.Response, err error) bool {
	if resp == nil || resp.Request == nil {
		return false
	}
	switch resp.Request.Method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
	default:
		return false
	}
	return err != nil || resp.StatusCode() >= http.StatusInternalServerError
}

// SetToken attaches a bearer token to every later request.
func (c *Client) SetToken(token string) {
	c.http.SetAuthScheme("Bearer")
	c.http.SetAuthToken(token)
}

func (c *Client) Health(ctx context.Context) error {
	var body struct {
		OK bool `json:"ok"`
	}
	if err := c.do(ctx, http.MethodGet, "/healthz", nil, nil, &body); err != nil {
		return err
	}
	if !body.OK {
		return errors.New("glowdesk health check reported not ok")
	}
	return nil
}

// Login authenticates and keeps the returned token for later calls.
func (c *Client) Login(ctx context.Context, email, password string) (domain.LoginResponse, error) {
	var resp domain.LoginResponse
	err := c.do(ctx, http.MethodPost, apiPrefix+"/auth/login", nil, domain.LoginRequest{Email: email, Password: password}, &resp)
	if err != nil {
		return domain.LoginResponse{}, err
	}
	c.SetToken(resp.AccessToken)
	c.logger.Debug("logged in", zap.String("email", resp.User.Email))
	return resp, nil
}

func (c *Client) Logout(ctx context.Context) error {
	if err := c.do(ctx, http.MethodPost, apiPrefix+"/auth/logout", nil, nil, nil); err != nil {
		return err
	}
	c.http.SetAuthToken("")
	return nil
}

func (c *Client) Me(ctx context.Context) (domain.User, error) {
	var user domain.User
	err := c.do(ctx, http.MethodGet, apiPrefix+"/auth/me", nil, nil, &user)
	return user, err
}

func (c *Client) ChangePassword(ctx context.Context, req domain.PasswordChangeRequest) error {
	return c.do(ctx, http.MethodPost, apiPrefix+"/auth/password", nil, req, nil)
}

func (c *Client) ListProducts(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error) {
	query := map[string]string{}
	if filter.Query != "" {
		query["q"] = filter.Query
	}
	if filter.Status != "" {
		query["status"] = string(filter.Status)
	}
	var body struct {
		Products []domain.Product `json:"products"`
	}
	if err := c.do(ctx, http.MethodGet, apiPrefix+"/products", query, nil, &body); err != nil {
		return nil, err
	}
	return body.Products, nil
}

func (c *Client) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	var product domain.Product
	err := c.do(ctx, http.MethodGet, apiPrefix+"/products/"+id, nil, nil, &product)
	return product, err
}

func (c *Client) CreateProduct(ctx context.Context, input domain.ProductInput) (domain.Product, error) {
	var product domain.Product
	err := c.do(ctx, http.MethodPost, apiPrefix+"/products", nil, input, &product)
	return product, err
}

func (c *Client) UpdateProduct(ctx context.Context, id string, patch domain.ProductPatch) (domain.Product, error) {
	var product domain.Product
	err := c.do(ctx, http.MethodPatch, apiPrefix+"/products/"+id, nil, patch, &product)
	return product, err
}

func (c *Client) DeleteProduct(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, apiPrefix+"/products/"+id, nil, nil, nil)
}

func (c *Client) ListSales(ctx context.Context, filter domain.SaleFilter) ([]domain.Sale, error) {
	query := map[string]string{}
	if filter.Query != "" {
		query["q"] = filter.Query
	}
	if !filter.Date.IsZero() {
		query["date"] = filter.Date.String()
	}
	var body struct {
		Sales []domain.Sale `json:"sales"`
	}
	if err := c.do(ctx, http.MethodGet, apiPrefix+"/sales", query, nil, &body); err != nil {
		return nil, err
	}
	return body.Sales, nil
}

func (c *Client) SellProduct(ctx context.Context, draft domain.SaleDraft) (domain.Sale, error) {
	var sale domain.Sale
	err := c.do(ctx, http.MethodPost, apiPrefix+"/sales", nil, draft, &sale)
	return sale, err
}

func (c *Client) RecordSale(ctx context.Context, input domain.SaleInput) (domain.Sale, error) {
	var sale domain.Sale
	err := c.do(ctx, http.MethodPost, apiPrefix+"/sales/record", nil, input, &sale)
	return sale, err
}

// SaleProfit returns the profit at the product's current cost and at the
// cost recorded with the sale.
func (c *Client) SaleProfit(ctx context.Context, saleID string) (current decimal.Decimal, historical decimal.Decimal, err error) {
	var body struct {
		Profit           decimal.Decimal `json:"profit"`
		HistoricalProfit decimal.Decimal `json:"historical_profit"`
	}
	if err := c.do(ctx, http.MethodGet, apiPrefix+"/sales/"+saleID+"/profit", nil, nil, &body); err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	return body.Profit, body.HistoricalProfit, nil
}

func (c *Client) ListDocuments(ctx context.Context, filter domain.DocumentFilter) ([]domain.Document, error) {
	query := map[string]string{}
	if filter.Query != "" {
		query["q"] = filter.Query
	}
	if filter.Category != "" {
		query["category"] = filter.Category
	}
	var body struct {
		Documents []domain.Document `json:"documents"`
	}
	if err := c.do(ctx, http.MethodGet, apiPrefix+"/documents", query, nil, &body); err != nil {
		return nil, err
	}
	return body.Documents, nil
}

func (c *Client) DocumentStats(ctx context.Context) (domain.DocumentStats, error) {
	var stats domain.DocumentStats
	err := c.do(ctx, http.MethodGet, apiPrefix+"/documents/stats", nil, nil, &stats)
	return stats, err
}

func (c *Client) UploadDocument(ctx context.Context, input domain.DocumentInput) (domain.Document, error) {
	var doc domain.Document
	err := c.do(ctx, http.MethodPost, apiPrefix+"/documents", nil, input, &doc)
	return doc, err
}

func (c *Client) DeleteDocument(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, apiPrefix+"/documents/"+id, nil, nil, nil)
}

func (c *Client) Settings(ctx context.Context) (domain.Settings, error) {
	var settings domain.Settings
	err := c.do(ctx, http.MethodGet, apiPrefix+"/settings", nil, nil, &settings)
	return settings, err
}

func (c *Client) ToggleTheme(ctx context.Context) (domain.Theme, error) {
	var body struct {
		Theme domain.Theme `json:"theme"`
	}
	err := c.do(ctx, http.MethodPost, apiPrefix+"/settings/theme/toggle", nil, nil, &body)
	return body.Theme, err
}

func (c *Client) UpdateCurrency(ctx context.Context, currency string) (domain.Settings, error) {
	var settings domain.Settings
	err := c.do(ctx, http.MethodPut, apiPrefix+"/settings/currency", nil, map[string]string{"value": currency}, &settings)
	return settings, err
}

func (c *Client) UpdateCompanyLogo(ctx context.Context, logo string) (domain.Settings, error) {
	var settings domain.Settings
	err := c.do(ctx, http.MethodPut, apiPrefix+"/settings/logo", nil, map[string]string{"value": logo}, &settings)
	return settings, err
}

func (c *Client) Dashboard(ctx context.Context) (domain.DashboardSummary, error) {
	var summary domain.DashboardSummary
	err := c.do(ctx, http.MethodGet, apiPrefix+"/dashboard", nil, nil, &summary)
	return summary, err
}

func (c *Client) Report(ctx context.Context, period domain.Period) (domain.Report, error) {
	var report domain.Report
	query := map[string]string{}
	if period != "" {
		query["period"] = string(period)
	}
	err := c.do(ctx, http.MethodGet, apiPrefix+"/reports", query, nil, &report)
	return report, err
}

func (c *Client) Buckets(ctx context.Context, granularity domain.Granularity, n int) ([]domain.Bucket, error) {
	var body struct {
		Buckets []domain.Bucket `json:"buckets"`
	}
	query := map[string]string{"n": strconv.Itoa(n)}
	if err := c.do(ctx, http.MethodGet, apiPrefix+"/reports/buckets/"+string(granularity), query, nil, &body); err != nil {
		return nil, err
	}
	return body.Buckets, nil
}

func (c *Client) do(ctx context.Context, method, path string, query map[string]string, body any, result any) error {
	req := c.http.R().SetContext(ctx).SetError(&errorBody{})
	if len(query) > 0 {
		req.SetQueryParams(query)
	}
	if body != nil {
		req.SetBody(body)
	}
	if result != nil {
		req.SetResult(result)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return fmt.Errorf("glowdesk request: %w", err)
	}
	if resp.IsError() {
		return apiErrorFromResponse(resp)
	}
	return nil
}

func apiErrorFromResponse(resp *resty.Response) error {
	apiErr := &APIError{
		StatusCode: resp.StatusCode(),
		Status:     resp.Status(),
	}
	if body, ok := resp.Error().(*errorBody); ok && body != nil {
		apiErr.Message = body.Error
	}
	if apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(resp.String())
	}

	switch resp.StatusCode() {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %w", ErrUnauthorized, apiErr)
	case http.StatusNotFound:
		return fmt.Errorf("%w: %w", ErrNotFound, apiErr)
	case http.StatusConflict:
		return fmt.Errorf("%w: %w", ErrConflict, apiErr)
	case http.StatusBadRequest:
		return fmt.Errorf("%w: %w", ErrBadRequest, apiErr)
	default:
		return apiErr
	}
}
