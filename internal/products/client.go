package products

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	pkgerrors "github.com/angelmondragon/packfinderz-storefront/pkg/errors"
	"github.com/angelmondragon/packfinderz-storefront/pkg/types"
	"github.com/shopspring/decimal"
)

const (
	defaultProductsPath         = "/products"
	responseBodyReadLimit int64 = 1024
)

var errBaseURLRequired = errors.New("catalog base url is required")

// Lookup resolves a product id to its catalog entry.
type Lookup interface {
	GetProduct(ctx context.Context, productID string) (*Product, error)
}

// TokenSource supplies the bearer token attached to catalog requests, if any.
type TokenSource interface {
	Token() string
}

// Client reads products from the storefront backend.
type Client struct {
	httpClient   *http.Client
	baseURL      string
	productsPath string
	tokens       TokenSource
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithProductsPath overrides the collection path appended to the base URL.
func WithProductsPath(path string) Option {
	return func(c *Client) {
		trimmed := strings.TrimSpace(path)
		if trimmed != "" {
			c.productsPath = "/" + strings.Trim(trimmed, "/")
		}
	}
}

// WithTokenSource attaches a bearer token to every lookup when one is available.
func WithTokenSource(tokens TokenSource) Option {
	return func(c *Client) {
		c.tokens = tokens
	}
}

// NewClient builds the catalog client for the given backend.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		return nil, errBaseURLRequired
	}

	client := &Client{
		baseURL:      trimmed,
		productsPath: defaultProductsPath,
		httpClient:   &http.Client{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

type productPayload struct {
	ID          types.FlexString `json:"id"`
	Name        string           `json:"name"`
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Price       types.FlexString `json:"price"`
	Image       string           `json:"image"`
	ImageURL    string           `json:"imageUrl"`
	Images      []string         `json:"images"`
	Category    string           `json:"category"`
	Sizes       []string         `json:"sizes"`
	Colors      []string         `json:"colors"`
	InStock     *bool            `json:"inStock"`
	Stock       *int             `json:"stock"`
}

// GetProduct fetches one product. A 404 is reported as CodeNotFound.
func (c *Client) GetProduct(ctx context.Context, productID string) (*Product, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "catalog client not configured")
	}
	trimmed := strings.TrimSpace(productID)
	if trimmed == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}

	endpoint := fmt.Sprintf("%s%s/%s", c.baseURL, c.productsPath, url.PathEscape(trimmed))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build product request")
	}
	req.Header.Set("Accept", "application/json")
	if c.tokens != nil {
		if token := c.tokens.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeTransport, err, "execute product request")
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		return nil, pkgerrors.Wrap(pkgerrors.CodeOperationFailed, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), "product request failed")
	}

	var envelope struct {
		Data *productPayload `json:"data"`
		productPayload
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeOperationFailed, err, "decode product response")
	}
	payload := envelope.productPayload
	if envelope.Data != nil {
		payload = *envelope.Data
	}
	if payload.ID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return payload.toProduct()
}

func (p productPayload) toProduct() (*Product, error) {
	price := decimal.Zero
	if p.Price != "" {
		parsed, err := decimal.NewFromString(p.Price.String())
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeOperationFailed, err, "invalid product price")
		}
		price = parsed
	}

	name := p.Name
	if name == "" {
		name = p.Title
	}

	images := p.Images
	for _, single := range []string{p.ImageURL, p.Image} {
		if len(images) == 0 && single != "" {
			images = []string{single}
		}
	}

	inStock := true
	switch {
	case p.InStock != nil:
		inStock = *p.InStock
	case p.Stock != nil:
		inStock = *p.Stock > 0
	}

	sizes := p.Sizes
	if len(sizes) == 0 {
		sizes = DefaultSizes
	}
	colors := p.Colors
	if len(colors) == 0 {
		colors = DefaultColors
	}

	product := Product{
		ID:          p.ID.String(),
		Name:        name,
		Description: p.Description,
		Price:       price,
		Images:      images,
		Category:    p.Category,
		Sizes:       sizes,
		Colors:      colors,
		InStock:     inStock,
	}.Clone()
	return &product, nil
}
