package cart

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	pkgerrors "github.com/angelmondragon/packfinderz-storefront/pkg/errors"
)

const (
	cartPath                    = "/user/cart"
	responseBodyReadLimit int64 = 1 << 20
	errorBodyReadLimit    int64 = 1024
)

var (
	// ErrNoToken is the precondition failure raised before any network call.
	ErrNoToken         = errors.New("no session token")
	errBaseURLRequired = errors.New("backend base url is required")
)

// TokenSource supplies the bearer token at call time.
type TokenSource interface {
	Token() string
}

// Remote is the cart resource surface the engine drives.
type Remote interface {
	AddToCart(ctx context.Context, productID string, quantity int) (*RemoteCart, error)
	GetCart(ctx context.Context) (*RemoteCart, error)
	RemoveFromCart(ctx context.Context, productID string) (*RemoteCart, error)
	UpdateQuantity(ctx context.Context, productID string, quantity int) (*RemoteCart, error)
	UpdateSize(ctx context.Context, productID, size string) (*RemoteCart, error)
	ClearCart(ctx context.Context) (string, error)
}

type operation struct {
	name    string
	failure string
}

var (
	opAdd      = operation{name: "add", failure: "Failed to add item to cart"}
	opGet      = operation{name: "get", failure: "Failed to load cart"}
	opRemove   = operation{name: "remove", failure: "Failed to remove item from cart"}
	opQuantity = operation{name: "update_quantity", failure: "Failed to update quantity"}
	opSize     = operation{name: "update_size", failure: "Failed to update size"}
	opClear    = operation{name: "clear", failure: "Failed to clear cart"}
)

// Client talks to the backend cart resource. It never retries.
type Client struct {
	httpClient *http.Client
	baseURL    string
	tokens     TokenSource
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client. Its timeout is the only one applied.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewClient builds a cart client for the backend at baseURL.
func NewClient(baseURL string, tokens TokenSource, opts ...Option) (*Client, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		return nil, errBaseURLRequired
	}
	if tokens == nil {
		return nil, errors.New("token source is required")
	}
	client := &Client{
		baseURL:    trimmed,
		tokens:     tokens,
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// AddToCart creates or increments a line. Quantities below one are sent as one.
func (c *Client) AddToCart(ctx context.Context, productID string, quantity int) (*RemoteCart, error) {
	if quantity < 1 {
		quantity = 1
	}
	query := url.Values{"quantity": []string{strconv.Itoa(quantity)}}
	return c.cartCall(ctx, opAdd, http.MethodPost, "/add/"+url.PathEscape(productID), query)
}

// GetCart returns the current cart, or nil when the backend has none yet.
func (c *Client) GetCart(ctx context.Context) (*RemoteCart, error) {
	status, body, err := c.do(ctx, opGet, http.MethodGet, "", nil)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, nil
	}
	if err := checkStatus(opGet, status, body); err != nil {
		return nil, err
	}
	return decodeCart(opGet, body)
}

func (c *Client) RemoveFromCart(ctx context.Context, productID string) (*RemoteCart, error) {
	return c.cartCall(ctx, opRemove, http.MethodDelete, "/remove/"+url.PathEscape(productID), nil)
}

func (c *Client) UpdateQuantity(ctx context.Context, productID string, quantity int) (*RemoteCart, error) {
	query := url.Values{"quantity": []string{strconv.Itoa(quantity)}}
	return c.cartCall(ctx, opQuantity, http.MethodPut, "/update/"+url.PathEscape(productID), query)
}

func (c *Client) UpdateSize(ctx context.Context, productID, size string) (*RemoteCart, error) {
	query := url.Values{"size": []string{size}}
	return c.cartCall(ctx, opSize, http.MethodPut, "/size/"+url.PathEscape(productID), query)
}

// ClearCart empties the remote cart and returns the backend confirmation.
func (c *Client) ClearCart(ctx context.Context) (string, error) {
	status, body, err := c.do(ctx, opClear, http.MethodDelete, "/clear", nil)
	if err != nil {
		return "", err
	}
	if err := checkStatus(opClear, status, body); err != nil {
		return "", err
	}
	if msg := backendMessage(body); msg != "" {
		return msg, nil
	}
	return "Cart cleared", nil
}

func (c *Client) cartCall(ctx context.Context, op operation, method, path string, query url.Values) (*RemoteCart, error) {
	status, body, err := c.do(ctx, op, method, path, query)
	if err != nil {
		return nil, err
	}
	if err := checkStatus(op, status, body); err != nil {
		return nil, err
	}
	return decodeCart(op, body)
}

func (c *Client) do(ctx context.Context, op operation, method, path string, query url.Values) (int, []byte, error) {
	token := strings.TrimSpace(c.tokens.Token())
	if token == "" {
		return 0, nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, ErrNoToken, "authentication required")
	}

	endpoint := c.baseURL + cartPath + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, nil)
	if err != nil {
		return 0, nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, fmt.Sprintf("build %s request", op.name))
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, pkgerrors.Wrap(pkgerrors.CodeTransport, err, op.failure)
	}
	defer func() { _ = resp.Body.Close() }()

	limit := responseBodyReadLimit
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		limit = errorBodyReadLimit
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		return 0, nil, pkgerrors.Wrap(pkgerrors.CodeTransport, err, op.failure)
	}
	return resp.StatusCode, body, nil
}

func checkStatus(op operation, status int, body []byte) error {
	switch {
	case status == http.StatusUnauthorized:
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	case status < 200 || status > 299:
		message := backendMessage(body)
		if message == "" {
			message = op.failure
		}
		return pkgerrors.New(pkgerrors.CodeOperationFailed, message).
			WithDetails(map[string]any{"status": status, "operation": op.name})
	}
	return nil
}

func decodeCart(op operation, body []byte) (*RemoteCart, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return &RemoteCart{}, nil
	}
	var cart RemoteCart
	if err := json.Unmarshal(body, &cart); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeOperationFailed, err, op.failure)
	}
	return &cart, nil
}

// backendMessage extracts a message from a JSON {"error"|"message"} body or
// returns the plain-text body.
func backendMessage(body []byte) string {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return ""
	}
	if trimmed[0] == '{' {
		var payload struct {
			Error   json.RawMessage `json:"error"`
			Message string          `json:"message"`
		}
		if err := json.Unmarshal(trimmed, &payload); err != nil {
			return ""
		}
		if msg := nestedMessage(payload.Error); msg != "" {
			return msg
		}
		return strings.TrimSpace(payload.Message)
	}
	if trimmed[0] == '[' {
		return ""
	}
	text := strings.TrimSpace(string(trimmed))
	if unquoted, err := strconv.Unquote(text); err == nil {
		return strings.TrimSpace(unquoted)
	}
	return text
}

func nestedMessage(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return strings.TrimSpace(text)
	}
	var nested struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &nested); err == nil {
		return strings.TrimSpace(nested.Message)
	}
	return ""
}
