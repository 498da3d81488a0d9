package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"

	"github.com/utafrali/storefront/internal/domain"
	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/httpclient"
)

const serviceName = "catalog"

// Client looks products up in the catalog service over HTTP. Calls go through
// a circuit breaker; while it is open lookups fail fast with 503.
type Client struct {
	http    *httpclient.CircuitBreakerClient
	baseURL string
}

// NewClient creates a catalog client rooted at baseURL.
func NewClient(hc *httpclient.CircuitBreakerClient, baseURL string) *Client {
	return &Client{http: hc, baseURL: strings.TrimRight(baseURL, "/")}
}

type productImage struct {
	URL string `json:"url"`
}

// productPayload is the catalog's product document. Prices arrive as decimal
// amounts in major units.
type productPayload struct {
	ID      string          `json:"id"`
	MongoID string          `json:"_id"`
	Name    string          `json:"name"`
	Price   decimal.Decimal `json:"price"`
	Images  []productImage  `json:"images"`
	Sizes   []string        `json:"sizes"`
	Colors  []string        `json:"colors"`
}

// FindByID returns the product with the given id, or NotFound.
func (c *Client) FindByID(ctx context.Context, id string) (*domain.Product, error) {
	endpoint := c.baseURL + "/api/products/" + url.PathEscape(id)

	resp, err := c.http.Get(ctx, endpoint)
	if err != nil {
		if errors.Is(err, httpclient.ErrCircuitOpen) {
			return nil, apperrors.ServiceUnavailable("product catalog is unavailable")
		}
		return nil, fmt.Errorf("fetch product %s: %w", id, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, httpclient.ParseResponseError(resp, serviceName, "product", id)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read product %s: %w", id, err)
	}

	payload, err := decodeProduct(body)
	if err != nil {
		return nil, fmt.Errorf("decode product %s: %w", id, err)
	}
	return payload.toDomain(id)
}

// Check fails while the breaker is open. It is a readiness probe and makes
// no upstream call.
func (c *Client) Check(context.Context) error {
	if c.http.State() == gobreaker.StateOpen {
		return fmt.Errorf("%s: %w", serviceName, httpclient.ErrCircuitOpen)
	}
	return nil
}

// decodeProduct accepts a bare product document or one wrapped in {"data": ...}.
func decodeProduct(body []byte) (*productPayload, error) {
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, err
	}
	if len(envelope.Data) > 0 && !bytes.Equal(envelope.Data, []byte("null")) {
		body = envelope.Data
	}

	var p productPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (p *productPayload) toDomain(requestedID string) (*domain.Product, error) {
	if p.Price.IsNegative() {
		return nil, fmt.Errorf("product %s has negative price %s", requestedID, p.Price)
	}

	id := p.ID
	if id == "" {
		id = p.MongoID
	}
	if id == "" {
		id = requestedID
	}

	product := &domain.Product{
		ID:     id,
		Name:   p.Name,
		Price:  ToCents(p.Price),
		Sizes:  p.Sizes,
		Colors: p.Colors,
	}
	if len(p.Images) > 0 {
		product.Image = p.Images[0].URL
	}
	return product, nil
}

// ToCents converts a major-unit amount to integer cents, rounding half away
// from zero.
func ToCents(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}
