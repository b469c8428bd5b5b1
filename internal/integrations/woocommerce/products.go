package woocommerce

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/bartek5186/woo2mag/internal/integrations"
)

// FetchProductsPage - jedna strona /products, rosnąco po id żeby stronicowanie
// nie przesuwało się przy nowych produktach w trakcie przebiegu
func (c *Client) FetchProductsPage(ctx context.Context, pageSize, page int, f integrations.Filters) integrations.ProductPage {
	q := url.Values{}
	q.Set("per_page", strconv.Itoa(pageSize))
	q.Set("page", strconv.Itoa(page))
	q.Set("orderby", "id")
	q.Set("order", "asc")
	if f.Status != "" {
		q.Set("status", f.Status)
	}
	if c.cfg.Fields != "" {
		q.Set("_fields", c.cfg.Fields)
	}

	resp, err := c.get(ctx, "products", q)
	if err != nil {
		var ae *apiError
		if errors.As(err, &ae) && ae.endOfPages() {
			return integrations.ProductPage{Outcome: integrations.OutcomeEndOfData, Total: -1}
		}
		c.log.Warn().Err(err).Int("page", page).Msg("products page failed")
		return integrations.ProductPage{Outcome: integrations.OutcomeFailed, Err: fmt.Errorf("products page %d: %w", page, err), Total: -1}
	}

	var items []wcProduct
	if err := json.Unmarshal(resp.body, &items); err != nil {
		c.log.Warn().Err(err).Int("page", page).Msg("products page: invalid JSON")
		return integrations.ProductPage{Outcome: integrations.OutcomeFailed, Err: fmt.Errorf("decode page %d: %w", page, err), Total: -1}
	}

	total := -1
	if v, err := strconv.Atoi(resp.header.Get("X-WP-Total")); err == nil {
		total = v
	}
	if len(items) == 0 {
		return integrations.ProductPage{Outcome: integrations.OutcomeEndOfData, Total: total}
	}

	out := make([]integrations.RemoteProduct, 0, len(items))
	for _, p := range items {
		out = append(out, p.toRemote())
	}
	return integrations.ProductPage{Items: out, Outcome: integrations.OutcomeOK, Total: total}
}

// FetchVariations - wszystkie warianty produktu (własne stronicowanie per produkt)
func (c *Client) FetchVariations(ctx context.Context, productID int64, f integrations.Filters) integrations.VariationPage {
	var out []integrations.RemoteVariation
	endpoint := fmt.Sprintf("products/%d/variations", productID)

	for page := 1; page <= c.cfg.MaxVariationPages; page++ {
		q := url.Values{}
		q.Set("per_page", strconv.Itoa(c.cfg.VariationPageSize))
		q.Set("page", strconv.Itoa(page))
		if f.Status != "" {
			q.Set("status", f.Status)
		}

		resp, err := c.get(ctx, endpoint, q)
		if err != nil {
			var ae *apiError
			if errors.As(err, &ae) && ae.endOfPages() {
				break
			}
			c.log.Warn().Err(err).Int64("product_id", productID).Int("page", page).Msg("variations failed")
			return integrations.VariationPage{Outcome: integrations.OutcomeFailed, Err: fmt.Errorf("variations of %d: %w", productID, err)}
		}

		var items []wcVariation
		if err := json.Unmarshal(resp.body, &items); err != nil {
			return integrations.VariationPage{Outcome: integrations.OutcomeFailed, Err: fmt.Errorf("decode variations of %d: %w", productID, err)}
		}
		for _, v := range items {
			out = append(out, v.toRemote(productID))
		}
		if len(items) < c.cfg.VariationPageSize {
			break
		}
		if page == c.cfg.MaxVariationPages {
			c.log.Warn().Int64("product_id", productID).Int("pages", page).Msg("variations truncated at max_variation_pages")
		}
	}

	if len(out) == 0 {
		return integrations.VariationPage{Outcome: integrations.OutcomeEndOfData}
	}
	return integrations.VariationPage{Items: out, Outcome: integrations.OutcomeOK}
}

func (c *Client) FetchProduct(ctx context.Context, id int64) (*integrations.RemoteProduct, error) {
	resp, err := c.get(ctx, fmt.Sprintf("products/%d", id), nil)
	if err != nil {
		return nil, notFound(err)
	}
	var p wcProduct
	if err := json.Unmarshal(resp.body, &p); err != nil {
		return nil, fmt.Errorf("decode product %d: %w", id, err)
	}
	rp := p.toRemote()
	return &rp, nil
}

func (c *Client) FetchVariation(ctx context.Context, productID, variationID int64) (*integrations.RemoteVariation, error) {
	resp, err := c.get(ctx, fmt.Sprintf("products/%d/variations/%d", productID, variationID), nil)
	if err != nil {
		return nil, notFound(err)
	}
	var v wcVariation
	if err := json.Unmarshal(resp.body, &v); err != nil {
		return nil, fmt.Errorf("decode variation %d: %w", variationID, err)
	}
	rv := v.toRemote(productID)
	return &rv, nil
}

func notFound(err error) error {
	var ae *apiError
	if errors.As(err, &ae) && ae.Status == http.StatusNotFound {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return err
}
