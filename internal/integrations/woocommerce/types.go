// internal/integrations/woocommerce/types.go
package woocommerce

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/bartek5186/woo2mag/internal/integrations"
	"github.com/shopspring/decimal"
)

type wcProduct struct {
	ID         int64                   `json:"id"`
	Name       string                  `json:"name"`
	Type       string                  `json:"type"` // "simple","variable", etc.
	SKU        string                  `json:"sku"`
	Price      wcPrice                 `json:"price"` // string w Woo
	Status     string                  `json:"status"`
	Categories []integrations.Category `json:"categories"`
	Images     []integrations.Image    `json:"images"`
}

type wcVariation struct {
	ID         int64                    `json:"id"`
	SKU        string                   `json:"sku"`
	Price      wcPrice                  `json:"price"`
	Status     string                   `json:"status"`
	Visible    *bool                    `json:"visible"`
	Attributes []integrations.Attribute `json:"attributes"`
	Image      json.RawMessage          `json:"image"` // obiekt, null albo [] (starsze Woo)
}

// wcPrice: "12.50", "", 12.5 albo null
type wcPrice struct {
	decimal.Decimal
}

func (p *wcPrice) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		p.Decimal = decimal.Zero
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		p.Decimal = parsePrice(s)
		return nil
	}
	d, err := decimal.NewFromString(string(b))
	if err != nil {
		return fmt.Errorf("price %s: %w", b, err)
	}
	p.Decimal = d
	return nil
}

// pomocniczo: Woo trzyma ceny jako string
func parsePrice(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func (p wcProduct) toRemote() integrations.RemoteProduct {
	return integrations.RemoteProduct{
		ID:         p.ID,
		Name:       p.Name,
		Type:       p.Type,
		SKU:        p.SKU,
		Price:      p.Price.Decimal,
		Categories: p.Categories,
		Images:     p.Images,
		Status:     p.Status,
	}
}

func (v wcVariation) toRemote(parentID int64) integrations.RemoteVariation {
	out := integrations.RemoteVariation{
		ID:         v.ID,
		ParentID:   parentID,
		SKU:        v.SKU,
		Price:      v.Price.Decimal,
		Attributes: v.Attributes,
		Status:     v.Status,
		Visible:    v.Visible,
	}
	raw := bytes.TrimSpace(v.Image)
	if len(raw) > 0 && raw[0] == '{' {
		var img integrations.Image
		if err := json.Unmarshal(raw, &img); err == nil && img.Src != "" {
			out.Image = &img
		}
	}
	return out
}

// błąd REST API WordPressa
type apiError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *apiError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("woocommerce: http %d", e.Status)
	}
	return fmt.Sprintf("woocommerce: http %d %s: %s", e.Status, e.Code, e.Message)
}

// Woo zwraca 400 dla strony poza zakresem
func (e *apiError) endOfPages() bool {
	return e.Code == "rest_post_invalid_page_number"
}
