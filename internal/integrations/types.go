// internal/integrations/types.go
package integrations

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	StatusPublish = "publish"
	TypeVariable  = "variable"
)

// Catalog - zdalny katalog produktów (tylko odczyt)
type Catalog interface {
	Name() string
	// TestConnectivity: nil = ok, treść błędu = komunikat dla użytkownika
	TestConnectivity(ctx context.Context) error
	FetchProductsPage(ctx context.Context, pageSize, page int, f Filters) ProductPage
	FetchVariations(ctx context.Context, productID int64, f Filters) VariationPage
	FetchProduct(ctx context.Context, id int64) (*RemoteProduct, error)
	FetchVariation(ctx context.Context, productID, variationID int64) (*RemoteVariation, error)
}

type Factory func(log zerolog.Logger, raw json.RawMessage) (Catalog, error)

type Filters struct {
	Status string // "publish" -> status=publish w zapytaniu
}

// Outcome rozróżnia "koniec danych" od "błędu pobrania"
type Outcome int

const (
	OutcomeOK Outcome = iota
	OutcomeEndOfData
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeEndOfData:
		return "end_of_data"
	case OutcomeFailed:
		return "failed"
	}
	return "unknown"
}

type ProductPage struct {
	Items   []RemoteProduct
	Outcome Outcome
	Err     error
	Total   int // X-WP-Total, -1 gdy nieznane
}

type VariationPage struct {
	Items   []RemoteVariation
	Outcome Outcome
	Err     error
}

type Category struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type Image struct {
	ID  int64  `json:"id"`
	Src string `json:"src"`
}

type Attribute struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Option string `json:"option"`
}

type RemoteProduct struct {
	ID         int64
	Name       string
	Type       string // simple / variable / grouped / external
	SKU        string
	Price      decimal.Decimal
	Categories []Category
	Images     []Image
	Status     string
}

func (p RemoteProduct) IsVariable() bool { return p.Type == TypeVariable }

func (p RemoteProduct) PrimaryCategory() string {
	if len(p.Categories) == 0 {
		return ""
	}
	return p.Categories[0].Name
}

func (p RemoteProduct) PrimaryImage() string {
	if len(p.Images) == 0 {
		return ""
	}
	return p.Images[0].Src
}

type RemoteVariation struct {
	ID         int64
	ParentID   int64
	SKU        string
	Price      decimal.Decimal
	Attributes []Attribute
	Image      *Image
	Status     string
	Visible    *bool // brak pola = nie filtrujemy
}

func (v RemoteVariation) IsPublished() bool { return v.Status == StatusPublish }

// IsVisible - brak informacji traktujemy jak widoczny
func (v RemoteVariation) IsVisible() bool { return v.Visible == nil || *v.Visible }

// Title: "Koszulka - Czerwony, XL"
func (v RemoteVariation) Title(parentName string) string {
	opts := make([]string, 0, len(v.Attributes))
	for _, a := range v.Attributes {
		if a.Option != "" {
			opts = append(opts, a.Option)
		}
	}
	if len(opts) == 0 {
		return parentName
	}
	return parentName + " - " + strings.Join(opts, ", ")
}

// ImageURL z fallbackiem na pierwsze zdjęcie rodzica
func (v RemoteVariation) ImageURL(parent RemoteProduct) string {
	if v.Image != nil && v.Image.Src != "" {
		return v.Image.Src
	}
	return parent.PrimaryImage()
}
