package integrations

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVariationTitle(t *testing.T) {
	v := RemoteVariation{Attributes: []Attribute{{Name: "Kolor", Option: "Red"}, {Name: "Rozmiar", Option: "XL"}}}
	assert.Equal(t, "Shirt - Red, XL", v.Title("Shirt"))
	assert.Equal(t, "Shirt", RemoteVariation{}.Title("Shirt"))
}

func TestVariationImageFallback(t *testing.T) {
	parent := RemoteProduct{Images: []Image{{Src: "parent.jpg"}, {Src: "second.jpg"}}}
	assert.Equal(t, "parent.jpg", RemoteVariation{}.ImageURL(parent))
	assert.Equal(t, "own.jpg", RemoteVariation{Image: &Image{Src: "own.jpg"}}.ImageURL(parent))
	assert.Equal(t, "parent.jpg", RemoteVariation{Image: &Image{}}.ImageURL(parent))
}

func TestVariationVisibility(t *testing.T) {
	no := false
	assert.True(t, RemoteVariation{}.IsVisible())
	assert.False(t, RemoteVariation{Visible: &no}.IsVisible())
	assert.True(t, RemoteVariation{Status: "publish"}.IsPublished())
	assert.False(t, RemoteVariation{Status: "private"}.IsPublished())
}

func TestProductHelpers(t *testing.T) {
	p := RemoteProduct{Type: "variable", Categories: []Category{{Name: "Odzież"}, {Name: "Inne"}}}
	assert.True(t, p.IsVariable())
	assert.Equal(t, "Odzież", p.PrimaryCategory())
	assert.Equal(t, "", RemoteProduct{}.PrimaryCategory())
	assert.Equal(t, "", RemoteProduct{}.PrimaryImage())
}

type nopCatalog struct{ name string }

func (n nopCatalog) Name() string { return n.name }
func (nopCatalog) TestConnectivity(context.Context) error { return nil }
func (nopCatalog) FetchProductsPage(context.Context, int, int, Filters) ProductPage {
	return ProductPage{Outcome: OutcomeEndOfData}
}
func (nopCatalog) FetchVariations(context.Context, int64, Filters) VariationPage {
	return VariationPage{Outcome: OutcomeEndOfData}
}
func (nopCatalog) FetchProduct(context.Context, int64) (*RemoteProduct, error) { return nil, nil }
func (nopCatalog) FetchVariation(context.Context, int64, int64) (*RemoteVariation, error) {
	return nil, nil
}

func TestRegistryBuild(t *testing.T) {
	Register("nop-test", func(_ zerolog.Logger, raw json.RawMessage) (Catalog, error) {
		var cfg struct{ Name string }
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return nil, err
		}
		return nopCatalog{name: cfg.Name}, nil
	})

	c, err := Build("nop-test", zerolog.Nop(), json.RawMessage(`{"Name":"x"}`))
	require.NoError(t, err)
	assert.Equal(t, "x", c.Name())
	assert.Contains(t, Names(), "nop-test")

	_, err = Build("nop-test", zerolog.Nop(), json.RawMessage(`{`))
	assert.Error(t, err)

	_, err = Build("missing", zerolog.Nop(), nil)
	assert.Error(t, err)
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "end_of_data", OutcomeEndOfData.String())
	assert.Equal(t, "failed", OutcomeFailed.String())
}
