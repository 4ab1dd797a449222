package source_test

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/donaldgifford/listing-notifier/internal/source"
)

func loadFixture(t *testing.T) []byte {
	t.Helper()
	data, err := os.ReadFile("testdata/search.html")
	require.NoError(t, err)
	return data
}

func TestParseSearchPage(t *testing.T) {
	t.Parallel()

	listings, err := source.ParseSearchPage(loadFixture(t), "https://example.test/listing")
	require.NoError(t, err)
	require.Len(t, listings, 3)

	first := listings[0]
	assert.Equal(t, "6101", first.ID)
	assert.Equal(t, "iPhone 12 mini", first.Title)
	assert.Equal(t, "https://example.test/listing/6101", first.URL)
	require.NotNil(t, first.Price)
	assert.InDelta(t, 350.0, *first.Price, 0.001)
	assert.Equal(t, "Orem", first.City)
	assert.Equal(t, "UT", first.State)
	require.NotNil(t, first.PostedAt)
	assert.Equal(t, time.Date(2025, 3, 1, 11, 30, 0, 0, time.UTC), *first.PostedAt)

	// Missing price means free.
	require.NotNil(t, listings[1].Price)
	assert.Zero(t, *listings[1].Price)

	// Unparsable time leaves PostedAt unset.
	assert.Equal(t, "6103", listings[2].ID)
	assert.Nil(t, listings[2].PostedAt)
	assert.InDelta(t, 899.5, *listings[2].Price, 0.001)
}

func TestParseSearchPage_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		page string
	}{
		{
			name: "no payload script",
			page: `<html><body><script>var x = 1;</script></body></html>`,
		},
		{
			name: "empty document",
			page: ``,
		},
		{
			name: "payload outside a script",
			page: `<html><body><p>window.renderSearchSection({"listings":[]})</p></body></html>`,
		},
		{
			name: "malformed json",
			page: `<script>window.renderSearchSection({"listings":[{)</script>`,
		},
		{
			name: "missing listings field",
			page: `<script>window.renderSearchSection({"totalCount":0})</script>`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			listings, err := source.ParseSearchPage([]byte(tt.page), source.DefaultListingURL)
			require.Error(t, err)
			require.ErrorIs(t, err, source.ErrUnexpectedShape)
			assert.Nil(t, listings)
		})
	}
}

func TestParseSearchPage_EmptyListings(t *testing.T) {
	t.Parallel()

	page := `<script>window.renderSearchSection({"listings":[]}, el)</script>`
	listings, err := source.ParseSearchPage([]byte(page), source.DefaultListingURL)
	require.NoError(t, err)
	assert.Empty(t, listings)
}

func TestParseSearchPage_Prices(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		price     string
		wantPrice *float64
	}{
		{name: "missing", price: ``, wantPrice: ptr(0.0)},
		{name: "null", price: `,"price":null`, wantPrice: ptr(0.0)},
		{name: "empty string", price: `,"price":""`, wantPrice: ptr(0.0)},
		{name: "number", price: `,"price":350`, wantPrice: ptr(350.0)},
		{name: "numeric string", price: `,"price":"$1,200"`, wantPrice: ptr(1200.0)},
		{name: "best offer", price: `,"price":"Best offer"`},
		{name: "contact seller", price: `,"price":"Contact"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			page := `<script>window.renderSearchSection({"listings":[{"id":"6201","title":"Bike"` +
				tt.price + `}]})</script>`
			listings, err := source.ParseSearchPage([]byte(page), source.DefaultListingURL)
			require.NoError(t, err)
			require.Len(t, listings, 1)

			got := listings[0]
			if tt.wantPrice == nil {
				assert.Nil(t, got.Price, "non-numeric price is unknown, not free")
				assert.Equal(t, "-", got.PriceString())
				return
			}
			require.NotNil(t, got.Price)
			assert.InDelta(t, *tt.wantPrice, *got.Price, 0.001)
		})
	}
}

func ptr(v float64) *float64 { return &v }
