package source

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html"

	domain "github.com/donaldgifford/listing-notifier/pkg/types"
)

const (
	payloadMarker     = "window.renderSearchSection"
	payloadOpen       = "renderSearchSection("
	displayTimeLayout = "2006-01-02T15:04:05Z"
)

// searchPayload is the object passed to renderSearchSection in the page.
type searchPayload struct {
	Listings *[]rawListing `json:"listings"`
}

type rawListing struct {
	ID          flexString      `json:"id"`
	Title       string          `json:"title"`
	City        string          `json:"city"`
	State       string          `json:"state"`
	Description string          `json:"description"`
	Price       *flexFloat      `json:"price"`
	DisplayTime string          `json:"displayTime"`
	ListingType json.RawMessage `json:"listingType"`
}

// flexString accepts a JSON string or number.
type flexString string

func (s *flexString) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = flexString(v)
		return nil
	}
	if string(data) == "null" {
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*s = flexString(n.String())
	return nil
}

// flexFloat accepts a JSON number or a numeric string such as "1,200".
type flexFloat struct {
	value float64
	ok    bool
}

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(string(data), `"`)
	raw = strings.ReplaceAll(strings.TrimPrefix(raw, "$"), ",", "")
	if raw == "" || raw == "null" {
		f.ok = true
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		// Prices like "Best offer" carry no number; leave unknown.
		return nil //nolint:nilerr // non-numeric prices are not a shape error
	}
	f.value, f.ok = v, true
	return nil
}

// ParseSearchPage extracts listings from a search results page. The site
// embeds results as JSON passed to window.renderSearchSection in an inline
// script. Featured (promoted) listings are skipped; listings without a price
// are free and get price 0, while a price that is not a number leaves Price
// nil. listingURL is the prefix listing ids are appended to.
func ParseSearchPage(page []byte, listingURL string) ([]domain.Listing, error) {
	script, ok := findPayloadScript(page)
	if !ok {
		return nil, fmt.Errorf("%w: search payload script not found", ErrUnexpectedShape)
	}

	start := strings.Index(script, payloadOpen)
	if start < 0 {
		return nil, fmt.Errorf("%w: search payload call malformed", ErrUnexpectedShape)
	}

	// The payload is the call's first argument; anything after it (a target
	// element, the closing paren) is ignored.
	var payload searchPayload
	dec := json.NewDecoder(strings.NewReader(script[start+len(payloadOpen):]))
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: decoding search payload: %w", ErrUnexpectedShape, err)
	}
	if payload.Listings == nil {
		return nil, fmt.Errorf("%w: search payload has no listings field", ErrUnexpectedShape)
	}

	prefix := strings.TrimRight(listingURL, "/") + "/"
	raws := *payload.Listings
	listings := make([]domain.Listing, 0, len(raws))
	for i := range raws {
		r := &raws[i]
		if r.ID == "" || bytes.Contains(r.ListingType, []byte("featured")) {
			continue
		}
		listings = append(listings, toListing(r, prefix))
	}
	return listings, nil
}

func toListing(r *rawListing, prefix string) domain.Listing {
	l := domain.Listing{
		ID:          string(r.ID),
		Title:       strings.TrimSpace(r.Title),
		URL:         prefix + string(r.ID),
		Description: r.Description,
		City:        r.City,
		State:       r.State,
	}
	switch {
	case r.Price == nil:
		free := 0.0
		l.Price = &free
	case r.Price.ok:
		price := r.Price.value
		l.Price = &price
	}
	if t, err := time.Parse(displayTimeLayout, r.DisplayTime); err == nil {
		t = t.UTC()
		l.PostedAt = &t
	}
	return l
}

// findPayloadScript walks the document's inline scripts looking for the one
// that renders the search section.
func findPayloadScript(page []byte) (string, bool) {
	z := html.NewTokenizer(bytes.NewReader(page))
	inScript := false
	for {
		switch z.Next() {
		case html.ErrorToken:
			return "", false
		case html.StartTagToken:
			name, _ := z.TagName()
			inScript = string(name) == "script"
		case html.EndTagToken:
			inScript = false
		case html.TextToken:
			if !inScript {
				continue
			}
			text := string(z.Text())
			if strings.Contains(text, payloadMarker) {
				return text, true
			}
		}
	}
}
