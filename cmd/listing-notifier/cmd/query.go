package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	domain "github.com/donaldgifford/listing-notifier/pkg/types"
)

// queryFlags are the search filters shared by every positional query term.
type queryFlags struct {
	category     string
	subCategory  string
	minPrice     int
	maxPrice     int
	zip          string
	city         string
	state        string
	miles        int
	perPage      int
	reverse      bool
	includeSold  bool
	expandSearch bool
}

func (f *queryFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVarP(&f.category, "category", "c", "", "category to search in")
	fs.StringVarP(&f.subCategory, "subcategory", "u", "", "subcategory to search in")
	fs.IntVarP(&f.minPrice, "min-price", "m", 0, "minimum price")
	fs.IntVarP(&f.maxPrice, "max-price", "M", 0, "maximum price")
	fs.StringVarP(&f.zip, "zip", "z", "", "zip code to search around")
	fs.StringVar(&f.city, "city", "", "city to search in")
	fs.StringVar(&f.state, "state", "", "state to search in (defaults to the site default when a city is given)")
	fs.IntVarP(&f.miles, "miles", "d", 0, "radius in miles around the zip code")
	fs.IntVarP(&f.perPage, "per-page", "n", 0, "results per page")
	fs.BoolVarP(&f.reverse, "reverse", "r", false, "oldest listings first")
	fs.BoolVarP(&f.includeSold, "sold", "s", false, "include sold listings")
	fs.BoolVarP(&f.expandSearch, "expand-search", "x", false, "let the site widen the search")
}

// queries builds one Query per non-blank term.
func (f *queryFlags) queries(terms []string) []domain.Query {
	out := make([]domain.Query, 0, len(terms))
	for _, t := range terms {
		if strings.TrimSpace(t) == "" {
			continue
		}
		out = append(out, domain.Query{
			Terms:        t,
			Category:     f.category,
			SubCategory:  f.subCategory,
			MinPrice:     f.minPrice,
			MaxPrice:     f.maxPrice,
			Zip:          f.zip,
			City:         f.city,
			State:        f.state,
			Miles:        f.miles,
			Reverse:      f.reverse,
			IncludeSold:  f.includeSold,
			ExpandSearch: f.expandSearch,
			PerPage:      f.perPage,
		}.Normalize())
	}
	return out
}
