// Package main implements a mock classifieds site for local development.
// It renders search pages from a JSON fixture in the same shape the real
// site uses, so the poll loop can run end to end without network access.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
)

// listing is one fixture entry. Fields are kept raw so the mock emits the
// same mixed string/number encodings the real site does.
type listing struct {
	ID          json.RawMessage `json:"id"`
	Title       string          `json:"title"`
	City        string          `json:"city,omitempty"`
	State       string          `json:"state,omitempty"`
	Description string          `json:"description,omitempty"`
	Price       json.RawMessage `json:"price,omitempty"`
	DisplayTime string          `json:"displayTime,omitempty"`
	ListingType json.RawMessage `json:"listingType,omitempty"`
}

// key returns the listing id without JSON quoting.
func (l listing) key() string {
	return strings.Trim(string(l.ID), `"`)
}

// price returns the numeric price, or -1 when absent or unparseable.
func (l listing) price() float64 {
	if len(l.Price) == 0 {
		return -1
	}
	v, err := strconv.ParseFloat(strings.Trim(string(l.Price), `"`), 64)
	if err != nil {
		return -1
	}
	return v
}

type searchParams struct {
	keyword   string
	priceFrom float64
	priceTo   float64
	perPage   int
}

const searchPage = `<!DOCTYPE html>
<html>
<head><title>%s - Classifieds</title></head>
<body>
<div id="search-results"></div>
<script>
window.renderSearchSection(%s, document.getElementById("search-results"));
</script>
</body>
</html>
`

var listingPage = template.Must(template.New("listing").Parse(`<!DOCTYPE html>
<html>
<head><title>{{.Title}} - Classifieds</title></head>
<body>
<h1>{{.Title}}</h1>
<p>{{.City}}, {{.State}}</p>
<p>{{.Description}}</p>
</body>
</html>
`))

func main() {
	port := flag.Int("port", 8089, "port to listen on")
	fixtureFile := flag.String("fixture", "tools/mock-server/testdata/listings.json", "path to listings fixture")
	failEvery := flag.Int("fail-every", 0, "answer every Nth search with 503 (0 disables)")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	fixture, err := loadFixture(*fixtureFile)
	if err != nil {
		logger.Error("failed to load fixture", "path", *fixtureFile, "error", err)
		os.Exit(1)
	}
	logger.Info("loaded fixture", "listings", len(fixture))

	addr := fmt.Sprintf(":%d", *port)
	logger.Info("starting mock classifieds server", "addr", addr)

	srv := &http.Server{
		Addr:         addr,
		Handler:      requestLogger(logger, newMux(logger, fixture, *failEvery)),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	if err := srv.ListenAndServe(); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func newMux(logger *slog.Logger, fixture []listing, failEvery int) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /search/{params...}", searchHandler(logger, fixture, failEvery))
	mux.HandleFunc("GET /listing/{id}", listingHandler(logger, fixture))
	return mux
}

func loadFixture(path string) ([]listing, error) {
	data, err := os.ReadFile(path) //nolint:gosec // fixture path from trusted CLI flag
	if err != nil {
		return nil, fmt.Errorf("reading fixture: %w", err)
	}
	var listings []listing
	if err := json.Unmarshal(data, &listings); err != nil {
		return nil, fmt.Errorf("parsing fixture: %w", err)
	}
	return listings, nil
}

func requestLogger(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.Debug("request", "method", r.Method, "path", r.URL.Path, "user_agent", r.UserAgent())
		next.ServeHTTP(w, r)
	})
}

// parseSearchPath reads key/value path segments such as
// keyword/iphone/priceTo/500/perPage/24.
func parseSearchPath(path string) searchParams {
	p := searchParams{priceFrom: -1, priceTo: -1}
	segs := strings.Split(strings.Trim(path, "/"), "/")
	for i := 0; i+1 < len(segs); i += 2 {
		v, err := url.PathUnescape(segs[i+1])
		if err != nil {
			continue
		}
		switch segs[i] {
		case "keyword":
			p.keyword = strings.ToLower(v)
		case "priceFrom":
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				p.priceFrom = f
			}
		case "priceTo":
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				p.priceTo = f
			}
		case "perPage":
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				p.perPage = n
			}
		}
	}
	return p
}

func (p searchParams) match(l listing) bool {
	if p.keyword != "" && !strings.Contains(strings.ToLower(l.Title), p.keyword) {
		return false
	}
	price := l.price()
	if p.priceFrom >= 0 && price >= 0 && price < p.priceFrom {
		return false
	}
	if p.priceTo >= 0 && price >= 0 && price > p.priceTo {
		return false
	}
	return true
}

func searchHandler(logger *slog.Logger, fixture []listing, failEvery int) http.HandlerFunc {
	var requests atomic.Int64

	return func(w http.ResponseWriter, r *http.Request) {
		n := requests.Add(1)
		if failEvery > 0 && n%int64(failEvery) == 0 {
			logger.Warn("injected failure", "request", n)
			http.Error(w, "service unavailable", http.StatusServiceUnavailable)
			return
		}

		// PathValue is already unescaped, so split the raw path instead.
		params := parseSearchPath(strings.TrimPrefix(r.URL.EscapedPath(), "/search"))

		matched := make([]listing, 0, len(fixture))
		for _, l := range fixture {
			if params.match(l) {
				matched = append(matched, l)
			}
		}
		total := len(matched)
		if params.perPage > 0 && len(matched) > params.perPage {
			matched = matched[:params.perPage]
		}

		payload, err := json.Marshal(map[string]any{
			"listings":   matched,
			"totalCount": total,
		})
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		//nolint:errcheck,gosec // best-effort write to HTTP response in mock server
		fmt.Fprintf(w, searchPage, template.HTMLEscapeString(params.keyword), payload)
		logger.Info("search", "keyword", params.keyword, "matched", total, "returned", len(matched))
	}
}

func listingHandler(logger *slog.Logger, fixture []listing) http.HandlerFunc {
	byID := make(map[string]listing, len(fixture))
	for _, l := range fixture {
		byID[l.key()] = l
	}

	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		l, ok := byID[id]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := listingPage.Execute(w, l); err != nil {
			logger.Error("rendering listing", "id", id, "error", err)
		}
	}
}
