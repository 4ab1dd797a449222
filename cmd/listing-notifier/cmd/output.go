package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"
	"unicode/utf8"

	"github.com/donaldgifford/listing-notifier/internal/api/handlers"
	domain "github.com/donaldgifford/listing-notifier/pkg/types"
)

// tabWriter wraps tabwriter with error tracking.
type tabWriter struct {
	*tabwriter.Writer
	err error
}

func newTabWriter(w io.Writer) *tabWriter {
	return &tabWriter{Writer: tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)}
}

func (tw *tabWriter) writef(format string, args ...any) {
	if tw.err != nil {
		return
	}
	_, tw.err = fmt.Fprintf(tw.Writer, format, args...)
}

func (tw *tabWriter) finish() error {
	if tw.err != nil {
		return tw.err
	}
	return tw.Flush()
}

func printListingsTable(w io.Writer, query string, listings []domain.Listing) error {
	tw := newTabWriter(w)
	tw.writef("# %s (%d)\n", query, len(listings))
	tw.writef("ID\tTITLE\tPRICE\tPOSTED\tLOCATION\n")
	for i := range listings {
		posted := "-"
		if listings[i].PostedAt != nil {
			posted = listings[i].PostedAt.Local().Format("2006-01-02 15:04")
		}
		tw.writef("%s\t%s\t$%s\t%s\t%s\n",
			listings[i].ID,
			truncate(listings[i].Title, 50),
			listings[i].PriceString(),
			posted,
			listings[i].Location(),
		)
	}
	return tw.finish()
}

func printStatus(w io.Writer, st *domain.Status, ready bool) error {
	tw := newTabWriter(w)
	tw.writef("Ready:\t%v\n", ready)
	tw.writef("Score:\t%d/%d\n", st.Score, st.FatalCeiling)
	tw.writef("Consecutive failures:\t%d\n", st.Failures)
	tw.writef("Iterations:\t%d\n", st.Iterations)
	last := "never"
	if st.LastIterationAt != nil {
		last = st.LastIterationAt.Local().Format(time.RFC3339)
	}
	tw.writef("Last iteration:\t%s\n", last)
	if st.LastError != "" {
		tw.writef("Last error:\t%s\n", st.LastError)
	}
	tw.writef("\nQUERY\tSEEN\n")
	for _, q := range st.Queries {
		tw.writef("%s\t%d\n", q.Key, q.Seen)
	}
	return tw.finish()
}

func printQueriesTable(w io.Writer, qs []handlers.QueryView) error {
	tw := newTabWriter(w)
	tw.writef("KEY\tTERMS\n")
	for i := range qs {
		tw.writef("%s\t%s\n", qs[i].Key, qs[i].Query.Terms)
	}
	return tw.finish()
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n-1]) + "…"
}
