package notify

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	domain "github.com/donaldgifford/listing-notifier/pkg/types"
)

const (
	blockRule    = "*************************"
	postedLayout = "2006-01-02 15:04"
	subjectClock = "15:04"
)

// RenderOptions controls how a batch is turned into messages.
type RenderOptions struct {
	// CharLimit caps Message.Size. Zero means a single message per batch.
	CharLimit int
	// HeadLines keeps only the first n lines of each description.
	HeadLines int
	// DescriptionChars keeps only the first n runes of each description.
	DescriptionChars int
	// ExcludeLinks drops the listing URL line.
	ExcludeLinks bool
}

// Renderer turns a NotificationBatch into one or more self-contained
// messages.
type Renderer struct {
	opts     RenderOptions
	nowFunc  func() time.Time
	location *time.Location
}

// RendererOption configures the Renderer.
type RendererOption func(*Renderer)

// WithRenderClock overrides the time used in subjects.
func WithRenderClock(f func() time.Time) RendererOption {
	return func(r *Renderer) {
		r.nowFunc = f
	}
}

// WithLocation sets the zone listing times and the subject clock are shown in.
func WithLocation(loc *time.Location) RendererOption {
	return func(r *Renderer) {
		r.location = loc
	}
}

// NewRenderer creates a Renderer.
func NewRenderer(opts RenderOptions, ropts ...RendererOption) *Renderer {
	r := &Renderer{
		opts:     opts,
		nowFunc:  time.Now,
		location: time.Local,
	}
	for _, o := range ropts {
		o(r)
	}
	return r
}

// Options returns the render options.
func (r *Renderer) Options() RenderOptions { return r.opts }

// Render splits listings into messages for query. Listings keep their order
// and never straddle two messages. With a CharLimit, every message fits the
// limit unless a single listing is larger on its own, in which case that
// listing is sent by itself. An empty batch renders no messages.
func (r *Renderer) Render(query string, listings []domain.Listing) []Message {
	if len(listings) == 0 {
		return nil
	}

	clock := r.nowFunc().In(r.location).Format(subjectClock)
	header := Header(query, len(listings))
	// Widest possible subject: n and total never exceed len(listings).
	fixed := len(Subject(query, clock, len(listings), len(listings))) + len(header) + len("\r\n\r\n")

	var (
		msgs   []Message
		report strings.Builder
		ids    []string
	)
	flush := func() {
		if len(ids) == 0 {
			return
		}
		msgs = append(msgs, Message{
			Body:       header + "\r\n\r\n" + report.String(),
			ListingIDs: ids,
		})
		report.Reset()
		ids = nil
	}

	for i := range listings {
		block := r.Block(&listings[i])
		if r.opts.CharLimit > 0 && fixed+report.Len()+len(block) > r.opts.CharLimit {
			flush()
		}
		report.WriteString(block)
		ids = append(ids, listings[i].ID)
	}
	flush()

	for i := range msgs {
		msgs[i].Subject = Subject(query, clock, i+1, len(msgs))
	}
	return msgs
}

// Block renders one listing.
func (r *Renderer) Block(l *domain.Listing) string {
	var b strings.Builder
	b.WriteString(blockRule)
	b.WriteByte('\n')
	if !r.opts.ExcludeLinks {
		b.WriteString(l.URL)
		b.WriteByte('\n')
	}
	b.WriteString(l.Title)
	b.WriteByte('\n')
	fmt.Fprintf(&b, "$%s - %s - %s\n", l.PriceString(), r.posted(l), l.Location())
	b.WriteString("*  ")
	b.WriteString(r.description(l.Description))
	b.WriteString("\n\n")
	return FoldASCII(b.String())
}

func (r *Renderer) posted(l *domain.Listing) string {
	if l.PostedAt == nil {
		return "-"
	}
	return l.PostedAt.In(r.location).Format(postedLayout)
}

func (r *Renderer) description(d string) string {
	if r.opts.HeadLines > 0 {
		lines := strings.Split(strings.TrimSpace(d), "\n")
		if len(lines) > r.opts.HeadLines {
			lines = lines[:r.opts.HeadLines]
		}
		d = strings.Join(lines, "\n")
	}
	if n := r.opts.DescriptionChars; n > 0 {
		if rs := []rune(d); len(rs) > n {
			d = string(rs[:n])
		}
	}
	return d
}

// Subject renders a message subject.
func Subject(query, clock string, n, total int) string {
	return fmt.Sprintf("%s search match at %s (%d of %d)", query, clock, n, total)
}

// Header renders the first line of a message body.
func Header(query string, count int) string {
	plural := ""
	if count != 1 {
		plural = "es"
	}
	return fmt.Sprintf("New match%s found for query %s", plural, query)
}

// FoldASCII strips accents and drops whatever is still not ASCII.
func FoldASCII(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.Map(func(r rune) rune {
		if r > unicode.MaxASCII {
			return -1
		}
		return r
	}, folded)
}
