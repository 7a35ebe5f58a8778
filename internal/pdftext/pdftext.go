// Package pdftext reads the text layer of PDF documents page by page.
package pdftext

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ErrUnreadable is returned when the PDF reader fails or panics on a document.
var ErrUnreadable = errors.New("pdf text layer unreadable")

// Document is a source of per-page text fragments. Pages are numbered from 1.
type Document interface {
	NumPage() int
	// PageFragments returns the text runs of page i in content order.
	// A page without content yields no runs.
	PageFragments(i int) []string
}

type pdfDocument struct {
	r *pdf.Reader
}

func (d *pdfDocument) NumPage() int { return d.r.NumPage() }

func (d *pdfDocument) PageFragments(i int) []string {
	p := d.r.Page(i)
	if p.V.IsNull() {
		return nil
	}
	return Runs(p.Content().Text)
}

// rowTolerance is how far apart two baselines may be and still count as one line.
const rowTolerance = 2.0

// Runs rebuilds text runs from the per-glyph output of the PDF reader.
// Glyphs are concatenated as they come; a new run starts when the baseline
// moves, when the next glyph lands past the end of the previous one, or when
// the reader reports a line break. Runs are trimmed and empty runs dropped.
func Runs(texts []pdf.Text) []string {
	var (
		runs []string
		cur  strings.Builder
		prev *pdf.Text
	)
	flush := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			runs = append(runs, s)
		}
		cur.Reset()
	}

	for i := range texts {
		t := &texts[i]
		if strings.ContainsAny(t.S, "\r\n") {
			flush()
			prev = nil
			continue
		}
		if prev != nil && breaksRun(prev, t) {
			flush()
		}
		cur.WriteString(t.S)
		prev = t
	}
	flush()
	return runs
}

// breaksRun reports whether t starts a new run after prev.
// Fonts without a widths table report W == 0 and do not advance X.
func breaksRun(prev, t *pdf.Text) bool {
	if math.Abs(t.Y-prev.Y) > rowTolerance {
		return true
	}
	gap := math.Abs(prev.FontSize) * 0.25
	if gap < 1 {
		gap = 1
	}
	return t.X > prev.X+prev.W+gap || t.X < prev.X-gap
}

// Text concatenates the text layer of doc. Runs within a page are joined
// by one space and pages are appended with no separator, in page order.
// Cancellation is checked before each page.
func Text(ctx context.Context, doc Document) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = fmt.Errorf("%w: %v", ErrUnreadable, r)
		}
	}()

	var b strings.Builder
	n := doc.NumPage()
	for i := 1; i <= n; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		b.WriteString(strings.Join(doc.PageFragments(i), " "))
	}
	return b.String(), nil
}

// ExtractFile opens the PDF at path and returns its text layer.
func ExtractFile(ctx context.Context, path string) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = fmt.Errorf("%w: %v", ErrUnreadable, r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("%w: open %s: %v", ErrUnreadable, path, err)
	}
	defer f.Close()

	return Text(ctx, &pdfDocument{r: r})
}

// ExtractReader reads a PDF of the given size from r and returns its text layer.
func ExtractReader(ctx context.Context, r io.ReaderAt, size int64) (text string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			text = ""
			err = fmt.Errorf("%w: %v", ErrUnreadable, rec)
		}
	}()

	pr, err := pdf.NewReader(r, size)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnreadable, err)
	}

	return Text(ctx, &pdfDocument{r: pr})
}
