package internal

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ErrNotPDF is returned for inputs that do not start with a PDF header.
var ErrNotPDF = errors.New("not a PDF file")

const (
	// glyphs whose baselines differ by less than this share a line
	lineTolerance = 2.0
	// horizontal gap, as a fraction of the font size, read as a word break
	wordGap = 0.25
	// bound on /Parent lookups when resolving an inherited MediaBox
	maxInheritDepth = 32
)

// ExtractPDF returns the plain text of the PDF at path. There is no OCR:
// image-only pages contribute nothing.
func (e *Extractor) ExtractPDF(ctx context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read pdf: %w", err)
	}
	if !bytes.HasPrefix(bytes.TrimLeft(data, "\x00\t\r\n "), []byte("%PDF")) {
		return "", fmt.Errorf("%s: %w", path, ErrNotPDF)
	}

	if pages, err := PageCount(data); err != nil {
		e.logger.Warn("[PDF] structure check failed, extracting anyway", "file", path, "error", err)
	} else {
		e.logger.Info("[PDF] reading document", "file", path, "pages", pages,
			"cropTop", e.cropTop, "cropBottom", e.cropBottom)
	}

	if err := ctx.Err(); err != nil {
		return "", err
	}

	text, err := e.plainText(data)
	if err != nil {
		return "", fmt.Errorf("extract text from %s: %w", path, err)
	}
	if text == "" {
		e.logger.Warn("[PDF] no extractable text, document may be scanned", "file", path)
	}
	return text, nil
}

func (e *Extractor) plainText(data []byte) (text string, err error) {
	// the reader panics on some malformed cross-reference tables
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf reader panic: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		lines, err := pageLines(page, e.cropTop, e.cropBottom)
		if err != nil {
			e.logger.Warn("[PDF] unreadable page skipped", "page", i, "error", err)
			continue
		}
		for _, line := range lines {
			sb.WriteString(line)
			sb.WriteString("\n")
		}
	}
	return strings.TrimSpace(sb.String()), nil
}

// pageLines positions every glyph on the page and groups them into lines in
// content stream order. With a non-zero crop, glyphs whose baseline falls
// within top points of the upper MediaBox edge or bottom points of the lower
// one are dropped, which removes running headers and footers.
func pageLines(page pdf.Page, top, bottom float64) (lines []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("content stream: %v", r)
		}
	}()

	low, high, hasBox := verticalBounds(page)
	crop := hasBox && (top > 0 || bottom > 0)

	var (
		line strings.Builder
		prev pdf.Text
		open bool
	)
	flush := func() {
		if s := strings.TrimSpace(line.String()); s != "" {
			lines = append(lines, s)
		}
		line.Reset()
		open = false
	}

	for _, t := range page.Content().Text {
		if crop && (t.Y > high-top || t.Y < low+bottom) {
			continue
		}
		if open && math.Abs(t.Y-prev.Y) > lineTolerance {
			flush()
		}
		// TJ arrays end with a synthetic newline glyph
		if t.S == "\n" {
			if open {
				spaceOnce(&line)
			}
			continue
		}
		if open && t.X-(prev.X+prev.W) > t.FontSize*wordGap {
			spaceOnce(&line)
		}
		line.WriteString(t.S)
		prev, open = t, true
	}
	flush()
	return lines, nil
}

func spaceOnce(b *strings.Builder) {
	if s := b.String(); s != "" && !strings.HasSuffix(s, " ") {
		b.WriteByte(' ')
	}
}

// verticalBounds returns the lower and upper y of the page MediaBox, which
// may be inherited from the page tree.
func verticalBounds(page pdf.Page) (low, high float64, ok bool) {
	v := page.V
	for i := 0; i < maxInheritDepth && !v.IsNull(); i++ {
		if box := v.Key("MediaBox"); box.Len() == 4 {
			low, high = box.Index(1).Float64(), box.Index(3).Float64()
			if low > high {
				low, high = high, low
			}
			return low, high, true
		}
		v = v.Key("Parent")
	}
	return 0, 0, false
}
