package internal

import (
	"log/slog"
	"net/http"
	"time"
)

// BrowserUserAgent is sent with URL fetches; many sites refuse bare Go clients.
const BrowserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

const (
	defaultFetchTimeout = 30 * time.Second
	maxPageBytes        = 10 << 20
)

// Extractor turns PDFs and web pages into plain text.
type Extractor struct {
	hc         *http.Client
	userAgent  string
	cropTop    float64
	cropBottom float64
	logger     *slog.Logger
}

type ExtractorOption func(*Extractor)

// WithCrop trims top and bottom margins, in points, before PDF text extraction.
func WithCrop(top, bottom float64) ExtractorOption {
	return func(e *Extractor) {
		e.cropTop = top
		e.cropBottom = bottom
	}
}

func WithHTTPClient(hc *http.Client) ExtractorOption {
	return func(e *Extractor) {
		if hc != nil {
			e.hc = hc
		}
	}
}

func WithExtractorLogger(logger *slog.Logger) ExtractorOption {
	return func(e *Extractor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

func NewExtractor(opts ...ExtractorOption) *Extractor {
	e := &Extractor{
		hc:        &http.Client{Timeout: defaultFetchTimeout},
		userAgent: BrowserUserAgent,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}
