package report

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"html"
	"os/exec"
	"strings"
	"time"

	"github.com/DukeRupert/constat/internal/domain"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// ErrChromeMissing is returned when no Chrome or Chromium binary is found.
var ErrChromeMissing = errors.New("chrome not installed")

// Browser binaries tried, in order, when no path is configured.
var chromeCandidates = []string{"chromium-browser", "chromium", "google-chrome", "google-chrome-stable"}

const defaultChromeTimeout = 60 * time.Second

// =============================================================================
// Chrome Renderer (HTML → PDF)
// =============================================================================

// ChromeRenderer prints report HTML with headless Chrome. Photos are inlined
// as data: URIs so the browser never fetches anything.
type ChromeRenderer struct {
	// ExecPath is the browser binary. Empty means the first candidate found
	// on PATH.
	ExecPath string

	// Timeout bounds a single render.
	Timeout time.Duration
}

// NewChromeRenderer locates a browser and returns a renderer for it.
func NewChromeRenderer(execPath string, timeout time.Duration) (*ChromeRenderer, error) {
	if execPath == "" {
		execPath = FindChrome()
	}
	if execPath == "" {
		return nil, ErrChromeMissing
	}
	if _, err := exec.LookPath(execPath); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrChromeMissing, execPath)
	}
	if timeout <= 0 {
		timeout = defaultChromeTimeout
	}
	return &ChromeRenderer{ExecPath: execPath, Timeout: timeout}, nil
}

// FindChrome returns the first browser binary found on PATH, or "".
func FindChrome() string {
	for _, name := range chromeCandidates {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}
	return ""
}

// Engine returns "chrome".
func (c *ChromeRenderer) Engine() string {
	return "chrome"
}

// Render prints htmlDoc to A4 with the letterhead as running header.
func (c *ChromeRenderer) Render(ctx context.Context, htmlDoc string, letterhead domain.Letterhead, images map[string]ImageData) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.ExecPath(c.ExecPath),
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)

	allocCtx, cancel := chromedp.NewExecAllocator(ctx, opts...)
	defer cancel()

	taskCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	doc := ResolveImagePlaceholders(htmlDoc, DataURIs(images))
	dataURL := "data:text/html;charset=utf-8;base64," + base64.StdEncoding.EncodeToString([]byte(doc))

	var pdfData []byte
	err := chromedp.Run(taskCtx,
		chromedp.Navigate(dataURL),
		chromedp.WaitReady("body"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			pdfData, _, err = page.PrintToPDF().
				WithPrintBackground(true).
				WithPaperWidth(8.27). // A4
				WithPaperHeight(11.69).
				WithMarginTop(1.1).
				WithMarginBottom(0.9).
				WithMarginLeft(0.7).
				WithMarginRight(0.7).
				WithDisplayHeaderFooter(true).
				WithHeaderTemplate(chromeHeader(letterhead)).
				WithFooterTemplate(chromeFooter(letterhead)).
				Do(ctx)
			return err
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("chrome pdf generation failed: %w", err)
	}
	return pdfData, nil
}

func chromeHeader(l domain.Letterhead) string {
	var b strings.Builder
	b.WriteString(`<div style="width:100%;margin:0 0.7in;font-family:sans-serif;font-size:8px;color:` + Colors.BlueFrance + `;border-bottom:1px solid ` + Colors.BlueFrance + `;padding-bottom:4px">`)
	for _, line := range l.HeaderLines() {
		b.WriteString(`<div style="font-weight:bold">` + html.EscapeString(line) + `</div>`)
	}
	if contact := l.ContactLine(); contact != "" {
		b.WriteString(`<div style="color:` + Colors.TextMuted + `">` + html.EscapeString(contact) + `</div>`)
	}
	b.WriteString(`</div>`)
	return b.String()
}

func chromeFooter(l domain.Letterhead) string {
	return `<div style="width:100%;margin:0 0.7in;font-family:sans-serif;font-size:7px;color:` + Colors.TextMuted + `;display:flex;justify-content:space-between">` +
		`<span>` + html.EscapeString(l.FooterText) + `</span>` +
		`<span>Page <span class="pageNumber"></span> / <span class="totalPages"></span></span></div>`
}
