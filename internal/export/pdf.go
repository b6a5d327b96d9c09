package export

import (
	"context"
	"encoding/base64"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

const (
	pdfTimeout      = 30 * time.Second
	maxFilenameBase = 50
)

var chromeBinaries = []string{"chromium-browser", "chromium", "google-chrome"}

// transcript pages are US Letter with 0.6in margins
var letterPage = struct{ width, height, margin float64 }{8.5, 11, 0.6}

func htmlDataURL(html string) string {
	return "data:text/html;charset=utf-8;base64," + base64.StdEncoding.EncodeToString([]byte(html))
}

func findChrome() (string, bool) {
	for _, name := range chromeBinaries {
		if path, err := exec.LookPath(name); err == nil {
			return path, true
		}
	}
	return "", false
}

func renderPDF(ctx context.Context, html string) ([]byte, error) {
	binary, ok := findChrome()
	if !ok {
		return nil, fmt.Errorf("%w: chromium not installed", ErrPDFDependencyMissing)
	}

	ctx, cancel := context.WithTimeout(ctx, pdfTimeout)
	defer cancel()

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.ExecPath(binary),
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	var out []byte
	err := chromedp.Run(browserCtx,
		chromedp.Navigate(htmlDataURL(html)),
		chromedp.WaitReady("body"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			data, _, err := page.PrintToPDF().
				WithPrintBackground(true).
				WithPaperWidth(letterPage.width).
				WithPaperHeight(letterPage.height).
				WithMarginTop(letterPage.margin).
				WithMarginBottom(letterPage.margin).
				WithMarginLeft(letterPage.margin).
				WithMarginRight(letterPage.margin).
				Do(ctx)
			out = data
			return err
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return out, nil
}

// sanitizeFilename keeps ASCII letters, digits, dash and underscore, maps
// spaces to dashes and caps the result at 50 bytes.
func sanitizeFilename(title string) string {
	clean := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		case r == ' ':
			return '-'
		}
		return -1
	}, title)
	if len(clean) > maxFilenameBase {
		clean = clean[:maxFilenameBase]
	}
	if clean == "" {
		return "transcript"
	}
	return clean
}
