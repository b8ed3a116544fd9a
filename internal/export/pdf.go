package export

import (
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

const pdfTimeout = 30 * time.Second

var chromeBinaries = []string{"chromium-browser", "chromium", "google-chrome"}

func chromeAvailable() bool {
	for _, name := range chromeBinaries {
		if _, err := exec.LookPath(name); err == nil {
			return true
		}
	}
	return false
}

// printParams lays the resume out on sheet with equal margins. The configured
// sheet wins over any CSS @page rule.
func printParams(sheet Page) *page.PrintToPDFParams {
	return page.PrintToPDF().
		WithPrintBackground(true).
		WithPaperWidth(sheet.Width).
		WithPaperHeight(sheet.Height).
		WithMarginTop(sheet.Margin).
		WithMarginBottom(sheet.Margin).
		WithMarginLeft(sheet.Margin).
		WithMarginRight(sheet.Margin).
		WithPreferCSSPageSize(false)
}

// loadHTML replaces the blank page's content with html.
func loadHTML(html string) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		tree, err := page.GetFrameTree().Do(ctx)
		if err != nil {
			return fmt.Errorf("frame tree: %w", err)
		}
		return page.SetDocumentContent(tree.Frame.ID, html).Do(ctx)
	})
}

func exportPDF(parent context.Context, html, name string, sheet Page) (*Result, error) {
	if !chromeAvailable() {
		return nil, fmt.Errorf("%w: chromium not installed", ErrPDFDependencyMissing)
	}

	ctx, cancel := context.WithTimeout(parent, pdfTimeout)
	defer cancel()

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoSandbox,
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	var pdfData []byte
	err := chromedp.Run(browserCtx,
		chromedp.Navigate("about:blank"),
		loadHTML(html),
		chromedp.WaitReady("body"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			pdfData, _, err = printParams(sheet).Do(ctx)
			return err
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("print %s pdf: %w", sheet.Name, err)
	}
	return &Result{Data: pdfData, Filename: name + ".pdf", MimeType: "application/pdf"}, nil
}
