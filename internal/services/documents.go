package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Riboost-Studio/chalan/internal/model"
)

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

func documentFileName(doc Document, ext string) string {
	code := strings.Trim(unsafeName.ReplaceAllString(doc.TicketCode, "_"), "_")
	if code == "" {
		code = "sale"
	}
	kind := doc.Kind
	if kind == "" {
		kind = model.JobTicket
	}
	return fmt.Sprintf("%s_%s_%d.%s", code, kind, doc.Copy, ext)
}

func writeDocument(dir string, doc Document) (string, error) {
	html, err := RenderHTML(doc)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	path := filepath.Join(dir, documentFileName(doc, "html"))
	if err := os.WriteFile(path, html, 0644); err != nil {
		return "", fmt.Errorf("failed saving document: %w", err)
	}
	return path, nil
}

// FilePrinter writes each document as an HTML file into a spool directory
// where the operator (or a browser kiosk) opens and prints it.
type FilePrinter struct {
	Dir string
	completions
}

func NewFilePrinter(dir string) *FilePrinter {
	return &FilePrinter{Dir: dir}
}

func (p *FilePrinter) Render(ctx context.Context, doc Document) (Handle, error) {
	path, err := writeDocument(p.Dir, doc)
	if err != nil {
		return Handle{}, err
	}
	h := Handle{ID: uuid.NewString(), Path: path}
	p.finish(h.ID, nil)
	return h, nil
}

func (p *FilePrinter) OnCompleted(h Handle, fn func(error)) {
	p.subscribe(h.ID, fn)
}

// ChromePrinter opens the document in headless Chrome and prints it to a
// PDF sized to the paper class, next to the HTML file.
type ChromePrinter struct {
	Dir      string
	ExecPath string
	Timeout  time.Duration
	log      *zap.Logger
	completions
}

func NewChromePrinter(dir, execPath string, log *zap.Logger) *ChromePrinter {
	if log == nil {
		log = zap.NewNop()
	}
	return &ChromePrinter{Dir: dir, ExecPath: execPath, Timeout: 30 * time.Second, log: log.Named("chrome")}
}

// Render writes the HTML and returns; the PDF is produced in the
// background and reported through OnCompleted.
func (p *ChromePrinter) Render(ctx context.Context, doc Document) (Handle, error) {
	path, err := writeDocument(p.Dir, doc)
	if err != nil {
		return Handle{}, err
	}
	h := Handle{ID: uuid.NewString(), Path: path}
	p.start(h.ID)

	go func() {
		pdfPath := strings.TrimSuffix(path, ".html") + ".pdf"
		err := p.printToPDF(path, pdfPath, paperInches(doc.Paper))
		if err == nil {
			p.log.Debug("pdf written", zap.String("path", pdfPath))
		}
		p.finish(h.ID, err)
	}()
	return h, nil
}

func (p *ChromePrinter) OnCompleted(h Handle, fn func(error)) {
	p.subscribe(h.ID, fn)
}

func (p *ChromePrinter) printToPDF(htmlPath, pdfPath string, widthInches float64) error {
	abs, err := filepath.Abs(htmlPath)
	if err != nil {
		return err
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-gpu", true),
	)
	if p.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(p.ExecPath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	defer allocCancel()
	cdpCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()
	cdpCtx, timeoutCancel := context.WithTimeout(cdpCtx, p.Timeout)
	defer timeoutCancel()

	var pdf []byte
	err = chromedp.Run(cdpCtx,
		chromedp.Navigate("file://"+filepath.ToSlash(abs)),
		chromedp.WaitReady("body"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			buf, _, err := page.PrintToPDF().
				WithPrintBackground(true).
				WithPreferCSSPageSize(true).
				WithPaperWidth(widthInches).
				WithMarginTop(0).
				WithMarginBottom(0).
				WithMarginLeft(0).
				WithMarginRight(0).
				Do(ctx)
			if err != nil {
				return err
			}
			pdf = buf
			return nil
		}),
	)
	if err != nil {
		return fmt.Errorf("failed printing document: %w", err)
	}
	if err := os.WriteFile(pdfPath, pdf, 0644); err != nil {
		return fmt.Errorf("failed saving pdf: %w", err)
	}
	return nil
}

func paperInches(p model.PaperWidth) float64 {
	switch p {
	case model.Paper58mm:
		return 58 / 25.4
	case model.Paper110mm:
		return 110 / 25.4
	default:
		return 80 / 25.4
	}
}
