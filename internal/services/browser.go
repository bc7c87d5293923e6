package services

import (
	"bytes"
	"context"
	"embed"
	"encoding/base64"
	"fmt"
	"html/template"
	"image/png"
	"strings"
	"sync"

	"github.com/skip2/go-qrcode"
	"go.uber.org/zap"

	"github.com/Riboost-Studio/chalan/internal/model"
	"github.com/Riboost-Studio/chalan/internal/receipt"
)

//go:embed templates/document.html
var templateFS embed.FS

var templateFuncs = template.FuncMap{
	"money": receipt.FormatMoney,
}

var documentTemplate = template.Must(
	template.New("document.html").Funcs(templateFuncs).ParseFS(templateFS, "templates/document.html"),
)

// Document is a standalone printable page holding one or more sections
// (ticket, comanda) rendered from Sequences.
type Document struct {
	Title      string
	TicketCode string
	Kind       model.JobKind
	Copy       int
	Paper      model.PaperWidth
	FontFamily string
	FontSize   int
	Sections   []Section
}

type Section struct {
	Kind   model.JobKind
	Blocks []Block
}

// Block is one rendered element: "text", "item", "image", "feed" or "cut".
type Block struct {
	Type   string
	Class  string
	Text   string
	Item   model.LineItem
	Src    template.URL
	Width  int
	Height int
	Lines  int
}

// PageWidth is the CSS width of the paper class.
func (d Document) PageWidth() string {
	switch d.Paper {
	case model.Paper58mm:
		return "58mm"
	case model.Paper110mm:
		return "110mm"
	default:
		return "80mm"
	}
}

// renderSection replays a Sequence the way a printer would, tracking
// alignment, emphasis and size, and emits one block per visible element.
// DrawerPulse has no document equivalent and is dropped.
func renderSection(kind model.JobKind, seq receipt.Sequence) Section {
	s := Section{Kind: kind}
	align, bold, size := "left", false, ""
	class := func() string {
		parts := []string{align}
		if bold {
			parts = append(parts, "bold")
		}
		if size != "" {
			parts = append(parts, size)
		}
		return strings.Join(parts, " ")
	}

	for _, c := range seq {
		switch c.Op {
		case receipt.OpInit:
			align, bold, size = "left", false, ""
		case receipt.OpAlignLeft:
			align = "left"
		case receipt.OpAlignCenter:
			align = "center"
		case receipt.OpAlignRight:
			align = "right"
		case receipt.OpBoldOn:
			bold = true
		case receipt.OpBoldOff:
			bold = false
		case receipt.OpSizeNormal:
			size = ""
		case receipt.OpSize2x:
			size = "x2"
		case receipt.OpSize3x:
			size = "x3"
		case receipt.OpLiteral:
			s.Blocks = append(s.Blocks, Block{Type: "text", Class: class(), Text: c.Text})
		case receipt.OpItem:
			b := Block{Type: "item", Class: class(), Text: c.Text}
			if c.Item != nil {
				b.Item = *c.Item
			}
			s.Blocks = append(s.Blocks, b)
		case receipt.OpQRCode:
			png, err := qrcode.Encode(c.Text, qrcode.Medium, 160)
			if err != nil {
				continue
			}
			s.Blocks = append(s.Blocks, Block{
				Type:  "image",
				Class: "qr",
				Src:   template.URL("data:image/png;base64," + base64.StdEncoding.EncodeToString(png)),
			})
		case receipt.OpBarcode:
			img, err := barcodeImage(c.Text, barcodeDocumentWidth)
			if err != nil {
				continue
			}
			var buf bytes.Buffer
			if err := png.Encode(&buf, img); err != nil {
				continue
			}
			s.Blocks = append(s.Blocks, Block{
				Type:  "image",
				Class: "barcode",
				Src:   template.URL("data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())),
			})
		case receipt.OpLogo:
			src, ok := logoSource(c.Text)
			if !ok {
				continue
			}
			s.Blocks = append(s.Blocks, Block{
				Type:   "image",
				Class:  "logo",
				Src:    src,
				Width:  mmToPx(c.Width),
				Height: mmToPx(c.Height),
			})
		case receipt.OpFeed:
			s.Blocks = append(s.Blocks, Block{Type: "feed", Lines: c.N})
		case receipt.OpCutPartial, receipt.OpCutFull:
			s.Blocks = append(s.Blocks, Block{Type: "cut"})
		}
	}
	return s
}

// barcodeDocumentWidth is the raster limit for documents; CSS scales the
// image down to the paper.
const barcodeDocumentWidth = 320

func logoSource(ref string) (template.URL, bool) {
	switch {
	case strings.HasPrefix(ref, "data:image/"):
		return template.URL(ref), true
	case strings.HasPrefix(ref, "https://"), strings.HasPrefix(ref, "http://"):
		return template.URL(ref), true
	case ref != "":
		// bare base64
		return template.URL("data:image/png;base64," + ref), true
	}
	return "", false
}

func mmToPx(mm int) int {
	return mm * 96 * 10 / 254
}

// safeFontFamily keeps the characters a CSS font-family list needs.
func safeFontFamily(f string) template.CSS {
	var b strings.Builder
	for _, r := range f {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == ' ', r == ',', r == '-':
			b.WriteRune(r)
		}
	}
	if strings.TrimSpace(b.String()) == "" {
		return "monospace"
	}
	return template.CSS(b.String())
}

// RenderHTML produces the self-contained document markup.
func RenderHTML(doc Document) ([]byte, error) {
	fontSize := doc.FontSize
	if fontSize <= 0 {
		fontSize = 12
	}
	data := struct {
		Title      string
		PageWidth  string
		FontFamily template.CSS
		FontSize   int
		Sections   []Section
	}{
		Title:      doc.Title,
		PageWidth:  doc.PageWidth(),
		FontFamily: safeFontFamily(doc.FontFamily),
		FontSize:   fontSize,
		Sections:   doc.Sections,
	}

	var buf bytes.Buffer
	if err := documentTemplate.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("failed to execute template: %w", err)
	}
	return buf.Bytes(), nil
}

// --- Document printer capability ---

// Handle identifies a rendered document.
type Handle struct {
	ID   string
	Path string
}

// DocumentPrinter hands a document to the host's print facility.
// OnCompleted fires once the host reports the print finished (or failed);
// it fires immediately when that already happened.
type DocumentPrinter interface {
	Render(ctx context.Context, doc Document) (Handle, error)
	OnCompleted(h Handle, fn func(error))
}

// completions tracks document completion for DocumentPrinter
// implementations. An entry lives until it finished and someone was told:
// either the callbacks registered before completion, or the first
// subscriber after it.
type completions struct {
	mu      sync.Mutex
	entries map[string]*completion
	pending sync.WaitGroup
}

type completion struct {
	done      bool
	err       error
	callbacks []func(error)
}

func (c *completions) start(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entries == nil {
		c.entries = make(map[string]*completion)
	}
	c.entries[id] = &completion{}
	c.pending.Add(1)
}

func (c *completions) finish(id string, err error) {
	c.mu.Lock()
	e, ok := c.entries[id]
	if !ok {
		e = &completion{}
		if c.entries == nil {
			c.entries = make(map[string]*completion)
		}
		c.entries[id] = e
	} else if !e.done {
		defer c.pending.Done()
	}
	e.done, e.err = true, err
	cbs := e.callbacks
	e.callbacks = nil
	if len(cbs) > 0 {
		delete(c.entries, id)
	}
	c.mu.Unlock()
	for _, fn := range cbs {
		fn(err)
	}
}

// Wait blocks until every started document finished or ctx is done.
func (c *completions) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		c.pending.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *completions) subscribe(id string, fn func(error)) {
	c.mu.Lock()
	e, ok := c.entries[id]
	if !ok || e.done {
		var err error
		if ok {
			err = e.err
			delete(c.entries, id)
		}
		c.mu.Unlock()
		fn(err)
		return
	}
	e.callbacks = append(e.callbacks, fn)
	c.mu.Unlock()
}

// --- Browser backend ---

type BrowserBackend struct {
	printer DocumentPrinter
	log     *zap.Logger
}

func NewBrowserBackend(p DocumentPrinter, log *zap.Logger) *BrowserBackend {
	if log == nil {
		log = zap.NewNop()
	}
	return &BrowserBackend{printer: p, log: log.Named("browser")}
}

// NewDocument builds a document for the given sections using the
// configuration's paper and font settings.
func NewDocument(cfg *model.PrinterConfig, sale model.SaleData, kind model.JobKind, copyIndex int, sections ...Section) Document {
	title := fmt.Sprintf("Ticket %s", sale.TicketCode)
	if kind == model.JobComanda {
		title = fmt.Sprintf("Comanda %s (%d)", sale.TicketCode, copyIndex)
	}
	return Document{
		Title:      title,
		TicketCode: sale.TicketCode,
		Kind:       kind,
		Copy:       copyIndex,
		Paper:      cfg.PaperWidth,
		FontFamily: cfg.FontFamily,
		FontSize:   cfg.FontSize,
		Sections:   sections,
	}
}

// Show hands the document to the printer and returns once it is open.
// Whether the operator actually prints it is only logged.
func (b *BrowserBackend) Show(ctx context.Context, doc Document) (Handle, error) {
	h, err := b.printer.Render(ctx, doc)
	if err != nil {
		return Handle{}, fmt.Errorf("render %s document: %w", doc.Kind, err)
	}
	log := b.log.With(zap.String("ticket", doc.TicketCode), zap.String("kind", string(doc.Kind)), zap.Int("copy", doc.Copy))
	log.Info("document ready", zap.String("path", h.Path))
	b.printer.OnCompleted(h, func(err error) {
		if err != nil {
			log.Warn("document print did not complete", zap.Error(err))
			return
		}
		log.Debug("document print completed")
	})
	return h, nil
}
