package receipt

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/Riboost-Studio/chalan/internal/model"
)

const currency = "S/"

type Business struct {
	Name    string
	RUC     string
	Address string
	Phone   string
}

// Template holds the layout switches taken from PrinterConfig.
type Template struct {
	HeaderText  string
	ShowHeader  bool
	FooterText  string
	ShowFooter  bool
	PaperWidth  model.PaperWidth
	AutoCut     bool
	CutMode     model.CutMode
	ShowQR      bool
	ShowBarcode bool
	LogoURL     string
	LogoWidth   int
	LogoHeight  int
	ShowLogo    bool
}

type TicketInput struct {
	Business    Business
	Template    Template
	TicketCode  string
	ClientName  string
	CashierName string
	Payment     model.PaymentMethod
	IssuedAt    time.Time
	Items       []model.LineItem
	Total       float64
}

type ComandaInput struct {
	Header     string
	OrderCode  string
	ClientName string
	IssuedAt   time.Time
	Items      []model.LineItem
	PaperWidth model.PaperWidth
	AutoCut    bool
	CutMode    model.CutMode
}

func TemplateFromConfig(cfg *model.PrinterConfig) Template {
	return Template{
		HeaderText:  cfg.HeaderText,
		ShowHeader:  cfg.ShowHeader,
		FooterText:  cfg.FooterText,
		ShowFooter:  cfg.ShowFooter,
		PaperWidth:  cfg.PaperWidth,
		AutoCut:     cfg.AutoCutPaper,
		CutMode:     cfg.CutMode,
		ShowQR:      cfg.ShowQR,
		ShowBarcode: cfg.ShowBarcode,
		LogoURL:     cfg.LogoURL,
		LogoWidth:   cfg.LogoWidth,
		LogoHeight:  cfg.LogoHeight,
		ShowLogo:    cfg.ShowLogo,
	}
}

// TicketFromSale builds the ticket input for a sale. When the sale carries
// no total the item sum is used.
func TicketFromSale(cfg *model.PrinterConfig, sale model.SaleData) TicketInput {
	total := sale.Total
	if total == 0 {
		total = sumItems(sale.Items)
	}
	return TicketInput{
		Business: Business{
			Name:    cfg.BusinessName,
			RUC:     cfg.RUC,
			Address: cfg.Address,
			Phone:   cfg.Phone,
		},
		Template:    TemplateFromConfig(cfg),
		TicketCode:  sale.TicketCode,
		ClientName:  sale.ClientName,
		CashierName: sale.CashierName,
		Payment:     sale.PaymentMethod,
		IssuedAt:    sale.IssuedAt,
		Items:       sale.Items,
		Total:       total,
	}
}

func ComandaFromSale(cfg *model.PrinterConfig, sale model.SaleData) ComandaInput {
	return ComandaInput{
		Header:     cfg.ComandaHeader,
		OrderCode:  sale.TicketCode,
		ClientName: sale.ClientName,
		IssuedAt:   sale.IssuedAt,
		Items:      sale.Items,
		PaperWidth: cfg.PaperWidth,
		AutoCut:    cfg.AutoCutPaper,
		CutMode:    cfg.CutMode,
	}
}

func validateItems(items []model.LineItem, priced bool) error {
	for i, it := range items {
		if it.Quantity < 0 {
			return model.NewPrintError(model.KindEncode,
				fmt.Sprintf("item %d (%s) has negative quantity %d", i, it.Name, it.Quantity), nil)
		}
		if priced && (math.IsNaN(it.Price) || math.IsInf(it.Price, 0)) {
			return model.NewPrintError(model.KindEncode,
				fmt.Sprintf("item %d (%s) has invalid price", i, it.Name), nil)
		}
	}
	return nil
}

// EncodeTicket lays out the customer receipt.
func EncodeTicket(in TicketInput) (Sequence, error) {
	if err := validateItems(in.Items, true); err != nil {
		return nil, err
	}
	if math.IsNaN(in.Total) || math.IsInf(in.Total, 0) {
		return nil, model.NewPrintError(model.KindEncode, "ticket total is not a number", nil)
	}

	t := in.Template
	b := newBuilder(Columns(t.PaperWidth))

	b.op(OpAlignCenter)
	if t.ShowLogo && t.LogoURL != "" {
		b.seq = append(b.seq, Command{Op: OpLogo, Text: t.LogoURL, Width: t.LogoWidth, Height: t.LogoHeight})
	}
	if in.Business.Name != "" {
		b.op(OpBoldOn).op(OpSize2x).text(in.Business.Name).op(OpSizeNormal).op(OpBoldOff)
	}
	b.optional("RUC: ", in.Business.RUC).
		optional("", in.Business.Address).
		optional("Tel: ", in.Business.Phone)
	if t.ShowHeader {
		for _, line := range nonEmptyLines(t.HeaderText) {
			b.text(line)
		}
	}

	b.op(OpAlignLeft).separator('-')
	b.keyValue("Ticket:", in.TicketCode)
	if !in.IssuedAt.IsZero() {
		b.keyValue("Fecha:", in.IssuedAt.Format("02/01/2006 15:04"))
	}
	b.optional("Cliente: ", in.ClientName).
		optional("Cajero: ", in.CashierName)
	if in.Payment != "" {
		b.keyValue("Pago:", in.Payment.Label())
	}
	b.separator('-')

	for i := range in.Items {
		it := in.Items[i]
		lines := itemLines(it.Quantity, it.Name, lineTotal(it), b.width)
		for j, line := range lines {
			if j == len(lines)-1 {
				b.seq = append(b.seq, Command{Op: OpItem, Text: line, Item: &it})
			} else {
				b.text(line)
			}
		}
		if it.Quantity > 1 {
			b.text("    @ " + FormatMoney(it.Price))
		}
	}

	b.separator('-')
	b.op(OpBoldOn).keyValue("TOTAL:", currency+" "+FormatMoney(in.Total)).op(OpBoldOff)

	if t.ShowFooter {
		footer := nonEmptyLines(t.FooterText)
		if len(footer) > 0 {
			b.feed(1).op(OpAlignCenter)
			for _, line := range footer {
				b.text(line)
			}
		}
	}
	if t.ShowQR && in.TicketCode != "" {
		b.op(OpAlignCenter)
		b.seq = append(b.seq, Command{Op: OpQRCode, Text: in.TicketCode})
	}
	if t.ShowBarcode && in.TicketCode != "" {
		b.op(OpAlignCenter)
		b.seq = append(b.seq, Command{Op: OpBarcode, Text: in.TicketCode})
	}

	finish(b, t.AutoCut, t.CutMode)
	return b.seq, nil
}

// EncodeComanda lays out the kitchen ticket: items and quantities, no
// prices.
func EncodeComanda(in ComandaInput) (Sequence, error) {
	if err := validateItems(in.Items, false); err != nil {
		return nil, err
	}

	b := newBuilder(Columns(in.PaperWidth))
	header := strings.TrimSpace(in.Header)
	if header == "" {
		header = "COMANDA"
	}

	b.op(OpAlignCenter).op(OpBoldOn).op(OpSize2x).text(header).op(OpSizeNormal)
	b.text("Pedido: " + in.OrderCode).op(OpBoldOff)
	if !in.IssuedAt.IsZero() {
		b.text(in.IssuedAt.Format("02/01/2006 15:04"))
	}
	b.optional("Cliente: ", in.ClientName)

	b.op(OpAlignLeft).separator('=')
	b.op(OpBoldOn)
	for _, it := range in.Items {
		for _, line := range itemLines(it.Quantity, it.Name, "", b.width) {
			b.text(line)
		}
	}
	b.op(OpBoldOff)
	b.separator('=')

	finish(b, in.AutoCut, in.CutMode)
	return b.seq, nil
}

func finish(b *builder, autoCut bool, mode model.CutMode) {
	if !autoCut {
		b.feed(4)
		return
	}
	b.feed(3)
	if mode == model.CutFull {
		b.op(OpCutFull)
	} else {
		b.op(OpCutPartial)
	}
}

func nonEmptyLines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}
