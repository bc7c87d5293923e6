package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/code128"
	"github.com/skip2/go-qrcode"
	"go.uber.org/zap"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"

	"github.com/Riboost-Studio/chalan/internal/model"
	"github.com/Riboost-Studio/chalan/internal/receipt"
)

// ESC/POS command bytes
const (
	ESC byte = 0x1B
	GS  byte = 0x1D
	LF  byte = 0x0A
)

// DotsWidth is the printable raster width of a paper class.
func DotsWidth(p model.PaperWidth) int {
	switch p {
	case model.Paper58mm:
		return 384
	case model.Paper110mm:
		return 832
	default:
		return 576
	}
}

// EncodeESCPOS maps a Sequence onto device bytes. Text is sent in code page
// 850 so Spanish accents print; characters outside it become the code page
// substitute byte. A logo that cannot be decoded and a barcode that does not
// fit the paper are left out.
func EncodeESCPOS(seq receipt.Sequence, dots int) ([]byte, error) {
	var buf bytes.Buffer
	enc := encoding.ReplaceUnsupported(charmap.CodePage850.NewEncoder())

	for _, c := range seq {
		switch c.Op {
		case receipt.OpInit:
			buf.Write([]byte{ESC, '@'})
			buf.Write([]byte{ESC, 't', 2}) // CP850
		case receipt.OpAlignLeft:
			buf.Write([]byte{ESC, 'a', 0})
		case receipt.OpAlignCenter:
			buf.Write([]byte{ESC, 'a', 1})
		case receipt.OpAlignRight:
			buf.Write([]byte{ESC, 'a', 2})
		case receipt.OpBoldOn:
			buf.Write([]byte{ESC, 'E', 1})
		case receipt.OpBoldOff:
			buf.Write([]byte{ESC, 'E', 0})
		case receipt.OpSizeNormal:
			buf.Write([]byte{GS, '!', 0x00})
		case receipt.OpSize2x:
			buf.Write([]byte{GS, '!', 0x11})
		case receipt.OpSize3x:
			buf.Write([]byte{GS, '!', 0x22})
		case receipt.OpLiteral, receipt.OpItem:
			text, err := enc.String(c.Text)
			if err != nil {
				return nil, fmt.Errorf("encode text %q: %w", c.Text, err)
			}
			buf.WriteString(text)
			buf.WriteByte(LF)
		case receipt.OpQRCode:
			qr, err := qrcode.New(c.Text, qrcode.Medium)
			if err != nil {
				return nil, fmt.Errorf("qr code: %w", err)
			}
			buf.Write(convertImageToESCPOS(qr.Image(dots / 2)))
			buf.WriteByte(LF)
		case receipt.OpBarcode:
			img, err := barcodeImage(c.Text, dots)
			if err != nil {
				continue
			}
			buf.Write(convertImageToESCPOS(img))
			buf.WriteByte(LF)
		case receipt.OpLogo:
			img, err := decodeLogo(c.Text)
			if err != nil {
				continue
			}
			width := c.Width * 8 // logo width is configured in mm, 8 dots per mm
			if width <= 0 || width > dots {
				width = dots / 2
			}
			buf.Write(convertImageToESCPOS(resizeToWidth(img, width)))
			buf.WriteByte(LF)
		case receipt.OpCutPartial:
			buf.Write([]byte{GS, 'V', 0x01})
		case receipt.OpCutFull:
			buf.Write([]byte{GS, 'V', 0x00})
		case receipt.OpFeed:
			buf.Write([]byte{ESC, 'd', byte(c.N)})
		case receipt.OpDrawerPulse:
			// ESC p m t1 t2: m=0 drives pin 2, m=1 drives pin 5.
			m := byte(0)
			if c.N == 5 {
				m = 1
			}
			buf.Write([]byte{ESC, 'p', m, 25, 250})
		default:
			return nil, fmt.Errorf("unknown op %s", c.Op)
		}
	}
	return buf.Bytes(), nil
}

const barcodeHeight = 64

// barcodeImage renders data as Code128 no wider than maxWidth, at two dots
// per module when that fits.
func barcodeImage(data string, maxWidth int) (barcode.Barcode, error) {
	bc, err := code128.Encode(data)
	if err != nil {
		return nil, err
	}
	w := bc.Bounds().Dx()
	if w > maxWidth {
		return nil, fmt.Errorf("barcode %q needs %d dots, %d available", data, w, maxWidth)
	}
	if 2*w <= maxWidth {
		w *= 2
	}
	return barcode.Scale(bc, w, barcodeHeight)
}

// decodeLogo accepts a data URL or bare base64 image.
func decodeLogo(ref string) (image.Image, error) {
	if i := strings.Index(ref, ","); strings.HasPrefix(ref, "data:") && i >= 0 {
		ref = ref[i+1:]
	}
	raw, err := base64.StdEncoding.DecodeString(ref)
	if err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	return img, err
}

func convertImageToESCPOS(img image.Image) []byte {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	// ESC/POS width must be divisible by 8
	if width%8 != 0 {
		width = width - (width % 8)
	}

	rowBytes := width / 8
	raster := make([]byte, rowBytes*height)

	// Convert to 1-bit
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r, g, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			gray := (r + g + b) / 3
			if gray < 0x8000 {
				raster[y*rowBytes+x/8] |= 1 << (7 - (x % 8))
			}
		}
	}

	// GS v 0
	header := []byte{
		GS, 0x76, 0x30, 0x00,
		byte(rowBytes), byte(rowBytes >> 8),
		byte(height), byte(height >> 8),
	}
	return append(header, raster...)
}

func resizeToWidth(src image.Image, targetWidth int) image.Image {
	bounds := src.Bounds()
	w := bounds.Dx()
	h := bounds.Dy()
	if w == 0 || h == 0 {
		return src
	}

	scale := float64(targetWidth) / float64(w)
	newHeight := int(float64(h) * scale)
	if newHeight < 1 {
		newHeight = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, targetWidth, newHeight))
	for y := 0; y < newHeight; y++ {
		for x := 0; x < targetWidth; x++ {
			sx := bounds.Min.X + int(float64(x)/scale)
			sy := bounds.Min.Y + int(float64(y)/scale)
			dst.Set(x, y, src.At(sx, sy))
		}
	}
	return dst
}

// --- Hardware backend ---

// DevicePrinter delivers raw bytes to a named device.
type DevicePrinter interface {
	Print(ctx context.Context, device string, data []byte) error
}

type HardwareBackend struct {
	printer DevicePrinter
	log     *zap.Logger
}

func NewHardwareBackend(p DevicePrinter, log *zap.Logger) *HardwareBackend {
	if log == nil {
		log = zap.NewNop()
	}
	return &HardwareBackend{printer: p, log: log.Named("hardware")}
}

// Send encodes one job and prints it on device. A ticket job that asks for
// the drawer gets the pulse as its last instruction.
func (h *HardwareBackend) Send(ctx context.Context, device string, job PrintJob) error {
	seq := job.Commands
	if job.OpenDrawer && job.Kind == model.JobTicket {
		seq = seq.WithDrawerPulse(job.DrawerPin)
	}
	data, err := EncodeESCPOS(seq, DotsWidth(job.Paper))
	if err != nil {
		return model.NewPrintError(model.KindEncode, "escpos "+string(job.Kind), err)
	}

	h.log.Debug("sending job",
		zap.String("job", job.ID),
		zap.String("kind", string(job.Kind)),
		zap.Int("copy", job.Copy),
		zap.String("device", device),
		zap.Int("bytes", len(data)))

	if err := h.printer.Print(ctx, device, data); err != nil {
		return err
	}
	return nil
}
