package model

import "time"

// --- Per-school printer configuration ---

type PaperWidth string

const (
	Paper58mm  PaperWidth = "58mm"
	Paper80mm  PaperWidth = "80mm"
	Paper110mm PaperWidth = "110mm"
)

type CutMode string

const (
	CutPartial CutMode = "partial"
	CutFull    CutMode = "full"
)

// PrinterConfig is the active printing setup of one school.
type PrinterConfig struct {
	SchoolID  string    `json:"schoolId"`
	IsActive  bool      `json:"isActive"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`

	// Business identity
	BusinessName string `json:"businessName"`
	RUC          string `json:"ruc,omitempty"`
	Address      string `json:"address,omitempty"`
	Phone        string `json:"phone,omitempty"`

	// Template
	HeaderText string     `json:"headerText,omitempty"`
	ShowHeader bool       `json:"showHeader"`
	FooterText string     `json:"footerText,omitempty"`
	ShowFooter bool       `json:"showFooter"`
	FontFamily string     `json:"fontFamily,omitempty"`
	FontSize   int        `json:"fontSize,omitempty"`
	PaperWidth PaperWidth `json:"paperWidth,omitempty"`
	LogoURL    string     `json:"logoUrl,omitempty"`
	LogoWidth  int        `json:"logoWidth,omitempty"`
	LogoHeight int        `json:"logoHeight,omitempty"`
	ShowLogo   bool       `json:"showLogo"`

	// Device as named by the local print agent
	PrinterName string `json:"printerName,omitempty"`

	AutoCutPaper bool    `json:"autoCutPaper"`
	CutMode      CutMode `json:"cutMode,omitempty"`

	// Comanda
	PrintComanda         bool   `json:"printComanda"`
	ComandaHeader        string `json:"comandaHeader,omitempty"`
	ComandaCopies        int    `json:"comandaCopies,omitempty"`
	PrintSeparateComanda bool   `json:"printSeparateComanda"`

	// Routing per sale type
	PrintTicketGeneral  bool `json:"printTicketGeneral"`
	PrintTicketCredit   bool `json:"printTicketCredit"`
	PrintTicketTeacher  bool `json:"printTicketTeacher"`
	PrintComandaGeneral bool `json:"printComandaGeneral"`
	PrintComandaCredit  bool `json:"printComandaCredit"`
	PrintComandaTeacher bool `json:"printComandaTeacher"`

	// Cash drawer
	OpenCashDrawer      bool `json:"openCashDrawer"`
	CashDrawerPin       int  `json:"cashDrawerPin,omitempty"`
	OpenDrawerOnGeneral bool `json:"openDrawerOnGeneral"`
	OpenDrawerOnCredit  bool `json:"openDrawerOnCredit"`
	OpenDrawerOnTeacher bool `json:"openDrawerOnTeacher"`

	ShowQR      bool `json:"showQr"`
	ShowBarcode bool `json:"showBarcode"`
}

// DefaultPrinterConfig is used to render browser documents when a school
// has no active configuration.
func DefaultPrinterConfig(schoolID string) *PrinterConfig {
	return &PrinterConfig{
		SchoolID:     schoolID,
		BusinessName: "Cafetería",
		ShowFooter:   true,
		FooterText:   "Gracias por su compra",
		FontFamily:   "Courier New, monospace",
		FontSize:     12,
		PaperWidth:   Paper80mm,
		CutMode:      CutPartial,
		AutoCutPaper: true,
	}
}
