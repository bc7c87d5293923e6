package model

import (
	"fmt"
	"time"
)

type SaleType string

const (
	SaleGeneral SaleType = "general"
	SaleCredit  SaleType = "credit"
	SaleTeacher SaleType = "teacher"
)

type PaymentMethod string

const (
	PaymentCash           PaymentMethod = "cash"
	PaymentCard           PaymentMethod = "card"
	PaymentYape           PaymentMethod = "yape"
	PaymentPlin           PaymentMethod = "plin"
	PaymentTransfer       PaymentMethod = "transfer"
	PaymentCredit         PaymentMethod = "credit"
	PaymentTeacherAccount PaymentMethod = "teacher_account"
)

var paymentLabels = map[PaymentMethod]string{
	PaymentCash:           "Efectivo",
	PaymentCard:           "Tarjeta",
	PaymentYape:           "Yape",
	PaymentPlin:           "Plin",
	PaymentTransfer:       "Transferencia",
	PaymentCredit:         "Crédito",
	PaymentTeacherAccount: "Cuenta docente",
}

// Label returns the printable name of the payment method. Unknown methods
// are printed verbatim.
func (p PaymentMethod) Label() string {
	if l, ok := paymentLabels[p]; ok {
		return l
	}
	return string(p)
}

// --- Sale (matching the POS JSON) ---

type LineItem struct {
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
}

// SaleData is produced once when a sale is finalized and is never mutated.
type SaleData struct {
	TicketCode    string        `json:"ticketCode"`
	ClientName    string        `json:"clientName"`
	Items         []LineItem    `json:"items"`
	Total         float64       `json:"total"`
	PaymentMethod PaymentMethod `json:"paymentMethod"`
	SaleType      SaleType      `json:"saleType"`
	SchoolID      string        `json:"schoolId"`
	IssuedAt      time.Time     `json:"issuedAt,omitempty"`
	CashierName   string        `json:"cashierName,omitempty"`
}

func (s SaleData) Validate() error {
	if s.TicketCode == "" {
		return fmt.Errorf("sale: ticket code is required")
	}
	if s.SchoolID == "" {
		return fmt.Errorf("sale %s: school id is required", s.TicketCode)
	}
	return nil
}
