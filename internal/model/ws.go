package model

type MessageType string

const (
	MessageTypeCertificate  MessageType = "certificate"
	MessageTypeSignRequest  MessageType = "sign_request"
	MessageTypeSignature    MessageType = "signature"
	MessageTypeReady        MessageType = "ready"
	MessageTypePing         MessageType = "ping"
	MessageTypePong         MessageType = "pong"
	MessageTypeFindPrinters MessageType = "printers.find"
	MessageTypePrint        MessageType = "print"
	MessageTypeResult       MessageType = "result"
	MessageTypeError        MessageType = "error"
)

// --- Print agent WebSocket frames ---

type WSMessage struct {
	Type        MessageType `json:"type"`
	UID         string      `json:"uid,omitempty"`
	Certificate string      `json:"certificate,omitempty"`
	Challenge   string      `json:"challenge,omitempty"`
	Signature   string      `json:"signature,omitempty"`
	Printer     string      `json:"printer,omitempty"`
	Data        string      `json:"data,omitempty"` // base64 ESC/POS bytes
	Printers    []string    `json:"printers,omitempty"`
	Error       string      `json:"error,omitempty"`
}

type ConnectionState string

const (
	StateDisconnected ConnectionState = "disconnected"
	StateHandshaking  ConnectionState = "handshaking"
	StateConnected    ConnectionState = "connected"
	StateFailed       ConnectionState = "failed"
)
