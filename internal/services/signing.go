package services

import (
	"crypto/rsa"
	"encoding/base64"
	"fmt"
	"os"

	"github.com/golang-jwt/jwt/v5"
)

// SigningStrategy answers the print agent's security negotiation.
type SigningStrategy interface {
	Name() string
	// Certificate is presented when the connection opens. An empty
	// certificate asks the agent for manual operator approval.
	Certificate() (string, error)
	// Sign returns the base64 signature of the agent's challenge.
	Sign(challenge string) (string, error)
}

// SignedStrategy signs challenges with RSA SHA-512.
type SignedStrategy struct {
	certificate string
	key         *rsa.PrivateKey
}

func NewSignedStrategy(certPEM, keyPEM []byte) (*SignedStrategy, error) {
	if len(certPEM) == 0 {
		return nil, fmt.Errorf("signing: empty certificate")
	}
	key, err := jwt.ParseRSAPrivateKeyFromPEM(keyPEM)
	if err != nil {
		return nil, fmt.Errorf("signing: parse private key: %w", err)
	}
	return &SignedStrategy{certificate: string(certPEM), key: key}, nil
}

func LoadSignedStrategy(certFile, keyFile string) (*SignedStrategy, error) {
	certPEM, err := os.ReadFile(certFile)
	if err != nil {
		return nil, fmt.Errorf("signing: read certificate: %w", err)
	}
	keyPEM, err := os.ReadFile(keyFile)
	if err != nil {
		return nil, fmt.Errorf("signing: read private key: %w", err)
	}
	return NewSignedStrategy(certPEM, keyPEM)
}

func (s *SignedStrategy) Name() string { return "signed" }

func (s *SignedStrategy) Certificate() (string, error) {
	return s.certificate, nil
}

func (s *SignedStrategy) Sign(challenge string) (string, error) {
	sig, err := jwt.SigningMethodRS512.Sign(challenge, s.key)
	if err != nil {
		return "", fmt.Errorf("signing: %w", err)
	}
	return base64.StdEncoding.EncodeToString(sig), nil
}

// UnsignedStrategy presents no credential; the agent shows its own
// approval prompt to the operator.
type UnsignedStrategy struct{}

func (UnsignedStrategy) Name() string { return "unsigned" }

func (UnsignedStrategy) Certificate() (string, error) { return "", nil }

func (UnsignedStrategy) Sign(string) (string, error) { return "", nil }

// VerifySignature checks a signature produced by SignedStrategy against a
// PEM public key or certificate.
func VerifySignature(publicPEM []byte, challenge, signature string) error {
	pub, err := jwt.ParseRSAPublicKeyFromPEM(publicPEM)
	if err != nil {
		return fmt.Errorf("signing: parse public key: %w", err)
	}
	sig, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return fmt.Errorf("signing: decode signature: %w", err)
	}
	return jwt.SigningMethodRS512.Verify(challenge, sig, pub)
}
