package signing

import (
	"crypto/ed25519"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/hex"
	"encoding/pem"
	"fmt"
	"sync"

	"binancex/pkg/core"
)

// Signer computes the signature of a canonical payload.
// Implementations must be deterministic for a given payload and credential.
type Signer interface {
	Sign(payload string, cred core.Credentials) (string, error)
	Scheme() core.SignatureScheme
}

// NewSigner returns the signer for scheme.
func NewSigner(scheme core.SignatureScheme) (Signer, error) {
	switch scheme {
	case core.SchemeHMAC, "":
		return HMACSigner{}, nil
	case core.SchemeEd25519:
		return NewEd25519Signer(), nil
	default:
		return nil, core.NewParameterError(fmt.Sprintf("unknown signature scheme %q", scheme), nil).
			WithCode(core.ErrCodeInvalidConfig)
	}
}

// HMACSigner signs with HMAC-SHA256 keyed by the secret and returns a lowercase hex digest.
type HMACSigner struct{}

// Sign returns the hex HMAC-SHA256 of payload. An empty secret is a SignatureError.
func (HMACSigner) Sign(payload string, cred core.Credentials) (string, error) {
	if cred.SecretKey == "" {
		return "", core.NewSignatureError("empty secret key", nil)
	}
	mac := hmac.New(sha256.New, []byte(cred.SecretKey))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil)), nil
}

func (HMACSigner) Scheme() core.SignatureScheme {
	return core.SchemeHMAC
}

// Ed25519Signer signs with a PKCS#8 PEM private key and returns standard base64.
// Parsed keys are cached by PEM text.
type Ed25519Signer struct {
	keys sync.Map // pem -> ed25519.PrivateKey
}

// NewEd25519Signer returns a signer with an empty key cache.
func NewEd25519Signer() *Ed25519Signer {
	return &Ed25519Signer{}
}

func (s *Ed25519Signer) Sign(payload string, cred core.Credentials) (string, error) {
	key, err := s.privateKey(cred.SecretKey)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(ed25519.Sign(key, []byte(payload))), nil
}

func (s *Ed25519Signer) Scheme() core.SignatureScheme {
	return core.SchemeEd25519
}

func (s *Ed25519Signer) privateKey(secret string) (ed25519.PrivateKey, error) {
	if v, ok := s.keys.Load(secret); ok {
		return v.(ed25519.PrivateKey), nil
	}
	key, err := ParseEd25519Key(secret)
	if err != nil {
		return nil, err
	}
	s.keys.Store(secret, key)
	return key, nil
}

// ParseEd25519Key decodes a PKCS#8 PEM block holding an Ed25519 private key.
func ParseEd25519Key(secret string) (ed25519.PrivateKey, error) {
	block, _ := pem.Decode([]byte(secret))
	if block == nil {
		return nil, core.NewSignatureError("secret key is not PEM encoded", nil)
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, core.NewSignatureError("parse pkcs8 private key", err)
	}
	key, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, core.NewSignatureError("private key is not ed25519", fmt.Errorf("unexpected key type %T", parsed))
	}
	return key, nil
}
