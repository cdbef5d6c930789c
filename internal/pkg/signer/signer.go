package signer

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"strings"
)

// Signer signs outbound fragments with our key and verifies inbound fragments against the portal's key.
type Signer interface {
	Sign(fragment []byte) (string, error)
	Verify(fragment []byte, signature string) (bool, error)
}

var ErrNoPEMBlock = errors.New("no PEM block found")

// RSASigner implements SHA256withRSA (PKCS#1 v1.5) with base64 signatures.
type RSASigner struct {
	privateKey *rsa.PrivateKey
	peerKey    *rsa.PublicKey
}

var _ Signer = (*RSASigner)(nil)

// NewRSASigner builds a signer from PEM content: our private key and the portal's public key or certificate.
func NewRSASigner(privatePEM, peerPEM []byte) (*RSASigner, error) {
	privateKey, err := parsePrivateKey(privatePEM)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	peerKey, err := parsePublicKey(peerPEM)
	if err != nil {
		return nil, fmt.Errorf("parse peer key: %w", err)
	}
	return &RSASigner{privateKey: privateKey, peerKey: peerKey}, nil
}

// LoadRSASigner reads both PEM files from disk.
func LoadRSASigner(privateKeyPath, peerKeyPath string) (*RSASigner, error) {
	// #nosec G304: paths come from operator configuration
	privatePEM, err := os.ReadFile(privateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("read private key %s: %w", privateKeyPath, err)
	}
	// #nosec G304: paths come from operator configuration
	peerPEM, err := os.ReadFile(peerKeyPath)
	if err != nil {
		return nil, fmt.Errorf("read peer key %s: %w", peerKeyPath, err)
	}
	return NewRSASigner(privatePEM, peerPEM)
}

func (s *RSASigner) Sign(fragment []byte) (string, error) {
	digest := sha256.Sum256(fragment)
	sig, err := rsa.SignPKCS1v15(rand.Reader, s.privateKey, crypto.SHA256, digest[:])
	if err != nil {
		return "", fmt.Errorf("sign fragment: %w", err)
	}
	return base64.StdEncoding.EncodeToString(sig), nil
}

// Verify returns false for a well-formed signature that does not match, and an error for undecodable input.
func (s *RSASigner) Verify(fragment []byte, signature string) (bool, error) {
	sig, err := base64.StdEncoding.DecodeString(strings.TrimSpace(signature))
	if err != nil {
		return false, fmt.Errorf("decode signature: %w", err)
	}
	digest := sha256.Sum256(fragment)
	if err := rsa.VerifyPKCS1v15(s.peerKey, crypto.SHA256, digest[:], sig); err != nil {
		return false, nil
	}
	return true, nil
}

func parsePrivateKey(content []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(content)
	if block == nil {
		return nil, ErrNoPEMBlock
	}
	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("private key is %T, want RSA", parsed)
	}
	return key, nil
}

func parsePublicKey(content []byte) (*rsa.PublicKey, error) {
	block, _ := pem.Decode(content)
	if block == nil {
		return nil, ErrNoPEMBlock
	}

	var parsed any
	switch block.Type {
	case "CERTIFICATE":
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, err
		}
		parsed = cert.PublicKey
	case "RSA PUBLIC KEY":
		return x509.ParsePKCS1PublicKey(block.Bytes)
	default:
		key, err := x509.ParsePKIXPublicKey(block.Bytes)
		if err != nil {
			return nil, err
		}
		parsed = key
	}

	key, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("public key is %T, want RSA", parsed)
	}
	return key, nil
}
