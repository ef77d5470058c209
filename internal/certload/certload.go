// Package certload reads the server's TLS key pair from disk.
//
// Supported layouts:
//
//	server.pem            certificate chain and private key in one PEM file
//	cert.pem + key.pem    certificate chain and key in separate PEM files
//	server.p12 / .pfx     PKCS#12 bundle, optionally password protected
//
// The first CERTIFICATE block is the leaf; any further blocks form the chain
// sent to clients. The private key must match the leaf's public key.
package certload

import (
	"crypto"
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/pkcs12"
)

var (
	// ErrNoCertificate is returned when the input holds no CERTIFICATE block.
	ErrNoCertificate = errors.New("no certificate found")

	// ErrNoPrivateKey is returned when the input holds no private key block.
	ErrNoPrivateKey = errors.New("no private key found")

	// ErrKeyMismatch is returned when the private key does not belong to
	// the leaf certificate.
	ErrKeyMismatch = errors.New("private key does not match certificate public key")
)

// Load reads a key pair. keyFile may be empty when certFile already carries
// the key. password is only consulted for PKCS#12 bundles.
func Load(certFile, keyFile, password string) (tls.Certificate, error) {
	if isPKCS12(certFile) {
		return loadPKCS12(certFile, password)
	}

	certPEM, err := os.ReadFile(certFile)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("read certificate: %w", err)
	}
	keyPEM := certPEM
	if keyFile != "" {
		keyPEM, err = os.ReadFile(keyFile)
		if err != nil {
			return tls.Certificate{}, fmt.Errorf("read private key: %w", err)
		}
	}

	cert, err := FromPEM(certPEM, keyPEM)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("load %s: %w", certFile, err)
	}
	return cert, nil
}

// FromPEM builds a key pair from PEM-encoded certificate and key data.
// Non-matching blocks in either input are skipped, so the same combined
// file may be passed for both.
func FromPEM(certPEM, keyPEM []byte) (tls.Certificate, error) {
	var chain [][]byte
	for _, block := range decodeAll(certPEM) {
		if block.Type == "CERTIFICATE" {
			chain = append(chain, block.Bytes)
		}
	}

	var keyDER []byte
	for _, block := range decodeAll(keyPEM) {
		if block.Type == "PRIVATE KEY" || strings.HasSuffix(block.Type, " PRIVATE KEY") {
			keyDER = block.Bytes
			break
		}
	}

	return assemble(chain, keyDER)
}

func assemble(chain [][]byte, keyDER []byte) (tls.Certificate, error) {
	if len(chain) == 0 {
		return tls.Certificate{}, ErrNoCertificate
	}
	if keyDER == nil {
		return tls.Certificate{}, ErrNoPrivateKey
	}

	leaf, err := x509.ParseCertificate(chain[0])
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("parse certificate: %w", err)
	}
	key, err := parseKey(keyDER)
	if err != nil {
		return tls.Certificate{}, err
	}
	if err := validateKeyMatchesCert(key, leaf); err != nil {
		return tls.Certificate{}, err
	}

	return tls.Certificate{
		Certificate: chain,
		PrivateKey:  key,
		Leaf:        leaf,
	}, nil
}

func loadPKCS12(path, password string) (tls.Certificate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("read certificate: %w", err)
	}
	blocks, err := pkcs12.ToPEM(data, password)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("decode PKCS#12 bundle %s: %w", path, err)
	}

	var chain [][]byte
	var keyDER []byte
	for _, block := range blocks {
		switch block.Type {
		case "CERTIFICATE":
			chain = append(chain, block.Bytes)
		case "PRIVATE KEY":
			keyDER = block.Bytes
		}
	}

	cert, err := assemble(chain, keyDER)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("load %s: %w", path, err)
	}
	return cert, nil
}

func isPKCS12(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".p12", ".pfx":
		return true
	}
	return false
}

func decodeAll(data []byte) []*pem.Block {
	var blocks []*pem.Block
	for {
		var block *pem.Block
		block, data = pem.Decode(data)
		if block == nil {
			return blocks
		}
		blocks = append(blocks, block)
	}
}

// parseKey accepts PKCS#8, PKCS#1 (RSA) and SEC 1 (EC) encodings, in the
// same order crypto/tls tries them.
func parseKey(der []byte) (crypto.Signer, error) {
	if key, err := x509.ParsePKCS8PrivateKey(der); err == nil {
		signer, ok := key.(crypto.Signer)
		if !ok {
			return nil, fmt.Errorf("unsupported private key type %T", key)
		}
		return signer, nil
	}
	if key, err := x509.ParsePKCS1PrivateKey(der); err == nil {
		return key, nil
	}
	if key, err := x509.ParseECPrivateKey(der); err == nil {
		return key, nil
	}
	return nil, fmt.Errorf("parse private key: unrecognized encoding")
}

func validateKeyMatchesCert(key crypto.Signer, cert *x509.Certificate) error {
	pub, ok := key.Public().(interface{ Equal(crypto.PublicKey) bool })
	if !ok || !pub.Equal(cert.PublicKey) {
		return ErrKeyMismatch
	}
	return nil
}
