package api

import (
	"crypto/tls"
	"fmt"
	"os"
)

// TLSConfig holds the certificate and key paths the server is started with.
type TLSConfig struct {
	CertFile string
	KeyFile  string
}

var tlsConfig *TLSConfig

// InitTLS selects the certificate pair: WORKSHOP_TLS_CERT and WORKSHOP_TLS_KEY
// override the configured paths. TLS stays off unless both are known.
func InitTLS(certFile, keyFile string) {
	if v := os.Getenv("WORKSHOP_TLS_CERT"); v != "" {
		certFile = v
	}
	if v := os.Getenv("WORKSHOP_TLS_KEY"); v != "" {
		keyFile = v
	}

	tlsConfig = nil
	if certFile != "" && keyFile != "" {
		tlsConfig = &TLSConfig{CertFile: certFile, KeyFile: keyFile}
	}
}

// IsTLSEnabled returns true if TLS is configured.
func IsTLSEnabled() bool {
	return tlsConfig != nil && tlsConfig.CertFile != "" && tlsConfig.KeyFile != ""
}

// GetTLSConfig returns the current TLS configuration (may be nil).
func GetTLSConfig() *TLSConfig {
	return tlsConfig
}

// LoadTLSConfig loads the configured certificate pair. It returns nil, nil when
// TLS is off; a configured pair that cannot be loaded is an error.
func LoadTLSConfig() (*tls.Config, error) {
	if !IsTLSEnabled() {
		return nil, nil
	}

	cert, err := tls.LoadX509KeyPair(tlsConfig.CertFile, tlsConfig.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load TLS certificate: %w", err)
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}

// SetTLSConfigForTest allows tests to set TLS config directly.
func SetTLSConfigForTest(cfg *TLSConfig) {
	tlsConfig = cfg
}
