package serve

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"errors"
	"fmt"
	"math/big"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/chirino/chat-history/internal/config"
	"github.com/soheilhy/cmux"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

// listener serves one handler on one TCP port. Plaintext connections
// (HTTP/1.1 and h2c) and TLS connections may share the port; cmux routes
// each connection by its first bytes.
type listener struct {
	name    string
	port    int
	base    net.Listener
	servers []*http.Server

	stopOnce sync.Once
	stopErr  error
}

// startListener binds cfg.Port (0 picks a free port) and starts serving.
// Both the main API and the dedicated management port go through here.
func startListener(name string, cfg config.ListenerConfig, handler http.Handler) (*listener, error) {
	if !cfg.EnablePlainText && !cfg.EnableTLS {
		return nil, fmt.Errorf("%s listener: neither plaintext nor tls is enabled", name)
	}
	headerTimeout := cfg.ReadHeaderTimeout
	if headerTimeout <= 0 {
		headerTimeout = 5 * time.Second
	}

	var tlsConfig *tls.Config
	if cfg.EnableTLS {
		cert, err := serverCertificate(cfg.TLSCertFile, cfg.TLSKeyFile)
		if err != nil {
			return nil, fmt.Errorf("%s listener: %w", name, err)
		}
		tlsConfig = &tls.Config{
			Certificates: []tls.Certificate{cert},
			NextProtos:   []string{"h2", "http/1.1"},
			MinVersion:   tls.VersionTLS12,
		}
	}

	base, err := net.Listen("tcp", net.JoinHostPort("", strconv.Itoa(cfg.Port)))
	if err != nil {
		return nil, fmt.Errorf("%s listener: %w", name, err)
	}
	l := &listener{name: name, base: base}
	if addr, ok := base.Addr().(*net.TCPAddr); ok {
		l.port = addr.Port
	}

	// cmux tries matchers in registration order, so TLS goes first and
	// plaintext takes everything else.
	mux := cmux.New(base)
	if tlsConfig != nil {
		l.serve("tls", handler, headerTimeout, tls.NewListener(mux.Match(cmux.TLS()), tlsConfig))
	}
	if cfg.EnablePlainText {
		l.serve("plaintext", h2c.NewHandler(handler, &http2.Server{}), headerTimeout, mux.Match(cmux.Any()))
	}
	go func() {
		if err := mux.Serve(); err != nil && !errors.Is(err, net.ErrClosed) {
			log.Error("Connection mux stopped", "listener", name, "err", err)
		}
	}()

	log.Debug("Listener bound", "listener", name, "port", l.port, "plaintext", cfg.EnablePlainText, "tls", cfg.EnableTLS)
	return l, nil
}

func (l *listener) serve(protocol string, handler http.Handler, headerTimeout time.Duration, lis net.Listener) {
	srv := &http.Server{Handler: handler, ReadHeaderTimeout: headerTimeout}
	l.servers = append(l.servers, srv)
	go func() {
		if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server stopped", "listener", l.name, "protocol", protocol, "err", err)
		}
	}()
}

// Shutdown drains in-flight requests and releases the port. Later calls
// return the first call's result.
func (l *listener) Shutdown(ctx context.Context) error {
	l.stopOnce.Do(func() {
		var errs []error
		for _, srv := range l.servers {
			if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, context.Canceled) {
				errs = append(errs, err)
			}
		}
		if err := l.base.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			errs = append(errs, err)
		}
		l.stopErr = errors.Join(errs...)
	})
	return l.stopErr
}

// serverCertificate loads the configured key pair, or creates a throwaway
// self-signed certificate for localhost when none is configured.
func serverCertificate(certFile, keyFile string) (tls.Certificate, error) {
	certFile, keyFile = strings.TrimSpace(certFile), strings.TrimSpace(keyFile)
	switch {
	case certFile != "" && keyFile != "":
		cert, err := tls.LoadX509KeyPair(certFile, keyFile)
		if err != nil {
			return tls.Certificate{}, fmt.Errorf("load tls key pair: %w", err)
		}
		return cert, nil
	case certFile != "" || keyFile != "":
		return tls.Certificate{}, fmt.Errorf("tls cert and key files must be set together")
	}

	log.Warn("No TLS certificate configured; using a self-signed one for localhost")
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("self-signed key: %w", err)
	}
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 64))
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("self-signed serial: %w", err)
	}
	now := time.Now()
	tmpl := x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{CommonName: "chat-history", Organization: []string{"chat-history dev"}},
		DNSNames:              []string{"localhost"},
		IPAddresses:           []net.IP{net.IPv4(127, 0, 0, 1), net.IPv6loopback},
		NotBefore:             now.Add(-time.Minute),
		NotAfter:              now.AddDate(0, 0, 30),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
	}
	der, err := x509.CreateCertificate(rand.Reader, &tmpl, &tmpl, key.Public(), key)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("self-signed certificate: %w", err)
	}
	return tls.Certificate{Certificate: [][]byte{der}, PrivateKey: key}, nil
}
