package serve

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/chirino/chat-history/internal/config"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Bundled.Dir = t.TempDir()
	cfg.Local.Dir = t.TempDir()
	cfg.Listener.Port = 0
	cfg.DrainTimeout = 5 * time.Second

	index := filepath.Join(cfg.Bundled.Dir, "userid_conversations")
	require.NoError(t, os.WriteFile(index, []byte(`{"conversations":[{"id":"bob","name":"Bob"}]}`), 0o644))
	return &cfg
}

func startTestServer(t *testing.T, cfg *config.Config) *Server {
	t.Helper()
	srv, err := StartServer(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.DrainTimeout)
		defer cancel()
		require.NoError(t, srv.Shutdown(ctx))
	})
	return srv
}

func get(t *testing.T, client *http.Client, url string) (int, string) {
	t.Helper()
	resp, err := client.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestStartServerServesAPIAndManagement(t *testing.T) {
	srv := startTestServer(t, testConfig(t))
	base := fmt.Sprintf("http://127.0.0.1:%d", srv.Port)

	code, body := get(t, http.DefaultClient, base+"/v1/conversations")
	require.Equal(t, http.StatusOK, code)
	require.Contains(t, body, `"id":"bob"`)

	code, _ = get(t, http.DefaultClient, base+"/ready")
	require.Equal(t, http.StatusOK, code)
	code, body = get(t, http.DefaultClient, base+"/metrics")
	require.Equal(t, http.StatusOK, code)
	require.Contains(t, body, "chat_history_requests_total")
}

func TestStartServerPlainAndTLSOnOnePort(t *testing.T) {
	cfg := testConfig(t)
	cfg.Listener.EnableTLS = true
	srv := startTestServer(t, cfg)

	tlsClient := &http.Client{Transport: &http.Transport{
		TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, //nolint:gosec // self-signed test certificate
	}}
	code, _ := get(t, tlsClient, fmt.Sprintf("https://127.0.0.1:%d/health", srv.Port))
	require.Equal(t, http.StatusOK, code)

	code, _ = get(t, http.DefaultClient, fmt.Sprintf("http://127.0.0.1:%d/health", srv.Port))
	require.Equal(t, http.StatusOK, code)
}

func TestStartServerRejectsBadMetricsLabels(t *testing.T) {
	cfg := testConfig(t)
	cfg.MetricsLabels = "not-a-pair"
	_, err := StartServer(context.Background(), cfg)
	require.ErrorContains(t, err, "invalid --metrics-labels")
}

func TestStartServerDedicatedManagementPort(t *testing.T) {
	cfg := testConfig(t)
	cfg.ManagementListenerEnabled = true
	cfg.ManagementListener.Port = 0
	srv := startTestServer(t, cfg)
	require.NotZero(t, srv.ManagementPort)
	require.NotEqual(t, srv.Port, srv.ManagementPort)

	mgmt := fmt.Sprintf("http://127.0.0.1:%d", srv.ManagementPort)
	api := fmt.Sprintf("http://127.0.0.1:%d", srv.Port)

	code, _ := get(t, http.DefaultClient, mgmt+"/health")
	require.Equal(t, http.StatusOK, code)
	code, _ = get(t, http.DefaultClient, api+"/health")
	require.Equal(t, http.StatusNotFound, code)
	code, _ = get(t, http.DefaultClient, mgmt+"/v1/conversations")
	require.Equal(t, http.StatusNotFound, code)
}

func TestStartListenerNeedsAProtocol(t *testing.T) {
	_, err := startListener("api", config.ListenerConfig{}, http.NotFoundHandler())
	require.ErrorContains(t, err, "neither plaintext nor tls")
}

func TestServerCertificateNeedsBothFiles(t *testing.T) {
	_, err := serverCertificate("cert.pem", "")
	require.ErrorContains(t, err, "must be set together")

	cert, err := serverCertificate("", "")
	require.NoError(t, err)
	require.Len(t, cert.Certificate, 1)
}

func TestListenerShutdownIsIdempotent(t *testing.T) {
	l, err := startListener("api", config.ListenerConfig{EnablePlainText: true}, http.NotFoundHandler())
	require.NoError(t, err)
	require.NotZero(t, l.port)
	require.NoError(t, l.Shutdown(context.Background()))
	require.NoError(t, l.Shutdown(context.Background()))
}
