package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/strandpine/warden/internal/background"
	"github.com/strandpine/warden/internal/config"
	"github.com/strandpine/warden/internal/devices"
	"github.com/strandpine/warden/internal/geo"
	"github.com/strandpine/warden/internal/handlers"
	"github.com/strandpine/warden/internal/identity"
	"github.com/strandpine/warden/internal/ledger"
	"github.com/strandpine/warden/internal/lockout"
	middlewareCustom "github.com/strandpine/warden/internal/middleware"
	"github.com/strandpine/warden/internal/risk"
	"github.com/strandpine/warden/internal/routes"
	"github.com/strandpine/warden/internal/security"
	"github.com/strandpine/warden/internal/session"
	"github.com/strandpine/warden/internal/store"
	pkgauth "github.com/strandpine/warden/pkg/auth"
	pkghttp "github.com/strandpine/warden/pkg/http"
	pkglogger "github.com/strandpine/warden/pkg/logger"
)

// TestServer wraps httptest.Server with the full security stack
type TestServer struct {
	Server      *httptest.Server
	Manager     *security.Manager
	Provider    *identity.LocalProvider
	Holder      *config.Holder
	Sessions    *session.Manager
	Locks       *lockout.Manager
	OperatorKey string
	logger      *slog.Logger
}

// NewTestServer initializes a complete HTTP server on top of the given
// write-through store. Timing delays are near zero so lockout tests
// stay fast.
func NewTestServer(persister store.Store) (*TestServer, error) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn}))

	securityConfig := config.SecurityConfig{
		MaxLoginAttempts:            3,
		LockoutDuration:             30 * time.Minute,
		SessionTimeout:              time.Hour,
		MaxConcurrentSessions:       2,
		RequireMFA:                  false,
		MinPasswordLength:           8,
		RequirePasswordComplexity:   false,
		SuspiciousActivityThreshold: risk.MaxScore + 1,
	}
	holder := config.NewHolder(securityConfig)

	attempts := ledger.NewLedger(ledger.DefaultCapacity, persister, logger)
	sessions := session.NewManager(holder, persister, logger)
	locks := lockout.NewManager(attempts, holder, persister, logger)
	registry := devices.NewRegistry()

	policy, err := risk.NewCIDRPolicy(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build risk policy: %w", err)
	}
	engine := risk.NewEngine(policy)

	provider := identity.NewLocalProvider("test-secret-32-characters-long!!", 15*time.Minute)

	auditLogger := pkglogger.NewAuditLogger(logger)
	timingDelay := security.NewTimingDelay(time.Millisecond, time.Millisecond)

	manager := security.NewManager(
		holder,
		attempts,
		sessions,
		locks,
		registry,
		engine,
		geo.NewStubResolver(),
		provider,
		nil,
		timingDelay,
		logger,
		security.NewAuditSink(auditLogger),
	)

	operatorKey, operatorKeyHash, err := middlewareCustom.GenerateOperatorKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate operator key: %w", err)
	}

	ipConfig := &pkghttp.IPConfig{}
	authHandler := handlers.NewAuthHandler(manager, holder, ipConfig, middlewareCustom.CookieConfig{})
	mfaHandler := handlers.NewMFAHandler(nil, manager)
	securityHandler := handlers.NewSecurityHandler(manager)

	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: "test"}))
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(60 * time.Second))

	routes.RegisterRoutes(r, authHandler, mfaHandler, securityHandler, manager, operatorKeyHash, logger)

	server := httptest.NewServer(r)

	return &TestServer{
		Server:      server,
		Manager:     manager,
		Provider:    provider,
		Holder:      holder,
		Sessions:    sessions,
		Locks:       locks,
		OperatorKey: operatorKey,
		logger:      logger,
	}, nil
}

// Close shuts down the test server
func (ts *TestServer) Close() {
	if ts.Server != nil {
		ts.Server.Close()
	}
}

// SeedIdentity registers a credential with a permissive policy.
func (ts *TestServer) SeedIdentity(identity, secret string) error {
	return ts.Provider.Register(identity, secret, true, pkgauth.PasswordPolicy{
		MinLength:         8,
		RequireComplexity: false,
	})
}

// Sweeper builds the cleanup manager wiring used in production so
// sweep behavior can be exercised against the live server state.
func (ts *TestServer) Sweeper() *background.CleanupManager {
	return background.NewCleanupManager(ts.Locks, ts.Sessions, ts.Manager, ts.logger, 0, 0)
}

// Request makes an HTTP request to the test server
func (ts *TestServer) Request(method, path string, body interface{}, headers map[string]string) (*http.Response, error) {
	url := ts.Server.URL + path

	var bodyReader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequest(method, url, bodyReader)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	return http.DefaultClient.Do(req)
}

// RequestWithSession makes a request carrying a session id
func (ts *TestServer) RequestWithSession(method, path, sessionID string, body interface{}) (*http.Response, error) {
	headers := map[string]string{
		"X-Session-ID": sessionID,
	}
	return ts.Request(method, path, body, headers)
}

// RequestWithOperatorKey makes a request against the operator surface
func (ts *TestServer) RequestWithOperatorKey(method, path string, body interface{}) (*http.Response, error) {
	headers := map[string]string{
		"X-Operator-Key": ts.OperatorKey,
	}
	return ts.Request(method, path, body, headers)
}

// ParseJSONResponse parses JSON response body into target struct
func ParseJSONResponse(resp *http.Response, target interface{}) error {
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(target)
}

// ExtractLoginResponse pulls the session id and MFA flag from a login response
func ExtractLoginResponse(resp *http.Response) (sessionID string, requiresMFA bool, err error) {
	defer resp.Body.Close()

	var loginResp map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&loginResp); err != nil {
		return "", false, fmt.Errorf("failed to parse response: %w", err)
	}

	if id, ok := loginResp["session_id"].(string); ok {
		sessionID = id
	}
	if required, ok := loginResp["requires_mfa"].(bool); ok {
		requiresMFA = required
	}

	return sessionID, requiresMFA, nil
}

// GetErrorMessage extracts error message from error response
func GetErrorMessage(resp *http.Response) (string, error) {
	defer resp.Body.Close()
	var errResp map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil {
		return "", err
	}
	if msg, ok := errResp["message"].(string); ok {
		return msg, nil
	}
	return "", nil
}
