package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/yegors/if-inbounds/internal/ifapi"
	"github.com/yegors/if-inbounds/pkg/logger"
)

// maxEnvelopeBytes bounds POST envelopes read from clients
const maxEnvelopeBytes = 1 << 20

// Relayer forwards a request to the upstream API with credentials attached
type Relayer interface {
	Relay(ctx context.Context, method, endpoint, rawQuery string, body []byte) (*http.Response, error)
	HasAPIKey() bool
}

// Envelope is the POST form of a relayed request
type Envelope struct {
	Endpoint string          `json:"endpoint"`
	Method   string          `json:"method,omitempty"`
	Body     json.RawMessage `json:"body,omitempty"`
}

// Proxy relays browser requests to the upstream API so the key stays server side
type Proxy struct {
	relayer Relayer
	logger  *logger.Logger
}

// New creates a new proxy
func New(relayer Relayer, log *logger.Logger) *Proxy {
	return &Proxy{
		relayer: relayer,
		logger:  log.Named("proxy"),
	}
}

// Routes returns the proxy handler, meant to be mounted under a prefix
func (p *Proxy) Routes() http.Handler {
	router := chi.NewRouter()
	router.Use(cors)

	router.Options("/*", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	router.Get("/*", p.handleGet)
	router.Post("/", p.handlePost)
	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	return router
}

func (p *Proxy) handleGet(w http.ResponseWriter, r *http.Request) {
	endpoint := chi.URLParam(r, "*")
	if endpoint == "" {
		writeError(w, http.StatusBadRequest, "Endpoint is required")
		return
	}
	p.relay(w, r, http.MethodGet, endpoint, r.URL.RawQuery, nil)
}

func (p *Proxy) handlePost(w http.ResponseWriter, r *http.Request) {
	var env Envelope
	if err := json.NewDecoder(io.LimitReader(r.Body, maxEnvelopeBytes)).Decode(&env); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if env.Endpoint == "" {
		writeError(w, http.StatusBadRequest, "Endpoint is required")
		return
	}

	method := strings.ToUpper(env.Method)
	if method == "" {
		method = http.MethodGet
	}
	if method != http.MethodGet && method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, fmt.Sprintf("Method %s not allowed", method))
		return
	}

	endpoint, rawQuery, _ := strings.Cut(env.Endpoint, "?")

	var body []byte
	if method == http.MethodPost && len(env.Body) > 0 && string(env.Body) != "null" {
		body = env.Body
	}
	p.relay(w, r, method, endpoint, rawQuery, body)
}

func (p *Proxy) relay(w http.ResponseWriter, r *http.Request, method, endpoint, rawQuery string, body []byte) {
	if !p.relayer.HasAPIKey() {
		p.logger.Error("API key is missing")
		writeError(w, http.StatusInternalServerError, "Server configuration error: Missing API Key")
		return
	}

	resp, err := p.relayer.Relay(r.Context(), method, endpoint, rawQuery, body)
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, ifapi.ErrFetchTimeout) || errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusGatewayTimeout
		}
		p.logger.Warn("Relay failed",
			logger.String("method", method),
			logger.String("endpoint", endpoint),
			logger.Error(err),
		)
		writeError(w, status, "Upstream request failed")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		p.logger.Warn("Upstream returned error status",
			logger.String("endpoint", endpoint),
			logger.Int("status", resp.StatusCode),
		)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/json"
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		p.logger.Debug("Failed to copy upstream body", logger.Error(err))
	}
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		next.ServeHTTP(w, r)
	})
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
