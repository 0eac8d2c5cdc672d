// Package authz is the HTTP client side of the decision gateway: identity
// resolution against an identity service and decisions from a policy service.
package authz

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/tendant/objectgate/pkg/objectgate"
)

// Config configures the gateway endpoints
type Config struct {
	DecisionURL      string        // POST endpoint answering decision requests
	IdentityURL      string        // POST endpoint resolving bearer tokens
	ServiceToken     string        // optional bearer token sent to both services
	Timeout          time.Duration // per-request timeout (default: 5s)
	Retries          int           // retries on transport errors and 5xx (default: 2, negative disables)
	RetryDelay       time.Duration // delay between retries (default: 100ms)
	IdentityCacheTTL time.Duration // how long a token resolution is cached (default: 5m)
}

// Gateway implements objectgate.Authorizer over HTTP
type Gateway struct {
	cfg    Config
	client *http.Client
	cache  *cache.Cache
	logger *slog.Logger
}

// Option represents a functional option for configuring the gateway
type Option func(*Gateway)

// WithHTTPClient overrides the HTTP client
func WithHTTPClient(client *http.Client) Option {
	return func(g *Gateway) {
		g.client = client
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gateway) {
		g.logger = logger
	}
}

// New creates a gateway. DecisionURL is required; IdentityURL is only
// needed when callers present bare tokens.
func New(cfg Config, options ...Option) (*Gateway, error) {
	if strings.TrimSpace(cfg.DecisionURL) == "" {
		return nil, errors.New("decision url is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.Retries == 0 {
		cfg.Retries = 2
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 100 * time.Millisecond
	}
	if cfg.IdentityCacheTTL <= 0 {
		cfg.IdentityCacheTTL = 5 * time.Minute
	}

	g := &Gateway{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		cache:  cache.New(cfg.IdentityCacheTTL, 2*cfg.IdentityCacheTTL),
		logger: slog.Default(),
	}
	for _, option := range options {
		option(g)
	}
	return g, nil
}

type identityRequest struct {
	Token string `json:"token"`
}

type identityResponse struct {
	ID string `json:"id"`
}

// ResolveIdentity returns the subject id behind token, caching the answer
func (g *Gateway) ResolveIdentity(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", fmt.Errorf("%w: token missing", objectgate.ErrUnauthenticated)
	}
	if id, ok := g.cache.Get(token); ok {
		return id.(string), nil
	}
	if g.cfg.IdentityURL == "" {
		return "", errors.New("identity url not configured")
	}

	body, err := json.Marshal(identityRequest{Token: token})
	if err != nil {
		return "", err
	}
	code, respBody, err := requestJSON(ctx, g.client, http.MethodPost, g.cfg.IdentityURL, body,
		g.headers(), g.cfg.Retries, g.cfg.RetryDelay)
	if err != nil {
		return "", fmt.Errorf("%w: identity lookup: %v", objectgate.ErrUpstream, err)
	}
	switch {
	case code == http.StatusUnauthorized || code == http.StatusNotFound:
		return "", fmt.Errorf("%w: token not recognized", objectgate.ErrUnauthenticated)
	case code != http.StatusOK:
		return "", &objectgate.StatusError{Code: code, Message: "identity lookup: " + strings.TrimSpace(string(respBody))}
	}

	var resp identityResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return "", fmt.Errorf("%w: identity response: %v", objectgate.ErrUpstream, err)
	}
	if resp.ID == "" {
		return "", fmt.Errorf("%w: token not recognized", objectgate.ErrUnauthenticated)
	}

	g.cache.SetDefault(token, resp.ID)
	return resp.ID, nil
}

type decisionSubject struct {
	ID    string `json:"id"`
	Scope string `json:"scope,omitempty"`
}

type decisionRequest struct {
	Mode      string                `json:"mode"`
	Action    objectgate.Action     `json:"action"`
	Subject   decisionSubject       `json:"subject"`
	Resources []objectgate.Resource `json:"resources"`
}

type decisionResponse struct {
	Decision objectgate.Effect  `json:"decision"`
	Status   *objectgate.Status `json:"status,omitempty"`
	Scope    *objectgate.Scope  `json:"scope,omitempty"`
}

// Decide asks the policy service. Every failure comes back as a DENY
// carrying the failure's code and message.
func (g *Gateway) Decide(ctx context.Context, subject *objectgate.Subject, resources []objectgate.Resource, action objectgate.Action, mode objectgate.Mode) objectgate.Decision {
	if subject == nil || (subject.ID == "" && subject.Token == "") {
		return deny(fmt.Errorf("%w: subject missing", objectgate.ErrUnauthenticated))
	}

	id := subject.ID
	if id == "" {
		var err error
		if id, err = g.ResolveIdentity(ctx, subject.Token); err != nil {
			g.logger.Warn("Failed to resolve identity", "err", err)
			return deny(err)
		}
	}

	body, err := json.Marshal(decisionRequest{
		Mode:      mode.String(),
		Action:    action,
		Subject:   decisionSubject{ID: id, Scope: subject.Scope},
		Resources: resources,
	})
	if err != nil {
		return deny(err)
	}

	code, respBody, err := requestJSON(ctx, g.client, http.MethodPost, g.cfg.DecisionURL, body,
		g.headers(), g.cfg.Retries, g.cfg.RetryDelay)
	if err != nil {
		g.logger.Error("Failed to reach decision service", "err", err)
		return deny(fmt.Errorf("%w: decision service: %v", objectgate.ErrUpstream, err))
	}
	if code != http.StatusOK {
		return deny(&objectgate.StatusError{Code: code, Message: "decision service: " + strings.TrimSpace(string(respBody))})
	}

	var resp decisionResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return deny(fmt.Errorf("%w: decision response: %v", objectgate.ErrUpstream, err))
	}

	switch resp.Decision {
	case objectgate.Permit:
		status := objectgate.Status{Code: objectgate.CodeOK, Message: "success"}
		if resp.Status != nil {
			status = *resp.Status
		}
		return objectgate.Decision{Effect: objectgate.Permit, Status: status, Scope: resp.Scope}
	default:
		status := objectgate.Status{Code: objectgate.CodePermissionDenied, Message: objectgate.ErrPermissionDenied.Error()}
		if resp.Status != nil && resp.Status.Code != 0 && resp.Status.Code != objectgate.CodeOK {
			status = *resp.Status
		}
		return objectgate.Decision{Effect: objectgate.Deny, Status: status}
	}
}

func (g *Gateway) headers() map[string]string {
	if g.cfg.ServiceToken == "" {
		return nil
	}
	return map[string]string{"Authorization": "Bearer " + g.cfg.ServiceToken}
}

func deny(err error) objectgate.Decision {
	return objectgate.Decision{Effect: objectgate.Deny, Status: objectgate.StatusFromError(err)}
}
