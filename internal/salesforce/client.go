package salesforce

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ErrUnauthorized means Salesforce rejected the access token. The caller
// should invalidate the cached token so the next request refreshes.
var ErrUnauthorized = errors.New("salesforce session expired or invalid")

// QueryError is a non-2xx response from the Salesforce REST API.
type QueryError struct {
	StatusCode int
	Message    string
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("salesforce query failed (status %d): %s", e.StatusCode, e.Message)
}

// BadRequest reports whether Salesforce rejected the SOQL itself.
func (e *QueryError) BadRequest() bool {
	return e.StatusCode == http.StatusBadRequest
}

// TokenPayload is the token endpoint's response to a refresh or
// authorization-code grant. Salesforce includes no expires_in field.
type TokenPayload struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	InstanceURL  string `json:"instance_url"`
	ID           string `json:"id,omitempty"`
	TokenType    string `json:"token_type,omitempty"`
	IssuedAt     string `json:"issued_at,omitempty"`
}

// QueryResult is Salesforce's SOQL response envelope.
type QueryResult struct {
	TotalSize int               `json:"totalSize"`
	Done      bool              `json:"done"`
	Records   []json.RawMessage `json:"records"`
}

// Client talks to the Salesforce OAuth token endpoint and REST API.
type Client struct {
	loginURL     string
	apiVersion   string
	clientID     string
	clientSecret string
	httpClient   *http.Client
	log          zerolog.Logger
}

// NewClient creates a Salesforce REST client.
func NewClient(cfg *Config, log zerolog.Logger) *Client {
	return &Client{
		loginURL:     cfg.LoginURL,
		apiVersion:   cfg.APIVersion,
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		httpClient: &http.Client{
			Timeout: 20 * time.Second,
		},
		log: log.With().Str("client", "salesforce").Logger(),
	}
}

// RefreshAccessToken exchanges a refresh token for a fresh access token.
func (c *Client) RefreshAccessToken(ctx context.Context, refreshToken string) (*TokenPayload, error) {
	form := url.Values{
		"grant_type":    {"refresh_token"},
		"client_id":     {c.clientID},
		"client_secret": {c.clientSecret},
		"refresh_token": {refreshToken},
	}
	return c.tokenGrant(ctx, form)
}

// ExchangeAuthCode trades an authorization code for tokens. The returned
// payload carries the refresh token the operator must place into the
// environment.
func (c *Client) ExchangeAuthCode(ctx context.Context, code, redirectURI string) (*TokenPayload, error) {
	form := url.Values{
		"grant_type":    {"authorization_code"},
		"client_id":     {c.clientID},
		"client_secret": {c.clientSecret},
		"code":          {code},
		"redirect_uri":  {redirectURI},
	}
	return c.tokenGrant(ctx, form)
}

// AuthorizeURL builds the operator-facing authorization redirect target.
func (c *Client) AuthorizeURL(redirectURI, state string) string {
	q := url.Values{
		"response_type": {"code"},
		"client_id":     {c.clientID},
		"redirect_uri":  {redirectURI},
		"scope":         {"api refresh_token"},
		"state":         {state},
	}
	return c.loginURL + "/services/oauth2/authorize?" + q.Encode()
}

// Query runs a SOQL query against the instance the token was issued for.
func (c *Client) Query(ctx context.Context, token *Token, soql string) (*QueryResult, error) {
	endpoint := fmt.Sprintf("%s/services/data/%s/query?q=%s",
		strings.TrimRight(token.InstanceURL, "/"), c.apiVersion, url.QueryEscape(soql))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build query request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("salesforce query request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read query response: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, ErrUnauthorized
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &QueryError{StatusCode: resp.StatusCode, Message: extractAPIError(body)}
	}

	var result QueryResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to decode query response: %w", err)
	}
	return &result, nil
}

// tokenGrant posts a form to the token endpoint and decodes the payload.
func (c *Client) tokenGrant(ctx context.Context, form url.Values) (*TokenPayload, error) {
	endpoint := c.loginURL + "/services/oauth2/token"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("salesforce token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read token response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.log.Warn().Int("status", resp.StatusCode).Msg("Token grant rejected")
		return nil, fmt.Errorf("token grant failed (status %d): %s", resp.StatusCode, extractOAuthError(body))
	}

	var payload TokenPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode token response: %w", err)
	}
	if payload.AccessToken == "" || payload.InstanceURL == "" {
		return nil, fmt.Errorf("token response missing access_token or instance_url")
	}
	return &payload, nil
}

// extractOAuthError pulls error_description out of an OAuth failure body.
func extractOAuthError(body []byte) string {
	var oauthErr struct {
		Error       string `json:"error"`
		Description string `json:"error_description"`
	}
	if err := json.Unmarshal(body, &oauthErr); err == nil && oauthErr.Error != "" {
		if oauthErr.Description != "" {
			return oauthErr.Error + ": " + oauthErr.Description
		}
		return oauthErr.Error
	}
	return strings.TrimSpace(string(body))
}

// extractAPIError pulls the first message out of Salesforce's error
// array, which is its REST failure shape.
func extractAPIError(body []byte) string {
	var apiErrs []struct {
		Message   string `json:"message"`
		ErrorCode string `json:"errorCode"`
	}
	if err := json.Unmarshal(body, &apiErrs); err == nil && len(apiErrs) > 0 && apiErrs[0].Message != "" {
		return apiErrs[0].Message
	}
	return strings.TrimSpace(string(body))
}
