package graphapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

const (
	// DefaultBaseURL is the public Graph API host.
	DefaultBaseURL = "https://graph.facebook.com"
	// DefaultVersion is the Graph API version segment prefixed to every path.
	DefaultVersion = "v19.0"

	accessTokenParam = "access_token"

	messageInvalidTokenResponse = "Invalid token response from Facebook API"
)

// Config configures a Client.
type Config struct {
	BaseURL    string
	Version    string
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Client issues Graph API calls. It carries no per-user state; every call receives its token explicitly.
type Client struct {
	baseURL    string
	version    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient constructs a Client, filling defaults for empty fields.
func NewClient(config Config) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(config.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	version := strings.Trim(strings.TrimSpace(config.Version), "/")
	if version == "" {
		version = DefaultVersion
	}
	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:    baseURL,
		version:    version,
		httpClient: httpClient,
		logger:     logger,
	}
}

// Endpoint returns the absolute URL for a versioned Graph API path.
func (client *Client) Endpoint(path string) string {
	return client.baseURL + "/" + client.version + "/" + strings.TrimLeft(path, "/")
}

// Get issues a GET and returns the raw JSON body of a 2xx response.
func (client *Client) Get(ctx context.Context, path string, params url.Values, accessToken string) (json.RawMessage, error) {
	return client.do(ctx, http.MethodGet, path, params, accessToken, nil)
}

// Post issues a POST with a JSON body and returns the raw JSON body of a 2xx response.
func (client *Client) Post(ctx context.Context, path string, body any, params url.Values, accessToken string) (json.RawMessage, error) {
	var payload []byte
	if body != nil {
		encoded, encodeErr := json.Marshal(body)
		if encodeErr != nil {
			return nil, fmt.Errorf("graph_api.encode_body: %w", encodeErr)
		}
		payload = encoded
	}
	return client.do(ctx, http.MethodPost, path, params, accessToken, payload)
}

// GetInto issues a GET and decodes the response into target.
func (client *Client) GetInto(ctx context.Context, path string, params url.Values, accessToken string, target any) error {
	raw, err := client.Get(ctx, path, params, accessToken)
	if err != nil {
		return err
	}
	return decodeInto(raw, target)
}

// ExchangeCode trades an authorization code for an access token at the configured token endpoint.
func (client *Client) ExchangeCode(ctx context.Context, oauthConfig *oauth2.Config, code string) (string, error) {
	exchangeCtx := context.WithValue(ctx, oauth2.HTTPClient, client.httpClient)
	token, err := oauthConfig.Exchange(exchangeCtx, code)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			status := http.StatusBadRequest
			if retrieveErr.Response != nil {
				status = retrieveErr.Response.StatusCode
			}
			upstream := newStatusError(status, retrieveErr.Body)
			upstream.Err = err
			return "", upstream
		}
		var transportErr *url.Error
		if errors.As(err, &transportErr) {
			return "", newTransportError(err)
		}
		return "", NewMalformedResponseError(http.StatusOK, messageInvalidTokenResponse, err)
	}
	if token == nil || strings.TrimSpace(token.AccessToken) == "" {
		return "", NewMalformedResponseError(http.StatusOK, messageInvalidTokenResponse, nil)
	}
	return token.AccessToken, nil
}

func (client *Client) do(ctx context.Context, method string, path string, params url.Values, accessToken string, payload []byte) (json.RawMessage, error) {
	query := url.Values{}
	for key, values := range params {
		query[key] = append([]string(nil), values...)
	}
	if accessToken != "" {
		query.Set(accessTokenParam, accessToken)
	}
	target := client.Endpoint(path)
	if encoded := query.Encode(); encoded != "" {
		target += "?" + encoded
	}

	var bodyReader io.Reader
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}
	request, requestErr := http.NewRequestWithContext(ctx, method, target, bodyReader)
	if requestErr != nil {
		return nil, fmt.Errorf("graph_api.request: %w", requestErr)
	}
	request.Header.Set("Accept", "application/json")
	if payload != nil {
		request.Header.Set("Content-Type", "application/json")
	}

	startTime := time.Now()
	response, doErr := client.httpClient.Do(request)
	if doErr != nil {
		client.logger.Warn("graph api transport error",
			zap.String("code", "graph_api.transport"),
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(doErr))
		return nil, newTransportError(doErr)
	}
	defer func() { _ = response.Body.Close() }()

	body, readErr := io.ReadAll(response.Body)
	if readErr != nil {
		return nil, newTransportError(readErr)
	}
	client.logger.Debug("graph api call",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", response.StatusCode),
		zap.Duration("elapsed", time.Since(startTime)))

	if response.StatusCode < 200 || response.StatusCode > 299 {
		return nil, newStatusError(response.StatusCode, body)
	}
	if !json.Valid(body) {
		return nil, NewMalformedResponseError(response.StatusCode, "Malformed response from Graph API", nil)
	}
	return json.RawMessage(body), nil
}

func decodeInto(raw json.RawMessage, target any) error {
	if err := json.Unmarshal(raw, target); err != nil {
		return NewMalformedResponseError(http.StatusOK, "Malformed response from Graph API", err)
	}
	return nil
}
