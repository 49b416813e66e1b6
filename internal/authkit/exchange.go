package authkit

import (
	"context"
	"net/url"
	"strings"

	"github.com/tyemirov/instagate/internal/apperrors"
	"github.com/tyemirov/instagate/internal/credentials"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

const (
	businessAccountFields = "instagram_business_account"
	profileFields         = "id,username,profile_picture_url,name"
)

// GraphClient is the part of the Graph API client the exchange pipeline calls.
type GraphClient interface {
	Endpoint(path string) string
	GetInto(ctx context.Context, path string, params url.Values, accessToken string, target any) error
	ExchangeCode(ctx context.Context, oauthConfig *oauth2.Config, code string) (string, error)
}

// Result is the outcome of a successful exchange.
// Token always equals Credential.AccessToken.
type Result struct {
	Credential credentials.Credential
	Token      string
}

// Exchanger converts an authorization code into a stored long-lived Credential.
type Exchanger struct {
	configuration ServerConfig
	oauth         *oauth2.Config
	graph         GraphClient
	store         credentials.Store
	clock         credentials.Clock
	logger        *zap.Logger
	metrics       MetricsRecorder
}

// ExchangerOption customizes an Exchanger.
type ExchangerOption func(*Exchanger)

// WithClock overrides the timestamp source.
func WithClock(clock credentials.Clock) ExchangerOption {
	return func(exchanger *Exchanger) {
		if clock != nil {
			exchanger.clock = clock
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) ExchangerOption {
	return func(exchanger *Exchanger) {
		if logger != nil {
			exchanger.logger = logger
		}
	}
}

// WithMetrics sets the counter sink.
func WithMetrics(metrics MetricsRecorder) ExchangerOption {
	return func(exchanger *Exchanger) {
		if metrics != nil {
			exchanger.metrics = metrics
		}
	}
}

// NewExchanger wires the pipeline collaborators.
func NewExchanger(configuration ServerConfig, graph GraphClient, store credentials.Store, options ...ExchangerOption) *Exchanger {
	if graph == nil {
		panic("graph client is required")
	}
	if store == nil {
		panic("credential store is required")
	}
	exchanger := &Exchanger{
		configuration: configuration,
		graph:         graph,
		store:         store,
		clock:         credentials.NewSystemClock(),
		logger:        zap.NewNop(),
		metrics:       noopMetrics{},
	}
	exchanger.oauth = configuration.OAuth2Config(graph.Endpoint("oauth/access_token"))
	for _, option := range options {
		option(exchanger)
	}
	return exchanger
}

// AuthorizationURL returns the Facebook dialog URL the browser is sent to.
// Facebook expects a comma-separated scope list.
func (exchanger *Exchanger) AuthorizationURL() string {
	return exchanger.oauth.AuthCodeURL("",
		oauth2.SetAuthURLParam("scope", strings.Join(exchanger.oauth.Scopes, ",")),
		oauth2.SetAuthURLParam("display", "popup"))
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

type debugTokenResponse struct {
	Data struct {
		UserID  string `json:"user_id"`
		AppID   string `json:"app_id"`
		IsValid bool   `json:"is_valid"`
	} `json:"data"`
}

type accountsResponse struct {
	Data []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"data"`
}

type pageResponse struct {
	InstagramBusinessAccount *struct {
		ID string `json:"id"`
	} `json:"instagram_business_account"`
}

type profileResponse struct {
	ID                string `json:"id"`
	Username          string `json:"username"`
	Name              string `json:"name"`
	ProfilePictureURL string `json:"profile_picture_url"`
}

// Exchange runs the code → short-lived → long-lived → page → business account → profile → upsert sequence.
// Each step depends on the previous one; the first failure aborts the whole exchange.
func (exchanger *Exchanger) Exchange(ctx context.Context, code string) (Result, error) {
	cleanCode := strings.TrimSpace(code)
	if cleanCode == "" {
		return Result{}, apperrors.InvalidRequest("Authorization code is required")
	}
	result, err := exchanger.run(ctx, cleanCode)
	if err != nil {
		exchanger.metrics.Increment(metricExchangeFailure)
		return Result{}, err
	}
	exchanger.metrics.Increment(metricExchangeSuccess)
	exchanger.logger.Info("oauth exchange completed",
		zap.String("platform_id", result.Credential.PlatformID),
		zap.String("username", result.Credential.Username))
	return result, nil
}

func (exchanger *Exchanger) run(ctx context.Context, code string) (Result, error) {
	shortLivedToken, err := exchanger.exchangeCode(ctx, code)
	if err != nil {
		return Result{}, err
	}
	userID, err := exchanger.resolveUser(ctx, shortLivedToken)
	if err != nil {
		return Result{}, err
	}
	longLivedToken, err := exchanger.extendToken(ctx, shortLivedToken)
	if err != nil {
		return Result{}, err
	}
	pageID, err := exchanger.selectPage(ctx, userID, longLivedToken)
	if err != nil {
		return Result{}, err
	}
	businessID, err := exchanger.resolveBusinessAccount(ctx, pageID, longLivedToken)
	if err != nil {
		return Result{}, err
	}
	profile, err := exchanger.fetchProfile(ctx, businessID, longLivedToken)
	if err != nil {
		return Result{}, err
	}
	stored, upsertErr := exchanger.store.Upsert(ctx, profile, longLivedToken, exchanger.clock.Now())
	if upsertErr != nil {
		return Result{}, stepFailure(StepPersist, upsertErr)
	}
	return Result{Credential: stored, Token: stored.AccessToken}, nil
}

func (exchanger *Exchanger) exchangeCode(ctx context.Context, code string) (string, error) {
	shortLivedToken, err := exchanger.graph.ExchangeCode(ctx, exchanger.oauth, code)
	if err != nil {
		return "", stepFailure(StepCodeExchange, err)
	}
	return shortLivedToken, nil
}

func (exchanger *Exchanger) resolveUser(ctx context.Context, shortLivedToken string) (string, error) {
	var debugged debugTokenResponse
	params := url.Values{"input_token": {shortLivedToken}}
	if err := exchanger.graph.GetInto(ctx, "debug_token", params, exchanger.configuration.appAccessToken(), &debugged); err != nil {
		return "", stepFailure(StepDebugToken, err)
	}
	if strings.TrimSpace(debugged.Data.UserID) == "" {
		return "", stepMalformed(StepDebugToken, "Token debug response did not include a user id")
	}
	return debugged.Data.UserID, nil
}

func (exchanger *Exchanger) extendToken(ctx context.Context, shortLivedToken string) (string, error) {
	var extended tokenResponse
	params := url.Values{
		"grant_type":        {"fb_exchange_token"},
		"client_id":         {exchanger.configuration.ClientID},
		"client_secret":     {exchanger.configuration.ClientSecret},
		"fb_exchange_token": {shortLivedToken},
	}
	if err := exchanger.graph.GetInto(ctx, "oauth/access_token", params, "", &extended); err != nil {
		return "", stepFailure(StepLongLivedToken, err)
	}
	if strings.TrimSpace(extended.AccessToken) == "" {
		return "", stepMalformed(StepLongLivedToken, "Long-lived token response did not include an access token")
	}
	return extended.AccessToken, nil
}

// selectPage returns the first linked page, or the configured fallback when the enumeration is empty.
func (exchanger *Exchanger) selectPage(ctx context.Context, userID string, longLivedToken string) (string, error) {
	var accounts accountsResponse
	if err := exchanger.graph.GetInto(ctx, userID+"/accounts", nil, longLivedToken, &accounts); err != nil {
		return "", stepFailure(StepPageLookup, err)
	}
	if len(accounts.Data) > 0 && strings.TrimSpace(accounts.Data[0].ID) != "" {
		return accounts.Data[0].ID, nil
	}
	fallbackPageID := strings.TrimSpace(exchanger.configuration.FallbackPageID)
	if fallbackPageID == "" {
		return "", stepMalformed(StepPageLookup, "No Facebook pages linked to this account and no fallback page configured")
	}
	exchanger.metrics.Increment(metricExchangeFallbackPage)
	exchanger.logger.Warn("no pages returned, using fallback page",
		zap.String("code", "auth.exchange.fallback_page"),
		zap.String("page_id", fallbackPageID))
	return fallbackPageID, nil
}

func (exchanger *Exchanger) resolveBusinessAccount(ctx context.Context, pageID string, longLivedToken string) (string, error) {
	var page pageResponse
	params := url.Values{"fields": {businessAccountFields}}
	if err := exchanger.graph.GetInto(ctx, pageID, params, longLivedToken, &page); err != nil {
		return "", stepFailure(StepBusinessAccount, err)
	}
	if page.InstagramBusinessAccount == nil || strings.TrimSpace(page.InstagramBusinessAccount.ID) == "" {
		return "", stepMalformed(StepBusinessAccount, "No Instagram business account connected to this Facebook page")
	}
	return page.InstagramBusinessAccount.ID, nil
}

func (exchanger *Exchanger) fetchProfile(ctx context.Context, businessID string, longLivedToken string) (credentials.Profile, error) {
	var fetched profileResponse
	params := url.Values{"fields": {profileFields}}
	if err := exchanger.graph.GetInto(ctx, businessID, params, longLivedToken, &fetched); err != nil {
		return credentials.Profile{}, stepFailure(StepProfile, err)
	}
	platformID := fetched.ID
	if strings.TrimSpace(platformID) == "" {
		platformID = businessID
	}
	return credentials.Profile{
		PlatformID:      platformID,
		Username:        fetched.Username,
		DisplayName:     fetched.Name,
		ProfileImageURL: fetched.ProfilePictureURL,
	}, nil
}
