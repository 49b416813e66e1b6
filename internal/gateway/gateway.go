package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/tyemirov/instagate/internal/apperrors"
	"github.com/tyemirov/instagate/internal/credentials"
	"github.com/tyemirov/instagate/internal/graphapi"
	"go.uber.org/zap"
)

const (
	// DefaultFeedLimit applies when the caller does not ask for a page size.
	DefaultFeedLimit = 10

	feedFields    = "id,caption,media_type,media_url,thumbnail_url,permalink,timestamp,username"
	commentFields = "id,text,username,timestamp,like_count,replies{id,text,username,timestamp,like_count}"
	profileFields = "id,username,name,profile_picture_url,followers_count,follows_count,media_count"

	metricUnauthenticated = "gateway.unauthenticated"

	messageMissingToken   = "Access token is required"
	messageUnknownToken   = "Invalid token - user not found"
	messageExpiredToken   = "Invalid or expired token"
	messageInvalidToken   = "Invalid Instagram token"
	messageMissingMessage = "Message is required"
)

// GraphClient is the part of the Graph API client the gateway calls.
type GraphClient interface {
	Get(ctx context.Context, path string, params url.Values, accessToken string) (json.RawMessage, error)
	Post(ctx context.Context, path string, body any, params url.Values, accessToken string) (json.RawMessage, error)
	GetInto(ctx context.Context, path string, params url.Values, accessToken string, target any) error
}

// MetricsRecorder increments counters for gateway events.
type MetricsRecorder interface {
	Increment(event string)
}

type noopMetrics struct{}

func (noopMetrics) Increment(string) {}

// Gateway resolves bearer tokens to credentials and proxies Graph API operations on the caller's behalf.
// Nothing is retained between calls; every operation re-resolves its token.
type Gateway struct {
	store   credentials.Store
	graph   GraphClient
	clock   credentials.Clock
	logger  *zap.Logger
	metrics MetricsRecorder
}

// Option customizes a Gateway.
type Option func(*Gateway)

// WithClock overrides the timestamp source used for profile refreshes.
func WithClock(clock credentials.Clock) Option {
	return func(gateway *Gateway) {
		if clock != nil {
			gateway.clock = clock
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(gateway *Gateway) {
		if logger != nil {
			gateway.logger = logger
		}
	}
}

// WithMetrics sets the counter sink.
func WithMetrics(metrics MetricsRecorder) Option {
	return func(gateway *Gateway) {
		if metrics != nil {
			gateway.metrics = metrics
		}
	}
}

// New constructs a Gateway.
func New(store credentials.Store, graph GraphClient, options ...Option) *Gateway {
	if store == nil {
		panic("credential store is required")
	}
	if graph == nil {
		panic("graph client is required")
	}
	gateway := &Gateway{
		store:   store,
		graph:   graph,
		clock:   credentials.NewSystemClock(),
		logger:  zap.NewNop(),
		metrics: noopMetrics{},
	}
	for _, option := range options {
		option(gateway)
	}
	return gateway
}

// Profile merges the stored credential with live account counts.
type Profile struct {
	ID              string `json:"id"`
	PlatformID      string `json:"platformId"`
	Username        string `json:"username"`
	Name            string `json:"name"`
	ProfileImageURL string `json:"profileImageUrl"`
	FollowerCount   int64  `json:"followerCount"`
	FollowingCount  int64  `json:"followingCount"`
	MediaCount      int64  `json:"mediaCount"`
}

type liveProfile struct {
	ID                string `json:"id"`
	Username          string `json:"username"`
	Name              string `json:"name"`
	ProfilePictureURL string `json:"profile_picture_url"`
	FollowersCount    int64  `json:"followers_count"`
	FollowsCount      int64  `json:"follows_count"`
	MediaCount        int64  `json:"media_count"`
}

// Resolve maps a bearer token onto its stored credential.
func (gateway *Gateway) Resolve(ctx context.Context, token string) (credentials.Credential, error) {
	if strings.TrimSpace(token) == "" {
		gateway.metrics.Increment(metricUnauthenticated)
		return credentials.Credential{}, apperrors.Unauthenticated(messageMissingToken, nil, nil)
	}
	credential, err := gateway.store.FindByAccessToken(ctx, token)
	if err != nil {
		if errors.Is(err, credentials.ErrCredentialNotFound) {
			gateway.metrics.Increment(metricUnauthenticated)
			return credentials.Credential{}, apperrors.Unauthenticated(messageUnknownToken, nil, err)
		}
		return credentials.Credential{}, fmt.Errorf("gateway.resolve: %w", err)
	}
	return credential, nil
}

// GetFeed lists the account's media; limit <= 0 selects DefaultFeedLimit.
func (gateway *Gateway) GetFeed(ctx context.Context, token string, limit int) (json.RawMessage, error) {
	credential, err := gateway.Resolve(ctx, token)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultFeedLimit
	}
	params := url.Values{
		"fields": {feedFields},
		"limit":  {strconv.Itoa(limit)},
	}
	raw, getErr := gateway.graph.Get(ctx, credential.PlatformID+"/media", params, credential.AccessToken)
	if getErr != nil {
		return nil, gateway.remapBadRequest(getErr)
	}
	return raw, nil
}

// GetComments lists the comments of a media item, nested replies included.
func (gateway *Gateway) GetComments(ctx context.Context, mediaID string, token string) (json.RawMessage, error) {
	credential, err := gateway.Resolve(ctx, token)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(mediaID) == "" {
		return nil, apperrors.InvalidRequest("Media id is required")
	}
	params := url.Values{"fields": {commentFields}}
	raw, getErr := gateway.graph.Get(ctx, mediaID+"/comments", params, credential.AccessToken)
	if getErr != nil {
		return nil, gateway.remapBadRequest(getErr)
	}
	return raw, nil
}

// AddComment posts a top-level comment on a media item.
func (gateway *Gateway) AddComment(ctx context.Context, mediaID string, message string, token string) (json.RawMessage, error) {
	return gateway.postMessage(ctx, mediaID, "comments", "Media id is required", message, token)
}

// ReplyToComment posts a reply under an existing comment.
func (gateway *Gateway) ReplyToComment(ctx context.Context, commentID string, message string, token string) (json.RawMessage, error) {
	return gateway.postMessage(ctx, commentID, "replies", "Comment id is required", message, token)
}

func (gateway *Gateway) postMessage(ctx context.Context, targetID string, edge string, missingTargetMessage string, message string, token string) (json.RawMessage, error) {
	credential, err := gateway.Resolve(ctx, token)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(targetID) == "" {
		return nil, apperrors.InvalidRequest(missingTargetMessage)
	}
	if strings.TrimSpace(message) == "" {
		return nil, apperrors.InvalidRequest(messageMissingMessage)
	}
	raw, postErr := gateway.graph.Post(ctx, targetID+"/"+edge, map[string]string{"message": message}, nil, credential.AccessToken)
	if postErr != nil {
		return nil, gateway.remapBadRequest(postErr)
	}
	return raw, nil
}

// GetProfile fetches the live profile, stores the refreshed snapshot, and returns it with live counts.
func (gateway *Gateway) GetProfile(ctx context.Context, token string) (Profile, error) {
	credential, err := gateway.Resolve(ctx, token)
	if err != nil {
		return Profile{}, err
	}
	var live liveProfile
	params := url.Values{"fields": {profileFields}}
	if getErr := gateway.graph.GetInto(ctx, credential.PlatformID, params, credential.AccessToken, &live); getErr != nil {
		var upstream *graphapi.UpstreamError
		if errors.As(getErr, &upstream) && upstream.IsInvalidToken() {
			gateway.metrics.Increment(metricUnauthenticated)
			return Profile{}, apperrors.Unauthenticated(messageInvalidToken, upstream.Envelope(), getErr)
		}
		return Profile{}, getErr
	}

	refreshed, refreshErr := gateway.store.RefreshProfile(ctx, credential.PlatformID, credentials.Profile{
		PlatformID:      credential.PlatformID,
		Username:        live.Username,
		DisplayName:     live.Name,
		ProfileImageURL: live.ProfilePictureURL,
	}, gateway.clock.Now())
	if refreshErr != nil {
		return Profile{}, fmt.Errorf("gateway.profile.refresh: %w", refreshErr)
	}

	return Profile{
		ID:              refreshed.ID,
		PlatformID:      refreshed.PlatformID,
		Username:        refreshed.Username,
		Name:            refreshed.DisplayName,
		ProfileImageURL: refreshed.ProfileImageURL,
		FollowerCount:   live.FollowersCount,
		FollowingCount:  live.FollowsCount,
		MediaCount:      live.MediaCount,
	}, nil
}

// remapBadRequest treats an upstream 400 as an expired or invalid token.
func (gateway *Gateway) remapBadRequest(err error) error {
	var upstream *graphapi.UpstreamError
	if errors.As(err, &upstream) && upstream.Status == http.StatusBadRequest {
		gateway.metrics.Increment(metricUnauthenticated)
		return apperrors.Unauthenticated(messageExpiredToken, nil, err)
	}
	return err
}
