package authkit

import (
	"strings"

	"golang.org/x/oauth2"
)

// DefaultDialogURL is the Facebook OAuth dialog the browser is redirected to.
const DefaultDialogURL = "https://www.facebook.com/v19.0/dialog/oauth"

// DefaultScopes lists the permissions requested for Instagram business access.
var DefaultScopes = []string{
	"pages_show_list",
	"pages_read_engagement",
	"instagram_basic",
	"instagram_manage_comments",
}

// ServerConfig configures the Facebook app credentials and OAuth dialog.
type ServerConfig struct {
	ClientID       string
	ClientSecret   string
	RedirectURI    string
	DialogURL      string
	Scopes         []string
	FallbackPageID string
}

func (configuration ServerConfig) dialogURL() string {
	if strings.TrimSpace(configuration.DialogURL) == "" {
		return DefaultDialogURL
	}
	return configuration.DialogURL
}

func (configuration ServerConfig) scopes() []string {
	if len(configuration.Scopes) == 0 {
		return DefaultScopes
	}
	return configuration.Scopes
}

// appAccessToken is the app token Graph accepts for debug_token lookups.
func (configuration ServerConfig) appAccessToken() string {
	return configuration.ClientID + "|" + configuration.ClientSecret
}

// OAuth2Config builds the client configuration shared by the dialog URL and the code exchange.
func (configuration ServerConfig) OAuth2Config(tokenURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     configuration.ClientID,
		ClientSecret: configuration.ClientSecret,
		RedirectURL:  configuration.RedirectURI,
		Scopes:       configuration.scopes(),
		Endpoint: oauth2.Endpoint{
			AuthURL:   configuration.dialogURL(),
			TokenURL:  tokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}
