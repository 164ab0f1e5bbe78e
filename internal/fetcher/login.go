// SPDX-License-Identifier: AGPL-3.0-only
package fetcher

import (
	"context"
	"net/url"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/facebook"
)

// LoginScopes are the permissions the insights jobs rely on.
var LoginScopes = []string{"instagram_basic", "pages_show_list", "pages_read_engagement", "instagram_manage_insights"}

func LoginConfig(appID, appSecret, callbackURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     appID,
		ClientSecret: appSecret,
		RedirectURL:  callbackURL,
		Scopes:       LoginScopes,
		Endpoint:     facebook.Endpoint,
	}
}

type LongLivedToken struct {
	AccessToken string
	TokenType   string
	Expiry      time.Time
}

type longLivedTokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// ExchangeLongLivedToken trades a short-lived user token for a long-lived one
// using the app credentials in cfg.
func (c *Client) ExchangeLongLivedToken(ctx context.Context, cfg *oauth2.Config, shortLivedToken string) (LongLivedToken, error) {
	if cfg == nil || cfg.ClientID == "" || cfg.ClientSecret == "" {
		return LongLivedToken{}, &GraphError{Kind: KindAuthExpired, Endpoint: "token_exchange", Message: "app id and secret are required"}
	}
	if shortLivedToken == "" {
		return LongLivedToken{}, &GraphError{Kind: KindAuthExpired, Endpoint: "token_exchange", Message: "no token to exchange"}
	}

	params := url.Values{}
	params.Set("grant_type", "fb_exchange_token")
	params.Set("client_id", cfg.ClientID)
	params.Set("client_secret", cfg.ClientSecret)
	params.Set("fb_exchange_token", shortLivedToken)

	var resp longLivedTokenResponse
	if err := c.get(ctx, "token_exchange", "oauth/access_token", "", params, &resp); err != nil {
		return LongLivedToken{}, err
	}
	if resp.AccessToken == "" {
		return LongLivedToken{}, &GraphError{Kind: KindAuthExpired, Endpoint: "token_exchange", Message: "access token missing from response"}
	}

	tok := LongLivedToken{AccessToken: resp.AccessToken, TokenType: resp.TokenType}
	if resp.ExpiresIn > 0 {
		tok.Expiry = time.Now().Add(time.Duration(resp.ExpiresIn) * time.Second).UTC()
	}
	return tok, nil
}
