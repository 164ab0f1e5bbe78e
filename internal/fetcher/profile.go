package fetcher

import (
	"context"
	"net/url"
	"strconv"
)

func (c *Client) FetchProfile(ctx context.Context, igUserID int64, token string) (Profile, error) {
	params := url.Values{}
	params.Set("fields", "id,username,followers_count,media_count")

	var resp profileResponse
	if err := c.get(ctx, "profile", strconv.FormatInt(igUserID, 10), token, params, &resp); err != nil {
		return Profile{}, err
	}
	return Profile{
		ID:             resp.ID,
		Username:       resp.Username,
		FollowersCount: resp.FollowersCount,
		MediaCount:     resp.MediaCount,
	}, nil
}

// ExchangeToken trades the stored account token for the page-scoped token of
// pageID. Accounts connected without a page already hold a scoped token.
func (c *Client) ExchangeToken(ctx context.Context, accountToken, pageID string) (string, error) {
	if accountToken == "" {
		return "", &GraphError{Kind: KindAuthExpired, Endpoint: "page_token", Message: "no account token"}
	}
	if pageID == "" {
		return accountToken, nil
	}

	params := url.Values{}
	params.Set("fields", "access_token")

	var resp pageTokenResponse
	if err := c.get(ctx, "page_token", pageID, accountToken, params, &resp); err != nil {
		return "", err
	}
	if resp.AccessToken == "" {
		return "", &GraphError{Kind: KindAuthExpired, Endpoint: "page_token", Message: "page token missing from response"}
	}
	return resp.AccessToken, nil
}
