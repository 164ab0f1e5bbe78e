package fetcher

import (
	"context"
	"net/url"
	"strconv"

	"github.com/fluffyriot/rpinsights/internal/helpers"
	"github.com/fluffyriot/rpinsights/internal/logging"
	"github.com/goccy/go-json"
)

const (
	mediaFields   = "id,caption,media_type,media_product_type,permalink,timestamp,like_count,comments_count"
	mediaPageSize = 50
	maxMediaPages = 50
)

// ListMedia walks the account's media newest first. It stops at the first item
// published before cutoffDay, once itemCap items were collected, when the API
// stops returning a cursor, or after maxMediaPages pages. The next page is
// always requested with the returned cursor rather than the opaque next URL.
// Items already seen in this walk are skipped.
func (c *Client) ListMedia(ctx context.Context, igUserID int64, token, cutoffDay string, itemCap int) ([]MediaItem, int, error) {
	seen := make(map[string]struct{})
	var (
		items []MediaItem
		after string
		pages int
	)

	for pages < maxMediaPages {
		params := url.Values{}
		params.Set("fields", mediaFields)
		params.Set("limit", strconv.Itoa(mediaPageSize))
		if after != "" {
			params.Set("after", after)
		}

		var page mediaPage
		if err := c.get(ctx, "media", strconv.FormatInt(igUserID, 10)+"/media", token, params, &page); err != nil {
			return items, pages, err
		}
		pages++

		for _, raw := range page.Data {
			var node mediaNode
			if err := json.Unmarshal(raw, &node); err != nil {
				logging.Warn().Err(err).Msg("Fetcher: skipping undecodable media item")
				continue
			}
			if node.ID == "" {
				continue
			}
			if _, dup := seen[node.ID]; dup {
				continue
			}
			ts, err := parseGraphTime(node.Timestamp)
			if err != nil {
				logging.Warn().Str("media", node.ID).Str("timestamp", node.Timestamp).Msg("Fetcher: skipping media item with bad timestamp")
				continue
			}
			if cutoffDay != "" && helpers.DayOf(ts) < cutoffDay {
				return items, pages, nil
			}
			seen[node.ID] = struct{}{}
			items = append(items, MediaItem{
				ID:            node.ID,
				MediaType:     node.MediaType,
				ProductType:   node.ProductType,
				Caption:       node.Caption,
				Permalink:     node.Permalink,
				Timestamp:     ts,
				LikeCount:     node.LikeCount,
				CommentsCount: node.CommentsCount,
				Raw:           append(json.RawMessage(nil), raw...),
			})
			if itemCap > 0 && len(items) >= itemCap {
				return items, pages, nil
			}
		}

		if len(page.Data) == 0 || page.Paging.Next == "" || page.Paging.Cursors.After == "" {
			break
		}
		after = page.Paging.Cursors.After
	}

	return items, pages, nil
}
