// Package vk is a minimal client for the pieces of the VK API the bot
// consumes: reading community walls, resolving account/community
// visibility, and creating posts.
package vk

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	defaultBaseURL = "https://api.vk.com"
	apiVersion     = "5.199"

	// maxPageSize is the hard page cap of wall.get.
	maxPageSize = 100
)

// Client talks to the VK API. The service token covers read methods;
// the community token is required by wall.post.
type Client struct {
	BaseURL        string
	ServiceToken   string
	CommunityToken string
	client         *http.Client
}

// NewClient creates a VK API client.
func NewClient(serviceToken, communityToken string) *Client {
	return &Client{
		BaseURL:        defaultBaseURL,
		ServiceToken:   serviceToken,
		CommunityToken: communityToken,
		client:         &http.Client{Timeout: 30 * time.Second},
	}
}

type apiError struct {
	ErrorCode int    `json:"error_code"`
	ErrorMsg  string `json:"error_msg"`
}

type wallGetResponse struct {
	Error    *apiError `json:"error"`
	Response struct {
		Count int `json:"count"`
		Items []struct {
			ID          int   `json:"id"`
			Date        int64 `json:"date"`
			Attachments []struct {
				Type  string `json:"type"`
				Audio *struct {
					ID      int    `json:"id"`
					OwnerID int    `json:"owner_id"`
					Artist  string `json:"artist"`
					Title   string `json:"title"`
					URL     string `json:"url"`
				} `json:"audio"`
				Photo *struct {
					ID        int `json:"id"`
					OwnerID   int `json:"owner_id"`
					OrigPhoto *struct {
						Height int    `json:"height"`
						Width  int    `json:"width"`
						URL    string `json:"url"`
					} `json:"orig_photo"`
				} `json:"photo"`
			} `json:"attachments"`
		} `json:"items"`
	} `json:"response"`
}

func (c *Client) wallGet(ctx context.Context, domain string, offset, count int) (*wallGetResponse, error) {
	params := url.Values{
		"access_token": {c.ServiceToken},
		"domain":       {domain},
		"offset":       {strconv.Itoa(max(0, offset))},
		"count":        {strconv.Itoa(max(0, min(count, maxPageSize)))},
		"v":            {apiVersion},
	}

	var result wallGetResponse
	if err := c.call(ctx, "/method/wall.get", params, &result); err != nil {
		return nil, err
	}
	if result.Error != nil {
		return nil, fmt.Errorf("wall.get: %s (code %d)", result.Error.ErrorMsg, result.Error.ErrorCode)
	}
	return &result, nil
}

// TotalCount returns the number of posts on a community wall without
// fetching any of them.
func (c *Client) TotalCount(ctx context.Context, domain string) (int, error) {
	resp, err := c.wallGet(ctx, domain, 0, 0)
	if err != nil {
		return 0, err
	}
	return resp.Response.Count, nil
}

// Page fetches one page of wall posts.
func (c *Client) Page(ctx context.Context, domain string, offset, count int) ([]Wallpost, error) {
	resp, err := c.wallGet(ctx, domain, offset, count)
	if err != nil {
		return nil, err
	}
	return convertItems(resp), nil
}

// TodayPosts returns the posts already published today on a wall, in
// the given time zone.
func (c *Client) TodayPosts(ctx context.Context, domain string, today time.Time, loc *time.Location) ([]Wallpost, error) {
	resp, err := c.wallGet(ctx, domain, 0, 10)
	if err != nil {
		return nil, err
	}

	y, m, d := today.In(loc).Date()
	var out []Wallpost
	for _, post := range convertItems(resp) {
		py, pm, pd := time.Unix(post.Date, 0).In(loc).Date()
		if py == y && pm == m && pd == d {
			out = append(out, post)
		}
	}
	return out, nil
}

func convertItems(resp *wallGetResponse) []Wallpost {
	posts := make([]Wallpost, 0, len(resp.Response.Items))
	for _, item := range resp.Response.Items {
		post := Wallpost{ID: item.ID, Date: item.Date}
		for _, att := range item.Attachments {
			switch {
			case att.Type == string(KindAudio) && att.Audio != nil:
				post.Attachments = append(post.Attachments, Attachment{
					Kind: KindAudio,
					Audio: &Audio{
						ID:      att.Audio.ID,
						OwnerID: att.Audio.OwnerID,
						Artist:  att.Audio.Artist,
						Title:   att.Audio.Title,
						URL:     att.Audio.URL,
					},
				})
			case att.Type == string(KindPhoto) && att.Photo != nil:
				photo := &Photo{ID: att.Photo.ID, OwnerID: att.Photo.OwnerID}
				if att.Photo.OrigPhoto != nil {
					photo.OrigURL = att.Photo.OrigPhoto.URL
					photo.Width = att.Photo.OrigPhoto.Width
					photo.Height = att.Photo.OrigPhoto.Height
				}
				post.Attachments = append(post.Attachments, Attachment{Kind: KindPhoto, Photo: photo})
			}
		}
		posts = append(posts, post)
	}
	return posts
}

// Users resolves account visibility settings in one batch.
func (c *Client) Users(ctx context.Context, ids []int) ([]User, error) {
	params := url.Values{
		"access_token": {c.ServiceToken},
		"user_ids":     {joinIDs(ids)},
		"fields":       {"is_closed,can_access_closed,can_see_audio"},
		"v":            {apiVersion},
	}

	var result struct {
		Error    *apiError `json:"error"`
		Response []struct {
			ID              int  `json:"id"`
			IsClosed        bool `json:"is_closed"`
			CanAccessClosed bool `json:"can_access_closed"`
			CanSeeAudio     int  `json:"can_see_audio"`
		} `json:"response"`
	}
	if err := c.call(ctx, "/method/users.get", params, &result); err != nil {
		return nil, err
	}
	if result.Error != nil {
		return nil, fmt.Errorf("users.get: %s (code %d)", result.Error.ErrorMsg, result.Error.ErrorCode)
	}

	users := make([]User, 0, len(result.Response))
	for _, u := range result.Response {
		users = append(users, User{
			ID:              u.ID,
			IsClosed:        u.IsClosed,
			CanAccessClosed: u.CanAccessClosed,
			CanSeeAudio:     u.CanSeeAudio,
		})
	}
	return users, nil
}

// Groups resolves community visibility settings in one batch. The ids
// are positive community ids.
func (c *Client) Groups(ctx context.Context, ids []int) ([]Group, error) {
	params := url.Values{
		"access_token": {c.ServiceToken},
		"group_ids":    {joinIDs(ids)},
		"v":            {apiVersion},
	}

	var result struct {
		Error    *apiError `json:"error"`
		Response struct {
			Groups []struct {
				ID       int `json:"id"`
				IsClosed int `json:"is_closed"`
			} `json:"groups"`
		} `json:"response"`
	}
	if err := c.call(ctx, "/method/groups.getById", params, &result); err != nil {
		return nil, err
	}
	if result.Error != nil {
		return nil, fmt.Errorf("groups.getById: %s (code %d)", result.Error.ErrorMsg, result.Error.ErrorCode)
	}

	groups := make([]Group, 0, len(result.Response.Groups))
	for _, g := range result.Response.Groups {
		groups = append(groups, Group{ID: g.ID, IsClosed: g.IsClosed})
	}
	return groups, nil
}

// CreatePost publishes a post with the given attachments on behalf of
// the community. A non-zero publishAt schedules the post instead of
// making it immediately visible.
func (c *Client) CreatePost(ctx context.Context, ownerID int, attachments []PostAttachment, publishAt time.Time) (int, error) {
	refs := make([]string, len(attachments))
	for i, a := range attachments {
		refs[i] = a.String()
	}

	params := url.Values{
		"access_token": {c.CommunityToken},
		"owner_id":     {strconv.Itoa(ownerID)},
		"from_group":   {"1"},
		"v":            {apiVersion},
	}
	if len(refs) > 0 {
		params.Set("attachments", strings.Join(refs, ","))
	}
	if !publishAt.IsZero() {
		params.Set("publish_date", strconv.FormatInt(publishAt.Unix(), 10))
	}

	var result struct {
		Error    *apiError `json:"error"`
		Response struct {
			PostID int `json:"post_id"`
		} `json:"response"`
	}
	if err := c.call(ctx, "/method/wall.post", params, &result); err != nil {
		return 0, err
	}
	if result.Error != nil {
		return 0, fmt.Errorf("wall.post: %s (code %d)", result.Error.ErrorMsg, result.Error.ErrorCode)
	}
	return result.Response.PostID, nil
}

func (c *Client) call(ctx context.Context, method string, params url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, "POST", c.BaseURL+method,
		strings.NewReader(params.Encode()))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("vk API error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("vk API returned %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func joinIDs(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, ",")
}
