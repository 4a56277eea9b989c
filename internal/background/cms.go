package background

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
)

// CMSClient talks to the asset library over REST.
type CMSClient struct {
	baseURL string
	channel string
	client  *http.Client
}

func NewCMSClient(baseURL, channel string) *CMSClient {
	return &CMSClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		channel: channel,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// FindAsset looks up by id when given, otherwise by tag and setting.
// A missing asset is (nil, nil).
func (c *CMSClient) FindAsset(ctx context.Context, q AssetQuery) (*Asset, error) {
	var path string
	if q.ID != "" {
		path = "/assets/" + url.PathEscape(q.ID)
	} else {
		v := url.Values{}
		for _, t := range q.Tags {
			v.Add("tag", t)
		}
		if q.Setting != "" {
			v.Set("setting", q.Setting)
		}
		v.Set("limit", "1")
		path = "/assets?" + v.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, errors.New("cms api error: " + resp.Status + " body=" + string(body))
	}

	if q.ID != "" {
		var a Asset
		if err := json.NewDecoder(resp.Body).Decode(&a); err != nil {
			return nil, fmt.Errorf("decode cms asset: %w", err)
		}
		return &a, nil
	}
	var list struct {
		Assets []Asset `json:"assets"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, fmt.Errorf("decode cms assets: %w", err)
	}
	if len(list.Assets) == 0 {
		return nil, nil
	}
	return &list.Assets[0], nil
}

func (c *CMSClient) UploadAsset(ctx context.Context, imageURL, label string, tags []string, token string) error {
	return c.send(ctx, "/channels/"+url.PathEscape(c.channel)+"/assets", token, map[string]any{
		"sourceUrl": imageURL,
		"label":     label,
		"tags":      tags,
	})
}

func (c *CMSClient) send(ctx context.Context, path, token string, body any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		c.baseURL+path,
		bytes.NewReader(b),
	)
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return errors.New(
			"cms api error: " +
				resp.Status +
				" body=" + string(respBody),
		)
	}

	return nil
}
