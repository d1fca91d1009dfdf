// Package webflow 提供内容管理 API（条目存储）客户端：
// 分页拉取集合条目、读取/局部更新单条目、上传站点资产。
// 列表结果经内存 TTL 缓存与在途请求合并，局部更新成功后
// 使对应集合的列表缓存失效。
package webflow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"

	"smartcheck-api/internal/infrastructure/httpx"
	"smartcheck-api/internal/infrastructure/memstore"
	apperrors "smartcheck-api/pkg/errors"
	"smartcheck-api/pkg/logger"
)

// Item CMS 集合条目
type Item struct {
	ID            string         `json:"id"`
	LastUpdated   string         `json:"lastUpdated,omitempty"`
	LastPublished string         `json:"lastPublished,omitempty"`
	IsDraft       bool           `json:"isDraft"`
	IsArchived    bool           `json:"isArchived"`
	FieldData     map[string]any `json:"fieldData"`
}

// Asset 上传后的资产
type Asset struct {
	ID          string `json:"id"`
	URL         string `json:"hostedUrl"`
	OriginalURL string `json:"originalFileName,omitempty"`
}

// listResponse 分页列表响应
type listResponse struct {
	Items      []Item `json:"items"`
	Pagination struct {
		Limit  int `json:"limit"`
		Offset int `json:"offset"`
		Total  int `json:"total"`
	} `json:"pagination"`
}

// Client 条目存储客户端
type Client struct {
	baseURL  string
	token    string
	pageSize int

	fetch    *httpx.Client
	listings *memstore.Store[[]Item]
	flight   *memstore.Flight
}

// NewClient 创建客户端
func NewClient(baseURL, token string, pageSize int, fetch *httpx.Client, listings *memstore.Store[[]Item]) *Client {
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 100
	}
	return &Client{
		baseURL:  baseURL,
		token:    token,
		pageSize: pageSize,
		fetch:    fetch,
		listings: listings,
		flight:   memstore.NewFlight(),
	}
}

// listingKey 集合列表的缓存键
func listingKey(collectionID string) string {
	return memstore.HashKey("listing", collectionID)
}

// ListItems 拉取集合全部条目。缓存命中直接返回；未命中时经在途
// 合并只发起一次上游分页拉取，拉取结果按 ID 去重后写入缓存
// （上游分页可能跨页返回重复条目）。
func (c *Client) ListItems(ctx context.Context, collectionID string) ([]Item, error) {
	key := listingKey(collectionID)

	if items, ok := c.listings.Get(ctx, key); ok {
		return items, nil
	}

	v, err := c.flight.GetOrFetch(ctx, key, func() (any, error) {
		// 等待期间可能已被其他调用填充
		if items, ok := c.listings.Get(ctx, key); ok {
			return items, nil
		}

		items, err := c.fetchAllPages(ctx, collectionID)
		if err != nil {
			return nil, err
		}
		c.listings.Set(ctx, key, items)
		return items, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]Item), nil
}

// fetchAllPages 以 offset 分页拉取全部条目并按 ID 去重（首见保留）
func (c *Client) fetchAllPages(ctx context.Context, collectionID string) ([]Item, error) {
	var items []Item
	seen := make(map[string]struct{})

	offset := 0
	for {
		var page listResponse
		url := fmt.Sprintf("%s/collections/%s/items?limit=%d&offset=%d", c.baseURL, collectionID, c.pageSize, offset)
		if err := c.getJSON(ctx, url, &page); err != nil {
			return nil, err
		}

		for _, it := range page.Items {
			if _, dup := seen[it.ID]; dup {
				continue
			}
			seen[it.ID] = struct{}{}
			items = append(items, it)
		}

		offset += len(page.Items)
		if len(page.Items) < c.pageSize || (page.Pagination.Total > 0 && offset >= page.Pagination.Total) {
			break
		}
	}

	logger.Debug(ctx, "collection listing fetched",
		"collection_id", collectionID,
		"items", len(items),
	)
	return items, nil
}

// GetItem 读取单个条目
func (c *Client) GetItem(ctx context.Context, collectionID, itemID string) (*Item, error) {
	var item Item
	url := fmt.Sprintf("%s/collections/%s/items/%s", c.baseURL, collectionID, itemID)
	if err := c.getJSON(ctx, url, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

// UpdateItemFields 局部更新条目字段。成功后使该集合的列表缓存失效，
// 因为已缓存的列表此刻已经过期。
func (c *Client) UpdateItemFields(ctx context.Context, collectionID, itemID string, fieldData map[string]any) (*Item, error) {
	payload, err := json.Marshal(map[string]any{"fieldData": fieldData})
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternalError, "marshal patch payload failed")
	}

	url := fmt.Sprintf("%s/collections/%s/items/%s", c.baseURL, collectionID, itemID)
	resp, err := c.fetch.Do(ctx, httpx.Request{
		Method: http.MethodPatch,
		URL:    url,
		Header: c.headers("application/json"),
		Body:   payload,
	})
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, upstreamError(resp)
	}

	var item Item
	if err := json.Unmarshal(resp.Body, &item); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeParseError, "item store response not parseable")
	}

	c.listings.Delete(ctx, listingKey(collectionID))
	return &item, nil
}

// UploadAsset 上传二进制资产到站点资产端点
func (c *Client) UploadAsset(ctx context.Context, siteID, fileName string, data []byte) (*Asset, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", fileName)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternalError, "build multipart failed")
	}
	if _, err := part.Write(data); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternalError, "build multipart failed")
	}
	if err := w.Close(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternalError, "build multipart failed")
	}

	url := fmt.Sprintf("%s/sites/%s/assets", c.baseURL, siteID)
	resp, err := c.fetch.Do(ctx, httpx.Request{
		Method: http.MethodPost,
		URL:    url,
		Header: c.headers(w.FormDataContentType()),
		Body:   buf.Bytes(),
	})
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, upstreamError(resp)
	}

	var asset Asset
	if err := json.Unmarshal(resp.Body, &asset); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeParseError, "item store response not parseable")
	}
	return &asset, nil
}

// getJSON GET 请求并解析 JSON 响应
func (c *Client) getJSON(ctx context.Context, url string, out any) error {
	resp, err := c.fetch.Do(ctx, httpx.Request{
		Method: http.MethodGet,
		URL:    url,
		Header: c.headers(""),
	})
	if err != nil {
		return err
	}
	if resp.StatusCode == http.StatusNotFound {
		return apperrors.ErrNotFound
	}
	if !resp.OK() {
		return upstreamError(resp)
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return apperrors.Wrap(err, apperrors.CodeParseError, "item store response not parseable")
	}
	return nil
}

func (c *Client) headers(contentType string) http.Header {
	h := http.Header{}
	h.Set("Authorization", "Bearer "+c.token)
	h.Set("Accept", "application/json")
	if contentType != "" {
		h.Set("Content-Type", contentType)
	}
	return h
}

// upstreamError 将非成功响应映射为携带上游状态与消息的错误
func upstreamError(resp *httpx.Response) error {
	msg := string(resp.Body)
	if len(msg) > 512 {
		msg = msg[:512]
	}
	return apperrors.ErrItemStore.WithDetail(fmt.Sprintf("status %d: %s", resp.StatusCode, msg))
}
