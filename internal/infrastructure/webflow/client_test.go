package webflow

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartcheck-api/internal/infrastructure/httpx"
	"smartcheck-api/internal/infrastructure/memstore"
	apperrors "smartcheck-api/pkg/errors"
)

func newTestClient(t *testing.T, handler http.Handler, pageSize int) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	fetch := httpx.New(httpx.Config{Timeout: time.Second, MaxAttempts: 1})
	listings := memstore.NewStore[[]Item]("listing", time.Hour)
	return NewClient(srv.URL, "test-token", pageSize, fetch, listings), srv
}

func pageHandler(listCalls *atomic.Int32, pages [][]Item, total int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		listCalls.Add(1)
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

		var page []Item
		served := 0
		for _, p := range pages {
			if served == offset {
				page = p
				break
			}
			served += len(p)
		}

		resp := listResponse{Items: page}
		resp.Pagination.Limit = limit
		resp.Pagination.Offset = offset
		resp.Pagination.Total = total
		json.NewEncoder(w).Encode(resp)
	})
}

func TestListItems_PaginatesAndDedups(t *testing.T) {
	var listCalls atomic.Int32
	// 第二页跨页重复了 b，去重后首见保留
	pages := [][]Item{
		{{ID: "a"}, {ID: "b"}},
		{{ID: "b"}, {ID: "c"}},
		{{ID: "d"}},
	}
	c, _ := newTestClient(t, pageHandler(&listCalls, pages, 5), 2)

	items, err := c.ListItems(context.Background(), "col1")
	require.NoError(t, err)

	ids := make([]string, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ID)
	}
	assert.Equal(t, []string{"a", "b", "c", "d"}, ids)
	assert.Equal(t, int32(3), listCalls.Load())
}

func TestListItems_CachesListing(t *testing.T) {
	var listCalls atomic.Int32
	pages := [][]Item{{{ID: "a"}}}
	c, _ := newTestClient(t, pageHandler(&listCalls, pages, 1), 100)
	ctx := context.Background()

	_, err := c.ListItems(ctx, "col1")
	require.NoError(t, err)
	_, err = c.ListItems(ctx, "col1")
	require.NoError(t, err)

	assert.Equal(t, int32(1), listCalls.Load(), "second listing must come from cache")
}

func TestListItems_ConcurrentCallsMergedInFlight(t *testing.T) {
	var listCalls atomic.Int32
	release := make(chan struct{})
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		listCalls.Add(1)
		<-release
		json.NewEncoder(w).Encode(listResponse{Items: []Item{{ID: "a"}}})
	})
	c, _ := newTestClient(t, handler, 100)

	const callers = 8
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = c.ListItems(context.Background(), "col1")
		}(i)
	}

	// 等全部调用方挂在在途合并上再放行上游
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), listCalls.Load(), "concurrent listings must share one upstream fetch")
}

func TestGetItem_NotFound(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	c, _ := newTestClient(t, handler, 100)

	_, err := c.GetItem(context.Background(), "col1", "missing")
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeNotFound, apperrors.AsAppError(err).Code)
}

func TestUpdateItemFields_InvalidatesListing(t *testing.T) {
	var listCalls atomic.Int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			listCalls.Add(1)
			json.NewEncoder(w).Encode(listResponse{Items: []Item{{ID: "a"}}})
		case http.MethodPatch:
			assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
			var body struct {
				FieldData map[string]any `json:"fieldData"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			json.NewEncoder(w).Encode(Item{ID: "a", FieldData: body.FieldData})
		}
	})
	c, _ := newTestClient(t, handler, 100)
	ctx := context.Background()

	_, err := c.ListItems(ctx, "col1")
	require.NoError(t, err)

	item, err := c.UpdateItemFields(ctx, "col1", "a", map[string]any{"name": "updated"})
	require.NoError(t, err)
	assert.Equal(t, "updated", item.FieldData["name"])

	// 更新成功后列表缓存失效，下次列举重新拉上游
	_, err = c.ListItems(ctx, "col1")
	require.NoError(t, err)
	assert.Equal(t, int32(2), listCalls.Load())
}

func TestUpdateItemFields_UpstreamError(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		fmt.Fprint(w, `{"message":"validation failed"}`)
	})
	c, _ := newTestClient(t, handler, 100)

	_, err := c.UpdateItemFields(context.Background(), "col1", "a", map[string]any{})
	require.Error(t, err)
	appErr := apperrors.AsAppError(err)
	assert.Equal(t, apperrors.CodeItemStoreError, appErr.Code)
	assert.Contains(t, appErr.Detail, "status 409")
}

func TestUploadAsset(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		assert.Equal(t, "pic.png", header.Filename)

		json.NewEncoder(w).Encode(Asset{ID: "asset1", URL: "https://cdn.example/pic.png"})
	})
	c, _ := newTestClient(t, handler, 100)

	asset, err := c.UploadAsset(context.Background(), "site1", "pic.png", []byte{0x89, 0x50})
	require.NoError(t, err)
	assert.Equal(t, "asset1", asset.ID)
	assert.Equal(t, "https://cdn.example/pic.png", asset.URL)
}
