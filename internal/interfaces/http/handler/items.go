package handler

import (
	"io"

	"github.com/gin-gonic/gin"

	"smartcheck-api/internal/infrastructure/webflow"
	"smartcheck-api/internal/interfaces/http/dto"
	apperrors "smartcheck-api/pkg/errors"
)

// maxAssetBytes 单个上传资产的大小上限
const maxAssetBytes = 16 << 20

// ItemsHandler 条目存储代理处理器
type ItemsHandler struct {
	store *webflow.Client
}

// NewItemsHandler 创建处理器
func NewItemsHandler(store *webflow.Client) *ItemsHandler {
	return &ItemsHandler{store: store}
}

// List 列出集合全部条目（经缓存与在途合并）
// @Router /v1/collections/{collectionID}/items [get]
func (h *ItemsHandler) List(c *gin.Context) {
	collectionID := c.Param("collectionID")
	if collectionID == "" {
		respondError(c, apperrors.ErrInvalidParam.WithDetail("collection id is required"))
		return
	}

	items, err := h.store.ListItems(c.Request.Context(), collectionID)
	if err != nil {
		respondError(c, err)
		return
	}
	dto.Success(c, items)
}

// Get 读取单个条目
// @Router /v1/collections/{collectionID}/items/{itemID} [get]
func (h *ItemsHandler) Get(c *gin.Context) {
	collectionID := c.Param("collectionID")
	itemID := c.Param("itemID")
	if collectionID == "" || itemID == "" {
		respondError(c, apperrors.ErrInvalidParam.WithDetail("collection id and item id are required"))
		return
	}

	item, err := h.store.GetItem(c.Request.Context(), collectionID, itemID)
	if err != nil {
		respondError(c, err)
		return
	}
	dto.Success(c, item)
}

// Patch 局部更新条目字段，成功后上游会使列表缓存失效
// @Router /v1/collections/{collectionID}/items/{itemID} [patch]
func (h *ItemsHandler) Patch(c *gin.Context) {
	collectionID := c.Param("collectionID")
	itemID := c.Param("itemID")
	if collectionID == "" || itemID == "" {
		respondError(c, apperrors.ErrInvalidParam.WithDetail("collection id and item id are required"))
		return
	}

	var req dto.ItemPatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.ErrInvalidParam.WithDetail(err.Error()))
		return
	}

	item, err := h.store.UpdateItemFields(c.Request.Context(), collectionID, itemID, req.FieldData)
	if err != nil {
		respondError(c, err)
		return
	}
	dto.Success(c, item)
}

// UploadAsset 上传二进制资产
// @Router /v1/sites/{siteID}/assets [post]
func (h *ItemsHandler) UploadAsset(c *gin.Context) {
	siteID := c.Param("siteID")
	if siteID == "" {
		respondError(c, apperrors.ErrInvalidParam.WithDetail("site id is required"))
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		respondError(c, apperrors.ErrInvalidParam.WithDetail("multipart field 'file' is required"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxAssetBytes+1))
	if err != nil {
		respondError(c, apperrors.ErrInvalidParam.WithDetail("failed to read upload"))
		return
	}
	if len(data) > maxAssetBytes {
		respondError(c, apperrors.ErrInvalidParam.WithDetail("asset exceeds size limit"))
		return
	}

	asset, err := h.store.UploadAsset(c.Request.Context(), siteID, header.Filename, data)
	if err != nil {
		respondError(c, err)
		return
	}
	dto.Success(c, dto.AssetUploadResponse{ID: asset.ID, URL: asset.URL})
}
