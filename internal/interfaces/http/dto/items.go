package dto

// ItemPatchRequest 条目字段局部更新请求
type ItemPatchRequest struct {
	FieldData map[string]any `json:"field_data" binding:"required"`
}

// AssetUploadResponse 资产上传响应
type AssetUploadResponse struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}
