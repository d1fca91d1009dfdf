package memstore

import (
	"hash/fnv"
	"strconv"
)

// HashKey 将任意多段输入派生为缓存键。FNV-64a 是非加密哈希，
// 存在非零的碰撞概率，这里作为性能/正确性权衡被接受；
// 需要更强保证时可替换为标准内容摘要而不改变调用契约。
func HashKey(parts ...string) string {
	h := fnv.New64a()
	for _, p := range parts {
		_, _ = h.Write([]byte(p))
		_, _ = h.Write([]byte{0}) // 段分隔，避免拼接歧义
	}
	return strconv.FormatUint(h.Sum64(), 16)
}
