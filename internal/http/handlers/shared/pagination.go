package shared

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// QueryPagination 读取 page 与 limit（兼容 page_size），越界值回落到默认
func QueryPagination(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.Query("page"))
	sizeRaw := c.Query("limit")
	if sizeRaw == "" {
		sizeRaw = c.Query("page_size")
	}
	pageSize, _ := strconv.Atoi(sizeRaw)
	return normalizePagination(page, pageSize)
}

func normalizePagination(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return page, pageSize
}
