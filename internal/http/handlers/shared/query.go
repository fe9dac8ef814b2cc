package shared

import (
	"strconv"
	"strings"
	"time"

	"github.com/course-referral/internal/constants"

	"github.com/gin-gonic/gin"
)

// ParseDateRange 解析时间范围筛选，返回起始时间；all 或空值返回 nil
func ParseDateRange(raw string, now time.Time) (*time.Time, bool) {
	var days int
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", constants.DateRangeAll:
		return nil, true
	case strings.ToLower(constants.DateRangeLast7Days):
		days = 7
	case strings.ToLower(constants.DateRangeLast30Days):
		days = 30
	case strings.ToLower(constants.DateRangeLast90Days):
		days = 90
	default:
		return nil, false
	}
	from := now.AddDate(0, 0, -days)
	return &from, true
}

// ParsePathUint 解析路径中的正整数 ID
func ParsePathUint(c *gin.Context, name string) (uint, bool) {
	value, err := strconv.ParseUint(strings.TrimSpace(c.Param(name)), 10, 64)
	if err != nil || value == 0 {
		return 0, false
	}
	return uint(value), true
}

// ParseQueryUint 解析可选的正整数查询参数；未传时返回 0
func ParseQueryUint(c *gin.Context, names ...string) (uint, bool) {
	for _, name := range names {
		raw := strings.TrimSpace(c.Query(name))
		if raw == "" {
			continue
		}
		value, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return 0, false
		}
		return uint(value), true
	}
	return 0, true
}
