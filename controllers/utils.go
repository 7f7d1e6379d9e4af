package controllers

import (
	"slices"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

const PageSize = 20

func stringPtr(s string) *string {
	return &s
}

func BoolPointer(b bool) *bool {
	return &b
}

func UintPointer(i uint) *uint {
	return &i
}

// applyOrdering whitelists the ordering field; a leading "-" means
// descending, anything unknown falls back to newest-first.
func applyOrdering(query *gorm.DB, requested string, allowed []string) *gorm.DB {
	field := strings.TrimPrefix(requested, "-")
	if field == "" || !slices.Contains(allowed, field) {
		return query.Order("created_at desc")
	}
	if strings.HasPrefix(requested, "-") {
		return query.Order(field + " desc")
	}
	return query.Order(field + " asc")
}

func applyPagination(query *gorm.DB, c echo.Context) (*gorm.DB, int) {
	page, err := strconv.Atoi(c.QueryParam("page"))
	if err != nil || page < 1 {
		page = 1
	}
	return query.Offset((page - 1) * PageSize).Limit(PageSize), page
}

func paramID(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

func boolQueryParam(c echo.Context, name string) bool {
	value := strings.ToLower(c.QueryParam(name))
	return value == "true" || value == "1" || value == "yes"
}
