package controllers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"wardrobeapi/models"
	"wardrobeapi/services"

	"github.com/getsentry/sentry-go"
	"github.com/labstack/echo/v4"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

type CreateWardrobeItemIn struct {
	ProcessedImageID *uint    `json:"processed_image_id"`
	Name             string   `json:"name" validate:"required,max=200"`
	Category         string   `json:"category" validate:"required,category"`
	Color            string   `json:"color" validate:"required"`
	ColorPalette     []string `json:"color_palette"`
	Brand            *string  `json:"brand" validate:"omitempty,max=100"`
	Size             *string  `json:"size" validate:"omitempty,max=20"`
	Material         *string  `json:"material" validate:"omitempty,max=100"`
	Occasion         string   `json:"occasion" validate:"required,occasion"`
	Season           string   `json:"season" validate:"required,season"`
	StyleDescription *string  `json:"style_description" validate:"omitempty,max=1000"`
	StyleTags        []string `json:"style_tags"`
}

type UpdateWardrobeItemIn struct {
	Name             *string   `json:"name" validate:"omitempty,max=200"`
	Category         *string   `json:"category" validate:"omitempty,category"`
	Color            *string   `json:"color"`
	ColorPalette     *[]string `json:"color_palette"`
	Brand            *string   `json:"brand" validate:"omitempty,max=100"`
	Size             *string   `json:"size" validate:"omitempty,max=20"`
	Material         *string   `json:"material" validate:"omitempty,max=100"`
	Occasion         *string   `json:"occasion" validate:"omitempty,occasion"`
	Season           *string   `json:"season" validate:"omitempty,season"`
	StyleDescription *string   `json:"style_description" validate:"omitempty,max=1000"`
	StyleTags        *[]string `json:"style_tags"`
}

type WardrobeItemResponse struct {
	ID               uint     `json:"id"`
	ProcessedImageID *uint    `json:"processed_image_id"`
	Name             string   `json:"name"`
	Category         string   `json:"category"`
	Color            string   `json:"color"`
	ColorPalette     []string `json:"color_palette"`
	Brand            *string  `json:"brand"`
	Size             *string  `json:"size"`
	Material         *string  `json:"material"`
	Occasion         string   `json:"occasion"`
	Season           string   `json:"season"`
	StyleDescription *string  `json:"style_description"`
	StyleTags        []string `json:"style_tags"`
	IsFavorite       bool     `json:"is_favorite"`
	LastWorn         *string  `json:"last_worn"`
	WearCount        int      `json:"wear_count"`
	ImageURL         *string  `json:"image_url"`
	CreatedAt        string   `json:"created_at"`
	UpdatedAt        string   `json:"updated_at"`
}

type WardrobeItemListResponse struct {
	Count   int                    `json:"count"`
	Page    int                    `json:"page"`
	Results []WardrobeItemResponse `json:"results"`
}

type WardrobeController struct {
	URLCache services.URLCacheServiceProvider
}

func (controller *WardrobeController) Routes(g *echo.Group) {
	g.GET("", controller.ListWardrobeItems)
	g.POST("", controller.CreateWardrobeItem)
	g.GET("/categories", controller.Categories)
	g.GET("/colors", controller.Colors)
	g.GET("/:id", controller.GetWardrobeItem)
	g.PUT("/:id", controller.UpdateWardrobeItem)
	g.PATCH("/:id", controller.UpdateWardrobeItem)
	g.DELETE("/:id", controller.DeleteWardrobeItem)
	g.POST("/:id/toggle_favorite", controller.ToggleFavorite)
	g.POST("/:id/mark_worn", controller.MarkWorn)
}

var wardrobeOrderings = []string{"created_at", "updated_at", "name", "category", "wear_count", "last_worn"}

func (controller *WardrobeController) CreateWardrobeItem(c echo.Context) error {
	var req CreateWardrobeItemIn
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if err := c.Validate(req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	db, ok := c.Get("__db").(*gorm.DB)
	if !ok {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Database connection error"})
	}

	item := models.WardrobeItem{
		Name:             req.Name,
		Category:         req.Category,
		Color:            req.Color,
		ColorPalette:     pq.StringArray(req.ColorPalette),
		Brand:            req.Brand,
		Size:             req.Size,
		Material:         req.Material,
		Occasion:         req.Occasion,
		Season:           req.Season,
		StyleDescription: req.StyleDescription,
		StyleTags:        pq.StringArray(req.StyleTags),
	}
	if req.ProcessedImageID != nil {
		var image models.ProcessedImage
		if err := db.First(&image, "id = ?", *req.ProcessedImageID).Error; err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "Referenced image not found"})
		}
		item.ProcessedImageID = &image.ID
		item.ProcessedImage = &image
	}
	if err := db.Create(&item).Error; err != nil {
		sentry.CaptureException(err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to save wardrobe item"})
	}
	return c.JSON(http.StatusCreated, controller.toResponse(c.Request().Context(), item))
}

func (controller *WardrobeController) ListWardrobeItems(c echo.Context) error {
	db, ok := c.Get("__db").(*gorm.DB)
	if !ok {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Database connection error"})
	}

	query := db.Model(&models.WardrobeItem{}).Preload("ProcessedImage")
	if category := c.QueryParam("category"); category != "" {
		query = query.Where("category = ?", category)
	}
	if color := c.QueryParam("color"); color != "" {
		query = query.Where("color = ?", color)
	}
	if occasion := c.QueryParam("occasion"); occasion != "" {
		query = query.Where("occasion = ?", occasion)
	}
	if season := c.QueryParam("season"); season != "" {
		query = query.Where("season IN ?", []string{season, "all"})
	}
	if boolQueryParam(c, "favorites_only") {
		query = query.Where("is_favorite = ?", true)
	}
	if search := c.QueryParam("search"); search != "" {
		pattern := "%" + search + "%"
		query = query.Where("name ILIKE ? OR style_description ILIKE ? OR brand ILIKE ?", pattern, pattern, pattern)
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to fetch wardrobe items"})
	}

	query = applyOrdering(query, c.QueryParam("ordering"), wardrobeOrderings)
	query, page := applyPagination(query, c)

	var items []models.WardrobeItem
	if err := query.Find(&items).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to fetch wardrobe items"})
	}

	return c.JSON(http.StatusOK, WardrobeItemListResponse{
		Count:   int(count),
		Page:    page,
		Results: controller.populateResponses(c.Request().Context(), items),
	})
}

func (controller *WardrobeController) GetWardrobeItem(c echo.Context) error {
	db, ok := c.Get("__db").(*gorm.DB)
	if !ok {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Database connection error"})
	}
	var item models.WardrobeItem
	if err := db.Preload("ProcessedImage").First(&item, "id = ?", c.Param("id")).Error; err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Wardrobe item not found"})
	}
	return c.JSON(http.StatusOK, controller.toResponse(c.Request().Context(), item))
}

func (controller *WardrobeController) UpdateWardrobeItem(c echo.Context) error {
	var req UpdateWardrobeItemIn
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if err := c.Validate(req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	db, ok := c.Get("__db").(*gorm.DB)
	if !ok {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Database connection error"})
	}
	var item models.WardrobeItem
	if err := db.Preload("ProcessedImage").First(&item, "id = ?", c.Param("id")).Error; err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Wardrobe item not found"})
	}

	if req.Name != nil {
		item.Name = *req.Name
	}
	if req.Category != nil {
		item.Category = *req.Category
	}
	if req.Color != nil {
		item.Color = *req.Color
	}
	if req.ColorPalette != nil {
		item.ColorPalette = pq.StringArray(*req.ColorPalette)
	}
	if req.Brand != nil {
		item.Brand = req.Brand
	}
	if req.Size != nil {
		item.Size = req.Size
	}
	if req.Material != nil {
		item.Material = req.Material
	}
	if req.Occasion != nil {
		item.Occasion = *req.Occasion
	}
	if req.Season != nil {
		item.Season = *req.Season
	}
	if req.StyleDescription != nil {
		item.StyleDescription = req.StyleDescription
	}
	if req.StyleTags != nil {
		item.StyleTags = pq.StringArray(*req.StyleTags)
	}
	if err := db.Save(&item).Error; err != nil {
		sentry.CaptureException(err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to update wardrobe item"})
	}
	return c.JSON(http.StatusOK, controller.toResponse(c.Request().Context(), item))
}

func (controller *WardrobeController) DeleteWardrobeItem(c echo.Context) error {
	db, ok := c.Get("__db").(*gorm.DB)
	if !ok {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Database connection error"})
	}
	var item models.WardrobeItem
	if err := db.First(&item, "id = ?", c.Param("id")).Error; err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Wardrobe item not found"})
	}
	if err := db.Delete(&item).Error; err != nil {
		sentry.CaptureException(err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to delete wardrobe item"})
	}
	return c.NoContent(http.StatusNoContent)
}

func (controller *WardrobeController) ToggleFavorite(c echo.Context) error {
	db, ok := c.Get("__db").(*gorm.DB)
	if !ok {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Database connection error"})
	}
	var item models.WardrobeItem
	if err := db.Preload("ProcessedImage").First(&item, "id = ?", c.Param("id")).Error; err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Wardrobe item not found"})
	}
	item.IsFavorite = !item.IsFavorite
	if err := db.Save(&item).Error; err != nil {
		sentry.CaptureException(err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to update wardrobe item"})
	}
	return c.JSON(http.StatusOK, controller.toResponse(c.Request().Context(), item))
}

func (controller *WardrobeController) MarkWorn(c echo.Context) error {
	db, ok := c.Get("__db").(*gorm.DB)
	if !ok {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Database connection error"})
	}
	var item models.WardrobeItem
	if err := db.Preload("ProcessedImage").First(&item, "id = ?", c.Param("id")).Error; err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Wardrobe item not found"})
	}
	item.MarkWorn(time.Now().UTC())
	if err := db.Save(&item).Error; err != nil {
		sentry.CaptureException(err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to update wardrobe item"})
	}
	return c.JSON(http.StatusOK, controller.toResponse(c.Request().Context(), item))
}

func (controller *WardrobeController) Categories(c echo.Context) error {
	db, ok := c.Get("__db").(*gorm.DB)
	if !ok {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Database connection error"})
	}
	var rows []struct {
		Category string
		Count    int64
	}
	if err := db.Model(&models.WardrobeItem{}).Select("category, count(*) as count").Group("category").Scan(&rows).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to fetch categories"})
	}
	counts := map[string]int64{}
	for _, row := range rows {
		counts[row.Category] = row.Count
	}
	result := []echo.Map{}
	for _, category := range models.WardrobeCategories {
		result = append(result, echo.Map{"category": category, "count": counts[category]})
	}
	return c.JSON(http.StatusOK, result)
}

func (controller *WardrobeController) Colors(c echo.Context) error {
	db, ok := c.Get("__db").(*gorm.DB)
	if !ok {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Database connection error"})
	}
	var rows []struct {
		Color string
		Count int64
	}
	if err := db.Model(&models.WardrobeItem{}).Select("color, count(*) as count").Group("color").Order("count desc").Scan(&rows).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to fetch colors"})
	}
	result := []echo.Map{}
	for _, row := range rows {
		result = append(result, echo.Map{"color": row.Color, "count": row.Count})
	}
	return c.JSON(http.StatusOK, result)
}

func (controller *WardrobeController) populateResponses(ctx context.Context, items []models.WardrobeItem) []WardrobeItemResponse {
	if len(items) == 0 {
		return []WardrobeItemResponse{}
	}
	var wg sync.WaitGroup
	responses := make([]WardrobeItemResponse, len(items))
	for i, wardrobeItem := range items {
		wg.Add(1)
		go func(index int, item models.WardrobeItem) {
			defer wg.Done()
			responses[index] = controller.toResponse(ctx, item)
		}(i, wardrobeItem)
	}
	wg.Wait()
	return responses
}

func (controller *WardrobeController) toResponse(ctx context.Context, item models.WardrobeItem) WardrobeItemResponse {
	resp := WardrobeItemResponse{
		ID:               item.ID,
		ProcessedImageID: item.ProcessedImageID,
		Name:             item.Name,
		Category:         item.Category,
		Color:            item.Color,
		ColorPalette:     item.ColorPalette,
		Brand:            item.Brand,
		Size:             item.Size,
		Material:         item.Material,
		Occasion:         item.Occasion,
		Season:           item.Season,
		StyleDescription: item.StyleDescription,
		StyleTags:        item.StyleTags,
		IsFavorite:       item.IsFavorite,
		WearCount:        item.WearCount,
		CreatedAt:        item.CreatedAt.Format("2006-01-02T15:04:05Z"),
		UpdatedAt:        item.UpdatedAt.Format("2006-01-02T15:04:05Z"),
	}
	if resp.ColorPalette == nil {
		resp.ColorPalette = []string{}
	}
	if resp.StyleTags == nil {
		resp.StyleTags = []string{}
	}
	if item.LastWorn != nil {
		resp.LastWorn = services.StrPointer(item.LastWorn.Format("2006-01-02T15:04:05Z"))
	}
	if item.ProcessedImage != nil {
		objectKey := item.ProcessedImage.OriginalImageURL
		if item.ProcessedImage.ProcessedImageURL != nil && *item.ProcessedImage.ProcessedImageURL != "" {
			objectKey = *item.ProcessedImage.ProcessedImageURL
		}
		if url, err := controller.URLCache.GetReadURL(ctx, objectKey); err == nil && url != "" {
			resp.ImageURL = &url
		}
	}
	return resp
}
