package controllers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"wardrobeapi/models"
	"wardrobeapi/tasks"

	"github.com/getsentry/sentry-go"
	"github.com/hibiken/asynq"
	"github.com/labstack/echo/v4"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

type CreateOutfitIn struct {
	Name             string   `json:"name" validate:"required,max=200"`
	Occasion         string   `json:"occasion" validate:"required,occasion"`
	Season           string   `json:"season" validate:"required,season"`
	StyleDescription *string  `json:"style_description" validate:"omitempty,max=1000"`
	ColorScheme      *string  `json:"color_scheme" validate:"omitempty,max=200"`
	StyleTags        []string `json:"style_tags"`
	ConfidenceScore  float64  `json:"confidence_score" validate:"gte=0,lte=1"`
}

type UpdateOutfitIn struct {
	Name             *string   `json:"name" validate:"omitempty,max=200"`
	Occasion         *string   `json:"occasion" validate:"omitempty,occasion"`
	Season           *string   `json:"season" validate:"omitempty,season"`
	StyleDescription *string   `json:"style_description" validate:"omitempty,max=1000"`
	ColorScheme      *string   `json:"color_scheme" validate:"omitempty,max=200"`
	StyleTags        *[]string `json:"style_tags"`
}

type RateOutfitIn struct {
	Rating int `json:"rating"`
}

type GenerateOutfitsIn struct {
	Occasion string `json:"occasion" validate:"omitempty,occasion"`
	Season   string `json:"season" validate:"omitempty,season"`
}

type OutfitListResponse struct {
	Count   int                           `json:"count"`
	Page    int                           `json:"page"`
	Results []models.OutfitRecommendation `json:"results"`
}

type OutfitsController struct{}

func (controller *OutfitsController) Routes(g *echo.Group) {
	g.GET("", controller.ListOutfits)
	g.POST("", controller.CreateOutfit)
	g.GET("/recommend", controller.Recommend)
	g.GET("/stats", controller.OutfitStats)
	g.POST("/generate", controller.GenerateOutfits)
	g.GET("/:id", controller.GetOutfit)
	g.PUT("/:id", controller.UpdateOutfit)
	g.PATCH("/:id", controller.UpdateOutfit)
	g.DELETE("/:id", controller.DeleteOutfit)
	g.POST("/:id/toggle_favorite", controller.ToggleFavorite)
	g.POST("/:id/rate", controller.RateOutfit)
	g.POST("/:id/mark_worn", controller.MarkWorn)
}

var outfitOrderings = []string{"created_at", "updated_at", "name", "confidence_score", "rating", "wear_count"}

func (controller *OutfitsController) CreateOutfit(c echo.Context) error {
	var req CreateOutfitIn
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
	outfit := models.OutfitRecommendation{
		Name:             req.Name,
		Occasion:         req.Occasion,
		Season:           req.Season,
		StyleDescription: req.StyleDescription,
		ColorScheme:      req.ColorScheme,
		StyleTags:        pq.StringArray(req.StyleTags),
		ConfidenceScore:  req.ConfidenceScore,
	}
	if err := db.Create(&outfit).Error; err != nil {
		sentry.CaptureException(err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to save outfit"})
	}
	return c.JSON(http.StatusCreated, outfit)
}

func (controller *OutfitsController) ListOutfits(c echo.Context) error {
	db, ok := c.Get("__db").(*gorm.DB)
	if !ok {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Database connection error"})
	}

	query := db.Model(&models.OutfitRecommendation{}).Preload("Items.WardrobeItem")
	if occasion := c.QueryParam("occasion"); occasion != "" {
		query = query.Where("occasion = ?", occasion)
	}
	if season := c.QueryParam("season"); season != "" {
		query = query.Where("season IN ?", []string{season, "all"})
	}
	if boolQueryParam(c, "favorites_only") {
		query = query.Where("is_favorite = ?", true)
	}
	if boolQueryParam(c, "rated_only") {
		query = query.Where("rating IS NOT NULL")
	}
	if minConfidence := c.QueryParam("min_confidence"); minConfidence != "" {
		if parsed, err := strconv.ParseFloat(minConfidence, 64); err == nil {
			query = query.Where("confidence_score >= ?", parsed)
		}
	}
	if search := c.QueryParam("search"); search != "" {
		pattern := "%" + search + "%"
		query = query.Where("name ILIKE ? OR style_description ILIKE ?", pattern, pattern)
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to fetch outfits"})
	}

	query = applyOrdering(query, c.QueryParam("ordering"), outfitOrderings)
	query, page := applyPagination(query, c)

	outfits := []models.OutfitRecommendation{}
	if err := query.Find(&outfits).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to fetch outfits"})
	}
	return c.JSON(http.StatusOK, OutfitListResponse{Count: int(count), Page: page, Results: outfits})
}

func (controller *OutfitsController) GetOutfit(c echo.Context) error {
	db, ok := c.Get("__db").(*gorm.DB)
	if !ok {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Database connection error"})
	}
	var outfit models.OutfitRecommendation
	if err := db.Preload("Items.WardrobeItem").First(&outfit, "id = ?", c.Param("id")).Error; err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Outfit not found"})
	}
	return c.JSON(http.StatusOK, outfit)
}

func (controller *OutfitsController) UpdateOutfit(c echo.Context) error {
	var req UpdateOutfitIn
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
	var outfit models.OutfitRecommendation
	if err := db.Preload("Items.WardrobeItem").First(&outfit, "id = ?", c.Param("id")).Error; err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Outfit not found"})
	}
	if req.Name != nil {
		outfit.Name = *req.Name
	}
	if req.Occasion != nil {
		outfit.Occasion = *req.Occasion
	}
	if req.Season != nil {
		outfit.Season = *req.Season
	}
	if req.StyleDescription != nil {
		outfit.StyleDescription = req.StyleDescription
	}
	if req.ColorScheme != nil {
		outfit.ColorScheme = req.ColorScheme
	}
	if req.StyleTags != nil {
		outfit.StyleTags = pq.StringArray(*req.StyleTags)
	}
	if err := db.Save(&outfit).Error; err != nil {
		sentry.CaptureException(err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to update outfit"})
	}
	return c.JSON(http.StatusOK, outfit)
}

func (controller *OutfitsController) DeleteOutfit(c echo.Context) error {
	db, ok := c.Get("__db").(*gorm.DB)
	if !ok {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Database connection error"})
	}
	var outfit models.OutfitRecommendation
	if err := db.First(&outfit, "id = ?", c.Param("id")).Error; err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Outfit not found"})
	}
	if err := db.Where("outfit_recommendation_id = ?", outfit.ID).Delete(&models.OutfitItem{}).Error; err != nil {
		sentry.CaptureException(err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to delete outfit"})
	}
	if err := db.Delete(&outfit).Error; err != nil {
		sentry.CaptureException(err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to delete outfit"})
	}
	return c.NoContent(http.StatusNoContent)
}

func (controller *OutfitsController) ToggleFavorite(c echo.Context) error {
	db, ok := c.Get("__db").(*gorm.DB)
	if !ok {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Database connection error"})
	}
	var outfit models.OutfitRecommendation
	if err := db.Preload("Items.WardrobeItem").First(&outfit, "id = ?", c.Param("id")).Error; err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Outfit not found"})
	}
	outfit.IsFavorite = !outfit.IsFavorite
	if err := db.Save(&outfit).Error; err != nil {
		sentry.CaptureException(err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to update outfit"})
	}
	return c.JSON(http.StatusOK, outfit)
}

func (controller *OutfitsController) RateOutfit(c echo.Context) error {
	var req RateOutfitIn
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if req.Rating < 1 || req.Rating > 5 {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Rating must be between 1 and 5"})
	}
	db, ok := c.Get("__db").(*gorm.DB)
	if !ok {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Database connection error"})
	}
	var outfit models.OutfitRecommendation
	if err := db.Preload("Items.WardrobeItem").First(&outfit, "id = ?", c.Param("id")).Error; err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Outfit not found"})
	}
	outfit.Rating = &req.Rating
	if err := db.Save(&outfit).Error; err != nil {
		sentry.CaptureException(err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to update outfit"})
	}
	return c.JSON(http.StatusOK, outfit)
}

// MarkWorn stamps the outfit and every member wardrobe item.
func (controller *OutfitsController) MarkWorn(c echo.Context) error {
	db, ok := c.Get("__db").(*gorm.DB)
	if !ok {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Database connection error"})
	}
	var outfit models.OutfitRecommendation
	if err := db.Preload("Items.WardrobeItem").First(&outfit, "id = ?", c.Param("id")).Error; err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Outfit not found"})
	}
	now := time.Now().UTC()
	outfit.MarkWorn(now)
	if err := db.Save(&outfit).Error; err != nil {
		sentry.CaptureException(err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to update outfit"})
	}
	for i := range outfit.Items {
		item := &outfit.Items[i].WardrobeItem
		if item.ID == 0 {
			continue
		}
		item.MarkWorn(now)
		if err := db.Save(item).Error; err != nil {
			sentry.CaptureException(err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to update outfit items"})
		}
	}
	return c.JSON(http.StatusOK, outfit)
}

func (controller *OutfitsController) Recommend(c echo.Context) error {
	db, ok := c.Get("__db").(*gorm.DB)
	if !ok {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Database connection error"})
	}
	query := db.Model(&models.OutfitRecommendation{}).Preload("Items.WardrobeItem")
	if occasion := c.QueryParam("occasion"); occasion != "" {
		query = query.Where("occasion = ?", occasion)
	}
	if season := c.QueryParam("season"); season != "" {
		query = query.Where("season IN ?", []string{season, "all"})
	}
	outfits := []models.OutfitRecommendation{}
	if err := query.Order("confidence_score desc").Limit(10).Find(&outfits).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to fetch recommendations"})
	}
	return c.JSON(http.StatusOK, outfits)
}

func (controller *OutfitsController) GenerateOutfits(c echo.Context) error {
	var req GenerateOutfitsIn
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if err := c.Validate(req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	asynqClient, ok := c.Get("__asynqclient").(*asynq.Client)
	if !ok || asynqClient == nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"message": "Service is not available, please try again a bit later"})
	}
	task, err := tasks.NewOutfitGenerationTask(req.Occasion, req.Season)
	if err != nil {
		sentry.CaptureException(err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"message": "Sorry, could not start generation, please try again"})
	}
	info, err := asynqClient.Enqueue(task, asynq.MaxRetry(2), asynq.Queue("process"))
	if err != nil {
		sentry.CaptureException(err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"message": "Sorry, could not start generation, please try again"})
	}
	fmt.Println("[Queue] Outfit generation task submitted, Task ID: ", info.ID)
	return c.JSON(http.StatusAccepted, map[string]string{"message": "Outfit generation started"})
}

func (controller *OutfitsController) OutfitStats(c echo.Context) error {
	db, ok := c.Get("__db").(*gorm.DB)
	if !ok {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Database connection error"})
	}
	stats := models.OutfitStatsOut{ByOccasion: map[string]int64{}}
	if err := db.Model(&models.OutfitRecommendation{}).Count(&stats.Total).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to fetch stats"})
	}
	if err := db.Model(&models.OutfitRecommendation{}).Where("is_favorite = ?", true).Count(&stats.Favorites).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to fetch stats"})
	}
	if err := db.Model(&models.OutfitRecommendation{}).Where("rating IS NOT NULL").Count(&stats.Rated).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to fetch stats"})
	}
	if stats.Rated > 0 {
		var avg *float64
		if err := db.Model(&models.OutfitRecommendation{}).Select("avg(rating)").Where("rating IS NOT NULL").Scan(&avg).Error; err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to fetch stats"})
		}
		if avg != nil {
			stats.AverageRating = *avg
		}
	}
	var rows []struct {
		Occasion string
		Count    int64
	}
	if err := db.Model(&models.OutfitRecommendation{}).Select("occasion, count(*) as count").Group("occasion").Scan(&rows).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to fetch stats"})
	}
	for _, row := range rows {
		stats.ByOccasion[row.Occasion] = row.Count
	}
	return c.JSON(http.StatusOK, stats)
}

// ---- Outfit items ----

type CreateOutfitItemIn struct {
	OutfitRecommendationID *uint   `json:"outfit_recommendation_id" validate:"required"`
	WardrobeItemID         *uint   `json:"wardrobe_item_id" validate:"required"`
	Category               string  `json:"category" validate:"required,category"`
	MatchScore             float64 `json:"match_score" validate:"gte=0,lte=1"`
	StyleNotes             *string `json:"style_notes" validate:"omitempty,max=500"`
}

type UpdateOutfitItemIn struct {
	Category   *string  `json:"category" validate:"omitempty,category"`
	MatchScore *float64 `json:"match_score" validate:"omitempty,gte=0,lte=1"`
	StyleNotes *string  `json:"style_notes" validate:"omitempty,max=500"`
}

type OutfitItemsController struct{}

func (controller *OutfitItemsController) Routes(g *echo.Group) {
	g.GET("", controller.ListOutfitItems)
	g.POST("", controller.CreateOutfitItem)
	g.GET("/:id", controller.GetOutfitItem)
	g.PUT("/:id", controller.UpdateOutfitItem)
	g.PATCH("/:id", controller.UpdateOutfitItem)
	g.DELETE("/:id", controller.DeleteOutfitItem)
}

var outfitItemOrderings = []string{"created_at", "match_score", "category"}

func (controller *OutfitItemsController) CreateOutfitItem(c echo.Context) error {
	var req CreateOutfitItemIn
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
	var outfit models.OutfitRecommendation
	if err := db.First(&outfit, "id = ?", *req.OutfitRecommendationID).Error; err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Referenced outfit not found"})
	}
	var wardrobeItem models.WardrobeItem
	if err := db.First(&wardrobeItem, "id = ?", *req.WardrobeItemID).Error; err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Referenced wardrobe item not found"})
	}
	item := models.OutfitItem{
		OutfitRecommendationID: outfit.ID,
		WardrobeItemID:         wardrobeItem.ID,
		Category:               req.Category,
		MatchScore:             req.MatchScore,
		StyleNotes:             req.StyleNotes,
	}
	if err := db.Create(&item).Error; err != nil {
		sentry.CaptureException(err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to save outfit item"})
	}
	item.WardrobeItem = wardrobeItem
	return c.JSON(http.StatusCreated, item)
}

func (controller *OutfitItemsController) ListOutfitItems(c echo.Context) error {
	db, ok := c.Get("__db").(*gorm.DB)
	if !ok {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Database connection error"})
	}
	query := db.Model(&models.OutfitItem{}).Preload("WardrobeItem")
	if outfitID := c.QueryParam("outfit"); outfitID != "" {
		query = query.Where("outfit_recommendation_id = ?", outfitID)
	}
	if itemID := c.QueryParam("item"); itemID != "" {
		query = query.Where("wardrobe_item_id = ?", itemID)
	}
	if category := c.QueryParam("category"); category != "" {
		query = query.Where("category = ?", category)
	}
	if ordering := c.QueryParam("ordering"); ordering != "" {
		query = applyOrdering(query, ordering, outfitItemOrderings)
	} else {
		query = query.Order("match_score desc")
	}
	items := []models.OutfitItem{}
	if err := query.Find(&items).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to fetch outfit items"})
	}
	return c.JSON(http.StatusOK, items)
}

func (controller *OutfitItemsController) GetOutfitItem(c echo.Context) error {
	db, ok := c.Get("__db").(*gorm.DB)
	if !ok {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Database connection error"})
	}
	var item models.OutfitItem
	if err := db.Preload("WardrobeItem").First(&item, "id = ?", c.Param("id")).Error; err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Outfit item not found"})
	}
	return c.JSON(http.StatusOK, item)
}

func (controller *OutfitItemsController) UpdateOutfitItem(c echo.Context) error {
	var req UpdateOutfitItemIn
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
	var item models.OutfitItem
	if err := db.Preload("WardrobeItem").First(&item, "id = ?", c.Param("id")).Error; err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Outfit item not found"})
	}
	if req.Category != nil {
		item.Category = *req.Category
	}
	if req.MatchScore != nil {
		item.MatchScore = *req.MatchScore
	}
	if req.StyleNotes != nil {
		item.StyleNotes = req.StyleNotes
	}
	if err := db.Save(&item).Error; err != nil {
		sentry.CaptureException(err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to update outfit item"})
	}
	return c.JSON(http.StatusOK, item)
}

func (controller *OutfitItemsController) DeleteOutfitItem(c echo.Context) error {
	db, ok := c.Get("__db").(*gorm.DB)
	if !ok {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Database connection error"})
	}
	var item models.OutfitItem
	if err := db.First(&item, "id = ?", c.Param("id")).Error; err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Outfit item not found"})
	}
	if err := db.Delete(&item).Error; err != nil {
		sentry.CaptureException(err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to delete outfit item"})
	}
	return c.NoContent(http.StatusNoContent)
}
