package controllers

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"wardrobeapi/models"
	"wardrobeapi/services"
	"wardrobeapi/tasks"

	"github.com/getsentry/sentry-go"
	"github.com/hibiken/asynq"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

type UpdateProcessedImageIn struct {
	ClothingType *string `json:"clothing_type" validate:"omitempty,clothingtype"`
}

type ProcessedImageResponse struct {
	ID                uint    `json:"id"`
	ClothingType      string  `json:"clothing_type"`
	Status            string  `json:"status"`
	OriginalImageURL  string  `json:"original_image_url"`
	ProcessedImageURL *string `json:"processed_image_url"`
	AnalysisResult    *string `json:"analysis_result"`
	ErrorMessage      *string `json:"error_message"`
	ProcessedAt       *string `json:"processed_at"`
	CreatedAt         string  `json:"created_at"`
	UpdatedAt         string  `json:"updated_at"`
}

type ProcessedImageListResponse struct {
	Count   int                      `json:"count"`
	Page    int                      `json:"page"`
	Results []ProcessedImageResponse `json:"results"`
}

type ProcessedImagesController struct {
	AWSService services.AWSServiceProvider
	URLCache   services.URLCacheServiceProvider
}

func (controller *ProcessedImagesController) Routes(g *echo.Group) {
	g.GET("", controller.ListProcessedImages)
	g.POST("", controller.UploadProcessedImage)
	g.GET("/stats", controller.ProcessingStats)
	g.GET("/:id", controller.GetProcessedImage)
	g.PUT("/:id", controller.UpdateProcessedImage)
	g.PATCH("/:id", controller.UpdateProcessedImage)
	g.DELETE("/:id", controller.DeleteProcessedImage)
	g.POST("/:id/reprocess", controller.ReprocessImage)
}

var processedImageOrderings = []string{"created_at", "updated_at", "processed_at", "clothing_type", "status"}

// createUploadedImage validates the multipart upload, stores the original on R2
// and creates the pending row. Shared by the API and the upload page.
func createUploadedImage(c echo.Context, awsService services.AWSServiceProvider) (*models.ProcessedImage, int, string) {
	db, ok := c.Get("__db").(*gorm.DB)
	if !ok {
		return nil, http.StatusInternalServerError, "Database connection error"
	}

	clothingType := strings.TrimSpace(c.FormValue("clothing_type"))
	if clothingType == "" {
		clothingType = "other"
	}
	if !models.IsValidClothingType(clothingType) {
		return nil, http.StatusBadRequest, fmt.Sprintf("Unknown clothing type %q", clothingType)
	}

	fileHeader, err := c.FormFile("image")
	if err != nil {
		return nil, http.StatusBadRequest, "Please choose an image to upload"
	}
	if err := services.ValidateUploadFile(fileHeader.Filename, fileHeader.Size); err != nil {
		return nil, http.StatusBadRequest, err.Error()
	}

	src, err := fileHeader.Open()
	if err != nil {
		sentry.CaptureException(err)
		return nil, http.StatusInternalServerError, "Could not read uploaded file"
	}
	defer src.Close()
	fileContent, err := io.ReadAll(src)
	if err != nil {
		sentry.CaptureException(err)
		return nil, http.StatusInternalServerError, "Could not read uploaded file"
	}

	bucketName := services.GetEnv("R2_BUCKET_NAME", "")
	objectKey := fmt.Sprintf("originals/%v-%s", time.Now().UnixNano(), filepath.Base(fileHeader.Filename))
	uploadUrl, presignErr := awsService.PresignLink(context.Background(), bucketName, objectKey)
	if presignErr != nil {
		log.Printf("Unable to presign original upload for %s: %s", fileHeader.Filename, presignErr)
		sentry.CaptureException(presignErr)
		return nil, http.StatusInternalServerError, "Error while storing uploaded image"
	}
	_, statusCode, uploadErr := awsService.UploadToPresignedURL(context.Background(), bucketName, uploadUrl, fileContent)
	if uploadErr != nil || statusCode != 200 {
		log.Printf("Original upload failed for %s: code %v err %v", objectKey, statusCode, uploadErr)
		sentry.CaptureException(fmt.Errorf("original upload failed for %s: code %v err %v", objectKey, statusCode, uploadErr))
		return nil, http.StatusInternalServerError, "Error while storing uploaded image"
	}

	image := models.ProcessedImage{
		ClothingType:     clothingType,
		OriginalImageURL: objectKey,
		Status:           models.StatusPending,
	}
	if err := db.Create(&image).Error; err != nil {
		sentry.CaptureException(err)
		return nil, http.StatusInternalServerError, "Failed to save image, please try again"
	}

	if msg := enqueueImageProcessing(c, image.ID); msg != "" {
		return nil, http.StatusInternalServerError, msg
	}
	return &image, http.StatusCreated, ""
}

// enqueueImageProcessing submits the processing task when a queue client is
// wired into the context. Without one the row simply stays pending.
func enqueueImageProcessing(c echo.Context, imageID uint) string {
	asynqClient, ok := c.Get("__asynqclient").(*asynq.Client)
	if !ok || asynqClient == nil {
		log.Printf("[Image: %v] No queue client available, row left pending", imageID)
		return ""
	}
	task, err := tasks.NewImageProcessingTask(imageID)
	if err != nil {
		sentry.CaptureException(err)
		return "Sorry, could not start processing, please try again"
	}
	info, err := asynqClient.Enqueue(task, asynq.MaxRetry(3), asynq.Queue("process"))
	if err != nil {
		sentry.CaptureException(err)
		return "Sorry, could not start processing, please try again"
	}
	fmt.Println("[Queue] Image processing task submitted, Image ID: ", imageID, " Task ID: ", info.ID)
	return ""
}

func (controller *ProcessedImagesController) UploadProcessedImage(c echo.Context) error {
	image, status, msg := createUploadedImage(c, controller.AWSService)
	if msg != "" {
		return c.JSON(status, map[string]string{"error": msg})
	}
	responses := controller.populatePresignedImages(c.Request().Context(), []models.ProcessedImage{*image})
	return c.JSON(http.StatusCreated, responses[0])
}

func (controller *ProcessedImagesController) ListProcessedImages(c echo.Context) error {
	db, ok := c.Get("__db").(*gorm.DB)
	if !ok {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Database connection error"})
	}

	query := db.Model(&models.ProcessedImage{})
	if status := c.QueryParam("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if clothingType := c.QueryParam("clothing_type"); clothingType != "" {
		query = query.Where("clothing_type = ?", clothingType)
	}
	if boolQueryParam(c, "completed_only") {
		query = query.Where("status = ?", models.StatusCompleted)
	}
	if search := c.QueryParam("search"); search != "" {
		pattern := "%" + search + "%"
		query = query.Where("clothing_type ILIKE ? OR analysis_result ILIKE ?", pattern, pattern)
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to fetch images"})
	}

	query = applyOrdering(query, c.QueryParam("ordering"), processedImageOrderings)
	query, page := applyPagination(query, c)

	var images []models.ProcessedImage
	if err := query.Find(&images).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to fetch images"})
	}

	return c.JSON(http.StatusOK, ProcessedImageListResponse{
		Count:   int(count),
		Page:    page,
		Results: controller.populatePresignedImages(c.Request().Context(), images),
	})
}

func (controller *ProcessedImagesController) GetProcessedImage(c echo.Context) error {
	db, ok := c.Get("__db").(*gorm.DB)
	if !ok {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Database connection error"})
	}
	var image models.ProcessedImage
	if err := db.First(&image, "id = ?", c.Param("id")).Error; err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Image not found"})
	}
	responses := controller.populatePresignedImages(c.Request().Context(), []models.ProcessedImage{image})
	return c.JSON(http.StatusOK, responses[0])
}

func (controller *ProcessedImagesController) UpdateProcessedImage(c echo.Context) error {
	var req UpdateProcessedImageIn
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
	var image models.ProcessedImage
	if err := db.First(&image, "id = ?", c.Param("id")).Error; err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Image not found"})
	}
	if req.ClothingType != nil {
		image.ClothingType = *req.ClothingType
	}
	if err := db.Save(&image).Error; err != nil {
		sentry.CaptureException(err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to update image"})
	}
	responses := controller.populatePresignedImages(c.Request().Context(), []models.ProcessedImage{image})
	return c.JSON(http.StatusOK, responses[0])
}

func (controller *ProcessedImagesController) DeleteProcessedImage(c echo.Context) error {
	db, ok := c.Get("__db").(*gorm.DB)
	if !ok {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Database connection error"})
	}
	var image models.ProcessedImage
	if err := db.First(&image, "id = ?", c.Param("id")).Error; err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Image not found"})
	}
	if err := db.Delete(&image).Error; err != nil {
		sentry.CaptureException(err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to delete image"})
	}
	return c.NoContent(http.StatusNoContent)
}

func (controller *ProcessedImagesController) ReprocessImage(c echo.Context) error {
	db, ok := c.Get("__db").(*gorm.DB)
	if !ok {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Database connection error"})
	}
	var image models.ProcessedImage
	if err := db.First(&image, "id = ?", c.Param("id")).Error; err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Image not found"})
	}
	if err := image.TransitionTo(models.StatusPending); err != nil {
		return c.JSON(http.StatusConflict, map[string]string{"error": err.Error()})
	}
	if err := db.Save(&image).Error; err != nil {
		sentry.CaptureException(err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to reset image"})
	}
	if msg := enqueueImageProcessing(c, image.ID); msg != "" {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": msg})
	}
	responses := controller.populatePresignedImages(c.Request().Context(), []models.ProcessedImage{image})
	return c.JSON(http.StatusOK, responses[0])
}

func (controller *ProcessedImagesController) ProcessingStats(c echo.Context) error {
	db, ok := c.Get("__db").(*gorm.DB)
	if !ok {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Database connection error"})
	}

	var statusCounts []struct {
		Status string
		Count  int64
	}
	if err := db.Model(&models.ProcessedImage{}).Select("status, count(*) as count").Group("status").Scan(&statusCounts).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to fetch stats"})
	}
	var typeCounts []struct {
		ClothingType string
		Count        int64
	}
	if err := db.Model(&models.ProcessedImage{}).Select("clothing_type, count(*) as count").Group("clothing_type").Scan(&typeCounts).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to fetch stats"})
	}

	stats := models.ProcessedImageStatsOut{ByType: map[string]int64{}}
	for _, row := range statusCounts {
		stats.Total += row.Count
		switch models.ProcessingStatus(row.Status) {
		case models.StatusCompleted:
			stats.Completed = row.Count
		case models.StatusFailed:
			stats.Failed = row.Count
		case models.StatusPending:
			stats.Pending = row.Count
		case models.StatusProcessing:
			stats.Processing = row.Count
		}
	}
	if stats.Total > 0 {
		stats.SuccessRate = float64(stats.Completed) / float64(stats.Total) * 100
	}
	for _, row := range typeCounts {
		stats.ByType[row.ClothingType] = row.Count
	}
	if inspector, ok := c.Get("__asynqinspector").(*asynq.Inspector); ok && inspector != nil {
		if queueInfo, err := inspector.GetQueueInfo("process"); err == nil {
			stats.QueueDepth = int64(queueInfo.Pending + queueInfo.Active)
		}
	}
	return c.JSON(http.StatusOK, stats)
}

// populatePresignedImages enriches rows with presigned read URLs concurrently,
// falling back to a direct R2 presign when the cache layer fails.
func (controller *ProcessedImagesController) populatePresignedImages(ctx context.Context, images []models.ProcessedImage) []ProcessedImageResponse {
	if len(images) == 0 {
		return []ProcessedImageResponse{}
	}

	var wg sync.WaitGroup
	responses := make([]ProcessedImageResponse, len(images))
	bucketName := services.GetEnv("R2_BUCKET_NAME", "")

	for i, imageRow := range images {
		wg.Add(1)
		go func(index int, item models.ProcessedImage) {
			defer wg.Done()

			resp := ProcessedImageResponse{
				ID:             item.ID,
				ClothingType:   item.ClothingType,
				Status:         string(item.Status),
				AnalysisResult: item.AnalysisResult,
				ErrorMessage:   item.ErrorMessage,
				CreatedAt:      item.CreatedAt.Format("2006-01-02T15:04:05Z"),
				UpdatedAt:      item.UpdatedAt.Format("2006-01-02T15:04:05Z"),
			}
			if item.ProcessedAt != nil {
				resp.ProcessedAt = services.StrPointer(item.ProcessedAt.Format("2006-01-02T15:04:05Z"))
			}
			resp.OriginalImageURL = controller.readURL(ctx, bucketName, item.OriginalImageURL)
			if item.ProcessedImageURL != nil && *item.ProcessedImageURL != "" {
				url := controller.readURL(ctx, bucketName, *item.ProcessedImageURL)
				resp.ProcessedImageURL = &url
			}
			responses[index] = resp
		}(i, imageRow)
	}

	wg.Wait()
	return responses
}

func (controller *ProcessedImagesController) readURL(ctx context.Context, bucketName, objectKey string) string {
	if objectKey == "" {
		return ""
	}
	url, err := controller.URLCache.GetReadURL(ctx, objectKey)
	if err == nil {
		return url
	}
	log.Printf("CACHE WARNING: Cache system failed for key '%s': %v. Triggering manual R2 fallback.", objectKey, err)
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("failure_type", "cache_system")
		scope.SetExtra("objectKey", objectKey)
		sentry.CaptureException(err)
	})
	fallbackUrl, fallbackErr := controller.AWSService.GetPresignedR2FileReadURL(ctx, bucketName, objectKey)
	if fallbackErr != nil {
		log.Printf("CRITICAL: Manual R2 fallback also failed for key '%s': %v", objectKey, fallbackErr)
		sentry.CaptureException(fallbackErr)
		return ""
	}
	return fallbackUrl
}
