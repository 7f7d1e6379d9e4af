package controllers

import (
	"net/http"

	"wardrobeapi/models"
	"wardrobeapi/services"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

type PagesController struct {
	AWSService services.AWSServiceProvider
	URLCache   services.URLCacheServiceProvider
}

func (controller *PagesController) Routes(e *echo.Echo) {
	e.GET("/", controller.UploadPage)
	e.POST("/", controller.UploadSubmit)
	e.GET("/result/:id", controller.ResultPage)
	e.GET("/gallery/", controller.GalleryPage)
	e.GET("/detail/:id", controller.DetailPage)
	e.GET("/api/status/:id", controller.ProcessingStatus)
}

type uploadPageData struct {
	ClothingTypes []string
	Error         string
}

func (controller *PagesController) UploadPage(c echo.Context) error {
	return c.Render(http.StatusOK, "upload.html", uploadPageData{ClothingTypes: models.ClothingTypes})
}

func (controller *PagesController) UploadSubmit(c echo.Context) error {
	image, status, msg := createUploadedImage(c, controller.AWSService)
	if msg != "" {
		return c.Render(status, "upload.html", uploadPageData{ClothingTypes: models.ClothingTypes, Error: msg})
	}
	return c.Redirect(http.StatusSeeOther, "/result/"+paramID(image.ID))
}

type resultPageData struct {
	Image        models.ProcessedImage
	OriginalURL  string
	ProcessedURL string
}

func (controller *PagesController) ResultPage(c echo.Context) error {
	db, ok := c.Get("__db").(*gorm.DB)
	if !ok {
		return c.String(http.StatusInternalServerError, "Database connection error")
	}
	var image models.ProcessedImage
	if err := db.First(&image, "id = ?", c.Param("id")).Error; err != nil {
		return c.String(http.StatusNotFound, "Image not found")
	}
	data := resultPageData{Image: image}
	if url, err := controller.URLCache.GetReadURL(c.Request().Context(), image.OriginalImageURL); err == nil {
		data.OriginalURL = url
	}
	if image.ProcessedImageURL != nil && *image.ProcessedImageURL != "" {
		if url, err := controller.URLCache.GetReadURL(c.Request().Context(), *image.ProcessedImageURL); err == nil {
			data.ProcessedURL = url
		}
	}
	return c.Render(http.StatusOK, "result.html", data)
}

type galleryEntry struct {
	Image models.ProcessedImage
	URL   string
}

type galleryPageData struct {
	Entries       []galleryEntry
	ClothingTypes []string
	ActiveType    string
}

func (controller *PagesController) GalleryPage(c echo.Context) error {
	db, ok := c.Get("__db").(*gorm.DB)
	if !ok {
		return c.String(http.StatusInternalServerError, "Database connection error")
	}
	query := db.Model(&models.ProcessedImage{}).Where("status = ?", models.StatusCompleted)
	activeType := c.QueryParam("clothing_type")
	if activeType != "" {
		query = query.Where("clothing_type = ?", activeType)
	}
	var images []models.ProcessedImage
	if err := query.Order("created_at desc").Limit(PageSize).Find(&images).Error; err != nil {
		return c.String(http.StatusInternalServerError, "Failed to fetch gallery")
	}
	data := galleryPageData{ClothingTypes: models.ClothingTypes, ActiveType: activeType, Entries: []galleryEntry{}}
	for _, image := range images {
		entry := galleryEntry{Image: image}
		objectKey := image.OriginalImageURL
		if image.ProcessedImageURL != nil && *image.ProcessedImageURL != "" {
			objectKey = *image.ProcessedImageURL
		}
		if url, err := controller.URLCache.GetReadURL(c.Request().Context(), objectKey); err == nil {
			entry.URL = url
		}
		data.Entries = append(data.Entries, entry)
	}
	return c.Render(http.StatusOK, "gallery.html", data)
}

func (controller *PagesController) DetailPage(c echo.Context) error {
	db, ok := c.Get("__db").(*gorm.DB)
	if !ok {
		return c.String(http.StatusInternalServerError, "Database connection error")
	}
	var image models.ProcessedImage
	if err := db.First(&image, "id = ?", c.Param("id")).Error; err != nil {
		return c.String(http.StatusNotFound, "Image not found")
	}
	data := resultPageData{Image: image}
	if url, err := controller.URLCache.GetReadURL(c.Request().Context(), image.OriginalImageURL); err == nil {
		data.OriginalURL = url
	}
	if image.ProcessedImageURL != nil && *image.ProcessedImageURL != "" {
		if url, err := controller.URLCache.GetReadURL(c.Request().Context(), *image.ProcessedImageURL); err == nil {
			data.ProcessedURL = url
		}
	}
	return c.Render(http.StatusOK, "detail.html", data)
}

// ProcessingStatus is the polling endpoint used by the result page.
func (controller *PagesController) ProcessingStatus(c echo.Context) error {
	db, ok := c.Get("__db").(*gorm.DB)
	if !ok {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Database connection error"})
	}
	var image models.ProcessedImage
	if err := db.First(&image, "id = ?", c.Param("id")).Error; err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Image not found"})
	}
	out := models.ProcessingStatusOut{
		Status:       string(image.Status),
		IsComplete:   image.Status.IsTerminal(),
		ErrorMessage: image.ErrorMessage,
	}
	if image.ProcessedImageURL != nil && *image.ProcessedImageURL != "" {
		if url, err := controller.URLCache.GetReadURL(c.Request().Context(), *image.ProcessedImageURL); err == nil {
			out.ProcessedImageURL = &url
		}
	}
	return c.JSON(http.StatusOK, out)
}
