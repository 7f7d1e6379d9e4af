package controllers

import (
	"embed"
	"io"
	"net/http"
	"text/template"

	"wardrobeapi/models"
	"wardrobeapi/services"

	"github.com/go-playground/validator"
	"github.com/hibiken/asynq"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"gorm.io/gorm"
)

type CustomValidator struct {
	validator *validator.Validate
}

func (cv *CustomValidator) Validate(i interface{}) error {
	if err := cv.validator.Struct(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

type Template struct {
	templates *template.Template
}

func (t *Template) Render(w io.Writer, name string, data interface{}, c echo.Context) error {
	return t.templates.ExecuteTemplate(w, name, data)
}

//go:embed templates
var embededFiles embed.FS

func SetupServer(
	db *gorm.DB,
	awsService services.AWSServiceProvider,
	asynqClient *asynq.Client,
	asynqInspector *asynq.Inspector,
	urlCache services.URLCacheServiceProvider,
) *echo.Echo {

	e := echo.New()
	templates, err := template.ParseFS(embededFiles, "templates/*.html")
	if err != nil {
		panic(err)
	}

	e.Renderer = &Template{
		templates: templates,
	}
	v := validator.New()
	v.RegisterValidation("clothingtype", models.ValidateClothingType)
	v.RegisterValidation("category", models.ValidateWardrobeCategory)
	v.RegisterValidation("occasion", models.ValidateOccasion)
	v.RegisterValidation("season", models.ValidateSeason)
	e.Validator = &CustomValidator{validator: v}
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set("__db", db)
			c.Set("__asynqclient", asynqClient)
			c.Set("__asynqinspector", asynqInspector)
			return next(c)
		}
	})

	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
	}))

	imagesController := ProcessedImagesController{AWSService: awsService, URLCache: urlCache}
	imagesController.Routes(e.Group("/api/processed-images"))

	wardrobeController := WardrobeController{URLCache: urlCache}
	wardrobeController.Routes(e.Group("/api/wardrobe-items"))

	outfitsController := OutfitsController{}
	outfitsController.Routes(e.Group("/api/outfit-recommendations"))

	outfitItemsController := OutfitItemsController{}
	outfitItemsController.Routes(e.Group("/api/outfit-items"))

	pagesController := PagesController{AWSService: awsService, URLCache: urlCache}
	pagesController.Routes(e)

	return e
}
