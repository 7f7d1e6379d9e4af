package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"wardrobeapi/models"
	"wardrobeapi/services"

	"github.com/getsentry/sentry-go"
	"github.com/hibiken/asynq"
	"github.com/lib/pq"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gorm.io/gorm"
)

const (
	TypeImageProcess   = "process:image"
	TypeOutfitGenerate = "process:outfits"
	TypeStaleSweep     = "process:stale_sweep"
)

type ImageProcessingPayload struct {
	ImageID uint `json:"image_id"`
}

type OutfitGenerationPayload struct {
	Occasion string `json:"occasion"`
	Season   string `json:"season"`
}

func NewImageProcessingTask(imageID uint) (*asynq.Task, error) {
	payload, err := json.Marshal(ImageProcessingPayload{ImageID: imageID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeImageProcess, payload), nil
}

func NewOutfitGenerationTask(occasion string, season string) (*asynq.Task, error) {
	payload, err := json.Marshal(OutfitGenerationPayload{Occasion: occasion, Season: season})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeOutfitGenerate, payload), nil
}

func NewStaleSweepTask() *asynq.Task {
	return asynq.NewTask(TypeStaleSweep, []byte{})
}

func cleanAIResponseText(text string) string {
	cleanContent := strings.ReplaceAll(text, "```json", "")
	cleanContent = strings.TrimSuffix(strings.TrimSpace(cleanContent), "```")
	return strings.TrimSpace(cleanContent)
}

func getOriginalImageFile(awsService services.AWSServiceProvider, image models.ProcessedImage) ([]byte, string, error) {
	bucketName := os.Getenv("R2_BUCKET_NAME")
	fmt.Printf("[Image: %v] Request presigned download url for %s\n", image.ID, image.OriginalImageURL)
	if image.OriginalImageURL == "" {
		return nil, "", fmt.Errorf("[Image: %v] original image URL is empty", image.ID)
	}
	fileUrl, err := awsService.GetPresignedR2FileReadURL(context.TODO(), bucketName, image.OriginalImageURL)
	fileName := filepath.Base(image.OriginalImageURL)
	if err != nil {
		sentry.CaptureException(fmt.Errorf("[Image: %v] Error on getting presigned URL for file %s", image.ID, image.OriginalImageURL))
		return nil, fileName, err
	}
	fileBytes, err := services.ReadFileFromUrl(fileUrl)
	if err != nil {
		sentry.CaptureException(fmt.Errorf("[Image: %v] Error on downloading file %s: %v", image.ID, image.OriginalImageURL, err))
		return nil, fileName, err
	}

	return fileBytes, fileName, nil
}

// saveImageProcessingFail records the failure on the row. The orchestrator
// does not auto-retry, so every failure here is terminal until a manual
// reprocess.
func saveImageProcessingFail(db *gorm.DB, image *models.ProcessedImage, msg string) error {
	image.ProcessRetryTimes = image.ProcessRetryTimes + 1
	if err := image.TransitionTo(models.StatusFailed); err != nil {
		sentry.CaptureException(fmt.Errorf("[Image: %v] %v", image.ID, err))
		return err
	}
	image.ErrorMessage = &msg
	tx := db.Save(image)
	if tx.Error != nil {
		sentry.CaptureException(fmt.Errorf("[Image: %v] Error on saving failed status", image.ID))
		return tx.Error
	}
	return nil
}

// HandleProcessImageTask drives one upload through analysis, generation and
// persistence. Analysis failure stops the run before generation; a failure
// in either step lands in error_message rather than bubbling to the queue,
// since reprocess is the only re-entry point.
func HandleProcessImageTask(
	ctx context.Context, t *asynq.Task, db *gorm.DB,
	llm services.LLMStyleProcessor, awsService services.AWSServiceProvider) error {
	googleKey := os.Getenv("GOOGLE_API_KEY")
	if googleKey == "" {
		sentry.CaptureException(fmt.Errorf("[QUEUE] %s Google API key is not set", string(t.Payload())))
		return fmt.Errorf("[QUEUE] %s Google API key is not set", string(t.Payload()))
	}
	var payload ImageProcessingPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return err
	}
	fmt.Printf("[Image: %v] Start Processing\n", payload.ImageID)
	var image models.ProcessedImage
	res := db.First(&image, payload.ImageID)
	if res.Error != nil {
		sentry.CaptureException(fmt.Errorf("[QUEUE] Error on retrieving image for processing %v", payload.ImageID))
		return res.Error
	}

	if err := image.TransitionTo(models.StatusProcessing); err != nil {
		sentry.CaptureException(fmt.Errorf("[Image: %v] %v", payload.ImageID, err))
		return err
	}
	if err := db.Save(&image).Error; err != nil {
		sentry.CaptureException(err)
		return err
	}

	fileBytes, fileName, err := getOriginalImageFile(awsService, image)
	if err != nil {
		saveImageProcessingFail(db, &image, "Failed to read the uploaded image, please try uploading again")
		return nil
	}
	fmt.Printf("[Image: %v] Downloaded file size: %d bytes\n", payload.ImageID, len(fileBytes))

	filePath, err := services.CreateTempFile(fileBytes, fileName)
	if err != nil {
		sentry.CaptureException(fmt.Errorf("[Image: %v] Error on creating temp file %s: %v", payload.ImageID, fileName, err))
		saveImageProcessingFail(db, &image, "Failed to prepare the uploaded image for processing")
		return nil
	}
	defer os.Remove(filePath)

	// Step 1: analysis. Nothing past this line runs if it fails.
	fmt.Printf("[Image: %v] Analyzing %s..\n", payload.ImageID, image.ClothingType)
	model := services.Flash25
	modelString := model.String()
	analysisResponse, err := llm.AnalyzeGarment(filePath, image.ClothingType, model)
	if err != nil {
		fmt.Printf("[Image: %v] Error on analyzing image: %v\n", payload.ImageID, err)
		sentry.CaptureException(fmt.Errorf("[Image: %v] Error on analyzing image %s: %v", payload.ImageID, image.OriginalImageURL, err))
		saveImageProcessingFail(db, &image, fmt.Sprintf("Image analysis failed: %v", err))
		return nil
	}
	if analysisResponse == nil {
		sentry.CaptureException(fmt.Errorf("[Image: %v] Analysis response is nil but no error provided %s", payload.ImageID, image.OriginalImageURL))
		saveImageProcessingFail(db, &image, "Image analysis returned no result, please try again")
		return nil
	}
	analysisText := cleanAIResponseText(analysisResponse.Response)
	fmt.Printf("[Image: %v] LLM Analyzed: %q, IT: %d, OT: %d, TT: %d, TOT: %d\n", payload.ImageID, analysisText,
		analysisResponse.InputTokenCount, analysisResponse.OutputTokenCount, analysisResponse.ThoughtsTokenCount, analysisResponse.TotalTokenCount)

	image.AnalysisResult = &analysisText
	image.LLMModel = &modelString
	image.LLMInputTokenCount = &analysisResponse.InputTokenCount
	image.LLMOutputTokenCount = &analysisResponse.OutputTokenCount
	image.LLMThoughtsTokenCount = &analysisResponse.ThoughtsTokenCount
	image.LLMTotalTokenCount = &analysisResponse.TotalTokenCount
	image.RemoteResponseID = services.StrPointer(analysisResponse.ResponseID)
	if err := db.Save(&image).Error; err != nil {
		sentry.CaptureException(fmt.Errorf("[Image: %v] Error on saving analysis %v", payload.ImageID, err))
		return err
	}

	// Step 2: generation. The analysis stays on the row even if this fails.
	prompt := services.ProductPhotoPrompt(image.ClothingType)
	image.ProcessingPrompt = &prompt
	fmt.Printf("[Image: %v] Generating product photo..\n", payload.ImageID)
	generationResponse, err := llm.GenerateProductPhoto(filePath, image.ClothingType, services.Flash25Image)
	if err != nil {
		fmt.Printf("[Image: %v] Error on generating product photo: %v\n", payload.ImageID, err)
		sentry.CaptureException(fmt.Errorf("[Image: %v] Error on generating product photo %s: %v", payload.ImageID, image.OriginalImageURL, err))
		saveImageProcessingFail(db, &image, fmt.Sprintf("Image generation failed: %v", err))
		return nil
	}
	if generationResponse == nil || len(generationResponse.Images) == 0 {
		fmt.Printf("[Image: %v] Generation returned no images, text: %q\n", payload.ImageID, safeResponseText(generationResponse))
		sentry.CaptureException(fmt.Errorf("[Image: %v] Generation returned no images %s", payload.ImageID, image.OriginalImageURL))
		saveImageProcessingFail(db, &image, "Image generation returned no picture, please try again")
		return nil
	}

	processedBytes := generationResponse.Images[0]
	normalized, err := services.NormalizeProductBackground(processedBytes, 230, 250, 0.6)
	if err != nil {
		// keep the raw model output, normalization is cosmetic
		fmt.Printf("[Image: %v] Background normalization failed: %v\n", payload.ImageID, err)
		sentry.CaptureException(fmt.Errorf("[Image: %v] Background normalization failed: %v", payload.ImageID, err))
	} else {
		processedBytes = normalized
	}

	bucketName := services.GetEnv("R2_BUCKET_NAME", "")
	processedKey := fmt.Sprintf("processed/image-%v.png", image.ID)
	uploadUrl, presignErr := awsService.PresignLink(context.Background(), bucketName, processedKey)
	if presignErr != nil {
		fmt.Printf("[Image: %v] Unable to create presign link for %s: %v\n", image.ID, processedKey, presignErr)
		sentry.CaptureException(presignErr)
		saveImageProcessingFail(db, &image, "Failed to store the processed image, please try again")
		return nil
	}
	respBody, statusCode, err := awsService.UploadToPresignedURL(context.Background(), bucketName, uploadUrl, processedBytes)
	fmt.Printf("[Image: %v] R2 Upload file size %v, response body: %s, status code: %d\n", payload.ImageID, len(processedBytes), respBody, statusCode)
	if err != nil || statusCode != 200 {
		fmt.Printf("[Image: %v] Error on uploading processed image %s: %v\n", payload.ImageID, processedKey, err)
		sentry.CaptureException(fmt.Errorf("[Image: %v] Error on uploading processed image %s: %v", payload.ImageID, processedKey, err))
		saveImageProcessingFail(db, &image, "Failed to store the processed image, please try again")
		return nil
	}

	image.ProcessedImageURL = &processedKey
	if err := image.TransitionTo(models.StatusCompleted); err != nil {
		sentry.CaptureException(fmt.Errorf("[Image: %v] %v", payload.ImageID, err))
		return err
	}
	tx := db.Save(&image)
	if tx.Error != nil {
		sentry.CaptureException(fmt.Errorf("[QUEUE] Error on saving image %v", payload.ImageID))
		return tx.Error
	}
	fmt.Printf("[Image: %v] Processing finished succesfully..\n", payload.ImageID)

	// Step 3: derived wardrobe record, best-effort. A parse failure here
	// substitutes defaults and never reverts the completed row.
	if err := createWardrobeItemFromAnalysis(db, image, analysisText); err != nil {
		fmt.Printf("[Image: %v] Error on creating wardrobe item: %v\n", payload.ImageID, err)
		sentry.CaptureException(fmt.Errorf("[Image: %v] Error on creating wardrobe item: %v", payload.ImageID, err))
	}

	return nil
}

func safeResponseText(response *services.LLMResponse) string {
	if response == nil {
		return ""
	}
	return response.Response
}

var titleCaser = cases.Title(language.English)

func fallbackWardrobeItem(image models.ProcessedImage) models.WardrobeItem {
	return models.WardrobeItem{
		ProcessedImageID: &image.ID,
		Name:             fmt.Sprintf("%s %s", titleCaser.String(image.ClothingType), time.Now().UTC().Format("Jan 2 15:04")),
		Category:         models.CategoryForClothingType(image.ClothingType),
		Color:            "other",
		Occasion:         "casual",
		Season:           "all",
	}
}

func createWardrobeItemFromAnalysis(db *gorm.DB, image models.ProcessedImage, analysisText string) error {
	var analysis services.GarmentAnalysis
	if err := json.Unmarshal([]byte(analysisText), &analysis); err != nil {
		fmt.Printf("[Image: %v] Analysis is not structured JSON, creating fallback item\n", image.ID)
		item := fallbackWardrobeItem(image)
		return db.Create(&item).Error
	}

	category := models.CategoryForClothingType(image.ClothingType)
	// the model's own type wins only when it agrees with the user's label
	if analysis.Type != "" && models.CategoryForClothingType(analysis.Type) == category {
		category = models.CategoryForClothingType(analysis.Type)
	}

	color := analysis.Color
	if !slices.Contains(models.WardrobeColors, color) {
		color = "other"
	}
	occasion := analysis.Occasion
	if !slices.Contains(models.Occasions, occasion) {
		occasion = "casual"
	}
	season := analysis.Season
	if !slices.Contains(models.Seasons, season) {
		season = "all"
	}

	item := models.WardrobeItem{
		ProcessedImageID: &image.ID,
		Name:             fmt.Sprintf("%s %s", titleCaser.String(color), titleCaser.String(image.ClothingType)),
		Category:         category,
		Color:            color,
		Material:         services.StrPointer(analysis.Material),
		Occasion:         occasion,
		Season:           season,
		StyleDescription: services.StrPointer(analysis.Style),
		ColorPalette:     pq.StringArray{color},
	}
	if analysis.Pattern != "" && analysis.Pattern != "solid" {
		item.StyleTags = pq.StringArray{analysis.Pattern}
	}
	return db.Create(&item).Error
}

type inventoryItem struct {
	ID       uint   `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category"`
	Color    string `json:"color"`
	Occasion string `json:"occasion"`
	Season   string `json:"season"`
}

// HandleOutfitGenerationTask feeds the wardrobe inventory to the stylist
// model and persists the suggested outfits with their item links.
func HandleOutfitGenerationTask(ctx context.Context, t *asynq.Task, db *gorm.DB, llm services.LLMStyleProcessor) error {
	var payload OutfitGenerationPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return err
	}
	fmt.Printf("[Outfits] Start generation for occasion %q season %q\n", payload.Occasion, payload.Season)

	var items []models.WardrobeItem
	query := db.Model(&models.WardrobeItem{})
	if payload.Season != "" && payload.Season != "all" {
		query = query.Where("season IN ?", []string{payload.Season, "all"})
	}
	if err := query.Find(&items).Error; err != nil {
		sentry.CaptureException(fmt.Errorf("[Outfits] Error fetching wardrobe items: %v", err))
		return err
	}
	if len(items) < 2 {
		fmt.Printf("[Outfits] Not enough wardrobe items (%d), skipping\n", len(items))
		return nil
	}

	knownIDs := map[uint]bool{}
	inventory := make([]inventoryItem, 0, len(items))
	for _, item := range items {
		knownIDs[item.ID] = true
		inventory = append(inventory, inventoryItem{
			ID:       item.ID,
			Name:     item.Name,
			Category: item.Category,
			Color:    item.Color,
			Occasion: item.Occasion,
			Season:   item.Season,
		})
	}
	inventoryJSON, err := json.Marshal(inventory)
	if err != nil {
		sentry.CaptureException(err)
		return err
	}

	model := services.Flash25
	modelString := model.String()
	response, err := llm.GenerateOutfits(string(inventoryJSON), payload.Occasion, payload.Season, model)
	if err != nil {
		sentry.CaptureException(fmt.Errorf("[Outfits] Error on generating outfits: %v", err))
		return err
	}
	cleanContent := cleanAIResponseText(response.Response)
	var parsed services.OutfitIdeasResponse
	if err := json.Unmarshal([]byte(cleanContent), &parsed); err != nil {
		fmt.Printf("[Outfits] Error on parsing Gemini %s AI json %s\n", modelString, response.Response)
		sentry.CaptureException(fmt.Errorf("[Outfits] Error on parsing Gemini %s AI json %s", modelString, response.Response))
		return err
	}

	created := 0
	for _, idea := range parsed.Outfits {
		if idea.Name == "" || len(idea.Items) == 0 {
			continue
		}
		season := idea.Season
		if !slices.Contains(models.Seasons, season) {
			season = "all"
		}
		occasion := idea.Occasion
		if !slices.Contains(models.Occasions, occasion) {
			occasion = payload.Occasion
		}
		recommendation := models.OutfitRecommendation{
			Name:               idea.Name,
			Occasion:           occasion,
			Season:             season,
			StyleDescription:   services.StrPointer(idea.StyleDescription),
			ColorScheme:        services.StrPointer(idea.ColorScheme),
			ConfidenceScore:    clampScore(idea.ConfidenceScore),
			LLMModel:           &modelString,
			LLMTotalTokenCount: &response.TotalTokenCount,
		}
		if err := db.Create(&recommendation).Error; err != nil {
			sentry.CaptureException(fmt.Errorf("[Outfits] Error on saving recommendation %q: %v", idea.Name, err))
			continue
		}
		for _, ideaItem := range idea.Items {
			if !knownIDs[ideaItem.WardrobeItemID] {
				fmt.Printf("[Outfits] Model referenced unknown wardrobe item %v, skipping\n", ideaItem.WardrobeItemID)
				continue
			}
			outfitItem := models.OutfitItem{
				OutfitRecommendationID: recommendation.ID,
				WardrobeItemID:         ideaItem.WardrobeItemID,
				Category:               ideaItem.Category,
				MatchScore:             clampScore(ideaItem.MatchScore),
				StyleNotes:             services.StrPointer(ideaItem.StyleNotes),
			}
			if err := db.Create(&outfitItem).Error; err != nil {
				sentry.CaptureException(fmt.Errorf("[Outfits] Error on saving outfit item: %v", err))
			}
		}
		created++
	}
	fmt.Printf("[Outfits] Generation finished, created %d recommendations\n", created)
	return nil
}

func clampScore(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// HandleStaleSweepTask fails rows stuck in processing, usually after a
// worker crash mid-run. Runs on the scheduler.
func HandleStaleSweepTask(ctx context.Context, t *asynq.Task, db *gorm.DB) error {
	cutoff := time.Now().UTC().Add(-30 * time.Minute)
	var stale []models.ProcessedImage
	if err := db.Where("status = ? AND updated_at < ?", models.StatusProcessing, cutoff).Find(&stale).Error; err != nil {
		sentry.CaptureException(fmt.Errorf("[Sweep] Error fetching stale rows: %v", err))
		return err
	}
	for i := range stale {
		fmt.Printf("[Sweep] Image %v stuck in processing since %v, marking failed\n", stale[i].ID, stale[i].UpdatedAt)
		saveImageProcessingFail(db, &stale[i], "Processing timed out, please reprocess the image")
	}
	return nil
}
