package test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"wardrobeapi/models"
	"wardrobeapi/services"

	"github.com/lib/pq"
	"gorm.io/gorm"
)

func JsonString(model interface{}) string {
	bytes, _ := json.Marshal(model)
	return string(bytes)
}

func NewJSONRequest(method string, target string, param interface{}) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(JsonString(param)))
	req.Header.Add("Content-Type", "application/json")
	req.Header.Add("Accept", "application/json")
	return req
}

// NewMultipartImageRequest builds an upload request with the given file name
// and payload under the "image" form field.
func NewMultipartImageRequest(target string, fileName string, fileContent []byte, clothingType string) *http.Request {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, _ := writer.CreateFormFile("image", fileName)
	part.Write(fileContent)
	if clothingType != "" {
		writer.WriteField("clothing_type", clothingType)
	}
	writer.Close()
	req := httptest.NewRequest(http.MethodPost, target, body)
	req.Header.Add("Content-Type", writer.FormDataContentType())
	req.Header.Add("Accept", "application/json")
	return req
}

// FakePngBytes renders a small solid PNG, enough to pass decode paths.
func FakePngBytes() []byte {
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			img.Set(x, y, color.RGBA{R: 40, G: 40, B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	png.Encode(&buf, img)
	return buf.Bytes()
}

func NewRefString(data string) *string {
	return &data
}

func FakeProcessedImage(db *gorm.DB, clothingType string, status models.ProcessingStatus) *models.ProcessedImage {
	image := &models.ProcessedImage{
		ClothingType:     clothingType,
		OriginalImageURL: fmt.Sprintf("originals/test-%s.png", clothingType),
		Status:           status,
	}
	if status == models.StatusCompleted {
		now := time.Now().UTC()
		image.ProcessedAt = &now
		image.ProcessedImageURL = NewRefString(fmt.Sprintf("processed/image-%s.png", clothingType))
	}
	db.Create(&image)
	return image
}

func FakeWardrobeItem(db *gorm.DB, name string, category string, occasion string, season string) *models.WardrobeItem {
	item := &models.WardrobeItem{
		Name:         name,
		Category:     category,
		Color:        "blue",
		Occasion:     occasion,
		Season:       season,
		ColorPalette: pq.StringArray{"blue"},
	}
	db.Create(&item)
	return item
}

func FakeOutfit(db *gorm.DB, name string, occasion string, season string, confidence float64, items ...*models.WardrobeItem) *models.OutfitRecommendation {
	outfit := &models.OutfitRecommendation{
		Name:            name,
		Occasion:        occasion,
		Season:          season,
		ConfidenceScore: confidence,
	}
	db.Create(&outfit)
	for _, item := range items {
		outfitItem := &models.OutfitItem{
			OutfitRecommendationID: outfit.ID,
			WardrobeItemID:         item.ID,
			Category:               item.Category,
			MatchScore:             0.8,
		}
		db.Create(&outfitItem)
	}
	db.Preload("Items.WardrobeItem").First(outfit, outfit.ID)
	return outfit
}

type AWSProviderMock struct {
	MockUrl string
}

func (awsService AWSProviderMock) InitPresignClient(ctx context.Context) error {
	return nil
}

func (awsService AWSProviderMock) PresignLink(ctx context.Context, bucketName string, fileName string) (string, error) {
	return fmt.Sprintf("https://fakebucketurl.com/%s", fileName), nil
}

func (awsService AWSProviderMock) GetPresignedR2FileReadURL(ctx context.Context, bucketName, fileKey string) (string, error) {
	return awsService.MockUrl, nil
}

func (awsService AWSProviderMock) UploadToPresignedURL(ctx context.Context, bucketName, url string, fileContent []byte) (string, int, error) {
	return url, 200, nil
}

type URLCacheMock struct {
	MockUrl string
}

func (cache URLCacheMock) GetReadURL(ctx context.Context, objectKey string) (string, error) {
	if cache.MockUrl != "" {
		return cache.MockUrl, nil
	}
	return fmt.Sprintf("https://fakebucketurl.com/%s", objectKey), nil
}

// MockStyleProcessor answers with a well-formed analysis and one generated image.
type MockStyleProcessor struct {
	AnalyzeCalls  int
	GenerateCalls int
	OutfitCalls   int

	FailAnalyze  bool
	FailGenerate bool
	NoImages     bool
}

func (m *MockStyleProcessor) AnalyzeGarment(imagePath string, clothingType string, modelName services.LLMModelName) (*services.LLMResponse, error) {
	m.AnalyzeCalls++
	if m.FailAnalyze {
		return nil, fmt.Errorf("analysis model unavailable")
	}
	return &services.LLMResponse{
		Response: `{
			"type": "` + clothingType + `",
			"color": "blue",
			"style": "Casual everyday piece with a relaxed fit",
			"material": "cotton",
			"pattern": "solid",
			"occasion": "casual",
			"season": "all"
		}`,
		InputTokenCount:    10,
		TotalTokenCount:    11,
		ThoughtsTokenCount: 12,
		OutputTokenCount:   13,
		ResponseID:         "resp-analysis-1",
	}, nil
}

func (m *MockStyleProcessor) GenerateProductPhoto(imagePath string, clothingType string, modelName services.LLMModelName) (*services.LLMResponse, error) {
	m.GenerateCalls++
	if m.FailGenerate {
		return nil, fmt.Errorf("image model unavailable")
	}
	response := &services.LLMResponse{
		Response:         "Generated product photo",
		InputTokenCount:  10,
		TotalTokenCount:  11,
		OutputTokenCount: 13,
		ResponseID:       "resp-generate-1",
	}
	if !m.NoImages {
		response.Images = [][]byte{FakePngBytes()}
	}
	return response, nil
}

func (m *MockStyleProcessor) GenerateOutfits(inventoryJSON string, occasion string, season string, modelName services.LLMModelName) (*services.LLMResponse, error) {
	m.OutfitCalls++
	var inventory []struct {
		ID uint `json:"id"`
	}
	json.Unmarshal([]byte(inventoryJSON), &inventory)
	items := ""
	for i, entry := range inventory {
		if i > 0 {
			items += ","
		}
		items += fmt.Sprintf(`{"wardrobe_item_id": %d, "category": "top", "match_score": 0.9, "style_notes": "Works well"}`, entry.ID)
	}
	if occasion == "" {
		occasion = "casual"
	}
	if season == "" {
		season = "all"
	}
	return &services.LLMResponse{
		Response: fmt.Sprintf(`{
			"outfits": [
				{
					"name": "Weekend Layers",
					"occasion": "%s",
					"season": "%s",
					"style_description": "Easy layered look",
					"color_scheme": "blue and white",
					"confidence_score": 0.85,
					"items": [%s]
				}
			]
		}`, occasion, season, items),
		TotalTokenCount: 42,
		ResponseID:      "resp-outfits-1",
	}, nil
}
