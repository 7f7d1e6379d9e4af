package controllers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"wardrobeapi/dbhelper"
	"wardrobeapi/models"
	"wardrobeapi/test"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateWardrobeItemOk(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := SetupServer(db, &test.AWSProviderMock{}, nil, nil, &test.URLCacheMock{})

	image := test.FakeProcessedImage(db, "tshirt", models.StatusCompleted)
	reqBody := CreateWardrobeItemIn{
		ProcessedImageID: UintPointer(image.ID),
		Name:             "Blue Tee",
		Category:         "top",
		Color:            "blue",
		Occasion:         "casual",
		Season:           "all",
		StyleTags:        []string{"minimal"},
	}
	req := test.NewJSONRequest("POST", "/api/wardrobe-items", reqBody)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var response WardrobeItemResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, "Blue Tee", response.Name)
	assert.Equal(t, "top", response.Category)
	require.NotNil(t, response.ProcessedImageID)
	assert.Equal(t, image.ID, *response.ProcessedImageID)
	assert.NotNil(t, response.ImageURL)
}

func TestCreateWardrobeItemRejectsBadCategory(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := SetupServer(db, &test.AWSProviderMock{}, nil, nil, &test.URLCacheMock{})

	reqBody := CreateWardrobeItemIn{
		Name:     "Blue Tee",
		Category: "headwear",
		Color:    "blue",
		Occasion: "casual",
		Season:   "all",
	}
	req := test.NewJSONRequest("POST", "/api/wardrobe-items", reqBody)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var count int64
	db.Model(&models.WardrobeItem{}).Count(&count)
	assert.Equal(t, int64(0), count)
}

func TestListWardrobeItemsFilters(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := SetupServer(db, &test.AWSProviderMock{}, nil, nil, &test.URLCacheMock{})

	test.FakeWardrobeItem(db, "Blue Tee", "top", "casual", "all")
	test.FakeWardrobeItem(db, "Wool Coat", "outerwear", "business", "winter")
	test.FakeWardrobeItem(db, "Linen Shorts", "bottom", "casual", "summer")

	req := test.NewJSONRequest("GET", "/api/wardrobe-items?category=top", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var listResponse WardrobeItemListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listResponse))
	assert.Equal(t, 1, listResponse.Count)

	// season filter keeps all-season items
	req = test.NewJSONRequest("GET", "/api/wardrobe-items?season=summer", nil)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listResponse))
	assert.Equal(t, 2, listResponse.Count)

	req = test.NewJSONRequest("GET", "/api/wardrobe-items?search=coat", nil)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listResponse))
	assert.Equal(t, 1, listResponse.Count)
	require.Len(t, listResponse.Results, 1)
	assert.Equal(t, "Wool Coat", listResponse.Results[0].Name)
}

func TestToggleFavoriteFlips(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := SetupServer(db, &test.AWSProviderMock{}, nil, nil, &test.URLCacheMock{})

	item := test.FakeWardrobeItem(db, "Blue Tee", "top", "casual", "all")

	req := test.NewJSONRequest("POST", fmt.Sprintf("/api/wardrobe-items/%v/toggle_favorite", item.ID), nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var saved models.WardrobeItem
	db.First(&saved, item.ID)
	assert.True(t, saved.IsFavorite)

	req = test.NewJSONRequest("POST", fmt.Sprintf("/api/wardrobe-items/%v/toggle_favorite", item.ID), nil)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	db.First(&saved, item.ID)
	assert.False(t, saved.IsFavorite)
}

func TestMarkWornIncrements(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := SetupServer(db, &test.AWSProviderMock{}, nil, nil, &test.URLCacheMock{})

	item := test.FakeWardrobeItem(db, "Blue Tee", "top", "casual", "all")
	for i := 0; i < 2; i++ {
		req := test.NewJSONRequest("POST", fmt.Sprintf("/api/wardrobe-items/%v/mark_worn", item.ID), nil)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	var saved models.WardrobeItem
	db.First(&saved, item.ID)
	assert.Equal(t, 2, saved.WearCount)
	assert.NotNil(t, saved.LastWorn)
}

func TestWardrobeCategoriesCounts(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := SetupServer(db, &test.AWSProviderMock{}, nil, nil, &test.URLCacheMock{})

	test.FakeWardrobeItem(db, "Blue Tee", "top", "casual", "all")
	test.FakeWardrobeItem(db, "White Shirt", "top", "business", "all")
	test.FakeWardrobeItem(db, "Linen Shorts", "bottom", "casual", "summer")

	req := test.NewJSONRequest("GET", "/api/wardrobe-items/categories", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var rows []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rows))
	assert.Len(t, rows, len(models.WardrobeCategories))
	counts := map[string]float64{}
	for _, row := range rows {
		counts[row["category"].(string)] = row["count"].(float64)
	}
	assert.Equal(t, float64(2), counts["top"])
	assert.Equal(t, float64(1), counts["bottom"])
	assert.Equal(t, float64(0), counts["shoes"])
}

func TestWardrobeColors(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := SetupServer(db, &test.AWSProviderMock{}, nil, nil, &test.URLCacheMock{})

	test.FakeWardrobeItem(db, "Blue Tee", "top", "casual", "all")
	test.FakeWardrobeItem(db, "Blue Shirt", "top", "business", "all")

	req := test.NewJSONRequest("GET", "/api/wardrobe-items/colors", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var rows []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "blue", rows[0]["color"])
	assert.Equal(t, float64(2), rows[0]["count"])
}

func TestUpdateWardrobeItem(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := SetupServer(db, &test.AWSProviderMock{}, nil, nil, &test.URLCacheMock{})

	item := test.FakeWardrobeItem(db, "Blue Tee", "top", "casual", "all")
	reqBody := UpdateWardrobeItemIn{
		Name:     stringPtr("Navy Tee"),
		Occasion: stringPtr("weekend"),
	}
	req := test.NewJSONRequest("PATCH", fmt.Sprintf("/api/wardrobe-items/%v", item.ID), reqBody)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var saved models.WardrobeItem
	db.First(&saved, item.ID)
	assert.Equal(t, "Navy Tee", saved.Name)
	assert.Equal(t, "weekend", saved.Occasion)
	assert.Equal(t, "top", saved.Category)
}

func TestDeleteWardrobeItem(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := SetupServer(db, &test.AWSProviderMock{}, nil, nil, &test.URLCacheMock{})

	item := test.FakeWardrobeItem(db, "Blue Tee", "top", "casual", "all")
	req := test.NewJSONRequest("DELETE", fmt.Sprintf("/api/wardrobe-items/%v", item.ID), nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)

	var count int64
	db.Model(&models.WardrobeItem{}).Count(&count)
	assert.Equal(t, int64(0), count)
}
