package controllers

import (
	"bytes"
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

func TestUploadImageOk(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := SetupServer(db, &test.AWSProviderMock{}, nil, nil, &test.URLCacheMock{})

	req := test.NewMultipartImageRequest("/api/processed-images", "garment.png", test.FakePngBytes(), "tshirt")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, "Expected status code 201 Created, got %d: %s", rec.Code, rec.Body.String())

	var response ProcessedImageResponse
	err := json.Unmarshal(rec.Body.Bytes(), &response)
	require.NoError(t, err)
	assert.Equal(t, "tshirt", response.ClothingType)
	assert.Equal(t, string(models.StatusPending), response.Status)
	assert.NotEmpty(t, response.OriginalImageURL)

	var count int64
	db.Model(&models.ProcessedImage{}).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestUploadImageDefaultsClothingType(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := SetupServer(db, &test.AWSProviderMock{}, nil, nil, &test.URLCacheMock{})

	req := test.NewMultipartImageRequest("/api/processed-images", "garment.png", test.FakePngBytes(), "")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var response ProcessedImageResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, "other", response.ClothingType)
}

func TestUploadImageRejectsUnknownType(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := SetupServer(db, &test.AWSProviderMock{}, nil, nil, &test.URLCacheMock{})

	req := test.NewMultipartImageRequest("/api/processed-images", "garment.png", test.FakePngBytes(), "spacesuit")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var count int64
	db.Model(&models.ProcessedImage{}).Count(&count)
	assert.Equal(t, int64(0), count)
}

func TestUploadImageRejectsBadExtension(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := SetupServer(db, &test.AWSProviderMock{}, nil, nil, &test.URLCacheMock{})

	req := test.NewMultipartImageRequest("/api/processed-images", "notes.txt", []byte("not an image"), "tshirt")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var response map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Contains(t, response["error"], "unsupported file type")

	var count int64
	db.Model(&models.ProcessedImage{}).Count(&count)
	assert.Equal(t, int64(0), count)
}

func TestUploadImageRejectsOversize(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := SetupServer(db, &test.AWSProviderMock{}, nil, nil, &test.URLCacheMock{})

	oversized := bytes.Repeat([]byte{0xFF}, 10*1024*1024+1)
	req := test.NewMultipartImageRequest("/api/processed-images", "huge.jpg", oversized, "tshirt")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var response map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Contains(t, response["error"], "file too large")

	var count int64
	db.Model(&models.ProcessedImage{}).Count(&count)
	assert.Equal(t, int64(0), count)
}

func TestListProcessedImagesFilters(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := SetupServer(db, &test.AWSProviderMock{}, nil, nil, &test.URLCacheMock{})

	test.FakeProcessedImage(db, "tshirt", models.StatusCompleted)
	test.FakeProcessedImage(db, "pants", models.StatusCompleted)
	test.FakeProcessedImage(db, "tshirt", models.StatusFailed)

	req := test.NewJSONRequest("GET", "/api/processed-images?status=completed", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var listResponse ProcessedImageListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listResponse))
	assert.Equal(t, 2, listResponse.Count)
	assert.Len(t, listResponse.Results, 2)

	req = test.NewJSONRequest("GET", "/api/processed-images?clothing_type=tshirt", nil)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listResponse))
	assert.Equal(t, 2, listResponse.Count)

	req = test.NewJSONRequest("GET", "/api/processed-images?clothing_type=tshirt&completed_only=true", nil)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listResponse))
	assert.Equal(t, 1, listResponse.Count)
	require.Len(t, listResponse.Results, 1)
	assert.Equal(t, string(models.StatusCompleted), listResponse.Results[0].Status)
}

func TestGetProcessedImageNotFound(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := SetupServer(db, &test.AWSProviderMock{}, nil, nil, &test.URLCacheMock{})

	req := test.NewJSONRequest("GET", "/api/processed-images/99999", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateProcessedImageClothingType(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := SetupServer(db, &test.AWSProviderMock{}, nil, nil, &test.URLCacheMock{})

	image := test.FakeProcessedImage(db, "tshirt", models.StatusCompleted)
	req := test.NewJSONRequest("PATCH", fmt.Sprintf("/api/processed-images/%v", image.ID), UpdateProcessedImageIn{ClothingType: stringPtr("jacket")})
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var saved models.ProcessedImage
	db.First(&saved, image.ID)
	assert.Equal(t, "jacket", saved.ClothingType)
}

func TestUpdateProcessedImageRejectsUnknownType(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := SetupServer(db, &test.AWSProviderMock{}, nil, nil, &test.URLCacheMock{})

	image := test.FakeProcessedImage(db, "tshirt", models.StatusCompleted)
	req := test.NewJSONRequest("PATCH", fmt.Sprintf("/api/processed-images/%v", image.ID), UpdateProcessedImageIn{ClothingType: stringPtr("spacesuit")})
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteProcessedImage(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := SetupServer(db, &test.AWSProviderMock{}, nil, nil, &test.URLCacheMock{})

	image := test.FakeProcessedImage(db, "tshirt", models.StatusCompleted)
	req := test.NewJSONRequest("DELETE", fmt.Sprintf("/api/processed-images/%v", image.ID), nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)

	var count int64
	db.Model(&models.ProcessedImage{}).Count(&count)
	assert.Equal(t, int64(0), count)
}

func TestReprocessResetsFailedImage(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := SetupServer(db, &test.AWSProviderMock{}, nil, nil, &test.URLCacheMock{})

	image := test.FakeProcessedImage(db, "tshirt", models.StatusFailed)
	errMsg := "model failed"
	image.ErrorMessage = &errMsg
	db.Save(image)

	req := test.NewJSONRequest("POST", fmt.Sprintf("/api/processed-images/%v/reprocess", image.ID), nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var saved models.ProcessedImage
	db.First(&saved, image.ID)
	assert.Equal(t, models.StatusPending, saved.Status)
	assert.Nil(t, saved.ErrorMessage)
	assert.Nil(t, saved.ProcessedAt)
	assert.Nil(t, saved.ProcessedImageURL)
}

func TestReprocessRejectsInFlightImage(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := SetupServer(db, &test.AWSProviderMock{}, nil, nil, &test.URLCacheMock{})

	image := test.FakeProcessedImage(db, "tshirt", models.StatusPending)
	req := test.NewJSONRequest("POST", fmt.Sprintf("/api/processed-images/%v/reprocess", image.ID), nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestProcessingStats(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := SetupServer(db, &test.AWSProviderMock{}, nil, nil, &test.URLCacheMock{})

	test.FakeProcessedImage(db, "tshirt", models.StatusCompleted)
	test.FakeProcessedImage(db, "tshirt", models.StatusCompleted)
	test.FakeProcessedImage(db, "pants", models.StatusCompleted)
	test.FakeProcessedImage(db, "pants", models.StatusFailed)

	req := test.NewJSONRequest("GET", "/api/processed-images/stats", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var stats models.ProcessedImageStatsOut
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, int64(4), stats.Total)
	assert.Equal(t, int64(3), stats.Completed)
	assert.Equal(t, int64(1), stats.Failed)
	assert.InDelta(t, 75.0, stats.SuccessRate, 0.01)
	assert.Equal(t, int64(2), stats.ByType["tshirt"])
	assert.Equal(t, int64(2), stats.ByType["pants"])
}

func TestProcessingStatusEndpoint(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := SetupServer(db, &test.AWSProviderMock{}, nil, nil, &test.URLCacheMock{})

	image := test.FakeProcessedImage(db, "tshirt", models.StatusCompleted)
	req := test.NewJSONRequest("GET", fmt.Sprintf("/api/status/%v", image.ID), nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var out models.ProcessingStatusOut
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, "completed", out.Status)
	assert.True(t, out.IsComplete)
	assert.Nil(t, out.ErrorMessage)
	require.NotNil(t, out.ProcessedImageURL)
	assert.NotEmpty(t, *out.ProcessedImageURL)
}

func TestProcessingStatusEndpointPending(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := SetupServer(db, &test.AWSProviderMock{}, nil, nil, &test.URLCacheMock{})

	image := test.FakeProcessedImage(db, "tshirt", models.StatusPending)
	req := test.NewJSONRequest("GET", fmt.Sprintf("/api/status/%v", image.ID), nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var out models.ProcessingStatusOut
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, "pending", out.Status)
	assert.False(t, out.IsComplete)
	assert.Nil(t, out.ProcessedImageURL)
}
