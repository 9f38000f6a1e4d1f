package store

import (
	"bytes"
	"image"
	"image/color"
	_ "image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baseera/baseera-go/internal/conf"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	settings := &conf.Settings{
		Storage: conf.StorageSettings{DataDir: t.TempDir()},
	}
	s, err := New(settings, nil)
	require.NoError(t, err)
	return s
}

func sampleRecords() []Record {
	return []Record{
		{
			ID: "pred_20250102_130501", Date: "2025-01-02", Time: "13:05:01",
			Dish: "Pizza", Image: "food_data/images/pred_20250102_130501.jpg",
			Result: "clean", Confidence: 97.42,
		},
		{
			ID: "pred_20250101_091500", Date: "2025-01-01", Time: "09:15:00",
			Dish: "Salad", Image: "food_data/images/pred_20250101_091500.jpg",
			Result: "Error", Confidence: 0,
		},
	}
}

func TestLoadAllEmptyWhenNoFile(t *testing.T) {
	s := testStore(t)
	records := s.LoadAll()
	assert.NotNil(t, records)
	assert.Empty(t, records)
}

func TestSaveAllLoadAllRoundTrip(t *testing.T) {
	s := testStore(t)
	want := sampleRecords()

	require.NoError(t, s.SaveAll(want))
	got := s.LoadAll()

	assert.Equal(t, want, got, "round trip must preserve records and order")
}

func TestSaveAllOverwrites(t *testing.T) {
	s := testStore(t)
	require.NoError(t, s.SaveAll(sampleRecords()))
	require.NoError(t, s.SaveAll(nil))

	assert.Empty(t, s.LoadAll())
}

func TestLoadAllMalformedDatasetDegradesToEmpty(t *testing.T) {
	s := testStore(t)
	require.NoError(t, os.WriteFile(s.settings.DatasetPath(), []byte("{not json"), 0o644))

	records := s.LoadAll()
	assert.NotNil(t, records)
	assert.Empty(t, records)
}

func TestDatasetFieldNames(t *testing.T) {
	s := testStore(t)
	require.NoError(t, s.SaveAll(sampleRecords()[:1]))

	data, err := os.ReadFile(s.settings.DatasetPath())
	require.NoError(t, err)

	for _, field := range []string{`"id"`, `"date"`, `"time"`, `"dish"`, `"image"`, `"result"`, `"confidence"`} {
		assert.Contains(t, string(data), field)
	}
}

func TestSaveImageNormalizesToJPEG(t *testing.T) {
	s := testStore(t)

	// PNG with alpha in, JPEG out.
	src := image.NewNRGBA(image.Rect(0, 0, 10, 10))
	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			src.Set(x, y, color.NRGBA{R: 30, G: 60, B: 90, A: 200})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, src))

	path, err := s.SaveImage(buf.Bytes(), "pred_20250102_130501")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(s.settings.ImagesDir(), "pred_20250102_130501.jpg"), path)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	_, format, err := image.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
}

func TestSaveImageOverwritesSilently(t *testing.T) {
	s := testStore(t)

	src := image.NewRGBA(image.Rect(0, 0, 4, 4))
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, src))

	_, err := s.SaveImage(buf.Bytes(), "pred_x")
	require.NoError(t, err)
	_, err = s.SaveImage(buf.Bytes(), "pred_x")
	require.NoError(t, err)
}

func TestSaveImageRejectsGarbage(t *testing.T) {
	s := testStore(t)
	_, err := s.SaveImage([]byte("not an image"), "pred_y")
	assert.Error(t, err)
	_, statErr := os.Stat(s.ImagePath("pred_y"))
	assert.True(t, os.IsNotExist(statErr), "no file should be written for undecodable input")
}

func TestDisplayConfidenceClamped(t *testing.T) {
	r := Record{Confidence: 120}
	assert.Equal(t, 100.0, r.DisplayConfidence())
	r.Confidence = -5
	assert.Equal(t, 0.0, r.DisplayConfidence())
	r.Confidence = 55.5
	assert.Equal(t, 55.5, r.DisplayConfidence())
}

func TestSQLiteMirror(t *testing.T) {
	dir := t.TempDir()
	settings := &conf.Settings{
		Storage: conf.StorageSettings{DataDir: dir},
		Output: conf.OutputSettings{SQLite: conf.SQLiteSettings{
			Enabled: true,
			Path:    filepath.Join(dir, "records.db"),
		}},
	}
	s, err := New(settings, nil)
	require.NoError(t, err)
	defer s.Close()
	require.NotNil(t, s.db, "mirror should be open")

	require.NoError(t, s.SaveAll(sampleRecords()))

	var count int64
	require.NoError(t, s.db.Model(&Record{}).Count(&count).Error)
	assert.EqualValues(t, 2, count)

	// Clearing the collection empties the mirror too.
	require.NoError(t, s.SaveAll(nil))
	require.NoError(t, s.db.Model(&Record{}).Count(&count).Error)
	assert.EqualValues(t, 0, count)
}
