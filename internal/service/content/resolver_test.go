package content

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/knowwell/portal-api/internal/model"
	"github.com/knowwell/portal-api/pkg/logger"
)

type fakeAssets struct {
	failing map[string]bool
}

func (f *fakeAssets) Resolve(_ context.Context, path string) (string, error) {
	if f.failing[path] {
		return "", errors.New("store unavailable")
	}
	return "https://assets.example.com/" + path, nil
}

func newTestResolver(failing map[string]bool) *Resolver {
	log := logger.NewLogger(&logger.Config{Level: logger.ErrorLevel, Output: io.Discard})
	return NewResolver(&fakeAssets{failing: failing}, log)
}

func TestClassify(t *testing.T) {
	assert.Equal(t, KindVideo, Classify("intro.mp4"))
	assert.Equal(t, KindImage, Classify("diagram.jpg"))
	assert.Equal(t, KindImage, Classify("diagram.JPEG"))
	assert.Equal(t, KindImage, Classify("photo.png"))
	assert.Equal(t, KindImage, Classify("anim.gif"))
	assert.Equal(t, KindImage, Classify("modern.webp"))
	assert.Equal(t, KindText, Classify("Take one tablet daily."))
	assert.Equal(t, KindText, Classify("version 1.4"))
	assert.Equal(t, KindText, Classify(""))
}

func TestResolveTierPreservesOrderAndLength(t *testing.T) {
	drug := &model.Drug{
		BasicSections: []model.Section{
			{Title: "Intro", Content: []string{"First paragraph.", "diagram.png"}},
			{Title: "Usage", Content: []string{"video.mp4", "Last paragraph."}},
		},
	}

	items := newTestResolver(nil).ResolveTier(context.Background(), drug, model.LevelBasic)

	require.Len(t, items, 4)
	assert.Equal(t, Item{Kind: KindText, Value: "First paragraph."}, items[0])
	assert.Equal(t, Item{Kind: KindImage, Value: "https://assets.example.com/diagram.png"}, items[1])
	assert.Equal(t, Item{Kind: KindVideo, Value: "https://assets.example.com/video.mp4"}, items[2])
	assert.Equal(t, Item{Kind: KindText, Value: "Last paragraph."}, items[3])
}

func TestResolveTierSkipsEmptySections(t *testing.T) {
	drug := &model.Drug{
		BasicSections: []model.Section{
			{Title: "Empty"},
			{Title: "Full", Content: []string{"text"}},
		},
	}

	items := newTestResolver(nil).ResolveTier(context.Background(), drug, model.LevelBasic)
	require.Len(t, items, 1)
	assert.Equal(t, "text", items[0].Value)
}

func TestResolveTierDegradesFailedAssets(t *testing.T) {
	drug := &model.Drug{
		BasicSections: []model.Section{
			{Title: "Media", Content: []string{"ok.png", "broken.png", "after"}},
		},
	}

	items := newTestResolver(map[string]bool{"broken.png": true}).
		ResolveTier(context.Background(), drug, model.LevelBasic)

	require.Len(t, items, 3)
	assert.Equal(t, "https://assets.example.com/ok.png", items[0].Value)
	assert.False(t, items[0].Degraded)

	// A failed asset keeps the stored reference and is flagged.
	assert.Equal(t, "broken.png", items[1].Value)
	assert.True(t, items[1].Degraded)
	assert.Equal(t, KindImage, items[1].Kind)

	assert.Equal(t, "after", items[2].Value)
}

func TestResolveTierFallsBackToBasicForUnknownLevel(t *testing.T) {
	drug := &model.Drug{
		BasicSections:  []model.Section{{Title: "Basic", Content: []string{"basic text"}}},
		ExpertSections: []model.Section{{Title: "Expert", Content: []string{"expert text"}}},
	}

	items := newTestResolver(nil).ResolveTier(context.Background(), drug, model.KnowledgeLevel("bogus"))
	require.Len(t, items, 1)
	assert.Equal(t, "basic text", items[0].Value)
}

func TestResolveTierEmptyTier(t *testing.T) {
	items := newTestResolver(nil).ResolveTier(context.Background(), &model.Drug{}, model.LevelExpert)
	assert.Empty(t, items)
}
