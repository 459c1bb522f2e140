package content

import (
	"context"
	"path/filepath"
	"strings"
	"sync"

	"github.com/knowwell/portal-api/internal/assets"
	"github.com/knowwell/portal-api/internal/model"
	"github.com/knowwell/portal-api/pkg/logger"
)

// Kind classifies a display item of a content tier.
type Kind string

const (
	KindText  Kind = "text"
	KindImage Kind = "image"
	KindVideo Kind = "video"
)

// mediaExtensions is the enumerated set of suffixes that mark a content
// string as an asset reference rather than plain text.
var mediaExtensions = map[string]Kind{
	".mp4":  KindVideo,
	".jpg":  KindImage,
	".jpeg": KindImage,
	".png":  KindImage,
	".gif":  KindImage,
	".webp": KindImage,
}

// Classify returns the display kind of a raw content string.
func Classify(item string) Kind {
	ext := strings.ToLower(filepath.Ext(strings.TrimSpace(item)))
	if kind, ok := mediaExtensions[ext]; ok {
		return kind
	}
	return KindText
}

// Item is one display-ready entry of a resolved tier. Degraded marks an
// asset whose URL resolution failed and whose Value fell back to the stored
// reference.
type Item struct {
	Kind     Kind   `json:"kind"`
	Value    string `json:"value"`
	Degraded bool   `json:"degraded,omitempty"`
}

// Resolver flattens a drug's tier sections into the ordered item list the
// viewer renders.
type Resolver struct {
	assets assets.Resolver
	logger *logger.Logger
}

func NewResolver(assets assets.Resolver, logger *logger.Logger) *Resolver {
	return &Resolver{assets: assets, logger: logger}
}

// ResolveTier concatenates, in order, every section's content strings for
// the given level and resolves asset references to URLs. Resolutions run
// concurrently but each result is written back to its original index, so
// output order and length always match the source. A failed resolution
// degrades that single item; it never fails the tier.
func (r *Resolver) ResolveTier(ctx context.Context, drug *model.Drug, level model.KnowledgeLevel) []Item {
	var flat []string
	for _, section := range drug.SectionsFor(level) {
		if section.Content == nil {
			continue
		}
		flat = append(flat, section.Content...)
	}

	items := make([]Item, len(flat))
	var wg sync.WaitGroup
	for i, value := range flat {
		kind := Classify(value)
		items[i] = Item{Kind: kind, Value: value}
		if kind == KindText {
			continue
		}

		wg.Add(1)
		go func(i int, path string) {
			defer wg.Done()
			url, err := r.assets.Resolve(ctx, path)
			if err != nil {
				r.logger.Warn("asset resolution failed, serving stored reference",
					"path", path, "error", err.Error())
				items[i].Degraded = true
				return
			}
			items[i].Value = url
		}(i, value)
	}
	wg.Wait()

	return items
}
