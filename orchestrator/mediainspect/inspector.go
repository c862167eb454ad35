package mediainspect

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"

	"mediaOrchestrator/orchestrator/models"
)

var magicBytes = map[models.MediaType][][]byte{
	models.MediaImage: {
		{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}, // png
		{0xFF, 0xD8, 0xFF},       // jpeg
		{0x47, 0x49, 0x46, 0x38}, // gif
	},
	models.MediaAudio: {
		{0x49, 0x44, 0x33},       // mp3
		{0x52, 0x49, 0x46, 0x46}, // wav
	},
	models.MediaGeneric: {
		{0x25, 0x50, 0x44, 0x46}, // pdf
	},
}

// Inspector determines a medium's type from content and fills in the
// metadata downstream segmenting needs. Remote media keeps its declared
// type and submitted metadata; local files are sniffed.
type Inspector struct {
	logger *zap.Logger
}

func NewInspector(logger *zap.Logger) *Inspector {
	return &Inspector{logger: logger}
}

func (i *Inspector) Inspect(ctx context.Context, medium *models.Media) error {
	if medium.Metadata == nil {
		medium.Metadata = make(map[string]string)
	}

	path, local := localPath(medium.URI)
	if !local {
		if medium.Type == "" || medium.Type == models.MediaUnknown {
			return fmt.Errorf("remote medium %s has no declared type", medium.URI)
		}
		return i.finish(medium)
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open medium: %w", err)
	}
	defer f.Close()

	header := make([]byte, 512)
	n, _ := f.Read(header)
	header = header[:n]

	if t, ok := sniff(header); ok {
		medium.Type = t
	} else if medium.Type == "" {
		medium.Type = models.MediaUnknown
	}

	if medium.Type == models.MediaImage {
		img, err := imaging.Open(path)
		if err != nil {
			return fmt.Errorf("decode image: %w", err)
		}
		medium.Metadata[models.MetaFrameWidth] = strconv.Itoa(img.Bounds().Dx())
		medium.Metadata[models.MetaFrameHeight] = strconv.Itoa(img.Bounds().Dy())
	}

	return i.finish(medium)
}

// finish derives missing video metadata and validates what segmenting
// requires.
func (i *Inspector) finish(medium *models.Media) error {
	if medium.Type != models.MediaVideo {
		return nil
	}
	if medium.Meta(models.MetaHasConstantRate) == "" {
		medium.Metadata[models.MetaHasConstantRate] = "true"
	}
	if medium.Meta(models.MetaFrameCount) == "" {
		fps, err1 := strconv.ParseFloat(medium.Meta(models.MetaFPS), 64)
		dur, err2 := strconv.Atoi(medium.Meta(models.MetaDuration))
		if err1 == nil && err2 == nil && fps > 0 {
			medium.Metadata[models.MetaFrameCount] = strconv.Itoa(int(fps * float64(dur) / 1000))
		}
	}
	if medium.Meta(models.MetaFrameCount) == "" {
		return fmt.Errorf("video medium %d missing %s metadata", medium.ID, models.MetaFrameCount)
	}
	if medium.Meta(models.MetaFPS) == "" {
		return fmt.Errorf("video medium %d missing %s metadata", medium.ID, models.MetaFPS)
	}
	return nil
}

func sniff(header []byte) (models.MediaType, bool) {
	for t, signatures := range magicBytes {
		for _, sig := range signatures {
			if bytes.HasPrefix(header, sig) {
				return t, true
			}
		}
	}
	// mp4: "ftyp" box after the 4-byte size field
	if len(header) >= 8 && bytes.Equal(header[4:8], []byte("ftyp")) {
		return models.MediaVideo, true
	}
	return models.MediaUnknown, false
}

func localPath(uri string) (string, bool) {
	if strings.HasPrefix(uri, "file://") {
		return strings.TrimPrefix(uri, "file://"), true
	}
	if strings.Contains(uri, "://") {
		return "", false
	}
	return uri, true
}
