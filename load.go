package fakecheck

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"os"

	"github.com/corona10/goimagehash"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// LoadFailure reports why an image could not be turned into a bitmap.
// Callers treat it as a zero-similarity contribution, never as fatal.
type LoadFailure struct {
	Source string // ImageSource.Descriptor()
	Reason string // "empty", "fetch", "read", "decode"
	Err    error
}

func (e *LoadFailure) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("load %s: %s: %v", e.Source, e.Reason, e.Err)
	}
	return fmt.Sprintf("load %s: %s", e.Source, e.Reason)
}

func (e *LoadFailure) Unwrap() error { return e.Err }

// ImageHandle is a decoded RGB bitmap plus features derived from it.
// Derived features are computed lazily and kept for the handle's lifetime.
// A handle must not be shared between goroutines.
type ImageHandle struct {
	Source   ImageSource
	Bitmap   *image.RGBA
	Metadata *ImageMetadata // nil when the source carried no rights metadata

	embedding []float32
	phash     *goimagehash.ImageHash
	features  *featureSet
}

// LoadImage normalizes src into an RGB bitmap. URL sources are fetched with
// cfg.LoadTimeout. Every failure is reported as *LoadFailure.
func (cfg *Config) LoadImage(ctx context.Context, src ImageSource) (*ImageHandle, error) {
	cfg.defaults()

	desc := src.Descriptor()
	var data []byte

	switch src.Kind {
	case SourceImage:
		if src.Image == nil || src.Image.Bounds().Empty() {
			return nil, &LoadFailure{Source: desc, Reason: "empty"}
		}
		return &ImageHandle{Source: src, Bitmap: toRGBA(src.Image)}, nil
	case SourceBytes:
		data = src.Data
	case SourcePath:
		b, err := os.ReadFile(src.Path)
		if err != nil {
			return nil, &LoadFailure{Source: desc, Reason: "read", Err: err}
		}
		data = b
	case SourceURL:
		r, err := cfg.download(ctx, src.URL, DownloadOpts{})
		if err != nil {
			return nil, &LoadFailure{Source: desc, Reason: "fetch", Err: err}
		}
		data = r.Data
	default:
		return nil, &LoadFailure{Source: desc, Reason: "empty"}
	}

	if len(data) == 0 {
		return nil, &LoadFailure{Source: desc, Reason: "empty"}
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, &LoadFailure{Source: desc, Reason: "decode", Err: err}
	}
	if img.Bounds().Empty() {
		return nil, &LoadFailure{Source: desc, Reason: "empty"}
	}

	return &ImageHandle{
		Source:   src,
		Bitmap:   toRGBA(img),
		Metadata: ExtractImageMetadata(data),
	}, nil
}

// loadPair loads both sources. Either failure is logged and reported as nil handles.
func (cfg *Config) loadPair(ctx context.Context, a, b ImageSource) (*ImageHandle, *ImageHandle, bool) {
	ha, errA := cfg.LoadImage(ctx, a)
	hb, errB := cfg.LoadImage(ctx, b)
	if err := errors.Join(errA, errB); err != nil {
		slog.Debug("fakecheck: image load failed", "a", a.Descriptor(), "b", b.Descriptor(), "error", err.Error())
		return nil, nil, false
	}
	return ha, hb, true
}

// toRGBA copies img into an RGBA bitmap anchored at the origin.
func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Rect.Min == (image.Point{}) {
		return rgba
	}
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}
