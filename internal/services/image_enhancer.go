package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"sync/atomic"

	"github.com/nfnt/resize"
	"golang.org/x/sync/errgroup"

	"luxemap/estates/internal/config"
	"luxemap/estates/internal/fixtures"
	"luxemap/estates/internal/imagegen"
	"luxemap/estates/internal/logging"
	"luxemap/estates/internal/models"
	"luxemap/estates/internal/storage"
)

const enhanceConcurrency = 3

// ImageEnhancer replaces gallery photos with generated ones. Any property
// whose image cannot be produced keeps its fixture image.
type ImageEnhancer struct {
	cfg       *config.Config
	catalog   *fixtures.Catalog
	generator imagegen.IGenerator
	storage   storage.IS3Storage
	overrides IImageOverrides
}

func NewImageEnhancer(cfg *config.Config, catalog *fixtures.Catalog, generator imagegen.IGenerator, store storage.IS3Storage, overrides IImageOverrides) *ImageEnhancer {
	return &ImageEnhancer{cfg: cfg, catalog: catalog, generator: generator, storage: store, overrides: overrides}
}

func enhancePrompt(p models.Property) string {
	return fmt.Sprintf("A professional, hyper-realistic architectural photograph of a high-end luxury %s located in %s. "+
		"Clear daylight, wide angle lens, stunning textures, 8k resolution, minimalist style.", p.Type, p.Location)
}

// Run enhances every property. It fails only when nothing could be
// enhanced or ctx ended.
func (e *ImageEnhancer) Run(ctx context.Context) error {
	if e.generator == nil || e.storage == nil {
		return errors.New("image enhancer needs a generator and object storage")
	}

	props := e.catalog.Properties()
	var enhanced atomic.Int32

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(enhanceConcurrency)
	for _, p := range props {
		g.Go(func() error {
			url, err := e.enhanceOne(gctx, p)
			if err != nil {
				logging.Logger.Warnf("Keeping original image for %q: %v", p.Title, err)
				return nil
			}
			if err := e.overrides.Set(gctx, p.ID, url); err != nil {
				logging.Logger.Warnf("Keeping original image for %q: %v", p.Title, err)
				return nil
			}
			enhanced.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return err
	}
	n := int(enhanced.Load())
	logging.Logger.Infof("Image enhancement finished: %d of %d properties updated", n, len(props))
	if n == 0 && len(props) > 0 {
		return errors.New("no property image could be enhanced")
	}
	return nil
}

func (e *ImageEnhancer) enhanceOne(ctx context.Context, p models.Property) (string, error) {
	img, err := e.generator.Generate(ctx, enhancePrompt(p))
	if err != nil {
		return "", err
	}
	data, err := fitImage(img.Data, e.cfg.ImageMaxDimension)
	if err != nil {
		return "", err
	}
	return e.storage.PutImage(ctx, p.ID, "image/jpeg", data)
}

// fitImage decodes data, shrinks it to fit within maxDim on both sides and
// re-encodes it as JPEG.
func fitImage(data []byte, maxDim int) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode generated image: %w", err)
	}
	if maxDim > 0 {
		b := img.Bounds()
		if b.Dx() > maxDim || b.Dy() > maxDim {
			img = resize.Thumbnail(uint(maxDim), uint(maxDim), img, resize.Lanczos3)
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 85}); err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}
	return buf.Bytes(), nil
}
