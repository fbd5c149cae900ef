package resources

import (
	"context"
	"fmt"
	"image"
	"io/fs"
	"net/url"
	"path"
	"runtime"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Faultbox/gltf-frame/internal/engine/gpu"
	"github.com/Faultbox/gltf-frame/internal/engine/scene"
	"github.com/Faultbox/gltf-frame/internal/engine/texture"
	"github.com/Faultbox/gltf-frame/internal/logger"
)

// TextureConfig is how one image is uploaded.
type TextureConfig struct {
	// SRGB is set for color data: base color and emissive images.
	SRGB bool
	// Cutoff is the alpha-test threshold mips must preserve, or
	// texture.NoCutoff.
	Cutoff float32
}

// FindTextures derives the upload configuration of every image from the
// materials that sample it.
func FindTextures(file *scene.File) []TextureConfig {
	configs := make([]TextureConfig, len(file.Images))
	for i := range configs {
		configs[i].Cutoff = texture.NoCutoff
	}

	source := func(ref scene.TextureRef) int {
		if !ref.Valid() || ref.Index >= len(file.Textures) {
			return scene.None
		}
		img := file.Textures[ref.Index].Source
		if img < 0 || img >= len(configs) {
			return scene.None
		}
		return img
	}

	for _, m := range file.Materials {
		if img := source(m.EmissiveTexture); img != scene.None {
			configs[img].SRGB = true
		}
		if !m.MetallicRoughness {
			continue
		}
		if img := source(m.BaseColorTexture); img != scene.None {
			configs[img].SRGB = true
			if m.AlphaMode == scene.AlphaMask {
				configs[img].Cutoff = min(configs[img].Cutoff, m.AlphaCutoff)
			}
		}
	}
	return configs
}

// LoadTextures decodes every image in parallel, builds its mip chain and
// uploads the results. URIs are resolved against fsys. Descriptors and
// TextureByID only see the new textures once every image is created and
// uploaded; on error none of them are bound.
func (b *Binder) LoadTextures(ctx context.Context, fsys fs.FS) error {
	chains := make([][]*image.RGBA, len(b.file.Images))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := range b.file.Images {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			img := &b.file.Images[i]
			data, err := imageData(fsys, img)
			if err != nil {
				return fmt.Errorf("image %d: %w", i, err)
			}
			top, err := texture.Decode(data, imageName(i, img))
			if err != nil {
				return fmt.Errorf("image %d: %w", i, err)
			}
			chains[i] = texture.MipChain(top, b.configs[i].Cutoff)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	textures := make([]gpu.Texture, len(chains))
	for i, mips := range chains {
		format := gpu.FormatR8G8B8A8Unorm
		if b.configs[i].SRGB {
			format = gpu.FormatR8G8B8A8UnormSRGB
		}
		tex, err := b.device.CreateTexture(gpu.TextureDesc{
			Name:   imageName(i, &b.file.Images[i]),
			Format: format,
			Mips:   mips,
		})
		if err != nil {
			return fmt.Errorf("creating texture for image %d: %w", i, err)
		}
		textures[i] = tex
	}

	for i, tex := range textures {
		b.upload.UploadTexture(tex, chains[i])
	}
	if err := b.upload.Flush(); err != nil {
		return fmt.Errorf("uploading textures: %w", err)
	}

	for i, tex := range textures {
		if err := b.pile.SetTexture(b.imageBase+i, tex); err != nil {
			return fmt.Errorf("image %d descriptor: %w", i, err)
		}
	}
	copy(b.images, textures)

	logger.Info("textures loaded", zap.Int("count", len(textures)))
	return nil
}

// TextureByID returns the GPU texture behind glTF texture id, or nil when
// it has no loaded image.
func (b *Binder) TextureByID(id int) gpu.Texture {
	if id < 0 || id >= len(b.file.Textures) {
		return nil
	}
	src := b.file.Textures[id].Source
	if src < 0 || src >= len(b.images) {
		return nil
	}
	return b.images[src]
}

func imageData(fsys fs.FS, img *scene.Image) ([]byte, error) {
	if len(img.Data) > 0 {
		return img.Data, nil
	}
	if img.URI == "" {
		return nil, fmt.Errorf("no data and no uri")
	}
	name, err := url.PathUnescape(img.URI)
	if err != nil {
		name = img.URI
	}
	return fs.ReadFile(fsys, path.Clean(name))
}

func imageName(i int, img *scene.Image) string {
	switch {
	case img.Name != "":
		return img.Name
	case img.URI != "" && len(img.Data) == 0:
		return img.URI
	default:
		return fmt.Sprintf("image %d", i)
	}
}
