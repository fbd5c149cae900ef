package pass

import (
	"errors"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/Faultbox/gltf-frame/internal/engine/gpu"
	"github.com/Faultbox/gltf-frame/internal/engine/shader"
	"github.com/Faultbox/gltf-frame/internal/logger"
)

// DefaultShaderExt is the extension of precompiled permutation files.
const DefaultShaderExt = ".cso"

// PipelineCache maps a define-list hash to its pipeline and root
// signature. Primitives with equal defines share both, so the root
// signature shape must follow from the defines alone.
type PipelineCache struct {
	pass   string
	ext    string
	device gpu.Device
	store  shader.Store

	entries map[uint32]cachedPipeline
	missing map[uint32]struct{}

	hits   int
	misses int
}

type cachedPipeline struct {
	pipeline      gpu.Pipeline
	rootSignature gpu.RootSignature
}

// NewPipelineCache returns an empty cache for the named pass. Permutations
// are loaded from store as <pass>-<stage>_Permutation_0x<hash><ext>.
func NewPipelineCache(pass string, device gpu.Device, store shader.Store, ext string) *PipelineCache {
	if ext == "" {
		ext = DefaultShaderExt
	}
	return &PipelineCache{
		pass:    pass,
		ext:     ext,
		device:  device,
		store:   store,
		entries: make(map[uint32]cachedPipeline),
		missing: make(map[uint32]struct{}),
	}
}

// Get returns the pipeline for defines, creating it on the first request.
// rs and desc describe it; desc receives the shader bytecode and root
// signature before creation.
//
// A permutation without bytecode is logged once per hash with its full
// define list and reported as shader.ErrPermutationNotFound.
func (c *PipelineCache) Get(defines shader.Defines, rs gpu.RootSignatureDesc, desc gpu.PipelineDesc) (gpu.Pipeline, gpu.RootSignature, uint32, error) {
	hash := defines.Hash()
	if e, ok := c.entries[hash]; ok {
		c.hits++
		return e.pipeline, e.rootSignature, hash, nil
	}
	c.misses++

	vs, err := c.bytecode(shader.Vertex, hash, defines)
	if err != nil {
		return nil, nil, hash, err
	}
	ps, err := c.bytecode(shader.Pixel, hash, defines)
	if err != nil {
		return nil, nil, hash, err
	}

	rootSig, err := c.device.CreateRootSignature(rs)
	if err != nil {
		return nil, nil, hash, fmt.Errorf("%s root signature 0x%08x: %w", c.pass, hash, err)
	}
	desc.VS = vs
	desc.PS = ps
	desc.RootSignature = rootSig
	if desc.Name == "" {
		desc.Name = fmt.Sprintf("%s permutation 0x%08x", c.pass, hash)
	}
	pipeline, err := c.device.CreatePipeline(desc)
	if err != nil {
		return nil, nil, hash, fmt.Errorf("%s pipeline 0x%08x: %w", c.pass, hash, err)
	}

	c.entries[hash] = cachedPipeline{pipeline: pipeline, rootSignature: rootSig}
	return pipeline, rootSig, hash, nil
}

func (c *PipelineCache) bytecode(stage shader.Stage, hash uint32, defines shader.Defines) ([]byte, error) {
	name := shader.PermutationName(c.pass, stage, hash, c.ext)
	code, err := c.store.Bytecode(name)
	if err == nil {
		return code, nil
	}
	if errors.Is(err, shader.ErrPermutationNotFound) {
		if _, seen := c.missing[hash]; !seen {
			c.missing[hash] = struct{}{}
			logger.Error("precompiled shader permutation not found",
				zap.String("pass", c.pass),
				zap.String("file", name),
				zap.String("hash", fmt.Sprintf("0x%08x", hash)),
				zap.String("defines", defines.String()))
		}
	}
	return nil, fmt.Errorf("%s %s: %w", c.pass, stage, err)
}

// Hits returns how many requests were served from the cache.
func (c *PipelineCache) Hits() int { return c.hits }

// Misses returns how many requests had to build a pipeline.
func (c *PipelineCache) Misses() int { return c.misses }

// Len returns the number of cached pipelines.
func (c *PipelineCache) Len() int { return len(c.entries) }

// Missing returns the hashes of permutations without bytecode.
func (c *PipelineCache) Missing() []uint32 {
	out := make([]uint32, 0, len(c.missing))
	for h := range c.missing {
		out = append(out, h)
	}
	slices.Sort(out)
	return out
}
