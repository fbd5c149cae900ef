package pass

import (
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/gltf-frame/internal/engine/scene"
	"github.com/Faultbox/gltf-frame/internal/engine/shader"
)

// ShadowMapSlot is the texture register of the shadow atlas. Material
// textures use the registers below it.
const ShadowMapSlot = 9

// PBRParams are the material factors in the per-object constant block.
type PBRParams struct {
	EmissiveFactor          mgl32.Vec4
	BaseColorFactor         mgl32.Vec4
	MetallicRoughnessValues mgl32.Vec4
}

// PBRMaterial is a material prepared for the PBR pass.
type PBRMaterial struct {
	Defines     shader.Defines
	Params      PBRParams
	Blending    bool
	DoubleSided bool
	// Textures maps a glTF slot name such as "baseColorTexture" to a glTF
	// texture index.
	Textures map[string]int
}

// ProcessMaterial derives shader defines, constants and texture slots from
// a glTF material.
func ProcessMaterial(m scene.Material) PBRMaterial {
	out := PBRMaterial{
		Defines:     make(shader.Defines),
		Blending:    m.AlphaMode == scene.AlphaBlend,
		DoubleSided: m.DoubleSided,
		Textures:    make(map[string]int),
		Params: PBRParams{
			EmissiveFactor:          m.EmissiveFactor.Vec4(1),
			BaseColorFactor:         m.BaseColorFactor,
			MetallicRoughnessValues: mgl32.Vec4{m.MetallicFactor, m.RoughnessFactor, 0, 0},
		},
	}

	d := out.Defines
	d["DEF_doubleSided"] = boolDefine(m.DoubleSided)
	d["DEF_alphaCutoff"] = floatDefine(m.AlphaCutoff)
	d["DEF_alphaMode_"+m.AlphaMode.String()] = "1"

	texCoords := map[string]string{
		"normalTexture":            "ID_normalTexCoord",
		"emissiveTexture":          "ID_emissiveTexCoord",
		"occlusionTexture":         "ID_occlusionTexCoord",
		"baseColorTexture":         "ID_baseTexCoord",
		"metallicRoughnessTexture": "ID_metallicRoughnessTexCoord",
	}
	for slot, ref := range m.Textures() {
		out.Textures[slot] = ref.Index
		d[texCoords[slot]] = strconv.Itoa(ref.TexCoord)
	}
	if m.MetallicRoughness {
		d["MATERIAL_METALLICROUGHNESS"] = "1"
	}
	return out
}

// TextureSlots returns the material's texture slot names in binding order.
func (m *PBRMaterial) TextureSlots() []string {
	return slices.Sorted(maps.Keys(m.Textures))
}

// DepthMaterial is a material prepared for the depth-only passes. Only
// masked materials sample a texture, their base color, for alpha testing.
type DepthMaterial struct {
	Defines     shader.Defines
	DoubleSided bool
	// BaseColor is the glTF texture index used for the alpha test, or
	// scene.None.
	BaseColor int
}

// ProcessDepthMaterial derives the depth pass view of a glTF material.
func ProcessDepthMaterial(m scene.Material) DepthMaterial {
	out := DepthMaterial{
		Defines:     shader.Defines{"DEF_alphaMode_" + m.AlphaMode.String(): "1"},
		DoubleSided: m.DoubleSided,
		BaseColor:   scene.None,
	}
	if m.AlphaMode != scene.AlphaMask {
		return out
	}
	out.Defines["DEF_alphaCutoff"] = floatDefine(m.AlphaCutoff)
	if m.MetallicRoughness && m.BaseColorTexture.Valid() {
		out.BaseColor = m.BaseColorTexture.Index
		out.Defines["MATERIAL_METALLICROUGHNESS"] = "1"
		out.Defines["ID_baseColorTexture"] = "0"
		out.Defines["ID_baseTexCoord"] = strconv.Itoa(m.BaseColorTexture.TexCoord)
	}
	return out
}

// UsesTexCoord reports whether any *TexCoord define selects the UV set of
// attribute, which must look like "TEXCOORD_<n>".
func UsesTexCoord(defines shader.Defines, attribute string) bool {
	set, ok := strings.CutPrefix(attribute, "TEXCOORD_")
	if !ok || set == "" {
		return false
	}
	for k, v := range defines {
		if strings.HasSuffix(k, "TexCoord") && v == set {
			return true
		}
	}
	return false
}

func boolDefine(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// floatDefine prints six decimals so values hash like the offline tools.
func floatDefine(f float32) string {
	return strconv.FormatFloat(float64(f), 'f', 6, 32)
}
