package shader

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefinesHash(t *testing.T) {
	assert.Equal(t, uint32(0x811c9dc5), Defines{}.Hash())
	assert.Equal(t, uint32(0x5076facb), Defines{"A": "1"}.Hash())

	a := Defines{"HAS_POSITION": "1", "ID_SKINNING_MATRICES": "2"}
	b := Defines{"ID_SKINNING_MATRICES": "2", "HAS_POSITION": "1"}
	assert.Equal(t, a.Hash(), b.Hash())
	assert.NotEqual(t, a.Hash(), Defines{"HAS_POSITION": "1"}.Hash())
	assert.NotEqual(t, a.Hash(), Defines{"HAS_POSITION": "1", "ID_SKINNING_MATRICES": "3"}.Hash())
}

func TestDefinesMergeDoesNotAlias(t *testing.T) {
	base := Defines{"A": "1"}
	merged := base.Merge(Defines{"B": "2", "A": "3"})

	assert.Equal(t, Defines{"A": "1"}, base)
	assert.Equal(t, Defines{"A": "3", "B": "2"}, merged)
	assert.Equal(t, Defines{"B": "2"}, Defines(nil).Merge(Defines{"B": "2"}))
	assert.True(t, merged.Has("B"))
}

func TestDefinesString(t *testing.T) {
	d := Defines{"Z": "0", "A": "1"}
	assert.Equal(t, "#define A 1\n#define Z 0\n", d.String())
}

func TestPermutationName(t *testing.T) {
	assert.Equal(t, "GLTFPbrPass-VS_Permutation_0x0000abcd.cso", PermutationName("GLTFPbrPass", Vertex, 0xabcd, ".cso"))
	assert.Equal(t, "GLTFDepthPass-PS_Permutation_0xffffffff.glsl", PermutationName("GLTFDepthPass", Pixel, 0xffffffff, ".glsl"))
}

func TestDirStore(t *testing.T) {
	s := NewFSStore(fstest.MapFS{
		"a.cso": {Data: []byte("bytecode")},
	})

	data, err := s.Bytecode("a.cso")
	require.NoError(t, err)
	assert.Equal(t, []byte("bytecode"), data)

	_, err = s.Bytecode("missing.cso")
	assert.ErrorIs(t, err, ErrPermutationNotFound)
}

func TestCollectingStore(t *testing.T) {
	s := NewCollectingStore()
	_, _ = s.Bytecode("b")
	_, _ = s.Bytecode("a")
	_, _ = s.Bytecode("b")

	assert.Equal(t, []string{"a", "b"}, s.Requested())
}
