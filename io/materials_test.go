package io

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mittens-cad/fieldsim/voxel"
)

func writeMaterialFile(t *testing.T, text string) string {
	t.Helper()
	fname := filepath.Join(t.TempDir(), "materials.dat")
	require.NoError(t, os.WriteFile(fname, []byte(text), 0644))
	return fname
}

func TestReadMaterialTable(t *testing.T) {
	fname := writeMaterialFile(t, `0 4.4 1 0.002 0
1 1 1 0 1
2 9.8 1.2 0 0
`)
	mats, err := ReadMaterialTable(fname)
	require.NoError(t, err)
	require.Len(t, mats, 3)

	fr4 := mats["custom0"]
	assert.Equal(t, 4.4, fr4.EpsRel)
	assert.Equal(t, 1.0, fr4.MuRel)
	assert.Equal(t, 0.002, fr4.Conductivity)
	assert.False(t, fr4.PEC)

	assert.True(t, mats["custom1"].PEC)
	assert.Equal(t, 1.2, mats["custom2"].MuRel)
}

func TestReadMaterialTableErrors(t *testing.T) {
	table := []struct {
		name, text string
	}{
		{"duplicate index", "0 4.4 1 0 0\n0 2.1 1 0 0\n"},
		{"eps below one", "0 0.5 1 0 0\n"},
		{"negative sigma", "0 4.4 1 -1 0\n"},
	}
	for _, test := range table {
		_, err := ReadMaterialTable(writeMaterialFile(t, test.text))
		assert.Error(t, err, test.name)
	}
}

func TestResolveMaterial(t *testing.T) {
	custom := map[string]voxel.Material{
		"custom0": {Name: "custom0", EpsRel: 4.4, MuRel: 1},
	}

	m := &MeshConfig{Name: "m", Material: "pec"}
	mat, err := ResolveMaterial(m, custom)
	require.NoError(t, err)
	assert.True(t, mat.PEC)

	m = &MeshConfig{Name: "m", Material: "copper"}
	mat, err = ResolveMaterial(m, nil)
	require.NoError(t, err)
	assert.Equal(t, 5.8e7, mat.Conductivity)

	m = &MeshConfig{Name: "bead", Material: "dielectric", EpsRel: 9.8, Sigma: 0.01}
	mat, err = ResolveMaterial(m, nil)
	require.NoError(t, err)
	assert.Equal(t, 9.8, mat.EpsRel)
	assert.Equal(t, 0.01, mat.Conductivity)

	m = &MeshConfig{Name: "m", Material: "custom0"}
	mat, err = ResolveMaterial(m, custom)
	require.NoError(t, err)
	assert.Equal(t, 4.4, mat.EpsRel)

	m = &MeshConfig{Name: "m", Material: "dielectric"}
	_, err = ResolveMaterial(m, nil)
	assert.Error(t, err, "dielectric without EpsRel")

	m = &MeshConfig{Name: "m", Material: "unobtainium"}
	_, err = ResolveMaterial(m, custom)
	assert.Error(t, err)
}
