package io

import (
	"fmt"

	"github.com/phil-mansfield/table"

	"github.com/mittens-cad/fieldsim/voxel"
)

// Material table files are whitespace-separated numeric columns
//
//	index  eps_r  mu_r  sigma  pec
//
// one row per custom material. Rows are referenced from mesh sections as
// Material = custom<index>. The pec column is 0 or 1; a 1 makes the other
// columns irrelevant.
const (
	matIdxCol = iota
	matEpsCol
	matMuCol
	matSigmaCol
	matPECCol
)

// ReadMaterialTable loads custom materials keyed by their config name.
func ReadMaterialTable(fname string) (map[string]voxel.Material, error) {
	colIdxs := []int{matIdxCol, matEpsCol, matMuCol, matSigmaCol, matPECCol}
	cols, err := table.ReadTable(fname, colIdxs, nil)
	if err != nil {
		return nil, err
	}

	idxs, epss, mus := cols[0], cols[1], cols[2]
	sigmas, pecs := cols[3], cols[4]

	out := make(map[string]voxel.Material, len(idxs))
	for row := range idxs {
		name := fmt.Sprintf("custom%d", int(idxs[row]))
		if _, dup := out[name]; dup {
			return nil, fmt.Errorf(
				"Material table '%s' repeats index %d.", fname, int(idxs[row]),
			)
		}

		if pecs[row] != 0 {
			m := voxel.PEC()
			m.Name = name
			out[name] = m
			continue
		}

		if epss[row] < 1 || mus[row] < 1 {
			return nil, fmt.Errorf(
				"Material table '%s' row %d needs eps_r and mu_r >= 1, "+
					"but got %g and %g.", fname, row, epss[row], mus[row],
			)
		}
		if sigmas[row] < 0 {
			return nil, fmt.Errorf(
				"Material table '%s' row %d has negative sigma %g.",
				fname, row, sigmas[row],
			)
		}

		out[name] = voxel.Material{
			Name:         name,
			EpsRel:       epss[row],
			MuRel:        mus[row],
			Conductivity: sigmas[row],
		}
	}
	return out, nil
}

// ResolveMaterial maps a mesh section's material name to a concrete
// material: first the built-in presets, then the custom table. A bare
// "dielectric" preset takes its parameters from the mesh section itself.
func ResolveMaterial(
	m *MeshConfig, custom map[string]voxel.Material,
) (voxel.Material, error) {
	switch m.Material {
	case "air", "vacuum":
		return voxel.Air(), nil
	case "pec", "metal":
		return voxel.PEC(), nil
	case "copper":
		return voxel.Copper(), nil
	case "dielectric":
		if m.EpsRel < 1 {
			return voxel.Material{}, fmt.Errorf(
				"Dielectric Mesh '%s' needs EpsRel >= 1, but got %g.",
				m.Name, m.EpsRel,
			)
		}
		mat := voxel.Dielectric(m.Name, m.EpsRel)
		if m.MuRel >= 1 {
			mat.MuRel = m.MuRel
		}
		if m.Sigma > 0 {
			mat.Conductivity = m.Sigma
		}
		return mat, nil
	}

	if mat, ok := custom[m.Material]; ok {
		return mat, nil
	}
	return voxel.Material{}, fmt.Errorf(
		"Unknown Material '%s' for Mesh '%s'. Valid names are air, pec, "+
			"copper, dielectric, or a customN table entry.",
		m.Material, m.Name,
	)
}
