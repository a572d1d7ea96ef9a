/*
 * forcefield_test.go, part of goff.
 *
 *
 * Copyright 2024 Raul Mera <rmera{at}chemDOThelsinkiDOTfi>
 *
 * This program is free software; you can redistribute it and/or modify
 * it under the terms of the GNU Lesser General Public License as
 * published by the Free Software Foundation; either version 2.1 of the
 * License, or (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU Lesser General
 * Public License along with this program.  If not, see
 * <http://www.gnu.org/licenses/>.
 *
 *
 * goff is currently developed at the Universidad de Santiago de Chile
 * (USACH)
 *
 */

package ff_test

import (
	"bytes"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ff "github.com/rmera/goff"
	"github.com/rmera/goff/memsys"
	"github.com/rmera/goff/offml"
)

//mapMatcher maps patterns to fixed tagged-atom tuples, standing in for a
//cheminformatics backend.
type mapMatcher map[string][][]int

func (m mapMatcher) Matches(t *ff.Topology, pattern string) ([]*ff.EnvironmentMatch, error) {
	var out []*ff.EnvironmentMatch
	for _, atoms := range m[pattern] {
		out = append(out, &ff.EnvironmentMatch{TopologyAtoms: append([]int(nil), atoms...)})
	}
	return out, nil
}

//fixedCharges hands out the same charges to every molecule.
type fixedCharges []float64

func (c fixedCharges) PartialCharges(m *ff.Molecule) ([]float64, error) {
	return c, nil
}

//methanol is C(0)-H(1,2,3), C(0)-O(4), O(4)-H(5)
func methanolMol(t *testing.T) *ff.Molecule {
	t.Helper()
	m, err := ff.NewMolecule([]string{"C", "H", "H", "H", "O", "H"},
		[][3]int{{0, 1, 1}, {0, 2, 1}, {0, 3, 1}, {0, 4, 1}, {4, 5, 1}})
	require.NoError(t, err)
	return m
}

const methanolDoc = `version: "0.3"
aromaticity_model: OEAroModel_MDL
Constraints:
  version: "0.3"
  parameters:
    - smirks: "[#8X2:1]-[#1:2]"
      id: c1
Bonds:
  version: "0.3"
  potential: harmonic
  parameters:
    - smirks: "[#6X4:1]-[#1:2]"
      id: b1
      length: 1.09 * angstrom
      k: 680 * kilocalorie_per_mole/angstrom**2
    - smirks: "[#6X4:1]-[#8X2:2]"
      id: b2
      length: 1.41 * angstrom
      k: 620 * kilocalorie_per_mole/angstrom**2
    - smirks: "[#8X2:1]-[#1:2]"
      id: b3
      length: 0.97 * angstrom
      k: 1100 * kilocalorie_per_mole/angstrom**2
Angles:
  version: "0.3"
  parameters:
    - smirks: "[*:1]~[*:2]~[*:3]"
      id: a1
      angle: 109.5 * degree
      k: 0.02 * kilocalorie_per_mole/degree**2
ProperTorsions:
  version: "0.3"
  parameters:
    - smirks: "[*:1]~[#6X4:2]-[#8X2:3]~[*:4]"
      id: t1
      periodicity1: 3
      periodicity2: 1
      phase1: 0 * degree
      phase2: 180 * degree
      k1: 0.3 * kilocalorie_per_mole
      k2: 0.2 * kilocalorie_per_mole
      idivf1: 3
      idivf2: 1
ImproperTorsions:
  version: "0.3"
  parameters:
    - smirks: "[*:1]~[#6X4:2](~[*:3])~[*:4]"
      id: i1
      periodicity1: 2
      phase1: 180 * degree
      k1: 1.1 * kilocalorie_per_mole
vdW:
  version: "0.3"
  parameters:
    - smirks: "[#6:1]"
      id: n1
      epsilon: 0.109 * kilocalorie_per_mole
      sigma: 3.4 * angstrom
    - smirks: "[#1:1]"
      id: n2
      epsilon: 0.0157 * kilocalorie_per_mole
      rmin_half: 1.487 * angstrom
    - smirks: "[#8:1]"
      id: n3
      epsilon: 0.21 * kilocalorie_per_mole
      sigma: 3.0 * angstrom
Electrostatics:
  version: "0.3"
  method: PME
ToolkitAM1BCC:
  version: "0.3"
  parameters:
    - smirks: "[#6X4:1]-[#1:2]"
      id: q1
      increment: 0.05 * elementary_charge
`

func methanolMatcher() mapMatcher {
	return mapMatcher{
		"[#8X2:1]-[#1:2]":   {{4, 5}},
		"[#6X4:1]-[#1:2]":   {{0, 1}, {0, 2}, {0, 3}},
		"[#6X4:1]-[#8X2:2]": {{0, 4}},
		"[*:1]~[*:2]~[*:3]": {
			{1, 0, 2}, {1, 0, 3}, {1, 0, 4}, {2, 0, 3}, {2, 0, 4}, {3, 0, 4}, {0, 4, 5},
		},
		"[*:1]~[#6X4:2]-[#8X2:3]~[*:4]": {{1, 0, 4, 5}, {2, 0, 4, 5}, {3, 0, 4, 5}},
		"[*:1]~[#6X4:2](~[*:3])~[*:4]":  {{1, 0, 2, 3}},
		"[#6:1]":                        {{0}},
		"[#1:1]":                        {{1}, {2}, {3}, {5}},
		"[#8:1]":                        {{4}},
	}
}

func TestAssignMethanol(t *testing.T) {
	f, err := ff.Load(strings.NewReader(methanolDoc), ff.Options{})
	require.NoError(t, err)

	mol := methanolMol(t)
	mol.PartialCharges = []float64{0.1, 0.01, 0.01, 0.01, -0.2, 0.07}
	top := ff.NewTopology(mol)
	sys := memsys.New()
	require.NoError(t, f.AssignParameters(top, sys, &ff.Context{Matcher: methanolMatcher()}))

	//the O-H bond is constrained at its equilibrium length, so it gets a
	//constraint rather than a bond term
	bonds := sys.Bond().Bonds
	require.Len(t, bonds, 4)
	assert.Equal(t, 0, bonds[0].At1)
	assert.Equal(t, 1, bonds[0].At2)
	assert.Equal(t, 1.09, bonds[0].Length.Value())
	assert.Equal(t, 1.41, bonds[3].Length.Value())
	require.Len(t, sys.Constraints, 1)
	assert.Equal(t, 4, sys.Constraints[0].At1)
	assert.Equal(t, 5, sys.Constraints[0].At2)
	assert.Equal(t, 0.97, sys.Constraints[0].Distance.Value())

	angles := sys.Angle().Angles
	require.Len(t, angles, 7)
	assert.Equal(t, 109.5, angles[0].Angle.Value())
	assert.Equal(t, 0.02, angles[0].K.Value())

	//3 proper torsions of 2 terms each, then 1 improper on 3 trefoil paths
	torsions := sys.Torsion().Torsions
	require.Len(t, torsions, 9)
	first := torsions[0]
	assert.Equal(t, [4]int{1, 0, 4, 5}, [4]int{first.At1, first.At2, first.At3, first.At4})
	assert.Equal(t, 3, first.Periodicity)
	assert.InDelta(t, 0.1, first.K.Value(), 1e-12) //k1 divided by idivf1
	second := torsions[1]
	assert.Equal(t, 1, second.Periodicity)
	assert.InDelta(t, 0.2, second.K.Value(), 1e-12)
	assert.InDelta(t, 180.0, second.Phase.Value(), 1e-12)
	//the improper keeps the central atom first and cycles the outer three,
	//with k split across the three paths
	imp := torsions[6:]
	assert.Equal(t, [4]int{0, 1, 2, 3}, [4]int{imp[0].At1, imp[0].At2, imp[0].At3, imp[0].At4})
	assert.Equal(t, [4]int{0, 2, 3, 1}, [4]int{imp[1].At1, imp[1].At2, imp[1].At3, imp[1].At4})
	assert.Equal(t, [4]int{0, 3, 1, 2}, [4]int{imp[2].At1, imp[2].At2, imp[2].At3, imp[2].At4})
	for _, term := range imp {
		assert.InDelta(t, 1.1/3, term.K.Value(), 1e-12)
		assert.Equal(t, 2, term.Periodicity)
	}

	nb := sys.Nonbonded()
	require.NotNil(t, nb)
	assert.Equal(t, ff.NoCutoff, nb.Method()) //no box, no cutoff
	require.Equal(t, 6, nb.NParticles())
	assert.Equal(t, 3.4, nb.Particles[0].Sigma.Value())
	assert.Equal(t, 0.21, nb.Particles[4].Epsilon.Value())
	//hydrogens were given rmin_half, stored as sigma
	wantSigma := 2 * 1.487 / math.Pow(2, 1.0/6.0)
	assert.InDelta(t, wantSigma, nb.Particles[1].Sigma.Value(), 1e-12)

	//base charges plus the C-H bond corrections: the carbon lost 3x0.05,
	//each of its hydrogens gained 0.05
	assert.InDelta(t, -0.05, nb.Particles[0].Charge, 1e-12)
	for _, i := range []int{1, 2, 3} {
		assert.InDelta(t, 0.06, nb.Particles[i].Charge, 1e-12)
	}
	assert.InDelta(t, -0.2, nb.Particles[4].Charge, 1e-12)
	assert.InDelta(t, 0.07, nb.Particles[5].Charge, 1e-12)

	//methanol is small enough that every pair is excluded or scaled
	require.Len(t, nb.Exceptions, 15)
	got := make(map[[2]int]*memsys.Exception)
	for _, e := range nb.Exceptions {
		got[[2]int{e.At1, e.At2}] = e
	}
	//1-4 pairs H(methyl)...H(hydroxyl), scaled with the post-correction
	//charges
	for _, i := range []int{1, 2, 3} {
		e, ok := got[[2]int{i, 5}]
		require.True(t, ok)
		assert.InDelta(t, 0.833333*0.06*0.07, e.ChargeProduct, 1e-9)
		require.NotNil(t, e.Epsilon)
		assert.InDelta(t, 0.5*0.0157, e.Epsilon.Value(), 1e-12)
		assert.InDelta(t, wantSigma, e.Sigma.Value(), 1e-12)
	}
	//a 1-3 pair is fully excluded
	e := got[[2]int{1, 2}]
	require.NotNil(t, e)
	assert.Zero(t, e.ChargeProduct)
	assert.Nil(t, e.Sigma)
}

func TestSectionOrderFollowsDependencies(t *testing.T) {
	f, err := ff.Load(strings.NewReader(methanolDoc), ff.Options{})
	require.NoError(t, err)
	tags, err := f.Tags()
	require.NoError(t, err)
	pos := make(map[string]int)
	for i, tag := range tags {
		pos[tag] = i
	}
	assert.Less(t, pos["Constraints"], pos["Bonds"])
	assert.Less(t, pos["Constraints"], pos["Angles"])
	assert.Less(t, pos["vdW"], pos["Electrostatics"])
	assert.Less(t, pos["ToolkitAM1BCC"], pos["Electrostatics"])
}

func TestUnassignedBondsReported(t *testing.T) {
	f, err := ff.Load(strings.NewReader(methanolDoc), ff.Options{})
	require.NoError(t, err)
	matcher := methanolMatcher()
	delete(matcher, "[#6X4:1]-[#8X2:2]") //leave the C-O bond untyped

	top := ff.NewTopology(methanolMol(t))
	err = f.AssignParameters(top, memsys.New(), &ff.Context{Matcher: matcher})
	require.Error(t, err)
	var uve *ff.UnassignedValenceError
	require.True(t, errors.As(err, &uve))
	assert.Equal(t, "Bonds", uve.Tag)
	require.Len(t, uve.Unassigned, 1)
	assert.Equal(t, []int{0, 4}, uve.Unassigned[0])
}

const argonDoc = `version: "0.3"
vdW:
  version: "0.3"
  method: %s
  parameters:
    - smirks: "[#18:1]"
      id: n1
      epsilon: 0.238 * kilocalorie_per_mole
      sigma: 3.4 * angstrom
Electrostatics:
  version: "0.3"
  method: %s
`

func argonSystem(t *testing.T, vdwMethod, elecMethod string, periodic bool) (*memsys.System, error) {
	t.Helper()
	doc := strings.Replace(argonDoc, "%s", vdwMethod, 1)
	doc = strings.Replace(doc, "%s", elecMethod, 1)
	f, err := ff.Load(strings.NewReader(doc), ff.Options{})
	if err != nil {
		return nil, err
	}
	mol, err := ff.NewMolecule([]string{"Ar"}, nil)
	require.NoError(t, err)
	top := ff.NewTopology(mol)
	if periodic {
		top.SetBox([3]float64{3, 0, 0}, [3]float64{0, 3, 0}, [3]float64{0, 0, 3})
	}
	sys := memsys.New()
	err = f.AssignParameters(top, sys, &ff.Context{
		Matcher: mapMatcher{"[#18:1]": {{0}}},
	})
	return sys, err
}

func TestNonbondedMethodResolution(t *testing.T) {
	//a periodic box with a vdW cutoff means PME electrostatics with
	//switched, cut-off dispersion
	sys, err := argonSystem(t, "cutoff", "PME", true)
	require.NoError(t, err)
	assert.Equal(t, ff.PME, sys.Nonbonded().Method())
	assert.Equal(t, 9.0, sys.Nonbonded().Cutoff().Value())
	on, width := sys.Nonbonded().Switching()
	assert.True(t, on)
	assert.Equal(t, 1.0, width.Value())

	//vdW PME upgrades the whole treatment to LJPME
	sys, err = argonSystem(t, "PME", "PME", true)
	require.NoError(t, err)
	assert.Equal(t, ff.LJPME, sys.Nonbonded().Method())

	//without a box everything falls back to no cutoff
	sys, err = argonSystem(t, "cutoff", "PME", false)
	require.NoError(t, err)
	assert.Equal(t, ff.NoCutoff, sys.Nonbonded().Method())

	//plain Coulomb under periodic boundary conditions is refused
	_, err = argonSystem(t, "cutoff", "Coulomb", true)
	require.Error(t, err)
	var nie *ff.NotImplementedError
	assert.True(t, errors.As(err, &nie))

	//LJPME requires PME electrostatics
	_, err = argonSystem(t, "PME", "Coulomb", true)
	require.Error(t, err)
	var ipe *ff.IncompatibleParameterError
	assert.True(t, errors.As(err, &ipe))

	//reaction-field is rejected already at construction
	_, err = argonSystem(t, "cutoff", "reaction-field", true)
	require.Error(t, err)
	assert.True(t, errors.As(err, &nie))
}

func TestChargeSources(t *testing.T) {
	doc := `version: "0.3"
ToolkitAM1BCC:
  version: "0.3"
`
	f, err := ff.Load(strings.NewReader(doc), ff.Options{})
	require.NoError(t, err)
	water := func() *ff.Molecule {
		m, err := ff.NewMolecule([]string{"O", "H", "H"}, [][3]int{{0, 1, 1}, {0, 2, 1}})
		require.NoError(t, err)
		return m
	}

	//an external charge provider
	sys := memsys.New()
	err = f.AssignParameters(ff.NewTopology(water()), sys, &ff.Context{
		Matcher: mapMatcher{},
		Charges: fixedCharges{-0.8, 0.4, 0.4},
	})
	require.NoError(t, err)
	assert.InDelta(t, -0.8, sys.Nonbonded().Particles[0].Charge, 1e-12)

	//an isomorphic pre-charged molecule takes precedence over the provider
	ref := water()
	ref.PartialCharges = []float64{-0.83, 0.415, 0.415}
	sys = memsys.New()
	err = f.AssignParameters(ff.NewTopology(water()), sys, &ff.Context{
		Matcher:         mapMatcher{},
		Charges:         fixedCharges{-0.8, 0.4, 0.4},
		ChargeMolecules: []*ff.Molecule{ref},
	})
	require.NoError(t, err)
	assert.InDelta(t, -0.83, sys.Nonbonded().Particles[0].Charge, 1e-12)

	//no source at all is an error
	err = f.AssignParameters(ff.NewTopology(water()), memsys.New(), &ff.Context{
		Matcher: mapMatcher{},
	})
	assert.Error(t, err)
}

func TestFractionalBondOrderInterpolation(t *testing.T) {
	doc := `version: "0.3"
Bonds:
  version: "0.3"
  parameters:
    - smirks: "[#6X3:1]-[#6X3:2]"
      id: b1
      length1: 1.5 * angstrom
      length2: 1.3 * angstrom
      k1: 400 * kilocalorie_per_mole/angstrom**2
      k2: 600 * kilocalorie_per_mole/angstrom**2
`
	f, err := ff.Load(strings.NewReader(doc), ff.Options{})
	require.NoError(t, err)

	mol, err := ff.NewMolecule([]string{"C", "C"}, [][3]int{{0, 1, 1}})
	require.NoError(t, err)
	mol.Bonds[0].FractionalOrder = 1.5
	sys := memsys.New()
	matcher := mapMatcher{"[#6X3:1]-[#6X3:2]": {{0, 1}}}
	require.NoError(t, f.AssignParameters(ff.NewTopology(mol), sys, &ff.Context{Matcher: matcher}))
	require.Len(t, sys.Bond().Bonds, 1)
	assert.InDelta(t, 1.4, sys.Bond().Bonds[0].Length.Value(), 1e-12)
	assert.InDelta(t, 500.0, sys.Bond().Bonds[0].K.Value(), 1e-12)

	//anchors without a fractional bond order on the bond cannot be resolved
	mol.Bonds[0].FractionalOrder = 0
	err = f.AssignParameters(ff.NewTopology(mol), memsys.New(), &ff.Context{Matcher: matcher})
	assert.Error(t, err)

	//only linear interpolation exists
	doc2 := strings.Replace(doc, "version: \"0.3\"\n  parameters:",
		"version: \"0.3\"\n  fractional_bondorder_interpolation: cubic\n  parameters:", 1)
	f2, err := ff.Load(strings.NewReader(doc2), ff.Options{})
	require.NoError(t, err)
	mol.Bonds[0].FractionalOrder = 1.5
	err = f2.AssignParameters(ff.NewTopology(mol), memsys.New(), &ff.Context{Matcher: matcher})
	require.Error(t, err)
	var nie *ff.NotImplementedError
	assert.True(t, errors.As(err, &nie))
}

func TestProperTorsionAutoIdivfRefused(t *testing.T) {
	doc := `version: "0.3"
ProperTorsions:
  version: "0.3"
  parameters:
    - smirks: "[*:1]~[#6X4:2]-[#6X4:3]~[*:4]"
      id: t1
      periodicity1: 3
      phase1: 0 * degree
      k1: 0.3 * kilocalorie_per_mole
`
	f, err := ff.Load(strings.NewReader(doc), ff.Options{})
	require.NoError(t, err)
	mol, err := ff.NewMolecule([]string{"C", "C", "C", "C"},
		[][3]int{{0, 1, 1}, {1, 2, 1}, {2, 3, 1}})
	require.NoError(t, err)
	err = f.AssignParameters(ff.NewTopology(mol), memsys.New(), &ff.Context{
		Matcher: mapMatcher{"[*:1]~[#6X4:2]-[#6X4:3]~[*:4]": {{0, 1, 2, 3}}},
	})
	require.Error(t, err)
	var nie *ff.NotImplementedError
	assert.True(t, errors.As(err, &nie))
}

func TestLoadErrors(t *testing.T) {
	_, err := ff.Load(strings.NewReader("version: \"0.2\"\n"), ff.Options{})
	require.Error(t, err)
	var ve *ff.VersionError
	assert.True(t, errors.As(err, &ve))

	_, err = ff.Load(strings.NewReader("version: \"0.3\"\nLibraryCharges:\n  version: \"0.3\"\n"), ff.Options{})
	assert.Error(t, err) //no handler registered for the tag

	_, err = ff.Load(strings.NewReader("version: \"0.3\"\nChargeIncrementModel:\n  version: \"0.3\"\n"), ff.Options{})
	require.Error(t, err)
	var nie *ff.NotImplementedError
	assert.True(t, errors.As(err, &nie))
}

func TestMergeSections(t *testing.T) {
	base := `version: "0.3"
Bonds:
  version: "0.3"
  parameters:
    - smirks: "[#6X4:1]-[#6X4:2]"
      id: b1
      length: 1.526 * angstrom
      k: 620 * kilocalorie_per_mole/angstrom**2
`
	patch := `version: "0.3"
Bonds:
  version: "0.3"
  parameters:
    - smirks: "[#6X4:1]-[#6X4:2]"
      id: b1x
      length: 1.5 * angstrom
      k: 620 * kilocalorie_per_mole/angstrom**2
`
	f, err := ff.Load(strings.NewReader(base), ff.Options{})
	require.NoError(t, err)
	doc, err := offml.Decode(strings.NewReader(patch))
	require.NoError(t, err)
	require.NoError(t, f.LoadDocument(doc))
	//the patch's record lands at the end, where it takes override priority
	params := f.Handler("Bonds").Parameters()
	require.Equal(t, 2, params.Len())
	assert.Equal(t, "b1x", params.At(1).ID())

	//a patch whose header encodes different physics is refused
	bad, err := offml.Decode(strings.NewReader(strings.Replace(patch,
		"version: \"0.3\"\n  parameters:",
		"version: \"0.3\"\n  fractional_bondorder_method: Espaloma\n  parameters:", 1)))
	require.NoError(t, err)
	err = f.LoadDocument(bad)
	require.Error(t, err)
	var ipe *ff.IncompatibleParameterError
	assert.True(t, errors.As(err, &ipe))
}

func TestDocumentRoundTrip(t *testing.T) {
	withCosmetic := strings.Replace(methanolDoc,
		"id: b1\n", "id: b1\n      provenance: fit7\n", 1)
	f, err := ff.Load(strings.NewReader(withCosmetic), ff.Options{AllowCosmetic: true})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, f.Save(&buf, false))
	assert.Contains(t, buf.String(), "provenance: fit7")

	//the written document loads back to the same content
	f2, err := ff.Load(&buf, ff.Options{AllowCosmetic: true})
	require.NoError(t, err)
	assert.Equal(t, f.Version, f2.Version)
	assert.Equal(t, f.Top["aromaticity_model"], f2.Top["aromaticity_model"])
	b1 := f2.Handler("Bonds").Parameters().FindID("b1")
	require.NotNil(t, b1)
	v, ok := b1.Cosmetic("provenance")
	require.True(t, ok)
	assert.Equal(t, "fit7", v)
	assert.Equal(t, 1.09, b1.QuantityAt("length", 0).Value())

	//discarding cosmetics drops them from the output
	buf.Reset()
	require.NoError(t, f.Save(&buf, true))
	assert.NotContains(t, buf.String(), "provenance")
}
