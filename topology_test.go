/*
 * topology_test.go, part of goff.
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

package ff

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmera/goff/units"
)

//water is O(0)-H(1), O(0)-H(2)
func water(t *testing.T) *Molecule {
	t.Helper()
	m, err := NewMolecule([]string{"O", "H", "H"}, [][3]int{{0, 1, 1}, {0, 2, 1}})
	require.NoError(t, err)
	return m
}

//methanol is C(0)-H(1,2,3), C(0)-O(4), O(4)-H(5)
func methanol(t *testing.T) *Molecule {
	t.Helper()
	m, err := NewMolecule([]string{"C", "H", "H", "H", "O", "H"},
		[][3]int{{0, 1, 1}, {0, 2, 1}, {0, 3, 1}, {0, 4, 1}, {4, 5, 1}})
	require.NoError(t, err)
	return m
}

func TestMoleculeBonds(t *testing.T) {
	m := water(t)
	assert.True(t, m.IsBonded(0, 1))
	assert.False(t, m.IsBonded(1, 2))
	require.NotNil(t, m.BondBetween(0, 2))
	assert.Nil(t, m.BondBetween(1, 2))
	assert.Equal(t, "O1", m.Atoms[0].Name)

	_, err := m.AddBond(0, 0, 1)
	assert.Error(t, err)
	_, err = m.AddBond(0, 1, 1)
	assert.Error(t, err) //already bonded
	_, err = m.AddBond(0, 9, 1)
	assert.Error(t, err)

	nb := m.Atoms[0].Neighbors()
	require.Len(t, nb, 2)
	assert.Equal(t, 1, nb[0].Index)
	assert.Equal(t, 2, nb[1].Index)
}

func TestTopologyGlobalIndices(t *testing.T) {
	top := NewTopology(water(t), water(t))
	assert.Equal(t, 6, top.NAtoms())
	a, mol := top.Atom(4)
	require.NotNil(t, a)
	assert.Equal(t, "H", a.Symbol)
	assert.Same(t, top.Molecules()[1], mol)
	assert.Equal(t, "H2", top.AtomName(4)) //names are molecule-local

	//bonds never cross molecules
	assert.True(t, top.IsBonded(3, 4))
	assert.False(t, top.IsBonded(2, 3))
	assert.Nil(t, top.BondAt(2, 3))

	bonds := top.Bonds()
	assert.Equal(t, [][2]int{{0, 1}, {0, 2}, {3, 4}, {3, 5}}, bonds)
}

func TestTopologyAngles(t *testing.T) {
	top := NewTopology(water(t))
	angles := top.Angles()
	require.Len(t, angles, 1)
	assert.Equal(t, [3]int{1, 0, 2}, angles[0])

	//methanol: 3 H-C-H, 3 H-C-O, 1 C-O-H
	assert.Len(t, NewTopology(methanol(t)).Angles(), 7)
}

func TestTopologyTorsions(t *testing.T) {
	top := NewTopology(methanol(t))
	propers := top.ProperTorsions()
	//only the C-O bond has neighbors on both sides: 3 H-C-O-H
	require.Len(t, propers, 3)
	for _, p := range propers {
		assert.Equal(t, 0, p[1]) //carbon
		assert.Equal(t, 4, p[2]) //oxygen
		assert.Equal(t, 5, p[3]) //hydroxyl hydrogen
	}

	impropers := top.ImproperTorsions()
	//the carbon has four neighbors: C(4,3) = 4 outer triples, central second
	require.Len(t, impropers, 4)
	assert.Equal(t, [4]int{1, 0, 2, 3}, impropers[0])
	for _, im := range impropers {
		assert.Equal(t, 0, im[1])
	}
	//water has no atom with three neighbors
	assert.Empty(t, NewTopology(water(t)).ImproperTorsions())
}

func TestConstraints(t *testing.T) {
	top := NewTopology(water(t))
	ok, _ := top.Constrained(0, 1)
	assert.False(t, ok)

	d := units.MustQuantity(0.9572, "angstrom")
	top.Constrain(1, 0, &d) //order does not matter
	ok, dist := top.Constrained(0, 1)
	assert.True(t, ok)
	assert.Equal(t, 0.9572, dist.Value())

	top.Constrain(1, 2, nil) //deferred distance
	ok, dist = top.Constrained(2, 1)
	assert.True(t, ok)
	assert.Nil(t, dist)
}

func TestPeriodicBox(t *testing.T) {
	top := NewTopology(water(t))
	assert.False(t, top.Periodic())
	top.SetBox([3]float64{3, 0, 0}, [3]float64{0, 3, 0}, [3]float64{0, 0, 3})
	assert.True(t, top.Periodic())
	assert.Equal(t, 3.0, top.Box.At(1, 1))
}

func TestIsomorphicMapping(t *testing.T) {
	m := methanol(t)
	//the same molecule with atoms declared in another order
	perm, err := NewMolecule([]string{"H", "O", "C", "H", "H", "H"},
		[][3]int{{2, 0, 1}, {2, 3, 1}, {2, 4, 1}, {2, 1, 1}, {1, 5, 1}})
	require.NoError(t, err)
	mapping := m.IsomorphicMapping(perm)
	require.NotNil(t, mapping)
	assert.Equal(t, 2, mapping[0]) //carbon onto carbon
	assert.Equal(t, 1, mapping[4]) //oxygen onto oxygen
	assert.Equal(t, 5, mapping[5]) //hydroxyl hydrogen

	//a formal charge breaks the isomorphism
	charged := methanol(t)
	charged.Atoms[4].Charge = -1
	assert.Nil(t, m.IsomorphicMapping(charged))

	//so does a different bond order
	db := methanol(t)
	db.Bonds[3].Order = 2
	assert.Nil(t, m.IsomorphicMapping(db))

	assert.Nil(t, m.IsomorphicMapping(water(t)))
}
