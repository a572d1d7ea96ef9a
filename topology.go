/*
 * topology.go, part of goff.
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
	"fmt"
	"sort"

	"github.com/rmera/goff/units"
	"gonum.org/v1/gonum/mat"
)

//Atom is one atom of a molecule. Index is molecule-local and zero-based.
type Atom struct {
	Index  int
	Name   string
	Symbol string
	Charge int //formal charge
	Bonds  []*Bond
}

//Neighbors returns the atoms bonded to a, in bond order of declaration.
func (a *Atom) Neighbors() []*Atom {
	n := make([]*Atom, 0, len(a.Bonds))
	for _, b := range a.Bonds {
		n = append(n, b.Cross(a))
	}
	return n
}

//Bond is a chemical bond between two atoms of the same molecule.
type Bond struct {
	Index           int
	At1, At2        *Atom
	Order           int
	FractionalOrder float64 //0 when no fractional bond order has been computed
	Aromatic        bool
}

//Cross returns the atom at the other end of the bond from a, or nil if a is
//not part of the bond.
func (b *Bond) Cross(a *Atom) *Atom {
	switch a {
	case b.At1:
		return b.At2
	case b.At2:
		return b.At1
	}
	return nil
}

//Molecule is a connected chemical species: atoms, bonds, and, optionally,
//preassigned partial charges (one per atom, in elementary charge units).
type Molecule struct {
	Atoms          []*Atom
	Bonds          []*Bond
	PartialCharges []float64
}

//NewMolecule builds a molecule from atomic symbols and bonds given as
//(atom1, atom2, order) triplets.
func NewMolecule(symbols []string, bonds [][3]int) (*Molecule, error) {
	m := &Molecule{}
	for i, s := range symbols {
		m.Atoms = append(m.Atoms, &Atom{Index: i, Symbol: s, Name: fmt.Sprintf("%s%d", s, i+1)})
	}
	for _, b := range bonds {
		if _, err := m.AddBond(b[0], b[1], b[2]); err != nil {
			return nil, err
		}
	}
	return m, nil
}

//AddBond bonds atoms i and j with the given order.
func (m *Molecule) AddBond(i, j, order int) (*Bond, error) {
	if i < 0 || i >= len(m.Atoms) || j < 0 || j >= len(m.Atoms) {
		return nil, fmt.Errorf("goff: bond (%d, %d) is out of range for a molecule of %d atoms", i, j, len(m.Atoms))
	}
	if i == j {
		return nil, fmt.Errorf("goff: atom %d cannot bond to itself", i)
	}
	if m.BondBetween(i, j) != nil {
		return nil, fmt.Errorf("goff: atoms %d and %d are already bonded", i, j)
	}
	b := &Bond{Index: len(m.Bonds), At1: m.Atoms[i], At2: m.Atoms[j], Order: order}
	m.Bonds = append(m.Bonds, b)
	b.At1.Bonds = append(b.At1.Bonds, b)
	b.At2.Bonds = append(b.At2.Bonds, b)
	return b, nil
}

//BondBetween returns the bond joining atoms i and j, or nil.
func (m *Molecule) BondBetween(i, j int) *Bond {
	for _, b := range m.Atoms[i].Bonds {
		if o := b.Cross(m.Atoms[i]); o != nil && o.Index == j {
			return b
		}
	}
	return nil
}

//IsBonded reports whether atoms i and j share a bond.
func (m *Molecule) IsBonded(i, j int) bool {
	return m.BondBetween(i, j) != nil
}

//IsomorphicMapping looks for a graph isomorphism from m onto other that
//preserves atomic symbols, formal charges and bond orders. It returns the
//map from m's atom indices to other's, or nil when the molecules are not
//the same chemical species.
func (m *Molecule) IsomorphicMapping(other *Molecule) []int {
	if len(m.Atoms) != len(other.Atoms) || len(m.Bonds) != len(other.Bonds) {
		return nil
	}
	mapping := make([]int, len(m.Atoms))
	for i := range mapping {
		mapping[i] = -1
	}
	used := make([]bool, len(other.Atoms))
	if m.matchAtom(0, other, mapping, used) {
		return mapping
	}
	return nil
}

//matchAtom is a straightforward backtracking matcher. Molecules are small,
//so no VF2-style pruning is needed.
func (m *Molecule) matchAtom(i int, other *Molecule, mapping []int, used []bool) bool {
	if i == len(m.Atoms) {
		return true
	}
	a := m.Atoms[i]
	for j, b := range other.Atoms {
		if used[j] || a.Symbol != b.Symbol || a.Charge != b.Charge {
			continue
		}
		if !m.bondsConsistent(a, b, mapping, other) {
			continue
		}
		mapping[i] = j
		used[j] = true
		if m.matchAtom(i+1, other, mapping, used) {
			return true
		}
		mapping[i] = -1
		used[j] = false
	}
	return false
}

func (m *Molecule) bondsConsistent(a, b *Atom, mapping []int, other *Molecule) bool {
	for _, bond := range a.Bonds {
		o := bond.Cross(a)
		if mapping[o.Index] < 0 {
			continue //not decided yet
		}
		ob := other.BondBetween(b.Index, mapping[o.Index])
		if ob == nil || ob.Order != bond.Order {
			return false
		}
	}
	return true
}

//constraintEntry records one constrained atom pair. A nil distance means the
//pair is constrained but its length is still to be taken from the equilibrium
//value of a later section.
type constraintEntry struct {
	distance *units.Quantity
}

//Topology is the full system the force field types: one or more molecules,
//optional periodic box vectors, and the constraints accumulated during
//parameter assignment. Atom indices at the topology level are global,
//obtained by stacking the molecules in order.
type Topology struct {
	mols        []*Molecule
	offsets     []int
	Box         *mat.Dense //3x3 box vectors in nanometers, nil for a non-periodic system
	constraints map[[2]int]*constraintEntry
}

//NewTopology stacks the given molecules into a topology.
func NewTopology(mols ...*Molecule) *Topology {
	t := &Topology{constraints: make(map[[2]int]*constraintEntry)}
	for _, m := range mols {
		t.AddMolecule(m)
	}
	return t
}

//AddMolecule appends a molecule and returns the global index of its first
//atom.
func (t *Topology) AddMolecule(m *Molecule) int {
	off := t.NAtoms()
	t.mols = append(t.mols, m)
	t.offsets = append(t.offsets, off)
	return off
}

//Molecules returns the molecules in the topology, in order.
func (t *Topology) Molecules() []*Molecule { return t.mols }

//NAtoms returns the total atom count.
func (t *Topology) NAtoms() int {
	if len(t.mols) == 0 {
		return 0
	}
	last := len(t.mols) - 1
	return t.offsets[last] + len(t.mols[last].Atoms)
}

//Atom returns the atom with the given global index, and its molecule.
func (t *Topology) Atom(i int) (*Atom, *Molecule) {
	for k := len(t.mols) - 1; k >= 0; k-- {
		if i >= t.offsets[k] {
			return t.mols[k].Atoms[i-t.offsets[k]], t.mols[k]
		}
	}
	return nil, nil
}

//AtomName returns a printable name for the atom with the given global index.
func (t *Topology) AtomName(i int) string {
	a, _ := t.Atom(i)
	if a == nil {
		return ""
	}
	return a.Name
}

//Periodic reports whether the topology carries box vectors.
func (t *Topology) Periodic() bool { return t.Box != nil }

//SetBox sets the periodic box from three vectors, each in nanometers.
func (t *Topology) SetBox(a, b, c [3]float64) {
	t.Box = mat.NewDense(3, 3, []float64{
		a[0], a[1], a[2],
		b[0], b[1], b[2],
		c[0], c[1], c[2],
	})
}

//Constrain marks the global atom pair (i, j) as constrained. A nil distance
//defers the length to whatever equilibrium value is assigned later.
func (t *Topology) Constrain(i, j int, distance *units.Quantity) {
	t.constraints[pairKey(i, j)] = &constraintEntry{distance: distance}
}

//Constrained reports whether the pair (i, j) is constrained, and at what
//distance (nil for a deferred length).
func (t *Topology) Constrained(i, j int) (bool, *units.Quantity) {
	e, ok := t.constraints[pairKey(i, j)]
	if !ok {
		return false, nil
	}
	return true, e.distance
}

func pairKey(i, j int) [2]int {
	if i > j {
		i, j = j, i
	}
	return [2]int{i, j}
}

//IsBonded reports whether the global atoms i and j share a bond. Atoms of
//different molecules are never bonded.
func (t *Topology) IsBonded(i, j int) bool {
	ai, mi := t.Atom(i)
	aj, mj := t.Atom(j)
	if mi == nil || mi != mj {
		return false
	}
	return mi.IsBonded(ai.Index, aj.Index)
}

//Bonds enumerates every bond as a global (i, j) pair, molecule by molecule,
//in bond declaration order.
func (t *Topology) Bonds() [][2]int {
	var out [][2]int
	for k, m := range t.mols {
		off := t.offsets[k]
		for _, b := range m.Bonds {
			out = append(out, [2]int{off + b.At1.Index, off + b.At2.Index})
		}
	}
	return out
}

//BondAt returns the molecular bond joining global atoms i and j, or nil.
func (t *Topology) BondAt(i, j int) *Bond {
	ai, mi := t.Atom(i)
	aj, mj := t.Atom(j)
	if mi == nil || mi != mj {
		return nil
	}
	return mi.BondBetween(ai.Index, aj.Index)
}

//Angles enumerates every angle (i, j, k) with j the central atom, as global
//indices.
func (t *Topology) Angles() [][3]int {
	var out [][3]int
	for k, m := range t.mols {
		off := t.offsets[k]
		for _, center := range m.Atoms {
			nb := center.Neighbors()
			for x := 0; x < len(nb); x++ {
				for y := x + 1; y < len(nb); y++ {
					i, j := nb[x].Index, nb[y].Index
					if i > j {
						i, j = j, i
					}
					out = append(out, [3]int{off + i, off + center.Index, off + j})
				}
			}
		}
	}
	return out
}

//ProperTorsions enumerates every proper torsion (i, j, k, l) around each
//bond (j, k), as global indices.
func (t *Topology) ProperTorsions() [][4]int {
	var out [][4]int
	for k, m := range t.mols {
		off := t.offsets[k]
		for _, b := range m.Bonds {
			for _, i := range b.At1.Neighbors() {
				if i == b.At2 {
					continue
				}
				for _, l := range b.At2.Neighbors() {
					if l == b.At1 || l == i {
						continue
					}
					out = append(out, [4]int{off + i.Index, off + b.At1.Index, off + b.At2.Index, off + l.Index})
				}
			}
		}
	}
	return out
}

//ImproperTorsions enumerates every improper torsion as (i, center, k, l)
//with the central atom second, for each atom with exactly three neighbors or
//more (all 3-subsets of its neighbors), as global indices.
func (t *Topology) ImproperTorsions() [][4]int {
	var out [][4]int
	for k, m := range t.mols {
		off := t.offsets[k]
		for _, center := range m.Atoms {
			nb := center.Neighbors()
			if len(nb) < 3 {
				continue
			}
			idx := make([]int, len(nb))
			for i, a := range nb {
				idx[i] = a.Index
			}
			sort.Ints(idx)
			for x := 0; x < len(idx); x++ {
				for y := x + 1; y < len(idx); y++ {
					for z := y + 1; z < len(idx); z++ {
						out = append(out, [4]int{off + idx[x], off + center.Index, off + idx[y], off + idx[z]})
					}
				}
			}
		}
	}
	return out
}
