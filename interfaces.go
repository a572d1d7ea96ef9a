/*
 * interfaces.go, part of goff.
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

import "github.com/rmera/goff/units"

//EnvironmentMatch is one occurrence of a chemical pattern in the topology.
//TopologyAtoms are global indices in the tagged-atom order of the pattern.
//ReferenceAtoms and Reference, when set, point into the isomorphic
//pre-charged molecule the match was found through.
type EnvironmentMatch struct {
	TopologyAtoms  []int
	ReferenceAtoms []int
	Reference      *Molecule
}

//Matcher finds the occurrences of a chemical pattern in a topology. The
//engine does not interpret patterns itself; any cheminformatics backend that
//can run tagged substructure queries can sit behind this.
type Matcher interface {
	//Matches returns every occurrence of the pattern, each as the global
	//indices of the tagged atoms in tag order. Symmetric duplicates (the
	//same atoms in reversed or permuted tag order) must be included, as
	//match keys are canonicalized downstream.
	Matches(t *Topology, pattern string) ([]*EnvironmentMatch, error)
}

//ChargeProvider supplies partial charges for a molecule, in elementary
//charge units, when the topology does not carry them already.
type ChargeProvider interface {
	PartialCharges(m *Molecule) ([]float64, error)
}

//ForceKind names the kind of force a section produces, so sections that
//share a force (such as vdW and Electrostatics) can find each other's work.
type ForceKind string

const (
	HarmonicBondKind    ForceKind = "HarmonicBond"
	HarmonicAngleKind   ForceKind = "HarmonicAngle"
	PeriodicTorsionKind ForceKind = "PeriodicTorsion"
	NonbondedKind       ForceKind = "Nonbonded"
)

//NonbondedMethod is the long-range treatment a nonbonded force uses.
type NonbondedMethod int

const (
	NoCutoff NonbondedMethod = iota
	CutoffPeriodic
	CutoffNonPeriodic
	PME
	LJPME
)

func (n NonbondedMethod) String() string {
	switch n {
	case NoCutoff:
		return "NoCutoff"
	case CutoffPeriodic:
		return "CutoffPeriodic"
	case CutoffNonPeriodic:
		return "CutoffNonPeriodic"
	case PME:
		return "PME"
	case LJPME:
		return "LJPME"
	}
	return "NonbondedMethod(?)"
}

//Force is a force term container under construction. Concrete force types
//additionally satisfy one of the narrower interfaces below.
type Force interface {
	Kind() ForceKind
}

//BondForce accumulates harmonic bond terms.
type BondForce interface {
	Force
	AddBond(at1, at2 int, length, k *units.Quantity)
}

//AngleForce accumulates harmonic angle terms.
type AngleForce interface {
	Force
	AddAngle(at1, at2, at3 int, angle, k *units.Quantity)
}

//TorsionForce accumulates periodic torsion terms. One call adds a single
//cosine term; multi-term torsions call it once per term.
type TorsionForce interface {
	Force
	AddTorsion(at1, at2, at3, at4, periodicity int, phase, k *units.Quantity)
}

//NonbondedForce holds per-particle vdW parameters and charges plus the
//global long-range settings. Particles are created by the first section that
//needs them and filled in by the rest.
type NonbondedForce interface {
	Force
	SetMethod(m NonbondedMethod)
	Method() NonbondedMethod
	SetCutoff(cutoff *units.Quantity)
	SetSwitching(on bool, width *units.Quantity)
	NParticles() int
	AddParticle(charge float64, sigma, epsilon *units.Quantity) int
	SetParticle(i int, charge float64, sigma, epsilon *units.Quantity)
	Particle(i int) (charge float64, sigma, epsilon *units.Quantity)
	//CreateExceptions builds the bonded exclusion list from the bond pairs:
	//1-2 and 1-3 interactions are zeroed, 1-4 interactions are scaled by the
	//given factors. Must be called after every particle has its final
	//charge.
	CreateExceptions(bonds [][2]int, coulomb14, lj14 float64)
}

//System receives the assigned force field. It is deliberately small so both
//an in-memory system and a bridge to a simulation engine can satisfy it.
type System interface {
	//ExistingForce returns the force of the given kind, or nil.
	ExistingForce(kind ForceKind) Force
	//AddForce creates, registers and returns a new empty force of the kind.
	AddForce(kind ForceKind) Force
	//AddConstraint constrains the distance between two atoms.
	AddConstraint(at1, at2 int, distance *units.Quantity)
}

//Context carries the external capabilities of one assignment run.
type Context struct {
	Matcher Matcher
	//Charges, when set, provides partial charges for molecules that carry
	//none and match no ChargeMolecules entry.
	Charges ChargeProvider
	//ChargeMolecules are pre-charged molecules to use, by graph isomorphism,
	//before computing any charges.
	ChargeMolecules []*Molecule

	//filled in by the force field before assignment, so sections can read
	//each other's header attributes (the 1-4 scaling factors span two
	//sections)
	sections map[string]Handler
}

//Section returns the handler of the named section for the run this context
//belongs to, or nil.
func (c *Context) Section(tag string) Handler { return c.sections[tag] }
