/*
 * memsys.go, part of goff.
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

//Package memsys holds an assigned force field in memory as plain term lists,
//one list per force kind. It is the reference ff.System implementation: the
//tests inspect it, and anything that wants to export the assigned terms to a
//simulation package can walk it.
package memsys

import (
	"math"
	"sort"

	ff "github.com/rmera/goff"
	"github.com/rmera/goff/units"
)

//BondTerm is one harmonic bond stretch term.
type BondTerm struct {
	At1, At2 int
	Length   *units.Quantity
	K        *units.Quantity
}

//AngleTerm is one harmonic angle bend term.
type AngleTerm struct {
	At1, At2, At3 int
	Angle         *units.Quantity
	K             *units.Quantity
}

//TorsionTerm is one cosine torsion term, proper or improper.
type TorsionTerm struct {
	At1, At2, At3, At4 int
	Periodicity        int
	Phase              *units.Quantity
	K                  *units.Quantity
}

//Particle is one atom's nonbonded parameters. Charge is in elementary
//charge units. Sigma and Epsilon stay nil until a vdW section sets them.
type Particle struct {
	Charge  float64
	Sigma   *units.Quantity
	Epsilon *units.Quantity
}

//Exception is one excluded or scaled intramolecular pair. ChargeProduct is
//in squared elementary charges; a fully excluded pair carries zeros.
type Exception struct {
	At1, At2      int
	ChargeProduct float64
	Sigma         *units.Quantity
	Epsilon       *units.Quantity
}

//Constraint fixes the distance between two atoms.
type Constraint struct {
	At1, At2 int
	Distance *units.Quantity
}

//HarmonicBondForce collects bond terms.
type HarmonicBondForce struct {
	Bonds []*BondTerm
}

func (f *HarmonicBondForce) Kind() ff.ForceKind { return ff.HarmonicBondKind }

func (f *HarmonicBondForce) AddBond(at1, at2 int, length, k *units.Quantity) {
	f.Bonds = append(f.Bonds, &BondTerm{At1: at1, At2: at2, Length: length, K: k})
}

//HarmonicAngleForce collects angle terms.
type HarmonicAngleForce struct {
	Angles []*AngleTerm
}

func (f *HarmonicAngleForce) Kind() ff.ForceKind { return ff.HarmonicAngleKind }

func (f *HarmonicAngleForce) AddAngle(at1, at2, at3 int, angle, k *units.Quantity) {
	f.Angles = append(f.Angles, &AngleTerm{At1: at1, At2: at2, At3: at3, Angle: angle, K: k})
}

//PeriodicTorsionForce collects torsion terms.
type PeriodicTorsionForce struct {
	Torsions []*TorsionTerm
}

func (f *PeriodicTorsionForce) Kind() ff.ForceKind { return ff.PeriodicTorsionKind }

func (f *PeriodicTorsionForce) AddTorsion(at1, at2, at3, at4, periodicity int, phase, k *units.Quantity) {
	f.Torsions = append(f.Torsions, &TorsionTerm{
		At1: at1, At2: at2, At3: at3, At4: at4,
		Periodicity: periodicity, Phase: phase, K: k,
	})
}

//NonbondedForce holds the per-particle table, the pair exceptions, and the
//long-range settings. All nonbonded sections share one of these.
type NonbondedForce struct {
	Particles   []*Particle
	Exceptions  []*Exception
	method      ff.NonbondedMethod
	cutoff      *units.Quantity
	switching   bool
	switchWidth *units.Quantity
}

func (f *NonbondedForce) Kind() ff.ForceKind { return ff.NonbondedKind }

func (f *NonbondedForce) SetMethod(m ff.NonbondedMethod) { f.method = m }

func (f *NonbondedForce) Method() ff.NonbondedMethod { return f.method }

func (f *NonbondedForce) SetCutoff(cutoff *units.Quantity) { f.cutoff = cutoff }

//Cutoff returns the cutoff distance, nil when no cutoff applies.
func (f *NonbondedForce) Cutoff() *units.Quantity { return f.cutoff }

func (f *NonbondedForce) SetSwitching(on bool, width *units.Quantity) {
	f.switching = on
	f.switchWidth = width
}

//Switching returns whether a switching function tapers the potential, and
//its width.
func (f *NonbondedForce) Switching() (bool, *units.Quantity) {
	return f.switching, f.switchWidth
}

func (f *NonbondedForce) NParticles() int { return len(f.Particles) }

func (f *NonbondedForce) AddParticle(charge float64, sigma, epsilon *units.Quantity) int {
	f.Particles = append(f.Particles, &Particle{Charge: charge, Sigma: sigma, Epsilon: epsilon})
	return len(f.Particles) - 1
}

func (f *NonbondedForce) SetParticle(i int, charge float64, sigma, epsilon *units.Quantity) {
	f.Particles[i] = &Particle{Charge: charge, Sigma: sigma, Epsilon: epsilon}
}

func (f *NonbondedForce) Particle(i int) (float64, *units.Quantity, *units.Quantity) {
	p := f.Particles[i]
	return p.Charge, p.Sigma, p.Epsilon
}

//CreateExceptions walks the bond graph and emits one exception per 1-2, 1-3
//and 1-4 pair: the first two fully excluded, the last scaled. Mixed-pair
//Lennard-Jones parameters follow Lorentz-Berthelot. Calling it again
//replaces the previous exception list.
func (f *NonbondedForce) CreateExceptions(bonds [][2]int, coulomb14, lj14 float64) {
	adj := make(map[int][]int)
	for _, b := range bonds {
		adj[b[0]] = append(adj[b[0]], b[1])
		adj[b[1]] = append(adj[b[1]], b[0])
	}
	//separation[pair] = number of bonds on the shortest path, 1 to 3
	separation := make(map[[2]int]int)
	note := func(i, j, d int) {
		if i == j {
			return
		}
		key := pairOf(i, j)
		if prev, ok := separation[key]; ok && prev <= d {
			return
		}
		separation[key] = d
	}
	for _, b := range bonds {
		note(b[0], b[1], 1)
	}
	for _, nb := range adj {
		for x := 0; x < len(nb); x++ {
			for y := x + 1; y < len(nb); y++ {
				note(nb[x], nb[y], 2)
			}
		}
	}
	for _, b := range bonds {
		for _, i := range adj[b[0]] {
			if i == b[1] {
				continue
			}
			for _, l := range adj[b[1]] {
				if l == b[0] || l == i {
					continue
				}
				note(i, l, 3)
			}
		}
	}
	f.Exceptions = f.Exceptions[:0]
	for key, d := range separation {
		e := &Exception{At1: key[0], At2: key[1]}
		if d == 3 {
			p1, p2 := f.Particles[key[0]], f.Particles[key[1]]
			e.ChargeProduct = coulomb14 * p1.Charge * p2.Charge
			e.Sigma, e.Epsilon = mixLJ(p1, p2, lj14)
		}
		f.Exceptions = append(f.Exceptions, e)
	}
	sort.Slice(f.Exceptions, func(i, j int) bool {
		if f.Exceptions[i].At1 != f.Exceptions[j].At1 {
			return f.Exceptions[i].At1 < f.Exceptions[j].At1
		}
		return f.Exceptions[i].At2 < f.Exceptions[j].At2
	})
}

//mixLJ combines two particles' Lennard-Jones parameters by the
//Lorentz-Berthelot rules, with epsilon scaled for a 1-4 pair.
func mixLJ(p1, p2 *Particle, scale float64) (*units.Quantity, *units.Quantity) {
	if p1.Sigma == nil || p2.Sigma == nil || p1.Epsilon == nil || p2.Epsilon == nil {
		return nil, nil
	}
	s, err := p1.Sigma.Add(*p2.Sigma)
	if err != nil {
		return nil, nil
	}
	sigma := s.Scale(0.5)
	e2, err := p2.Epsilon.In(*p1.Epsilon)
	if err != nil {
		return nil, nil
	}
	epsilon := units.MustQuantity(scale*math.Sqrt(p1.Epsilon.Value()*e2), p1.Epsilon.Label())
	return &sigma, &epsilon
}

func pairOf(i, j int) [2]int {
	if i > j {
		i, j = j, i
	}
	return [2]int{i, j}
}

//System is the in-memory ff.System.
type System struct {
	Forces      []ff.Force
	Constraints []*Constraint
}

//New returns an empty system.
func New() *System {
	return &System{}
}

//ExistingForce returns the force of the given kind, or nil.
func (s *System) ExistingForce(kind ff.ForceKind) ff.Force {
	for _, f := range s.Forces {
		if f.Kind() == kind {
			return f
		}
	}
	return nil
}

//AddForce creates and registers an empty force of the given kind. Unknown
//kinds panic: asking for a force memsys does not model is a programming
//error.
func (s *System) AddForce(kind ff.ForceKind) ff.Force {
	var f ff.Force
	switch kind {
	case ff.HarmonicBondKind:
		f = &HarmonicBondForce{}
	case ff.HarmonicAngleKind:
		f = &HarmonicAngleForce{}
	case ff.PeriodicTorsionKind:
		f = &PeriodicTorsionForce{}
	case ff.NonbondedKind:
		f = &NonbondedForce{}
	default:
		panic("memsys: no force of kind " + string(kind))
	}
	s.Forces = append(s.Forces, f)
	return f
}

//AddConstraint fixes the distance between two atoms.
func (s *System) AddConstraint(at1, at2 int, distance *units.Quantity) {
	s.Constraints = append(s.Constraints, &Constraint{At1: at1, At2: at2, Distance: distance})
}

//Bond returns the harmonic bond force, or nil.
func (s *System) Bond() *HarmonicBondForce {
	f, _ := s.ExistingForce(ff.HarmonicBondKind).(*HarmonicBondForce)
	return f
}

//Angle returns the harmonic angle force, or nil.
func (s *System) Angle() *HarmonicAngleForce {
	f, _ := s.ExistingForce(ff.HarmonicAngleKind).(*HarmonicAngleForce)
	return f
}

//Torsion returns the periodic torsion force, or nil.
func (s *System) Torsion() *PeriodicTorsionForce {
	f, _ := s.ExistingForce(ff.PeriodicTorsionKind).(*PeriodicTorsionForce)
	return f
}

//Nonbonded returns the nonbonded force, or nil.
func (s *System) Nonbonded() *NonbondedForce {
	f, _ := s.ExistingForce(ff.NonbondedKind).(*NonbondedForce)
	return f
}
