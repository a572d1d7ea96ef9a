/*
 * bonds.go, part of goff.
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

	"github.com/rmera/goff/smirks"
	"github.com/rmera/goff/units"
	"go.uber.org/zap"
)

//BondHandler applies the Bonds section: harmonic bond stretch terms. It runs
//after Constraints, because a constrained pair gets its equilibrium length
//as a constraint distance instead of a bond term.
//
//The k and length attributes are indexed: with a single entry they are the
//plain harmonic parameters; with two or more they are anchors at integer
//bond orders 1, 2, ... and the actual values are interpolated from the
//bond's fractional bond order.
type BondHandler struct {
	*baseHandler
}

func bondSpec() *handlerSpec {
	return &handlerSpec{
		tag:        "Bonds",
		kindName:   "BondType",
		valence:    smirks.Bond,
		deps:       []string{"Constraints"},
		minVersion: 0.3,
		maxVersion: 0.3,
		header: NewSchema(
			versionAttr(),
			Attr("potential").WithDefault("harmonic").WithConverter(OneOf("harmonic")),
			Attr("fractional_bondorder_method").WithDefault("AM1-Wiberg").WithConverter(ToString),
			Attr("fractional_bondorder_interpolation").WithDefault("linear").WithConverter(ToString),
		),
		compatAttrs: []string{"potential", "fractional_bondorder_method", "fractional_bondorder_interpolation"},
		record: NewSchema(
			smirksAttr(smirks.Bond),
			idAttr(),
			parentIDAttr(),
			Attr("length").WithUnit(uLength).AsIndexed().ScalarWhenSingle(),
			Attr("k").WithUnit(uBondK).AsIndexed().ScalarWhenSingle(),
		),
	}
}

func newBondHandler(attrs map[string]interface{}, opts Options) (Handler, error) {
	base, err := newBaseHandler(bondSpec(), attrs, opts)
	if err != nil {
		return nil, err
	}
	return &BondHandler{baseHandler: base}, nil
}

//Assign adds one harmonic term per topological bond, skipping constrained
//pairs, and then audits that no bond was left untyped.
func (h *BondHandler) Assign(t *Topology, sys System, ctx *Context) error {
	force, err := bondForce(sys)
	if err != nil {
		return err
	}
	matches, err := h.findMatches(t, ctx.Matcher)
	if err != nil {
		return err
	}
	skipped := 0
	for _, key := range matches.Keys() {
		entry := matches.Entry(key)
		atoms := key.tuple()
		if err := h.checkConnectivity(t, entry.Match); err != nil {
			return err
		}
		length, k, err := h.bondParams(t, atoms, entry.Record)
		if err != nil {
			return err
		}
		if constrained, dist := t.Constrained(atoms[0], atoms[1]); constrained {
			skipped++
			if dist == nil {
				//a deferred constraint takes the equilibrium length
				t.Constrain(atoms[0], atoms[1], length)
				sys.AddConstraint(atoms[0], atoms[1], length)
			}
			continue
		}
		force.AddBond(atoms[0], atoms[1], length, k)
	}
	log.Info("bonds assigned",
		zap.Int("terms", matches.Len()-skipped),
		zap.Int("constrained", skipped))
	return h.checkAllTermsAssigned(t, tuples2(t.Bonds()), matches)
}

//bondParams resolves the equilibrium length and force constant of one bond,
//interpolating from the fractional bond order when the record carries
//anchors for more than one integer order.
func (h *BondHandler) bondParams(t *Topology, atoms []int, r *Record) (length, k *units.Quantity, err error) {
	lengths, ks := r.List("length"), r.List("k")
	bond := t.BondAt(atoms[0], atoms[1])
	if bond == nil || bond.FractionalOrder == 0 {
		if len(lengths) != 1 || len(ks) != 1 {
			return nil, nil, fmt.Errorf("goff: section %s: pattern %q has %d length and %d k anchors but the bond (%d, %d) has no fractional bond order",
				h.Tag(), r.SMIRKS(), len(lengths), len(ks), atoms[0], atoms[1])
		}
		return lengths[0].(*units.Quantity), ks[0].(*units.Quantity), nil
	}
	if interp := h.head.Str("fractional_bondorder_interpolation"); interp != "linear" {
		return nil, nil, &NotImplementedError{Feature: "fractional bond order interpolation " + interp}
	}
	if len(lengths) < 2 || len(ks) < 2 {
		return nil, nil, fmt.Errorf("goff: section %s: pattern %q needs at least two anchors to interpolate over bond order",
			h.Tag(), r.SMIRKS())
	}
	length = interpolateLinear(lengths, bond.FractionalOrder)
	k = interpolateLinear(ks, bond.FractionalOrder)
	return length, k, nil
}

//interpolateLinear interpolates between the anchors at integer bond orders
//1..N. Orders outside the anchor range extrapolate from the nearest segment.
func interpolateLinear(anchors []interface{}, order float64) *units.Quantity {
	lo := int(order) - 1 //anchor index for the integer order below
	if lo < 0 {
		lo = 0
	}
	if lo > len(anchors)-2 {
		lo = len(anchors) - 2
	}
	a := anchors[lo].(*units.Quantity)
	b := anchors[lo+1].(*units.Quantity)
	frac := order - float64(lo+1)
	d, _ := b.Sub(*a) //anchors share a dimension by construction
	v, _ := a.Add(d.Scale(frac))
	return &v
}

//bondForce fetches or creates the system's harmonic bond force.
func bondForce(sys System) (BondForce, error) {
	f := sys.ExistingForce(HarmonicBondKind)
	if f == nil {
		f = sys.AddForce(HarmonicBondKind)
	}
	bf, ok := f.(BondForce)
	if !ok {
		return nil, fmt.Errorf("goff: the system's %s force cannot take bond terms", HarmonicBondKind)
	}
	return bf, nil
}
