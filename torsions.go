/*
 * torsions.go, part of goff.
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

const cosineTorsionPotential = "k*(1+cos(periodicity*theta-phase))"

//torsionRecordSchema builds the record schema shared by proper and improper
//torsions: a torsion is a sum of cosine terms, so periodicity, phase, k and
//idivf are indexed and must agree in length.
func torsionRecordSchema(v smirks.Valence) *Schema {
	return NewSchema(
		smirksAttr(v),
		idAttr(),
		parentIDAttr(),
		Attr("periodicity").WithConverter(ToInt).AsIndexed(),
		Attr("phase").WithUnit(uAngle).AsIndexed(),
		Attr("k").WithUnit(uEnergy).AsIndexed(),
		Attr("idivf").WithDefault(nil).WithConverter(FloatOrAuto).AsIndexed(),
	)
}

//torsionTerm is one resolved cosine term of a torsion record.
type torsionTerm struct {
	periodicity int
	phase       *units.Quantity
	k           *units.Quantity
	idivf       interface{} //float64, or the string "auto"
}

//torsionTerms expands a record into its terms, taking idivf from the record
//when given and from defaultIdivf otherwise.
func torsionTerms(r *Record, defaultIdivf interface{}) ([]torsionTerm, error) {
	per, phase, k := r.List("periodicity"), r.List("phase"), r.List("k")
	if len(per) != len(phase) || len(per) != len(k) {
		return nil, fmt.Errorf("pattern %q has %d periodicity, %d phase and %d k entries",
			r.SMIRKS(), len(per), len(phase), len(k))
	}
	idivf := r.List("idivf")
	if idivf != nil && len(idivf) != len(per) {
		return nil, fmt.Errorf("pattern %q has %d idivf entries for %d terms",
			r.SMIRKS(), len(idivf), len(per))
	}
	terms := make([]torsionTerm, len(per))
	for i := range per {
		terms[i] = torsionTerm{
			periodicity: per[i].(int),
			phase:       phase[i].(*units.Quantity),
			k:           k[i].(*units.Quantity),
			idivf:       defaultIdivf,
		}
		if idivf != nil {
			terms[i].idivf = idivf[i]
		}
	}
	return terms, nil
}

//ProperTorsionHandler applies the ProperTorsions section: periodic dihedral
//terms around each bond.
type ProperTorsionHandler struct {
	*baseHandler
}

func properTorsionSpec() *handlerSpec {
	return &handlerSpec{
		tag:        "ProperTorsions",
		kindName:   "ProperTorsionType",
		valence:    smirks.ProperTorsion,
		minVersion: 0.3,
		maxVersion: 0.3,
		header: NewSchema(
			versionAttr(),
			Attr("potential").WithDefault(cosineTorsionPotential).WithConverter(OneOf(cosineTorsionPotential)),
			Attr("default_idivf").WithDefault("auto").WithConverter(FloatOrAuto),
		),
		compatAttrs: []string{"potential", "default_idivf"},
		record:      torsionRecordSchema(smirks.ProperTorsion),
	}
}

func newProperTorsionHandler(attrs map[string]interface{}, opts Options) (Handler, error) {
	base, err := newBaseHandler(properTorsionSpec(), attrs, opts)
	if err != nil {
		return nil, err
	}
	return &ProperTorsionHandler{baseHandler: base}, nil
}

//Assign adds every cosine term of every matched torsion, dividing each k by
//its idivf. An idivf left at 'auto' is a hard failure for proper torsions;
//there is no defined symmetry count to derive it from.
func (h *ProperTorsionHandler) Assign(t *Topology, sys System, ctx *Context) error {
	force, err := torsionForce(sys)
	if err != nil {
		return err
	}
	matches, err := h.findMatches(t, ctx.Matcher)
	if err != nil {
		return err
	}
	defaultIdivf := h.head.Get("default_idivf")
	for _, key := range matches.Keys() {
		entry := matches.Entry(key)
		atoms := key.tuple()
		if err := h.checkConnectivity(t, entry.Match); err != nil {
			return err
		}
		terms, err := torsionTerms(entry.Record, defaultIdivf)
		if err != nil {
			return fmt.Errorf("goff: section %s: %w", h.Tag(), err)
		}
		for _, term := range terms {
			div, ok := term.idivf.(float64)
			if !ok {
				return &NotImplementedError{Feature: "torsion idivf value 'auto' for proper torsions"}
			}
			k := term.k.Scale(1 / div)
			force.AddTorsion(atoms[0], atoms[1], atoms[2], atoms[3],
				term.periodicity, term.phase, &k)
		}
	}
	log.Info("proper torsions assigned", zap.Int("torsions", matches.Len()))
	return h.checkAllTermsAssigned(t, tuples4(t.ProperTorsions()), matches)
}

//torsionForce fetches or creates the system's periodic torsion force, which
//proper and improper sections share.
func torsionForce(sys System) (TorsionForce, error) {
	f := sys.ExistingForce(PeriodicTorsionKind)
	if f == nil {
		f = sys.AddForce(PeriodicTorsionKind)
	}
	tf, ok := f.(TorsionForce)
	if !ok {
		return nil, fmt.Errorf("goff: the system's %s force cannot take torsion terms", PeriodicTorsionKind)
	}
	return tf, nil
}
