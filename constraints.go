/*
 * constraints.go, part of goff.
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

import "github.com/rmera/goff/smirks"

//ConstraintHandler applies the Constraints section: pairs of atoms whose
//distance is fixed rather than governed by a harmonic bond. A constraint
//record may carry an explicit distance; without one, the distance is
//resolved later from the equilibrium length the Bonds section assigns, which
//is why Bonds declares a dependency on this section.
type ConstraintHandler struct {
	*baseHandler
}

func constraintSpec() *handlerSpec {
	return &handlerSpec{
		tag:        "Constraints",
		kindName:   "ConstraintType",
		valence:    smirks.Bond,
		minVersion: 0.3,
		maxVersion: 0.3,
		header:     NewSchema(versionAttr()),
		record: NewSchema(
			smirksAttr(smirks.Bond),
			idAttr(),
			parentIDAttr(),
			Attr("distance").WithDefault(nil).WithUnit(uLength),
		),
	}
}

func newConstraintHandler(attrs map[string]interface{}, opts Options) (Handler, error) {
	base, err := newBaseHandler(constraintSpec(), attrs, opts)
	if err != nil {
		return nil, err
	}
	return &ConstraintHandler{baseHandler: base}, nil
}

//Assign marks every matched pair as constrained, both in the topology's
//constraint table (where the Bonds and Angles sections will see it) and in
//the system. Pairs without an explicit distance are deferred: only the
//topology learns about them now, and whichever section assigns their
//equilibrium value adds the system constraint.
func (h *ConstraintHandler) Assign(t *Topology, sys System, ctx *Context) error {
	matches, err := h.findMatches(t, ctx.Matcher)
	if err != nil {
		return err
	}
	for _, key := range matches.Keys() {
		entry := matches.Entry(key)
		atoms := key.tuple()
		dist := entry.Record.Quantity("distance")
		t.Constrain(atoms[0], atoms[1], dist)
		if dist != nil {
			sys.AddConstraint(atoms[0], atoms[1], dist)
		}
	}
	//constraints are opt-in, so there is no completeness audit here
	return nil
}
