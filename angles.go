/*
 * angles.go, part of goff.
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
	"go.uber.org/zap"
)

//AngleHandler applies the Angles section: harmonic angle bend terms.
type AngleHandler struct {
	*baseHandler
}

func angleSpec() *handlerSpec {
	return &handlerSpec{
		tag:        "Angles",
		kindName:   "AngleType",
		valence:    smirks.Angle,
		deps:       []string{"Constraints"},
		minVersion: 0.3,
		maxVersion: 0.3,
		header: NewSchema(
			versionAttr(),
			Attr("potential").WithDefault("harmonic").WithConverter(OneOf("harmonic")),
		),
		compatAttrs: []string{"potential"},
		record: NewSchema(
			smirksAttr(smirks.Angle),
			idAttr(),
			parentIDAttr(),
			Attr("angle").WithUnit(uAngle),
			Attr("k").WithUnit(uAngleK),
		),
	}
}

func newAngleHandler(attrs map[string]interface{}, opts Options) (Handler, error) {
	base, err := newBaseHandler(angleSpec(), attrs, opts)
	if err != nil {
		return nil, err
	}
	return &AngleHandler{baseHandler: base}, nil
}

//Assign adds one harmonic term per topological angle. An angle whose three
//pairwise distances are all constrained (as in rigid water) is fully rigid
//already and gets no term.
func (h *AngleHandler) Assign(t *Topology, sys System, ctx *Context) error {
	f := sys.ExistingForce(HarmonicAngleKind)
	if f == nil {
		f = sys.AddForce(HarmonicAngleKind)
	}
	force, ok := f.(AngleForce)
	if !ok {
		return fmt.Errorf("goff: the system's %s force cannot take angle terms", HarmonicAngleKind)
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
		c01, _ := t.Constrained(atoms[0], atoms[1])
		c12, _ := t.Constrained(atoms[1], atoms[2])
		c02, _ := t.Constrained(atoms[0], atoms[2])
		if c01 && c12 && c02 {
			skipped++
			continue
		}
		force.AddAngle(atoms[0], atoms[1], atoms[2],
			entry.Record.Quantity("angle"), entry.Record.Quantity("k"))
	}
	log.Info("angles assigned",
		zap.Int("terms", matches.Len()-skipped),
		zap.Int("constrained", skipped))
	return h.checkAllTermsAssigned(t, tuples3(t.Angles()), matches)
}
