/*
 * impropers.go, part of goff.
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

//ImproperTorsionHandler applies the ImproperTorsions section. An improper is
//centered on its second tagged atom; every term is applied on the three
//paths around the trefoil of the outer atoms, with k divided accordingly.
type ImproperTorsionHandler struct {
	*baseHandler
}

func improperTorsionSpec() *handlerSpec {
	return &handlerSpec{
		tag:        "ImproperTorsions",
		kindName:   "ImproperTorsionType",
		valence:    smirks.ImproperTorsion,
		minVersion: 0.3,
		maxVersion: 0.3,
		header: NewSchema(
			versionAttr(),
			Attr("potential").WithDefault(cosineTorsionPotential).WithConverter(OneOf(cosineTorsionPotential)),
			Attr("default_idivf").WithDefault("auto").WithConverter(FloatOrAuto),
		),
		compatAttrs: []string{"potential", "default_idivf"},
		record:      torsionRecordSchema(smirks.ImproperTorsion),
	}
}

func newImproperTorsionHandler(attrs map[string]interface{}, opts Options) (Handler, error) {
	base, err := newBaseHandler(improperTorsionSpec(), attrs, opts)
	if err != nil {
		return nil, err
	}
	return &ImproperTorsionHandler{baseHandler: base}, nil
}

//Assign adds the trefoil terms of every matched improper. An idivf of
//'auto' resolves to 3, one share per trefoil path. Impropers are additions
//the force field opts into per pattern, so there is no completeness audit:
//a topology's unmatched improper candidates simply get no term.
func (h *ImproperTorsionHandler) Assign(t *Topology, sys System, ctx *Context) error {
	force, err := torsionForce(sys)
	if err != nil {
		return err
	}
	matches, err := h.findMatches(t, ctx.Matcher)
	if err != nil {
		return err
	}
	defaultIdivf := h.head.Get("default_idivf")
	warnedAuto := false
	for _, key := range matches.Keys() {
		entry := matches.Entry(key)
		//the match's own atom order decides the trefoil, not the canonical
		//key: the matcher reported the central atom in tag position 2
		atoms := entry.Match.TopologyAtoms
		if err := h.checkConnectivity(t, entry.Match); err != nil {
			return err
		}
		terms, err := torsionTerms(entry.Record, defaultIdivf)
		if err != nil {
			return fmt.Errorf("goff: section %s: %w", h.Tag(), err)
		}
		central := atoms[1]
		others := []int{atoms[0], atoms[2], atoms[3]}
		for _, term := range terms {
			div, isFloat := term.idivf.(float64)
			if !isFloat {
				div = 3
				if !warnedAuto {
					log.Warn("improper idivf 'auto' resolved to 3, one share per trefoil path",
						zap.String("section", h.Tag()))
					warnedAuto = true
				}
			}
			k := term.k.Scale(1 / div)
			for _, p := range [][3]int{{0, 1, 2}, {1, 2, 0}, {2, 0, 1}} {
				force.AddTorsion(central, others[p[0]], others[p[1]], others[p[2]],
					term.periodicity, term.phase, &k)
			}
		}
	}
	log.Info("improper torsions assigned", zap.Int("impropers", matches.Len()))
	return nil
}
