/*
 * charges.go, part of goff.
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

//AM1BCCHandler applies the ToolkitAM1BCC section. Charge assignment is
//two-pass: Assign gives every atom a base partial charge (taken from a
//pre-charged isomorphic molecule when one is supplied, computed by the
//external charge capability otherwise), and Postprocess applies the
//section's bond charge corrections, shifting charge along each matched
//bond. The correction pass must wait until every section's Assign has run,
//because the shared nonbonded force has to exist and carry all particles.
type AM1BCCHandler struct {
	*baseHandler
}

func am1bccSpec() *handlerSpec {
	return &handlerSpec{
		tag:        "ToolkitAM1BCC",
		kindName:   "ChargeIncrementType",
		valence:    smirks.Bond,
		deps:       []string{"vdW"},
		minVersion: 0.3,
		maxVersion: 0.3,
		header:     NewSchema(versionAttr()),
		record: NewSchema(
			smirksAttr(smirks.Bond),
			idAttr(),
			parentIDAttr(),
			Attr("increment").WithUnit(uECharge),
		),
	}
}

func newAM1BCCHandler(attrs map[string]interface{}, opts Options) (Handler, error) {
	base, err := newBaseHandler(am1bccSpec(), attrs, opts)
	if err != nil {
		return nil, err
	}
	return &AM1BCCHandler{baseHandler: base}, nil
}

//Assign writes base partial charges into the nonbonded force, one molecule
//at a time.
func (h *AM1BCCHandler) Assign(t *Topology, sys System, ctx *Context) error {
	force, err := nonbondedForce(sys)
	if err != nil {
		return err
	}
	for force.NParticles() < t.NAtoms() {
		force.AddParticle(0, nil, nil)
	}
	offset := 0
	for _, mol := range t.Molecules() {
		charges, src, err := h.baseCharges(mol, ctx)
		if err != nil {
			return err
		}
		if len(charges) != len(mol.Atoms) {
			return fmt.Errorf("goff: section %s: got %d charges for a molecule of %d atoms",
				h.Tag(), len(charges), len(mol.Atoms))
		}
		for i, q := range charges {
			_, sigma, epsilon := force.Particle(offset + i)
			force.SetParticle(offset+i, q, sigma, epsilon)
		}
		log.Debug("base charges assigned",
			zap.String("source", src),
			zap.Int("atoms", len(mol.Atoms)))
		offset += len(mol.Atoms)
	}
	return nil
}

//baseCharges resolves one molecule's partial charges: the molecule's own,
//else a pre-charged isomorphic molecule from the context, else the external
//charge capability.
func (h *AM1BCCHandler) baseCharges(mol *Molecule, ctx *Context) ([]float64, string, error) {
	if mol.PartialCharges != nil {
		return mol.PartialCharges, "molecule", nil
	}
	for _, ref := range ctx.ChargeMolecules {
		mapping := mol.IsomorphicMapping(ref)
		if mapping == nil {
			continue
		}
		if ref.PartialCharges == nil {
			continue
		}
		charges := make([]float64, len(mol.Atoms))
		for i, j := range mapping {
			charges[i] = ref.PartialCharges[j]
		}
		return charges, "isomorphic reference", nil
	}
	if ctx.Charges != nil {
		charges, err := ctx.Charges.PartialCharges(mol)
		if err != nil {
			return nil, "", fmt.Errorf("goff: section %s: computing charges: %w", h.Tag(), err)
		}
		return charges, "charge provider", nil
	}
	return nil, "", fmt.Errorf("goff: section %s: no charges available for a molecule: it carries none, matches no pre-charged molecule, and no charge provider is set", h.Tag())
}

//Postprocess applies the bond charge corrections: for every matched bond,
//the increment moves from the first tagged atom to the second.
func (h *AM1BCCHandler) Postprocess(t *Topology, sys System, ctx *Context) error {
	if h.params.Len() == 0 {
		return nil
	}
	force, err := nonbondedForce(sys)
	if err != nil {
		return err
	}
	matches, err := h.findMatches(t, ctx.Matcher)
	if err != nil {
		return err
	}
	for _, key := range matches.Keys() {
		entry := matches.Entry(key)
		//tag order carries the sign, so use the match, not the canonical key
		atoms := entry.Match.TopologyAtoms
		inc, err := entry.Record.Quantity("increment").In(*uECharge)
		if err != nil {
			return fmt.Errorf("goff: section %s: %w", h.Tag(), err)
		}
		c0, s0, e0 := force.Particle(atoms[0])
		c1, s1, e1 := force.Particle(atoms[1])
		force.SetParticle(atoms[0], c0-inc, s0, e0)
		force.SetParticle(atoms[1], c1+inc, s1, e1)
	}
	log.Info("bond charge corrections applied", zap.Int("bonds", matches.Len()))
	return nil
}

//newChargeIncrementModelHandler rejects the ChargeIncrementModel section.
//Supporting it needs per-conformer charge generation that no current
//backend provides.
func newChargeIncrementModelHandler(map[string]interface{}, Options) (Handler, error) {
	return nil, &NotImplementedError{Feature: "the ChargeIncrementModel section"}
}
