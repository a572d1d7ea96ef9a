/*
 * nonbonded.go, part of goff.
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
	"math"

	"github.com/rmera/goff/smirks"
	"github.com/rmera/goff/units"
	"go.uber.org/zap"
)

//vdWHandler applies the vdW section: per-atom Lennard-Jones parameters and
//the long-range treatment of the dispersion interaction. It owns the shared
//nonbonded force; the Electrostatics and charge sections fill in the rest.
type vdWHandler struct {
	*baseHandler
}

func vdwSpec() *handlerSpec {
	return &handlerSpec{
		tag:        "vdW",
		kindName:   "vdWType",
		valence:    smirks.Atom,
		minVersion: 0.3,
		maxVersion: 0.3,
		header: NewSchema(
			versionAttr(),
			Attr("potential").WithDefault("Lennard-Jones-12-6").WithConverter(OneOf("Lennard-Jones-12-6")),
			Attr("combining_rules").WithDefault("Lorentz-Berthelot").WithConverter(OneOf("Lorentz-Berthelot")),
			Attr("scale12").WithDefault(0.0).WithConverter(ToFloat),
			Attr("scale13").WithDefault(0.0).WithConverter(ToFloat),
			Attr("scale14").WithDefault(0.5).WithConverter(ToFloat),
			Attr("scale15").WithDefault(1.0).WithConverter(ToFloat),
			Attr("cutoff").WithDefault(qty(9, "angstrom")).WithUnit(uLength),
			Attr("switch_width").WithDefault(qty(1, "angstrom")).WithUnit(uLength),
			Attr("method").WithDefault("cutoff").WithConverter(OneOf("cutoff", "PME")),
		),
		compatAttrs: []string{"potential", "combining_rules", "method", "scale12", "scale13", "scale14", "scale15", "cutoff"},
		record: NewSchema(
			smirksAttr(smirks.Atom),
			idAttr(),
			parentIDAttr(),
			Attr("epsilon").WithUnit(uEnergy),
			Attr("sigma").WithDefault(nil).WithUnit(uLength),
			Attr("rmin_half").WithDefault(nil).WithUnit(uLength),
		),
		recordHook: func(r *Record) error {
			sigma, rmin := r.Has("sigma"), r.Has("rmin_half")
			if sigma == rmin {
				return fmt.Errorf("exactly one of sigma and rmin_half must be given")
			}
			return nil
		},
	}
}

func newVdWHandler(attrs map[string]interface{}, opts Options) (Handler, error) {
	base, err := newBaseHandler(vdwSpec(), attrs, opts)
	if err != nil {
		return nil, err
	}
	h := &vdWHandler{baseHandler: base}
	if err := h.validateHeader(); err != nil {
		return nil, err
	}
	return h, nil
}

//validateHeader rejects scaling factors the engine cannot honor: only the
//1-4 factor is adjustable, 1-2 and 1-3 interactions are always excluded and
//1-5 never scaled.
func (h *vdWHandler) validateHeader() error {
	if s := h.head.Float("scale12"); s != 0 {
		return fmt.Errorf("goff: section %s: scale12 must be 0, got %g", h.Tag(), s)
	}
	if s := h.head.Float("scale13"); s != 0 {
		return fmt.Errorf("goff: section %s: scale13 must be 0, got %g", h.Tag(), s)
	}
	if s := h.head.Float("scale15"); s != 1 {
		return fmt.Errorf("goff: section %s: scale15 must be 1, got %g", h.Tag(), s)
	}
	if h.head.Quantity("cutoff") == nil {
		return fmt.Errorf("goff: section %s: method %s requires a cutoff distance", h.Tag(), h.head.Str("method"))
	}
	return nil
}

//sigmaOf converts rmin_half records to sigma: rmin = 2^(1/6)·sigma, so
//sigma = 2·rmin_half/2^(1/6).
func sigmaOf(r *Record) *units.Quantity {
	if s := r.Quantity("sigma"); s != nil {
		return s
	}
	s := r.Quantity("rmin_half").Scale(2 / math.Pow(2, 1.0/6.0))
	return &s
}

//Assign creates (or reuses) the nonbonded force, resolves its long-range
//method against the box, creates one particle per atom, and writes the
//Lennard-Jones parameters. Every atom of the topology must be typed.
func (h *vdWHandler) Assign(t *Topology, sys System, ctx *Context) error {
	force, err := nonbondedForce(sys)
	if err != nil {
		return err
	}
	if err := h.resolveMethod(t, force); err != nil {
		return err
	}
	for force.NParticles() < t.NAtoms() {
		force.AddParticle(0, nil, nil)
	}
	matches, err := h.findMatches(t, ctx.Matcher)
	if err != nil {
		return err
	}
	for _, key := range matches.Keys() {
		entry := matches.Entry(key)
		atom := key.tuple()[0]
		charge, _, _ := force.Particle(atom)
		force.SetParticle(atom, charge, sigmaOf(entry.Record), entry.Record.Quantity("epsilon"))
	}
	log.Info("vdW parameters assigned",
		zap.Int("atoms", matches.Len()),
		zap.Stringer("method", force.Method()))
	atoms := make([][]int, t.NAtoms())
	for i := range atoms {
		atoms[i] = []int{i}
	}
	return h.checkAllTermsAssigned(t, atoms, matches)
}

//resolveMethod picks the long-range treatment from the declared method and
//the box: a nonperiodic system always falls back to no cutoff.
func (h *vdWHandler) resolveMethod(t *Topology, force NonbondedForce) error {
	if !t.Periodic() {
		force.SetMethod(NoCutoff)
		return nil
	}
	cutoff := h.head.Quantity("cutoff")
	switch h.head.Str("method") {
	case "PME":
		force.SetMethod(LJPME)
		force.SetCutoff(cutoff)
	case "cutoff":
		force.SetMethod(PME) //dispersion cut off, electrostatics by particle-mesh Ewald
		force.SetCutoff(cutoff)
		if w := h.head.Quantity("switch_width"); w != nil && w.SI() > 0 {
			force.SetSwitching(true, w)
		}
	}
	return nil
}

//ElectrostaticsHandler applies the Electrostatics section: the long-range
//treatment of charges and the 1-4 scaling. Charges themselves come from a
//charge section; in postprocess, once those are final, this section builds
//the bonded exception list.
type ElectrostaticsHandler struct {
	*baseHandler
}

func electrostaticsSpec() *handlerSpec {
	return &handlerSpec{
		tag:        "Electrostatics",
		kindName:   "ElectrostaticsType",
		valence:    smirks.Atom,
		deps:       []string{"vdW", "ToolkitAM1BCC"},
		minVersion: 0.3,
		maxVersion: 0.3,
		header: NewSchema(
			versionAttr(),
			Attr("method").WithDefault("PME").WithConverter(OneOf("PME", "Coulomb", "reaction-field")),
			Attr("scale12").WithDefault(0.0).WithConverter(ToFloat),
			Attr("scale13").WithDefault(0.0).WithConverter(ToFloat),
			Attr("scale14").WithDefault(0.833333).WithConverter(ToFloat),
			Attr("scale15").WithDefault(1.0).WithConverter(ToFloat),
			Attr("cutoff").WithDefault(qty(9, "angstrom")).WithUnit(uLength),
			Attr("switch_width").WithDefault(qty(0, "angstrom")).WithUnit(uLength),
		),
		compatAttrs: []string{"method", "scale12", "scale13", "scale14", "scale15", "cutoff", "switch_width"},
		record:      NewSchema(smirksAttr(smirks.Atom), idAttr(), parentIDAttr()),
	}
}

func newElectrostaticsHandler(attrs map[string]interface{}, opts Options) (Handler, error) {
	base, err := newBaseHandler(electrostaticsSpec(), attrs, opts)
	if err != nil {
		return nil, err
	}
	h := &ElectrostaticsHandler{baseHandler: base}
	if err := h.validateHeader(); err != nil {
		return nil, err
	}
	return h, nil
}

func (h *ElectrostaticsHandler) validateHeader() error {
	if s := h.head.Float("scale12"); s != 0 {
		return fmt.Errorf("goff: section %s: scale12 must be 0, got %g", h.Tag(), s)
	}
	if s := h.head.Float("scale13"); s != 0 {
		return fmt.Errorf("goff: section %s: scale13 must be 0, got %g", h.Tag(), s)
	}
	if s := h.head.Float("scale15"); s != 1 {
		return fmt.Errorf("goff: section %s: scale15 must be 1, got %g", h.Tag(), s)
	}
	if h.head.Str("method") == "reaction-field" {
		return &NotImplementedError{Feature: "reaction-field electrostatics"}
	}
	if w := h.head.Quantity("switch_width"); w != nil && w.SI() != 0 {
		return fmt.Errorf("goff: section %s: an electrostatic switching width is not supported", h.Tag())
	}
	if h.head.Str("method") == "PME" && h.head.Quantity("cutoff") == nil {
		return fmt.Errorf("goff: section %s: method PME requires a cutoff distance", h.Tag())
	}
	return nil
}

//Assign reconciles the electrostatic method with whatever the vdW section
//set on the shared force. A periodic box requires Ewald treatment; LJPME
//already covers the charges and is left alone.
func (h *ElectrostaticsHandler) Assign(t *Topology, sys System, ctx *Context) error {
	force, err := nonbondedForce(sys)
	if err != nil {
		return err
	}
	method := h.head.Str("method")
	if force.Method() == LJPME && method != "PME" {
		return &IncompatibleParameterError{
			Tag:  h.Tag(),
			Attr: "method",
			This: method, Other: "PME (required once vdW uses LJPME)",
		}
	}
	if !t.Periodic() {
		force.SetMethod(NoCutoff)
		return nil
	}
	switch method {
	case "PME":
		if force.Method() != LJPME {
			force.SetMethod(PME)
			force.SetCutoff(h.head.Quantity("cutoff"))
		}
	case "Coulomb":
		return &NotImplementedError{Feature: "plain Coulomb electrostatics under periodic boundary conditions"}
	}
	return nil
}

//Postprocess builds the 1-2/1-3 exclusions and scaled 1-4 exceptions from
//the topology's bonds. It runs in the postprocess phase because the
//exception charges derive from the final particle charges, which the charge
//section's own postprocess may still adjust.
func (h *ElectrostaticsHandler) Postprocess(t *Topology, sys System, ctx *Context) error {
	force, err := nonbondedForce(sys)
	if err != nil {
		return err
	}
	lj14 := 0.5
	if vdw := ctx.Section("vdW"); vdw != nil {
		lj14 = vdw.Header().Float("scale14")
	}
	force.CreateExceptions(t.Bonds(), h.head.Float("scale14"), lj14)
	return nil
}

//nonbondedForce fetches or creates the system's shared nonbonded force.
func nonbondedForce(sys System) (NonbondedForce, error) {
	f := sys.ExistingForce(NonbondedKind)
	if f == nil {
		f = sys.AddForce(NonbondedKind)
	}
	nf, ok := f.(NonbondedForce)
	if !ok {
		return nil, fmt.Errorf("goff: the system's %s force cannot take nonbonded parameters", NonbondedKind)
	}
	return nf, nil
}
