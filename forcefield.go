/*
 * forcefield.go, part of goff.
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
	"io"
	"strconv"

	"github.com/rmera/goff/offml"
	"go.uber.org/zap"
)

//supported document format versions
const (
	minDocVersion = 0.3
	maxDocVersion = 0.3
)

//A HandlerFactory builds a section handler from its header attributes.
type HandlerFactory func(attrs map[string]interface{}, opts Options) (Handler, error)

var handlerFactories = map[string]HandlerFactory{}

//RegisterHandler makes a section tag constructible. The built-in sections
//register themselves; external packages may add their own before loading
//documents that use them.
func RegisterHandler(tag string, f HandlerFactory) {
	if _, dup := handlerFactories[tag]; dup {
		panic("goff: handler already registered for tag " + tag)
	}
	handlerFactories[tag] = f
}

func init() {
	RegisterHandler("Constraints", newConstraintHandler)
	RegisterHandler("Bonds", newBondHandler)
	RegisterHandler("Angles", newAngleHandler)
	RegisterHandler("ProperTorsions", newProperTorsionHandler)
	RegisterHandler("ImproperTorsions", newImproperTorsionHandler)
	RegisterHandler("vdW", newVdWHandler)
	RegisterHandler("Electrostatics", newElectrostaticsHandler)
	RegisterHandler("ToolkitAM1BCC", newAM1BCCHandler)
	RegisterHandler("ChargeIncrementModel", newChargeIncrementModelHandler)
}

//Options tunes force-field loading.
type Options struct {
	//AllowCosmetic retains unrecognized attributes instead of failing on
	//them; they survive a round trip back to a document.
	AllowCosmetic bool
	//SkipVersionCheck lets a section header omit its version attribute, in
	//which case the maximum supported version is assumed. A version given
	//explicitly is still checked against the supported range.
	SkipVersionCheck bool
}

//ForceField is a set of section handlers loaded from one or more documents.
//Loading a second document whose tags overlap an existing section merges
//their parameters, provided the headers encode the same physics.
type ForceField struct {
	Version  string
	Top      map[string]interface{} //top-level attributes such as the aromaticity model
	opts     Options
	handlers []Handler //insertion order, kept for stable dependency sorting
	byTag    map[string]Handler
}

//NewForceField returns an empty force field.
func NewForceField(opts Options) *ForceField {
	return &ForceField{
		Version: "0.3",
		Top:     make(map[string]interface{}),
		opts:    opts,
		byTag:   make(map[string]Handler),
	}
}

//Load parses a document from r and merges it in.
func Load(r io.Reader, opts Options) (*ForceField, error) {
	doc, err := offml.Decode(r)
	if err != nil {
		return nil, err
	}
	f := NewForceField(opts)
	if err := f.LoadDocument(doc); err != nil {
		return nil, err
	}
	return f, nil
}

//LoadDocument merges a parsed document into the force field.
func (f *ForceField) LoadDocument(doc *offml.Document) error {
	v, err := strconv.ParseFloat(doc.Version, 64)
	if err != nil || v < minDocVersion || v > maxDocVersion {
		return &VersionError{Tag: "document", Version: doc.Version, Min: minDocVersion, Max: maxDocVersion}
	}
	f.Version = doc.Version
	for k, val := range doc.Top {
		f.Top[k] = val
	}
	for _, sec := range doc.Sections {
		if err := f.loadSection(sec); err != nil {
			return err
		}
	}
	return nil
}

func (f *ForceField) loadSection(sec *offml.Section) error {
	factory, ok := handlerFactories[sec.Tag]
	if !ok {
		return fmt.Errorf("goff: no handler registered for section %q", sec.Tag)
	}
	h, err := factory(sec.Attrs, f.opts)
	if err != nil {
		return err
	}
	for _, raw := range sec.Parameters {
		if _, err := h.AddParameter(raw, f.opts.AllowCosmetic); err != nil {
			return err
		}
	}
	existing, merged := f.byTag[sec.Tag]
	if !merged {
		f.handlers = append(f.handlers, h)
		f.byTag[sec.Tag] = h
		return nil
	}
	//same tag twice: the headers must agree, then the incoming records
	//simply go to the end, where they take override priority
	if err := existing.CheckCompatibility(h); err != nil {
		return err
	}
	existing.Parameters().Extend(h.Parameters())
	log.Debug("sections merged",
		zap.String("tag", sec.Tag),
		zap.Int("added", h.Parameters().Len()))
	return nil
}

//AddHandler creates an empty section programmatically.
func (f *ForceField) AddHandler(tag string, attrs map[string]interface{}) (Handler, error) {
	if _, dup := f.byTag[tag]; dup {
		return nil, fmt.Errorf("goff: the force field already has a %s section", tag)
	}
	factory, ok := handlerFactories[tag]
	if !ok {
		return nil, fmt.Errorf("goff: no handler registered for section %q", tag)
	}
	if attrs == nil {
		attrs = map[string]interface{}{}
	}
	if _, ok := attrs["version"]; !ok {
		attrs["version"] = "0.3"
	}
	h, err := factory(attrs, f.opts)
	if err != nil {
		return nil, err
	}
	f.handlers = append(f.handlers, h)
	f.byTag[tag] = h
	return h, nil
}

//Handler returns the section with the given tag, or nil.
func (f *ForceField) Handler(tag string) Handler { return f.byTag[tag] }

//Tags returns the section tags in execution order.
func (f *ForceField) Tags() ([]string, error) {
	ordered, err := f.sorted()
	if err != nil {
		return nil, err
	}
	tags := make([]string, len(ordered))
	for i, h := range ordered {
		tags[i] = h.Tag()
	}
	return tags, nil
}

//sorted returns the handlers in an order that satisfies every declared
//dependency, keeping insertion order among unconstrained peers. Declared
//dependencies on sections the force field does not carry are ignored.
func (f *ForceField) sorted() ([]Handler, error) {
	indegree := make(map[string]int, len(f.handlers))
	after := make(map[string][]string) //tag -> tags that must wait for it
	for _, h := range f.handlers {
		indegree[h.Tag()] = 0
	}
	for _, h := range f.handlers {
		for _, dep := range h.Dependencies() {
			if _, present := indegree[dep]; !present {
				continue
			}
			after[dep] = append(after[dep], h.Tag())
			indegree[h.Tag()]++
		}
	}
	var out []Handler
	done := make(map[string]bool)
	for len(out) < len(f.handlers) {
		progressed := false
		for _, h := range f.handlers {
			tag := h.Tag()
			if done[tag] || indegree[tag] > 0 {
				continue
			}
			out = append(out, h)
			done[tag] = true
			for _, w := range after[tag] {
				indegree[w]--
			}
			progressed = true
		}
		if !progressed {
			return nil, fmt.Errorf("goff: section dependencies form a cycle")
		}
	}
	return out, nil
}

//AssignParameters types the topology and fills the system: first every
//section's Assign in dependency order, then every section's Postprocess in
//the same order. Any failure aborts the whole run; there is no partial
//success.
func (f *ForceField) AssignParameters(t *Topology, sys System, ctx *Context) error {
	if ctx == nil {
		ctx = &Context{}
	}
	ordered, err := f.sorted()
	if err != nil {
		return err
	}
	ctx.sections = f.byTag
	for _, h := range ordered {
		if err := h.Assign(t, sys, ctx); err != nil {
			return err
		}
	}
	for _, h := range ordered {
		if err := h.Postprocess(t, sys, ctx); err != nil {
			return err
		}
	}
	return nil
}

//ToDocument serializes the force field, sections in execution order.
func (f *ForceField) ToDocument(discardCosmetic bool) (*offml.Document, error) {
	ordered, err := f.sorted()
	if err != nil {
		return nil, err
	}
	doc := &offml.Document{Version: f.Version, Top: make(map[string]interface{})}
	for k, v := range f.Top {
		doc.Top[k] = v
	}
	for _, h := range ordered {
		attrs, params := h.ToMap(discardCosmetic)
		doc.Sections = append(doc.Sections, &offml.Section{
			Tag:        h.Tag(),
			Attrs:      attrs,
			Parameters: params,
		})
	}
	return doc, nil
}

//Save writes the force field to w as a document.
func (f *ForceField) Save(w io.Writer, discardCosmetic bool) error {
	doc, err := f.ToDocument(discardCosmetic)
	if err != nil {
		return err
	}
	return offml.Encode(w, doc)
}
