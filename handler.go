/*
 * handler.go, part of goff.
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
	"sort"
	"strconv"

	"github.com/rmera/goff/smirks"
	"github.com/rmera/goff/units"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats/scalar"
)

//A Handler owns one force section: its header attributes, its parameter
//records, and the two-phase application of those parameters to a system.
type Handler interface {
	Tag() string
	Version() string
	Dependencies() []string
	Header() *Block
	Parameters() *RecordList
	//AddParameter validates and appends a record.
	AddParameter(raw map[string]interface{}, allowCosmetic bool) (*Record, error)
	//CheckCompatibility decides whether another section with the same tag can
	//be merged into this one.
	CheckCompatibility(other Handler) error
	//Assign types the topology and adds force terms to the system.
	Assign(t *Topology, sys System, ctx *Context) error
	//Postprocess runs after every section's Assign, for work that needs the
	//whole system in place.
	Postprocess(t *Topology, sys System, ctx *Context) error
	//ToMap serializes the header and the records.
	ToMap(discardCosmetic bool) (map[string]interface{}, []map[string]interface{})
}

//atomKey is the canonical identity of a chemical environment: n tagged atom
//indices, ordered so that equivalent tuples collide.
type atomKey struct {
	n int
	a [4]int
}

func (k atomKey) tuple() []int {
	return append([]int(nil), k.a[:k.n]...)
}

//canonicalKey maps a tagged atom tuple to its canonical key. For atoms,
//bonds, angles and proper torsions, the tuple and its reverse are the same
//term, so the lexicographically smaller wins. An improper keeps its central
//atom (position 1) fixed and sorts the other three, since all orderings of
//the outer atoms describe the same trefoil.
func canonicalKey(atoms []int, v smirks.Valence) atomKey {
	k := atomKey{n: len(atoms)}
	copy(k.a[:], atoms)
	if v == smirks.ImproperTorsion {
		outer := []int{k.a[0], k.a[2], k.a[3]}
		sort.Ints(outer)
		k.a[0], k.a[2], k.a[3] = outer[0], outer[1], outer[2]
		return k
	}
	for i, j := 0, k.n-1; i < j; i, j = i+1, j-1 {
		if k.a[i] != k.a[j] {
			if k.a[i] > k.a[j] {
				//reverse in place
				for x, y := 0, k.n-1; x < y; x, y = x+1, y-1 {
					k.a[x], k.a[y] = k.a[y], k.a[x]
				}
			}
			break
		}
	}
	return k
}

//MatchEntry is the winning parameter for one chemical environment, along
//with the environment as the winning pattern matched it (tag order matters
//to torsions, where atom 1 vs atom 4 changes nothing, but to impropers it
//does).
type MatchEntry struct {
	Record *Record
	Match  *EnvironmentMatch
}

//MatchSet maps canonicalized environments to their winning parameters.
type MatchSet struct {
	m map[atomKey]*MatchEntry
}

//Len returns the number of matched environments.
func (s *MatchSet) Len() int { return len(s.m) }

//Get returns the entry for the environment with the given tagged atoms.
func (s *MatchSet) Get(atoms []int, v smirks.Valence) *MatchEntry {
	return s.m[canonicalKey(atoms, v)]
}

//Keys returns the canonical keys in sorted order, so iteration is
//deterministic.
func (s *MatchSet) Keys() []atomKey {
	keys := make([]atomKey, 0, len(s.m))
	for k := range s.m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].n != keys[j].n {
			return keys[i].n < keys[j].n
		}
		for x := 0; x < keys[i].n; x++ {
			if keys[i].a[x] != keys[j].a[x] {
				return keys[i].a[x] < keys[j].a[x]
			}
		}
		return false
	})
	return keys
}

//Entry returns the entry for a canonical key.
func (s *MatchSet) Entry(k atomKey) *MatchEntry { return s.m[k] }

//handlerSpec is the static description of a section kind.
type handlerSpec struct {
	tag         string
	kindName    string //record kind in error messages, e.g. "BondType"
	valence     smirks.Valence
	deps        []string
	minVersion  float64
	maxVersion  float64
	header      *Schema
	record      *Schema
	compatAttrs []string //header attributes that must agree to merge sections
	//recordHook, when set, runs extra validation on each new record
	recordHook func(*Record) error
}

//baseHandler implements the section machinery every concrete handler shares.
type baseHandler struct {
	spec   *handlerSpec
	head   *Block
	params *RecordList
}

//newBaseHandler validates the header attributes and checks the section
//version against the supported range. With SkipVersionCheck, a header that
//omits its version gets the maximum supported one; a version given
//explicitly is still checked.
func newBaseHandler(spec *handlerSpec, attrs map[string]interface{}, opts Options) (*baseHandler, error) {
	if opts.SkipVersionCheck {
		if _, ok := attrs["version"]; !ok {
			patched := make(map[string]interface{}, len(attrs)+1)
			for k, v := range attrs {
				patched[k] = v
			}
			patched["version"] = strconv.FormatFloat(spec.maxVersion, 'g', -1, 64)
			attrs = patched
		}
	}
	head, err := NewBlock(spec.header, attrs, opts.AllowCosmetic)
	if err != nil {
		return nil, fmt.Errorf("goff: section %s: %w", spec.tag, err)
	}
	h := &baseHandler{spec: spec, head: head, params: &RecordList{}}
	if err := h.checkVersion(); err != nil {
		return nil, err
	}
	return h, nil
}

func (h *baseHandler) checkVersion() error {
	vs := h.head.Str("version")
	v, err := strconv.ParseFloat(vs, 64)
	if err != nil {
		return fmt.Errorf("goff: section %s: bad version %q", h.spec.tag, vs)
	}
	if v < h.spec.minVersion || v > h.spec.maxVersion {
		return &VersionError{Tag: h.spec.tag, Version: vs, Min: h.spec.minVersion, Max: h.spec.maxVersion}
	}
	return nil
}

func (h *baseHandler) Tag() string            { return h.spec.tag }
func (h *baseHandler) Version() string        { return h.head.Str("version") }
func (h *baseHandler) Dependencies() []string { return h.spec.deps }
func (h *baseHandler) Header() *Block         { return h.head }
func (h *baseHandler) Parameters() *RecordList {
	return h.params
}

//AddParameter validates raw input into a record and appends it. A record
//physically identical to an existing one is rejected.
func (h *baseHandler) AddParameter(raw map[string]interface{}, allowCosmetic bool) (*Record, error) {
	r, err := NewRecord(h.spec.record, h.spec.valence, raw, allowCosmetic)
	if err != nil {
		return nil, fmt.Errorf("goff: section %s: %w", h.spec.tag, err)
	}
	if h.spec.recordHook != nil {
		if err := h.spec.recordHook(r); err != nil {
			return nil, fmt.Errorf("goff: section %s: pattern %q: %w", h.spec.tag, r.SMIRKS(), err)
		}
	}
	for _, existing := range h.params.All() {
		if existing.physicalEqual(r.Block) {
			return nil, &DuplicateParameterError{Tag: h.spec.tag, SMIRKS: r.SMIRKS()}
		}
	}
	h.params.Append(r)
	return r, nil
}

//compatTolerance is the absolute tolerance for numeric header attributes
//when deciding whether two sections can merge. Quantities are compared in
//the unit this section declares for the attribute.
const compatTolerance = 1e-5

//CheckCompatibility compares the header attributes named by the section
//kind: strings must match exactly, numbers and quantities within tolerance.
func (h *baseHandler) CheckCompatibility(other Handler) error {
	oh := other.Header()
	for _, name := range h.spec.compatAttrs {
		mine, theirs := h.head.Get(name), oh.Get(name)
		if compatibleValues(mine, theirs) {
			continue
		}
		return &IncompatibleParameterError{
			Tag:   h.spec.tag,
			Attr:  name,
			This:  fmt.Sprintf("%v", serializeValue(mine)),
			Other: fmt.Sprintf("%v", serializeValue(theirs)),
		}
	}
	return nil
}

func compatibleValues(x, y interface{}) bool {
	switch a := x.(type) {
	case float64:
		b, ok := y.(float64)
		if !ok {
			return false
		}
		return scalar.EqualWithinAbs(a, b, compatTolerance)
	case *units.Quantity:
		b, ok := y.(*units.Quantity)
		if !ok || !a.Compatible(*b) {
			return false
		}
		//tolerance scaled to the declared unit, so angstroms and nanometers
		//are judged at comparable precision
		return scalar.EqualWithinAbs(a.SI(), b.SI(), compatTolerance*a.UnitScale())
	}
	return valueEqual(x, y)
}

//findMatches runs every record's pattern over the topology, in declaration
//order, so a later record silently overrides an earlier one on the same
//environment.
func (h *baseHandler) findMatches(t *Topology, m Matcher) (*MatchSet, error) {
	if m == nil {
		return nil, fmt.Errorf("goff: section %s: no pattern matcher available", h.spec.tag)
	}
	set := &MatchSet{m: make(map[atomKey]*MatchEntry)}
	for _, r := range h.params.All() {
		matches, err := m.Matches(t, r.SMIRKS())
		if err != nil {
			return nil, fmt.Errorf("goff: section %s: pattern %q: %w", h.spec.tag, r.SMIRKS(), err)
		}
		for _, match := range matches {
			key := canonicalKey(match.TopologyAtoms, h.spec.valence)
			set.m[key] = &MatchEntry{Record: r, Match: match}
		}
		log.Debug("pattern matched",
			zap.String("section", h.spec.tag),
			zap.String("smirks", r.SMIRKS()),
			zap.Int("matches", len(matches)))
	}
	log.Debug("typing complete",
		zap.String("section", h.spec.tag),
		zap.Int("environments", set.Len()))
	return set, nil
}

//checkConnectivity checks that consecutive tagged atoms of a match are
//bonded in the topology, guarding against a matcher that returns tuples in
//an unexpected order. Impropers check the central atom against the other
//three instead.
func (h *baseHandler) checkConnectivity(t *Topology, match *EnvironmentMatch) error {
	atoms := match.TopologyAtoms
	var pairs [][2]int
	if h.spec.valence == smirks.ImproperTorsion {
		pairs = [][2]int{{0, 1}, {1, 2}, {1, 3}}
	} else {
		for i := 0; i+1 < len(atoms); i++ {
			pairs = append(pairs, [2]int{i, i + 1})
		}
	}
	for _, p := range pairs {
		if !t.IsBonded(atoms[p[0]], atoms[p[1]]) {
			return fmt.Errorf("goff: section %s: match %v has no bond between atoms %d and %d",
				h.spec.tag, atoms, atoms[p[0]], atoms[p[1]])
		}
	}
	return nil
}

//checkAllTermsAssigned audits a completed assignment: every topological term
//of the section's valence class must have received a parameter, and no
//matched environment may lack a topological term. Both defect lists go into
//a single error.
func (h *baseHandler) checkAllTermsAssigned(t *Topology, expected [][]int, set *MatchSet) error {
	want := make(map[atomKey][]int, len(expected))
	for _, tuple := range expected {
		want[canonicalKey(tuple, h.spec.valence)] = tuple
	}
	var unassigned [][]int
	for _, tuple := range expected {
		if set.m[canonicalKey(tuple, h.spec.valence)] == nil {
			unassigned = append(unassigned, tuple)
		}
	}
	var extra [][]int
	for _, k := range set.Keys() {
		if _, ok := want[k]; !ok {
			extra = append(extra, k.tuple())
		}
	}
	if len(unassigned) == 0 && len(extra) == 0 {
		return nil
	}
	names := make(map[int]string)
	for _, tuples := range [][][]int{unassigned, extra} {
		for _, tuple := range tuples {
			for _, a := range tuple {
				names[a] = t.AtomName(a)
			}
		}
	}
	return &UnassignedValenceError{
		Tag:        h.spec.tag,
		Kind:       h.spec.kindName,
		Unassigned: unassigned,
		Extra:      extra,
		AtomNames:  names,
	}
}

//Postprocess is a no-op for sections without a second phase.
func (h *baseHandler) Postprocess(t *Topology, sys System, ctx *Context) error {
	return nil
}

//ToMap serializes the header attributes and the parameter records.
func (h *baseHandler) ToMap(discardCosmetic bool) (map[string]interface{}, []map[string]interface{}) {
	return h.head.ToMap(discardCosmetic), h.params.ToList(discardCosmetic)
}

//versionAttr is the mandatory first attribute of every section header.
func versionAttr() *Attribute {
	return Attr("version").WithConverter(ToString)
}

//unitOf builds a dimension prototype for attribute declarations; qty builds
//a concrete default value.
func unitOf(expr string) *units.Quantity {
	q := units.MustUnit(expr)
	return &q
}

func qty(v float64, expr string) *units.Quantity {
	q := units.MustQuantity(v, expr)
	return &q
}

//dimension prototypes shared by the physics sections
var (
	uLength  = unitOf("angstrom")
	uBondK   = unitOf("kilocalorie_per_mole/angstrom**2")
	uAngle   = unitOf("degree")
	uAngleK  = unitOf("kilocalorie_per_mole/degree**2")
	uEnergy  = unitOf("kilocalorie_per_mole")
	uECharge = unitOf("elementary_charge")
)

//tuples2 and friends adapt topology enumerations to the generic audit.
func tuples2(in [][2]int) [][]int {
	out := make([][]int, len(in))
	for i, t := range in {
		out[i] = []int{t[0], t[1]}
	}
	return out
}

func tuples3(in [][3]int) [][]int {
	out := make([][]int, len(in))
	for i, t := range in {
		out[i] = []int{t[0], t[1], t[2]}
	}
	return out
}

func tuples4(in [][4]int) [][]int {
	out := make([][]int, len(in))
	for i, t := range in {
		out[i] = []int{t[0], t[1], t[2], t[3]}
	}
	return out
}
