/*
 * record.go, part of goff.
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
)

//smirksAttr builds the pattern attribute for a record of the given valence
//class: setting it validates the pattern's shape immediately.
func smirksAttr(v smirks.Valence) *Attribute {
	return Attr("smirks").WithConverter(func(raw interface{}) (interface{}, error) {
		s, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("pattern must be a string, got %T", raw)
		}
		if err := smirks.Validate(s, v); err != nil {
			return nil, err
		}
		return s, nil
	})
}

//idAttr is the optional identifier every record may carry; parentIDAttr
//points at the record this one was derived from during parameter fitting.
func idAttr() *Attribute {
	return Attr("id").WithDefault(nil).WithConverter(ToString)
}

func parentIDAttr() *Attribute {
	return Attr("parent_id").WithDefault(nil).WithConverter(ToString)
}

//Record is one typed force-field parameter: a chemical pattern plus the
//physical attributes its section's schema defines.
type Record struct {
	*Block
	valence smirks.Valence
}

//NewRecord validates raw input into a record. The schema must contain a
//smirks attribute (use smirksAttr).
func NewRecord(schema *Schema, valence smirks.Valence, raw map[string]interface{}, allowCosmetic bool) (*Record, error) {
	b, err := NewBlock(schema, raw, allowCosmetic)
	if err != nil {
		return nil, err
	}
	return &Record{Block: b, valence: valence}, nil
}

//SMIRKS returns the record's chemical pattern.
func (r *Record) SMIRKS() string { return r.Str("smirks") }

//ID returns the record's identifier, empty when it has none.
func (r *Record) ID() string { return r.Str("id") }

//Valence returns the record's valence class.
func (r *Record) Valence() smirks.Valence { return r.valence }

//RecordList is an ordered list of records. Order is meaningful: during
//typing, later records override earlier ones on the same chemical
//environment.
type RecordList struct {
	recs []*Record
}

//Len returns the number of records.
func (l *RecordList) Len() int { return len(l.recs) }

//At returns the record at position i.
func (l *RecordList) At(i int) *Record { return l.recs[i] }

//All returns the records in order. The slice is shared; do not reorder it.
func (l *RecordList) All() []*Record { return l.recs }

//Index returns the position of the first record with the given pattern, or
//-1.
func (l *RecordList) Index(pattern string) int {
	for i, r := range l.recs {
		if r.SMIRKS() == pattern {
			return i
		}
	}
	return -1
}

//Find returns the first record with the given pattern, or nil.
func (l *RecordList) Find(pattern string) *Record {
	if i := l.Index(pattern); i >= 0 {
		return l.recs[i]
	}
	return nil
}

//Lookup returns the first record with the given pattern, failing with a
//NotFoundError when the list has none.
func (l *RecordList) Lookup(pattern string) (*Record, error) {
	if r := l.Find(pattern); r != nil {
		return r, nil
	}
	return nil, &NotFoundError{SMIRKS: pattern}
}

//FindID returns the first record with the given id, or nil.
func (l *RecordList) FindID(id string) *Record {
	for _, r := range l.recs {
		if r.ID() == id {
			return r
		}
	}
	return nil
}

//Append adds records at the end (highest priority).
func (l *RecordList) Append(recs ...*Record) {
	l.recs = append(l.recs, recs...)
}

//Insert places a record at position i, shifting the rest.
func (l *RecordList) Insert(i int, r *Record) error {
	if i < 0 || i > len(l.recs) {
		return fmt.Errorf("goff: insert position %d out of range [0, %d]", i, len(l.recs))
	}
	l.recs = append(l.recs, nil)
	copy(l.recs[i+1:], l.recs[i:])
	l.recs[i] = r
	return nil
}

//Remove deletes the first record with the given pattern.
func (l *RecordList) Remove(pattern string) error {
	i := l.Index(pattern)
	if i < 0 {
		return &NotFoundError{SMIRKS: pattern}
	}
	return l.RemoveAt(i)
}

//RemoveAt deletes the record at position i.
func (l *RecordList) RemoveAt(i int) error {
	if i < 0 || i >= len(l.recs) {
		return fmt.Errorf("goff: remove position %d out of range [0, %d)", i, len(l.recs))
	}
	l.recs = append(l.recs[:i], l.recs[i+1:]...)
	return nil
}

//Extend appends every record of another list.
func (l *RecordList) Extend(other *RecordList) {
	l.recs = append(l.recs, other.recs...)
}

//ToList serializes every record in order.
func (l *RecordList) ToList(discardCosmetic bool) []map[string]interface{} {
	out := make([]map[string]interface{}, len(l.recs))
	for i, r := range l.recs {
		out[i] = r.ToMap(discardCosmetic)
	}
	return out
}
