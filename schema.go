/*
 * schema.go, part of goff.
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
	"reflect"
	"sort"
	"strconv"

	"github.com/rmera/goff/units"
)

//Schema is the ordered set of attributes a block (a parameter record or a
//section header) may carry.
type Schema struct {
	attrs  []*Attribute
	byName map[string]*Attribute
}

//NewSchema builds a schema from attributes, preserving their order.
func NewSchema(attrs ...*Attribute) *Schema {
	s := &Schema{byName: make(map[string]*Attribute)}
	for _, a := range attrs {
		s.add(a)
	}
	return s
}

func (s *Schema) add(a *Attribute) {
	if _, dup := s.byName[a.Name]; dup {
		panic("goff: duplicate attribute " + a.Name) //a schema is program text, not input
	}
	s.attrs = append(s.attrs, a)
	s.byName[a.Name] = a
}

//Extend returns a new schema with extra attributes appended, sharing the
//originals.
func (s *Schema) Extend(attrs ...*Attribute) *Schema {
	out := &Schema{byName: make(map[string]*Attribute)}
	for _, a := range s.attrs {
		out.add(a)
	}
	for _, a := range attrs {
		out.add(a)
	}
	return out
}

//Override returns a new schema where the named attribute is replaced by a
//modified clone, so a derived record type can change a converter or default
//without touching the base.
func (s *Schema) Override(name string, mod func(*Attribute)) *Schema {
	out := &Schema{byName: make(map[string]*Attribute)}
	for _, a := range s.attrs {
		if a.Name == name {
			c := a.clone()
			mod(c)
			out.add(c)
			continue
		}
		out.add(a)
	}
	if _, ok := out.byName[name]; !ok {
		panic("goff: override of unknown attribute " + name)
	}
	return out
}

//Attr returns the named attribute, or nil.
func (s *Schema) Attr(name string) *Attribute { return s.byName[name] }

//Names returns the attribute names in declaration order.
func (s *Schema) Names() []string {
	out := make([]string, len(s.attrs))
	for i, a := range s.attrs {
		out[i] = a.Name
	}
	return out
}

//Block is one instantiated schema: validated attribute values plus any
//cosmetic (unrecognized but tolerated) attributes, kept verbatim so writing
//the block back loses nothing.
type Block struct {
	schema        *Schema
	values        map[string]interface{}
	cosmetic      map[string]interface{}
	cosmeticOrder []string
}

//NewBlock validates raw key-value input against the schema. Indexed
//attributes arrive as name1, name2, ... keys and are folded into slices;
//the numbering must be contiguous from 1, and every indexed attribute
//present must have the same number of entries. Unrecognized keys are fatal
//unless allowCosmetic is set, in which case they are retained as cosmetic
//attributes.
func NewBlock(schema *Schema, raw map[string]interface{}, allowCosmetic bool) (*Block, error) {
	b := &Block{schema: schema, values: make(map[string]interface{}), cosmetic: make(map[string]interface{})}
	consumed := make(map[string]bool)
	nIndexed := -1
	for _, a := range schema.attrs {
		var v interface{}
		var present bool
		if a.Indexed {
			list, keys, err := foldIndexed(a.Name, raw)
			if err != nil {
				return nil, err
			}
			_, scalar := raw[a.Name]
			if scalar && len(keys) > 0 {
				return nil, fmt.Errorf("goff: both %s and %s1 given", a.Name, a.Name)
			}
			if len(keys) > 0 {
				if nIndexed >= 0 && nIndexed != len(list) {
					return nil, fmt.Errorf("goff: indexed attribute %s has %d entries, other indexed attributes have %d", a.Name, len(list), nIndexed)
				}
				nIndexed = len(list)
				v, present = list, true
				for _, k := range keys {
					consumed[k] = true
				}
			} else if scalar {
				v, present = raw[a.Name], true
				consumed[a.Name] = true
			}
		} else if rv, ok := raw[a.Name]; ok {
			v, present = rv, true
			consumed[a.Name] = true
		}
		if !present {
			if !a.HasDefault {
				return nil, fmt.Errorf("goff: required attribute %s is missing", a.Name)
			}
			b.values[a.Name] = a.Default
			continue
		}
		val, err := a.validate(b, v)
		if err != nil {
			return nil, err
		}
		b.values[a.Name] = val
	}
	for k, v := range raw {
		if consumed[k] {
			continue
		}
		if !allowCosmetic {
			return nil, fmt.Errorf("goff: unrecognized attribute %q (pass the cosmetic option to retain it)", k)
		}
		//kept verbatim, whatever the document parsed it as
		b.cosmetic[k] = v
	}
	//deterministic order for cosmetics: document order is lost in a map, so
	//sort by name (the document codec writes record keys canonically anyway)
	for k := range b.cosmetic {
		b.cosmeticOrder = append(b.cosmeticOrder, k)
	}
	sort.Strings(b.cosmeticOrder)
	return b, nil
}

//foldIndexed collects name1, name2, ... from raw, requiring contiguous
//numbering from 1.
func foldIndexed(name string, raw map[string]interface{}) ([]interface{}, []string, error) {
	var list []interface{}
	var keys []string
	for i := 1; ; i++ {
		k := name + strconv.Itoa(i)
		v, ok := raw[k]
		if !ok {
			break
		}
		list = append(list, v)
		keys = append(keys, k)
	}
	//anything like name7 with a gap before it is an unrecognized key and
	//will be caught by the cosmetic check; no extra scan needed here
	if len(list) == 0 {
		return nil, nil, nil
	}
	return list, keys, nil
}

//Set validates and stores a new value for the named attribute.
func (b *Block) Set(name string, v interface{}) error {
	a := b.schema.Attr(name)
	if a == nil {
		return fmt.Errorf("goff: no attribute %q", name)
	}
	val, err := a.validate(b, v)
	if err != nil {
		return err
	}
	b.values[name] = val
	return nil
}

//SetAt validates and replaces entry i of the named indexed attribute, so
//element mutation goes through the same pipeline as construction.
func (b *Block) SetAt(name string, i int, v interface{}) error {
	a := b.schema.Attr(name)
	if a == nil {
		return fmt.Errorf("goff: no attribute %q", name)
	}
	if !a.Indexed {
		return fmt.Errorf("goff: attribute %q is not indexed", name)
	}
	l, _ := b.values[name].([]interface{})
	if i < 0 || i >= len(l) {
		return fmt.Errorf("goff: %s has %d entries, no entry %d", name, len(l), i)
	}
	val, err := a.validateOne(b, v)
	if err != nil {
		return fmt.Errorf("%s%d: %w", name, i+1, err)
	}
	l[i] = val
	return nil
}

//Get returns the raw stored value of the named attribute.
func (b *Block) Get(name string) interface{} { return b.values[name] }

//Has reports whether the attribute holds a non-nil value.
func (b *Block) Has(name string) bool { return b.values[name] != nil }

//Quantity returns the named attribute as a quantity, or nil.
func (b *Block) Quantity(name string) *units.Quantity {
	q, _ := b.values[name].(*units.Quantity)
	return q
}

//List returns a copy of the named indexed attribute's entries. Mutating the
//copy does not touch the block; use SetAt for validated element replacement.
func (b *Block) List(name string) []interface{} {
	l, _ := b.values[name].([]interface{})
	if l == nil {
		return nil
	}
	return append([]interface{}(nil), l...)
}

//QuantityAt returns entry i of the named indexed attribute as a quantity.
func (b *Block) QuantityAt(name string, i int) *units.Quantity {
	l, _ := b.values[name].([]interface{})
	if i < 0 || i >= len(l) {
		return nil
	}
	q, _ := l[i].(*units.Quantity)
	return q
}

//Float returns the named attribute as a float64 (zero if unset or not a
//number).
func (b *Block) Float(name string) float64 {
	f, _ := b.values[name].(float64)
	return f
}

//Int returns the named attribute as an int.
func (b *Block) Int(name string) int {
	i, _ := b.values[name].(int)
	return i
}

//Str returns the named attribute as a string.
func (b *Block) Str(name string) string {
	s, _ := b.values[name].(string)
	return s
}

//Bool returns the named attribute as a bool.
func (b *Block) Bool(name string) bool {
	v, _ := b.values[name].(bool)
	return v
}

//SetCosmetic attaches (or replaces) a cosmetic attribute. The name must not
//collide with a schema attribute.
func (b *Block) SetCosmetic(name string, value interface{}) error {
	if b.schema.Attr(name) != nil {
		return fmt.Errorf("goff: %q is a real attribute, not a cosmetic one", name)
	}
	if _, ok := b.cosmetic[name]; !ok {
		b.cosmeticOrder = append(b.cosmeticOrder, name)
	}
	b.cosmetic[name] = value
	return nil
}

//Cosmetic returns the named cosmetic attribute verbatim, if present.
func (b *Block) Cosmetic(name string) (interface{}, bool) {
	v, ok := b.cosmetic[name]
	return v, ok
}

//DeleteCosmetic removes a cosmetic attribute.
func (b *Block) DeleteCosmetic(name string) {
	if _, ok := b.cosmetic[name]; !ok {
		return
	}
	delete(b.cosmetic, name)
	for i, k := range b.cosmeticOrder {
		if k == name {
			b.cosmeticOrder = append(b.cosmeticOrder[:i], b.cosmeticOrder[i+1:]...)
			break
		}
	}
}

//ToMap serializes the block: required attributes always, optional ones only
//when they differ from their default, indexed attributes expanded back to
//name1, name2, ..., and cosmetic attributes last unless discardCosmetic is
//set. Quantities become their "value * unit" string form.
func (b *Block) ToMap(discardCosmetic bool) map[string]interface{} {
	out := make(map[string]interface{})
	for _, a := range b.schema.attrs {
		v := b.values[a.Name]
		if a.HasDefault && reflect.DeepEqual(v, a.Default) {
			continue
		}
		if a.Indexed {
			if list, ok := v.([]interface{}); ok {
				if a.ScalarSingle && len(list) == 1 {
					out[a.Name] = serializeValue(list[0])
					continue
				}
				for i, el := range list {
					out[a.Name+strconv.Itoa(i+1)] = serializeValue(el)
				}
				continue
			}
		}
		out[a.Name] = serializeValue(v)
	}
	if !discardCosmetic {
		for _, k := range b.cosmeticOrder {
			out[k] = b.cosmetic[k]
		}
	}
	return out
}

func serializeValue(v interface{}) interface{} {
	if q, ok := v.(*units.Quantity); ok {
		return q.String()
	}
	return v
}

//physicalEqual compares the non-cosmetic content of two blocks of the same
//schema.
func (b *Block) physicalEqual(other *Block) bool {
	for _, a := range b.schema.attrs {
		if !valueEqual(b.values[a.Name], other.values[a.Name]) {
			return false
		}
	}
	return true
}

func valueEqual(x, y interface{}) bool {
	qx, okx := x.(*units.Quantity)
	qy, oky := y.(*units.Quantity)
	if okx && oky {
		return qx.Compatible(*qy) && qx.SI() == qy.SI()
	}
	lx, lokx := x.([]interface{})
	ly, loky := y.([]interface{})
	if lokx && loky {
		if len(lx) != len(ly) {
			return false
		}
		for i := range lx {
			if !valueEqual(lx[i], ly[i]) {
				return false
			}
		}
		return true
	}
	return reflect.DeepEqual(x, y)
}
