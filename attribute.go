/*
 * attribute.go, part of goff.
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
	"strconv"
	"strings"

	"github.com/rmera/goff/units"
)

//A Converter validates and canonicalizes a raw attribute value after unit
//checking. It may return a value of a different type than it received.
type Converter func(v interface{}) (interface{}, error)

//A BoundConverter is a converter that also sees the block being populated
//and the attribute descriptor, for validation that depends on sibling
//attributes. During block construction the owner holds the attributes
//declared before this one.
type BoundConverter func(owner *Block, a *Attribute, v interface{}) (interface{}, error)

//Attribute describes one attribute of a parameter or section header: its
//name, an optional default, an optional required dimension, an optional
//converter, and whether it is indexed (k1, k2, ... in documents).
//
//An attribute without a default is required. An attribute whose set value
//equals its default bypasses unit checking and conversion, so a default
//of a special sentinel (such as the string "auto" on a numeric attribute)
//is representable.
type Attribute struct {
	Name         string
	Default      interface{}
	HasDefault   bool
	Unit         *units.Quantity //prototype carrying the required dimensions
	Convert      Converter
	ConvertBound BoundConverter //takes precedence over Convert when set
	Indexed      bool
	//ScalarSingle makes a one-element indexed attribute serialize under its
	//plain name, so "k" read in comes back out as "k", not "k1".
	ScalarSingle bool
}

//Attr starts the definition of a required attribute.
func Attr(name string) *Attribute {
	return &Attribute{Name: name}
}

//WithDefault makes the attribute optional with the given default.
func (a *Attribute) WithDefault(v interface{}) *Attribute {
	a.Default = v
	a.HasDefault = true
	return a
}

//WithUnit requires values to be quantities compatible with u.
func (a *Attribute) WithUnit(u *units.Quantity) *Attribute {
	a.Unit = u
	return a
}

//WithConverter adds a conversion step after unit checking.
func (a *Attribute) WithConverter(c Converter) *Attribute {
	a.Convert = c
	return a
}

//WithBoundConverter adds a conversion step that can consult the block under
//construction. It wins over a plain converter when both are set.
func (a *Attribute) WithBoundConverter(c BoundConverter) *Attribute {
	a.ConvertBound = c
	return a
}

//AsIndexed marks the attribute as indexed: documents carry it as name1,
//name2, ... and its in-memory value is a slice.
func (a *Attribute) AsIndexed() *Attribute {
	a.Indexed = true
	return a
}

//ScalarWhenSingle makes a one-element indexed value round-trip under the
//plain attribute name.
func (a *Attribute) ScalarWhenSingle() *Attribute {
	a.ScalarSingle = true
	return a
}

//clone returns a copy sharing the default, for record schemas derived from
//a common base.
func (a *Attribute) clone() *Attribute {
	c := *a
	return &c
}

//validate runs the full pipeline on a raw value: default bypass, unit
//coercion, converter. For indexed attributes it validates every element and
//always returns a []interface{}. The owner is the block the value is being
//set on, passed to bound converters.
func (a *Attribute) validate(owner *Block, v interface{}) (interface{}, error) {
	if a.HasDefault && reflect.DeepEqual(v, a.Default) {
		return v, nil
	}
	if a.Indexed {
		list, ok := v.([]interface{})
		if !ok {
			//a scalar for an indexed attribute is a one-element list
			list = []interface{}{v}
		}
		out := make([]interface{}, len(list))
		for i, el := range list {
			val, err := a.validateOne(owner, el)
			if err != nil {
				return nil, fmt.Errorf("%s%d: %w", a.Name, i+1, err)
			}
			out[i] = val
		}
		return out, nil
	}
	val, err := a.validateOne(owner, v)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", a.Name, err)
	}
	return val, nil
}

func (a *Attribute) validateOne(owner *Block, v interface{}) (interface{}, error) {
	if a.Unit != nil {
		q, err := coerceQuantity(v)
		if err != nil {
			return nil, err
		}
		if !q.Compatible(*a.Unit) {
			return nil, &IncompatibleUnitError{Attr: a.Name, Value: q.String(), Expected: a.Unit.Label()}
		}
		v = q
	}
	if a.ConvertBound != nil {
		return a.ConvertBound(owner, a, v)
	}
	if a.Convert != nil {
		return a.Convert(v)
	}
	return v, nil
}

//coerceQuantity accepts a quantity, or a string like "1.5 * angstrom". Bare
//numbers are rejected; a dimensioned attribute must state its unit.
func coerceQuantity(v interface{}) (*units.Quantity, error) {
	switch x := v.(type) {
	case *units.Quantity:
		return x, nil
	case units.Quantity:
		return &x, nil
	case string:
		q, err := units.Parse(x)
		if err != nil {
			return nil, err
		}
		return &q, nil
	case float64, int, float32, int64:
		return nil, fmt.Errorf("bare number %v where a quantity with units is required", x)
	}
	return nil, fmt.Errorf("cannot interpret %v (%T) as a quantity", v, v)
}

//Common converters.

//ToFloat canonicalizes numbers and numeric strings to float64.
func ToFloat(v interface{}) (interface{}, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case int:
		return float64(x), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return nil, fmt.Errorf("%q is not a number", x)
		}
		return f, nil
	}
	return nil, fmt.Errorf("cannot interpret %v (%T) as a number", v, v)
}

//ToInt canonicalizes to int, rejecting fractional values.
func ToInt(v interface{}) (interface{}, error) {
	f, err := ToFloat(v)
	if err != nil {
		return nil, err
	}
	x := f.(float64)
	if x != float64(int(x)) {
		return nil, fmt.Errorf("%v is not an integer", v)
	}
	return int(x), nil
}

//ToString canonicalizes to string.
func ToString(v interface{}) (interface{}, error) {
	if s, ok := v.(string); ok {
		return s, nil
	}
	return fmt.Sprintf("%v", v), nil
}

//ToBool accepts booleans and their usual string spellings.
func ToBool(v interface{}) (interface{}, error) {
	switch x := v.(type) {
	case bool:
		return x, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(x)) {
		case "true":
			return true, nil
		case "false":
			return false, nil
		}
	}
	return nil, fmt.Errorf("cannot interpret %v (%T) as a boolean", v, v)
}

//OneOf restricts a string attribute to a fixed set of values.
func OneOf(allowed ...string) Converter {
	return func(v interface{}) (interface{}, error) {
		s, err := ToString(v)
		if err != nil {
			return nil, err
		}
		for _, a := range allowed {
			if s == a {
				return s, nil
			}
		}
		return nil, fmt.Errorf("%v is not one of %s", v, strings.Join(allowed, ", "))
	}
}

//FloatOrAuto accepts a number or the literal string "auto". Used by torsion
//idivf, where "auto" means the divisor is derived from symmetry.
func FloatOrAuto(v interface{}) (interface{}, error) {
	if s, ok := v.(string); ok && strings.TrimSpace(s) == "auto" {
		return "auto", nil
	}
	return ToFloat(v)
}
