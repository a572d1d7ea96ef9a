/*
 * units.go, part of goff.
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

//Package units implements the physical quantities used by the force-field
//typing machinery: a Quantity couples a numeric value to a dimension vector
//(built on gonum's unit.Dimensions) and to the textual unit it was declared
//in, so values read from a parameter file round-trip back to the same text.
package units

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/floats/scalar"
	"gonum.org/v1/gonum/unit"
)

//Quantity is a number with units. The value is kept in the unit it was
//declared in, together with the factor that takes it to SI base units,
//so printing a quantity reproduces the original text exactly.
type Quantity struct {
	value float64
	scale float64 //label units -> SI base units
	dims  unit.Dimensions
	label string
}

//Dimensionless returns a unitless quantity.
func Dimensionless(v float64) Quantity {
	return Quantity{value: v, scale: 1, dims: unit.Dimensions{}}
}

//NewQuantity returns a quantity of v in the unit given by expr
//(e.g. "angstrom", "kilocalorie/mole/angstrom**2").
func NewQuantity(v float64, expr string) (Quantity, error) {
	u, err := ParseUnit(expr)
	if err != nil {
		return Quantity{}, err
	}
	u.value = v
	return u, nil
}

//MustQuantity is NewQuantity but panics on a malformed unit expression.
//Meant for unit expressions hardcoded in schema declarations, where a
//failure is a programming error.
func MustQuantity(v float64, expr string) Quantity {
	q, err := NewQuantity(v, expr)
	if err != nil {
		panic(err.Error())
	}
	return q
}

//Value returns the numeric value in the quantity's own declared unit.
func (q Quantity) Value() float64 { return q.value }

//SI returns the value in SI base units.
func (q Quantity) SI() float64 { return q.value * q.scale }

//UnitScale returns the factor that converts one declared unit to SI.
//It is the natural magnitude for unit-scaled tolerances.
func (q Quantity) UnitScale() float64 { return q.scale }

//Label returns the textual unit the quantity was declared in.
func (q Quantity) Label() string { return q.label }

//IsDimensionless returns whether the quantity carries no units.
func (q Quantity) IsDimensionless() bool { return len(normDims(q.dims)) == 0 }

//Compatible returns whether q and o share the same dimensions.
func (q Quantity) Compatible(o Quantity) bool {
	return dimsEqual(q.dims, o.dims)
}

//In returns the value of q expressed in the unit of o.
func (q Quantity) In(o Quantity) (float64, error) {
	if !q.Compatible(o) {
		return 0, fmt.Errorf("units: cannot express %s in %s", q.String(), o.unitString())
	}
	return q.SI() / o.scale, nil
}

//Convert returns q re-expressed in the unit of o.
func (q Quantity) Convert(o Quantity) (Quantity, error) {
	v, err := q.In(o)
	if err != nil {
		return Quantity{}, err
	}
	return Quantity{value: v, scale: o.scale, dims: normDims(o.dims), label: o.label}, nil
}

//Add returns q+o in the unit of q. The dimensions must match.
func (q Quantity) Add(o Quantity) (Quantity, error) {
	if !q.Compatible(o) {
		return Quantity{}, fmt.Errorf("units: cannot add %s and %s", q.String(), o.String())
	}
	return Quantity{value: q.value + o.SI()/q.scale, scale: q.scale, dims: q.dims, label: q.label}, nil
}

//Sub returns q-o in the unit of q. The dimensions must match.
func (q Quantity) Sub(o Quantity) (Quantity, error) {
	return q.Add(o.Scale(-1))
}

//Scale returns q multiplied by the unitless factor f.
func (q Quantity) Scale(f float64) Quantity {
	return Quantity{value: q.value * f, scale: q.scale, dims: q.dims, label: q.label}
}

//Mul returns the product of two quantities. The result loses the textual
//labels and is expressed in SI base units.
func (q Quantity) Mul(o Quantity) Quantity {
	return Quantity{value: q.SI() * o.SI(), scale: 1, dims: mulDims(q.dims, o.dims, 1)}
}

//Div returns the quotient of two quantities, in SI base units.
func (q Quantity) Div(o Quantity) Quantity {
	return Quantity{value: q.SI() / o.SI(), scale: 1, dims: mulDims(q.dims, o.dims, -1)}
}

//AbsDiff returns |q-o| in SI base units. The dimensions must match.
func (q Quantity) AbsDiff(o Quantity) (float64, error) {
	if !q.Compatible(o) {
		return 0, fmt.Errorf("units: cannot compare %s and %s", q.String(), o.String())
	}
	return math.Abs(q.SI() - o.SI()), nil
}

//EqualWithin reports whether q and o agree within the absolute tolerance
//tol, expressed in q's declared unit. Quantities of different dimensions
//are never equal.
func (q Quantity) EqualWithin(o Quantity, tol float64) bool {
	if !q.Compatible(o) {
		return false
	}
	return scalar.EqualWithinAbs(q.SI(), o.SI(), tol*q.scale)
}

//String renders the quantity as "<number> * <unit>", the same textual form
//the parser accepts, or just the number for dimensionless quantities.
func (q Quantity) String() string {
	v := strconv.FormatFloat(q.value, 'g', -1, 64)
	if q.label == "" {
		return v
	}
	return v + " * " + q.label
}

func (q Quantity) unitString() string {
	if q.label == "" {
		return "dimensionless"
	}
	return q.label
}

//MarshalYAML writes the quantity in its textual form.
func (q Quantity) MarshalYAML() (interface{}, error) {
	return q.String(), nil
}

//The base units. Each named unit is a scale to SI plus a dimension vector.
type baseUnit struct {
	scale float64
	dims  unit.Dimensions
}

var namedUnits = map[string]baseUnit{
	"meter":      {1, unit.Dimensions{unit.LengthDim: 1}},
	"nanometer":  {1e-9, unit.Dimensions{unit.LengthDim: 1}},
	"angstrom":   {1e-10, unit.Dimensions{unit.LengthDim: 1}},
	"picometer":  {1e-12, unit.Dimensions{unit.LengthDim: 1}},
	"bohr":       {5.29177210903e-11, unit.Dimensions{unit.LengthDim: 1}},
	"radian":     {1, unit.Dimensions{unit.AngleDim: 1}},
	"degree":     {math.Pi / 180.0, unit.Dimensions{unit.AngleDim: 1}},
	"joule":      {1, unit.Dimensions{unit.MassDim: 1, unit.LengthDim: 2, unit.TimeDim: -2}},
	"kilojoule":  {1e3, unit.Dimensions{unit.MassDim: 1, unit.LengthDim: 2, unit.TimeDim: -2}},
	"calorie":    {4.184, unit.Dimensions{unit.MassDim: 1, unit.LengthDim: 2, unit.TimeDim: -2}},
	"kilocalorie": {4184.0, unit.Dimensions{unit.MassDim: 1, unit.LengthDim: 2, unit.TimeDim: -2}},
	"mole":       {1, unit.Dimensions{unit.MoleDim: 1}},
	"second":     {1, unit.Dimensions{unit.TimeDim: 1}},
	"kilogram":   {1, unit.Dimensions{unit.MassDim: 1}},
	"gram":       {1e-3, unit.Dimensions{unit.MassDim: 1}},
	"dalton":     {1.66053906892e-27, unit.Dimensions{unit.MassDim: 1}},
	"elementary_charge": {1.602176634e-19, unit.Dimensions{unit.CurrentDim: 1, unit.TimeDim: 1}},
	"kelvin":     {1, unit.Dimensions{unit.TemperatureDim: 1}},
}

//lookupUnit resolves one unit token, accepting plural forms
//(angstroms) and the "x_per_y" contraction (kilocalories_per_mole).
func lookupUnit(name string) (baseUnit, error) {
	if parts := strings.Split(name, "_per_"); len(parts) > 1 {
		num, err := lookupUnit(parts[0])
		if err != nil {
			return baseUnit{}, err
		}
		for _, p := range parts[1:] {
			den, err := lookupUnit(p)
			if err != nil {
				return baseUnit{}, err
			}
			num.scale /= den.scale
			num.dims = mulDims(num.dims, den.dims, -1)
		}
		return num, nil
	}
	if u, ok := namedUnits[name]; ok {
		return u, nil
	}
	//amu is too common an alias to reject
	if name == "amu" {
		return namedUnits["dalton"], nil
	}
	if strings.HasSuffix(name, "s") {
		if u, ok := namedUnits[strings.TrimSuffix(name, "s")]; ok {
			return u, nil
		}
	}
	return baseUnit{}, fmt.Errorf("units: unknown unit %q", name)
}

//ParseUnit parses a unit expression such as "angstrom",
//"kilocalorie/mole/angstrom**2" or "degrees" into a Quantity of value 1.
func ParseUnit(expr string) (Quantity, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" || expr == "dimensionless" {
		return Dimensionless(1), nil
	}
	u := baseUnit{scale: 1, dims: unit.Dimensions{}}
	sign := 1
	for _, factor := range splitFactors(expr) {
		name := strings.TrimSpace(factor.text)
		power := 1
		if i := strings.Index(name, "**"); i >= 0 {
			p, err := strconv.Atoi(strings.TrimSpace(name[i+2:]))
			if err != nil {
				return Quantity{}, fmt.Errorf("units: bad exponent in %q", expr)
			}
			power = p
			name = strings.TrimSpace(name[:i])
		}
		b, err := lookupUnit(name)
		if err != nil {
			return Quantity{}, err
		}
		p := power * factor.sign * sign
		u.scale *= math.Pow(b.scale, float64(p))
		for d, e := range b.dims {
			u.dims[d] += e * p
		}
	}
	return Quantity{value: 1, scale: u.scale, dims: normDims(u.dims), label: expr}, nil
}

//MustUnit is ParseUnit but panics on error. For hardcoded declarations.
func MustUnit(expr string) Quantity {
	q, err := ParseUnit(expr)
	if err != nil {
		panic(err.Error())
	}
	return q
}

type factor struct {
	text string
	sign int //1 for multiplied, -1 for divided
}

//splitFactors splits a unit expression on '*' and '/', keeping '**'
//exponents attached to their factor.
func splitFactors(expr string) []factor {
	var fs []factor
	sign := 1
	start := 0
	i := 0
	for i < len(expr) {
		switch expr[i] {
		case '*':
			if i+1 < len(expr) && expr[i+1] == '*' {
				i += 2
				continue
			}
			fs = append(fs, factor{expr[start:i], sign})
			sign = 1
			i++
			start = i
		case '/':
			fs = append(fs, factor{expr[start:i], sign})
			sign = -1
			i++
			start = i
		default:
			i++
		}
	}
	fs = append(fs, factor{expr[start:], sign})
	return fs
}

//Parse reads a textual quantity expression: either a bare number
//(dimensionless) or "<number> * <unit expression>".
func Parse(s string) (Quantity, error) {
	s = strings.TrimSpace(s)
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return Dimensionless(v), nil
	}
	i := strings.Index(s, "*")
	if i < 0 {
		return Quantity{}, fmt.Errorf("units: cannot parse quantity %q", s)
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s[:i]), 64)
	if err != nil {
		return Quantity{}, fmt.Errorf("units: cannot parse quantity %q: bad number", s)
	}
	u, err := ParseUnit(s[i+1:])
	if err != nil {
		return Quantity{}, err
	}
	u.value = v
	return u, nil
}

func normDims(d unit.Dimensions) unit.Dimensions {
	out := unit.Dimensions{}
	for k, v := range d {
		if v != 0 {
			out[k] = v
		}
	}
	return out
}

func dimsEqual(a, b unit.Dimensions) bool {
	a, b = normDims(a), normDims(b)
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}

func mulDims(a, b unit.Dimensions, bsign int) unit.Dimensions {
	out := unit.Dimensions{}
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		out[k] += v * bsign
	}
	return normDims(out)
}
