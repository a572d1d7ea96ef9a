/*
 * errors.go, part of goff.
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
	"strings"
)

//IncompatibleUnitError reports an attribute whose quantity does not carry the
//dimensions the force field requires.
type IncompatibleUnitError struct {
	Attr     string
	Value    string
	Expected string
}

func (e *IncompatibleUnitError) Error() string {
	return fmt.Sprintf("attribute %s=%s is incompatible with the expected unit %s", e.Attr, e.Value, e.Expected)
}

//IncompatibleParameterError reports that two sections with the same tag
//cannot be merged because a header attribute differs.
type IncompatibleParameterError struct {
	Tag   string
	Attr  string
	This  string
	Other string
}

func (e *IncompatibleParameterError) Error() string {
	return fmt.Sprintf("section %s: attribute %s has value %s, the incoming section has %s", e.Tag, e.Attr, e.This, e.Other)
}

//VersionError reports a section version outside the supported range.
type VersionError struct {
	Tag      string
	Version  string
	Min, Max float64
}

func (e *VersionError) Error() string {
	return fmt.Sprintf("section %s: version %s is outside the supported range [%g, %g]", e.Tag, e.Version, e.Min, e.Max)
}

//NotImplementedError marks a documented capability this engine does not yet
//provide, so callers fail loudly instead of getting silently wrong physics.
type NotImplementedError struct {
	Feature string
}

func (e *NotImplementedError) Error() string {
	return "not implemented: " + e.Feature
}

//DuplicateParameterError reports an attempt to add a parameter whose physical
//content duplicates one already in the section.
type DuplicateParameterError struct {
	Tag    string
	SMIRKS string
}

func (e *DuplicateParameterError) Error() string {
	return fmt.Sprintf("section %s already contains a parameter equal to the one with pattern %q", e.Tag, e.SMIRKS)
}

//NotFoundError reports a parameter lookup that matched nothing.
type NotFoundError struct {
	Tag    string
	SMIRKS string
}

func (e *NotFoundError) Error() string {
	if e.Tag == "" {
		return fmt.Sprintf("no parameter with pattern %q", e.SMIRKS)
	}
	return fmt.Sprintf("section %s has no parameter with pattern %q", e.Tag, e.SMIRKS)
}

//UnassignedValenceError aggregates every chemical environment a section
//failed to cover, plus any force terms that exist without a corresponding
//environment, so the caller sees the whole gap at once.
type UnassignedValenceError struct {
	Tag        string
	Kind       string  //e.g. "BondType"
	Unassigned [][]int //atom index tuples present in the topology but not assigned
	Extra      [][]int //atom index tuples assigned but absent from the topology
	AtomNames  map[int]string
}

func (e *UnassignedValenceError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "section %s: %d topology terms of kind %s were not assigned parameters", e.Tag, len(e.Unassigned), e.Kind)
	for _, t := range e.Unassigned {
		b.WriteString("\n  ")
		b.WriteString(e.describe(t))
	}
	if len(e.Extra) > 0 {
		fmt.Fprintf(&b, "\nand %d assigned terms do not exist in the topology:", len(e.Extra))
		for _, t := range e.Extra {
			b.WriteString("\n  ")
			b.WriteString(e.describe(t))
		}
	}
	return b.String()
}

func (e *UnassignedValenceError) describe(tuple []int) string {
	parts := make([]string, len(tuple))
	for i, a := range tuple {
		name := e.AtomNames[a]
		if name == "" {
			parts[i] = fmt.Sprintf("%d", a)
		} else {
			parts[i] = fmt.Sprintf("%d(%s)", a, name)
		}
	}
	return "(" + strings.Join(parts, ", ") + ")"
}
