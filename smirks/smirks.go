/*
 * smirks.go, part of goff.
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

//Package smirks validates the shape of SMIRKS chemical patterns against the
//valence class a parameter targets. It does not match patterns to molecules;
//matching is an external capability the typing engine consumes through an
//interface.
package smirks

import "fmt"

//Valence is the topological shape a chemical pattern targets.
type Valence int

const (
	Atom Valence = iota + 1
	Bond
	Angle
	ProperTorsion
	ImproperTorsion
)

//String returns the conventional name of the valence class.
func (v Valence) String() string {
	switch v {
	case Atom:
		return "Atom"
	case Bond:
		return "Bond"
	case Angle:
		return "Angle"
	case ProperTorsion:
		return "ProperTorsion"
	case ImproperTorsion:
		return "ImproperTorsion"
	}
	return fmt.Sprintf("Valence(%d)", int(v))
}

//Sites returns the number of tagged atoms a pattern of this class must carry.
func (v Valence) Sites() int {
	switch v {
	case Atom:
		return 1
	case Bond:
		return 2
	case Angle:
		return 3
	case ProperTorsion, ImproperTorsion:
		return 4
	}
	return 0
}

//Validate checks that the pattern is syntactically plausible SMIRKS and that
//it tags exactly the atoms the valence class requires, as contiguous map
//indices starting at 1. It rejects wrongly-shaped patterns immediately, so a
//bad pattern fails when the parameter is built rather than at match time.
func Validate(pattern string, v Valence) error {
	if pattern == "" {
		return fmt.Errorf("smirks: empty pattern")
	}
	tags, err := taggedAtoms(pattern)
	if err != nil {
		return err
	}
	want := v.Sites()
	if len(tags) != want {
		return fmt.Errorf("smirks: pattern %q tags %d atoms, a %s pattern must tag %d", pattern, len(tags), v, want)
	}
	for i := 1; i <= want; i++ {
		if !tags[i] {
			return fmt.Errorf("smirks: pattern %q is missing atom map index %d (a %s pattern must tag atoms 1..%d)", pattern, i, v, want)
		}
	}
	return nil
}

//taggedAtoms scans bracket atoms for :n map indices and checks bracket and
//parenthesis balance.
func taggedAtoms(pattern string) (map[int]bool, error) {
	tags := make(map[int]bool)
	depthSq, depthPar := 0, 0
	for i := 0; i < len(pattern); i++ {
		switch pattern[i] {
		case '[':
			depthSq++
			if depthSq > 1 {
				return nil, fmt.Errorf("smirks: nested '[' in %q", pattern)
			}
		case ']':
			depthSq--
			if depthSq < 0 {
				return nil, fmt.Errorf("smirks: unbalanced ']' in %q", pattern)
			}
		case '(':
			depthPar++
		case ')':
			depthPar--
			if depthPar < 0 {
				return nil, fmt.Errorf("smirks: unbalanced ')' in %q", pattern)
			}
		case ':':
			if depthSq != 1 {
				continue
			}
			j := i + 1
			n := 0
			for j < len(pattern) && pattern[j] >= '0' && pattern[j] <= '9' {
				n = n*10 + int(pattern[j]-'0')
				j++
			}
			if j == i+1 || (j < len(pattern) && pattern[j] != ']') {
				//a colon inside a bracket that is not a map index
				//(e.g. the ",:" aromatic bond shorthand) is fine
				continue
			}
			if n == 0 {
				return nil, fmt.Errorf("smirks: atom map index 0 in %q", pattern)
			}
			if tags[n] {
				return nil, fmt.Errorf("smirks: duplicate atom map index %d in %q", n, pattern)
			}
			tags[n] = true
			i = j - 1
		}
	}
	if depthSq != 0 {
		return nil, fmt.Errorf("smirks: unbalanced '[' in %q", pattern)
	}
	if depthPar != 0 {
		return nil, fmt.Errorf("smirks: unbalanced '(' in %q", pattern)
	}
	return tags, nil
}
