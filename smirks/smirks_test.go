/*
 * smirks_test.go, part of goff.
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

package smirks

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidate(t *testing.T) {
	good := map[string]Valence{
		"[#6X4:1]":                          Atom,
		"[#6X4:1]-[#6X4:2]":                 Bond,
		"[*:1]~[#6X4:2]-[*:3]":              Angle,
		"[*:1]-[#6X4:2]-[#6X4:3]-[*:4]":     ProperTorsion,
		"[*:1]~[#6X3:2](~[*:3])~[*:4]":      ImproperTorsion,
		"[#6X4:1]-[#6X4:2]-[#8X2H1+0:3]":    Angle,
		"[#1:1]-[#6X4:2](-[#9])(-[#9])-[#9]": Bond,
	}
	for p, v := range good {
		assert.NoError(t, Validate(p, v), p)
	}
}

func TestValidateRejects(t *testing.T) {
	cases := []struct {
		pattern string
		valence Valence
	}{
		{"", Atom},
		{"[#6X4:1]", Bond},                  //too few tags
		{"[#6:1]-[#6:2]", Atom},             //too many tags
		{"[#6:1]-[#6:3]", Bond},             //gap in map indices
		{"[#6:1]-[#6:1]", Bond},             //duplicate index
		{"[#6:0]", Atom},                    //zero index
		{"[#6:1]-[#6:2", Bond},              //unbalanced bracket
		{"[#6:1](-[#6:2]", Bond},            //unbalanced paren
		{"[[#6:1]]", Atom},                  //nested brackets
	}
	for _, c := range cases {
		assert.Error(t, Validate(c.pattern, c.valence), c.pattern)
	}
}

func TestAromaticColonIsNotATag(t *testing.T) {
	//the ":" ring-bond shorthand outside brackets must not be read as a tag
	assert.NoError(t, Validate("[#6x2H1,#6x2H0;+0;A:1]", Atom))
	assert.NoError(t, Validate("[#6:1]:[#6:2]", Bond))
}

func TestSites(t *testing.T) {
	assert.Equal(t, 1, Atom.Sites())
	assert.Equal(t, 2, Bond.Sites())
	assert.Equal(t, 3, Angle.Sites())
	assert.Equal(t, 4, ProperTorsion.Sites())
	assert.Equal(t, 4, ImproperTorsion.Sites())
	assert.Equal(t, "ProperTorsion", ProperTorsion.String())
}
