/*
 * offml_test.go, part of goff.
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

package offml

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `version: "0.3"
aromaticity_model: OEAroModel_MDL
Bonds:
  version: "0.3"
  potential: harmonic
  parameters:
    - smirks: "[#6X4:1]-[#6X4:2]"
      id: b1
      length: 1.526 * angstrom
      k: 620.0 * kilocalorie_per_mole/angstrom**2
    - smirks: "[#6X4:1]-[#1:2]"
      id: b2
      length: 1.090 * angstrom
      k: 680.0 * kilocalorie_per_mole/angstrom**2
Angles:
  version: "0.3"
  potential: harmonic
  parameters:
    - smirks: "[*:1]~[#6X4:2]-[*:3]"
      id: a1
      angle: 109.5 * degree
      k: 100.0 * kilocalorie_per_mole/degree**2
`

func TestDecode(t *testing.T) {
	d, err := Decode(strings.NewReader(sample))
	require.NoError(t, err)
	assert.Equal(t, "0.3", d.Version)
	assert.Equal(t, "OEAroModel_MDL", d.Top["aromaticity_model"])
	require.Len(t, d.Sections, 2)
	//section order follows the file
	assert.Equal(t, "Bonds", d.Sections[0].Tag)
	assert.Equal(t, "Angles", d.Sections[1].Tag)

	bonds := d.Section("Bonds")
	require.NotNil(t, bonds)
	assert.Equal(t, "harmonic", bonds.Attrs["potential"])
	require.Len(t, bonds.Parameters, 2)
	//record order is preserved, it decides overrides downstream
	assert.Equal(t, "b1", bonds.Parameters[0]["id"])
	assert.Equal(t, "b2", bonds.Parameters[1]["id"])
	assert.Equal(t, "1.526 * angstrom", bonds.Parameters[0]["length"])

	assert.Nil(t, d.Section("vdW"))
}

func TestRoundTrip(t *testing.T) {
	d, err := Decode(strings.NewReader(sample))
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, d))
	//smirks and id lead each record in the output
	assert.Contains(t, buf.String(), "- smirks:")

	d2, err := Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, d.Version, d2.Version)
	require.Len(t, d2.Sections, 2)
	assert.Equal(t, d.Sections[0].Tag, d2.Sections[0].Tag)
	assert.Equal(t, d.Sections[0].Parameters, d2.Sections[0].Parameters)
	assert.Equal(t, d.Top, d2.Top)
}

func TestCompressedRoundTrip(t *testing.T) {
	d, err := Decode(strings.NewReader(sample))
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, EncodeCompressed(&buf, d))
	//zstd frames start with the magic 0x28 0xB5 0x2F 0xFD
	require.True(t, buf.Len() > 4)
	assert.Equal(t, byte(0x28), buf.Bytes()[0])

	d2, err := DecodeCompressed(&buf)
	require.NoError(t, err)
	assert.Equal(t, d.Version, d2.Version)
	assert.Equal(t, d.Sections[1].Parameters, d2.Sections[1].Parameters)
}

func TestDecodeErrors(t *testing.T) {
	_, err := Decode(strings.NewReader("Bonds:\n  potential: harmonic\n"))
	assert.Error(t, err) //no version

	_, err = Decode(strings.NewReader("version: \"0.3\"\nBonds:\n  parameters: harmonic\n"))
	assert.Error(t, err) //parameters must be a list

	_, err = Decode(strings.NewReader("- a\n- b\n"))
	assert.Error(t, err) //top level must be a mapping
}
