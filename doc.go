/*
 * doc.go, part of goff.
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

/*
Package ff assigns force-field parameters to molecular topologies by
chemical pattern. A force field is a set of sections (Bonds, Angles,
ProperTorsions, vdW, ...), each holding parameter records keyed by SMIRKS
patterns. Typing a topology means running every record's pattern over the
molecular graph, letting later records override earlier ones on the same
chemical environment, and emitting the matching force terms into a System.

The package deliberately does not match patterns itself, compute partial
charges, or run simulations: those arrive through the Matcher,
ChargeProvider and System interfaces, so any cheminformatics or simulation
backend can be plugged in. The memsys subpackage provides the in-memory
System; offml reads and writes force-field documents; units carries the
physical quantities.
*/
package ff
