/*
 * offml.go, part of goff.
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

//Package offml reads and writes force-field documents. A document is YAML
//with a top-level version, optional top-level scalar attributes, and one
//mapping per force section; each section carries header attributes and an
//ordered list of parameter records. The order of sections and of records is
//preserved, as record order decides parameter overrides. Documents can be
//stored zstd-compressed, in which case the conventional extension is
//.offml.zst instead of .offml.
package offml

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/klauspost/compress/zstd"
	"gopkg.in/yaml.v3"
)

//Document is a parsed force-field file.
type Document struct {
	Version  string
	Top      map[string]interface{} //top-level scalars other than the version
	Sections []*Section             //in file order
}

//Section holds one force section: its tag, header attributes, and parameter
//records in declaration order.
type Section struct {
	Tag        string
	Attrs      map[string]interface{}
	Parameters []map[string]interface{}
}

//Section returns the first section with the given tag, or nil.
func (d *Document) Section(tag string) *Section {
	for _, s := range d.Sections {
		if s.Tag == tag {
			return s
		}
	}
	return nil
}

//Decode parses a plain (uncompressed) document from r.
func Decode(r io.Reader) (*Document, error) {
	var root yaml.Node
	if err := yaml.NewDecoder(r).Decode(&root); err != nil {
		return nil, fmt.Errorf("offml: %w", err)
	}
	doc := root.Content[0]
	if doc.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("offml: top level is not a mapping")
	}
	d := &Document{Top: make(map[string]interface{})}
	for i := 0; i < len(doc.Content); i += 2 {
		key, val := doc.Content[i], doc.Content[i+1]
		switch {
		case key.Value == "version":
			d.Version = val.Value
		case val.Kind == yaml.MappingNode:
			sec, err := decodeSection(key.Value, val)
			if err != nil {
				return nil, err
			}
			d.Sections = append(d.Sections, sec)
		default:
			var v interface{}
			if err := val.Decode(&v); err != nil {
				return nil, fmt.Errorf("offml: key %q: %w", key.Value, err)
			}
			d.Top[key.Value] = v
		}
	}
	if d.Version == "" {
		return nil, fmt.Errorf("offml: document has no version")
	}
	return d, nil
}

func decodeSection(tag string, node *yaml.Node) (*Section, error) {
	s := &Section{Tag: tag, Attrs: make(map[string]interface{})}
	for i := 0; i < len(node.Content); i += 2 {
		key, val := node.Content[i], node.Content[i+1]
		if key.Value == "parameters" {
			if val.Kind != yaml.SequenceNode {
				return nil, fmt.Errorf("offml: %s: parameters is not a list", tag)
			}
			for _, el := range val.Content {
				var m map[string]interface{}
				if err := el.Decode(&m); err != nil {
					return nil, fmt.Errorf("offml: %s: %w", tag, err)
				}
				s.Parameters = append(s.Parameters, m)
			}
			continue
		}
		var v interface{}
		if err := val.Decode(&v); err != nil {
			return nil, fmt.Errorf("offml: %s: key %q: %w", tag, key.Value, err)
		}
		s.Attrs[key.Value] = v
	}
	return s, nil
}

//Encode writes d to w as plain YAML. Sections and parameter records keep
//their order; attribute keys within a record are emitted with smirks and id
//first, the rest sorted, so output is deterministic.
func Encode(w io.Writer, d *Document) error {
	root := &yaml.Node{Kind: yaml.MappingNode}
	appendKV(root, "version", scalarNode(d.Version))
	for _, k := range sortedKeys(d.Top) {
		n := &yaml.Node{}
		if err := n.Encode(d.Top[k]); err != nil {
			return fmt.Errorf("offml: key %q: %w", k, err)
		}
		appendKV(root, k, n)
	}
	for _, s := range d.Sections {
		n, err := encodeSection(s)
		if err != nil {
			return err
		}
		appendKV(root, s.Tag, n)
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(root); err != nil {
		return fmt.Errorf("offml: %w", err)
	}
	return enc.Close()
}

func encodeSection(s *Section) (*yaml.Node, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, k := range sortedKeys(s.Attrs) {
		n := &yaml.Node{}
		if err := n.Encode(s.Attrs[k]); err != nil {
			return nil, fmt.Errorf("offml: %s: key %q: %w", s.Tag, k, err)
		}
		appendKV(node, k, n)
	}
	if len(s.Parameters) == 0 {
		return node, nil
	}
	seq := &yaml.Node{Kind: yaml.SequenceNode}
	for _, p := range s.Parameters {
		m := &yaml.Node{Kind: yaml.MappingNode}
		for _, k := range recordKeys(p) {
			n := &yaml.Node{}
			if err := n.Encode(p[k]); err != nil {
				return nil, fmt.Errorf("offml: %s: key %q: %w", s.Tag, k, err)
			}
			appendKV(m, k, n)
		}
		seq.Content = append(seq.Content, m)
	}
	appendKV(node, "parameters", seq)
	return node, nil
}

func appendKV(m *yaml.Node, key string, val *yaml.Node) {
	m.Content = append(m.Content, scalarNode(key), val)
}

func scalarNode(v string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Value: v}
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

//recordKeys orders a parameter record's keys for output: smirks, then id,
//then the rest alphabetically.
func recordKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		if k == "smirks" || k == "id" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if _, ok := m["id"]; ok {
		keys = append([]string{"id"}, keys...)
	}
	if _, ok := m["smirks"]; ok {
		keys = append([]string{"smirks"}, keys...)
	}
	return keys
}

//DecodeCompressed parses a zstd-compressed document from r.
func DecodeCompressed(r io.Reader) (*Document, error) {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("offml: %w", err)
	}
	defer zr.Close()
	return Decode(zr)
}

//EncodeCompressed writes d to w as zstd-compressed YAML.
func EncodeCompressed(w io.Writer, d *Document) error {
	zw, err := zstd.NewWriter(w)
	if err != nil {
		return fmt.Errorf("offml: %w", err)
	}
	if err := Encode(zw, d); err != nil {
		zw.Close()
		return err
	}
	return zw.Close()
}

//ReadFile parses the document in the named file, choosing the compressed
//codec when the name ends in .zst.
func ReadFile(name string) (*Document, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, fmt.Errorf("offml: %w", err)
	}
	defer f.Close()
	if strings.HasSuffix(name, ".zst") {
		return DecodeCompressed(f)
	}
	return Decode(f)
}

//WriteFile writes the document to the named file, compressed when the name
//ends in .zst.
func WriteFile(name string, d *Document) error {
	f, err := os.Create(name)
	if err != nil {
		return fmt.Errorf("offml: %w", err)
	}
	defer f.Close()
	if strings.HasSuffix(name, ".zst") {
		return EncodeCompressed(f, d)
	}
	return Encode(f, d)
}
