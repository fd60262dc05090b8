package jsl

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Elements is an ordered list of execution elements. In YAML each entry is a mapping
// with exactly one key naming the element kind:
//
//	elements:
//	  - step: {id: load, next: check, chunk: {...}}
//	  - decision: {id: check, ref: exitStatusDecider, transitions: [...]}
type Elements []Element

// UnmarshalYAML implements yaml.Unmarshaler.
func (e *Elements) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.SequenceNode {
		return fmt.Errorf("line %d: elements must be a sequence", value.Line)
	}
	out := make(Elements, 0, len(value.Content))
	for _, item := range value.Content {
		if item.Kind != yaml.MappingNode || len(item.Content) != 2 {
			return fmt.Errorf("line %d: each element must be a mapping with a single kind key", item.Line)
		}
		kind, body := item.Content[0].Value, item.Content[1]
		var el Element
		switch ElementKind(kind) {
		case KindStep:
			el = &Step{}
		case KindDecision:
			el = &Decision{}
		case KindFlow:
			el = &Flow{}
		case KindSplit:
			el = &Split{}
		default:
			return fmt.Errorf("line %d: unknown element kind %q", item.Line, kind)
		}
		if err := body.Decode(el); err != nil {
			return err
		}
		out = append(out, el)
	}
	*e = out
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (e Elements) MarshalYAML() (interface{}, error) {
	out := make([]map[string]Element, 0, len(e))
	for _, el := range e {
		out = append(out, map[string]Element{string(el.Kind()): el})
	}
	return out, nil
}

// Find returns the element with id among e, without descending into flows.
func (e Elements) Find(id string) (Element, bool) {
	for _, el := range e {
		if el.ElementID() == id {
			return el, true
		}
	}
	return nil, false
}
