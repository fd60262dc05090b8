// Package configbinder decodes loosely typed property maps (JSL artifact properties,
// named adapter configurations) into tagged structs.
package configbinder

import (
	"fmt"
	"reflect"

	"github.com/mitchellh/mapstructure"
)

// Decode binds input to target using the "yaml" tag. Strings are converted to numbers,
// booleans and durations as needed.
func Decode(input any, target any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		TagName:          "yaml",
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return fmt.Errorf("failed to create mapstructure decoder: %w", err)
	}
	if err := decoder.Decode(input); err != nil {
		return fmt.Errorf("failed to bind properties to %s: %w", typeName(target), err)
	}
	return nil
}

// BindProperties binds JSL artifact properties to target. An empty map leaves target untouched.
func BindProperties(props map[string]string, target any) error {
	if len(props) == 0 {
		return nil
	}
	in := make(map[string]any, len(props))
	for k, v := range props {
		in[k] = v
	}
	return Decode(in, target)
}

func typeName(v any) string {
	t := reflect.TypeOf(v)
	for t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t == nil {
		return "<nil>"
	}
	return t.Name()
}
