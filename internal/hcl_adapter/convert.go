// This file converts values between cty and native Go representations. Build
// properties live in the session bag as native values and are exposed to
// expressions as cty values.

package hcl_adapter

import (
	"fmt"
	"math/big"
	"sort"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/gocty"
	ctyjson "github.com/zclconf/go-cty/cty/json"
)

// ctyToNative recursively converts a cty.Value to its most natural Go
// counterpart. Whole numbers become int64, other numbers float64.
func ctyToNative(v cty.Value) (any, error) {
	if v.IsNull() || !v.IsKnown() {
		return nil, nil
	}

	ty := v.Type()
	switch {
	case ty == cty.String:
		return v.AsString(), nil

	case ty == cty.Number:
		bf := v.AsBigFloat()
		if bf.IsInt() {
			if i, acc := bf.Int64(); acc == big.Exact {
				return i, nil
			}
		}
		f, _ := bf.Float64()
		return f, nil

	case ty == cty.Bool:
		return v.True(), nil

	case ty.IsListType() || ty.IsTupleType() || ty.IsSetType():
		slice := make([]any, 0, v.LengthInt())
		it := v.ElementIterator()
		for it.Next() {
			_, val := it.Element()
			nativeVal, err := ctyToNative(val)
			if err != nil {
				return nil, err
			}
			slice = append(slice, nativeVal)
		}
		return slice, nil

	case ty.IsObjectType() || ty.IsMapType():
		goMap := make(map[string]any, v.LengthInt())
		it := v.ElementIterator()
		for it.Next() {
			key, val := it.Element()
			keyStr := key.AsString()
			nativeVal, err := ctyToNative(val)
			if err != nil {
				return nil, fmt.Errorf("in attribute '%s': %w", keyStr, err)
			}
			goMap[keyStr] = nativeVal
		}
		return goMap, nil

	default:
		return nil, fmt.Errorf("unsupported cty type for native conversion: %s", ty.FriendlyName())
	}
}

// nativeToCty converts a native Go value into a cty.Value. Generic slices and
// maps become tuples and objects so that mixed element types survive.
func nativeToCty(v any) (cty.Value, error) {
	switch val := v.(type) {
	case nil:
		return cty.NullVal(cty.DynamicPseudoType), nil
	case cty.Value:
		return val, nil
	case string:
		return cty.StringVal(val), nil
	case bool:
		return cty.BoolVal(val), nil
	case int:
		return cty.NumberIntVal(int64(val)), nil
	case int32:
		return cty.NumberIntVal(int64(val)), nil
	case int64:
		return cty.NumberIntVal(val), nil
	case uint64:
		return cty.NumberUIntVal(val), nil
	case float32:
		return cty.NumberFloatVal(float64(val)), nil
	case float64:
		return cty.NumberFloatVal(val), nil
	case []string:
		vals := make([]cty.Value, len(val))
		for i, s := range val {
			vals[i] = cty.StringVal(s)
		}
		return cty.TupleVal(vals), nil
	case []any:
		vals := make([]cty.Value, len(val))
		for i, item := range val {
			cv, err := nativeToCty(item)
			if err != nil {
				return cty.NilVal, fmt.Errorf("at index %d: %w", i, err)
			}
			vals[i] = cv
		}
		return cty.TupleVal(vals), nil
	case map[string]string:
		attrs := make(map[string]cty.Value, len(val))
		for k, s := range val {
			attrs[k] = cty.StringVal(s)
		}
		return cty.ObjectVal(attrs), nil
	case map[string]any:
		return mapToObject(val)
	default:
		return ToCtyValue(v)
	}
}

// mapToObject converts a map of native values into a cty object.
func mapToObject(m map[string]any) (cty.Value, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	attrs := make(map[string]cty.Value, len(m))
	for _, k := range keys {
		cv, err := nativeToCty(m[k])
		if err != nil {
			return cty.NilVal, fmt.Errorf("in attribute '%s': %w", k, err)
		}
		attrs[k] = cv
	}
	return cty.ObjectVal(attrs), nil
}

// ToCtyValue converts a native Go value into its corresponding cty.Value
// using its implied type.
func ToCtyValue(v any) (cty.Value, error) {
	if v == nil {
		return cty.NilVal, nil
	}
	ty, err := gocty.ImpliedType(v)
	if err != nil {
		return cty.NilVal, fmt.Errorf("unable to infer cty.Type: %w", err)
	}
	return gocty.ToCtyValue(v, ty)
}

// coerceTo returns a function converting raw property values, typically
// strings from the environment or the command line, into ty. Strings given
// for collection or structural types are parsed as JSON.
func coerceTo(ty cty.Type) func(any) (any, error) {
	return func(raw any) (any, error) {
		if ty == cty.DynamicPseudoType {
			return raw, nil
		}
		v, err := nativeToCty(raw)
		if err != nil {
			return nil, err
		}
		if s, ok := raw.(string); ok && !ty.IsPrimitiveType() {
			parsed, err := ctyjson.Unmarshal([]byte(s), ty)
			if err != nil {
				return nil, fmt.Errorf("cannot parse %q as %s: %w", s, ty.FriendlyName(), err)
			}
			return ctyToNative(parsed)
		}
		converted, err := convert.Convert(v, ty)
		if err != nil {
			return nil, fmt.Errorf("cannot use value as %s: %w", ty.FriendlyName(), err)
		}
		return ctyToNative(converted)
	}
}
