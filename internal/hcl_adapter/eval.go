package hcl_adapter

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/vk/buildgrid/internal/session"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/function"
)

// scope is the configuration-time context a step was compiled in.
type scope struct {
	target string
	each   *eachItem
	params map[string]cty.Value
}

// eachItem is one element of a for_each fan-out.
type eachItem struct {
	Key   cty.Value
	Value cty.Value
}

type errorKey struct{}

// withFailure makes err visible to on_error expressions as error.message.
func withFailure(ctx context.Context, err error) context.Context {
	return context.WithValue(ctx, errorKey{}, err)
}

// evalContext builds the variables and functions visible to an expression.
func evalContext(props map[string]any, sc scope, failure error, funcs map[string]function.Function) (*hcl.EvalContext, error) {
	propVal, err := mapToObject(props)
	if err != nil {
		return nil, fmt.Errorf("exposing properties: %w", err)
	}

	vars := map[string]cty.Value{
		"prop":   propVal,
		"env":    envObject(),
		"target": cty.ObjectVal(map[string]cty.Value{"name": cty.StringVal(sc.target)}),
	}
	if sc.each != nil {
		vars["each"] = cty.ObjectVal(map[string]cty.Value{"key": sc.each.Key, "value": sc.each.Value})
	}
	if sc.params != nil {
		vars["param"] = cty.ObjectVal(sc.params)
	}
	if failure != nil {
		vars["error"] = cty.ObjectVal(map[string]cty.Value{"message": cty.StringVal(failure.Error())})
	}
	return &hcl.EvalContext{Variables: vars, Functions: funcs}, nil
}

// runtimeContext evaluates against the live property bag of the session.
func (c *Compiler) runtimeContext(ctx context.Context, sess *session.Session, sc scope) (*hcl.EvalContext, error) {
	failure, _ := ctx.Value(errorKey{}).(error)
	return evalContext(sess.Props.Snapshot(), sc, failure, c.funcs)
}

// staticContext evaluates at configuration time against the resolved
// properties.
func (c *Compiler) staticContext(sc scope) (*hcl.EvalContext, error) {
	return evalContext(c.props, sc, nil, c.funcs)
}

func envObject() cty.Value {
	vars := make(map[string]cty.Value)
	for _, kv := range os.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if ok && k != "" {
			vars[k] = cty.StringVal(v)
		}
	}
	return cty.ObjectVal(vars)
}

// evalBool evaluates a guard expression. Null counts as false.
func evalBool(expr hcl.Expression, evalCtx *hcl.EvalContext) (bool, error) {
	val, diags := expr.Value(evalCtx)
	if diags.HasErrors() {
		return false, diags
	}
	val, err := convert.Convert(val, cty.Bool)
	if err != nil {
		return false, fmt.Errorf("%s: condition must be a bool: %w", expr.Range(), err)
	}
	if val.IsNull() {
		return false, nil
	}
	if !val.IsKnown() {
		return false, fmt.Errorf("%s: condition is unknown", expr.Range())
	}
	return val.True(), nil
}

// evalString evaluates an expression that must produce a string.
func evalString(expr hcl.Expression, evalCtx *hcl.EvalContext) (string, error) {
	val, diags := expr.Value(evalCtx)
	if diags.HasErrors() {
		return "", diags
	}
	val, err := convert.Convert(val, cty.String)
	if err != nil || val.IsNull() || !val.IsKnown() {
		return "", fmt.Errorf("%s: value must be a string", expr.Range())
	}
	return val.AsString(), nil
}

// expandForEach turns a for_each value into ordered items. Lists and tuples
// are keyed by index, sets by the element itself, maps and objects by key.
func expandForEach(val cty.Value) ([]eachItem, error) {
	if val.IsNull() {
		return nil, nil
	}
	if !val.IsWhollyKnown() {
		return nil, fmt.Errorf("for_each value must be known at configuration time")
	}

	ty := val.Type()
	if !ty.IsListType() && !ty.IsTupleType() && !ty.IsSetType() && !ty.IsMapType() && !ty.IsObjectType() {
		return nil, fmt.Errorf("for_each requires a list, set, tuple, map or object, got %s", ty.FriendlyName())
	}

	items := make([]eachItem, 0, val.LengthInt())
	it := val.ElementIterator()
	for it.Next() {
		key, value := it.Element()
		if ty.IsSetType() {
			key = value
		}
		items = append(items, eachItem{Key: key, Value: value})
	}
	return items, nil
}
