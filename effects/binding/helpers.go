package binding

import (
	"context"
	"errors"
	"fmt"

	"github.com/on-the-ground/effect_ive_gpcache/shared/helper"
)

// GetFromBindingEffect fetches a typed value from the Binding effect using the provided key.
// Returns a zero value and error if the key is not found or the type is mismatched.
func GetFromBindingEffect[T any](ctx context.Context, key string) (T, error) {
	return helper.GetTypedValueOf[T](func() (any, error) {
		return Effect(ctx, key)
	})
}

// MustGetFromBindingEffect is the panic-on-failure variant of GetFromBindingEffect.
func MustGetFromBindingEffect[T any](ctx context.Context, key string) T {
	return helper.MustGetTypedValue[T](func() (any, error) {
		return Effect(ctx, key)
	})
}

// GetIntOr returns the integer bound to key, or def when key is unbound.
// Values decoded from YAML or JSON may arrive as any numeric type.
func GetIntOr(ctx context.Context, key string, def int) (int, error) {
	v, err := Effect(ctx, key)
	if errors.Is(err, ErrKeyNotFound) {
		return def, nil
	}
	if err != nil {
		return def, err
	}
	n, ok := helper.ToInt(v)
	if !ok {
		return def, fmt.Errorf("%w: %s is %T, want int", helper.ErrUnexpectedType, key, v)
	}
	return n, nil
}

// GetFloat64Or returns the number bound to key, or def when key is unbound.
func GetFloat64Or(ctx context.Context, key string, def float64) (float64, error) {
	v, err := Effect(ctx, key)
	if errors.Is(err, ErrKeyNotFound) {
		return def, nil
	}
	if err != nil {
		return def, err
	}
	f, ok := helper.ToFloat64(v)
	if !ok {
		return def, fmt.Errorf("%w: %s is %T, want number", helper.ErrUnexpectedType, key, v)
	}
	return f, nil
}
