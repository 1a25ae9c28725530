package degradation

import (
	"context"
	"fmt"
)

// Fallback substitutes a result when the primary operation fails or is
// blocked by an open breaker. Exactly one of Data or Fn may be set: Data is
// a static value returned as-is, Fn is re-invoked on every failure.
type Fallback struct {
	Data any
	Fn   func(ctx context.Context) (any, error)
}

// Validate rejects fallbacks configuring both a static value and a function.
func (f Fallback) Validate() error {
	if f.Data != nil && f.Fn != nil {
		return ErrAmbiguousFallback
	}

	return nil
}

// usable reports whether the fallback can produce a value at all.
func (f Fallback) usable() bool {
	return f.Data != nil || f.Fn != nil
}

// resolve produces the substitute value. Panics inside a fallback function
// are contained and reported as errors.
func (f Fallback) resolve(ctx context.Context) (result any, err error) {
	if f.Fn == nil {
		return f.Data, nil
	}

	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("%w: panic: %v", ErrFallbackFailed, r)
		}
	}()

	result, err = f.Fn(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFallbackFailed, err)
	}

	return result, nil
}

// StaticFallback builds a fallback returning a fixed value.
func StaticFallback(data any) *Fallback {
	return &Fallback{Data: data}
}

// FuncFallback builds a fallback re-invoking fn on every failure.
func FuncFallback(fn func(ctx context.Context) (any, error)) *Fallback {
	return &Fallback{Fn: fn}
}
