package engine

import (
	"context"
	stderrors "errors"
	"math"
	"strings"

	"go.uber.org/zap"

	"github.com/wippyai/wasm-interp/errors"
	"github.com/wippyai/wasm-interp/runtime"
	"github.com/wippyai/wasm-interp/wasm"
)

// Compare invokes name on actual and reference with the same arguments.
// It returns actual's outcome when both agree: equal results, or failures
// of the same kind. Any disagreement fails with KindMismatch.
func Compare(ctx context.Context, actual, reference Backend, name string, args []runtime.Value) ([]runtime.Value, error) {
	got, gotErr := actual.Invoke(ctx, name, args)
	want, wantErr := reference.Invoke(ctx, name, args)

	log := Logger().With(
		zap.String("export", name),
		zap.String("actual", actual.Name()),
		zap.String("reference", reference.Name()),
	)

	switch {
	case gotErr != nil && wantErr != nil:
		if kindOf(gotErr) == kindOf(wantErr) {
			return nil, gotErr
		}
		log.Warn("trap mismatch", zap.NamedError("actual_error", gotErr), zap.NamedError("reference_error", wantErr))
		return nil, mismatch(name, string(kindOf(wantErr)), string(kindOf(gotErr)), gotErr)

	case gotErr != nil:
		log.Warn("actual failed", zap.Error(gotErr), zap.Stringers("reference_results", want))
		return nil, mismatch(name, joinValues(want), string(kindOf(gotErr)), gotErr)

	case wantErr != nil:
		log.Warn("reference failed", zap.Error(wantErr), zap.Stringers("actual_results", got))
		return nil, mismatch(name, string(kindOf(wantErr)), joinValues(got), wantErr)
	}

	if !equalValues(got, want) {
		log.Warn("result mismatch", zap.Stringers("actual_results", got), zap.Stringers("reference_results", want))
		return nil, mismatch(name, joinValues(want), joinValues(got), nil)
	}

	log.Debug("results agree", zap.Stringers("results", got))
	return got, nil
}

func mismatch(name, expected, actual string, cause error) *errors.Error {
	b := errors.New(errors.PhaseRuntime, errors.KindMismatch).
		Path("export", name).
		Expected(expected).
		Actual(actual).
		Detail("backends disagree")
	if cause != nil {
		b = b.Cause(cause)
	}
	return b.Build()
}

func kindOf(err error) errors.Kind {
	var e *errors.Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return errors.KindUnexpected
}

// equalValues compares types and bit patterns. Any two NaNs of the same type
// are equal since backends may produce different payloads.
func equalValues(a, b []runtime.Value) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Type() != b[i].Type() {
			return false
		}
		if a[i].Raw() == b[i].Raw() {
			continue
		}
		switch a[i].Type() {
		case wasm.ValF32:
			if math.IsNaN(float64(a[i].F32())) && math.IsNaN(float64(b[i].F32())) {
				continue
			}
		case wasm.ValF64:
			if math.IsNaN(a[i].F64()) && math.IsNaN(b[i].F64()) {
				continue
			}
		}
		return false
	}
	return true
}

func joinValues(vals []runtime.Value) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = v.String()
	}
	return strings.Join(parts, ", ")
}
