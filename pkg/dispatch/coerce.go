package dispatch

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/wscomms-dev/wscomms/pkg/protocol"
)

var (
	errNull        = errors.New("null value")
	errNotScalar   = errors.New("structured value for scalar parameter")
	errNotIntegral = errors.New("value is not integral")
	errOutOfRange  = errors.New("value out of range")
	errNotNumeric  = errors.New("value is not numeric")
	errNotBoolean  = errors.New("value is not boolean")
	errUnsupported = errors.New("unsupported conversion")
)

// Coerce converts a wire value to T.
//
// Arrays and objects are decoded structurally into T. Scalars follow
// primitive conversion rules: numbers convert to any integer or float type
// when the value fits, numeric strings parse as numbers, booleans convert to
// 0/1 and back, and any scalar converts to its string form.
func Coerce[T any](v protocol.Value) (T, error) {
	var out T
	if err := coerceInto(v, &out); err != nil {
		return out, err
	}
	return out, nil
}

func coerceInto(v protocol.Value, dst any) error {
	switch d := dst.(type) {
	case *protocol.Value:
		*d = v
		return nil
	case *any:
		return v.Decode(d)
	case *string:
		s, err := stringOf(v)
		*d = s
		return err
	case *bool:
		b, err := boolOf(v)
		*d = b
		return err
	case *int:
		n, err := intOf(v, strconv.IntSize)
		*d = int(n)
		return err
	case *int8:
		n, err := intOf(v, 8)
		*d = int8(n)
		return err
	case *int16:
		n, err := intOf(v, 16)
		*d = int16(n)
		return err
	case *int32:
		n, err := intOf(v, 32)
		*d = int32(n)
		return err
	case *int64:
		n, err := intOf(v, 64)
		*d = n
		return err
	case *uint:
		n, err := uintOf(v, strconv.IntSize)
		*d = uint(n)
		return err
	case *uint8:
		n, err := uintOf(v, 8)
		*d = uint8(n)
		return err
	case *uint16:
		n, err := uintOf(v, 16)
		*d = uint16(n)
		return err
	case *uint32:
		n, err := uintOf(v, 32)
		*d = uint32(n)
		return err
	case *uint64:
		n, err := uintOf(v, 64)
		*d = n
		return err
	case *float32:
		f, err := floatOf(v, 32)
		*d = float32(f)
		return err
	case *float64:
		f, err := floatOf(v, 64)
		*d = f
		return err
	}

	// Structs, slices, maps and pointers decode as JSON.
	if err := v.Decode(dst); err != nil {
		return fmt.Errorf("%w: %w", errUnsupported, err)
	}
	return nil
}

// scalarText returns the literal text of a scalar: the number as written,
// the unquoted string, or "true"/"false".
func scalarText(v protocol.Value) (string, error) {
	switch v.Kind() {
	case protocol.KindNull:
		return "", errNull
	case protocol.KindArray, protocol.KindObject:
		return "", errNotScalar
	case protocol.KindString:
		s, _ := v.Text()
		return s, nil
	default:
		return string(v.Raw()), nil
	}
}

// stringOf is scalarText except that null becomes the empty string.
func stringOf(v protocol.Value) (string, error) {
	if v.IsNull() {
		return "", nil
	}
	return scalarText(v)
}

func boolOf(v protocol.Value) (bool, error) {
	switch v.Kind() {
	case protocol.KindBool:
		b, _ := v.Bool()
		return b, nil
	case protocol.KindNumber:
		f, err := floatOf(v, 64)
		if err != nil {
			return false, err
		}
		return f != 0, nil
	}
	s, err := scalarText(v)
	if err != nil {
		return false, err
	}
	b, err := strconv.ParseBool(strings.TrimSpace(s))
	if err != nil {
		return false, errNotBoolean
	}
	return b, nil
}

// numberText returns a value's numeric literal. Booleans read as 1 or 0.
func numberText(v protocol.Value) (string, error) {
	if b, ok := v.Bool(); ok {
		if b {
			return "1", nil
		}
		return "0", nil
	}
	s, err := scalarText(v)
	if err != nil {
		return "", err
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return "", errNotNumeric
	}
	return s, nil
}

func intOf(v protocol.Value, bits int) (int64, error) {
	s, err := numberText(v)
	if err != nil {
		return 0, err
	}
	if n, err := strconv.ParseInt(s, 10, bits); err == nil {
		return n, nil
	}
	f, err := parseFloat(s)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) {
		return 0, errNotIntegral
	}
	lim := math.Ldexp(1, bits-1)
	if f < -lim || f >= lim {
		return 0, errOutOfRange
	}
	return int64(f), nil
}

func uintOf(v protocol.Value, bits int) (uint64, error) {
	s, err := numberText(v)
	if err != nil {
		return 0, err
	}
	if n, err := strconv.ParseUint(s, 10, bits); err == nil {
		return n, nil
	}
	f, err := parseFloat(s)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) {
		return 0, errNotIntegral
	}
	if f < 0 || f >= math.Ldexp(1, bits) {
		return 0, errOutOfRange
	}
	return uint64(f), nil
}

func floatOf(v protocol.Value, bits int) (float64, error) {
	s, err := numberText(v)
	if err != nil {
		return 0, err
	}
	f, err := parseFloat(s)
	if err != nil {
		return 0, err
	}
	if bits == 32 && math.Abs(f) > math.MaxFloat32 {
		return 0, errOutOfRange
	}
	return f, nil
}

func parseFloat(s string) (float64, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		var numErr *strconv.NumError
		if errors.As(err, &numErr) && errors.Is(numErr.Err, strconv.ErrRange) {
			return 0, errOutOfRange
		}
		return 0, errNotNumeric
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, errNotNumeric
	}
	return f, nil
}

// typeName returns the Go type name of T without reflection.
func typeName[T any]() string {
	return strings.TrimPrefix(fmt.Sprintf("%T", (*T)(nil)), "*")
}
