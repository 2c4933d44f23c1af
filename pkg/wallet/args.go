package wallet

import (
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"reflect"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/params"
)

// coerceArgs converts the loosely typed JSON arguments of a descriptor into
// the Go values the ABI encoder expects for the method's input types.
func coerceArgs(method abi.Method, args []interface{}) ([]interface{}, error) {
	if len(args) != len(method.Inputs) {
		return nil, fmt.Errorf("%s expects %d arguments, got %d", method.Name, len(method.Inputs), len(args))
	}
	out := make([]interface{}, len(args))
	for i, arg := range args {
		v, err := coerceValue(arg, method.Inputs[i].Type)
		if err != nil {
			return nil, fmt.Errorf("argument %d of %s: %v", i, method.Name, err)
		}
		out[i] = v
	}
	return out, nil
}

func coerceValue(v interface{}, t abi.Type) (interface{}, error) {
	switch t.T {
	case abi.AddressTy:
		s, ok := v.(string)
		if !ok || !common.IsHexAddress(s) {
			return nil, fmt.Errorf("expected address, got %v", v)
		}
		return common.HexToAddress(s), nil

	case abi.UintTy, abi.IntTy:
		n, err := toBigInt(v)
		if err != nil {
			return nil, err
		}
		return sizedInteger(n, t)

	case abi.BoolTy:
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("expected bool, got %v", v)
		}
		return b, nil

	case abi.StringTy:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("expected string, got %v", v)
		}
		return s, nil

	case abi.BytesTy:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("expected hex string, got %v", v)
		}
		if s == "" || s == "0x" {
			return []byte{}, nil
		}
		data, err := hexutil.Decode(s)
		if err != nil {
			return nil, fmt.Errorf("invalid bytes value %q: %v", s, err)
		}
		return data, nil

	case abi.FixedBytesTy:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("expected hex string, got %v", v)
		}
		data, err := hexutil.Decode(s)
		if err != nil {
			return nil, fmt.Errorf("invalid bytes%d value %q: %v", t.Size, s, err)
		}
		if len(data) != t.Size {
			return nil, fmt.Errorf("bytes%d value has %d bytes", t.Size, len(data))
		}
		arr := reflect.New(t.GetType()).Elem()
		reflect.Copy(arr, reflect.ValueOf(data))
		return arr.Interface(), nil

	case abi.SliceTy:
		items, ok := v.([]interface{})
		if !ok {
			return nil, fmt.Errorf("expected array, got %v", v)
		}
		slice := reflect.MakeSlice(t.GetType(), len(items), len(items))
		for i, item := range items {
			elem, err := coerceValue(item, *t.Elem)
			if err != nil {
				return nil, fmt.Errorf("element %d: %v", i, err)
			}
			slice.Index(i).Set(reflect.ValueOf(elem))
		}
		return slice.Interface(), nil

	case abi.ArrayTy:
		// Fixed arrays map to a Go array type, which MakeSlice cannot build.
		items, ok := v.([]interface{})
		if !ok {
			return nil, fmt.Errorf("expected array, got %v", v)
		}
		if len(items) != t.Size {
			return nil, fmt.Errorf("expected %d elements, got %d", t.Size, len(items))
		}
		arr := reflect.New(t.GetType()).Elem()
		for i, item := range items {
			elem, err := coerceValue(item, *t.Elem)
			if err != nil {
				return nil, fmt.Errorf("element %d: %v", i, err)
			}
			arr.Index(i).Set(reflect.ValueOf(elem))
		}
		return arr.Interface(), nil

	case abi.TupleTy:
		fields, ok := v.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("expected object, got %v", v)
		}
		tuple := reflect.New(t.GetType()).Elem()
		for i, name := range t.TupleRawNames {
			raw, present := fields[name]
			if !present {
				return nil, fmt.Errorf("missing tuple field %q", name)
			}
			elem, err := coerceValue(raw, *t.TupleElems[i])
			if err != nil {
				return nil, fmt.Errorf("tuple field %q: %v", name, err)
			}
			tuple.Field(i).Set(reflect.ValueOf(elem))
		}
		return tuple.Interface(), nil

	default:
		return nil, fmt.Errorf("unsupported ABI type %s", t.String())
	}
}

// toBigInt accepts the numeric shapes a JSON decode can produce: json.Number
// from UseNumber decoding, strings from the resolver, and native integers
// from placeholder substitution.
func toBigInt(v interface{}) (*big.Int, error) {
	switch n := v.(type) {
	case json.Number:
		i, ok := new(big.Int).SetString(n.String(), 10)
		if !ok {
			return nil, fmt.Errorf("invalid integer %q", n.String())
		}
		return i, nil
	case string:
		s := strings.TrimSpace(n)
		base := 10
		if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
			s, base = s[2:], 16
		}
		i, ok := new(big.Int).SetString(s, base)
		if !ok {
			return nil, fmt.Errorf("invalid integer %q", n)
		}
		return i, nil
	case float64:
		if n != float64(int64(n)) {
			return nil, fmt.Errorf("non-integral number %v", n)
		}
		return big.NewInt(int64(n)), nil
	case int64:
		return big.NewInt(n), nil
	case int:
		return big.NewInt(int64(n)), nil
	case *big.Int:
		return n, nil
	default:
		return nil, fmt.Errorf("expected integer, got %T", v)
	}
}

// sizedInteger returns the exact Go representation the encoder wants for the
// integer width: native integers for the machine sizes, *big.Int for
// everything else.
func sizedInteger(n *big.Int, t abi.Type) (interface{}, error) {
	switch t.Size {
	case 8, 16, 32, 64:
	default:
		return n, nil
	}
	if t.T == abi.UintTy {
		if n.Sign() < 0 || n.BitLen() > t.Size {
			return nil, fmt.Errorf("value %s overflows uint%d", n, t.Size)
		}
		u := n.Uint64()
		switch t.Size {
		case 8:
			return uint8(u), nil
		case 16:
			return uint16(u), nil
		case 32:
			return uint32(u), nil
		default:
			return u, nil
		}
	}
	if !n.IsInt64() {
		return nil, fmt.Errorf("value %s overflows int%d", n, t.Size)
	}
	i := n.Int64()
	switch t.Size {
	case 8:
		if i < math.MinInt8 || i > math.MaxInt8 {
			return nil, fmt.Errorf("value %s overflows int8", n)
		}
		return int8(i), nil
	case 16:
		if i < math.MinInt16 || i > math.MaxInt16 {
			return nil, fmt.Errorf("value %s overflows int16", n)
		}
		return int16(i), nil
	case 32:
		if i < math.MinInt32 || i > math.MaxInt32 {
			return nil, fmt.Errorf("value %s overflows int32", n)
		}
		return int32(i), nil
	default:
		return i, nil
	}
}

// ParseEther converts a decimal ETH amount to wei. Amounts with more than 18
// fractional digits are rejected rather than rounded.
func ParseEther(value string) (*big.Int, error) {
	if value == "" {
		return big.NewInt(0), nil
	}
	rat, ok := new(big.Rat).SetString(value)
	if !ok {
		return nil, fmt.Errorf("invalid ETH amount %q", value)
	}
	if rat.Sign() < 0 {
		return nil, fmt.Errorf("negative ETH amount %q", value)
	}
	wei := new(big.Rat).Mul(rat, new(big.Rat).SetInt(big.NewInt(params.Ether)))
	if !wei.IsInt() {
		return nil, fmt.Errorf("ETH amount %q has sub-wei precision", value)
	}
	return wei.Num(), nil
}

// FormatUnits renders a smallest-unit amount as a decimal string with a
// fixed number of fractional digits.
func FormatUnits(amount *big.Int, decimals uint8, places int) string {
	if amount == nil {
		amount = big.NewInt(0)
	}
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	return new(big.Rat).SetFrac(amount, scale).FloatString(places)
}
