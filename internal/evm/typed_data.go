package evm

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"mpc-wallet/go-backend/internal/contracts"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// TypedDataV1Hash is keccak256(keccak256(schema) || keccak256(values)), where
// schema packs "<type> <name>" strings and values are tightly packed by type.
func TypedDataV1Hash(fields []contracts.TypedField) ([]byte, error) {
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: typed data is empty", ErrInvalidRequestArgs)
	}
	var schema, values []byte
	for _, f := range fields {
		if strings.TrimSpace(f.Type) == "" || strings.TrimSpace(f.Name) == "" {
			return nil, fmt.Errorf("%w: typed field needs type and name", ErrInvalidRequestArgs)
		}
		schema = append(schema, f.Type+" "+f.Name...)
		packed, err := packTypedValue(f.Type, f.Value)
		if err != nil {
			return nil, fmt.Errorf("%w: field %q: %v", ErrInvalidRequestArgs, f.Name, err)
		}
		values = append(values, packed...)
	}
	return crypto.Keccak256(crypto.Keccak256(schema), crypto.Keccak256(values)), nil
}

func parseTypedFields(raw any) ([]contracts.TypedField, error) {
	var payload []byte
	switch v := raw.(type) {
	case string:
		payload = []byte(v)
	case json.RawMessage:
		payload = v
	case []contracts.TypedField:
		return v, nil
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("%w: typed data", ErrInvalidRequestArgs)
		}
		payload = encoded
	}
	var fields []contracts.TypedField
	if err := json.Unmarshal(payload, &fields); err != nil {
		return nil, fmt.Errorf("%w: typed data is not a field list", ErrInvalidRequestArgs)
	}
	return fields, nil
}

func packTypedValue(typ string, value any) ([]byte, error) {
	switch {
	case typ == "string":
		s, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("expected string value")
		}
		return []byte(s), nil
	case typ == "bytes":
		s, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("expected hex string value")
		}
		return hexutil.Decode(s)
	case typ == "bool":
		b, ok := value.(bool)
		if !ok {
			return nil, fmt.Errorf("expected bool value")
		}
		if b {
			return []byte{1}, nil
		}
		return []byte{0}, nil
	case typ == "address":
		s, ok := value.(string)
		if !ok || !common.IsHexAddress(s) {
			return nil, fmt.Errorf("expected address value")
		}
		return common.HexToAddress(s).Bytes(), nil
	case strings.HasPrefix(typ, "bytes"):
		size, err := typeSize(typ, "bytes", 1, 32, 1)
		if err != nil {
			return nil, err
		}
		s, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("expected hex string value")
		}
		b, err := hexutil.Decode(s)
		if err != nil {
			return nil, err
		}
		if len(b) > size {
			return nil, fmt.Errorf("value longer than %s", typ)
		}
		return common.RightPadBytes(b, size), nil
	case strings.HasPrefix(typ, "uint"):
		bits, err := typeSize(typ, "uint", 8, 256, 8)
		if err != nil {
			return nil, err
		}
		n, err := typedInteger(value)
		if err != nil {
			return nil, err
		}
		if n.Sign() < 0 || n.BitLen() > bits {
			return nil, fmt.Errorf("value out of range for %s", typ)
		}
		return common.LeftPadBytes(n.Bytes(), bits/8), nil
	case strings.HasPrefix(typ, "int"):
		bits, err := typeSize(typ, "int", 8, 256, 8)
		if err != nil {
			return nil, err
		}
		n, err := typedInteger(value)
		if err != nil {
			return nil, err
		}
		limit := new(big.Int).Lsh(big.NewInt(1), uint(bits-1))
		if n.Cmp(limit) >= 0 || n.Cmp(new(big.Int).Neg(limit)) < 0 {
			return nil, fmt.Errorf("value out of range for %s", typ)
		}
		if n.Sign() < 0 {
			n = new(big.Int).Add(n, new(big.Int).Lsh(big.NewInt(1), uint(bits)))
		}
		return common.LeftPadBytes(n.Bytes(), bits/8), nil
	default:
		return nil, fmt.Errorf("unsupported type %q", typ)
	}
}

// typeSize parses the numeric suffix of typ; an empty suffix means max.
func typeSize(typ, prefix string, min, max, step int) (int, error) {
	suffix := strings.TrimPrefix(typ, prefix)
	if suffix == "" {
		return max, nil
	}
	n, err := strconv.Atoi(suffix)
	if err != nil || n < min || n > max || n%step != 0 {
		return 0, fmt.Errorf("unsupported type %q", typ)
	}
	return n, nil
}

func typedInteger(value any) (*big.Int, error) {
	switch v := value.(type) {
	case float64:
		if v != float64(int64(v)) {
			return nil, fmt.Errorf("expected integer value")
		}
		return big.NewInt(int64(v)), nil
	case json.Number:
		n, ok := new(big.Int).SetString(v.String(), 10)
		if !ok {
			return nil, fmt.Errorf("expected integer value")
		}
		return n, nil
	case string:
		s := strings.TrimSpace(v)
		base := 10
		if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
			s, base = s[2:], 16
		}
		n, ok := new(big.Int).SetString(s, base)
		if !ok {
			return nil, fmt.Errorf("expected integer value")
		}
		return n, nil
	default:
		return nil, fmt.Errorf("expected integer value")
	}
}
