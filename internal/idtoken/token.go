// Package idtoken decodes JWT login hints and issues the ES256K identity
// tokens handed out by the wallet session.
package idtoken

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"mpc-wallet/go-backend/internal/outcome"

	"github.com/ethereum/go-ethereum/crypto"
)

const AlgES256K = "ES256K"

var (
	ErrMalformed        = outcome.DecodeError("malformed identity token")
	ErrInvalidSignature = errors.New("identity token signature is invalid")
	ErrSigningKey       = errors.New("signing key is required")
)

type Header struct {
	Alg string `json:"alg"`
	Typ string `json:"typ"`
	Kid string `json:"kid,omitempty"`
}

// Claims is a decoded JWT payload. Numbers are kept as json.Number.
type Claims map[string]any

func (c Claims) String(key string) string {
	v, _ := c[key].(string)
	return strings.TrimSpace(v)
}

// Audience returns the aud claim, which may be a string or a list.
func (c Claims) Audience() []string {
	switch v := c["aud"].(type) {
	case string:
		if strings.TrimSpace(v) == "" {
			return nil
		}
		return []string{v}
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// Time reads a NumericDate claim. ok is false when absent or not numeric.
func (c Claims) Time(key string) (time.Time, bool) {
	switch v := c[key].(type) {
	case json.Number:
		secs, err := v.Int64()
		if err != nil {
			f, ferr := v.Float64()
			if ferr != nil {
				return time.Time{}, false
			}
			secs = int64(f)
		}
		return time.Unix(secs, 0).UTC(), true
	case float64:
		return time.Unix(int64(v), 0).UTC(), true
	case int64:
		return time.Unix(v, 0).UTC(), true
	case int:
		return time.Unix(int64(v), 0).UTC(), true
	default:
		return time.Time{}, false
	}
}

// Decode returns the payload claims of a compact JWT without checking the
// signature. Any structural problem is reported as ErrMalformed.
func Decode(token string) (Claims, error) {
	parts := strings.Split(strings.TrimSpace(token), ".")
	if len(parts) < 2 || parts[1] == "" {
		return nil, fmt.Errorf("%w: missing payload segment", ErrMalformed)
	}
	raw, err := decodeSegment(parts[1])
	if err != nil {
		return nil, fmt.Errorf("%w: payload is not base64: %v", ErrMalformed, err)
	}
	claims, err := unmarshalClaims(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: payload is not a json object: %v", ErrMalformed, err)
	}
	return claims, nil
}

// Issue signs claims as a compact ES256K JWS.
func Issue(key *ecdsa.PrivateKey, kid string, claims Claims) (string, error) {
	if key == nil {
		return "", ErrSigningKey
	}
	header, err := json.Marshal(Header{Alg: AlgES256K, Typ: "JWT", Kid: kid})
	if err != nil {
		return "", err
	}
	payload, err := json.Marshal(claims)
	if err != nil {
		return "", err
	}
	input := encodeSegment(header) + "." + encodeSegment(payload)
	digest := sha256.Sum256([]byte(input))
	sig, err := crypto.Sign(digest[:], key)
	if err != nil {
		return "", err
	}
	// JWS carries r||s only.
	return input + "." + encodeSegment(sig[:64]), nil
}

// Verify checks an ES256K token against pub and returns its claims.
func Verify(token string, pub *ecdsa.PublicKey) (Claims, error) {
	parts := strings.Split(strings.TrimSpace(token), ".")
	if len(parts) != 3 {
		return nil, fmt.Errorf("%w: expected 3 segments, got %d", ErrMalformed, len(parts))
	}
	rawHeader, err := decodeSegment(parts[0])
	if err != nil {
		return nil, fmt.Errorf("%w: header is not base64", ErrMalformed)
	}
	var header Header
	if err := json.Unmarshal(rawHeader, &header); err != nil {
		return nil, fmt.Errorf("%w: header is not json", ErrMalformed)
	}
	if header.Alg != AlgES256K {
		return nil, fmt.Errorf("%w: unsupported alg %q", ErrInvalidSignature, header.Alg)
	}
	sig, err := decodeSegment(parts[2])
	if err != nil || len(sig) != 64 {
		return nil, fmt.Errorf("%w: signature segment", ErrMalformed)
	}
	digest := sha256.Sum256([]byte(parts[0] + "." + parts[1]))
	if pub == nil || !crypto.VerifySignature(crypto.FromECDSAPub(pub), digest[:], sig) {
		return nil, ErrInvalidSignature
	}
	return Decode(token)
}

func encodeSegment(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}

// decodeSegment accepts base64url with or without padding and tolerates the
// standard alphabet some issuers emit.
func decodeSegment(seg string) ([]byte, error) {
	seg = strings.TrimRight(seg, "=")
	if out, err := base64.RawURLEncoding.DecodeString(seg); err == nil {
		return out, nil
	}
	return base64.RawStdEncoding.DecodeString(seg)
}

func unmarshalClaims(raw []byte) (Claims, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var claims Claims
	if err := dec.Decode(&claims); err != nil {
		return nil, err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return nil, errors.New("trailing data after payload")
	}
	if claims == nil {
		return nil, errors.New("null payload")
	}
	return claims, nil
}
