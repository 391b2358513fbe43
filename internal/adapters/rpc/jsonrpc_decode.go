package rpc

import (
	"bytes"
	"encoding/json"
	"strings"
)

type loginParams struct {
	Relogin   bool   `json:"relogin"`
	LoginHint string `json:"loginHint"`
}

// decodeLoginParams accepts [], [relogin], [relogin, loginHint] or
// {"relogin":..,"loginHint":..}. Missing params mean a relogin without hint.
func decodeLoginParams(raw json.RawMessage) (loginParams, error) {
	if isEmptyParams(raw) {
		return loginParams{Relogin: true}, nil
	}
	var arr []json.RawMessage
	if err := json.Unmarshal(raw, &arr); err == nil {
		if len(arr) > 2 {
			return loginParams{}, errInvalidParams
		}
		out := loginParams{Relogin: true}
		if len(arr) >= 1 {
			if err := json.Unmarshal(arr[0], &out.Relogin); err != nil {
				return loginParams{}, errInvalidParams
			}
		}
		if len(arr) == 2 {
			if err := json.Unmarshal(arr[1], &out.LoginHint); err != nil {
				return loginParams{}, errInvalidParams
			}
		}
		out.LoginHint = strings.TrimSpace(out.LoginHint)
		return out, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	var obj loginParams
	if err := dec.Decode(&obj); err != nil {
		return loginParams{}, errInvalidParams
	}
	obj.LoginHint = strings.TrimSpace(obj.LoginHint)
	return obj, nil
}

func requireNoParams(raw json.RawMessage) error {
	if isEmptyParams(raw) {
		return nil
	}
	var arr []json.RawMessage
	if err := json.Unmarshal(raw, &arr); err == nil && len(arr) == 0 {
		return nil
	}
	return errInvalidParams
}

func isEmptyParams(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
