package api

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// envelope is the backend's common response shape
type envelope struct {
	Message json.RawMessage `json:"message"`
	Data    json.RawMessage `json:"data"`
	Errors  json.RawMessage `json:"errors"`
}

func decode[T any](raw response, wholeBody bool) Result[T] {
	res := Result[T]{Status: raw.status}
	if raw.err != nil {
		res.Message = raw.message
		res.Err = raw.err
		return res
	}

	body := bytes.TrimSpace(raw.body)
	var env envelope
	isObject := len(body) > 0 && body[0] == '{'
	if isObject {
		// A malformed object leaves env empty; the payload decode below reports it
		_ = json.Unmarshal(body, &env)
	}

	if raw.status < 200 || raw.status > 299 {
		res.Message = stringField(env.Message)
		if res.Message == "" {
			res.Message = DefaultErrorMessage
		}
		res.Errors = fieldErrors(env.Errors)
		res.Err = fmt.Errorf("%w: %d", ErrStatus, raw.status)
		return res
	}

	res.Message = stringField(env.Message)
	if len(body) == 0 {
		res.Success = true
		return res
	}

	payload := body
	if !wholeBody && isObject && len(env.Data) > 0 && !bytes.Equal(env.Data, []byte("null")) {
		payload = env.Data
	}
	if err := json.Unmarshal(payload, &res.Data); err != nil {
		var zero T
		res.Data = zero
		res.Message = DecodeMessage
		res.Err = fmt.Errorf("%w: %v", ErrDecode, err)
		return res
	}

	res.Success = true
	return res
}

func stringField(raw json.RawMessage) string {
	var s string
	if len(raw) == 0 || json.Unmarshal(raw, &s) != nil {
		return ""
	}
	return s
}

// fieldErrors accepts both {"field": ["msg"]} and {"field": "msg"}
func fieldErrors(raw json.RawMessage) map[string][]string {
	if len(raw) == 0 {
		return nil
	}
	var many map[string][]string
	if err := json.Unmarshal(raw, &many); err == nil {
		if len(many) == 0 {
			return nil
		}
		return many
	}
	var single map[string]string
	if err := json.Unmarshal(raw, &single); err == nil && len(single) > 0 {
		out := make(map[string][]string, len(single))
		for field, msg := range single {
			out[field] = []string{msg}
		}
		return out
	}
	return nil
}
