package gateway

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kalambet/faultchat/internal/diagnosis"
)

// envelope is the superset of keys any object-shaped reply may carry.
type envelope struct {
	Type     *string         `json:"type"`
	Awaiting string          `json:"awaiting"`
	Message  string          `json:"message"`
	Session  string          `json:"session_id"`
	Fault    json.RawMessage `json:"fault"`
	Error    json.RawMessage `json:"error"`

	// Hybrid engine wrapper around an ordered result list.
	Results        *[]diagnosis.Fault `json:"results"`
	IsUnknownQuery bool               `json:"is_unknown_query"`
	UnknownMessage string             `json:"unknown_message"`
	MissingTerms   []string           `json:"missing_terms"`
	Suggestion     string             `json:"suggestion"`
}

// Decode normalizes a diagnosis service reply into a tagged Response.
//
// Accepted shapes:
//   - {"type":"clarification","awaiting":...,"message":...}
//   - a single fault record {"fault":...,"causes":[...]}
//   - an ordered array of fault records
//   - {"results":[...],"is_unknown_query":true,"unknown_message":...}
//
// Anything else, including empty bodies, JSON null and objects without a
// fault, is malformed.
func Decode(body []byte) (diagnosis.Response, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return diagnosis.Response{}, errors.New("empty response body")
	}

	switch body[0] {
	case '[':
		var faults []diagnosis.Fault
		if err := json.Unmarshal(body, &faults); err != nil {
			return diagnosis.Response{}, fmt.Errorf("decoding fault list: %w", err)
		}
		return diagnosis.NewDiagnosisResponse(diagnosis.Diagnosis{Candidates: faults}), nil
	case '{':
	default:
		return diagnosis.Response{}, fmt.Errorf("unexpected response body starting with %q", body[0])
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return diagnosis.Response{}, fmt.Errorf("decoding response: %w", err)
	}

	if env.Type != nil && *env.Type == "clarification" {
		resp := diagnosis.NewClarificationResponse(diagnosis.Clarification{
			Awaiting: diagnosis.Awaiting(env.Awaiting),
			Message:  env.Message,
		})
		resp.Session = env.Session
		return resp, nil
	}

	if env.Results != nil {
		d := diagnosis.Diagnosis{Candidates: *env.Results}
		if env.IsUnknownQuery {
			d.Notice = &diagnosis.Notice{
				Message:      env.UnknownMessage,
				MissingTerms: env.MissingTerms,
				Suggestion:   env.Suggestion,
			}
		}
		resp := diagnosis.NewDiagnosisResponse(d)
		resp.Session = env.Session
		return resp, nil
	}

	if len(env.Fault) == 0 {
		if len(env.Error) > 0 {
			return diagnosis.Response{}, fmt.Errorf("service reported an error: %s", env.Error)
		}
		return diagnosis.Response{}, errors.New("response has no fault, results or clarification")
	}

	var fault diagnosis.Fault
	if err := json.Unmarshal(body, &fault); err != nil {
		return diagnosis.Response{}, fmt.Errorf("decoding fault record: %w", err)
	}
	resp := diagnosis.NewDiagnosisResponse(diagnosis.Diagnosis{Candidates: []diagnosis.Fault{fault}})
	resp.Session = env.Session
	return resp, nil
}
