package wire

import (
	"encoding/json"
	"fmt"
)

// batchBody is the published message body: {"queries": [[text, key], ...]}.
type batchBody struct {
	Queries [][2]string `json:"queries"`
}

// EncodeBatch renders a batch as a message body.
func EncodeBatch(b Batch) ([]byte, error) {
	body := batchBody{Queries: make([][2]string, len(b))}
	for i, st := range b {
		body.Queries[i] = [2]string{st.Text, st.ResultKey}
	}
	return json.Marshal(body)
}

// DecodeBatch parses a message body into a batch.
func DecodeBatch(data []byte) (Batch, error) {
	var body batchBody
	if err := json.Unmarshal(data, &body); err != nil {
		return nil, fmt.Errorf("decode batch body: %w", err)
	}
	b := make(Batch, len(body.Queries))
	for i, q := range body.Queries {
		b[i] = Statement{Text: q[0], ResultKey: q[1]}
	}
	return b, nil
}

// MarshalJSON flattens the result into the stored form: one top-level
// key per result key, plus "affected" and "timers". Statements routinely
// use "affected" as their result key to fold row counts into the
// envelope field; an empty row list under a reserved key is therefore
// dropped, and only actual rows under one are an error.
func (r *Result) MarshalJSON() ([]byte, error) {
	flat := make(map[string]any, len(r.Rows)+2)
	for key, rows := range r.Rows {
		if ReservedResultKey(key) {
			if len(rows) > 0 {
				return nil, fmt.Errorf("rows under result key %q collide with a reserved envelope field", key)
			}
			continue
		}
		flat[key] = rows
	}
	flat["affected"] = r.Affected
	flat["timers"] = r.Timers
	return json.Marshal(flat)
}

// UnmarshalJSON parses the stored form back into a result. Every
// top-level key other than "affected" and "timers" is a row list.
func (r *Result) UnmarshalJSON(data []byte) error {
	var flat map[string]json.RawMessage
	if err := json.Unmarshal(data, &flat); err != nil {
		return err
	}
	r.Rows = make(map[string][]Row)
	r.Timers = make(map[string]float64)
	for key, raw := range flat {
		switch key {
		case "affected":
			if err := json.Unmarshal(raw, &r.Affected); err != nil {
				return fmt.Errorf("decode affected: %w", err)
			}
		case "timers":
			if err := json.Unmarshal(raw, &r.Timers); err != nil {
				return fmt.Errorf("decode timers: %w", err)
			}
		default:
			var rows []Row
			if err := json.Unmarshal(raw, &rows); err != nil {
				return fmt.Errorf("decode rows for %q: %w", key, err)
			}
			r.Rows[key] = rows
		}
	}
	return nil
}

// EncodeResult renders a result for the correlation store.
func EncodeResult(r *Result) ([]byte, error) {
	return json.Marshal(r)
}

// DecodeResult parses a stored result envelope.
func DecodeResult(data []byte) (*Result, error) {
	r := &Result{}
	if err := json.Unmarshal(data, r); err != nil {
		return nil, fmt.Errorf("decode result envelope: %w", err)
	}
	return r, nil
}
