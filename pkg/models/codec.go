package models

import "encoding/json"

// UnmarshalJSON decodes an event, keeping "meta" typed and everything
// else in Extra, so unknown payload fields survive round-trips through
// the matcher and template packages untouched.
func (e *Event) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	if metaRaw, ok := raw["meta"]; ok {
		if err := json.Unmarshal(metaRaw, &e.Meta); err != nil {
			return err
		}
		delete(raw, "meta")
	}

	extra := make(map[string]interface{}, len(raw))
	for k, v := range raw {
		var val interface{}
		if err := json.Unmarshal(v, &val); err != nil {
			return err
		}
		extra[k] = val
	}
	e.Extra = extra
	return nil
}

// MarshalJSON re-flattens Extra alongside meta, matching the shape the
// event was decoded from.
func (e Event) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(e.Extra)+1)
	for k, v := range e.Extra {
		out[k] = v
	}
	out["meta"] = e.Meta
	return json.Marshal(out)
}
