package models

// Event is a decoded record read off the bus. The payload is schemaless
// JSON, so Extra carries whatever fields the producer put next to meta.
type Event struct {
	Meta  EventMeta              `json:"meta"`
	Extra map[string]interface{} `json:"-"`
}

// EventMeta is the required sub-record every event carries.
type EventMeta struct {
	URI         string `json:"uri"`
	RequestID   string `json:"request_id"`
	Topic       string `json:"topic"`
	Domain      string `json:"domain,omitempty"`
	TriggeredBy string `json:"triggered_by,omitempty"`
}

// TriggeredByToken identifies how a request came to be issued, for the
// x-triggered-by chain and loop detection.
func (e *Event) TriggeredByToken(ruleName string) string {
	return ruleName + ":" + e.Meta.URI
}

// AsTree returns the event as a generic value tree suitable for the
// matcher and template packages: a map with "meta" and the flattened
// extra fields alongside it, mirroring how the source JSON looked on
// the wire.
func (e *Event) AsTree() map[string]interface{} {
	tree := make(map[string]interface{}, len(e.Extra)+1)
	for k, v := range e.Extra {
		tree[k] = v
	}
	tree["meta"] = map[string]interface{}{
		"uri":          e.Meta.URI,
		"request_id":   e.Meta.RequestID,
		"topic":        e.Meta.Topic,
		"domain":       e.Meta.Domain,
		"triggered_by": e.Meta.TriggeredBy,
	}
	return tree
}
