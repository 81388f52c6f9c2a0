package rule

// Spec is the declarative document shape for one rule, as it appears
// in the rules configuration document (spec.md §3, §6). Decoded from
// YAML by the rule source loaders.
type Spec struct {
	Name          string                 `yaml:"name" json:"name"`
	Topic         string                 `yaml:"topic" json:"topic"`
	RetryOn       map[string]interface{} `yaml:"retry_on" json:"retry_on"`
	Ignore        map[string]interface{} `yaml:"ignore" json:"ignore"`
	RetryDelayMs  int                     `yaml:"retry_delay" json:"retry_delay"`
	RetryLimit    int                     `yaml:"retry_limit" json:"retry_limit"`
	RetryFactor   int                     `yaml:"retry_factor" json:"retry_factor"`
	DecodeResults bool                    `yaml:"decode_results" json:"decode_results"`
	Match         interface{}             `yaml:"match" json:"match"`
	MatchNot      interface{}             `yaml:"match_not" json:"match_not"`
	Exec          []ExecSpec              `yaml:"exec" json:"exec"`
	Cases         []OptionSpec            `yaml:"cases" json:"cases"`
}

// OptionSpec is one element of a rule's "cases" list.
type OptionSpec struct {
	Match    interface{} `yaml:"match" json:"match"`
	MatchNot interface{} `yaml:"match_not" json:"match_not"`
	Exec     []ExecSpec  `yaml:"exec" json:"exec"`
}

// ExecSpec is the declarative form of one request template entry.
type ExecSpec struct {
	Method         string                 `yaml:"method" json:"method"`
	URI            string                 `yaml:"uri" json:"uri"`
	Headers        map[string]string      `yaml:"headers" json:"headers"`
	Body           map[string]interface{} `yaml:"body" json:"body"`
	ProduceToTopic string                 `yaml:"produce_to_topic" json:"produce_to_topic"`
}

// Document is the top-level rules configuration document: a flat list
// of rule specs, matching the teacher's config document shape.
type Document struct {
	Rules []Spec `yaml:"rules" json:"rules"`
}
