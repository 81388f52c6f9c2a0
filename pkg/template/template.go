// Package template defines the Template collaborator contract
// (spec.md §4.4): given an event and the bindings a matched rule
// option produced, render a concrete HTTP request. The engine itself
// never implements a domain templating language — it only demands
// this contract, and ships one reference implementation.
package template

import (
	"fmt"
	"strings"

	"changeprop/pkg/match"
)

// Request is what a rendered exec template produces, ready to hand to
// an httpclient.Client.
type Request struct {
	Method         string
	URI            string
	Headers        map[string]string
	Body           []byte
	FollowRedirect bool
	Retries        int
	DecodeResults  bool
}

// Template renders one exec entry against a matched event.
type Template interface {
	Render(event map[string]interface{}, bindings match.Bindings) (Request, error)
}

// Spec is the declarative form of one exec entry, as it appears in a
// rule's "exec" list.
type Spec struct {
	Method        string
	URI           string
	Headers       map[string]string
	Body          interface{}
	DecodeResults bool
}

// PlaceholderTemplate is the reference Template: it renders "{{...}}"
// placeholders in the URI, header values, and string body fields by
// looking the dotted path up first in bindings, then in the event
// tree, following the teacher's {field}-substitution style for
// building outbound request URLs.
type PlaceholderTemplate struct {
	spec Spec
}

func New(spec Spec) *PlaceholderTemplate {
	if spec.Method == "" {
		spec.Method = "GET"
	}
	if spec.Headers == nil {
		spec.Headers = map[string]string{}
	}
	return &PlaceholderTemplate{spec: spec}
}

func (t *PlaceholderTemplate) Render(event map[string]interface{}, bindings match.Bindings) (Request, error) {
	lookup := func(path string) (string, bool) {
		if v, ok := lookupPath(map[string]interface{}(bindings), path); ok {
			return fmt.Sprintf("%v", v), true
		}
		if v, ok := lookupPath(event, path); ok {
			return fmt.Sprintf("%v", v), true
		}
		return "", false
	}

	uri := substitute(t.spec.URI, lookup)

	headers := make(map[string]string, len(t.spec.Headers))
	for k, v := range t.spec.Headers {
		headers[k] = substitute(v, lookup)
	}

	body, err := renderBody(t.spec.Body, lookup)
	if err != nil {
		return Request{}, fmt.Errorf("failed to render body: %w", err)
	}

	return Request{
		Method:         t.spec.Method,
		URI:            uri,
		Headers:        headers,
		Body:           body,
		FollowRedirect: false,
		Retries:        0,
		DecodeResults:  t.spec.DecodeResults,
	}, nil
}

func substitute(s string, lookup func(string) (string, bool)) string {
	if !strings.Contains(s, "{{") {
		return s
	}
	for {
		start := strings.Index(s, "{{")
		if start == -1 {
			return s
		}
		end := strings.Index(s[start:], "}}")
		if end == -1 {
			return s
		}
		end += start
		path := strings.TrimSpace(s[start+2 : end])
		val, ok := lookup(path)
		if !ok {
			val = ""
		}
		s = s[:start] + val + s[end+2:]
	}
}
