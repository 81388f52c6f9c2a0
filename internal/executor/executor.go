// Package executor implements the per-event state machine (spec.md
// §4.7): evaluate rules bound to an event's topic, perform HTTP exec
// steps, classify outcomes, schedule retries with exponential backoff,
// and emit structured failures — grounded on the teacher's
// internal/filtering evaluation loop, generalized from a single
// predicate per message to a full rule/option/exec pipeline.
package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/sync/errgroup"

	"changeprop/internal/audit"
	"changeprop/internal/config"
	"changeprop/internal/logger"
	"changeprop/pkg/circuitbreaker"
	"changeprop/pkg/dedupwindow"
	"changeprop/pkg/httpclient"
	"changeprop/pkg/jsonschema"
	"changeprop/pkg/metrics"
	"changeprop/pkg/models"
	"changeprop/pkg/rule"
	"changeprop/pkg/template"
)

// Producer is the subset of broker.GuaranteedProducer the executor
// needs: produce retry/error envelopes and produce_to_topic fan-out,
// accepted as an interface so this package never depends on the
// concrete Kafka transport.
type Producer interface {
	Produce(ctx context.Context, topic, key string, event interface{}) error
}

// Executor drives rule evaluation for every event handed to it by a
// consumer worker. One Executor is shared by all consumer workers; its
// only mutable state is the rule registry (swapped on reload) and the
// lazily-built circuit breaker set.
type Executor struct {
	httpClient httpclient.Client
	producer   Producer
	dedup      dedupwindow.Window
	validator  *jsonschema.Validator
	audit      *audit.Logger
	logger     logger.Logger
	emitterID  string
	produceDC  string

	cbCfg config.CircuitBreakerConfig

	mu       sync.Mutex
	registry *rule.Registry
	breakers map[string]*circuitbreaker.Wrapper
}

func New(
	registry *rule.Registry,
	httpClient httpclient.Client,
	producer Producer,
	dedup dedupwindow.Window,
	validator *jsonschema.Validator,
	auditLogger *audit.Logger,
	log logger.Logger,
	emitterID string,
	produceDC string,
	cbCfg config.CircuitBreakerConfig,
) *Executor {
	return &Executor{
		registry:   registry,
		httpClient: httpClient,
		producer:   producer,
		dedup:      dedup,
		validator:  validator,
		audit:      auditLogger,
		logger:     log,
		emitterID:  emitterID,
		produceDC:  produceDC,
		cbCfg:      cbCfg,
		breakers:   make(map[string]*circuitbreaker.Wrapper),
	}
}

// SetRegistry atomically swaps in a freshly-built registry, used by the
// admin API's rule reload endpoint.
func (e *Executor) SetRegistry(reg *rule.Registry) {
	e.mu.Lock()
	e.registry = reg
	e.mu.Unlock()
}

func (e *Executor) currentRegistry() *rule.Registry {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.registry
}

// Registry returns the currently active rule registry, used by the
// admin API's rule listing endpoint.
func (e *Executor) Registry() *rule.Registry {
	return e.currentRegistry()
}

// Breakers returns a snapshot of every circuit breaker name and state,
// used by the admin API's /circuit-breakers endpoint.
func (e *Executor) Breakers() map[string]string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[string]string, len(e.breakers))
	for name, w := range e.breakers {
		out[name] = w.State().String()
	}
	return out
}

// ExecuteTopic evaluates every rule bound to event's topic (spec.md
// §4.7 steps 1-3). Separate rules run concurrently via errgroup and are
// all joined before this returns, so the caller may commit the offset
// once ExecuteTopic returns nil.
func (e *Executor) ExecuteTopic(ctx context.Context, event *models.Event) error {
	start := time.Now()
	metrics.EventsConsumedTotal.WithLabelValues(event.Meta.Topic).Inc()

	reg := e.currentRegistry()
	rules := reg.RulesForTopic(event.Meta.Topic)

	g, gctx := errgroup.WithContext(ctx)
	for _, r := range rules {
		r := r
		g.Go(func() error {
			return e.evaluateRule(gctx, r, event, event.Meta.TriggeredBy, r.RetryLimit)
		})
	}
	err := g.Wait()
	metrics.ObserveEventProcessingDuration(event.Meta.Topic, time.Since(start))
	return err
}

// ExecuteRetry re-enters the executor for exactly the rule a retry
// envelope names, using the envelope's carried retries_left and
// triggered_by chain (spec.md §4.7 "dedicated consumer ... re-enters
// the executor with triggered_by appended").
func (e *Executor) ExecuteRetry(ctx context.Context, ruleName string, env models.RetryEnvelope) error {
	reg := e.currentRegistry()
	r, ok := reg.Lookup(ruleName)
	if !ok {
		e.logger.ErrorwCtx(ctx, "retry envelope references unknown rule", "rule", ruleName)
		return nil
	}
	event := env.OriginalEvent
	return e.evaluateRule(ctx, r, &event, env.TriggeredBy, env.RetriesLeft)
}

func (e *Executor) evaluateRule(ctx context.Context, r *rule.Rule, event *models.Event, triggeredBy string, retriesLeft int) error {
	tree := event.AsTree()
	idx := r.Test(tree)
	if idx == -1 {
		metrics.RuleMatchesTotal.WithLabelValues(r.Name, "false").Inc()
		return nil
	}
	metrics.RuleMatchesTotal.WithLabelValues(r.Name, "true").Inc()

	token := r.Name + ":" + event.Meta.URI
	if inChain(triggeredBy, token) || chainTooLong(triggeredBy) {
		e.logger.WarnwCtx(ctx, "loop detected, skipping dispatch",
			"rule", r.Name, "uri", event.Meta.URI, "triggered_by", triggeredBy,
		)
		metrics.LoopsDetectedTotal.WithLabelValues(r.Name).Inc()
		return nil
	}
	chain := appendTriggeredBy(triggeredBy, token)

	if r.IsNoOp(idx) {
		metrics.ExecOutcomeTotal.WithLabelValues(r.Name, "success").Inc()
		return nil
	}

	bindings := r.Expand(idx, tree)
	templates := r.GetExec(idx)
	execSpecs := r.ExecSpecs(idx)

	for i, tpl := range templates {
		spec := execSpecs[i]
		if spec.ProduceToTopic != "" {
			if err := e.produceFanout(ctx, spec.ProduceToTopic, event, chain); err != nil {
				e.logger.ErrorwCtx(ctx, "fan-out produce failed", "rule", r.Name, "topic", spec.ProduceToTopic, "error", err)
				return e.fail(ctx, r, event, chain, "produce_failure", 0, "")
			}
			continue
		}

		req, err := tpl.Render(tree, bindings)
		if err != nil {
			e.logger.ErrorwCtx(ctx, "template render failed", "rule", r.Name, "error", err)
			return e.fail(ctx, r, event, chain, "render_failure", 0, "")
		}
		req.Headers = withStandardHeaders(req.Headers, event.Meta.RequestID, chain)

		resp, execErr := e.doExec(ctx, r.Name, req)
		out := classify(r, resp, execErr)
		metrics.ExecOutcomeTotal.WithLabelValues(r.Name, outcomeName(out)).Inc()

		switch out {
		case outcomeSuccess, outcomeIgnore:
			continue
		case outcomeRetry:
			return e.scheduleRetry(ctx, r, event, chain, retriesLeft, resp)
		default: // fatal
			return e.fail(ctx, r, event, chain, "fatal_http", resp.StatusCode, string(resp.Body))
		}
	}

	return nil
}

// doExec invokes the HTTP client behind a per-target circuit breaker
// (SPEC_FULL.md §4.7 [ADDED]). An open breaker surfaces as a plain
// error so classify folds it into the same network-error path as a
// transport failure.
func (e *Executor) doExec(ctx context.Context, ruleName string, req template.Request) (httpclient.Response, error) {
	breaker := e.breakerFor(breakerKeyFor(req.URI))

	start := time.Now()
	result, err := breaker.ExecuteWithContext(ctx, func() (interface{}, error) {
		return e.httpClient.Do(ctx, req)
	})
	metrics.ObserveExecDuration(ruleName, time.Since(start))
	breaker.RecordRequest(err == nil, ruleName)

	resp, _ := result.(httpclient.Response)
	return resp, err
}

func outcomeName(o outcome) string {
	switch o {
	case outcomeSuccess:
		return "success"
	case outcomeIgnore:
		return "ignore"
	case outcomeRetry:
		return "retry"
	default:
		return "fatal"
	}
}

func withStandardHeaders(headers map[string]string, requestID, triggeredBy string) map[string]string {
	out := make(map[string]string, len(headers)+3)
	for k, v := range headers {
		out[k] = v
	}
	out["x-request-id"] = requestID
	out["x-triggered-by"] = triggeredBy
	out["user-agent"] = "changeprop-worker"
	return out
}

func breakerKeyFor(uri string) string {
	u, err := url.Parse(uri)
	if err != nil || u.Host == "" {
		return uri
	}
	return u.Host
}

func (e *Executor) breakerFor(name string) *circuitbreaker.Wrapper {
	e.mu.Lock()
	defer e.mu.Unlock()
	if w, ok := e.breakers[name]; ok {
		return w
	}
	minRequests := e.cbCfg.MinRequests
	failureRatio := e.cbCfg.FailureRatio
	cfg := circuitbreaker.Config{
		Name:        name,
		MaxRequests: e.cbCfg.MaxRequests,
		Interval:    e.cbCfg.Interval,
		Timeout:     e.cbCfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < minRequests {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return ratio >= failureRatio
		},
	}
	w := circuitbreaker.NewWrapper(cfg)
	e.breakers[name] = w
	return w
}

func (e *Executor) scheduleRetry(ctx context.Context, r *rule.Rule, event *models.Event, chain string, retriesLeft int, resp httpclient.Response) error {
	if retriesLeft <= 0 {
		metrics.RetryExhaustedTotal.WithLabelValues(r.Name).Inc()
		return e.fail(ctx, r, event, chain, "retry_exhausted", resp.StatusCode, string(resp.Body))
	}

	seen, err := e.dedup.Seen(ctx, r.Name, event.Meta.RequestID)
	if err != nil {
		e.logger.WarnwCtx(ctx, "dedup window check failed, suppressing retry produce", "rule", r.Name, "error", err)
		return nil
	} else if seen {
		e.logger.InfowCtx(ctx, "retry produce suppressed by dedup window", "rule", r.Name, "request_id", event.Meta.RequestID)
		return nil
	}

	attempt := r.RetryLimit - retriesLeft
	delay := time.Duration(float64(r.RetryDelayMs)*math.Pow(float64(r.RetryFactor), float64(attempt))) * time.Millisecond

	withChain := *event
	withChain.Meta.TriggeredBy = chain

	env := models.NewRetryEnvelopeBuilder().
		WithRuleName(r.Name).
		WithTriggeredBy(chain).
		WithEmitterID(e.emitterID).
		WithRetriesLeft(retriesLeft - 1).
		WithOriginalEvent(withChain).
		WithNotBefore(time.Now().Add(delay)).
		Build()

	if err := e.validateEnvelope(e.validator.ValidateRetryEnvelope, env); err != nil {
		return err
	}

	topic := models.RetryTopicName(r.Name)
	if err := e.producer.Produce(ctx, topic, event.Meta.RequestID, env); err != nil {
		e.logger.ErrorwCtx(ctx, "failed to produce retry envelope", "rule", r.Name, "error", err)
		return e.fail(ctx, r, event, chain, "produce_failure", resp.StatusCode, string(resp.Body))
	}

	metrics.RetriesScheduledTotal.WithLabelValues(r.Name).Inc()
	return nil
}

func (e *Executor) fail(ctx context.Context, r *rule.Rule, event *models.Event, chain, reason string, status int, body string) error {
	env := models.ErrorEnvelope{
		Meta:        models.EventMeta{Topic: models.ErrorTopicName, URI: event.Meta.URI, RequestID: event.Meta.RequestID, Domain: event.Meta.Domain},
		RuleName:    r.Name,
		TriggeredBy: chain,
		Reason:      reason,
		Status:      status,
		Body:        body,
		Event:       *event,
		OccurredAt:  time.Now(),
	}

	if err := e.validateEnvelope(e.validator.ValidateErrorEnvelope, env); err != nil {
		return err
	}

	if err := e.producer.Produce(ctx, models.ErrorTopicName, event.Meta.RequestID, env); err != nil {
		e.logger.ErrorwCtx(ctx, "failed to produce error envelope", "rule", r.Name, "error", err)
	}
	metrics.ErrorsEmittedTotal.WithLabelValues(r.Name, reason).Inc()

	if e.audit != nil {
		if err := e.audit.Log(ctx, audit.FromErrorEnvelope(env)); err != nil {
			e.logger.WarnwCtx(ctx, "failed to write audit log entry", "error", err)
		}
	}
	return nil
}

// validateEnvelope marshals env and runs validate against it, a step
// spec.md §6 requires before any retry/error envelope is produced. A
// nil validator (schema validation disabled) skips the check.
func (e *Executor) validateEnvelope(validate func([]byte) error, env interface{}) error {
	if e.validator == nil {
		return nil
	}
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}
	if err := validate(data); err != nil {
		return fmt.Errorf("envelope failed schema validation: %w", err)
	}
	return nil
}

func (e *Executor) produceFanout(ctx context.Context, topic string, event *models.Event, chain string) error {
	fanoutEvent := *event
	fanoutEvent.Meta.TriggeredBy = chain
	fanoutEvent.Meta.Topic = topic

	targetTopic := topic
	if e.produceDC != "" {
		targetTopic = e.produceDC + "." + topic
	}
	return e.producer.Produce(ctx, targetTopic, event.Meta.RequestID, fanoutEvent)
}
