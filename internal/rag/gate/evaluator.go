// Package gate tracks how each answer route performs over a rolling window.
package gate

import (
	"sort"
	"sync"
	"time"
)

const defaultEvaluatorWindow = 200

// Outcome captures the observed result of answering one query.
type Outcome struct {
	Route           string
	Succeeded       bool // the pipeline produced a non-error answer
	Fallback        bool // routing fell back to the default route
	RetrievedChunks int
	ToolCalls       int
	ToolFailures    int
	Latency         time.Duration
}

// RouteSummary aggregates outcomes for one route.
type RouteSummary struct {
	Count                  int           `json:"count"`
	SuccessRate            float64       `json:"success_rate"`
	FallbackRate           float64       `json:"fallback_rate"`
	AverageRetrievedChunks float64       `json:"average_retrieved_chunks"`
	ToolFailureRate        float64       `json:"tool_failure_rate"`
	AverageLatency         time.Duration `json:"average_latency"`
}

// Summary describes rolling pipeline performance.
type Summary struct {
	TotalOutcomes          int                     `json:"total_outcomes"`
	RollingWindow          int                     `json:"rolling_window"`
	OverallSuccess         float64                 `json:"overall_success"`
	FallbackRate           float64                 `json:"fallback_rate"`
	AverageRetrievedChunks float64                 `json:"average_retrieved_chunks"`
	AverageToolCalls       float64                 `json:"average_tool_calls"`
	AverageLatency         time.Duration           `json:"average_latency"`
	Routes                 map[string]RouteSummary `json:"routes"`
}

// RouteNames returns the routes present in s in sorted order.
func (s Summary) RouteNames() []string {
	names := make([]string, 0, len(s.Routes))
	for name := range s.Routes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Evaluator keeps a ring buffer of Outcomes.
type Evaluator struct {
	mu       sync.Mutex
	window   int
	outcomes []Outcome
	next     int
	count    int
}

// NewEvaluator creates an Evaluator that stores at most window outcomes. When
// window is not positive a default is applied.
func NewEvaluator(window int) *Evaluator {
	if window <= 0 {
		window = defaultEvaluatorWindow
	}
	return &Evaluator{
		window:   window,
		outcomes: make([]Outcome, window),
	}
}

// RecordOutcome registers an Outcome, overwriting the oldest once the window
// is full. A nil Evaluator ignores the call.
func (e *Evaluator) RecordOutcome(outcome Outcome) {
	if e == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	e.outcomes[e.next] = outcome
	e.next = (e.next + 1) % e.window
	if e.count < e.window {
		e.count++
	}
}

// Reset clears all stored outcomes while preserving the configured window.
func (e *Evaluator) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.next = 0
	e.count = 0
	for i := range e.outcomes {
		e.outcomes[i] = Outcome{}
	}
}

type accumulator struct {
	count, success, fallback, toolCalls, toolFailures int
	chunks                                            int
	latency                                           time.Duration
}

func (a *accumulator) add(o Outcome) {
	a.count++
	if o.Succeeded {
		a.success++
	}
	if o.Fallback {
		a.fallback++
	}
	a.chunks += o.RetrievedChunks
	a.toolCalls += o.ToolCalls
	a.toolFailures += o.ToolFailures
	a.latency += o.Latency
}

func ratio(n, d int) float64 {
	if d == 0 {
		return 0
	}
	return float64(n) / float64(d)
}

// Snapshot computes a Summary of the stored outcomes.
func (e *Evaluator) Snapshot() Summary {
	if e == nil {
		return Summary{Routes: map[string]RouteSummary{}}
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	summary := Summary{
		RollingWindow: e.window,
		Routes:        make(map[string]RouteSummary),
	}
	if e.count == 0 {
		return summary
	}

	var total accumulator
	perRoute := make(map[string]*accumulator)

	start := 0
	if e.count == e.window {
		start = e.next
	}
	for i := 0; i < e.count; i++ {
		outcome := e.outcomes[(start+i)%e.window]
		total.add(outcome)
		acc, ok := perRoute[outcome.Route]
		if !ok {
			acc = &accumulator{}
			perRoute[outcome.Route] = acc
		}
		acc.add(outcome)
	}

	summary.TotalOutcomes = total.count
	summary.OverallSuccess = ratio(total.success, total.count)
	summary.FallbackRate = ratio(total.fallback, total.count)
	summary.AverageRetrievedChunks = ratio(total.chunks, total.count)
	summary.AverageToolCalls = ratio(total.toolCalls, total.count)
	summary.AverageLatency = time.Duration(int64(total.latency) / int64(total.count))

	for route, acc := range perRoute {
		summary.Routes[route] = RouteSummary{
			Count:                  acc.count,
			SuccessRate:            ratio(acc.success, acc.count),
			FallbackRate:           ratio(acc.fallback, acc.count),
			AverageRetrievedChunks: ratio(acc.chunks, acc.count),
			ToolFailureRate:        ratio(acc.toolFailures, acc.toolCalls),
			AverageLatency:         time.Duration(int64(acc.latency) / int64(acc.count)),
		}
	}
	return summary
}

// Window returns the configured window size.
func (e *Evaluator) Window() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.window
}
