package ddtracer

import "strings"

// Tag keys with meaning to the tracer or the agent.
const (
	// internalTagPrefix reserves a namespace for system-generated
	// diagnostic tags. User code can neither write nor observe tags under
	// this prefix through the public Span tag API.
	internalTagPrefix = "_dd."

	// propagatedTagPrefix marks trace-level tags that travel across
	// process boundaries in the trace-tags header.
	propagatedTagPrefix = "_dd.p."

	tagErrorMessage  = "error.msg"
	tagOrigin        = "_dd.origin"
	tagDecisionMaker = "_dd.p.dm"

	metricSamplingPriority      = "_sampling_priority_v1"
	metricAgentRate             = "_dd.agent_psr"
	metricRuleRate              = "_dd.rule_psr"
	metricSpanSamplingMechanism = "_dd.span_sampling.mechanism"
	metricSpanSamplingRate      = "_dd.span_sampling.rule_rate"
)

func isInternalTag(name string) bool {
	return strings.HasPrefix(name, internalTagPrefix)
}
