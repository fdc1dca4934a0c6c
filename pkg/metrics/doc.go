/*
Package metrics defines and registers the core's Prometheus metrics
(workspace/client counts, epoch bumps and rollbacks, table/KV write
outcomes, LWW compaction and clock-skew counts, observer and provider
latency), plus a small health/readiness/liveness surface the orchestrator
and its providers report into.

Metrics are package-level vars registered at init against the default
Prometheus registry; Handler returns the scrape endpoint. Timer wraps a
start time for histogram observation: NewTimer() at the start of an
operation, then timer.ObserveDuration(SomeHistogram) at the end.

RegisterComponent/UpdateComponent feed GetHealth/GetReadiness, which
HealthHandler/ReadyHandler/LivenessHandler expose over HTTP. Readiness
checks the names in criticalComponents (registry, provider by default);
override with SetCriticalComponents for a different topology.
*/
package metrics
