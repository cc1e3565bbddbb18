// Package metrics provides build metrics for mrefbuilder.
//
// Components receive a Recorder through dependency injection and default to
// NoopRecorder, so metrics collection needs no nil checks at call sites:
//
//	svc := build.NewService(fs).WithRecorder(metrics.NewPrometheusRecorder(reg))
//
// The CLI has no long-running HTTP endpoint. When metrics.textfile is configured the
// Prometheus registry is written in the text exposition format after every build, for
// collection by the node exporter textfile collector.
package metrics
