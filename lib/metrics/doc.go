// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package metrics exports tcprender's Prometheus metrics.
//
// A [Collector] owns its own registry (never the global default), so
// tests construct as many as they like. The server reports events
// through the Collector's methods; [Collector.Serve] exposes the
// registry at /metrics in the OpenMetrics format.
//
// Metrics, all under the "tcprender" namespace:
//
//	connections_active          gauge
//	connections_total           counter
//	frames_total{status}        counter, status is "success" or "failure"
//	framing_violations_total    counter
//	render_duration_seconds     histogram, labelled by engine
//	bytes_received_total        counter
//	bytes_sent_total            counter
package metrics
