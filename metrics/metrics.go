// Copyright (c) 2025-2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/choria-io/execstep/model"
)

var (
	NameSpace = "choria"
	Subsystem = "execstep"

	// ManifestApplyTime is a summary of the time taken to apply an entire manifest
	ManifestApplyTime = prometheus.NewSummaryVec(prometheus.SummaryOpts{
		Name: prometheus.BuildFQName(NameSpace, Subsystem, "manifest_apply_duration_seconds"),
		Help: "Time taken to apply an entire manifest",
	}, []string{"source"})

	// StepExecuteTime is a summary of the time taken to execute a step including result handling
	StepExecuteTime = prometheus.NewSummaryVec(prometheus.SummaryOpts{
		Name: prometheus.BuildFQName(NameSpace, Subsystem, "step_execute_duration_seconds"),
		Help: "Time taken to execute a step",
	}, []string{"name"})

	// LaunchTime is a summary of how long launched processes ran
	LaunchTime = prometheus.NewSummaryVec(prometheus.SummaryOpts{
		Name: prometheus.BuildFQName(NameSpace, Subsystem, "launch_duration_seconds"),
		Help: "Time processes ran for",
	}, []string{"executable"})

	// LaunchOutcomeCount counts launches by their outcome
	LaunchOutcomeCount = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: prometheus.BuildFQName(NameSpace, Subsystem, "launch_outcome_count"),
		Help: "How many launches reached a certain outcome",
	}, []string{"executable", "outcome"})

	// WatchdogKillCount counts processes killed by the watchdog
	WatchdogKillCount = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: prometheus.BuildFQName(NameSpace, Subsystem, "watchdog_kill_count"),
		Help: "How many processes were killed by the watchdog",
	}, []string{"executable", "reason"})

	// StreamErrorCount counts failures pumping standard streams
	StreamErrorCount = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: prometheus.BuildFQName(NameSpace, Subsystem, "stream_error_count"),
		Help: "How many launches had stream failures",
	}, []string{"executable"})

	// StepFailedCount counts steps that failed fatally
	StepFailedCount = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: prometheus.BuildFQName(NameSpace, Subsystem, "step_failed_count"),
		Help: "How many steps failed",
	}, []string{"name"})

	// StepSkippedCount counts steps skipped by their OS filter
	StepSkippedCount = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: prometheus.BuildFQName(NameSpace, Subsystem, "step_skipped_count"),
		Help: "How many steps were skipped because they do not apply to this OS",
	}, []string{"name"})
)

func RegisterMetrics() {
	prometheus.MustRegister(ManifestApplyTime)
	prometheus.MustRegister(StepExecuteTime)
	prometheus.MustRegister(LaunchTime)
	prometheus.MustRegister(LaunchOutcomeCount)
	prometheus.MustRegister(WatchdogKillCount)
	prometheus.MustRegister(StreamErrorCount)
	prometheus.MustRegister(StepFailedCount)
	prometheus.MustRegister(StepSkippedCount)
}

func ListenAndServe(port int, log model.Logger) {
	if port <= 0 {
		return
	}

	go func() {
		log.Info("Starting monitoring server", "port", port)
		http.Handle("/metrics", promhttp.Handler())
		err := http.ListenAndServe(fmt.Sprintf(":%d", port), nil)
		if err != nil {
			log.Error("HTTP Listener failed", "error", err)
		}
	}()
}
