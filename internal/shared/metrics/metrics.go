package metrics

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
)

var (
	ingestStartedTotal   atomic.Uint64
	ingestCompletedTotal atomic.Uint64
	ingestFailedTotal    atomic.Uint64

	analysisStartedTotal   atomic.Uint64
	analysisCompletedTotal atomic.Uint64
	analysisFailedTotal    atomic.Uint64

	pollTicksTotal           atomic.Uint64
	pollTransientErrorsTotal atomic.Uint64
	pollDeadlinesTotal       atomic.Uint64

	upstreamRequestsTotal atomic.Uint64
	upstreamErrorsTotal   atomic.Uint64

	upstreamDuration = newHistogram([]float64{25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000})
)

// IncIngestStarted increments the ingestion-started counter.
func IncIngestStarted() {
	ingestStartedTotal.Add(1)
}

// IncIngestCompleted increments the ingestion-completed counter.
func IncIngestCompleted() {
	ingestCompletedTotal.Add(1)
}

// IncIngestFailed increments the ingestion-failed counter.
func IncIngestFailed() {
	ingestFailedTotal.Add(1)
}

// IncAnalysisStarted increments the analysis-started counter.
func IncAnalysisStarted() {
	analysisStartedTotal.Add(1)
}

// IncAnalysisCompleted increments the analysis-completed counter.
func IncAnalysisCompleted() {
	analysisCompletedTotal.Add(1)
}

// IncAnalysisFailed increments the analysis-failed counter.
func IncAnalysisFailed() {
	analysisFailedTotal.Add(1)
}

// IncPollTick counts one successful status fetch.
func IncPollTick() {
	pollTicksTotal.Add(1)
}

// IncPollTransientError counts a status fetch that failed at the transport
// level and was skipped.
func IncPollTransientError() {
	pollTransientErrorsTotal.Add(1)
}

// IncPollDeadline counts a poll loop abandoned at its elapsed-time ceiling.
func IncPollDeadline() {
	pollDeadlinesTotal.Add(1)
}

// IncUpstreamRequest counts one request issued to the pipeline.
func IncUpstreamRequest() {
	upstreamRequestsTotal.Add(1)
}

// IncUpstreamError counts a pipeline request that ended in an error.
func IncUpstreamError() {
	upstreamErrorsTotal.Add(1)
}

// ObserveUpstreamDurationMs records a pipeline round-trip in milliseconds.
func ObserveUpstreamDurationMs(value float64) {
	if value < 0 {
		value = 0
	}
	upstreamDuration.Observe(value)
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/plain; version=0.0.4")
		c.String(http.StatusOK, Render())
	}
}

// Render renders metrics in Prometheus text format.
func Render() string {
	var buf bytes.Buffer
	writeCounter(&buf, "ingest_started_total", "Total ingestion jobs started", ingestStartedTotal.Load())
	writeCounter(&buf, "ingest_completed_total", "Total ingestion jobs completed", ingestCompletedTotal.Load())
	writeCounter(&buf, "ingest_failed_total", "Total ingestion jobs failed", ingestFailedTotal.Load())
	writeCounter(&buf, "analysis_started_total", "Total analysis jobs started", analysisStartedTotal.Load())
	writeCounter(&buf, "analysis_completed_total", "Total analysis jobs completed", analysisCompletedTotal.Load())
	writeCounter(&buf, "analysis_failed_total", "Total analysis jobs failed", analysisFailedTotal.Load())
	writeCounter(&buf, "poll_ticks_total", "Total successful poll status fetches", pollTicksTotal.Load())
	writeCounter(&buf, "poll_transient_errors_total", "Total poll fetches skipped on transport errors", pollTransientErrorsTotal.Load())
	writeCounter(&buf, "poll_deadlines_total", "Total poll loops abandoned at the elapsed-time ceiling", pollDeadlinesTotal.Load())
	writeCounter(&buf, "upstream_requests_total", "Total requests issued to the pipeline", upstreamRequestsTotal.Load())
	writeCounter(&buf, "upstream_errors_total", "Total pipeline requests that returned errors", upstreamErrorsTotal.Load())
	writeHistogram(&buf, "upstream_request_duration_ms", "Pipeline round-trip duration in milliseconds", upstreamDuration.Snapshot())
	return buf.String()
}

type histogram struct {
	mu      sync.Mutex
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

type histogramSnapshot struct {
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

func newHistogram(buckets []float64) *histogram {
	return &histogram{
		buckets: buckets,
		counts:  make([]uint64, len(buckets)),
	}
}

func (h *histogram) Observe(value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += value
	for i, bound := range h.buckets {
		if value <= bound {
			h.counts[i]++
		}
	}
}

func (h *histogram) Snapshot() histogramSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := histogramSnapshot{
		buckets: append([]float64(nil), h.buckets...),
		counts:  append([]uint64(nil), h.counts...),
		sum:     h.sum,
		count:   h.count,
	}
	return out
}

func writeCounter(buf *bytes.Buffer, name, help string, value uint64) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s counter\n", name)
	fmt.Fprintf(buf, "%s %d\n", name, value)
}

func writeHistogram(buf *bytes.Buffer, name, help string, snap histogramSnapshot) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s histogram\n", name)
	var cumulative uint64
	for i, bound := range snap.buckets {
		cumulative += snap.counts[i]
		fmt.Fprintf(buf, "%s_bucket{le=\"%s\"} %d\n", name, formatFloat(bound), cumulative)
	}
	fmt.Fprintf(buf, "%s_bucket{le=\"+Inf\"} %d\n", name, snap.count)
	fmt.Fprintf(buf, "%s_sum %s\n", name, formatFloat(snap.sum))
	fmt.Fprintf(buf, "%s_count %d\n", name, snap.count)
}

func formatFloat(value float64) string {
	if value == float64(int64(value)) {
		return strconv.FormatInt(int64(value), 10)
	}
	return strconv.FormatFloat(value, 'f', -1, 64)
}

// NowMillis returns current time in milliseconds, useful for callers without time utilities.
func NowMillis() float64 {
	return float64(time.Now().UnixNano()) / float64(time.Millisecond)
}
