package metrics

import (
	"fmt"
	"net/http"
	"sync/atomic"
)

var (
	requestsCreated     atomic.Int64
	requestsCompleted   atomic.Int64
	requestsFailed      atomic.Int64
	submissionsRecorded atomic.Int64
	fetchCacheHits      atomic.Int64
	sourceFallbacks     atomic.Int64
)

func IncRequestCreated()   { requestsCreated.Add(1) }
func IncRequestCompleted() { requestsCompleted.Add(1) }
func IncRequestFailed()    { requestsFailed.Add(1) }

func AddSubmissions(n int)     { submissionsRecorded.Add(int64(n)) }
func AddFetchCacheHits(n int)  { fetchCacheHits.Add(int64(n)) }
func AddSourceFallbacks(n int) { sourceFallbacks.Add(int64(n)) }

func WritePrometheus(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	fmt.Fprintf(w, "# HELP oracle_requests_created_total Number of oracle requests accepted.\n")
	fmt.Fprintf(w, "# TYPE oracle_requests_created_total counter\n")
	fmt.Fprintf(w, "oracle_requests_created_total %d\n", requestsCreated.Load())

	fmt.Fprintf(w, "# HELP oracle_requests_completed_total Number of oracle requests completed with a consensus value.\n")
	fmt.Fprintf(w, "# TYPE oracle_requests_completed_total counter\n")
	fmt.Fprintf(w, "oracle_requests_completed_total %d\n", requestsCompleted.Load())

	fmt.Fprintf(w, "# HELP oracle_requests_failed_total Number of oracle requests that ended without any successful submission.\n")
	fmt.Fprintf(w, "# TYPE oracle_requests_failed_total counter\n")
	fmt.Fprintf(w, "oracle_requests_failed_total %d\n", requestsFailed.Load())

	fmt.Fprintf(w, "# HELP oracle_submissions_recorded_total Number of agent submissions persisted.\n")
	fmt.Fprintf(w, "# TYPE oracle_submissions_recorded_total counter\n")
	fmt.Fprintf(w, "oracle_submissions_recorded_total %d\n", submissionsRecorded.Load())

	fmt.Fprintf(w, "# HELP oracle_fetch_cache_hits_total Number of agent fetches served from a fetcher's private cache.\n")
	fmt.Fprintf(w, "# TYPE oracle_fetch_cache_hits_total counter\n")
	fmt.Fprintf(w, "oracle_fetch_cache_hits_total %d\n", fetchCacheHits.Load())

	fmt.Fprintf(w, "# HELP oracle_source_fallbacks_total Number of source attempts beyond the first in a fallback chain.\n")
	fmt.Fprintf(w, "# TYPE oracle_source_fallbacks_total counter\n")
	fmt.Fprintf(w, "oracle_source_fallbacks_total %d\n", sourceFallbacks.Load())
}
