package metrics

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// BlobLatency records blob store operation latency, labelled by source
	// (bundled or local) and operation.
	BlobLatency *prometheus.HistogramVec

	CacheHitsTotal   prometheus.Counter
	CacheMissesTotal prometheus.Counter

	// PagesLoadedTotal counts pages pulled into a session cache.
	PagesLoadedTotal prometheus.Counter
	// MessagesAppendedTotal counts messages persisted by the append engine.
	MessagesAppendedTotal prometheus.Counter
	// PagesCreatedTotal counts new pages started by the append engine.
	PagesCreatedTotal prometheus.Counter
	// MalformedEntriesTotal counts page names skipped during resolution.
	MalformedEntriesTotal prometheus.Counter
)

var validLabelKey = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// ParseLabels parses a comma-separated list of key=value pairs into
// Prometheus labels. Values support ${VAR} / $VAR environment variable expansion.
// Returns nil for an empty string.
func ParseLabels(s string) (prometheus.Labels, error) {
	s = os.Expand(s, os.Getenv)
	if s == "" {
		return nil, nil
	}
	labels := prometheus.Labels{}
	for _, pair := range strings.Split(s, ",") {
		idx := strings.IndexByte(pair, '=')
		if idx < 0 {
			return nil, fmt.Errorf("invalid label %q: expected key=value", pair)
		}
		k, v := pair[:idx], pair[idx+1:]
		if !validLabelKey.MatchString(k) {
			return nil, fmt.Errorf("invalid label key %q: must match [a-zA-Z_][a-zA-Z0-9_]*", k)
		}
		labels[k] = v
	}
	return labels, nil
}

var initOnce sync.Once

// Init registers all metrics with the given constant labels. Only the first
// call registers; the counters stay nil until then and every recording helper
// tolerates that.
func Init(constLabels prometheus.Labels) {
	initOnce.Do(func() {
		initInner(constLabels)
	})
}

func initInner(constLabels prometheus.Labels) {
	reg := prometheus.WrapRegistererWith(constLabels, prometheus.DefaultRegisterer)
	f := promauto.With(reg)

	httpRequestsTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_history_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "status"},
	)

	httpRequestDuration = f.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chat_history_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	BlobLatency = f.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chat_history_blob_latency_seconds",
			Help:    "Blob store operation latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source", "operation"},
	)

	CacheHitsTotal = f.NewCounter(prometheus.CounterOpts{
		Name: "chat_history_cache_hits_total",
		Help: "Total blob cache hits",
	})

	CacheMissesTotal = f.NewCounter(prometheus.CounterOpts{
		Name: "chat_history_cache_misses_total",
		Help: "Total blob cache misses",
	})

	PagesLoadedTotal = f.NewCounter(prometheus.CounterOpts{
		Name: "chat_history_pages_loaded_total",
		Help: "Total chat pages loaded into session caches",
	})

	MessagesAppendedTotal = f.NewCounter(prometheus.CounterOpts{
		Name: "chat_history_messages_appended_total",
		Help: "Total messages appended",
	})

	PagesCreatedTotal = f.NewCounter(prometheus.CounterOpts{
		Name: "chat_history_pages_created_total",
		Help: "Total chat pages created by appends",
	})

	MalformedEntriesTotal = f.NewCounter(prometheus.CounterOpts{
		Name: "chat_history_malformed_entries_total",
		Help: "Total page names skipped while resolving page locators",
	})
}

// Inc increments c if metrics have been initialized.
func Inc(c prometheus.Counter) {
	if c != nil {
		c.Inc()
	}
}

// ObserveBlob records the latency of one blob operation started at start.
func ObserveBlob(source, op string, start time.Time) {
	if BlobLatency != nil {
		BlobLatency.WithLabelValues(source, op).Observe(time.Since(start).Seconds())
	}
}

// Middleware records HTTP request metrics for Prometheus.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if httpRequestsTotal == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()
		duration := time.Since(start)

		httpRequestsTotal.WithLabelValues(c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
		httpRequestDuration.WithLabelValues(c.Request.Method).Observe(duration.Seconds())
	}
}
