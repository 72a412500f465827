package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestManagerCreation(t *testing.T) {
	Convey("Given a fresh registry", t, func() {
		registry := prometheus.NewRegistry()

		Convey("When creating a manager with custom options", func() {
			m := NewManager(
				WithNamespace("test"),
				WithSubsystem("unit"),
				WithHistogramBuckets([]float64{1, 10}),
				WithRefreshInterval(3*time.Second),
				WithCustomLabels(map[string]string{"env": "test"}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then the options are applied and collectors registered", func() {
				So(m.RefreshInterval(), ShouldEqual, 3*time.Second)
				So(m.Enabled(), ShouldBeTrue)
				m.jobsStarted.Inc()
				count, err := testutil.GatherAndCount(registry, "test_unit_jobs_started_total")
				So(err, ShouldBeNil)
				So(count, ShouldEqual, 1)
			})
		})

		Convey("When registering the same collectors twice", func() {
			NewManager(WithPrometheusRegistry(registry))

			Convey("Then promauto panics on the duplicate", func() {
				So(func() { NewManager(WithPrometheusRegistry(registry)) }, ShouldPanic)
			})
		})
	})
}

func TestInit(t *testing.T) {
	Convey("Given the global manager rebuilt from options", t, func() {
		Init(
			WithNamespace("custom"),
			WithRefreshInterval(250*time.Millisecond),
			WithMetricsEnabled(false),
		)
		defer Init()

		Convey("Then the refresh interval follows the options", func() {
			So(RefreshInterval(), ShouldEqual, 250*time.Millisecond)
		})

		Convey("Then recording is switched off", func() {
			RecordJobStarted()
			So(testutil.ToFloat64(globalManager.jobsStarted), ShouldEqual, 0)
		})

		Convey("Then the registry exposes the new namespace", func() {
			count, err := testutil.GatherAndCount(GetRegistry(), "custom_wordfreq_system_goroutines")
			So(err, ShouldBeNil)
			So(count, ShouldEqual, 1)
		})
	})

	Convey("The default manager samples every ten seconds", t, func() {
		So(RefreshInterval(), ShouldEqual, defaultRefreshInterval)
	})
}

func TestRecordFunctions(t *testing.T) {
	Convey("Given the global manager", t, func() {
		Convey("When recording job outcomes", func() {
			before := testutil.ToFloat64(globalManager.jobsFinished.WithLabelValues("success"))
			RecordJobStarted()
			RecordJobFinished("success", 20*time.Millisecond)

			Convey("Then the counters move", func() {
				So(testutil.ToFloat64(globalManager.jobsFinished.WithLabelValues("success")), ShouldEqual, before+1)
			})
		})

		Convey("When updating queue size", func() {
			UpdateQueueSize(25, 100)

			Convey("Then utilization is derived from capacity", func() {
				So(testutil.ToFloat64(globalManager.queueSize), ShouldEqual, 25)
				So(testutil.ToFloat64(globalManager.queueUtilization), ShouldEqual, 0.25)
			})
		})

		Convey("When recording wiki requests", func() {
			before := testutil.ToFloat64(globalManager.wikiRequests.WithLabelValues("links", "200"))
			RecordWikiRequest("links", "200", 5*time.Millisecond)
			RecordWikiRetry("rate_limited")

			Convey("Then the request counter moves", func() {
				So(testutil.ToFloat64(globalManager.wikiRequests.WithLabelValues("links", "200")), ShouldEqual, before+1)
			})
		})

		Convey("When exposing the registry", func() {
			RecordHTTPRequest("word-frequency", "GET", "200", 12)
			UpdateWorkerCount(4)
			WorkerBusy(1)
			WorkerBusy(-1)

			Convey("Then the exposition contains the service namespace", func() {
				families, err := GetRegistry().Gather()
				So(err, ShouldBeNil)
				found := false
				for _, f := range families {
					if strings.HasPrefix(f.GetName(), "msci_wordfreq_http_requests_total") {
						found = true
					}
				}
				So(found, ShouldBeTrue)
				So(testutil.ToFloat64(globalManager.workerCount), ShouldEqual, 4)
				So(testutil.ToFloat64(globalManager.workerBusy), ShouldEqual, 0)
			})
		})
	})
}
