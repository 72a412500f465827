package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	service "github.com/okian/msci/internal/app"
	"github.com/okian/msci/internal/adapters/wiki"
	"github.com/okian/msci/internal/domain/crawler"
	"github.com/okian/msci/internal/domain/types"
	"github.com/okian/msci/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(logger.WithWriter(io.Discard)); err != nil {
		panic(err)
	}
}

type article struct {
	extract string
	links   []string
}

// mediaWiki serves extracts and links for a fixed set of articles.
type mediaWiki struct {
	articles map[string]article
	status   int
	requests atomic.Int64
}

func (m *mediaWiki) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	m.requests.Add(1)
	if m.status != 0 {
		w.WriteHeader(m.status)
		return
	}
	q := r.URL.Query()
	pages := map[string]any{}
	for i, title := range strings.Split(q.Get("titles"), "|") {
		a := m.articles[title]
		p := map[string]any{"title": title}
		switch q.Get("prop") {
		case "extracts":
			p["extract"] = a.extract
		case "links":
			links := make([]map[string]any, 0, len(a.links))
			for _, l := range a.links {
				links = append(links, map[string]any{"ns": 0, "title": l})
			}
			p["links"] = links
		}
		pages[string(rune('1'+i))] = p
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"query": map[string]any{"pages": pages}})
}

func noSleep(context.Context, time.Duration) error { return nil }

func startService(opts ...service.Option) *service.Service {
	svc := service.New(append([]service.Option{service.WithWorkerCount(4)}, opts...)...)
	So(svc.Start(context.Background()), ShouldBeNil)
	return svc
}

func TestService_New(t *testing.T) {
	Convey("Given a new service with custom options", t, func() {
		svc := service.New(
			service.WithWorkerCount(8),
			service.WithQueueSize(50_000),
			service.WithBatchSize(10),
			service.WithMaxDepth(2),
		)

		Convey("Then it reports its configuration", func() {
			stats := svc.GetStats()
			So(stats["started"], ShouldEqual, false)
			So(stats["workerCount"], ShouldEqual, 8)
			So(stats["queueSize"], ShouldEqual, 50_000)
			So(svc.MaxDepth(), ShouldEqual, 2)
		})

		Convey("Then requests fail until it is started", func() {
			_, err := svc.WordFrequency(context.Background(), "Go", 0)
			So(err, ShouldEqual, service.ErrNotStarted)
		})
	})
}

func TestService_StartStop(t *testing.T) {
	Convey("Given a started service", t, func() {
		svc := startService()
		So(svc.Start(context.Background()), ShouldBeNil)

		stats := svc.GetStats()
		So(stats["started"], ShouldEqual, true)
		So(stats["queueLength"], ShouldEqual, 0)

		Convey("When stopping it twice", func() {
			svc.Stop()
			svc.Stop()

			Convey("Then it is marked as stopped", func() {
				So(svc.GetStats()["started"], ShouldEqual, false)
			})
		})
	})
}

func TestService_WordFrequency(t *testing.T) {
	Convey("Given a service backed by a fake MediaWiki", t, func() {
		mw := &mediaWiki{articles: map[string]article{
			"Go":     {extract: "Go is a language. Go, go!", links: []string{"Gopher", "Python"}},
			"Gopher": {extract: "a gopher", links: []string{"Go"}},
			"Python": {extract: "a snake"},
		}}
		srv := httptest.NewServer(mw)
		defer srv.Close()

		svc := startService(service.WithWikiAPI(srv.URL, wiki.WithSleeper(noSleep)))
		defer svc.Stop()
		ctx := context.Background()

		Convey("depth zero counts the article only", func() {
			words, err := svc.WordFrequency(ctx, "Go", 0)
			So(err, ShouldBeNil)
			So(words, ShouldResemble, types.WordCounts{"Go": 2, "is": 1, "a": 1, "language": 1, "go": 1})
		})

		Convey("depth one adds linked articles", func() {
			words, err := svc.WordFrequency(ctx, "Go", 1)
			So(err, ShouldBeNil)
			So(words["a"], ShouldEqual, 3)
			So(words["gopher"], ShouldEqual, 1)
			So(words["snake"], ShouldEqual, 1)
		})

		Convey("a repeated request is served from the cache", func() {
			_, err := svc.WordFrequency(ctx, "Go", 1)
			So(err, ShouldBeNil)
			before := mw.requests.Load()

			words, err := svc.WordFrequency(ctx, "Go", 1)
			So(err, ShouldBeNil)
			So(words["snake"], ShouldEqual, 1)
			So(mw.requests.Load(), ShouldEqual, before)
			So(svc.GetStats()["cachedResults"], ShouldEqual, 1)
		})

		Convey("a negative depth counts the article only and shares the depth zero result", func() {
			words, err := svc.WordFrequency(ctx, "Go", -2)
			So(err, ShouldBeNil)
			So(words, ShouldResemble, types.WordCounts{"Go": 2, "is": 1, "a": 1, "language": 1, "go": 1})
			before := mw.requests.Load()

			_, err = svc.WordFrequency(ctx, "Go", 0)
			So(err, ShouldBeNil)
			So(mw.requests.Load(), ShouldEqual, before)
		})

		Convey("the article title is passed on as given", func() {
			words, err := svc.WordFrequency(ctx, " Go ", 0)
			So(err, ShouldBeNil)
			So(words, ShouldBeEmpty)
		})

		Convey("invalid input is rejected", func() {
			_, err := svc.WordFrequency(ctx, "", 0)
			So(errors.Is(err, service.ErrInvalidInput), ShouldBeTrue)

			_, err = svc.WordFrequency(ctx, "Go", 4)
			So(errors.Is(err, service.ErrInvalidInput), ShouldBeTrue)
		})
	})

	Convey("Given a MediaWiki that fails", t, func() {
		srv := httptest.NewServer(&mediaWiki{status: http.StatusInternalServerError})
		defer srv.Close()

		svc := startService(service.WithWikiAPI(srv.URL, wiki.WithSleeper(noSleep)))
		defer svc.Stop()

		_, err := svc.WordFrequency(context.Background(), "Go", 0)

		var jobErr *service.JobError
		So(errors.As(err, &jobErr), ShouldBeTrue)
		So(jobErr.Message, ShouldEqual, "Could not get response from wikipedia because of HTTP 500")
	})
}

// gatedFetcher blocks Words until release is closed.
type gatedFetcher struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once
	words   atomic.Int64
}

func (g *gatedFetcher) Words(ctx context.Context, _ []string) (types.WordCounts, error) {
	g.words.Add(1)
	g.once.Do(func() { close(g.entered) })
	select {
	case <-g.release:
		return types.WordCounts{"word": 1}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (g *gatedFetcher) Links(context.Context, []string) ([]string, error) { return nil, nil }

func TestService_Coalescing(t *testing.T) {
	Convey("Given concurrent requests for the same crawl", t, func() {
		f := &gatedFetcher{entered: make(chan struct{}), release: make(chan struct{})}
		svc := startService(service.WithFetcher(f))
		defer svc.Stop()
		ctx := context.Background()

		results := make(chan types.WordCounts, 2)
		for range 2 {
			go func() {
				words, _ := svc.WordFrequency(ctx, "Go", 0)
				results <- words
			}()
		}
		<-f.entered
		time.Sleep(20 * time.Millisecond)
		close(f.release)

		first, second := <-results, <-results

		Convey("Then the article is fetched once and each caller gets its own copy", func() {
			So(f.words.Load(), ShouldEqual, 1)
			So(first, ShouldResemble, types.WordCounts{"word": 1})
			So(second, ShouldResemble, types.WordCounts{"word": 1})
			first["word"] = 99
			So(second["word"], ShouldEqual, 1)
		})
	})

	Convey("Given a crawl that outlives the job timeout", t, func() {
		f := &gatedFetcher{entered: make(chan struct{}), release: make(chan struct{})}
		svc := startService(service.WithFetcher(f), service.WithJobTimeout(30*time.Millisecond))
		defer svc.Stop()

		_, err := svc.WordFrequency(context.Background(), "Go", 0)

		So(errors.Is(err, crawler.ErrJobTimeout), ShouldBeTrue)
		So(svc.GetStats()["jobsRunning"], ShouldEqual, 0)
	})
}

func TestService_Keywords(t *testing.T) {
	Convey("Given a service with a known article", t, func() {
		srv := httptest.NewServer(&mediaWiki{articles: map[string]article{
			"Text": {extract: "the the the the cat cat sat on mat"},
		}})
		defer srv.Close()

		svc := startService(service.WithWikiAPI(srv.URL))
		defer svc.Stop()
		ctx := context.Background()

		Convey("the ignore list removes words", func() {
			words, err := svc.Keywords(ctx, "Text", 0, []string{"the", "on"}, nil)
			So(err, ShouldBeNil)
			So(words, ShouldResemble, types.WordCounts{"cat": 2, "sat": 1, "mat": 1})
		})

		Convey("a percentile keeps only rarer words", func() {
			p := 60
			words, err := svc.Keywords(ctx, "Text", 0, nil, &p)
			So(err, ShouldBeNil)
			So(words, ShouldResemble, types.WordCounts{"sat": 1, "on": 1, "mat": 1})
		})

		Convey("an out of range percentile is rejected", func() {
			p := 101
			_, err := svc.Keywords(ctx, "Text", 0, nil, &p)
			So(errors.Is(err, service.ErrInvalidInput), ShouldBeTrue)
		})
	})
}
