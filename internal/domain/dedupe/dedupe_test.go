package dedupe_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/okian/msci/internal/domain/dedupe"
	. "github.com/smartystreets/goconvey/convey"
)

func TestUnboundedDeduper(t *testing.T) {
	Convey("Given an unbounded deduper", t, func() {
		ctx := context.Background()
		d := dedupe.NewInMemoryDeduper()

		Convey("When recording a title twice", func() {
			first := d.SeenAndRecord(ctx, "Go (programming language)")
			second := d.SeenAndRecord(ctx, "Go (programming language)")

			Convey("Then only the second call reports it as seen", func() {
				So(first, ShouldBeFalse)
				So(second, ShouldBeTrue)
				So(d.Size(), ShouldEqual, 1)
			})
		})

		Convey("When many goroutines race on the same titles", func() {
			var fresh atomic.Int64
			var wg sync.WaitGroup
			for g := 0; g < 16; g++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for i := 0; i < 100; i++ {
						if !d.SeenAndRecord(ctx, fmt.Sprintf("title-%d", i)) {
							fresh.Add(1)
						}
					}
				}()
			}
			wg.Wait()

			Convey("Then each title is fresh exactly once", func() {
				So(fresh.Load(), ShouldEqual, 100)
				So(d.Size(), ShouldEqual, 100)
			})
		})
	})
}
