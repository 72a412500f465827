package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestLogger(t *testing.T) {
	Convey("Given a logger writing JSON into a buffer", t, func() {
		var buf bytes.Buffer
		So(Init(WithFormat("json"), WithWriter(&buf)), ShouldBeNil)
		So(SetLevelString("info"), ShouldBeNil)
		ctx := context.Background()

		Convey("When logging an info message with fields", func() {
			Get().Info(ctx, "fetched", String("article", "Go"), Int("words", 12), Error(errors.New("boom")))

			Convey("Then the record carries the fields and a source location", func() {
				var rec map[string]any
				So(json.Unmarshal(buf.Bytes(), &rec), ShouldBeNil)
				So(rec["msg"], ShouldEqual, "fetched")
				So(rec["article"], ShouldEqual, "Go")
				So(rec["words"], ShouldEqual, float64(12))
				So(rec["error"], ShouldEqual, "boom")
				So(rec["source"], ShouldContainSubstring, "logger_test.go:")
			})
		})

		Convey("When logging through a named logger", func() {
			Named("crawler").Warn(ctx, "slow")

			Convey("Then the component attribute is present", func() {
				So(buf.String(), ShouldContainSubstring, `"component":"crawler"`)
			})
		})

		Convey("When the level is raised to error", func() {
			So(SetLevelString("ERROR"), ShouldBeNil)
			Get().Info(ctx, "hidden")
			Get().Debug(ctx, "hidden")

			Convey("Then lower levels are dropped", func() {
				So(buf.Len(), ShouldEqual, 0)
			})
			So(SetLevelString("info"), ShouldBeNil)
		})
	})

	Convey("Given invalid settings", t, func() {
		Convey("Then unknown levels are rejected", func() {
			So(SetLevelString("verbose"), ShouldNotBeNil)
		})
		Convey("Then unknown formats are rejected", func() {
			So(Init(WithFormat("xml")), ShouldNotBeNil)
		})
	})

	Convey("Given the default text handler", t, func() {
		var buf bytes.Buffer
		So(Init(WithWriter(&buf)), ShouldBeNil)
		Get().Info(context.Background(), "hello", String("k", "v"))

		Convey("Then output is logfmt", func() {
			So(strings.Contains(buf.String(), "msg=hello"), ShouldBeTrue)
			So(strings.Contains(buf.String(), "k=v"), ShouldBeTrue)
			So(Sync(), ShouldBeNil)
		})
	})
}
