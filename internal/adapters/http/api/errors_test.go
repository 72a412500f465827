package api

import (
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestOpErrors(t *testing.T) {
	Convey("Given op errors", t, func() {
		cause := errors.New("missing depth")

		Convey("WrapKind keeps both the kind and the cause", func() {
			err := WrapKind("api.keywords", ErrValidation, cause)
			So(err.Error(), ShouldEqual, "api.keywords: validation failed: missing depth")
			So(errors.Is(err, ErrValidation), ShouldBeTrue)
			So(errors.Is(err, cause), ShouldBeTrue)
			So(publicMessage(err), ShouldEqual, "missing depth")
		})

		Convey("NewKind exposes the kind", func() {
			err := NewKind("api.word_frequency", ErrBackpressure)
			So(errors.Is(err, ErrBackpressure), ShouldBeTrue)
			So(publicMessage(err), ShouldEqual, ErrBackpressure.Error())
		})

		Convey("Wrap passes nil through", func() {
			So(Wrap("api.op", nil), ShouldBeNil)
			So(Wrap("api.op", cause).Error(), ShouldEqual, "api.op: missing depth")
		})

		Convey("plain errors are shown as is", func() {
			So(publicMessage(cause), ShouldEqual, "missing depth")
		})
	})
}

func TestKeywordsRequestValidate(t *testing.T) {
	Convey("Given a keywords request", t, func() {
		depth := 1
		over := 100.5

		So(keywordsRequest{Article: "a", Depth: &depth}.validate(), ShouldBeNil)
		So(keywordsRequest{Article: " ", Depth: &depth}.validate(), ShouldNotBeNil)
		So(keywordsRequest{Article: "a"}.validate(), ShouldNotBeNil)
		So(keywordsRequest{Article: "a", Depth: &depth, Percentile: &over}.validate(), ShouldNotBeNil)
	})
}

func TestErrorType(t *testing.T) {
	Convey("Status codes map to error buckets", t, func() {
		So(errorType(504), ShouldEqual, "timeout")
		So(errorType(500), ShouldEqual, "server_error")
		So(errorType(429), ShouldEqual, "rate_limit")
		So(errorType(422), ShouldEqual, "validation")
		So(errorType(404), ShouldEqual, "not_found")
		So(errorType(400), ShouldEqual, "client_error")
	})
}
