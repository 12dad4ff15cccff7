package scanning

import (
	"encoding/base64"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("ParseDataURI", func() {
	var (
		uri      string
		data     []byte
		mimeType string
		err      error
	)

	JustBeforeEach(func() {
		data, mimeType, err = ParseDataURI(uri)
	})

	When("the URI is a base64 image", func() {
		BeforeEach(func() {
			uri = "data:image/PNG;base64," + base64.StdEncoding.EncodeToString([]byte("png bytes"))
		})

		It("should decode the payload", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(data).To(Equal([]byte("png bytes")))
		})

		It("should normalize the MIME type", func() {
			Expect(mimeType).To(Equal("image/png"))
		})
	})

	When("the URI has no MIME type", func() {
		BeforeEach(func() {
			uri = "data:;base64," + base64.StdEncoding.EncodeToString([]byte("x"))
		})

		It("should default to JPEG", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(mimeType).To(Equal("image/jpeg"))
		})
	})

	DescribeTable("rejecting bad input",
		func(input string) {
			_, _, err := ParseDataURI(input)
			Expect(err).To(MatchError(ErrInvalidImage))
		},
		Entry("empty", ""),
		Entry("no separator", "data:image/png;base64"),
		Entry("not a data URI", "http://example.com/a.png,abc"),
		Entry("not base64", "data:image/png,rawbytes"),
		Entry("bad payload", "data:image/png;base64,!!!!"),
		Entry("empty payload", "data:image/png;base64,"),
	)
})

var _ = Describe("NewExtractionRequest", func() {
	It("should copy the history", func() {
		history := []HistoryLine{{Vendor: "A"}}
		req, err := NewExtractionRequest("data:image/jpeg;base64,"+base64.StdEncoding.EncodeToString([]byte("j")), history, "m", "key")
		Expect(err).NotTo(HaveOccurred())
		history[0].Vendor = "B"
		Expect(req.History[0].Vendor).To(Equal("A"))
		Expect(req.ModelID).To(Equal("m"))
		Expect(req.Credential).To(Equal("key"))
		Expect(req.MimeType).To(Equal("image/jpeg"))
	})
})
