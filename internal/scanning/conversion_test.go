package scanning

import (
	"bytes"
	"image"
	"image/color"
	"image/gif"
	"image/png"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("prepareImage", func() {
	When("the image is already a supported type", func() {
		It("should pass JPEG through untouched", func() {
			data, mimeType, err := prepareImage([]byte("jpeg bytes"), "image/jpeg")
			Expect(err).NotTo(HaveOccurred())
			Expect(data).To(Equal([]byte("jpeg bytes")))
			Expect(mimeType).To(Equal("image/jpeg"))
		})
	})

	When("the image is a GIF", func() {
		var gifData []byte

		BeforeEach(func() {
			img := image.NewPaletted(image.Rect(0, 0, 2, 2), color.Palette{color.Black, color.White})
			var buf bytes.Buffer
			Expect(gif.Encode(&buf, img, nil)).To(Succeed())
			gifData = buf.Bytes()
		})

		It("should convert it to PNG", func() {
			data, mimeType, err := prepareImage(gifData, "image/gif")
			Expect(err).NotTo(HaveOccurred())
			Expect(mimeType).To(Equal("image/png"))
			_, decodeErr := png.Decode(bytes.NewReader(data))
			Expect(decodeErr).NotTo(HaveOccurred())
		})
	})

	When("the data is not an image", func() {
		It("returns an invalid image error", func() {
			_, _, err := prepareImage([]byte("definitely not an image"), "image/bmp")
			Expect(err).To(MatchError(ErrInvalidImage))
		})
	})

	When("the data carries a HEIC signature", func() {
		It("should detect the format", func() {
			header := append([]byte{0, 0, 0, 24}, []byte("ftypheic")...)
			Expect(isHEICFormat(header)).To(BeTrue())
			Expect(isHEICFormat([]byte("short"))).To(BeFalse())
		})
	})
})
