package scanning

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// mockModel is a mock implementation of Model
type mockModel struct {
	responses []string
	errs      []error
	calls     int
	prompts   []string
	requests  []*ExtractionRequest
	noKey     bool
}

func (m *mockModel) Generate(_ context.Context, req *ExtractionRequest, prompt string) (string, error) {
	m.calls++
	m.prompts = append(m.prompts, prompt)
	m.requests = append(m.requests, req)
	i := m.calls - 1
	if i < len(m.errs) && m.errs[i] != nil {
		return "", m.errs[i]
	}
	if i < len(m.responses) {
		return m.responses[i], nil
	}
	if len(m.responses) > 0 {
		return m.responses[len(m.responses)-1], nil
	}
	return "", errors.New("no response configured")
}

func (m *mockModel) Close() error {
	return nil
}

// keylessModel is a mockModel that needs no credential
type keylessModel struct {
	mockModel
}

func (k *keylessModel) RequiresCredential() bool {
	return false
}

func noSleep(context.Context, time.Duration) error {
	return nil
}

var _ = Describe("Extractor", func() {
	var (
		model     *mockModel
		extractor *Extractor
		req       *ExtractionRequest
		receipt   *DecodedReceipt
		err       error
	)

	BeforeEach(func() {
		model = &mockModel{responses: []string{"```json\n" + exampleReceiptJSON + "\n```"}}
		req = &ExtractionRequest{
			Image:      []byte("fake png"),
			MimeType:   "image/png",
			History:    []HistoryLine{{Date: "2024/04/30", Vendor: "前回の店", Amount: 300}},
			ModelID:    "gemini-2.0-flash",
			Credential: "test-key",
		}
	})

	JustBeforeEach(func() {
		extractor = NewExtractor(model, RetryPolicy{MaxRetries: 2, BaseDelay: time.Second, Sleep: noSleep}, 0)
		receipt, err = extractor.Extract(context.Background(), req)
	})

	When("the model answers with fenced JSON", func() {
		It("should not return an error", func() {
			Expect(err).NotTo(HaveOccurred())
		})

		It("should decode the receipt", func() {
			Expect(receipt.Vendor).To(Equal("ABC商店"))
			Expect(receipt.Items).To(HaveLen(1))
		})

		It("should send the history in the prompt", func() {
			Expect(model.prompts).To(HaveLen(1))
			Expect(model.prompts[0]).To(ContainSubstring("2024/04/30,前回の店,,,300,,"))
		})

		It("should forward the image and model", func() {
			Expect(model.requests[0].Image).To(Equal([]byte("fake png")))
			Expect(model.requests[0].ModelID).To(Equal("gemini-2.0-flash"))
		})
	})

	When("the credential is missing", func() {
		BeforeEach(func() {
			req.Credential = ""
		})

		It("returns a configuration error", func() {
			Expect(err).To(BeAssignableToTypeOf(&ConfigurationError{}))
		})

		It("should not call the model", func() {
			Expect(model.calls).To(Equal(0))
		})
	})

	When("the backend needs no credential", func() {
		var keyless *keylessModel

		BeforeEach(func() {
			req.Credential = ""
			keyless = &keylessModel{mockModel: mockModel{responses: []string{exampleReceiptJSON}}}
		})

		JustBeforeEach(func() {
			extractor = NewExtractor(keyless, RetryPolicy{Sleep: noSleep}, 0)
			receipt, err = extractor.Extract(context.Background(), req)
		})

		It("should call the model anyway", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(keyless.calls).To(Equal(1))
		})
	})

	When("the model fails transiently and then succeeds", func() {
		BeforeEach(func() {
			model.errs = []error{errors.New("503")}
		})

		It("should retry and succeed", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(model.calls).To(Equal(2))
		})
	})

	When("the model always fails", func() {
		BeforeEach(func() {
			model.errs = []error{errors.New("a"), errors.New("b"), errors.New("c"), errors.New("d")}
		})

		It("returns an inference error after the retry budget", func() {
			Expect(err).To(BeAssignableToTypeOf(&InferenceError{}))
			Expect(model.calls).To(Equal(3))
		})
	})

	When("the backend blocks the content", func() {
		BeforeEach(func() {
			model.errs = []error{&ContentPolicyBlock{Reason: "SAFETY"}}
		})

		It("should surface the block without retrying", func() {
			Expect(err).To(BeAssignableToTypeOf(&ContentPolicyBlock{}))
			Expect(model.calls).To(Equal(1))
		})
	})

	When("the response cannot be decoded", func() {
		BeforeEach(func() {
			model.responses = []string{"I could not read this receipt, sorry."}
		})

		It("returns a decode failure with the raw text", func() {
			var failure *DecodeFailure
			Expect(errors.As(err, &failure)).To(BeTrue())
			Expect(failure.RawText).To(Equal("I could not read this receipt, sorry."))
		})

		It("should not retry decoding failures", func() {
			Expect(model.calls).To(Equal(1))
		})
	})

	When("the image cannot be prepared", func() {
		BeforeEach(func() {
			req.MimeType = "image/bmp"
			req.Image = []byte("not an image")
		})

		It("returns an invalid image error before calling the model", func() {
			Expect(err).To(MatchError(ErrInvalidImage))
			Expect(model.calls).To(Equal(0))
		})
	})

	When("a HEIC image is corrupt", func() {
		BeforeEach(func() {
			req.MimeType = "image/heic"
			req.Image = []byte("not an image")
		})

		It("returns an invalid image error before calling the model", func() {
			Expect(err).To(MatchError(ErrInvalidImage))
			Expect(model.calls).To(Equal(0))
		})
	})

	When("a GIF image is truncated", func() {
		BeforeEach(func() {
			req.MimeType = "image/gif"
			req.Image = []byte("GIF89a")
		})

		It("returns an invalid image error before calling the model", func() {
			Expect(err).To(MatchError(ErrInvalidImage))
			Expect(model.calls).To(Equal(0))
		})
	})

	When("a PDF cannot be opened", func() {
		BeforeEach(func() {
			req.MimeType = "application/pdf"
			req.Image = []byte("%PDF-1.4 truncated")
		})

		It("returns an invalid image error before calling the model", func() {
			Expect(err).To(MatchError(ErrInvalidImage))
			Expect(model.calls).To(Equal(0))
		})
	})
})
