package scanning

import (
	"context"
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"
)

var _ = Describe("Ollama", func() {
	var (
		server *ghttp.Server
		ollama *Ollama
		req    *ExtractionRequest
	)

	BeforeEach(func() {
		server = ghttp.NewServer()
		ollama = NewOllama(server.URL(), "llava")
		req = &ExtractionRequest{Image: []byte("img"), MimeType: "image/png"}
	})

	AfterEach(func() {
		server.Close()
	})

	It("should not require a credential", func() {
		Expect(requiresCredential(ollama)).To(BeFalse())
	})

	When("the server answers", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyRequest(http.MethodPost, "/api/chat"),
				ghttp.VerifyContentType("application/json"),
				ghttp.RespondWithJSONEncoded(http.StatusOK, map[string]interface{}{
					"message": map[string]string{"role": "assistant", "content": `{"vendor":"A"}`},
					"done":    true,
				}),
			))
		})

		It("returns the message content", func() {
			text, err := ollama.Generate(context.Background(), req, "prompt")
			Expect(err).NotTo(HaveOccurred())
			Expect(text).To(Equal(`{"vendor":"A"}`))
		})
	})

	When("the server fails", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.RespondWith(http.StatusInternalServerError, "overloaded"))
		})

		It("returns a retryable error", func() {
			_, err := ollama.Generate(context.Background(), req, "prompt")
			Expect(err).To(MatchError(ContainSubstring("status 500")))
			Expect(IsPermanent(err)).To(BeFalse())
		})
	})

	When("the request is rejected", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.RespondWith(http.StatusNotFound, "model not found"))
		})

		It("returns a permanent error", func() {
			_, err := ollama.Generate(context.Background(), req, "prompt")
			Expect(IsPermanent(err)).To(BeTrue())
		})
	})
})
