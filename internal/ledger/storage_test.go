package ledger

import (
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("LocalStorage", func() {
	var (
		tmpDir  string
		storage Storage
	)

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
		var err error
		storage, err = NewLocalStorage(tmpDir)
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("Save", func() {
		var (
			filename  string
			savedPath string
			err       error
		)

		BeforeEach(func() {
			filename = "cap-1_receipt.png"
		})

		JustBeforeEach(func() {
			savedPath, err = storage.Save(filename, []byte("test file content"))
		})

		When("saving succeeds", func() {
			It("should return the file name", func() {
				Expect(err).NotTo(HaveOccurred())
				Expect(savedPath).To(Equal(filename))
			})

			It("should save the file to disk", func() {
				Expect(filepath.Join(tmpDir, filename)).To(BeAnExistingFile())
			})
		})

		When("the name escapes the storage directory", func() {
			BeforeEach(func() {
				filename = "../outside.png"
			})

			It("returns an error", func() {
				Expect(err).To(MatchError(ContainSubstring("invalid file name")))
				Expect(filepath.Join(filepath.Dir(tmpDir), "outside.png")).NotTo(BeAnExistingFile())
			})
		})
	})

	Describe("Get", func() {
		When("file exists", func() {
			It("should return the file data", func() {
				_, err := storage.Save("a.png", []byte("content"))
				Expect(err).NotTo(HaveOccurred())
				data, err := storage.Get("a.png")
				Expect(err).NotTo(HaveOccurred())
				Expect(string(data)).To(Equal("content"))
			})
		})

		When("file does not exist", func() {
			It("returns the error", func() {
				_, err := storage.Get("nonexistent.png")
				Expect(err).To(MatchError(ContainSubstring("reading file")))
			})
		})
	})

	Describe("Delete", func() {
		It("should remove the file from disk", func() {
			_, err := storage.Save("a.png", []byte("content"))
			Expect(err).NotTo(HaveOccurred())
			Expect(storage.Delete("a.png")).To(Succeed())
			Expect(filepath.Join(tmpDir, "a.png")).NotTo(BeAnExistingFile())
		})

		It("returns an error for a missing file", func() {
			Expect(storage.Delete("nonexistent.png")).To(MatchError(ContainSubstring("deleting file")))
		})
	})

	Describe("NewLocalStorage", func() {
		It("should create a missing directory", func() {
			path := filepath.Join(GinkgoT().TempDir(), "captures")
			_, err := NewLocalStorage(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(path).To(BeADirectory())
		})
	})
})
