package ledger

import (
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zombor/i2row/internal/scanning"
)

var _ = Describe("MapToRows", func() {
	var (
		receipt *scanning.DecodedReceipt
		rows    []NormalizedRow
	)

	BeforeEach(func() {
		receipt = testReceipt()
	})

	JustBeforeEach(func() {
		rows = MapToRows(receipt, &sequenceIDGenerator{})
	})

	It("should produce one row per item in order", func() {
		Expect(rows).To(HaveLen(2))
		Expect(rows[0].Description).To(Equal("コーヒー豆"))
		Expect(rows[1].Description).To(Equal("ノート"))
	})

	It("should copy receipt-level fields onto every row", func() {
		for _, r := range rows {
			Expect(r.Date).To(Equal("2024/05/01"))
			Expect(r.Vendor).To(Equal("ABC商店"))
			Expect(r.IsHeader).To(BeFalse())
		}
	})

	It("should assign distinct IDs", func() {
		Expect(rows[0].ID).To(Equal("id-1"))
		Expect(rows[1].ID).To(Equal("id-2"))
	})

	It("should set unit price and quantity", func() {
		Expect(rows[1].UnitPrice).To(HaveValue(Equal(300.0)))
		Expect(rows[1].Quantity).To(HaveValue(Equal(2.0)))
		Expect(rows[1].Amount).To(Equal(600.0))
	})

	It("should leave the tax category as the model returned it", func() {
		Expect(rows[0].TaxCategory).To(Equal("課税8%"))
	})

	When("values are unknown", func() {
		BeforeEach(func() {
			receipt.Date = "unknown"
			receipt.Vendor = "unknown"
			receipt.Items = []scanning.LineItem{{
				Description:          "unknown",
				DebitAccountCategory: "unknown",
				TaxCategory:          "",
				UnitPrice:            scanning.Amount{},
				Quantity:             scanning.Amount{},
				Amount:               scanning.KnownAmount(math.NaN()),
			}}
		})

		It("should blank strings and zero numbers", func() {
			Expect(rows).To(HaveLen(1))
			Expect(rows[0].Date).To(BeEmpty())
			Expect(rows[0].Vendor).To(BeEmpty())
			Expect(rows[0].Description).To(BeEmpty())
			Expect(rows[0].DebitAccountCategory).To(BeEmpty())
			Expect(rows[0].Amount).To(BeZero())
			Expect(rows[0].UnitPrice).To(HaveValue(BeZero()))
			Expect(rows[0].Quantity).To(HaveValue(BeZero()))
		})
	})

	When("unknown is written in another case", func() {
		BeforeEach(func() {
			receipt.Date = "Unknown"
			receipt.Vendor = " UNKNOWN "
			receipt.Items[0].CreditAccountCategory = "Unknown"
		})

		It("should still blank the strings", func() {
			Expect(rows[0].Date).To(BeEmpty())
			Expect(rows[0].Vendor).To(BeEmpty())
			Expect(rows[0].CreditAccountCategory).To(BeEmpty())
		})
	})

	When("there are no items", func() {
		BeforeEach(func() {
			receipt.Items = []scanning.LineItem{}
		})

		It("should produce no rows", func() {
			Expect(rows).To(BeEmpty())
		})
	})

	When("no generator is given", func() {
		It("should fall back to UUIDs", func() {
			generated := MapToRows(testReceipt(), nil)
			Expect(generated[0].ID).To(MatchRegexp(`^[0-9a-f]{8}-[0-9a-f]{4}-4[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`))
			Expect(generated[0].ID).NotTo(Equal(generated[1].ID))
		})
	})
})

var _ = Describe("RowPatch", func() {
	It("should only change the fields that are set", func() {
		row := &NormalizedRow{ID: "r1", Date: "2024/05/01", Vendor: "A", Amount: 100}
		vendor := "B"
		amount := math.Inf(1)
		RowPatch{Vendor: &vendor, Amount: &amount}.Apply(row)

		Expect(row.Vendor).To(Equal("B"))
		Expect(row.Date).To(Equal("2024/05/01"))
		Expect(row.Amount).To(BeZero())
		Expect(row.ID).To(Equal("r1"))
	})
})

var _ = Describe("HistoryFromRows", func() {
	It("should carry the journal fields", func() {
		lines := HistoryFromRows([]*NormalizedRow{{
			Date:                  "2024/05/01",
			Vendor:                "A",
			DebitAccountCategory:  "消耗品費",
			CreditAccountCategory: "現金",
			Amount:                500,
			TaxCategory:           "課税8%",
			Description:           "豆",
		}})
		Expect(lines).To(Equal([]scanning.HistoryLine{{
			Date:          "2024/05/01",
			Vendor:        "A",
			DebitAccount:  "消耗品費",
			CreditAccount: "現金",
			Amount:        500,
			TaxCategory:   "課税8%",
			Description:   "豆",
		}}))
	})
})
