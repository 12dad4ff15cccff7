package scanning

import (
	"strconv"
	"strings"
)

// MaxHistoryLines is how many recent ledger lines are shown to the model
const MaxHistoryLines = 10

// historyHeader is the literal header row of the history table
const historyHeader = "日付,支払先,借方,貸方,金額,税区分,摘要"

// NoDataMessage is the message the model is told to return when nothing is readable
const NoDataMessage = "画像から項目を読み取れませんでした。"

// receiptScanPrompt is the instruction template shared by all backends.
// The history table is appended between the closing triple quotes.
const receiptScanPrompt = `あなたは領収書OCRの専門家です。提供された領収書の画像から、以下の情報を抽出してJSON形式で返してください。

1. 日付（date）: YYYY/MM/DD形式で。不明な場合は"unknown"
2. 支払先名（vendor）: 店舗名や会社名
3. 合計金額（totalAmount）: 数値のみ（通貨記号なし）
4. 通貨（currency）: "JPY"など
5. 税額（taxAmount）: 消費税や付加価値税の金額。不明な場合は"unknown"
6. 支払方法（paymentMethod）: "現金"、"クレジットカード"など。不明な場合は"unknown"
7. 品目リスト（items）: 配列形式で、各品目には以下を含む
   - 品名（description）
   - 単価（unitPrice）: 数値のみ
   - 勘定科目（accountCategory）: この品目で最も使われる勘定科目
   - 借方勘定科目（debitAccountCategory）: この品目で最も使われる借方勘定科目
   - 貸方勘定科目（creditAccountCategory）: この品目で最も使われる貸方勘定科目
   - 税区分（taxCategory）: 課税8%, 課税10% のいずれか。分からない場合は 課税10%
   - 数量（quantity）: 数値のみ
   - 金額（amount）: 数値のみ

情報が読み取れない場合は、該当するフィールドに"unknown"を設定してください。
品目リストが読み取れない場合は、空の配列を返してください。

以下の形式で返してください：
{
  "date": "YYYY/MM/DD",
  "vendor": "店舗名",
  "totalAmount": 数値,
  "currency": "JPY",
  "taxAmount": 数値,
  "paymentMethod": "支払方法",
  "items": [
    {
      "description": "品名",
      "accountCategory": "勘定科目",
      "debitAccountCategory": "借方勘定科目",
      "creditAccountCategory": "貸方勘定科目",
      "unitPrice": 数値,
      "quantity": 数値,
      "amount": 数値,
      "taxCategory": "税区分"
    }
  ]
}

全く項目が読み取れない場合は、以下のJSONを返してください:
{
  "error": "` + NoDataMessage + `"
}

必ずJSON形式で返してください。説明文や追加コメントは不要です。
マークダウン記法（` + "```json" + `など）は使用せず、純粋なJSONオブジェクトのみを返してください。

勘定科目、借方勘定科目、貸方勘定科目が分からない場合や、読み取りに自信がない場合は、最近追加した仕訳データを参考にしてください。

最近追加した仕訳データ:
"""
`

// BuildPrompt renders the instruction text with the most recent history lines
func BuildPrompt(history []HistoryLine) string {
	if len(history) > MaxHistoryLines {
		history = history[len(history)-MaxHistoryLines:]
	}

	var b strings.Builder
	b.WriteString(receiptScanPrompt)
	b.WriteString(historyHeader)
	for _, h := range history {
		b.WriteByte('\n')
		b.WriteString(strings.Join([]string{
			h.Date,
			h.Vendor,
			h.DebitAccount,
			h.CreditAccount,
			strconv.FormatFloat(h.Amount, 'f', -1, 64),
			h.TaxCategory,
			h.Description,
		}, ","))
	}
	b.WriteString("\n\"\"\"\n")
	return b.String()
}
