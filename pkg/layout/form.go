package layout

import (
	"fmt"
	"strings"

	"github.com/menta2k/claimprint/pkg/types"
)

// MinFormRows is the number of item rows the claim form always prints
const MinFormRows = 20

// ClaimHeader is the text printed above the claim table
type ClaimHeader struct {
	Company string `json:"company"`
	Title   string `json:"title"`
	Name    string `json:"name"`
	Month   string `json:"month"`
}

// FormRow is one item line of the claim table
type FormRow struct {
	Item        int     `json:"item"`
	Category    string  `json:"category"`
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
}

// AmountText is the printed amount; zero prints blank
func (r FormRow) AmountText() string {
	if r.Amount <= 0 {
		return ""
	}
	return fmt.Sprintf("%.2f", r.Amount)
}

// ClaimForm is the table printed on the first page
type ClaimForm struct {
	Header ClaimHeader `json:"header"`
	Rows   []FormRow   `json:"rows"`
	Total  float64     `json:"total"`
}

// TotalText is the printed grand total; zero prints blank
func (f ClaimForm) TotalText() string {
	return FormRow{Amount: f.Total}.AmountText()
}

// BuildClaimForm sums receipts per category, one row per category in the
// given order, padded with blank rows up to MinFormRows. Remarks of a
// category's receipts are appended to its description once each.
func BuildClaimForm(header ClaimHeader, categories []string, receipts []types.Receipt) ClaimForm {
	form := ClaimForm{Header: header}
	for _, r := range receipts {
		form.Total += r.Amount
	}

	n := max(MinFormRows, len(categories))
	form.Rows = make([]FormRow, n)
	for i := range form.Rows {
		form.Rows[i].Item = i + 1
		if i >= len(categories) || categories[i] == "" {
			continue
		}

		cat := categories[i]
		var remarks []string
		seen := map[string]bool{}
		for _, r := range receipts {
			if r.Category != cat {
				continue
			}
			form.Rows[i].Amount += r.Amount
			remark := strings.TrimSpace(r.Remark)
			if remark != "" && !seen[remark] {
				seen[remark] = true
				remarks = append(remarks, remark)
			}
		}

		form.Rows[i].Category = cat
		form.Rows[i].Description = cat
		if len(remarks) > 0 {
			form.Rows[i].Description = fmt.Sprintf("%s (%s)", cat, strings.Join(remarks, ", "))
		}
	}
	return form
}
