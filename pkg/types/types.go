package types

// Status tracks where a receipt is in AI analysis
type Status string

const (
	StatusProcessing Status = "processing"
	StatusReady      Status = "ready"
	StatusFailed     Status = "failed"
)

// Placement is a receipt's free-form position on a printed page, in millimeters
// relative to the page's top-left corner
type Placement struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	W    float64 `json:"w"`
	H    float64 `json:"h"`
	Page int     `json:"page"`
}

// Receipt is a single expense attached to a claim
type Receipt struct {
	ID           string     `json:"id"`
	Image        []byte     `json:"-"`
	CroppedImage []byte     `json:"-"`
	Amount       float64    `json:"amount"`
	Merchant     string     `json:"merchant"`
	Date         string     `json:"date"`
	Category     string     `json:"category"`
	Remark       string     `json:"remark,omitempty"`
	Status       Status     `json:"status"`
	Placement    *Placement `json:"placement,omitempty"`
}

// DisplayImage returns the cropped image when present, else the original
func (r Receipt) DisplayImage() []byte {
	if len(r.CroppedImage) > 0 {
		return r.CroppedImage
	}
	return r.Image
}

// HasImage reports whether the receipt has anything to print
func (r Receipt) HasImage() bool {
	return len(r.DisplayImage()) > 0
}

// ReceiptFields is what a vision model extracts from a receipt photo
type ReceiptFields struct {
	Amount            float64 `json:"amount"`
	Merchant          string  `json:"merchant"`
	Date              string  `json:"date"`
	SuggestedCategory string  `json:"suggestedCategory"`
}
