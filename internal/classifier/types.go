package classifier

// DementiaAnalysis is the classification block the upstream returns when
// the uploaded image is a brain MRI.
type DementiaAnalysis struct {
	PredictedClass string             `json:"predictedClass"`
	Confidences    map[string]float64 `json:"confidences"`
	Insights       string             `json:"insights"`
}

// Result is the upstream response, a tagged variant on IsMRI:
//
//	IsMRI=false → MRIConfidence and Message describe why the upload was rejected
//	IsMRI=true  → Analysis carries the classification block
type Result struct {
	IsMRI         bool              `json:"isMRI"`
	Status        string            `json:"status"`
	Message       string            `json:"message"`
	MRIConfidence *float64          `json:"mriConfidence,omitempty"`
	Analysis      *DementiaAnalysis `json:"dementiaAnalysis,omitempty"`

	// Raw holds the response body verbatim for audit storage.
	Raw []byte `json:"-"`
}
