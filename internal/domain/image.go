package domain

// Candidate is a page image that passed size and dedup filtering.
type Candidate struct {
	URL     string
	Width   int
	Height  int
	AltText string
	PageURL string
}

// Verdict captures the classification outcome for one candidate.
type Verdict struct {
	IsGhibli    bool    `json:"isGhibli"`
	Confidence  float64 `json:"confidence"`
	RawResponse string  `json:"rawResponse,omitempty"`
	Error       string  `json:"error,omitempty"`
}

// DownloadResult reports what the host download facility did with a match.
type DownloadResult struct {
	Success  bool   `json:"success"`
	Filename string `json:"filename,omitempty"`
	ID       string `json:"id,omitempty"`
	Error    string `json:"error,omitempty"`
}

// ProcessingStatus enumerates pipeline outcomes.
type ProcessingStatus string

const (
	StatusProcessed ProcessingStatus = "processed"
	StatusError     ProcessingStatus = "error"
)

// ReasonNotMatched is reported when a candidate is not in the requested style.
const ReasonNotMatched = "Not Ghibli style"

// ProcessResult is the single response produced for a candidate-found event.
type ProcessResult struct {
	Candidate Candidate
	Status    ProcessingStatus
	Matched   bool
	Verdict   Verdict
	Download  DownloadResult
	Reason    string
}

// VisionRequest is a single-turn multimodal question sent to a vision backend.
type VisionRequest struct {
	BaseURL  string
	APIKey   string
	Prompt   string
	MIMEType string
	// Data is the base64 payload; Image holds the same bytes undecoded.
	Data  string
	Image []byte
}

// HostDownload is handed to the host download facility.
type HostDownload struct {
	URL      string
	Filename string
	SaveAs   bool
}

// PageReport summarizes one page scan.
type PageReport struct {
	URL        string `json:"url"`
	Images     int    `json:"images"`
	Candidates int    `json:"candidates"`
	Error      string `json:"error,omitempty"`
}
