package book

// Outcome is the result of importing one item.
type Outcome struct {
	ExternalID string `json:"external_id"`
	Source     Source `json:"source"`
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	RecordID   *int64 `json:"record_id,omitempty"`
	// Error is the raw error text of a failed item.
	Error string `json:"error,omitempty"`
}

// Report summarises a bulk import. Results follow the input order.
type Report struct {
	Total      int       `json:"total"`
	Successful int       `json:"successful"`
	Failed     int       `json:"failed"`
	Results    []Outcome `json:"results"`
}

// NewReport counts the outcomes into a Report.
func NewReport(outcomes []Outcome) Report {
	report := Report{
		Total:   len(outcomes),
		Results: outcomes,
	}
	for _, outcome := range outcomes {
		if outcome.Success {
			report.Successful++
		} else {
			report.Failed++
		}
	}
	return report
}

// Succeeded builds a successful outcome.
func Succeeded(key Key, recordID int64, message string) Outcome {
	return Outcome{
		ExternalID: key.ExternalID,
		Source:     key.Source,
		Success:    true,
		Message:    message,
		RecordID:   &recordID,
	}
}

// Failed builds a failed outcome carrying err's text.
func Failed(key Key, message string, err error) Outcome {
	outcome := Outcome{
		ExternalID: key.ExternalID,
		Source:     key.Source,
		Message:    message,
	}
	if err != nil {
		outcome.Error = err.Error()
	}
	return outcome
}
