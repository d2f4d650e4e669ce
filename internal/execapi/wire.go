package execapi

type submitResponse struct {
	ID       string `json:"id"`
	SourceID string `json:"src-id"`
}

type runResponse struct {
	ID string `json:"id"`
}

// statusResponse is shared by /compileStatus and /runStatus.
type statusResponse struct {
	Status string `json:"status"`
	Stats  string `json:"stats"`

	ErrorLogID string  `json:"error-log-id"`
	BinaryID   *string `json:"binary-id"`

	StdoutID string `json:"stdout-id"`
	StderrID string `json:"stderr-id"`
}
