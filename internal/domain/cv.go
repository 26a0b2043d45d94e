package domain

// CVMetadata is the JSON sidecar written next to the downloaded CV.
type CVMetadata struct {
	LastModified string `json:"lastModified"`
	DisplayDate  string `json:"displayDate"`
	Year         int    `json:"year"`
	Month        string `json:"month"`
	FileName     string `json:"fileName"`
	SizeKB       int64  `json:"sizeKB"`
}
