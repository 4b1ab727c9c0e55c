package model

// Document is the text under audit together with where it came from
type Document struct {
	Source      string `json:"source,omitempty"` // File path or URL, empty for inline text
	Title       string `json:"title"`
	Text        string `json:"text"`
	ContentType string `json:"content_type,omitempty"`
}
