package softwareindex

// SourceInfo describes a source in the published catalog.
type SourceInfo struct {
	// Path is where the source's assets live locally.
	Path        string `json:"path"`
	Name        string `json:"name"`
	Description string `json:"description"`
	// URL is the configured location of the source, and HTMLURL a page
	// describing it.
	URL     string `json:"url"`
	HTMLURL string `json:"html_url"`
}
