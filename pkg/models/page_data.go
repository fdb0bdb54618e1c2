package models

// Page is one rendered document as seen by the browser.
type Page struct {
	URL        string // final URL after redirects
	StatusCode int
	MIMEType   string
	HTML       string
	Links      []string // hyperlinks reported by the DOM
}

// IsHTML reports whether the page can carry links. An empty MIME type is
// treated as HTML since some render paths do not report one.
func (p Page) IsHTML() bool {
	return p.MIMEType == "" || p.MIMEType == "text/html" || p.MIMEType == "application/xhtml+xml"
}

// Failed reports an HTTP level failure.
func (p Page) Failed() bool {
	return p.StatusCode >= 400
}
