package crawler

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParser_Extract(t *testing.T) {
	p := NewParser()
	baseURL := "https://example.com/news/"

	rawHTML := `
		<!DOCTYPE html>
		<html>
		<head>
			<title>Test Page</title>
			<link rel="stylesheet" href="https://static.example.net/site.css">
			<script src="//cdn.example.net/app.js"></script>
		</head>
		<body>
			<div id="nav">
				<a href="/about">About Us</a>
				<a href="story">Story</a>
				<a href="https://partner.example.org">External Link</a>
				<a href="mailto:press@example.com">Mail</a>
				<a href="tel:+100000">Call</a>
				<a href="javascript:void(0)">Noop</a>
				<a href="#top">Top</a>
				<a href="ftp://files.example.com/">FTP</a>
			</div>
			<img src="https://images.example.com/logo.png">
			<iframe src="https://video.example.org/embed/1"></iframe>
		</body>
		</html>
	`

	links, err := p.Extract(strings.NewReader(rawHTML), baseURL)
	require.NoError(t, err)

	expectedLinks := []string{
		"https://static.example.net/site.css",
		"https://cdn.example.net/app.js",
		"https://example.com/about",
		"https://example.com/news/story",
		"https://partner.example.org",
		"https://images.example.com/logo.png",
		"https://video.example.org/embed/1",
	}
	assert.Equal(t, expectedLinks, links)
}

func TestParser_BaseElement(t *testing.T) {
	rawHTML := `<html><head><base href="https://mirror.example.com/root/"></head>
		<body><a href="page">p</a></body></html>`

	links := NewParser().ExtractLinks(rawHTML, "https://example.com/")
	assert.Equal(t, []string{"https://mirror.example.com/root/page"}, links)
}
