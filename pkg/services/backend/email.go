package backend

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	htmlTagRe    = regexp.MustCompile(`(?i)<\s*(html|body|div|p|br|table|span|a)\b`)
	blankLinesRe = regexp.MustCompile(`\n{3,}`)
)

// LooksLikeHTML reports whether an email body was pasted as HTML.
func LooksLikeHTML(body string) bool {
	return htmlTagRe.MatchString(body)
}

// StripHTML reduces an HTML email body to its text, keeping line breaks
// between block elements.
func StripHTML(body string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return "", err
	}
	doc.Find("script,style,head").Remove()
	doc.Find("br").ReplaceWithHtml("\n")
	doc.Find("p,div,li,tr,h1,h2,h3,h4").Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml("\n")
	})

	var lines []string
	for _, line := range strings.Split(doc.Text(), "\n") {
		lines = append(lines, strings.TrimSpace(line))
	}
	text := blankLinesRe.ReplaceAllString(strings.Join(lines, "\n"), "\n\n")
	return strings.TrimSpace(text), nil
}
