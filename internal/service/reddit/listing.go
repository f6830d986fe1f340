package reddit

import (
	stderrors "errors"
	"html"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/kapu/markov-kakao-bot-go/internal/domain"
)

type listing struct {
	Message string `json:"message"`
	Data    struct {
		Children []struct {
			Data Comment `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

// Comment is the subset of a comment listing entry the corpus needs.
type Comment struct {
	ID       string `json:"id"`
	Body     string `json:"body"`
	BodyHTML string `json:"body_html"`
}

var blankLines = regexp.MustCompile(`\n{2,}`)

// blockSelector lists the elements rendered as separate lines.
const blockSelector = "p, li, pre, blockquote, h1, h2, h3, h4, h5, h6"

// CommentText returns the readable text of a comment with one line per
// paragraph. The rendered HTML is preferred over the markdown body so links
// and formatting collapse to their visible text.
func CommentText(c Comment) string {
	if c.BodyHTML != "" {
		if text := htmlText(c.BodyHTML); text != "" {
			return text
		}
	}
	return strings.TrimSpace(blankLines.ReplaceAllString(c.Body, "\n"))
}

func htmlText(escaped string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html.UnescapeString(escaped)))
	if err != nil {
		return ""
	}

	var lines []string
	doc.Find(blockSelector).Each(func(_ int, s *goquery.Selection) {
		// Nested blocks are visited on their own.
		if s.Find(blockSelector).Length() > 0 {
			return
		}
		if line := strings.Join(strings.Fields(s.Text()), " "); line != "" {
			lines = append(lines, line)
		}
	})

	if len(lines) == 0 {
		return strings.Join(strings.Fields(doc.Text()), " ")
	}
	return strings.Join(lines, "\n")
}

func isNotFound(err error) bool {
	return stderrors.Is(err, domain.ErrCorpusNotFound)
}
