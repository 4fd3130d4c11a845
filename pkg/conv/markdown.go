package conv

import (
	"strings"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"github.com/microcosm-cc/bluemonday"
)

var (
	extensions = parser.CommonExtensions | parser.NoEmptyLineBeforeBlock
	htmlFlags  = html.CommonFlags | html.HrefTargetBlank
	tgPolicy   = bluemonday.NewPolicy()
)

func init() {
	// Allowed tags https://core.telegram.org/bots/api#html-style
	tgPolicy.AllowElements("b", "strong", "i", "em", "u", "ins", "s", "strike", "del", "code", "pre", "blockquote")
	tgPolicy.AllowAttrs("href").OnElements("a")
	tgPolicy.AllowAttrs("class").OnElements("code")
}

func MarkdownToTelegramHTML(md []byte) string {
	p := parser.NewWithExtensions(extensions)
	renderer := html.NewRenderer(html.RendererOptions{Flags: htmlFlags})
	unsafeHTML := markdown.Render(p.Parse(md), renderer)

	return string(tgPolicy.SanitizeBytes(unsafeHTML))
}

// SplitHTML splits text into chunks respecting a message-length limit,
// preferring newline boundaries so formatting survives the cut.
func SplitHTML(text string, maxLen int) []string {
	if len(text) <= maxLen {
		return []string{text}
	}

	var chunks []string
	for len(text) > 0 {
		if len(text) <= maxLen {
			chunks = append(chunks, text)
			break
		}

		cut := maxLen
		if idx := strings.LastIndex(text[:maxLen], "\n"); idx > maxLen/3 {
			cut = idx
		}

		chunks = append(chunks, text[:cut])
		text = strings.TrimSpace(text[cut:])
	}
	return chunks
}
