package render

import (
	"bytes"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

var markdown = goldmark.New(
	goldmark.WithExtensions(extension.Typographer),
	goldmark.WithRendererOptions(html.WithHardWraps()),
)

// HTML renders a chapter as an HTML fragment: the title as <h1> followed by the body
func HTML(chapter *model.Chapter) (string, error) {
	doc := model.NewDocument(model.Heading(1, chapter.Title))
	if chapter.Content != nil {
		doc.Content = append(doc.Content, chapter.Content.Content...)
	}

	var buf bytes.Buffer
	if err := markdown.Convert([]byte(doc.Markdown()), &buf); err != nil {
		return "", goerr.Wrap(err, "failed to render chapter", goerr.V(model.ChapterIDKey, chapter.ID))
	}
	return buf.String(), nil
}

// Text returns the chapter body as plain text
func Text(chapter *model.Chapter) string {
	return model.ExtractText(chapter.Content)
}
