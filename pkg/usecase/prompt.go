package usecase

import (
	"bytes"
	_ "embed"
	"text/template"

	"github.com/m-mizutani/goerr/v2"
)

var (
	//go:embed prompt/interviewer_system.md
	interviewerSystemTmpl string
	//go:embed prompt/interview_user.md
	interviewUserTmpl string
	//go:embed prompt/editor_system.md
	editorSystemPrompt string
	//go:embed prompt/editor_user.md
	editorUserTmpl string
	//go:embed prompt/refine_system.md
	refineSystemTmpl string
	//go:embed prompt/refine_user.md
	refineUserTmpl string
)

var (
	interviewerSystem = template.Must(template.New("interviewer_system").Parse(interviewerSystemTmpl))
	interviewUser     = template.Must(template.New("interview_user").Parse(interviewUserTmpl))
	editorUser        = template.Must(template.New("editor_user").Parse(editorUserTmpl))
	refineSystem      = template.Must(template.New("refine_system").Parse(refineSystemTmpl))
	refineUser        = template.Must(template.New("refine_user").Parse(refineUserTmpl))
)

func renderPrompt(tmpl *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", goerr.Wrap(err, "failed to render prompt", goerr.V("template", tmpl.Name()))
	}
	return buf.String(), nil
}
