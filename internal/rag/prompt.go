package rag

import (
	"strings"
	"text/template"
)

// DefaultPromptTemplate instructs the model to stay inside the retrieved context.
const DefaultPromptTemplate = `You are a helpful assistant for answering queries about insurance policies.

Use only the following context to answer the user's question.
If the answer is not found in the context, say you don't have enough information instead of guessing.

Context:
{{.Context}}

Question: {{.Question}}
`

const contextSeparator = "\n\n"

// PromptAssembler renders retrieved chunks and a question into one prompt.
type PromptAssembler struct {
	tmpl *template.Template
}

type promptData struct {
	Context  string
	Question string
}

// NewPromptAssembler parses tmpl, falling back to DefaultPromptTemplate when empty.
func NewPromptAssembler(tmpl string) (*PromptAssembler, error) {
	if strings.TrimSpace(tmpl) == "" {
		tmpl = DefaultPromptTemplate
	}
	t, err := template.New("prompt").Option("missingkey=error").Parse(tmpl)
	if err != nil {
		return nil, err
	}

	pa := &PromptAssembler{tmpl: t}
	probe, err := pa.render(promptData{Context: "\x00ctx\x00", Question: "\x00q\x00"})
	if err != nil {
		return nil, err
	}
	if !strings.Contains(probe, "\x00ctx\x00") || !strings.Contains(probe, "\x00q\x00") {
		return nil, ErrInvalidPromptFormat
	}
	return pa, nil
}

// Assemble renders the prompt. The question is passed through verbatim, even when empty.
func (pa *PromptAssembler) Assemble(result RetrievalResult, question string) (string, error) {
	return pa.render(promptData{
		Context:  strings.Join(result.Texts(), contextSeparator),
		Question: question,
	})
}

func (pa *PromptAssembler) render(data promptData) (string, error) {
	var b strings.Builder
	if err := pa.tmpl.Execute(&b, data); err != nil {
		return "", err
	}
	return b.String(), nil
}
