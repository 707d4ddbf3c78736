package reporting

import (
	"errors"
	"fmt"
	"io"
	"os"
	"text/template"

	"github.com/ethereum-optimism/infra/op-harness/templates"
)

// TransformError reports that a presentation transform could not be applied
type TransformError struct {
	Path string
	Err  error
}

func (e *TransformError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("failed to apply summary transform: %v", e.Err)
	}
	return fmt.Sprintf("failed to apply transform %s: %v", e.Path, e.Err)
}

func (e *TransformError) Unwrap() error {
	return e.Err
}

// IsTransformError checks if the error is a TransformError
func IsTransformError(err error) bool {
	var transformErr *TransformError
	return err != nil && errors.As(err, &transformErr)
}

// LoadTransform parses the text/template at path, or the built-in summary when
// path is empty
func LoadTransform(path string) (*template.Template, error) {
	content := templates.Summary
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, &TransformError{Path: path, Err: err}
		}
		content = string(data)
	}
	tmpl, err := template.New("transform").Funcs(templates.GetTemplateFunc()).Parse(content)
	if err != nil {
		return nil, &TransformError{Path: path, Err: err}
	}
	return tmpl, nil
}

// ApplyTransform renders doc through a template returned by LoadTransform
func ApplyTransform(tmpl *template.Template, doc *Document, w io.Writer) error {
	if err := tmpl.Execute(w, doc); err != nil {
		return &TransformError{Err: err}
	}
	return nil
}

// Transform renders doc through the template at path, or through the
// built-in summary when path is empty
func Transform(doc *Document, path string, w io.Writer) error {
	tmpl, err := LoadTransform(path)
	if err != nil {
		return err
	}
	if err := tmpl.Execute(w, doc); err != nil {
		return &TransformError{Path: path, Err: err}
	}
	return nil
}
