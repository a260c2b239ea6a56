package spawn

import (
	"bytes"
	"strconv"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"github.com/pkg/errors"

	"github.com/askiada/go-spawn/pkg/item"
)

// templateData is what argument templates are executed against, e.g. {{ .Item.Path }}.
type templateData struct {
	Item *item.Item
}

func parseTemplate(name, text string) (*template.Template, error) {
	tmpl, err := template.New(name).Funcs(sprig.TxtFuncMap()).Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, errors.Wrapf(ErrConfig, "invalid template %s: %v", name, err)
	}

	return tmpl, nil
}

// parseArgs parses every argument as a template.
func parseArgs(args []string) ([]*template.Template, error) {
	tmpls := make([]*template.Template, 0, len(args))

	for i, arg := range args {
		tmpl, err := parseTemplate("arg"+strconv.Itoa(i), arg)
		if err != nil {
			return nil, err
		}

		tmpls = append(tmpls, tmpl)
	}

	return tmpls, nil
}

// render executes tmpl with it as context.
func render(tmpl *template.Template, it *item.Item) (string, error) {
	var buf bytes.Buffer

	err := tmpl.Execute(&buf, templateData{Item: it})
	if err != nil {
		return "", errors.Wrapf(err, "unable to render %s", tmpl.Name())
	}

	return buf.String(), nil
}

// RenderArgs renders args against it, the way Each does before launching a command.
func RenderArgs(args []string, it *item.Item) ([]string, error) {
	tmpls, err := parseArgs(args)
	if err != nil {
		return nil, err
	}

	return renderAll(tmpls, it)
}

func renderAll(tmpls []*template.Template, it *item.Item) ([]string, error) {
	rendered := make([]string, 0, len(tmpls))

	for _, tmpl := range tmpls {
		arg, err := render(tmpl, it)
		if err != nil {
			return nil, err
		}

		rendered = append(rendered, arg)
	}

	return rendered, nil
}
