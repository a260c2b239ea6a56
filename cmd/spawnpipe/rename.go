package main

import (
	"bytes"
	"log/slog"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"github.com/pkg/errors"

	"github.com/askiada/go-spawn/internal/logging"
)

type renameData struct {
	Base string
	Ext  string
}

// renameFunc turns a file name template such as "{{ .Base }}.min{{ .Ext }}" into a rename function.
// A name that cannot be rendered is kept.
func renameFunc(text string) (func(base, ext string) string, error) {
	tmpl, err := template.New("rename").Funcs(sprig.TxtFuncMap()).Parse(text)
	if err != nil {
		return nil, errors.Wrap(err, "invalid rename template")
	}

	logger := logging.New("spawnpipe")

	return func(base, ext string) string {
		var buf bytes.Buffer

		err := tmpl.Execute(&buf, renameData{Base: base, Ext: ext})
		if err != nil || buf.Len() == 0 {
			logger.Warn("unable to rename", slog.String("name", base+ext), slog.Any("error", err))

			return base + ext
		}

		return buf.String()
	}, nil
}
