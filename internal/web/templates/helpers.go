// Package templates renders the HTML pages of the comparison service.
//
// The components live in components.templ; components_templ.go is
// generated from it.
package templates

//go:generate templ generate

import (
	"fmt"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/csvcompare/internal/core"
	"github.com/JonMunkholm/csvcompare/internal/table"
)

func runURL(run *core.Run) templ.SafeURL {
	return templ.SafeURL("/runs/" + run.ID.String())
}

func pageURL(offset, limit int) templ.SafeURL {
	return templ.SafeURL(fmt.Sprintf("/?offset=%d&limit=%d", offset, limit))
}

func valueStrings(values []table.Value) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = v.String()
	}
	return out
}
