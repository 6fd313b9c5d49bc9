package web

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTemplates(t *testing.T) {
	tmpl, err := Templates()
	require.NoError(t, err)

	for _, name := range []string{"head", "theme", "foot", "list.html", "list_body", "detail.html", "live.html", "error.html"} {
		assert.NotNil(t, tmpl.Lookup(name), name)
	}
}
