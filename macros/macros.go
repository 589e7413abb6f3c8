package macros

import (
	"strings"
	"text/template"
)

// UserSyncTemplateParams specifies the values available to a user sync URL template.
type UserSyncTemplateParams struct {
	// PublisherID is the publisher id of the auction the sync follows.
	PublisherID string
}

// ResolveMacros executes the template against params. Nothing is returned on failure, not even
// partial output.
func ResolveMacros(aTemplate *template.Template, params interface{}) (string, error) {
	var resolved strings.Builder
	if err := aTemplate.Execute(&resolved, params); err != nil {
		return "", err
	}
	return resolved.String(), nil
}
