package webui

import _ "embed"

//go:embed templates/dashboard.tmpl
var dashboardTemplateHTML string

//go:embed assets/dashboard.js
var dashboardJavaScriptSource string
