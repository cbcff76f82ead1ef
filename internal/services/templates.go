package services

import (
	"regexp"
	"strings"
)

var placeholder = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_]+)\s*\}\}`)

type stateText struct {
	title string
	body  string
}

var stateTexts = map[string]stateText{
	"en espera": {
		title: "Conductor en espera",
		body:  "Conductor {{numeroConductor}} en espera a las {{hora}}",
	},
	"cargado": {
		title: "Conductor cargado",
		body:  "Conductor {{numeroConductor}} cargado a las {{hora}}",
	},
	"descargado": {
		title: "Conductor descargado",
		body:  "Conductor {{numeroConductor}} descargado a las {{hora}}",
	},
}

var unknownState = stateText{
	title: "Estado desconocido",
	body:  "Conductor {{numeroConductor}} tiene un estado desconocido a las {{hora}}",
}

// Used by the lenient policy when the driver sends no state at all.
var waitingSince = stateText{
	title: "Conductor en espera",
	body:  "El conductor {{numeroConductor}} está esperando desde las {{hora}}",
}

// textForState matches state case-insensitively; state must already be trimmed.
func textForState(state string) stateText {
	if text, ok := stateTexts[strings.ToLower(state)]; ok {
		return text
	}
	return unknownState
}

// RenderTemplate replaces {{name}} placeholders with vars[name]. Unknown
// names stay in place and substituted values are never rescanned.
func RenderTemplate(tmpl string, vars map[string]string) string {
	if tmpl == "" || len(vars) == 0 {
		return tmpl
	}
	matches := placeholder.FindAllStringSubmatchIndex(tmpl, -1)
	if len(matches) == 0 {
		return tmpl
	}

	var b strings.Builder
	b.Grow(len(tmpl))
	last := 0
	for _, m := range matches {
		value, ok := vars[tmpl[m[2]:m[3]]]
		if !ok {
			continue
		}
		b.WriteString(tmpl[last:m[0]])
		b.WriteString(value)
		last = m[1]
	}
	b.WriteString(tmpl[last:])
	return b.String()
}
