package models

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stateKey reduce una etiqueta de estado a una clave comparable:
// sin tildes, minúsculas y con "_" como único separador.
// "Completado con Advertencias", "completado_con_advertencias" y
// "COMPLETADO-CON-ADVERTENCIAS" producen la misma clave.
func stateKey(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	plain, _, err := transform.String(t, s)
	if err != nil {
		plain = s
	}
	plain = strings.ToLower(strings.TrimSpace(plain))

	fields := strings.FieldsFunc(plain, func(r rune) bool {
		return r == ' ' || r == '_' || r == '-'
	})
	return strings.Join(fields, "_")
}
