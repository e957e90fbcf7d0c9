package services

import (
	"testing"
)

func TestFieldErrorsEmail(t *testing.T) {
	cases := map[string]string{
		"ana@example.cl":         "",
		"":                       "El correo es obligatorio",
		"ana":                    "El correo no es válido",
		"ana@localhost":          "El correo no es válido",
		"Ana <ana@example.cl>":   "El correo no es válido",
		"ana@@example.cl":        "El correo no es válido",
		"ana.perez+x@empresa.cl": "",
	}
	for in, want := range cases {
		fe := fieldErrors{}
		fe.email("email", in)
		if got := fe["email"]; got != want {
			t.Fatalf("email(%q)=%q want %q", in, got, want)
		}
	}
}
