package services

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/yungbote/politicas-backend/internal/modules/rut"
)

const (
	minPasswordLen = 8
	// bcrypt ignores everything past 72 bytes.
	maxPasswordBytes = 72
)

// passwordCost is lowered by tests.
var passwordCost = bcrypt.DefaultCost

var validate = validator.New()

func hashPassword(plain string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(plain), passwordCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

func checkPassword(hash, plain string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

// fieldErrors collects per-field messages in Spanish, as the client shows them verbatim.
type fieldErrors map[string]string

func (f fieldErrors) email(key, v string) {
	if v == "" {
		f[key] = "El correo es obligatorio"
		return
	}
	// A bare host such as "ana@localhost" passes the tag but cannot receive mail here.
	if validate.Var(v, "email") != nil || !strings.Contains(v[strings.LastIndex(v, "@")+1:], ".") {
		f[key] = "El correo no es válido"
	}
}

func (f fieldErrors) password(key, v string) {
	switch {
	case utf8.RuneCountInString(v) < minPasswordLen:
		f[key] = "La contraseña debe tener al menos 8 caracteres"
	case len(v) > maxPasswordBytes:
		f[key] = "La contraseña es demasiado larga"
	}
}

func (f fieldErrors) required(key, v, msg string) {
	if strings.TrimSpace(v) == "" {
		f[key] = msg
	}
}

func (f fieldErrors) maxLen(key, v string, n int) {
	if utf8.RuneCountInString(v) > n {
		f[key] = "Máximo " + strconv.Itoa(n) + " caracteres"
	}
}

// rut validates an optional RUT and returns its canonical form.
func (f fieldErrors) rut(key, v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return ""
	}
	if !rut.Validate(v) {
		f[key] = "El RUT no es válido"
		return v
	}
	return rut.Format(v)
}

func (f fieldErrors) empty() bool { return len(f) == 0 }
