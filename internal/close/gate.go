// Package close implements the month-end close review: readiness checks,
// the VAT position, the close report and its exports, and the access gate
// protecting them.
package close

import (
	"crypto/subtle"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/lab-group/labdash/internal/shared"
)

// Gate guards the close review behind a shared password. When no password
// is configured the gate stays closed but reports itself unconfigured, so
// the rest of the dashboard keeps working and the close page can explain
// how to finish setup.
type Gate struct {
	secret string
}

func NewGate(secret string) *Gate {
	return &Gate{secret: strings.TrimSpace(secret)}
}

// Configured reports whether a close password has been set.
func (g *Gate) Configured() bool {
	return g.secret != ""
}

// Verify checks the supplied password. The configured secret may be either
// a bcrypt hash or a plain value; hashes are recognised by their prefix.
func (g *Gate) Verify(password string) error {
	if !g.Configured() {
		return shared.ErrGateNotConfigured
	}
	if strings.HasPrefix(g.secret, "$2") {
		if err := bcrypt.CompareHashAndPassword([]byte(g.secret), []byte(password)); err != nil {
			return shared.ErrInvalidCredentials
		}
		return nil
	}
	if subtle.ConstantTimeCompare([]byte(g.secret), []byte(password)) != 1 {
		return shared.ErrInvalidCredentials
	}
	return nil
}

// SetupInstructions explains how to enable the close review when no
// password is configured yet.
func SetupInstructions() []string {
	return []string{
		"Zet de omgevingsvariabele FINANCIAL_CLOSE_PASSWORD op de server.",
		"Een bcrypt-hash ($2a$...) wordt aanbevolen; een platte waarde werkt ook.",
		"Herstart de dienst zodat de nieuwe configuratie geladen wordt.",
		"De overige dashboardpagina's blijven zonder wachtwoord bereikbaar.",
	}
}
