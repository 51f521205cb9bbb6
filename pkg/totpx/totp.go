// Package totpx wraps RFC 6238 time-based one-time passwords for the
// portal's two-factor flow: 6-digit codes, SHA1, 30 second steps, with a
// bounded skew window to forgive drifting phone clocks.
package totpx

import (
	"errors"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// ErrInvalidSecret reports a secret that does not decode as base32.
// This is a server-side data fault, never a user input problem.
var ErrInvalidSecret = errors.New("totpx: invalid secret")

// Digits is fixed at six. The portal's enrolment QR codes, the stored
// challenges, and every authenticator app agree on this.
const Digits = otp.DigitsSix

// Engine generates and verifies codes. The zero Period means 30 seconds;
// Skew is taken literally (0 = only the current time step is accepted).
type Engine struct {
	Issuer string // label for provisioning URLs, e.g. "Portal Ciudadano"
	Period uint   // time step in seconds
	Skew   uint   // steps accepted either side of now

	// Clock is overridable for tests. Nil means time.Now.
	Clock func() time.Time
}

// NewEngine returns the production configuration: 30s steps, one step of
// skew either side.
func NewEngine(issuer string) *Engine {
	return &Engine{Issuer: issuer, Period: 30, Skew: 1}
}

func (e *Engine) now() time.Time {
	if e.Clock != nil {
		return e.Clock()
	}
	return time.Now()
}

func (e *Engine) period() uint {
	if e.Period > 0 {
		return e.Period
	}
	return 30
}

func (e *Engine) opts() totp.ValidateOpts {
	return totp.ValidateOpts{
		Period:    e.period(),
		Skew:      e.Skew,
		Digits:    Digits,
		Algorithm: otp.AlgorithmSHA1,
	}
}

// Generate derives the code for the current time step. The result is
// always exactly six ASCII digits, leading zeros included.
func (e *Engine) Generate(secret string) (string, error) {
	code, err := totp.GenerateCodeCustom(secret, e.now(), e.opts())
	if err != nil {
		return "", mapSecretErr(err)
	}
	return code, nil
}

// Verify checks a submitted code against every counter in
// [now-skew, now+skew]. Wrong length or non-digit input is simply a
// mismatch, not an error. Single-use enforcement is the caller's job:
// the algorithm happily accepts the same code twice within a step.
func (e *Engine) Verify(secret, code string) (bool, error) {
	code = strings.TrimSpace(code)
	if len(code) != 6 || !isDigits(code) {
		return false, nil
	}

	ok, err := totp.ValidateCustom(code, secret, e.now(), e.opts())
	if err != nil {
		return false, mapSecretErr(err)
	}
	return ok, nil
}

// ProvisionedSecret is what 2FA enrolment hands to the citizen: the raw
// base32 secret and an otpauth:// URL for QR rendering.
type ProvisionedSecret struct {
	Secret string
	URL    string
}

// NewSecret generates a fresh shared secret for the account.
func (e *Engine) NewSecret(account string) (ProvisionedSecret, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      e.Issuer,
		AccountName: account,
		Period:      e.period(),
		Digits:      Digits,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return ProvisionedSecret{}, err
	}
	return ProvisionedSecret{Secret: key.Secret(), URL: key.URL()}, nil
}

func mapSecretErr(err error) error {
	if errors.Is(err, otp.ErrValidateSecretInvalidBase32) {
		return ErrInvalidSecret
	}
	return err
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
