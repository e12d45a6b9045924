package middleware

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"net/http"

	"github.com/m1z23r/drift/pkg/drift"
)

const (
	CSRFCookie = "pk_csrf"
	CSRFField  = "csrf_token"
	CSRFHeader = "X-CSRF-Token"

	csrfKey        = "csrf_token"
	csrfTokenBytes = 32
)

// CSRF implements the double-submit cookie pattern for form posts. Safe
// methods get a token cookie; unsafe methods must echo it in the csrf_token
// form field or the X-CSRF-Token header.
func CSRF(secureCookies bool) drift.HandlerFunc {
	return func(c *drift.Context) {
		token := ""
		if cookie, err := c.Request.Cookie(CSRFCookie); err == nil {
			token = cookie.Value
		}

		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			if token == "" {
				token = generateToken()
				http.SetCookie(c.Response, &http.Cookie{
					Name:     CSRFCookie,
					Value:    token,
					Path:     "/",
					HttpOnly: false, // read by the page script for fetch calls
					Secure:   secureCookies,
					SameSite: http.SameSiteStrictMode,
				})
			}
		default:
			if !validCSRF(c.Request, token) {
				c.Forbidden("invalid csrf token")
				return
			}
		}

		c.Set(csrfKey, token)
		c.Next()
	}
}

// CSRFToken returns the token the current page must embed in its forms.
func CSRFToken(c *drift.Context) string {
	if v, ok := c.Get(csrfKey); ok {
		if token, ok := v.(string); ok {
			return token
		}
	}
	return ""
}

func validCSRF(r *http.Request, cookieToken string) bool {
	if cookieToken == "" {
		return false
	}

	token := r.Header.Get(CSRFHeader)
	if token == "" {
		token = r.FormValue(CSRFField)
	}

	return token != "" && subtle.ConstantTimeCompare([]byte(token), []byte(cookieToken)) == 1
}

func generateToken() string {
	b := make([]byte, csrfTokenBytes)
	if _, err := rand.Read(b); err != nil {
		panic("csrf: failed to generate random token: " + err.Error())
	}
	return hex.EncodeToString(b)
}
