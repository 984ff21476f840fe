package domain

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// CredentialFields maps credential field names to their values for one provider.
// Values only ever live in memory for the lifetime of a session.
type CredentialFields map[string]string

// Clone returns an independent copy.
func (c CredentialFields) Clone() CredentialFields {
	if c == nil {
		return nil
	}
	out := make(CredentialFields, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// Redacted returns a copy safe for display. Fields typed secret in the
// schema, and any field the schema does not know, are masked.
func (c CredentialFields) Redacted(schema []CredentialField) CredentialFields {
	types := make(map[string]CredentialFieldType, len(schema))
	for _, f := range schema {
		types[f.Name] = f.Type
	}
	out := make(CredentialFields, len(c))
	for k, v := range c {
		if t, ok := types[k]; ok && t != FieldSecret {
			out[k] = v
			continue
		}
		out[k] = redactedMarker
	}
	return out
}

// SecretValues returns the non-empty values, for scrubbing error text.
func (c CredentialFields) SecretValues() []string {
	values := make([]string, 0, len(c))
	for _, v := range c {
		if v != "" {
			values = append(values, v)
		}
	}
	return values
}

// Fingerprint returns a stable keyed hash of the credential set. The salt is
// per session, so equal credentials in different sessions never collide and
// the fingerprint cannot be reversed into a value.
func (c CredentialFields) Fingerprint(salt []byte) string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	mac := hmac.New(sha256.New, salt)
	for _, k := range keys {
		mac.Write([]byte(k))
		mac.Write([]byte{0})
		mac.Write([]byte(c[k]))
		mac.Write([]byte{0})
	}
	return hex.EncodeToString(mac.Sum(nil)[:16])
}

// ValidateCredentials checks values against a provider's credential schema.
// A missing or blank required field, or a malformed url field, fails with
// ErrValidation. Unknown extra fields are accepted.
func ValidateCredentials(provider string, schema []CredentialField, values CredentialFields) error {
	for _, f := range schema {
		v := strings.TrimSpace(values[f.Name])
		if v == "" {
			if f.Required {
				return NewOpError(ErrValidation, "validate credentials", provider, "",
					fmt.Errorf("missing required field %q", f.Name))
			}
			continue
		}
		if f.Type == FieldURL {
			u, err := url.Parse(v)
			if err != nil || u.Scheme == "" || u.Host == "" {
				return NewOpError(ErrValidation, "validate credentials", provider, "",
					fmt.Errorf("field %q is not an absolute URL", f.Name))
			}
		}
	}
	return nil
}
