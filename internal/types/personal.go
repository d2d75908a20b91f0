// Package types provides type definitions for the CV record shared by the store, renderer and persistence layers.
//
//nolint:revive // types is a standard Go package name pattern
package types

// Personal field keys. Every key is substituted into the document preamble.
const (
	FieldNameFirst = "name_first"
	FieldNameLast  = "name_last"
	FieldTitle     = "title"
	FieldAddress   = "address"
	FieldPhone     = "phone"
	FieldEmail     = "email"
	FieldHomepage  = "homepage"
	FieldLinkedIn  = "linkedin"
	FieldGitHub    = "github"
)

// PersonalKeys lists the personal field keys in display order
var PersonalKeys = []string{
	FieldNameFirst,
	FieldNameLast,
	FieldTitle,
	FieldAddress,
	FieldPhone,
	FieldEmail,
	FieldHomepage,
	FieldLinkedIn,
	FieldGitHub,
}

// PersonalLabels maps each personal key to its form label
var PersonalLabels = map[string]string{
	FieldNameFirst: "First Name",
	FieldNameLast:  "Last Name",
	FieldTitle:     "Professional Title",
	FieldAddress:   "Address",
	FieldPhone:     "Phone",
	FieldEmail:     "Email",
	FieldHomepage:  "Homepage",
	FieldLinkedIn:  "LinkedIn",
	FieldGitHub:    "GitHub",
}

// PersonalInfo maps personal field keys to their values
type PersonalInfo map[string]string

// IsPersonalKey reports whether key is one of the fixed personal field keys
func IsPersonalKey(key string) bool {
	_, ok := PersonalLabels[key]
	return ok
}

// Clone returns an independent copy of the personal info
func (p PersonalInfo) Clone() PersonalInfo {
	if p == nil {
		return nil
	}
	out := make(PersonalInfo, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}
