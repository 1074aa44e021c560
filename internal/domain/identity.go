// Package domain contains entity without logic, just meta-data
package domain

const MaxRoomKeyLen = 36

type IdentityID string

// Identity is the external principal resolved from a credential token at
// connect time. The service never mutates it.
type Identity struct {
	ID   IdentityID `json:"id"`
	Name string     `json:"name"`
}

// Anonymous reports whether the identity is the zero value, i.e. the token
// resolver found no principal behind the credential.
func (i Identity) Anonymous() bool {
	return i.ID == ""
}
