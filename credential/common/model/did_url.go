package model

import (
	"regexp"
	"strings"
)

var (
	didMethodRegex = regexp.MustCompile(`^[a-z0-9]+$`)
	didIDRegex     = regexp.MustCompile(`^(?:[A-Za-z0-9._%-]*:)*[A-Za-z0-9._%-]+$`)
)

// DID is a parsed decentralized identifier of the form did:<method>:<id>.
type DID struct {
	Method string
	ID     string
}

func (d DID) String() string {
	return "did:" + d.Method + ":" + d.ID
}

// DIDURL is a DID with an optional path, query and fragment.
type DIDURL struct {
	DID
	Path     string
	Query    string
	Fragment string
}

func (u DIDURL) String() string {
	s := u.DID.String() + u.Path
	if u.Query != "" {
		s += "?" + u.Query
	}
	if u.Fragment != "" {
		s += "#" + u.Fragment
	}
	return s
}

// ParseDID parses a bare DID. Paths, queries and fragments are rejected.
func ParseDID(s string) (DID, error) {
	if strings.TrimSpace(s) == "" {
		return DID{}, Validation("did", "must not be blank")
	}
	rest, ok := strings.CutPrefix(s, "did:")
	if !ok {
		return DID{}, Validation("did", "%q must start with 'did:'", s)
	}
	method, id, ok := strings.Cut(rest, ":")
	if !ok || method == "" {
		return DID{}, Validation("did", "%q is missing a method", s)
	}
	if !didMethodRegex.MatchString(method) {
		return DID{}, Validation("did", "%q has an invalid method name", s)
	}
	if !didIDRegex.MatchString(id) {
		return DID{}, Validation("did", "%q has an invalid method-specific id", s)
	}
	return DID{Method: method, ID: id}, nil
}

// ParseDIDURL parses a DID URL such as did:example:123#key-1.
func ParseDIDURL(s string) (DIDURL, error) {
	var u DIDURL
	rest := s
	if before, frag, ok := strings.Cut(rest, "#"); ok {
		if frag == "" {
			return DIDURL{}, Validation("did url", "%q has an empty fragment", s)
		}
		rest, u.Fragment = before, frag
	}
	if before, query, ok := strings.Cut(rest, "?"); ok {
		rest, u.Query = before, query
	}
	if i := strings.Index(rest, "/"); i >= 0 {
		rest, u.Path = rest[:i], rest[i:]
	}
	did, err := ParseDID(rest)
	if err != nil {
		return DIDURL{}, err
	}
	u.DID = did
	return u, nil
}

// IsDID reports whether s parses as a bare DID.
func IsDID(s string) bool {
	_, err := ParseDID(s)
	return err == nil
}
