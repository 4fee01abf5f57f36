package model

import "reflect"

// CredentialSubject holds the claims a credential makes about its subject.
type CredentialSubject struct {
	id         string
	properties map[string]interface{}
}

// NewCredentialSubject validates id (optional) and copies the claim
// properties. A nil properties map is treated as empty.
func NewCredentialSubject(id string, properties map[string]interface{}) (*CredentialSubject, error) {
	if err := optionalURI("credentialSubject.id", id); err != nil {
		return nil, err
	}
	if _, reserved := properties["id"]; reserved {
		return nil, Validation("credentialSubject", "property name %q is reserved", "id")
	}
	props, err := normalizeObject("credentialSubject", properties)
	if err != nil {
		return nil, err
	}
	return &CredentialSubject{id: id, properties: props}, nil
}

func (s *CredentialSubject) ID() string { return s.id }

// Properties returns a copy of the claims.
func (s *CredentialSubject) Properties() map[string]interface{} {
	return copyObject(s.properties)
}

// Property returns a copy of a single claim.
func (s *CredentialSubject) Property(name string) (interface{}, bool) {
	v, ok := s.properties[name]
	if !ok {
		return nil, false
	}
	return deepCopy(v), true
}

// Document returns the subject in its JSON-LD form.
func (s *CredentialSubject) Document() map[string]interface{} {
	doc := copyObject(s.properties)
	if s.id != "" {
		doc["id"] = s.id
	}
	return doc
}

func (s *CredentialSubject) Equal(other *CredentialSubject) bool {
	if s == nil || other == nil {
		return s == other
	}
	return s.id == other.id && reflect.DeepEqual(s.properties, other.properties)
}

func subjectFromDocument(doc map[string]interface{}) (*CredentialSubject, error) {
	props := make(map[string]interface{}, len(doc))
	var id string
	for k, v := range doc {
		if k == "id" {
			s, ok := v.(string)
			if !ok {
				return nil, Format("credentialSubject.id", "must be a string, got %T", v)
			}
			id = s
			continue
		}
		props[k] = v
	}
	return NewCredentialSubject(id, props)
}
