package model

import (
	"strconv"

	"github.com/mitchellh/mapstructure"
	"golang.org/x/exp/slices"
)

// Credential status entry types.
const (
	StatusList2021Entry      = "StatusList2021Entry"
	RevocationList2021Status = "RevocationList2021Status"
	RevocationList2020Status = "RevocationList2020Status"
)

// Status purposes.
const (
	StatusPurposeRevocation = "revocation"
	StatusPurposeSuspension = "suspension"
)

var statusTypes = []string{StatusList2021Entry, RevocationList2021Status, RevocationList2020Status}

// CredentialStatusParams carries the fields of a CredentialStatus.
type CredentialStatusParams struct {
	ID                   string
	Type                 string
	StatusPurpose        string
	StatusListIndex      int
	StatusListCredential string
}

// CredentialStatus is the credentialStatus entry pointing a credential at
// its bit in a status list.
type CredentialStatus struct {
	id                   string
	typ                  string
	statusPurpose        string
	statusListIndex      int
	statusListCredential string
}

// NewCredentialStatus validates params. The revocation list types imply the
// revocation purpose when none is given.
func NewCredentialStatus(p CredentialStatusParams) (*CredentialStatus, error) {
	if err := requireURI("credentialStatus.id", p.ID); err != nil {
		return nil, err
	}
	if err := requireNonBlank("credentialStatus.type", p.Type); err != nil {
		return nil, err
	}
	if !slices.Contains(statusTypes, p.Type) {
		return nil, Validation("credentialStatus.type", "unsupported status type %q", p.Type)
	}
	purpose := p.StatusPurpose
	if purpose == "" && p.Type != StatusList2021Entry {
		purpose = StatusPurposeRevocation
	}
	if purpose != StatusPurposeRevocation && purpose != StatusPurposeSuspension {
		return nil, Validation("credentialStatus.statusPurpose", "unsupported status purpose %q", p.StatusPurpose)
	}
	if p.StatusListIndex < 0 {
		return nil, Validation("credentialStatus.statusListIndex", "must not be negative")
	}
	if err := requireURI("credentialStatus.statusListCredential", p.StatusListCredential); err != nil {
		return nil, err
	}
	return &CredentialStatus{
		id:                   p.ID,
		typ:                  p.Type,
		statusPurpose:        purpose,
		statusListIndex:      p.StatusListIndex,
		statusListCredential: p.StatusListCredential,
	}, nil
}

func (s *CredentialStatus) ID() string                   { return s.id }
func (s *CredentialStatus) Type() string                 { return s.typ }
func (s *CredentialStatus) StatusPurpose() string        { return s.statusPurpose }
func (s *CredentialStatus) StatusListIndex() int         { return s.statusListIndex }
func (s *CredentialStatus) StatusListCredential() string { return s.statusListCredential }

// Document returns the entry in its JSON-LD form. The index is written as a
// string.
func (s *CredentialStatus) Document() map[string]interface{} {
	doc := map[string]interface{}{
		"id":   s.id,
		"type": s.typ,
	}
	index := strconv.Itoa(s.statusListIndex)
	if s.typ == RevocationList2020Status {
		doc["revocationListIndex"] = index
		doc["revocationListCredential"] = s.statusListCredential
		return doc
	}
	doc["statusPurpose"] = s.statusPurpose
	doc["statusListIndex"] = index
	doc["statusListCredential"] = s.statusListCredential
	return doc
}

func (s *CredentialStatus) Equal(other *CredentialStatus) bool {
	if s == nil || other == nil {
		return s == other
	}
	return *s == *other
}

type rawStatus struct {
	ID                       string `mapstructure:"id"`
	Type                     string `mapstructure:"type"`
	StatusPurpose            string `mapstructure:"statusPurpose"`
	StatusListIndex          *int   `mapstructure:"statusListIndex"`
	StatusListCredential     string `mapstructure:"statusListCredential"`
	RevocationListIndex      *int   `mapstructure:"revocationListIndex"`
	RevocationListCredential string `mapstructure:"revocationListCredential"`
}

func statusFromDocument(doc map[string]interface{}) (*CredentialStatus, error) {
	var raw rawStatus
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &raw,
	})
	if err != nil {
		return nil, Format("credentialStatus", "failed to create decoder: %v", err)
	}
	if err := decoder.Decode(doc); err != nil {
		return nil, &Error{Kind: KindFormat, Field: "credentialStatus", Err: err}
	}

	params := CredentialStatusParams{
		ID:                   raw.ID,
		Type:                 raw.Type,
		StatusPurpose:        raw.StatusPurpose,
		StatusListCredential: raw.StatusListCredential,
	}
	index := raw.StatusListIndex
	if raw.Type == RevocationList2020Status {
		index = raw.RevocationListIndex
		params.StatusListCredential = raw.RevocationListCredential
	}
	if index == nil {
		return nil, Validation("credentialStatus.statusListIndex", "is required")
	}
	params.StatusListIndex = *index
	return NewCredentialStatus(params)
}

// Status is the verdict of a status-list lookup.
type Status int

const (
	StatusUnknown Status = iota
	StatusActive
	StatusRevoked
	StatusSuspended
)

func (s Status) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusRevoked:
		return "revoked"
	case StatusSuspended:
		return "suspended"
	default:
		return "unknown"
	}
}
