// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 campusid Contributors

package identity

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/oklog/ulid/v2"
	jschema "github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/samber/oops"
)

// accountRecord is the JSON layout of one element of the accounts snapshot.
type accountRecord struct {
	ID        string          `json:"id" jsonschema:"pattern=^[0-9A-HJKMNP-TV-Z]{26}$"`
	Email     string          `json:"email" jsonschema:"minLength=3"`
	Secret    string          `json:"secret" jsonschema:"minLength=1"`
	Role      Role            `json:"role" jsonschema:"enum=student,enum=faculty"`
	Profile   Profile         `json:"profile"`
	Student   *StudentDetails `json:"student,omitempty"`
	Faculty   *FacultyDetails `json:"faculty,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// sessionRecord is the JSON layout of the session snapshot. It has no
// secret field, and the schema rejects one if present.
type sessionRecord struct {
	ID        string          `json:"id" jsonschema:"pattern=^[0-9A-HJKMNP-TV-Z]{26}$"`
	Email     string          `json:"email" jsonschema:"minLength=3"`
	Role      Role            `json:"role" jsonschema:"enum=student,enum=faculty"`
	Profile   Profile         `json:"profile"`
	Student   *StudentDetails `json:"student,omitempty"`
	Faculty   *FacultyDetails `json:"faculty,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func splitDetails(d RoleDetails) (*StudentDetails, *FacultyDetails) {
	switch v := d.(type) {
	case *StudentDetails:
		return v, nil
	case *FacultyDetails:
		return nil, v
	}
	return nil, nil
}

func joinDetails(role Role, s *StudentDetails, f *FacultyDetails) (RoleDetails, error) {
	switch {
	case role == RoleStudent && s != nil && f == nil:
		return s, nil
	case role == RoleFaculty && f != nil && s == nil:
		return f, nil
	}
	return nil, oops.With("role", role).Errorf("role details do not match role")
}

func encodeAccounts(accounts []*Account) ([]byte, error) {
	records := make([]accountRecord, len(accounts))
	for i, a := range accounts {
		s, f := splitDetails(a.Details)
		records[i] = accountRecord{
			ID:        a.ID.String(),
			Email:     a.Email,
			Secret:    a.Secret,
			Role:      a.Role,
			Profile:   a.Profile,
			Student:   s,
			Faculty:   f,
			CreatedAt: a.CreatedAt,
			UpdatedAt: a.UpdatedAt,
		}
	}
	return json.Marshal(records)
}

// decodeAccounts parses and validates the accounts snapshot. Any malformed
// element fails the whole decode with ErrCorruptSnapshot.
func decodeAccounts(data []byte) ([]*Account, error) {
	accountSchema, _, err := compileSchemas()
	if err != nil {
		return nil, oops.Code(CodeCorruptSnapshot).Wrap(err)
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, corruptSnapshot("accounts", err)
	}

	accounts := make([]*Account, 0, len(raw))
	for i, elem := range raw {
		if err := validateAgainst(accountSchema, elem); err != nil {
			return nil, corruptSnapshot("accounts", err, "index", i)
		}
		var rec accountRecord
		if err := json.Unmarshal(elem, &rec); err != nil {
			return nil, corruptSnapshot("accounts", err, "index", i)
		}
		id, err := ulid.ParseStrict(rec.ID)
		if err != nil {
			return nil, corruptSnapshot("accounts", err, "index", i)
		}
		details, err := joinDetails(rec.Role, rec.Student, rec.Faculty)
		if err != nil {
			return nil, corruptSnapshot("accounts", err, "index", i)
		}
		a := &Account{
			ID:        id,
			Email:     rec.Email,
			Secret:    rec.Secret,
			Role:      rec.Role,
			Profile:   rec.Profile,
			Details:   details,
			CreatedAt: rec.CreatedAt,
			UpdatedAt: rec.UpdatedAt,
		}
		if err := a.Validate(); err != nil {
			return nil, corruptSnapshot("accounts", err, "index", i)
		}
		accounts = append(accounts, a)
	}
	return accounts, nil
}

// EncodeSession serializes s in the session snapshot layout.
func EncodeSession(s *Session) ([]byte, error) {
	st, f := splitDetails(s.Details)
	return json.Marshal(sessionRecord{
		ID:        s.AccountID.String(),
		Email:     s.Email,
		Role:      s.Role,
		Profile:   s.Profile,
		Student:   st,
		Faculty:   f,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	})
}

// DecodeSession parses a session snapshot. The blob is checked for shape
// only; it is not re-validated against the account store.
func DecodeSession(data []byte) (*Session, error) {
	_, sessionSchema, err := compileSchemas()
	if err != nil {
		return nil, oops.Code(CodeCorruptSnapshot).Wrap(err)
	}
	if err := validateAgainst(sessionSchema, data); err != nil {
		return nil, corruptSnapshot("session", err)
	}

	var rec sessionRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, corruptSnapshot("session", err)
	}
	id, err := ulid.ParseStrict(rec.ID)
	if err != nil {
		return nil, corruptSnapshot("session", err)
	}
	details, err := joinDetails(rec.Role, rec.Student, rec.Faculty)
	if err != nil {
		return nil, corruptSnapshot("session", err)
	}
	return &Session{
		AccountID: id,
		Email:     rec.Email,
		Role:      rec.Role,
		Profile:   rec.Profile,
		Details:   details,
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
	}, nil
}

func validateAgainst(sch *jschema.Schema, data []byte) error {
	doc, err := jschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return err
	}
	return sch.Validate(doc)
}

func corruptSnapshot(snapshot string, cause error, kv ...any) error {
	b := oops.Code(CodeCorruptSnapshot).
		With("snapshot", snapshot).
		With("cause", cause.Error())
	if len(kv) > 0 {
		b = b.With(kv...)
	}
	return b.Wrap(ErrCorruptSnapshot)
}
