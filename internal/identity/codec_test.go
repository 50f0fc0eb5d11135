// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 campusid Contributors

package identity_test

import (
	"encoding/json"
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campuslink/campusid/internal/identity"
	"github.com/campuslink/campusid/pkg/errutil"
)

func richFacultySession(t *testing.T) *identity.Session {
	t.Helper()
	data := facultyData("r@x.edu")
	data.Profile.MiddleName = "K"
	data.Profile.Projects = []identity.Project{{Title: "Query planner", Technologies: []string{"Go", "SQL"}}}
	data.Profile.Achievements = []identity.Achievement{{Title: "Best paper", Date: "2024-05-01"}}
	data.Faculty.ResearchProjects = []identity.ResearchProject{{Title: "Edge caching", Year: 2023}}
	a, err := identity.NewAccount(data, ulid.Make(), fixedNow)
	require.NoError(t, err)
	return a.Session()
}

func TestSessionRoundTrip(t *testing.T) {
	want := richFacultySession(t)

	s := want
	for i := 0; i < 5; i++ {
		data, err := identity.EncodeSession(s)
		require.NoError(t, err)
		s, err = identity.DecodeSession(data)
		require.NoError(t, err)
		assert.Equal(t, want, s, "round trip %d", i)
	}
}

func TestEncodeSession_HasNoSecret(t *testing.T) {
	a, err := identity.NewAccount(studentData("a@x.edu"), ulid.Make(), fixedNow)
	require.NoError(t, err)

	data, err := identity.EncodeSession(a.Session())
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(data, &fields))
	assert.NotContains(t, fields, "secret")
	assert.NotContains(t, string(data), "pw123456")
	assert.Contains(t, fields, "student")
	assert.NotContains(t, fields, "faculty")
}

func TestDecodeSession_Malformed(t *testing.T) {
	a, err := identity.NewAccount(studentData("a@x.edu"), ulid.Make(), fixedNow)
	require.NoError(t, err)
	good, err := identity.EncodeSession(a.Session())
	require.NoError(t, err)

	var base map[string]any
	require.NoError(t, json.Unmarshal(good, &base))

	mutate := func(fn func(map[string]any)) []byte {
		m := map[string]any{}
		raw, _ := json.Marshal(base)
		_ = json.Unmarshal(raw, &m)
		fn(m)
		out, _ := json.Marshal(m)
		return out
	}

	tests := map[string][]byte{
		"not json":          []byte(`{"id":`),
		"array":             []byte(`[]`),
		"bad id":            mutate(func(m map[string]any) { m["id"] = "nope" }),
		"unknown role":      mutate(func(m map[string]any) { m["role"] = "admin" }),
		"secret present":    mutate(func(m map[string]any) { m["secret"] = "pw123456" }),
		"missing profile":   mutate(func(m map[string]any) { delete(m, "profile") }),
		"details mismatch":  mutate(func(m map[string]any) { m["role"] = "faculty" }),
		"both details":      mutate(func(m map[string]any) { m["faculty"] = map[string]any{"employee_id": "E"} }),
		"wrong scalar type": mutate(func(m map[string]any) { m["email"] = 42 }),
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := identity.DecodeSession(data)
			require.Error(t, err)
			assert.ErrorIs(t, err, identity.ErrCorruptSnapshot)
			errutil.AssertErrorCode(t, err, identity.CodeCorruptSnapshot)
		})
	}
}

func TestGenerateSchema(t *testing.T) {
	for _, name := range []string{identity.SchemaAccount, identity.SchemaSession} {
		t.Run(name, func(t *testing.T) {
			data, err := identity.GenerateSchema(name)
			require.NoError(t, err)

			var doc map[string]any
			require.NoError(t, json.Unmarshal(data, &doc))
			props, ok := doc["properties"].(map[string]any)
			require.True(t, ok)
			assert.Contains(t, props, "email")
			assert.Contains(t, props, "student")
			_, hasSecret := props["secret"]
			assert.Equal(t, name == identity.SchemaAccount, hasSecret)
		})
	}

	_, err := identity.GenerateSchema("course")
	assert.Error(t, err)
}
