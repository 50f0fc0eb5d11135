// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 campusid Contributors

package identity

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/invopop/jsonschema"
	jschema "github.com/santhosh-tekuri/jsonschema/v6"
)

// Schema names accepted by GenerateSchema.
const (
	SchemaAccount = "account"
	SchemaSession = "session"
)

var (
	compiledOnce    sync.Once
	compiledAccount *jschema.Schema
	compiledSession *jschema.Schema
	compiledErr     error
)

// GenerateSchema returns the JSON Schema of a snapshot record.
func GenerateSchema(name string) ([]byte, error) {
	var (
		target any
		title  string
	)
	switch name {
	case SchemaAccount:
		target, title = &accountRecord{}, "campusid account record"
	case SchemaSession:
		target, title = &sessionRecord{}, "campusid session record"
	default:
		return nil, fmt.Errorf("unknown schema %q", name)
	}

	r := jsonschema.Reflector{
		DoNotReference: true,
		Anonymous:      true,
	}
	schema := r.Reflect(target)
	schema.Title = title

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}
	return data, nil
}

func compileSchemas() (account, session *jschema.Schema, err error) {
	compiledOnce.Do(func() {
		compiledAccount, compiledErr = compileSchema(SchemaAccount)
		if compiledErr != nil {
			return
		}
		compiledSession, compiledErr = compileSchema(SchemaSession)
	})
	return compiledAccount, compiledSession, compiledErr
}

func compileSchema(name string) (*jschema.Schema, error) {
	raw, err := GenerateSchema(name)
	if err != nil {
		return nil, err
	}
	doc, err := jschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s schema: %w", name, err)
	}

	c := jschema.NewCompiler()
	url := name + ".schema.json"
	if err := c.AddResource(url, doc); err != nil {
		return nil, fmt.Errorf("failed to add %s schema resource: %w", name, err)
	}
	sch, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("failed to compile %s schema: %w", name, err)
	}
	return sch, nil
}
