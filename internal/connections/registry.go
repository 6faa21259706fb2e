package connections

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/xeipuuv/gojsonschema"

	"github.com/WarPigBRZ/BelugaDB/internal/model"
)

// connectionsSchema is checked before any field of connections.json is
// trusted; the file is hand-editable.
const connectionsSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "array",
  "items": {
    "type": "object",
    "required": ["id", "name", "host", "port", "user"],
    "properties": {
      "id":       {"type": "string", "minLength": 1},
      "name":     {"type": "string", "minLength": 1},
      "host":     {"type": "string", "minLength": 1},
      "port":     {"type": "string", "minLength": 1},
      "user":     {"type": "string"},
      "pass":     {"type": "string"},
      "savePass": {"type": "boolean"}
    },
    "additionalProperties": false
  }
}`

// Registry persists named server connections and per-connection target
// selections under one directory.
type Registry struct {
	dir string
}

// NewRegistry creates a registry rooted at dir; files appear on first write
func NewRegistry(dir string) *Registry {
	return &Registry{dir: dir}
}

func (r *Registry) path() string {
	return filepath.Join(r.dir, "connections.json")
}

// Load reads every stored connection. A missing file is an empty registry.
func (r *Registry) Load() ([]model.Connection, error) {
	data, err := os.ReadFile(r.path())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read connections: %w", err)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(connectionsSchema),
		gojsonschema.NewBytesLoader(data),
	)
	if err != nil {
		return nil, fmt.Errorf("validate connections: %w", err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			msgs = append(msgs, desc.String())
		}
		return nil, fmt.Errorf("%s: %s", r.path(), strings.Join(msgs, "; "))
	}

	var conns []model.Connection
	if err := json.Unmarshal(data, &conns); err != nil {
		return nil, fmt.Errorf("parse connections: %w", err)
	}
	return conns, nil
}

// List returns the stored connections sorted by name
func (r *Registry) List() ([]model.Connection, error) {
	conns, err := r.Load()
	if err != nil {
		return nil, err
	}
	sort.Slice(conns, func(i, j int) bool { return conns[i].Name < conns[j].Name })
	return conns, nil
}

// Get retrieves one connection by name
func (r *Registry) Get(name string) (*model.Connection, error) {
	conns, err := r.Load()
	if err != nil {
		return nil, err
	}
	for _, c := range conns {
		if c.Name == name {
			return &c, nil
		}
	}
	return nil, fmt.Errorf("connection %q not found", name)
}

// Add stores a new connection, assigning its ID. Names are unique. When
// SavePass is false the password is blanked before it touches disk.
func (r *Registry) Add(conn model.Connection) (*model.Connection, error) {
	if strings.TrimSpace(conn.Name) == "" {
		return nil, fmt.Errorf("connection name is empty")
	}
	conns, err := r.Load()
	if err != nil {
		return nil, err
	}
	for _, c := range conns {
		if c.Name == conn.Name {
			return nil, fmt.Errorf("connection %q already exists", conn.Name)
		}
	}

	conn.ID = uuid.NewString()
	if !conn.SavePass {
		conn.Pass = ""
	}
	conns = append(conns, conn)
	if err := r.save(conns); err != nil {
		return nil, err
	}
	return &conn, nil
}

// Remove deletes a connection by name
func (r *Registry) Remove(name string) error {
	conns, err := r.Load()
	if err != nil {
		return err
	}
	kept := conns[:0]
	for _, c := range conns {
		if c.Name != name {
			kept = append(kept, c)
		}
	}
	if len(kept) == len(conns) {
		return fmt.Errorf("connection %q not found", name)
	}
	return r.save(kept)
}

func (r *Registry) save(conns []model.Connection) error {
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}
	if conns == nil {
		conns = []model.Connection{}
	}
	data, err := json.MarshalIndent(conns, "", "  ")
	if err != nil {
		return fmt.Errorf("encode connections: %w", err)
	}
	// 0600: the file may hold passwords
	if err := os.WriteFile(r.path(), append(data, '\n'), 0o600); err != nil {
		return fmt.Errorf("write connections: %w", err)
	}
	return nil
}
