// Package artifact writes fitted classifiers to disk and reads them back.
package artifact

import (
	"bytes"
	"encoding"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/danielpatrickdp/lendingclub-trainer/internal/model"
)

// #region types
// Artifact is a fitted classifier with the settings it was built from.
type Artifact struct {
	Family string
	Name   string
	// Params are the hyperparameters as JSON.
	Params    json.RawMessage
	Model     model.Classifier
	CreatedAt time.Time
}

// envelope is the gob form of an Artifact.
type envelope struct {
	Family    string
	Name      string
	Params    []byte
	Model     []byte
	CreatedAt time.Time
}

// #endregion types

// New bundles a fitted classifier with its family and hyperparameters.
func New(family, name string, params any, m model.Classifier) (Artifact, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return Artifact{}, fmt.Errorf("marshal params: %w", err)
	}
	return Artifact{
		Family:    family,
		Name:      name,
		Params:    raw,
		Model:     m,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// ResolvePath joins the project directory and the model name. An empty
// directory leaves the name relative to the working directory.
func ResolvePath(projectDir, name string) string {
	if projectDir == "" {
		return name
	}
	return filepath.Join(projectDir, name)
}

// #region save
// Save writes the artifact to path through a temporary file in the same
// directory, so a failed save never leaves a partial file behind.
func Save(path string, a Artifact) error {
	m, ok := a.Model.(encoding.BinaryMarshaler)
	if !ok {
		return fmt.Errorf("save %s: %T cannot be serialized", path, a.Model)
	}
	blob, err := m.MarshalBinary()
	if err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}

	var buf bytes.Buffer
	env := envelope{
		Family:    a.Family,
		Name:      a.Name,
		Params:    a.Params,
		Model:     blob,
		CreatedAt: a.CreatedAt,
	}
	if err := gob.NewEncoder(&buf).Encode(env); err != nil {
		return fmt.Errorf("save %s: encode: %w", path, err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("save %s: write: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("save %s: sync: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("save %s: close: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("save %s: rename: %w", path, err)
	}
	return nil
}

// #endregion save

// #region load
// Load reads an artifact written by Save and restores its classifier.
func Load(path string) (Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Artifact{}, fmt.Errorf("load %s: %w", path, err)
	}
	var env envelope
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&env); err != nil {
		return Artifact{}, fmt.Errorf("load %s: decode: %w", path, err)
	}
	m, err := model.Decode(env.Family, env.Model)
	if err != nil {
		return Artifact{}, fmt.Errorf("load %s: %w", path, err)
	}
	return Artifact{
		Family:    env.Family,
		Name:      env.Name,
		Params:    env.Params,
		Model:     m,
		CreatedAt: env.CreatedAt,
	}, nil
}

// #endregion load

// FileStore saves artifacts on the local filesystem.
type FileStore struct{}

// Save writes a to path.
func (FileStore) Save(path string, a Artifact) error { return Save(path, a) }
