package braindrive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/braindrive/docchat/internal/chat"
)

const (
	modelsPath   = "/api/v1/ai/providers/all-models"
	personasPath = "/api/v1/personas"
)

// envelopeShape names how a list response was wrapped.
type envelopeShape int

const (
	shapeBare envelopeShape = iota
	shapeKeyed
	shapeNested
)

func (s envelopeShape) String() string {
	switch s {
	case shapeKeyed:
		return "keyed"
	case shapeNested:
		return "nested"
	}
	return "bare"
}

// listEnvelope is a list response decoded once at the boundary. The backend
// returns `[...]`, `{"<key>": [...]}` or `{"data": {"<key>": [...]}}`.
type listEnvelope[T any] struct {
	Shape envelopeShape
	Items []T
}

func decodeEnvelope[T any](data []byte, key string) (listEnvelope[T], error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return listEnvelope[T]{}, fmt.Errorf("empty %s response", key)
	}

	if data[0] == '[' {
		var items []T
		if err := json.Unmarshal(data, &items); err != nil {
			return listEnvelope[T]{}, fmt.Errorf("decode %s: %w", key, err)
		}
		return listEnvelope[T]{Shape: shapeBare, Items: items}, nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return listEnvelope[T]{}, fmt.Errorf("decode %s: %w", key, err)
	}
	if raw, ok := obj[key]; ok {
		var items []T
		if err := json.Unmarshal(raw, &items); err != nil {
			return listEnvelope[T]{}, fmt.Errorf("decode %s: %w", key, err)
		}
		return listEnvelope[T]{Shape: shapeKeyed, Items: items}, nil
	}
	if raw, ok := obj["data"]; ok {
		var inner map[string]json.RawMessage
		if err := json.Unmarshal(raw, &inner); err == nil {
			if rawItems, ok := inner[key]; ok {
				var items []T
				if err := json.Unmarshal(rawItems, &items); err != nil {
					return listEnvelope[T]{}, fmt.Errorf("decode %s: %w", key, err)
				}
				return listEnvelope[T]{Shape: shapeNested, Items: items}, nil
			}
		}
	}
	return listEnvelope[T]{}, fmt.Errorf("unrecognized %s response", key)
}

// wireModel is a model entry as the backend sends it.
type wireModel struct {
	Provider   string `json:"provider"`
	ProviderID string `json:"providerId"`
	ServerID   string `json:"serverId"`
	ServerName string `json:"serverName"`
	Name       string `json:"name"`
}

func (w wireModel) model() chat.Model {
	provider := w.Provider
	if provider == "" {
		provider = w.ProviderID
	}
	return chat.Model{Provider: provider, ServerID: w.ServerID, ServerName: w.ServerName, Name: w.Name}
}

// ListModels returns the models of every configured provider, sorted by key.
func (c *Client) ListModels(ctx context.Context) ([]chat.Model, error) {
	var raw json.RawMessage
	if err := c.getJSON(ctx, modelsPath, &raw); err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}
	env, err := decodeEnvelope[wireModel](raw, "models")
	if err != nil {
		return nil, err
	}
	c.log.Debug("models response shape: %s (%d entries)", env.Shape, len(env.Items))

	models := make([]chat.Model, 0, len(env.Items))
	for _, w := range env.Items {
		if w.Name == "" {
			continue
		}
		models = append(models, w.model())
	}
	sort.Slice(models, func(i, j int) bool { return models[i].Key() < models[j].Key() })
	return models, nil
}

// ListPersonas returns the personas available to the user.
func (c *Client) ListPersonas(ctx context.Context) ([]chat.Persona, error) {
	var raw json.RawMessage
	if err := c.getJSON(ctx, personasPath, &raw); err != nil {
		return nil, fmt.Errorf("list personas: %w", err)
	}
	env, err := decodeEnvelope[chat.Persona](raw, "personas")
	if err != nil {
		return nil, err
	}
	return env.Items, nil
}

// FindModel resolves a model key, or a bare model name, against models.
func FindModel(models []chat.Model, key string) (chat.Model, bool) {
	for _, m := range models {
		if m.Key() == key {
			return m, true
		}
	}
	for _, m := range models {
		if m.Name == key {
			return m, true
		}
	}
	return chat.Model{}, false
}

// FindPersona resolves a persona by id or name.
func FindPersona(personas []chat.Persona, ref string) (chat.Persona, bool) {
	for _, p := range personas {
		if p.ID == ref || p.Name == ref {
			return p, true
		}
	}
	return chat.Persona{}, false
}
