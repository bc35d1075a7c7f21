package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Model management errors.
var (
	ErrLoadRejected   = errors.New("client: load rejected")
	ErrUnloadRejected = errors.New("client: unload rejected")
)

// ModelInfo describes a model available from the remote registry
type ModelInfo struct {
	ID          string   `json:"id"`
	Author      *string  `json:"author,omitempty"`
	Downloads   uint64   `json:"downloads"`
	Tags        []string `json:"tags"`
	PipelineTag *string  `json:"pipeline_tag,omitempty"`
	CreatedAt   string   `json:"created_at"`
	UpdatedAt   string   `json:"updated_at"`
}

// ModelList is the registry listing
type ModelList struct {
	Models  []ModelInfo `json:"models"`
	Total   *uint64     `json:"total,omitempty"`
	HasMore bool        `json:"has_more"`
}

// LocalModel describes a model already present on the server
type LocalModel struct {
	Filename     string         `json:"filename"`
	SizeBytes    uint64         `json:"size_bytes"`
	IsLoaded     bool           `json:"is_loaded"`
	LastModified time.Time      `json:"last_modified"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// LocalModelList is the listing of models on the server's disk
type LocalModelList struct {
	Models     []LocalModel `json:"models"`
	TotalCount uint64       `json:"total_count"`
}

// LoadRequest asks the server to load a model for inference
type LoadRequest struct {
	ModelID  string      `json:"model_id"`
	Filename *string     `json:"filename,omitempty"`
	Config   *LoadConfig `json:"config,omitempty"`
}

// LoadConfig tunes a load request
type LoadConfig struct {
	ForceReload bool `json:"force_reload"`
}

// LoadResponse is the server's answer to a load request
type LoadResponse struct {
	Success    bool    `json:"success"`
	ModelID    string  `json:"model_id"`
	InstanceID *string `json:"instance_id,omitempty"`
	Message    string  `json:"message"`
	DurationMs *uint64 `json:"duration_ms,omitempty"`
}

type unloadRequest struct {
	InstanceID string `json:"instance_id"`
}

// UnloadResponse is the server's answer to an unload request
type UnloadResponse struct {
	Success          bool   `json:"success"`
	ModelID          string `json:"model_id"`
	InstanceID       string `json:"instance_id"`
	Message          string `json:"message"`
	MemoryFreedBytes uint64 `json:"memory_freed_bytes"`
	DurationMs       uint64 `json:"duration_ms"`
}

// Models lists the models available from the remote registry.
func (c *Client) Models(ctx context.Context) (*ModelList, error) {
	var list ModelList
	if err := c.doJSON(ctx, http.MethodGet, "/v1/models", nil, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// LocalModels lists the models already downloaded to the server.
func (c *Client) LocalModels(ctx context.Context) (*LocalModelList, error) {
	var list LocalModelList
	if err := c.doJSON(ctx, http.MethodGet, "/v1/models/local", nil, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// Load asks the server to load a model. A response with success=false is
// returned as ErrLoadRejected.
func (c *Client) Load(ctx context.Context, req LoadRequest) (*LoadResponse, error) {
	var resp LoadResponse
	if err := c.doJSON(ctx, http.MethodPost, "/v1/models/load", req, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return &resp, fmt.Errorf("%w: %s", ErrLoadRejected, resp.Message)
	}
	return &resp, nil
}

// Unload releases a loaded model instance. A response with success=false
// is returned as ErrUnloadRejected.
func (c *Client) Unload(ctx context.Context, instanceID string) (*UnloadResponse, error) {
	var resp UnloadResponse
	if err := c.doJSON(ctx, http.MethodPost, "/v1/models/unload", unloadRequest{InstanceID: instanceID}, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return &resp, fmt.Errorf("%w: %s", ErrUnloadRejected, resp.Message)
	}
	return &resp, nil
}
