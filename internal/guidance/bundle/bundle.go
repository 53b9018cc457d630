/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

// Package bundle fetches guidance-bundle artifacts (constitution text plus
// shard definitions) from an OCI registry, so a fleet can pin and distribute
// a policy version the same way it distributes container images.
package bundle

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"oras.land/oras-go/v2"
	"oras.land/oras-go/v2/content/memory"
	"oras.land/oras-go/v2/registry/remote"
	"oras.land/oras-go/v2/registry/remote/auth"
	"oras.land/oras-go/v2/registry/remote/retry"
)

// MediaTypeManifest identifies the bundle's policy manifest blob.
const MediaTypeManifest = "application/vnd.guidance.bundle.manifest.v1+json"

// MediaTypeContent identifies the bundle's packed shard/constitution content.
const MediaTypeContent = "application/vnd.guidance.bundle.content.v1+tar"

// Ref identifies an OCI artifact to push or pull.
type Ref struct {
	Registry string
	Path     string
	Tag      string
	Digest   string
}

func (r Ref) String() string {
	if r.Digest != "" {
		return fmt.Sprintf("%s/%s@%s", r.Registry, r.Path, r.Digest)
	}
	tag := r.Tag
	if tag == "" {
		tag = "latest"
	}
	return fmt.Sprintf("%s/%s:%s", r.Registry, r.Path, tag)
}

// ManifestMeta is the bundle's config blob: enough metadata to identify the
// policy version without unpacking the content layer.
type ManifestMeta struct {
	Name          string `json:"name"`
	Version       string `json:"version"`
	ShardCount    int    `json:"shardCount"`
	ConstitutionHash string `json:"constitutionHash"`
}

// Client pushes and pulls guidance bundles from OCI registries.
type Client struct {
	PlainHTTP bool
	Username  string
	Password  string
}

// NewClient creates a bundle registry client.
func NewClient() *Client { return &Client{} }

// WithAuth sets static registry credentials.
func (c *Client) WithAuth(username, password string) *Client {
	c.Username = username
	c.Password = password
	return c
}

// PullResult describes a fetched bundle.
type PullResult struct {
	Ref    string
	Digest string
	Size   int64
	Meta   ManifestMeta
}

// Pull fetches a bundle's config and content blobs from the registry
// without writing anything to disk; the caller parses Content itself (the
// shard corpus format is owned by the shard package, not this one).
func (c *Client) Pull(ctx context.Context, ref Ref) ([]byte, PullResult, error) {
	repo, err := c.repository(ref)
	if err != nil {
		return nil, PullResult{}, fmt.Errorf("connect registry: %w", err)
	}

	store := memory.New()
	pullRef := ref.Tag
	if pullRef == "" {
		pullRef = "latest"
	}
	if ref.Digest != "" {
		pullRef = ref.Digest
	}

	manifestDesc, err := oras.Copy(ctx, repo, pullRef, store, pullRef, oras.DefaultCopyOptions)
	if err != nil {
		return nil, PullResult{}, fmt.Errorf("pull bundle: %w", err)
	}

	manifestRc, err := store.Fetch(ctx, manifestDesc)
	if err != nil {
		return nil, PullResult{}, fmt.Errorf("fetch manifest: %w", err)
	}
	manifestBytes, err := io.ReadAll(manifestRc)
	manifestRc.Close()
	if err != nil {
		return nil, PullResult{}, fmt.Errorf("read manifest: %w", err)
	}

	var ociManifest ocispec.Manifest
	if err := json.Unmarshal(manifestBytes, &ociManifest); err != nil {
		return nil, PullResult{}, fmt.Errorf("parse manifest: %w", err)
	}

	var content []byte
	for _, layer := range ociManifest.Layers {
		if layer.MediaType != MediaTypeContent {
			continue
		}
		rc, err := store.Fetch(ctx, layer)
		if err != nil {
			return nil, PullResult{}, fmt.Errorf("fetch content layer: %w", err)
		}
		content, err = io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, PullResult{}, fmt.Errorf("read content layer: %w", err)
		}
	}
	if content == nil {
		return nil, PullResult{}, fmt.Errorf("bundle has no content layer")
	}

	var meta ManifestMeta
	if ociManifest.Config.Size > 0 {
		rc, err := store.Fetch(ctx, ociManifest.Config)
		if err == nil {
			configBytes, _ := io.ReadAll(rc)
			rc.Close()
			_ = json.Unmarshal(configBytes, &meta)
		}
	}

	return content, PullResult{Ref: ref.String(), Digest: manifestDesc.Digest.String(), Size: manifestDesc.Size, Meta: meta}, nil
}

// Push packages content bytes plus metadata and pushes them as an OCI
// artifact.
func (c *Client) Push(ctx context.Context, ref Ref, meta ManifestMeta, content []byte) (string, error) {
	store := memory.New()

	configBytes, err := json.Marshal(meta)
	if err != nil {
		return "", fmt.Errorf("marshal bundle meta: %w", err)
	}
	configDesc, err := oras.PushBytes(ctx, store, MediaTypeManifest, configBytes)
	if err != nil {
		return "", fmt.Errorf("push config: %w", err)
	}
	contentDesc, err := oras.PushBytes(ctx, store, MediaTypeContent, content)
	if err != nil {
		return "", fmt.Errorf("push content: %w", err)
	}

	packOpts := oras.PackManifestOptions{
		Layers:           []ocispec.Descriptor{contentDesc},
		ConfigDescriptor: &configDesc,
	}
	manifestDesc, err := oras.PackManifest(ctx, store, oras.PackManifestVersion1_1, "application/vnd.guidance.bundle.v1", packOpts)
	if err != nil {
		return "", fmt.Errorf("pack manifest: %w", err)
	}

	tag := ref.Tag
	if tag == "" {
		tag = "latest"
	}
	if err := store.Tag(ctx, manifestDesc, tag); err != nil {
		return "", fmt.Errorf("tag manifest: %w", err)
	}

	repo, err := c.repository(ref)
	if err != nil {
		return "", fmt.Errorf("connect registry: %w", err)
	}
	copyDesc, err := oras.Copy(ctx, store, tag, repo, tag, oras.DefaultCopyOptions)
	if err != nil {
		return "", fmt.Errorf("push bundle: %w", err)
	}
	return copyDesc.Digest.String(), nil
}

func (c *Client) repository(ref Ref) (*remote.Repository, error) {
	repo, err := remote.NewRepository(fmt.Sprintf("%s/%s", ref.Registry, ref.Path))
	if err != nil {
		return nil, err
	}
	repo.PlainHTTP = c.PlainHTTP
	if c.Username != "" {
		repo.Client = &auth.Client{
			Client: retry.DefaultClient,
			Credential: auth.StaticCredential(ref.Registry, auth.Credential{
				Username: c.Username,
				Password: c.Password,
			}),
		}
	}
	return repo, nil
}
