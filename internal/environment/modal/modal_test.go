package modal

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDockerfile(t *testing.T) {
	tests := []struct {
		name        string
		content     string
		wantBase    string
		wantCmds    []string
		errContains string
	}{
		{
			name: "basic",
			content: `
FROM golang:1.25
RUN go version
ENV CGO_ENABLED=0
`,
			wantBase: "golang:1.25",
			wantCmds: []string{"RUN go version", "ENV CGO_ENABLED=0"},
		},
		{
			name: "line continuations",
			content: `
FROM node:22
RUN npm install \
    typescript \
    esbuild
`,
			wantBase: "node:22",
			wantCmds: []string{"RUN npm install  typescript  esbuild"},
		},
		{
			name: "multi-stage keeps final stage",
			content: `
FROM golang:1.25 AS builder
RUN go build ./...
FROM alpine:3.20
RUN apk add bash
`,
			wantBase: "alpine:3.20",
			wantCmds: []string{"RUN apk add bash"},
		},
		{
			name: "comments and lowercase",
			content: `
# toolchain
from python:3.12

workdir /workspace
run python --version
`,
			wantBase: "python:3.12",
			wantCmds: []string{"workdir /workspace", "run python --version"},
		},
		{
			name: "COPY rejected",
			content: `
FROM python:3.12
COPY . /app
`,
			errContains: "COPY and ADD instructions are not supported",
		},
		{
			name: "ADD rejected",
			content: `
FROM alpine:3.20
ADD https://example.com/tool.tar.gz /tmp/
`,
			errContains: "COPY and ADD instructions are not supported",
		},
		{
			name:        "missing FROM",
			content:     `RUN echo hello`,
			errContains: "no FROM instruction found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base, cmds, err := parseDockerfile(tt.content)
			if tt.errContains != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errContains)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantBase, base)
			if diff := cmp.Diff(tt.wantCmds, cmds); diff != "" {
				t.Errorf("commands mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

type mockConfigReader struct {
	output []byte
	err    error
}

func (m *mockConfigReader) ReadConfig() ([]byte, error) {
	return m.output, m.err
}

func TestCheckImageBuilderVersion(t *testing.T) {
	tests := []struct {
		name        string
		output      string
		readErr     error
		errContains string
	}{
		{name: "minimum version", output: `{"image_builder_version": "2025.06"}`},
		{name: "newer version", output: `{"image_builder_version": "2025.12"}`},
		{name: "null", output: `{"image_builder_version": null}`, errContains: "image_builder_version is not set"},
		{name: "empty", output: `{"image_builder_version": ""}`, errContains: "image_builder_version is not set"},
		{name: "missing field", output: `{}`, errContains: "image_builder_version is not set"},
		{name: "too old", output: `{"image_builder_version": "2024.10"}`, errContains: "is too old"},
		{name: "cli error", readErr: errors.New("modal CLI not found"), errContains: "failed to get modal config"},
		{name: "invalid json", output: `not json`, errContains: "failed to parse modal config"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkImageBuilderVersionWith(&mockConfigReader{output: []byte(tt.output), err: tt.readErr})
			if tt.errContains == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errContains)
		})
	}
}

func TestParseProviderConfig(t *testing.T) {
	got := ParseProviderConfig(map[string]any{
		"app_name": "builds",
		"regions":  []any{"us-east", "eu-west"},
		"verbose":  true,
	})
	want := ProviderConfig{AppName: "builds", Regions: []string{"us-east", "eu-west"}, Verbose: true}
	assert.Equal(t, want, got)

	assert.Equal(t, ProviderConfig{}, ParseProviderConfig(nil))
	assert.Equal(t, []string{"us-west"}, ParseProviderConfig(map[string]any{"region": "us-west"}).Regions)
}
