// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package gemini implements the plain connector contract (spec §4.7)
// against Google Gemini, grounded on pkg/model/gemini/gemini.go: the
// official google.golang.org/genai SDK, one client per resolved
// provider config, GenerateContent/GenerateContentStream for the
// non-streaming/streaming paths.
package gemini

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/lamb-project/lamb-core/pkg/connectors"
	lambcoreerrors "github.com/lamb-project/lamb-core/pkg/lambcore/errors"
	"github.com/lamb-project/lamb-core/pkg/plugins"
)

const (
	providerName = "gemini"
	defaultModel = "gemini-2.0-flash"
)

// Connector is the plain Gemini connector.
type Connector struct {
	resolveConfig connectors.ProviderConfigResolver
}

// New builds a Gemini connector. resolveConfig supplies the per-owner
// API key/default model; the resolved base URL is not used.
func New(resolveConfig connectors.ProviderConfigResolver) *Connector {
	return &Connector{resolveConfig: resolveConfig}
}

// Name returns the connector's registry name.
func (c *Connector) Name() string { return providerName }

func (c *Connector) client(ctx context.Context, ownerEmail string) (*genai.Client, string, error) {
	cfg, err := c.resolveConfig(ctx, ownerEmail)
	if err != nil {
		return nil, "", lambcoreerrors.Wrap(lambcoreerrors.UpstreamUnavailable, "resolve gemini provider config", err)
	}
	if !cfg.Enabled || cfg.APIKey == "" {
		return nil, "", lambcoreerrors.New(lambcoreerrors.ProviderAuthError, "gemini provider is not configured for this organization")
	}

	clientCfg := &genai.ClientConfig{APIKey: cfg.APIKey}
	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, "", lambcoreerrors.Wrap(lambcoreerrors.UpstreamUnavailable, "create gemini client", err)
	}
	return client, cfg.DefaultModel, nil
}

// Complete runs one non-streaming GenerateContent call.
func (c *Connector) Complete(ctx context.Context, messages []plugins.Message, model, ownerEmail string) (string, error) {
	client, defaultM, err := c.client(ctx, ownerEmail)
	if err != nil {
		return "", err
	}
	if model == "" {
		model = firstNonEmpty(defaultM, defaultModel)
	}

	contents, systemInstruction := toGeminiContents(messages)
	config := &genai.GenerateContentConfig{SystemInstruction: systemInstruction}

	resp, err := client.Models.GenerateContent(ctx, model, contents, config)
	if err != nil {
		return "", mapError(err)
	}
	return responseText(resp), nil
}

// Stream runs GenerateContentStream and forwards each text part to emit
// as it arrives.
func (c *Connector) Stream(ctx context.Context, messages []plugins.Message, model, ownerEmail string, emit func(plugins.CompletionChunk) error) error {
	client, defaultM, err := c.client(ctx, ownerEmail)
	if err != nil {
		return err
	}
	if model == "" {
		model = firstNonEmpty(defaultM, defaultModel)
	}

	contents, systemInstruction := toGeminiContents(messages)
	config := &genai.GenerateContentConfig{SystemInstruction: systemInstruction}

	for resp, err := range client.Models.GenerateContentStream(ctx, model, contents, config) {
		if err != nil {
			return mapError(err)
		}
		text := responseText(resp)
		if text == "" {
			continue
		}
		if err := emit(plugins.CompletionChunk{Content: text}); err != nil {
			return err
		}
	}
	return emit(plugins.CompletionChunk{FinishedAt: true})
}

// AvailableModels lists the models the resolved provider config offers.
func (c *Connector) AvailableModels(ctx context.Context, ownerEmail string) ([]string, error) {
	cfg, err := c.resolveConfig(ctx, ownerEmail)
	if err != nil {
		return nil, lambcoreerrors.Wrap(lambcoreerrors.UpstreamUnavailable, "resolve gemini provider config", err)
	}
	if len(cfg.Models) > 0 {
		return cfg.Models, nil
	}
	if cfg.DefaultModel != "" {
		return []string{cfg.DefaultModel}, nil
	}
	return nil, lambcoreerrors.New(lambcoreerrors.ProviderAuthError, "gemini provider is not configured for this organization")
}

// toGeminiContents splits system-role turns into Gemini's dedicated
// SystemInstruction content and converts the rest to user/model turns
// (Gemini calls the assistant role "model").
func toGeminiContents(messages []plugins.Message) ([]*genai.Content, *genai.Content) {
	var contents []*genai.Content
	var system *genai.Content

	for _, m := range messages {
		text := connectors.MessageText(m)
		if text == "" {
			continue
		}
		if m.Role == "system" {
			if system == nil {
				system = &genai.Content{Parts: []*genai.Part{{Text: text}}}
			} else {
				system.Parts = append(system.Parts, &genai.Part{Text: text})
			}
			continue
		}
		role := "user"
		if m.Role == "assistant" {
			role = "model"
		}
		contents = append(contents, &genai.Content{Role: role, Parts: []*genai.Part{{Text: text}}})
	}
	return contents, system
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var text string
	for _, part := range resp.Candidates[0].Content.Parts {
		if part.Text != "" && !part.Thought {
			text += part.Text
		}
	}
	return text
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// mapError classifies a Gemini SDK error into the pipeline's error
// taxonomy (spec §7). The genai SDK surfaces transport/API failures as
// plain errors rather than a typed error hierarchy, so classification
// falls back to matching the message the REST transport embeds.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	switch {
	case containsAny(msg, "401", "403", "PERMISSION_DENIED", "UNAUTHENTICATED"):
		return lambcoreerrors.Wrap(lambcoreerrors.ProviderAuthError, "gemini rejected credentials", err)
	case containsAny(msg, "429", "RESOURCE_EXHAUSTED"):
		return lambcoreerrors.Wrap(lambcoreerrors.UpstreamUnavailable, "gemini rate limited the request", err)
	}
	return lambcoreerrors.Wrap(lambcoreerrors.UpstreamUnavailable, fmt.Sprintf("gemini request failed: %v", err), err)
}

func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
