// Package translate provides the translation draft providers: the server's
// auto-translation endpoint and a local ollama model.
package translate

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/ollama/ollama/api"
	"github.com/ollama/ollama/envconfig"

	"github.com/justyntemme/readium-t/internal/config"
	"github.com/justyntemme/readium-t/internal/logging"
	"github.com/justyntemme/readium-t/pkg/models"
)

const unknownLanguage = "unknown"

// Provider translates a passage
type Provider interface {
	Translate(ctx context.Context, text, targetLanguage string) (*models.AutoTranslation, error)
}

// AutoTranslator is the server endpoint
type AutoTranslator interface {
	AutoTranslate(ctx context.Context, text, targetLanguage string) (*models.AutoTranslation, error)
}

// Backend delegates to the server
type Backend struct {
	client AutoTranslator
}

// NewBackend wraps the API client
func NewBackend(client AutoTranslator) *Backend {
	return &Backend{client: client}
}

func (b *Backend) Translate(ctx context.Context, text, targetLanguage string) (*models.AutoTranslation, error) {
	return b.client.AutoTranslate(ctx, text, targetLanguage)
}

// Ollama asks a local model for a translation
type Ollama struct {
	Client *api.Client
	Model  string
	logger *log.Logger
}

// NewOllama connects to host, or to OLLAMA_HOST when host is empty
func NewOllama(host, model string) (*Ollama, error) {
	hostURL := envconfig.Host()
	if host != "" {
		u, err := url.Parse(host)
		if err != nil {
			return nil, fmt.Errorf("invalid ollama host %q: %w", host, err)
		}
		hostURL = u
	}
	return &Ollama{
		Client: api.NewClient(hostURL, http.DefaultClient),
		Model:  model,
		logger: logging.For("translate"),
	}, nil
}

// Prompt builds the translation instruction for the model
func Prompt(text, targetLanguage string) string {
	var b strings.Builder
	b.WriteString("You are a translation engine. Translate the passage below into the language with ISO code ")
	b.WriteString(targetLanguage)
	b.WriteString(". Reply with JSON only, in the form ")
	b.WriteString(`{"translatedText": "...", "detectedLanguage": "<ISO code of the source language>"}`)
	b.WriteString(".\n\nPassage:\n")
	b.WriteString(text)
	return b.String()
}

func (o *Ollama) Translate(ctx context.Context, text, targetLanguage string) (*models.AutoTranslation, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return &models.AutoTranslation{DetectedLanguage: unknownLanguage}, nil
	}

	req := api.GenerateRequest{
		Model:  o.Model,
		Prompt: Prompt(text, targetLanguage),
		Format: json.RawMessage(`"json"`),
		Options: map[string]interface{}{
			"temperature": 0.1,
		},
	}

	var out strings.Builder
	err := o.Client.Generate(ctx, &req, func(resp api.GenerateResponse) error {
		_, err := out.WriteString(resp.Response)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate translation: %w", err)
	}

	return ParseReply(out.String()), nil
}

// ParseReply reads the model's JSON reply. A reply that is not JSON is
// taken as the translation itself.
func ParseReply(reply string) *models.AutoTranslation {
	reply = strings.TrimSpace(reply)
	var result models.AutoTranslation
	if err := json.Unmarshal([]byte(reply), &result); err != nil {
		result = models.AutoTranslation{TranslatedText: reply}
	}
	result.TranslatedText = strings.TrimSpace(result.TranslatedText)
	if strings.TrimSpace(result.DetectedLanguage) == "" {
		result.DetectedLanguage = unknownLanguage
	}
	return &result
}

// New picks the provider named in cfg
func New(cfg *config.Config, backend AutoTranslator) (Provider, error) {
	switch cfg.TranslationProvider {
	case config.ProviderOllama:
		return NewOllama(cfg.OllamaHost, cfg.OllamaModel)
	case config.ProviderBackend, "":
		return NewBackend(backend), nil
	default:
		return nil, fmt.Errorf("unknown translation provider %q", cfg.TranslationProvider)
	}
}
