package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/aikyo-io/campaign-engine/config"
	"github.com/aikyo-io/campaign-engine/models"
)

// TemplateStoreClient fetches rendered template content from the content
// template service. Broadcasts with a non-raw template kind resolve their
// payload through this client at dispatch time.
type TemplateStoreClient struct {
	config *config.TemplatesConfig
	client *http.Client
}

type templateResponse struct {
	Success bool           `json:"success"`
	Message string         `json:"message"`
	Data    models.JSONMap `json:"data"`
}

// NewTemplateStoreClient creates a new template store client instance
func NewTemplateStoreClient(cfg *config.TemplatesConfig) *TemplateStoreClient {
	return &TemplateStoreClient{
		config: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// GetTemplate fetches one template's content body
func (s *TemplateStoreClient) GetTemplate(ctx context.Context, tenantID uint, kind models.TemplateKind, templateID string) (models.JSONMap, error) {
	url := fmt.Sprintf("%s/api/v1/templates/%s/%s?tenant_id=%s",
		s.config.BaseURL,
		strings.ToLower(string(kind)),
		templateID,
		strconv.FormatUint(uint64(tenantID), 10),
	)
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if s.config.APIKey != "" {
		req.Header.Set("x-api-key", s.config.APIKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch template %s: %w", templateID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("template %s not found", templateID)
	}
	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("template store returned %d: %s", resp.StatusCode, string(raw))
	}

	var result templateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode template response: %w", err)
	}
	if !result.Success {
		return nil, fmt.Errorf("template store rejected request: %s", result.Message)
	}
	return result.Data, nil
}
