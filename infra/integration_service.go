package infra

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/tnqbao/gau-account-service/config"
)

// IntegrationService severs the account's state held by external partners:
// registered webhooks and linked provider identities.
type IntegrationService struct {
	IntegrationServiceURL string
	PrivateKey            string
}

func InitIntegrationService(config *config.EnvConfig) *IntegrationService {
	url := config.ExternalService.IntegrationServiceURL
	if url == "" {
		panic("Integration service URL is not configured")
	}

	privateKey := config.PrivateKey
	if privateKey == "" {
		panic("Private key is not configured")
	}

	return &IntegrationService{
		IntegrationServiceURL: url,
		PrivateKey:            privateKey,
	}
}

func (s *IntegrationService) doDelete(url string) error {
	req, err := http.NewRequest(http.MethodDelete, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Private-Key", s.PrivateKey)

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	// 404 means the remote side is already gone, which is fine for teardown
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNotFound {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("integration service returned %d: %s", resp.StatusCode, string(raw))
	}

	return nil
}

func (s *IntegrationService) DeregisterWebhook(accountID uuid.UUID, externalID string) error {
	url := fmt.Sprintf("%s/api/v1/integration/webhooks/%s?account_id=%s",
		s.IntegrationServiceURL, externalID, accountID.String())
	return s.doDelete(url)
}

func (s *IntegrationService) UnlinkProvider(accountID uuid.UUID, provider, externalID string) error {
	url := fmt.Sprintf("%s/api/v1/integration/links/%s/%s?account_id=%s",
		s.IntegrationServiceURL, provider, externalID, accountID.String())
	return s.doDelete(url)
}
