package infra

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/tnqbao/gau-account-service/config"
)

type AuthorizationService struct {
	AuthorizationServiceURL string
	PrivateKey              string
}

func InitAuthorizationService(config *config.EnvConfig) *AuthorizationService {
	url := config.ExternalService.AuthorizationServiceURL
	if url == "" {
		panic("Authorization service URL is not configured")
	}

	privateKey := config.PrivateKey
	if privateKey == "" {
		panic("Private key is not configured")
	}

	return &AuthorizationService{
		AuthorizationServiceURL: url,
		PrivateKey:              privateKey,
	}
}

func (s *AuthorizationService) CheckAccessToken(token string) error {
	url := fmt.Sprintf("%s/api/v2/authorization/token/validate?token=%s", s.AuthorizationServiceURL, token)

	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Private-Key", s.PrivateKey)

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("invalid token: %s", string(raw))
	}

	return nil
}

// HasForceDeleteCapability asks the authorization service whether the actor
// may delete the target account without being its owner.
func (s *AuthorizationService) HasForceDeleteCapability(actorID, accountID uuid.UUID) (bool, error) {
	url := fmt.Sprintf("%s/api/v2/authorization/capability/force-delete?actor_id=%s&account_id=%s",
		s.AuthorizationServiceURL, actorID.String(), accountID.String())

	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Private-Key", s.PrivateKey)

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return false, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusForbidden, http.StatusNotFound:
		return false, nil
	default:
		raw, _ := io.ReadAll(resp.Body)
		return false, fmt.Errorf("authorization service returned %d: %s", resp.StatusCode, string(raw))
	}
}
