package seal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	id "countersign/pkg/domain"
)

// HTTPSealer calls the provider's seal endpoint. Errors are returned to the
// caller and never panic past it; the signing flow decides whether to retry
// via the outbox.
type HTTPSealer struct {
	client   *http.Client
	endpoint string
}

func NewHTTPSealer(endpoint string, timeout time.Duration) *HTTPSealer {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPSealer{
		client:   &http.Client{Timeout: timeout},
		endpoint: endpoint,
	}
}

type sealRequest struct {
	LeaseID      string `json:"lease_id"`
	DocumentPath string `json:"document_path"`
}

func (s *HTTPSealer) Seal(ctx context.Context, leaseID id.LeaseID, documentPath string) error {
	body, err := json.Marshal(sealRequest{
		LeaseID:      leaseID.String(),
		DocumentPath: documentPath,
	})
	if err != nil {
		return fmt.Errorf("marshal seal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build seal request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("call seal endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("seal endpoint returned %d", resp.StatusCode)
	}
	return nil
}
