package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Renewer exchanges a subject id for a fresh credential.
type Renewer interface {
	Renew(ctx context.Context, subjectID string) (string, error)
}

// HTTPRenewer calls the external renewal endpoint.
type HTTPRenewer struct {
	client *http.Client
	url    string
}

// NewHTTPRenewer builds a renewer posting to url.
func NewHTTPRenewer(client *http.Client, url string) *HTTPRenewer {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPRenewer{client: client, url: url}
}

type renewalRequest struct {
	UserID string `json:"userId"`
}

type renewalResponse struct {
	Token       string `json:"token"`
	AccessToken string `json:"accessToken"`
}

// Renew posts {"userId": subjectID} and returns the issued credential.
func (r *HTTPRenewer) Renew(ctx context.Context, subjectID string) (string, error) {
	payload, err := json.Marshal(renewalRequest{UserID: subjectID})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("%w: status %d", ErrRenewalDenied, resp.StatusCode)
	}

	var body renewalResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&body); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", ErrRenewalDenied, err)
	}
	token := strings.TrimSpace(body.Token)
	if token == "" {
		token = strings.TrimSpace(body.AccessToken)
	}
	if token == "" {
		return "", fmt.Errorf("%w: response carried no credential", ErrRenewalDenied)
	}
	return token, nil
}
