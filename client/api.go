package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"quitcoach/contract"
	"quitcoach/domain"

	"github.com/google/uuid"
)

// API talks to the appointment server's REST surface with a bearer token.
type API struct {
	baseURL string
	token   string
	http    *http.Client
}

var _ contract.MessageAPI = (*API)(nil)

func NewAPI(baseURL, token string) *API {
	return &API{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (a *API) SendMessage(ctx context.Context, appointmentID uuid.UUID, text string) (domain.Message, error) {
	var msg domain.Message
	path := fmt.Sprintf("/appointments/%s/messages", appointmentID)
	err := a.call(ctx, http.MethodPost, path, map[string]string{"text": text}, &msg)
	return msg, err
}

func (a *API) ListMessages(ctx context.Context, appointmentID uuid.UUID) ([]domain.Message, error) {
	var body struct {
		Messages []domain.Message `json:"messages"`
	}
	path := fmt.Sprintf("/appointments/%s/messages", appointmentID)
	if err := a.call(ctx, http.MethodGet, path, nil, &body); err != nil {
		return nil, err
	}
	return body.Messages, nil
}

func (a *API) MarkMessagesRead(ctx context.Context, appointmentID uuid.UUID) error {
	path := fmt.Sprintf("/appointments/%s/messages/read", appointmentID)
	return a.call(ctx, http.MethodPost, path, nil, nil)
}

func (a *API) call(ctx context.Context, method, path string, payload, out interface{}) error {
	var body bytes.Buffer
	if payload != nil {
		if err := json.NewEncoder(&body).Encode(payload); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, &body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+a.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var failure struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&failure)
		return fmt.Errorf("server rejected %s %s: %d %s", method, path, resp.StatusCode, failure.Error)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
