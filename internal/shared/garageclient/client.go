package garageclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	gdto "github.com/midnightgrind/race-wager-platform/internal/garage-service/dto"
)

// Client fala com o garage-service por HTTP.
// Usado pelo wager-service (reservas, elegibilidade) e pelo
// race-settlement-worker (commit/refund e troca de posse).
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func New(base string) *Client {
	return &Client{
		BaseURL: base,
		HTTP:    &http.Client{Timeout: 2 * time.Second},
	}
}

func (c *Client) post(ctx context.Context, path string, payload any, out any) error {
	body, _ := json.Marshal(payload)
	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode >= 300 {
		return fmt.Errorf("garage %s http %d", path, res.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(res.Body).Decode(out)
}

// ReserveStake bloqueia a aposta de um jogador para um wager
func (c *Client) ReserveStake(ctx context.Context, playerID string, stake gdto.Stake, externalRef string) (string, error) {
	var out gdto.ReservationResponse
	err := c.post(ctx, "/garage/stake/reserve", gdto.ReserveStakeRequest{
		PlayerID:    playerID,
		Stake:       stake,
		ExternalRef: externalRef,
	}, &out)
	if err != nil {
		return "", err
	}
	return out.ReservationID, nil
}

// CommitStake efetiva a aposta do perdedor em favor do vencedor
func (c *Client) CommitStake(ctx context.Context, playerID string, stake gdto.Stake, externalRef, beneficiaryID string) error {
	return c.post(ctx, "/garage/stake/commit", gdto.SettleStakeRequest{
		PlayerID:      playerID,
		Stake:         stake,
		ExternalRef:   externalRef,
		BeneficiaryID: beneficiaryID,
	}, nil)
}

// RefundStake devolve a aposta ao dono
func (c *Client) RefundStake(ctx context.Context, playerID string, stake gdto.Stake, externalRef string) error {
	return c.post(ctx, "/garage/stake/refund", gdto.SettleStakeRequest{
		PlayerID:    playerID,
		Stake:       stake,
		ExternalRef: externalRef,
	}, nil)
}

// Eligibility busca o retrato de elegibilidade de um veículo
func (c *Client) Eligibility(ctx context.Context, playerID, vehicleID string) (gdto.EligibilityDataResponse, error) {
	var out gdto.EligibilityDataResponse
	u := c.BaseURL + "/garage/eligibility?playerId=" + url.QueryEscape(playerID) + "&vehicleId=" + url.QueryEscape(vehicleID)
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	res, err := c.HTTP.Do(req)
	if err != nil {
		return out, err
	}
	defer res.Body.Close()
	if res.StatusCode >= 300 {
		return out, fmt.Errorf("garage eligibility http %d", res.StatusCode)
	}
	return out, json.NewDecoder(res.Body).Decode(&out)
}

// Transfer executa a troca de posse do pink slip
func (c *Client) Transfer(ctx context.Context, req gdto.TransferRequest) (string, error) {
	var out gdto.TransferResponse
	if err := c.post(ctx, "/garage/vehicles/transfer", req, &out); err != nil {
		return "", err
	}
	return out.TransferID, nil
}
