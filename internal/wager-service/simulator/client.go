package simulator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Client agenda corridas no race-simulator.
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

type RunRaceRequest struct {
	RaceID   string   `json:"raceId"`
	TrackID  string   `json:"trackId"`
	RaceType string   `json:"race_type"`
	Laps     int      `json:"laps"`
	Entrants []string `json:"entrants"`
	PinkSlip bool     `json:"pink_slip"`
}

// RunRace pede ao simulador que dispute a corrida do wager
func (c *Client) RunRace(ctx context.Context, req RunRaceRequest) error {
	body, _ := json.Marshal(req)
	hreq, _ := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/races/run", bytes.NewReader(body))
	hreq.Header.Set("Content-Type", "application/json")
	res, err := c.HTTP.Do(hreq)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode >= 300 {
		return fmt.Errorf("simulator run http %d", res.StatusCode)
	}
	return nil
}
