package ws

// ClientMsg representa uma mensagem recebida do cliente WebSocket
// Type: subscribe | unsubscribe | ping
// RaceID: obrigatório para subscribe/unsubscribe
type ClientMsg struct {
	Type   string `json:"type"`   // subscribe | unsubscribe | ping
	RaceID string `json:"raceId"` // requerido em subscribe/unsubscribe
}

// FeedUpdate representa um tick de corrida enviado para clientes WebSocket
type FeedUpdate struct {
	RaceID  string      `json:"raceId"`
	Payload interface{} `json:"payload"`
}
