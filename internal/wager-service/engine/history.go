package engine

import (
	"sync"
	"time"
)

const historyCap = 100

// HistoryEntry é o resumo de um wager encerrado, exibido no feed rápido.
type HistoryEntry struct {
	WagerID    string    `json:"wagerId"`
	State      State     `json:"state"`
	ProposerID string    `json:"proposerId"`
	TargetID   string    `json:"targetId"`
	WinnerID   string    `json:"winnerId,omitempty"`
	ValueCR    int64     `json:"value_cr"`
	PinkSlip   bool      `json:"pink_slip"`
	ClosedAt   time.Time `json:"closed_at"`
}

// History guarda os últimos wagers encerrados em memória,
// limitado a 100 entradas, mais recente primeiro.
type History struct {
	mu      sync.RWMutex
	entries []HistoryEntry
}

func NewHistory() *History { return &History{} }

// Push insere no topo e corta o excedente
func (h *History) Push(e HistoryEntry) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append([]HistoryEntry{e}, h.entries...)
	if len(h.entries) > historyCap {
		h.entries = h.entries[:historyCap]
	}
}

// Recent devolve uma cópia das n entradas mais recentes
func (h *History) Recent(n int) []HistoryEntry {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if n <= 0 || n > len(h.entries) {
		n = len(h.entries)
	}
	out := make([]HistoryEntry, n)
	copy(out, h.entries[:n])
	return out
}

// Len informa o tamanho atual do histórico
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.entries)
}
