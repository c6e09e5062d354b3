package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/midnightgrind/race-wager-platform/internal/garage-service/dto"
	"github.com/midnightgrind/race-wager-platform/internal/garage-service/repo"
)

// Repo define a interface de operações de garagem usadas pelo handler HTTP
type Repo interface {
	GetOrCreateWallet(ctx context.Context, playerID string) (walletID string, balance int64, err error)
	GetOrCreateProfile(ctx context.Context, playerID string) (repo.Profile, error)
	Deposit(ctx context.Context, playerID string, amount int64, externalRef string) (walletID string, newBalance int64, err error)

	ReserveCurrency(ctx context.Context, playerID string, amount int64, externalRef string) (string, error)
	CommitCurrency(ctx context.Context, playerID, externalRef string) (int64, error)
	RefundCurrency(ctx context.Context, playerID, externalRef string) error
	ReserveXP(ctx context.Context, playerID string, amount int64, externalRef string) (string, error)
	SettleXP(ctx context.Context, playerID, externalRef, beneficiaryID string) error

	AddVehicle(ctx context.Context, v *repo.Vehicle) (string, error)
	ListVehicles(ctx context.Context, ownerID string) ([]repo.Vehicle, error)
	GetVehicle(ctx context.Context, vehicleID string) (repo.Vehicle, error)
	ReserveVehicle(ctx context.Context, ownerID, vehicleID, externalRef string) error
	ReleaseVehicle(ctx context.Context, vehicleID, externalRef string) error

	AddItem(ctx context.Context, it *repo.InventoryItem) (string, error)
	ReserveItem(ctx context.Context, ownerID, itemID, externalRef string) error
	ReleaseItem(ctx context.Context, itemID, externalRef string) error
	TransferItem(ctx context.Context, itemID, externalRef, newOwnerID string) error

	EligibilityData(ctx context.Context, playerID, vehicleID string) (repo.EligibilitySnapshot, error)
	ExecuteTransfer(ctx context.Context, req repo.TransferRequest) (string, error)
	ListTransfers(ctx context.Context, playerID string, limit int) ([]repo.PinkSlipTransfer, error)

	StartMechanicJob(ctx context.Context, playerID, vehicleID, jobType string) (repo.MechanicJob, error)
	ListMechanicJobs(ctx context.Context, playerID string) ([]repo.MechanicJob, error)
}

// Server expõe os endpoints HTTP da garagem (carteira, coleção e oficina)
type Server struct {
	log  *zap.Logger
	repo Repo
}

// NewServer instancia o servidor HTTP da garagem
func NewServer(log *zap.Logger, repo Repo) *Server { return &Server{log: log, repo: repo} }

// Router retorna o mux HTTP com as rotas da API de garagem
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/garage", s.getGarage)                  // GET ?playerId=...
	mux.HandleFunc("/garage/deposit", s.deposit)            // POST
	mux.HandleFunc("/garage/stake/reserve", s.reserveStake) // POST
	mux.HandleFunc("/garage/stake/commit", s.commitStake)   // POST
	mux.HandleFunc("/garage/stake/refund", s.refundStake)   // POST
	mux.HandleFunc("/garage/vehicles", s.vehicles)          // GET ?ownerId / POST
	mux.HandleFunc("/garage/vehicles/transfer", s.transfer) // POST
	mux.HandleFunc("/garage/vehicles/", s.getVehicle)       // GET /garage/vehicles/{id}
	mux.HandleFunc("/garage/items", s.addItem)              // POST
	mux.HandleFunc("/garage/eligibility", s.eligibility)    // GET ?playerId=&vehicleId=
	mux.HandleFunc("/garage/mechanic/jobs", s.mechanicJobs) // GET ?playerId / POST
	mux.HandleFunc("/garage/pinkslips", s.pinkSlipHistory)  // GET ?playerId=&limit=
	return mux
}

// getGarage retorna perfil, carteira e tamanho da coleção do jogador
func (s *Server) getGarage(w http.ResponseWriter, r *http.Request) {
	playerID := r.URL.Query().Get("playerId")
	if playerID == "" {
		http.Error(w, "playerId required", http.StatusBadRequest)
		return
	}
	prof, err := s.repo.GetOrCreateProfile(r.Context(), playerID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	walletID, bal, err := s.repo.GetOrCreateWallet(r.Context(), playerID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	vehicles, err := s.repo.ListVehicles(r.Context(), playerID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, dto.GarageResponse{
		PlayerID:   playerID,
		DriverName: prof.DriverName,
		RepTier:    prof.RepTier,
		XP:         prof.XP,
		WalletID:   walletID,
		BalanceCR:  bal,
		Vehicles:   len(vehicles),
	})
}

// deposit adiciona créditos à carteira do jogador
func (s *Server) deposit(w http.ResponseWriter, r *http.Request) {
	var req dto.DepositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if req.PlayerID == "" || req.AmountCR <= 0 {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	if _, _, err := s.repo.GetOrCreateWallet(r.Context(), req.PlayerID); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	walletID, bal, err := s.repo.Deposit(r.Context(), req.PlayerID, req.AmountCR, req.ExternalRef)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, dto.GarageResponse{PlayerID: req.PlayerID, WalletID: walletID, BalanceCR: bal})
}

// reserveStake bloqueia a aposta (dinheiro, veículo, peça, cosmético ou XP) para um wager
func (s *Server) reserveStake(w http.ResponseWriter, r *http.Request) {
	var req dto.ReserveStakeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if req.PlayerID == "" || req.ExternalRef == "" {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	var resID string
	var err error
	switch req.Stake.Type {
	case "currency":
		if req.Stake.CurrencyCR <= 0 {
			http.Error(w, "invalid payload", http.StatusBadRequest)
			return
		}
		resID, err = s.repo.ReserveCurrency(r.Context(), req.PlayerID, req.Stake.CurrencyCR, req.ExternalRef)
	case "vehicle":
		err = s.repo.ReserveVehicle(r.Context(), req.PlayerID, req.Stake.ItemID, req.ExternalRef)
		resID = req.Stake.ItemID
	case "part", "cosmetic":
		err = s.repo.ReserveItem(r.Context(), req.PlayerID, req.Stake.ItemID, req.ExternalRef)
		resID = req.Stake.ItemID
	case "xp":
		if req.Stake.XPAmount <= 0 {
			http.Error(w, "invalid payload", http.StatusBadRequest)
			return
		}
		resID, err = s.repo.ReserveXP(r.Context(), req.PlayerID, req.Stake.XPAmount, req.ExternalRef)
	default:
		http.Error(w, "unknown stake type", http.StatusBadRequest)
		return
	}
	if err != nil {
		status := http.StatusConflict
		if errors.Is(err, repo.ErrNotFound) {
			status = http.StatusNotFound
		}
		http.Error(w, err.Error(), status)
		return
	}
	writeJSON(w, dto.ReservationResponse{ReservationID: resID, Status: "PENDING"})
}

// commitStake efetiva a aposta do perdedor e entrega ao vencedor (beneficiary)
// Veículos não passam por aqui: troca de posse é só via /garage/vehicles/transfer
func (s *Server) commitStake(w http.ResponseWriter, r *http.Request) {
	var req dto.SettleStakeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if req.PlayerID == "" || req.ExternalRef == "" || req.BeneficiaryID == "" {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	switch req.Stake.Type {
	case "currency":
		amount, err := s.repo.CommitCurrency(r.Context(), req.PlayerID, req.ExternalRef)
		if err != nil {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		if _, _, err := s.repo.Deposit(r.Context(), req.BeneficiaryID, amount, "wager-win:"+req.ExternalRef); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	case "part", "cosmetic":
		if err := s.repo.TransferItem(r.Context(), req.Stake.ItemID, req.ExternalRef, req.BeneficiaryID); err != nil {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
	case "xp":
		if err := s.repo.SettleXP(r.Context(), req.PlayerID, req.ExternalRef, req.BeneficiaryID); err != nil {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
	case "vehicle":
		http.Error(w, "vehicle stakes settle via /garage/vehicles/transfer", http.StatusUnprocessableEntity)
		return
	default:
		http.Error(w, "unknown stake type", http.StatusBadRequest)
		return
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"COMMITTED"}`))
}

// refundStake devolve a aposta ao dono (decline, cancel, expiração)
func (s *Server) refundStake(w http.ResponseWriter, r *http.Request) {
	var req dto.SettleStakeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if req.PlayerID == "" || req.ExternalRef == "" {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	var err error
	switch req.Stake.Type {
	case "currency":
		err = s.repo.RefundCurrency(r.Context(), req.PlayerID, req.ExternalRef)
	case "vehicle":
		err = s.repo.ReleaseVehicle(r.Context(), req.Stake.ItemID, req.ExternalRef)
	case "part", "cosmetic":
		err = s.repo.ReleaseItem(r.Context(), req.Stake.ItemID, req.ExternalRef)
	case "xp":
		err = s.repo.SettleXP(r.Context(), req.PlayerID, req.ExternalRef, "")
	default:
		http.Error(w, "unknown stake type", http.StatusBadRequest)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"REFUNDED"}`))
}

// vehicles lista (GET) ou adiciona (POST) veículos
func (s *Server) vehicles(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		ownerID := r.URL.Query().Get("ownerId")
		if ownerID == "" {
			http.Error(w, "ownerId required", http.StatusBadRequest)
			return
		}
		vs, err := s.repo.ListVehicles(r.Context(), ownerID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		out := make([]dto.VehicleResponse, 0, len(vs))
		for _, v := range vs {
			out = append(out, vehicleResponse(v))
		}
		writeJSON(w, out)
	case http.MethodPost:
		var req dto.AddVehicleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		if req.OwnerID == "" || req.Make == "" || req.Model == "" || req.ValueCR <= 0 {
			http.Error(w, "invalid payload", http.StatusBadRequest)
			return
		}
		if _, err := s.repo.GetOrCreateProfile(r.Context(), req.OwnerID); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		id, err := s.repo.AddVehicle(r.Context(), &repo.Vehicle{
			OwnerID:     req.OwnerID,
			Make:        req.Make,
			Model:       req.Model,
			Year:        req.Year,
			PI:          req.PI,
			Condition:   req.Condition,
			ValueCR:     req.ValueCR,
			AcquiredVia: "purchase",
		})
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, map[string]string{"vehicleId": id})
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// getVehicle retorna um veículo pelo id
// path: /garage/vehicles/{id}
func (s *Server) getVehicle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/garage/vehicles/")
	if id == "" {
		http.Error(w, "vehicleId required", http.StatusBadRequest)
		return
	}
	v, err := s.repo.GetVehicle(r.Context(), id)
	if err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	writeJSON(w, vehicleResponse(v))
}

// addItem insere uma peça ou cosmético no inventário
func (s *Server) addItem(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var it repo.InventoryItem
	if err := json.NewDecoder(r.Body).Decode(&it); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if it.OwnerID == "" || (it.Kind != "part" && it.Kind != "cosmetic") || it.Name == "" {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	id, err := s.repo.AddItem(r.Context(), &it)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]string{"itemId": id})
}

// eligibility devolve o retrato de elegibilidade usado pelo wager-service
func (s *Server) eligibility(w http.ResponseWriter, r *http.Request) {
	playerID := r.URL.Query().Get("playerId")
	vehicleID := r.URL.Query().Get("vehicleId")
	if playerID == "" || vehicleID == "" {
		http.Error(w, "playerId and vehicleId required", http.StatusBadRequest)
		return
	}
	snap, err := s.repo.EligibilityData(r.Context(), playerID, vehicleID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, dto.EligibilityDataResponse{
		VehicleID:      snap.VehicleID,
		VehiclePI:      snap.VehiclePI,
		VehicleValueCR: snap.VehicleValueCR,
		Staked:         snap.StakeRef != "",
		TradeLocked:    snap.TradeLocked,
		OwnerID:        snap.OwnerID,
		OwnerRepTier:   snap.OwnerRepTier,
		OwnedVehicles:  snap.OwnedVehicles,
		CooldownActive: snap.CooldownActive,
	})
}

// transfer executa a troca de posse de um pink slip (ponto sem retorno)
func (s *Server) transfer(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req dto.TransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if req.RaceID == "" || req.WinnerID == "" || req.LoserID == "" || req.VehicleID == "" {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	id, err := s.repo.ExecuteTransfer(r.Context(), repo.TransferRequest{
		WagerID:   req.WagerID,
		RaceID:    req.RaceID,
		WinnerID:  req.WinnerID,
		LoserID:   req.LoserID,
		VehicleID: req.VehicleID,
		TrackID:   req.TrackID,
		MarginMS:  req.MarginMS,
		Witnesses: req.Witnesses,
	})
	if err != nil {
		switch {
		case errors.Is(err, repo.ErrAlreadyTransferred):
			http.Error(w, err.Error(), http.StatusConflict)
		case errors.Is(err, repo.ErrNotFound), errors.Is(err, repo.ErrNotOwner):
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		default:
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}
	writeJSON(w, dto.TransferResponse{TransferID: id, Status: "TRANSFERRED"})
}

// mechanicJobs abre (POST) ou lista (GET) serviços de oficina
func (s *Server) mechanicJobs(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var req dto.StartMechanicJobRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		if req.PlayerID == "" || req.VehicleID == "" || req.JobType == "" {
			http.Error(w, "invalid payload", http.StatusBadRequest)
			return
		}
		job, err := s.repo.StartMechanicJob(r.Context(), req.PlayerID, req.VehicleID, req.JobType)
		if err != nil {
			status := http.StatusConflict
			if errors.Is(err, repo.ErrNotFound) {
				status = http.StatusNotFound
			}
			http.Error(w, err.Error(), status)
			return
		}
		writeJSON(w, dto.MechanicJobResponse{
			ID: job.ID, VehicleID: job.VehicleID, JobType: job.JobType, CostCR: job.CostCR,
			StartedAt: job.StartedAt, FinishesAt: job.FinishesAt, Status: job.Status,
		})
	case http.MethodGet:
		playerID := r.URL.Query().Get("playerId")
		if playerID == "" {
			http.Error(w, "playerId required", http.StatusBadRequest)
			return
		}
		jobs, err := s.repo.ListMechanicJobs(r.Context(), playerID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		out := make([]dto.MechanicJobResponse, 0, len(jobs))
		for _, j := range jobs {
			out = append(out, dto.MechanicJobResponse{
				ID: j.ID, VehicleID: j.VehicleID, JobType: j.JobType, CostCR: j.CostCR,
				StartedAt: j.StartedAt, FinishesAt: j.FinishesAt, Status: j.Status,
			})
		}
		writeJSON(w, out)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// pinkSlipHistory lista o histórico de trocas de posse do jogador
func (s *Server) pinkSlipHistory(w http.ResponseWriter, r *http.Request) {
	playerID := r.URL.Query().Get("playerId")
	if playerID == "" {
		http.Error(w, "playerId required", http.StatusBadRequest)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	ts, err := s.repo.ListTransfers(r.Context(), playerID, limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	out := make([]dto.PinkSlipHistoryEntry, 0, len(ts))
	for _, t := range ts {
		out = append(out, dto.PinkSlipHistoryEntry{
			TransferID: t.ID, WagerID: t.WagerID, RaceID: t.RaceID,
			WinnerID: t.WinnerID, LoserID: t.LoserID, VehicleID: t.VehicleID,
			VehicleValueCR: t.VehicleValueCR, TrackID: t.TrackID,
			MarginMS: t.MarginMS, Witnesses: t.Witnesses, CreatedAt: t.CreatedAt,
		})
	}
	writeJSON(w, out)
}

func vehicleResponse(v repo.Vehicle) dto.VehicleResponse {
	return dto.VehicleResponse{
		ID: v.ID, OwnerID: v.OwnerID, Make: v.Make, Model: v.Model, Year: v.Year,
		PI: v.PI, Condition: v.Condition, ValueCR: v.ValueCR, AcquiredVia: v.AcquiredVia,
		Staked: v.StakeRef != "", CreatedAt: v.CreatedAt,
	}
}

// writeJSON serializa e envia resposta JSON
func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
