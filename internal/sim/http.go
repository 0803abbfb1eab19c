package sim

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/aradilov/lockfree"
)

func Router(w *World) http.Handler {
	r := chi.NewRouter()

	r.Use(Measure)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(2 * time.Second))

	r.Get("/v1/accounts", w.handleAccounts)
	r.Get("/v1/stats", w.handleStats)
	r.Get("/v1/tuning", w.handleTuningGet)
	r.Put("/v1/tuning", w.handleTuningPut)
	r.Delete("/v1/tuning", w.handleTuningDelete)

	r.Get("/healthz", func(rw http.ResponseWriter, _ *http.Request) {
		rw.WriteHeader(http.StatusOK)
		_, _ = rw.Write([]byte("ok"))
	})
	r.Handle("/metrics", MetricsHandler())
	return r
}

func writeJSON(rw http.ResponseWriter, code int, v any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(code)
	_ = json.NewEncoder(rw).Encode(v)
}

func (w *World) handleAccounts(rw http.ResponseWriter, _ *http.Request) {
	out := make([]account, 0, len(w.accounts))
	for i := range w.accounts {
		if a, ok := w.accounts[i].TryLoad(); ok {
			out = append(out, a)
		}
	}
	writeJSON(rw, http.StatusOK, out)
}

func (w *World) handleStats(rw http.ResponseWriter, _ *http.Request) {
	var slots lockfree.SlotStats
	for i := range w.accounts {
		st := w.accounts[i].Stats()
		slots.Stores += st.Stores
		slots.Swaps += st.Swaps
		slots.Updates += st.Updates
		slots.UpdateRetries += st.UpdateRetries
		slots.Resets += st.Resets
	}

	writeJSON(rw, http.StatusOK, struct {
		Accounts int                `json:"accounts"`
		Reads    uint64             `json:"reads"`
		Writes   uint64             `json:"writes"`
		Torn     uint64             `json:"torn_reads"`
		Slots    lockfree.SlotStats `json:"slots"`
		Profile  lockfree.SlotStats `json:"profile"`
	}{
		Accounts: len(w.accounts),
		Reads:    w.reads.Load(),
		Writes:   w.writes.Load(),
		Torn:     w.torn.Load(),
		Slots:    slots,
		Profile:  w.profile.Stats(),
	})
}

func (w *World) handleTuningGet(rw http.ResponseWriter, _ *http.Request) {
	t, ok := w.profile.TryLoad()
	if !ok {
		rw.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(rw, http.StatusOK, t)
}

func (w *World) handleTuningPut(rw http.ResponseWriter, r *http.Request) {
	var req struct {
		LoadShare  uint32 `json:"load_share"`
		WriteBurst uint32 `json:"write_burst"`
		MaxAmount  uint32 `json:"max_amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(rw, "bad tuning payload", http.StatusBadRequest)
		return
	}
	if req.LoadShare > 100 {
		http.Error(rw, "load_share must be 0..100", http.StatusBadRequest)
		return
	}

	gen := lockfree.Update(&w.profile, func(t *tuning) uint64 {
		g := t.Generation + 1
		t.Generation = g
		t.LoadShare = req.LoadShare
		t.WriteBurst = req.WriteBurst
		t.MaxAmount = req.MaxAmount
		return g
	})
	ProfileWrites.WithLabelValues("update").Inc()
	writeJSON(rw, http.StatusOK, map[string]uint64{"generation": gen})
}

func (w *World) handleTuningDelete(rw http.ResponseWriter, _ *http.Request) {
	w.profile.Reset()
	ProfileWrites.WithLabelValues("reset").Inc()
	rw.WriteHeader(http.StatusNoContent)
}
