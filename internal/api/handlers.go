package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/cleared-dev/cashflow/internal/cashflow"
	"github.com/cleared-dev/cashflow/internal/ledger"
	"github.com/cleared-dev/cashflow/internal/model"
	"github.com/cleared-dev/cashflow/internal/reconcile"
)

const (
	maxHorizon  = 365
	maxInsights = 50
)

func window(svc *ledger.Service, r *http.Request) (cashflow.Window, error) {
	start, err := queryDate(r, "start")
	if err != nil {
		return cashflow.Window{}, err
	}
	end, err := queryDate(r, "end")
	if err != nil {
		return cashflow.Window{}, err
	}
	return svc.Window(start, end)
}

func dashboardHandler(svc *ledger.Service, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		win, err := window(svc, r)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		d, err := svc.Dashboard(r.Context(), win)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, d)
	}
}

type accountView struct {
	Name       string            `json:"name"`
	Role       model.AccountRole `json:"role"`
	Type       model.AccountType `json:"type"`
	LastFour   string            `json:"last_four,omitempty"`
	LedgerBase string            `json:"ledger_base"`
}

func listAccountsHandler(svc *ledger.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		out := []accountView{}
		for _, a := range svc.Accounts().All() {
			out = append(out, accountView{Name: a.Name, Role: a.Role, Type: a.Type, LastFour: a.LastFour, LedgerBase: a.LedgerBase})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func accountHandler(svc *ledger.Service, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		win, err := window(svc, r)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		s, err := svc.Account(r.Context(), chi.URLParam(r, "name"), win)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, s)
	}
}

func taxHandler(svc *ledger.Service, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		win, err := window(svc, r)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		s, err := svc.Tax(r.Context(), win)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, s)
	}
}

func creditCardHandler(svc *ledger.Service, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		asOf, err := queryDate(r, "as_of")
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		s, err := svc.CreditCard(r.Context(), asOf)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, s)
	}
}

type pairView struct {
	Token      string          `json:"token"`
	OutgoingID string          `json:"outgoing_id"`
	IncomingID string          `json:"incoming_id"`
	Amount     decimal.Decimal `json:"amount"`
}

type reconciliationResponse struct {
	reconcile.Status
	Pairs []pairView `json:"pairs"`
}

func reconciliationHandler(svc *ledger.Service, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		asOf, err := queryDate(r, "as_of")
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		st, pairs, err := svc.Reconciliation(r.Context(), asOf)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		resp := reconciliationResponse{Status: st, Pairs: []pairView{}}
		for _, p := range pairs {
			resp.Pairs = append(resp.Pairs, pairView{
				Token:      p.Token,
				OutgoingID: p.Outgoing.ID,
				IncomingID: p.Incoming.ID,
				Amount:     p.Incoming.Amount,
			})
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func classificationHandler(svc *ledger.Service, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := svc.ClassificationStatus(r.Context())
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, s)
	}
}

type reviewItem struct {
	ID          string          `json:"id"`
	Account     string          `json:"account_name"`
	Date        string          `json:"date"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Category    model.Category  `json:"category,omitempty"`
	Note        string          `json:"review_note"`
}

func reviewHandler(svc *ledger.Service, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		recs, err := svc.ReviewQueue(r.Context())
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		out := []reviewItem{}
		for _, rec := range recs {
			out = append(out, reviewItem{
				ID:          rec.ID,
				Account:     rec.AccountName,
				Date:        rec.Date.Format(cashflow.DateLayout),
				Description: rec.Description,
				Amount:      rec.Amount,
				Category:    rec.Category(),
				Note:        rec.ReviewNote,
			})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func forecastHandler(svc *ledger.Service, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		days, err := queryInt(r, "days", maxHorizon)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		points, err := svc.Forecast(r.Context(), days)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, points)
	}
}

func riskHandler(svc *ledger.Service, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		asOf, err := queryDate(r, "as_of")
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		ra, err := svc.Risk(r.Context(), asOf)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, ra)
	}
}

func insightsHandler(svc *ledger.Service, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, err := queryInt(r, "top", maxInsights)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		ins, err := svc.Insights(r.Context(), n)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, ins)
	}
}
