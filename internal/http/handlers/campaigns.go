package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"crowdfund/internal/domain"
	"crowdfund/internal/escrow"
	"crowdfund/internal/middleware"
)

type createCampaignRequest struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Category     string   `json:"category"`
	TargetAmount uint64   `json:"target_amount"`
	Location     string   `json:"location"`
	Metrics      []string `json:"metrics"`
	MediaURIs    []string `json:"media_uris"`
}

type donateRequest struct {
	Amount uint64 `json:"amount"`
}

type withdrawRequest struct {
	Executor string `json:"executor"`
}

func (a *App) CampaignsCreate(w http.ResponseWriter, r *http.Request) {
	var req createCampaignRequest
	if !a.decode(w, r, &req) {
		return
	}
	c, err := a.Engine.CreateCampaign(r.Context(), middleware.CallerFromContext(r.Context()), escrow.CreateCampaignInput{
		ID:           req.ID,
		Name:         req.Name,
		Description:  req.Description,
		Category:     domain.Category(req.Category),
		TargetAmount: req.TargetAmount,
		Location:     req.Location,
		Metrics:      req.Metrics,
		MediaURIs:    req.MediaURIs,
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	w.Header().Set("Location", "/v1/campaigns/"+c.ID)
	a.json(w, http.StatusCreated, toCampaignView(c))
}

func (a *App) CampaignsGet(w http.ResponseWriter, r *http.Request) {
	c, err := a.Engine.GetCampaign(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, toCampaignView(c))
}

func (a *App) CampaignsDonate(w http.ResponseWriter, r *http.Request) {
	var req donateRequest
	if !a.decode(w, r, &req) {
		return
	}
	res, err := a.Engine.DonateToCampaign(r.Context(), middleware.CallerFromContext(r.Context()), chi.URLParam(r, "id"), req.Amount)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusCreated, map[string]any{
		"campaign": toCampaignView(res.Campaign),
		"receipt":  toReceiptView(res.Receipt),
		"funded":   res.Funded,
	})
}

func (a *App) CampaignsWithdraw(w http.ResponseWriter, r *http.Request) {
	var req withdrawRequest
	if !a.decode(w, r, &req) {
		return
	}
	res, err := a.Engine.WithdrawAndComplete(r.Context(), middleware.CallerFromContext(r.Context()), chi.URLParam(r, "id"), domain.Identity(req.Executor))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, toSettlementView(res))
}

func (a *App) CampaignsCancel(w http.ResponseWriter, r *http.Request) {
	if !a.decodeOptional(w, r, &struct{}{}) {
		return
	}
	res, err := a.Engine.CancelCampaign(r.Context(), middleware.CallerFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{
		"campaign": toCampaignView(res.Campaign),
		"closed":   res.Closed,
		"released": res.Released,
	})
}

func (a *App) CampaignsRefund(w http.ResponseWriter, r *http.Request) {
	if !a.decodeOptional(w, r, &struct{}{}) {
		return
	}
	res, err := a.Engine.ClaimRefund(r.Context(), middleware.CallerFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{
		"campaign": toCampaignView(res.Campaign),
		"receipt":  toReceiptView(res.Receipt),
		"amount":   res.Amount,
		"released": res.Released,
	})
}

func (a *App) ReceiptsGet(w http.ResponseWriter, r *http.Request) {
	rec, err := a.Engine.GetReceipt(r.Context(), chi.URLParam(r, "id"), domain.Identity(chi.URLParam(r, "donor")))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, toReceiptView(rec))
}
