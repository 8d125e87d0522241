package handler

import (
	"net/http"

	"github.com/shopspring/decimal"
)

type rewardTierResponse struct {
	MinSubtotal decimal.Decimal `json:"min_subtotal"`
	Bonus       decimal.Decimal `json:"bonus"`
}

func (h *Handler) getRewardTiers(w http.ResponseWriter, _ *http.Request) {
	tiers := h.rewards.Tiers()

	out := make([]rewardTierResponse, len(tiers))
	for i, t := range tiers {
		out[i] = rewardTierResponse{MinSubtotal: t.MinSubtotal, Bonus: t.Bonus}
	}

	writeJSON(w, http.StatusOK, out)
}
