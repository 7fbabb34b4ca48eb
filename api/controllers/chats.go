package controllers

import (
	"net/http"
	"strconv"

	"github.com/yshimada/furima-backend/api/responses"
	"github.com/yshimada/furima-backend/internal/orders"
	pkgerrors "github.com/yshimada/furima-backend/pkg/errors"
	"github.com/yshimada/furima-backend/pkg/logger"
	"github.com/yshimada/furima-backend/pkg/pagination"
)

// ChatSidebar lists the caller's live trades with per-trade unread counts.
func ChatSidebar(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		userID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		params := pagination.Params{Cursor: r.URL.Query().Get("cursor")}
		if raw := r.URL.Query().Get("limit"); raw != "" {
			limit, err := strconv.Atoi(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid limit"))
				return
			}
			params.Limit = limit
		}

		list, err := svc.ListTradingFor(r.Context(), userID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, list)
	}
}
