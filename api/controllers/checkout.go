package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yshimada/furima-backend/api/responses"
	"github.com/yshimada/furima-backend/api/validators"
	checkoutsvc "github.com/yshimada/furima-backend/internal/checkout"
	"github.com/yshimada/furima-backend/pkg/db/models"
	"github.com/yshimada/furima-backend/pkg/enums"
	pkgerrors "github.com/yshimada/furima-backend/pkg/errors"
	"github.com/yshimada/furima-backend/pkg/logger"
)

type checkoutRequest struct {
	PaymentMethod      string  `json:"payment_method" validate:"required"`
	ShippingPostalCode string  `json:"shipping_postal_code" validate:"required"`
	ShippingAddress    string  `json:"shipping_address" validate:"required"`
	ShippingBuilding   *string `json:"shipping_building,omitempty"`
}

type orderResponse struct {
	OrderID        uuid.UUID           `json:"order_id"`
	ItemID         uuid.UUID           `json:"item_id"`
	TotalAmountYen int                 `json:"total_amount_yen"`
	PaymentStatus  enums.PaymentStatus `json:"payment_status"`
	TradeStatus    enums.TradeStatus   `json:"trade_status"`
	PaymentMethod  enums.PaymentMethod `json:"payment_method"`
	CreatedAt      time.Time           `json:"created_at"`
}

func newOrderResponse(order *models.Order) orderResponse {
	return orderResponse{
		OrderID:        order.ID,
		ItemID:         order.ItemID,
		TotalAmountYen: order.TotalAmountYen,
		PaymentStatus:  order.PaymentStatus,
		TradeStatus:    order.TradeStatus,
		PaymentMethod:  order.PaymentMethod,
		CreatedAt:      order.CreatedAt,
	}
}

// CheckoutCreate starts a hosted payment session for the item.
func CheckoutCreate(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		buyerID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		itemID, err := pathUUID(r, "itemId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload checkoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.CreateSession(r.Context(), checkoutsvc.CreateSessionInput{
			ItemID:             itemID,
			BuyerID:            buyerID,
			PaymentMethod:      enums.PaymentMethod(payload.PaymentMethod),
			ShippingPostalCode: payload.ShippingPostalCode,
			ShippingAddress:    payload.ShippingAddress,
			ShippingBuilding:   payload.ShippingBuilding,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

// CheckoutSuccess is the landing endpoint the gateway redirects to after
// payment. It re-checks the session with the gateway before trusting it.
func CheckoutSuccess(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		if _, err := actorID(r); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		itemID, err := pathUUID(r, "itemId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		sessionID := strings.TrimSpace(r.URL.Query().Get("session_id"))
		if sessionID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "session_id required"))
			return
		}

		order, err := svc.ConfirmSession(r.Context(), itemID, sessionID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newOrderResponse(order))
	}
}
