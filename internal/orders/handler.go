package orders

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/joao-fontenele/bakery-checkout/internal/auth"
	"github.com/joao-fontenele/bakery-checkout/internal/domain"
)

type Handler struct {
	svc    *Service
	logger *slog.Logger
}

func NewHandler(svc *Service, logger *slog.Logger) *Handler {
	return &Handler{
		svc:    svc,
		logger: logger,
	}
}

// Routes registers the order and payment endpoints. wrap is applied to every route and
// is expected to authenticate the request.
func (h *Handler) Routes(mux *http.ServeMux, wrap func(http.Handler) http.Handler) {
	handle := func(pattern string, fn http.HandlerFunc) {
		mux.Handle(pattern, wrap(fn))
	}

	handle("POST /api/orders/cod", h.HandlePlaceCOD)
	handle("POST /api/orders/cod/buy-now", h.HandlePlaceCODBuyNow)
	handle("GET /api/orders", h.HandleList)
	handle("GET /api/orders/{id}", h.HandleGet)
	handle("GET /api/orders/number/{orderNumber}", h.HandleGetByNumber)
	handle("POST /api/orders/{id}/cancel", h.HandleCancel)
	handle("PUT /api/orders/{id}/status", h.HandleUpdateStatus)

	handle("POST /api/payment/create-order", h.HandleCreatePayment)
	handle("POST /api/payment/create-order/buy-now", h.HandleCreatePaymentBuyNow)
	handle("POST /api/payment/verify", h.HandleVerify)
	handle("POST /api/payment/failure", h.HandleFailure)
	handle("GET /api/payment/config", h.HandleConfig)
}

func (h *Handler) HandlePlaceCOD(w http.ResponseWriter, r *http.Request) {
	h.placeCOD(w, r, nil)
}

func (h *Handler) HandlePlaceCODBuyNow(w http.ResponseWriter, r *http.Request) {
	buyNow, err := parseBuyNow(r)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	h.placeCOD(w, r, buyNow)
}

func (h *Handler) placeCOD(w http.ResponseWriter, r *http.Request, buyNow *BuyNow) {
	req, ok := h.checkoutRequest(w, r, buyNow)
	if !ok {
		return
	}

	view, err := h.svc.PlaceCOD(context.WithoutCancel(r.Context()), req)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, placedResponse{
		Message:     "Order placed successfully",
		OrderNumber: view.Order.OrderNumber,
		OrderID:     view.Order.ID,
		Order:       newOrderDTO(*view),
	})
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	views, err := h.svc.List(r.Context(), caller)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	out := make([]orderDTO, 0, len(views))
	for _, v := range views {
		out = append(out, newOrderDTO(v))
	}

	h.logger.InfoContext(r.Context(), "orders listed", "count", len(out), "user_id", caller.User.ID)
	h.writeJSON(w, http.StatusOK, out)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	view, err := h.svc.Get(r.Context(), caller, id)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, newOrderDTO(*view))
}

func (h *Handler) HandleGetByNumber(w http.ResponseWriter, r *http.Request) {
	orderNumber := r.PathValue("orderNumber")
	if orderNumber == "" {
		h.writeError(w, http.StatusBadRequest, "missing order number")
		return
	}
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	view, err := h.svc.GetByNumber(r.Context(), caller, orderNumber)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, newOrderDTO(*view))
}

func (h *Handler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	view, err := h.svc.Cancel(context.WithoutCancel(r.Context()), caller, id)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, cancelResponse{
		Message: "Order cancelled successfully",
		Order:   newOrderDTO(*view),
	})
}

func (h *Handler) HandleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	view, err := h.svc.AdminUpdate(context.WithoutCancel(r.Context()), caller, id, req.Status, req.PaymentStatus)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, newOrderDTO(*view))
}

// caller resolves the token subject to a stored user.
func (h *Handler) caller(w http.ResponseWriter, r *http.Request) (Caller, bool) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "unauthorized")
		return Caller{}, false
	}

	caller, err := h.svc.ResolveCaller(r.Context(), claims.Email())
	if err != nil {
		h.writeDomainError(w, r, err)
		return Caller{}, false
	}
	return caller, true
}

func (h *Handler) checkoutRequest(w http.ResponseWriter, r *http.Request, buyNow *BuyNow) (CheckoutRequest, bool) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "unauthorized")
		return CheckoutRequest{}, false
	}

	var body shippingRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return CheckoutRequest{}, false
	}

	return CheckoutRequest{
		Email:    claims.Email(),
		BuyNow:   buyNow,
		Shipping: body.toDomain(),
	}, true
}

func parseBuyNow(r *http.Request) (*BuyNow, error) {
	query := r.URL.Query()

	raw := query.Get("productId")
	if raw == "" {
		return nil, domain.Invalid("missing_product_id", "productId is required")
	}
	productID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, domain.Invalid("invalid_product_id", "productId must be a number")
	}

	quantity := 1
	if raw := query.Get("quantity"); raw != "" {
		quantity, err = strconv.Atoi(raw)
		if err != nil {
			return nil, domain.Invalid("invalid_quantity", "quantity must be a number")
		}
	}

	return &BuyNow{ProductID: productID, Quantity: quantity}, nil
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		return 0, domain.Invalid("invalid_order_id", "invalid order id")
	}
	return id, nil
}

func statusFor(err error) (int, string) {
	var de *domain.Error
	if !errors.As(err, &de) {
		return http.StatusInternalServerError, "internal server error"
	}

	switch de.Kind {
	case domain.KindNotFound:
		return http.StatusNotFound, de.Message
	case domain.KindForbidden:
		return http.StatusForbidden, de.Message
	case domain.KindInvalid, domain.KindInvalidState, domain.KindSignatureInvalid:
		return http.StatusBadRequest, de.Message
	case domain.KindUpstream:
		return http.StatusBadGateway, de.Message
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

func (h *Handler) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status, message := statusFor(err)
	h.logError(r, status, err)
	h.writeError(w, status, message)
}

func (h *Handler) logError(r *http.Request, status int, err error) {
	if status >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "request failed", "error", err, "status", status, "path", r.URL.Path)
		return
	}
	h.logger.InfoContext(r.Context(), "request rejected", "error", err, "status", status, "path", r.URL.Path)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
