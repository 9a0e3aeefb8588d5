package orders

import (
	"context"
	"encoding/json"
	"net/http"
)

func (h *Handler) HandleCreatePayment(w http.ResponseWriter, r *http.Request) {
	h.createPayment(w, r, nil)
}

func (h *Handler) HandleCreatePaymentBuyNow(w http.ResponseWriter, r *http.Request) {
	buyNow, err := parseBuyNow(r)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	h.createPayment(w, r, buyNow)
}

func (h *Handler) createPayment(w http.ResponseWriter, r *http.Request, buyNow *BuyNow) {
	req, ok := h.checkoutRequest(w, r, buyNow)
	if !ok {
		return
	}

	checkout, err := h.svc.StartGatewayCheckout(context.WithoutCancel(r.Context()), req)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, newCheckoutResponse(checkout))
}

func (h *Handler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, paymentResponse{Message: "invalid request body"})
		return
	}

	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	order, err := h.svc.VerifyPayment(context.WithoutCancel(r.Context()), caller, Verification{
		GatewayOrderID: req.RazorpayOrderID,
		PaymentID:      req.RazorpayPaymentID,
		Signature:      req.RazorpaySignature,
	})
	if err != nil {
		status, message := statusFor(err)
		h.logError(r, status, err)
		h.writeJSON(w, status, paymentResponse{Success: false, Message: message})
		return
	}

	h.writeJSON(w, http.StatusOK, paymentResponse{
		Success:       true,
		Message:       "Payment successful",
		OrderNumber:   order.OrderNumber,
		OrderID:       order.ID,
		PaymentStatus: string(order.PaymentStatus),
		OrderStatus:   string(order.Status),
	})
}

func (h *Handler) HandleFailure(w http.ResponseWriter, r *http.Request) {
	var req failureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	order, err := h.svc.ReportFailure(context.WithoutCancel(r.Context()), caller, req.RazorpayOrderID, req.Reason)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, failureResponse{
		Success:     false,
		Message:     "Payment failed",
		OrderNumber: order.OrderNumber,
		OrderID:     order.ID,
	})
}

func (h *Handler) HandleConfig(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, configResponse{RazorpayKeyID: h.svc.PublicKeyID()})
}
