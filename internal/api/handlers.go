package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/example/ec-order-lifecycle/internal/api/middleware"
	"github.com/example/ec-order-lifecycle/internal/apperror"
	"github.com/example/ec-order-lifecycle/internal/catalog"
	"github.com/example/ec-order-lifecycle/internal/checkout"
	"github.com/example/ec-order-lifecycle/internal/domain/cart"
	"github.com/example/ec-order-lifecycle/internal/domain/order"
	"github.com/example/ec-order-lifecycle/internal/notification"
	"github.com/example/ec-order-lifecycle/internal/payment"
	"github.com/go-chi/chi/v5"
)

const smallBodyLimit = 64 << 10

type Handlers struct {
	carts         *cart.Service
	orders        *order.Service
	converter     *checkout.Converter
	notifications *notification.Service
	catalog       catalog.Catalog
	proofs        payment.ProofStore
	// checkoutBodyLimit bounds checkout bodies, which carry the screenshot
	checkoutBodyLimit int64
}

func NewHandlers(
	carts *cart.Service,
	orders *order.Service,
	converter *checkout.Converter,
	notifications *notification.Service,
	products catalog.Catalog,
	proofs payment.ProofStore,
	maxScreenshotBytes int,
) *Handlers {
	return &Handlers{
		carts:             carts,
		orders:            orders,
		converter:         converter,
		notifications:     notifications,
		catalog:           products,
		proofs:            proofs,
		checkoutBodyLimit: int64(maxScreenshotBytes)*4/3 + smallBodyLimit,
	}
}

// Cart Handlers

func (h *Handlers) GetCart(w http.ResponseWriter, r *http.Request) {
	c, err := h.carts.Get(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

func (h *Handlers) AddToCart(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ProductID string `json:"productId"`
		Size      string `json:"size"`
		Quantity  int    `json:"quantity"`
	}
	if !decodeJSON(w, r, smallBodyLimit, &req) {
		return
	}

	if req.ProductID != "" {
		if _, err := h.catalog.GetProduct(r.Context(), req.ProductID); err != nil {
			if errors.Is(err, catalog.ErrProductNotFound) {
				err = &apperror.NotFoundError{Resource: "product", ID: req.ProductID}
			}
			respondError(w, r, err)
			return
		}
	}

	c, err := h.carts.AddItem(r.Context(), middleware.GetUserID(r.Context()), req.ProductID, req.Size, req.Quantity)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

func (h *Handlers) RemoveFromCart(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productId")
	size := r.URL.Query().Get("size")

	c, err := h.carts.RemoveItem(r.Context(), middleware.GetUserID(r.Context()), productID, size)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

func (h *Handlers) ClearCart(w http.ResponseWriter, r *http.Request) {
	c, err := h.carts.Clear(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

// Checkout Handlers

type checkoutResponse struct {
	OrderID string       `json:"orderId"`
	Order   *order.Order `json:"order"`
}

func (h *Handlers) Checkout(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AddressID         string `json:"addressId"`
		PaymentMethod     string `json:"paymentMethod"`
		PaymentScreenshot string `json:"paymentScreenshot"`
	}
	if !decodeJSON(w, r, h.checkoutBodyLimit, &req) {
		return
	}

	claims, _ := middleware.GetUserFromContext(r.Context())
	result, err := h.converter.Checkout(r.Context(), checkout.Request{
		UserID:            claims.UserID,
		CustomerEmail:     claims.Email,
		AddressID:         req.AddressID,
		PaymentMethod:     order.PaymentMethod(strings.ToUpper(strings.TrimSpace(req.PaymentMethod))),
		PaymentScreenshot: req.PaymentScreenshot,
		IdempotencyKey:    strings.TrimSpace(r.Header.Get("Idempotency-Key")),
	})
	if err != nil {
		respondError(w, r, err)
		return
	}

	status := http.StatusCreated
	if result.Replayed {
		status = http.StatusOK
	}
	respondJSON(w, status, checkoutResponse{OrderID: result.Order.ID, Order: result.Order})
}

// Order Handlers

// visibleOrder loads the order named in the URL. Other customers' orders
// are reported as missing.
func (h *Handlers) visibleOrder(w http.ResponseWriter, r *http.Request) (*order.Order, bool) {
	orderID := chi.URLParam(r, "id")
	claims, _ := middleware.GetUserFromContext(r.Context())

	o, err := h.orders.Get(r.Context(), orderID)
	if err != nil {
		respondError(w, r, err)
		return nil, false
	}
	if o.UserID != claims.UserID && !claims.IsStaff() {
		respondError(w, r, &apperror.NotFoundError{Resource: "order", ID: orderID})
		return nil, false
	}
	return o, true
}

func (h *Handlers) GetOrder(w http.ResponseWriter, r *http.Request) {
	if o, ok := h.visibleOrder(w, r); ok {
		respondJSON(w, http.StatusOK, o)
	}
}

// GetPaymentProof serves the screenshot attached to an order
func (h *Handlers) GetPaymentProof(w http.ResponseWriter, r *http.Request) {
	o, ok := h.visibleOrder(w, r)
	if !ok {
		return
	}

	proof, err := h.proofs.Get(r.Context(), o.PaymentProof.Digest)
	if err != nil {
		if errors.Is(err, payment.ErrNotFound) {
			err = &apperror.NotFoundError{Resource: "payment screenshot", ID: o.ID}
		}
		respondError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", proof.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(proof.Data)))
	w.Header().Set("Cache-Control", "private, max-age=86400, immutable")
	w.Header().Set("ETag", `"`+proof.Digest+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(proof.Data)
}

func (h *Handlers) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status string `json:"status"`
	}
	if !decodeJSON(w, r, smallBodyLimit, &req) {
		return
	}

	o, err := h.orders.Transition(r.Context(), chi.URLParam(r, "id"), normalizeStatus(req.Status), middleware.GetUserID(r.Context()))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, o)
}

// Notification Handlers

type notificationView struct {
	notification.Notification
	Icon string `json:"icon"`
}

func toViews(notifications []notification.Notification) []notificationView {
	views := make([]notificationView, len(notifications))
	for i, n := range notifications {
		views[i] = notificationView{Notification: n, Icon: n.Type.Icon()}
	}
	return views
}

func (h *Handlers) ListNotifications(w http.ResponseWriter, r *http.Request) {
	unreadOnly := false
	if raw := r.URL.Query().Get("unread"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			respondMessage(w, http.StatusBadRequest, "unread must be a boolean")
			return
		}
		unreadOnly = v
	}

	result, err := h.notifications.List(r.Context(), middleware.GetUserID(r.Context()), unreadOnly)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"notifications": toViews(result.Notifications),
		"unreadCount":   result.UnreadCount,
	})
}

func (h *Handlers) UnreadCount(w http.ResponseWriter, r *http.Request) {
	count, err := h.notifications.UnreadCount(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"unreadCount": count})
}

func (h *Handlers) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	if err := h.notifications.MarkAsRead(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "id")); err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "Notification marked as read"})
}

func (h *Handlers) MarkAllNotificationsRead(w http.ResponseWriter, r *http.Request) {
	if _, err := h.notifications.MarkAllAsRead(r.Context(), middleware.GetUserID(r.Context())); err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "All notifications marked as read"})
}

func (h *Handlers) DeleteNotification(w http.ResponseWriter, r *http.Request) {
	if err := h.notifications.Remove(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "id")); err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "Notification deleted"})
}

func (h *Handlers) DeleteAllNotifications(w http.ResponseWriter, r *http.Request) {
	count, err := h.notifications.RemoveAll(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"message": "All notifications deleted", "count": count})
}
