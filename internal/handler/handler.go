// Package handler exposes the coupon engine over HTTP: coupon CRUD, usage
// redemption, and best-offer selection.
package handler

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/xenking/promo-engine/internal/domain/coupon"
)

// maxBodyBytes bounds request payloads; carts and coupon definitions are
// small, so 1 MiB is generous.
const maxBodyBytes = 1 << 20

// Handler routes API requests to the coupon service.
type Handler struct {
	svc        *coupon.Service
	selections metric.Int64Counter
}

// New constructs a Handler. The meter records selection outcomes; pass a
// noop meter in tests.
func New(svc *coupon.Service, meter metric.Meter) (*Handler, error) {
	selections, err := meter.Int64Counter("promo.selections",
		metric.WithDescription("Best-offer selection requests by outcome"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create selections counter")
	}
	return &Handler{svc: svc, selections: selections}, nil
}

// Routes returns the chi router for the API surface.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Route("/coupons", func(r chi.Router) {
		r.Get("/", h.listCoupons)
		r.Post("/", h.createCoupon)
		r.Post("/select", h.selectBest)
		r.Route("/{code}", func(r chi.Router) {
			r.Get("/", h.getCoupon)
			r.Put("/", h.updateCoupon)
			r.Delete("/", h.deleteCoupon)
			r.Post("/redeem", h.redeem)
		})
	})
	return r
}

func (h *Handler) createCoupon(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	c, err := decodeCoupon(jx.DecodeBytes(body))
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed coupon payload")
		return
	}

	if err := h.svc.CreateCoupon(r.Context(), c); err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	created, err := h.svc.GetCoupon(r.Context(), c.Code)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) {
		encodeCoupon(e, created)
	})
}

func (h *Handler) updateCoupon(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	c, err := decodeCoupon(jx.DecodeBytes(body))
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed coupon payload")
		return
	}

	code := chi.URLParam(r, "code")
	if err := h.svc.UpdateCoupon(r.Context(), code, c); err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	updated, err := h.svc.GetCoupon(r.Context(), code)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		encodeCoupon(e, updated)
	})
}

func (h *Handler) deleteCoupon(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteCoupon(r.Context(), chi.URLParam(r, "code")); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) getCoupon(w http.ResponseWriter, r *http.Request) {
	c, err := h.svc.GetCoupon(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		encodeCoupon(e, c)
	})
}

func (h *Handler) listCoupons(w http.ResponseWriter, r *http.Request) {
	coupons, err := h.svc.ListCoupons(r.Context())
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ArrStart()
		for i := range coupons {
			encodeCoupon(e, &coupons[i])
		}
		e.ArrEnd()
	})
}

func (h *Handler) selectBest(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}

	var (
		user coupon.UserContext
		cart []coupon.CartLine
	)
	err = jx.DecodeBytes(body).Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "user":
			user, err = decodeUser(d)
		case "cart":
			cart, err = decodeCart(d)
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed selection request")
		return
	}

	sel, err := h.svc.SelectBest(r.Context(), user, cart)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	if sel == nil {
		// No applicable coupon is a normal outcome, not an error.
		h.countSelection(r, "none")
		w.WriteHeader(http.StatusNoContent)
		return
	}

	h.countSelection(r, "selected")
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		encodeSelection(e, sel, cart)
	})
}

func (h *Handler) redeem(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}

	var userID string
	err = jx.DecodeBytes(body).Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "userId":
			userID, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil || userID == "" {
		writeError(w, http.StatusBadRequest, "userId required")
		return
	}

	if err := h.svc.RecordUsage(r.Context(), chi.URLParam(r, "code"), userID); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) countSelection(r *http.Request, outcome string) {
	h.selections.Add(r.Context(), 1,
		metric.WithAttributes(attribute.String("outcome", outcome)),
	)
}

// writeDomainError maps engine errors onto status codes: duplicate codes
// conflict, unknown codes are not found, out-of-range fields are
// unprocessable, everything else is a 500 with the detail kept server-side.
func (h *Handler) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, coupon.ErrDuplicateCode):
		writeError(w, http.StatusConflict, "coupon code already exists")
	case errors.Is(err, coupon.ErrNotFound):
		writeError(w, http.StatusNotFound, "coupon not found")
	default:
		var fieldErr *coupon.InvalidFieldError
		if errors.As(err, &fieldErr) {
			writeError(w, http.StatusUnprocessableEntity, fieldErr.Error())
			return
		}
		zctx.From(r.Context()).Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return io.ReadAll(r.Body)
}

func writeJSON(w http.ResponseWriter, status int, encode func(e *jx.Encoder)) {
	var e jx.Encoder
	encode(&e)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("code")
		e.Int(status)
		e.FieldStart("message")
		e.Str(message)
		e.ObjEnd()
	})
}
