package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/xenking/promo-engine/internal/domain/coupon"
	"github.com/xenking/promo-engine/internal/memstore"
)

func newTestRouter(t *testing.T) chi.Router {
	t.Helper()

	svc := coupon.NewService(memstore.NewStore(), memstore.NewLedger())
	h, err := New(svc, noop.NewMeterProvider().Meter("test"))
	require.NoError(t, err)
	return h.Routes()
}

func doJSON(t *testing.T, r chi.Router, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("{}")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func couponJSON(code string, extra string) string {
	from := time.Now().Add(-time.Hour).UTC().Format(time.RFC3339)
	until := time.Now().Add(24 * time.Hour).UTC().Format(time.RFC3339)
	base := `"code":"` + code + `","discountType":"FLAT","discountValue":10,` +
		`"validFrom":"` + from + `","validUntil":"` + until + `"`
	if extra != "" {
		base += "," + extra
	}
	return "{" + base + "}"
}

func TestCouponCRUD(t *testing.T) {
	t.Run("create returns stored coupon", func(t *testing.T) {
		r := newTestRouter(t)

		rec := doJSON(t, r, http.MethodPost, "/coupons", couponJSON("save10", ""))
		require.Equal(t, http.StatusCreated, rec.Code)

		body := decodeBody(t, rec)
		assert.Equal(t, "SAVE10", body["code"])
		assert.Equal(t, "FLAT", body["discountType"])
		assert.Equal(t, true, body["isActive"])
		// Optional fields stay off the wire when unset.
		assert.NotContains(t, body, "maxDiscountAmount")
		assert.NotContains(t, body, "usageLimitPerUser")
		assert.NotContains(t, body, "eligibility")
	})

	t.Run("create duplicate conflicts", func(t *testing.T) {
		r := newTestRouter(t)

		rec := doJSON(t, r, http.MethodPost, "/coupons", couponJSON("SAVE10", ""))
		require.Equal(t, http.StatusCreated, rec.Code)

		rec = doJSON(t, r, http.MethodPost, "/coupons", couponJSON("SAVE10", ""))
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("create rejects out-of-range fields", func(t *testing.T) {
		r := newTestRouter(t)

		payload := strings.Replace(couponJSON("SAVE10", ""), `"discountValue":10`, `"discountValue":-10`, 1)
		rec := doJSON(t, r, http.MethodPost, "/coupons", payload)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

		body := decodeBody(t, rec)
		assert.Contains(t, body["message"], "DiscountValue")
	})

	t.Run("create rejects malformed payload", func(t *testing.T) {
		r := newTestRouter(t)

		rec := doJSON(t, r, http.MethodPost, "/coupons", `{"code":`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("get by code", func(t *testing.T) {
		r := newTestRouter(t)
		doJSON(t, r, http.MethodPost, "/coupons", couponJSON("SAVE10", `"description":"ten off"`))

		rec := doJSON(t, r, http.MethodGet, "/coupons/save10", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "ten off", decodeBody(t, rec)["description"])
	})

	t.Run("get unknown code", func(t *testing.T) {
		r := newTestRouter(t)

		rec := doJSON(t, r, http.MethodGet, "/coupons/NOPE", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("list preserves creation order", func(t *testing.T) {
		r := newTestRouter(t)
		for _, code := range []string{"ZULU", "ALPHA"} {
			rec := doJSON(t, r, http.MethodPost, "/coupons", couponJSON(code, ""))
			require.Equal(t, http.StatusCreated, rec.Code)
		}

		rec := doJSON(t, r, http.MethodGet, "/coupons", "")
		require.Equal(t, http.StatusOK, rec.Code)

		var list []map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
		require.Len(t, list, 2)
		assert.Equal(t, "ZULU", list[0]["code"])
		assert.Equal(t, "ALPHA", list[1]["code"])
	})

	t.Run("update replaces definition", func(t *testing.T) {
		r := newTestRouter(t)
		doJSON(t, r, http.MethodPost, "/coupons", couponJSON("SAVE10", ""))

		rec := doJSON(t, r, http.MethodPut, "/coupons/SAVE10", couponJSON("IGNORED", `"description":"new text"`))
		require.Equal(t, http.StatusOK, rec.Code)

		body := decodeBody(t, rec)
		assert.Equal(t, "SAVE10", body["code"])
		assert.Equal(t, "new text", body["description"])
	})

	t.Run("update unknown code", func(t *testing.T) {
		r := newTestRouter(t)

		rec := doJSON(t, r, http.MethodPut, "/coupons/NOPE", couponJSON("NOPE", ""))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("delete", func(t *testing.T) {
		r := newTestRouter(t)
		doJSON(t, r, http.MethodPost, "/coupons", couponJSON("SAVE10", ""))

		rec := doJSON(t, r, http.MethodDelete, "/coupons/SAVE10", "")
		require.Equal(t, http.StatusNoContent, rec.Code)

		rec = doJSON(t, r, http.MethodGet, "/coupons/SAVE10", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)

		rec = doJSON(t, r, http.MethodDelete, "/coupons/SAVE10", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestSelectEndpoint(t *testing.T) {
	selectReq := `{
		"user": {"userId": "u1", "userTier": "Gold", "country": "IN"},
		"cart": [{"productId": "tv", "category": "electronics", "unitPrice": 500, "quantity": 1}]
	}`

	t.Run("returns best offer with final price", func(t *testing.T) {
		r := newTestRouter(t)
		doJSON(t, r, http.MethodPost, "/coupons", couponJSON("SAVE10", ""))
		doJSON(t, r, http.MethodPost, "/coupons", strings.Replace(
			couponJSON("SUMMER20", `"maxDiscountAmount":50`),
			`"discountType":"FLAT","discountValue":10`,
			`"discountType":"PERCENT","discountValue":20`, 1))

		rec := doJSON(t, r, http.MethodPost, "/coupons/select", selectReq)
		require.Equal(t, http.StatusOK, rec.Code)

		body := decodeBody(t, rec)
		sel, ok := body["coupon"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "SUMMER20", sel["code"])
		assert.EqualValues(t, 50, body["discountAmount"])
		assert.EqualValues(t, 450, body["finalPrice"])
	})

	t.Run("no applicable coupon is 204", func(t *testing.T) {
		r := newTestRouter(t)

		rec := doJSON(t, r, http.MethodPost, "/coupons/select", selectReq)
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})

	t.Run("invalid cart is 422", func(t *testing.T) {
		r := newTestRouter(t)

		req := strings.Replace(selectReq, `"quantity": 1`, `"quantity": 0`, 1)
		rec := doJSON(t, r, http.MethodPost, "/coupons/select", req)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})

	t.Run("missing user is 422", func(t *testing.T) {
		r := newTestRouter(t)

		rec := doJSON(t, r, http.MethodPost, "/coupons/select", `{"cart":[{"productId":"p","unitPrice":10,"quantity":1}]}`)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})

	t.Run("malformed body is 400", func(t *testing.T) {
		r := newTestRouter(t)

		rec := doJSON(t, r, http.MethodPost, "/coupons/select", `{"user":`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestRedeemEndpoint(t *testing.T) {
	t.Run("redeem counts against the usage limit", func(t *testing.T) {
		r := newTestRouter(t)
		doJSON(t, r, http.MethodPost, "/coupons", couponJSON("ONCE", `"usageLimitPerUser":1`))

		selectReq := `{
			"user": {"userId": "u1"},
			"cart": [{"productId": "p", "unitPrice": 100, "quantity": 1}]
		}`

		rec := doJSON(t, r, http.MethodPost, "/coupons/select", selectReq)
		require.Equal(t, http.StatusOK, rec.Code)

		rec = doJSON(t, r, http.MethodPost, "/coupons/ONCE/redeem", `{"userId":"u1"}`)
		require.Equal(t, http.StatusNoContent, rec.Code)

		rec = doJSON(t, r, http.MethodPost, "/coupons/select", selectReq)
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})

	t.Run("unknown code is 404", func(t *testing.T) {
		r := newTestRouter(t)

		rec := doJSON(t, r, http.MethodPost, "/coupons/NOPE/redeem", `{"userId":"u1"}`)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("missing userId is 400", func(t *testing.T) {
		r := newTestRouter(t)
		doJSON(t, r, http.MethodPost, "/coupons", couponJSON("SAVE10", ""))

		rec := doJSON(t, r, http.MethodPost, "/coupons/SAVE10/redeem", `{}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestCodecRoundTrip(t *testing.T) {
	r := newTestRouter(t)

	payload := couponJSON("FULL", strings.Join([]string{
		`"description":"everything set"`,
		`"maxDiscountAmount":12.5`,
		`"usageLimitPerUser":2`,
		`"isActive":false`,
		`"eligibility":{
			"allowedUserTiers":["Gold"],
			"minLifetimeSpend":100.5,
			"minOrdersPlaced":2,
			"firstOrderOnly":true,
			"allowedCountries":["IN"],
			"minCartValue":25,
			"minItemsCount":1,
			"applicableCategories":["books"],
			"excludedCategories":["gift-cards"]
		}`,
	}, ","))

	rec := doJSON(t, r, http.MethodPost, "/coupons", payload)
	require.Equal(t, http.StatusCreated, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, false, body["isActive"])
	assert.EqualValues(t, 12.5, body["maxDiscountAmount"])
	assert.EqualValues(t, 2, body["usageLimitPerUser"])

	el, ok := body["eligibility"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, []any{"Gold"}, el["allowedUserTiers"])
	assert.EqualValues(t, 100.5, el["minLifetimeSpend"])
	assert.Equal(t, true, el["firstOrderOnly"])
	assert.Equal(t, []any{"gift-cards"}, el["excludedCategories"])
}
