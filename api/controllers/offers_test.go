package controllers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boostlocal/boost-api/internal/offers"
	"github.com/boostlocal/boost-api/pkg/enums"
	pkgerrors "github.com/boostlocal/boost-api/pkg/errors"
)

func TestOfferCreateUsesAdminMerchant(t *testing.T) {
	merchantID := uuid.New()
	svc := &stubOfferService{offer: &offers.OfferDTO{ID: uuid.New(), MerchantID: merchantID}}
	handler := OfferCreate(svc, nil)

	body := `{"name":"Free Coffee","discount_text":"One free drip coffee","cap_daily":50,"value_per_redemption":"2.50","active_hours":"9am-2pm"}`
	req := httptest.NewRequest(http.MethodPost, "/offers", strings.NewReader(body))
	req = withActor(req, adminActor(merchantID))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, merchantID, svc.gotCreate.MerchantID)
	assert.Equal(t, 50, svc.gotCreate.CapDaily)
	assert.Equal(t, "2.5", svc.gotCreate.ValuePerRedemption.String())
	require.NotNil(t, svc.gotCreate.ActiveHours)
	assert.Equal(t, "9am-2pm", *svc.gotCreate.ActiveHours)
}

func TestOfferCreateOwnerNeedsMerchant(t *testing.T) {
	svc := &stubOfferService{}
	handler := OfferCreate(svc, nil)

	body := `{"name":"Free Coffee","discount_text":"One free drip coffee","cap_daily":50,"value_per_redemption":2.5}`
	req := httptest.NewRequest(http.MethodPost, "/offers", strings.NewReader(body))
	req = withActor(req, ownerActor())
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "merchant_id is required")
}

func TestOfferCreateRejectsZeroCap(t *testing.T) {
	handler := OfferCreate(&stubOfferService{}, nil)

	body := `{"merchant_id":"` + uuid.NewString() + `","name":"Free Coffee","discount_text":"x","cap_daily":0,"value_per_redemption":1}`
	req := httptest.NewRequest(http.MethodPost, "/offers", strings.NewReader(body))
	req = withActor(req, ownerActor())
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOfferUpdatePassesStatus(t *testing.T) {
	offerID := uuid.New()
	svc := &stubOfferService{offer: &offers.OfferDTO{ID: offerID, Status: enums.OfferStatusPaused}}
	handler := OfferUpdate(svc, nil)

	req := httptest.NewRequest(http.MethodPatch, "/offers/"+offerID.String(), strings.NewReader(`{"status":"paused","cap_daily":10}`))
	req = withURLParam(withActor(req, ownerActor()), "id", offerID.String())
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, offerID, svc.gotOfferID)
	require.NotNil(t, svc.gotUpdate.Status)
	assert.Equal(t, enums.OfferStatusPaused, *svc.gotUpdate.Status)
	require.NotNil(t, svc.gotUpdate.CapDaily)
	assert.Equal(t, 10, *svc.gotUpdate.CapDaily)
	assert.Nil(t, svc.gotUpdate.Name)
}

func TestOfferUpdateMapsStateConflict(t *testing.T) {
	offerID := uuid.New()
	svc := &stubOfferService{err: pkgerrors.New(pkgerrors.CodeStateConflict, "Offer has expired")}
	handler := OfferUpdate(svc, nil)

	req := httptest.NewRequest(http.MethodPatch, "/offers/"+offerID.String(), strings.NewReader(`{"name":"New"}`))
	req = withURLParam(req, "id", offerID.String())
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestOfferGetRejectsBadID(t *testing.T) {
	handler := OfferGet(&stubOfferService{}, nil)

	req := withURLParam(httptest.NewRequest(http.MethodGet, "/offers/nope", nil), "id", "nope")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOfferDeleteAndList(t *testing.T) {
	offerID := uuid.New()
	merchantID := uuid.New()
	svc := &stubOfferService{
		deleted: &offers.DeleteResult{Deleted: true, ID: offerID},
		list:    &offers.ListResult{Offers: []offers.OfferDTO{}, Limit: 50},
	}

	req := withURLParam(httptest.NewRequest(http.MethodDelete, "/offers/"+offerID.String(), nil), "id", offerID.String())
	rec := httptest.NewRecorder()
	OfferDelete(svc, nil).ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"deleted":true,"id":"`+offerID.String()+`"}`, rec.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/offers?merchant_id="+merchantID.String(), nil)
	rec = httptest.NewRecorder()
	OfferList(svc, nil).ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, svc.gotScope)
	assert.Equal(t, merchantID, *svc.gotScope)
	assert.Equal(t, 50, svc.gotPage.Limit)
}
