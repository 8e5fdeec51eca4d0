package handler

import (
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"weld/internal/contact/handler/mocks"
	"weld/internal/contact/locker"
	"weld/internal/contact/service"
	"weld/internal/contact/store"
	"weld/internal/jwtauth"
	"weld/pkg/testutil"

	pkgerrors "weld/pkg/domain-errors"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newMockedRouter wires the handler over a gomock Service for error-path
// tests.
func newMockedRouter(t *testing.T) (http.Handler, *mocks.MockService) {
	t.Helper()
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)
	mockService := mocks.NewMockService(ctrl)

	r := chi.NewRouter()
	New(mockService, discardLogger(), nil).Register(r)
	return r, mockService
}

// newLiveRouter wires the handler over the real service and an in-memory
// store for end-to-end request tests.
func newLiveRouter(t *testing.T, validator *jwtauth.Service) http.Handler {
	t.Helper()
	svc := service.New(store.NewMemory(), locker.NewMemory(), discardLogger(), nil, nil)
	r := chi.NewRouter()
	var h *Handler
	if validator != nil {
		h = New(svc, discardLogger(), validator)
	} else {
		h = New(svc, discardLogger(), nil)
	}
	h.Register(r)
	return r
}

type identifyResponse struct {
	Contact struct {
		PrimaryContatctID   int64    `json:"primaryContatctId"`
		Emails              []string `json:"emails"`
		PhoneNumbers        []string `json:"phoneNumbers"`
		SecondaryContactIDs []int64  `json:"secondaryContactIds"`
	} `json:"contact"`
}

func TestIdentifyCreatesPrimary(t *testing.T) {
	router := newLiveRouter(t, nil)

	req := testutil.NewJSONRequest(t, http.MethodPost, "/identify", map[string]any{
		"email": "a@x.com",
	})
	rr := testutil.DoRequest(router, req)

	testutil.AssertStatus(t, rr, http.StatusOK)
	resp := testutil.UnmarshalResponse[identifyResponse](t, rr)
	assert.Equal(t, []string{"a@x.com"}, resp.Contact.Emails)
	assert.Empty(t, resp.Contact.PhoneNumbers)
	assert.Empty(t, resp.Contact.SecondaryContactIDs)
	assert.NotZero(t, resp.Contact.PrimaryContatctID)
}

// The misspelled primaryContatctId key is a published contract; make sure
// serialization emits it literally.
func TestIdentifyResponseFieldSpelling(t *testing.T) {
	router := newLiveRouter(t, nil)

	req := testutil.NewJSONRequest(t, http.MethodPost, "/identify", map[string]any{
		"email": "a@x.com",
	})
	rr := testutil.DoRequest(router, req)

	testutil.AssertStatus(t, rr, http.StatusOK)
	raw := testutil.UnmarshalResponse[map[string]map[string]any](t, rr)
	contact, ok := (*raw)["contact"]
	require.True(t, ok)
	assert.Contains(t, contact, "primaryContatctId")
	assert.NotContains(t, contact, "primaryContactId")
}

func TestIdentifyNumericPhoneIsCoerced(t *testing.T) {
	router := newLiveRouter(t, nil)

	req := testutil.NewRequestWithBody(t, http.MethodPost, "/identify",
		`{"email":"a@x.com","phoneNumber":123456}`)
	rr := testutil.DoRequest(router, req)
	testutil.AssertStatus(t, rr, http.StatusOK)
	resp := testutil.UnmarshalResponse[identifyResponse](t, rr)
	assert.Equal(t, []string{"123456"}, resp.Contact.PhoneNumbers)

	// A string submission of the same digits matches the same cluster
	// instead of creating a new primary.
	req = testutil.NewJSONRequest(t, http.MethodPost, "/identify", map[string]any{
		"phoneNumber": "123456",
	})
	second := testutil.DoRequest(router, req)
	testutil.AssertStatus(t, second, http.StatusOK)
	secondResp := testutil.UnmarshalResponse[identifyResponse](t, second)
	assert.Equal(t, resp.Contact.PrimaryContatctID, secondResp.Contact.PrimaryContatctID)
}

func TestIdentifyLinksAndMerges(t *testing.T) {
	router := newLiveRouter(t, nil)

	seed := func(body map[string]any) *identifyResponse {
		rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/identify", body))
		testutil.AssertStatus(t, rr, http.StatusOK)
		return testutil.UnmarshalResponse[identifyResponse](t, rr)
	}

	a := seed(map[string]any{"email": "a@x.com"})
	b := seed(map[string]any{"phoneNumber": "999"})
	require.NotEqual(t, a.Contact.PrimaryContatctID, b.Contact.PrimaryContatctID)

	merged := seed(map[string]any{"email": "a@x.com", "phoneNumber": "999"})
	assert.Equal(t, a.Contact.PrimaryContatctID, merged.Contact.PrimaryContatctID)
	assert.Contains(t, merged.Contact.SecondaryContactIDs, b.Contact.PrimaryContatctID)
	assert.Equal(t, []string{"a@x.com"}, merged.Contact.Emails)
	assert.Equal(t, []string{"999"}, merged.Contact.PhoneNumbers)
}

func TestIdentifyValidation(t *testing.T) {
	router := newLiveRouter(t, nil)

	tests := []struct {
		name string
		body string
	}{
		{"empty object", `{}`},
		{"null fields", `{"email":null,"phoneNumber":null}`},
		{"empty strings", `{"email":"","phoneNumber":""}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := testutil.NewRequestWithBody(t, http.MethodPost, "/identify", tt.body)
			rr := testutil.DoRequest(router, req)
			testutil.AssertStatus(t, rr, http.StatusBadRequest)
			resp := testutil.UnmarshalResponse[map[string]string](t, rr)
			assert.Equal(t, "email or phoneNumber is required", (*resp)["error"])
		})
	}
}

func TestIdentifyMalformedBody(t *testing.T) {
	router := newLiveRouter(t, nil)

	req := testutil.NewRequestWithBody(t, http.MethodPost, "/identify", `{"email":`)
	rr := testutil.DoRequest(router, req)
	testutil.AssertStatus(t, rr, http.StatusBadRequest)
}

func TestIdentifyRejectsNonScalarPhone(t *testing.T) {
	router := newLiveRouter(t, nil)

	req := testutil.NewRequestWithBody(t, http.MethodPost, "/identify",
		`{"phoneNumber":{"digits":"123"}}`)
	rr := testutil.DoRequest(router, req)
	testutil.AssertStatus(t, rr, http.StatusBadRequest)
}

// Store failures surface as a plain 500 on /identify; the endpoint's
// published contract has no other failure status.
func TestIdentifyStoreFailureMapsTo500(t *testing.T) {
	router, mockService := newMockedRouter(t)
	mockService.EXPECT().
		Resolve(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, pkgerrors.New(pkgerrors.CodeUnavailable, "contact lookup failed"))

	req := testutil.NewJSONRequest(t, http.MethodPost, "/identify", map[string]any{
		"email": "a@x.com",
	})
	rr := testutil.DoRequest(router, req)

	testutil.AssertStatus(t, rr, http.StatusInternalServerError)
	resp := testutil.UnmarshalResponse[map[string]string](t, rr)
	assert.Equal(t, "internal server error", (*resp)["error"])
}

func TestAdminClusterRequiresToken(t *testing.T) {
	validator := jwtauth.NewService("test-key", "weld", "weld-admin")
	router := newLiveRouter(t, validator)

	req := testutil.NewJSONRequest(t, http.MethodGet, "/admin/contacts/1/cluster", nil)
	rr := testutil.DoRequest(router, req)
	testutil.AssertStatus(t, rr, http.StatusUnauthorized)
}

func TestAdminClusterWithToken(t *testing.T) {
	validator := jwtauth.NewService("test-key", "weld", "weld-admin")
	router := newLiveRouter(t, validator)

	// Seed a cluster through the public endpoint.
	seedReq := testutil.NewJSONRequest(t, http.MethodPost, "/identify", map[string]any{
		"email": "a@x.com", "phoneNumber": "123",
	})
	seeded := testutil.UnmarshalResponse[identifyResponse](t, testutil.DoRequest(router, seedReq))

	token, err := validator.GenerateToken("ops@x.com", time.Hour)
	require.NoError(t, err)

	req := testutil.NewJSONRequest(t, http.MethodGet, "/admin/contacts/1/cluster", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := testutil.DoRequest(router, req)

	testutil.AssertStatus(t, rr, http.StatusOK)
	resp := testutil.UnmarshalResponse[identifyResponse](t, rr)
	assert.Equal(t, seeded.Contact.PrimaryContatctID, resp.Contact.PrimaryContatctID)
}

func TestAdminClusterUnknownContact(t *testing.T) {
	validator := jwtauth.NewService("test-key", "weld", "weld-admin")
	router := newLiveRouter(t, validator)

	token, err := validator.GenerateToken("ops@x.com", time.Hour)
	require.NoError(t, err)

	req := testutil.NewJSONRequest(t, http.MethodGet, "/admin/contacts/42/cluster", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := testutil.DoRequest(router, req)
	testutil.AssertStatus(t, rr, http.StatusNotFound)
}

func TestAdminRoutesAbsentWithoutValidator(t *testing.T) {
	router := newLiveRouter(t, nil)

	req := testutil.NewJSONRequest(t, http.MethodGet, "/admin/contacts/1/cluster", nil)
	rr := testutil.DoRequest(router, req)
	testutil.AssertStatus(t, rr, http.StatusNotFound)
}
