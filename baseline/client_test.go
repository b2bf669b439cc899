package baseline_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/settlement-engine/baseline"
	"github.com/warp/settlement-engine/settlement"
)

var request = settlement.Request{
	Employee:        "EMP-001",
	TransactionDate: settlement.NewDate(2024, time.June, 30),
}

func TestClient_FetchUnwrapsEnvelope(t *testing.T) {
	// GIVEN: A service answering in the message envelope
	var gotPath, gotAuth string
	var gotBody map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"message": {
			"ok": true,
			"as_of_date": "2024-06-30",
			"service": {"years": 2, "months": "3", "days": 10, "custom_total_of_years": 2.27},
			"totals": {"leave_encashment_amount": 1500, "total_payable": 4500},
			"payables": [
				{"component": "Worked Day", "day_count": 31, "rate_per_day": 100},
				{"component": "Leave Encashment", "amount": "1500", "day_count": null}
			]
		}}`))
	}))
	defer srv.Close()

	client := baseline.NewClient(srv.URL+"/", baseline.WithToken("key:secret"))

	// WHEN
	payload, err := client.Fetch(context.Background(), request)
	require.NoError(t, err)

	// THEN: The request carried employee, date and token
	assert.Equal(t, baseline.DefaultMethod, gotPath)
	assert.Equal(t, "token key:secret", gotAuth)
	assert.Equal(t, map[string]string{"employee": "EMP-001", "transaction_date": "2024-06-30"}, gotBody)

	// AND: The payload decoded with presence preserved
	require.NotNil(t, payload)
	assert.True(t, payload.OK)
	assert.Equal(t, "2024-06-30", payload.AsOfDate)
	require.Len(t, payload.Payables, 2)
	assert.True(t, payload.Payables[0].RatePerDay.Valid)
	assert.False(t, payload.Payables[1].DayCount.Valid)
	assert.Equal(t, "1500", payload.Payables[1].Amount.Decimal().String())
	assert.Equal(t, "3", payload.Service.Months.Decimal().String())
}

func TestClient_CustomMethod(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte(`{"ok": false, "msg": "Employee not found"}`))
	}))
	defer srv.Close()

	client := baseline.NewClient(srv.URL, baseline.WithMethod("/fnf/payload"))
	payload, err := client.Fetch(context.Background(), request)

	require.NoError(t, err)
	assert.Equal(t, "/fnf/payload", gotPath)
	assert.False(t, payload.OK)
	assert.Equal(t, "Employee not found", payload.Msg)
}

func TestClient_TransportErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}},
		{"forbidden", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "not permitted", http.StatusForbidden)
		}},
		{"malformed body", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"message": `))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			_, err := baseline.NewClient(srv.URL).Fetch(context.Background(), request)

			assert.ErrorIs(t, err, settlement.ErrTransportFailure)
			var terr *settlement.TransportError
			require.True(t, errors.As(err, &terr))
			assert.Equal(t, "EMP-001", terr.Employee)
		})
	}
}

func TestClient_UnreachableIsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := baseline.NewClient(url, baseline.WithTimeout(time.Second)).Fetch(context.Background(), request)

	assert.ErrorIs(t, err, settlement.ErrTransportFailure)
}

func TestDecodePayload(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		wantOK *bool
	}{
		{"empty body", ``, nil},
		{"null body", `null`, nil},
		{"null message", `{"message": null}`, nil},
		{"envelope", `{"message": {"ok": true}}`, boolPtr(true)},
		{"bare payload", `{"ok": false, "msg": "Employee not found"}`, boolPtr(false)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := baseline.DecodePayload([]byte(tt.raw))
			require.NoError(t, err)
			if tt.wantOK == nil {
				assert.Nil(t, p)
				return
			}
			require.NotNil(t, p)
			assert.Equal(t, *tt.wantOK, p.OK)
		})
	}
}

func TestDecodePayload_Malformed(t *testing.T) {
	_, err := baseline.DecodePayload([]byte(`[1, 2`))
	assert.Error(t, err)
}

func boolPtr(b bool) *bool { return &b }
