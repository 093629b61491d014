package vindecode

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gustavo-camilo/dealer-copilot/internal/domain"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	return New(srv.URL, 2*time.Second, logger)
}

func decodePayload(rows map[string]string) map[string]any {
	results := make([]map[string]string, 0, len(rows))
	for variable, value := range rows {
		results = append(results, map[string]string{"Variable": variable, "Value": value})
	}
	return map[string]any{"Results": results}
}

func TestDecode(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/DecodeVin/1HGCV1F30LA012345"))
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(decodePayload(map[string]string{
			"Model Year": "2020",
			"Make":       "HONDA",
			"Model":      "accord",
			"Trim":       "sport",
		}))
	})

	d, err := c.Decode(context.Background(), "1HGCV1F30LA012345")
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, 2020, d.Year)
	assert.Equal(t, "Honda", d.Make)
	assert.Equal(t, "Accord", d.Model)
	assert.Equal(t, "Sport", d.Trim)
}

func TestDecodeRejectsMalformedVIN(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected for malformed input")
	})

	for _, vin := range []string{"", "SHORT", "1HGCV1F30LA01234", "1HGCV1F30LA0123456", "1HGCV1F3OLA012345"} {
		d, err := c.Decode(context.Background(), vin)
		assert.ErrorIs(t, err, ErrMalformedVIN, "vin %q", vin)
		assert.Nil(t, d)
	}
}

func TestDecodeTransportFailureReturnsNil(t *testing.T) {
	srv := httptest.NewServer(nil)
	srv.Close()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	c := New(srv.URL, time.Second, logger)

	d, err := c.Decode(context.Background(), "1HGCV1F30LA012345")
	assert.NoError(t, err)
	assert.Nil(t, d)
}

func TestDecodeEmptyResponseReturnsNil(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"Results": []any{}})
	})

	d, err := c.Decode(context.Background(), "1HGCV1F30LA012345")
	assert.NoError(t, err)
	assert.Nil(t, d)
}

func TestEnrichFillsOnlyMissingFields(t *testing.T) {
	v := &domain.ParsedVehicle{
		VIN:  "1HGCV1F30LA012345",
		Year: 2019, // listing said 2019; decode must not override
	}
	Enrich(v, &Decoded{Year: 2020, Make: "Honda", Model: "Accord", Trim: "Sport"})

	assert.Equal(t, 2019, v.Year)
	assert.Equal(t, "Honda", v.Make)
	assert.Equal(t, "Accord", v.Model)
	assert.Equal(t, "Sport", v.Trim)
}

func TestEnrichNilDecodeIsNoop(t *testing.T) {
	v := &domain.ParsedVehicle{VIN: "1HGCV1F30LA012345", Make: "Honda"}
	Enrich(v, nil)
	assert.Equal(t, "Honda", v.Make)
}
