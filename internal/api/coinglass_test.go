package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestParseCoinGlassHeatmap(t *testing.T) {
	cases := []struct {
		name string
		body string
		want map[float64]float64
	}{
		{
			name: "items",
			body: `{"code":"0","data":{"items":[{"price":100,"liquidation":5000},{"price":"101","liquidation":"6000"}]}}`,
			want: map[float64]float64{100: 5000, 101: 6000},
		},
		{
			name: "list with duplicates and zeros",
			body: `{"data":{"list":[{"price":100,"liquidation":1},{"price":100,"liquidation":2},{"price":0,"liquidation":9},{"price":102,"liquidation":0},"junk"]}}`,
			want: map[float64]float64{100: 3},
		},
		{
			name: "empty items falls back to list",
			body: `{"data":{"items":[],"list":[{"price":50,"liquidation":7}]}}`,
			want: map[float64]float64{50: 7},
		},
		{name: "no data", body: `{"code":"50001","msg":"limit"}`, want: map[float64]float64{}},
		{name: "not json", body: `<html>`, want: map[float64]float64{}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ParseCoinGlassHeatmap([]byte(tc.body))
			if len(got) != len(tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
			for p, amt := range tc.want {
				if got[p] != amt {
					t.Errorf("price %v: expected %v, got %v", p, amt, got[p])
				}
			}
		})
	}
}

func TestCoinGlassClient_Heatmap(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/liquidation_info" {
			http.NotFound(w, r)
			return
		}
		q := r.URL.Query()
		if q.Get("symbol") != "BTC" || q.Get("time_type") != "h1" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		if r.Header.Get("coinglassSecret") != "secret" {
			t.Error("api key header missing")
		}
		w.Write([]byte(`{"data":{"items":[{"price":42000,"liquidation":125000}]}}`))
	}))
	defer srv.Close()

	c := NewCoinGlassClient(srv.URL+"/", "secret", "", 5*time.Second)
	heatmap, err := c.Heatmap(context.Background(), "BTCUSDT")
	if err != nil {
		t.Fatal(err)
	}
	if heatmap[42000] != 125000 {
		t.Fatalf("unexpected heatmap %v", heatmap)
	}
}

func TestCoinGlassClient_Status(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	if _, err := NewCoinGlassClient(srv.URL, "", "h1", time.Second).Heatmap(context.Background(), "ETHUSDT"); err == nil {
		t.Fatal("non-200 status should fail")
	}
}

func TestCoinGlassSymbol(t *testing.T) {
	if got := CoinGlassSymbol("BTCUSDT"); got != "BTC" {
		t.Errorf("got %s", got)
	}
	if got := CoinGlassSymbol("1000PEPEUSDT"); got != "1000PE" {
		t.Errorf("got %s", got)
	}
}
