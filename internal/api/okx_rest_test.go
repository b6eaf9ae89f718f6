package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestParseOkxCandles(t *testing.T) {
	// OKX 倒序返回，最新一根尚未收盘
	rows := [][]string{
		{"1700001800000", "101", "102", "100", "101.5", "30", "0", "0", "0"},
		{"1700000900000", "100", "101.2", "99.5", "101", "20", "0", "0", "1"},
		{"1700000000000", "99", "100.5", "98.5", "100", "10", "0", "0", "1"},
		{"1699999100000", "99", "98", "97", "99", "10", "0", "0", "1"}, // high < open
	}

	series, err := ParseOkxCandles(rows)
	if err != nil {
		t.Fatal(err)
	}
	if len(series) != 2 {
		t.Fatalf("expected 2 candles, got %d", len(series))
	}
	if series[0].Time != 1700000000 || series[1].Time != 1700000900 {
		t.Errorf("expected ascending epoch seconds, got %d, %d", series[0].Time, series[1].Time)
	}
	if series[1].Close != 101 || series[1].Volume != 20 {
		t.Errorf("unexpected candle %+v", series[1])
	}

	if _, err := ParseOkxCandles([][]string{{"1", "2"}}); err == nil {
		t.Error("short row should fail")
	}
	if _, err := ParseOkxCandles([][]string{{"x", "1", "1", "1", "1", "1"}}); err == nil {
		t.Error("bad timestamp should fail")
	}
}

func TestOkxBar(t *testing.T) {
	cases := map[string]string{"1m": "1m", "15m": "15m", "1h": "1H", "4H": "4H", "1d": "1D", "60m": "1H"}
	for in, want := range cases {
		got, err := OkxBar(in)
		if err != nil || got != want {
			t.Errorf("OkxBar(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := OkxBar("15x"); err == nil {
		t.Error("unknown unit should fail")
	}
}

func TestOkxInstID(t *testing.T) {
	if got := OkxInstID("BTCUSDT", true); got != "BTC-USDT-SWAP" {
		t.Errorf("got %s", got)
	}
	if got := OkxInstID("DOGEUSDT", false); got != "DOGE-USDT" {
		t.Errorf("got %s", got)
	}
	if got := OkxInstID("ETH-USDT-SWAP", false); got != "ETH-USDT-SWAP" {
		t.Errorf("OKX-format ids must pass through, got %s", got)
	}
}

func TestOkxClient_Candles(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v5/market/candles" {
			http.NotFound(w, r)
			return
		}
		q := r.URL.Query()
		if q.Get("instId") != "BTC-USDT-SWAP" || q.Get("bar") != "15m" || q.Get("limit") != "300" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		w.Write([]byte(`{"code":"0","msg":"","data":[
			["1700000900000","100","101.2","99.5","101","20","0","0","1"],
			["1700000000000","99","100.5","98.5","100","10","0","0","1"]]}`))
	}))
	defer srv.Close()

	c := NewOkxClient(srv.URL, 5*time.Second)
	series, err := c.Candles(context.Background(), "BTCUSDT", "15m", 500)
	if err != nil {
		t.Fatal(err)
	}
	if len(series) != 2 || series[0].Time != 1700000000 {
		t.Fatalf("unexpected series %+v", series)
	}
}

func TestOkxClient_SpotUsesSpotInstrument(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("instId"); got != "BTC-USDT" {
			t.Errorf("expected spot instId, got %s", got)
		}
		w.Write([]byte(`{"code":"0","msg":"","data":[]}`))
	}))
	defer srv.Close()

	_, err := NewOkxSpotClient(srv.URL, 5*time.Second).Candles(context.Background(), "BTCUSDT", "1h", 100)
	if !errors.Is(err, ErrNoData) {
		t.Fatalf("empty data should be ErrNoData, got %v", err)
	}
}

func TestOkxClient_ErrorCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":"51001","msg":"Instrument ID does not exist","data":[]}`))
	}))
	defer srv.Close()

	_, err := NewOkxClient(srv.URL, 5*time.Second).Candles(context.Background(), "FOOUSDT", "15m", 10)
	if err == nil || errors.Is(err, ErrNoData) {
		t.Fatalf("expected API error, got %v", err)
	}
}

func TestOkxClient_OpenInterestAndContractValue(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v5/public/open-interest":
			w.Write([]byte(`{"code":"0","msg":"","data":[{"instId":"BTC-USDT-SWAP","instType":"SWAP","oi":"2216113.01","oiCcy":"22161.13","ts":"1700000000000"}]}`))
		case "/api/v5/public/instruments":
			w.Write([]byte(`{"code":"0","msg":"","data":[{"instId":"BTC-USDT-SWAP","ctVal":"0.01"}]}`))
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	c := NewOkxClient(srv.URL, 5*time.Second)
	oi, err := c.OpenInterest(context.Background(), "BTCUSDT")
	if err != nil || oi != 2216113.01 {
		t.Fatalf("unexpected oi %v / %v", oi, err)
	}
	ct, err := c.ContractValue(context.Background(), "BTCUSDT")
	if err != nil || ct != 0.01 {
		t.Fatalf("unexpected ctVal %v / %v", ct, err)
	}
}
