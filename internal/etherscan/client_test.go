package etherscan

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"web3research/backend/internal/config"
)

const foundationAddress = "0xde0B295669a9FD93d5F28D9Ec85E40f4cb697BAe"

func TestBalanceConvertsWeiToEth(t *testing.T) {
	var receivedAction string
	var receivedAddress string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		receivedAction = r.URL.Query().Get("action")
		receivedAddress = r.URL.Query().Get("address")

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"1","message":"OK","result":"2500000000000000000"}`))
	}))
	defer server.Close()

	client := NewClient(config.Config{
		EtherscanAPIKey:  "scan-key",
		EtherscanBaseURL: server.URL,
	}, server.Client())

	balance, err := client.Balance(context.Background(), foundationAddress)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}

	if receivedAction != "balance" {
		t.Fatalf("unexpected action: %q", receivedAction)
	}
	if receivedAddress != foundationAddress {
		t.Fatalf("unexpected address: %q", receivedAddress)
	}
	if balance.BalanceWei != "2500000000000000000" {
		t.Fatalf("unexpected wei: %q", balance.BalanceWei)
	}
	if balance.BalanceEth != 2.5 {
		t.Fatalf("expected 2.5 eth, got %v", balance.BalanceEth)
	}
}

func TestBalanceRejectsInvalidAddress(t *testing.T) {
	client := NewClient(config.Config{
		EtherscanAPIKey:  "scan-key",
		EtherscanBaseURL: "https://api.etherscan.io/api",
	}, nil)

	_, err := client.Balance(context.Background(), "not-an-address")
	if !errors.Is(err, ErrInvalidAddress) {
		t.Fatalf("expected ErrInvalidAddress, got %v", err)
	}
}

func TestBalanceReturnsErrMissingAPIKey(t *testing.T) {
	client := NewClient(config.Config{EtherscanBaseURL: "https://api.etherscan.io/api"}, nil)

	_, err := client.Balance(context.Background(), foundationAddress)
	if !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("expected ErrMissingAPIKey, got %v", err)
	}
}

func TestTransactionsReturnsRows(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if action := r.URL.Query().Get("action"); action != "txlist" {
			t.Errorf("unexpected action: %q", action)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
		  "status":"1",
		  "message":"OK",
		  "result":[
		    {"hash":"0xabc","from":"0x1","to":"0x2","value":"1000000000000000000","timeStamp":"1700000000"},
		    {"hash":"0xdef","from":"0x3","to":"0x4","value":"50000000000000000","timeStamp":"1699999000"}
		  ]
		}`))
	}))
	defer server.Close()

	client := NewClient(config.Config{
		EtherscanAPIKey:  "scan-key",
		EtherscanBaseURL: server.URL,
	}, server.Client())

	transactions, err := client.Transactions(context.Background(), foundationAddress, 100)
	if err != nil {
		t.Fatalf("transactions: %v", err)
	}
	if len(transactions) != 2 {
		t.Fatalf("expected 2 transactions, got %d", len(transactions))
	}
	if transactions[0].Hash != "0xabc" || transactions[0].ValueWei != "1000000000000000000" {
		t.Fatalf("unexpected first transaction: %+v", transactions[0])
	}
}

func TestTransactionsTreatsEmptyListAsSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"0","message":"No transactions found","result":[]}`))
	}))
	defer server.Close()

	client := NewClient(config.Config{
		EtherscanAPIKey:  "scan-key",
		EtherscanBaseURL: server.URL,
	}, server.Client())

	transactions, err := client.Transactions(context.Background(), foundationAddress, 100)
	if err != nil {
		t.Fatalf("transactions: %v", err)
	}
	if len(transactions) != 0 {
		t.Fatalf("expected no transactions, got %d", len(transactions))
	}
}

func TestTransactionsSurfacesAPIFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"0","message":"NOTOK","result":"Max rate limit reached"}`))
	}))
	defer server.Close()

	client := NewClient(config.Config{
		EtherscanAPIKey:  "scan-key",
		EtherscanBaseURL: server.URL,
	}, server.Client())

	_, err := client.Transactions(context.Background(), foundationAddress, 100)
	if err == nil {
		t.Fatal("expected api failure")
	}
}
