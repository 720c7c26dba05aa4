package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/example/solprobe/internal/funding"
	"github.com/example/solprobe/internal/solana"
	"github.com/example/solprobe/internal/types"
	sol "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
)

type fakeTransferer struct {
	err   error
	calls []string
}

func (f *fakeTransferer) do(op string, to sol.PublicKey, amount float64) (funding.Transfer, error) {
	f.calls = append(f.calls, op)
	if f.err != nil {
		return funding.Transfer{}, f.err
	}
	l, err := funding.SolToLamports(amount)
	if err != nil {
		return funding.Transfer{}, err
	}
	return funding.Transfer{To: to, Lamports: l, Signature: sol.Signature{1}}, nil
}

func (f *fakeTransferer) Fund(_ context.Context, to sol.PublicKey, amount float64) (funding.Transfer, error) {
	return f.do("fund", to, amount)
}

func (f *fakeTransferer) Airdrop(_ context.Context, to sol.PublicKey, amount float64) (funding.Transfer, error) {
	return f.do("airdrop", to, amount)
}

func postTransfer(h http.HandlerFunc, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/fund", bytes.NewReader([]byte(body)))
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func TestFund_OK(t *testing.T) {
	ft := &fakeTransferer{}
	h := NewTransferHandler(ft, 0, nil)
	rec := postTransfer(h.Fund, `{"to":"`+stateKey+`","sol":600}`)
	if rec.Code != http.StatusOK { t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String()) }
	var out types.TransferResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil { t.Fatalf("unmarshal: %v", err) }
	if out.Lamports != 600_000_000_000 || out.Sol != 600 || out.To != stateKey { t.Fatalf("resp=%+v", out) }
	if len(ft.calls) != 1 || ft.calls[0] != "fund" { t.Fatalf("calls=%v", ft.calls) }
}

func TestAirdrop_UsesFaucet(t *testing.T) {
	ft := &fakeTransferer{}
	h := NewTransferHandler(ft, 0, nil)
	rec := postTransfer(h.Airdrop, `{"to":"`+stateKey+`","sol":1}`)
	if rec.Code != http.StatusOK { t.Fatalf("status=%d", rec.Code) }
	if ft.calls[0] != "airdrop" { t.Fatalf("calls=%v", ft.calls) }
}

func TestFund_Errors(t *testing.T) {
	cases := []struct {
		name string
		err  error
		body string
		want int
	}{
		{"bad json", nil, "{", http.StatusBadRequest},
		{"bad key", nil, `{"to":"zzz","sol":1}`, http.StatusBadRequest},
		{"negative", nil, `{"to":"` + stateKey + `","sol":-1}`, http.StatusBadRequest},
		{"rejected", &solana.TransactionError{Err: "InsufficientFunds"}, `{"to":"` + stateKey + `","sol":1}`, http.StatusUnprocessableEntity},
		{"timeout", solana.ErrConfirmTimeout, `{"to":"` + stateKey + `","sol":1}`, http.StatusGatewayTimeout},
		{"transport", errString("dial tcp: refused"), `{"to":"` + stateKey + `","sol":1}`, http.StatusBadGateway},
		{"node unhealthy", &jsonrpc.RPCError{Code: -32005, Message: "Node is unhealthy"}, `{"to":"` + stateKey + `","sol":1}`, http.StatusBadGateway},
	}
	for _, c := range cases {
		h := NewTransferHandler(&fakeTransferer{err: c.err}, 0, nil)
		rec := postTransfer(h.Fund, c.body)
		if rec.Code != c.want { t.Fatalf("%s: status=%d want %d", c.name, rec.Code, c.want) }
	}
}
