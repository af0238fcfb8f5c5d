package exchange

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"math/big"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Arya-Agent/internal/asset"
	xerrors "Arya-Agent/internal/errors"
	"Arya-Agent/internal/starknet"
)

var (
	eth   = asset.MustParse("0x049d36570d4e46f48e99674bd3fcc84644ddd6b96f7c741b1562b82f9e004dc7")
	lords = asset.MustParse("0x0124aeb495b947201f5fac96fd1138e326ad86195b98df6dec9009158a533b49")
	strk  = asset.MustParse("0x04718f5a0fc34cc1af16a1cdee98ffb20c31f5cd61d6ab07201858f4287c938d")
	taker = asset.MustParse("0x0000000000000000000000000000000000000000000000000000000000001234")
)

type fakeAvnu struct {
	quotes      string
	buildStatus int
	prices      string
	quoteHits   atomic.Int32
	lastQuery   atomic.Value
	lastBuild   atomic.Value
}

func (f *fakeAvnu) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/swap/v2/quotes", func(w http.ResponseWriter, r *http.Request) {
		f.quoteHits.Add(1)
		f.lastQuery.Store(r.URL.Query())
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(f.quotes))
	})
	mux.HandleFunc("/swap/v2/build", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode build body: %v", err)
		}
		f.lastBuild.Store(body)
		w.Header().Set("Content-Type", "application/json")
		if f.buildStatus != 0 {
			w.WriteHeader(f.buildStatus)
			_, _ = w.Write([]byte(`{"messages":["quote not found"]}`))
			return
		}
		_, _ = w.Write([]byte(`{"chainId":"0x534e5f4d41494e","calls":[{"contractAddress":"0x04270219d365d6b017231b52e92b3fb5d7c8378b05e9abc97724537a80e93b0f","entrypoint":"multi_route_swap","calldata":["0x1"]}]}`))
	})
	mux.HandleFunc("/v1/tokens/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(f.prices))
	})
	return mux
}

func newFake(t *testing.T, fake *fakeAvnu) *Client {
	t.Helper()
	srv := httptest.NewServer(fake.handler(t))
	t.Cleanup(srv.Close)
	return NewClient(Config{BaseURL: srv.URL, ImpulseURL: srv.URL, Timeout: time.Second})
}

const oneQuote = `[{"quoteId":"q-1","sellTokenAddress":"0x49d36570d4e46f48e99674bd3fcc84644ddd6b96f7c741b1562b82f9e004dc7","sellAmount":"0x8ac7230489e80000","buyTokenAddress":"0x124aeb495b947201f5fac96fd1138e326ad86195b98df6dec9009158a533b49","buyAmount":"0x3e8","expiry":null,"chainId":"0x534e5f4d41494e","gasFeesInUsd":0.02}]`

func TestQuotesPreconditionsSkipNetwork(t *testing.T) {
	fake := &fakeAvnu{quotes: oneQuote}
	service := NewQuoteService(newFake(t, fake), taker)

	_, err := service.Quotes(context.Background(), eth, lords, big.NewInt(0))
	assert.Equal(t, xerrors.CodeInvalidArgument, xerrors.CodeOf(err))
	_, err = service.Quotes(context.Background(), eth, eth, big.NewInt(1))
	assert.Equal(t, xerrors.CodeInvalidArgument, xerrors.CodeOf(err))
	assert.Zero(t, fake.quoteHits.Load())
}

func TestQuotesDecodesHexAmounts(t *testing.T) {
	fake := &fakeAvnu{quotes: oneQuote}
	service := NewQuoteService(newFake(t, fake), taker)

	amount, _ := new(big.Int).SetString("10000000000000000000", 10)
	quotes, err := service.Quotes(context.Background(), eth, lords, amount)
	require.NoError(t, err)
	require.Len(t, quotes, 1)

	q := quotes[0]
	assert.Equal(t, "q-1", q.ID)
	assert.Equal(t, eth, q.SellAsset)
	assert.Equal(t, lords, q.BuyAsset)
	assert.Equal(t, 0, q.SellAmount.Cmp(amount))
	assert.Equal(t, int64(1000), q.BuyAmount.Int64())
	assert.Nil(t, q.Expiry)
	assert.InDelta(t, 0.02, q.GasFeesInUSD, 1e-9)

	query := fake.lastQuery.Load().(url.Values)
	assert.Equal(t, []string{"0x8ac7230489e80000"}, query["sellAmount"])
	assert.Equal(t, []string{taker.String()}, query["takerAddress"])
}

func TestQuotesEmptyIsNoRoute(t *testing.T) {
	service := NewQuoteService(newFake(t, &fakeAvnu{quotes: `[]`}), taker)
	quotes, err := service.Quotes(context.Background(), eth, lords, big.NewInt(1))
	require.NoError(t, err)
	assert.Empty(t, quotes)
}

func TestQuotesTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()
	service := NewQuoteService(NewClient(Config{BaseURL: srv.URL}), taker)
	_, err := service.Quotes(context.Background(), eth, lords, big.NewInt(1))
	assert.Equal(t, xerrors.CodeQuoteFailure, xerrors.CodeOf(err))
}

func TestLatestPriceUsesFirstPoint(t *testing.T) {
	prices := NewPriceService(newFake(t, &fakeAvnu{prices: `[{"date":"2024-11-05T10:00:00Z","value":1.2345},{"date":"2024-11-05T09:00:00Z","value":9}]`}))
	point, err := prices.LatestPrice(context.Background(), strk)
	require.NoError(t, err)
	assert.InDelta(t, 1.2345, point.Value, 1e-9)
	assert.Equal(t, 2024, point.Date.Year())

	empty := NewPriceService(newFake(t, &fakeAvnu{prices: `[]`}))
	_, err = empty.LatestPrice(context.Background(), strk)
	assert.Equal(t, xerrors.CodePriceFailure, xerrors.CodeOf(err))
}

type stubAccount struct {
	allowance    *big.Int
	allowanceErr error
	executeErr   error
	receipt      *starknet.Receipt
	receiptErr   error
	executed     [][]starknet.Call
}

func (a *stubAccount) Address() asset.ID { return taker }

func (a *stubAccount) Allowance(context.Context, asset.ID, asset.ID) (*big.Int, error) {
	return a.allowance, a.allowanceErr
}

func (a *stubAccount) Execute(_ context.Context, calls []starknet.Call) (string, error) {
	a.executed = append(a.executed, calls)
	if a.executeErr != nil {
		return "", a.executeErr
	}
	return "0x0abc", nil
}

func (a *stubAccount) WaitForReceipt(context.Context, string) (*starknet.Receipt, error) {
	return a.receipt, a.receiptErr
}

type stubQuotes struct {
	quotes []Quote
	err    error
}

func (s stubQuotes) Quotes(context.Context, asset.ID, asset.ID, *big.Int) ([]Quote, error) {
	return s.quotes, s.err
}

func sampleQuote() Quote {
	return Quote{ID: "q-1", SellAsset: eth, BuyAsset: lords, SellAmount: big.NewInt(100), BuyAmount: big.NewInt(1000)}
}

func assertExclusive(t *testing.T, out SwapOutcome) {
	t.Helper()
	assert.NotEqual(t, out.TransactionID == "", out.ErrorDetail == "", "exactly one of tx id or error detail must be set: %+v", out)
	assert.Equal(t, out.Success, out.TransactionID != "")
}

func TestExecuteConfirmedWithApproval(t *testing.T) {
	fake := &fakeAvnu{}
	account := &stubAccount{allowance: big.NewInt(10), receipt: &starknet.Receipt{ExecutionStatus: starknet.ExecutionSucceeded}}

	out := NewExecutor(newFake(t, fake)).Execute(context.Background(), account, sampleQuote(), DefaultSlippage, DefaultAutoApprove)
	assertExclusive(t, out)
	assert.True(t, out.Success)
	assert.Equal(t, StateConfirmed, out.State)
	assert.Equal(t, "0x0abc", out.TransactionID)

	body := fake.lastBuild.Load().(map[string]any)
	assert.Equal(t, true, body["includeApprove"])
	assert.Equal(t, "q-1", body["quoteId"])
	assert.InDelta(t, 0.05, body["slippage"], 1e-9)
	require.Len(t, account.executed, 1)
	assert.Equal(t, "multi_route_swap", account.executed[0][0].Entrypoint)
}

func TestExecuteSkipsApprovalWhenAllowanceSuffices(t *testing.T) {
	fake := &fakeAvnu{}
	account := &stubAccount{allowance: big.NewInt(100), receipt: &starknet.Receipt{ExecutionStatus: starknet.ExecutionSucceeded}}
	out := NewExecutor(newFake(t, fake)).Execute(context.Background(), account, sampleQuote(), 0.01, true)
	assert.True(t, out.Success)
	assert.Equal(t, false, fake.lastBuild.Load().(map[string]any)["includeApprove"])
}

func TestExecuteReverted(t *testing.T) {
	account := &stubAccount{allowance: big.NewInt(100), receipt: &starknet.Receipt{ExecutionStatus: starknet.ExecutionReverted, RevertReason: "Insufficient tokens received"}}
	out := NewExecutor(newFake(t, &fakeAvnu{})).Execute(context.Background(), account, sampleQuote(), 0.05, true)
	assertExclusive(t, out)
	assert.Equal(t, StateReverted, out.State)
	assert.Equal(t, "Insufficient tokens received", out.ErrorDetail)
	assert.Equal(t, xerrors.CodeSubmissionFailure, out.Code)
}

func TestExecuteTransportFailures(t *testing.T) {
	cases := map[string]struct {
		account *stubAccount
		fake    *fakeAvnu
		code    xerrors.Code
	}{
		"allowance": {&stubAccount{allowanceErr: errors.New("rpc down")}, &fakeAvnu{}, xerrors.CodeApprovalFailure},
		"build":     {&stubAccount{allowance: big.NewInt(100)}, &fakeAvnu{buildStatus: http.StatusBadRequest}, xerrors.CodeSubmissionFailure},
		"signer":    {&stubAccount{allowance: big.NewInt(100), executeErr: errors.New("signer offline")}, &fakeAvnu{}, xerrors.CodeSubmissionFailure},
		"receipt":   {&stubAccount{allowance: big.NewInt(100), receiptErr: errors.New("timeout")}, &fakeAvnu{}, xerrors.CodeSubmissionFailure},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			out := NewExecutor(newFake(t, tc.fake)).Execute(context.Background(), tc.account, sampleQuote(), 0.05, true)
			assertExclusive(t, out)
			assert.False(t, out.Success)
			assert.Equal(t, StateTransportFailed, out.State)
			assert.Equal(t, tc.code, out.Code)
		})
	}
}

func TestExecuteAbortsBeforeSubmission(t *testing.T) {
	now := time.Date(2024, 11, 5, 10, 0, 0, 0, time.UTC)
	expired := sampleQuote()
	past := now.Add(-time.Second)
	expired.Expiry = &past

	cases := map[string]struct {
		executor *Executor
		quote    Quote
		slippage float64
		code     xerrors.Code
	}{
		"slippage out of range": {NewExecutor(NewClient(Config{})), sampleQuote(), 1, xerrors.CodeSlippageExceeded},
		"negative slippage":     {NewExecutor(NewClient(Config{})), sampleQuote(), -0.1, xerrors.CodeSlippageExceeded},
		"NaN slippage":          {NewExecutor(NewClient(Config{})), sampleQuote(), math.NaN(), xerrors.CodeSlippageExceeded},
		"expired":               {NewExecutor(NewClient(Config{}), WithClock(func() time.Time { return now })), expired, 0.05, xerrors.CodeQuoteExpired},
		"live quote too low": {
			NewExecutor(NewClient(Config{}), WithRequoter(stubQuotes{quotes: []Quote{{BuyAmount: big.NewInt(949)}}})),
			sampleQuote(), 0.05, xerrors.CodeSlippageExceeded,
		},
		"live quote no route": {
			NewExecutor(NewClient(Config{}), WithRequoter(stubQuotes{})),
			sampleQuote(), 0.05, xerrors.CodeSlippageExceeded,
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			account := &stubAccount{allowance: big.NewInt(100)}
			out := tc.executor.Execute(context.Background(), account, tc.quote, tc.slippage, true)
			assertExclusive(t, out)
			assert.Equal(t, StateAborted, out.State)
			assert.Equal(t, tc.code, out.Code)
			assert.Empty(t, account.executed, "aborted swaps must not submit")
		})
	}
}

func TestExecuteLiveQuoteWithinSlippage(t *testing.T) {
	account := &stubAccount{allowance: big.NewInt(100), receipt: &starknet.Receipt{ExecutionStatus: starknet.ExecutionSucceeded}}
	executor := NewExecutor(newFake(t, &fakeAvnu{}), WithRequoter(stubQuotes{quotes: []Quote{{BuyAmount: big.NewInt(950)}}}))
	out := executor.Execute(context.Background(), account, sampleQuote(), 0.05, true)
	assert.True(t, out.Success, out.ErrorDetail)
}

func TestMinimumReceived(t *testing.T) {
	assert.Equal(t, "950", MinimumReceived(big.NewInt(1000), 0.05).String())
	assert.Equal(t, "1000", MinimumReceived(big.NewInt(1000), 0).String())
	assert.Equal(t, "998", MinimumReceived(big.NewInt(999), 0.001).String())
}
