package onchain

// ledger.go: read-only client for the prediction contract.
//
// Every remote call goes through call(): pack → eth_call → unpack. Each public
// method then performs exactly one typed decode into a domain value, so no raw
// ABI value ever leaves this package. Any failure wraps domain.ErrReadFailure.

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"golang.org/x/time/rate"

	"github.com/alejandrodnm/roundwatch/internal/domain"
)

const (
	defaultRatePerSec = 20
	defaultBurst      = 10
	callTimeout       = 10 * time.Second
)

// ContractCaller is the subset of ethclient.Client the ledger client needs.
type ContractCaller interface {
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// LedgerClient implements ports.LedgerReader against the contract over JSON-RPC.
type LedgerClient struct {
	caller   ContractCaller
	contract common.Address
	limiter  *rate.Limiter
	closeFn  func()
}

// Options tunes the RPC rate limit. Zero values use defaults.
type Options struct {
	RatePerSec float64
	Burst      int
}

// NewLedgerClient dials rpcURL and returns a client bound to contractAddr.
func NewLedgerClient(rpcURL, contractAddr string, opts Options) (*LedgerClient, error) {
	if !common.IsHexAddress(contractAddr) {
		return nil, fmt.Errorf("onchain.NewLedgerClient: invalid contract address %q", contractAddr)
	}

	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("onchain.NewLedgerClient: dial rpc %s: %w", rpcURL, err)
	}

	lc := NewLedgerClientWithCaller(client, common.HexToAddress(contractAddr), opts)
	lc.closeFn = client.Close
	return lc, nil
}

// NewLedgerClientWithCaller builds a client on top of an existing caller.
func NewLedgerClientWithCaller(caller ContractCaller, contract common.Address, opts Options) *LedgerClient {
	if opts.RatePerSec <= 0 {
		opts.RatePerSec = defaultRatePerSec
	}
	if opts.Burst <= 0 {
		opts.Burst = defaultBurst
	}
	return &LedgerClient{
		caller:   caller,
		contract: contract,
		limiter:  rate.NewLimiter(rate.Limit(opts.RatePerSec), opts.Burst),
	}
}

// Close releases the RPC connection.
func (lc *LedgerClient) Close() {
	if lc.closeFn != nil {
		lc.closeFn()
	}
}

// CurrentRoundID returns the active round id; 0 means no round has started.
func (lc *LedgerClient) CurrentRoundID(ctx context.Context) (uint64, error) {
	vals, err := lc.call(ctx, methodCurrentRound)
	if err != nil {
		return 0, readErr("CurrentRoundID", err)
	}
	id, err := singleUint(vals)
	if err != nil {
		return 0, readErr("CurrentRoundID", err)
	}
	return id, nil
}

type roundRecord struct {
	ForBlockNumber     *big.Int
	StartTime          *big.Int
	SubmissionDeadline *big.Int
	PredictionCount    *big.Int
	Finalized          bool
	WinnerAgent        string
	ActualPrice        *big.Int
}

// RoundByID returns the round record for id.
func (lc *LedgerClient) RoundByID(ctx context.Context, id uint64) (domain.Round, error) {
	var rec roundRecord
	if err := lc.callInto(ctx, &rec, methodRound, new(big.Int).SetUint64(id)); err != nil {
		return domain.Round{}, readErr("RoundByID", err)
	}

	round := domain.Round{
		ID:          id,
		Finalized:   rec.Finalized,
		WinnerAgent: rec.WinnerAgent,
	}
	var err error
	if round.ForBlockNumber, err = toUint64(rec.ForBlockNumber); err != nil {
		return domain.Round{}, readErr("RoundByID", fmt.Errorf("forBlockNumber: %w", err))
	}
	if round.StartTime, err = toTime(rec.StartTime); err != nil {
		return domain.Round{}, readErr("RoundByID", fmt.Errorf("startTime: %w", err))
	}
	if round.SubmissionDeadline, err = toTime(rec.SubmissionDeadline); err != nil {
		return domain.Round{}, readErr("RoundByID", fmt.Errorf("submissionDeadline: %w", err))
	}
	if round.PredictionCount, err = toUint64(rec.PredictionCount); err != nil {
		return domain.Round{}, readErr("RoundByID", fmt.Errorf("predictionCount: %w", err))
	}
	if round.ActualPrice, err = domain.FixedPriceFromBig(rec.ActualPrice); err != nil {
		return domain.Round{}, readErr("RoundByID", fmt.Errorf("actualPrice: %w", err))
	}
	return round, nil
}

// ParticipantsOf returns the agents that submitted to the round, in contract order.
func (lc *LedgerClient) ParticipantsOf(ctx context.Context, roundID uint64) ([]string, error) {
	vals, err := lc.call(ctx, methodParticipants, new(big.Int).SetUint64(roundID))
	if err != nil {
		return nil, readErr("ParticipantsOf", err)
	}
	if len(vals) != 1 {
		return nil, readErr("ParticipantsOf", fmt.Errorf("expected 1 output, got %d", len(vals)))
	}
	agents, ok := vals[0].([]string)
	if !ok {
		return nil, readErr("ParticipantsOf", fmt.Errorf("unexpected output type %T", vals[0]))
	}
	return agents, nil
}

type agentRecord struct {
	AgentAddress       string
	AgentWalletAddress string
	TotalGuesses       *big.Int
	BestGuesses        *big.Int
	Accuracy           *big.Int
	LastGuessBlock     *big.Int
	Deviation          *big.Int
}

// AgentStats returns the lifetime counters of an agent.
func (lc *LedgerClient) AgentStats(ctx context.Context, agent string) (domain.AgentStats, error) {
	var rec agentRecord
	if err := lc.callInto(ctx, &rec, methodAgent, agent); err != nil {
		return domain.AgentStats{}, readErr("AgentStats", err)
	}

	stats := domain.AgentStats{
		Address:       rec.AgentAddress,
		WalletAddress: rec.AgentWalletAddress,
	}
	fields := []struct {
		name string
		src  *big.Int
		dst  *uint64
	}{
		{"totalGuesses", rec.TotalGuesses, &stats.TotalGuesses},
		{"bestGuesses", rec.BestGuesses, &stats.BestGuesses},
		{"accuracy", rec.Accuracy, &stats.Accuracy},
		{"lastGuessBlock", rec.LastGuessBlock, &stats.LastGuessBlock},
		{"deviation", rec.Deviation, &stats.Deviation},
	}
	for _, f := range fields {
		v, err := toUint64(f.src)
		if err != nil {
			return domain.AgentStats{}, readErr("AgentStats", fmt.Errorf("%s: %w", f.name, err))
		}
		*f.dst = v
	}
	if stats.Address == "" {
		stats.Address = agent
	}
	return stats, nil
}

type predictionRecord struct {
	AgentAddress   string
	PredictedPrice *big.Int
	Timestamp      *big.Int
	Submitted      bool
}

// PredictionOf returns the agent's prediction record for the round.
func (lc *LedgerClient) PredictionOf(ctx context.Context, roundID uint64, agent string) (domain.Prediction, error) {
	var rec predictionRecord
	if err := lc.callInto(ctx, &rec, methodPrediction, new(big.Int).SetUint64(roundID), agent); err != nil {
		return domain.Prediction{}, readErr("PredictionOf", err)
	}

	price, err := domain.FixedPriceFromBig(rec.PredictedPrice)
	if err != nil {
		return domain.Prediction{}, readErr("PredictionOf", fmt.Errorf("predictedPrice: %w", err))
	}
	ts, err := toTime(rec.Timestamp)
	if err != nil {
		return domain.Prediction{}, readErr("PredictionOf", fmt.Errorf("timestamp: %w", err))
	}

	return domain.Prediction{
		RoundID:        roundID,
		Agent:          agent,
		PredictedPrice: price,
		Timestamp:      ts,
		Submitted:      rec.Submitted,
	}, nil
}

// call packs the arguments, performs an eth_call at the latest block and
// unpacks the raw outputs.
func (lc *LedgerClient) call(ctx context.Context, method string, args ...any) ([]any, error) {
	out, err := lc.rawCall(ctx, method, args...)
	if err != nil {
		return nil, err
	}
	vals, err := ledgerABI.Unpack(method, out)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	return vals, nil
}

// callInto is call() for multi-output methods, decoding into a record struct.
func (lc *LedgerClient) callInto(ctx context.Context, dst any, method string, args ...any) error {
	out, err := lc.rawCall(ctx, method, args...)
	if err != nil {
		return err
	}
	if err := ledgerABI.UnpackIntoInterface(dst, method, out); err != nil {
		return fmt.Errorf("unpack %s: %w", method, err)
	}
	return nil
}

func (lc *LedgerClient) rawCall(ctx context.Context, method string, args ...any) ([]byte, error) {
	data, err := ledgerABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}

	if err := lc.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	out, err := lc.caller.CallContract(callCtx, ethereum.CallMsg{
		To:   &lc.contract,
		Data: data,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("eth_call %s: %w", method, err)
	}
	slog.Debug("onchain: call", "method", method, "bytes", len(out))
	return out, nil
}

func readErr(op string, err error) error {
	return fmt.Errorf("onchain.%s: %w: %w", op, domain.ErrReadFailure, err)
}

func singleUint(vals []any) (uint64, error) {
	if len(vals) != 1 {
		return 0, fmt.Errorf("expected 1 output, got %d", len(vals))
	}
	v, ok := vals[0].(*big.Int)
	if !ok {
		return 0, fmt.Errorf("unexpected output type %T", vals[0])
	}
	return toUint64(v)
}

func toUint64(v *big.Int) (uint64, error) {
	if v == nil {
		return 0, fmt.Errorf("missing value")
	}
	if !v.IsUint64() {
		return 0, fmt.Errorf("value %s out of uint64 range", v.String())
	}
	return v.Uint64(), nil
}

// toTime converts unix seconds; 0 maps to the zero time.
func toTime(v *big.Int) (time.Time, error) {
	secs, err := toUint64(v)
	if err != nil {
		return time.Time{}, err
	}
	if secs == 0 {
		return time.Time{}, nil
	}
	if secs > 1<<62 {
		return time.Time{}, fmt.Errorf("timestamp %d out of range", secs)
	}
	return time.Unix(int64(secs), 0).UTC(), nil
}
