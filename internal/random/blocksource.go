package random

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// ErrOutsideWindow reports that a record's fingerprint is no longer
// retrievable by any configured lookup path. The beacon converts this into a
// permanent expiry.
var ErrOutsideWindow = errors.New("fingerprint outside every lookback window")

// BlockSource exposes the append-only public log the beacon commits against.
// Implementations must return ErrOutsideWindow (possibly wrapped) once a
// record is too old for every lookup path they have.
type BlockSource interface {
	// CurrentIndex returns the index of the newest record.
	CurrentIndex(ctx context.Context) (uint64, error)

	// FingerprintAt returns the fingerprint of the record at index.
	FingerprintAt(ctx context.Context, index uint64) ([]byte, error)
}

// ChainClient reads block fingerprints from an eth-style JSON-RPC endpoint.
// Nodes only serve hashes within a native lookback window; an optional archive
// endpoint extends the reach for older records.
type ChainClient struct {
	endpoint        string
	archiveEndpoint string
	nativeWindow    uint64
	logger          *slog.Logger
	client          *http.Client
}

// DefaultNativeWindow matches the common non-archive node retention of block
// hashes addressable by number.
const DefaultNativeWindow = 256

// NewChainClient creates a client for the given JSON-RPC endpoint. An empty
// archiveEndpoint disables the extended-history fallback.
func NewChainClient(endpoint, archiveEndpoint string, nativeWindow uint64, logger *slog.Logger) *ChainClient {
	if nativeWindow == 0 {
		nativeWindow = DefaultNativeWindow
	}
	return &ChainClient{
		endpoint:        endpoint,
		archiveEndpoint: archiveEndpoint,
		nativeWindow:    nativeWindow,
		logger:          logger,
		client:          &http.Client{Timeout: 5 * time.Second},
	}
}

// CurrentIndex returns the newest block number.
func (c *ChainClient) CurrentIndex(ctx context.Context) (uint64, error) {
	var result string
	if err := c.call(ctx, c.endpoint, "eth_blockNumber", []interface{}{}, &result); err != nil {
		return 0, fmt.Errorf("current index: %w", err)
	}
	return parseHexUint(result)
}

// FingerprintAt returns the block hash at index, trying the native endpoint
// within its window and the archive endpoint past it.
func (c *ChainClient) FingerprintAt(ctx context.Context, index uint64) ([]byte, error) {
	current, err := c.CurrentIndex(ctx)
	if err != nil {
		return nil, err
	}
	if index > current {
		return nil, fmt.Errorf("index %d not produced yet (current %d)", index, current)
	}

	endpoint := c.endpoint
	if current-index >= c.nativeWindow {
		if c.archiveEndpoint == "" {
			return nil, fmt.Errorf("index %d is %d behind head with no archive endpoint: %w", index, current-index, ErrOutsideWindow)
		}
		endpoint = c.archiveEndpoint
	}

	var block struct {
		Hash string `json:"hash"`
	}
	if err := c.call(ctx, endpoint, "eth_getBlockByNumber", []interface{}{fmt.Sprintf("0x%x", index), false}, &block); err != nil {
		return nil, fmt.Errorf("fingerprint at %d: %w", index, err)
	}
	if block.Hash == "" {
		// archive pruned it too
		return nil, fmt.Errorf("index %d has no retrievable hash: %w", index, ErrOutsideWindow)
	}
	return hex.DecodeString(strings.TrimPrefix(block.Hash, "0x"))
}

func (c *ChainClient) call(ctx context.Context, endpoint, method string, params []interface{}, out interface{}) error {
	body, _ := json.Marshal(map[string]interface{}{
		"jsonrpc": "2.0",
		"method":  method,
		"params":  params,
		"id":      1,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("rpc call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("rpc returned %d", resp.StatusCode)
	}

	var response struct {
		Result json.RawMessage `json:"result"`
		Error  *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if response.Error != nil {
		return fmt.Errorf("rpc error: %s", response.Error.Message)
	}
	if string(response.Result) == "null" {
		return ErrOutsideWindow
	}
	return json.Unmarshal(response.Result, out)
}

func parseHexUint(s string) (uint64, error) {
	v, err := strconv.ParseUint(strings.TrimPrefix(s, "0x"), 16, 64)
	if err != nil {
		return 0, fmt.Errorf("parse hex %q: %w", s, err)
	}
	return v, nil
}

// SimulatedLog is an in-process block source for dev and tests. Records are
// produced by Advance; fingerprints derive deterministically from the index.
type SimulatedLog struct {
	mu      sync.Mutex
	current uint64
	window  uint64
}

// NewSimulatedLog creates a simulated log at index 0 with the given native
// window. Zero window means unlimited retention.
func NewSimulatedLog(window uint64) *SimulatedLog {
	return &SimulatedLog{window: window}
}

// Advance produces n new records.
func (l *SimulatedLog) Advance(n uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.current += n
}

// CurrentIndex returns the newest record index.
func (l *SimulatedLog) CurrentIndex(_ context.Context) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.current, nil
}

// FingerprintAt returns the deterministic fingerprint at index, honoring the
// configured retention window.
func (l *SimulatedLog) FingerprintAt(_ context.Context, index uint64) ([]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if index > l.current {
		return nil, fmt.Errorf("index %d not produced yet (current %d)", index, l.current)
	}
	if l.window > 0 && l.current-index >= l.window {
		return nil, fmt.Errorf("index %d is %d behind head: %w", index, l.current-index, ErrOutsideWindow)
	}

	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], index)
	sum := sha256.Sum256(buf[:])
	return sum[:], nil
}
