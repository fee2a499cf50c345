package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

const DefaultMaxProxyHops = 3

type CodeType string

const (
	CodeTypeABI        CodeType = "ABI"
	CodeTypeSourceCode CodeType = "SourceCode"
)

func ParseCodeType(s string) (CodeType, error) {
	switch CodeType(s) {
	case CodeTypeABI, CodeTypeSourceCode:
		return CodeType(s), nil
	}
	return "", &InvalidInputError{message: fmt.Sprintf("invalid codeType %q: must be ABI or SourceCode", s)}
}

// ContractSourceRecord is one entry of the getsourcecode result. Only the
// fields lookups read are decoded.
type ContractSourceRecord struct {
	SourceCode     string `json:"SourceCode"`
	ABI            string `json:"ABI"`
	ContractName   string `json:"ContractName"`
	Proxy          string `json:"Proxy"`
	Implementation string `json:"Implementation"`
}

type ContractCode struct {
	ContractName string
	Code         string
}

// getSourceCode fetches the explorer's source record for address.
func getSourceCode(ctx context.Context, explorer Explorer, address string, network NetworkConfig) (*ContractSourceRecord, error) {
	envelope, err := explorer.Request(ctx, network, url.Values{
		"module":  {"contract"},
		"action":  {"getsourcecode"},
		"address": {address},
	})
	if err != nil {
		return nil, err
	}
	if err := envelope.Err(); err != nil {
		return nil, err
	}
	var records []ContractSourceRecord
	if err := json.Unmarshal(envelope.Result, &records); err != nil {
		return nil, fmt.Errorf("failed to decode getsourcecode result: %w", err)
	}
	if len(records) == 0 {
		return nil, &ContractNotFoundError{address: address}
	}
	return &records[0], nil
}

type ContractCodeResolver struct {
	explorer Explorer
	detector *ProxyDetector
	maxHops  int
	log      *slog.Logger
}

// NewContractCodeResolver builds a resolver. detector may be nil.
func NewContractCodeResolver(log *slog.Logger, explorer Explorer, detector *ProxyDetector, maxHops int) *ContractCodeResolver {
	if maxHops <= 0 {
		maxHops = DefaultMaxProxyHops
	}
	return &ContractCodeResolver{
		explorer: explorer,
		detector: detector,
		maxHops:  maxHops,
		log:      log,
	}
}

// Resolve returns the ABI or the normalized source of address, following
// proxies to their implementation.
func (r *ContractCodeResolver) Resolve(ctx context.Context, address string, network NetworkConfig, codeType CodeType) (*ContractCode, error) {
	path := []string{address}
	visited := map[common.Address]bool{common.HexToAddress(address): true}

	for {
		record, err := getSourceCode(ctx, r.explorer, address, network)
		if err != nil {
			return nil, err
		}

		implementation, err := r.implementationOf(ctx, address, network, record)
		if err != nil {
			return nil, err
		}
		if implementation == "" {
			return codeOf(record, codeType), nil
		}

		path = append(path, implementation)
		target := common.HexToAddress(implementation)
		if visited[target] {
			return nil, &ProxyCycleError{Path: path}
		}
		if len(path)-1 > r.maxHops {
			return nil, &ProxyCycleError{Path: path, MaxHops: r.maxHops}
		}
		visited[target] = true

		r.log.Debug("Following proxy implementation",
			"network", network.Name,
			"proxy", address,
			"implementation", implementation,
		)
		address = implementation
	}
}

// implementationOf returns the address to follow, or "" if record is the
// implementation itself. A record can claim to be a proxy and name itself as
// the implementation (e.g. Uniswap V3 Positions NFT on Ethereum).
func (r *ContractCodeResolver) implementationOf(ctx context.Context, address string, network NetworkConfig, record *ContractSourceRecord) (string, error) {
	if record.Proxy == "0" || sameAddress(record.Implementation, address) {
		return "", nil
	}
	if record.Implementation != "" {
		return record.Implementation, nil
	}

	info, ok, err := r.detector.Detect(ctx, network.Name, common.HexToAddress(address))
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		r.log.Warn("Proxy without implementation address, using its own code",
			"network", network.Name,
			"address", address,
			"error", err,
		)
		return "", nil
	}
	if !ok || sameAddress(info.Target.Hex(), address) {
		return "", nil
	}
	return info.Target.Hex(), nil
}

func codeOf(record *ContractSourceRecord, codeType CodeType) *ContractCode {
	code := &ContractCode{ContractName: record.ContractName}
	if codeType == CodeTypeABI {
		code.Code = record.ABI
	} else {
		code.Code = NormalizeSource(record.SourceCode)
	}
	return code
}

func sameAddress(a, b string) bool {
	if common.IsHexAddress(a) && common.IsHexAddress(b) {
		return common.HexToAddress(a) == common.HexToAddress(b)
	}
	return strings.EqualFold(a, b)
}

// getContractABI fetches the ABI of address itself, without proxy resolution.
func getContractABI(ctx context.Context, explorer Explorer, address string, network NetworkConfig) (string, error) {
	envelope, err := explorer.Request(ctx, network, url.Values{
		"module":  {"contract"},
		"action":  {"getabi"},
		"address": {address},
	})
	if err != nil {
		return "", err
	}
	if err := envelope.Err(); err != nil {
		return "", err
	}
	var abi string
	if err := json.Unmarshal(envelope.Result, &abi); err != nil {
		return "", fmt.Errorf("failed to decode getabi result: %w", err)
	}
	return abi, nil
}
