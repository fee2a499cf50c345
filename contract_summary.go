package main

import (
	"context"

	"golang.org/x/sync/errgroup"
)

type ContractSummary struct {
	ContractName string
	StartBlock   uint64
	ABI          string
}

type ContractSummaryResolver struct {
	startBlocks *StartBlockResolver
	code        *ContractCodeResolver
}

func NewContractSummaryResolver(startBlocks *StartBlockResolver, code *ContractCodeResolver) *ContractSummaryResolver {
	return &ContractSummaryResolver{startBlocks: startBlocks, code: code}
}

// Resolve looks up the start block and the ABI concurrently. A start block
// failure cancels the ABI lookup and wins over an ABI failure.
func (r *ContractSummaryResolver) Resolve(ctx context.Context, address string, network NetworkConfig) (*ContractSummary, error) {
	var (
		startBlock uint64
		abi        *ContractCode
		abiErr     error
	)
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		var err error
		startBlock, err = r.startBlocks.Resolve(groupCtx, address, network)
		return err
	})
	group.Go(func() error {
		// kept aside so an ABI failure never cancels the start block lookup
		abi, abiErr = r.code.Resolve(groupCtx, address, network, CodeTypeABI)
		return nil
	})
	if err := group.Wait(); err != nil {
		return nil, err
	}
	if abiErr != nil {
		return nil, abiErr
	}
	return &ContractSummary{
		ContractName: abi.ContractName,
		StartBlock:   startBlock,
		ABI:          abi.Code,
	}, nil
}
