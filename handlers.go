package main

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	goerrors "github.com/go-errors/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const unknownErrorMessage = "unknown error"

type Server struct {
	log         *slog.Logger
	networks    *NetworkRegistry
	explorer    Explorer
	startBlocks *StartBlockResolver
	code        *ContractCodeResolver
	summaries   *ContractSummaryResolver
}

func NewServer(log *slog.Logger, networks *NetworkRegistry, explorer Explorer, detector *ProxyDetector, maxProxyHops int) *Server {
	startBlocks := NewStartBlockResolver(explorer)
	code := NewContractCodeResolver(log, explorer, detector, maxProxyHops)
	return &Server{
		log:         log,
		networks:    networks,
		explorer:    explorer,
		startBlocks: startBlocks,
		code:        code,
		summaries:   NewContractSummaryResolver(startBlocks, code),
	}
}

func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(requestLogger(s.log), recovery(s.log))

	config := cors.DefaultConfig()
	config.AllowAllOrigins = true
	router.Use(cors.New(config))

	api := router.Group("/api")
	api.GET("/startblock", s.getStartBlock)
	api.GET("/code", s.getCode)
	api.GET("/contract", s.getContract)
	api.GET("/abi", s.getABI)
	api.GET("/sourcecode", s.getSourceCode)
	api.GET("/networks", s.getNetworks)

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return router
}

// target reads and validates the address and network query parameters.
func (s *Server) target(c *gin.Context) (string, NetworkConfig, error) {
	address := strings.TrimSpace(c.Query("address"))
	if !strings.HasPrefix(address, "0x") || !common.IsHexAddress(address) {
		return "", NetworkConfig{}, &InvalidInputError{message: "Invalid address: must be a 0x-prefixed 20-byte hex address"}
	}
	network, err := s.networks.Lookup(c.DefaultQuery("network", defaultNetwork))
	if err != nil {
		return "", NetworkConfig{}, err
	}
	return address, network, nil
}

// publicError returns the message and status code the client gets for err.
// Transport failures and unexpected errors are logged and hidden behind a
// generic message.
func (s *Server) publicError(c *gin.Context, err error) (string, int) {
	var (
		domainErr    *DomainError
		inputErr     *InvalidInputError
		networkErr   *UnknownNetworkError
		notFoundErr  *ContractNotFoundError
		cycleErr     *ProxyCycleError
		transportErr *TransportError
	)
	switch {
	case errors.As(err, &domainErr), errors.As(err, &inputErr), errors.As(err, &networkErr),
		errors.As(err, &notFoundErr), errors.As(err, &cycleErr):
		return err.Error(), http.StatusOK
	case errors.As(err, &transportErr):
		s.log.Warn("Explorer request failed",
			"path", c.Request.URL.Path,
			"network", transportErr.Network,
			"action", transportErr.Action,
			"timeout", transportErr.Timeout(),
			"error", transportErr.Err,
		)
		return unknownErrorMessage, http.StatusOK
	default:
		wrapped := goerrors.Wrap(err, 1)
		s.log.Error("Unexpected error handling request",
			"path", c.Request.URL.Path,
			"kind", fmt.Sprintf("%T", err),
			"error", err.Error(),
			"stack", string(wrapped.Stack()),
		)
		return unknownErrorMessage, http.StatusInternalServerError
	}
}

func (s *Server) getStartBlock(c *gin.Context) {
	address, network, err := s.target(c)
	var blockNumber uint64
	if err == nil {
		blockNumber, err = s.startBlocks.Resolve(c.Request.Context(), address, network)
	}
	if err != nil {
		msg, status := s.publicError(c, err)
		c.JSON(status, gin.H{
			"data":  gin.H{"blockNumber": 0},
			"error": gin.H{"msg": msg},
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"data": gin.H{"blockNumber": strconv.FormatUint(blockNumber, 10)},
	})
}

func (s *Server) getCode(c *gin.Context) {
	address, network, err := s.target(c)
	var codeType CodeType
	if err == nil {
		codeType, err = ParseCodeType(c.Query("codeType"))
	}
	var code *ContractCode
	if err == nil {
		code, err = s.code.Resolve(c.Request.Context(), address, network, codeType)
	}
	if err != nil {
		msg, status := s.publicError(c, err)
		writeText(c, status, msg)
		return
	}
	if codeType == CodeTypeABI {
		writeText(c, http.StatusOK, FormatABI(code.Code))
		return
	}
	writeText(c, http.StatusOK, code.Code)
}

func (s *Server) getContract(c *gin.Context) {
	address, network, err := s.target(c)
	var summary *ContractSummary
	if err == nil {
		summary, err = s.summaries.Resolve(c.Request.Context(), address, network)
	}
	if err != nil {
		msg, status := s.publicError(c, err)
		c.JSON(status, Fail[ContractSummary](msg))
		return
	}
	c.JSON(http.StatusOK, Ok(summary))
}

func (s *Server) getABI(c *gin.Context) {
	address, network, err := s.target(c)
	var abi string
	if err == nil {
		abi, err = getContractABI(c.Request.Context(), s.explorer, address, network)
	}
	if err != nil {
		msg, status := s.publicError(c, err)
		c.JSON(status, gin.H{"error": gin.H{"msg": msg}})
		return
	}
	writeText(c, http.StatusOK, FormatABI(abi))
}

func (s *Server) getSourceCode(c *gin.Context) {
	address, network, err := s.target(c)
	var record *ContractSourceRecord
	if err == nil {
		record, err = getSourceCode(c.Request.Context(), s.explorer, address, network)
	}
	if err != nil {
		msg, status := s.publicError(c, err)
		c.JSON(status, gin.H{"error": gin.H{"msg": msg}})
		return
	}
	writeText(c, http.StatusOK, NormalizeSource(record.SourceCode))
}

func (s *Server) getNetworks(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": s.networks.Names()})
}

func writeText(c *gin.Context, status int, text string) {
	c.Data(status, "text/plain; charset=utf-8", []byte(text))
}
