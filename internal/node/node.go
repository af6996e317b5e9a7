// Package node wires storage, the contract host and the RPC server into a
// runnable daemon that can be embedded in any binary.
package node

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"

	"github.com/Klingon-tech/mysterybox/config"
	"github.com/Klingon-tech/mysterybox/internal/host"
	klog "github.com/Klingon-tech/mysterybox/internal/log"
	"github.com/Klingon-tech/mysterybox/internal/rpc"
	"github.com/Klingon-tech/mysterybox/internal/storage"
	"github.com/Klingon-tech/mysterybox/pkg/types"
	"github.com/rs/zerolog"
)

// Node is a fully-initialized contract node.
type Node struct {
	cfg        *config.Config
	deployment *config.Deployment
	logger     zerolog.Logger

	db   storage.DB
	host *host.Host

	rpcServer *rpc.Server
}

// New creates and initializes a new Node. It performs all setup steps
// (logger, deployment, storage, host, RPC) but does not start listening.
// Call Start() for that.
func New(cfg *config.Config) (*Node, error) {
	// ── 1. Set address HRP ──────────────────────────────────────────
	if cfg.Network == config.Testnet {
		types.SetAddressHRP(types.TestnetHRP)
	} else {
		types.SetAddressHRP(types.MainnetHRP)
	}

	// ── 2. Init logger ──────────────────────────────────────────────
	logFile := cfg.Log.File
	if logFile == "" {
		logsDir := cfg.LogsDir()
		if err := os.MkdirAll(logsDir, 0755); err != nil {
			return nil, fmt.Errorf("creating logs dir: %w", err)
		}
		logFile = filepath.Join(logsDir, "mysterybox.log")
	}
	if err := klog.Init(cfg.Log.Level, cfg.Log.JSON, expandHome(logFile)); err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}
	logger := klog.Node

	// ── 3. Deployment ───────────────────────────────────────────────
	dep, created, err := loadOrWriteDeployment(cfg)
	if err != nil {
		return nil, err
	}
	logger.Info().
		Str("contract_id", dep.ContractID).
		Str("network", string(cfg.Network)).
		Str("file", cfg.DeploymentFile()).
		Bool("written", created).
		Msg("Starting MysteryBox node")

	// ── 4. Open storage ─────────────────────────────────────────────
	db, err := openDB(cfg.DB.Backend, cfg.StatePath())
	if err != nil {
		return nil, err
	}
	logger.Info().Str("backend", cfg.DB.Backend).Str("path", cfg.StatePath()).Msg("Database opened")

	// ── 5. Contract host ────────────────────────────────────────────
	h, err := host.Deploy(db, dep)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("deploy contract: %w", err)
	}
	supply := h.Supply()
	logger.Info().
		Str("account", h.Account().String()).
		Str("deployment", h.DeploymentHash().Short()).
		Uint64("minted", supply.Minted).
		Uint64("remaining", supply.Remaining).
		Uint64("pending_income", h.PendingIncome()).
		Msg("Contract ready")

	n := &Node{
		cfg:        cfg,
		deployment: dep,
		logger:     logger,
		db:         db,
		host:       h,
	}

	// ── 6. RPC ──────────────────────────────────────────────────────
	if cfg.RPC.Enabled {
		addr := net.JoinHostPort(cfg.RPC.Addr, strconv.Itoa(cfg.RPC.Port))
		n.rpcServer = rpc.New(addr, h, cfg.RPC)
	}

	return n, nil
}

// Start begins serving RPC requests.
func (n *Node) Start() error {
	if n.rpcServer != nil {
		if err := n.rpcServer.Start(); err != nil {
			return err
		}
	}
	n.logger.Info().
		Str("rpc", n.RPCAddr()).
		Msg("Node started successfully")
	return nil
}

// Stop performs graceful shutdown in reverse order.
func (n *Node) Stop() {
	if n.rpcServer != nil {
		if err := n.rpcServer.Stop(); err != nil {
			n.logger.Warn().Err(err).Msg("RPC shutdown")
		}
	}
	if n.db != nil {
		if err := n.db.Close(); err != nil {
			n.logger.Warn().Err(err).Msg("Database close")
		}
	}
	n.logger.Info().Msg("Goodbye!")
	klog.Close()
}

// RPCAddr returns the address the RPC server is listening on.
func (n *Node) RPCAddr() string {
	if n.rpcServer == nil {
		return ""
	}
	return n.rpcServer.Addr()
}

// Host returns the contract host.
func (n *Node) Host() *host.Host {
	return n.host
}

// Deployment returns the deployment the node runs.
func (n *Node) Deployment() *config.Deployment {
	return n.deployment
}
