package main

import (
	"bytes"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/chronodrachma/chrd/pkg/config"
	"github.com/chronodrachma/chrd/pkg/core/consensus"
	"github.com/chronodrachma/chrd/pkg/core/mainchain"
	"github.com/chronodrachma/chrd/pkg/core/mainchain/transport"
	"github.com/chronodrachma/chrd/pkg/core/mainchain/trust"
	"github.com/chronodrachma/chrd/pkg/rpc"
)

func main() {
	runCmd := flag.NewFlagSet("run", flag.ExitOnError)

	listenAddr := runCmd.String("addr", ":9100", "Main-chain sync listen address")
	seedAddr := runCmd.String("seed", "", "Main-chain sync seed address to connect to")
	rpcPort := runCmd.String("rpc", ":8080", "RPC server port")
	dbPath := runCmd.String("db", "data_mainchain", "Main-chain store directory")

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "run":
		runCmd.Parse(os.Args[2:])
		startNode(*listenAddr, *seedAddr, *rpcPort, *dbPath)
	case "status":
		statusCmd := flag.NewFlagSet("status", flag.ExitOnError)
		rpcURL := statusCmd.String("rpc", "http://localhost:8080", "RPC server URL")
		statusCmd.Parse(os.Args[2:])
		handleStatus(*rpcURL)
	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  chrd run [flags]")
	fmt.Println("  chrd status --rpc <url>")
}

// startNode runs the main-chain synchronisation core: a chain store, the
// pull-sync state machine, push-gossip ingestion and an RPC server
// exposing status/block lookups and Prometheus metrics.
func startNode(listenAddr, seedAddr, rpcPort, dbPath string) {
	log.Printf("Starting Chronodrachma main-chain sync node (Testnet)...")

	seed := make([]byte, 32)
	hasher, err := consensus.NewHasher(seed, false)
	if err != nil {
		log.Fatalf("Failed to initialize hasher: %v", err)
	}
	defer hasher.Close()

	persister, err := mainchain.NewBadgerPersister(dbPath)
	if err != nil {
		log.Fatalf("Failed to open main-chain store: %v", err)
	}
	defer persister.Close()

	genesisTime := config.TestnetConfig.GenesisTimestamp
	store, err := mainchain.NewStore(persister, mainchain.GenesisInfo{
		Miner:     config.GenesisMinerAddress,
		Timestamp: genesisTime,
	})
	if err != nil {
		log.Fatalf("Failed to load main-chain store: %v", err)
	}
	defer store.Close()

	syncCfg := config.TestnetSyncConfig
	syncCfg.ListenAddr = listenAddr
	if seedAddr != "" {
		syncCfg.SeedNodes = append(syncCfg.SeedNodes, seedAddr)
	}
	mode := networkModeFor(syncCfg.Mode)

	trustSys := trust.NewSimple(syncCfg.TrustThreshold)
	gossip := mainchain.NewGossip(store, hasher, trustSys, mode, nil)

	srv := transport.NewServer(transport.ServerConfig{
		ListenAddr: syncCfg.ListenAddr,
		SeedNodes:  syncCfg.SeedNodes,
	})
	mainchain.NewProtocol(store).RegisterTransport(srv)
	srv.HandleGossip(func(payload []byte) bool {
		blk, err := mainchain.DecodeBlock(bytes.NewReader(payload))
		if err != nil {
			log.Printf("mainchain: bad gossip payload: %v", err)
			return false
		}
		return gossip.OnNewBlock(srv.Addr(), blk, srv.Addr())
	})
	if err := srv.Start(); err != nil {
		log.Fatalf("Failed to start main-chain transport: %v", err)
	}
	defer srv.Stop()

	syncSvc := mainchain.NewService(store, srv, trustSys, gossip, mode)

	var group errgroup.Group
	group.Go(func() error {
		syncSvc.Run()
		return nil
	})

	rpcServer := rpc.NewServer(store, syncSvc, srv)
	go func() {
		log.Printf("RPC Server listening on %s", rpcPort)
		if err := rpcServer.Start(rpcPort); err != nil && err != http.ErrServerClosed {
			log.Printf("RPC Server error: %v", err)
		}
	}()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c
	log.Println("Shutting down...")

	syncSvc.Stop()
	group.Wait()
}

// networkModeFor translates config's sync mode enum into mainchain's, kept
// separate so config has no import dependency on mainchain.
func networkModeFor(m config.SyncMode) mainchain.NetworkMode {
	switch m {
	case config.SyncPublicNetwork:
		return mainchain.PublicNetwork
	case config.SyncPrivateNetwork:
		return mainchain.PrivateNetwork
	default:
		return mainchain.Standalone
	}
}

func handleStatus(rpcURL string) {
	resp, err := http.Get(fmt.Sprintf("%s/status", rpcURL))
	if err != nil {
		log.Fatalf("RPC error: %v", err)
	}
	defer resp.Body.Close()
	var body bytes.Buffer
	body.ReadFrom(resp.Body)
	fmt.Println(body.String())
}
