package main

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"bitnode/internal/address"
	"bitnode/internal/block"
	"bitnode/internal/chain"
	"bitnode/internal/config"
	"bitnode/internal/dispatch"
	"bitnode/internal/ibd"
	"bitnode/internal/keys"
	"bitnode/internal/peer"
	"bitnode/internal/wallet"
)

var log = logrus.StandardLogger()

func main() {
	root := &cobra.Command{
		Use:   "bitnode",
		Short: "A testnet-only SPV Bitcoin node and wallet",
	}
	root.AddCommand(newRunCmd(), newWalletCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRunCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Connect to the testnet, run initial block download, then the dispatch loop",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNode(configPath)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to a key=value config file (spec.md §6)")
	return cmd
}

func runNode(configPath string) error {
	cfg := config.Config{
		DNSSeed:                    peer.TESTNET_SEEDS,
		TestnetPort:                peer.TESTNET_PORT,
		ProtocolVersion:            70015,
		NThreads:                   4,
		HeightFirstBlockToDownload: 1,
		StartTime:                  time.Now().Add(-24 * time.Hour),
	}
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		cfg = loaded
	}

	log.WithField("component", "run").Info("resolving dns seed")
	ips, err := net.LookupIP(cfg.DNSSeed)
	if err != nil {
		return fmt.Errorf("dns lookup %s: %w", cfg.DNSSeed, err)
	}

	state := chain.NewState(true)
	genesis, err := block.ParseBlock(bytes.NewReader(block.TESTNET_GENESIS_BLOCK))
	if err != nil {
		return fmt.Errorf("parsing genesis block: %w", err)
	}
	if err := state.AppendHeader(genesis); err != nil {
		return fmt.Errorf("seeding genesis header: %w", err)
	}

	disp := dispatch.New(state, true, log)

	var peers []*peer.Peer
	for _, ip := range ips {
		if ip.To4() == nil {
			continue
		}
		if len(peers) >= cfg.NThreads {
			break
		}

		p, err := peer.Dial(ip.String(), cfg.TestnetPort, true, log)
		if err != nil {
			log.WithError(err).WithField("ip", ip.String()).Warn("dial failed")
			continue
		}
		if err := p.Handshake(int32(state.HeaderCount())); err != nil {
			log.WithError(err).WithField("ip", ip.String()).Warn("handshake failed")
			_ = p.Close()
			continue
		}

		disp.Attach(p)
		state.AddPeer(p)
		peers = append(peers, p)
	}
	if len(peers) == 0 {
		return fmt.Errorf("no usable peers from dns seed %s", cfg.DNSSeed)
	}
	defer func() {
		for _, p := range state.Peers() {
			_ = p.Close()
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pipeline := ibd.New(state, ibd.Config{
		Workers:          cfg.NThreads,
		SingleNode:       cfg.IBDSingleNode,
		StartTime:        cfg.StartTime,
		FirstBlockHeight: cfg.HeightFirstBlockToDownload,
	}, log)

	log.WithField("peers", len(peers)).Info("starting initial block download")
	if err := pipeline.Run(ctx, peers[0], peers); err != nil {
		return fmt.Errorf("ibd: %w", err)
	}
	log.WithField("headers", state.HeaderCount()).WithField("blocks", state.BlockCount()).
		Info("initial block download complete, entering dispatch loop")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Info("shutting down")
	return nil
}

func newWalletCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wallet",
		Short: "Account management: create, check balance, and send",
	}
	cmd.AddCommand(newWalletNewCmd(), newWalletBalanceCmd(), newWalletSendCmd())
	return cmd
}

func newWalletNewCmd() *cobra.Command {
	var wif string
	cmd := &cobra.Command{
		Use:   "new",
		Short: "Derive a testnet address from a WIF private key",
		RunE: func(cmd *cobra.Command, args []string) error {
			privKey, compressed, err := keys.ParseWIF(wif)
			if err != nil {
				return err
			}
			pubKey := privKey.PublicKey()
			addr, err := address.FromPublicKey(pubKey.Serialize(compressed), address.TESTNET)
			if err != nil {
				return err
			}
			fmt.Println(addr.String)
			return nil
		},
	}
	cmd.Flags().StringVar(&wif, "wif", "", "WIF-encoded private key")
	cmd.MarkFlagRequired("wif")
	return cmd
}

func newWalletBalanceCmd() *cobra.Command {
	var wif, addr string
	cmd := &cobra.Command{
		Use:   "balance",
		Short: "Report an account's cached UTXO total",
		RunE: func(cmd *cobra.Command, args []string) error {
			acct, err := chain.NewAccount(wif, addr, true)
			if err != nil {
				return err
			}
			fmt.Printf("%d\n", wallet.Balance(acct))
			return nil
		},
	}
	cmd.Flags().StringVar(&wif, "wif", "", "WIF-encoded private key")
	cmd.Flags().StringVar(&addr, "address", "", "expected testnet address")
	cmd.MarkFlagRequired("wif")
	cmd.MarkFlagRequired("address")
	return cmd
}

func newWalletSendCmd() *cobra.Command {
	var wif, addr, to string
	var amount, fee uint64
	cmd := &cobra.Command{
		Use:   "send",
		Short: "Construct, sign and broadcast a P2PKH transaction",
		RunE: func(cmd *cobra.Command, args []string) error {
			acct, err := chain.NewAccount(wif, addr, true)
			if err != nil {
				return err
			}
			state := chain.NewState(true)
			state.AddAccount(acct)

			tx, err := wallet.Send(state, acct, to, amount, fee, true)
			if err != nil {
				return err
			}
			txid, err := tx.ID()
			if err != nil {
				return err
			}
			fmt.Println(txid)
			return nil
		},
	}
	cmd.Flags().StringVar(&wif, "wif", "", "WIF-encoded private key")
	cmd.Flags().StringVar(&addr, "address", "", "sender's testnet address")
	cmd.Flags().StringVar(&to, "to", "", "receiver's testnet address")
	cmd.Flags().Uint64Var(&amount, "amount", 0, "amount in satoshis")
	cmd.Flags().Uint64Var(&fee, "fee", wallet.DefaultFee, "fee in satoshis")
	cmd.MarkFlagRequired("wif")
	cmd.MarkFlagRequired("address")
	cmd.MarkFlagRequired("to")
	cmd.MarkFlagRequired("amount")
	return cmd
}
