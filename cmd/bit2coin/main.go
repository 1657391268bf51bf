package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/furaguy/bit2coin/core"
	"github.com/furaguy/bit2coin/core/state"
	"github.com/furaguy/bit2coin/core/types"
	"github.com/furaguy/bit2coin/kvdb"
	"github.com/furaguy/bit2coin/params"
)

var (
	cfg_file string
	datadir  string
	log      *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "bit2coin",
	Short: "bit2coin ledger node tooling",
	Long:  "Inspect and manage a bit2coin ledger database. Networking is handled by the node daemon, not this tool.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

func initConfig() error {
	viper.SetDefault("datadir", defaultDatadir())
	viper.SetDefault("db.type", "leveldb")
	viper.SetDefault("db.cache", 64)
	viper.SetDefault("db.handles", 64)
	viper.SetDefault("log.file", "")
	if cfg_file != "" {
		viper.SetConfigFile(cfg_file)
		if err := viper.ReadInConfig(); err != nil {
			return err
		}
	}
	if datadir == "" {
		datadir = viper.GetString("datadir")
	}
	var out io.Writer = os.Stderr
	if file := viper.GetString("log.file"); file != "" {
		out = io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   file,
			MaxSize:    32, // MB
			MaxBackups: 4,
		})
	}
	log = slog.New(slog.NewTextHandler(out, nil))
	return nil
}

func defaultDatadir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".bit2coin"
	}
	return filepath.Join(home, ".bit2coin")
}

func chainConfig() *params.ChainConfig {
	cfg := params.DefaultChainConfig()
	if viper.IsSet("chain.minstake") {
		cfg.MinStake = big.NewInt(viper.GetInt64("chain.minstake"))
	}
	if viper.IsSet("chain.prunekeepblocks") {
		cfg.PruneKeepBlocks = viper.GetUint64("chain.prunekeepblocks")
	}
	if viper.IsSet("chain.checkpointinterval") {
		cfg.CheckpointInterval = viper.GetUint64("chain.checkpointinterval")
	}
	if viper.IsSet("chain.maxreorgdepth") {
		cfg.MaxReorgDepth = viper.GetUint64("chain.maxreorgdepth")
	}
	if viper.IsSet("chain.allownegativebalances") {
		cfg.AllowNegativeBalances = viper.GetBool("chain.allownegativebalances")
	}
	return cfg
}

// openDatabase selects the backend through the kvdb factory registry, so the
// config file can swap backends without code changes.
func openDatabase() (kvdb.Database, error) {
	cfg, err := json.Marshal(map[string]interface{}{
		"type": viper.GetString("db.type"),
		"options": map[string]interface{}{
			"file":    filepath.Join(datadir, "chaindata"),
			"cache":   viper.GetInt("db.cache"),
			"handles": viper.GetInt("db.handles"),
		},
	})
	if err != nil {
		return nil, err
	}
	var factory kvdb.GenericFactory
	if err := json.Unmarshal(cfg, &factory); err != nil {
		return nil, err
	}
	return factory.NewDB()
}

func openState() (*state.BlockchainState, error) {
	db, err := openDatabase()
	if err != nil {
		return nil, err
	}
	st, err := state.New(db, chainConfig())
	if err != nil {
		db.Close()
		return nil, err
	}
	return st, nil
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a chain database with the configured genesis allocation",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openState()
		if err != nil {
			return err
		}
		defer st.Close()
		if _, ok := st.GetChainHead(); ok {
			return fmt.Errorf("datadir %s already contains a chain", datadir)
		}
		genesis := &core.Genesis{
			Alloc:     core.BalanceMap{},
			Timestamp: viper.GetUint64("genesis.timestamp"),
		}
		for addr, amount := range viper.GetStringMapString("genesis.alloc") {
			if !common.IsHexAddress(addr) {
				return fmt.Errorf("invalid genesis address %q", addr)
			}
			value, ok := new(big.Int).SetString(amount, 10)
			if !ok || value.Sign() < 0 {
				return fmt.Errorf("invalid genesis amount %q for %s", amount, addr)
			}
			genesis.Alloc[common.HexToAddress(addr)] = value
		}
		b, err := genesis.Commit(st)
		if err != nil {
			return err
		}
		log.Info("genesis written", "hash", b.Hash.Hex(), "allocs", len(genesis.Alloc))
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print chain metadata",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openState()
		if err != nil {
			return err
		}
		defer st.Close()
		meta := st.GetChainMetadata()
		fmt.Printf("height:             %d\n", meta.Height)
		fmt.Printf("total transactions: %d\n", meta.TotalTransactions)
		if head, ok := st.GetChainHead(); ok {
			fmt.Printf("head:               %s\n", head.Hex())
		} else {
			fmt.Println("head:               (empty chain)")
		}
		return nil
	},
}

var balanceCmd = &cobra.Command{
	Use:   "balance <address>",
	Short: "Print the balance of an address",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !common.IsHexAddress(args[0]) {
			return fmt.Errorf("invalid address %q", args[0])
		}
		st, err := openState()
		if err != nil {
			return err
		}
		defer st.Close()
		balance, err := st.GetBalance(common.HexToAddress(args[0]))
		if err != nil {
			return err
		}
		fmt.Println(balance.String())
		return nil
	},
}

var blockCmd = &cobra.Command{
	Use:   "block <height|hash>",
	Short: "Print a block by height or hash",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openState()
		if err != nil {
			return err
		}
		defer st.Close()
		b, err := lookupBlock(st, args[0])
		if err != nil {
			return err
		}
		if b == nil {
			return fmt.Errorf("block %s not found", args[0])
		}
		fmt.Printf("height:   %d\n", b.Height)
		fmt.Printf("hash:     %s\n", b.Hash.Hex())
		fmt.Printf("previous: %s\n", b.PreviousHash.Hex())
		fmt.Printf("proposer: %s\n", b.Proposer.Hex())
		fmt.Printf("txs:      %d\n", len(b.Transactions))
		for _, tx := range b.Transactions {
			fmt.Printf("  %s  %s -> %s  %s\n", tx.ID.Hex(), tx.Sender.Hex(), tx.Recipient.Hex(), tx.Amount.String())
		}
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history <address>",
	Short: "Print the transaction history of an address",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) != 1 || !common.IsHexAddress(args[0]) {
			return fmt.Errorf("expected one hex address argument")
		}
		st, err := openState()
		if err != nil {
			return err
		}
		defer st.Close()
		history, err := st.GetTransactionHistory(common.HexToAddress(args[0]))
		if err != nil {
			return err
		}
		fmt.Printf("as sender (%d):\n", len(history.AsSender))
		for _, tx := range history.AsSender {
			fmt.Printf("  %s  -> %s  %s\n", tx.ID.Hex(), tx.Recipient.Hex(), tx.Amount.String())
		}
		fmt.Printf("as recipient (%d):\n", len(history.AsRecipient))
		for _, tx := range history.AsRecipient {
			fmt.Printf("  %s  <- %s  %s\n", tx.ID.Hex(), tx.Sender.Hex(), tx.Amount.String())
		}
		return nil
	},
}

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Prune old block bodies, keeping checkpoints and the retention window",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openState()
		if err != nil {
			return err
		}
		defer st.Close()
		pruned, err := state.NewPruner(st).Prune()
		if err != nil {
			return err
		}
		log.Info("pruning done", "blocks", pruned)
		return nil
	},
}

// lookupBlock accepts a decimal height or a 0x-prefixed block hash.
func lookupBlock(st *state.BlockchainState, id string) (*types.Block, error) {
	if height, err := strconv.ParseUint(id, 10, 64); err == nil {
		return st.GetBlockByHeight(height)
	}
	if len(id) == 2+2*common.HashLength && strings.HasPrefix(id, "0x") {
		return st.GetBlockByHash(common.HexToHash(id))
	}
	return nil, fmt.Errorf("%q is neither a height nor a block hash", id)
}

func main() {
	rootCmd.PersistentFlags().StringVar(&cfg_file, "config", "", "config file (yaml)")
	rootCmd.PersistentFlags().StringVar(&datadir, "datadir", "", "chain data directory")
	rootCmd.AddCommand(initCmd, statusCmd, balanceCmd, blockCmd, historyCmd, pruneCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
