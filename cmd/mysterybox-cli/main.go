// mysterybox-cli is a command-line client for interacting with a mysteryboxd node.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/Klingon-tech/mysterybox/config"
	"github.com/Klingon-tech/mysterybox/internal/rpc"
	"github.com/Klingon-tech/mysterybox/internal/rpcclient"
	"github.com/Klingon-tech/mysterybox/internal/wallet"
	"github.com/Klingon-tech/mysterybox/pkg/crypto"
	"github.com/Klingon-tech/mysterybox/pkg/types"
	"golang.org/x/term"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	// Parse global flags that appear before the subcommand.
	rpcURL := ""
	dataDir := config.DefaultDataDir()
	network := string(config.Mainnet)

	args := os.Args[1:]
	for len(args) > 0 {
		switch {
		case args[0] == "--rpc" && len(args) > 1:
			rpcURL = args[1]
			args = args[2:]
		case strings.HasPrefix(args[0], "--rpc="):
			rpcURL = args[0][len("--rpc="):]
			args = args[1:]
		case args[0] == "--datadir" && len(args) > 1:
			dataDir = args[1]
			args = args[2:]
		case strings.HasPrefix(args[0], "--datadir="):
			dataDir = args[0][len("--datadir="):]
			args = args[1:]
		case args[0] == "--network" && len(args) > 1:
			network = args[1]
			args = args[2:]
		case strings.HasPrefix(args[0], "--network="):
			network = args[0][len("--network="):]
			args = args[1:]
		case args[0] == "--testnet":
			network = string(config.Testnet)
			args = args[1:]
		default:
			goto dispatch
		}
	}

dispatch:
	cfg := config.Default(config.NetworkType(network))
	cfg.DataDir = dataDir
	if network == string(config.Testnet) {
		types.SetAddressHRP(types.TestnetHRP)
	} else {
		types.SetAddressHRP(types.MainnetHRP)
	}
	if rpcURL == "" {
		rpcURL = fmt.Sprintf("http://%s:%d", cfg.RPC.Addr, cfg.RPC.Port)
	}

	if len(args) == 0 {
		usage()
		os.Exit(1)
	}

	keysDir := cfg.KeysDir()
	client := rpcclient.New(rpcURL)
	cmd := args[0]
	cmdArgs := args[1:]

	switch cmd {
	case "info":
		cmdInfo(client)
	case "supply":
		cmdSupply(client)
	case "price":
		cmdPrice(client)
	case "cost":
		cmdCost(client, cmdArgs)
	case "metadata":
		cmdMetadata(client)
	case "royalty":
		cmdRoyalty(client)
	case "pending":
		cmdPending(client)
	case "payout":
		cmdPayout(client, cmdArgs)
	case "token":
		cmdToken(client, cmdArgs)
	case "tokens":
		cmdTokens(client, cmdArgs)
	case "balance":
		cmdBalance(client, cmdArgs)
	case "key":
		cmdKey(cmdArgs, keysDir)
	case "buy":
		cmdBuy(client, cmdArgs, keysDir)
	case "distribute":
		cmdDistribute(client, cmdArgs, keysDir)
	case "transfer":
		cmdTransfer(client, cmdArgs, keysDir)
	case "approve":
		cmdApprove(client, cmdArgs, keysDir)
	case "revoke":
		cmdRevoke(client, cmdArgs, keysDir)
	case "approved":
		cmdApproved(client, cmdArgs)
	case "help", "--help", "-h":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: mysterybox-cli [global flags] <command> [flags]

Global flags:
  --rpc <url>         RPC endpoint (default: http://127.0.0.1:8645, testnet 8745)
  --datadir <path>    Data directory (default: ~/.mysterybox)
  --network <net>     mainnet (default) or testnet
  --testnet           Shorthand for --network testnet

Contract:
  info                            Show contract identity
  supply                          Show minted and remaining tokens
  price                           Show the unit price
  cost <n>                        Show price and required deposit for n tokens
  metadata                        Show collection metadata
  royalty                         Show the royalty table
  pending                         Show undistributed income
  payout <token_id> <amount>      Show the royalty split of a sale

Tokens and accounts:
  token <token_id>                Show a token
  tokens <address> [--from n] [--limit n]
                                  List tokens held by an address
  balance <address>               Show balance and nonce
  approved <token_id> <address> [approval_id]
                                  Check whether an address may transfer a token

Keys:
  key new --name <n>              Create a key from a new mnemonic
  key import --name <n> [--account a] [--index i]
                                  Import a key from a mnemonic (read from stdin)
  key list                        List key files
  key address --name <n>          Show a key's address

Calls:
  buy --key <n> --n <count> [--deposit <amt>]
                                  Buy tokens (deposit defaults to the required amount)
  distribute --key <n>            Pay out pending income
  transfer --key <n> --to <addr> --token <id> [--approval <id>] [--memo <text>]
                                  Transfer a token (--approval when sending as an approved account)
  approve --key <n> --token <id> --account <addr> [--msg <text>]
                                  Let an account transfer a token
  revoke --key <n> --token <id> [--account <addr>]
                                  Withdraw one approval, or all without --account
`)
}

// ── Contract views ──────────────────────────────────────────────────────

func cmdInfo(client *rpcclient.Client) {
	info, err := client.Info()
	if err != nil {
		fatal("contract_info: %v", err)
	}
	fmt.Printf("Contract:    %s\n", info.ContractID)
	fmt.Printf("Account:     %s\n", info.Account)
	fmt.Printf("Deployment:  %s\n", info.DeploymentHash)
	fmt.Printf("Collection:  %s (%s)\n", info.Metadata.Name, info.Metadata.Symbol)
}

func cmdSupply(client *rpcclient.Client) {
	s, err := client.Supply()
	if err != nil {
		fatal("nft_supply: %v", err)
	}
	fmt.Printf("Capacity:   %d\n", s.Capacity)
	fmt.Printf("Minted:     %d\n", s.Minted)
	fmt.Printf("Remaining:  %d\n", s.Remaining)
	fmt.Printf("Next ID:    %d\n", s.NextID)
}

func cmdPrice(client *rpcclient.Client) {
	price, err := client.UnitPrice()
	if err != nil {
		fatal("contract_unitPrice: %v", err)
	}
	fmt.Printf("Unit price: %s\n", formatAmount(price))
}

func cmdCost(client *rpcclient.Client, args []string) {
	if len(args) < 1 {
		fatal("Usage: mysterybox-cli cost <n>")
	}
	n, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		fatal("invalid count: %v", err)
	}
	cost, err := client.CostFor(n)
	if err != nil {
		fatal("contract_costFor: %v", err)
	}
	deposit, err := client.RequiredDeposit(n)
	if err != nil {
		fatal("contract_requiredDeposit: %v", err)
	}
	fmt.Printf("Cost:              %s\n", formatAmount(cost))
	fmt.Printf("Required deposit:  %s\n", formatAmount(deposit))
}

func cmdMetadata(client *rpcclient.Client) {
	md, err := client.Metadata()
	if err != nil {
		fatal("nft_metadata: %v", err)
	}
	printJSON(md)
}

func cmdRoyalty(client *rpcclient.Client) {
	r, err := client.Royalty()
	if err != nil {
		fatal("royalty_get: %v", err)
	}
	if !r.Enabled {
		fmt.Println("Royalty disabled")
		return
	}
	fmt.Printf("Rate: %d bp\n", r.RateBP)
	for _, e := range r.Entries {
		fmt.Printf("  %s  %5d bp\n", e.Beneficiary, e.ShareBP)
	}
}

func cmdPending(client *rpcclient.Client) {
	v, err := client.PendingIncome()
	if err != nil {
		fatal("contract_pendingIncome: %v", err)
	}
	fmt.Printf("Pending income: %s\n", formatAmount(v))
}

func cmdPayout(client *rpcclient.Client, args []string) {
	if len(args) < 2 {
		fatal("Usage: mysterybox-cli payout <token_id> <amount>")
	}
	id, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		fatal("invalid token id: %v", err)
	}
	amount, err := parseAmount(args[1])
	if err != nil {
		fatal("invalid amount: %v", err)
	}
	payout, err := client.Payout(id, amount)
	if err != nil {
		fatal("nft_payout: %v", err)
	}
	for addr, v := range payout {
		fmt.Printf("  %s  %s\n", addr, formatAmount(v))
	}
}

// ── Tokens and accounts ─────────────────────────────────────────────────

func cmdToken(client *rpcclient.Client, args []string) {
	if len(args) < 1 {
		fatal("Usage: mysterybox-cli token <token_id>")
	}
	id, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		fatal("invalid token id: %v", err)
	}
	tok, err := client.Token(id)
	if err != nil {
		fatal("nft_token: %v", err)
	}
	fmt.Printf("Token %d owned by %s\n", tok.ID, tok.Owner)
	if md := tok.Metadata; md != nil {
		fmt.Printf("  Title:     %s\n", md.Title)
		fmt.Printf("  Media:     %s\n", md.Media)
		fmt.Printf("  Reference: %s\n", md.Reference)
		fmt.Printf("  Issued at: %s\n", md.IssuedAt)
	}
	for account, id := range tok.Approvals {
		fmt.Printf("  Approved:  %s (id %d)\n", account, id)
	}
}

func cmdTokens(client *rpcclient.Client, args []string) {
	if len(args) < 1 {
		fatal("Usage: mysterybox-cli tokens <address> [--from n] [--limit n]")
	}
	addr := parseAddress(args[0])
	fs := flag.NewFlagSet("tokens", flag.ExitOnError)
	from := fs.Int("from", 0, "Skip this many tokens")
	limit := fs.Int("limit", 0, "Maximum tokens to list (0 = all)")
	fs.Parse(args[1:])

	tokens, err := client.TokensForOwner(addr, *from, *limit)
	if err != nil {
		fatal("nft_tokensForOwner: %v", err)
	}
	if len(tokens) == 0 {
		fmt.Println("No tokens")
		return
	}
	for _, tok := range tokens {
		fmt.Printf("  #%d\n", tok.ID)
	}
}

func cmdBalance(client *rpcclient.Client, args []string) {
	if len(args) < 1 {
		fatal("Usage: mysterybox-cli balance <address>")
	}
	addr := parseAddress(args[0])
	bal, err := client.Balance(addr)
	if err != nil {
		fatal("account_getBalance: %v", err)
	}
	nonce, err := client.Nonce(addr)
	if err != nil {
		fatal("account_getNonce: %v", err)
	}
	fmt.Printf("Address:  %s\n", addr)
	fmt.Printf("Balance:  %s\n", formatAmount(bal))
	fmt.Printf("Nonce:    %d\n", nonce)
}

// ── Keys ────────────────────────────────────────────────────────────────

func keyPath(keysDir, name string) string {
	return filepath.Join(keysDir, name+".json")
}

func cmdKey(args []string, keysDir string) {
	if len(args) < 1 {
		fatal("Usage: mysterybox-cli key <new|import|list|address> [flags]")
	}
	switch args[0] {
	case "new":
		cmdKeyNew(args[1:], keysDir)
	case "import":
		cmdKeyImport(args[1:], keysDir)
	case "list":
		cmdKeyList(keysDir)
	case "address":
		cmdKeyAddress(args[1:], keysDir)
	default:
		fatal("Unknown key command: %s", args[0])
	}
}

func cmdKeyNew(args []string, keysDir string) {
	fs := flag.NewFlagSet("key new", flag.ExitOnError)
	name := fs.String("name", "", "Key name")
	fs.Parse(args)
	if *name == "" {
		fatal("Usage: mysterybox-cli key new --name <name>")
	}

	mnemonic, err := wallet.GenerateMnemonic()
	if err != nil {
		fatal("generate mnemonic: %v", err)
	}
	fmt.Println("Mnemonic (write this down!):")
	fmt.Printf("  %s\n\n", mnemonic)

	saveMnemonicKey(keysDir, *name, mnemonic, 0, 0)
}

func cmdKeyImport(args []string, keysDir string) {
	fs := flag.NewFlagSet("key import", flag.ExitOnError)
	name := fs.String("name", "", "Key name")
	account := fs.Uint("account", 0, "BIP-44 account")
	index := fs.Uint("index", 0, "Address index")
	fs.Parse(args)
	if *name == "" {
		fatal("Usage: mysterybox-cli key import --name <name> [--account a] [--index i]")
	}

	phrase, err := readPassword("Enter mnemonic: ")
	if err != nil {
		fatal("read mnemonic: %v", err)
	}
	mnemonic := strings.Join(strings.Fields(string(phrase)), " ")
	if !wallet.ValidateMnemonic(mnemonic) {
		fatal("invalid mnemonic")
	}
	saveMnemonicKey(keysDir, *name, mnemonic, uint32(*account), uint32(*index))
}

func saveMnemonicKey(keysDir, name, mnemonic string, account, index uint32) {
	key, err := wallet.SignerFromMnemonic(mnemonic, "", account, index)
	if err != nil {
		fatal("derive key: %v", err)
	}
	defer key.Zero()

	password := readNewPassword()
	kf, err := wallet.NewKeyfile(key, password, wallet.DefaultParams())
	clear(password)
	if err != nil {
		fatal("encrypt key: %v", err)
	}
	kf.Path = wallet.AccountPath(account, index)
	if err := kf.Save(keyPath(keysDir, name)); err != nil {
		fatal("save key: %v", err)
	}

	fmt.Printf("\nKey saved: %s\n", name)
	fmt.Printf("Address: %s\n", key.Address())
}

func cmdKeyList(keysDir string) {
	paths, err := filepath.Glob(filepath.Join(keysDir, "*.json"))
	if err != nil {
		fatal("list keys: %v", err)
	}
	if len(paths) == 0 {
		fmt.Println("No keys")
		return
	}
	for _, p := range paths {
		kf, err := wallet.LoadKeyfile(p)
		if err != nil {
			fmt.Fprintf(os.Stderr, "  skipping %s: %v\n", filepath.Base(p), err)
			continue
		}
		addr, err := kf.Account()
		if err != nil {
			continue
		}
		fmt.Printf("  %-16s %s\n", strings.TrimSuffix(filepath.Base(p), ".json"), addr)
	}
}

func cmdKeyAddress(args []string, keysDir string) {
	fs := flag.NewFlagSet("key address", flag.ExitOnError)
	name := fs.String("name", "", "Key name")
	fs.Parse(args)
	if *name == "" {
		fatal("Usage: mysterybox-cli key address --name <name>")
	}
	kf, err := wallet.LoadKeyfile(keyPath(keysDir, *name))
	if err != nil {
		fatal("%v", err)
	}
	addr, err := kf.Account()
	if err != nil {
		fatal("%v", err)
	}
	fmt.Println(addr)
}

// unlockKey loads and decrypts a named key file.
func unlockKey(keysDir, name string) *crypto.PrivateKey {
	if name == "" {
		fatal("--key is required")
	}
	kf, err := wallet.LoadKeyfile(keyPath(keysDir, name))
	if err != nil {
		fatal("%v", err)
	}
	password, err := readPassword("Enter password: ")
	if err != nil {
		fatal("read password: %v", err)
	}
	defer clear(password)
	key, err := kf.Unlock(password)
	if err != nil {
		fatal("unlock key: %v", err)
	}
	return key
}

// ── Calls ───────────────────────────────────────────────────────────────

func cmdBuy(client *rpcclient.Client, args []string, keysDir string) {
	fs := flag.NewFlagSet("buy", flag.ExitOnError)
	keyName := fs.String("key", "", "Key name")
	n := fs.Int64("n", 1, "Number of tokens")
	depositStr := fs.String("deposit", "", "Attached deposit (default: required deposit)")
	fs.Parse(args)

	var deposit uint64
	var err error
	if *depositStr != "" {
		deposit, err = parseAmount(*depositStr)
		if err != nil {
			fatal("invalid deposit: %v", err)
		}
	} else {
		deposit, err = client.RequiredDeposit(*n)
		if err != nil {
			fatal("contract_requiredDeposit: %v", err)
		}
	}

	key := unlockKey(keysDir, *keyName)
	defer key.Zero()

	res, err := client.Buy(key, *n, deposit)
	if err != nil {
		fatal("contract_buy: %v", err)
	}
	fmt.Printf("Bought %d token(s):", len(res.Tokens))
	for _, tok := range res.Tokens {
		fmt.Printf(" #%d", tok.ID)
	}
	fmt.Println()
	fmt.Printf("  Cost:     %s\n", formatAmount(res.Cost))
	if res.StorageCost > 0 {
		fmt.Printf("  Storage:  %s\n", formatAmount(res.StorageCost))
	}
	fmt.Printf("  Refund:   %s\n", formatAmount(res.Refund))
	for _, f := range res.Failed {
		fmt.Printf("  Failed %s of %s to %s: %s\n", f.Transfer.Kind, formatAmount(f.Transfer.Amount), f.Transfer.To, f.Error)
	}
}

func cmdDistribute(client *rpcclient.Client, args []string, keysDir string) {
	fs := flag.NewFlagSet("distribute", flag.ExitOnError)
	keyName := fs.String("key", "", "Key name")
	fs.Parse(args)

	key := unlockKey(keysDir, *keyName)
	defer key.Zero()

	res, err := client.DistributeIncome(key)
	if err != nil {
		fatal("contract_distributeIncome: %v", err)
	}
	fmt.Printf("Distributed %s of %s (retained %s)\n",
		formatAmount(res.Distributed), formatAmount(res.Pool), formatAmount(res.Retained))
	for _, p := range res.Payouts {
		fmt.Printf("  %s  %s\n", p.To, formatAmount(p.Amount))
	}
	for _, f := range res.Failed {
		fmt.Printf("  Failed %s to %s: %s\n", formatAmount(f.Transfer.Amount), f.Transfer.To, f.Error)
	}
}

func cmdTransfer(client *rpcclient.Client, args []string, keysDir string) {
	fs := flag.NewFlagSet("transfer", flag.ExitOnError)
	keyName := fs.String("key", "", "Key name")
	to := fs.String("to", "", "Receiver address")
	tokenID := fs.Uint64("token", 0, "Token ID")
	memo := fs.String("memo", "", "Optional memo")
	approval := fs.String("approval", "", "Approval id, when sending as an approved account")
	fs.Parse(args)

	if *to == "" || *tokenID == 0 {
		fatal("Usage: mysterybox-cli transfer --key <n> --to <addr> --token <id> [--approval <id>] [--memo <text>]")
	}
	receiver := parseAddress(*to)
	approvalID := parseApprovalID(*approval)

	key := unlockKey(keysDir, *keyName)
	defer key.Zero()

	res, err := client.TransferApproved(key, receiver, *tokenID, approvalID, *memo)
	if err != nil {
		fatal("nft_transfer: %v", err)
	}
	fmt.Printf("Token #%d now owned by %s\n", res.Token.ID, res.Token.Owner)
}

func cmdApprove(client *rpcclient.Client, args []string, keysDir string) {
	fs := flag.NewFlagSet("approve", flag.ExitOnError)
	keyName := fs.String("key", "", "Key name")
	tokenID := fs.Uint64("token", 0, "Token ID")
	account := fs.String("account", "", "Account to approve")
	msg := fs.String("msg", "", "Optional message for the approved account")
	fs.Parse(args)

	if *tokenID == 0 || *account == "" {
		fatal("Usage: mysterybox-cli approve --key <n> --token <id> --account <addr> [--msg <text>]")
	}
	approved := parseAddress(*account)

	key := unlockKey(keysDir, *keyName)
	defer key.Zero()

	res, err := client.Approve(key, *tokenID, approved, *msg)
	if err != nil {
		fatal("nft_approve: %v", err)
	}
	fmt.Printf("Token #%d: %s approved (approval id %d)\n", *tokenID, approved, res.ApprovalID)
}

func cmdRevoke(client *rpcclient.Client, args []string, keysDir string) {
	fs := flag.NewFlagSet("revoke", flag.ExitOnError)
	keyName := fs.String("key", "", "Key name")
	tokenID := fs.Uint64("token", 0, "Token ID")
	account := fs.String("account", "", "Account to revoke (default: all)")
	fs.Parse(args)

	if *tokenID == 0 {
		fatal("Usage: mysterybox-cli revoke --key <n> --token <id> [--account <addr>]")
	}

	key := unlockKey(keysDir, *keyName)
	defer key.Zero()

	var res *rpc.ApprovalResult
	var err error
	if *account == "" {
		res, err = client.RevokeAll(key, *tokenID)
	} else {
		res, err = client.Revoke(key, *tokenID, parseAddress(*account))
	}
	if err != nil {
		fatal("revoke: %v", err)
	}
	fmt.Printf("Token #%d: %d approval(s) left\n", *tokenID, len(res.Token.Approvals))
}

func cmdApproved(client *rpcclient.Client, args []string) {
	if len(args) < 2 {
		fatal("Usage: mysterybox-cli approved <token_id> <address> [approval_id]")
	}
	tokenID, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		fatal("invalid token id: %v", err)
	}
	account := parseAddress(args[1])
	var approvalID *uint64
	if len(args) > 2 {
		approvalID = parseApprovalID(args[2])
	}
	ok, err := client.IsApproved(tokenID, account, approvalID)
	if err != nil {
		fatal("nft_isApproved: %v", err)
	}
	fmt.Println(ok)
}

// ── Helpers ─────────────────────────────────────────────────────────────

// parseApprovalID returns nil for an empty string.
func parseApprovalID(s string) *uint64 {
	if s == "" {
		return nil
	}
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		fatal("invalid approval id: %v", err)
	}
	return &id
}

func parseAddress(s string) types.Address {
	addr, err := types.ParseAddress(s)
	if err != nil {
		fatal("%v", err)
	}
	return addr
}

func printJSON(v interface{}) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fatal("marshal: %v", err)
	}
	fmt.Println(string(data))
}

func readPassword(prompt string) ([]byte, error) {
	fmt.Fprint(os.Stderr, prompt)
	password, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr) // newline after hidden input
	if err != nil {
		return nil, err
	}
	return password, nil
}

func readNewPassword() []byte {
	password, err := readPassword("Enter password: ")
	if err != nil {
		fatal("read password: %v", err)
	}
	confirm, err := readPassword("Confirm password: ")
	if err != nil {
		fatal("read password: %v", err)
	}
	defer clear(confirm)
	if string(password) != string(confirm) {
		fatal("passwords do not match")
	}
	return password
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
