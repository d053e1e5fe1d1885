package reconcile

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/mr-tron/base58"

	"swiftpay-bot/internal/breaker"
	"swiftpay-bot/internal/domain"
	"swiftpay-bot/internal/escrow"
	"swiftpay-bot/internal/solana"
)

// Confirmation failure modes.
var (
	ErrMissingConfirmFields = errors.New("event missing fields required for confirmation")
	ErrEscrowNotFound       = errors.New("escrow account not found on chain")
	ErrReservationNotFound  = errors.New("reservation not found in escrow account")
	ErrUnknownTokenProgram  = errors.New("mint owned by unknown token program")
	ErrConfirmationTimedOut = errors.New("transaction confirmation timed out")
	ErrTransactionFailed    = errors.New("confirmed transaction reports an on-chain error")
)

const (
	// DefaultConfirmTimeout bounds the wait for network confirmation.
	DefaultConfirmTimeout = 60 * time.Second

	confirmPollInterval = 2 * time.Second
)

// escrowSeedPrefix is the first PDA seed of every escrow account.
const escrowSeedPrefix = "escrow"

// Confirmer builds, submits, and confirms the on-chain confirmation
// transaction for one payout outcome. All RPC traffic goes through the
// ledger circuit breaker.
type Confirmer struct {
	rpc            solana.RPCClient
	rpcBreaker     *breaker.Breaker
	signer         *solana.Keypair
	programID      string
	confirmTimeout time.Duration
	logger         *log.Logger
}

// ConfirmerOptions configures a Confirmer.
type ConfirmerOptions struct {
	RPC            solana.RPCClient
	RPCBreaker     *breaker.Breaker
	Signer         *solana.Keypair
	ProgramID      string
	ConfirmTimeout time.Duration
	Logger         *log.Logger
}

// Compile-time interface checks.
var (
	_ PayoutConfirmer = (*Confirmer)(nil)
	_ MakerResolver   = (*Confirmer)(nil)
)

// NewConfirmer creates a Confirmer.
func NewConfirmer(opts ConfirmerOptions) *Confirmer {
	if opts.ConfirmTimeout <= 0 {
		opts.ConfirmTimeout = DefaultConfirmTimeout
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return &Confirmer{
		rpc:            opts.RPC,
		rpcBreaker:     opts.RPCBreaker,
		signer:         opts.Signer,
		programID:      opts.ProgramID,
		confirmTimeout: opts.ConfirmTimeout,
		logger:         opts.Logger,
	}
}

// ConfirmPayout writes the payout outcome back to the ledger and
// returns the transaction signature.
func (c *Confirmer) ConfirmPayout(ctx context.Context, event *domain.ParsedEvent, result *domain.PayoutResult) (string, error) {
	escrowAddr := event.Data.SwiftPay
	taker := event.Data.Taker
	ref := event.Data.PayoutReference

	if escrowAddr == "" || taker == "" || ref == "" {
		return "", fmt.Errorf("%w: swiftPay=%q taker=%q payoutReference=%q",
			ErrMissingConfirmFields, escrowAddr, taker, ref)
	}

	// Re-read fresh; never act on state captured before the payout.
	acc, err := c.readEscrow(ctx, escrowAddr)
	if err != nil {
		return "", err
	}

	c.checkDerivation(acc, escrowAddr)

	res := acc.FindReservation(taker, ref)
	if res == nil {
		return "", fmt.Errorf("%w: taker=%s ref=%s", ErrReservationNotFound, taker, ref)
	}

	tokenProgram, err := c.detectTokenProgram(ctx, acc.Mint)
	if err != nil {
		return "", err
	}

	vaultAta, err := solana.AssociatedTokenAddress(escrowAddr, acc.Mint, tokenProgram)
	if err != nil {
		return "", fmt.Errorf("derive vault ata: %w", err)
	}
	feeAta, err := solana.AssociatedTokenAddress(acc.FeeDestination, acc.Mint, tokenProgram)
	if err != nil {
		return "", fmt.Errorf("derive fee ata: %w", err)
	}
	takerAta, err := solana.AssociatedTokenAddress(taker, acc.Mint, tokenProgram)
	if err != nil {
		return "", fmt.Errorf("derive taker ata: %w", err)
	}

	message := "payout completed"
	if !result.Success {
		message = result.Error
		if message == "" {
			message = "payout failed"
		}
	}

	data, err := escrow.EncodeConfirmInstruction(&escrow.ConfirmInstruction{
		Taker:           taker,
		Amount:          res.Amount,
		FiatAmount:      res.FiatAmount,
		Currency:        acc.Currency,
		PayoutReference: ref,
		Success:         result.Success,
		Message:         escrow.TruncateMessage(message),
	})
	if err != nil {
		return "", fmt.Errorf("encode confirmation: %w", err)
	}

	accounts := []solana.AccountMeta{
		{PubKey: escrowAddr, IsWritable: true},
		{PubKey: taker},
		{PubKey: acc.Mint},
		{PubKey: vaultAta, IsWritable: true},
		{PubKey: feeAta, IsWritable: true},
		{PubKey: takerAta, IsWritable: true},
	}

	// The maker's token account only participates when escrow is
	// released, i.e. on a successful payout.
	if result.Success {
		makerAta, err := solana.AssociatedTokenAddress(acc.Maker, acc.Mint, tokenProgram)
		if err != nil {
			return "", fmt.Errorf("derive maker ata: %w", err)
		}
		accounts = append(accounts, solana.AccountMeta{PubKey: makerAta, IsWritable: true})
	}

	accounts = append(accounts, solana.AccountMeta{PubKey: tokenProgram})

	blockhash, err := breaker.Do(c.rpcBreaker, func() (string, error) {
		return c.rpc.GetLatestBlockhash(ctx)
	})
	if err != nil {
		return "", fmt.Errorf("get blockhash: %w", err)
	}

	txB64, err := solana.NewTransactionBuilder(c.signer.PublicKey(), blockhash).
		AddInstruction(solana.Instruction{
			ProgramID: c.programID,
			Accounts:  accounts,
			Data:      data,
		}).
		Build(c.signer)
	if err != nil {
		return "", fmt.Errorf("build transaction: %w", err)
	}

	sig, err := breaker.Do(c.rpcBreaker, func() (string, error) {
		return c.rpc.SendTransaction(ctx, txB64)
	})
	if err != nil {
		return "", fmt.Errorf("submit transaction: %w", err)
	}

	if err := c.awaitConfirmation(ctx, sig); err != nil {
		return "", err
	}

	c.logger.Printf("[confirm] payout %s confirmed on chain, sig=%s success=%t", ref, sig, result.Success)
	return sig, nil
}

// ResolveMaker reads the escrow account and returns its maker address.
func (c *Confirmer) ResolveMaker(ctx context.Context, escrowAddr string) (string, error) {
	acc, err := c.readEscrow(ctx, escrowAddr)
	if err != nil {
		return "", err
	}
	return acc.Maker, nil
}

// readEscrow fetches and decodes the escrow account.
func (c *Confirmer) readEscrow(ctx context.Context, address string) (*escrow.Account, error) {
	info, err := breaker.Do(c.rpcBreaker, func() (*solana.AccountInfo, error) {
		return c.rpc.GetAccountInfo(ctx, address)
	})
	if err != nil {
		return nil, fmt.Errorf("read escrow account: %w", err)
	}
	if info == nil {
		return nil, fmt.Errorf("%w: %s", ErrEscrowNotFound, address)
	}

	raw, err := base64.StdEncoding.DecodeString(info.Data)
	if err != nil {
		return nil, fmt.Errorf("decode escrow account data: %w", err)
	}

	acc, err := escrow.DecodeAccount(raw)
	if err != nil {
		return nil, fmt.Errorf("decode escrow account %s: %w", address, err)
	}
	return acc, nil
}

// checkDerivation re-derives the escrow PDA from {maker, seed} and
// warns on mismatch. A mismatch means a forged or stale event, or a
// derivation bug; it does not currently block submission.
func (c *Confirmer) checkDerivation(acc *escrow.Account, claimed string) {
	makerBytes, err := base58.Decode(acc.Maker)
	if err != nil {
		c.logger.Printf("[confirm] WARN cannot verify escrow derivation, bad maker key: %v", err)
		return
	}

	seedLE := make([]byte, 8)
	binary.LittleEndian.PutUint64(seedLE, acc.Seed)

	derived, _, err := solana.FindProgramAddress(
		[][]byte{[]byte(escrowSeedPrefix), makerBytes, seedLE},
		c.programID,
	)
	if err != nil {
		c.logger.Printf("[confirm] WARN cannot verify escrow derivation: %v", err)
		return
	}

	if derived != claimed {
		c.logger.Printf("[confirm] WARN escrow address mismatch: event=%s derived=%s maker=%s seed=%d",
			claimed, derived, acc.Maker, acc.Seed)
	}
}

// detectTokenProgram inspects the mint's owner to pick between the two
// supported token program variants.
func (c *Confirmer) detectTokenProgram(ctx context.Context, mint string) (string, error) {
	info, err := breaker.Do(c.rpcBreaker, func() (*solana.AccountInfo, error) {
		return c.rpc.GetAccountInfo(ctx, mint)
	})
	if err != nil {
		return "", fmt.Errorf("read mint account: %w", err)
	}
	if info == nil {
		return "", fmt.Errorf("mint account %s not found", mint)
	}

	switch info.Owner {
	case solana.TokenProgramID:
		return solana.TokenProgramID, nil
	case solana.Token2022ProgramID:
		return solana.Token2022ProgramID, nil
	default:
		return "", fmt.Errorf("%w: mint=%s owner=%s", ErrUnknownTokenProgram, mint, info.Owner)
	}
}

// awaitConfirmation polls signature status until the transaction is
// confirmed, errors on chain, or the timeout elapses.
func (c *Confirmer) awaitConfirmation(ctx context.Context, sig string) error {
	deadline := time.Now().Add(c.confirmTimeout)

	for {
		statuses, err := breaker.Do(c.rpcBreaker, func() ([]*solana.SignatureStatus, error) {
			return c.rpc.GetSignatureStatuses(ctx, []string{sig})
		})
		if err == nil && len(statuses) > 0 && statuses[0] != nil {
			st := statuses[0]
			if st.Err != nil {
				return fmt.Errorf("%w: sig=%s err=%v", ErrTransactionFailed, sig, st.Err)
			}
			if st.ConfirmationStatus == "confirmed" || st.ConfirmationStatus == "finalized" {
				return nil
			}
		}

		if time.Now().After(deadline) {
			return fmt.Errorf("%w: sig=%s", ErrConfirmationTimedOut, sig)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(confirmPollInterval):
		}
	}
}
