package solana

import (
	"encoding/base64"
	"fmt"

	"github.com/mr-tron/base58"
)

// AccountMeta describes how an instruction touches an account.
type AccountMeta struct {
	PubKey     string
	IsSigner   bool
	IsWritable bool
}

// Instruction is a single program invocation.
type Instruction struct {
	ProgramID string
	Accounts  []AccountMeta
	Data      []byte
}

// TransactionBuilder assembles, signs, and serializes a legacy
// transaction wire message.
type TransactionBuilder struct {
	feePayer     string
	blockhash    string
	instructions []Instruction
}

// NewTransactionBuilder creates a builder for the given fee payer and
// recent blockhash.
func NewTransactionBuilder(feePayer, recentBlockhash string) *TransactionBuilder {
	return &TransactionBuilder{
		feePayer:  feePayer,
		blockhash: recentBlockhash,
	}
}

// AddInstruction appends an instruction.
func (b *TransactionBuilder) AddInstruction(ix Instruction) *TransactionBuilder {
	b.instructions = append(b.instructions, ix)
	return b
}

// compiledAccount tracks merged flags across all instructions.
type compiledAccount struct {
	pubkey     string
	isSigner   bool
	isWritable bool
}

// Build signs the message with the keypair and returns the
// base64-encoded wire transaction. The keypair must be the fee payer.
func (b *TransactionBuilder) Build(signer *Keypair) (string, error) {
	if signer.PublicKey() != b.feePayer {
		return "", fmt.Errorf("signer %s is not fee payer %s", signer.PublicKey(), b.feePayer)
	}
	if len(b.instructions) == 0 {
		return "", fmt.Errorf("no instructions")
	}

	message, err := b.compileMessage()
	if err != nil {
		return "", err
	}

	sig := signer.Sign(message)

	// Wire format: compact-u16 signature count, signatures, message
	tx := make([]byte, 0, 1+len(sig)+len(message))
	tx = appendCompactU16(tx, 1)
	tx = append(tx, sig...)
	tx = append(tx, message...)

	return base64.StdEncoding.EncodeToString(tx), nil
}

// compileMessage produces the legacy message bytes.
func (b *TransactionBuilder) compileMessage() ([]byte, error) {
	accounts, err := b.collectAccounts()
	if err != nil {
		return nil, err
	}

	index := make(map[string]int, len(accounts))
	for i, a := range accounts {
		index[a.pubkey] = i
	}

	numRequiredSignatures := 0
	numReadonlySigned := 0
	numReadonlyUnsigned := 0
	for _, a := range accounts {
		if a.isSigner {
			numRequiredSignatures++
			if !a.isWritable {
				numReadonlySigned++
			}
		} else if !a.isWritable {
			numReadonlyUnsigned++
		}
	}

	msg := make([]byte, 0, 256)
	msg = append(msg, byte(numRequiredSignatures), byte(numReadonlySigned), byte(numReadonlyUnsigned))

	msg = appendCompactU16(msg, len(accounts))
	for _, a := range accounts {
		raw, err := base58.Decode(a.pubkey)
		if err != nil || len(raw) != 32 {
			return nil, fmt.Errorf("invalid account key %q", a.pubkey)
		}
		msg = append(msg, raw...)
	}

	blockhash, err := base58.Decode(b.blockhash)
	if err != nil || len(blockhash) != 32 {
		return nil, fmt.Errorf("invalid blockhash %q", b.blockhash)
	}
	msg = append(msg, blockhash...)

	msg = appendCompactU16(msg, len(b.instructions))
	for _, ix := range b.instructions {
		programIdx, ok := index[ix.ProgramID]
		if !ok {
			return nil, fmt.Errorf("program id %q not in account table", ix.ProgramID)
		}
		msg = append(msg, byte(programIdx))

		msg = appendCompactU16(msg, len(ix.Accounts))
		for _, meta := range ix.Accounts {
			idx, ok := index[meta.PubKey]
			if !ok {
				return nil, fmt.Errorf("account %q not in account table", meta.PubKey)
			}
			msg = append(msg, byte(idx))
		}

		msg = appendCompactU16(msg, len(ix.Data))
		msg = append(msg, ix.Data...)
	}

	return msg, nil
}

// collectAccounts dedupes accounts across instructions and orders them:
// fee payer, writable signers, readonly signers, writable non-signers,
// readonly non-signers, with program IDs as readonly non-signers.
func (b *TransactionBuilder) collectAccounts() ([]compiledAccount, error) {
	merged := map[string]*compiledAccount{}
	order := []string{}

	upsert := func(pubkey string, isSigner, isWritable bool) {
		if a, ok := merged[pubkey]; ok {
			a.isSigner = a.isSigner || isSigner
			a.isWritable = a.isWritable || isWritable
			return
		}
		merged[pubkey] = &compiledAccount{pubkey: pubkey, isSigner: isSigner, isWritable: isWritable}
		order = append(order, pubkey)
	}

	upsert(b.feePayer, true, true)
	for _, ix := range b.instructions {
		for _, meta := range ix.Accounts {
			upsert(meta.PubKey, meta.IsSigner, meta.IsWritable)
		}
		upsert(ix.ProgramID, false, false)
	}

	var feePayer, writableSigners, readonlySigners, writable, readonly []compiledAccount
	for _, pk := range order {
		a := *merged[pk]
		switch {
		case a.pubkey == b.feePayer:
			feePayer = append(feePayer, a)
		case a.isSigner && a.isWritable:
			writableSigners = append(writableSigners, a)
		case a.isSigner:
			readonlySigners = append(readonlySigners, a)
		case a.isWritable:
			writable = append(writable, a)
		default:
			readonly = append(readonly, a)
		}
	}

	// Single-signer transactions only; additional signers would need
	// their signatures appended in Build.
	if len(writableSigners) > 0 || len(readonlySigners) > 0 {
		return nil, fmt.Errorf("multiple signers not supported")
	}

	out := make([]compiledAccount, 0, len(order))
	out = append(out, feePayer...)
	out = append(out, writable...)
	out = append(out, readonly...)
	return out, nil
}

// appendCompactU16 appends a compact-u16 (shortvec) length prefix.
func appendCompactU16(buf []byte, n int) []byte {
	for {
		if n < 0x80 {
			return append(buf, byte(n))
		}
		buf = append(buf, byte(n&0x7f|0x80))
		n >>= 7
	}
}
