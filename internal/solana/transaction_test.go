package solana

import (
	"bytes"
	"crypto/ed25519"
	"encoding/base64"
	"testing"

	"github.com/mr-tron/base58"
)

func testKeypair(t *testing.T) *Keypair {
	t.Helper()
	seed := bytes.Repeat([]byte{7}, ed25519.SeedSize)
	kp, err := KeypairFromBase58(base58.Encode(seed))
	if err != nil {
		t.Fatalf("KeypairFromBase58: %v", err)
	}
	return kp
}

func TestKeypairFromBase58(t *testing.T) {
	kp := testKeypair(t)

	pub, err := base58.Decode(kp.PublicKey())
	if err != nil || len(pub) != ed25519.PublicKeySize {
		t.Fatalf("bad public key %q", kp.PublicKey())
	}

	msg := []byte("hello")
	sig := kp.Sign(msg)
	if !ed25519.Verify(ed25519.PublicKey(pub), msg, sig) {
		t.Error("signature does not verify")
	}
}

func TestKeypairFromBase58_FullSecret(t *testing.T) {
	seed := bytes.Repeat([]byte{9}, ed25519.SeedSize)
	priv := ed25519.NewKeyFromSeed(seed)

	fromFull, err := KeypairFromBase58(base58.Encode(priv))
	if err != nil {
		t.Fatalf("KeypairFromBase58 full: %v", err)
	}
	fromSeed, err := KeypairFromBase58(base58.Encode(seed))
	if err != nil {
		t.Fatalf("KeypairFromBase58 seed: %v", err)
	}

	if fromFull.PublicKey() != fromSeed.PublicKey() {
		t.Error("seed and full secret disagree on public key")
	}
}

func TestKeypairFromBase58_BadLength(t *testing.T) {
	if _, err := KeypairFromBase58(base58.Encode([]byte("short"))); err == nil {
		t.Error("expected error for short secret")
	}
}

func TestTransactionBuilder_Build(t *testing.T) {
	kp := testKeypair(t)
	blockhash := base58.Encode(bytes.Repeat([]byte{3}, 32))

	ix := Instruction{
		ProgramID: TokenProgramID,
		Accounts: []AccountMeta{
			{PubKey: SystemProgramID, IsWritable: true},
			{PubKey: Token2022ProgramID},
		},
		Data: []byte{1, 2, 3},
	}

	txB64, err := NewTransactionBuilder(kp.PublicKey(), blockhash).
		AddInstruction(ix).
		Build(kp)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	raw, err := base64.StdEncoding.DecodeString(txB64)
	if err != nil {
		t.Fatalf("decode wire tx: %v", err)
	}

	// One signature
	if raw[0] != 1 {
		t.Fatalf("expected 1 signature, got %d", raw[0])
	}
	sig := raw[1 : 1+ed25519.SignatureSize]
	message := raw[1+ed25519.SignatureSize:]

	pub, _ := base58.Decode(kp.PublicKey())
	if !ed25519.Verify(ed25519.PublicKey(pub), message, sig) {
		t.Error("transaction signature does not verify over message")
	}

	// Header: 1 required signature, 0 readonly signed
	if message[0] != 1 || message[1] != 0 {
		t.Errorf("unexpected header %v", message[:3])
	}

	// Account table: fee payer, writable, then readonly accounts
	numAccounts := int(message[3])
	if numAccounts != 4 {
		t.Fatalf("expected 4 accounts, got %d", numAccounts)
	}

	keys := make([]string, numAccounts)
	for i := 0; i < numAccounts; i++ {
		start := 4 + i*32
		keys[i] = base58.Encode(message[start : start+32])
	}

	if keys[0] != kp.PublicKey() {
		t.Errorf("fee payer not first, got %s", keys[0])
	}
	if keys[1] != SystemProgramID {
		t.Errorf("writable account not second, got %s", keys[1])
	}
}

func TestTransactionBuilder_WrongSigner(t *testing.T) {
	kp := testKeypair(t)
	blockhash := base58.Encode(bytes.Repeat([]byte{3}, 32))

	b := NewTransactionBuilder(SystemProgramID, blockhash).
		AddInstruction(Instruction{ProgramID: TokenProgramID, Data: []byte{1}})

	if _, err := b.Build(kp); err == nil {
		t.Error("expected error when signer is not fee payer")
	}
}

func TestAppendCompactU16(t *testing.T) {
	cases := []struct {
		n    int
		want []byte
	}{
		{0, []byte{0x00}},
		{127, []byte{0x7f}},
		{128, []byte{0x80, 0x01}},
		{300, []byte{0xac, 0x02}},
	}

	for _, c := range cases {
		got := appendCompactU16(nil, c.n)
		if !bytes.Equal(got, c.want) {
			t.Errorf("compactU16(%d) = %v, want %v", c.n, got, c.want)
		}
	}
}
