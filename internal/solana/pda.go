package solana

import (
	"crypto/sha256"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// Well-known program IDs.
const (
	SystemProgramID          = "11111111111111111111111111111111"
	TokenProgramID           = "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"
	Token2022ProgramID       = "TokenzQdBNbLqP5VEhdkAS6EPFLC1PHnBqCXEpPxuEb"
	AssociatedTokenProgramID = "ATokenGPvbdGVxr1b2hvZbsiqW5xWH25efTNsLJA8knL"
)

// FindProgramAddress derives a Program Derived Address and its bump seed.
// PDA derivation algorithm:
//  1. Concatenate all seeds with bump
//  2. Append program ID and "ProgramDerivedAddress" marker
//  3. SHA256 hash
//  4. Find bump seed that results in off-curve point
func FindProgramAddress(seeds [][]byte, programID string) (string, byte, error) {
	programBytes, err := base58.Decode(programID)
	if err != nil {
		return "", 0, fmt.Errorf("decode program id: %w", err)
	}
	if len(programBytes) != 32 {
		return "", 0, fmt.Errorf("program id must be 32 bytes, got %d", len(programBytes))
	}

	for bump := byte(255); bump > 0; bump-- {
		data := make([]byte, 0)
		for _, seed := range seeds {
			data = append(data, seed...)
		}
		data = append(data, bump)
		data = append(data, programBytes...)
		data = append(data, []byte("ProgramDerivedAddress")...)

		hash := sha256.Sum256(data)

		if !isOnCurve(hash[:]) {
			return base58.Encode(hash[:]), bump, nil
		}
	}

	return "", 0, fmt.Errorf("no viable bump seed found")
}

func isOnCurve(point []byte) bool {
	if len(point) != 32 {
		return false
	}
	_, err := new(edwards25519.Point).SetBytes(point)
	return err == nil
}

// AssociatedTokenAddress derives the associated token account for an
// owner and mint under the given token program.
// Seeds: [owner, token_program, mint]
func AssociatedTokenAddress(owner, mint, tokenProgram string) (string, error) {
	ownerBytes, err := base58.Decode(owner)
	if err != nil {
		return "", fmt.Errorf("decode owner: %w", err)
	}
	mintBytes, err := base58.Decode(mint)
	if err != nil {
		return "", fmt.Errorf("decode mint: %w", err)
	}
	programBytes, err := base58.Decode(tokenProgram)
	if err != nil {
		return "", fmt.Errorf("decode token program: %w", err)
	}

	if len(ownerBytes) != 32 || len(mintBytes) != 32 || len(programBytes) != 32 {
		return "", fmt.Errorf("keys must be 32 bytes")
	}

	seeds := [][]byte{ownerBytes, programBytes, mintBytes}
	addr, _, err := FindProgramAddress(seeds, AssociatedTokenProgramID)
	if err != nil {
		return "", err
	}
	return addr, nil
}
