package anchor

import (
	"bytes"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// Instruction is an Anchor program instruction: 8-byte discriminator followed by borsh args.
type Instruction struct {
	Program solana.PublicKey
	Name    string
	// Args is borsh-encoded after the discriminator. A nil Args encodes nothing.
	Args                    interface{}
	solana.AccountMetaSlice `bin:"-" borsh_skip:"true"`
}

var _ solana.Instruction = (*Instruction)(nil)

// NewInstruction creates an instruction with the given ordered accounts.
func NewInstruction(program solana.PublicKey, name string, args interface{}, accounts ...*solana.AccountMeta) *Instruction {
	return &Instruction{
		Program:          program,
		Name:             name,
		Args:             args,
		AccountMetaSlice: accounts,
	}
}

// WithRemainingAccounts appends accounts after the named ones.
func (inst *Instruction) WithRemainingAccounts(accounts ...*solana.AccountMeta) *Instruction {
	inst.AccountMetaSlice = append(inst.AccountMetaSlice, accounts...)
	return inst
}

func (inst *Instruction) ProgramID() solana.PublicKey {
	return inst.Program
}

func (inst *Instruction) Accounts() (out []*solana.AccountMeta) {
	return inst.AccountMetaSlice
}

func (inst *Instruction) Data() ([]byte, error) {
	buf := new(bytes.Buffer)

	discriminator := InstructionDiscriminator(inst.Name)
	if _, err := buf.Write(discriminator); err != nil {
		return nil, fmt.Errorf("failed to write discriminator: %w", err)
	}

	if inst.Args != nil {
		if err := bin.NewBorshEncoder(buf).Encode(inst.Args); err != nil {
			return nil, fmt.Errorf("failed to encode %s args: %w", inst.Name, err)
		}
	}

	return buf.Bytes(), nil
}

// Meta helpers keep account lists readable at call sites.

func Writable(pk solana.PublicKey) *solana.AccountMeta {
	return solana.NewAccountMeta(pk, true, false)
}

func ReadOnly(pk solana.PublicKey) *solana.AccountMeta {
	return solana.NewAccountMeta(pk, false, false)
}

func Signer(pk solana.PublicKey) *solana.AccountMeta {
	return solana.NewAccountMeta(pk, false, true)
}

func WritableSigner(pk solana.PublicKey) *solana.AccountMeta {
	return solana.NewAccountMeta(pk, true, true)
}
