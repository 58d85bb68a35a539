package types

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
)

// TxType defines the purpose of a transaction.
type TxType byte

const (
	TxTypeInitialize TxType = 0x01 // One-shot ledger initialisation

	TxTypeTokenTransfer     TxType = 0x02
	TxTypeTokenApprove      TxType = 0x03
	TxTypeTokenTransferFrom TxType = 0x04
	TxTypeTokenMint         TxType = 0x05 // Minter only
	TxTypeTokenBatchMint    TxType = 0x06 // Minter only
	TxTypeTokenBurn         TxType = 0x07
	TxTypeTokenBurnFrom     TxType = 0x08
	TxTypeTokenRegister     TxType = 0x09 // Ledger admin only

	TxTypeCreateCampaign   TxType = 0x10
	TxTypeParticipate      TxType = 0x11
	TxTypeBatchParticipate TxType = 0x12
	TxTypeSettleCampaign   TxType = 0x13
	TxTypeRefund           TxType = 0x14
	TxTypeBatchRefund      TxType = 0x15

	TxTypePause                TxType = 0x20
	TxTypeUnpause              TxType = 0x21
	TxTypeWhitelistToken       TxType = 0x22
	TxTypeBlacklistAccount     TxType = 0x23
	TxTypeUpdateFees           TxType = 0x24
	TxTypeUpdateMaxDiscount    TxType = 0x25
	TxTypeUpdateFeeAddresses   TxType = 0x26
	TxTypeUpdateCampaignStatus TxType = 0x27
	TxTypeVerifyCampaign       TxType = 0x28
	TxTypeEmergencyWithdraw    TxType = 0x29
	TxTypeGrantRole            TxType = 0x2a
	TxTypeRevokeRole           TxType = 0x2b
	TxTypeRenounceRole         TxType = 0x2c
	TxTypeSetRoleAdmin         TxType = 0x2d
	TxTypeUpgradeTo            TxType = 0x2e
)

var txTypeNames = map[TxType]string{
	TxTypeInitialize:           "initialize",
	TxTypeTokenTransfer:        "token_transfer",
	TxTypeTokenApprove:         "token_approve",
	TxTypeTokenTransferFrom:    "token_transfer_from",
	TxTypeTokenMint:            "token_mint",
	TxTypeTokenBatchMint:       "token_batch_mint",
	TxTypeTokenBurn:            "token_burn",
	TxTypeTokenBurnFrom:        "token_burn_from",
	TxTypeTokenRegister:        "token_register",
	TxTypeCreateCampaign:       "create_campaign",
	TxTypeParticipate:          "participate",
	TxTypeBatchParticipate:     "batch_participate",
	TxTypeSettleCampaign:       "settle_campaign",
	TxTypeRefund:               "refund",
	TxTypeBatchRefund:          "batch_refund",
	TxTypePause:                "pause",
	TxTypeUnpause:              "unpause",
	TxTypeWhitelistToken:       "whitelist_token",
	TxTypeBlacklistAccount:     "blacklist_account",
	TxTypeUpdateFees:           "update_fees",
	TxTypeUpdateMaxDiscount:    "update_max_discount",
	TxTypeUpdateFeeAddresses:   "update_fee_addresses",
	TxTypeUpdateCampaignStatus: "update_campaign_status",
	TxTypeVerifyCampaign:       "verify_campaign",
	TxTypeEmergencyWithdraw:    "emergency_withdraw",
	TxTypeGrantRole:            "grant_role",
	TxTypeRevokeRole:           "revoke_role",
	TxTypeRenounceRole:         "renounce_role",
	TxTypeSetRoleAdmin:         "set_role_admin",
	TxTypeUpgradeTo:            "upgrade_to",
}

// String returns the snake_case name of the transaction type.
func (t TxType) String() string {
	if name, ok := txTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("unknown_0x%02x", byte(t))
}

// Valid reports whether t is a known transaction type.
func (t TxType) Valid() bool {
	_, ok := txTypeNames[t]
	return ok
}

// ParseTxType resolves a snake_case name back to its TxType.
func ParseTxType(name string) (TxType, bool) {
	for t, n := range txTypeNames {
		if n == name {
			return t, true
		}
	}
	return 0, false
}

var (
	ErrMissingSignature = errors.New("transaction: missing signature")
	ErrInvalidSignature = errors.New("transaction: invalid signature")
)

// Transaction is a signed instruction from a single sender. Data carries the
// JSON-encoded payload for the given Type.
type Transaction struct {
	ChainID *big.Int `json:"chainId"`
	Type    TxType   `json:"type"`
	Nonce   uint64   `json:"nonce"`
	Data    []byte   `json:"data"`

	R *big.Int `json:"r"`
	S *big.Int `json:"s"`
	V *big.Int `json:"v"`

	from *common.Address
}

// Hash returns the keccak256 digest of the RLP-encoded unsigned fields.
func (tx *Transaction) Hash() (common.Hash, error) {
	chainID := tx.ChainID
	if chainID == nil {
		chainID = new(big.Int)
	}
	txData := struct {
		ChainID *big.Int
		Type    TxType
		Nonce   uint64
		Data    []byte
	}{chainID, tx.Type, tx.Nonce, tx.Data}

	b, err := rlp.EncodeToBytes(txData)
	if err != nil {
		return common.Hash{}, err
	}
	return crypto.Keccak256Hash(b), nil
}

// Sign signs the transaction with the provided key and caches the sender.
func (tx *Transaction) Sign(privKey *ecdsa.PrivateKey) error {
	hash, err := tx.Hash()
	if err != nil {
		return err
	}
	sig, err := crypto.Sign(hash.Bytes(), privKey)
	if err != nil {
		return err
	}
	tx.R = new(big.Int).SetBytes(sig[:32])
	tx.S = new(big.Int).SetBytes(sig[32:64])
	tx.V = new(big.Int).SetBytes([]byte{sig[64] + 27})
	tx.from = nil
	return nil
}

// From recovers the sender address from the signature.
func (tx *Transaction) From() (common.Address, error) {
	if tx.from != nil {
		return *tx.from, nil
	}
	if tx.R == nil || tx.S == nil || tx.V == nil {
		return common.Address{}, ErrMissingSignature
	}
	if tx.R.BitLen() > 256 || tx.S.BitLen() > 256 || !tx.V.IsUint64() {
		return common.Address{}, ErrInvalidSignature
	}
	v := tx.V.Uint64()
	if v != 27 && v != 28 {
		return common.Address{}, ErrInvalidSignature
	}
	hash, err := tx.Hash()
	if err != nil {
		return common.Address{}, err
	}
	sig := make([]byte, 65)
	tx.R.FillBytes(sig[:32])
	tx.S.FillBytes(sig[32:64])
	sig[64] = byte(v - 27)
	pubKey, err := crypto.SigToPub(hash.Bytes(), sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	addr := crypto.PubkeyToAddress(*pubKey)
	tx.from = &addr
	return addr, nil
}

// NewTransaction builds an unsigned transaction carrying the JSON-encoded
// payload.
func NewTransaction(chainID *big.Int, txType TxType, nonce uint64, payload interface{}) (*Transaction, error) {
	data, err := EncodePayload(payload)
	if err != nil {
		return nil, fmt.Errorf("transaction: encode payload: %w", err)
	}
	var id *big.Int
	if chainID != nil {
		id = new(big.Int).Set(chainID)
	}
	return &Transaction{ChainID: id, Type: txType, Nonce: nonce, Data: data}, nil
}
