package hive

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcutil/base58"
)

// MainnetChainID is baked into every signature digest so transactions
// cannot replay across chains.
const MainnetChainID = "beeab0de00000000000000000000000000000000000000000000000000000000"

const (
	// wifVersion prefixes every wallet-import-format key.
	wifVersion = 0x80
	// expirationSlack is how far in the future a new transaction
	// expires, relative to head block time.
	expirationSlack = 30 * time.Second
	// voteOpID is the protocol's numeric tag for a vote operation.
	voteOpID = 0
)

// Signer holds the posting key and produces broadcast-ready
// transactions.
type Signer struct {
	key     *btcec.PrivateKey
	chainID []byte
}

// NewSigner parses a WIF-encoded posting key. The checksum is verified
// before the key is accepted.
func NewSigner(wif string, chainID string) (*Signer, error) {
	raw := base58.Decode(wif)
	if len(raw) != 37 {
		return nil, fmt.Errorf("malformed wif: wrong length")
	}
	if raw[0] != wifVersion {
		return nil, fmt.Errorf("malformed wif: bad version byte")
	}
	first := sha256.Sum256(raw[:33])
	second := sha256.Sum256(first[:])
	for i := 0; i < 4; i++ {
		if raw[33+i] != second[i] {
			return nil, fmt.Errorf("malformed wif: checksum mismatch")
		}
	}

	chain, err := hex.DecodeString(chainID)
	if err != nil {
		return nil, fmt.Errorf("malformed chain id: %v", err)
	}

	key, _ := btcec.PrivKeyFromBytes(raw[1:33])
	return &Signer{key: key, chainID: chain}, nil
}

// NewTransaction builds an unsigned transaction referencing the
// current chain head.
func NewTransaction(props *DynamicGlobalProperties, ops ...VoteOperation) (*Transaction, error) {
	blockID, err := hex.DecodeString(props.HeadBlockID)
	if err != nil || len(blockID) < 8 {
		return nil, fmt.Errorf("malformed head block id %q", props.HeadBlockID)
	}
	return &Transaction{
		RefBlockNum:    uint16(props.HeadBlockNumber & 0xFFFF),
		RefBlockPrefix: binary.LittleEndian.Uint32(blockID[4:8]),
		Expiration:     Time{props.Time.Add(expirationSlack)},
		Operations:     ops,
		Extensions:     []any{},
	}, nil
}

// Sign appends a canonical signature. The node rejects non-canonical
// signatures outright, and deterministic nonces make re-signing the
// same digest pointless, so the expiration is nudged by one second
// until the signature comes out canonical.
func (s *Signer) Sign(tx *Transaction) error {
	for attempt := 0; attempt < 25; attempt++ {
		digest := s.digest(tx)
		sig := ecdsa.SignCompact(s.key, digest, true)
		if isCanonical(sig) {
			tx.Signatures = []string{hex.EncodeToString(sig)}
			return nil
		}
		tx.Expiration = Time{tx.Expiration.Add(time.Second)}
	}
	return fmt.Errorf("could not produce a canonical signature")
}

func (s *Signer) digest(tx *Transaction) []byte {
	buf := append([]byte{}, s.chainID...)
	buf = serializeTransaction(buf, tx)
	sum := sha256.Sum256(buf)
	return sum[:]
}

// isCanonical applies the node's signature acceptance rule to a
// 65-byte compact signature (header, R, S).
func isCanonical(sig []byte) bool {
	return sig[1]&0x80 == 0 &&
		!(sig[1] == 0 && sig[2]&0x80 == 0) &&
		sig[33]&0x80 == 0 &&
		!(sig[33] == 0 && sig[34]&0x80 == 0)
}

func serializeTransaction(buf []byte, tx *Transaction) []byte {
	buf = binary.LittleEndian.AppendUint16(buf, tx.RefBlockNum)
	buf = binary.LittleEndian.AppendUint32(buf, tx.RefBlockPrefix)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(tx.Expiration.Unix()))
	buf = appendUvarint(buf, uint64(len(tx.Operations)))
	for _, op := range tx.Operations {
		buf = serializeVote(buf, op)
	}
	// no extensions
	buf = appendUvarint(buf, 0)
	return buf
}

func serializeVote(buf []byte, op VoteOperation) []byte {
	buf = appendUvarint(buf, voteOpID)
	buf = appendString(buf, op.Voter)
	buf = appendString(buf, op.Author)
	buf = appendString(buf, op.Permlink)
	buf = binary.LittleEndian.AppendUint16(buf, uint16(op.Weight))
	return buf
}

func appendUvarint(buf []byte, v uint64) []byte {
	return binary.AppendUvarint(buf, v)
}

func appendString(buf []byte, s string) []byte {
	buf = appendUvarint(buf, uint64(len(s)))
	return append(buf, s...)
}
