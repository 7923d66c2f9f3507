package signer

import (
	"github.com/chapool/wallet-core/internal/wallet/transaction"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
)

// Sign signs tx with privateKey. Dynamic-fee transactions use the London
// signer, legacy ones EIP-155 replay protection. The key must control tx.From.
func Sign(privateKey []byte, tx *transaction.Unsigned) (*transaction.Signed, error) {
	if err := tx.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid transaction")
	}

	ecdsaPrivateKey, err := crypto.ToECDSA(privateKey)
	if err != nil {
		return nil, errors.Wrap(err, "failed to convert private key to ECDSA")
	}

	if derived := crypto.PubkeyToAddress(ecdsaPrivateKey.PublicKey); derived != tx.From {
		return nil, errors.Wrapf(ErrFromMismatch, "from %s", tx.From.Hex())
	}

	signer := types.LatestSignerForChainID(tx.ChainID)
	signedTx, err := types.SignTx(tx.Tx(), signer, ecdsaPrivateKey)
	if err != nil {
		return nil, errors.Wrap(err, "failed to sign transaction")
	}

	signed, err := transaction.NewSigned(*tx, signedTx)
	if err != nil {
		return nil, err
	}

	return signed, nil
}
