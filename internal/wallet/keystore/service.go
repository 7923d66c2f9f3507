// Package keystore persists private keys encrypted at rest, one Ethereum
// keystore v3 style file per address.
package keystore

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/chapool/wallet-core/internal/util"
	"github.com/chapool/wallet-core/internal/wallet/address"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const (
	dirPerm  os.FileMode = 0o700
	filePerm os.FileMode = 0o600
	fileExt              = ".json"
)

// Service provides keystore encryption and decryption functionality
type Service interface {
	// CreateKeystore encrypts secret with password and writes it under addr.
	CreateKeystore(ctx context.Context, addr string, derivationPath string, secret []byte, password string) (*Keystore, error)

	// DecryptSecret opens a keystore. The caller must zero the result.
	DecryptSecret(ctx context.Context, ks *Keystore, password string) ([]byte, error)

	// GetKeystore reads the keystore of addr, ErrNotFound if absent.
	GetKeystore(ctx context.Context, addr string) (*Keystore, error)

	// ListKeystores returns every readable keystore, oldest first.
	ListKeystores(ctx context.Context) ([]*Keystore, error)

	Exists(ctx context.Context, addr string) (bool, error)

	// DeleteKeystore removes the file of addr. Missing files are not an error.
	DeleteKeystore(ctx context.Context, addr string) error
}

type service struct {
	dir    string
	params ScryptParams
}

// NewService creates a keystore service rooted at dir, creating it if needed.
//
//nolint:ireturn // Returning interface is intentional for dependency injection
func NewService(dir string, params ScryptParams) (Service, error) {
	if dir == "" {
		return nil, errors.New("keystore directory is required")
	}

	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return nil, errors.Wrap(err, "failed to create keystore directory")
	}

	return &service{
		dir:    dir,
		params: params,
	}, nil
}

func (s *service) CreateKeystore(ctx context.Context, addr string, derivationPath string, secret []byte, password string) (*Keystore, error) {
	log := util.LogFromContext(ctx)

	path, canonical, err := s.path(addr)
	if err != nil {
		return nil, err
	}

	if _, err := os.Stat(path); err == nil {
		return nil, errors.Wrapf(ErrAlreadyExists, "address %s", canonical)
	}

	sealed, err := s.encryptSecret(secret, password)
	if err != nil {
		log.Error().Err(err).Str("address", canonical).Msg("Failed to encrypt secret")
		return nil, errors.Wrap(err, "failed to encrypt secret")
	}

	ks := &Keystore{
		Version:        keystoreVersion,
		ID:             uuid.New().String(),
		Address:        canonical,
		DerivationPath: derivationPath,
		CreatedAt:      time.Now().UTC(),
		Crypto:         *sealed,
	}

	data, err := json.Marshal(ks)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal keystore JSON")
	}

	if err := writeFileAtomic(s.dir, path, data); err != nil {
		log.Error().Err(err).Str("address", canonical).Msg("Failed to write keystore")
		return nil, errors.Wrap(err, "failed to write keystore")
	}

	log.Debug().Str("address", canonical).Str("keystore_id", ks.ID).Msg("Keystore written")

	return ks, nil
}

func (s *service) DecryptSecret(ctx context.Context, ks *Keystore, password string) ([]byte, error) {
	secret, err := decryptSecret(&ks.Crypto, password)
	if err != nil {
		util.LogFromContext(ctx).Warn().Err(err).Str("address", ks.Address).Msg("Failed to decrypt keystore")
		return nil, errors.Wrap(err, "failed to decrypt keystore")
	}

	return secret, nil
}

func (s *service) GetKeystore(_ context.Context, addr string) (*Keystore, error) {
	path, canonical, err := s.path(addr)
	if err != nil {
		return nil, err
	}

	ks, err := readKeystore(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, errors.Wrapf(ErrNotFound, "address %s", canonical)
		}

		return nil, err
	}

	return ks, nil
}

func (s *service) ListKeystores(ctx context.Context) ([]*Keystore, error) {
	log := util.LogFromContext(ctx)

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read keystore directory")
	}

	result := make([]*Keystore, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), fileExt) {
			continue
		}

		ks, err := readKeystore(filepath.Join(s.dir, entry.Name()))
		if err != nil {
			log.Warn().Err(err).Str("file", entry.Name()).Msg("Skipping unreadable keystore")
			continue
		}

		result = append(result, ks)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})

	return result, nil
}

func (s *service) Exists(_ context.Context, addr string) (bool, error) {
	path, _, err := s.path(addr)
	if err != nil {
		return false, err
	}

	_, err = os.Stat(path)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, os.ErrNotExist):
		return false, nil
	default:
		return false, errors.Wrap(err, "failed to stat keystore")
	}
}

func (s *service) DeleteKeystore(ctx context.Context, addr string) error {
	path, canonical, err := s.path(addr)
	if err != nil {
		return err
	}

	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return errors.Wrap(err, "failed to delete keystore")
	}

	util.LogFromContext(ctx).Debug().Str("address", canonical).Msg("Keystore deleted")

	return nil
}

// path maps addr to its file. Parsing the address first keeps file names
// inside dir.
func (s *service) path(addr string) (string, string, error) {
	parsed, err := address.Parse(addr)
	if err != nil {
		return "", "", err
	}

	canonical := address.Canonical(parsed)

	return filepath.Join(s.dir, canonical+fileExt), canonical, nil
}

func readKeystore(path string) (*Keystore, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read keystore")
	}

	var ks Keystore
	if err := json.Unmarshal(data, &ks); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal keystore JSON")
	}

	if ks.Version != keystoreVersion {
		return nil, errors.Errorf("unsupported keystore version %d", ks.Version)
	}

	return &ks, nil
}

func writeFileAtomic(dir string, path string, data []byte) error {
	tmp, err := os.CreateTemp(dir, ".keystore-*")
	if err != nil {
		return errors.Wrap(err, "failed to create temp file")
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := tmp.Chmod(filePerm); err != nil {
		tmp.Close()
		return errors.Wrap(err, "failed to chmod temp file")
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrap(err, "failed to write temp file")
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return errors.Wrap(err, "failed to sync temp file")
	}

	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "failed to close temp file")
	}

	return errors.Wrap(os.Rename(tmpName, path), "failed to move keystore into place")
}
