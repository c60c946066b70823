package ssh

import (
	"errors"
	"fmt"
	"os"

	xssh "golang.org/x/crypto/ssh"
)

// ErrPassphraseRequired is returned for an encrypted key without a passphrase.
var ErrPassphraseRequired = errors.New("passphrase required for private key")

// LoadPrivateKey reads and parses a private key, decrypting it with
// passphrase when the file is encrypted.
func LoadPrivateKey(path, passphrase string) (xssh.Signer, error) {
	keyBytes, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read private key: %w", err)
	}

	signer, err := xssh.ParsePrivateKey(keyBytes)
	if err == nil {
		return signer, nil
	}

	var missing *xssh.PassphraseMissingError
	if !errors.As(err, &missing) {
		return nil, fmt.Errorf("parse private key %s: %w", path, err)
	}
	if passphrase == "" {
		return nil, fmt.Errorf("%s: %w", path, ErrPassphraseRequired)
	}

	signer, err = xssh.ParsePrivateKeyWithPassphrase(keyBytes, []byte(passphrase))
	if err != nil {
		return nil, fmt.Errorf("parse private key %s with passphrase: %w", path, err)
	}
	return signer, nil
}
