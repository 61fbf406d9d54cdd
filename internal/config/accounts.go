// File: internal/config/accounts.go
package config

import (
	"fmt"
	"os"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Account is a single login record from the input file. Name and Provider are
// optional in the file and filled with defaults; Username and Password are
// mandatory for the record to be processed.
type Account struct {
	Name     string `json:"name"`
	Provider string `json:"provider"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoadAccounts reads the account records from path and returns the ordered
// slice of valid accounts. Records without credentials are skipped with a
// logged notice naming their 1-based position in the file; defaults are
// applied against the raw position, so skipped entries still consume their
// ordinal.
//
// A missing or malformed file is an error: there is nothing to run against.
func LoadAccounts(path string, logger *zap.Logger) ([]Account, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read accounts file %q: %w", path, err)
	}

	var raw []Account
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse accounts file %q: %w", path, err)
	}

	accounts := make([]Account, 0, len(raw))
	for i, acct := range raw {
		acct.Name = strings.TrimSpace(acct.Name)
		acct.Provider = strings.TrimSpace(acct.Provider)
		acct.Username = strings.TrimSpace(acct.Username)
		acct.Password = strings.TrimSpace(acct.Password)

		if acct.Provider == "" {
			acct.Provider = DefaultProvider
		}
		if acct.Name == "" {
			acct.Name = fmt.Sprintf("账号%d", i+1)
		}

		if acct.Username == "" || acct.Password == "" {
			logger.Warn("Skipping account entry without username or password.",
				zap.Int("position", i+1))
			continue
		}

		accounts = append(accounts, acct)
	}

	return accounts, nil
}
