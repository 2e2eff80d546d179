package repository

import (
	"encoding/json"
	"fmt"
	"os"

	"oysloe/internal/domain/entity"
)

// Seed is the directory content an in-memory deployment starts with.
type Seed struct {
	Users    []*entity.User    `json:"users"`
	Products []*entity.Product `json:"products"`
}

// LoadSeedFile fills the user and product directory from a JSON file and returns
// how many users it added. A seed without users is rejected since no room could
// ever be opened against it.
func (s *MemoryStore) LoadSeedFile(path string) (int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read seed file: %w", err)
	}
	var seed Seed
	if err := json.Unmarshal(raw, &seed); err != nil {
		return 0, fmt.Errorf("parse seed file %s: %w", path, err)
	}
	if len(seed.Users) == 0 {
		return 0, fmt.Errorf("seed file %s has no users", path)
	}

	for i, u := range seed.Users {
		if u == nil || u.ID == "" || u.Email == "" {
			return 0, fmt.Errorf("seed user %d needs an id and an email", i)
		}
	}
	for i, p := range seed.Products {
		if p == nil || p.ID == "" {
			return 0, fmt.Errorf("seed product %d needs an id", i)
		}
	}

	for _, u := range seed.Users {
		s.PutUser(u)
	}
	for _, p := range seed.Products {
		s.PutProduct(p)
	}
	return len(seed.Users), nil
}
