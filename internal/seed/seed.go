package seed

import (
	"database/sql"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Config contains the values required by startup seed.
type Config struct {
	AdminEmail    string
	AdminPassword string
}

// Stats contains seed operation counters.
type Stats struct {
	Inserts int
	Updates int
}

// ServiceArea is a town and the outward code it covers.
type ServiceArea struct {
	Name   string
	Prefix string
}

// DefaultAreas are the postcodes covered when the database is first set up.
var DefaultAreas = []ServiceArea{
	{"Taunton", "TA1"},
	{"Taunton", "TA2"},
	{"Taunton", "TA3"},
	{"Wiveliscombe", "TA4"},
	{"Bridgwater", "TA5"},
	{"Bridgwater", "TA6"},
	{"Bridgwater", "TA7"},
	{"Burnham-on-Sea", "TA8"},
	{"Highbridge", "TA9"},
	{"Ilminster", "TA19"},
	{"Chard", "TA20"},
	{"Wellington", "TA21"},
	{"Wells", "BA5"},
	{"Glastonbury", "BA6"},
	{"Street", "BA16"},
	{"Yeovil", "BA20"},
	{"Yeovil", "BA21"},
	{"Yeovil", "BA22"},
}

// Run executes the startup seed in an idempotent way.
func Run(db *sql.DB, cfg Config) (Stats, error) {
	tx, err := db.Begin()
	if err != nil {
		return Stats{}, fmt.Errorf("begin seed transaction: %w", err)
	}

	stats := Stats{}

	if err := seedAdmin(tx, cfg.AdminEmail, cfg.AdminPassword, &stats); err != nil {
		_ = tx.Rollback()
		return Stats{}, err
	}
	if err := ensureServiceAreas(tx, DefaultAreas, &stats); err != nil {
		_ = tx.Rollback()
		return Stats{}, err
	}

	if err := tx.Commit(); err != nil {
		return Stats{}, fmt.Errorf("commit seed transaction: %w", err)
	}

	return stats, nil
}

func seedAdmin(tx *sql.Tx, email, password string, stats *Stats) error {
	if email == "" || password == "" {
		return nil
	}

	var exists bool
	if err := tx.QueryRow(`SELECT EXISTS(SELECT 1 FROM users WHERE email = ? LIMIT 1)`, email).Scan(&exists); err != nil {
		return fmt.Errorf("check admin user existence: %w", err)
	}
	if exists {
		return nil
	}

	hash, err := HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	if _, err := tx.Exec(`INSERT INTO users (email, password_hash) VALUES (?, ?)`, email, hash); err != nil {
		return fmt.Errorf("insert admin user: %w", err)
	}
	stats.Inserts++
	return nil
}

// HashPassword returns a bcrypt hash suitable for the users table.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// ensureServiceAreas inserts missing prefixes. Existing rows are left as
// they are so areas switched off by hand stay off.
func ensureServiceAreas(tx *sql.Tx, areas []ServiceArea, stats *Stats) error {
	for _, area := range areas {
		result, err := tx.Exec(`
			INSERT INTO service_areas (name, postcode_prefix, active)
			VALUES (?, ?, TRUE)
			ON CONFLICT (postcode_prefix) DO NOTHING
		`, area.Name, area.Prefix)
		if err != nil {
			return fmt.Errorf("insert service area %s: %w", area.Prefix, err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("service area rows affected: %w", err)
		}
		stats.Inserts += int(affected)
	}
	return nil
}
