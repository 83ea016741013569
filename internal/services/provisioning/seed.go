package provisioning

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// SeedData is everything the seeder writes into a fresh tenant database.
type SeedData struct {
	AdminName    string
	Email        string
	PasswordHash string
	Country      string
	Modules      []string
}

type currencyDefaults struct {
	code   string
	symbol string
}

// currencyByCountry maps signup countries to settings defaults. Unknown
// countries fall back to USD.
var currencyByCountry = map[string]currencyDefaults{
	"indonesia":      {"IDR", "Rp"},
	"india":          {"INR", "₹"},
	"singapore":      {"SGD", "S$"},
	"malaysia":       {"MYR", "RM"},
	"united states":  {"USD", "$"},
	"united kingdom": {"GBP", "£"},
	"australia":      {"AUD", "A$"},
	"japan":          {"JPY", "¥"},
}

func currencyFor(country string) currencyDefaults {
	if c, ok := currencyByCountry[strings.ToLower(strings.TrimSpace(country))]; ok {
		return c
	}
	return currencyDefaults{"USD", "$"}
}

var defaultExpenseCategories = []string{"Ingredients", "Utilities", "Salaries", "Rent", "Maintenance"}

var defaultMenuCategories = []string{"Starters", "Mains", "Desserts", "Beverages"}

const starterTableCount = 5

// PGSeeder writes the initial administrator, settings and reference data
// into a migrated tenant database over a direct connection.
type PGSeeder struct {
	logger *zap.Logger
}

func NewPGSeeder(logger *zap.Logger) *PGSeeder {
	return &PGSeeder{logger: logger}
}

func (s *PGSeeder) Seed(ctx context.Context, dsn string, data SeedData) error {
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return fmt.Errorf("failed to connect to tenant database: %w", err)
	}
	defer conn.Close(ctx)

	tx, err := conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin seed transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// Administrator role with full permissions and the full module list.
	var roleID int64
	err = tx.QueryRow(ctx, `
		INSERT INTO roles (name, permissions, modules)
		VALUES ('Admin', 'all', $1)
		RETURNING id`,
		data.Modules).Scan(&roleID)
	if err != nil {
		return fmt.Errorf("failed to seed admin role: %w", err)
	}

	// Administrator staff account. The password arrives already hashed;
	// plaintext is never stored.
	_, err = tx.Exec(ctx, `
		INSERT INTO staff (name, email, password_hash, role_id, active)
		VALUES ($1, $2, $3, $4, TRUE)`,
		data.AdminName, data.Email, data.PasswordHash, roleID)
	if err != nil {
		return fmt.Errorf("failed to seed admin staff: %w", err)
	}

	currency := currencyFor(data.Country)
	_, err = tx.Exec(ctx, `
		INSERT INTO settings (country, currency_code, currency_symbol)
		VALUES ($1, $2, $3)`,
		data.Country, currency.code, currency.symbol)
	if err != nil {
		return fmt.Errorf("failed to seed settings: %w", err)
	}

	for _, name := range defaultExpenseCategories {
		if _, err := tx.Exec(ctx, `INSERT INTO expense_categories (name) VALUES ($1)`, name); err != nil {
			return fmt.Errorf("failed to seed expense category %s: %w", name, err)
		}
	}

	for _, name := range defaultMenuCategories {
		if _, err := tx.Exec(ctx, `INSERT INTO menu_categories (name) VALUES ($1)`, name); err != nil {
			return fmt.Errorf("failed to seed menu category %s: %w", name, err)
		}
	}

	for i := 1; i <= starterTableCount; i++ {
		_, err := tx.Exec(ctx, `
			INSERT INTO restaurant_tables (name, capacity, status)
			VALUES ($1, 4, 'available')`,
			fmt.Sprintf("Table %d", i))
		if err != nil {
			return fmt.Errorf("failed to seed table %d: %w", i, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit seed transaction: %w", err)
	}

	s.logger.Info("Tenant database seeded",
		zap.String("admin", data.AdminName),
		zap.String("currency", currency.code))
	return nil
}
