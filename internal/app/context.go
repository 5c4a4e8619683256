package app

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"restobject/internal/db"
	"restobject/internal/domain"
	"restobject/internal/events"
	"restobject/internal/migrate"
	"restobject/internal/repo"
)

var (
	firstNames = []string{"Alex", "Mark", "David", "Pater", "Meg", "Stewie", "Oleg", "Steve", "Bill", "John"}
	lastNames  = []string{"Mile", "Testovich", "Meter", "Inch", "Cm", "Tonn", "Pound", "Currency", "Whatelse", "Whoknows", "Doe"}
	companies  = []string{"Campaney", "Comp Inc", "Windows Inc", "Beds Inc", "Bottle Inc", "Table Inc", "Chair Inc", "Phone Inc", "Elgoog Inc", "Employee Inc"}
)

// Open opens and migrates the store, seeding customers into an empty one.
func Open(ctx context.Context, cfg db.Config, seed int) (*sql.DB, repo.Repo, error) {
	conn, err := db.Open(cfg)
	if err != nil {
		return nil, repo.Repo{}, fmt.Errorf("open db: %w", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		conn.Close()
		return nil, repo.Repo{}, fmt.Errorf("migrate: %w", err)
	}
	r := repo.Repo{DB: conn}
	if err := Seed(ctx, r, seed); err != nil {
		conn.Close()
		return nil, repo.Repo{}, err
	}
	return conn, r, nil
}

// Seed inserts n sample customers unless the table already has rows.
func Seed(ctx context.Context, r repo.Repo, n int) error {
	if n <= 0 {
		return nil
	}
	count, err := r.CountCustomers(ctx)
	if err != nil {
		return fmt.Errorf("count customers: %w", err)
	}
	if count > 0 {
		return nil
	}
	now := time.Now().UTC().Format(time.RFC3339)
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for i := 0; i < n; i++ {
		c := domain.Customer{
			Name:      firstNames[i%len(firstNames)] + " " + lastNames[(i*7)%len(lastNames)],
			Company:   companies[(i*3)%len(companies)],
			Age:       25 + (i*13)%35,
			Phone:     "000-555-55-55",
			Address:   fmt.Sprintf("%d Street st.", (i*37)%500),
			CreatedAt: now,
			UpdatedAt: now,
		}
		if _, err := r.InsertCustomerTx(ctx, tx, c); err != nil {
			return fmt.Errorf("seed customer: %w", err)
		}
	}
	w := events.Writer{DB: r.DB}
	if err := w.Append(ctx, tx, events.Entry{
		Type:       "customers.seeded",
		EntityKind: "customer",
		ActorID:    "system",
		Payload:    events.EventPayload{"count": n},
	}); err != nil {
		return fmt.Errorf("append seed event: %w", err)
	}
	return tx.Commit()
}
