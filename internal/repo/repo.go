package repo

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"

	"restobject/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

const customerColumns = `id,name,COALESCE(company,''),COALESCE(age,0),COALESCE(phone,''),COALESCE(address,''),created_at,updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanCustomer(row scanner) (domain.Customer, error) {
	var c domain.Customer
	var id int64
	err := row.Scan(&id, &c.Name, &c.Company, &c.Age, &c.Phone, &c.Address, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return c, ErrNotFound
	}
	c.ID = strconv.FormatInt(id, 10)
	return c, err
}

// parseID maps a path id onto the integer key; unknown shapes are not found.
func parseID(id string) (int64, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(id), 10, 64)
	if err != nil || n <= 0 {
		return 0, ErrNotFound
	}
	return n, nil
}

func (r Repo) InsertCustomerTx(ctx context.Context, tx *sql.Tx, c domain.Customer) (string, error) {
	res, err := tx.ExecContext(ctx, `INSERT INTO customers(name,company,age,phone,address,created_at,updated_at) VALUES (?,?,?,?,?,?,?)`,
		c.Name, nullable(c.Company), nullableInt(c.Age), nullable(c.Phone), nullable(c.Address), c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return "", err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(id, 10), nil
}

func (r Repo) GetCustomer(ctx context.Context, id string) (domain.Customer, error) {
	n, err := parseID(id)
	if err != nil {
		return domain.Customer{}, err
	}
	return scanCustomer(r.DB.QueryRowContext(ctx, `SELECT `+customerColumns+` FROM customers WHERE id=?`, n))
}

func (r Repo) ListCustomers(ctx context.Context) ([]domain.CustomerSummary, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,name FROM customers ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.CustomerSummary{}
	for rows.Next() {
		var id int64
		var s domain.CustomerSummary
		if err := rows.Scan(&id, &s.Name); err != nil {
			return nil, err
		}
		s.ID = strconv.FormatInt(id, 10)
		res = append(res, s)
	}
	return res, rows.Err()
}

func (r Repo) CountCustomers(ctx context.Context) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM customers`).Scan(&n)
	return n, err
}

func (r Repo) UpdateCustomerTx(ctx context.Context, tx *sql.Tx, c domain.Customer) error {
	n, err := parseID(c.ID)
	if err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `UPDATE customers SET name=?,company=?,age=?,phone=?,address=?,updated_at=? WHERE id=?`,
		c.Name, nullable(c.Company), nullableInt(c.Age), nullable(c.Phone), nullable(c.Address), c.UpdatedAt, n)
	if err != nil {
		return err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) DeleteCustomerTx(ctx context.Context, tx *sql.Tx, id string) error {
	n, err := parseID(id)
	if err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM customers WHERE id=?`, n)
	if err != nil {
		return err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return ErrNotFound
	}
	return nil
}

// LatestEvents returns up to limit events, newest first, older than cursor when set.
func (r Repo) LatestEvents(ctx context.Context, limit int, cursor int64, evtType, entityID string) ([]domain.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	clauses := []string{"1=1"}
	var args []any
	if evtType != "" {
		clauses = append(clauses, "type=?")
		args = append(args, evtType)
	}
	if entityID != "" {
		clauses = append(clauses, "entity_id=?")
		args = append(args, entityID)
	}
	if cursor > 0 {
		clauses = append(clauses, "id<?")
		args = append(args, cursor)
	}
	query := `SELECT id,ts,type,entity_kind,COALESCE(entity_id,''),actor_id,COALESCE(request_id,''),payload_json FROM events WHERE ` +
		strings.Join(clauses, " AND ") + ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Event{}
	for rows.Next() {
		var e domain.Event
		var payload sql.NullString
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &e.EntityKind, &e.EntityID, &e.ActorID, &e.RequestID, &payload); err != nil {
			return nil, err
		}
		if payload.Valid {
			e.Payload = payload.String
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableInt(v int) any {
	if v == 0 {
		return nil
	}
	return v
}
