package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"simtrader-backend/internal/domain"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx, so every repository
// method runs the same SQL inside or outside a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore is the pgx-backed persistence layer.
type PostgresStore struct {
	pool *pgxpool.Pool
	q    querier
}

var _ domain.Store = (*PostgresStore)(nil)

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, q: pool}
}

func (s *PostgresStore) Accounts() domain.AccountRepository   { return pgAccounts{s.q} }
func (s *PostgresStore) Positions() domain.PositionRepository { return pgPositions{s.q} }
func (s *PostgresStore) Trades() domain.TradeRepository       { return pgTrades{s.q} }
func (s *PostgresStore) AutoTradeLogs() domain.AutoTradeLogRepository {
	return pgLogs{s.q}
}

// WithinTx runs fn inside one database transaction. A nested call joins the
// enclosing transaction instead of opening a second one.
func (s *PostgresStore) WithinTx(ctx context.Context, fn func(domain.Store) error) error {
	if _, nested := s.q.(pgx.Tx); nested {
		return fn(s)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&PostgresStore{pool: s.pool, q: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

type scanner interface {
	Scan(dest ...any) error
}

// ==================== accounts ====================

type pgAccounts struct{ q querier }

const accountColumns = `id, account_name, initial_balance, current_balance, total_equity,
	total_pnl, total_trades, winning_trades, config, created_at, updated_at`

func (r pgAccounts) Create(ctx context.Context, account *domain.SimAccount) error {
	if account == nil {
		return errors.New("nil account")
	}
	cfg, err := json.Marshal(account.Config)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	return r.q.QueryRow(ctx, `
		insert into sim_accounts(
			account_name, initial_balance, current_balance, total_equity,
			total_pnl, total_trades, winning_trades, config, created_at, updated_at
		) values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		returning id
	`,
		account.AccountName,
		account.InitialBalance,
		account.CurrentBalance,
		account.TotalEquity,
		account.TotalPnL,
		account.TotalTrades,
		account.WinningTrades,
		cfg,
		account.CreatedAt,
		account.UpdatedAt,
	).Scan(&account.ID)
}

func (r pgAccounts) GetByID(ctx context.Context, id int64) (*domain.SimAccount, error) {
	row := r.q.QueryRow(ctx, `select `+accountColumns+` from sim_accounts where id = $1`, id)
	account, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, err
	}
	return account, nil
}

func (r pgAccounts) GetAll(ctx context.Context) ([]*domain.SimAccount, error) {
	rows, err := r.q.Query(ctx, `select `+accountColumns+` from sim_accounts order by id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	accounts := make([]*domain.SimAccount, 0)
	for rows.Next() {
		account, scanErr := scanAccount(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		accounts = append(accounts, account)
	}
	return accounts, rows.Err()
}

func (r pgAccounts) Update(ctx context.Context, account *domain.SimAccount) error {
	if account == nil {
		return errors.New("nil account")
	}
	cfg, err := json.Marshal(account.Config)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	tag, err := r.q.Exec(ctx, `
		update sim_accounts set
			account_name=$2,
			initial_balance=$3,
			current_balance=$4,
			total_equity=$5,
			total_pnl=$6,
			total_trades=$7,
			winning_trades=$8,
			config=$9,
			updated_at=$10
		where id=$1
	`,
		account.ID,
		account.AccountName,
		account.InitialBalance,
		account.CurrentBalance,
		account.TotalEquity,
		account.TotalPnL,
		account.TotalTrades,
		account.WinningTrades,
		cfg,
		account.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}

func (r pgAccounts) Delete(ctx context.Context, id int64) error {
	tag, err := r.q.Exec(ctx, `delete from sim_accounts where id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}

func scanAccount(s scanner) (*domain.SimAccount, error) {
	var a domain.SimAccount
	var cfg []byte

	if err := s.Scan(
		&a.ID,
		&a.AccountName,
		&a.InitialBalance,
		&a.CurrentBalance,
		&a.TotalEquity,
		&a.TotalPnL,
		&a.TotalTrades,
		&a.WinningTrades,
		&cfg,
		&a.CreatedAt,
		&a.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if len(cfg) > 0 {
		if err := json.Unmarshal(cfg, &a.Config); err != nil {
			return nil, fmt.Errorf("decode config: %w", err)
		}
	}
	return &a, nil
}

// ==================== positions ====================

type pgPositions struct{ q querier }

const positionColumns = `id, account_id, symbol, entry_price, quantity, remaining_quantity,
	stop_loss_price, take_profits, highest_price, entry_score, realized_pnl,
	opened_at, status, closed_at, close_reason`

func (r pgPositions) Create(ctx context.Context, position *domain.SimPosition) error {
	if position == nil {
		return errors.New("nil position")
	}
	tps, err := json.Marshal(position.TakeProfits)
	if err != nil {
		return fmt.Errorf("encode take profits: %w", err)
	}

	return r.q.QueryRow(ctx, `
		insert into sim_positions(
			account_id, symbol, entry_price, quantity, remaining_quantity,
			stop_loss_price, take_profits, highest_price, entry_score, realized_pnl,
			opened_at, status, closed_at, close_reason
		) values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		returning id
	`,
		position.AccountID,
		position.Symbol,
		position.EntryPrice,
		position.Quantity,
		position.RemainingQuantity,
		position.StopLossPrice,
		tps,
		position.HighestPrice,
		position.EntryScore,
		position.RealizedPnL,
		position.OpenedAt,
		position.Status,
		nullableTime(position.ClosedAt),
		position.CloseReason,
	).Scan(&position.ID)
}

func (r pgPositions) GetByID(ctx context.Context, id int64) (*domain.SimPosition, error) {
	row := r.q.QueryRow(ctx, `select `+positionColumns+` from sim_positions where id = $1`, id)
	position, err := scanPosition(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrPositionNotFound
		}
		return nil, err
	}
	return position, nil
}

func (r pgPositions) GetOpenByAccount(ctx context.Context, accountID int64) ([]*domain.SimPosition, error) {
	rows, err := r.q.Query(ctx, `
		select `+positionColumns+` from sim_positions
		where account_id = $1 and status = 'OPEN'
		order by id
	`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	positions := make([]*domain.SimPosition, 0)
	for rows.Next() {
		position, scanErr := scanPosition(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		positions = append(positions, position)
	}
	return positions, rows.Err()
}

func (r pgPositions) GetOpenBySymbol(ctx context.Context, accountID int64, symbol string) (*domain.SimPosition, error) {
	row := r.q.QueryRow(ctx, `
		select `+positionColumns+` from sim_positions
		where account_id = $1 and symbol = $2 and status = 'OPEN'
		limit 1
	`, accountID, symbol)
	position, err := scanPosition(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrPositionNotFound
		}
		return nil, err
	}
	return position, nil
}

func (r pgPositions) Update(ctx context.Context, position *domain.SimPosition) error {
	if position == nil {
		return errors.New("nil position")
	}
	tps, err := json.Marshal(position.TakeProfits)
	if err != nil {
		return fmt.Errorf("encode take profits: %w", err)
	}

	tag, err := r.q.Exec(ctx, `
		update sim_positions set
			remaining_quantity=$2,
			stop_loss_price=$3,
			take_profits=$4,
			highest_price=$5,
			realized_pnl=$6,
			status=$7,
			closed_at=$8,
			close_reason=$9
		where id=$1
	`,
		position.ID,
		position.RemainingQuantity,
		position.StopLossPrice,
		tps,
		position.HighestPrice,
		position.RealizedPnL,
		position.Status,
		nullableTime(position.ClosedAt),
		position.CloseReason,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrPositionNotFound
	}
	return nil
}

func (r pgPositions) History(ctx context.Context, accountID int64, limit int) ([]*domain.SimPosition, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.q.Query(ctx, `
		select `+positionColumns+` from sim_positions
		where account_id = $1 and status = 'CLOSED'
		order by closed_at desc
		limit $2
	`, accountID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	positions := make([]*domain.SimPosition, 0)
	for rows.Next() {
		position, scanErr := scanPosition(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		positions = append(positions, position)
	}
	return positions, rows.Err()
}

func scanPosition(s scanner) (*domain.SimPosition, error) {
	var p domain.SimPosition
	var tps []byte
	var closedAt pgtype.Timestamptz

	if err := s.Scan(
		&p.ID,
		&p.AccountID,
		&p.Symbol,
		&p.EntryPrice,
		&p.Quantity,
		&p.RemainingQuantity,
		&p.StopLossPrice,
		&tps,
		&p.HighestPrice,
		&p.EntryScore,
		&p.RealizedPnL,
		&p.OpenedAt,
		&p.Status,
		&closedAt,
		&p.CloseReason,
	); err != nil {
		return nil, err
	}

	if len(tps) > 0 {
		if err := json.Unmarshal(tps, &p.TakeProfits); err != nil {
			return nil, fmt.Errorf("decode take profits: %w", err)
		}
	}
	if closedAt.Valid {
		v := closedAt.Time
		p.ClosedAt = &v
	}
	return &p, nil
}

// ==================== trades ====================

type pgTrades struct{ q querier }

func (r pgTrades) Create(ctx context.Context, trade *domain.SimTrade) error {
	if trade == nil {
		return errors.New("nil trade")
	}
	return r.q.QueryRow(ctx, `
		insert into sim_trades(
			account_id, position_id, symbol, side, price, quantity,
			pnl, pnl_pct, trade_type, trade_time
		) values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		returning id
	`,
		trade.AccountID,
		trade.PositionID,
		trade.Symbol,
		trade.Side,
		trade.Price,
		trade.Quantity,
		trade.PnL,
		trade.PnLPct,
		trade.TradeType,
		trade.TradeTime,
	).Scan(&trade.ID)
}

func (r pgTrades) ListByAccount(ctx context.Context, accountID int64, limit int) ([]*domain.SimTrade, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.q.Query(ctx, `
		select id, account_id, position_id, symbol, side, price, quantity,
			pnl, pnl_pct, trade_type, trade_time
		from sim_trades
		where account_id = $1
		order by trade_time desc, id desc
		limit $2
	`, accountID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	trades := make([]*domain.SimTrade, 0)
	for rows.Next() {
		var t domain.SimTrade
		if err := rows.Scan(
			&t.ID,
			&t.AccountID,
			&t.PositionID,
			&t.Symbol,
			&t.Side,
			&t.Price,
			&t.Quantity,
			&t.PnL,
			&t.PnLPct,
			&t.TradeType,
			&t.TradeTime,
		); err != nil {
			return nil, err
		}
		trades = append(trades, &t)
	}
	return trades, rows.Err()
}

// ==================== auto-trade logs ====================

type pgLogs struct{ q querier }

func (r pgLogs) Create(ctx context.Context, entry *domain.AutoTradeLogEntry) error {
	if entry == nil {
		return errors.New("nil log entry")
	}
	var data []byte
	if entry.ScreeningData != nil {
		var err error
		data, err = json.Marshal(entry.ScreeningData)
		if err != nil {
			return fmt.Errorf("encode screening data: %w", err)
		}
	}

	return r.q.QueryRow(ctx, `
		insert into auto_trade_logs(
			account_id, scan_id, action, symbol, screening_score,
			reason, success, error_message, screening_data, created_at
		) values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		returning id
	`,
		entry.AccountID,
		entry.ScanID,
		entry.Action,
		entry.Symbol,
		entry.ScreeningScore,
		entry.Reason,
		entry.Success,
		entry.ErrorMessage,
		data,
		entry.Timestamp,
	).Scan(&entry.ID)
}

func (r pgLogs) ListByAccount(ctx context.Context, accountID int64, limit int) ([]*domain.AutoTradeLogEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.q.Query(ctx, `
		select id, account_id, scan_id, action, symbol, screening_score,
			reason, success, error_message, screening_data, created_at
		from auto_trade_logs
		where account_id = $1
		order by created_at desc, id desc
		limit $2
	`, accountID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]*domain.AutoTradeLogEntry, 0)
	for rows.Next() {
		var e domain.AutoTradeLogEntry
		var data []byte
		if err := rows.Scan(
			&e.ID,
			&e.AccountID,
			&e.ScanID,
			&e.Action,
			&e.Symbol,
			&e.ScreeningScore,
			&e.Reason,
			&e.Success,
			&e.ErrorMessage,
			&data,
			&e.Timestamp,
		); err != nil {
			return nil, err
		}
		if len(data) > 0 {
			var rec domain.ScoreRecord
			if err := json.Unmarshal(data, &rec); err == nil {
				e.ScreeningData = &rec
			}
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

// Helpers

func nullableTime(v *time.Time) any {
	if v == nil {
		return pgtype.Timestamptz{Valid: false}
	}
	return pgtype.Timestamptz{Valid: true, Time: *v}
}
