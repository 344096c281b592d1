package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Migrate creates the tables this app needs.
// This keeps setup simple (no external migration tool), but still gives persistence.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`create table if not exists sim_accounts (
			id bigserial primary key,
			account_name text not null,
			initial_balance double precision not null,
			current_balance double precision not null,
			total_equity double precision not null,
			total_pnl double precision not null default 0,
			total_trades int not null default 0,
			winning_trades int not null default 0,
			config jsonb not null default '{}'::jsonb,
			created_at timestamptz not null default now(),
			updated_at timestamptz not null default now()
		);`,
		`create table if not exists sim_positions (
			id bigserial primary key,
			account_id bigint not null references sim_accounts(id) on delete cascade,
			symbol text not null,
			entry_price double precision not null,
			quantity double precision not null,
			remaining_quantity double precision not null,
			stop_loss_price double precision not null default 0,
			take_profits jsonb not null default '[]'::jsonb,
			highest_price double precision not null default 0,
			entry_score double precision not null default 0,
			realized_pnl double precision not null default 0,
			opened_at timestamptz not null,
			status text not null,
			closed_at timestamptz null,
			close_reason text not null default ''
		);`,
		`create index if not exists sim_positions_account_status_idx on sim_positions(account_id, status);`,
		`create unique index if not exists sim_positions_open_symbol_idx
			on sim_positions(account_id, symbol) where status = 'OPEN';`,
		`create index if not exists sim_positions_closed_at_idx on sim_positions(closed_at desc);`,
		`create table if not exists sim_trades (
			id bigserial primary key,
			account_id bigint not null references sim_accounts(id) on delete cascade,
			position_id bigint not null,
			symbol text not null,
			side text not null,
			price double precision not null,
			quantity double precision not null,
			pnl double precision not null default 0,
			pnl_pct double precision not null default 0,
			trade_type text not null,
			trade_time timestamptz not null
		);`,
		`create index if not exists sim_trades_account_time_idx on sim_trades(account_id, trade_time desc);`,
		`create table if not exists auto_trade_logs (
			id bigserial primary key,
			account_id bigint not null references sim_accounts(id) on delete cascade,
			scan_id text not null default '',
			action text not null,
			symbol text not null default '',
			screening_score double precision not null default 0,
			reason text not null default '',
			success boolean not null default true,
			error_message text not null default '',
			screening_data jsonb null,
			created_at timestamptz not null
		);`,
		`create index if not exists auto_trade_logs_account_idx on auto_trade_logs(account_id, created_at desc);`,
		`create table if not exists screening_results (
			id bigserial primary key,
			symbol text not null,
			timeframe text not null,
			current_price double precision not null,
			total_score double precision not null,
			beta_score double precision not null,
			volume_score double precision not null,
			technical_score double precision not null,
			signals jsonb not null default '{}'::jsonb,
			volume_24h double precision not null default 0,
			btc_ratio_change double precision not null default 0,
			eth_ratio_change double precision not null default 0,
			scored_at timestamptz not null
		);`,
		`create index if not exists screening_results_tf_score_idx on screening_results(timeframe, total_score desc);`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
