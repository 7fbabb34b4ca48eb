package orders

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

const testSchema = `
CREATE TABLE users (
	id TEXT PRIMARY KEY,
	email TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	name TEXT NOT NULL,
	postal_code TEXT,
	address TEXT,
	building TEXT,
	avatar_path TEXT,
	is_active BOOLEAN NOT NULL DEFAULT TRUE,
	last_login_at DATETIME,
	created_at DATETIME,
	updated_at DATETIME
);
CREATE TABLE items (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	name TEXT NOT NULL,
	brand TEXT,
	description TEXT NOT NULL,
	price_yen INTEGER NOT NULL,
	image_path TEXT,
	condition TEXT NOT NULL,
	is_sold BOOLEAN NOT NULL DEFAULT FALSE,
	like_count INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME,
	updated_at DATETIME
);
CREATE TABLE orders (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	item_id TEXT NOT NULL,
	total_amount_yen INTEGER NOT NULL,
	payment_status TEXT NOT NULL DEFAULT 'payment_pending',
	trade_status TEXT NOT NULL DEFAULT 'trading',
	payment_method TEXT NOT NULL,
	shipping_postal_code TEXT NOT NULL,
	shipping_address TEXT NOT NULL,
	shipping_building TEXT,
	stripe_session_id TEXT,
	buyer_last_viewed_at DATETIME,
	seller_last_viewed_at DATETIME,
	created_at DATETIME,
	updated_at DATETIME,
	CONSTRAINT uniq_orders_stripe_session_id UNIQUE (stripe_session_id)
);
CREATE TABLE messages (
	id TEXT PRIMARY KEY,
	item_id TEXT NOT NULL,
	user_id TEXT NOT NULL,
	body TEXT NOT NULL,
	image_path TEXT,
	created_at DATETIME,
	updated_at DATETIME,
	deleted_at DATETIME
);
CREATE TABLE outbox_events (
	id TEXT PRIMARY KEY,
	event_type TEXT NOT NULL,
	aggregate_type TEXT NOT NULL,
	aggregate_id TEXT NOT NULL,
	payload TEXT NOT NULL,
	created_at DATETIME,
	published_at DATETIME,
	attempt_count INTEGER NOT NULL DEFAULT 0,
	last_error TEXT
);
`

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:orders_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.Exec(testSchema).Error; err != nil {
		t.Fatalf("apply schema: %v", err)
	}
	return db
}

type testTxRunner struct {
	db *gorm.DB
}

func (r testTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}
