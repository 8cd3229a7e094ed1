package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/shambasmart/marketplace/internal/metrics"
	"github.com/shambasmart/marketplace/pkg/model"
)

const listingCacheTTL = 30 * time.Second

// HybridStore is a Redis-cached, Postgres-backed store. Postgres is the
// source of truth; Redis only serves listing read traffic.
type HybridStore struct {
	redis  *redis.Client
	pg     *pgxpool.Pool
	logger *zap.Logger
}

type PGPoolConfig struct {
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
}

// NewHybrid creates a Redis-first, Postgres-backed store. redisPass may be
// empty for unauthenticated instances.
func NewHybrid(redisAddr string, redisDB int, redisPass, pgURL string, pgPoolConfig PGPoolConfig, logger *zap.Logger) (*HybridStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	rdb := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		DB:       redisDB,
		Password: redisPass,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	cfg, err := pgxpool.ParseConfig(pgURL)
	if err != nil {
		return nil, fmt.Errorf("invalid pg config: %w", err)
	}
	if pgPoolConfig.MaxConns > 0 {
		cfg.MaxConns = pgPoolConfig.MaxConns
	}
	if pgPoolConfig.MinConns > 0 {
		cfg.MinConns = pgPoolConfig.MinConns
	}
	if pgPoolConfig.MaxConnLifetime > 0 {
		cfg.MaxConnLifetime = pgPoolConfig.MaxConnLifetime
	}
	if pgPoolConfig.MaxConnIdleTime > 0 {
		cfg.MaxConnIdleTime = pgPoolConfig.MaxConnIdleTime
	}
	if pgPoolConfig.HealthCheckPeriod > 0 {
		cfg.HealthCheckPeriod = pgPoolConfig.HealthCheckPeriod
	}
	pgPool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	return &HybridStore{redis: rdb, pg: pgPool, logger: logger}, nil
}

// Pool exposes the underlying pgx pool for background jobs.
func (s *HybridStore) Pool() *pgxpool.Pool {
	return s.pg
}

// Redis exposes the cache client so jobs can mirror derived data.
func (s *HybridStore) Redis() *redis.Client {
	return s.redis
}

// classify maps driver errors onto the store sentinel errors.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return fmt.Errorf("%w: %v", ErrDuplicate, err)
		case "40001", "40P01", "55P03", "57014":
			// serialization failure, deadlock, lock not available, canceled
			return fmt.Errorf("%w: %v", ErrTransient, err)
		}
	}
	return err
}

// --- transactions ---

type pgTx struct {
	tx pgx.Tx
}

// WithListingTx serializes coordinator operations per listing. The listing
// row lock is taken before fn runs, so under read committed no callback can
// observe escrow or listing state that a concurrent transaction is about to
// overwrite. A missing listing acquires nothing; fn surfaces the NotFound.
func (s *HybridStore) WithListingTx(ctx context.Context, listingID string, fn func(tx Tx) error) error {
	tx, err := s.pg.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("%w: begin: %v", ErrTransient, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `
		SELECT id FROM market.listings WHERE id = $1 FOR UPDATE;
	`, listingID); err != nil {
		return classify(err)
	}

	if err := fn(&pgTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: commit: %v", ErrTransient, err)
	}

	s.bumpListingCache(ctx)
	return nil
}

const listingColumns = `id, seller_id, seller_name, crop_name, quantity, quality_score,
	base_price, current_bid, COALESCE(highest_bidder_id, ''), location_name, location_lat,
	location_lng, COALESCE(image_url, ''), listing_type, status, created_at`

func scanListing(row pgx.Row) (*model.Listing, error) {
	var l model.Listing
	if err := row.Scan(&l.ID, &l.SellerID, &l.SellerName, &l.CropName, &l.Quantity,
		&l.QualityScore, &l.BasePrice, &l.CurrentBid, &l.HighestBidderID,
		&l.Location.Name, &l.Location.Lat, &l.Location.Lng, &l.ImageURL,
		&l.ListingType, &l.Status, &l.CreatedAt); err != nil {
		return nil, classify(err)
	}
	return &l, nil
}

func (t *pgTx) ListingForUpdate(ctx context.Context, id string) (*model.Listing, error) {
	row := t.tx.QueryRow(ctx, `
		SELECT `+listingColumns+`
		FROM market.listings
		WHERE id = $1
		FOR UPDATE;
	`, id)
	return scanListing(row)
}

func (t *pgTx) SetListingState(ctx context.Context, id string, status model.ListingStatus, quantity int64) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE market.listings
		SET status = $2, quantity = $3
		WHERE id = $1;
	`, id, status, quantity)
	if err != nil {
		return classify(err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: listing %s", ErrNotFound, id)
	}
	return nil
}

const escrowColumns = `id, listing_id, buyer_id, amount, platform_fee, requested_quantity,
	status, created_at, updated_at`

func scanEscrow(row pgx.Row) (*model.Escrow, error) {
	var e model.Escrow
	if err := row.Scan(&e.ID, &e.ListingID, &e.BuyerID, &e.Amount, &e.PlatformFee,
		&e.RequestedQuantity, &e.Status, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, classify(err)
	}
	return &e, nil
}

func (t *pgTx) EscrowForListing(ctx context.Context, listingID string) (*model.Escrow, error) {
	row := t.tx.QueryRow(ctx, `
		SELECT `+escrowColumns+`
		FROM market.escrows
		WHERE listing_id = $1;
	`, listingID)
	return scanEscrow(row)
}

func (t *pgTx) InsertEscrow(ctx context.Context, e *model.Escrow) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO market.escrows (
			id, listing_id, buyer_id, amount, platform_fee,
			requested_quantity, status, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9);
	`, e.ID, e.ListingID, e.BuyerID, e.Amount, e.PlatformFee,
		e.RequestedQuantity, e.Status, e.CreatedAt, e.UpdatedAt)
	return classify(err)
}

func (t *pgTx) UpdateEscrow(ctx context.Context, e *model.Escrow) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE market.escrows
		SET buyer_id = $2, amount = $3, platform_fee = $4,
			requested_quantity = $5, status = $6, updated_at = $7
		WHERE id = $1;
	`, e.ID, e.BuyerID, e.Amount, e.PlatformFee,
		e.RequestedQuantity, e.Status, e.UpdatedAt)
	if err != nil {
		return classify(err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: escrow %s", ErrNotFound, e.ID)
	}
	return nil
}

// --- listings ---

func (s *HybridStore) InsertListing(ctx context.Context, l *model.Listing) error {
	_, err := s.pg.Exec(ctx, `
		INSERT INTO market.listings (
			id, seller_id, seller_name, crop_name, quantity, quality_score,
			base_price, current_bid, highest_bidder_id, location_name,
			location_lat, location_lng, image_url, listing_type, status, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, ''), $10, $11, $12, NULLIF($13, ''), $14, $15, $16);
	`, l.ID, l.SellerID, l.SellerName, l.CropName, l.Quantity, l.QualityScore,
		l.BasePrice, l.CurrentBid, l.HighestBidderID, l.Location.Name,
		l.Location.Lat, l.Location.Lng, l.ImageURL, l.ListingType, l.Status, l.CreatedAt)
	if err != nil {
		s.logger.Error("store.pg.insert_listing_failed", zap.Error(err))
		return classify(err)
	}
	s.bumpListingCache(ctx)
	return nil
}

func (s *HybridStore) GetListing(ctx context.Context, id string) (*model.Listing, error) {
	row := s.pg.QueryRow(ctx, `
		SELECT `+listingColumns+`
		FROM market.listings
		WHERE id = $1;
	`, id)
	return scanListing(row)
}

func (s *HybridStore) ListListings(ctx context.Context, f ListingFilter) ([]model.Listing, error) {
	key, ok := s.listingCacheKey(ctx, f)
	if ok {
		var cached []model.Listing
		if err := s.getJSON(ctx, key, &cached); err == nil {
			metrics.IncCacheAccess("hit")
			return cached, nil
		}
		metrics.IncCacheAccess("miss")
	}

	rows, err := s.pg.Query(ctx, `
		SELECT `+listingColumns+`
		FROM market.listings
		WHERE ($1 = '' OR crop_name = $1)
		  AND ($2 = '' OR status = $2)
		  AND ($3 = '' OR location_name = $3)
		ORDER BY created_at DESC;
	`, f.CropName, string(f.Status), f.Location)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var results []model.Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, *l)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}

	if ok {
		_ = s.setJSON(ctx, key, results, listingCacheTTL)
	}
	return results, nil
}

func (s *HybridStore) HeatmapBuckets(ctx context.Context, f HeatmapFilter) ([]model.HeatPoint, error) {
	rows, err := s.pg.Query(ctx, `
		SELECT location_name, location_lat, location_lng, crop_name, SUM(quantity)
		FROM market.listings
		WHERE ($1 = '' OR crop_name = $1)
		  AND ($2 = '' OR status = $2)
		GROUP BY location_name, location_lat, location_lng, crop_name;
	`, f.CropName, string(f.Status))
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var points []model.HeatPoint
	for rows.Next() {
		var p model.HeatPoint
		if err := rows.Scan(&p.Location.Name, &p.Location.Lat, &p.Location.Lng,
			&p.CropName, &p.TotalQuantity); err != nil {
			return nil, classify(err)
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

// --- escrows ---

func (s *HybridStore) EscrowByListing(ctx context.Context, listingID string) (*model.Escrow, error) {
	row := s.pg.QueryRow(ctx, `
		SELECT `+escrowColumns+`
		FROM market.escrows
		WHERE listing_id = $1;
	`, listingID)
	return scanEscrow(row)
}

// --- users ---

func (s *HybridStore) InsertUser(ctx context.Context, u *model.User) error {
	_, err := s.pg.Exec(ctx, `
		INSERT INTO market.users (id, name, email, role, location, rating, hashed_password, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8);
	`, u.ID, u.Name, u.Email, u.Role, u.Location, u.Rating, u.HashedPassword, u.CreatedAt)
	if err != nil {
		s.logger.Error("store.pg.insert_user_failed", zap.Error(err))
	}
	return classify(err)
}

func scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Role, &u.Location,
		&u.Rating, &u.HashedPassword, &u.CreatedAt); err != nil {
		return nil, classify(err)
	}
	return &u, nil
}

func (s *HybridStore) UserByEmail(ctx context.Context, email string) (*model.User, error) {
	row := s.pg.QueryRow(ctx, `
		SELECT id, name, email, role, location, rating, hashed_password, created_at
		FROM market.users
		WHERE email = $1;
	`, email)
	return scanUser(row)
}

func (s *HybridStore) UserByID(ctx context.Context, id string) (*model.User, error) {
	row := s.pg.QueryRow(ctx, `
		SELECT id, name, email, role, location, rating, hashed_password, created_at
		FROM market.users
		WHERE id = $1;
	`, id)
	return scanUser(row)
}

// --- messages ---

func (s *HybridStore) InsertMessage(ctx context.Context, m *model.Message) error {
	_, err := s.pg.Exec(ctx, `
		INSERT INTO market.messages (id, listing_id, sender_id, text, created_at)
		VALUES ($1, $2, $3, $4, $5);
	`, m.ID, m.ListingID, m.SenderID, m.Text, m.CreatedAt)
	return classify(err)
}

func (s *HybridStore) MessagesByListing(ctx context.Context, listingID string) ([]model.Message, error) {
	rows, err := s.pg.Query(ctx, `
		SELECT m.id, m.listing_id, m.sender_id, u.name, m.text, m.created_at
		FROM market.messages m
		JOIN market.users u ON u.id = m.sender_id
		WHERE m.listing_id = $1
		ORDER BY m.created_at ASC;
	`, listingID)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var results []model.Message
	for rows.Next() {
		var m model.Message
		if err := rows.Scan(&m.ID, &m.ListingID, &m.SenderID, &m.SenderName,
			&m.Text, &m.CreatedAt); err != nil {
			return nil, classify(err)
		}
		results = append(results, m)
	}
	return results, rows.Err()
}

// --- redis cache helpers ---

// listingCacheKey versions cache keys so that a single INCR invalidates every
// cached listing page after a write.
func (s *HybridStore) listingCacheKey(ctx context.Context, f ListingFilter) (string, bool) {
	ver, err := s.redis.Get(ctx, "listings:ver").Result()
	if errors.Is(err, redis.Nil) {
		ver = "0"
	} else if err != nil {
		return "", false
	}
	return fmt.Sprintf("listings:%s:%s:%s:%s", ver, f.CropName, f.Status, f.Location), true
}

func (s *HybridStore) bumpListingCache(ctx context.Context) {
	if err := s.redis.Incr(ctx, "listings:ver").Err(); err != nil {
		s.logger.Warn("store.cache.bump_failed", zap.Error(err))
	}
}

func (s *HybridStore) setJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return s.redis.Set(ctx, key, data, ttl).Err()
}

func (s *HybridStore) getJSON(ctx context.Context, key string, dest any) error {
	data, err := s.redis.Get(ctx, key).Bytes()
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

func (s *HybridStore) HealthCheck(ctx context.Context) error {
	if s.redis == nil {
		return fmt.Errorf("redis not initialized")
	}
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	if s.pg != nil {
		if err := s.pg.Ping(ctx); err != nil {
			return fmt.Errorf("postgres ping failed: %w", err)
		}
	}
	return nil
}

func (s *HybridStore) Close() error {
	if s.pg != nil {
		s.pg.Close()
	}
	if s.redis != nil {
		return s.redis.Close()
	}
	return nil
}
