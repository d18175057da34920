// Package postgres stores users, offers and comments in PostgreSQL through a
// pgx connection pool.
package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/offerloader/internal/core"
	"github.com/JonMunkholm/offerloader/internal/domain"
)

//go:embed schema.sql
var schemaTemplate string

// PostgreSQL error codes.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

var _ core.Store = (*Store)(nil)

// Options configures the connection pool.
type Options struct {
	URL             string
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// Store is a core.Store backed by PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// Open connects, verifies the connection and applies the schema.
func Open(ctx context.Context, opts Options) (*Store, error) {
	poolConfig, err := pgxpool.ParseConfig(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	if opts.MaxConns > 0 {
		poolConfig.MaxConns = int32(opts.MaxConns)
	}
	if opts.MinConns > 0 {
		poolConfig.MinConns = int32(opts.MinConns)
	}
	if opts.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = opts.MaxConnLifetime
	}
	if opts.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = opts.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := New(pool)
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an existing pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Schema returns the DDL with the vocabulary CHECK constraints filled in.
func Schema() string {
	return strings.NewReplacer(
		"{{cities}}", sqlList(domain.CityNames()),
		"{{housing_types}}", sqlList(domain.HousingTypeNames()),
		"{{amenities}}", sqlList(domain.AmenityNames()),
	).Replace(schemaTemplate)
}

// Migrate creates missing tables and indexes.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema()); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func (s *Store) Users() core.UserRepository       { return users{s.pool} }
func (s *Store) Offers() core.OfferRepository     { return offers{s.pool} }
func (s *Store) Comments() core.CommentRepository { return comments{s.pool} }

// Close releases the pool.
func (s *Store) Close(context.Context) error {
	s.pool.Close()
	return nil
}

func sqlList(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = "'" + strings.ReplaceAll(v, "'", "''") + "'"
	}
	return strings.Join(quoted, ", ")
}

// toPgUUID converts an id to a pgtype.UUID. Invalid input yields an invalid
// UUID, which the repositories report as domain.ErrNotFound.
func toPgUUID(s string) pgtype.UUID {
	parsed, err := uuid.Parse(s)
	if err != nil {
		return pgtype.UUID{Valid: false}
	}
	return pgtype.UUID{Bytes: parsed, Valid: true}
}

func toPgUUIDs(ids []string) []pgtype.UUID {
	out := make([]pgtype.UUID, 0, len(ids))
	for _, id := range ids {
		if u := toPgUUID(id); u.Valid {
			out = append(out, u)
		}
	}
	return out
}

// mapError translates driver errors into domain errors.
func mapError(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeUniqueViolation:
			return domain.ErrDuplicateEmail
		case codeForeignKeyViolation:
			return fmt.Errorf("%s: %w", pgErr.ConstraintName, domain.ErrNotFound)
		}
	}
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

type users struct{ pool *pgxpool.Pool }

const userColumns = `id::text, name, email, avatar, password, is_pro, favorites`

func scanUser(row rowScanner) (domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Avatar, &u.Password, &u.IsPro, &u.Favorites)
	return u, err
}

func (r users) FindByID(ctx context.Context, id string) (domain.User, error) {
	pgID := toPgUUID(id)
	if !pgID.Valid {
		return domain.User{}, domain.ErrNotFound
	}
	u, err := scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, pgID))
	if err != nil {
		return domain.User{}, mapError(err)
	}
	return u, nil
}

func (r users) FindByEmail(ctx context.Context, email string) (domain.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
	if err != nil {
		return domain.User{}, mapError(err)
	}
	return u, nil
}

func (r users) Create(ctx context.Context, u domain.User) (domain.User, error) {
	favorites := u.Favorites
	if favorites == nil {
		favorites = []string{}
	}
	created, err := scanUser(r.pool.QueryRow(ctx,
		`INSERT INTO users (name, email, avatar, password, is_pro, favorites)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING `+userColumns,
		u.Name, u.Email, u.Avatar, u.Password, u.IsPro, favorites,
	))
	if err != nil {
		return domain.User{}, mapError(err)
	}
	return created, nil
}

// AddFavorite appends offerID in the same statement that checks for it, so
// concurrent adds for one user all land.
func (r users) AddFavorite(ctx context.Context, userID, offerID string) ([]string, error) {
	return r.updateFavorites(ctx,
		`UPDATE users SET favorites = CASE WHEN $2::text = ANY(favorites) THEN favorites
			ELSE array_append(favorites, $2::text) END
		 WHERE id = $1 RETURNING favorites`, userID, offerID)
}

func (r users) RemoveFavorite(ctx context.Context, userID, offerID string) ([]string, error) {
	return r.updateFavorites(ctx,
		`UPDATE users SET favorites = array_remove(favorites, $2::text) WHERE id = $1 RETURNING favorites`,
		userID, offerID)
}

func (r users) updateFavorites(ctx context.Context, query, userID, offerID string) ([]string, error) {
	pgID := toPgUUID(userID)
	if !pgID.Valid {
		return nil, domain.ErrNotFound
	}
	var favorites []string
	if err := r.pool.QueryRow(ctx, query, pgID, offerID).Scan(&favorites); err != nil {
		return nil, mapError(err)
	}
	return favorites, nil
}

type offers struct{ pool *pgxpool.Pool }

const offerSelect = `SELECT o.id::text, o.title, o.description, o.publication_date, o.city, o.preview,
	o.images, o.is_premium, o.rating, o.type, o.bedrooms, o.guests, o.price, o.amenities,
	o.host_id::text, o.comment_count, o.latitude, o.longitude,
	u.id::text, u.name, u.email, u.avatar, u.password, u.is_pro, u.favorites
FROM offers o JOIN users u ON u.id = o.host_id`

func scanOffer(row rowScanner) (domain.Offer, error) {
	var (
		o         domain.Offer
		amenities []string
	)
	err := row.Scan(
		&o.ID, &o.Title, &o.Description, &o.PublicationDate, &o.City, &o.Preview,
		&o.Images, &o.IsPremium, &o.Rating, &o.Type, &o.Bedrooms, &o.Guests, &o.Price, &amenities,
		&o.HostID, &o.CommentCount, &o.Location.Latitude, &o.Location.Longitude,
		&o.Host.ID, &o.Host.Name, &o.Host.Email, &o.Host.Avatar, &o.Host.Password, &o.Host.IsPro, &o.Host.Favorites,
	)
	if err != nil {
		return domain.Offer{}, err
	}
	o.Amenities = make([]domain.Amenity, len(amenities))
	for i, a := range amenities {
		o.Amenities[i] = domain.Amenity(a)
	}
	return o, nil
}

func amenityStrings(as []domain.Amenity) []string {
	out := make([]string, len(as))
	for i, a := range as {
		out[i] = string(a)
	}
	return out
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func (r offers) FindByID(ctx context.Context, id string) (domain.Offer, error) {
	return findOffer(ctx, r.pool, id, "")
}

// findOffer loads one offer. suffix is appended to the query, e.g. a
// locking clause.
func findOffer(ctx context.Context, q interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}, id, suffix string) (domain.Offer, error) {
	pgID := toPgUUID(id)
	if !pgID.Valid {
		return domain.Offer{}, domain.ErrNotFound
	}
	o, err := scanOffer(q.QueryRow(ctx, offerSelect+` WHERE o.id = $1`+suffix, pgID))
	if err != nil {
		return domain.Offer{}, mapError(err)
	}
	return o, nil
}

func (r offers) FindMany(ctx context.Context, f domain.OfferFilter) ([]domain.Offer, error) {
	var (
		conditions []string
		args       []any
	)
	if f.City != "" {
		args = append(args, string(f.City))
		conditions = append(conditions, fmt.Sprintf("o.city = $%d", len(args)))
	}
	if f.PremiumOnly {
		conditions = append(conditions, "o.is_premium")
	}
	if f.IDs != nil {
		args = append(args, toPgUUIDs(f.IDs))
		conditions = append(conditions, fmt.Sprintf("o.id = ANY($%d)", len(args)))
	}

	query := offerSelect
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY o.publication_date DESC, o.id"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list offers: %w", err)
	}
	defer rows.Close()

	out := []domain.Offer{}
	for rows.Next() {
		o, err := scanOffer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan offer: %w", err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return out, nil
}

func (r offers) Create(ctx context.Context, o domain.Offer) (domain.Offer, error) {
	hostID := toPgUUID(o.HostID)
	if !hostID.Valid {
		return domain.Offer{}, domain.ErrNotFound
	}

	var id string
	err := r.pool.QueryRow(ctx,
		`INSERT INTO offers (title, description, publication_date, city, preview, images, is_premium,
			rating, type, bedrooms, guests, price, amenities, host_id, comment_count, latitude, longitude)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		 RETURNING id::text`,
		o.Title, o.Description, o.PublicationDate, string(o.City), o.Preview, orEmpty(o.Images), o.IsPremium,
		o.Rating, string(o.Type), o.Bedrooms, o.Guests, o.Price, amenityStrings(o.Amenities), hostID,
		o.CommentCount, o.Location.Latitude, o.Location.Longitude,
	).Scan(&id)
	if err != nil {
		return domain.Offer{}, mapError(err)
	}
	return r.FindByID(ctx, id)
}

// Update locks the row, applies patch and writes every mutable column back.
func (r offers) Update(ctx context.Context, id string, patch domain.OfferPatch) (domain.Offer, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return domain.Offer{}, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	o, err := findOffer(ctx, tx, id, " FOR UPDATE OF o")
	if err != nil {
		return domain.Offer{}, err
	}
	patch.Apply(&o)

	_, err = tx.Exec(ctx,
		`UPDATE offers SET title = $2, description = $3, city = $4, preview = $5, images = $6,
			is_premium = $7, type = $8, bedrooms = $9, guests = $10, price = $11, amenities = $12,
			latitude = $13, longitude = $14
		 WHERE id = $1`,
		toPgUUID(o.ID), o.Title, o.Description, string(o.City), o.Preview, orEmpty(o.Images),
		o.IsPremium, string(o.Type), o.Bedrooms, o.Guests, o.Price, amenityStrings(o.Amenities),
		o.Location.Latitude, o.Location.Longitude,
	)
	if err != nil {
		return domain.Offer{}, fmt.Errorf("update offer: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.Offer{}, fmt.Errorf("commit: %w", err)
	}
	return o, nil
}

func (r offers) Delete(ctx context.Context, id string) error {
	return r.execOne(ctx, `DELETE FROM offers WHERE id = $1`, id)
}

func (r offers) IncrementCommentCount(ctx context.Context, id string) error {
	return r.execOne(ctx, `UPDATE offers SET comment_count = comment_count + 1 WHERE id = $1`, id)
}

// RecomputeRating locks the offer row before averaging, so the last of
// several concurrent recomputes sees every committed comment.
func (r offers) RecomputeRating(ctx context.Context, id string) (float64, int, error) {
	pgID := toPgUUID(id)
	if !pgID.Valid {
		return 0, 0, domain.ErrNotFound
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var locked string
	if err := tx.QueryRow(ctx, `SELECT id::text FROM offers WHERE id = $1 FOR UPDATE`, pgID).Scan(&locked); err != nil {
		return 0, 0, mapError(err)
	}

	var (
		rating float64
		count  int
	)
	err = tx.QueryRow(ctx,
		`UPDATE offers SET rating = agg.rating
		 FROM (SELECT COALESCE(ROUND(AVG(rating)::numeric, 1), 0)::float8 AS rating, COUNT(*)::int AS n
		       FROM comments WHERE offer_id = $1) agg
		 WHERE id = $1
		 RETURNING agg.rating, agg.n`, pgID,
	).Scan(&rating, &count)
	if err != nil {
		return 0, 0, fmt.Errorf("recompute rating: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, 0, fmt.Errorf("commit: %w", err)
	}
	return rating, count, nil
}

// execOne runs a statement keyed by offer id and reports domain.ErrNotFound
// when it touched no row.
func (r offers) execOne(ctx context.Context, query, id string, args ...any) error {
	pgID := toPgUUID(id)
	if !pgID.Valid {
		return domain.ErrNotFound
	}
	result, err := r.pool.Exec(ctx, query, append([]any{pgID}, args...)...)
	if err != nil {
		return mapError(err)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

type comments struct{ pool *pgxpool.Pool }

func (r comments) Create(ctx context.Context, c domain.Comment) (domain.Comment, error) {
	offerID, authorID := toPgUUID(c.OfferID), toPgUUID(c.AuthorID)
	if !offerID.Valid || !authorID.Valid {
		return domain.Comment{}, domain.ErrNotFound
	}

	err := r.pool.QueryRow(ctx,
		`INSERT INTO comments (text, publication_date, rating, author_id, offer_id)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id::text`,
		c.Text, c.PublicationDate, c.Rating, authorID, offerID,
	).Scan(&c.ID)
	if err != nil {
		return domain.Comment{}, mapError(err)
	}

	author, err := users{r.pool}.FindByID(ctx, c.AuthorID)
	if err != nil {
		return domain.Comment{}, err
	}
	c.Author = author
	return c, nil
}

func (r comments) FindByOffer(ctx context.Context, offerID string, limit int) ([]domain.Comment, error) {
	pgID := toPgUUID(offerID)
	if !pgID.Valid {
		return []domain.Comment{}, nil
	}

	query := `SELECT c.id::text, c.text, c.publication_date, c.rating, c.author_id::text, c.offer_id::text,
		u.id::text, u.name, u.email, u.avatar, u.password, u.is_pro, u.favorites
	FROM comments c JOIN users u ON u.id = c.author_id
	WHERE c.offer_id = $1
	ORDER BY c.publication_date DESC, c.id`
	args := []any{pgID}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()

	out := []domain.Comment{}
	for rows.Next() {
		var c domain.Comment
		if err := rows.Scan(
			&c.ID, &c.Text, &c.PublicationDate, &c.Rating, &c.AuthorID, &c.OfferID,
			&c.Author.ID, &c.Author.Name, &c.Author.Email, &c.Author.Avatar, &c.Author.Password,
			&c.Author.IsPro, &c.Author.Favorites,
		); err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return out, nil
}

