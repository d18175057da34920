// Package mongo stores users, offers and comments in MongoDB. Documents
// reference each other by ObjectID; hosts and comment authors are attached
// with a batched $in lookup.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/JonMunkholm/offerloader/internal/core"
	"github.com/JonMunkholm/offerloader/internal/domain"
)

// Collection names.
const (
	UsersCollection    = "users"
	OffersCollection   = "offers"
	CommentsCollection = "comments"
)

// DefaultDatabase is used when Options.Database is empty.
const DefaultDatabase = "offerloader"

var _ core.Store = (*Store)(nil)

// Options configures the client.
type Options struct {
	URI            string
	Database       string
	ConnectTimeout time.Duration
}

// Store is a core.Store backed by MongoDB.
type Store struct {
	client   *mongo.Client
	users    *mongo.Collection
	offers   *mongo.Collection
	comments *mongo.Collection
}

// Open connects, pings the primary and ensures indexes.
func Open(ctx context.Context, opts Options) (*Store, error) {
	clientOpts := options.Client().ApplyURI(opts.URI)
	if opts.ConnectTimeout > 0 {
		clientOpts.SetConnectTimeout(opts.ConnectTimeout).SetServerSelectionTimeout(opts.ConnectTimeout)
	}
	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	s := New(client, opts.Database)
	if err := s.EnsureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return s, nil
}

// New uses database db of an existing client.
func New(client *mongo.Client, db string) *Store {
	if db == "" {
		db = DefaultDatabase
	}
	d := client.Database(db)
	return &Store{
		client:   client,
		users:    d.Collection(UsersCollection),
		offers:   d.Collection(OffersCollection),
		comments: d.Collection(CommentsCollection),
	}
}

// EnsureIndexes creates the unique email index and the listing indexes.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	if _, err := s.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return fmt.Errorf("create email index: %w", err)
	}
	if _, err := s.offers.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "publicationDate", Value: -1}}},
		{Keys: bson.D{{Key: "city", Value: 1}, {Key: "publicationDate", Value: -1}}},
	}); err != nil {
		return fmt.Errorf("create offer indexes: %w", err)
	}
	if _, err := s.comments.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "offerId", Value: 1}, {Key: "publicationDate", Value: -1}},
	}); err != nil {
		return fmt.Errorf("create comment index: %w", err)
	}
	return nil
}

func (s *Store) Users() core.UserRepository       { return users{s} }
func (s *Store) Offers() core.OfferRepository     { return offers{s} }
func (s *Store) Comments() core.CommentRepository { return comments{s} }

// Close disconnects the client.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

type userDoc struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Name      string             `bson:"name"`
	Email     string             `bson:"email"`
	Avatar    string             `bson:"avatar"`
	Password  string             `bson:"password"`
	IsPro     bool               `bson:"isPro"`
	Favorites []string           `bson:"favorites"`
}

func (d userDoc) toDomain() domain.User {
	return domain.User{
		ID:        d.ID.Hex(),
		Name:      d.Name,
		Email:     d.Email,
		Avatar:    d.Avatar,
		Password:  d.Password,
		IsPro:     d.IsPro,
		Favorites: d.Favorites,
	}
}

type locationDoc struct {
	Latitude  float64 `bson:"latitude"`
	Longitude float64 `bson:"longitude"`
}

type offerDoc struct {
	ID              primitive.ObjectID `bson:"_id,omitempty"`
	Title           string             `bson:"title"`
	Description     string             `bson:"description"`
	PublicationDate time.Time          `bson:"publicationDate"`
	City            string             `bson:"city"`
	Preview         string             `bson:"preview"`
	Images          []string           `bson:"images"`
	IsPremium       bool               `bson:"isPremium"`
	Rating          float64            `bson:"rating"`
	Type            string             `bson:"type"`
	Bedrooms        int                `bson:"bedrooms"`
	Guests          int                `bson:"guests"`
	Price           int                `bson:"price"`
	Amenities       []string           `bson:"amenities"`
	HostID          primitive.ObjectID `bson:"hostId"`
	CommentCount    int                `bson:"commentCount"`
	Location        locationDoc        `bson:"location"`
}

func newOfferDoc(o domain.Offer, hostID primitive.ObjectID) offerDoc {
	amenities := make([]string, len(o.Amenities))
	for i, a := range o.Amenities {
		amenities[i] = string(a)
	}
	images := o.Images
	if images == nil {
		images = []string{}
	}
	return offerDoc{
		Title:           o.Title,
		Description:     o.Description,
		PublicationDate: o.PublicationDate,
		City:            string(o.City),
		Preview:         o.Preview,
		Images:          images,
		IsPremium:       o.IsPremium,
		Rating:          o.Rating,
		Type:            string(o.Type),
		Bedrooms:        o.Bedrooms,
		Guests:          o.Guests,
		Price:           o.Price,
		Amenities:       amenities,
		HostID:          hostID,
		CommentCount:    o.CommentCount,
		Location:        locationDoc{Latitude: o.Location.Latitude, Longitude: o.Location.Longitude},
	}
}

func (d offerDoc) toDomain(host domain.User) domain.Offer {
	amenities := make([]domain.Amenity, len(d.Amenities))
	for i, a := range d.Amenities {
		amenities[i] = domain.Amenity(a)
	}
	return domain.Offer{
		ID:              d.ID.Hex(),
		Title:           d.Title,
		Description:     d.Description,
		PublicationDate: d.PublicationDate,
		City:            domain.City(d.City),
		Preview:         d.Preview,
		Images:          d.Images,
		IsPremium:       d.IsPremium,
		Rating:          d.Rating,
		Type:            domain.HousingType(d.Type),
		Bedrooms:        d.Bedrooms,
		Guests:          d.Guests,
		Price:           d.Price,
		Amenities:       amenities,
		Host:            host,
		HostID:          d.HostID.Hex(),
		CommentCount:    d.CommentCount,
		Location:        domain.Location{Latitude: d.Location.Latitude, Longitude: d.Location.Longitude},
	}
}

type commentDoc struct {
	ID              primitive.ObjectID `bson:"_id,omitempty"`
	Text            string             `bson:"text"`
	PublicationDate time.Time          `bson:"publicationDate"`
	Rating          int                `bson:"rating"`
	AuthorID        primitive.ObjectID `bson:"authorId"`
	OfferID         primitive.ObjectID `bson:"offerId"`
}

func (d commentDoc) toDomain(author domain.User) domain.Comment {
	return domain.Comment{
		ID:              d.ID.Hex(),
		Text:            d.Text,
		PublicationDate: d.PublicationDate,
		Rating:          d.Rating,
		AuthorID:        d.AuthorID.Hex(),
		Author:          author,
		OfferID:         d.OfferID.Hex(),
	}
}

// objectID parses id. Malformed ids cannot name a stored document, so they
// are reported as domain.ErrNotFound.
func objectID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, domain.ErrNotFound
	}
	return oid, nil
}

func mapError(err error) error {
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return domain.ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return domain.ErrDuplicateEmail
	}
	return err
}

// usersByID loads the users named by ids in one query.
func (s *Store) usersByID(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]domain.User, error) {
	out := make(map[primitive.ObjectID]domain.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	cursor, err := s.users.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, fmt.Errorf("load users: %w", err)
	}
	var docs []userDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode users: %w", err)
	}
	for _, d := range docs {
		out[d.ID] = d.toDomain()
	}
	return out, nil
}

type users struct{ s *Store }

func (r users) findOne(ctx context.Context, filter bson.M) (domain.User, error) {
	var d userDoc
	if err := r.s.users.FindOne(ctx, filter).Decode(&d); err != nil {
		return domain.User{}, mapError(err)
	}
	return d.toDomain(), nil
}

func (r users) FindByID(ctx context.Context, id string) (domain.User, error) {
	oid, err := objectID(id)
	if err != nil {
		return domain.User{}, err
	}
	return r.findOne(ctx, bson.M{"_id": oid})
}

func (r users) FindByEmail(ctx context.Context, email string) (domain.User, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

func (r users) Create(ctx context.Context, u domain.User) (domain.User, error) {
	favorites := u.Favorites
	if favorites == nil {
		favorites = []string{}
	}
	d := userDoc{
		ID:        primitive.NewObjectID(),
		Name:      u.Name,
		Email:     u.Email,
		Avatar:    u.Avatar,
		Password:  u.Password,
		IsPro:     u.IsPro,
		Favorites: favorites,
	}
	if _, err := r.s.users.InsertOne(ctx, d); err != nil {
		return domain.User{}, mapError(err)
	}
	return d.toDomain(), nil
}

func (r users) AddFavorite(ctx context.Context, userID, offerID string) ([]string, error) {
	return r.updateFavorites(ctx, userID, bson.M{"$addToSet": bson.M{"favorites": offerID}})
}

func (r users) RemoveFavorite(ctx context.Context, userID, offerID string) ([]string, error) {
	return r.updateFavorites(ctx, userID, bson.M{"$pull": bson.M{"favorites": offerID}})
}

func (r users) updateFavorites(ctx context.Context, userID string, update bson.M) ([]string, error) {
	oid, err := objectID(userID)
	if err != nil {
		return nil, err
	}
	var d userDoc
	err = r.s.users.FindOneAndUpdate(ctx, bson.M{"_id": oid}, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&d)
	if err != nil {
		return nil, mapError(err)
	}
	return d.toDomain().Favorites, nil
}

type offers struct{ s *Store }

func (r offers) FindByID(ctx context.Context, id string) (domain.Offer, error) {
	oid, err := objectID(id)
	if err != nil {
		return domain.Offer{}, err
	}
	var d offerDoc
	if err := r.s.offers.FindOne(ctx, bson.M{"_id": oid}).Decode(&d); err != nil {
		return domain.Offer{}, mapError(err)
	}
	return r.populate(ctx, d)
}

func (r offers) populate(ctx context.Context, d offerDoc) (domain.Offer, error) {
	var host userDoc
	if err := r.s.users.FindOne(ctx, bson.M{"_id": d.HostID}).Decode(&host); err != nil && !errors.Is(err, mongo.ErrNoDocuments) {
		return domain.Offer{}, fmt.Errorf("load host: %w", err)
	}
	return d.toDomain(host.toDomain()), nil
}

func (r offers) FindMany(ctx context.Context, f domain.OfferFilter) ([]domain.Offer, error) {
	filter := bson.M{}
	if f.City != "" {
		filter["city"] = string(f.City)
	}
	if f.PremiumOnly {
		filter["isPremium"] = true
	}
	if f.IDs != nil {
		oids := make([]primitive.ObjectID, 0, len(f.IDs))
		for _, id := range f.IDs {
			if oid, err := primitive.ObjectIDFromHex(id); err == nil {
				oids = append(oids, oid)
			}
		}
		filter["_id"] = bson.M{"$in": oids}
	}

	opts := options.Find().SetSort(bson.D{{Key: "publicationDate", Value: -1}, {Key: "_id", Value: 1}})
	if f.Limit > 0 {
		opts.SetLimit(int64(f.Limit))
	}

	cursor, err := r.s.offers.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("list offers: %w", err)
	}
	var docs []offerDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode offers: %w", err)
	}

	hostIDs := make([]primitive.ObjectID, 0, len(docs))
	for _, d := range docs {
		hostIDs = append(hostIDs, d.HostID)
	}
	hosts, err := r.s.usersByID(ctx, hostIDs)
	if err != nil {
		return nil, err
	}

	out := make([]domain.Offer, len(docs))
	for i, d := range docs {
		out[i] = d.toDomain(hosts[d.HostID])
	}
	return out, nil
}

func (r offers) Create(ctx context.Context, o domain.Offer) (domain.Offer, error) {
	hostID, err := objectID(o.HostID)
	if err != nil {
		return domain.Offer{}, err
	}
	var host userDoc
	if err := r.s.users.FindOne(ctx, bson.M{"_id": hostID}).Decode(&host); err != nil {
		return domain.Offer{}, fmt.Errorf("host %s: %w", o.HostID, mapError(err))
	}

	d := newOfferDoc(o, hostID)
	d.ID = primitive.NewObjectID()
	if _, err := r.s.offers.InsertOne(ctx, d); err != nil {
		return domain.Offer{}, fmt.Errorf("insert offer: %w", err)
	}
	return d.toDomain(host.toDomain()), nil
}

func (r offers) Update(ctx context.Context, id string, patch domain.OfferPatch) (domain.Offer, error) {
	current, err := r.FindByID(ctx, id)
	if err != nil {
		return domain.Offer{}, err
	}
	patch.Apply(&current)

	d := newOfferDoc(current, primitive.NilObjectID)
	set := bson.M{
		"title":       d.Title,
		"description": d.Description,
		"city":        d.City,
		"preview":     d.Preview,
		"images":      d.Images,
		"isPremium":   d.IsPremium,
		"type":        d.Type,
		"bedrooms":    d.Bedrooms,
		"guests":      d.Guests,
		"price":       d.Price,
		"amenities":   d.Amenities,
		"location":    d.Location,
	}

	oid, _ := objectID(id)
	var updated offerDoc
	err = r.s.offers.FindOneAndUpdate(ctx, bson.M{"_id": oid}, bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&updated)
	if err != nil {
		return domain.Offer{}, mapError(err)
	}
	return updated.toDomain(current.Host), nil
}

func (r offers) Delete(ctx context.Context, id string) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}
	result, err := r.s.offers.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("delete offer: %w", err)
	}
	if result.DeletedCount == 0 {
		return domain.ErrNotFound
	}
	if _, err := r.s.comments.DeleteMany(ctx, bson.M{"offerId": oid}); err != nil {
		return fmt.Errorf("delete comments: %w", err)
	}
	return nil
}

func (r offers) IncrementCommentCount(ctx context.Context, id string) error {
	return r.updateOne(ctx, id, bson.M{"$inc": bson.M{"commentCount": 1}})
}

// RecomputeRating averages the offer's comments and stores the result
// only over a rating computed from fewer comments. Comments are never
// removed one by one, so a larger count is always the fresher average and
// an out-of-order write from a slower recompute is dropped.
func (r offers) RecomputeRating(ctx context.Context, id string) (float64, int, error) {
	oid, err := objectID(id)
	if err != nil {
		return 0, 0, err
	}
	avg, count, err := r.averageRating(ctx, oid)
	if err != nil {
		return 0, 0, err
	}
	rating := domain.RoundRating(avg)

	filter := bson.M{"_id": oid, "$or": bson.A{
		bson.M{"ratedComments": bson.M{"$lt": count}},
		bson.M{"ratedComments": bson.M{"$exists": false}},
	}}
	update := bson.M{"$set": bson.M{"rating": rating, "ratedComments": count}}
	result, err := r.s.offers.UpdateOne(ctx, filter, update)
	if err != nil {
		return 0, 0, fmt.Errorf("update rating: %w", err)
	}
	if result.MatchedCount == 0 {
		n, err := r.s.offers.CountDocuments(ctx, bson.M{"_id": oid})
		if err != nil {
			return 0, 0, fmt.Errorf("check offer: %w", err)
		}
		if n == 0 {
			return 0, 0, domain.ErrNotFound
		}
	}
	return rating, count, nil
}

func (r offers) averageRating(ctx context.Context, offerID primitive.ObjectID) (float64, int, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "offerId", Value: offerID}}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: nil},
			{Key: "avg", Value: bson.D{{Key: "$avg", Value: "$rating"}}},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
	}
	cursor, err := r.s.comments.Aggregate(ctx, pipeline)
	if err != nil {
		return 0, 0, fmt.Errorf("average rating: %w", err)
	}
	var result []struct {
		Avg   float64 `bson:"avg"`
		Count int     `bson:"count"`
	}
	if err := cursor.All(ctx, &result); err != nil {
		return 0, 0, fmt.Errorf("decode average: %w", err)
	}
	if len(result) == 0 {
		return 0, 0, nil
	}
	return result[0].Avg, result[0].Count, nil
}

func (r offers) updateOne(ctx context.Context, id string, update bson.M) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}
	result, err := r.s.offers.UpdateOne(ctx, bson.M{"_id": oid}, update)
	if err != nil {
		return fmt.Errorf("update offer: %w", err)
	}
	if result.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

type comments struct{ s *Store }

func (r comments) Create(ctx context.Context, c domain.Comment) (domain.Comment, error) {
	offerID, err := objectID(c.OfferID)
	if err != nil {
		return domain.Comment{}, err
	}
	authorID, err := objectID(c.AuthorID)
	if err != nil {
		return domain.Comment{}, err
	}

	n, err := r.s.offers.CountDocuments(ctx, bson.M{"_id": offerID})
	if err != nil {
		return domain.Comment{}, fmt.Errorf("check offer: %w", err)
	}
	if n == 0 {
		return domain.Comment{}, fmt.Errorf("offer %s: %w", c.OfferID, domain.ErrNotFound)
	}
	author, err := users{r.s}.FindByID(ctx, c.AuthorID)
	if err != nil {
		return domain.Comment{}, fmt.Errorf("author %s: %w", c.AuthorID, err)
	}

	d := commentDoc{
		ID:              primitive.NewObjectID(),
		Text:            c.Text,
		PublicationDate: c.PublicationDate,
		Rating:          c.Rating,
		AuthorID:        authorID,
		OfferID:         offerID,
	}
	if _, err := r.s.comments.InsertOne(ctx, d); err != nil {
		return domain.Comment{}, fmt.Errorf("insert comment: %w", err)
	}
	return d.toDomain(author), nil
}

func (r comments) FindByOffer(ctx context.Context, offerID string, limit int) ([]domain.Comment, error) {
	oid, err := primitive.ObjectIDFromHex(offerID)
	if err != nil {
		return []domain.Comment{}, nil
	}

	opts := options.Find().SetSort(bson.D{{Key: "publicationDate", Value: -1}, {Key: "_id", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cursor, err := r.s.comments.Find(ctx, bson.M{"offerId": oid}, opts)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	var docs []commentDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode comments: %w", err)
	}

	authorIDs := make([]primitive.ObjectID, 0, len(docs))
	for _, d := range docs {
		authorIDs = append(authorIDs, d.AuthorID)
	}
	authors, err := r.s.usersByID(ctx, authorIDs)
	if err != nil {
		return nil, err
	}

	out := make([]domain.Comment, len(docs))
	for i, d := range docs {
		out[i] = d.toDomain(authors[d.AuthorID])
	}
	return out, nil
}
