package store

import (
	"bitwise74/account-api/internal/model"
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync/atomic"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	// All users live in one document under this _id
	singletonID = "users"
	arrayKey    = "userData"
)

type userCollection struct {
	ID    string       `bson:"_id"`
	Users []model.User `bson:"userData"`
}

// MongoStore keeps every user as an element of a single document's array,
// which is the layout existing deployments were created with. Writes address
// elements through arrayFilters on the user ID and inserts are guarded by a
// $not/$elemMatch filter so a duplicate email or username is rejected by the
// server instead of the caller.
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection

	// Set once the singleton document is known to exist
	ready atomic.Bool
}

func NewMongoStore(client *mongo.Client, database string) *MongoStore {
	return &MongoStore{
		client: client,
		coll:   client.Database(database).Collection("users"),
	}
}

func (s *MongoStore) FindByField(ctx context.Context, field Field, value string) (*model.User, error) {
	if err := checkLookup(field); err != nil {
		return nil, err
	}

	return s.findOne(ctx, bson.M{string(field): value})
}

func (s *MongoStore) FindByResetToken(ctx context.Context, token string, now time.Time) (*model.User, error) {
	return s.findOne(ctx, bson.M{
		string(FieldResetToken):       token,
		string(FieldResetTokenExpiry): bson.M{"$gt": now},
	})
}

func (s *MongoStore) findOne(ctx context.Context, elem bson.M) (*model.User, error) {
	var doc userCollection

	err := s.coll.FindOne(ctx,
		bson.M{"_id": singletonID, arrayKey: bson.M{"$elemMatch": elem}},
		options.FindOne().SetProjection(bson.M{arrayKey + ".$": 1}),
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}

		return nil, err
	}

	if len(doc.Users) == 0 {
		return nil, ErrNotFound
	}

	return &doc.Users[0], nil
}

func (s *MongoStore) Insert(ctx context.Context, u *model.User) error {
	if u.ID == "" {
		return errors.New("user has no ID")
	}

	if err := s.ensureDocument(ctx); err != nil {
		return fmt.Errorf("failed to create users document, %w", err)
	}

	now := time.Now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now

	conflicts := bson.A{
		bson.M{string(FieldID): u.ID},
		bson.M{string(FieldEmail): u.Email},
	}
	if u.Username != nil && *u.Username != "" {
		conflicts = append(conflicts, bson.M{string(FieldUsername): *u.Username})
	}
	if u.DashUsername != nil && *u.DashUsername != "" {
		conflicts = append(conflicts, bson.M{string(FieldDashUsername): *u.DashUsername})
	}

	// If a conflicting element exists the filter misses and the upsert tries
	// to create a second document with the same _id, which the server rejects
	_, err := s.coll.UpdateOne(ctx,
		bson.M{
			"_id":    singletonID,
			arrayKey: bson.M{"$not": bson.M{"$elemMatch": bson.M{"$or": conflicts}}},
		},
		bson.M{"$push": bson.M{arrayKey: u}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w, %v", ErrDuplicate, err)
		}

		return err
	}

	return nil
}

// ensureDocument creates the empty singleton so a duplicate key on the
// guarded upsert in Insert always means a conflicting user. Losing the race
// to create it is fine.
func (s *MongoStore) ensureDocument(ctx context.Context) error {
	if s.ready.Load() {
		return nil
	}

	_, err := s.coll.UpdateOne(ctx,
		bson.M{"_id": singletonID},
		bson.M{"$setOnInsert": bson.M{arrayKey: bson.A{}}},
		options.Update().SetUpsert(true),
	)
	if err != nil && !mongo.IsDuplicateKeyError(err) {
		return err
	}

	s.ready.Store(true)
	return nil
}

func (s *MongoStore) UpdateFields(ctx context.Context, id string, f Fields) (*model.User, error) {
	return s.update(ctx, id, nil, f)
}

func (s *MongoStore) UpdateFieldsIf(ctx context.Context, id string, guard Match, f Fields) (*model.User, error) {
	if err := checkLookup(guard.Field); err != nil {
		return nil, err
	}

	return s.update(ctx, id, &guard, f)
}

func (s *MongoStore) update(ctx context.Context, id string, guard *Match, f Fields) (*model.User, error) {
	if err := checkFields(f); err != nil {
		return nil, err
	}

	elem := bson.M{string(FieldID): id}
	if guard != nil {
		elem[string(guard.Field)] = guard.Value
	}

	uniq := uniqueValues(f)
	filter := updateFilter(id, elem, uniq)

	res, err := s.coll.UpdateOne(ctx, filter, updateDocument(f, time.Now().UTC()),
		options.Update().SetArrayFilters(options.ArrayFilters{
			Filters: []interface{}{bson.M{"elem.id": id}},
		}),
	)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, fmt.Errorf("%w, %v", ErrDuplicate, err)
		}

		return nil, err
	}

	if res.MatchedCount == 0 {
		// Tell a taken username/email apart from a missing record
		if len(uniq) > 0 {
			if _, err := s.findOne(ctx, elem); err == nil {
				return nil, ErrDuplicate
			}
		}

		return nil, ErrNotFound
	}

	return s.FindByField(ctx, FieldID, id)
}

// updateFilter matches the singleton when it holds the target element and,
// if unique fields are being written, no other element already owns them
func updateFilter(id string, elem bson.M, uniq []Match) bson.M {
	if len(uniq) == 0 {
		return bson.M{"_id": singletonID, arrayKey: bson.M{"$elemMatch": elem}}
	}

	owners := bson.A{}
	for _, m := range uniq {
		owners = append(owners, bson.M{string(m.Field): m.Value})
	}

	return bson.M{
		"_id": singletonID,
		"$and": bson.A{
			bson.M{arrayKey: bson.M{"$elemMatch": elem}},
			bson.M{arrayKey: bson.M{"$not": bson.M{"$elemMatch": bson.M{
				string(FieldID): bson.M{"$ne": id},
				"$or":           owners,
			}}}},
		},
	}
}

// updateDocument turns f into $set/$unset operations on the array element
// selected by the "elem" array filter
func updateDocument(f Fields, now time.Time) bson.M {
	set := bson.M{arrayKey + ".$[elem].updated_at": now}
	unset := bson.M{}

	for k, v := range f {
		path := arrayKey + ".$[elem]." + string(k)
		if isNil(v) {
			unset[path] = ""
			continue
		}

		set[path] = v
	}

	upd := bson.M{"$set": set}
	if len(unset) > 0 {
		upd["$unset"] = unset
	}

	return upd
}

func (s *MongoStore) List(ctx context.Context) ([]model.User, error) {
	var doc userCollection

	err := s.coll.FindOne(ctx, bson.M{"_id": singletonID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return []model.User{}, nil
		}

		return nil, err
	}

	if doc.Users == nil {
		return []model.User{}, nil
	}

	return doc.Users, nil
}

func (s *MongoStore) ClearExpiredTokens(ctx context.Context, now time.Time) (int64, error) {
	users, err := s.List(ctx)
	if err != nil {
		return 0, err
	}

	var expired int64
	for _, u := range users {
		if u.VerificationTokenExpiry != nil && u.VerificationTokenExpiry.Before(now) {
			expired++
		}
		if u.ResetTokenExpiry != nil && u.ResetTokenExpiry.Before(now) {
			expired++
		}
	}

	if expired == 0 {
		return 0, nil
	}

	unsetExpired := func(token, expiry Field) error {
		_, err := s.coll.UpdateOne(ctx,
			bson.M{"_id": singletonID},
			bson.M{"$unset": bson.M{
				arrayKey + ".$[r]." + string(token):  "",
				arrayKey + ".$[r]." + string(expiry): "",
			}},
			options.Update().SetArrayFilters(options.ArrayFilters{
				Filters: []interface{}{bson.M{"r." + string(expiry): bson.M{"$lt": now}}},
			}),
		)

		return err
	}

	if err := unsetExpired(FieldVerificationToken, FieldVerificationTokenExpiry); err != nil {
		return 0, err
	}

	if err := unsetExpired(FieldResetToken, FieldResetTokenExpiry); err != nil {
		return 0, err
	}

	return expired, nil
}

func (s *MongoStore) Close() error {
	return s.client.Disconnect(context.Background())
}

func isNil(v any) bool {
	if v == nil {
		return true
	}

	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Ptr && rv.IsNil()
}
