package orderstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	mongoOptions "go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
)

type MongoConfig struct {
	URI      string `mapstructure:"uri" yaml:"uri"`
	Database string `mapstructure:"database" yaml:"database"`
}

// mongoBackend stores each table as a collection with one document per row.
// Command templates are interpreted by kind and bindings; their text is not
// used.
type mongoBackend struct {
	client *mongo.Client
	db     *mongo.Database
}

var _ Backend = (*mongoBackend)(nil)

func OpenMongo(ctx context.Context, config MongoConfig) (Backend, error) {
	client, err := mongo.Connect(ctx, mongoOptions.Client().ApplyURI(config.URI))
	if err != nil {
		return nil, classified(ErrStoreUnavailable, err)
	}
	return &mongoBackend{client: client, db: client.Database(config.Database)}, nil
}

func (m *mongoBackend) Name() string {
	return DriverMongo
}

func (m *mongoBackend) Acquire(ctx context.Context) (Conn, error) {
	if err := m.client.Ping(ctx, nil); err != nil {
		return nil, classified(ErrStoreUnavailable, err)
	}
	session, err := m.client.StartSession()
	if err != nil {
		return nil, classified(ErrStoreUnavailable, fmt.Errorf("failed to create mongodb session: %w", err))
	}
	return &mongoConn{db: m.db, session: session}, nil
}

func (m *mongoBackend) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return m.client.Disconnect(ctx)
}

// CreateSchema creates a unique index over the key columns of every table.
func (m *mongoBackend) CreateSchema(ctx context.Context, catalog Catalog) error {
	for _, name := range catalog.Names() {
		tb, err := catalog.Table(name)
		if err != nil {
			return err
		}
		keys := bson.D{}
		for _, col := range tb.KeyColumns() {
			keys = append(keys, bson.E{Key: col.Name, Value: 1})
		}
		_, err = m.db.Collection(tb.Name).Indexes().CreateOne(ctx, mongo.IndexModel{
			Keys:    keys,
			Options: mongoOptions.Index().SetUnique(true),
		})
		if err != nil {
			return wrapMongoError(err)
		}
	}
	return nil
}

type mongoConn struct {
	db      *mongo.Database
	session mongo.Session
}

var _ Conn = (*mongoConn)(nil)

func (c *mongoConn) sessionContext(ctx context.Context) context.Context {
	return mongo.NewSessionContext(ctx, c.session)
}

func (c *mongoConn) Query(ctx context.Context, table TableDef, _ CommandTemplate) (ResultSet, error) {
	sctx := c.sessionContext(ctx)
	opts := mongoOptions.Find().SetProjection(bson.D{{Key: "_id", Value: 0}})

	cursor, err := c.db.Collection(table.Name).Find(sctx, bson.D{}, opts)
	if err != nil {
		return ResultSet{}, wrapMongoError(err)
	}
	defer cursor.Close(sctx)

	cols := table.ColumnNames()
	rs := ResultSet{Columns: cols}
	for cursor.Next(sctx) {
		var doc bson.M
		if err := cursor.Decode(&doc); err != nil {
			return ResultSet{}, wrapMongoError(err)
		}
		if len(doc) > len(cols) {
			return ResultSet{}, fmt.Errorf("%w: document in %s has %d fields", ErrSchemaMismatch, table.Name, len(doc))
		}
		row := make([]any, len(cols))
		for i, name := range cols {
			row[i] = fromBSON(doc[name])
		}
		rs.Rows = append(rs.Rows, row)
	}
	if err := cursor.Err(); err != nil {
		return ResultSet{}, wrapMongoError(err)
	}
	return rs, nil
}

func (c *mongoConn) Exec(ctx context.Context, table TableDef, cmd CommandTemplate, args Args) (int64, error) {
	return execMongo(c.sessionContext(ctx), c.db.Collection(table.Name), table, cmd, args)
}

func (c *mongoConn) Begin(ctx context.Context) (Transaction, error) {
	wc := writeconcern.New(writeconcern.WMajority())
	rc := readconcern.Snapshot()
	txnOpts := mongoOptions.Transaction().SetWriteConcern(wc).SetReadConcern(rc)

	if err := c.session.StartTransaction(txnOpts); err != nil {
		return nil, wrapMongoError(err)
	}
	return &mongoTransaction{conn: c}, nil
}

func (c *mongoConn) Release() error {
	c.session.EndSession(context.Background())
	return nil
}

type mongoTransaction struct {
	conn *mongoConn
}

var _ Transaction = (*mongoTransaction)(nil)

func (tx *mongoTransaction) Exec(ctx context.Context, table TableDef, cmd CommandTemplate, args Args) (int64, error) {
	return tx.conn.Exec(ctx, table, cmd, args)
}

func (tx *mongoTransaction) Rollback(ctx context.Context) error {
	return wrapMongoError(tx.conn.session.AbortTransaction(tx.conn.sessionContext(ctx)))
}

func (tx *mongoTransaction) Commit(ctx context.Context) error {
	return wrapMongoError(tx.conn.session.CommitTransaction(tx.conn.sessionContext(ctx)))
}

func execMongo(ctx context.Context, coll *mongo.Collection, table TableDef, cmd CommandTemplate, args Args) (int64, error) {
	log.WithFields(log.Fields{"collection": coll.Name(), "stmt": cmd.Kind}).Debug("exec")

	if cmd.Kind == KindInsert {
		doc := bson.D{}
		for _, b := range cmd.Bindings {
			doc = append(doc, bson.E{Key: b.Column, Value: args[b.Param]})
		}
		if _, err := coll.InsertOne(ctx, doc); err != nil {
			return 0, wrapMongoError(err)
		}
		return 1, nil
	}

	key, ok := cmd.KeyBinding(table)
	if !ok {
		return 0, fmt.Errorf("%w: %s template for %s has no key binding", ErrSchemaMismatch, cmd.Kind, table.Name)
	}
	filter := bson.D{{Key: key.Column, Value: args[key.Param]}}

	switch cmd.Kind {
	case KindUpdate:
		set := bson.D{}
		for _, b := range cmd.Bindings {
			if b != key {
				set = append(set, bson.E{Key: b.Column, Value: args[b.Param]})
			}
		}
		res, err := coll.UpdateOne(ctx, filter, bson.D{{Key: "$set", Value: set}})
		if err != nil {
			return 0, wrapMongoError(err)
		}
		return res.MatchedCount, nil
	case KindDelete:
		res, err := coll.DeleteOne(ctx, filter)
		if err != nil {
			return 0, wrapMongoError(err)
		}
		return res.DeletedCount, nil
	}
	return 0, fmt.Errorf("%w: cannot execute a %s template", ErrUnknownStatement, cmd.Kind)
}

func fromBSON(v any) any {
	switch t := v.(type) {
	case primitive.DateTime:
		return t.Time().UTC()
	case primitive.Null, primitive.Undefined:
		return nil
	}
	return v
}

func wrapMongoError(err error) error {
	switch {
	case err == nil || isClassified(err):
		return err
	case mongo.IsDuplicateKeyError(err):
		return classified(ErrDuplicateKey, err)
	case mongo.IsNetworkError(err), mongo.IsTimeout(err), errors.Is(err, mongo.ErrClientDisconnected),
		errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return classified(ErrStoreUnavailable, err)
	}
	return err
}
