// Package store は設定されたドライバに応じたデータストア接続と
// リポジトリの組み立てを管理する。
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/hitoshi/foodshare/internal/database"
	"github.com/hitoshi/foodshare/internal/repository"
)

// ストアドライバ名
const (
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
	DriverMemory   = "memory"
)

// State はストア接続の状態を表す。
type State int

const (
	// StateUninitialized はまだ接続していない（またはClose済み）状態。
	StateUninitialized State = iota
	// StateReady は接続済みでリクエストを処理できる状態。
	StateReady
	// StateFailed は直近の接続試行が失敗した状態。Connectで再試行できる。
	StateFailed
)

// String は状態名を返す。ヘルスチェックの応答に使用する。
func (s State) String() string {
	switch s {
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "uninitialized"
	}
}

// ErrUnknownDriver は未対応のドライバ名が指定された場合のエラー。
var ErrUnknownDriver = errors.New("unknown store driver")

// Config はストア接続の設定。
type Config struct {
	Driver        string
	DatabaseURL   string
	MongoURI      string
	MongoDatabase string
	// Pool はpostgresのコネクションプール設定。
	Pool database.PoolConfig
}

// Client はデータストアへの接続ハンドル。
// Connectは冪等で、失敗した場合は次の呼び出しで再試行する。
type Client struct {
	cfg Config

	mu       sync.RWMutex
	state    State
	db       *sql.DB
	mongo    *mongo.Client
	foods    repository.FoodRepository
	requests repository.RequestRepository
}

// New はClientを生成する。接続はConnectで行う。
func New(cfg Config) *Client {
	if cfg.Driver == "" {
		cfg.Driver = DriverPostgres
	}
	return &Client{cfg: cfg}
}

// Driver は設定されたドライバ名を返す。
func (c *Client) Driver() string {
	return c.cfg.Driver
}

// Connect はストアへ接続し、リポジトリを組み立てる。
// すでにReadyの場合は何もしない。
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateReady {
		return nil
	}

	var err error
	switch c.cfg.Driver {
	case DriverPostgres:
		err = c.connectPostgres(ctx)
	case DriverMongo:
		err = c.connectMongo(ctx)
	case DriverMemory:
		c.foods = repository.NewMemoryFoodRepo()
		c.requests = repository.NewMemoryRequestRepo()
	default:
		err = fmt.Errorf("%w: %q", ErrUnknownDriver, c.cfg.Driver)
	}

	if err != nil {
		c.state = StateFailed
		return err
	}
	c.state = StateReady
	return nil
}

func (c *Client) connectPostgres(ctx context.Context) error {
	db, err := database.Connect(ctx, c.cfg.DatabaseURL, c.cfg.Pool)
	if err != nil {
		return err
	}

	c.db = db
	c.foods = repository.NewPostgresFoodRepo(db)
	c.requests = repository.NewPostgresRequestRepo(db)
	return nil
}

func (c *Client) connectMongo(ctx context.Context) error {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(c.cfg.MongoURI))
	if err != nil {
		return fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return fmt.Errorf("failed to ping mongodb: %w", err)
	}

	db := client.Database(c.cfg.MongoDatabase)
	foods := repository.NewMongoFoodRepo(db)
	requests := repository.NewMongoRequestRepo(db)
	if err := foods.EnsureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return err
	}
	if err := requests.EnsureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return err
	}

	c.mongo = client
	c.foods = foods
	c.requests = requests
	return nil
}

// State は現在の接続状態を返す。
func (c *Client) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Ready は接続済みかどうかを返す。
func (c *Client) Ready() bool {
	return c.State() == StateReady
}

// Foods は食品リストのリポジトリを返す。Ready前はnil。
func (c *Client) Foods() repository.FoodRepository {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.foods
}

// Requests はリクエストのリポジトリを返す。Ready前はnil。
func (c *Client) Requests() repository.RequestRepository {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.requests
}

// Ping はバックエンドへの疎通を確認する。
func (c *Client) Ping(ctx context.Context) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.state != StateReady {
		return fmt.Errorf("store is %s", c.state)
	}
	switch {
	case c.db != nil:
		return c.db.PingContext(ctx)
	case c.mongo != nil:
		return c.mongo.Ping(ctx, readpref.Primary())
	default:
		return nil
	}
}

// Close は接続を閉じ、状態をUninitializedに戻す。
func (c *Client) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var err error
	if c.db != nil {
		err = c.db.Close()
		c.db = nil
	}
	if c.mongo != nil {
		if derr := c.mongo.Disconnect(ctx); derr != nil && err == nil {
			err = derr
		}
		c.mongo = nil
	}
	c.foods = nil
	c.requests = nil
	c.state = StateUninitialized
	return err
}
