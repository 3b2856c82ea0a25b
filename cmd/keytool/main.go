package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/alecthomas/kong"
	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"ai_chat/internal/auth"
	"ai_chat/internal/config"
	"ai_chat/internal/credentials"
	"ai_chat/internal/httpapi"
	"ai_chat/internal/logging"
	"ai_chat/internal/providers"
	"ai_chat/internal/queue"
	"ai_chat/internal/storage"
)

// Globals are shared by every subcommand.
type Globals struct {
	Timeout time.Duration `help:"Overall timeout for the command." default:"30s"`
}

// CLI lists the keytool subcommands.
type CLI struct {
	Globals

	Genkey     GenkeyCmd     `cmd:"" help:"Print a new base64 ENCRYPTION_KEY."`
	Token      TokenCmd      `cmd:"" help:"Mint a user token signed with JWT_SECRET."`
	Migrate    MigrateCmd    `cmd:"" help:"Create or update the database schema."`
	Save       SaveCmd       `cmd:"" help:"Save a provider key for a user."`
	List       ListCmd       `cmd:"" help:"List a user's active provider keys."`
	Delete     DeleteCmd     `cmd:"" help:"Delete a user's provider key."`
	Deactivate DeactivateCmd `cmd:"" help:"Deactivate a user's provider key."`
	Test       TestCmd       `cmd:"" help:"Check a provider key without saving it."`
	Records    RecordsCmd    `cmd:"" help:"Show a user's recent dispatch records."`
	DLQ        DLQCmd        `cmd:"" name:"dlq" help:"Inspect and retry dead-lettered dispatch records."`
}

type GenkeyCmd struct{}

func (c *GenkeyCmd) Run() error {
	key, err := storage.GenerateKey(32)
	if err != nil {
		return err
	}
	fmt.Println(key)
	return nil
}

type TokenCmd struct {
	User uuid.UUID     `required:"" help:"User id placed in the token subject."`
	TTL  time.Duration `name:"ttl" default:"24h" help:"Token lifetime."`
}

func (c *TokenCmd) Run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if !cfg.AuthEnabled() {
		return errors.New("JWT_SECRET is not set")
	}

	token, exp, err := auth.GenerateUserToken(c.User, c.TTL, cfg)
	if err != nil {
		return err
	}
	fmt.Println(token)
	fmt.Fprintf(os.Stderr, "expires %s\n", time.Unix(exp, 0).UTC().Format(time.RFC3339))
	return nil
}

type MigrateCmd struct{}

func (c *MigrateCmd) Run(g *Globals) error {
	return withStore(g, func(ctx context.Context, s *store) error {
		if err := s.db.Migrate(ctx); err != nil {
			return err
		}
		fmt.Println("Schema is up to date")
		return nil
	})
}

type SaveCmd struct {
	User     uuid.UUID `required:"" help:"Owner of the key."`
	Provider string    `required:"" help:"Provider id (openai, google_ai, openrouter, anthropic)."`
	Key      string    `required:"" env:"PROVIDER_KEY" help:"Provider API key."`
	Verify   bool      `help:"Test the key before saving it."`
}

func (c *SaveCmd) Run(g *Globals) error {
	return withStore(g, func(ctx context.Context, s *store) error {
		if c.Verify {
			if result := s.keys.Test(ctx, c.Provider, c.Key); !result.Valid {
				return fmt.Errorf("key rejected by %s: %s", c.Provider, result.Error)
			}
		}

		key, err := s.keys.Save(ctx, c.User, c.Provider, c.Key)
		if err != nil {
			return err
		}
		fmt.Printf("Saved %s key %s for user %s\n", key.Provider, mask(key.APIKey), c.User)
		return nil
	})
}

type ListCmd struct {
	User uuid.UUID `required:"" help:"Owner of the keys."`
}

func (c *ListCmd) Run(g *Globals) error {
	return withStore(g, func(ctx context.Context, s *store) error {
		keys, err := s.keys.GetAll(ctx, c.User)
		if err != nil {
			return err
		}
		if len(keys) == 0 {
			fmt.Println("No active keys")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "PROVIDER\tKEY\tUPDATED")
		for _, k := range keys {
			fmt.Fprintf(w, "%s\t%s\t%s\n", k.Provider, mask(k.APIKey), k.UpdatedAt.Format(time.RFC3339))
		}
		return w.Flush()
	})
}

type DeleteCmd struct {
	User     uuid.UUID `required:"" help:"Owner of the key."`
	Provider string    `required:"" help:"Provider id."`
}

func (c *DeleteCmd) Run(g *Globals) error {
	return withStore(g, func(ctx context.Context, s *store) error {
		if err := s.keys.Delete(ctx, c.User, c.Provider); err != nil {
			return err
		}
		fmt.Printf("Deleted %s key for user %s\n", c.Provider, c.User)
		return nil
	})
}

type DeactivateCmd struct {
	User     uuid.UUID `required:"" help:"Owner of the key."`
	Provider string    `required:"" help:"Provider id."`
}

func (c *DeactivateCmd) Run(g *Globals) error {
	return withStore(g, func(ctx context.Context, s *store) error {
		if err := s.keys.Deactivate(ctx, c.User, c.Provider); err != nil {
			return err
		}
		fmt.Printf("Deactivated %s key for user %s\n", c.Provider, c.User)
		return nil
	})
}

type TestCmd struct {
	Provider string `required:"" help:"Provider id."`
	Key      string `required:"" env:"PROVIDER_KEY" help:"Provider API key."`
}

func (c *TestCmd) Run(g *Globals) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), g.Timeout)
	defer cancel()

	tester := credentials.NewTester(providers.NewRegistry(httpapi.ProviderOptions(cfg)))
	result := tester.Test(ctx, c.Provider, c.Key)
	if !result.Valid {
		return fmt.Errorf("invalid: %s", result.Error)
	}
	fmt.Println("valid")
	return nil
}

type RecordsCmd struct {
	User  uuid.UUID `required:"" help:"User whose dispatches to show."`
	Limit int       `default:"20" help:"Maximum number of records."`
}

func (c *RecordsCmd) Run(g *Globals) error {
	return withStore(g, func(ctx context.Context, s *store) error {
		records, err := s.db.NewDispatchRecordRepository().ListByUser(ctx, c.User, c.Limit)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "CREATED\tPROVIDER\tATTEMPTS\tLATENCY_MS")
		for _, r := range records {
			fmt.Fprintf(w, "%s\t%s\t%d\t%d\n", r.CreatedAt.Format(time.RFC3339), r.Provider, r.Attempts, r.LatencyMS)
		}
		return w.Flush()
	})
}

type DLQCmd struct {
	List  DLQListCmd  `cmd:"" help:"List dead-lettered dispatch records."`
	Retry DLQRetryCmd `cmd:"" help:"Move dead-lettered records back onto the dispatch queue."`
}

type DLQListCmd struct {
	Limit int `default:"50" help:"Maximum number of items; 0 lists all."`
}

func (c *DLQListCmd) Run(g *Globals) error {
	return withDispatchQueue(g, func(ctx context.Context, w *storage.DispatchQueueWorker) error {
		pending, err := w.GetQueueLength(ctx)
		if err != nil {
			return err
		}
		items, err := w.GetDeadLetterItems(ctx, c.Limit)
		if err != nil {
			return err
		}
		fmt.Printf("%d record(s) queued, %d dead-lettered shown\n", pending, len(items))
		if len(items) == 0 {
			return nil
		}

		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tFAILED_AT\tERROR")
		for _, item := range items {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", item.ID, item.Timestamp.Format(time.RFC3339), item.Error)
		}
		return tw.Flush()
	})
}

type DLQRetryCmd struct {
	ID  []string `name:"id" help:"Dead letter ids to retry."`
	All bool     `help:"Retry every dead-lettered record."`
}

func (c *DLQRetryCmd) Run(g *Globals) error {
	if len(c.ID) == 0 && !c.All {
		return errors.New("pass --id or --all")
	}

	return withDispatchQueue(g, func(ctx context.Context, w *storage.DispatchQueueWorker) error {
		ids := c.ID
		if c.All {
			items, err := w.GetDeadLetterItems(ctx, 0)
			if err != nil {
				return err
			}
			ids = ids[:0]
			for _, item := range items {
				ids = append(ids, item.ID)
			}
		}

		for _, id := range ids {
			if err := w.RetryDeadLetterItem(ctx, id); err != nil {
				return fmt.Errorf("retry %s: %w", id, err)
			}
		}
		fmt.Printf("Re-queued %d record(s); the server persists them on its next batch\n", len(ids))
		return nil
	})
}

// withDispatchQueue attaches to the Redis dispatch queue the server writes
// to. The memory backend lives inside the server process and cannot be
// reached from here.
func withDispatchQueue(g *Globals, fn func(ctx context.Context, w *storage.DispatchQueueWorker) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.Redis.Address == "" {
		return errors.New("REDIS_ADDRESS is not set; dead letters are only shared through Redis")
	}

	client, err := storage.NewRedisClient(storage.RedisConfig{
		Address:     cfg.Redis.Address,
		Password:    cfg.Redis.Password,
		DB:          cfg.Redis.DB,
		PoolSize:    2,
		DialTimeout: cfg.Redis.DialTimeout,
	})
	if err != nil {
		return err
	}
	defer client.Close()

	qcfg := queue.DefaultConfig(storage.DispatchQueueName)
	qcfg.UseRedis = true
	q, dlq, err := queue.Open(qcfg, client.Client())
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), g.Timeout)
	defer cancel()

	// The worker is never started; only its queue helpers are used
	return fn(ctx, storage.NewDispatchQueueWorker(q, dlq, nil, qcfg))
}

type store struct {
	db   *storage.DB
	keys *credentials.Service
}

// withStore connects to the configured database for the duration of fn
func withStore(g *Globals, fn func(ctx context.Context, s *store) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.Database.URL == "" {
		return errors.New("DATABASE_URL is not set")
	}

	db, err := storage.NewDB(storage.DBConfig{
		URL:          cfg.Database.URL,
		MaxOpenConns: 2,
		MaxIdleConns: 1,
	})
	if err != nil {
		return err
	}
	defer db.Close()

	enc, err := storage.NewEncryptionFromBase64(cfg.Credentials.EncryptionKey)
	if err != nil {
		return fmt.Errorf("invalid ENCRYPTION_KEY: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), g.Timeout)
	defer cancel()

	registry := providers.NewRegistry(httpapi.ProviderOptions(cfg))
	return fn(ctx, &store{
		db:   db,
		keys: credentials.NewService(db.NewUserAPIKeyRepository(), enc, registry),
	})
}

// mask keeps the first and last four characters of a key
func mask(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "warning: failed to read .env: %v\n", err)
	}
	logging.SetLogLevel(logging.Warning)

	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("keytool"),
		kong.Description("Manage provider keys and tokens for the AI chat service."),
		kong.UsageOnError(),
	)
	err := ctx.Run(&cli.Globals)
	ctx.FatalIfErrorf(err)
}

