package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"axiapac.com/presence/config"
	"axiapac.com/presence/infrastructure/filesystem"
	"axiapac.com/presence/presence/app"
	"axiapac.com/presence/presence/roster"
	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
)

const keyPrefix = "rosters/"

type handler struct {
	// opens a bucket by name
	bucket   func(ctx context.Context, name string) (Bucket, error)
	importer func(schema string) *roster.Importer
	location *time.Location
	logger   *slog.Logger
}

// Bucket is the read side of filesystem.Bucket.
type Bucket interface {
	ReadFile(ctx context.Context, key string, w io.Writer) error
}

// SchemaFromKey maps "rosters/<schema>/<file>.csv" to its schema, and
// "rosters/<file>.csv" to the configured one.
func SchemaFromKey(key string) (string, bool) {
	rest, ok := strings.CutPrefix(key, keyPrefix)
	if !ok || !strings.HasSuffix(strings.ToLower(rest), ".csv") {
		return "", false
	}
	schema, _, nested := strings.Cut(rest, "/")
	if !nested {
		return "", true
	}
	return schema, true
}

func (h *handler) HandleRequest(ctx context.Context, event events.S3Event) (map[string]*roster.Result, error) {
	results := make(map[string]*roster.Result)
	var failed []string

	for _, rec := range event.Records {
		key, err := url.QueryUnescape(rec.S3.Object.Key)
		if err != nil {
			key = rec.S3.Object.Key
		}
		schema, ok := SchemaFromKey(key)
		if !ok {
			h.logger.Info("ignoring object", "bucket", rec.S3.Bucket.Name, "key", key)
			continue
		}

		res, err := h.importObject(ctx, rec.S3.Bucket.Name, key, schema)
		if err != nil {
			h.logger.Error("roster import failed", "key", key, "error", err)
			failed = append(failed, key)
			continue
		}
		results[key] = res
	}

	if len(failed) > 0 {
		return results, fmt.Errorf("failed to import %s", strings.Join(failed, ", "))
	}
	return results, nil
}

func (h *handler) importObject(ctx context.Context, bucketName, key, schema string) (*roster.Result, error) {
	b, err := h.bucket(ctx, bucketName)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := b.ReadFile(ctx, key, &buf); err != nil {
		return nil, err
	}
	h.logger.Info("importing roster", "key", key, "schema", schema, "bytes", buf.Len())
	return h.importer(schema).ImportCSV(ctx, &buf, h.location)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger := cfg.Logger()
	slog.SetDefault(logger)

	a, err := app.Build(context.Background(), cfg, logger, app.Options{})
	if err != nil {
		logger.Error("failed to build app", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	h := &handler{
		bucket: func(ctx context.Context, name string) (Bucket, error) {
			return filesystem.ConnectBucket(ctx, name)
		},
		importer: func(schema string) *roster.Importer {
			return roster.NewImporter(a.StoreFor(schema), logger)
		},
		location: cfg.Location(),
		logger:   logger,
	}
	lambda.Start(h.HandleRequest)
}
