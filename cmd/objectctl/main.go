package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/tendant/objectgate/pkg/objectgate"
	"github.com/tendant/objectgate/pkg/objectgate/config"
)

func main() {
	command := flag.String("command", "help", "Command to execute: put, get, list, delete, copy, move, buckets, help")
	bucket := flag.String("bucket", "", "Bucket name")
	objectKey := flag.String("key", "", "Object key")
	filePath := flag.String("file", "", "File path for put/get (defaults to stdin/stdout)")
	prefix := flag.String("prefix", "", "Key prefix for list")
	maxKeys := flag.Int("max-keys", 0, "Maximum keys for list")
	source := flag.String("source", "", "Source object for copy/move, as /bucket/key")
	subjectID := flag.String("subject", "", "Subject id to act as")
	token := flag.String("token", "", "Subject token to resolve through the identity service")
	scope := flag.String("scope", "", "Owner instance the subject acts within")
	contentType := flag.String("content-type", "", "Content type for put")
	metaJSON := flag.String("meta", "", "Meta JSON for put")
	download := flag.Bool("download", false, "Ask for an attachment disposition on get")
	useMinio := flag.Bool("use-minio", false, "Use MinIO defaults (endpoint, path-style, credentials)")
	minioEndpoint := flag.String("minio-endpoint", "http://localhost:9000", "MinIO server endpoint")
	flag.Parse()

	if *command == "help" || *command == "" {
		usage()
		return
	}

	var opts []config.Option
	if *useMinio {
		opts = append(opts,
			config.WithS3Storage("us-east-1", *minioEndpoint, true),
			config.WithS3Credentials("minioadmin", "minioadmin"),
		)
	}
	cfg, err := config.Load(opts...)
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	ctx := context.Background()
	rt, err := cfg.BuildService(ctx, logger)
	if err != nil {
		log.Fatalf("Failed to initialize service: %v", err)
	}
	defer rt.Close()

	svc := rt.Service
	subject := &objectgate.Subject{ID: *subjectID, Token: *token, Scope: *scope}

	startTime := time.Now()
	var status objectgate.Status
	switch strings.ToLower(*command) {
	case "put":
		head := &objectgate.PutChunk{
			Bucket:  *bucket,
			Key:     *objectKey,
			Subject: subject,
		}
		if *metaJSON != "" {
			var meta objectgate.Meta
			if err := json.Unmarshal([]byte(*metaJSON), &meta); err != nil {
				log.Fatalf("Invalid meta: %v", err)
			}
			head.Meta = &meta
		}
		if *contentType != "" {
			head.Options = &objectgate.Options{ContentType: *contentType}
		}
		in := io.Reader(os.Stdin)
		if *filePath != "" {
			file, err := os.Open(*filePath)
			if err != nil {
				log.Fatalf("Failed to open file: %v", err)
			}
			defer file.Close()
			in = file
		}
		res := svc.Put(ctx, objectgate.NewReaderStream(head, in, cfg.ChunkSize))
		status = res.OperationStatus
		printJSON(res)

	case "get":
		out := io.Writer(os.Stdout)
		if *filePath != "" {
			file, err := os.Create(*filePath)
			if err != nil {
				log.Fatalf("Failed to create file: %v", err)
			}
			defer file.Close()
			out = file
		}
		var written int64
		for event := range svc.Get(ctx, objectgate.GetRequest{
			Bucket:   *bucket,
			Key:      *objectKey,
			Download: *download,
			Subject:  subject,
		}) {
			status = event.Status
			if event.Payload == nil {
				break
			}
			n, err := out.Write(event.Payload.Object)
			if err != nil {
				log.Fatalf("Failed to write output: %v", err)
			}
			written += int64(n)
		}
		fmt.Fprintf(os.Stderr, "Read %d bytes\n", written)

	case "list":
		res := svc.List(ctx, objectgate.ListRequest{
			Bucket:  *bucket,
			Prefix:  *prefix,
			MaxKeys: int32(*maxKeys),
			Subject: subject,
		})
		status = res.OperationStatus
		printJSON(res)

	case "delete":
		res := svc.Delete(ctx, objectgate.DeleteRequest{Bucket: *bucket, Key: *objectKey, Subject: subject})
		status = res.OperationStatus
		printJSON(res)

	case "copy":
		res := svc.Copy(ctx, objectgate.CopyRequest{
			Items:   []objectgate.CopyItem{{Bucket: *bucket, Key: *objectKey, CopySource: *source}},
			Subject: subject,
		})
		status = firstItemStatus(res.OperationStatus, len(res.Items), func() objectgate.Status { return res.Items[0].Status })
		printJSON(res)

	case "move":
		res := svc.Move(ctx, objectgate.MoveRequest{
			Items:   []objectgate.MoveItem{{Bucket: *bucket, Key: *objectKey, SourceObject: *source}},
			Subject: subject,
		})
		status = firstItemStatus(res.OperationStatus, len(res.Items), func() objectgate.Status { return res.Items[0].Status })
		printJSON(res)

	case "buckets":
		printJSON(svc.Buckets())
		status = objectgate.Status{Code: objectgate.CodeOK}

	default:
		log.Fatalf("Unknown command: %s", *command)
	}

	fmt.Fprintf(os.Stderr, "%s finished with %d %s (took %v)\n", *command, status.Code, status.Message, time.Since(startTime))
	if !status.OK() {
		os.Exit(1)
	}
}

func firstItemStatus(op objectgate.Status, n int, item func() objectgate.Status) objectgate.Status {
	if !op.OK() || n == 0 {
		return op
	}
	return item()
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		log.Fatalf("Failed to encode output: %v", err)
	}
}

func usage() {
	fmt.Println("Object Gateway Operator Tool")
	fmt.Println("\nCommands:")
	fmt.Println("  put       Upload a file (or stdin) through the pipeline")
	fmt.Println("  get       Download an object to a file (or stdout)")
	fmt.Println("  list      List visible objects")
	fmt.Println("  delete    Delete an object")
	fmt.Println("  copy      Copy -source to -bucket/-key")
	fmt.Println("  move      Move -source to -bucket/-key")
	fmt.Println("  buckets   Print the configured buckets")
	fmt.Println("  help      Show this help message")
	fmt.Println("\nFlags:")
	flag.PrintDefaults()
	fmt.Println("\nThe backing stores are configured from the environment:")
	fmt.Println(config.Usage())
	fmt.Println("\nExamples:")
	fmt.Println("  Upload a file to MinIO:")
	fmt.Println("    objectctl -use-minio -command put -bucket files -key docs/a.txt -file ./a.txt -subject alice")
	fmt.Println("\n  Copy an object:")
	fmt.Println("    objectctl -command copy -source /files/docs/a.txt -bucket files -key docs/b.txt -subject alice")
}
