package main

import (
	"fmt"
	"os"

	"github.com/datalift/ingest-services/util/cli"
	"github.com/datalift/ingest-services/workers"
)

func main() {
	cli.Init()
	opts := cli.ParseOpts()
	if opts.PrintHelp {
		printHelp()
		cli.PrintDefaults()
		os.Exit(0)
	}

	// If anything goes wrong, this panics.
	// Otherwise, it starts handling NSQ messages immediately.
	worker := workers.NewSyncConverter(
		opts.ChannelBufferSize,
		opts.NumWorkers,
		opts.MaxAttempts,
	)

	// This channel blocks until we get an interrupt,
	// so our program does not exit without Control-C
	// or other kill signal.
	<-worker.NSQConsumer.StopChan
}

func printHelp() {
	message := `
convert_sync_worker converts small raw files (CSV and NDJSON) into
Snappy-compressed Parquet in the processed bucket. It subscribes to the
convert_sync NSQ topic, which is where the bucket reader queues files
at or below MAX_SYNC_FILE_SIZE. Each job produces exactly one Parquet
object, keyed by source and upload date.`
	fmt.Println(message)
	fmt.Println(cli.EnvMessage)
}
