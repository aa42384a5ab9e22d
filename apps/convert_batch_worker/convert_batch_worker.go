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
	worker := workers.NewBatchConverter(
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
convert_batch_worker converts large raw files and whole key prefixes
into Parquet. It subscribes to the convert_batch NSQ topic, which is
where the bucket reader queues files above MAX_SYNC_FILE_SIZE. Large
files are split into multiple Parquet parts of BATCH_MAX_ROWS_PER_PART
rows each. A job whose key ends in "/" converts every tabular object
under that prefix.

Jobs on this topic can run for a long time. Keep the -workers count
low so a single container doesn't stream too many large files at once.`
	fmt.Println(message)
	fmt.Println(cli.EnvMessage)
}
