package main

import (
	"fmt"
	"os"

	"github.com/datalift/ingest-services/util"
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

	reader := workers.NewBucketReader()

	// Overlapping scans of the raw bucket would race each other to
	// the seen index, so refuse to start if another reader is running.
	pidPath := reader.Context.Config.PidFilePath
	if pidPath != "" {
		if util.IsRunningInOtherProcess(pidPath) {
			fmt.Fprintf(os.Stderr, "Another bucket reader is running (pid file %s). Exiting.\n", pidPath)
			os.Exit(1)
		}
		if err := util.WritePidFile(pidPath); err != nil {
			fmt.Fprintf(os.Stderr, "Cannot write pid file %s: %v\n", pidPath, err)
			os.Exit(1)
		}
		defer util.DeletePidFile(pidPath)
	}

	if opts.RunOnce {
		reader.RunOnce()
	} else {
		reader.RunAsService()
	}
}

func printHelp() {
	message := `
bucket_reader scans the raw bucket for newly uploaded files. It creates
a ConversionJob in Redis for each new (key, etag) pair and queues the
job ID in NSQ: convert_sync for files at or below MAX_SYNC_FILE_SIZE,
convert_batch for larger ones.

Run with -once for a single scan (e.g. from cron), or without it to
run as a service that scans every BUCKET_READER_INTERVAL.

Though this accepts the common worker params bufsize, max-attempts,
and workers, it ignores them.`
	fmt.Println(message)
	fmt.Println(cli.EnvMessage)
}
