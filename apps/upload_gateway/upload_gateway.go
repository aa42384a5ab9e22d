package main

import (
	"fmt"
	"os"

	"github.com/datalift/ingest-services/gateway"
	"github.com/datalift/ingest-services/models/common"
	"github.com/datalift/ingest-services/util/cli"
)

func main() {
	cli.Init()
	opts := cli.ParseOpts()
	if opts.PrintHelp {
		printHelp()
		cli.PrintDefaults()
		os.Exit(0)
	}

	context := common.NewContext()
	server := gateway.NewServer(context)
	if err := server.Run(); err != nil {
		context.Logger.Fatalf("Gateway stopped: %v", err)
	}
}

func printHelp() {
	message := `
upload_gateway serves the HTTP front door for the ingest pipeline:

  GET /upload?file_name=<key>  issues a pre-signed PUT URL for one
                               upload into the raw bucket
  GET /jobs/:id                returns a ConversionJob and its record
  GET /healthz                 liveness check

Clients upload directly to the object store with the pre-signed URL;
file bytes never pass through this process. It listens on
GATEWAY_LISTEN_ADDR.`
	fmt.Println(message)
	fmt.Println(cli.EnvMessage)
}
