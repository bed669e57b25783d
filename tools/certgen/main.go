// Package main generates the development CA and a server certificate for the
// ResQWave backend, writing them under the output directory.
//
//	certgen -dir certs -hosts localhost,127.0.0.1
//
// Start the backend with -tls-cert certs/server.crt -tls-key certs/server.key
// and point the client at the CA with -ca certs/ca.crt.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/atinyakov/ResQWave/internal/certgen"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("certgen", flag.ContinueOnError)
	dir := fs.String("dir", "certs", "output directory")
	hosts := fs.String("hosts", "localhost,127.0.0.1", "comma-separated server DNS names and IPs")
	if err := fs.Parse(args); err != nil {
		return err
	}

	caCert, caKey, caPair, err := certgen.GenerateCA("ResQWave Dev CA")
	if err != nil {
		return err
	}
	if err := certgen.WritePair(*dir, "ca", caPair); err != nil {
		return err
	}

	server, err := certgen.GenerateServerCertificate(splitHosts(*hosts), caCert, caKey)
	if err != nil {
		return err
	}
	if err := certgen.WritePair(*dir, "server", server); err != nil {
		return err
	}

	fmt.Printf("Certificates generated into %s\n", *dir)
	return nil
}

func splitHosts(s string) []string {
	var out []string
	for _, h := range strings.Split(s, ",") {
		if h = strings.TrimSpace(h); h != "" {
			out = append(out, h)
		}
	}
	return out
}
