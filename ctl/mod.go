// syferctl talks to the HTTP control API of a running worker node.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"

	urfave "github.com/urfave/cli/v2"

	"go.dedis.ch/syfer/httpserver"
	"go.dedis.ch/syfer/types"
)

func main() {
	app := &urfave.App{
		Name:  "syferctl",
		Usage: "drive a worker node over its control API",
		Flags: []urfave.Flag{
			&urfave.StringFlag{
				Name:  "api",
				Value: "127.0.0.1:8080",
				Usage: "control API address of the node",
			},
		},
		Commands: []*urfave.Command{
			statusCommand(),
			peerCommand(),
			storeCommand(),
			runCommand(),
			fetchCommand(),
			releaseCommand(),
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func statusCommand() *urfave.Command {
	return &urfave.Command{
		Name:  "status",
		Usage: "show the node's address, account and supported operations",
		Action: func(c *urfave.Context) error {
			var reply httpserver.StatusReply
			err := get(c, "/status", &reply)
			if err != nil {
				return err
			}
			fmt.Println("Address: ", reply.Addr)
			fmt.Println("Account: ", reply.Account)
			fmt.Println("Modulus: ", reply.Modulus)
			fmt.Println("Ops:     ", strings.Join(reply.Ops, ", "))
			return nil
		},
	}
}

func peerCommand() *urfave.Command {
	return &urfave.Command{
		Name:      "peer",
		Usage:     "make workers known to the node",
		ArgsUsage: "ADDR...",
		Action: func(c *urfave.Context) error {
			req := httpserver.PeerRequest{Addrs: c.Args().Slice()}
			return post(c, "/peer", req, &req)
		},
	}
}

func storeCommand() *urfave.Command {
	return &urfave.Command{
		Name:      "store",
		Usage:     "store a tensor on a worker",
		ArgsUsage: "DEST SHAPE VALUE...",
		Action: func(c *urfave.Context) error {
			args := c.Args().Slice()
			if len(args) < 3 {
				return fmt.Errorf("need a destination, a shape and values")
			}
			shape, err := types.DecodeShape(args[1])
			if err != nil {
				return err
			}
			data := make([]uint64, len(args)-2)
			for i, raw := range args[2:] {
				data[i], err = strconv.ParseUint(raw, 10, 64)
				if err != nil {
					return err
				}
			}

			req := httpserver.TensorRequest{Dest: args[0], Shape: shape, Data: data}
			var reply httpserver.RefReply
			err = post(c, "/tensor", req, &reply)
			if err != nil {
				return err
			}
			fmt.Printf("%s shape %v\n", reply.Ref, reply.Shape)
			return nil
		},
	}
}

func runCommand() *urfave.Command {
	return &urfave.Command{
		Name:      "run",
		Usage:     "run an operation on resident tensors",
		ArgsUsage: "OP REF...",
		Flags: []urfave.Flag{
			&urfave.StringSliceFlag{
				Name:  "kwarg",
				Usage: "operation parameter as key=value, repeatable",
			},
		},
		Action: func(c *urfave.Context) error {
			args := c.Args().Slice()
			if len(args) < 2 {
				return fmt.Errorf("need an operation and at least one reference")
			}
			operands := make([]types.TensorRef, len(args)-1)
			for i, raw := range args[1:] {
				ref, err := parseRef(raw)
				if err != nil {
					return err
				}
				operands[i] = ref
			}
			kwargs := map[string]string{}
			for _, raw := range c.StringSlice("kwarg") {
				key, value, ok := strings.Cut(raw, "=")
				if !ok {
					return fmt.Errorf("malformed kwarg %q", raw)
				}
				kwargs[key] = value
			}

			req := httpserver.CommandRequest{Op: args[0], Operands: operands, KWArgs: kwargs}
			var reply httpserver.RefReply
			err := post(c, "/command", req, &reply)
			if err != nil {
				return err
			}
			fmt.Printf("%s shape %v\n", reply.Ref, reply.Shape)
			return nil
		},
	}
}

func fetchCommand() *urfave.Command {
	return &urfave.Command{
		Name:      "fetch",
		Usage:     "retrieve the plaintext behind a reference",
		ArgsUsage: "REF",
		Action: func(c *urfave.Context) error {
			ref, err := parseRef(c.Args().First())
			if err != nil {
				return err
			}
			var reply httpserver.ValueReply
			err = post(c, "/fetch", httpserver.FetchRequest{Ref: ref}, &reply)
			if err != nil {
				return err
			}
			fmt.Printf("shape %v: %v\n", reply.Shape, reply.Data)
			return nil
		},
	}
}

func releaseCommand() *urfave.Command {
	return &urfave.Command{
		Name:      "release",
		Usage:     "free remote tensors",
		ArgsUsage: "REF...",
		Action: func(c *urfave.Context) error {
			refs := make([]types.TensorRef, c.Args().Len())
			for i, raw := range c.Args().Slice() {
				ref, err := parseRef(raw)
				if err != nil {
					return err
				}
				refs[i] = ref
			}
			req := httpserver.ReleaseRequest{Refs: refs}
			return post(c, "/release", req, &req)
		},
	}
}

// parseRef reads the id@worker form printed by the node.
func parseRef(raw string) (types.TensorRef, error) {
	id, worker, ok := strings.Cut(raw, "@")
	if !ok || id == "" || worker == "" {
		return types.TensorRef{}, fmt.Errorf("malformed reference %q, want id@worker", raw)
	}
	return types.TensorRef{WorkerAddr: worker, TensorID: id}, nil
}

func get(c *urfave.Context, path string, reply interface{}) error {
	resp, err := http.Get("http://" + c.String("api") + path)
	if err != nil {
		return err
	}
	return decode(resp, reply)
}

func post(c *urfave.Context, path string, req, reply interface{}) error {
	body, err := json.Marshal(req)
	if err != nil {
		return err
	}
	resp, err := http.Post("http://"+c.String("api")+path,
		"application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	return decode(resp, reply)
}

func decode(resp *http.Response, reply interface{}) error {
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("node answered %s: %s", resp.Status, strings.TrimSpace(string(raw)))
	}
	return json.NewDecoder(resp.Body).Decode(reply)
}
