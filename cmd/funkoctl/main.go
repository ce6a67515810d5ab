// funkoctl is the command line client. Mutations issued while the server
// is unreachable are persisted in a local queue and replayed in order
// once connectivity returns.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/funkostack/funkostore/internal/client"
	"github.com/funkostack/funkostore/internal/syncq"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func usage() {
	fmt.Fprintf(os.Stderr, `usage: funkoctl [-s server] <command> [args]

commands:
  login <username> <password>          sign in and store the token
  funko get <id>                       fetch a funko
  funko create <name> <price> <cat>    create a funko
  funko update <id> <name> <price> <cat>
  funko delete <id>
  categoria create <name>
  categoria update <id> <name>
  categoria delete <id>
  pending                              list queued offline operations
  sync                                 replay queued operations now
  watch                                replay automatically when online
`)
	os.Exit(2)
}

func configDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	dir := filepath.Join(home, ".funkoctl")
	_ = os.MkdirAll(dir, 0o700)
	return dir
}

func loadToken() string {
	data, err := os.ReadFile(filepath.Join(configDir(), "token"))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func saveToken(token string) error {
	return os.WriteFile(filepath.Join(configDir(), "token"), []byte(token), 0o600)
}

func openQueue() *syncq.Store {
	store, err := syncq.Open(filepath.Join(configDir(), "queue.db"))
	if err != nil {
		fatalf("open offline queue: %v", err)
	}
	return store
}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "funkoctl: "+format+"\n", args...)
	os.Exit(1)
}

func main() {
	server := flag.String("s", "http://127.0.0.1:1987", "server base url")
	flag.Usage = usage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		usage()
	}

	api := client.New(strings.TrimRight(*server, "/"), loadToken())
	ctx := context.Background()

	switch args[0] {
	case "login":
		if len(args) != 3 {
			usage()
		}
		token, user, err := api.Signin(ctx, args[1], args[2])
		if err != nil {
			fatalf("login: %v", err)
		}
		if err := saveToken(token); err != nil {
			fatalf("save token: %v", err)
		}
		fmt.Printf("signed in as %s (%s)\n", user.Username, user.Role)

	case "funko":
		runFunko(ctx, api, args[1:])

	case "categoria":
		runCategory(ctx, api, args[1:])

	case "pending":
		store := openQueue()
		defer store.Close()
		ops, err := store.Pending()
		if err != nil {
			fatalf("read queue: %v", err)
		}
		if len(ops) == 0 {
			fmt.Println("no pending operations")
			return
		}
		for _, op := range ops {
			fmt.Printf("%d\t%s\t%s\t%s\t%s\tretries=%d\n",
				op.ID, op.CreatedAt.Format(time.RFC3339), op.Kind,
				op.Entity, op.TargetID, op.Retries)
		}

	case "sync":
		store := openQueue()
		defer store.Close()
		replayer := syncq.NewReplayer(store, client.Executors(api), 0)
		applied, retained, err := replayer.ReplayOnce(ctx)
		if err != nil {
			fatalf("sync: %v", err)
		}
		fmt.Printf("applied %d, retained %d\n", applied, retained)

	case "watch":
		store := openQueue()
		defer store.Close()
		replayer := syncq.NewReplayer(store, client.Executors(api), 2*time.Second)
		watchCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		fmt.Println("watching connectivity; ctrl-c to stop")
		replayer.Watch(watchCtx, api.Online, 5*time.Second)

	default:
		usage()
	}
}

func runFunko(ctx context.Context, api *client.Client, args []string) {
	if len(args) == 0 {
		usage()
	}
	switch args[0] {
	case "get":
		if len(args) != 2 {
			usage()
		}
		id, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			fatalf("bad id %q", args[1])
		}
		funko, err := api.GetFunko(ctx, id)
		if err != nil {
			fatalf("get funko: %v", err)
		}
		out, _ := json.MarshalIndent(funko, "", "  ")
		fmt.Println(string(out))

	case "create":
		if len(args) != 4 {
			usage()
		}
		price, err := strconv.ParseFloat(args[2], 64)
		if err != nil {
			fatalf("bad price %q", args[2])
		}
		p := client.FunkoPayload{Name: args[1], Price: price, Categoria: args[3]}
		mutate(ctx, api, "funko", syncq.OpCreate, "", p, func() error {
			return api.CreateFunko(ctx, p)
		})

	case "update":
		if len(args) != 5 {
			usage()
		}
		price, err := strconv.ParseFloat(args[3], 64)
		if err != nil {
			fatalf("bad price %q", args[3])
		}
		p := client.FunkoPayload{Name: args[2], Price: price, Categoria: args[4]}
		mutate(ctx, api, "funko", syncq.OpUpdate, args[1], p, func() error {
			return api.UpdateFunko(ctx, args[1], p)
		})

	case "delete":
		if len(args) != 2 {
			usage()
		}
		mutate(ctx, api, "funko", syncq.OpDelete, args[1], nil, func() error {
			return api.DeleteFunko(ctx, args[1])
		})

	default:
		usage()
	}
}

func runCategory(ctx context.Context, api *client.Client, args []string) {
	if len(args) == 0 {
		usage()
	}
	switch args[0] {
	case "create":
		if len(args) != 2 {
			usage()
		}
		p := client.CategoryPayload{Name: args[1]}
		mutate(ctx, api, "categoria", syncq.OpCreate, "", p, func() error {
			return api.CreateCategory(ctx, p)
		})

	case "update":
		if len(args) != 3 {
			usage()
		}
		p := client.CategoryPayload{Name: args[2]}
		mutate(ctx, api, "categoria", syncq.OpUpdate, args[1], p, func() error {
			return api.UpdateCategory(ctx, args[1], p)
		})

	case "delete":
		if len(args) != 2 {
			usage()
		}
		mutate(ctx, api, "categoria", syncq.OpDelete, args[1], nil, func() error {
			return api.DeleteCategory(ctx, args[1])
		})

	default:
		usage()
	}
}

// mutate attempts the call and queues the operation for replay when the
// transport fails. A rejection from a reachable server is reported, not
// queued.
func mutate(ctx context.Context, api *client.Client, entity string, kind syncq.OpKind, targetID string, payload interface{}, call func() error) {
	err := call()
	if err == nil {
		fmt.Printf("%s %s ok\n", kind, entity)
		return
	}
	if !client.IsUnreachable(err) {
		fatalf("%s %s: %v", kind, entity, err)
	}

	var data []byte
	if payload != nil {
		var err error
		data, err = json.Marshal(payload)
		if err != nil {
			fatalf("encode payload: %v", err)
		}
	}
	store := openQueue()
	defer store.Close()
	id, err := store.Enqueue(syncq.Op{
		Kind:     kind,
		Entity:   entity,
		TargetID: targetID,
		Payload:  data,
	})
	if err != nil {
		fatalf("queue operation: %v", err)
	}
	fmt.Printf("server unreachable; queued %s %s as operation %d\n", kind, entity, id)
}
