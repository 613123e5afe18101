package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gookit/color"
	"github.com/urfave/cli/v2"

	"github.com/kbrandt/gqltransport"
)

// main.go wires a tiny chat domain (rooms.go) into a graphql-transport-ws
// server, with a small urfave/cli command line for config path and
// verbosity.

func main() {
	app := &cli.App{
		Name:  "chatserver",
		Usage: "an example graphql-transport-ws chat server",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "path to a YAML config file"},
			&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Usage: "keep date and time prefixes on log lines"},
		},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	cfg, err := loadConfig(c.String("config"))
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if !c.Bool("verbose") {
		log.SetFlags(0)
	}

	registry := newRoomRegistry()
	srv := &chatServer{registry: registry, secret: cfg.Secret}

	handler := gqltransport.NewServer(gqltransport.ServerConfig{
		Execute:   srv.execute,
		Subscribe: srv.subscribe,
		OnConnect: newAuthenticator(cfg.Secret),
	})

	http.Handle(cfg.Path, handler)
	color.Green.Printf("⚡️ chatserver listening on ws://%s%s\n", cfg.Addr, cfg.Path)
	return http.ListenAndServe(cfg.Addr, nil)
}

// chatServer adapts the toy chat domain to gqltransport.ExecuteFunc and
// gqltransport.SubscribeFunc. It has no real GraphQL engine behind it, so
// operations are dispatched by a crude substring match on the query text
// instead of a real parser/executor.
type chatServer struct {
	registry *roomRegistry
	secret   string
}

func (s *chatServer) currentUser(params gqltransport.ExecutionParams) (string, error) {
	var payload initPayload
	if err := json.Unmarshal(params.ConnectionParams, &payload); err != nil {
		return "", fmt.Errorf("invalid connectionParams: %w", err)
	}
	return verifyToken(payload.AuthToken, s.secret)
}

func (s *chatServer) execute(ctx context.Context, params gqltransport.ExecutionParams) (*gqltransport.ExecutionResult, error) {
	switch {
	case strings.Contains(params.Query, "postMessage"):
		return s.postMessage(params)
	case strings.Contains(params.Query, "messages"):
		return s.listMessages(params)
	default:
		return nil, fmt.Errorf("unsupported operation")
	}
}

func (s *chatServer) postMessage(params gqltransport.ExecutionParams) (*gqltransport.ExecutionResult, error) {
	user, err := s.currentUser(params)
	if err != nil {
		return nil, err
	}
	room, _ := params.Variables["room"].(string)
	text, _ := params.Variables["text"].(string)
	if room == "" || text == "" {
		return nil, fmt.Errorf("postMessage requires room and text variables")
	}
	msg := chatMessage{Room: room, User: user, Text: text, Sent: time.Now()}
	s.registry.post(msg)
	return &gqltransport.ExecutionResult{Data: map[string]interface{}{"postMessage": msg}}, nil
}

func (s *chatServer) listMessages(params gqltransport.ExecutionParams) (*gqltransport.ExecutionResult, error) {
	room, _ := params.Variables["room"].(string)
	if room == "" {
		return nil, fmt.Errorf("messages requires a room variable")
	}
	return &gqltransport.ExecutionResult{Data: map[string]interface{}{"messages": s.registry.messages(room)}}, nil
}

func (s *chatServer) subscribe(ctx context.Context, params gqltransport.ExecutionParams) (gqltransport.Subscription, error) {
	if _, err := s.currentUser(params); err != nil {
		return nil, err
	}
	room, _ := params.Variables["room"].(string)
	if room == "" {
		return nil, fmt.Errorf("messageAdded requires a room variable")
	}
	return &messageFeed{registry: s.registry, room: room, ch: s.registry.subscribe(room)}, nil
}
