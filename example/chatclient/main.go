package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/gookit/color"
	"github.com/urfave/cli/v2"

	"github.com/kbrandt/gqltransport"
)

// main.go is a minimal interactive chatclient: it wires one client to the
// chatserver example, with a small urfave/cli command line and colored
// terminal output.

func main() {
	app := &cli.App{
		Name:  "chatclient",
		Usage: "an example graphql-transport-ws chat client",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "url", Value: "ws://localhost:8080/graphql"},
			&cli.StringFlag{Name: "room", Value: "lobby"},
			&cli.StringFlag{Name: "user", Value: "guest"},
			&cli.StringFlag{Name: "secret", Value: "graphql-transport-ws-is-awesome"},
		},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	user := c.String("user")
	room := c.String("room")
	token, err := issueToken(user, c.String("secret"))
	if err != nil {
		return fmt.Errorf("issuing token: %w", err)
	}

	client := gqltransport.NewClient(gqltransport.ClientConfig{
		URL:              c.String("url"),
		ConnectionParams: map[string]string{"authToken": token},
		On: gqltransport.EventHooks{
			Connecting: func() { color.Gray.Println("connecting...") },
			Connected:  func() { color.Green.Println("connected") },
			Closed: func(ce gqltransport.CloseEvent) {
				color.Red.Printf("closed: code=%d reason=%s\n", ce.Code, ce.Reason)
			},
		},
	})
	defer client.Close()

	sub := client.Subscribe(
		gqltransport.SubscribePayload{
			Query:     "subscription MessageAdded($room: String!) { messageAdded(room: $room) { user text sentAt } }",
			Variables: map[string]interface{}{"room": room},
		},
		gqltransport.Sink{
			Next: func(result *gqltransport.ExecutionResult) {
				printResult(result)
			},
			Error: func(err error) { color.Red.Println("subscription error:", err) },
			Complete: func() {
				color.Gray.Println("subscription complete")
			},
		},
	)
	defer sub.Unsubscribe()

	color.Cyan.Printf("joined %q as %q -- type a message and press enter\n", room, user)
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		client.Subscribe(
			gqltransport.SubscribePayload{
				Query:     "mutation PostMessage($room: String!, $text: String!) { postMessage(room: $room, text: $text) { user text sentAt } }",
				Variables: map[string]interface{}{"room": room, "text": text},
			},
			gqltransport.Sink{
				Error: func(err error) { color.Red.Println("send failed:", err) },
			},
		)
	}
	return nil
}

func printResult(result *gqltransport.ExecutionResult) {
	if len(result.Errors) > 0 {
		color.Red.Println(result.Errors.Error())
		return
	}
	data, _ := result.Data.(map[string]interface{})
	msg, _ := data["messageAdded"].(map[string]interface{})
	color.Cyan.Printf("[%v] %v: %v\n", time.Now().Format("15:04:05"), msg["user"], msg["text"])
}

const userIDClaim = "jti"

func issueToken(userID, secret string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		userIDClaim: userID,
	})
	return token.SignedString([]byte(secret))
}
