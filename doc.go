// Package gqltransport implements the graphql-transport-ws subprotocol: a
// single persistent WebSocket multiplexing any number of concurrent
// GraphQL operations, each identified by a client-chosen id.
// (https://github.com/enisdenjo/graphql-ws/blob/master/PROTOCOL.md)

// It's split into a server half and a client half, neither of which
// depends on a concrete GraphQL engine. The server side takes plain
// functions for executing a query/mutation and for starting a
// subscription:

///////////////////////////////////////////////////////////////////////////////
//package main
//
//import (
//    "net/http"
//    "github.com/kbrandt/gqltransport"
//)
//func main() {
//	   h := gqltransport.NewServer(gqltransport.ServerConfig{
//	       Execute: myExecute,
//	       Subscribe: mySubscribe,
//	   })
//	   http.Handle("/graphql", h)
//	   http.ListenAndServe(":8080", nil)
//}
///////////////////////////////////////////////////////////////////////////////

// The client side dials a server, performs the connection_init/ack
// handshake, and lets you Subscribe any number of times over the one
// socket, with automatic reconnection and resubscription on a dropped
// connection:

///////////////////////////////////////////////////////////////////////////////
//c := gqltransport.NewClient(gqltransport.ClientConfig{URL: "ws://localhost:8080/graphql"})
//sub := c.Subscribe(gqltransport.SubscribePayload{Query: "subscription { messages { text } }"},
//    gqltransport.Sink{
//        Next: func(r *gqltransport.ExecutionResult) { fmt.Println(r.Data) },
//    })
//defer sub.Unsubscribe()
///////////////////////////////////////////////////////////////////////////////

// What execution and validation actually mean for a given schema is left
// entirely to the caller; this package only multiplexes operations over
// the wire and tracks their lifecycle.
package gqltransport
